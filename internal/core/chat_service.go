package core

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"gwi.com/tenant-chatbot/internal/logging"
)

// Stage names a step of a chat request, used in logs.
type Stage string

const (
	StageResolvingTenant     Stage = "ResolvingTenant"
	StageClassifyingIntent   Stage = "ClassifyingIntent"
	StageRetrievingKnowledge Stage = "RetrievingKnowledge"
	StageRankingContext      Stage = "RankingContext"
	StageGeneratingAnswer    Stage = "GeneratingAnswer"
	StageDone                Stage = "Done"
)

type ChatRequest struct {
	Tenant  TenantQuery
	Message string
	History []Turn
}

type SourceItem struct {
	EntityID   int64    `json:"entity_id"`
	EntityType string   `json:"entity_type"`
	Tags       []string `json:"tags"`
}

type ChatResult struct {
	Answer      string       `json:"answer"`
	SourceItems []SourceItem `json:"sourceItems"`
}

type ChatOptions struct {
	MaxHistoryMessages int
	Locale             string
}

// ChatService runs one visitor question through the pipeline: resolve the
// tenant, classify, retrieve, rank, render and generate. It never retries and
// returns no partial result.
type ChatService struct {
	resolver   *TenantResolver
	classifier *IntentClassifier
	retriever  *KnowledgeRetriever
	ranker     *ContextRanker
	serializer *ContextSerializer
	generator  *AnswerGenerator
	opts       ChatOptions
	logger     *zap.Logger
}

func NewChatService(
	resolver *TenantResolver,
	classifier *IntentClassifier,
	retriever *KnowledgeRetriever,
	ranker *ContextRanker,
	generator *AnswerGenerator,
	opts ChatOptions,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		resolver:   resolver,
		classifier: classifier,
		retriever:  retriever,
		ranker:     ranker,
		serializer: NewContextSerializer(),
		generator:  generator,
		opts:       opts,
		logger:     logging.OrNop(logger),
	}
}

func (s *ChatService) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	tenant, err := s.resolver.Resolve(ctx, req.Tenant)
	if err != nil {
		return nil, s.fail(StageResolvingTenant, err)
	}
	log := s.logger.With(zap.Int64("chatbot_id", tenant.ChatbotID))

	tags, err := s.classifier.Classify(ctx, req.Message)
	if err != nil {
		return nil, s.fail(StageClassifyingIntent, err)
	}
	if len(tags) == 0 {
		log.Info("No tag matched the message")
		return nil, newError(CodeNoRelevantTag, "No relevant information found for this question", nil)
	}

	items, err := s.retriever.Fetch(ctx, tenant.ChatbotID, tags)
	if err != nil {
		return nil, s.fail(StageRetrievingKnowledge, err)
	}

	selected := s.ranker.Select(items)
	contextText := s.serializer.Render(selected)
	log.Debug("Context selected",
		zap.Strings("tags", tags.Codes()),
		zap.Int("retrieved", len(items)),
		zap.Int("selected", len(selected)),
	)

	answer, err := s.generator.Answer(ctx, AnswerParams{
		DisplayName:        tenant.DisplayName,
		Message:            req.Message,
		History:            req.History,
		ContextText:        contextText,
		MaxHistoryMessages: s.opts.MaxHistoryMessages,
		Locale:             s.opts.Locale,
	})
	if err != nil {
		llmCode := LLMUnknown
		var llmErr *LLMError
		if errors.As(err, &llmErr) {
			llmCode = llmErr.Code
		}
		log.Error("Answer generation failed",
			zap.String("stage", string(StageGeneratingAnswer)),
			zap.String("llm_code", string(llmCode)),
			zap.Error(err),
		)
		return nil, newError(CodeLLMUnavailable, "The assistant is temporarily unavailable", err)
	}

	sources := make([]SourceItem, 0, len(selected))
	for _, item := range selected {
		h := item.Header()
		tagCodes := h.Tags
		if tagCodes == nil {
			tagCodes = []string{}
		}
		sources = append(sources, SourceItem{EntityID: h.EntityID, EntityType: h.Kind.EntityType(), Tags: tagCodes})
	}

	log.Debug("Chat completed", zap.String("stage", string(StageDone)), zap.Int("sources", len(sources)))
	return &ChatResult{Answer: answer, SourceItems: sources}, nil
}

func (s *ChatService) fail(stage Stage, err error) error {
	var e *Error
	if !errors.As(err, &e) {
		e = newError(CodeInternal, "Internal error", err)
	}
	if e.Code == CodeInternal {
		s.logger.Error("Chat pipeline failed", zap.String("stage", string(stage)), zap.Error(err))
	} else {
		s.logger.Info("Chat rejected", zap.String("stage", string(stage)), zap.String("code", string(e.Code)))
	}
	return e
}
