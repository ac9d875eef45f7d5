package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gwi.com/tenant-chatbot/internal/logging"
)

const defaultChatModelName = "gemini-1.5-flash-latest"

// GeminiProvider is the Provider backed by the Gemini API.
type GeminiProvider struct {
	client    *genai.Client
	modelName string
	logger    *zap.Logger
}

func NewGeminiProvider(ctx context.Context, apiKey, modelName string, logger *zap.Logger) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if modelName == "" {
		modelName = defaultChatModelName
	}
	return &GeminiProvider{client: client, modelName: modelName, logger: logging.OrNop(logger)}, nil
}

func (p *GeminiProvider) Close() {
	if p.client != nil {
		if err := p.client.Close(); err != nil {
			p.logger.Warn("Error closing GenAI client", zap.Error(err))
		} else {
			p.logger.Info("GenAI client closed")
		}
	}
}

func (p *GeminiProvider) Generate(ctx context.Context, systemInstruction string, turns []ProviderTurn) (string, error) {
	if len(turns) == 0 {
		return "", errors.New("prompt is empty")
	}
	last := turns[len(turns)-1]
	if last.Role != ProviderRoleUser {
		return "", fmt.Errorf("last turn has role %q, want %q", last.Role, ProviderRoleUser)
	}

	model := p.client.GenerativeModel(p.modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}

	chatSession := model.StartChat()
	for _, t := range turns[:len(turns)-1] {
		chatSession.History = append(chatSession.History, &genai.Content{
			Role:  t.Role,
			Parts: []genai.Part{genai.Text(t.Text)},
		})
	}

	resp, err := chatSession.SendMessage(ctx, genai.Text(last.Text))
	if err != nil {
		return "", toProviderError(ctx, err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			p.logger.Debug("Gemini response part was not text", zap.String("type", fmt.Sprintf("%T", part)))
		}
	}
	return responseText.String(), nil
}

var grpcStatusNames = map[codes.Code]string{
	codes.DeadlineExceeded:  "DEADLINE_EXCEEDED",
	codes.ResourceExhausted: "RESOURCE_EXHAUSTED",
	codes.Unavailable:       "UNAVAILABLE",
	codes.Canceled:          "CANCELLED",
	codes.PermissionDenied:  "PERMISSION_DENIED",
	codes.InvalidArgument:   "INVALID_ARGUMENT",
	codes.Internal:          "INTERNAL",
}

// toProviderError extracts the status name and HTTP code from the SDK error so
// classification does not depend on message wording alone.
func toProviderError(ctx context.Context, err error) *ProviderError {
	pe := &ProviderError{Message: err.Error(), Err: err}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		pe.Code = gerr.Code
		if gerr.Message != "" {
			pe.Message = gerr.Message
		}
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.OK && st.Code() != codes.Unknown {
		if name, known := grpcStatusNames[st.Code()]; known {
			pe.Status = name
		} else {
			pe.Status = strings.ToUpper(st.Code().String())
		}
	}
	if pe.Status == "" && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		pe.Status = "DEADLINE_EXCEEDED"
	}
	return pe
}
