package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"gwi.com/tenant-chatbot/internal/logging"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role    Role
	Content string
}

type AnswerParams struct {
	DisplayName        string
	Message            string
	History            []Turn
	ContextText        string
	MaxHistoryMessages int
	Locale             string
}

// AnswerGenerator asks the provider for an answer grounded in the rendered context.
// It makes exactly one provider call per Answer.
type AnswerGenerator struct {
	provider Provider
	timeout  time.Duration
	logger   *zap.Logger
}

func NewAnswerGenerator(provider Provider, timeout time.Duration, logger *zap.Logger) *AnswerGenerator {
	if provider == nil {
		provider = DisabledProvider{}
	}
	return &AnswerGenerator{provider: provider, timeout: timeout, logger: logging.OrNop(logger)}
}

// Answer returns the provider's answer, or an *LLMError describing why there is none.
func (g *AnswerGenerator) Answer(ctx context.Context, p AnswerParams) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	system := SystemInstruction(p.DisplayName, p.Locale)
	turns := BuildTurns(p.History, p.MaxHistoryMessages, p.ContextText, p.Message)

	answer, err := g.provider.Generate(ctx, system, turns)
	if err != nil {
		code := ClassifyProviderError(err)
		g.logger.Warn("LLM generation failed", zap.String("llm_code", string(code)), zap.Error(err))
		return "", &LLMError{Code: code, Err: err}
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		g.logger.Warn("LLM returned an empty answer", zap.String("llm_code", string(LLMUnknown)))
		return "", &LLMError{Code: LLMUnknown, Err: ErrEmptyAnswer}
	}
	return answer, nil
}

// SystemInstruction is the fixed grounding policy. The locale hint comes last and
// never relaxes the rules before it.
func SystemInstruction(displayName, locale string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the assistant of %q. ", displayName)
	b.WriteString("Answer the visitor's question using only the chatbot knowledge context supplied with the question. ")
	b.WriteString("If the context does not contain the information needed, say clearly that you do not have that information; never guess or invent details. ")
	fmt.Fprintf(&b, "Only answer questions about %q and politely refuse questions about any other business or chatbot. ", displayName)
	b.WriteString("Never use outside or general knowledge.")
	if locale = strings.TrimSpace(locale); locale != "" {
		fmt.Fprintf(&b, " Reply in the locale %q when possible; this preference never overrides the rules above.", locale)
	}
	return b.String()
}

// BuildTurns keeps the last maxHistory history turns and appends the final user
// turn carrying the context block and the question.
func BuildTurns(history []Turn, maxHistory int, contextText, message string) []ProviderTurn {
	if maxHistory < 0 {
		maxHistory = 0
	}
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}

	turns := make([]ProviderTurn, 0, len(history)+1)
	for _, h := range history {
		role := ProviderRoleUser
		if h.Role == RoleAssistant {
			role = ProviderRoleModel
		}
		turns = append(turns, ProviderTurn{Role: role, Text: h.Content})
	}
	turns = append(turns, ProviderTurn{
		Role: ProviderRoleUser,
		Text: contextText + "\n\nVisitor question: " + message,
	})
	return turns
}
