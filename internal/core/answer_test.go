package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTurns(t *testing.T) {
	history := []Turn{
		{Role: RoleUser, Content: "one"},
		{Role: RoleAssistant, Content: "two"},
		{Role: RoleUser, Content: "three"},
		{Role: RoleAssistant, Content: "four"},
	}

	turns := BuildTurns(history, 2, "Chatbot knowledge context:", "Where are you?")
	require.Len(t, turns, 3)
	assert.Equal(t, ProviderTurn{Role: ProviderRoleUser, Text: "three"}, turns[0])
	assert.Equal(t, ProviderTurn{Role: ProviderRoleModel, Text: "four"}, turns[1])
	assert.Equal(t, ProviderTurn{
		Role: ProviderRoleUser,
		Text: "Chatbot knowledge context:\n\nVisitor question: Where are you?",
	}, turns[2])

	assert.Len(t, BuildTurns(history, 0, "", "q"), 1)
	assert.Len(t, BuildTurns(history, -1, "", "q"), 1)
	assert.Len(t, BuildTurns(history, 20, "", "q"), 5)
	assert.Len(t, BuildTurns(nil, 20, "", "q"), 1)
}

func TestSystemInstruction(t *testing.T) {
	plain := SystemInstruction("Acme Dental", "")
	assert.Contains(t, plain, `"Acme Dental"`)
	assert.Contains(t, plain, "only the chatbot knowledge context")
	assert.NotContains(t, plain, "locale")

	localized := SystemInstruction("Acme Dental", "el-GR")
	assert.True(t, len(localized) > len(plain))
	assert.Contains(t, localized, `"el-GR"`)
	assert.Equal(t, plain, localized[:len(plain)], "locale hint is appended after the policy")
}

func TestAnswer(t *testing.T) {
	p := &fakeProvider{answer: "  We are at 1 Main St.\n"}
	g := NewAnswerGenerator(p, 0, nil)

	answer, err := g.Answer(context.Background(), AnswerParams{
		DisplayName:        "Acme",
		Message:            "Where are you?",
		History:            []Turn{{Role: RoleUser, Content: "hi"}, {Role: RoleAssistant, Content: "hello"}},
		ContextText:        "Chatbot knowledge context:\nCONTACT (entityId=1): address:1 Main St.",
		MaxHistoryMessages: 1,
		Locale:             "en",
	})
	require.NoError(t, err)
	assert.Equal(t, "We are at 1 Main St.", answer)

	assert.Equal(t, 1, p.calls)
	assert.Equal(t, SystemInstruction("Acme", "en"), p.system)
	require.Len(t, p.turns, 2)
	assert.Equal(t, ProviderRoleModel, p.turns[0].Role)
	assert.Contains(t, p.turns[1].Text, "Visitor question: Where are you?")
}

func TestAnswerEmptyIsUnknown(t *testing.T) {
	g := NewAnswerGenerator(&fakeProvider{answer: " \n "}, 0, nil)

	_, err := g.Answer(context.Background(), AnswerParams{Message: "q"})
	var llmErr *LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, LLMUnknown, llmErr.Code)
	assert.ErrorIs(t, err, ErrEmptyAnswer)
}

func TestAnswerClassifiesProviderErrors(t *testing.T) {
	cause := &ProviderError{Status: "RESOURCE_EXHAUSTED"}
	p := &fakeProvider{err: cause}
	g := NewAnswerGenerator(p, 0, nil)

	_, err := g.Answer(context.Background(), AnswerParams{Message: "q"})
	var llmErr *LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, LLMQuotaExceeded, llmErr.Code)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, 1, p.calls, "no retries")
}

func TestAnswerAppliesTimeout(t *testing.T) {
	p := &fakeProvider{answer: "ok"}
	g := NewAnswerGenerator(p, 5*time.Second, nil)

	_, err := g.Answer(context.Background(), AnswerParams{Message: "q"})
	require.NoError(t, err)

	deadline, ok := p.lastCtx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(5*time.Second), deadline, 2*time.Second)
}

func TestAnswerWithoutProviderIsUnavailable(t *testing.T) {
	_, err := NewAnswerGenerator(nil, 0, nil).Answer(context.Background(), AnswerParams{Message: "q"})
	var llmErr *LLMError
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, LLMUnavailable, llmErr.Code)
}
