package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Provider roles, as the Gemini API names them.
const (
	ProviderRoleUser  = "user"
	ProviderRoleModel = "model"
)

type ProviderTurn struct {
	Role string
	Text string
}

// Provider generates one completion. The last turn is always the user's.
type Provider interface {
	Generate(ctx context.Context, systemInstruction string, turns []ProviderTurn) (string, error)
}

// ProviderError is the structured failure a Provider reports. Status is an
// upper-case status name such as RESOURCE_EXHAUSTED, Code an HTTP status when known.
type ProviderError struct {
	Status  string
	Code    int
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	parts := []string{"provider error"}
	if e.Status != "" {
		parts = append(parts, e.Status)
	}
	if e.Code != 0 {
		parts = append(parts, strconv.Itoa(e.Code))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	msg := strings.Join(parts, ": ")
	if e.Err != nil {
		return fmt.Sprintf("%s (%v)", msg, e.Err)
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

var (
	timeoutMarkers     = []string{"DEADLINE_EXCEEDED", "TIMEOUT"}
	quotaMarkers       = []string{"RESOURCE_EXHAUSTED", "429", "QUOTA"}
	unavailableMarkers = []string{"UNAVAILABLE", "503"}
)

// ClassifyProviderError maps a provider failure to its internal class. Structured
// fields are inspected first, then the upper-cased message.
func ClassifyProviderError(err error) LLMErrorCode {
	if err == nil {
		return LLMUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return LLMTimeout
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		switch pe.Code {
		case 429:
			return LLMQuotaExceeded
		case 503:
			return LLMUnavailable
		case 504:
			return LLMTimeout
		}
		if code := classifyText(strings.ToUpper(pe.Status)); code != LLMUnknown {
			return code
		}
	}
	return classifyText(strings.ToUpper(err.Error()))
}

func classifyText(s string) LLMErrorCode {
	switch {
	case containsAny(s, timeoutMarkers):
		return LLMTimeout
	case containsAny(s, quotaMarkers):
		return LLMQuotaExceeded
	case containsAny(s, unavailableMarkers):
		return LLMUnavailable
	}
	return LLMUnknown
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// DisabledProvider fails every generation as unavailable.
type DisabledProvider struct{}

func (DisabledProvider) Generate(context.Context, string, []ProviderTurn) (string, error) {
	return "", &ProviderError{Status: "UNAVAILABLE", Message: "llm provider disabled"}
}
