package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyProviderError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want LLMErrorCode
	}{
		{name: "nil", err: nil, want: LLMUnknown},
		{name: "context deadline", err: fmt.Errorf("send: %w", context.DeadlineExceeded), want: LLMTimeout},
		{name: "status timeout", err: &ProviderError{Status: "TIMEOUT"}, want: LLMTimeout},
		{name: "status deadline exceeded", err: &ProviderError{Status: "DEADLINE_EXCEEDED"}, want: LLMTimeout},
		{name: "gateway timeout code", err: &ProviderError{Code: 504}, want: LLMTimeout},
		{name: "resource exhausted", err: &ProviderError{Status: "RESOURCE_EXHAUSTED", Message: "slow down"}, want: LLMQuotaExceeded},
		{name: "too many requests code", err: &ProviderError{Code: 429}, want: LLMQuotaExceeded},
		{name: "service unavailable code", err: &ProviderError{Code: 503, Message: "overloaded"}, want: LLMUnavailable},
		{name: "status unavailable", err: &ProviderError{Status: "unavailable"}, want: LLMUnavailable},
		{name: "text timeout", err: errors.New("request timeout after 30s"), want: LLMTimeout},
		{name: "text quota", err: errors.New("quota exceeded for project"), want: LLMQuotaExceeded},
		{name: "text 429", err: errors.New("googleapi: Error 429"), want: LLMQuotaExceeded},
		{name: "text 503", err: errors.New("HTTP 503"), want: LLMUnavailable},
		{name: "wrapped provider error", err: fmt.Errorf("gemini: %w", &ProviderError{Status: "RESOURCE_EXHAUSTED"}), want: LLMQuotaExceeded},
		{name: "bad request", err: &ProviderError{Code: 400, Message: "invalid argument"}, want: LLMUnknown},
		{name: "anything else", err: errors.New("boom"), want: LLMUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyProviderError(tt.err))
		})
	}
}

func TestDisabledProviderIsUnavailable(t *testing.T) {
	_, err := DisabledProvider{}.Generate(context.Background(), "", nil)
	assert.Equal(t, LLMUnavailable, ClassifyProviderError(err))
}

func TestProviderErrorMessage(t *testing.T) {
	err := &ProviderError{Status: "UNAVAILABLE", Code: 503, Message: "try later", Err: errors.New("eof")}
	assert.Equal(t, "provider error: UNAVAILABLE: 503: try later (eof)", err.Error())
	assert.Equal(t, "provider error", (&ProviderError{}).Error())
}
