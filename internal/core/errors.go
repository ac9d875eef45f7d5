package core

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable, outward-facing failure class of a chat request.
type ErrorCode string

const (
	CodeValidation      ErrorCode = "VALIDATION_ERROR"
	CodeChatbotNotFound ErrorCode = "CHATBOT_NOT_FOUND"
	CodeNoRelevantTag   ErrorCode = "NO_RELEVANT_TAG"
	CodeLLMUnavailable  ErrorCode = "LLM_UNAVAILABLE"
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// Error is raised at a pipeline stage boundary. Message is safe to show to visitors.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// LLMErrorCode is the internal provider failure class. It is logged, never returned to visitors.
type LLMErrorCode string

const (
	LLMTimeout       LLMErrorCode = "TIMEOUT"
	LLMQuotaExceeded LLMErrorCode = "QUOTA_EXCEEDED"
	LLMUnavailable   LLMErrorCode = "UNAVAILABLE"
	LLMUnknown       LLMErrorCode = "UNKNOWN"
)

// LLMError is returned by AnswerGenerator for every failed generation.
type LLMError struct {
	Code LLMErrorCode
	Err  error
}

func (e *LLMError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("llm %s", e.Code)
}

func (e *LLMError) Unwrap() error { return e.Err }

var ErrEmptyAnswer = errors.New("provider returned an empty answer")
