package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"gwi.com/tenant-chatbot/internal/core"
)

// Codes used only at the HTTP boundary.
const (
	CodeRateLimited      core.ErrorCode = "RATE_LIMITED"
	CodeUnauthorized     core.ErrorCode = "UNAUTHORIZED"
	CodeNotFound         core.ErrorCode = "NOT_FOUND"
	CodeMethodNotAllowed core.ErrorCode = "METHOD_NOT_ALLOWED"
)

// Envelope wraps every response body.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Error   *ErrorBody  `json:"error"`
}

type ErrorBody struct {
	Code    core.ErrorCode `json:"code"`
	Message string         `json:"message"`
	Details interface{}    `json:"details,omitempty"`
}

// FieldError names one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func statusFor(code core.ErrorCode) int {
	switch code {
	case core.CodeValidation, core.CodeNoRelevantTag:
		return http.StatusBadRequest
	case core.CodeChatbotNotFound, CodeNotFound:
		return http.StatusNotFound
	case core.CodeLLMUnavailable:
		return http.StatusServiceUnavailable
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, code core.ErrorCode, message string, details interface{}) {
	writeJSON(w, statusFor(code), Envelope{
		Error: &ErrorBody{Code: code, Message: message, Details: details},
	})
}

// writeCoreError writes a pipeline error. Only the visitor-safe message of a
// *core.Error is exposed; anything else becomes a generic internal error.
func writeCoreError(w http.ResponseWriter, err error) {
	var e *core.Error
	if errors.As(err, &e) && e.Code != core.CodeInternal {
		writeError(w, e.Code, e.Message, nil)
		return
	}
	writeError(w, core.CodeInternal, "Internal server error", nil)
}
