package api

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"gwi.com/tenant-chatbot/internal/core"
)

const (
	maxMessageLength = 1000
	maxHistoryItems  = 20
	maxDomainLength  = 255
)

// ChatRequestBody is the inbound body of POST /public/chat.
type ChatRequestBody struct {
	ChatbotID *int64         `json:"chatbotId"`
	Domain    *string        `json:"domain"`
	Message   string         `json:"message"`
	History   []HistoryEntry `json:"history"`
}

type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// toChatRequest validates the body and returns the normalized pipeline request,
// or every field problem found.
func (b ChatRequestBody) toChatRequest() (core.ChatRequest, []FieldError) {
	var errs []FieldError
	var req core.ChatRequest

	switch {
	case b.ChatbotID != nil && b.Domain != nil:
		errs = append(errs, FieldError{Field: "chatbotId", Message: "exactly one of chatbotId or domain is required"})
	case b.ChatbotID != nil:
		if *b.ChatbotID <= 0 {
			errs = append(errs, FieldError{Field: "chatbotId", Message: "must be a positive integer"})
		} else {
			id := *b.ChatbotID
			req.Tenant.ChatbotID = &id
		}
	case b.Domain != nil:
		domain, msg := normalizeDomain(*b.Domain)
		if msg != "" {
			errs = append(errs, FieldError{Field: "domain", Message: msg})
		} else {
			req.Tenant.Domain = &domain
		}
	default:
		errs = append(errs, FieldError{Field: "chatbotId", Message: "exactly one of chatbotId or domain is required"})
	}

	req.Message = strings.TrimSpace(b.Message)
	switch n := utf8.RuneCountInString(req.Message); {
	case n == 0:
		errs = append(errs, FieldError{Field: "message", Message: "must not be empty"})
	case n > maxMessageLength:
		errs = append(errs, FieldError{Field: "message", Message: fmt.Sprintf("must be at most %d characters", maxMessageLength)})
	}

	if len(b.History) > maxHistoryItems {
		errs = append(errs, FieldError{Field: "history", Message: fmt.Sprintf("must have at most %d entries", maxHistoryItems)})
	}
	for i, h := range b.History {
		role := core.Role(h.Role)
		if role != core.RoleUser && role != core.RoleAssistant {
			errs = append(errs, FieldError{Field: fmt.Sprintf("history[%d].role", i), Message: "must be user or assistant"})
		}
		if utf8.RuneCountInString(h.Content) > maxMessageLength {
			errs = append(errs, FieldError{Field: fmt.Sprintf("history[%d].content", i), Message: fmt.Sprintf("must be at most %d characters", maxMessageLength)})
		}
		req.History = append(req.History, core.Turn{Role: role, Content: h.Content})
	}

	return req, errs
}

// normalizeDomain trims and lowercases domain. A non-empty message means it is invalid.
func normalizeDomain(raw string) (string, string) {
	domain := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case domain == "":
		return "", "must not be empty"
	case len(domain) > maxDomainLength:
		return "", fmt.Sprintf("must be at most %d characters", maxDomainLength)
	case !strings.Contains(domain, "."):
		return "", "must be a domain name"
	}
	return domain, ""
}
