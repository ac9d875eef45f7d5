package core

import (
	"context"
	"fmt"
	"strings"

	"gwi.com/tenant-chatbot/internal/store"
)

// TenantStore looks chatbots up. Both methods return (nil, nil) when nothing matches.
type TenantStore interface {
	GetChatbotByID(ctx context.Context, id int64) (*store.Chatbot, error)
	GetChatbotByDomain(ctx context.Context, domain string) (*store.Chatbot, error)
}

type TenantQuery struct {
	ChatbotID *int64
	Domain    *string
}

type Tenant struct {
	ChatbotID   int64
	DisplayName string
}

type TenantResolver struct {
	store TenantStore
}

func NewTenantResolver(s TenantStore) *TenantResolver {
	return &TenantResolver{store: s}
}

// Resolve looks the tenant up by id when one is given, otherwise by lowercased domain.
func (r *TenantResolver) Resolve(ctx context.Context, q TenantQuery) (*Tenant, error) {
	var chatbot *store.Chatbot
	var err error

	switch {
	case q.ChatbotID != nil:
		chatbot, err = r.store.GetChatbotByID(ctx, *q.ChatbotID)
	case q.Domain != nil && strings.TrimSpace(*q.Domain) != "":
		chatbot, err = r.store.GetChatbotByDomain(ctx, strings.ToLower(strings.TrimSpace(*q.Domain)))
	}
	if err != nil {
		return nil, newError(CodeInternal, "Failed to resolve chatbot", fmt.Errorf("tenant lookup: %w", err))
	}
	if chatbot == nil {
		return nil, newError(CodeChatbotNotFound, "Chatbot not found", nil)
	}
	return &Tenant{ChatbotID: chatbot.ID, DisplayName: chatbot.DisplayName}, nil
}
