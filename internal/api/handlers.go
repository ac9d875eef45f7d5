package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"gwi.com/tenant-chatbot/internal/auth"
	"gwi.com/tenant-chatbot/internal/core"
	"gwi.com/tenant-chatbot/internal/logging"
	"gwi.com/tenant-chatbot/internal/store"
)

const maxBodyBytes = 64 << 10

// ChatAnswerer runs one visitor question through the chat pipeline.
type ChatAnswerer interface {
	Chat(ctx context.Context, req core.ChatRequest) (*core.ChatResult, error)
}

// AdminStore is the write side used by the admin endpoints.
type AdminStore interface {
	ListChatbots(ctx context.Context) ([]store.Chatbot, error)
	CreateChatbot(ctx context.Context, displayName, domain string) (*store.Chatbot, error)
	ListTags(ctx context.Context) ([]store.Tag, error)
	CreateTag(ctx context.Context, code string, synonyms []string) (*store.Tag, error)
	CreateBlockType(ctx context.Context, name string, schema map[string]any) (*store.BlockType, error)
	CreateEntity(ctx context.Context, n store.NewEntity) (*store.Entity, error)
	LinkEntityTags(ctx context.Context, chatbotID, entityID int64, codes []string) error
}

type ctxKey int

const adminSubjectKey ctxKey = iota

type APIHandler struct {
	chat   ChatAnswerer
	admin  AdminStore
	tokens *auth.TokenManager
	logger *zap.Logger
}

// NewAPIHandler builds the handlers. admin may be nil, in which case the admin
// routes are not mounted.
func NewAPIHandler(chat ChatAnswerer, admin AdminStore, tokens *auth.TokenManager, logger *zap.Logger) *APIHandler {
	return &APIHandler{chat: chat, admin: admin, tokens: tokens, logger: logging.OrNop(logger)}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var body ChatRequestBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, core.CodeValidation, "Invalid request body", nil)
		return
	}

	req, fieldErrs := body.toChatRequest()
	if len(fieldErrs) > 0 {
		writeError(w, core.CodeValidation, "Invalid request", fieldErrs)
		return
	}

	res, err := h.chat.Chat(r.Context(), req)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

// Admin

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			writeError(w, CodeUnauthorized, "Authorization header is required", nil)
			return
		}

		subject, err := h.tokens.ValidateJWT(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			h.logger.Warn("Rejected admin token", zap.Error(err))
			writeError(w, CodeUnauthorized, "Invalid or expired token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), adminSubjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminSubject returns the subject of the admin token that authorized the request.
func AdminSubject(ctx context.Context) string {
	subject, _ := ctx.Value(adminSubjectKey).(string)
	return subject
}

func (h *APIHandler) writeAdminError(w http.ResponseWriter, r *http.Request, what string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, CodeNotFound, what+" not found", nil)
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, core.CodeValidation, what+" already exists", nil)
	default:
		h.logger.Error("Admin request failed",
			zap.String("path", r.URL.Path),
			zap.String("subject", AdminSubject(r.Context())),
			zap.Error(err),
		)
		writeError(w, core.CodeInternal, "Internal server error", nil)
	}
}

func (h *APIHandler) ListChatbotsHandler(w http.ResponseWriter, r *http.Request) {
	chatbots, err := h.admin.ListChatbots(r.Context())
	if err != nil {
		h.writeAdminError(w, r, "Chatbot", err)
		return
	}
	writeSuccess(w, http.StatusOK, chatbots)
}

type CreateChatbotRequest struct {
	DisplayName string `json:"display_name"`
	Domain      string `json:"domain"`
}

func (h *APIHandler) CreateChatbotHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateChatbotRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, core.CodeValidation, "Invalid request body", nil)
		return
	}

	var fieldErrs []FieldError
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		fieldErrs = append(fieldErrs, FieldError{Field: "display_name", Message: "must not be empty"})
	}
	domain, msg := normalizeDomain(req.Domain)
	if msg != "" {
		fieldErrs = append(fieldErrs, FieldError{Field: "domain", Message: msg})
	}
	if len(fieldErrs) > 0 {
		writeError(w, core.CodeValidation, "Invalid request", fieldErrs)
		return
	}

	chatbot, err := h.admin.CreateChatbot(r.Context(), displayName, domain)
	if err != nil {
		h.writeAdminError(w, r, "Chatbot", err)
		return
	}
	writeSuccess(w, http.StatusCreated, chatbot)
}

func (h *APIHandler) ListTagsHandler(w http.ResponseWriter, r *http.Request) {
	tags, err := h.admin.ListTags(r.Context())
	if err != nil {
		h.writeAdminError(w, r, "Tag", err)
		return
	}
	writeSuccess(w, http.StatusOK, tags)
}

type CreateTagRequest struct {
	Code     string   `json:"code"`
	Synonyms []string `json:"synonyms"`
}

func (h *APIHandler) CreateTagHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateTagRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, core.CodeValidation, "Invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, core.CodeValidation, "Invalid request", []FieldError{{Field: "code", Message: "must not be empty"}})
		return
	}

	tag, err := h.admin.CreateTag(r.Context(), req.Code, req.Synonyms)
	if err != nil {
		h.writeAdminError(w, r, "Tag", err)
		return
	}
	writeSuccess(w, http.StatusCreated, tag)
}

type CreateBlockTypeRequest struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
}

func (h *APIHandler) CreateBlockTypeHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateBlockTypeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, core.CodeValidation, "Invalid request body", nil)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, core.CodeValidation, "Invalid request", []FieldError{{Field: "name", Message: "must not be empty"}})
		return
	}

	blockType, err := h.admin.CreateBlockType(r.Context(), name, req.Schema)
	if err != nil {
		h.writeAdminError(w, r, "Block type", err)
		return
	}
	writeSuccess(w, http.StatusCreated, blockType)
}

type CreateEntityRequest struct {
	Contact     *store.Contact      `json:"contact,omitempty"`
	Schedule    []store.ScheduleRow `json:"schedule,omitempty"`
	BlockTypeID *int64              `json:"block_type_id,omitempty"`
	Data        map[string]any      `json:"data,omitempty"`
	Tags        []string            `json:"tags"`
}

func (req CreateEntityRequest) validate() []FieldError {
	var errs []FieldError
	set := 0
	if req.Contact != nil {
		set++
	}
	if len(req.Schedule) > 0 {
		set++
	}
	if req.BlockTypeID != nil {
		set++
	}
	if set != 1 {
		errs = append(errs, FieldError{Field: "contact", Message: "exactly one of contact, schedule or block_type_id is required"})
	}
	for i, row := range req.Schedule {
		if row.DayOfWeek < 0 || row.DayOfWeek > 6 {
			errs = append(errs, FieldError{Field: "schedule[" + strconv.Itoa(i) + "].day_of_week", Message: "must be between 0 (Sunday) and 6"})
		}
		if row.OpenTime == "" || row.CloseTime == "" {
			errs = append(errs, FieldError{Field: "schedule[" + strconv.Itoa(i) + "]", Message: "open_time and close_time are required"})
		}
	}
	return errs
}

func (h *APIHandler) CreateEntityHandler(w http.ResponseWriter, r *http.Request) {
	chatbotID, ok := pathID(w, r, "chatbotID")
	if !ok {
		return
	}
	var req CreateEntityRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, core.CodeValidation, "Invalid request body", nil)
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		writeError(w, core.CodeValidation, "Invalid request", errs)
		return
	}

	entity, err := h.admin.CreateEntity(r.Context(), store.NewEntity{
		ChatbotID:   chatbotID,
		Contact:     req.Contact,
		Schedule:    req.Schedule,
		BlockTypeID: req.BlockTypeID,
		Data:        req.Data,
		TagCodes:    req.Tags,
	})
	if err != nil {
		h.writeAdminError(w, r, "Chatbot, block type or tag", err)
		return
	}
	writeSuccess(w, http.StatusCreated, entity)
}

type LinkTagsRequest struct {
	Tags []string `json:"tags"`
}

func (h *APIHandler) LinkEntityTagsHandler(w http.ResponseWriter, r *http.Request) {
	chatbotID, ok := pathID(w, r, "chatbotID")
	if !ok {
		return
	}
	entityID, ok := pathID(w, r, "entityID")
	if !ok {
		return
	}
	var req LinkTagsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, core.CodeValidation, "Invalid request body", nil)
		return
	}
	if len(req.Tags) == 0 {
		writeError(w, core.CodeValidation, "Invalid request", []FieldError{{Field: "tags", Message: "must not be empty"}})
		return
	}

	if err := h.admin.LinkEntityTags(r.Context(), chatbotID, entityID, req.Tags); err != nil {
		h.writeAdminError(w, r, "Entity or tag", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, core.CodeValidation, "Invalid "+param, nil)
		return 0, false
	}
	return id, true
}
