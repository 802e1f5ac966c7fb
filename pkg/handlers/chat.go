package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-estimator/pkg/middleware"
	"github.com/ekaya-inc/ekaya-estimator/pkg/models"
	"github.com/ekaya-inc/ekaya-estimator/pkg/services"
)

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Message     string               `json:"message" validate:"max=4000"`
	Names       []string             `json:"names,omitempty" validate:"max=5000,dive,max=500"`
	History     []models.ChatMessage `json:"history,omitempty" validate:"max=100"`
	ProjectCode string               `json:"project_code,omitempty" validate:"max=128"`
	CabinetCode string               `json:"cabinet_code,omitempty" validate:"max=128"`
	Mode        string               `json:"mode,omitempty"`    // auto, chat or estimate; defaults to auto
	UseLLM      *bool                `json:"use_llm,omitempty"` // Defaults to true
}

// toServiceRequest converts the body into the service request.
func (r *ChatRequest) toServiceRequest() models.ChatRequest {
	return models.ChatRequest{
		Message: r.Message,
		Names:   r.Names,
		History: r.History,
		Filters: models.CatalogFilters{ProjectCode: r.ProjectCode, CabinetCode: r.CabinetCode},
		Mode:    r.Mode,
		UseLLM:  r.UseLLM == nil || *r.UseLLM,
	}
}

// ChatHandler serves the chat endpoint.
type ChatHandler struct {
	chat   services.ChatService
	logger *zap.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chat services.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		logger: logger.Named("chat-handler"),
	}
}

// RegisterRoutes registers the chat handler's routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/chat", h.Chat)
}

// Chat handles POST /v1/chat.
// Only malformed requests fail; estimate and model failures come back as
// a fallback reply with warnings in data.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var body ChatRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if err := validateRequest(&body); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	req := body.toServiceRequest()
	if err := services.ValidateChatRequest(&req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.logger.Debug("Chat request",
		zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
		zap.String("mode", req.Mode),
		zap.Int("names", len(req.Names)),
		zap.Int("history", len(req.History)),
		zap.Bool("use_llm", req.UseLLM))

	resp, err := h.chat.Chat(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode chat response", zap.Error(err))
	}
}
