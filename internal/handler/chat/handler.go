package chat

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/captain-focus/backend/internal/errs"
	"github.com/captain-focus/backend/internal/model/chat"
	"github.com/captain-focus/backend/internal/service/dispatch"
	"github.com/captain-focus/backend/pkg/utils"
)

// Dispatcher 生成回复的分发管线
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (dispatch.Result, error)
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	pipeline Dispatcher
}

// New 创建聊天处理器
func New(pipeline Dispatcher) *Handler {
	return &Handler{pipeline: pipeline}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
}

var tierMessages = map[dispatch.Tier]string{
	dispatch.TierAgent:   "Response from Captain Focus agent",
	dispatch.TierGeneric: "Response from Captain Focus",
	dispatch.TierMock:    "Mock response - Omnidimension agent integration needed",
}

// handleChat 处理聊天消息，总能返回一条回复
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message             any                 `json:"message"`
		UserID              string              `json:"userId"`
		ConversationHistory []chat.HistoryEntry `json:"conversationHistory"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	message, ok := payload.Message.(string)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "INVALID_MESSAGE", "Valid message is required")
		return
	}

	result, err := h.pipeline.Dispatch(r.Context(), dispatch.Request{
		UserID:     payload.UserID,
		Message:    message,
		PriorTurns: chat.History(payload.ConversationHistory),
	})
	if err != nil {
		switch errs.KindOf(err) {
		case errs.PayloadTooLarge:
			utils.RespondError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "message is too long")
		case errs.InvalidInput:
			utils.RespondError(w, http.StatusBadRequest, "INVALID_MESSAGE", "Valid message is required")
		default:
			log.Error().Err(err).Msg("chat dispatch failed")
			utils.RespondError(w, http.StatusInternalServerError, "CHAT_FAILED", "Failed to process message")
		}
		return
	}

	resp := map[string]any{
		"response":  result.Text,
		"message":   tierMessages[result.Tier],
		"status":    result.Status(),
		"tierUsed":  result.Tier,
		"mood":      result.Mood,
		"timestamp": utils.Now(),
	}
	if result.AgentID != "" {
		resp["agentId"] = result.AgentID
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}
