package agent

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/captain-focus/backend/internal/model/chat"
	"github.com/captain-focus/backend/internal/service/provider"
	"github.com/captain-focus/backend/pkg/utils"
)

// Sessions 是 agent 会话注册表的最小接口
type Sessions interface {
	ResolveOrCreate(ctx context.Context, userID string) (string, bool, error)
	List() []chat.AgentSession
	HasAgent(agentID string) bool
}

// Provider 是 agent 相关接口依赖的上游能力
type Provider interface {
	ChatWithAgent(ctx context.Context, agentID string, turns []chat.Turn) (provider.RawResponse, error)
	CheckHealth(ctx context.Context) bool
	Configured() bool
}

// Handler agent 管理的HTTP处理器
type Handler struct {
	sessions Sessions
	provider Provider
	maxBytes int
}

// New 创建 agent 处理器
func New(sessions Sessions, prov Provider, maxMessageBytes int) *Handler {
	return &Handler{sessions: sessions, provider: prov, maxBytes: maxMessageBytes}
}

// RegisterRoutes 注册 agent 相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/agent", func(r chi.Router) {
		r.Post("/create", h.handleCreate)
		r.Post("/chat", h.handleChat)
		r.Get("/health", h.handleHealth)
		r.Get("/list", h.handleList)
		r.Get("/status/{agentID}", h.handleStatus)
	})
}

// handleCreate 为用户创建或复用 agent
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string `json:"userId"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	userID := strings.TrimSpace(payload.UserID)
	if userID == "" {
		utils.RespondError(w, http.StatusBadRequest, "MISSING_USER_ID", "userId is required")
		return
	}

	agentID, created, err := h.sessions.ResolveOrCreate(r.Context(), userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("agent creation failed")
		utils.RespondAppError(w, "Failed to create agent", err)
		return
	}

	message := "Using existing Captain Focus agent"
	if created {
		message = "Captain Focus agent created successfully! 🎮"
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"agentId":    agentID,
		"isNewAgent": created,
		"message":    message,
		"timestamp":  utils.Now(),
	})
}

// handleChat 直接与指定 agent 对话，失败时不降级
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AgentID             string              `json:"agentId"`
		Message             any                 `json:"message"`
		ConversationHistory []chat.HistoryEntry `json:"conversationHistory"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	agentID := strings.TrimSpace(payload.AgentID)
	if agentID == "" {
		utils.RespondError(w, http.StatusBadRequest, "MISSING_AGENT_ID", "Agent ID is required")
		return
	}

	message, ok := payload.Message.(string)
	if !ok || strings.TrimSpace(message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "INVALID_MESSAGE", "Valid message is required")
		return
	}
	if h.maxBytes > 0 && len(message) > h.maxBytes {
		utils.RespondError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "message is too long")
		return
	}

	turns := append(chat.History(payload.ConversationHistory), chat.Turn{Role: chat.RoleUser, Content: message})
	raw, err := h.provider.ChatWithAgent(r.Context(), agentID, turns)
	if err != nil {
		log.Warn().Err(err).Str("agent_id", agentID).Msg("agent chat failed")
		utils.RespondAppError(w, "Failed to send message to agent", err)
		return
	}

	response := provider.Normalize(raw)
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"response":      response,
		"agentId":       agentID,
		"messageLength": len(response),
		"timestamp":     utils.Now(),
	})
}

// handleHealth 探测上游服务可用性
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	healthy := h.provider.CheckHealth(r.Context())

	status, message := "unhealthy", "Omnidimension API is not responding"
	if healthy {
		status, message = "healthy", "Omnidimension API is accessible"
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":           status,
		"service":          "Omnidimension API",
		"message":          message,
		"apiKeyConfigured": h.provider.Configured(),
		"timestamp":        utils.Now(),
	})
}

// handleList 列出当前进程中的全部 agent 会话
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessions.List()
	if sessions == nil {
		sessions = []chat.AgentSession{}
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"totalAgents": len(sessions),
		"agents":      sessions,
		"timestamp":   utils.Now(),
	})
}

// handleStatus 查询 agent 是否在注册表中
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	active := h.sessions.HasAgent(agentID)

	status, message := "unknown", "Agent not found in active list"
	if active {
		status, message = "active", "Agent is active and ready"
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"agentId":     agentID,
		"status":      status,
		"message":     message,
		"lastChecked": utils.Now(),
	})
}
