package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/captain-focus/backend/internal/model/persona"
	"github.com/captain-focus/backend/pkg/utils"
)

// Handler 导师角色信息的HTTP处理器
type Handler struct {
	persona persona.Persona
}

// New 创建persona处理器
func New(p persona.Persona) *Handler {
	return &Handler{persona: p}
}

// RegisterRoutes 注册persona相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/persona", h.handleGetPersona)
}

// handleGetPersona 返回客户端展示用的角色资料，系统提示词不对外暴露
func (h *Handler) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"persona":           h.persona,
		"testVoiceSentence": persona.TestVoiceSentence,
		"timestamp":         utils.Now(),
	})
}
