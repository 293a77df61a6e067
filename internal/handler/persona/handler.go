package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/emotalk/backend/internal/model/persona"
	"github.com/zhouzirui/emotalk/backend/pkg/utils"
)

// Handler 性格预设的HTTP处理器
type Handler struct {
	personas persona.Store
}

// New 创建性格预设处理器
func New(personas persona.Store) *Handler {
	return &Handler{
		personas: personas,
	}
}

// RegisterRoutes 注册性格预设相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personalities", h.handleListPersonalities)
}

// handleListPersonalities 列出所有内置性格预设
func (h *Handler) handleListPersonalities(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"default":       persona.DefaultID,
		"personalities": h.personas.List(),
	})
}
