package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pdanelson/bondora-auto-investor/internal/auth"
	"github.com/pdanelson/bondora-auto-investor/internal/service"
)

type switchStore interface {
	List(ctx context.Context) ([]service.Switch, error)
	Get(ctx context.Context, key string) (service.Switch, error)
	SetEnabled(ctx context.Context, key string, enabled bool, by string) (service.Switch, error)
}

type SettingsHandler struct {
	Settings switchStore
}

func (h *SettingsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/settings")
	g.GET("", h.list)
	g.GET("/auto-invest", h.getAutoInvest)
	g.PUT("/auto-invest", h.putAutoInvest)
}

func (h *SettingsHandler) list(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusServiceUnavailable, "settings unavailable", nil)
		return
	}
	items, err := h.Settings.List(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"total": len(items)})
}

func (h *SettingsHandler) getAutoInvest(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusServiceUnavailable, "settings unavailable", nil)
		return
	}
	sw, err := h.Settings.Get(c.Request.Context(), service.FeatureAutoInvest)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, sw, nil)
}

type putSwitchRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *SettingsHandler) putAutoInvest(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusServiceUnavailable, "settings unavailable", nil)
		return
	}
	var req putSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		Error(c, http.StatusBadRequest, "invalid body: expected {\"enabled\": bool}", nil)
		return
	}
	sw, err := h.Settings.SetEnabled(c.Request.Context(), service.FeatureAutoInvest, *req.Enabled, auth.Subject(c))
	if errors.Is(err, service.ErrNoStore) {
		Error(c, http.StatusServiceUnavailable, "settings store not configured", nil)
		return
	}
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, sw, nil)
}
