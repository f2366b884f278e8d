package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pdanelson/bondora-auto-investor/internal/auth"
)

// RouterDeps lists what the operator API serves. Nil handlers are not mounted.
type RouterDeps struct {
	Logger      *zap.Logger
	Auth        auth.JWT
	Health      *HealthHandler
	Passes      *PassesHandler
	Settings    *SettingsHandler
	Marketplace *MarketplaceHandler

	MetricsPath    string
	MetricsHandler http.Handler
}

func NewRouter(deps RouterDeps) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(auth.RequireBearer(deps.Auth))
	engine.Use(auth.WriteAudit(deps.Logger))

	if deps.Health != nil {
		deps.Health.Register(engine)
	}
	if deps.Passes != nil {
		deps.Passes.Register(engine)
	}
	if deps.Settings != nil {
		deps.Settings.Register(engine)
	}
	if deps.Marketplace != nil {
		deps.Marketplace.Register(engine)
	}
	if deps.MetricsHandler != nil {
		path := strings.TrimSpace(deps.MetricsPath)
		if path == "" {
			path = "/metrics"
		}
		engine.GET(path, gin.WrapH(deps.MetricsHandler))
	}
	engine.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, "not found", nil)
	})
	return engine
}
