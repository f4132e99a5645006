package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dkeye/Rendezvous/internal/adapters/ws"
	"github.com/dkeye/Rendezvous/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// AdminTokenMiddleware admits requests carrying "Authorization: Bearer <secret>".
func AdminTokenMiddleware(secret string) gin.HandlerFunc {
	want := []byte(secret)
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// SetupRouter wires the health probe, the WebSocket control channel and,
// when a secret is configured, the admin status API.
func SetupRouter(ctx context.Context, cfg *config.Config, status Status, media MediaStats, control *ws.Handler) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", handleHealth)
	r.GET("/ws/control", func(c *gin.Context) {
		control.HandleControl(ctx, c)
	})

	if cfg.Secret == "" {
		log.Warn().Str("module", "adapters.http").Msg("secret is empty, admin API disabled")
		return r
	}
	h := &handlers{status: status, media: media}
	api := r.Group("/api", AdminTokenMiddleware(cfg.Secret))
	api.GET("/online", h.online)
	api.GET("/calls", h.calls)
	api.GET("/media", h.mediaStats)

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
