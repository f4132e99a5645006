package http

import (
	"net/http"

	"github.com/dkeye/Rendezvous/internal/app"
	"github.com/dkeye/Rendezvous/internal/app/media"
	"github.com/gin-gonic/gin"
)

// Status is the read-only view of the registry served to operators.
type Status interface {
	Online() []app.OnlineEntry
	Calls() []app.CallInfo
}

type MediaStats interface {
	Stats() media.Stats
}

type handlers struct {
	status Status
	media  MediaStats
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) online(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"online": h.status.Online()})
}

func (h *handlers) calls(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"calls": h.status.Calls()})
}

func (h *handlers) mediaStats(c *gin.Context) {
	if h.media == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "media relay not running"})
		return
	}
	c.JSON(http.StatusOK, h.media.Stats())
}
