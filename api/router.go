package api

import (
	"github.com/gin-gonic/gin"

	"monopolis-server/relay"
)

// NewRouter wires the HTTP routes. hub serves /ws.
func NewRouter(h *Handler, hub *relay.Hub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), CORS())

	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.POST("/rooms", h.RequireToken(), h.CreateRoom)
	api.GET("/rooms/:id", h.GetRoom)
	api.GET("/rooms/:id/turns", h.Turns)

	if hub != nil {
		r.GET("/ws", func(c *gin.Context) { hub.ServeWS(c.Writer, c.Request) })
	}
	return r
}
