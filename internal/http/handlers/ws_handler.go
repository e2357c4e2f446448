// README: Websocket attach point for live driver/rider sessions.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"rebeca/internal/http/middleware"
	"rebeca/internal/notify"
	"rebeca/internal/types"
)

type WSHandler struct {
	hub      *notify.WSHub
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewWSHandler(hub *notify.WSHub, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients are the mobile apps; origin enforcement happens at
			// the edge proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Attach upgrades the connection and registers it as the caller's live
// session. The read loop only drains control frames; all traffic is
// server-to-client.
func (h *WSHandler) Attach(c *gin.Context) {
	uid := types.ID(middleware.CallerUID(c))
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	h.hub.Attach(uid, conn)

	go func() {
		defer h.hub.Detach(uid)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
