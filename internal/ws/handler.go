package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/zaqqye/defense_backend_v1/internal/apperror"
	"github.com/zaqqye/defense_backend_v1/internal/middleware"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins; rely on JWT auth.
		return true
	},
}

// Handler upgrades to a websocket streaming DefenseEvents. Admins may watch
// every defense or filter with ?defense_id=; evaluators only see the defense
// their token is bound to.
func Handler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := middleware.CurrentClaims(c)
		if !ok {
			middleware.Fail(c, apperror.New(apperror.CodeUnauthorized, "unauthorized"))
			return
		}
		defenseID := c.Query("defense_id")
		if claims.Role != middleware.RoleAdmin {
			if defenseID != "" && defenseID != claims.DefenseID {
				middleware.Fail(c, apperror.New(apperror.CodeForbidden, "forbidden"))
				return
			}
			defenseID = claims.DefenseID
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		cl := &client{hub: hub, conn: conn, send: make(chan []byte, sendBufferSize), defenseID: defenseID}
		select {
		case hub.register <- cl:
		case <-hub.done:
			conn.Close()
			return
		}

		go cl.writePump()
		cl.readPump()
	}
}
