package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"dash/internal/app/chat"
	"dash/internal/pkg/logx"
)

// HandleWebSocket upgrades the connection and hands it to the chat manager, which
// authenticates it from the first frame.
func HandleWebSocket(manager *chat.Manager, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Ctx(r.Context()).Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}

		logx.Ctx(r.Context()).Debug().Msg("WebSocket connection established, awaiting authentication")

		manager.Serve(conn)
	}
}
