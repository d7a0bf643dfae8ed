package websocket

import (
	"net/http"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/mtr002/bansu-harness/internal/logger"
)

var upgrader = gws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleJobChannel upgrades the request and pushes every message from
// updates to the client. When updates is closed the channel is closed with
// a normal closure. It returns early if the client goes away.
func HandleJobChannel(w http.ResponseWriter, r *http.Request, updates <-chan []byte) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	// The channel is push-only; reading is needed to process control frames
	// and notice the client leaving.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case msg, ok := <-updates:
			if !ok {
				closeMsg := gws.FormatCloseMessage(gws.CloseNormalClosure, "")
				conn.WriteControl(gws.CloseMessage, closeMsg, time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(gws.TextMessage, msg); err != nil {
				logger.Logger.Warn().Err(err).Msg("Failed to write job update")
				return
			}
		}
	}
}
