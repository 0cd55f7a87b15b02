package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const eventWriteTimeout = 5 * time.Second

// handleEvents streams device notifications over a WebSocket, one JSON
// object per message. Slow consumers are dropped by the hub rather than
// backing pressure into the emitters.
func (s *Server) handleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.hub == nil {
			http.Error(w, "notification stream unavailable", http.StatusServiceUnavailable)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.logger.Error("websocket accept failed", "error", err)
			return
		}
		defer func() {
			_ = conn.Close(websocket.StatusInternalError, "unexpected close")
		}()

		ch, cancel := s.hub.Subscribe()
		defer cancel()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			case n, ok := <-ch:
				if !ok {
					_ = conn.Close(websocket.StatusNormalClosure, "stream closed")
					return
				}
				data, err := json.Marshal(n)
				if err != nil {
					s.logger.Error("notification marshal failed", "error", err)
					continue
				}
				writeCtx, cancelWrite := context.WithTimeout(ctx, eventWriteTimeout)
				err = conn.Write(writeCtx, websocket.MessageText, data)
				cancelWrite()
				if err != nil {
					return
				}
			}
		}
	}
}
