package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MemoFlux/MemoFluxServer/pkg/aigen"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// handleWS reads one request message and answers with one text message per
// envelope, then closes the connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.cfg.MaxBodyBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sink := aigen.SinkFunc(func(e aigen.Envelope) error {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(e)
	})

	var req aigenRequest
	if err := conn.ReadJSON(&req); err != nil {
		sink.Send(aigen.Envelope{Type: aigen.TypeStatus, Status: aigen.StatusError, Data: struct{}{}, Message: "invalid request: " + err.Error()})
		return
	}
	c, tags, err := s.prepare(ctx, req)
	if err != nil {
		sink.Send(aigen.Envelope{Type: aigen.TypeStatus, Status: aigen.StatusError, Data: struct{}{}, Message: err.Error()})
		return
	}

	// A client closing its side cancels the stream.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	if err := s.deps.Service.Stream(ctx, c, tags, sink); err != nil {
		s.logger.WarnContext(ctx, "websocket stream ended early", "error", err)
		return
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "streaming complete"))
}
