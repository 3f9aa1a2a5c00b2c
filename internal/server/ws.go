package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xreach/acp/internal/views"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsReadLimit  = 4096
)

// wsMessage is pushed to the client after every refresh of the page.
type wsMessage struct {
	Type string `json:"type"`
	Page string `json:"page"`
	Data any    `json:"data"`
}

// handleWebsocket serves GET /ws?page=<name>. The page stays mounted for
// the lifetime of the connection.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("page")
	if name == "" {
		writeError(w, http.StatusBadRequest, "page query parameter required")
		return
	}
	// Validate before the upgrade so unknown pages get a plain 404.
	if _, err := s.registry.Get(name); err != nil {
		if errors.Is(err, views.ErrUnknownPage) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe, err := s.registry.Subscribe(name)
	if err != nil {
		_ = conn.WriteJSON(wsMessage{Type: "error", Page: name, Data: err.Error()})
		return
	}
	defer unsubscribe()

	page, err := s.registry.Acquire(name)
	if err != nil {
		_ = conn.WriteJSON(wsMessage{Type: "error", Page: name, Data: err.Error()})
		return
	}
	defer s.registry.Release(name)
	s.logger.Debug("websocket connected", "page", name, "remote", r.RemoteAddr)

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// Inbound frames are ignored; the reader only detects close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(msg wsMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Debug("websocket write failed", "page", name, "error", err)
			return false
		}
		return true
	}

	if !send(wsMessage{Type: "snapshot", Page: name, Data: page.Snapshot()}) {
		return
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-updates:
			if !send(wsMessage{Type: "snapshot", Page: name, Data: page.Snapshot()}) {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
