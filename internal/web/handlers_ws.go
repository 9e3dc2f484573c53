package web

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tgparkk/AutoSwingTrade/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// alertHub fans the bot's alert stream out to every connected websocket
// client. A client that cannot keep up is disconnected.
type alertHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan domain.Alert
}

func newAlertHub() *alertHub {
	return &alertHub{clients: make(map[*websocket.Conn]chan domain.Alert)}
}

// pump consumes the alert queue and broadcasts each alert.
func (h *alertHub) pump(alerts <-chan domain.Alert) {
	for alert := range alerts {
		h.mu.Lock()
		for conn, ch := range h.clients {
			select {
			case ch <- alert:
			default:
				delete(h.clients, conn)
				close(ch)
			}
		}
		h.mu.Unlock()
	}
}

func (h *alertHub) register(conn *websocket.Conn) chan domain.Alert {
	ch := make(chan domain.Alert, 32)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *alertHub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(ch)
	}
	h.mu.Unlock()
}

func (s *Server) handleAlertStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade alert stream", zap.Error(err))
		return
	}
	defer conn.Close()

	ch := s.alerts.register(conn)
	defer s.alerts.unregister(conn)

	// discard inbound frames, surface disconnects
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.alerts.unregister(conn)
				return
			}
		}
	}()

	for alert := range ch {
		if err := conn.WriteJSON(alert); err != nil {
			return
		}
	}
}
