package server

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/xpanvictor/presenced/internal/domains/engine"
	"github.com/xpanvictor/presenced/internal/domains/schedule"
	"github.com/xpanvictor/presenced/pkg/Logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dev-only
	},
}

const writeWait = 5 * time.Second

// eventHub fans the engine's event stream out to every connected shell.
type eventHub struct {
	logger *Logger.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newEventHub(logger *Logger.Logger) *eventHub {
	return &eventHub{
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// run drains the engine's event channel for the life of the process.
func (h *eventHub) run(events <-chan engine.Event) {
	for ev := range events {
		h.broadcast(ev)
	}
}

func (h *eventHub) broadcast(ev engine.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			h.logger.Debugf("dropping event subscriber: %v", err)
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

func (h *eventHub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *eventHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
}

func (rm *RoutesManager) handleEventsWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		rm.deps.Logger.Errorf("websocket upgrade failed: %v", err)
		return
	}
	rm.hub.add(conn)
	rm.deps.Logger.Debugf("event subscriber connected: %s", conn.RemoteAddr())

	// Reader loop only services control frames; subscribers never send.
	go func() {
		defer rm.hub.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

var errInvalidWeekday = errors.New("weekday must be in 0..6")

func formatMinute(m schedule.MinuteOfDay) string {
	return fmt.Sprintf("%02d:%02d", m.Hour(), m.Minute())
}

func parseMinute(s string) (schedule.MinuteOfDay, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return schedule.MinuteOfDay(hh*60 + mm), nil
}
