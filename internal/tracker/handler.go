package tracker

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"placecraft/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades the request and streams events as JSON text frames. The
// optional "placement" query parameter restricts the stream to one placement.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Or(h.log).WithError(err).Debug("websocket upgrade failed")
			return
		}

		id, events := h.Register()
		filter := strings.TrimSpace(r.URL.Query().Get("placement"))
		logger.Or(h.log).WithField("subscriber", id).Info("tracker client connected")

		go h.writePump(conn, events, filter)
		h.readPump(conn, id)
	})
}

// readPump discards client frames and keeps the read deadline fresh.
func (h *Hub) readPump(conn *websocket.Conn, id uint64) {
	log := logger.Or(h.log).WithField("subscriber", id)
	defer func() {
		h.Unregister(id)
		if err := conn.Close(); err != nil {
			log.WithError(err).Debug("failed to close websocket connection")
		}
		log.Info("tracker client disconnected")
	}()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.WithError(err).Warn("failed to set read deadline")
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("websocket read failed")
			}
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, events <-chan Event, filter string) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	log := logger.Or(h.log)
	for {
		select {
		case e, ok := <-events:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.WithError(err).Warn("failed to set write deadline")
			}
			if !ok {
				if err := conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					log.WithError(err).Debug("write close message failed")
				}
				return
			}
			if filter != "" && !strings.EqualFold(filter, e.Placement) {
				continue
			}
			if err := conn.WriteJSON(e); err != nil {
				log.WithError(err).Debug("write json message failed")
				return
			}

		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.WithError(err).Warn("failed to set ping write deadline")
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.WithError(err).Debug("ping failed")
				return
			}
		}
	}
}
