package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hassan-kurwa-buruhani/crs-dashboard/internal/notify"
	"github.com/hassan-kurwa-buruhani/crs-dashboard/pkg/httputil"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// NotificationHandler serves pending notices and the live notice stream.
type NotificationHandler struct {
	feed     *notify.Feed
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewNotificationHandler creates a notification handler. Websocket upgrades
// are accepted from allowedOrigins; "*" allows any origin.
func NewNotificationHandler(feed *notify.Feed, allowedOrigins []string, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		feed:   feed,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
			return true
		}
		// Same-origin pages are always fine.
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}

// List handles GET /notifications. It returns and clears the pending notices.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	notes := h.feed.Drain()
	if notes == nil {
		notes = []notify.Notification{}
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: notes})
}

// Stream handles GET /notifications/ws. Every notice raised after the
// connection opens is pushed as a JSON text frame.
func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	notes, unsubscribe := h.feed.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	h.logger.Info("notification stream opened", slog.String("remote_addr", r.RemoteAddr))

	go h.readPump(conn, cancel)
	h.writePump(ctx, conn, notes)

	unsubscribe()
	_ = conn.Close()
	h.logger.Info("notification stream closed", slog.String("remote_addr", r.RemoteAddr))
}

// readPump discards client frames and keeps the read deadline fresh. It
// cancels ctx when the peer goes away.
func (h *NotificationHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", slog.String("error", err.Error()))
			}
			return
		}
	}
}

func (h *NotificationHandler) writePump(ctx context.Context, conn *websocket.Conn, notes <-chan notify.Notification) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notes:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				h.logger.Error("failed to encode notification", slog.String("error", err.Error()))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
