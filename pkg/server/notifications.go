package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/log"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/notify"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	recent := s.hub.Recent(s.getUser(r).ID)
	if recent == nil {
		recent = []notify.Notification{}
	}
	writeJSON(w, recent)
}

// handleNotificationsWS streams the user's notifications over a websocket.
func (s *Server) handleNotificationsWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := s.getUser(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		log.Ctx(ctx).WarnContext(ctx, "websocket upgrade failed", slog.Any("error", err))
		return
	}
	sub := s.hub.Subscribe(user.ID)
	log.Ctx(ctx).DebugContext(ctx, "notification stream opened")

	// the request context ends when the handler returns
	ctx = context.WithoutCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		wsReadPump(ctx, conn)
	}()
	go func() {
		wsWritePump(ctx, conn, sub, done)
		sub.Close()
		log.Ctx(ctx).DebugContext(ctx, "notification stream closed")
	}()
}

// wsReadPump discards client messages and returns once the peer goes away.
func wsReadPump(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Ctx(ctx).WarnContext(ctx, "websocket read error", slog.Any("error", err))
			}
			return
		}
	}
}

// wsWritePump writes notifications and keep-alive pings until the
// subscription or the reader ends.
func wsWritePump(ctx context.Context, conn *websocket.Conn, sub *notify.Subscription, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case n, ok := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			b, err := json.Marshal(n)
			if err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to marshal notification", slog.Any("error", err))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				log.Ctx(ctx).WarnContext(ctx, "websocket write error", slog.Any("error", err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Ctx(ctx).WarnContext(ctx, "websocket ping error", slog.Any("error", err))
				return
			}
		case <-done:
			return
		}
	}
}
