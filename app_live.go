package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"metabuild/internal/logging"
	"metabuild/internal/metrics"
	"metabuild/internal/opendota"

	"github.com/gorilla/websocket"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
	liveMaxMessage = 64 << 10
)

// liveConn serialises writes to one live client
type liveConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *liveConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	return c.conn.WriteJSON(v)
}

func (c *liveConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait))
}

// handleLive streams a recommendation back for every match context frame
func (a *App) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("[Live] Upgrade failed")
		return
	}
	if !a.track(conn) {
		conn.Close()
		return
	}
	metrics.LiveConnections.Inc()

	lc := &liveConn{conn: conn}
	done := make(chan struct{})
	defer func() {
		close(done)
		a.untrack(conn)
		conn.Close()
		metrics.LiveConnections.Dec()
	}()

	conn.SetReadLimit(liveMaxMessage)
	conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	go a.keepAlive(lc, done)

	ctx := logging.ContextWithRequestID(context.Background(), logging.RequestIDFromContext(r.Context()))
	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Ctx(ctx).Debug().Err(err).Msg("[Live] Connection closed")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		if err := lc.writeJSON(a.liveResponse(ctx, message)); err != nil {
			return
		}
	}
}

// liveResponse builds the reply for one frame
func (a *App) liveResponse(ctx context.Context, message []byte) any {
	req, details := parseRecommend(message)
	if details != nil {
		return map[string]any{"error": "ValidationError", "details": details}
	}

	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rec, err := a.builder.Recommend(reqCtx, req.MatchContext(), req.mode())
	if err != nil {
		if errors.Is(err, opendota.ErrUnavailable) {
			return map[string]string{"error": "ProviderUnavailable", "message": err.Error()}
		}
		logging.Ctx(ctx).Error().Err(err).Msg("[Live] Recommendation failed")
		return map[string]string{"error": "InternalServerError", "message": err.Error()}
	}
	return rec
}

func (a *App) keepAlive(lc *liveConn, done <-chan struct{}) {
	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-a.stopLive:
			return
		case <-ticker.C:
			if err := lc.ping(); err != nil {
				return
			}
		}
	}
}

// track registers conn unless the app is shutting down
func (a *App) track(conn *websocket.Conn) bool {
	a.liveMu.Lock()
	defer a.liveMu.Unlock()

	select {
	case <-a.stopLive:
		return false
	default:
	}
	a.live[conn] = struct{}{}
	return true
}

func (a *App) untrack(conn *websocket.Conn) {
	a.liveMu.Lock()
	delete(a.live, conn)
	a.liveMu.Unlock()
}
