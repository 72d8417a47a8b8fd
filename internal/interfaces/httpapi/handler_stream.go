package httpapi

import (
	"net/http"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/riskibarqy/contest-leaderboard/internal/domain/leaderboard"
)

const streamFrameSnapshot = "snapshot"

type streamConfig struct {
	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
	readLimit  int64
}

func defaultStreamConfig() streamConfig {
	pongWait := 60 * time.Second
	return streamConfig{
		writeWait:  10 * time.Second,
		pongWait:   pongWait,
		pingPeriod: pongWait * 9 / 10,
		readLimit:  512,
	}
}

// StreamLeaderboard upgrades to a WebSocket and pushes full snapshots. The
// first frame is the current snapshot when one exists. Delivery is
// at-most-once: a slow client only ever sees the newest pending snapshot.
func (h *Handler) StreamLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.StreamLeaderboard")
	defer span.End()

	contestID, err := contestIDFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}

	// Subscribe before reading the current snapshot so nothing committed in
	// between is missed.
	sub, err := h.subscriber.Subscribe(contestID)
	if err != nil {
		h.logFailure(ctx, "subscribe leaderboard failed", contestID, err)
		writeError(w, err)
		return
	}
	defer h.subscriber.Unsubscribe(contestID, sub.ID)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client.
		h.logger.InfoContext(ctx, "websocket upgrade failed", "contest_id", contestID, "error", err)
		return
	}
	defer conn.Close()

	h.logger.DebugContext(ctx, "leaderboard stream opened", "contest_id", contestID, "subscription_id", sub.ID)

	var last streamCursor
	current, ok, err := h.leaderboards.GetLeaderboard(ctx, contestID)
	switch {
	case err != nil:
		h.logger.WarnContext(ctx, "initial leaderboard frame skipped", "contest_id", contestID, "error", err)
	case ok:
		if err := h.writeFrame(conn, current); err != nil {
			h.logger.InfoContext(ctx, "leaderboard stream write failed", "contest_id", contestID, "error", err)
			return
		}
		last = cursorOf(current)
	}

	closed := h.readUntilClosed(conn)
	ticker := time.NewTicker(h.stream.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			h.logger.DebugContext(ctx, "leaderboard stream closed by client", "contest_id", contestID, "subscription_id", sub.ID)
			return
		case lb, open := <-sub.C:
			if !open {
				h.writeClose(conn, websocket.CloseGoingAway, "stream closed")
				return
			}
			if !last.before(lb) {
				continue
			}
			if err := h.writeFrame(conn, lb); err != nil {
				h.logger.InfoContext(ctx, "leaderboard stream write failed", "contest_id", contestID, "error", err)
				return
			}
			last = cursorOf(lb)
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.stream.writeWait)); err != nil {
				return
			}
		}
	}
}

// readUntilClosed drains client frames so pongs and close frames are
// processed. The returned channel closes when the peer goes away.
func (h *Handler) readUntilClosed(conn *websocket.Conn) <-chan struct{} {
	done := make(chan struct{})
	conn.SetReadLimit(h.stream.readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(h.stream.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.stream.pongWait))
	})

	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return done
}

func (h *Handler) writeFrame(conn *websocket.Conn, lb leaderboard.Leaderboard) error {
	_ = conn.SetWriteDeadline(time.Now().Add(h.stream.writeWait))
	wc, err := conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	if err := sonic.ConfigDefault.NewEncoder(wc).Encode(streamFrameDTO{
		Type: streamFrameSnapshot,
		Data: toLeaderboardDTO(lb),
	}); err != nil {
		_ = wc.Close()
		return err
	}
	return wc.Close()
}

func (h *Handler) writeClose(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(h.stream.writeWait))
}

// streamCursor is the version of the last frame sent on one connection.
type streamCursor struct {
	generation string
	revision   int64
}

func cursorOf(lb leaderboard.Leaderboard) streamCursor {
	return streamCursor{generation: lb.Generation, revision: lb.Revision}
}

// before reports whether lb is newer than the cursor. A new generation
// always counts as newer.
func (c streamCursor) before(lb leaderboard.Leaderboard) bool {
	if c.generation == "" || c.generation != lb.Generation {
		return true
	}
	return lb.Revision > c.revision
}
