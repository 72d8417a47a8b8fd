package realtime

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/riskibarqy/contest-leaderboard/internal/domain/leaderboard"
	"github.com/riskibarqy/contest-leaderboard/internal/platform/logging"
)

var (
	ErrHubClosed        = errors.New("realtime hub is closed")
	ErrContestIDMissing = errors.New("contest id is required")
)

const defaultBuffer = 4

// Subscription is one viewer attached to a contest channel. C is closed on
// Unsubscribe or when the hub shuts down.
type Subscription struct {
	ID        string
	ContestID string
	C         <-chan leaderboard.Leaderboard

	ch      chan leaderboard.Leaderboard
	sendMu  sync.Mutex
	dropped atomic.Int64
}

// Dropped counts snapshots that were replaced by a newer one before the
// subscriber read them.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// offer never blocks. A full buffer loses its oldest snapshot.
func (s *Subscription) offer(lb leaderboard.Leaderboard) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	for {
		select {
		case s.ch <- lb:
			return
		default:
		}
		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}

// Hub fans snapshots out to the subscribers of each contest. Delivery is
// at-most-once with no replay; late subscribers read the store.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[string]*Subscription
	buffer int
	closed bool
	logger *logging.Logger
}

func NewHub(buffer int, logger *logging.Logger) *Hub {
	if buffer < 1 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		subs:   make(map[string]map[string]*Subscription),
		buffer: buffer,
		logger: logger,
	}
}

func (h *Hub) Subscribe(contestID string) (*Subscription, error) {
	contestID = strings.TrimSpace(contestID)
	if contestID == "" {
		return nil, ErrContestIDMissing
	}

	ch := make(chan leaderboard.Leaderboard, h.buffer)
	sub := &Subscription{
		ID:        uuid.NewString(),
		ContestID: contestID,
		C:         ch,
		ch:        ch,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	room, ok := h.subs[contestID]
	if !ok {
		room = make(map[string]*Subscription)
		h.subs[contestID] = room
	}
	room[sub.ID] = sub
	return sub, nil
}

// Unsubscribe detaches the handle and closes its channel. It reports false
// for unknown or already removed handles.
func (h *Hub) Unsubscribe(contestID, subscriptionID string) bool {
	contestID = strings.TrimSpace(contestID)

	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.subs[contestID]
	if !ok {
		return false
	}
	sub, ok := room[subscriptionID]
	if !ok {
		return false
	}
	delete(room, subscriptionID)
	if len(room) == 0 {
		delete(h.subs, contestID)
	}
	close(sub.ch)
	return true
}

// Emit hands one copy of lb to every current subscriber of contestID.
func (h *Hub) Emit(ctx context.Context, contestID string, lb leaderboard.Leaderboard) error {
	delivered, err := h.Deliver(contestID, lb)
	if err != nil {
		return err
	}
	h.logger.DebugContext(ctx, "leaderboard update emitted",
		"contest_id", contestID,
		"revision", lb.Revision,
		"subscribers", delivered,
	)
	return nil
}

// Deliver is Emit without logging; it returns the number of subscribers
// reached.
func (h *Hub) Deliver(contestID string, lb leaderboard.Leaderboard) (int, error) {
	contestID = strings.TrimSpace(contestID)

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0, ErrHubClosed
	}

	room := h.subs[contestID]
	if len(room) == 0 {
		return 0, nil
	}

	snapshot := lb.Clone()
	for _, sub := range room {
		sub.offer(snapshot)
	}
	return len(room), nil
}

func (h *Hub) Subscribers(contestID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[strings.TrimSpace(contestID)])
}

// Close detaches every subscriber. Later Subscribe and Emit calls fail with
// ErrHubClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for contestID, room := range h.subs {
		for _, sub := range room {
			close(sub.ch)
		}
		delete(h.subs, contestID)
	}
}
