package api

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/imf-phoenix/gadgetd/internal/gadget"
	"github.com/imf-phoenix/gadgetd/internal/infrastructure/logging"
)

// hubEventBacklog bounds lifecycle events waiting for the hub loop.
const hubEventBacklog = 64

// Hub fans gadget lifecycle events out to live feed subscribers.
//
// A single goroutine (Run) owns the subscriber set. Connections join and
// leave through channels, so no lock guards the set and each subscriber's
// done channel is closed exactly once, by the loop.
type Hub struct {
	logger *logging.Logger

	join   chan *subscriber
	leave  chan *subscriber
	events chan gadget.Event

	running atomic.Bool
	stopped chan struct{}
	count   atomic.Int64
}

// NewHub creates a hub. Nothing is delivered until Run is started.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:  logger,
		join:    make(chan *subscriber),
		leave:   make(chan *subscriber),
		events:  make(chan gadget.Event, hubEventBacklog),
		stopped: make(chan struct{}),
	}
}

// Run delivers events until ctx is cancelled, then disconnects every
// subscriber. Only the first call runs the loop; later calls return at once.
func (h *Hub) Run(ctx context.Context) {
	if !h.running.CompareAndSwap(false, true) {
		return
	}

	subs := make(map[*subscriber]struct{})
	defer func() {
		close(h.stopped)
		for s := range subs {
			h.drop(subs, s)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-h.join:
			subs[s] = struct{}{}
			h.count.Store(int64(len(subs)))
			h.logger.Debug("live feed subscriber joined", "user_id", s.userID, "subscribers", len(subs))
		case s := <-h.leave:
			if _, ok := subs[s]; ok {
				h.drop(subs, s)
				h.logger.Debug("live feed subscriber left", "user_id", s.userID, "subscribers", len(subs))
			}
		case ev := <-h.events:
			h.deliver(subs, ev)
		}
	}
}

// drop removes s from the set and signals its writer to stop.
func (h *Hub) drop(subs map[*subscriber]struct{}, s *subscriber) {
	delete(subs, s)
	close(s.done)
	h.count.Store(int64(len(subs)))
}

func (h *Hub) deliver(subs map[*subscriber]struct{}, ev gadget.Event) {
	data, err := json.Marshal(frame{Type: frameEvent, Event: &ev})
	if err != nil {
		h.logger.Error("encoding live feed event", "error", err, "event", ev.Type)
		return
	}

	delivered := 0
	for s := range subs {
		if !s.wants(ev) {
			continue
		}
		if s.enqueue(data) {
			delivered++
		} else {
			h.logger.Warn("live feed subscriber too slow, event skipped",
				"user_id", s.userID, "event", ev.Type, "gadget_id", ev.GadgetID)
		}
	}
	if delivered > 0 {
		h.logger.Debug("live feed event delivered", "event", ev.Type, "recipients", delivered)
	}
}

// add hands s to the loop. It reports false once the hub has stopped.
func (h *Hub) add(s *subscriber) bool {
	select {
	case h.join <- s:
		return true
	case <-h.stopped:
		return false
	}
}

// remove detaches s. Removing twice, or after the hub stopped, is harmless.
func (h *Hub) remove(s *subscriber) {
	select {
	case h.leave <- s:
	case <-h.stopped:
	}
}

// Notify queues a lifecycle event for delivery. It implements
// gadget.Notifier and never blocks the lifecycle operation: when the
// backlog is full the event is dropped with a warning.
func (h *Hub) Notify(_ context.Context, ev gadget.Event) error {
	select {
	case h.events <- ev:
	default:
		h.logger.Warn("live feed backlog full, event dropped", "event", ev.Type, "gadget_id", ev.GadgetID)
	}
	return nil
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}
