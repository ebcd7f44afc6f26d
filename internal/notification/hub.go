package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KeelyW-11/school-equipment-inventory/internal/model"
)

const defaultFeedSize = 256

// Dispatcher hands events to push delivery.
type Dispatcher interface {
	Dispatch(ev model.Event)
}

// Hub is the rendering and notification collaborator of the catalog and the scanner. It
// keeps a bounded feed of events for clients to poll and forwards toasts to push delivery.
type Hub struct {
	pool     Dispatcher
	onRender func()
	size     int

	mu      sync.Mutex
	seq     int64
	events  []model.Event
	changed chan struct{}
}

// NewHub creates a hub keeping the last size events. pool and onRender may be nil.
func NewHub(size int, pool Dispatcher, onRender func()) *Hub {
	if size <= 0 {
		size = defaultFeedSize
	}
	return &Hub{
		pool:     pool,
		onRender: onRender,
		size:     size,
		changed:  make(chan struct{}),
	}
}

// Notify records a toast and forwards it to push subscribers.
func (h *Hub) Notify(message string, severity model.Severity) {
	ev := h.publish(model.Event{Kind: model.EventToast, Message: message, Severity: severity})
	if h.pool != nil {
		h.pool.Dispatch(ev)
	}
}

// Render tells clients their view is stale.
func (h *Hub) Render() {
	if h.onRender != nil {
		h.onRender()
	}
	h.publish(model.Event{Kind: model.EventRender})
}

// Highlight asks clients to scroll to and flash a record, vibrating if a pattern is given.
func (h *Hub) Highlight(id string, vibrate []int) {
	h.publish(model.Event{Kind: model.EventHighlight, TargetID: id, Vibrate: vibrate})
}

// Since returns the retained events with a sequence number greater than after.
func (h *Hub) Since(after int64) []model.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sinceLocked(after)
}

// Wait is Since, but blocks until a newer event exists or ctx is done.
func (h *Hub) Wait(ctx context.Context, after int64) []model.Event {
	for {
		h.mu.Lock()
		events := h.sinceLocked(after)
		changed := h.changed
		h.mu.Unlock()
		if len(events) > 0 {
			return events
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return nil
		}
	}
}

// LastSeq is the sequence number of the newest event.
func (h *Hub) LastSeq() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}

func (h *Hub) publish(ev model.Event) model.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	ev.Seq = h.seq
	ev.ID = uuid.NewString()
	ev.CreatedAt = time.Now().UTC()
	h.events = append(h.events, ev)
	if len(h.events) > h.size {
		h.events = append([]model.Event(nil), h.events[len(h.events)-h.size:]...)
	}
	close(h.changed)
	h.changed = make(chan struct{})
	return ev
}

func (h *Hub) sinceLocked(after int64) []model.Event {
	for i, ev := range h.events {
		if ev.Seq > after {
			return append([]model.Event(nil), h.events[i:]...)
		}
	}
	return nil
}
