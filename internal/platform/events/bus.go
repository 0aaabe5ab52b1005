// Package events is the in-process event bus behind events.Publisher.
package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/chapter-connect/membership-api/internal/domain"
)

// Handler consumes one event. Handlers run synchronously in publish order.
type Handler func(ctx context.Context, ev domain.Event)

// Bus fans events out to subscribers. A panicking handler is logged and skipped;
// it never fails the publishing request.
type Bus struct {
	mu       sync.RWMutex
	handlers []namedHandler
	log      *zap.Logger
}

type namedHandler struct {
	name string
	fn   Handler
}

func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{log: log}
}

// Subscribe registers fn under name (used in logs).
func (b *Bus) Subscribe(name string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, namedHandler{name: name, fn: fn})
}

func (b *Bus) Publish(ctx context.Context, evs ...domain.Event) {
	b.mu.RLock()
	handlers := append([]namedHandler(nil), b.handlers...)
	b.mu.RUnlock()

	for _, ev := range evs {
		for _, h := range handlers {
			b.dispatch(ctx, h, ev)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, h namedHandler, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				zap.String("handler", h.name),
				zap.String("event", ev.EventName()),
				zap.Any("panic", r),
			)
		}
	}()
	b.log.Debug("event", zap.String("handler", h.name), zap.String("event", ev.EventName()), zap.String("subject", string(ev.Subject())))
	h.fn(ctx, ev)
}
