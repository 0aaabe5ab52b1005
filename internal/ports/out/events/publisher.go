package events

import (
	"context"

	"github.com/chapter-connect/membership-api/internal/domain"
)

// Publisher delivers domain events to in-process subscribers after a change commits.
type Publisher interface {
	Publish(ctx context.Context, evs ...domain.Event)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, ...domain.Event) {}
