package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chapter-connect/membership-api/internal/domain"
	eventsport "github.com/chapter-connect/membership-api/internal/ports/out/events"
)

var _ eventsport.Publisher = (*Bus)(nil)

func TestBus_DeliversInOrder(t *testing.T) {
	bus := NewBus(nil)
	var got []string
	bus.Subscribe("a", func(_ context.Context, ev domain.Event) { got = append(got, "a:"+ev.EventName()) })
	bus.Subscribe("b", func(_ context.Context, ev domain.Event) { got = append(got, "b:"+ev.EventName()) })

	bus.Publish(context.Background(),
		domain.RoleChanged{ProfileID: "p1"},
		domain.ProfileDeleted{ProfileID: "p1"},
	)

	assert.Equal(t, []string{
		"a:profile.role_changed", "b:profile.role_changed",
		"a:profile.deleted", "b:profile.deleted",
	}, got)
}

func TestBus_PanickingHandlerIsIsolated(t *testing.T) {
	bus := NewBus(nil)
	calls := 0
	bus.Subscribe("boom", func(context.Context, domain.Event) { panic("boom") })
	bus.Subscribe("after", func(context.Context, domain.Event) { calls++ })

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), domain.ProfileDeleted{ProfileID: "p1"})
	})
	assert.Equal(t, 1, calls)
}
