package events

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishJSON(t *testing.T) {
	bus := NewEventBus(zerolog.Nop())

	type payload struct {
		ID string `json:"id"`
	}

	var got []string
	bus.Subscribe(BookingCreated, func(e Event) error {
		var p payload
		require.NoError(t, e.Decode(&p))
		got = append(got, "first:"+p.ID)
		assert.False(t, e.CreatedAt.IsZero())
		return errors.New("ignored")
	})
	bus.Subscribe(BookingCreated, func(e Event) error {
		got = append(got, "second")
		return nil
	})
	bus.Subscribe(BookingFailed, func(e Event) error {
		got = append(got, "wrong type")
		return nil
	})

	require.NoError(t, bus.PublishJSON(BookingCreated, payload{ID: "b1"}))
	assert.Equal(t, []string{"first:b1", "second"}, got)
}

func TestEventBus_PublishJSONMarshalError(t *testing.T) {
	bus := NewEventBus(zerolog.Nop())
	err := bus.PublishJSON(BookingCreated, make(chan int))
	assert.Error(t, err)
}

func TestEventBus_NoSubscribers(t *testing.T) {
	bus := NewEventBus(zerolog.Nop())
	assert.NotPanics(t, func() { bus.Publish(Event{Type: "nothing"}) })
}
