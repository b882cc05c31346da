package log

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRetryEvent(t *testing.T) {
	ts := time.Date(2025, 3, 4, 5, 6, 7, 123456789, time.UTC)
	event := Event{
		Timestamp:   ts,
		ResourceKey: "tasks",
		Layer:       LayerMultiplexer,
		Category:    CategoryRetry,
		ChannelName: "tasks:owner-7:1741064767123",
		OwnerID:     "owner-7",
		Retry: &RetryEvent{
			Attempt:    3,
			MaxRetries: 5,
			Delay:      400 * time.Millisecond,
		},
	}

	data, err := EncodeEvent(event)
	require.NoError(t, err)

	decoded, err := DecodeEvent(data)
	require.NoError(t, err)

	assert.True(t, decoded.Timestamp.Equal(ts), "nanosecond timestamp preserved")
	assert.Equal(t, "tasks", decoded.ResourceKey)
	assert.Equal(t, CategoryRetry, decoded.Category)
	require.NotNil(t, decoded.Retry)
	assert.Equal(t, 400*time.Millisecond, decoded.Retry.Delay)
	assert.Nil(t, decoded.StateChange)
	assert.Nil(t, decoded.Error)
}

func TestEncodeIsDeterministic(t *testing.T) {
	event := Event{
		Timestamp:   time.Unix(1700000000, 0).UTC(),
		ResourceKey: "projects",
		Category:    CategoryState,
		StateChange: &StateChangeEvent{OldState: "CONNECTING", NewState: "SUBSCRIBED"},
	}

	a, err := EncodeEvent(event)
	require.NoError(t, err)
	b, err := EncodeEvent(event)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncoderDecoderStream(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	keys := []string{"projects", "tasks", "equipment"}
	for _, k := range keys {
		require.NoError(t, enc.Encode(Event{ResourceKey: k, Category: CategoryDelivery,
			Delivery: &DeliveryEvent{PayloadSize: len(k), Delivered: 1}}))
	}

	dec := NewDecoder(&buf)
	for _, k := range keys {
		var ev Event
		require.NoError(t, dec.Decode(&ev))
		assert.Equal(t, k, ev.ResourceKey)
		require.NotNil(t, ev.Delivery)
		assert.Equal(t, len(k), ev.Delivery.PayloadSize)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeEvent([]byte{0xff, 0x00, 0x01})
	assert.ErrorIs(t, err, ErrMalformedEvent)
}
