package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedEvent struct {
	key   string
	event interface{}
}

type captureWriter struct {
	events []capturedEvent
}

func (w *captureWriter) PublishEvent(ctx context.Context, key string, event interface{}) error {
	w.events = append(w.events, capturedEvent{key: key, event: event})
	return nil
}

func TestEventPublisher_Keys(t *testing.T) {
	w := &captureWriter{}
	ep := NewEventPublisher(w)
	ctx := context.Background()

	require.NoError(t, ep.PublishCartUpdated(ctx, &models.CartUpdatedEvent{CartID: "c1"}))
	require.NoError(t, ep.PublishPurchaseCompleted(ctx, &models.PurchaseCompletedEvent{CartID: "c1"}))
	require.NoError(t, ep.PublishChatMessagePosted(ctx, &models.ChatMessagePostedEvent{MessageID: "m1"}))

	require.Len(t, w.events, 3)
	assert.Equal(t, "cart-c1", w.events[0].key)
	assert.Equal(t, "cart-c1", w.events[1].key)
	assert.Equal(t, "chat", w.events[2].key)
}

func TestEventHandler_HandleMessage(t *testing.T) {
	event := models.PurchaseCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-1",
			EventType: models.EventTypePurchaseCompleted,
			Timestamp: time.Now(),
		},
		CartID:    "c1",
		Purchaser: "ana@example.com",
		Amount:    decimal.RequireFromString("30.00"),
		Outcome:   models.PurchasePartial,
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	var got *models.PurchaseCompletedEvent
	eh := NewEventHandler()
	eh.OnPurchaseCompleted(func(ctx context.Context, e *models.PurchaseCompletedEvent) error {
		got = e
		return nil
	})

	require.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: payload}))
	require.NotNil(t, got)
	assert.Equal(t, "c1", got.CartID)
	assert.Equal(t, "ana@example.com", got.Purchaser)
	assert.True(t, got.Amount.Equal(event.Amount))
}

func TestEventHandler_HandleMessage_SkipsOtherEvents(t *testing.T) {
	called := false
	eh := NewEventHandler()
	eh.OnPurchaseCompleted(func(context.Context, *models.PurchaseCompletedEvent) error {
		called = true
		return nil
	})

	for _, eventType := range []string{models.EventTypeCartUpdated, "SOMETHING_ELSE"} {
		payload, err := json.Marshal(models.BaseEvent{EventID: "e", EventType: eventType})
		require.NoError(t, err)
		assert.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: payload}))
	}
	assert.False(t, called)

	assert.Error(t, eh.HandleMessage(context.Background(), kafka.Message{Value: []byte("{not json")}))
}
