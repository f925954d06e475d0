package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/notify"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	sent []notify.Message
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, msg notify.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// fakeConsumer feeds a fixed set of messages and reports handler errors
type fakeConsumer struct {
	messages []kafka.Message
	errs     []error
	closed   bool
}

func (c *fakeConsumer) StartConsuming(ctx context.Context, handler broker.MessageHandler) error {
	for _, msg := range c.messages {
		c.errs = append(c.errs, handler(ctx, msg))
	}
	return nil
}

func (c *fakeConsumer) Close() error {
	c.closed = true
	return nil
}

func purchaseMessage(t *testing.T, purchaser string) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(models.PurchaseCompletedEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-1", EventType: models.EventTypePurchaseCompleted},
		CartID:    "c1",
		Purchaser: purchaser,
		Amount:    decimal.RequireFromString("12.50"),
		Outcome:   models.PurchaseComplete,
	})
	require.NoError(t, err)
	return kafka.Message{Value: payload}
}

func TestReceiptWorker_SendsReceipts(t *testing.T) {
	mailer := &fakeMailer{}
	consumer := &fakeConsumer{messages: []kafka.Message{
		purchaseMessage(t, "ana@example.com"),
		purchaseMessage(t, ""),
	}}
	w := NewReceiptWorker(consumer, mailer)

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())

	assert.True(t, consumer.closed)
	assert.Equal(t, []error{nil, nil}, consumer.errs)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "ana@example.com", mailer.sent[0].To)
}

func TestReceiptWorker_SendFailureIsReported(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp unavailable")}
	consumer := &fakeConsumer{messages: []kafka.Message{purchaseMessage(t, "ana@example.com")}}
	w := NewReceiptWorker(consumer, mailer)

	require.NoError(t, w.Start(context.Background()))
	require.Len(t, consumer.errs, 1)
	assert.Error(t, consumer.errs[0])
}
