package worker

import (
	"context"
	"fmt"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/notify"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// Consumer is the event source a worker drains
type Consumer interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// ReceiptWorker mails a receipt for every completed purchase
type ReceiptWorker struct {
	consumer     Consumer
	eventHandler *broker.EventHandler
	mailer       notify.Mailer
	logger       *zap.Logger
}

// NewReceiptWorker creates a new receipt worker
func NewReceiptWorker(consumer Consumer, mailer notify.Mailer) *ReceiptWorker {
	w := &ReceiptWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		mailer:       mailer,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnPurchaseCompleted(w.HandlePurchaseCompleted)
	return w
}

// Start starts the worker
func (w *ReceiptWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting receipt worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ReceiptWorker) Stop() error {
	w.logger.Info("Stopping receipt worker")
	return w.consumer.Close()
}

// HandlePurchaseCompleted sends the receipt. A send failure is returned so
// the message is left uncommitted.
func (w *ReceiptWorker) HandlePurchaseCompleted(ctx context.Context, event *models.PurchaseCompletedEvent) error {
	if event.Purchaser == "" {
		w.logger.Warn("Purchase without purchaser, skipping receipt", zap.String("cart_id", event.CartID))
		util.ReceiptsSentTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	msg, err := notify.BuildReceipt(event)
	if err != nil {
		util.ReceiptsSentTotal.WithLabelValues("failed").Inc()
		return err
	}

	if err := w.mailer.Send(ctx, msg); err != nil {
		util.ReceiptsSentTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to send receipt for cart %s: %w", event.CartID, err)
	}

	util.ReceiptsSentTotal.WithLabelValues("sent").Inc()
	w.logger.Info("Receipt sent",
		zap.String("cart_id", event.CartID),
		zap.String("event_id", event.EventID))
	return nil
}
