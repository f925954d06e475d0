package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Total number of cart mutations",
	}, []string{"op"})

	PurchasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchases_total",
		Help: "Total number of purchase attempts by outcome",
	}, []string{"outcome"})

	PurchaseRevenueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_revenue_total",
		Help: "Sum of amounts charged for fulfilled line items",
	})

	PurchaseLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "purchase_latency_seconds",
		Help:    "Latency of purchase finalization",
		Buckets: prometheus.DefBuckets,
	})

	StockConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_conflicts_total",
		Help: "Line items demoted because a concurrent purchase took the stock first",
	})

	ChatMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Total number of accepted chat messages",
	})

	ChatMessagesRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_rejected_total",
		Help: "Total number of dropped chat payloads",
	}, []string{"reason"})

	ChatConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connections",
		Help: "Currently connected chat clients",
	})

	ReceiptsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "receipts_sent_total",
		Help: "Purchase receipts handed to the mailer",
	}, []string{"status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
