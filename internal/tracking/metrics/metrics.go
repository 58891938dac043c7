package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BlockHeight tracks the debounced chain head per network
	BlockHeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "txtracker_block_height",
			Help: "Latest debounced block height per network",
		},
		[]string{"chain"},
	)

	// PendingTransactions tracks unconfirmed records per network
	PendingTransactions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "txtracker_pending_transactions",
			Help: "Number of transactions awaiting a receipt",
		},
		[]string{"chain"},
	)

	// TransactionsSubmitted counts recorded broadcasts
	TransactionsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txtracker_transactions_submitted_total",
			Help: "Total transactions recorded at broadcast time",
		},
		[]string{"chain", "subject"},
	)

	// TransactionsFinalized counts confirmed transactions
	TransactionsFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txtracker_transactions_finalized_total",
			Help: "Total transactions finalized with a receipt",
		},
		[]string{"chain", "subject"},
	)

	// ReceiptChecks counts receipt queries issued by the reconciler
	ReceiptChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txtracker_receipt_checks_total",
			Help: "Total receipt queries issued",
		},
		[]string{"chain"},
	)

	// ReceiptCheckErrors counts failed receipt queries
	ReceiptCheckErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txtracker_receipt_check_errors_total",
			Help: "Total receipt queries that failed",
		},
		[]string{"chain"},
	)

	// NotificationsPublished counts success notifications emitted
	NotificationsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txtracker_notifications_published_total",
			Help: "Total success notifications emitted",
		},
		[]string{"chain"},
	)
)
