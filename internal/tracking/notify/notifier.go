// Package notify surfaces confirmation messages to the user.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/propulsorfi/txtracker/internal/core/domain"
	redisclient "github.com/propulsorfi/txtracker/internal/infra/redis"
	"github.com/propulsorfi/txtracker/internal/tracking/metrics"
)

// Notifier is the sink the reconciler calls once per finalized hash.
type Notifier interface {
	Success(ctx context.Context, chainID domain.ChainID, hash string, subject domain.TxSubject)
}

// Event is the JSON payload published for each confirmation.
type Event struct {
	ID          string           `json:"id"`
	ChainID     domain.ChainID   `json:"chain_id"`
	Hash        string           `json:"hash"`
	Subject     domain.TxSubject `json:"subject"`
	Message     string           `json:"message"`
	ExplorerURL string           `json:"explorer_url"`
	ConfirmedAt time.Time        `json:"confirmed_at"`
}

// RedisNotifier publishes confirmation events to a Redis channel for the
// UI to consume.
type RedisNotifier struct {
	client  *redisclient.Client
	channel string
	log     *slog.Logger
}

// NewRedisNotifier creates a notifier publishing to the given channel.
func NewRedisNotifier(client *redisclient.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = "txtracker:confirmations"
	}
	return &RedisNotifier{client: client, channel: channel, log: slog.Default()}
}

func (n *RedisNotifier) Success(ctx context.Context, chainID domain.ChainID, hash string, subject domain.TxSubject) {
	event := Event{
		ID:          uuid.NewString(),
		ChainID:     chainID,
		Hash:        hash,
		Subject:     subject,
		Message:     domain.SuccessMessage(chainID, hash, subject),
		ExplorerURL: domain.ExplorerTxURL(chainID, hash),
		ConfirmedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		n.log.Error("Failed to encode notification", "hash", hash, "error", err)
		return
	}
	if err := n.client.Publish(ctx, n.channel, payload); err != nil {
		// The confirmation itself is already durable in the store; a lost
		// notification is logged and not retried.
		n.log.Warn("Failed to publish notification", "hash", hash, "error", err)
		return
	}
	metrics.NotificationsPublished.WithLabelValues(chainID.Name()).Inc()
}

// LogNotifier writes confirmations to the log. Used when Redis is not
// configured.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: slog.Default()}
}

func (n *LogNotifier) Success(ctx context.Context, chainID domain.ChainID, hash string, subject domain.TxSubject) {
	n.log.Info("Transaction confirmed",
		"chain", chainID.Name(),
		"hash", hash,
		"message", domain.SuccessMessage(chainID, hash, subject),
		"link", domain.ExplorerTxURL(chainID, hash),
	)
	metrics.NotificationsPublished.WithLabelValues(chainID.Name()).Inc()
}
