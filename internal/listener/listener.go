// Package listener consumes completed-transaction notifications emitted by the
// database and hands the affected user to the live update pipeline.
package listener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"flexboard/internal/metrics"
)

const (
	defaultRetryDelay = 5 * time.Second
	handleTimeout     = 30 * time.Second
)

// CompletionHandler processes a user whose transaction just completed.
type CompletionHandler interface {
	OnTransactionCompleted(ctx context.Context, userID string) error
}

// Listener holds one pooled connection in LISTEN mode and reconnects after
// connection loss.
type Listener struct {
	pool       *pgxpool.Pool
	channel    string
	handler    CompletionHandler
	metrics    *metrics.Metrics
	retryDelay time.Duration
}

// New creates a Listener on channel.
func New(pool *pgxpool.Pool, channel string, handler CompletionHandler, m *metrics.Metrics) *Listener {
	return &Listener{
		pool:       pool,
		channel:    channel,
		handler:    handler,
		metrics:    m,
		retryDelay: defaultRetryDelay,
	}
}

// Run blocks until ctx ends, re-establishing the subscription whenever the
// connection drops. Notifications sent while disconnected are lost; the
// periodic snapshots cover that gap.
func (l *Listener) Run(ctx context.Context) error {
	log.Info().Str("channel", l.channel).Msg("Completion listener started")

	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			log.Info().Str("channel", l.channel).Msg("Completion listener stopped")
			return nil
		}
		log.Warn().Err(err).Dur("retry_in", l.retryDelay).Msg("Completion listener disconnected")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() {
		// Never hand a listening connection back to the pool.
		_, _ = conn.Exec(context.Background(), "UNLISTEN *")
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.channel, err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.dispatch(ctx, n.Payload)
	}
}

// dispatch runs the handler for one notification. Failures are logged and
// counted; they never end the subscription.
func (l *Listener) dispatch(ctx context.Context, userID string) {
	if userID == "" {
		return
	}

	hctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	if err := l.handler.OnTransactionCompleted(hctx, userID); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		l.metrics.CompletionProcessed("error")
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to process completed transaction")
		return
	}
	l.metrics.CompletionProcessed("ok")
}
