package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// CompletedChannel is the NOTIFY channel fired when a transaction becomes completed.
// The payload is the user id.
const CompletedChannel = "transaction_completed"

type migration struct {
	name string
	sql  string
}

// migrations are applied in order, each in its own transaction, and recorded
// in schema_migrations so reruns are no-ops.
var migrations = []migration{
	{
		name: "001_users",
		sql: `
			CREATE TABLE IF NOT EXISTS users (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				username VARCHAR(255) NOT NULL UNIQUE,
				region VARCHAR(64),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_users_region ON users(region);
		`,
	},
	{
		name: "002_transactions",
		sql: `
			CREATE TABLE IF NOT EXISTS transactions (
				id BIGSERIAL PRIMARY KEY,
				user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				amount NUMERIC(12, 2) NOT NULL,
				flex_points BIGINT NOT NULL CHECK (flex_points >= 0),
				status VARCHAR(20) NOT NULL DEFAULT 'pending'
					CHECK (status IN ('pending', 'completed', 'failed')),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_transactions_status_time ON transactions(status, created_at);
			CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id);
		`,
	},
	{
		name: "003_transaction_status_guard",
		sql: `
			CREATE OR REPLACE FUNCTION guard_transaction_status() RETURNS trigger AS $$
			BEGIN
				IF OLD.status <> 'pending' AND NEW.status IS DISTINCT FROM OLD.status THEN
					RAISE EXCEPTION 'transaction % status cannot change from % to %', OLD.id, OLD.status, NEW.status;
				END IF;
				RETURN NEW;
			END;
			$$ LANGUAGE plpgsql;

			DROP TRIGGER IF EXISTS trg_transaction_status_guard ON transactions;
			CREATE TRIGGER trg_transaction_status_guard
				BEFORE UPDATE OF status ON transactions
				FOR EACH ROW EXECUTE FUNCTION guard_transaction_status();

			CREATE OR REPLACE FUNCTION notify_transaction_completed() RETURNS trigger AS $$
			BEGIN
				IF NEW.status = 'completed' AND (TG_OP = 'INSERT' OR OLD.status <> 'completed') THEN
					PERFORM pg_notify('` + CompletedChannel + `', NEW.user_id::text);
				END IF;
				RETURN NEW;
			END;
			$$ LANGUAGE plpgsql;

			DROP TRIGGER IF EXISTS trg_transaction_completed ON transactions;
			CREATE TRIGGER trg_transaction_completed
				AFTER INSERT OR UPDATE OF status ON transactions
				FOR EACH ROW EXECUTE FUNCTION notify_transaction_completed();
		`,
	},
	{
		name: "004_leaderboard_history",
		sql: `
			CREATE TABLE IF NOT EXISTS leaderboard_history (
				id BIGSERIAL PRIMARY KEY,
				user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				leaderboard_type VARCHAR(20) NOT NULL,
				region VARCHAR(64),
				rank BIGINT NOT NULL CHECK (rank >= 1),
				total_flex_points BIGINT NOT NULL,
				total_spent NUMERIC(14, 2) NOT NULL,
				rank_change BIGINT,
				recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_leaderboard_history_lookup
				ON leaderboard_history(user_id, leaderboard_type, region, recorded_at DESC, id DESC);
		`,
	},
	{
		name: "005_leaderboard_archive",
		sql: `
			CREATE TABLE IF NOT EXISTS leaderboard_snapshots (
				id BIGSERIAL PRIMARY KEY,
				leaderboard_type VARCHAR(20) NOT NULL,
				region VARCHAR(64),
				snapshot_data JSONB NOT NULL,
				period_start TIMESTAMPTZ,
				period_end TIMESTAMPTZ,
				taken_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_leaderboard_snapshots_scope
				ON leaderboard_snapshots(leaderboard_type, region, taken_at DESC);

			CREATE TABLE IF NOT EXISTS leaderboard_resets (
				id BIGSERIAL PRIMARY KEY,
				leaderboard_type VARCHAR(20) NOT NULL,
				region VARCHAR(64),
				period_start TIMESTAMPTZ NOT NULL,
				period_end TIMESTAMPTZ NOT NULL,
				top_user_id UUID,
				top_user_points BIGINT NOT NULL DEFAULT 0,
				total_participants BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_leaderboard_resets_period
				ON leaderboard_resets(leaderboard_type, COALESCE(region, ''), period_start);
		`,
	},
}

// Migrate applies pending schema migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name VARCHAR(255) PRIMARY KEY,
			executed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var applied bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE name = $1)`, m.name,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration %s: %w", m.name, err)
		}
		if applied {
			log.Debug().Str("migration", m.name).Msg("Migration already applied")
			continue
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.sql); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, m.name)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.name, err)
		}
		log.Info().Str("migration", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
