package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"flexboard/internal/model"
)

// TransactionRepository writes and reads ledger rows.
// The payment flow owns these writes; the ranking core only reads.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository instance.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

const transactionColumns = `id, user_id::text, amount, flex_points, status, created_at, updated_at`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var tx model.Transaction
	var status string
	err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Amount,
		&tx.FlexPoints,
		&status,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.Status = model.TransactionStatus(status)
	return &tx, nil
}

// Create records a pending purchase.
func (r *TransactionRepository) Create(ctx context.Context, userID string, amount decimal.Decimal, flexPoints int64) (*model.Transaction, error) {
	return r.CreateWithTime(ctx, userID, amount, flexPoints, model.StatusPending, time.Now())
}

// CreateWithTime records a transaction with a specific status and timestamp.
// Useful for testing and data migration.
func (r *TransactionRepository) CreateWithTime(ctx context.Context, userID string, amount decimal.Decimal, flexPoints int64, status model.TransactionStatus, createdAt time.Time) (*model.Transaction, error) {
	query := `
		INSERT INTO transactions (user_id, amount, flex_points, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING ` + transactionColumns

	tx, err := scanTransaction(r.pool.QueryRow(ctx, query, userID, amount, flexPoints, string(status), createdAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	return tx, nil
}

// Complete moves a pending transaction to completed.
// Returns ErrTransactionNotPending if it already left the pending state.
func (r *TransactionRepository) Complete(ctx context.Context, id int64) (*model.Transaction, error) {
	return r.transition(ctx, id, model.StatusCompleted)
}

// Fail moves a pending transaction to failed.
func (r *TransactionRepository) Fail(ctx context.Context, id int64) (*model.Transaction, error) {
	return r.transition(ctx, id, model.StatusFailed)
}

func (r *TransactionRepository) transition(ctx context.Context, id int64, to model.TransactionStatus) (*model.Transaction, error) {
	query := `
		UPDATE transactions
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + transactionColumns

	tx, err := scanTransaction(r.pool.QueryRow(ctx, query, id, string(to)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotPending
		}
		return nil, fmt.Errorf("failed to mark transaction %s: %w", to, err)
	}

	return tx, nil
}

// GetByUserID retrieves a user's transactions, newest first.
func (r *TransactionRepository) GetByUserID(ctx context.Context, userID string, limit int) ([]*model.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*model.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}
