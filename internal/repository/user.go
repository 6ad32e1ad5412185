// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flexboard/internal/model"
)

// Common errors for repository operations.
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrTransactionNotPending = errors.New("transaction is not pending")
	ErrResetExists           = errors.New("period already reset")
)

// UserRepository reads participants. Users are owned by the auth subsystem;
// Create exists for seeding and tests.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create creates a new user with an optional region.
func (r *UserRepository) Create(ctx context.Context, username string, region *string) (*model.User, error) {
	const query = `
		INSERT INTO users (username, region, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id::text, username, region, created_at
	`

	var user model.User
	err := r.pool.QueryRow(ctx, query, username, region).Scan(
		&user.ID,
		&user.Username,
		&user.Region,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

// GetByID retrieves a user by id.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	const query = `
		SELECT id::text, username, region, created_at
		FROM users
		WHERE id = $1
	`

	var user model.User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.Region,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}
