// Package holdings persists users and their positions as delivered by the
// external trade-execution feed. This engine never mutates positions itself;
// it only replaces them wholesale when the feed pushes an update.
package holdings

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openfolio/openfolio/internal/database"
	"github.com/openfolio/openfolio/internal/domain"
)

// Repository handles holdings and user database operations.
type Repository struct {
	portfolioDB *sql.DB // portfolio.db - users, holdings
	log         zerolog.Logger
}

// NewRepository creates a new holdings repository.
func NewRepository(portfolioDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		portfolioDB: portfolioDB,
		log:         log.With().Str("repo", "holdings").Logger(),
	}
}

// UpsertUser inserts or updates a user row.
func (r *Repository) UpsertUser(ctx context.Context, u domain.User) error {
	_, err := r.portfolioDB.ExecContext(ctx, `
		INSERT INTO users (id, display_name, subscriber_count) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			subscriber_count = excluded.subscriber_count`,
		u.ID, u.DisplayName, u.SubscriberCount,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", u.ID, err)
	}
	return nil
}

// GetUser returns one user.
func (r *Repository) GetUser(ctx context.Context, userID string) (domain.User, error) {
	var u domain.User
	err := r.portfolioDB.QueryRowContext(ctx,
		`SELECT id, display_name, subscriber_count FROM users WHERE id = ?`, userID,
	).Scan(&u.ID, &u.DisplayName, &u.SubscriberCount)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	return u, nil
}

// ListUsers returns all users ordered by id, the iteration order of every
// batch job.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.portfolioDB.QueryContext(ctx,
		`SELECT id, display_name, subscriber_count FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.SubscriberCount); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// GetByUser returns the user's current holdings, zero-quantity rows excluded.
func (r *Repository) GetByUser(ctx context.Context, userID string) ([]domain.Holding, error) {
	rows, err := r.portfolioDB.QueryContext(ctx, `
		SELECT user_id, symbol, quantity, cost_basis FROM holdings
		WHERE user_id = ? AND quantity > 0
		ORDER BY symbol`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings for %s: %w", userID, err)
	}
	defer rows.Close()

	var holdings []domain.Holding
	for rows.Next() {
		var h domain.Holding
		if err := rows.Scan(&h.UserID, &h.Symbol, &h.Quantity, &h.CostBasis); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return holdings, nil
}

// ReplaceUserHoldings atomically replaces the user's holdings with the feed's
// current view.
func (r *Repository) ReplaceUserHoldings(ctx context.Context, userID string, holdings []domain.Holding) error {
	return database.WithTransaction(r.portfolioDB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM holdings WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("failed to clear holdings for %s: %w", userID, err)
		}
		for _, h := range holdings {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO holdings (user_id, symbol, quantity, cost_basis, updated_at)
				VALUES (?, ?, ?, ?, datetime('now'))`,
				userID, h.Symbol, h.Quantity, h.CostBasis,
			); err != nil {
				return fmt.Errorf("failed to insert holding %s for %s: %w", h.Symbol, userID, err)
			}
		}
		return nil
	})
}
