package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/snaptastic/snaptastic/internal/models"
)

type SubscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Upsert stores the provider's view of the subscription, replacing any
// previous snapshot of the same subscription id.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *models.Subscription) error {
	const query = `
INSERT INTO subscriptions (id, user_id, status, amount, currency, recurring_interval, current_period_start, current_period_end, canceled_at, customer_id, product_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    user_id = VALUES(user_id),
    status = VALUES(status),
    amount = VALUES(amount),
    currency = VALUES(currency),
    recurring_interval = VALUES(recurring_interval),
    current_period_start = VALUES(current_period_start),
    current_period_end = VALUES(current_period_end),
    canceled_at = VALUES(canceled_at),
    customer_id = VALUES(customer_id),
    product_id = VALUES(product_id),
    updated_at = NOW()`
	_, err := r.db.ExecContext(ctx, query,
		sub.ID, sub.UserID, sub.Status, sub.Amount, sub.Currency, sub.RecurringInterval,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CanceledAt, sub.CustomerID, sub.ProductID)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) FindByID(ctx context.Context, id string) (*models.Subscription, error) {
	const query = `
SELECT id, user_id, status, amount, currency, recurring_interval, current_period_start, current_period_end, canceled_at, customer_id, product_id, created_at, updated_at
FROM subscriptions WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	var s models.Subscription
	var userID sql.NullString
	var canceledAt sql.NullTime
	if err := row.Scan(&s.ID, &userID, &s.Status, &s.Amount, &s.Currency, &s.RecurringInterval, &s.CurrentPeriodStart, &s.CurrentPeriodEnd, &canceledAt, &s.CustomerID, &s.ProductID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	if userID.Valid {
		s.UserID = &userID.String
	}
	if canceledAt.Valid {
		s.CanceledAt = &canceledAt.Time
	}
	return &s, nil
}
