package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/snaptastic/snaptastic/internal/models"
)

type CreditRepository struct {
	db *sql.DB
}

func NewCreditRepository(db *sql.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

func (r *CreditRepository) FindBalance(ctx context.Context, userID string) (*models.CreditBalance, error) {
	const query = `
SELECT id, user_id, credits, lifetime_credits_used, lifetime_credits_added, created_at, updated_at
FROM user_credits WHERE user_id = ?`
	row := r.db.QueryRowContext(ctx, query, userID)
	var b models.CreditBalance
	if err := row.Scan(&b.ID, &b.UserID, &b.Credits, &b.LifetimeCreditsUsed, &b.LifetimeCreditsAdded, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan balance: %w", err)
	}
	return &b, nil
}

// CreateBalance inserts the initial balance record with the signup grant.
// Returns false when another request created the row first; the duplicate
// key conflict is swallowed so concurrent first reads stay harmless.
func (r *CreditRepository) CreateBalance(ctx context.Context, userID string, grant int) (bool, error) {
	const query = `
INSERT INTO user_credits (id, user_id, credits, lifetime_credits_used, lifetime_credits_added)
VALUES (?, ?, ?, 0, ?)`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), userID, grant, grant); err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return false, nil
		}
		return false, fmt.Errorf("insert balance: %w", err)
	}
	return true, nil
}

// Debit decrements the balance only when it covers the amount. The guard
// lives in the UPDATE predicate so two concurrent debits cannot drive the
// balance negative.
func (r *CreditRepository) Debit(ctx context.Context, userID string, amount int) (bool, error) {
	const query = `
UPDATE user_credits
SET credits = credits - ?, lifetime_credits_used = lifetime_credits_used + ?, updated_at = NOW()
WHERE user_id = ? AND credits >= ?`
	res, err := r.db.ExecContext(ctx, query, amount, amount, userID, amount)
	if err != nil {
		return false, fmt.Errorf("debit credits: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("debit rows affected: %w", err)
	}
	return affected > 0, nil
}

// Credit increments the balance and the lifetime-added counter.
func (r *CreditRepository) Credit(ctx context.Context, userID string, amount int) error {
	const query = `
UPDATE user_credits
SET credits = credits + ?, lifetime_credits_added = lifetime_credits_added + ?, updated_at = NOW()
WHERE user_id = ?`
	if _, err := r.db.ExecContext(ctx, query, amount, amount, userID); err != nil {
		return fmt.Errorf("add credits: %w", err)
	}
	return nil
}

// Refund returns credits without touching the lifetime counters.
func (r *CreditRepository) Refund(ctx context.Context, userID string, amount int) error {
	const query = `
UPDATE user_credits SET credits = credits + ?, updated_at = NOW() WHERE user_id = ?`
	if _, err := r.db.ExecContext(ctx, query, amount, userID); err != nil {
		return fmt.Errorf("refund credits: %w", err)
	}
	return nil
}

func (r *CreditRepository) InsertTransaction(ctx context.Context, tx *models.CreditTransaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	const query = `
INSERT INTO credit_transactions (id, user_id, amount, type, description, related_id)
VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, tx.ID, tx.UserID, tx.Amount, tx.Type, tx.Description, tx.RelatedID); err != nil {
		return fmt.Errorf("insert credit transaction: %w", err)
	}
	return nil
}

func (r *CreditRepository) History(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	const query = `
SELECT id, user_id, amount, type, description, related_id, created_at
FROM credit_transactions WHERE user_id = ?
ORDER BY created_at ASC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list credit transactions: %w", err)
	}
	defer rows.Close()

	var history []models.CreditTransaction
	for rows.Next() {
		var tx models.CreditTransaction
		var relatedID sql.NullString
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &tx.Type, &tx.Description, &relatedID, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credit transaction: %w", err)
		}
		if relatedID.Valid {
			tx.RelatedID = &relatedID.String
		}
		history = append(history, tx)
	}
	return history, rows.Err()
}
