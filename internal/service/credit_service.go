package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/snaptastic/snaptastic/internal/config"
	"github.com/snaptastic/snaptastic/internal/models"
)

// ErrInsufficientCredits is returned when a debit would exceed the balance.
var ErrInsufficientCredits = errors.New("insufficient credits")

// CreditStore is the persistence surface the ledger needs. Implemented by
// repository.CreditRepository.
type CreditStore interface {
	FindBalance(ctx context.Context, userID string) (*models.CreditBalance, error)
	CreateBalance(ctx context.Context, userID string, grant int) (bool, error)
	Debit(ctx context.Context, userID string, amount int) (bool, error)
	Credit(ctx context.Context, userID string, amount int) error
	Refund(ctx context.Context, userID string, amount int) error
	InsertTransaction(ctx context.Context, tx *models.CreditTransaction) error
	History(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error)
}

// CreditService owns the per-user balance and its append-only transaction
// log. Every mutation goes through here.
type CreditService struct {
	store       CreditStore
	log         *slog.Logger
	signupBonus int
}

func NewCreditService(cfg config.Config, log *slog.Logger, store CreditStore) *CreditService {
	return &CreditService{
		store:       store,
		log:         log,
		signupBonus: cfg.SignupBonusCredits,
	}
}

// GetBalance returns the user's current credits, lazily creating the
// balance record with the signup grant on first sight of the user.
func (s *CreditService) GetBalance(ctx context.Context, userID string) (int, error) {
	balance, err := s.store.FindBalance(ctx, userID)
	if err != nil {
		return 0, err
	}
	if balance != nil {
		return balance.Credits, nil
	}

	created, err := s.store.CreateBalance(ctx, userID, s.signupBonus)
	if err != nil {
		return 0, err
	}
	if !created {
		// Lost the creation race; the winner already holds the grant.
		balance, err = s.store.FindBalance(ctx, userID)
		if err != nil {
			return 0, err
		}
		if balance == nil {
			return 0, fmt.Errorf("balance missing after create race for user %s", userID)
		}
		return balance.Credits, nil
	}

	if err := s.store.InsertTransaction(ctx, &models.CreditTransaction{
		UserID:      userID,
		Amount:      s.signupBonus,
		Type:        models.TxSignupBonus,
		Description: fmt.Sprintf("Welcome bonus - %d free credits", s.signupBonus),
	}); err != nil {
		s.log.Error("failed to log signup bonus", "user_id", userID, "err", err)
	}

	return s.signupBonus, nil
}

// HasCredits reports whether the balance covers amount.
func (s *CreditService) HasCredits(ctx context.Context, userID string, amount int) (bool, error) {
	balance, err := s.GetBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// Debit removes credits and appends a negative ledger entry. The balance
// guard executes inside the store's conditional update, so a concurrent
// debit cannot push the balance negative. Returns the post-debit balance.
func (s *CreditService) Debit(ctx context.Context, userID string, amount int, txType models.TransactionType, description string, relatedID *string) (int, error) {
	// Also performs the lazy signup grant for brand-new users.
	if _, err := s.GetBalance(ctx, userID); err != nil {
		return 0, err
	}

	ok, err := s.store.Debit(ctx, userID, amount)
	if err != nil {
		return 0, err
	}
	if !ok {
		balance, berr := s.GetBalance(ctx, userID)
		if berr != nil {
			balance = 0
		}
		return balance, ErrInsufficientCredits
	}

	if err := s.store.InsertTransaction(ctx, &models.CreditTransaction{
		UserID:      userID,
		Amount:      -amount,
		Type:        txType,
		Description: description,
		RelatedID:   relatedID,
	}); err != nil {
		return 0, fmt.Errorf("log debit: %w", err)
	}

	return s.GetBalance(ctx, userID)
}

// Credit adds credits (purchases, bonuses) and appends a positive entry.
func (s *CreditService) Credit(ctx context.Context, userID string, amount int, txType models.TransactionType, description string, relatedID *string) (int, error) {
	if _, err := s.GetBalance(ctx, userID); err != nil {
		return 0, err
	}

	if err := s.store.Credit(ctx, userID, amount); err != nil {
		return 0, err
	}

	if err := s.store.InsertTransaction(ctx, &models.CreditTransaction{
		UserID:      userID,
		Amount:      amount,
		Type:        txType,
		Description: description,
		RelatedID:   relatedID,
	}); err != nil {
		return 0, fmt.Errorf("log credit: %w", err)
	}

	return s.GetBalance(ctx, userID)
}

// Refund compensates a failed paid action. It restores the balance without
// touching the lifetime counters and logs a refund-typed entry.
func (s *CreditService) Refund(ctx context.Context, userID string, amount int, reason string, relatedID *string) (int, error) {
	if err := s.store.Refund(ctx, userID, amount); err != nil {
		return 0, err
	}

	if err := s.store.InsertTransaction(ctx, &models.CreditTransaction{
		UserID:      userID,
		Amount:      amount,
		Type:        models.TxRefund,
		Description: "Refund: " + reason,
		RelatedID:   relatedID,
	}); err != nil {
		s.log.Error("failed to log refund", "user_id", userID, "err", err)
	}

	return s.GetBalance(ctx, userID)
}

// History returns up to limit ledger entries, oldest first.
func (s *CreditService) History(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	return s.store.History(ctx, userID, limit)
}
