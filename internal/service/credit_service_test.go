package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snaptastic/snaptastic/internal/config"
	"github.com/snaptastic/snaptastic/internal/models"
)

// memCreditStore is an in-memory CreditStore with the same guard
// semantics as the SQL implementation.
type memCreditStore struct {
	mu       sync.Mutex
	balances map[string]*models.CreditBalance
	txs      []models.CreditTransaction
}

func newMemCreditStore() *memCreditStore {
	return &memCreditStore{balances: make(map[string]*models.CreditBalance)}
}

func (m *memCreditStore) FindBalance(_ context.Context, userID string) (*models.CreditBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[userID]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *memCreditStore) CreateBalance(_ context.Context, userID string, grant int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[userID]; ok {
		return false, nil
	}
	now := time.Now().UTC()
	m.balances[userID] = &models.CreditBalance{
		ID:                   uuid.NewString(),
		UserID:               userID,
		Credits:              grant,
		LifetimeCreditsAdded: grant,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	return true, nil
}

func (m *memCreditStore) Debit(_ context.Context, userID string, amount int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[userID]
	if !ok || b.Credits < amount {
		return false, nil
	}
	b.Credits -= amount
	b.LifetimeCreditsUsed += amount
	return true, nil
}

func (m *memCreditStore) Credit(_ context.Context, userID string, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.balances[userID]
	b.Credits += amount
	b.LifetimeCreditsAdded += amount
	return nil
}

func (m *memCreditStore) Refund(_ context.Context, userID string, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.balances[userID]
	b.Credits += amount
	return nil
}

func (m *memCreditStore) InsertTransaction(_ context.Context, tx *models.CreditTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	tx.CreatedAt = time.Now().UTC()
	m.txs = append(m.txs, *tx)
	return nil
}

func (m *memCreditStore) History(_ context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CreditTransaction
	for _, tx := range m.txs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func newTestCreditService(store CreditStore) *CreditService {
	cfg := config.Config{SignupBonusCredits: 3}
	return NewCreditService(cfg, slog.Default(), store)
}

func TestGetBalanceGrantsSignupBonus(t *testing.T) {
	store := newMemCreditStore()
	svc := newTestCreditService(store)
	ctx := context.Background()

	balance, err := svc.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, balance)

	history, err := svc.History(ctx, "user-1", 50)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.TxSignupBonus, history[0].Type)
	assert.Equal(t, 3, history[0].Amount)
}

func TestGetBalanceIsIdempotent(t *testing.T) {
	store := newMemCreditStore()
	svc := newTestCreditService(store)
	ctx := context.Background()

	first, err := svc.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	second, err := svc.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	history, err := svc.History(ctx, "user-1", 50)
	require.NoError(t, err)
	assert.Len(t, history, 1, "repeated reads must not duplicate the signup bonus")
}

func TestDebitInsufficientCredits(t *testing.T) {
	store := newMemCreditStore()
	svc := newTestCreditService(store)
	ctx := context.Background()

	// Drain the signup grant first.
	_, err := svc.Debit(ctx, "user-1", 3, models.TxRestorePhoto, "drain", nil)
	require.NoError(t, err)

	before := len(store.txs)
	balance, err := svc.Debit(ctx, "user-1", 1, models.TxRestorePhoto, "restore", nil)
	assert.ErrorIs(t, err, ErrInsufficientCredits)
	assert.Equal(t, 0, balance)
	assert.Len(t, store.txs, before, "failed debit must not append a ledger entry")
}

func TestDebitThenRefundRestoresBalance(t *testing.T) {
	store := newMemCreditStore()
	svc := newTestCreditService(store)
	ctx := context.Background()

	before, err := svc.GetBalance(ctx, "user-1")
	require.NoError(t, err)

	photoID := "photo-1"
	afterDebit, err := svc.Debit(ctx, "user-1", 1, models.TxRestorePhoto, "Photo restoration", &photoID)
	require.NoError(t, err)
	assert.Equal(t, before-1, afterDebit)

	afterRefund, err := svc.Refund(ctx, "user-1", 1, "restoration failed", &photoID)
	require.NoError(t, err)
	assert.Equal(t, before, afterRefund)

	history, err := svc.History(ctx, "user-1", 50)
	require.NoError(t, err)
	require.Len(t, history, 3) // signup bonus, debit, refund

	debit, refund := history[1], history[2]
	assert.Equal(t, -1, debit.Amount)
	assert.Equal(t, models.TxRestorePhoto, debit.Type)
	assert.Equal(t, 1, refund.Amount)
	assert.Equal(t, models.TxRefund, refund.Type)
	assert.Zero(t, debit.Amount+refund.Amount)
}

func TestCreditRaisesBalanceAndLifetimeAdded(t *testing.T) {
	store := newMemCreditStore()
	svc := newTestCreditService(store)
	ctx := context.Background()

	subID := "sub-1"
	balance, err := svc.Credit(ctx, "user-1", 50, models.TxSubscriptionPurchase, "Subscription purchase", &subID)
	require.NoError(t, err)
	assert.Equal(t, 53, balance)

	stored, err := store.FindBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 53, stored.LifetimeCreditsAdded)
}

func TestHasCredits(t *testing.T) {
	store := newMemCreditStore()
	svc := newTestCreditService(store)
	ctx := context.Background()

	ok, err := svc.HasCredits(ctx, "user-1", 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasCredits(ctx, "user-1", 4)
	require.NoError(t, err)
	assert.False(t, ok)
}
