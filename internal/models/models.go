package models

import "time"

// TransactionType enumerates the credit ledger entry types.
type TransactionType string

const (
	TxSignupBonus          TransactionType = "signup_bonus"
	TxSubscriptionPurchase TransactionType = "subscription_purchase"
	TxRestorePhoto         TransactionType = "restore_photo"
	TxExportPhoto          TransactionType = "export_photo"
	TxRefund               TransactionType = "refund"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Session struct {
	Token     string    `json:"-"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreditBalance is the per-user balance projection of the ledger.
type CreditBalance struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"userId"`
	Credits              int       `json:"credits"`
	LifetimeCreditsUsed  int       `json:"lifetimeCreditsUsed"`
	LifetimeCreditsAdded int       `json:"lifetimeCreditsAdded"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// CreditTransaction is an immutable ledger entry. Amount is negative for
// debits and positive for credits.
type CreditTransaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Amount      int             `json:"amount"`
	Type        TransactionType `json:"type"`
	Description string          `json:"description"`
	RelatedID   *string         `json:"relatedId"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type Photo struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Size        int64     `json:"size"`
	Restored    bool      `json:"restored"`
	RestoredURL *string   `json:"restoredUrl"`
	Exported    bool      `json:"exported"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Subscription mirrors the payment provider's subscription object as
// delivered by webhook.
type Subscription struct {
	ID                 string     `json:"id"`
	UserID             *string    `json:"userId"`
	Status             string     `json:"status"`
	Amount             int        `json:"amount"`
	Currency           string     `json:"currency"`
	RecurringInterval  string     `json:"recurringInterval"`
	CurrentPeriodStart time.Time  `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time  `json:"currentPeriodEnd"`
	CanceledAt         *time.Time `json:"canceledAt"`
	CustomerID         string     `json:"customerId"`
	ProductID          string     `json:"productId"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}
