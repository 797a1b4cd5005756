package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/snaptastic/snaptastic/internal/config"
	"github.com/snaptastic/snaptastic/internal/models"
)

// SubscriptionStore is implemented by repository.SubscriptionRepository.
type SubscriptionStore interface {
	Upsert(ctx context.Context, sub *models.Subscription) error
	FindByID(ctx context.Context, id string) (*models.Subscription, error)
}

// SubscriptionService syncs Polar subscription webhooks into the local
// subscription table and grants purchase credits when a subscription
// becomes active.
type SubscriptionService struct {
	cfg           config.Config
	log           *slog.Logger
	subscriptions SubscriptionStore
	credits       *CreditService
}

func NewSubscriptionService(cfg config.Config, log *slog.Logger, subscriptions SubscriptionStore, credits *CreditService) *SubscriptionService {
	return &SubscriptionService{
		cfg:           cfg,
		log:           log,
		subscriptions: subscriptions,
		credits:       credits,
	}
}

type polarEvent struct {
	Type string `json:"type"`
	Data struct {
		ID                 string     `json:"id"`
		Status             string     `json:"status"`
		Amount             int        `json:"amount"`
		Currency           string     `json:"currency"`
		RecurringInterval  string     `json:"recurring_interval"`
		CurrentPeriodStart time.Time  `json:"current_period_start"`
		CurrentPeriodEnd   time.Time  `json:"current_period_end"`
		CanceledAt         *time.Time `json:"canceled_at"`
		CustomerID         string     `json:"customer_id"`
		ProductID          string     `json:"product_id"`
		Metadata           struct {
			UserID string `json:"userId"`
		} `json:"metadata"`
	} `json:"data"`
}

// HandleWebhook records the subscription snapshot and, on the first
// transition to active, credits the purchase. Re-delivered events for an
// already-active subscription do not credit twice.
func (s *SubscriptionService) HandleWebhook(ctx context.Context, body []byte) error {
	var event polarEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("parse webhook payload: %w", err)
	}
	if !strings.HasPrefix(event.Type, "subscription.") {
		s.log.Info("ignoring webhook event", "type", event.Type)
		return nil
	}
	if event.Data.ID == "" {
		return fmt.Errorf("webhook event missing subscription id")
	}

	existing, err := s.subscriptions.FindByID(ctx, event.Data.ID)
	if err != nil {
		return err
	}
	alreadyActive := existing != nil && existing.Status == "active"

	sub := &models.Subscription{
		ID:                 event.Data.ID,
		Status:             event.Data.Status,
		Amount:             event.Data.Amount,
		Currency:           event.Data.Currency,
		RecurringInterval:  event.Data.RecurringInterval,
		CurrentPeriodStart: event.Data.CurrentPeriodStart,
		CurrentPeriodEnd:   event.Data.CurrentPeriodEnd,
		CanceledAt:         event.Data.CanceledAt,
		CustomerID:         event.Data.CustomerID,
		ProductID:          event.Data.ProductID,
	}
	if event.Data.Metadata.UserID != "" {
		userID := event.Data.Metadata.UserID
		sub.UserID = &userID
	}

	if err := s.subscriptions.Upsert(ctx, sub); err != nil {
		return err
	}

	if sub.Status == "active" && !alreadyActive && sub.UserID != nil {
		relatedID := sub.ID
		if _, err := s.credits.Credit(ctx, *sub.UserID, s.cfg.SubscriptionCredits,
			models.TxSubscriptionPurchase,
			fmt.Sprintf("Subscription purchase - %d credits", s.cfg.SubscriptionCredits),
			&relatedID,
		); err != nil {
			return fmt.Errorf("credit subscription purchase: %w", err)
		}
		s.log.Info("subscription credits granted", "user_id", *sub.UserID, "subscription_id", sub.ID, "credits", s.cfg.SubscriptionCredits)
	}

	return nil
}
