package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/snaptastic/snaptastic/internal/config"
	"github.com/snaptastic/snaptastic/internal/freepik"
	"github.com/snaptastic/snaptastic/internal/models"
)

// actionCost is the flat price of a paid action, regardless of payload.
const actionCost = 1

// TaskClient is the asynchronous provider surface the orchestrator needs.
// Implemented by freepik.Client.
type TaskClient interface {
	SubmitRestore(ctx context.Context, imageURL string) (*freepik.Task, error)
	SubmitUpscale(ctx context.Context, imageURL string) (*freepik.Task, error)
	WaitForCompletion(ctx context.Context, task *freepik.Task, maxAttempts int, interval time.Duration) ([]string, error)
}

// EnhanceService orchestrates the paid photo actions: check balance,
// debit, run the remote task, persist the result, refund on failure.
type EnhanceService struct {
	cfg     config.Config
	log     *slog.Logger
	credits *CreditService
	photos  PhotoStore
	tasks   TaskClient
}

// EnhanceResult is returned from a successful paid action.
type EnhanceResult struct {
	ResultURL        string
	TaskID           string
	CreditsRemaining int
}

func NewEnhanceService(cfg config.Config, log *slog.Logger, credits *CreditService, photos PhotoStore, tasks TaskClient) *EnhanceService {
	return &EnhanceService{
		cfg:     cfg,
		log:     log,
		credits: credits,
		photos:  photos,
		tasks:   tasks,
	}
}

// Restore runs a photo restoration for the user's image. Costs one credit,
// refunded if the provider call fails.
func (s *EnhanceService) Restore(ctx context.Context, userID, imageURL string, photoID *string) (*EnhanceResult, error) {
	return s.run(ctx, userID, imageURL, photoID, paidAction{
		txType:       models.TxRestorePhoto,
		description:  "Photo restoration with Gemini 2.5 Flash",
		refundReason: "Photo restoration failed - credit refunded",
		submit:       s.tasks.SubmitRestore,
		pollAttempts: s.cfg.RestorePollAttempts,
		persist: func(ctx context.Context, photoID, resultURL string) error {
			return s.photos.MarkRestored(ctx, photoID, resultURL)
		},
	})
}

// Export runs a 2x upscale of the image for high-quality export.
func (s *EnhanceService) Export(ctx context.Context, userID, imageURL string, photoID *string) (*EnhanceResult, error) {
	return s.run(ctx, userID, imageURL, photoID, paidAction{
		txType:       models.TxExportPhoto,
		description:  "2x upscaling with Magnific Precision V2",
		refundReason: "4K export failed - credit refunded",
		submit:       s.tasks.SubmitUpscale,
		pollAttempts: s.cfg.ExportPollAttempts,
		persist: func(ctx context.Context, photoID, resultURL string) error {
			return s.photos.MarkExported(ctx, photoID)
		},
	})
}

type paidAction struct {
	txType       models.TransactionType
	description  string
	refundReason string
	submit       func(ctx context.Context, imageURL string) (*freepik.Task, error)
	pollAttempts int
	persist      func(ctx context.Context, photoID, resultURL string) error
}

func (s *EnhanceService) run(ctx context.Context, userID, imageURL string, photoID *string, action paidAction) (*EnhanceResult, error) {
	// Debit happens before the provider call so failed debits never get
	// free usage; a failed provider call is compensated with a refund.
	newBalance, err := s.credits.Debit(ctx, userID, actionCost, action.txType, action.description, photoID)
	if err != nil {
		return nil, err
	}

	task, err := action.submit(ctx, imageURL)
	if err != nil {
		s.refund(ctx, userID, action.refundReason, photoID)
		return nil, err
	}

	urls, err := s.tasks.WaitForCompletion(ctx, task, action.pollAttempts, s.cfg.PollInterval)
	if err != nil {
		s.refund(ctx, userID, action.refundReason, photoID)
		return nil, err
	}
	if len(urls) == 0 {
		s.refund(ctx, userID, action.refundReason, photoID)
		return nil, fmt.Errorf("no result images generated for task %s", task.ID)
	}

	// Persisting the result is best-effort: the credit is spent on the
	// provider work, which has already succeeded.
	if photoID != nil && *photoID != "" {
		if err := action.persist(ctx, *photoID, urls[0]); err != nil {
			s.log.Error("failed to persist result", "photo_id", *photoID, "err", err)
		}
	}

	return &EnhanceResult{
		ResultURL:        urls[0],
		TaskID:           task.ID,
		CreditsRemaining: newBalance,
	}, nil
}

// refund is the compensation path; its own failure is only logged, never
// retried.
func (s *EnhanceService) refund(ctx context.Context, userID, reason string, photoID *string) {
	if _, err := s.credits.Refund(ctx, userID, actionCost, reason, photoID); err != nil {
		s.log.Error("refund failed", "user_id", userID, "reason", reason, "err", err)
	}
}
