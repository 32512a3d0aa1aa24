package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/luckygrid/platform/internal/domain"
	"github.com/luckygrid/platform/internal/guard"
	"github.com/luckygrid/platform/internal/provider"
)

const paystackProvider = "paystack"

// PaymentStore records settled payments and credits their tokens in one
// transaction.
type PaymentStore interface {
	RecordPayment(ctx context.Context, p *domain.Payment) (*domain.CommandResult, error)
}

// PaymentService turns verified provider webhooks into token credits.
type PaymentService struct {
	store    PaymentStore
	paystack *provider.PaystackProvider
	dedup    *guard.IdempotencyGuard
	logger   *slog.Logger
}

// NewPaymentService creates a PaymentService.
func NewPaymentService(store PaymentStore, paystack *provider.PaystackProvider, dedup *guard.IdempotencyGuard, logger *slog.Logger) *PaymentService {
	return &PaymentService{store: store, paystack: paystack, dedup: dedup, logger: logger}
}

// HandlePaystackWebhook verifies and applies a Paystack event. Events other
// than charge.success are acknowledged and ignored. Redelivered references
// credit at most once.
func (s *PaymentService) HandlePaystackWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.paystack.VerifyWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, provider.ErrInvalidSignature) {
			return domain.ErrUnauthorized("invalid webhook signature")
		}
		return domain.ErrValidation(err.Error())
	}

	if event.Event != provider.PaystackEventChargeSuccess {
		s.logger.Info("unhandled paystack event type", "type", event.Event)
		return nil
	}

	charge, err := provider.ParseChargeSuccess(event)
	if err != nil {
		s.logger.Warn("rejected paystack charge", "error", err)
		return err
	}

	key := paystackProvider + ":" + charge.Reference
	if res := s.dedup.Check(ctx, key); !res.Allowed {
		s.logger.Info("duplicate paystack delivery ignored", "reference", charge.Reference)
		return nil
	}

	result, err := s.store.RecordPayment(ctx, &domain.Payment{
		ProfileID:   charge.ProfileID,
		Provider:    paystackProvider,
		Reference:   charge.Reference,
		AmountMinor: charge.AmountMinor,
		Currency:    charge.Currency,
		Tokens:      charge.Tokens,
		Status:      domain.PaymentStatusCompleted,
		Metadata:    charge.Raw,
	})
	if err != nil {
		s.dedup.Remove(key)
		return domain.StoreError("record payment", err)
	}

	if result.Idempotent {
		s.logger.Info("paystack charge already credited", "reference", charge.Reference)
		return nil
	}
	s.logger.Info("tokens purchased",
		"reference", charge.Reference,
		"user_id", charge.ProfileID,
		"tokens", charge.Tokens,
		"balance", result.Profile.TokenBalance,
	)
	return nil
}
