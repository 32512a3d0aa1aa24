package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/luckygrid/platform/internal/domain"
	"github.com/luckygrid/platform/internal/infra"
)

// AdminStore is the persistence behind the admin console.
type AdminStore interface {
	Stats(ctx context.Context) (*domain.AdminStats, error)
	ListProfiles(ctx context.Context, limit, offset int) ([]domain.Profile, error)
	ListPayments(ctx context.Context, limit, offset int) ([]domain.PaymentView, error)
	CreditTokens(ctx context.Context, params domain.CreditParams) (*domain.CommandResult, error)
}

// AdminService serves the admin reports and manual token grants.
type AdminService struct {
	store  AdminStore
	retry  infra.RetryPolicy
	logger *slog.Logger
}

// NewAdminService creates an AdminService.
func NewAdminService(store AdminStore, retry infra.RetryPolicy, logger *slog.Logger) *AdminService {
	return &AdminService{store: store, retry: retry, logger: logger}
}

// Stats returns platform totals.
func (s *AdminService) Stats(ctx context.Context) (*domain.AdminStats, error) {
	stats, err := infra.Retry(ctx, s.retry, s.store.Stats)
	if err != nil {
		return nil, domain.StoreError("load stats", err)
	}
	return stats, nil
}

// Users lists profiles, newest first.
func (s *AdminService) Users(ctx context.Context, limit, offset int) ([]domain.UserSummary, error) {
	profiles, err := infra.Retry(ctx, s.retry, func(ctx context.Context) ([]domain.Profile, error) {
		return s.store.ListProfiles(ctx, limit, offset)
	})
	if err != nil {
		return nil, domain.StoreError("list profiles", err)
	}
	out := make([]domain.UserSummary, len(profiles))
	for i, p := range profiles {
		out[i] = domain.NewUserSummary(p)
	}
	return out, nil
}

// Payments lists recorded payments, newest first.
func (s *AdminService) Payments(ctx context.Context, limit, offset int) ([]domain.PaymentView, error) {
	payments, err := infra.Retry(ctx, s.retry, func(ctx context.Context) ([]domain.PaymentView, error) {
		return s.store.ListPayments(ctx, limit, offset)
	})
	if err != nil {
		return nil, domain.StoreError("list payments", err)
	}
	return payments, nil
}

// GrantTokens credits tokens to a user on behalf of an admin.
func (s *AdminService) GrantTokens(ctx context.Context, grantedBy string, req domain.GrantTokensRequest) (*domain.CommandResult, error) {
	if req.UserID == uuid.Nil {
		return nil, domain.ErrValidation("userId is required")
	}
	if err := domain.ValidatePositiveAmount(req.TokenAmount); err != nil {
		return nil, domain.ErrValidation("tokenAmount must be a positive integer")
	}

	meta, _ := json.Marshal(map[string]string{"granted_by": grantedBy})
	result, err := s.store.CreditTokens(ctx, domain.CreditParams{
		ProfileID: req.UserID,
		Source:    domain.SourceAdminGrant,
		Amount:    req.TokenAmount,
		Metadata:  meta,
	})
	if err != nil {
		return nil, domain.StoreError("grant tokens", err)
	}

	s.logger.Info("tokens granted",
		"user_id", req.UserID,
		"amount", req.TokenAmount,
		"granted_by", grantedBy,
		"balance", result.Profile.TokenBalance,
	)
	return result, nil
}
