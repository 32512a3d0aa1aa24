package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/luckygrid/platform/internal/domain"
	"github.com/luckygrid/platform/internal/infra"
)

const (
	maxNameLength  = 100
	maxPhoneLength = 32
	dashboardTop   = 5
)

// ProfileStore is the persistence the profile service needs.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	EnsureProfile(ctx context.Context, userID uuid.UUID, email string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, upd domain.ProfileUpdate) (*domain.Profile, error)
	TopWinners(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// ProfileService provisions and edits user profiles.
type ProfileService struct {
	store  ProfileStore
	retry  infra.RetryPolicy
	logger *slog.Logger
}

// NewProfileService creates a ProfileService.
func NewProfileService(store ProfileStore, retry infra.RetryPolicy, logger *slog.Logger) *ProfileService {
	return &ProfileService{store: store, retry: retry, logger: logger}
}

// Dashboard is the signed-in landing view.
type Dashboard struct {
	Profile    *domain.Profile           `json:"profile"`
	TopWinners []domain.LeaderboardEntry `json:"topWinners"`
}

// Ensure creates the caller's profile with a zero balance if it does not
// exist yet. Calling it again only refreshes the email. Identities without an
// email are accepted; a malformed one is not stored.
func (s *ProfileService) Ensure(ctx context.Context, userID uuid.UUID, email string) (*domain.Profile, error) {
	email = strings.TrimSpace(email)
	if email != "" {
		if err := domain.ValidateEmail(email); err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
	}
	p, err := s.store.EnsureProfile(ctx, userID, email)
	if err != nil {
		return nil, domain.StoreError("ensure profile", err)
	}
	return p, nil
}

// Update applies name and phone changes.
func (s *ProfileService) Update(ctx context.Context, userID uuid.UUID, upd domain.ProfileUpdate) (*domain.Profile, error) {
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if utf8.RuneCountInString(name) > maxNameLength {
			return nil, domain.ErrValidation("name is too long")
		}
		upd.Name = &name
	}
	if upd.Phone != nil {
		phone := strings.TrimSpace(*upd.Phone)
		if utf8.RuneCountInString(phone) > maxPhoneLength {
			return nil, domain.ErrValidation("phone number is too long")
		}
		upd.Phone = &phone
	}

	p, err := s.store.UpdateProfile(ctx, userID, upd)
	if err != nil {
		return nil, domain.StoreError("update profile", err)
	}
	if p == nil {
		return nil, domain.ErrProfileUnavailable()
	}
	s.logger.Info("profile updated", "user_id", userID)
	return p, nil
}

// Dashboard returns the caller's profile and the top five winners.
func (s *ProfileService) Dashboard(ctx context.Context, userID uuid.UUID) (*Dashboard, error) {
	p, err := infra.Retry(ctx, s.retry, func(ctx context.Context) (*domain.Profile, error) {
		return s.store.GetProfile(ctx, userID)
	})
	if err != nil {
		return nil, domain.StoreError("load profile", err)
	}
	if p == nil {
		return nil, domain.ErrProfileUnavailable()
	}
	top, err := infra.Retry(ctx, s.retry, func(ctx context.Context) ([]domain.LeaderboardEntry, error) {
		return s.store.TopWinners(ctx, dashboardTop)
	})
	if err != nil {
		return nil, domain.StoreError("load top winners", err)
	}
	return &Dashboard{Profile: p, TopWinners: top}, nil
}
