package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"fruition-api/internal/geo"
	"fruition-api/internal/model"
	"fruition-api/internal/repository"
	"fruition-api/pkg/clock"
)

// IdentityService assigns profiles and member ids to identities.
type IdentityService struct {
	profiles repository.ProfileRepository
	locator  geo.Locator
	clock    clock.Clock
}

// NewIdentityService creates an identity service. locator may be nil.
func NewIdentityService(profiles repository.ProfileRepository, locator geo.Locator, clk clock.Clock) *IdentityService {
	return &IdentityService{profiles: profiles, locator: locator, clock: clk}
}

// EnsureProfile returns the profile of id, creating it with the next
// member id if it does not exist yet. A missing location is backfilled
// from clientIP on a best-effort basis.
func (s *IdentityService) EnsureProfile(ctx context.Context, id model.Identity, clientIP string) (*model.UserProfile, error) {
	if id.UserID == "" {
		return nil, ErrAnonymous
	}

	p, err := s.profiles.GetProfile(ctx, id.UserID)
	if err == nil {
		if p.Location == nil {
			s.backfillLocation(ctx, p, clientIP)
		}
		return p, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	p = &model.UserProfile{
		UserID:      id.UserID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		JoinedAt:    s.clock.Now(),
	}
	err = s.profiles.CreateProfileWithMemberID(ctx, p)
	if errors.Is(err, model.ErrProfileExists) {
		// Lost a race against a concurrent first sign-in of the same identity.
		p, err = s.profiles.GetProfile(ctx, id.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to load profile: %w", err)
		}
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	log.Printf("[IdentityService] New member id assigned: %s -> #%d", p.UserID, p.MemberID)
	s.backfillLocation(ctx, p, clientIP)
	return p, nil
}

func (s *IdentityService) backfillLocation(ctx context.Context, p *model.UserProfile, clientIP string) {
	if s.locator == nil {
		return
	}
	loc, err := s.locator.Lookup(ctx, clientIP)
	if err != nil {
		log.Printf("[IdentityService] Location lookup for %s failed (ignored): %v", p.UserID, err)
		return
	}
	if err := s.profiles.UpdateLocation(ctx, p.UserID, *loc); err != nil {
		log.Printf("[IdentityService] Location update for %s failed (ignored): %v", p.UserID, err)
		return
	}
	p.Location = loc
}

// GetProfile returns the stored profile of userID.
func (s *IdentityService) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	return s.profiles.GetProfile(ctx, userID)
}

// UpdateSettings validates and stores display settings.
func (s *IdentityService) UpdateSettings(ctx context.Context, userID string, settings model.Settings) error {
	if settings.TimeZone != "" {
		if _, err := time.LoadLocation(settings.TimeZone); err != nil {
			return ErrInvalidTimeZone
		}
	}
	return s.profiles.UpdateSettings(ctx, userID, settings)
}

// OverrideMemberID replaces the member id of userID. Administrative only;
// the global counter is left alone.
func (s *IdentityService) OverrideMemberID(ctx context.Context, userID string, memberID int64) error {
	if memberID < 1 {
		return ErrInvalidMemberID
	}
	if err := s.profiles.OverrideMemberID(ctx, userID, memberID); err != nil {
		return err
	}
	log.Printf("[IdentityService] Member id of %s overridden to #%d", userID, memberID)
	return nil
}

// SetDisabled suspends or restores an account.
func (s *IdentityService) SetDisabled(ctx context.Context, userID string, disabled bool) error {
	if err := s.profiles.SetDisabled(ctx, userID, disabled); err != nil {
		return err
	}
	log.Printf("[IdentityService] Account %s disabled=%v", userID, disabled)
	return nil
}

// TouchLastActive records presence at the current clock time. Best-effort.
func (s *IdentityService) TouchLastActive(ctx context.Context, userID string) {
	if err := s.profiles.TouchLastActive(ctx, userID, s.clock.Now()); err != nil {
		log.Printf("[IdentityService] Presence update for %s failed (ignored): %v", userID, err)
	}
}

// TotalUsers returns the global member counter.
func (s *IdentityService) TotalUsers(ctx context.Context) (int64, error) {
	return s.profiles.TotalUsers(ctx)
}
