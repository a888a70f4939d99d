package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"fruition-api/internal/model"
	"fruition-api/internal/repository"
	"fruition-api/pkg/clock"
	"fruition-api/pkg/uid"
)

// HouseholdService manages household membership. It only updates stored
// profiles; sessions re-resolve their scope afterwards.
type HouseholdService struct {
	households repository.HouseholdRepository
	profiles   repository.ProfileRepository
	clock      clock.Clock
}

// NewHouseholdService creates a household service.
func NewHouseholdService(households repository.HouseholdRepository, profiles repository.ProfileRepository, clk clock.Clock) *HouseholdService {
	return &HouseholdService{households: households, profiles: profiles, clock: clk}
}

// Create makes a new household and moves its creator into it. The
// household id is also its join code.
func (s *HouseholdService) Create(ctx context.Context, userID, name string) (*model.Household, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "My Household"
	}
	h := &model.Household{
		ID:        uid.Code(),
		Name:      name,
		CreatedBy: userID,
		CreatedAt: s.clock.Now(),
	}
	if err := s.households.CreateHousehold(ctx, h); err != nil {
		return nil, fmt.Errorf("failed to create household: %w", err)
	}
	if err := s.profiles.SetHousehold(ctx, userID, h.ID); err != nil {
		return nil, fmt.Errorf("failed to join household: %w", err)
	}
	log.Printf("[HouseholdService] %s created household %s", userID, h.ID)
	return h, nil
}

// Join moves userID into the household identified by code.
func (s *HouseholdService) Join(ctx context.Context, userID, code string) (*model.Household, error) {
	h, err := s.households.GetHousehold(ctx, uid.NormalizeCode(code))
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrHouseholdNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load household: %w", err)
	}
	if err := s.profiles.SetHousehold(ctx, userID, h.ID); err != nil {
		return nil, fmt.Errorf("failed to join household: %w", err)
	}
	log.Printf("[HouseholdService] %s joined household %s", userID, h.ID)
	return h, nil
}

// Leave moves userID back to their personal inventory.
func (s *HouseholdService) Leave(ctx context.Context, userID, householdID string) error {
	if householdID == "" {
		return ErrNotInHousehold
	}
	if err := s.profiles.SetHousehold(ctx, userID, ""); err != nil {
		return fmt.Errorf("failed to leave household: %w", err)
	}
	log.Printf("[HouseholdService] %s left household %s", userID, householdID)
	return nil
}

// Get returns a household with its members.
func (s *HouseholdService) Get(ctx context.Context, id string) (*model.Household, []model.UserProfile, error) {
	h, err := s.households.GetHousehold(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil, ErrHouseholdNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	members, err := s.households.ListMembers(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return h, members, nil
}
