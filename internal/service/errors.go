package service

import "errors"

// Service errors. Handlers map these to HTTP statuses.
var (
	ErrItemNotFound      = errors.New("item not found in inventory")
	ErrInvalidAmount     = errors.New("amount must be at least 1")
	ErrInvalidItem       = errors.New("item name is required")
	ErrIdentityDisabled  = errors.New("account suspended")
	ErrHouseholdNotFound = errors.New("household not found")
	ErrNotInHousehold    = errors.New("not a member of a household")
	ErrAnonymous         = errors.New("no signed-in identity")
	ErrSessionNotFound   = errors.New("session not found")
)

// Validation errors for profile updates.
var (
	ErrInvalidMemberID = errors.New("member id must be positive")
	ErrInvalidTimeZone = errors.New("unknown time zone")
)
