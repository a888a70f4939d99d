package model

import "time"

// Settings holds display preferences of a user.
type Settings struct {
	TimeZone  string `json:"time_zone,omitempty"`
	HourCycle string `json:"hour_cycle,omitempty"`
}

// Location is a coarse, best-effort position of a user.
type Location struct {
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
	Label   string `json:"label"`
}

// Identity is the upstream-authenticated caller.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
}

// UserProfile is created once per identity. MemberID is assigned exactly
// once by the identity transaction.
type UserProfile struct {
	UserID      string     `json:"user_id"`
	Email       string     `json:"email,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	MemberID    int64      `json:"member_id"`
	HouseholdID string     `json:"household_id,omitempty"`
	Settings    Settings   `json:"settings"`
	Disabled    bool       `json:"disabled"`
	Role        string     `json:"role,omitempty"`
	Location    *Location  `json:"location,omitempty"`
	JoinedAt    time.Time  `json:"joined_at"`
	LastActive  *time.Time `json:"last_active,omitempty"`
}

// TimeLocation returns the profile's configured time zone, or fallback when
// it is unset or unknown.
func (p *UserProfile) TimeLocation(fallback *time.Location) *time.Location {
	if p == nil || p.Settings.TimeZone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(p.Settings.TimeZone)
	if err != nil {
		return fallback
	}
	return loc
}

// Household groups profiles that share one inventory.
type Household struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
