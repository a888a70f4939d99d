// Package scope decides where a profile's inventory lives.
package scope

import (
	"fmt"
	"strings"

	"fruition-api/internal/model"
)

// InventoryPath returns the inventory path for profile: the shared
// household inventory when the profile belongs to a household, the
// personal inventory otherwise. All inventory reads and writes resolve
// through this function. A nil profile has no path.
func InventoryPath(profile *model.UserProfile) string {
	if profile == nil || profile.UserID == "" {
		return ""
	}
	if profile.HouseholdID != "" {
		return HouseholdInventory(profile.HouseholdID)
	}
	return PersonalInventory(profile.UserID)
}

// PersonalInventory is the inventory path of a single user.
func PersonalInventory(userID string) string {
	return fmt.Sprintf("users/%s/inventory", userID)
}

// HouseholdInventory is the shared inventory path of a household.
func HouseholdInventory(householdID string) string {
	return fmt.Sprintf("households/%s/inventory", householdID)
}

// IsHousehold reports whether path is a shared household inventory.
func IsHousehold(path string) bool {
	return strings.HasPrefix(path, "households/")
}
