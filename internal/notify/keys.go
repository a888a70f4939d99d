package notify

import "fmt"

// KV keys, all namespaced per user.

func historyKey(userID string) string {
	return fmt.Sprintf("notify:%s:history", userID)
}

func lastCheckKey(userID string) string {
	return fmt.Sprintf("notify:%s:last_check", userID)
}

func permissionKey(userID string) string {
	return fmt.Sprintf("notify:%s:permission", userID)
}

// alertKey is the per-item per-day dedup marker.
func alertKey(userID, itemID, day string) string {
	return fmt.Sprintf("notify:%s:alert:%s:%s", userID, itemID, day)
}
