package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"fruition-api/internal/model"
	"fruition-api/internal/pubsub"
)

// Alerter raises an out-of-band system alert for a notification.
type Alerter interface {
	Alert(ctx context.Context, userID string, n model.Notification) error
}

// LogAlerter writes alerts to the process log.
type LogAlerter struct{}

// Alert logs n.
func (LogAlerter) Alert(ctx context.Context, userID string, n model.Notification) error {
	log.Printf("[Alert] user=%s %s: %s", userID, n.Title, n.Body)
	return nil
}

// AlertTopic is the broker topic carrying system alerts for userID.
func AlertTopic(userID string) string {
	return fmt.Sprintf("alerts/%s", userID)
}

// NotificationTopic is the broker topic carrying in-app notifications for
// userID.
func NotificationTopic(userID string) string {
	return fmt.Sprintf("notifications/%s", userID)
}

// BrokerAlerter publishes alerts as JSON on the user's alert topic, where
// push gateways or other instances can pick them up.
type BrokerAlerter struct {
	Broker pubsub.Broker
}

// Alert publishes n.
func (a BrokerAlerter) Alert(ctx context.Context, userID string, n model.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return a.Broker.Publish(ctx, AlertTopic(userID), data)
}
