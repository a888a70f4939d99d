package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"fruition-api/internal/model"
	"fruition-api/internal/notify"
	"fruition-api/internal/pubsub"
	"fruition-api/internal/service"
	"fruition-api/pkg/apierror"
	"fruition-api/pkg/response"
)

// DefaultHeartbeat is the interval of keep-alive comments on idle streams.
const DefaultHeartbeat = 25 * time.Second

// EventsHandler streams inventory snapshots and notifications.
type EventsHandler struct {
	sessionResolver
	broker    pubsub.Broker
	heartbeat time.Duration
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(sessions *service.SessionManager, broker pubsub.Broker, heartbeat time.Duration) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &EventsHandler{
		sessionResolver: sessionResolver{sessions: sessions},
		broker:          broker,
		heartbeat:       heartbeat,
	}
}

// InventoryEvent is the payload of an "inventory" event.
type InventoryEvent struct {
	Scope string                `json:"scope"`
	Items []model.InventoryItem `json:"items"`
}

// Stream handles GET /api/v1/events. While a stream is attached the
// session counts as foreground and no system alerts are raised for it.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	ctx := r.Context()

	sub, err := h.broker.Subscribe(ctx, notify.NotificationTopic(s.UserID()))
	if err != nil {
		response.Error(w, apierror.ServiceUnavailable("event stream unavailable"))
		return
	}
	defer sub.Close()

	stream, ok := response.NewEventStream(w)
	if !ok {
		response.Error(w, apierror.InternalError("streaming unsupported"))
		return
	}

	detach := s.AttachStream()
	defer detach()

	// Only the latest snapshot matters; older pending ones are dropped.
	updates := make(chan []model.InventoryItem, 1)
	unobserve := s.Inventory().Observe(func(items []model.InventoryItem) {
		for {
			select {
			case updates <- items:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unobserve()

	if err := stream.Send("inventory", InventoryEvent{Scope: s.Path(), Items: s.Inventory().Items()}); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case items := <-updates:
			err = stream.Send("inventory", InventoryEvent{Scope: s.Path(), Items: items})
		case msg, ok := <-sub.C():
			if !ok {
				log.Printf("[EventsHandler] Notification subscription for %s closed", s.UserID())
				return
			}
			err = stream.Send("notification", json.RawMessage(msg))
		case <-ticker.C:
			err = stream.Ping()
		}
		if err != nil {
			return
		}
	}
}
