// Package events publishes account lifecycle events for other services.
// Publishing is best effort: a failed publish never fails the auth operation.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	TypeUserRegistered = "auth.user_registered"
	TypeUserLoggedIn   = "auth.user_logged_in"
	TypeUserLoggedOut  = "auth.user_logged_out"
	TypeUserUpdated    = "auth.user_updated"
	TypeUserDeleted    = "auth.user_deleted"
)

// Event is the payload written to the bus. It never carries credentials.
type Event struct {
	ID         uuid.UUID `json:"event_id"`
	Type       string    `json:"type"`
	UserID     uuid.UUID `json:"user_id"`
	Username   string    `json:"username"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New returns an event of type typ stamped with a fresh id and the current time.
func New(typ string, userID uuid.UUID, username string) Event {
	return Event{
		ID:         uuid.New(),
		Type:       typ,
		UserID:     userID,
		Username:   username,
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// LogPublisher writes events to the log instead of a broker. Used when no
// brokers are configured.
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log.With("module", "events")}
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	p.log.DebugContext(ctx, "event",
		"event_id", e.ID,
		"type", e.Type,
		"user_id", e.UserID,
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
