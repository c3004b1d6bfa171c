// Package messaging delivers request lifecycle events to the notification
// pipeline over RabbitMQ.
package messaging

import (
	"context"
	"time"

	"github.com/example/counseling-intake/internal/application"
)

// eventEnvelope is the wire form of a request lifecycle event.
type eventEnvelope struct {
	Type        string    `json:"type"`
	RequestID   string    `json:"request_id"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
	RequesterID string    `json:"requester_id,omitempty"`
	StaffID     string    `json:"staff_id,omitempty"`
	MeetDate    string    `json:"meet_date,omitempty"`
	MeetTime    string    `json:"meet_time,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func toEnvelope(event application.RequestEvent) eventEnvelope {
	return eventEnvelope{
		Type:        event.Type,
		RequestID:   event.RequestID,
		Kind:        string(event.Kind),
		Status:      string(event.Status),
		RequesterID: event.RequesterID,
		StaffID:     event.StaffID,
		MeetDate:    event.MeetDate,
		MeetTime:    event.MeetTime,
		OccurredAt:  event.OccurredAt,
	}
}

// NoopPublisher drops every event. It stands in for the broker when no AMQP
// URL is configured.
type NoopPublisher struct{}

// PublishRequestEvent discards the event.
func (NoopPublisher) PublishRequestEvent(context.Context, application.RequestEvent) error {
	return nil
}

// Close is a no-op.
func (NoopPublisher) Close() error { return nil }
