package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/example/counseling-intake/internal/application"
	"github.com/example/counseling-intake/internal/counseling"
)

func TestEventEnvelopeEncoding(t *testing.T) {
	t.Parallel()

	occurredAt := time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC)
	event := application.RequestEvent{
		Type:        application.EventRequestCreated,
		RequestID:   "req-1",
		Kind:        counseling.KindMeet,
		Status:      counseling.StatusPending,
		RequesterID: "student-1",
		StaffID:     "counselor-1",
		MeetDate:    "2026-01-12",
		MeetTime:    "10:00",
		OccurredAt:  occurredAt,
	}

	body, err := json.Marshal(toEnvelope(event))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["type"] != "request.created" {
		t.Errorf("unexpected type: %v", decoded["type"])
	}
	if decoded["kind"] != "MEET" || decoded["status"] != "pending" {
		t.Errorf("unexpected kind/status: %v/%v", decoded["kind"], decoded["status"])
	}
	if decoded["meet_date"] != "2026-01-12" || decoded["meet_time"] != "10:00" {
		t.Errorf("unexpected slot: %v %v", decoded["meet_date"], decoded["meet_time"])
	}
}

func TestEventEnvelopeOmitsEmptySlotFields(t *testing.T) {
	t.Parallel()

	event := application.RequestEvent{
		Type:      application.EventRequestReplied,
		RequestID: "req-2",
		Kind:      counseling.KindAsk,
		Status:    counseling.StatusApproved,
	}

	body, err := json.Marshal(toEnvelope(event))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, field := range []string{"staff_id", "meet_date", "meet_time", "requester_id"} {
		if _, ok := decoded[field]; ok {
			t.Errorf("expected %s to be omitted, got %v", field, decoded[field])
		}
	}
}

func TestNoopPublisher(t *testing.T) {
	t.Parallel()

	var publisher NoopPublisher
	if err := publisher.PublishRequestEvent(context.Background(), application.RequestEvent{}); err != nil {
		t.Fatalf("noop publish returned error: %v", err)
	}
	if err := publisher.Close(); err != nil {
		t.Fatalf("noop close returned error: %v", err)
	}
}
