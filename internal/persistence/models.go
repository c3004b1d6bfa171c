package persistence

import (
	"time"

	"github.com/example/counseling-intake/internal/counseling"
)

// User represents a student or staff account.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	Role         counseling.Role
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Request represents a persisted counseling request. ASK and MEET records
// share one table; kind-specific columns are null for the other kind.
type Request struct {
	ID          string
	RequesterID string
	Kind        counseling.Kind
	Status      counseling.Status

	// ASK fields.
	Topic        string
	Message      string
	Anonymous    bool
	Reply        *string
	RepliedAt    *time.Time
	ThreadStatus *counseling.ThreadStatus

	// MEET fields. MeetDate is an ISO calendar date, MeetTime an HH:MM slot.
	SessionMode      counseling.SessionMode
	Reason           string
	MeetDate         string
	MeetTime         string
	StaffID          string
	Notes            string
	MeetingLink      *string
	Location         *string
	CompletedAt      *time.Time
	DisapproveReason *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}
