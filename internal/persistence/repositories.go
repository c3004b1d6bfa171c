package persistence

import (
	"context"
	"time"

	"github.com/example/counseling-intake/internal/counseling"
)

// UserRepository exposes CRUD operations for accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	// ListStaff returns active accounts whose role places them on the
	// bookable roster, ordered by id.
	ListStaff(ctx context.Context) ([]User, error)
}

// RequestFilter narrows request queries. Zero fields are ignored.
type RequestFilter struct {
	RequesterID string
	StaffID     string
	Kind        counseling.Kind
	Status      counseling.Status
	MeetDate    string
	// ActiveOnly restricts results to statuses that still occupy a slot.
	ActiveOnly bool
	// Before keeps only MEET requests whose slot instant is strictly before
	// the given time, evaluated in the supplied location.
	Before         *time.Time
	BeforeLocation *time.Location
}

// RequestRepository stores counseling requests.
//
// CreateRequest is the single conditional write guarding the booking
// invariant: for a MEET request it must atomically fail with ErrDuplicate
// when another active MEET request already holds the same (staff, date, time)
// tuple. A check performed separately from the insert is not acceptable.
type RequestRepository interface {
	CreateRequest(ctx context.Context, request Request) error
	GetRequest(ctx context.Context, id string) (Request, error)
	UpdateRequest(ctx context.Context, request Request) error
	ListRequests(ctx context.Context, filter RequestFilter) ([]Request, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
