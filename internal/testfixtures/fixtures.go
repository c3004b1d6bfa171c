package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/counseling-intake/internal/counseling"
	"github.com/example/counseling-intake/internal/persistence"
)

var (
	userCounter    uint64
	requestCounter uint64
	sessionCounter uint64
)

var referenceTime = time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
// It falls on a Monday so meet fixtures default to working days.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic account record that can be
// materialised for application or persistence tests.
type UserFixture struct {
	ID           string
	Email        string
	DisplayName  string
	Role         counseling.Role
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic student fixture with optional
// overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           id,
		Email:        fmt.Sprintf("%s@campus.edu", id),
		DisplayName:  fmt.Sprintf("User %03d", idx),
		Role:         counseling.RoleStudent,
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		Active:       true,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserDisplayName overrides the generated display name.
func WithUserDisplayName(name string) UserOption {
	return func(f *UserFixture) {
		f.DisplayName = name
	}
}

// WithUserRole overrides the generated role.
func WithUserRole(role counseling.Role) UserOption {
	return func(f *UserFixture) {
		f.Role = role
	}
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// WithUserActive sets the active flag on the generated fixture.
func WithUserActive(active bool) UserOption {
	return func(f *UserFixture) {
		f.Active = active
	}
}

// WithUserTimestamps sets both created and updated timestamps on the fixture.
func WithUserTimestamps(created, updated time.Time) UserOption {
	return func(f *UserFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		Role:         f.Role,
		PasswordHash: f.PasswordHash,
		Active:       f.Active,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// NewCounselorFixture returns a bookable counselor fixture.
func NewCounselorFixture(opts ...UserOption) UserFixture {
	base := []UserOption{WithUserRole(counseling.RoleCounselor)}
	return NewUserFixture(append(base, opts...)...)
}

// NewAdminFixture returns an administrator fixture.
func NewAdminFixture(opts ...UserOption) UserFixture {
	base := []UserOption{WithUserRole(counseling.RoleAdmin)}
	return NewUserFixture(append(base, opts...)...)
}

// --------------------------- Request fixtures ----------------------------

// RequestFixture represents a deterministic counseling request record.
type RequestFixture struct {
	ID          string
	RequesterID string
	Kind        counseling.Kind
	Status      counseling.Status

	Topic        string
	Message      string
	Anonymous    bool
	Reply        *string
	RepliedAt    *time.Time
	ThreadStatus *counseling.ThreadStatus

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

// RequestOption configures the generated request fixture.
type RequestOption func(*RequestFixture)

// NewAskFixture returns a pending question-style request with optional
// overrides.
func NewAskFixture(opts ...RequestOption) RequestFixture {
	idx := atomic.AddUint64(&requestCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := RequestFixture{
		ID:          fmt.Sprintf("req-%03d", idx),
		RequesterID: "user-001",
		Kind:        counseling.KindAsk,
		Status:      counseling.StatusPending,
		Topic:       fmt.Sprintf("Topic %03d", idx),
		Message:     fmt.Sprintf("Message body %03d", idx),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// NewMeetFixture returns a pending meeting request booked one week after the
// reference time, with optional overrides.
func NewMeetFixture(opts ...RequestOption) RequestFixture {
	idx := atomic.AddUint64(&requestCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := RequestFixture{
		ID:          fmt.Sprintf("req-%03d", idx),
		RequesterID: "user-001",
		Kind:        counseling.KindMeet,
		Status:      counseling.StatusPending,
		SessionMode: counseling.SessionModeOnline,
		Reason:      fmt.Sprintf("Reason %03d", idx),
		MeetDate:    referenceTime.AddDate(0, 0, 7).Format("2006-01-02"),
		MeetTime:    "10:00",
		StaffID:     "counselor-001",
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRequestID overrides the generated request ID.
func WithRequestID(id string) RequestOption {
	return func(f *RequestFixture) {
		f.ID = id
	}
}

// WithRequester overrides the requester on the fixture.
func WithRequester(id string) RequestOption {
	return func(f *RequestFixture) {
		f.RequesterID = id
	}
}

// WithRequestStatus overrides the lifecycle status.
func WithRequestStatus(status counseling.Status) RequestOption {
	return func(f *RequestFixture) {
		f.Status = status
	}
}

// WithAnonymous marks the fixture as an anonymous submission.
func WithAnonymous() RequestOption {
	return func(f *RequestFixture) {
		f.Anonymous = true
	}
}

// WithSlot overrides the booked date and time on a meeting fixture.
func WithSlot(date, clock string) RequestOption {
	return func(f *RequestFixture) {
		f.MeetDate = date
		f.MeetTime = clock
	}
}

// WithStaff overrides the assigned staff member on a meeting fixture.
func WithStaff(id string) RequestOption {
	return func(f *RequestFixture) {
		f.StaffID = id
	}
}

// WithSessionMode overrides the session mode on a meeting fixture.
func WithSessionMode(mode counseling.SessionMode) RequestOption {
	return func(f *RequestFixture) {
		f.SessionMode = mode
	}
}

// WithRequestTimestamps sets both created and updated timestamps.
func WithRequestTimestamps(created, updated time.Time) RequestOption {
	return func(f *RequestFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Persistence returns the fixture as a persistence.Request value.
func (f RequestFixture) Persistence() persistence.Request {
	return persistence.Request{
		ID:               f.ID,
		RequesterID:      f.RequesterID,
		Kind:             f.Kind,
		Status:           f.Status,
		Topic:            f.Topic,
		Message:          f.Message,
		Anonymous:        f.Anonymous,
		Reply:            f.Reply,
		RepliedAt:        f.RepliedAt,
		ThreadStatus:     f.ThreadStatus,
		SessionMode:      f.SessionMode,
		Reason:           f.Reason,
		MeetDate:         f.MeetDate,
		MeetTime:         f.MeetTime,
		StaffID:          f.StaffID,
		Notes:            f.Notes,
		MeetingLink:      f.MeetingLink,
		Location:         f.Location,
		CompletedAt:      f.CompletedAt,
		DisapproveReason: f.DisapproveReason,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
}

// --------------------------- Session fixtures ----------------------------

// SessionFixture represents a deterministic authentication session.
type SessionFixture struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a live session fixture expiring one day after the
// reference time.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := SessionFixture{
		ID:        fmt.Sprintf("session-%03d", idx),
		UserID:    "user-001",
		Token:     fmt.Sprintf("token-%03d", idx),
		ExpiresAt: created.Add(24 * time.Hour),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionUser overrides the owning user.
func WithSessionUser(id string) SessionOption {
	return func(f *SessionFixture) {
		f.UserID = id
	}
}

// WithSessionToken overrides the generated token.
func WithSessionToken(token string) SessionOption {
	return func(f *SessionFixture) {
		f.Token = token
	}
}

// WithSessionExpiry overrides the expiry timestamp.
func WithSessionExpiry(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.ExpiresAt = t
	}
}

// WithSessionRevoked marks the session as revoked at the given time.
func WithSessionRevoked(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.RevokedAt = &t
	}
}

// Persistence returns the fixture as a persistence.Session value.
func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:        f.ID,
		UserID:    f.UserID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		RevokedAt: f.RevokedAt,
	}
}
