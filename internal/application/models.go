package application

import (
	"time"

	"github.com/example/counseling-intake/internal/counseling"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Role   counseling.Role
}

// User represents an account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        counseling.Role
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserInput captures caller provided account attributes.
type UserInput struct {
	Email       string
	DisplayName string
	Role        counseling.Role
	Password    string
	Active      bool
}

// CreateUserParams wraps the data required to create an account.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update an account.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// AskInput captures the fields of a question-style counseling request.
type AskInput struct {
	Topic     string
	Message   string
	Anonymous bool
}

// MeetInput captures the fields of an appointment-style counseling request.
type MeetInput struct {
	SessionMode counseling.SessionMode
	Reason      string
	MeetDate    string
	MeetTime    string
	StaffID     string
	Notes       string
}

// CreateAskParams wraps the data required to submit a question.
type CreateAskParams struct {
	Principal Principal
	Input     AskInput
}

// CreateMeetParams wraps the data required to book a meeting slot.
type CreateMeetParams struct {
	Principal Principal
	Input     MeetInput
}

// ApproveParams wraps the data required to approve a meeting request.
// MeetingLink is required for online sessions, Location for in-person ones.
type ApproveParams struct {
	Principal   Principal
	RequestID   string
	MeetingLink string
	Location    string
}

// DisapproveParams wraps the data required to reject a meeting request.
type DisapproveParams struct {
	Principal Principal
	RequestID string
	Reason    string
}

// ReplyParams wraps the data required to answer a question request.
type ReplyParams struct {
	Principal Principal
	RequestID string
	Reply     string
}

// ThreadStatusParams wraps the data required to re-tag a question thread.
type ThreadStatusParams struct {
	Principal Principal
	RequestID string
	Status    counseling.ThreadStatus
}

// ListRequestsParams narrows request listings. Zero fields are ignored.
type ListRequestsParams struct {
	Principal Principal
	// Mine restricts results to requests the principal submitted.
	Mine     bool
	Kind     counseling.Kind
	Status   counseling.Status
	StaffID  string
	PastOnly bool
}

// CounselingRequest is the service level view of a stored request.
type CounselingRequest struct {
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
	DisapproveReason *string
	CompletedAt      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AvailabilityParams identifies the slot query being resolved.
// An empty StaffID asks for the whole roster.
type AvailabilityParams struct {
	Principal Principal
	Date      string
	StaffID   string
}

// Slot reports the availability of one grid time for the queried date.
// Reason is set when Open is false. For roster queries OpenStaffIDs lists
// the staff members free at that time.
type Slot struct {
	Time         string
	Open         bool
	Reason       string
	OpenStaffIDs []string
}

// DayAvailability is the resolved slot list for one date.
type DayAvailability struct {
	Date  string
	Slots []Slot
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}
