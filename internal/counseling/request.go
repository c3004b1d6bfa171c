// Package counseling defines the intake domain vocabulary: request kinds,
// lifecycle statuses, the ASK thread workflow and the closed role set. Every
// enumerated value lives here exactly once; other layers reference these
// types instead of redefining string literals.
package counseling

// Kind distinguishes the two intake request shapes.
type Kind string

const (
	// KindAsk is an anonymous or named text inquiry routed to staff.
	KindAsk Kind = "ASK"
	// KindMeet is a request for a scheduled, timed appointment.
	KindMeet Kind = "MEET"
)

// Valid reports whether the kind is a known enumeration member.
func (k Kind) Valid() bool {
	return k == KindAsk || k == KindMeet
}

// Status is the primary lifecycle state of a counseling request.
type Status string

const (
	StatusPending     Status = "pending"
	StatusApproved    Status = "approved"
	StatusDisapproved Status = "disapproved"
	StatusCancelled   Status = "cancelled"
	StatusCompleted   Status = "completed"
)

// Valid reports whether the status is a known enumeration member.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDisapproved, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further primary transition is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusDisapproved, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Active reports whether a MEET request in this status still occupies its
// slot. Only active bookings participate in conflict detection.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusApproved
}

// SessionMode describes how a MEET appointment is held.
type SessionMode string

const (
	SessionModeOnline   SessionMode = "online"
	SessionModeInPerson SessionMode = "in_person"
)

// Valid reports whether the session mode is a known enumeration member.
func (m SessionMode) Valid() bool {
	return m == SessionModeOnline || m == SessionModeInPerson
}

// ThreadStatus is the secondary staff-facing workflow label carried by ASK
// requests. It is independent of the primary Status and only set by
// privileged roles.
type ThreadStatus string

const (
	ThreadStatusNew                ThreadStatus = "NEW"
	ThreadStatusUnderReview        ThreadStatus = "UNDER_REVIEW"
	ThreadStatusAppointmentNeeded  ThreadStatus = "APPOINTMENT_REQUIRED"
	ThreadStatusScheduled          ThreadStatus = "SCHEDULED"
	ThreadStatusInSession          ThreadStatus = "IN_SESSION"
	ThreadStatusWaitingOnRequester ThreadStatus = "WAITING_ON_REQUESTER"
	ThreadStatusFollowUpRequired   ThreadStatus = "FOLLOW_UP_REQUIRED"
	ThreadStatusCompleted          ThreadStatus = "COMPLETED"
	ThreadStatusClosed             ThreadStatus = "CLOSED"
	ThreadStatusUrgent             ThreadStatus = "URGENT"
	ThreadStatusCrisis             ThreadStatus = "CRISIS"
)

// ThreadStatuses enumerates every thread status in display order.
func ThreadStatuses() []ThreadStatus {
	return []ThreadStatus{
		ThreadStatusNew,
		ThreadStatusUnderReview,
		ThreadStatusAppointmentNeeded,
		ThreadStatusScheduled,
		ThreadStatusInSession,
		ThreadStatusWaitingOnRequester,
		ThreadStatusFollowUpRequired,
		ThreadStatusCompleted,
		ThreadStatusClosed,
		ThreadStatusUrgent,
		ThreadStatusCrisis,
	}
}

// Valid reports whether the thread status is a known enumeration member.
func (ts ThreadStatus) Valid() bool {
	for _, known := range ThreadStatuses() {
		if ts == known {
			return true
		}
	}
	return false
}

// Role is the closed set of account roles. Capability checks compare against
// these members instead of matching ad hoc strings.
type Role string

const (
	RoleStudent    Role = "student"
	RoleCounselor  Role = "counselor"
	RoleConsultant Role = "consultant"
	RoleAdmin      Role = "admin"
)

// Valid reports whether the role is a known enumeration member.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleCounselor, RoleConsultant, RoleAdmin:
		return true
	}
	return false
}

// Privileged reports whether the role may triage requests: approve,
// disapprove, complete, reply and set thread statuses.
func (r Role) Privileged() bool {
	switch r {
	case RoleCounselor, RoleConsultant, RoleAdmin:
		return true
	}
	return false
}

// Staff reports whether accounts with this role appear on the bookable
// roster. Admins administer the system but do not take appointments.
func (r Role) Staff() bool {
	return r == RoleCounselor || r == RoleConsultant
}
