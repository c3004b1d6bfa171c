package counseling

import "errors"

// ErrInvalidStatus indicates a transition was attempted from a status that
// does not permit it. The record is left unchanged.
var ErrInvalidStatus = errors.New("counseling: transition not valid from current status")

// ErrInvalidType indicates an operation was attempted on the wrong request
// kind, such as setting a thread status on a MEET record.
var ErrInvalidType = errors.New("counseling: operation not valid for request kind")

// Action names a lifecycle transition on a counseling request.
type Action string

const (
	ActionApprove    Action = "approve"
	ActionDisapprove Action = "disapprove"
	ActionCancel     Action = "cancel"
	ActionComplete   Action = "complete"
	ActionReply      Action = "reply"
)

// Transition validates an action against the request kind and current status
// and returns the resulting status. Reply on a request that is already
// Approved keeps the status unchanged; a reply while Pending counts as tacit
// approval, a deliberate product rule for ASK threads.
func Transition(kind Kind, current Status, action Action) (Status, error) {
	switch action {
	case ActionApprove:
		if current != StatusPending {
			return current, ErrInvalidStatus
		}
		return StatusApproved, nil

	case ActionDisapprove:
		if current != StatusPending {
			return current, ErrInvalidStatus
		}
		return StatusDisapproved, nil

	case ActionCancel:
		if current != StatusPending {
			return current, ErrInvalidStatus
		}
		return StatusCancelled, nil

	case ActionComplete:
		if kind != KindMeet {
			return current, ErrInvalidType
		}
		if current != StatusApproved {
			return current, ErrInvalidStatus
		}
		return StatusCompleted, nil

	case ActionReply:
		if kind != KindAsk {
			return current, ErrInvalidType
		}
		switch current {
		case StatusPending:
			return StatusApproved, nil
		case StatusApproved:
			return StatusApproved, nil
		default:
			return current, ErrInvalidStatus
		}
	}

	return current, ErrInvalidStatus
}

// CanSetThreadStatus validates a thread status assignment. Thread statuses
// exist only on ASK records and may be set regardless of the primary status.
func CanSetThreadStatus(kind Kind, status ThreadStatus) error {
	if kind != KindAsk {
		return ErrInvalidType
	}
	if !status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}
