// Package memory provides an in-process implementation of the persistence
// repositories. It backs unit tests and is a drop-in store for local runs
// without a database file. The booking invariant is enforced the same way the
// SQLite store enforces it: the conflict check and the insert happen under a
// single critical section, so concurrent writers for the same slot serialize
// and exactly one succeeds.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/counseling-intake/internal/counseling"
	"github.com/example/counseling-intake/internal/persistence"
)

// Store holds every repository behind one mutex.
type Store struct {
	mu       sync.RWMutex
	users    map[string]persistence.User
	requests map[string]persistence.Request
	sessions map[string]persistence.Session
	// bookings indexes active MEET requests by their slot tuple key.
	bookings map[string]string
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		users:    make(map[string]persistence.User),
		requests: make(map[string]persistence.Request),
		sessions: make(map[string]persistence.Session),
		bookings: make(map[string]string),
	}
}

func bookingKey(staffID, date, slot string) string {
	return staffID + "|" + date + "|" + slot
}

// --- UserRepository ---

// CreateUser stores a new account, rejecting duplicate ids and emails.
func (s *Store) CreateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return persistence.ErrDuplicate
	}
	if err := s.ensureUniqueEmailLocked(user.ID, user.Email); err != nil {
		return err
	}

	s.users[user.ID] = user
	return nil
}

// UpdateUser replaces an existing account record.
func (s *Store) UpdateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return persistence.ErrNotFound
	}
	if err := s.ensureUniqueEmailLocked(user.ID, user.Email); err != nil {
		return err
	}

	s.users[user.ID] = user
	return nil
}

// GetUser retrieves an account by id.
func (s *Store) GetUser(ctx context.Context, id string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

// GetUserByEmail retrieves an account by email, case insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := strings.ToLower(email)
	for _, user := range s.users {
		if strings.ToLower(user.Email) == lower {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

// ListUsers returns every account ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]persistence.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// ListStaff returns active roster accounts ordered by id.
func (s *Store) ListStaff(ctx context.Context) ([]persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	staff := make([]persistence.User, 0)
	for _, user := range s.users {
		if user.Active && user.Role.Staff() {
			staff = append(staff, user)
		}
	}
	sort.Slice(staff, func(i, j int) bool { return staff[i].ID < staff[j].ID })
	return staff, nil
}

func (s *Store) ensureUniqueEmailLocked(id, email string) error {
	lower := strings.ToLower(email)
	for _, existing := range s.users {
		if existing.ID != id && strings.ToLower(existing.Email) == lower {
			return persistence.ErrDuplicate
		}
	}
	return nil
}

// --- RequestRepository ---

// CreateRequest inserts a request. For MEET requests the active-booking index
// is consulted and updated inside the same critical section, which makes the
// insert conditional: the first writer for a slot wins and later writers get
// ErrDuplicate with no partial state.
func (s *Store) CreateRequest(ctx context.Context, request persistence.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[request.ID]; ok {
		return persistence.ErrDuplicate
	}
	if _, ok := s.users[request.RequesterID]; !ok {
		return persistence.ErrForeignKeyViolation
	}

	if request.Kind == counseling.KindMeet {
		if _, ok := s.users[request.StaffID]; !ok {
			return persistence.ErrForeignKeyViolation
		}
		if request.Status.Active() {
			key := bookingKey(request.StaffID, request.MeetDate, request.MeetTime)
			if _, taken := s.bookings[key]; taken {
				return persistence.ErrDuplicate
			}
			s.bookings[key] = request.ID
		}
	}

	s.requests[request.ID] = request
	return nil
}

// GetRequest retrieves a request by id.
func (s *Store) GetRequest(ctx context.Context, id string) (persistence.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	request, ok := s.requests[id]
	if !ok {
		return persistence.Request{}, persistence.ErrNotFound
	}
	return request, nil
}

// UpdateRequest replaces a request record and maintains the active-booking
// index when a MEET request leaves an active status.
func (s *Store) UpdateRequest(ctx context.Context, request persistence.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, ok := s.requests[request.ID]
	if !ok {
		return persistence.ErrNotFound
	}

	if previous.Kind == counseling.KindMeet {
		key := bookingKey(previous.StaffID, previous.MeetDate, previous.MeetTime)
		wasActive := previous.Status.Active()
		isActive := request.Status.Active()
		switch {
		case wasActive && !isActive:
			delete(s.bookings, key)
		case !wasActive && isActive:
			if _, taken := s.bookings[key]; taken {
				return persistence.ErrDuplicate
			}
			s.bookings[key] = request.ID
		}
	}

	s.requests[request.ID] = request
	return nil
}

// ListRequests returns requests matching the filter ordered by creation time,
// newest first, with id as a tiebreak.
func (s *Store) ListRequests(ctx context.Context, filter persistence.RequestFilter) ([]persistence.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]persistence.Request, 0)
	for _, request := range s.requests {
		if !matchesFilter(request, filter) {
			continue
		}
		matched = append(matched, request)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched, nil
}

func matchesFilter(request persistence.Request, filter persistence.RequestFilter) bool {
	if filter.RequesterID != "" && request.RequesterID != filter.RequesterID {
		return false
	}
	if filter.StaffID != "" && request.StaffID != filter.StaffID {
		return false
	}
	if filter.Kind != "" && request.Kind != filter.Kind {
		return false
	}
	if filter.Status != "" && request.Status != filter.Status {
		return false
	}
	if filter.MeetDate != "" && request.MeetDate != filter.MeetDate {
		return false
	}
	if filter.ActiveOnly && !request.Status.Active() {
		return false
	}
	if filter.Before != nil {
		if request.Kind != counseling.KindMeet {
			return false
		}
		loc := filter.BeforeLocation
		if loc == nil {
			loc = time.UTC
		}
		instant, err := time.ParseInLocation("2006-01-02 15:04", request.MeetDate+" "+request.MeetTime, loc)
		if err != nil || !instant.Before(*filter.Before) {
			return false
		}
	}
	return true
}

// --- SessionRepository ---

// CreateSession stores a new session keyed by token.
func (s *Store) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.Token]; ok {
		return persistence.Session{}, persistence.ErrDuplicate
	}
	s.sessions[session.Token] = session
	return session, nil
}

// GetSession retrieves a session by token.
func (s *Store) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return session, nil
}

// RevokeSession marks a session revoked at the given instant.
func (s *Store) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	session.UpdatedAt = revokedAt
	s.sessions[token] = session
	return session, nil
}

// DeleteExpiredSessions removes sessions that expired before the reference.
func (s *Store) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, session := range s.sessions {
		if session.ExpiresAt.Before(reference) {
			delete(s.sessions, token)
		}
	}
	return nil
}
