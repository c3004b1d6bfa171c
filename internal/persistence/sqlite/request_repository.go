package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/counseling-intake/internal/counseling"
	"github.com/example/counseling-intake/internal/persistence"
)

// RequestRepository implements persistence.RequestRepository using SQLite.
//
// The booking invariant rides on the partial unique index over
// (staff_id, meet_date, meet_time): inserting a live MEET request for an
// occupied slot fails inside the INSERT itself, so two concurrent bookings
// can never both succeed.
type RequestRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewRequestRepository creates a new SQLite request repository
func NewRequestRepository(pool *ConnectionPool) *RequestRepository {
	return &RequestRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const requestColumns = `id, requester_id, kind, status,
	topic, message, anonymous, reply, replied_at, thread_status,
	session_mode, reason, meet_date, meet_time, staff_id, notes,
	meeting_link, location, disapprove_reason, completed_at,
	created_at, updated_at`

// CreateRequest inserts a new counseling request. For MEET requests the
// insert atomically fails with ErrDuplicate when the slot is already held.
func (r *RequestRepository) CreateRequest(ctx context.Context, request persistence.Request) error {
	if request.ID == "" || request.RequesterID == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now

	query := `
		INSERT INTO requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.helper.Exec(ctx, query, r.insertArgs(request)...)
	if err != nil {
		return r.mapper.MapError(err)
	}

	return nil
}

// GetRequest retrieves a request by ID
func (r *RequestRepository) GetRequest(ctx context.Context, id string) (persistence.Request, error) {
	if id == "" {
		return persistence.Request{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)
	return r.scanRequest(row)
}

// UpdateRequest replaces the stored record. Status transitions that free or
// claim a slot are covered by the same partial unique index as inserts.
func (r *RequestRepository) UpdateRequest(ctx context.Context, request persistence.Request) error {
	if request.ID == "" {
		return persistence.ErrConstraintViolation
	}

	request.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE requests
		SET requester_id = ?, kind = ?, status = ?,
			topic = ?, message = ?, anonymous = ?, reply = ?, replied_at = ?, thread_status = ?,
			session_mode = ?, reason = ?, meet_date = ?, meet_time = ?, staff_id = ?, notes = ?,
			meeting_link = ?, location = ?, disapprove_reason = ?, completed_at = ?,
			updated_at = ?
		WHERE id = ?
	`

	args := []interface{}{
		request.RequesterID,
		string(request.Kind),
		string(request.Status),
		nullString(request.Topic),
		nullString(request.Message),
		request.Anonymous,
		nullStringPtr(request.Reply),
		nullTimePtr(request.RepliedAt),
		nullThreadStatus(request.ThreadStatus),
		nullString(string(request.SessionMode)),
		nullString(request.Reason),
		nullString(request.MeetDate),
		nullString(request.MeetTime),
		nullString(request.StaffID),
		nullString(request.Notes),
		nullStringPtr(request.MeetingLink),
		nullStringPtr(request.Location),
		nullStringPtr(request.DisapproveReason),
		nullTimePtr(request.CompletedAt),
		request.UpdatedAt.Format(time.RFC3339),
		request.ID,
	}

	result, err := r.helper.Exec(ctx, query, args...)
	if err != nil {
		return r.mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}

	return nil
}

// ListRequests returns requests matching the filter, newest first.
func (r *RequestRepository) ListRequests(ctx context.Context, filter persistence.RequestFilter) ([]persistence.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests`

	var (
		conditions []string
		args       []interface{}
	)
	if filter.RequesterID != "" {
		conditions = append(conditions, "requester_id = ?")
		args = append(args, filter.RequesterID)
	}
	if filter.StaffID != "" {
		conditions = append(conditions, "staff_id = ?")
		args = append(args, filter.StaffID)
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.MeetDate != "" {
		conditions = append(conditions, "meet_date = ?")
		args = append(args, filter.MeetDate)
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "status IN (?, ?)")
		args = append(args, string(counseling.StatusPending), string(counseling.StatusApproved))
	}

	for i, condition := range conditions {
		if i == 0 {
			query += " WHERE " + condition
		} else {
			query += " AND " + condition
		}
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var requests []persistence.Request
	for rows.Next() {
		request, err := r.scanRequest(rows)
		if err != nil {
			return nil, err
		}
		if !matchesBefore(request, filter) {
			continue
		}
		requests = append(requests, request)
	}

	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return requests, nil
}

// matchesBefore applies the slot-instant cutoff. The comparison needs the
// campus timezone, so it runs here rather than in SQL.
func matchesBefore(request persistence.Request, filter persistence.RequestFilter) bool {
	if filter.Before == nil {
		return true
	}
	if request.Kind != counseling.KindMeet || request.MeetDate == "" || request.MeetTime == "" {
		return false
	}

	loc := filter.BeforeLocation
	if loc == nil {
		loc = time.UTC
	}
	slot, err := time.ParseInLocation("2006-01-02 15:04", request.MeetDate+" "+request.MeetTime, loc)
	if err != nil {
		return false
	}
	return slot.Before(filter.Before.In(loc))
}

func (r *RequestRepository) insertArgs(request persistence.Request) []interface{} {
	return []interface{}{
		request.ID,
		request.RequesterID,
		string(request.Kind),
		string(request.Status),
		nullString(request.Topic),
		nullString(request.Message),
		request.Anonymous,
		nullStringPtr(request.Reply),
		nullTimePtr(request.RepliedAt),
		nullThreadStatus(request.ThreadStatus),
		nullString(string(request.SessionMode)),
		nullString(request.Reason),
		nullString(request.MeetDate),
		nullString(request.MeetTime),
		nullString(request.StaffID),
		nullString(request.Notes),
		nullStringPtr(request.MeetingLink),
		nullStringPtr(request.Location),
		nullStringPtr(request.DisapproveReason),
		nullTimePtr(request.CompletedAt),
		request.CreatedAt.Format(time.RFC3339),
		request.UpdatedAt.Format(time.RFC3339),
	}
}

func (r *RequestRepository) scanRequest(row rowScanner) (persistence.Request, error) {
	var (
		request                          persistence.Request
		kind, status                     string
		topic, message                   sql.NullString
		reply, threadStatus              sql.NullString
		repliedAt, completedAt           sql.NullString
		sessionMode, reason              sql.NullString
		meetDate, meetTime               sql.NullString
		staffID, notes                   sql.NullString
		meetingLink, location            sql.NullString
		disapproveReason                 sql.NullString
		createdAtStr, updatedAtStr       string
	)

	err := row.Scan(
		&request.ID,
		&request.RequesterID,
		&kind,
		&status,
		&topic,
		&message,
		&request.Anonymous,
		&reply,
		&repliedAt,
		&threadStatus,
		&sessionMode,
		&reason,
		&meetDate,
		&meetTime,
		&staffID,
		&notes,
		&meetingLink,
		&location,
		&disapproveReason,
		&completedAt,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.Request{}, persistence.ErrNotFound
		}
		return persistence.Request{}, r.mapper.MapError(err)
	}

	request.Kind = counseling.Kind(kind)
	request.Status = counseling.Status(status)
	request.Topic = topic.String
	request.Message = message.String
	request.SessionMode = counseling.SessionMode(sessionMode.String)
	request.Reason = reason.String
	request.MeetDate = meetDate.String
	request.MeetTime = meetTime.String
	request.StaffID = staffID.String
	request.Notes = notes.String

	if reply.Valid {
		request.Reply = &reply.String
	}
	if threadStatus.Valid {
		ts := counseling.ThreadStatus(threadStatus.String)
		request.ThreadStatus = &ts
	}
	if meetingLink.Valid {
		request.MeetingLink = &meetingLink.String
	}
	if location.Valid {
		request.Location = &location.String
	}
	if disapproveReason.Valid {
		request.DisapproveReason = &disapproveReason.String
	}

	if request.RepliedAt, err = parseTimePtr(repliedAt); err != nil {
		return persistence.Request{}, fmt.Errorf("failed to parse replied_at: %w", err)
	}
	if request.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return persistence.Request{}, fmt.Errorf("failed to parse completed_at: %w", err)
	}
	if request.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Request{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if request.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Request{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return request, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullThreadStatus(ts *counseling.ThreadStatus) sql.NullString {
	if ts == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*ts), Valid: true}
}

func nullTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseTimePtr(value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
