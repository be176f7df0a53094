package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/Criozon/q-app/internal/models"
	"github.com/Criozon/q-app/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const memberColumns = `member_id, queue_id, ticket_number, display_code, member_name, status, service_id, assigned_window_id, created_at, called_at, acknowledged_at, serviced_at`

func (s *Store) JoinQueue(ctx context.Context, input store.JoinQueueInput) (models.Member, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Member{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, err := findMemberByRequestID(ctx, tx, input.RequestID)
	if err != nil {
		return models.Member{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Member{}, false, err
		}
		return existing, false, nil
	}

	// Locking the queue row serializes joins against a concurrent pause:
	// the paused check and the insert commit or roll back together.
	var status string
	row := tx.QueryRow(ctx, `
		SELECT status FROM queues WHERE queue_id = $1 FOR UPDATE
	`, input.QueueID)
	if err = row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Member{}, false, store.ErrQueueNotFound
		}
		return models.Member{}, false, err
	}
	if status == models.QueuePaused {
		err = store.ErrQueuePaused
		return models.Member{}, false, err
	}

	if input.ServiceID != "" {
		if err = ensureServiceInQueue(ctx, tx, input.QueueID, input.ServiceID); err != nil {
			return models.Member{}, false, err
		}
	}

	ticketNumber, err := nextTicketNumber(ctx, tx, input.QueueID)
	if err != nil {
		return models.Member{}, false, err
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	member := models.Member{
		MemberID:     uuid.NewString(),
		QueueID:      input.QueueID,
		TicketNumber: ticketNumber,
		DisplayCode:  store.NewDisplayCode(),
		Name:         input.MemberName,
		Status:       models.StatusWaiting,
		CreatedAt:    createdAt,
		RequestID:    input.RequestID,
	}
	if input.ServiceID != "" {
		serviceID := input.ServiceID
		member.ServiceID = &serviceID
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO queue_members (
			member_id, request_id, queue_id, ticket_number, display_code,
			member_name, status, service_id, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, member.MemberID, input.RequestID, member.QueueID, member.TicketNumber, member.DisplayCode,
		member.Name, member.Status, nullIfEmpty(input.ServiceID), createdAt)
	if err != nil {
		return models.Member{}, false, err
	}

	if err = insertMemberFeedEvent(ctx, tx, store.FeedInsert, member, nil); err != nil {
		return models.Member{}, false, err
	}
	if err = insertMemberEvent(ctx, tx, member, "member.created"); err != nil {
		return models.Member{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Member{}, false, err
	}
	return member, true, nil
}

func (s *Store) CallNext(ctx context.Context, input store.CallNextInput) (models.Member, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Member{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findActionRequest(ctx, tx, "call_next", input.RequestID)
	if err != nil {
		return models.Member{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Member{}, false, err
		}
		if empty {
			return models.Member{}, false, store.ErrNoMember
		}
		return existing, false, nil
	}

	queueID, err := lockWindow(ctx, tx, input.WindowID)
	if err != nil {
		return models.Member{}, false, err
	}

	busy, err := windowOccupied(ctx, tx, input.WindowID)
	if err != nil {
		return models.Member{}, false, err
	}
	if busy {
		err = store.ErrWindowBusy
		return models.Member{}, false, err
	}

	calledAt := input.CalledAt
	if calledAt.IsZero() {
		calledAt = time.Now().UTC()
	}

	// Strict FIFO: the smallest ticket number among waiting members whose
	// service the window may serve. A member with no service preference is
	// eligible at every window; a window with no service restriction serves
	// everything.
	var member models.Member
	row := tx.QueryRow(ctx, `
		WITH next_member AS (
			SELECT m.member_id
			FROM queue_members m
			WHERE m.queue_id = $1 AND m.status = 'waiting'
				AND (
					m.service_id IS NULL
					OR NOT EXISTS (SELECT 1 FROM window_services ws WHERE ws.window_id = $2)
					OR EXISTS (SELECT 1 FROM window_services ws WHERE ws.window_id = $2 AND ws.service_id = m.service_id)
				)
			ORDER BY m.ticket_number ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE queue_members
		SET status = 'called',
			assigned_window_id = $2,
			called_at = $3
		FROM next_member
		WHERE queue_members.member_id = next_member.member_id
		RETURNING `+qualifiedMemberColumns("queue_members"),
		queueID, input.WindowID, calledAt)
	member, err = scanMember(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if err = insertActionRequest(ctx, tx, "call_next", input.RequestID, queueID, input.WindowID, ""); err != nil {
				return models.Member{}, false, err
			}
			if err = tx.Commit(ctx); err != nil {
				return models.Member{}, false, err
			}
			return models.Member{}, false, store.ErrNoMember
		}
		return models.Member{}, false, err
	}
	member.RequestID = input.RequestID

	if err = insertActionRequest(ctx, tx, "call_next", input.RequestID, queueID, input.WindowID, member.MemberID); err != nil {
		return models.Member{}, false, err
	}
	if err = insertMemberFeedEvent(ctx, tx, store.FeedUpdate, member, nil); err != nil {
		return models.Member{}, false, err
	}
	if err = insertMemberEvent(ctx, tx, member, "member.called"); err != nil {
		return models.Member{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Member{}, false, err
	}
	return member, true, nil
}

func (s *Store) CallSpecific(ctx context.Context, input store.CallSpecificInput) (models.Member, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Member{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findActionRequest(ctx, tx, "call_specific", input.RequestID)
	if err != nil {
		return models.Member{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Member{}, false, err
		}
		if empty {
			return models.Member{}, false, store.ErrInvalidState
		}
		return existing, false, nil
	}

	queueID, err := lockWindow(ctx, tx, input.WindowID)
	if err != nil {
		return models.Member{}, false, err
	}

	// The client pre-flights this check for responsiveness; it is re-validated
	// here because the client's view may be stale.
	busy, err := windowOccupied(ctx, tx, input.WindowID)
	if err != nil {
		return models.Member{}, false, err
	}
	if busy {
		err = store.ErrWindowBusy
		return models.Member{}, false, err
	}

	calledAt := input.CalledAt
	if calledAt.IsZero() {
		calledAt = time.Now().UTC()
	}

	row := tx.QueryRow(ctx, `
		UPDATE queue_members
		SET status = 'called',
			assigned_window_id = $1,
			called_at = $2
		WHERE member_id = $3 AND queue_id = $4 AND status = 'waiting'
		RETURNING `+memberColumns,
		input.WindowID, calledAt, input.MemberID, queueID)
	member, err := scanMember(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = diagnoseMember(ctx, tx, input.MemberID, queueID)
			return models.Member{}, false, err
		}
		return models.Member{}, false, err
	}
	member.RequestID = input.RequestID

	if err = insertActionRequest(ctx, tx, "call_specific", input.RequestID, queueID, input.WindowID, member.MemberID); err != nil {
		return models.Member{}, false, err
	}
	if err = insertMemberFeedEvent(ctx, tx, store.FeedUpdate, member, nil); err != nil {
		return models.Member{}, false, err
	}
	if err = insertMemberEvent(ctx, tx, member, "member.called"); err != nil {
		return models.Member{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Member{}, false, err
	}
	return member, true, nil
}

func (s *Store) Acknowledge(ctx context.Context, input store.MemberActionInput) (models.Member, bool, error) {
	occurredAt := occurredOrNow(input.OccurredAt)
	return s.updateMemberStatus(ctx, input, "acknowledge", "member.acknowledged", `
		UPDATE queue_members
		SET status = 'acknowledged',
			acknowledged_at = $1
		WHERE member_id = $2 AND status = 'called'
		RETURNING `+memberColumns, occurredAt, input.MemberID)
}

func (s *Store) ReturnToWaiting(ctx context.Context, input store.MemberActionInput) (models.Member, bool, error) {
	// The member keeps its ticket number, so it does not lose its place.
	return s.updateMemberStatus(ctx, input, "return", "member.returned", `
		UPDATE queue_members
		SET status = 'waiting',
			assigned_window_id = NULL,
			called_at = NULL,
			acknowledged_at = NULL
		WHERE member_id = $1 AND status IN ('called','acknowledged')
		RETURNING `+memberColumns, input.MemberID)
}

func (s *Store) Complete(ctx context.Context, input store.MemberActionInput) (models.Member, bool, error) {
	// assigned_window_id is retained for history; serviced is terminal.
	occurredAt := occurredOrNow(input.OccurredAt)
	return s.updateMemberStatus(ctx, input, "complete", "member.serviced", `
		UPDATE queue_members
		SET status = 'serviced',
			serviced_at = $1
		WHERE member_id = $2 AND status IN ('called','acknowledged')
		RETURNING `+memberColumns, occurredAt, input.MemberID)
}

func (s *Store) updateMemberStatus(ctx context.Context, input store.MemberActionInput, action, eventType, query string, args ...interface{}) (models.Member, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Member{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findActionRequest(ctx, tx, action, input.RequestID)
	if err != nil {
		return models.Member{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Member{}, false, err
		}
		if empty {
			return models.Member{}, false, store.ErrInvalidState
		}
		return existing, false, nil
	}

	row := tx.QueryRow(ctx, query, args...)
	member, err := scanMember(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = diagnoseMember(ctx, tx, input.MemberID, "")
			return models.Member{}, false, err
		}
		return models.Member{}, false, err
	}
	if input.QueueID != "" && member.QueueID != input.QueueID {
		err = store.ErrMemberNotFound
		return models.Member{}, false, err
	}
	member.RequestID = input.RequestID

	if err = insertActionRequest(ctx, tx, action, input.RequestID, member.QueueID, "", member.MemberID); err != nil {
		return models.Member{}, false, err
	}
	if err = insertMemberFeedEvent(ctx, tx, store.FeedUpdate, member, nil); err != nil {
		return models.Member{}, false, err
	}
	if err = insertMemberEvent(ctx, tx, member, eventType); err != nil {
		return models.Member{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Member{}, false, err
	}
	return member, true, nil
}

func (s *Store) RemoveMember(ctx context.Context, input store.MemberActionInput) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, found, _, err := findActionRequest(ctx, tx, "remove", input.RequestID)
	if err != nil {
		return err
	}
	if found {
		return tx.Commit(ctx)
	}

	row := tx.QueryRow(ctx, `
		DELETE FROM queue_members
		WHERE member_id = $1 AND status <> 'serviced'
		RETURNING `+memberColumns, input.MemberID)
	member, err := scanMember(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = diagnoseMember(ctx, tx, input.MemberID, "")
			return err
		}
		return err
	}

	if input.QueueID != "" && member.QueueID != input.QueueID {
		err = store.ErrMemberNotFound
		return err
	}

	if err = insertActionRequest(ctx, tx, "remove", input.RequestID, member.QueueID, "", member.MemberID); err != nil {
		return err
	}
	// Removal is a hard delete; the feed carries the old row so every client
	// can drop it and any session pointer referencing it can be invalidated.
	if err = insertMemberFeedEvent(ctx, tx, store.FeedDelete, models.Member{}, &member); err != nil {
		return err
	}
	if err = insertMemberEvent(ctx, tx, member, "member.removed"); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) ResolveSession(ctx context.Context, queueID, memberID string) (store.SessionState, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+memberColumns+`
		FROM queue_members
		WHERE member_id = $1 AND queue_id = $2
	`, memberID, queueID)
	member, err := scanMember(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.SessionState{Active: false}, nil
		}
		return store.SessionState{}, err
	}
	if member.Status == models.StatusServiced {
		return store.SessionState{Active: false, Member: member}, nil
	}
	return store.SessionState{Active: true, Member: member}, nil
}

func lockWindow(ctx context.Context, tx pgx.Tx, windowID string) (string, error) {
	// The row lock serializes concurrent call attempts on one window, so the
	// occupancy check below cannot race with another operator.
	var queueID string
	row := tx.QueryRow(ctx, `
		SELECT queue_id FROM windows WHERE window_id = $1 FOR UPDATE
	`, windowID)
	if err := row.Scan(&queueID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", store.ErrWindowNotFound
		}
		return "", err
	}
	return queueID, nil
}

func windowOccupied(ctx context.Context, tx pgx.Tx, windowID string) (bool, error) {
	var occupied bool
	row := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM queue_members
			WHERE assigned_window_id = $1 AND status IN ('called','acknowledged')
		)
	`, windowID)
	if err := row.Scan(&occupied); err != nil {
		return false, err
	}
	return occupied, nil
}

func ensureServiceInQueue(ctx context.Context, tx pgx.Tx, queueID, serviceID string) error {
	var id string
	row := tx.QueryRow(ctx, `
		SELECT service_id FROM services WHERE service_id = $1 AND queue_id = $2
	`, serviceID, queueID)
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrServiceNotFound
		}
		return err
	}
	return nil
}

// diagnoseMember explains why a conditional update matched nothing.
func diagnoseMember(ctx context.Context, tx pgx.Tx, memberID, queueID string) error {
	query := `SELECT status FROM queue_members WHERE member_id = $1`
	args := []interface{}{memberID}
	if queueID != "" {
		query += ` AND queue_id = $2`
		args = append(args, queueID)
	}
	var status string
	row := tx.QueryRow(ctx, query, args...)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrMemberNotFound
		}
		return err
	}
	return store.ErrInvalidState
}

func nextTicketNumber(ctx context.Context, tx pgx.Tx, queueID string) (int64, error) {
	var next int64
	row := tx.QueryRow(ctx, `
		INSERT INTO queue_member_sequences (queue_id, next_number)
		VALUES ($1, 1)
		ON CONFLICT (queue_id)
		DO UPDATE SET next_number = queue_member_sequences.next_number + 1
		RETURNING next_number
	`, queueID)
	if err := row.Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

func findMemberByRequestID(ctx context.Context, tx pgx.Tx, requestID string) (models.Member, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+memberColumns+`
		FROM queue_members
		WHERE request_id = $1
	`, requestID)
	member, err := scanMember(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Member{}, false, nil
		}
		return models.Member{}, false, err
	}
	member.RequestID = requestID
	return member, true, nil
}

func findActionRequest(ctx context.Context, tx pgx.Tx, action, requestID string) (models.Member, bool, bool, error) {
	var memberID sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT member_id
		FROM member_action_requests
		WHERE request_id = $1 AND action = $2
	`, requestID, action)
	if err := row.Scan(&memberID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Member{}, false, false, nil
		}
		return models.Member{}, false, false, err
	}
	if !memberID.Valid {
		return models.Member{}, true, true, nil
	}

	row = tx.QueryRow(ctx, `
		SELECT `+memberColumns+`
		FROM queue_members
		WHERE member_id = $1
	`, memberID.String)
	member, err := scanMember(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The member was removed after the recorded action; replay the
			// request id as applied with no row to return.
			return models.Member{}, true, true, nil
		}
		return models.Member{}, false, false, err
	}
	member.RequestID = requestID
	return member, true, false, nil
}

func insertActionRequest(ctx context.Context, tx pgx.Tx, action, requestID, queueID, windowID, memberID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO member_action_requests (request_id, action, queue_id, window_id, member_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (request_id, action) DO NOTHING
	`, requestID, action, nullIfEmpty(queueID), nullIfEmpty(windowID), nullIfEmpty(memberID))
	return err
}

func insertMemberFeedEvent(ctx context.Context, tx pgx.Tx, kind string, member models.Member, old *models.Member) error {
	queueID := member.QueueID
	var newRow, oldRow []byte
	var err error
	if kind != store.FeedDelete {
		if newRow, err = json.Marshal(member); err != nil {
			return err
		}
	}
	if old != nil {
		queueID = old.QueueID
		if oldRow, err = json.Marshal(old); err != nil {
			return err
		}
	}
	return insertFeedEvent(ctx, tx, queueID, "queue_members", kind, newRow, oldRow)
}

func insertFeedEvent(ctx context.Context, tx pgx.Tx, queueID, table, kind string, newRow, oldRow []byte) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO feed_events (event_id, queue_id, table_name, kind, new_row, old_row, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.NewString(), queueID, table, kind, nullIfEmptyBytes(newRow), nullIfEmptyBytes(oldRow), time.Now().UTC())
	return err
}

func insertMemberEvent(ctx context.Context, tx pgx.Tx, member models.Member, eventType string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, member.MemberID); err != nil {
		return err
	}

	payload, err := store.MemberEventPayload(member)
	if err != nil {
		return err
	}

	var lastSeq int
	var prevHash sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT seq, hash
		FROM member_events
		WHERE member_id = $1
		ORDER BY seq DESC
		LIMIT 1
		FOR UPDATE
	`, member.MemberID)
	if err := row.Scan(&lastSeq, &prevHash); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	nextSeq := lastSeq + 1
	prev := ""
	if prevHash.Valid {
		prev = prevHash.String
	}
	createdAt := time.Now().UTC()
	hash := store.ComputeMemberEventHash(prev, member.MemberID, eventType, payload, createdAt, nextSeq)

	_, err = tx.Exec(ctx, `
		INSERT INTO member_events (member_id, seq, type, payload, created_at, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, member.MemberID, nextSeq, eventType, payload, createdAt, prev, hash)
	return err
}

func (s *Store) ListMemberEvents(ctx context.Context, memberID string) ([]store.MemberEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT member_id, seq, type, payload, created_at, prev_hash, hash
		FROM member_events
		WHERE member_id = $1
		ORDER BY seq ASC
	`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.MemberEvent
	for rows.Next() {
		var event store.MemberEvent
		if err := rows.Scan(&event.MemberID, &event.Seq, &event.Type, &event.Payload, &event.CreatedAt, &event.PrevHash, &event.Hash); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) ListFeedEvents(ctx context.Context, after store.FeedOffset, limit int) ([]store.FeedEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, queue_id, table_name, kind, new_row, old_row, created_at
		FROM feed_events
		WHERE (created_at, event_id) > ($1, $2)
		ORDER BY created_at ASC, event_id ASC
		LIMIT $3
	`, after.LastEventTime, after.LastEventID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.FeedEvent
	for rows.Next() {
		var event store.FeedEvent
		var newRow, oldRow []byte
		if err := rows.Scan(&event.EventID, &event.QueueID, &event.Table, &event.Kind, &newRow, &oldRow, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.New = newRow
		event.Old = oldRow
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) GetFeedOffset(ctx context.Context) (store.FeedOffset, error) {
	var offset store.FeedOffset
	row := s.pool.QueryRow(ctx, `
		SELECT last_event_time, last_event_id FROM feed_offsets WHERE id = 1
	`)
	if err := row.Scan(&offset.LastEventTime, &offset.LastEventID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.FeedOffset{}, nil
		}
		return store.FeedOffset{}, err
	}
	return offset, nil
}

func (s *Store) UpdateFeedOffset(ctx context.Context, offset store.FeedOffset) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO feed_offsets (id, last_event_time, last_event_id)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE
		SET last_event_time = EXCLUDED.last_event_time,
			last_event_id = EXCLUDED.last_event_id
	`, offset.LastEventTime, offset.LastEventID)
	return err
}

func (s *Store) CleanupFeed(ctx context.Context, before time.Time) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM feed_events WHERE created_at < $1
	`, before)
	return err
}

func qualifiedMemberColumns(table string) string {
	return table + `.member_id, ` + table + `.queue_id, ` + table + `.ticket_number, ` +
		table + `.display_code, ` + table + `.member_name, ` + table + `.status, ` +
		table + `.service_id, ` + table + `.assigned_window_id, ` + table + `.created_at, ` +
		table + `.called_at, ` + table + `.acknowledged_at, ` + table + `.serviced_at`
}

func scanMember(row pgx.Row) (models.Member, error) {
	var member models.Member
	var serviceID sql.NullString
	var windowID sql.NullString
	var calledAt sql.NullTime
	var acknowledgedAt sql.NullTime
	var servicedAt sql.NullTime
	if err := row.Scan(&member.MemberID, &member.QueueID, &member.TicketNumber, &member.DisplayCode,
		&member.Name, &member.Status, &serviceID, &windowID, &member.CreatedAt,
		&calledAt, &acknowledgedAt, &servicedAt); err != nil {
		return models.Member{}, err
	}
	member.ServiceID = nullStringPtr(serviceID)
	member.AssignedWindowID = nullStringPtr(windowID)
	member.CalledAt = nullTimePtr(calledAt)
	member.AcknowledgedAt = nullTimePtr(acknowledgedAt)
	member.ServicedAt = nullTimePtr(servicedAt)
	return member, nil
}

func occurredOrNow(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now().UTC()
	}
	return value
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullIfEmptyBytes(value []byte) interface{} {
	if len(value) == 0 {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	return &value.Time
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}
