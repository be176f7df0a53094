package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Criozon/q-app/internal/models"
	"github.com/Criozon/q-app/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const queueColumns = `queue_id, name, description, status, short_id, admin_secret_key, window_count, created_at`

func (s *Store) CreateQueue(ctx context.Context, input store.CreateQueueInput) (store.CreateQueueResult, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return store.CreateQueueResult{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, err := findQueueByRequestID(ctx, tx, input.RequestID)
	if err != nil {
		return store.CreateQueueResult{}, false, err
	}
	if found {
		result, err := loadQueueSetup(ctx, tx, existing)
		if err != nil {
			return store.CreateQueueResult{}, false, err
		}
		if err = tx.Commit(ctx); err != nil {
			return store.CreateQueueResult{}, false, err
		}
		return result, false, nil
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	queue := models.Queue{
		QueueID:        uuid.NewString(),
		Name:           input.Name,
		Description:    input.Description,
		Status:         models.QueueActive,
		ShortID:        store.NewShortID(),
		AdminSecretKey: store.NewSecretKey(),
		WindowCount:    input.WindowCount,
		CreatedAt:      createdAt,
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO queues (queue_id, request_id, name, description, status, short_id, admin_secret_key, window_count, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, queue.QueueID, input.RequestID, queue.Name, queue.Description, queue.Status,
		queue.ShortID, queue.AdminSecretKey, queue.WindowCount, createdAt)
	if err != nil {
		return store.CreateQueueResult{}, false, err
	}

	windows := make([]models.Window, 0, input.WindowCount)
	for i := 1; i <= input.WindowCount; i++ {
		window := models.Window{
			WindowID: uuid.NewString(),
			QueueID:  queue.QueueID,
			Name:     fmt.Sprintf("Window %d", i),
			ShortKey: store.NewSecretKey(),
		}
		if _, err = tx.Exec(ctx, `
			INSERT INTO windows (window_id, queue_id, name, short_key)
			VALUES ($1,$2,$3,$4)
		`, window.WindowID, window.QueueID, window.Name, window.ShortKey); err != nil {
			return store.CreateQueueResult{}, false, err
		}
		windows = append(windows, window)
	}

	services := make([]models.Service, 0, len(input.Services))
	for _, setup := range input.Services {
		service := models.Service{
			ServiceID: uuid.NewString(),
			QueueID:   queue.QueueID,
			Name:      setup.Name,
		}
		if _, err = tx.Exec(ctx, `
			INSERT INTO services (service_id, queue_id, name)
			VALUES ($1,$2,$3)
		`, service.ServiceID, service.QueueID, service.Name); err != nil {
			return store.CreateQueueResult{}, false, err
		}
		for _, number := range setup.WindowNumbers {
			if number < 1 || number > len(windows) {
				continue
			}
			window := &windows[number-1]
			if _, err = tx.Exec(ctx, `
				INSERT INTO window_services (window_id, service_id)
				VALUES ($1,$2)
				ON CONFLICT DO NOTHING
			`, window.WindowID, service.ServiceID); err != nil {
				return store.CreateQueueResult{}, false, err
			}
			window.ServiceIDs = append(window.ServiceIDs, service.ServiceID)
			service.WindowIDs = append(service.WindowIDs, window.WindowID)
		}
		services = append(services, service)
	}

	if err = insertQueueFeedEvent(ctx, tx, store.FeedInsert, queue, nil); err != nil {
		return store.CreateQueueResult{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return store.CreateQueueResult{}, false, err
	}
	return store.CreateQueueResult{Queue: queue, Windows: windows, Services: services}, true, nil
}

func (s *Store) GetQueueBySecret(ctx context.Context, secret string) (models.Queue, error) {
	return s.getQueue(ctx, `WHERE admin_secret_key = $1`, secret)
}

func (s *Store) GetQueueByShortID(ctx context.Context, shortID string) (models.Queue, error) {
	return s.getQueue(ctx, `WHERE short_id = $1`, shortID)
}

func (s *Store) getQueue(ctx context.Context, where string, arg interface{}) (models.Queue, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+queueColumns+` FROM queues `+where, arg)
	queue, err := scanQueue(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Queue{}, store.ErrQueueNotFound
		}
		return models.Queue{}, err
	}
	return queue, nil
}

// JoinDetails returns the public join-page view: no admin secret, no window
// keys, just what a participant needs before entering the line.
func (s *Store) JoinDetails(ctx context.Context, shortID string) (store.JoinDetails, error) {
	queue, err := s.GetQueueByShortID(ctx, shortID)
	if err != nil {
		return store.JoinDetails{}, err
	}

	services, err := s.ListServices(ctx, queue.QueueID)
	if err != nil {
		return store.JoinDetails{}, err
	}

	var waiting int
	row := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM queue_members WHERE queue_id = $1 AND status = 'waiting'
	`, queue.QueueID)
	if err := row.Scan(&waiting); err != nil {
		return store.JoinDetails{}, err
	}

	return store.JoinDetails{
		QueueID:      queue.QueueID,
		Name:         queue.Name,
		Description:  queue.Description,
		Status:       queue.Status,
		Services:     services,
		WaitingCount: waiting,
	}, nil
}

func (s *Store) SetQueueStatus(ctx context.Context, queueID, status string) (models.Queue, error) {
	if status != models.QueueActive && status != models.QueuePaused {
		return models.Queue{}, store.ErrInvalidState
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Queue{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `
		UPDATE queues SET status = $1 WHERE queue_id = $2
		RETURNING `+queueColumns, status, queueID)
	queue, err := scanQueue(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Queue{}, store.ErrQueueNotFound
		}
		return models.Queue{}, err
	}

	if err = insertQueueFeedEvent(ctx, tx, store.FeedUpdate, queue, nil); err != nil {
		return models.Queue{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Queue{}, err
	}
	return queue, nil
}

func (s *Store) DeleteQueue(ctx context.Context, queueID string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `
		SELECT `+queueColumns+` FROM queues WHERE queue_id = $1 FOR UPDATE
	`, queueID)
	queue, err := scanQueue(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrQueueNotFound
		}
		return err
	}

	// Cascade: members, the window-service join table, windows, services, and
	// the ticket sequence all go with the queue. No orphans remain.
	statements := []string{
		`DELETE FROM queue_members WHERE queue_id = $1`,
		`DELETE FROM window_services WHERE window_id IN (SELECT window_id FROM windows WHERE queue_id = $1)`,
		`DELETE FROM windows WHERE queue_id = $1`,
		`DELETE FROM services WHERE queue_id = $1`,
		`DELETE FROM queue_member_sequences WHERE queue_id = $1`,
		`DELETE FROM queues WHERE queue_id = $1`,
	}
	for _, statement := range statements {
		if _, err = tx.Exec(ctx, statement, queueID); err != nil {
			return err
		}
	}

	// The delete event is the terminal notification: subscribed clients tear
	// down their sessions when they see it.
	if err = insertQueueFeedEvent(ctx, tx, store.FeedDelete, models.Queue{}, &queue); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) GetMember(ctx context.Context, memberID string) (store.MemberDetail, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+qualifiedMemberColumns("m")+`,
			COALESCE(sv.name, ''), COALESCE(w.name, ''),
			q.queue_id, q.name, q.description, q.status, q.short_id, q.window_count, q.created_at
		FROM queue_members m
		JOIN queues q ON q.queue_id = m.queue_id
		LEFT JOIN services sv ON sv.service_id = m.service_id
		LEFT JOIN windows w ON w.window_id = m.assigned_window_id
		WHERE m.member_id = $1
	`, memberID)

	var detail store.MemberDetail
	var member models.Member
	var serviceID, windowID, serviceName, windowName sql.NullString
	var calledAt, acknowledgedAt, servicedAt sql.NullTime
	if err := row.Scan(&member.MemberID, &member.QueueID, &member.TicketNumber, &member.DisplayCode,
		&member.Name, &member.Status, &serviceID, &windowID, &member.CreatedAt,
		&calledAt, &acknowledgedAt, &servicedAt,
		&serviceName, &windowName,
		&detail.Queue.QueueID, &detail.Queue.Name, &detail.Queue.Description, &detail.Queue.Status,
		&detail.Queue.ShortID, &detail.Queue.WindowCount, &detail.Queue.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.MemberDetail{}, store.ErrMemberNotFound
		}
		return store.MemberDetail{}, err
	}
	member.ServiceID = nullStringPtr(serviceID)
	member.AssignedWindowID = nullStringPtr(windowID)
	member.CalledAt = nullTimePtr(calledAt)
	member.AcknowledgedAt = nullTimePtr(acknowledgedAt)
	member.ServicedAt = nullTimePtr(servicedAt)
	member.ServiceName = serviceName.String
	member.WindowName = windowName.String
	detail.Member = member

	row = s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM queue_members
		WHERE queue_id = $1 AND status = 'waiting' AND ticket_number < $2
	`, member.QueueID, member.TicketNumber)
	if err := row.Scan(&detail.WaitingAhead); err != nil {
		return store.MemberDetail{}, err
	}
	return detail, nil
}

func (s *Store) ListMembers(ctx context.Context, queueID string) ([]models.Member, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+qualifiedMemberColumns("m")+`, COALESCE(sv.name, ''), COALESCE(w.name, '')
		FROM queue_members m
		LEFT JOIN services sv ON sv.service_id = m.service_id
		LEFT JOIN windows w ON w.window_id = m.assigned_window_id
		WHERE m.queue_id = $1
		ORDER BY m.ticket_number ASC
	`, queueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMembersWithNames(rows)
}

func (s *Store) GetWindowByKey(ctx context.Context, shortKey string) (models.Window, models.Queue, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT w.window_id, w.queue_id, w.name, w.short_key, `+prefixedQueueColumns("q")+`
		FROM windows w
		JOIN queues q ON q.queue_id = w.queue_id
		WHERE w.short_key = $1
	`, shortKey)

	var window models.Window
	var queue models.Queue
	if err := row.Scan(&window.WindowID, &window.QueueID, &window.Name, &window.ShortKey,
		&queue.QueueID, &queue.Name, &queue.Description, &queue.Status, &queue.ShortID,
		&queue.AdminSecretKey, &queue.WindowCount, &queue.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Window{}, models.Queue{}, store.ErrWindowNotFound
		}
		return models.Window{}, models.Queue{}, err
	}
	// The operator panel is keyed by the window secret; the queue's own admin
	// secret is not part of that capability.
	queue.AdminSecretKey = ""

	serviceIDs, err := s.windowServiceIDs(ctx, window.WindowID)
	if err != nil {
		return models.Window{}, models.Queue{}, err
	}
	window.ServiceIDs = serviceIDs
	return window, queue, nil
}

// WindowPanel loads everything a window-operator screen needs in one round
// trip: the window, its queue, the eligible waiting members, and whatever is
// assigned to this window right now.
func (s *Store) WindowPanel(ctx context.Context, shortKey string) (store.WindowPanel, error) {
	window, queue, err := s.GetWindowByKey(ctx, shortKey)
	if err != nil {
		return store.WindowPanel{}, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+qualifiedMemberColumns("m")+`, COALESCE(sv.name, ''), COALESCE(w.name, '')
		FROM queue_members m
		LEFT JOIN services sv ON sv.service_id = m.service_id
		LEFT JOIN windows w ON w.window_id = m.assigned_window_id
		WHERE m.queue_id = $1 AND (
			m.assigned_window_id = $2
			OR (m.status = 'waiting' AND (
				m.service_id IS NULL
				OR NOT EXISTS (SELECT 1 FROM window_services ws WHERE ws.window_id = $2)
				OR EXISTS (SELECT 1 FROM window_services ws WHERE ws.window_id = $2 AND ws.service_id = m.service_id)
			))
		)
		ORDER BY m.ticket_number ASC
	`, queue.QueueID, window.WindowID)
	if err != nil {
		return store.WindowPanel{}, err
	}
	defer rows.Close()

	members, err := collectMembersWithNames(rows)
	if err != nil {
		return store.WindowPanel{}, err
	}
	return store.WindowPanel{Window: window, Queue: queue, Members: members}, nil
}

func (s *Store) AddWindows(ctx context.Context, queueID string, count int) ([]models.Window, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var current int
	row := tx.QueryRow(ctx, `
		SELECT window_count FROM queues WHERE queue_id = $1 FOR UPDATE
	`, queueID)
	if err = row.Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrQueueNotFound
		}
		return nil, err
	}

	windows := make([]models.Window, 0, count)
	for i := 1; i <= count; i++ {
		window := models.Window{
			WindowID: uuid.NewString(),
			QueueID:  queueID,
			Name:     fmt.Sprintf("Window %d", current+i),
			ShortKey: store.NewSecretKey(),
		}
		if _, err = tx.Exec(ctx, `
			INSERT INTO windows (window_id, queue_id, name, short_key)
			VALUES ($1,$2,$3,$4)
		`, window.WindowID, window.QueueID, window.Name, window.ShortKey); err != nil {
			return nil, err
		}
		payload, marshalErr := json.Marshal(window)
		if marshalErr != nil {
			err = marshalErr
			return nil, err
		}
		if err = insertFeedEvent(ctx, tx, queueID, "windows", store.FeedInsert, payload, nil); err != nil {
			return nil, err
		}
		windows = append(windows, window)
	}

	if _, err = tx.Exec(ctx, `
		UPDATE queues SET window_count = $1 WHERE queue_id = $2
	`, current+count, queueID); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return windows, nil
}

func (s *Store) ListWindows(ctx context.Context, queueID string) ([]models.Window, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT w.window_id, w.queue_id, w.name, w.short_key, ws.service_id
		FROM windows w
		LEFT JOIN window_services ws ON ws.window_id = w.window_id
		WHERE w.queue_id = $1
		ORDER BY w.name ASC
	`, queueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var windows []models.Window
	index := make(map[string]int)
	for rows.Next() {
		var window models.Window
		var serviceID sql.NullString
		if err := rows.Scan(&window.WindowID, &window.QueueID, &window.Name, &window.ShortKey, &serviceID); err != nil {
			return nil, err
		}
		pos, ok := index[window.WindowID]
		if !ok {
			pos = len(windows)
			index[window.WindowID] = pos
			windows = append(windows, window)
		}
		if serviceID.Valid {
			windows[pos].ServiceIDs = append(windows[pos].ServiceIDs, serviceID.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return windows, nil
}

func (s *Store) AddService(ctx context.Context, queueID, name string) (models.Service, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Service{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var exists bool
	row := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM queues WHERE queue_id = $1)`, queueID)
	if err = row.Scan(&exists); err != nil {
		return models.Service{}, err
	}
	if !exists {
		err = store.ErrQueueNotFound
		return models.Service{}, err
	}

	service := models.Service{
		ServiceID: uuid.NewString(),
		QueueID:   queueID,
		Name:      name,
	}
	if _, err = tx.Exec(ctx, `
		INSERT INTO services (service_id, queue_id, name)
		VALUES ($1,$2,$3)
	`, service.ServiceID, service.QueueID, service.Name); err != nil {
		return models.Service{}, err
	}

	payload, err := json.Marshal(service)
	if err != nil {
		return models.Service{}, err
	}
	if err = insertFeedEvent(ctx, tx, queueID, "services", store.FeedInsert, payload, nil); err != nil {
		return models.Service{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Service{}, err
	}
	return service, nil
}

func (s *Store) RemoveService(ctx context.Context, queueID, serviceID string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `
		DELETE FROM window_services WHERE service_id = $1
	`, serviceID); err != nil {
		return err
	}

	// Members that already requested this service keep their stored reference;
	// only the display join stops resolving a name.
	var service models.Service
	row := tx.QueryRow(ctx, `
		DELETE FROM services WHERE service_id = $1 AND queue_id = $2
		RETURNING service_id, queue_id, name
	`, serviceID, queueID)
	if err = row.Scan(&service.ServiceID, &service.QueueID, &service.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrServiceNotFound
		}
		return err
	}

	payload, err := json.Marshal(service)
	if err != nil {
		return err
	}
	if err = insertFeedEvent(ctx, tx, queueID, "services", store.FeedDelete, nil, payload); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) ListServices(ctx context.Context, queueID string) ([]models.Service, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.service_id, s.queue_id, s.name, ws.window_id
		FROM services s
		LEFT JOIN window_services ws ON ws.service_id = s.service_id
		WHERE s.queue_id = $1
		ORDER BY s.name ASC
	`, queueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []models.Service
	index := make(map[string]int)
	for rows.Next() {
		var service models.Service
		var windowID sql.NullString
		if err := rows.Scan(&service.ServiceID, &service.QueueID, &service.Name, &windowID); err != nil {
			return nil, err
		}
		pos, ok := index[service.ServiceID]
		if !ok {
			pos = len(services)
			index[service.ServiceID] = pos
			services = append(services, service)
		}
		if windowID.Valid {
			services[pos].WindowIDs = append(services[pos].WindowIDs, windowID.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return services, nil
}

// SetWindowServices replaces the full service list for a window. A change in
// the mapping alters dispatch eligibility for many members at once, so the
// feed event names the join table and clients refetch their aggregate view.
func (s *Store) SetWindowServices(ctx context.Context, windowID string, serviceIDs []string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	queueID, err := lockWindow(ctx, tx, windowID)
	if err != nil {
		return err
	}

	if _, err = tx.Exec(ctx, `
		DELETE FROM window_services WHERE window_id = $1
	`, windowID); err != nil {
		return err
	}
	for _, serviceID := range serviceIDs {
		if err = ensureServiceInQueue(ctx, tx, queueID, serviceID); err != nil {
			return err
		}
		if _, err = tx.Exec(ctx, `
			INSERT INTO window_services (window_id, service_id)
			VALUES ($1,$2)
			ON CONFLICT DO NOTHING
		`, windowID, serviceID); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(map[string]interface{}{
		"window_id":   windowID,
		"service_ids": serviceIDs,
	})
	if err != nil {
		return err
	}
	if err = insertFeedEvent(ctx, tx, queueID, "window_services", store.FeedUpdate, payload, nil); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SetServiceWindows is the other direction of the same mapping: replace the
// set of windows a service is restricted to.
func (s *Store) SetServiceWindows(ctx context.Context, queueID, serviceID string, windowIDs []string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = ensureServiceInQueue(ctx, tx, queueID, serviceID); err != nil {
		return err
	}

	if _, err = tx.Exec(ctx, `
		DELETE FROM window_services WHERE service_id = $1
	`, serviceID); err != nil {
		return err
	}
	for _, windowID := range windowIDs {
		var belongs bool
		row := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM windows WHERE window_id = $1 AND queue_id = $2)
		`, windowID, queueID)
		if err = row.Scan(&belongs); err != nil {
			return err
		}
		if !belongs {
			err = store.ErrWindowNotFound
			return err
		}
		if _, err = tx.Exec(ctx, `
			INSERT INTO window_services (window_id, service_id)
			VALUES ($1,$2)
			ON CONFLICT DO NOTHING
		`, windowID, serviceID); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(map[string]interface{}{
		"service_id": serviceID,
		"window_ids": windowIDs,
	})
	if err != nil {
		return err
	}
	if err = insertFeedEvent(ctx, tx, queueID, "window_services", store.FeedUpdate, payload, nil); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) windowServiceIDs(ctx context.Context, windowID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT service_id FROM window_services WHERE window_id = $1
	`, windowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func loadQueueSetup(ctx context.Context, tx pgx.Tx, queue models.Queue) (store.CreateQueueResult, error) {
	result := store.CreateQueueResult{Queue: queue}

	rows, err := tx.Query(ctx, `
		SELECT window_id, queue_id, name, short_key
		FROM windows WHERE queue_id = $1 ORDER BY name ASC
	`, queue.QueueID)
	if err != nil {
		return store.CreateQueueResult{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var window models.Window
		if err := rows.Scan(&window.WindowID, &window.QueueID, &window.Name, &window.ShortKey); err != nil {
			return store.CreateQueueResult{}, err
		}
		result.Windows = append(result.Windows, window)
	}
	if err := rows.Err(); err != nil {
		return store.CreateQueueResult{}, err
	}

	serviceRows, err := tx.Query(ctx, `
		SELECT service_id, queue_id, name
		FROM services WHERE queue_id = $1 ORDER BY name ASC
	`, queue.QueueID)
	if err != nil {
		return store.CreateQueueResult{}, err
	}
	defer serviceRows.Close()
	for serviceRows.Next() {
		var service models.Service
		if err := serviceRows.Scan(&service.ServiceID, &service.QueueID, &service.Name); err != nil {
			return store.CreateQueueResult{}, err
		}
		result.Services = append(result.Services, service)
	}
	if err := serviceRows.Err(); err != nil {
		return store.CreateQueueResult{}, err
	}
	return result, nil
}

func findQueueByRequestID(ctx context.Context, tx pgx.Tx, requestID string) (models.Queue, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+queueColumns+` FROM queues WHERE request_id = $1
	`, requestID)
	queue, err := scanQueue(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Queue{}, false, nil
		}
		return models.Queue{}, false, err
	}
	return queue, true, nil
}

func insertQueueFeedEvent(ctx context.Context, tx pgx.Tx, kind string, queue models.Queue, old *models.Queue) error {
	queueID := queue.QueueID
	var newRow, oldRow []byte
	var err error
	if kind != store.FeedDelete {
		// The feed is visible to every subscriber of the queue; never leak
		// the admin secret through it.
		public := queue
		public.AdminSecretKey = ""
		if newRow, err = json.Marshal(public); err != nil {
			return err
		}
	}
	if old != nil {
		queueID = old.QueueID
		public := *old
		public.AdminSecretKey = ""
		if oldRow, err = json.Marshal(public); err != nil {
			return err
		}
	}
	return insertFeedEvent(ctx, tx, queueID, "queues", kind, newRow, oldRow)
}

func prefixedQueueColumns(table string) string {
	return table + `.queue_id, ` + table + `.name, ` + table + `.description, ` + table + `.status, ` +
		table + `.short_id, ` + table + `.admin_secret_key, ` + table + `.window_count, ` + table + `.created_at`
}

func scanQueue(row pgx.Row) (models.Queue, error) {
	var queue models.Queue
	if err := row.Scan(&queue.QueueID, &queue.Name, &queue.Description, &queue.Status,
		&queue.ShortID, &queue.AdminSecretKey, &queue.WindowCount, &queue.CreatedAt); err != nil {
		return models.Queue{}, err
	}
	return queue, nil
}

func collectMembersWithNames(rows pgx.Rows) ([]models.Member, error) {
	var members []models.Member
	for rows.Next() {
		var member models.Member
		var serviceID, windowID, serviceName, windowName sql.NullString
		var calledAt, acknowledgedAt, servicedAt sql.NullTime
		if err := rows.Scan(&member.MemberID, &member.QueueID, &member.TicketNumber, &member.DisplayCode,
			&member.Name, &member.Status, &serviceID, &windowID, &member.CreatedAt,
			&calledAt, &acknowledgedAt, &servicedAt, &serviceName, &windowName); err != nil {
			return nil, err
		}
		member.ServiceID = nullStringPtr(serviceID)
		member.AssignedWindowID = nullStringPtr(windowID)
		member.CalledAt = nullTimePtr(calledAt)
		member.AcknowledgedAt = nullTimePtr(acknowledgedAt)
		member.ServicedAt = nullTimePtr(servicedAt)
		member.ServiceName = serviceName.String
		member.WindowName = windowName.String
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}
