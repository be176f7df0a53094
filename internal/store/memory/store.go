// Package memory implements the store contract entirely in process. It backs
// unit tests and local development where no database is available, and honors
// the same invariants as the durable implementation: FIFO dispatch, one
// occupant per window, idempotent request ids, and the change feed.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Criozon/q-app/internal/models"
	"github.com/Criozon/q-app/internal/store"

	"github.com/google/uuid"
)

var _ store.Store = (*Store)(nil)

type actionRecord struct {
	memberID string
	empty    bool
}

type Store struct {
	mu sync.Mutex

	queues   map[string]models.Queue   // by queue id
	windows  map[string]models.Window  // by window id
	services map[string]models.Service // by service id
	members  map[string]models.Member  // by member id

	windowServices map[string]map[string]bool // window id -> service id set
	sequences      map[string]int64           // queue id -> next ticket number

	queueRequests  map[string]string       // create request id -> queue id
	memberRequests map[string]string       // join request id -> member id
	actionRequests map[string]actionRecord // action+request id -> outcome

	feed         []store.FeedEvent
	memberEvents map[string][]store.MemberEvent
}

func NewStore() *Store {
	return &Store{
		queues:         make(map[string]models.Queue),
		windows:        make(map[string]models.Window),
		services:       make(map[string]models.Service),
		members:        make(map[string]models.Member),
		windowServices: make(map[string]map[string]bool),
		sequences:      make(map[string]int64),
		queueRequests:  make(map[string]string),
		memberRequests: make(map[string]string),
		actionRequests: make(map[string]actionRecord),
		memberEvents:   make(map[string][]store.MemberEvent),
	}
}

func (s *Store) CreateQueue(_ context.Context, input store.CreateQueueInput) (store.CreateQueueResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if queueID, ok := s.queueRequests[input.RequestID]; ok && input.RequestID != "" {
		return s.queueSetupLocked(queueID), false, nil
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
	s.queues[queue.QueueID] = queue
	if input.RequestID != "" {
		s.queueRequests[input.RequestID] = queue.QueueID
	}

	windows := make([]models.Window, 0, input.WindowCount)
	for i := 1; i <= input.WindowCount; i++ {
		window := models.Window{
			WindowID: uuid.NewString(),
			QueueID:  queue.QueueID,
			Name:     fmt.Sprintf("Window %d", i),
			ShortKey: store.NewSecretKey(),
		}
		s.windows[window.WindowID] = window
		windows = append(windows, window)
	}

	services := make([]models.Service, 0, len(input.Services))
	for _, setup := range input.Services {
		service := models.Service{
			ServiceID: uuid.NewString(),
			QueueID:   queue.QueueID,
			Name:      setup.Name,
		}
		for _, number := range setup.WindowNumbers {
			if number < 1 || number > len(windows) {
				continue
			}
			windowID := windows[number-1].WindowID
			if s.windowServices[windowID] == nil {
				s.windowServices[windowID] = make(map[string]bool)
			}
			s.windowServices[windowID][service.ServiceID] = true
			service.WindowIDs = append(service.WindowIDs, windowID)
		}
		s.services[service.ServiceID] = service
		services = append(services, service)
	}

	s.appendQueueFeedLocked(store.FeedInsert, queue, nil)
	return store.CreateQueueResult{Queue: queue, Windows: windows, Services: services}, true, nil
}

func (s *Store) queueSetupLocked(queueID string) store.CreateQueueResult {
	result := store.CreateQueueResult{Queue: s.queues[queueID]}
	result.Windows = s.queueWindowsLocked(queueID)
	result.Services = s.queueServicesLocked(queueID)
	return result
}

func (s *Store) GetQueueBySecret(_ context.Context, secret string) (models.Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, queue := range s.queues {
		if queue.AdminSecretKey == secret {
			return queue, nil
		}
	}
	return models.Queue{}, store.ErrQueueNotFound
}

func (s *Store) GetQueueByShortID(_ context.Context, shortID string) (models.Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue, err := s.queueByShortIDLocked(shortID)
	if err != nil {
		return models.Queue{}, err
	}
	return queue, nil
}

func (s *Store) queueByShortIDLocked(shortID string) (models.Queue, error) {
	for _, queue := range s.queues {
		if queue.ShortID == shortID {
			return queue, nil
		}
	}
	return models.Queue{}, store.ErrQueueNotFound
}

func (s *Store) JoinDetails(_ context.Context, shortID string) (store.JoinDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue, err := s.queueByShortIDLocked(shortID)
	if err != nil {
		return store.JoinDetails{}, err
	}

	waiting := 0
	for _, member := range s.members {
		if member.QueueID == queue.QueueID && member.Status == models.StatusWaiting {
			waiting++
		}
	}
	return store.JoinDetails{
		QueueID:      queue.QueueID,
		Name:         queue.Name,
		Description:  queue.Description,
		Status:       queue.Status,
		Services:     s.queueServicesLocked(queue.QueueID),
		WaitingCount: waiting,
	}, nil
}

func (s *Store) SetQueueStatus(_ context.Context, queueID, status string) (models.Queue, error) {
	if status != models.QueueActive && status != models.QueuePaused {
		return models.Queue{}, store.ErrInvalidState
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	queue, ok := s.queues[queueID]
	if !ok {
		return models.Queue{}, store.ErrQueueNotFound
	}
	queue.Status = status
	s.queues[queueID] = queue
	s.appendQueueFeedLocked(store.FeedUpdate, queue, nil)
	return queue, nil
}

func (s *Store) DeleteQueue(_ context.Context, queueID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue, ok := s.queues[queueID]
	if !ok {
		return store.ErrQueueNotFound
	}

	for id, member := range s.members {
		if member.QueueID == queueID {
			delete(s.members, id)
		}
	}
	for id, window := range s.windows {
		if window.QueueID == queueID {
			delete(s.windowServices, id)
			delete(s.windows, id)
		}
	}
	for id, service := range s.services {
		if service.QueueID == queueID {
			delete(s.services, id)
		}
	}
	delete(s.sequences, queueID)
	delete(s.queues, queueID)

	s.appendQueueFeedLocked(store.FeedDelete, models.Queue{}, &queue)
	return nil
}

func (s *Store) JoinQueue(_ context.Context, input store.JoinQueueInput) (models.Member, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if memberID, ok := s.memberRequests[input.RequestID]; ok && input.RequestID != "" {
		if member, found := s.members[memberID]; found {
			return s.decorateLocked(member), false, nil
		}
	}

	queue, ok := s.queues[input.QueueID]
	if !ok {
		return models.Member{}, false, store.ErrQueueNotFound
	}
	if queue.Status == models.QueuePaused {
		return models.Member{}, false, store.ErrQueuePaused
	}

	var serviceID *string
	if input.ServiceID != "" {
		service, found := s.services[input.ServiceID]
		if !found || service.QueueID != input.QueueID {
			return models.Member{}, false, store.ErrServiceNotFound
		}
		id := input.ServiceID
		serviceID = &id
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	s.sequences[input.QueueID]++
	member := models.Member{
		MemberID:     uuid.NewString(),
		QueueID:      input.QueueID,
		TicketNumber: s.sequences[input.QueueID],
		DisplayCode:  store.NewDisplayCode(),
		Name:         input.MemberName,
		Status:       models.StatusWaiting,
		ServiceID:    serviceID,
		CreatedAt:    createdAt,
	}
	s.members[member.MemberID] = member
	if input.RequestID != "" {
		s.memberRequests[input.RequestID] = member.MemberID
	}

	s.appendMemberFeedLocked(store.FeedInsert, member, nil)
	s.appendMemberEventLocked(member, "member.created")
	return s.decorateLocked(member), true, nil
}

func (s *Store) GetMember(_ context.Context, memberID string) (store.MemberDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	member, ok := s.members[memberID]
	if !ok {
		return store.MemberDetail{}, store.ErrMemberNotFound
	}
	queue := s.queues[member.QueueID]
	queue.AdminSecretKey = ""

	ahead := 0
	for _, other := range s.members {
		if other.QueueID == member.QueueID && other.Status == models.StatusWaiting && other.TicketNumber < member.TicketNumber {
			ahead++
		}
	}
	return store.MemberDetail{
		Member:       s.decorateLocked(member),
		Queue:        queue,
		WaitingAhead: ahead,
	}, nil
}

func (s *Store) ListMembers(_ context.Context, queueID string) ([]models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var members []models.Member
	for _, member := range s.members {
		if member.QueueID == queueID {
			members = append(members, s.decorateLocked(member))
		}
	}
	sortMembers(members)
	return members, nil
}

func (s *Store) CallNext(_ context.Context, input store.CallNextInput) (models.Member, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.lookupActionLocked("call_next", input.RequestID); ok {
		return s.replayActionLocked(record)
	}

	window, ok := s.windows[input.WindowID]
	if !ok {
		return models.Member{}, false, store.ErrWindowNotFound
	}
	if s.windowOccupiedLocked(input.WindowID) {
		return models.Member{}, false, store.ErrWindowBusy
	}

	var next *models.Member
	for _, member := range s.members {
		if member.QueueID != window.QueueID || member.Status != models.StatusWaiting {
			continue
		}
		if !s.eligibleLocked(member, input.WindowID) {
			continue
		}
		if next == nil || member.TicketNumber < next.TicketNumber {
			candidate := member
			next = &candidate
		}
	}
	if next == nil {
		s.recordActionLocked("call_next", input.RequestID, actionRecord{empty: true})
		return models.Member{}, false, store.ErrNoMember
	}

	calledAt := input.CalledAt
	if calledAt.IsZero() {
		calledAt = time.Now().UTC()
	}
	windowID := input.WindowID
	next.Status = models.StatusCalled
	next.AssignedWindowID = &windowID
	next.CalledAt = &calledAt
	s.members[next.MemberID] = *next

	s.recordActionLocked("call_next", input.RequestID, actionRecord{memberID: next.MemberID})
	s.appendMemberFeedLocked(store.FeedUpdate, *next, nil)
	s.appendMemberEventLocked(*next, "member.called")
	return s.decorateLocked(*next), true, nil
}

func (s *Store) CallSpecific(_ context.Context, input store.CallSpecificInput) (models.Member, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.lookupActionLocked("call_specific", input.RequestID); ok {
		return s.replayActionLocked(record)
	}

	window, ok := s.windows[input.WindowID]
	if !ok {
		return models.Member{}, false, store.ErrWindowNotFound
	}
	if s.windowOccupiedLocked(input.WindowID) {
		return models.Member{}, false, store.ErrWindowBusy
	}

	member, ok := s.members[input.MemberID]
	if !ok || member.QueueID != window.QueueID {
		return models.Member{}, false, store.ErrMemberNotFound
	}
	if member.Status != models.StatusWaiting {
		return models.Member{}, false, store.ErrInvalidState
	}

	calledAt := input.CalledAt
	if calledAt.IsZero() {
		calledAt = time.Now().UTC()
	}
	windowID := input.WindowID
	member.Status = models.StatusCalled
	member.AssignedWindowID = &windowID
	member.CalledAt = &calledAt
	s.members[member.MemberID] = member

	s.recordActionLocked("call_specific", input.RequestID, actionRecord{memberID: member.MemberID})
	s.appendMemberFeedLocked(store.FeedUpdate, member, nil)
	s.appendMemberEventLocked(member, "member.called")
	return s.decorateLocked(member), true, nil
}

func (s *Store) Acknowledge(_ context.Context, input store.MemberActionInput) (models.Member, bool, error) {
	return s.applyMemberAction(input, "acknowledge", "member.acknowledged", func(member *models.Member, at time.Time) {
		member.Status = models.StatusAcknowledged
		member.AcknowledgedAt = &at
	})
}

func (s *Store) ReturnToWaiting(_ context.Context, input store.MemberActionInput) (models.Member, bool, error) {
	return s.applyMemberAction(input, "return", "member.returned", func(member *models.Member, _ time.Time) {
		member.Status = models.StatusWaiting
		member.AssignedWindowID = nil
		member.CalledAt = nil
		member.AcknowledgedAt = nil
	})
}

func (s *Store) Complete(_ context.Context, input store.MemberActionInput) (models.Member, bool, error) {
	return s.applyMemberAction(input, "complete", "member.serviced", func(member *models.Member, at time.Time) {
		member.Status = models.StatusServiced
		member.ServicedAt = &at
	})
}

func (s *Store) applyMemberAction(input store.MemberActionInput, action, eventType string, apply func(*models.Member, time.Time)) (models.Member, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.lookupActionLocked(action, input.RequestID); ok {
		return s.replayActionLocked(record)
	}

	member, ok := s.members[input.MemberID]
	if !ok || (input.QueueID != "" && member.QueueID != input.QueueID) {
		return models.Member{}, false, store.ErrMemberNotFound
	}
	if !store.ValidTransition(action, member.Status) {
		return models.Member{}, false, store.ErrInvalidState
	}

	at := input.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	apply(&member, at)
	s.members[member.MemberID] = member

	s.recordActionLocked(action, input.RequestID, actionRecord{memberID: member.MemberID})
	s.appendMemberFeedLocked(store.FeedUpdate, member, nil)
	s.appendMemberEventLocked(member, eventType)
	return s.decorateLocked(member), true, nil
}

func (s *Store) RemoveMember(_ context.Context, input store.MemberActionInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookupActionLocked("remove", input.RequestID); ok {
		return nil
	}

	member, ok := s.members[input.MemberID]
	if !ok || (input.QueueID != "" && member.QueueID != input.QueueID) {
		return store.ErrMemberNotFound
	}
	if !store.ValidTransition("remove", member.Status) {
		return store.ErrInvalidState
	}

	delete(s.members, input.MemberID)
	s.recordActionLocked("remove", input.RequestID, actionRecord{memberID: input.MemberID})
	s.appendMemberFeedLocked(store.FeedDelete, models.Member{}, &member)
	s.appendMemberEventLocked(member, "member.removed")
	return nil
}

func (s *Store) GetWindowByKey(_ context.Context, shortKey string) (models.Window, models.Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windowByKeyLocked(shortKey)
}

func (s *Store) windowByKeyLocked(shortKey string) (models.Window, models.Queue, error) {
	for _, window := range s.windows {
		if window.ShortKey == shortKey {
			window.ServiceIDs = s.windowServiceIDsLocked(window.WindowID)
			queue := s.queues[window.QueueID]
			queue.AdminSecretKey = ""
			return window, queue, nil
		}
	}
	return models.Window{}, models.Queue{}, store.ErrWindowNotFound
}

func (s *Store) WindowPanel(_ context.Context, shortKey string) (store.WindowPanel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	window, queue, err := s.windowByKeyLocked(shortKey)
	if err != nil {
		return store.WindowPanel{}, err
	}

	var members []models.Member
	for _, member := range s.members {
		if member.QueueID != queue.QueueID {
			continue
		}
		assignedHere := member.AssignedWindowID != nil && *member.AssignedWindowID == window.WindowID
		eligible := member.Status == models.StatusWaiting && s.eligibleLocked(member, window.WindowID)
		if assignedHere || eligible {
			members = append(members, s.decorateLocked(member))
		}
	}
	sortMembers(members)
	return store.WindowPanel{Window: window, Queue: queue, Members: members}, nil
}

func (s *Store) AddWindows(_ context.Context, queueID string, count int) ([]models.Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue, ok := s.queues[queueID]
	if !ok {
		return nil, store.ErrQueueNotFound
	}

	windows := make([]models.Window, 0, count)
	for i := 1; i <= count; i++ {
		window := models.Window{
			WindowID: uuid.NewString(),
			QueueID:  queueID,
			Name:     fmt.Sprintf("Window %d", queue.WindowCount+i),
			ShortKey: store.NewSecretKey(),
		}
		s.windows[window.WindowID] = window
		s.appendFeedLocked(queueID, "windows", store.FeedInsert, window, nil)
		windows = append(windows, window)
	}
	queue.WindowCount += count
	s.queues[queueID] = queue
	return windows, nil
}

func (s *Store) ListWindows(_ context.Context, queueID string) ([]models.Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	windows := s.queueWindowsLocked(queueID)
	return windows, nil
}

func (s *Store) queueWindowsLocked(queueID string) []models.Window {
	var windows []models.Window
	for _, window := range s.windows {
		if window.QueueID == queueID {
			window.ServiceIDs = s.windowServiceIDsLocked(window.WindowID)
			windows = append(windows, window)
		}
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].Name < windows[j].Name })
	return windows
}

func (s *Store) AddService(_ context.Context, queueID, name string) (models.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.queues[queueID]; !ok {
		return models.Service{}, store.ErrQueueNotFound
	}
	service := models.Service{
		ServiceID: uuid.NewString(),
		QueueID:   queueID,
		Name:      name,
	}
	s.services[service.ServiceID] = service
	s.appendFeedLocked(queueID, "services", store.FeedInsert, service, nil)
	return service, nil
}

func (s *Store) RemoveService(_ context.Context, queueID, serviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	service, ok := s.services[serviceID]
	if !ok || service.QueueID != queueID {
		return store.ErrServiceNotFound
	}
	for _, set := range s.windowServices {
		delete(set, serviceID)
	}
	delete(s.services, serviceID)
	s.appendFeedLocked(queueID, "services", store.FeedDelete, nil, service)
	return nil
}

func (s *Store) ListServices(_ context.Context, queueID string) ([]models.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queueServicesLocked(queueID), nil
}

func (s *Store) queueServicesLocked(queueID string) []models.Service {
	var services []models.Service
	for _, service := range s.services {
		if service.QueueID != queueID {
			continue
		}
		service.WindowIDs = nil
		for windowID, set := range s.windowServices {
			if set[service.ServiceID] {
				service.WindowIDs = append(service.WindowIDs, windowID)
			}
		}
		sort.Strings(service.WindowIDs)
		services = append(services, service)
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })
	return services
}

func (s *Store) SetWindowServices(_ context.Context, windowID string, serviceIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	window, ok := s.windows[windowID]
	if !ok {
		return store.ErrWindowNotFound
	}
	set := make(map[string]bool, len(serviceIDs))
	for _, serviceID := range serviceIDs {
		service, found := s.services[serviceID]
		if !found || service.QueueID != window.QueueID {
			return store.ErrServiceNotFound
		}
		set[serviceID] = true
	}
	s.windowServices[windowID] = set
	s.appendFeedLocked(window.QueueID, "window_services", store.FeedUpdate, map[string]interface{}{
		"window_id":   windowID,
		"service_ids": serviceIDs,
	}, nil)
	return nil
}

func (s *Store) SetServiceWindows(_ context.Context, queueID, serviceID string, windowIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	service, ok := s.services[serviceID]
	if !ok || service.QueueID != queueID {
		return store.ErrServiceNotFound
	}
	for _, set := range s.windowServices {
		delete(set, serviceID)
	}
	for _, windowID := range windowIDs {
		window, found := s.windows[windowID]
		if !found || window.QueueID != queueID {
			return store.ErrWindowNotFound
		}
		if s.windowServices[windowID] == nil {
			s.windowServices[windowID] = make(map[string]bool)
		}
		s.windowServices[windowID][serviceID] = true
	}
	s.appendFeedLocked(queueID, "window_services", store.FeedUpdate, map[string]interface{}{
		"service_id": serviceID,
		"window_ids": windowIDs,
	}, nil)
	return nil
}

func (s *Store) ResolveSession(_ context.Context, queueID, memberID string) (store.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	member, ok := s.members[memberID]
	if !ok || member.QueueID != queueID {
		return store.SessionState{Active: false}, nil
	}
	if member.Status == models.StatusServiced {
		return store.SessionState{Active: false, Member: s.decorateLocked(member)}, nil
	}
	return store.SessionState{Active: true, Member: s.decorateLocked(member)}, nil
}

func (s *Store) ListFeedEvents(_ context.Context, after store.FeedOffset, limit int) ([]store.FeedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	var events []store.FeedEvent
	for _, event := range s.feed {
		if event.CreatedAt.Before(after.LastEventTime) {
			continue
		}
		if event.CreatedAt.Equal(after.LastEventTime) && event.EventID <= after.LastEventID {
			continue
		}
		events = append(events, event)
		if len(events) == limit {
			break
		}
	}
	return events, nil
}

func (s *Store) ListMemberEvents(_ context.Context, memberID string) ([]store.MemberEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]store.MemberEvent, len(s.memberEvents[memberID]))
	copy(events, s.memberEvents[memberID])
	return events, nil
}

func (s *Store) eligibleLocked(member models.Member, windowID string) bool {
	if member.ServiceID == nil {
		return true
	}
	set := s.windowServices[windowID]
	if len(set) == 0 {
		return true
	}
	return set[*member.ServiceID]
}

func (s *Store) windowOccupiedLocked(windowID string) bool {
	for _, member := range s.members {
		if member.AssignedWindowID != nil && *member.AssignedWindowID == windowID && member.Assigned() {
			return true
		}
	}
	return false
}

func (s *Store) lookupActionLocked(action, requestID string) (actionRecord, bool) {
	if requestID == "" {
		return actionRecord{}, false
	}
	record, ok := s.actionRequests[action+"|"+requestID]
	return record, ok
}

func (s *Store) recordActionLocked(action, requestID string, record actionRecord) {
	if requestID == "" {
		return
	}
	s.actionRequests[action+"|"+requestID] = record
}

func (s *Store) replayActionLocked(record actionRecord) (models.Member, bool, error) {
	if record.empty {
		return models.Member{}, false, store.ErrNoMember
	}
	member, ok := s.members[record.memberID]
	if !ok {
		return models.Member{}, false, store.ErrNoMember
	}
	return s.decorateLocked(member), false, nil
}

// decorateLocked fills the joined display names the way the durable store's
// queries do.
func (s *Store) decorateLocked(member models.Member) models.Member {
	if member.ServiceID != nil {
		if service, ok := s.services[*member.ServiceID]; ok {
			member.ServiceName = service.Name
		}
	}
	if member.AssignedWindowID != nil {
		if window, ok := s.windows[*member.AssignedWindowID]; ok {
			member.WindowName = window.Name
		}
	}
	return member
}

func (s *Store) windowServiceIDsLocked(windowID string) []string {
	var ids []string
	for serviceID := range s.windowServices[windowID] {
		ids = append(ids, serviceID)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) appendQueueFeedLocked(kind string, queue models.Queue, old *models.Queue) {
	queueID := queue.QueueID
	var newRow, oldRow interface{}
	if kind != store.FeedDelete {
		public := queue
		public.AdminSecretKey = ""
		newRow = public
	}
	if old != nil {
		queueID = old.QueueID
		public := *old
		public.AdminSecretKey = ""
		oldRow = public
	}
	s.appendFeedLocked(queueID, "queues", kind, newRow, oldRow)
}

func (s *Store) appendMemberFeedLocked(kind string, member models.Member, old *models.Member) {
	queueID := member.QueueID
	var newRow, oldRow interface{}
	if kind != store.FeedDelete {
		newRow = member
	}
	if old != nil {
		queueID = old.QueueID
		oldRow = *old
	}
	s.appendFeedLocked(queueID, "queue_members", kind, newRow, oldRow)
}

func (s *Store) appendFeedLocked(queueID, table, kind string, newRow, oldRow interface{}) {
	event := store.FeedEvent{
		EventID:   uuid.NewString(),
		QueueID:   queueID,
		Table:     table,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
	if newRow != nil {
		if raw, err := json.Marshal(newRow); err == nil {
			event.New = raw
		}
	}
	if oldRow != nil {
		if raw, err := json.Marshal(oldRow); err == nil {
			event.Old = raw
		}
	}
	s.feed = append(s.feed, event)
}

func (s *Store) appendMemberEventLocked(member models.Member, eventType string) {
	payload, err := store.MemberEventPayload(member)
	if err != nil {
		return
	}
	history := s.memberEvents[member.MemberID]
	prevHash := ""
	if len(history) > 0 {
		prevHash = history[len(history)-1].Hash
	}
	createdAt := time.Now().UTC()
	seq := len(history) + 1
	event := store.MemberEvent{
		MemberID:  member.MemberID,
		Seq:       seq,
		Type:      eventType,
		Payload:   payload,
		CreatedAt: createdAt,
		PrevHash:  prevHash,
		Hash:      store.ComputeMemberEventHash(prevHash, member.MemberID, eventType, payload, createdAt, seq),
	}
	s.memberEvents[member.MemberID] = append(s.memberEvents[member.MemberID], event)
}

func sortMembers(members []models.Member) {
	sort.Slice(members, func(i, j int) bool { return members[i].TicketNumber < members[j].TicketNumber })
}
