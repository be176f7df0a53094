package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Criozon/q-app/internal/models"
)

type CreateQueueInput struct {
	RequestID   string
	Name        string
	Description string
	WindowCount int
	Services    []ServiceSetup
	CreatedAt   time.Time
}

// ServiceSetup describes one service created alongside the queue. WindowNumbers
// are 1-based ordinals into the queue's windows; empty means unrestricted.
type ServiceSetup struct {
	Name          string
	WindowNumbers []int
}

type CreateQueueResult struct {
	Queue    models.Queue     `json:"queue"`
	Windows  []models.Window  `json:"windows"`
	Services []models.Service `json:"services"`
}

type JoinQueueInput struct {
	RequestID  string
	QueueID    string
	MemberName string
	ServiceID  string
	CreatedAt  time.Time
}

type CallNextInput struct {
	RequestID string
	WindowID  string
	CalledAt  time.Time
}

type CallSpecificInput struct {
	RequestID string
	WindowID  string
	MemberID  string
	CalledAt  time.Time
}

type MemberActionInput struct {
	RequestID  string
	QueueID    string
	MemberID   string
	OccurredAt time.Time
}

// JoinDetails is the public join-page view: no admin secret, no window keys.
type JoinDetails struct {
	QueueID      string           `json:"queue_id"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	Status       string           `json:"status"`
	Services     []models.Service `json:"services"`
	WaitingCount int              `json:"waiting_count"`
}

type MemberDetail struct {
	Member       models.Member `json:"member"`
	Queue        models.Queue  `json:"queue"`
	WaitingAhead int           `json:"waiting_ahead"`
}

// WindowPanel is everything a window-operator screen needs in one round trip:
// the window, its queue, and the members visible to that window (eligible
// waiting members plus anything assigned to the window).
type WindowPanel struct {
	Window  models.Window   `json:"window"`
	Queue   models.Queue    `json:"queue"`
	Members []models.Member `json:"members"`
}

type SessionState struct {
	Active bool          `json:"active"`
	Member models.Member `json:"member,omitempty"`
}

const (
	FeedInsert = "insert"
	FeedUpdate = "update"
	FeedDelete = "delete"
)

// FeedEvent is one row-change notification: the kind, the logical table, and
// the new and/or old row serialized as JSON. Delete events carry only Old.
type FeedEvent struct {
	EventID   string          `json:"event_id"`
	QueueID   string          `json:"queue_id"`
	Table     string          `json:"table"`
	Kind      string          `json:"kind"`
	New       json.RawMessage `json:"new,omitempty"`
	Old       json.RawMessage `json:"old,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type Store interface {
	CreateQueue(ctx context.Context, input CreateQueueInput) (CreateQueueResult, bool, error)
	GetQueueBySecret(ctx context.Context, secret string) (models.Queue, error)
	GetQueueByShortID(ctx context.Context, shortID string) (models.Queue, error)
	JoinDetails(ctx context.Context, shortID string) (JoinDetails, error)
	SetQueueStatus(ctx context.Context, queueID, status string) (models.Queue, error)
	DeleteQueue(ctx context.Context, queueID string) error

	JoinQueue(ctx context.Context, input JoinQueueInput) (models.Member, bool, error)
	GetMember(ctx context.Context, memberID string) (MemberDetail, error)
	ListMembers(ctx context.Context, queueID string) ([]models.Member, error)
	CallNext(ctx context.Context, input CallNextInput) (models.Member, bool, error)
	CallSpecific(ctx context.Context, input CallSpecificInput) (models.Member, bool, error)
	Acknowledge(ctx context.Context, input MemberActionInput) (models.Member, bool, error)
	ReturnToWaiting(ctx context.Context, input MemberActionInput) (models.Member, bool, error)
	Complete(ctx context.Context, input MemberActionInput) (models.Member, bool, error)
	RemoveMember(ctx context.Context, input MemberActionInput) error

	GetWindowByKey(ctx context.Context, shortKey string) (models.Window, models.Queue, error)
	WindowPanel(ctx context.Context, shortKey string) (WindowPanel, error)
	AddWindows(ctx context.Context, queueID string, count int) ([]models.Window, error)
	ListWindows(ctx context.Context, queueID string) ([]models.Window, error)
	AddService(ctx context.Context, queueID, name string) (models.Service, error)
	RemoveService(ctx context.Context, queueID, serviceID string) error
	ListServices(ctx context.Context, queueID string) ([]models.Service, error)
	SetWindowServices(ctx context.Context, windowID string, serviceIDs []string) error
	SetServiceWindows(ctx context.Context, queueID, serviceID string, windowIDs []string) error

	ResolveSession(ctx context.Context, queueID, memberID string) (SessionState, error)
	ListFeedEvents(ctx context.Context, after FeedOffset, limit int) ([]FeedEvent, error)
	ListMemberEvents(ctx context.Context, memberID string) ([]MemberEvent, error)
}

// FeedOffset marks the last delivered feed event; ties on the timestamp are
// broken by the event id so a poller never replays or skips.
type FeedOffset struct {
	LastEventTime time.Time
	LastEventID   string
}
