package models

import "time"

type Queue struct {
	QueueID        string    `json:"queue_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Status         string    `json:"status"`
	ShortID        string    `json:"short_id"`
	AdminSecretKey string    `json:"admin_secret_key,omitempty"`
	WindowCount    int       `json:"window_count"`
	CreatedAt      time.Time `json:"created_at"`
}

const (
	QueueActive = "active"
	QueuePaused = "paused"
)

type Window struct {
	WindowID string `json:"window_id"`
	QueueID  string `json:"queue_id"`
	Name     string `json:"name"`
	ShortKey string `json:"short_key,omitempty"`
	// ServiceIDs holds the window's service restriction. Empty means the
	// window serves every service offered by the queue.
	ServiceIDs []string `json:"service_ids,omitempty"`
}

type Service struct {
	ServiceID string `json:"service_id"`
	QueueID   string `json:"queue_id"`
	Name      string `json:"name"`
	// WindowIDs lists the windows this service is restricted to.
	WindowIDs []string `json:"window_ids,omitempty"`
}

type Member struct {
	MemberID         string     `json:"member_id"`
	QueueID          string     `json:"queue_id"`
	TicketNumber     int64      `json:"ticket_number"`
	DisplayCode      string     `json:"display_code"`
	Name             string     `json:"member_name"`
	Status           string     `json:"status"`
	ServiceID        *string    `json:"service_id,omitempty"`
	ServiceName      string     `json:"service_name,omitempty"`
	AssignedWindowID *string    `json:"assigned_window_id,omitempty"`
	WindowName       string     `json:"window_name,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	CalledAt         *time.Time `json:"called_at,omitempty"`
	AcknowledgedAt   *time.Time `json:"acknowledged_at,omitempty"`
	ServicedAt       *time.Time `json:"serviced_at,omitempty"`
	RequestID        string     `json:"request_id,omitempty"`
}

const (
	StatusWaiting      = "waiting"
	StatusCalled       = "called"
	StatusAcknowledged = "acknowledged"
	StatusServiced     = "serviced"
)

// Assigned reports whether the member currently occupies a window.
func (m Member) Assigned() bool {
	return m.Status == StatusCalled || m.Status == StatusAcknowledged
}
