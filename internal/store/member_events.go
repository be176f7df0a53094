package store

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Criozon/q-app/internal/models"
)

// MemberEvent is one entry in a member's hash-chained audit log. Each event
// links to its predecessor through PrevHash, so the per-member history is
// tamper-evident and strictly ordered by Seq.
type MemberEvent struct {
	MemberID  string          `json:"member_id"`
	Seq       int             `json:"seq"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

type memberEventPayload struct {
	MemberID         string     `json:"member_id"`
	QueueID          string     `json:"queue_id"`
	TicketNumber     int64      `json:"ticket_number"`
	DisplayCode      string     `json:"display_code"`
	Name             string     `json:"member_name"`
	Status           string     `json:"status"`
	ServiceID        *string    `json:"service_id"`
	AssignedWindowID *string    `json:"assigned_window_id"`
	CreatedAt        *time.Time `json:"created_at"`
	CalledAt         *time.Time `json:"called_at"`
	AcknowledgedAt   *time.Time `json:"acknowledged_at"`
	ServicedAt       *time.Time `json:"serviced_at"`
}

func ComputeMemberEventHash(prevHash, memberID, eventType string, payload json.RawMessage, createdAt time.Time, seq int) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, memberID, eventType, createdAt.UTC().Format(time.RFC3339Nano), seq, payload)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// RehydrateMember folds an event history back into the member's latest state.
// Later events overwrite earlier fields; cleared pointers (a return-to-queue
// wipes called_at and the window) are represented by explicit nulls in the
// payload and applied as-is.
func RehydrateMember(events []MemberEvent) (models.Member, error) {
	var member models.Member
	for _, event := range events {
		if len(event.Payload) == 0 {
			continue
		}
		var payload memberEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return models.Member{}, err
		}
		if payload.MemberID != "" {
			member.MemberID = payload.MemberID
		}
		if payload.QueueID != "" {
			member.QueueID = payload.QueueID
		}
		if payload.TicketNumber != 0 {
			member.TicketNumber = payload.TicketNumber
		}
		if payload.DisplayCode != "" {
			member.DisplayCode = payload.DisplayCode
		}
		if payload.Name != "" {
			member.Name = payload.Name
		}
		if payload.Status != "" {
			member.Status = payload.Status
		}
		member.ServiceID = payload.ServiceID
		member.AssignedWindowID = payload.AssignedWindowID
		if payload.CreatedAt != nil {
			member.CreatedAt = *payload.CreatedAt
		}
		member.CalledAt = payload.CalledAt
		member.AcknowledgedAt = payload.AcknowledgedAt
		member.ServicedAt = payload.ServicedAt
	}
	return member, nil
}

// MemberEventPayload serializes the member snapshot carried by audit events.
func MemberEventPayload(member models.Member) (json.RawMessage, error) {
	createdAt := member.CreatedAt
	payload := memberEventPayload{
		MemberID:         member.MemberID,
		QueueID:          member.QueueID,
		TicketNumber:     member.TicketNumber,
		DisplayCode:      member.DisplayCode,
		Name:             member.Name,
		Status:           member.Status,
		ServiceID:        member.ServiceID,
		AssignedWindowID: member.AssignedWindowID,
		CreatedAt:        &createdAt,
		CalledAt:         member.CalledAt,
		AcknowledgedAt:   member.AcknowledgedAt,
		ServicedAt:       member.ServicedAt,
	}
	return json.Marshal(payload)
}
