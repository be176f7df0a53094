package store

import (
	"testing"
	"time"

	"github.com/Criozon/q-app/internal/models"
)

func buildEvent(t *testing.T, prevHash string, seq int, eventType string, member models.Member, at time.Time) MemberEvent {
	t.Helper()
	payload, err := MemberEventPayload(member)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	return MemberEvent{
		MemberID:  member.MemberID,
		Seq:       seq,
		Type:      eventType,
		Payload:   payload,
		CreatedAt: at,
		PrevHash:  prevHash,
		Hash:      ComputeMemberEventHash(prevHash, member.MemberID, eventType, payload, at, seq),
	}
}

func TestMemberEventHashChain(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	member := models.Member{
		MemberID:     "member-1",
		QueueID:      "queue-1",
		TicketNumber: 7,
		DisplayCode:  "K42",
		Name:         "Ada",
		Status:       models.StatusWaiting,
		CreatedAt:    base,
	}

	first := buildEvent(t, "", 1, "member.created", member, base)

	windowID := "window-1"
	calledAt := base.Add(time.Minute)
	member.Status = models.StatusCalled
	member.AssignedWindowID = &windowID
	member.CalledAt = &calledAt
	second := buildEvent(t, first.Hash, 2, "member.called", member, calledAt)

	if second.PrevHash != first.Hash {
		t.Fatalf("chain broken: prev=%s want %s", second.PrevHash, first.Hash)
	}

	// Tampering with the first payload must invalidate its hash.
	tampered := first
	tampered.Payload = []byte(`{"member_id":"member-1","status":"serviced"}`)
	recomputed := ComputeMemberEventHash(tampered.PrevHash, tampered.MemberID, tampered.Type, tampered.Payload, tampered.CreatedAt, tampered.Seq)
	if recomputed == first.Hash {
		t.Fatalf("hash did not change for modified payload")
	}
}

func TestRehydrateMemberFoldsHistory(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	member := models.Member{
		MemberID:     "member-1",
		QueueID:      "queue-1",
		TicketNumber: 7,
		DisplayCode:  "K42",
		Name:         "Ada",
		Status:       models.StatusWaiting,
		CreatedAt:    base,
	}
	created := buildEvent(t, "", 1, "member.created", member, base)

	windowID := "window-1"
	calledAt := base.Add(time.Minute)
	member.Status = models.StatusCalled
	member.AssignedWindowID = &windowID
	member.CalledAt = &calledAt
	called := buildEvent(t, created.Hash, 2, "member.called", member, calledAt)

	// Returning to the queue clears the assignment and call time.
	member.Status = models.StatusWaiting
	member.AssignedWindowID = nil
	member.CalledAt = nil
	returned := buildEvent(t, called.Hash, 3, "member.returned", member, base.Add(2*time.Minute))

	got, err := RehydrateMember([]MemberEvent{created, called, returned})
	if err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	if got.Status != models.StatusWaiting {
		t.Fatalf("expected waiting after return, got %s", got.Status)
	}
	if got.AssignedWindowID != nil || got.CalledAt != nil {
		t.Fatalf("expected cleared assignment after return, got %+v", got)
	}
	if got.TicketNumber != 7 {
		t.Fatalf("ticket number must survive the fold, got %d", got.TicketNumber)
	}
	if got.DisplayCode != "K42" || got.Name != "Ada" {
		t.Fatalf("identity fields lost in fold: %+v", got)
	}
}
