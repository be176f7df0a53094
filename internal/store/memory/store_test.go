package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/Criozon/q-app/internal/models"
	"github.com/Criozon/q-app/internal/store"

	"github.com/google/uuid"
)

func setupQueue(t *testing.T, services []store.ServiceSetup, windowCount int) (*Store, store.CreateQueueResult) {
	t.Helper()
	st := NewStore()
	result, applied, err := st.CreateQueue(context.Background(), store.CreateQueueInput{
		RequestID:   uuid.NewString(),
		Name:        "City Hall",
		WindowCount: windowCount,
		Services:    services,
	})
	if err != nil {
		t.Fatalf("create queue: %v", err)
	}
	if !applied {
		t.Fatalf("expected first create to apply")
	}
	return st, result
}

func join(t *testing.T, st *Store, queueID, name, serviceID string) models.Member {
	t.Helper()
	member, _, err := st.JoinQueue(context.Background(), store.JoinQueueInput{
		RequestID:  uuid.NewString(),
		QueueID:    queueID,
		MemberName: name,
		ServiceID:  serviceID,
	})
	if err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return member
}

func callNext(t *testing.T, st *Store, windowID string) models.Member {
	t.Helper()
	member, _, err := st.CallNext(context.Background(), store.CallNextInput{
		RequestID: uuid.NewString(),
		WindowID:  windowID,
	})
	if err != nil {
		t.Fatalf("call next: %v", err)
	}
	return member
}

func TestCallNextDispatchesFIFO(t *testing.T) {
	st, result := setupQueue(t, nil, 1)
	queueID := result.Queue.QueueID
	window := result.Windows[0]

	first := join(t, st, queueID, "Ada", "")
	second := join(t, st, queueID, "Ben", "")
	if second.TicketNumber <= first.TicketNumber {
		t.Fatalf("ticket numbers must increase: %d then %d", first.TicketNumber, second.TicketNumber)
	}

	called := callNext(t, st, window.WindowID)
	if called.MemberID != first.MemberID {
		t.Fatalf("expected oldest waiting member, got %s", called.Name)
	}
	if called.Status != models.StatusCalled {
		t.Fatalf("expected called status, got %s", called.Status)
	}
	if called.AssignedWindowID == nil || *called.AssignedWindowID != window.WindowID {
		t.Fatalf("expected assignment to window, got %+v", called.AssignedWindowID)
	}
	if called.CalledAt == nil {
		t.Fatalf("expected called_at to be set")
	}
}

func TestCallNextBusyWindow(t *testing.T) {
	st, result := setupQueue(t, nil, 1)
	queueID := result.Queue.QueueID
	window := result.Windows[0]

	join(t, st, queueID, "Ada", "")
	join(t, st, queueID, "Ben", "")
	callNext(t, st, window.WindowID)

	_, _, err := st.CallNext(context.Background(), store.CallNextInput{
		RequestID: uuid.NewString(),
		WindowID:  window.WindowID,
	})
	if !errors.Is(err, store.ErrWindowBusy) {
		t.Fatalf("expected ErrWindowBusy, got %v", err)
	}
}

func TestCallNextAcknowledgedStillOccupies(t *testing.T) {
	st, result := setupQueue(t, nil, 1)
	queueID := result.Queue.QueueID
	window := result.Windows[0]

	join(t, st, queueID, "Ada", "")
	join(t, st, queueID, "Ben", "")
	called := callNext(t, st, window.WindowID)

	if _, _, err := st.Acknowledge(context.Background(), store.MemberActionInput{
		RequestID: uuid.NewString(),
		MemberID:  called.MemberID,
	}); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}

	_, _, err := st.CallNext(context.Background(), store.CallNextInput{
		RequestID: uuid.NewString(),
		WindowID:  window.WindowID,
	})
	if !errors.Is(err, store.ErrWindowBusy) {
		t.Fatalf("acknowledged member must still occupy the window, got %v", err)
	}
}

func TestCallNextEmptyQueue(t *testing.T) {
	st, result := setupQueue(t, nil, 1)

	_, _, err := st.CallNext(context.Background(), store.CallNextInput{
		RequestID: uuid.NewString(),
		WindowID:  result.Windows[0].WindowID,
	})
	if !errors.Is(err, store.ErrNoMember) {
		t.Fatalf("expected ErrNoMember, got %v", err)
	}
}

func TestCallNextReplaysByRequestID(t *testing.T) {
	st, result := setupQueue(t, nil, 1)
	queueID := result.Queue.QueueID
	window := result.Windows[0]

	join(t, st, queueID, "Ada", "")
	join(t, st, queueID, "Ben", "")

	requestID := uuid.NewString()
	first, applied, err := st.CallNext(context.Background(), store.CallNextInput{RequestID: requestID, WindowID: window.WindowID})
	if err != nil || !applied {
		t.Fatalf("first call: applied=%v err=%v", applied, err)
	}
	second, applied, err := st.CallNext(context.Background(), store.CallNextInput{RequestID: requestID, WindowID: window.WindowID})
	if err != nil {
		t.Fatalf("replay call: %v", err)
	}
	if applied {
		t.Fatalf("replay must not apply again")
	}
	if second.MemberID != first.MemberID {
		t.Fatalf("replay returned a different member")
	}
}

func TestServiceEligibility(t *testing.T) {
	st, result := setupQueue(t, []store.ServiceSetup{
		{Name: "Passports", WindowNumbers: []int{1}},
		{Name: "Licenses", WindowNumbers: []int{2}},
	}, 3)
	queueID := result.Queue.QueueID

	var passports, licenses models.Service
	for _, svc := range result.Services {
		switch svc.Name {
		case "Passports":
			passports = svc
		case "Licenses":
			licenses = svc
		}
	}

	passportMember := join(t, st, queueID, "Ada", passports.ServiceID)
	licenseMember := join(t, st, queueID, "Ben", licenses.ServiceID)
	anyMember := join(t, st, queueID, "Cam", "")

	// Window 1 serves only passports: Ada is first even though FIFO order
	// would otherwise not matter here.
	called := callNext(t, st, result.Windows[0].WindowID)
	if called.MemberID != passportMember.MemberID {
		t.Fatalf("window 1 should call the passport member, got %s", called.Name)
	}

	// Window 2 serves only licenses.
	called = callNext(t, st, result.Windows[1].WindowID)
	if called.MemberID != licenseMember.MemberID {
		t.Fatalf("window 2 should call the license member, got %s", called.Name)
	}

	// Window 3 has no restriction, so the member with no service is eligible.
	called = callNext(t, st, result.Windows[2].WindowID)
	if called.MemberID != anyMember.MemberID {
		t.Fatalf("window 3 should call the unrestricted member, got %s", called.Name)
	}
}

func TestNoServiceMemberEligibleAtRestrictedWindow(t *testing.T) {
	st, result := setupQueue(t, []store.ServiceSetup{
		{Name: "Passports", WindowNumbers: []int{1}},
	}, 1)
	queueID := result.Queue.QueueID

	member := join(t, st, queueID, "Ada", "")
	called := callNext(t, st, result.Windows[0].WindowID)
	if called.MemberID != member.MemberID {
		t.Fatalf("member without a service must be eligible everywhere")
	}
}

func TestJoinPausedQueueRejected(t *testing.T) {
	st, result := setupQueue(t, nil, 1)
	queueID := result.Queue.QueueID

	if _, err := st.SetQueueStatus(context.Background(), queueID, models.QueuePaused); err != nil {
		t.Fatalf("pause: %v", err)
	}

	_, _, err := st.JoinQueue(context.Background(), store.JoinQueueInput{
		RequestID:  uuid.NewString(),
		QueueID:    queueID,
		MemberName: "Ada",
	})
	if !errors.Is(err, store.ErrQueuePaused) {
		t.Fatalf("expected ErrQueuePaused, got %v", err)
	}

	members, err := st.ListMembers(context.Background(), queueID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("rejected join must leave no member behind, got %d", len(members))
	}

	if _, err := st.SetQueueStatus(context.Background(), queueID, models.QueueActive); err != nil {
		t.Fatalf("resume: %v", err)
	}
	join(t, st, queueID, "Ada", "")
}

func TestReturnKeepsTicketNumber(t *testing.T) {
	st, result := setupQueue(t, nil, 1)
	queueID := result.Queue.QueueID
	window := result.Windows[0]

	first := join(t, st, queueID, "Ada", "")
	join(t, st, queueID, "Ben", "")

	called := callNext(t, st, window.WindowID)
	returned, _, err := st.ReturnToWaiting(context.Background(), store.MemberActionInput{
		RequestID: uuid.NewString(),
		MemberID:  called.MemberID,
	})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if returned.Status != models.StatusWaiting {
		t.Fatalf("expected waiting after return, got %s", returned.Status)
	}
	if returned.TicketNumber != first.TicketNumber {
		t.Fatalf("ticket number changed on return: %d -> %d", first.TicketNumber, returned.TicketNumber)
	}
	if returned.AssignedWindowID != nil || returned.CalledAt != nil || returned.AcknowledgedAt != nil {
		t.Fatalf("return must clear the assignment, got %+v", returned)
	}

	// With the original ticket number intact, the returned member is called
	// first again.
	called = callNext(t, st, window.WindowID)
	if called.MemberID != first.MemberID {
		t.Fatalf("returned member should be next, got %s", called.Name)
	}
}

func TestCompleteIsTerminal(t *testing.T) {
	st, result := setupQueue(t, nil, 1)
	queueID := result.Queue.QueueID
	window := result.Windows[0]

	join(t, st, queueID, "Ada", "")
	called := callNext(t, st, window.WindowID)

	done, _, err := st.Complete(context.Background(), store.MemberActionInput{
		RequestID: uuid.NewString(),
		MemberID:  called.MemberID,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != models.StatusServiced || done.ServicedAt == nil {
		t.Fatalf("expected serviced with timestamp, got %+v", done)
	}

	if _, _, err := st.ReturnToWaiting(context.Background(), store.MemberActionInput{
		RequestID: uuid.NewString(),
		MemberID:  called.MemberID,
	}); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("serviced is terminal, got %v", err)
	}
	if err := st.RemoveMember(context.Background(), store.MemberActionInput{
		RequestID: uuid.NewString(),
		MemberID:  called.MemberID,
	}); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("serviced members cannot be removed, got %v", err)
	}

	// Completing frees the window for the next member.
	join(t, st, queueID, "Ben", "")
	callNext(t, st, window.WindowID)
}

func TestAcknowledgeRequiresCalled(t *testing.T) {
	st, result := setupQueue(t, nil, 1)
	member := join(t, st, result.Queue.QueueID, "Ada", "")

	if _, _, err := st.Acknowledge(context.Background(), store.MemberActionInput{
		RequestID: uuid.NewString(),
		MemberID:  member.MemberID,
	}); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("acknowledge from waiting must fail, got %v", err)
	}
}

func TestCallSpecificSkipsQueueOrder(t *testing.T) {
	st, result := setupQueue(t, nil, 1)
	queueID := result.Queue.QueueID
	window := result.Windows[0]

	join(t, st, queueID, "Ada", "")
	second := join(t, st, queueID, "Ben", "")

	called, _, err := st.CallSpecific(context.Background(), store.CallSpecificInput{
		RequestID: uuid.NewString(),
		WindowID:  window.WindowID,
		MemberID:  second.MemberID,
	})
	if err != nil {
		t.Fatalf("call specific: %v", err)
	}
	if called.MemberID != second.MemberID {
		t.Fatalf("expected the requested member, got %s", called.Name)
	}

	_, _, err = st.CallSpecific(context.Background(), store.CallSpecificInput{
		RequestID: uuid.NewString(),
		WindowID:  window.WindowID,
		MemberID:  second.MemberID,
	})
	if !errors.Is(err, store.ErrWindowBusy) {
		t.Fatalf("expected ErrWindowBusy on occupied window, got %v", err)
	}
}

func TestRemoveMemberWrongQueueRejected(t *testing.T) {
	st, result := setupQueue(t, nil, 1)
	member := join(t, st, result.Queue.QueueID, "Ada", "")

	err := st.RemoveMember(context.Background(), store.MemberActionInput{
		RequestID: uuid.NewString(),
		QueueID:   uuid.NewString(),
		MemberID:  member.MemberID,
	})
	if !errors.Is(err, store.ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound for foreign queue scope, got %v", err)
	}

	if _, err := st.GetMember(context.Background(), member.MemberID); err != nil {
		t.Fatalf("member must survive the rejected removal: %v", err)
	}
}

func TestRemoveMemberLeavesQueue(t *testing.T) {
	st, result := setupQueue(t, nil, 1)
	queueID := result.Queue.QueueID

	member := join(t, st, queueID, "Ada", "")
	if err := st.RemoveMember(context.Background(), store.MemberActionInput{
		RequestID: uuid.NewString(),
		MemberID:  member.MemberID,
	}); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if _, err := st.GetMember(context.Background(), member.MemberID); !errors.Is(err, store.ErrMemberNotFound) {
		t.Fatalf("expected member gone, got %v", err)
	}

	state, err := st.ResolveSession(context.Background(), queueID, member.MemberID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if state.Active {
		t.Fatalf("removed member must not resolve to an active session")
	}
}

func TestResolveSessionStates(t *testing.T) {
	st, result := setupQueue(t, nil, 1)
	queueID := result.Queue.QueueID
	window := result.Windows[0]

	member := join(t, st, queueID, "Ada", "")

	state, err := st.ResolveSession(context.Background(), queueID, member.MemberID)
	if err != nil || !state.Active {
		t.Fatalf("waiting member should be active: %+v err=%v", state, err)
	}

	callNext(t, st, window.WindowID)
	if _, _, err := st.Complete(context.Background(), store.MemberActionInput{
		RequestID: uuid.NewString(),
		MemberID:  member.MemberID,
	}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	state, err = st.ResolveSession(context.Background(), queueID, member.MemberID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if state.Active {
		t.Fatalf("serviced member must resolve inactive")
	}
	if state.Member.MemberID != member.MemberID {
		t.Fatalf("serviced resolve should still return the member record")
	}
}

func TestDeleteQueueEmitsTerminalEvent(t *testing.T) {
	st, result := setupQueue(t, []store.ServiceSetup{{Name: "Passports"}}, 2)
	queueID := result.Queue.QueueID

	member := join(t, st, queueID, "Ada", "")

	if err := st.DeleteQueue(context.Background(), queueID); err != nil {
		t.Fatalf("delete queue: %v", err)
	}

	if _, err := st.GetQueueByShortID(context.Background(), result.Queue.ShortID); !errors.Is(err, store.ErrQueueNotFound) {
		t.Fatalf("queue should be gone, got %v", err)
	}
	if _, err := st.GetMember(context.Background(), member.MemberID); !errors.Is(err, store.ErrMemberNotFound) {
		t.Fatalf("members should be gone with the queue, got %v", err)
	}
	if _, _, err := st.GetWindowByKey(context.Background(), result.Windows[0].ShortKey); !errors.Is(err, store.ErrWindowNotFound) {
		t.Fatalf("windows should be gone with the queue, got %v", err)
	}

	events, err := st.ListFeedEvents(context.Background(), store.FeedOffset{}, 0)
	if err != nil {
		t.Fatalf("list feed: %v", err)
	}
	last := events[len(events)-1]
	if last.Table != "queues" || last.Kind != store.FeedDelete {
		t.Fatalf("expected terminal queue delete event, got table=%s kind=%s", last.Table, last.Kind)
	}
	if last.QueueID != queueID {
		t.Fatalf("terminal event must carry the queue id")
	}
	if len(last.Old) == 0 {
		t.Fatalf("delete event must carry the old row")
	}
}

func TestJoinQueueReplaysByRequestID(t *testing.T) {
	st, result := setupQueue(t, nil, 1)
	queueID := result.Queue.QueueID

	requestID := uuid.NewString()
	first, applied, err := st.JoinQueue(context.Background(), store.JoinQueueInput{
		RequestID:  requestID,
		QueueID:    queueID,
		MemberName: "Ada",
	})
	if err != nil || !applied {
		t.Fatalf("first join: applied=%v err=%v", applied, err)
	}
	second, applied, err := st.JoinQueue(context.Background(), store.JoinQueueInput{
		RequestID:  requestID,
		QueueID:    queueID,
		MemberName: "Ada",
	})
	if err != nil {
		t.Fatalf("replayed join: %v", err)
	}
	if applied {
		t.Fatalf("replay must not create a second member")
	}
	if second.MemberID != first.MemberID || second.TicketNumber != first.TicketNumber {
		t.Fatalf("replay returned a different member")
	}
}

func TestWindowPanelShowsEligibleAndAssigned(t *testing.T) {
	st, result := setupQueue(t, []store.ServiceSetup{
		{Name: "Passports", WindowNumbers: []int{1}},
		{Name: "Licenses", WindowNumbers: []int{2}},
	}, 2)
	queueID := result.Queue.QueueID

	var passports, licenses models.Service
	for _, svc := range result.Services {
		switch svc.Name {
		case "Passports":
			passports = svc
		case "Licenses":
			licenses = svc
		}
	}

	passportMember := join(t, st, queueID, "Ada", passports.ServiceID)
	join(t, st, queueID, "Ben", licenses.ServiceID)

	panel, err := st.WindowPanel(context.Background(), result.Windows[0].ShortKey)
	if err != nil {
		t.Fatalf("panel: %v", err)
	}
	if len(panel.Members) != 1 || panel.Members[0].MemberID != passportMember.MemberID {
		t.Fatalf("window 1 panel should show only the passport member, got %d members", len(panel.Members))
	}
	if panel.Queue.AdminSecretKey != "" {
		t.Fatalf("panel must not expose the admin secret")
	}

	// Once called, the member stays on the panel as the current assignment.
	callNext(t, st, result.Windows[0].WindowID)
	panel, err = st.WindowPanel(context.Background(), result.Windows[0].ShortKey)
	if err != nil {
		t.Fatalf("panel after call: %v", err)
	}
	if len(panel.Members) != 1 || panel.Members[0].Status != models.StatusCalled {
		t.Fatalf("called member should remain on the panel, got %+v", panel.Members)
	}
}

func TestSetWindowServicesChangesEligibility(t *testing.T) {
	st, result := setupQueue(t, []store.ServiceSetup{{Name: "Passports"}}, 1)
	queueID := result.Queue.QueueID
	window := result.Windows[0]
	service := result.Services[0]

	member := join(t, st, queueID, "Ada", service.ServiceID)

	// Unrestricted window serves the member.
	called := callNext(t, st, window.WindowID)
	if called.MemberID != member.MemberID {
		t.Fatalf("unrestricted window should serve any service")
	}
	if _, _, err := st.ReturnToWaiting(context.Background(), store.MemberActionInput{
		RequestID: uuid.NewString(),
		MemberID:  member.MemberID,
	}); err != nil {
		t.Fatalf("return: %v", err)
	}

	// Restrict the window to a different service; the member is no longer
	// eligible there.
	other, err := st.AddService(context.Background(), queueID, "Licenses")
	if err != nil {
		t.Fatalf("add service: %v", err)
	}
	if err := st.SetWindowServices(context.Background(), window.WindowID, []string{other.ServiceID}); err != nil {
		t.Fatalf("set window services: %v", err)
	}

	if _, _, err := st.CallNext(context.Background(), store.CallNextInput{
		RequestID: uuid.NewString(),
		WindowID:  window.WindowID,
	}); !errors.Is(err, store.ErrNoMember) {
		t.Fatalf("restricted window should have no eligible member, got %v", err)
	}
}

func TestJoinDetailsCountsWaiting(t *testing.T) {
	st, result := setupQueue(t, []store.ServiceSetup{{Name: "Passports"}}, 1)
	queueID := result.Queue.QueueID
	window := result.Windows[0]

	join(t, st, queueID, "Ada", "")
	join(t, st, queueID, "Ben", "")
	callNext(t, st, window.WindowID)

	details, err := st.JoinDetails(context.Background(), result.Queue.ShortID)
	if err != nil {
		t.Fatalf("join details: %v", err)
	}
	if details.WaitingCount != 1 {
		t.Fatalf("expected 1 waiting after a call, got %d", details.WaitingCount)
	}
	if len(details.Services) != 1 {
		t.Fatalf("expected the queue's services in the join view")
	}
}

func TestMemberEventChainRecordsLifecycle(t *testing.T) {
	st, result := setupQueue(t, nil, 1)
	queueID := result.Queue.QueueID
	window := result.Windows[0]

	member := join(t, st, queueID, "Ada", "")
	callNext(t, st, window.WindowID)
	if _, _, err := st.Complete(context.Background(), store.MemberActionInput{
		RequestID: uuid.NewString(),
		MemberID:  member.MemberID,
	}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	events, err := st.ListMemberEvents(context.Background(), member.MemberID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected created/called/serviced events, got %d", len(events))
	}
	for i, event := range events {
		if event.Seq != i+1 {
			t.Fatalf("event %d has seq %d", i, event.Seq)
		}
		prev := ""
		if i > 0 {
			prev = events[i-1].Hash
		}
		if event.PrevHash != prev {
			t.Fatalf("event %d breaks the hash chain", i)
		}
		want := store.ComputeMemberEventHash(event.PrevHash, event.MemberID, event.Type, event.Payload, event.CreatedAt, event.Seq)
		if event.Hash != want {
			t.Fatalf("event %d hash mismatch", i)
		}
	}

	folded, err := store.RehydrateMember(events)
	if err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	if folded.Status != models.StatusServiced {
		t.Fatalf("folded history should end serviced, got %s", folded.Status)
	}
}
