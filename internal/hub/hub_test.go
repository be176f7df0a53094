package hub

import (
	"testing"
)

func newTestClient(id string) *Client {
	return &Client{ID: id, Send: make(chan []byte, 4)}
}

func TestBroadcastMatchesQueueAndTable(t *testing.T) {
	h := New()

	queueClient := newTestClient("a")
	h.Register(queueClient)
	h.UpdateSubscription(queueClient, Subscription{QueueID: "q1"})

	tableClient := newTestClient("b")
	h.Register(tableClient)
	h.UpdateSubscription(tableClient, Subscription{QueueID: "q1", Table: "queue_members"})

	otherQueue := newTestClient("c")
	h.Register(otherQueue)
	h.UpdateSubscription(otherQueue, Subscription{QueueID: "q2"})

	h.Broadcast([]byte("members"), Subscription{QueueID: "q1", Table: "queue_members"})
	h.Broadcast([]byte("queues"), Subscription{QueueID: "q1", Table: "queues"})

	if got := drain(queueClient); got != 2 {
		t.Fatalf("queue-wide subscriber should see both events, got %d", got)
	}
	if got := drain(tableClient); got != 1 {
		t.Fatalf("table subscriber should see one event, got %d", got)
	}
	if got := drain(otherQueue); got != 0 {
		t.Fatalf("other queue must see nothing, got %d", got)
	}
}

func TestBroadcastSkipsUnsubscribed(t *testing.T) {
	h := New()
	client := newTestClient("a")
	h.Register(client)

	h.Broadcast([]byte("x"), Subscription{QueueID: "q1"})
	if got := drain(client); got != 0 {
		t.Fatalf("unsubscribed client received %d events", got)
	}
}

func TestBroadcastDropsWhenFull(t *testing.T) {
	h := New()
	client := &Client{ID: "a", Send: make(chan []byte, 1)}
	h.Register(client)
	h.UpdateSubscription(client, Subscription{QueueID: "q1"})

	h.Broadcast([]byte("one"), Subscription{QueueID: "q1"})
	h.Broadcast([]byte("two"), Subscription{QueueID: "q1"})

	if got := drain(client); got != 1 {
		t.Fatalf("full buffer should drop, got %d delivered", got)
	}
}

func TestParseSubscribe(t *testing.T) {
	msg, ok := ParseSubscribe([]byte(`{"action":"subscribe","queue_id":"q1","table":"queue_members"}`))
	if !ok {
		t.Fatalf("expected valid subscribe message")
	}
	if msg.QueueID != "q1" || msg.Table != "queue_members" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	if _, ok := ParseSubscribe([]byte(`{"action":"shout"}`)); ok {
		t.Fatalf("unknown action must be rejected")
	}
	if _, ok := ParseSubscribe([]byte(`not json`)); ok {
		t.Fatalf("invalid json must be rejected")
	}
}

func drain(c *Client) int {
	count := 0
	for {
		select {
		case <-c.Send:
			count++
		default:
			return count
		}
	}
}
