package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Criozon/q-app/internal/models"
	"github.com/Criozon/q-app/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestCallNextConcurrency(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	result := createTestQueue(t, ctx, st, 2)

	joinTestQueue(t, ctx, st, result.Queue.QueueID, "Ada")
	joinTestQueue(t, ctx, st, result.Queue.QueueID, "Ben")

	var wg sync.WaitGroup
	results := make(chan callResult, 2)
	for _, window := range result.Windows {
		wg.Add(1)
		go func(windowID string) {
			defer wg.Done()
			member, ok, err := st.CallNext(ctx, store.CallNextInput{
				RequestID: uuid.NewString(),
				WindowID:  windowID,
				CalledAt:  time.Now().UTC(),
			})
			results <- callResult{memberID: member.MemberID, ok: ok, err: err}
		}(window.WindowID)
	}
	wg.Wait()
	close(results)

	var ids []string
	for result := range results {
		if result.err != nil {
			t.Fatalf("call next error: %v", result.err)
		}
		if !result.ok {
			t.Fatalf("expected member assignment")
		}
		ids = append(ids, result.memberID)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(ids))
	}
	if ids[0] == ids[1] {
		t.Fatalf("expected distinct members, got %s twice", ids[0])
	}
}

func TestCallNextBusyWindowSerialized(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	result := createTestQueue(t, ctx, st, 1)
	windowID := result.Windows[0].WindowID

	joinTestQueue(t, ctx, st, result.Queue.QueueID, "Ada")
	joinTestQueue(t, ctx, st, result.Queue.QueueID, "Ben")

	if _, _, err := st.CallNext(ctx, store.CallNextInput{
		RequestID: uuid.NewString(),
		WindowID:  windowID,
		CalledAt:  time.Now().UTC(),
	}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	_, _, err := st.CallNext(ctx, store.CallNextInput{
		RequestID: uuid.NewString(),
		WindowID:  windowID,
		CalledAt:  time.Now().UTC(),
	})
	if !errors.Is(err, store.ErrWindowBusy) {
		t.Fatalf("expected ErrWindowBusy, got %v", err)
	}
}

func TestJoinQueueIdempotency(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	result := createTestQueue(t, ctx, st, 1)
	requestID := uuid.NewString()

	first, applied, err := st.JoinQueue(ctx, store.JoinQueueInput{
		RequestID:  requestID,
		QueueID:    result.Queue.QueueID,
		MemberName: "Ada",
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil || !applied {
		t.Fatalf("first join: applied=%v err=%v", applied, err)
	}

	second, applied, err := st.JoinQueue(ctx, store.JoinQueueInput{
		RequestID:  requestID,
		QueueID:    result.Queue.QueueID,
		MemberName: "Ada",
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("replayed join: %v", err)
	}
	if applied {
		t.Fatalf("replay must not apply")
	}
	if second.MemberID != first.MemberID {
		t.Fatalf("expected same member for duplicate request")
	}

	var count int
	row := pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM feed_events WHERE table_name = 'queue_members' AND kind = 'insert'
	`)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("count feed events: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 member insert event, got %d", count)
	}
}

func TestJoinPausedQueueLeavesNoRow(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	result := createTestQueue(t, ctx, st, 1)
	if _, err := st.SetQueueStatus(ctx, result.Queue.QueueID, models.QueuePaused); err != nil {
		t.Fatalf("pause: %v", err)
	}

	_, _, err := st.JoinQueue(ctx, store.JoinQueueInput{
		RequestID:  uuid.NewString(),
		QueueID:    result.Queue.QueueID,
		MemberName: "Ada",
		CreatedAt:  time.Now().UTC(),
	})
	if !errors.Is(err, store.ErrQueuePaused) {
		t.Fatalf("expected ErrQueuePaused, got %v", err)
	}

	var count int
	row := pool.QueryRow(ctx, `SELECT COUNT(*) FROM queue_members WHERE queue_id = $1`, result.Queue.QueueID)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("count members: %v", err)
	}
	if count != 0 {
		t.Fatalf("rejected join left %d rows", count)
	}
}

func TestMemberEventChainPersisted(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	result := createTestQueue(t, ctx, st, 1)
	member := joinTestQueue(t, ctx, st, result.Queue.QueueID, "Ada")

	if _, _, err := st.CallNext(ctx, store.CallNextInput{
		RequestID: uuid.NewString(),
		WindowID:  result.Windows[0].WindowID,
		CalledAt:  time.Now().UTC(),
	}); err != nil {
		t.Fatalf("call: %v", err)
	}

	events, err := st.ListMemberEvents(ctx, member.MemberID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected created and called events, got %d", len(events))
	}
	if events[1].PrevHash != events[0].Hash {
		t.Fatalf("hash chain broken")
	}
	for _, event := range events {
		want := store.ComputeMemberEventHash(event.PrevHash, event.MemberID, event.Type, event.Payload, event.CreatedAt, event.Seq)
		if event.Hash != want {
			t.Fatalf("stored hash mismatch for seq %d", event.Seq)
		}
	}
}

type callResult struct {
	memberID string
	ok       bool
	err      error
}

func createTestQueue(t *testing.T, ctx context.Context, st *Store, windowCount int) store.CreateQueueResult {
	t.Helper()
	result, _, err := st.CreateQueue(ctx, store.CreateQueueInput{
		RequestID:   uuid.NewString(),
		Name:        "Test Queue",
		WindowCount: windowCount,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create queue: %v", err)
	}
	return result
}

func joinTestQueue(t *testing.T, ctx context.Context, st *Store, queueID, name string) models.Member {
	t.Helper()
	member, _, err := st.JoinQueue(ctx, store.JoinQueueInput{
		RequestID:  uuid.NewString(),
		QueueID:    queueID,
		MemberName: name,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return member
}

func setupTestStore(t *testing.T, ctx context.Context) (*Store, *pgxpool.Pool, func()) {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_DB_DSN or DB_DSN is required for integration tests")
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := createSchema(ctx, dsn, schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	pool, err := newPoolWithSchema(ctx, dsn, schema)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("apply migrations: %v", err)
	}

	st := NewStore(pool)
	cleanup := func() {
		pool.Close()
		_ = dropSchema(context.Background(), dsn, schema)
	}
	return st, pool, cleanup
}

func createSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "CREATE SCHEMA "+schema)
	return err
}

func dropSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "DROP SCHEMA "+schema+" CASCADE")
	return err
}

func newPoolWithSchema(ctx context.Context, dsn, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	return pgxpool.NewWithConfig(ctx, cfg)
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	dir := filepath.Join("..", "..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return err
		}
	}
	return nil
}
