package main

import (
	"context"
	"encoding/json"
	"expvar"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Criozon/q-app/internal/config"
	"github.com/Criozon/q-app/internal/httpapi"
	"github.com/Criozon/q-app/internal/hub"
	"github.com/Criozon/q-app/internal/store/postgres"
	"github.com/Criozon/q-app/internal/telemetry"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const zeroUUID = "00000000-0000-0000-0000-000000000000"

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup("q-server")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	st := postgres.NewStore(pool)
	h := hub.New()
	handler := httpapi.NewHandler(st)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:  cfg.IPPerMinute,
		IPBurst:      cfg.IPBurst,
		KeyPerMinute: cfg.KeyPerMinute,
		KeyBurst:     cfg.KeyBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/", handler.Routes())
	mux.Handle("/realtime/", newRealtimeHandler(h))

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(mux)), "q-server")
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("q-server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	go pollFeed(st, h, cfg)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// newRealtimeHandler serves the sockjs endpoint. Clients send subscribe
// messages naming the queue (and optionally a table) they want change events
// for; anyone who can reach the queue page can subscribe.
func newRealtimeHandler(h *hub.Hub) http.Handler {
	return sockjs.NewHandler("/realtime", sockjs.DefaultOptions, func(session sockjs.Session) {
		client := &hub.Client{ID: uuid.NewString(), Send: make(chan []byte, 16)}
		h.Register(client)
		defer h.Unregister(client)

		go func() {
			for msg := range client.Send {
				_ = session.Send(string(msg))
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			parsed, ok := hub.ParseSubscribe([]byte(msg))
			if !ok {
				continue
			}
			if parsed.Action == "unsubscribe" {
				h.UpdateSubscription(client, hub.Subscription{})
				continue
			}
			h.UpdateSubscription(client, hub.Subscription{
				QueueID: parsed.QueueID,
				Table:   parsed.Table,
			})
		}
	})
}

// pollFeed drains the change feed into the hub. The offset row makes the
// poller restartable without replaying events; delivered events older than
// the retention window are pruned.
func pollFeed(st *postgres.Store, h *hub.Hub, cfg config.Config) {
	offset, err := st.GetFeedOffset(context.Background())
	if err != nil {
		log.Printf("load feed offset error: %v", err)
	}
	if offset.LastEventTime.IsZero() {
		offset.LastEventTime = time.Unix(0, 0).UTC()
	}
	if offset.LastEventID == "" {
		offset.LastEventID = zeroUUID
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	var running int32
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if !atomic.CompareAndSwapInt32(&running, 0, 1) {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		events, err := st.ListFeedEvents(ctx, offset, cfg.BatchSize)
		cancel()
		if err == nil {
			for _, event := range events {
				offset.LastEventTime = event.CreatedAt
				offset.LastEventID = event.EventID
				payload, _ := json.Marshal(event)
				h.Broadcast(payload, hub.Subscription{QueueID: event.QueueID, Table: event.Table})
			}
			if len(events) > 0 {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := st.UpdateFeedOffset(ctx, offset); err != nil {
					log.Printf("update feed offset error: %v", err)
				}
				if cfg.FeedKeep > 0 {
					cutoff := offset.LastEventTime.Add(-cfg.FeedKeep)
					if err := st.CleanupFeed(ctx, cutoff); err != nil {
						log.Printf("cleanup feed error: %v", err)
					}
				}
				cancel()
			}
		}
		atomic.StoreInt32(&running, 0)
	}
}
