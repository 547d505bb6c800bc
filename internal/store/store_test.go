package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Clark-Hu/ratings-api/internal/store"
	"github.com/Clark-Hu/ratings-api/internal/testdb"
)

func TestMigrateIsIdempotent(t *testing.T) {
	db := testdb.Start(t, "ratings_store_test")

	// testdb.Start already applied the schema once.
	if err := store.Migrate(db.DSN, nil); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var exists bool
	err := db.Pool.QueryRow(context.Background(),
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'ratings')").Scan(&exists)
	if err != nil {
		t.Fatalf("query schema: %v", err)
	}
	if !exists {
		t.Fatalf("ratings table missing after migrate")
	}
}

func TestNewAndHealthCheck(t *testing.T) {
	db := testdb.Start(t, "ratings_store_health")
	ctx := context.Background()

	st, err := store.New(ctx, db.DSN, store.Options{
		MaxConns:               4,
		MinConns:               1,
		ConnTimeout:            5 * time.Second,
		StatementCacheCapacity: 16,
	})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer st.Close()

	if err := st.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if st.Stats() == nil {
		t.Fatalf("Stats returned nil for open store")
	}
}

func TestHealthCheckNilStore(t *testing.T) {
	var st *store.Store
	if err := st.HealthCheck(context.Background()); !errors.Is(err, store.ErrNotInitialized) {
		t.Fatalf("HealthCheck on nil store = %v, want ErrNotInitialized", err)
	}
	if st.Stats() != nil {
		t.Fatalf("Stats on nil store should be nil")
	}
	st.Close()
}

func TestNewInvalidURL(t *testing.T) {
	_, err := store.New(context.Background(), "://not-a-url", store.Options{})
	if err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestCloseLogsPoolStats(t *testing.T) {
	db := testdb.Start(t, "ratings_store_close")
	core, logs := observer.New(zapcore.InfoLevel)

	st, err := store.New(context.Background(), db.DSN, store.Options{MaxConns: 2, Logger: zap.New(core)})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	if err := st.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	st.Close()

	entries := logs.FilterMessage("store: closing connection pool").All()
	if len(entries) != 1 {
		t.Fatalf("close log entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	for _, key := range []string{"total_conns", "acquired_conns", "acquire_count", "acquire_duration"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("close log missing %q: %v", key, fields)
		}
	}
	if got, ok := fields["acquire_count"].(int64); !ok || got < 1 {
		t.Fatalf("acquire_count = %v, want at least 1", fields["acquire_count"])
	}
}
