package store

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgres(t *testing.T) *Postgres {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed store test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("ninja"),
		postgres.WithUsername("ninja"),
		postgres.WithPassword("ninja"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("container connection string: %v", err)
	}

	pg, err := NewPostgres(ctx, connStr)
	if err != nil {
		t.Fatalf("NewPostgres() error = %v", err)
	}
	t.Cleanup(pg.Close)
	return pg
}

func TestPostgresRoundTrip(t *testing.T) {
	pg := setupPostgres(t)
	ctx := context.Background()
	kv := pg.Namespace("scoreboard")

	if _, ok, err := kv.Get(ctx, "alice"); err != nil || ok {
		t.Fatalf("Get(missing) = (_, %v, %v), want not found without error", ok, err)
	}

	if err := kv.Set(ctx, "alice", "10"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, ok, err := kv.Get(ctx, "alice")
	if err != nil || !ok || v != "10" {
		t.Fatalf("Get() = (%q, %v, %v), want 10", v, ok, err)
	}

	// Set must overwrite.
	if err := kv.Set(ctx, "alice", "11"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, _, err = kv.Get(ctx, "alice")
	if err != nil || v != "11" {
		t.Fatalf("Get() = (%q, %v), want 11", v, err)
	}
}

func TestPostgresIncrement(t *testing.T) {
	pg := setupPostgres(t)
	ctx := context.Background()
	kv := pg.Namespace("scoreboard")

	v, err := kv.Increment(ctx, "alice", 7)
	if err != nil || v != 7 {
		t.Fatalf("Increment(new key) = (%d, %v), want 7", v, err)
	}
	v, err = kv.Increment(ctx, "alice", 3)
	if err != nil || v != 10 {
		t.Fatalf("Increment(existing) = (%d, %v), want 10", v, err)
	}
}

func TestPostgresNamespaceIsolation(t *testing.T) {
	pg := setupPostgres(t)
	ctx := context.Background()
	scores := pg.Namespace("scoreboard")
	blocked := pg.Namespace("blocked")

	if err := scores.Set(ctx, "alice", "10"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := blocked.Set(ctx, "mallory", ""); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if _, ok, err := blocked.Get(ctx, "alice"); err != nil || ok {
		t.Fatal("namespaces must not share keys")
	}

	if err := scores.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	m, err := blocked.ToMap(ctx)
	if err != nil || len(m) != 1 {
		t.Fatalf("clearing one namespace must not touch another: (%v, %v)", m, err)
	}
}

func TestPostgresDeleteAndToMap(t *testing.T) {
	pg := setupPostgres(t)
	ctx := context.Background()
	kv := pg.Namespace("scoreboard")

	_ = kv.Set(ctx, "alice", "1")
	_ = kv.Set(ctx, "bob", "2")

	if err := kv.Delete(ctx, "alice"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	m, err := kv.ToMap(ctx)
	if err != nil {
		t.Fatalf("ToMap() error = %v", err)
	}
	if len(m) != 1 || m["bob"] != "2" {
		t.Fatalf("ToMap() = %v, want only bob", m)
	}
}
