package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"evquota/libs/db"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	sqlDB, err := db.NewSQLiteDB(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store, err := NewSQLStore(context.Background(), sqlDB, DialectSQLite)
	if err != nil {
		t.Fatalf("new sql store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	return store
}

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	store := NewRedisStore(client, "")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// newPostgresStore needs OCPP_TEST_POSTGRES_DSN pointing at a disposable database.
func newPostgresStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := os.Getenv("OCPP_TEST_POSTGRES_DSN")
	if dsn == "" {
		return nil
	}
	sqlDB, err := db.NewPostgresDB(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	if _, err := sqlDB.Exec(`DROP TABLE IF EXISTS ocpp_documents`); err != nil {
		t.Fatalf("reset documents table: %v", err)
	}
	store, err := NewSQLStore(context.Background(), sqlDB, DialectPostgres)
	if err != nil {
		t.Fatalf("new sql store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoresRoundTripDocuments(t *testing.T) {
	backends := map[string]Store{
		"file":   newFileStore(t),
		"sqlite": newSQLiteStore(t),
		"redis":  newRedisStore(t),
	}
	if pg := newPostgresStore(t); pg != nil {
		backends["postgres"] = pg
	}

	for name, store := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := store.Get(ctx, DocUsage); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound for missing document, got %v", err)
			}

			if err := SaveJSON(ctx, store, DocUsage, map[string]float64{"U1": 12.5}); err != nil {
				t.Fatalf("save: %v", err)
			}
			if err := SaveJSON(ctx, store, DocUsage, map[string]float64{"U1": 20}); err != nil {
				t.Fatalf("overwrite: %v", err)
			}

			var usage map[string]float64
			if err := LoadJSON(ctx, store, DocUsage, &usage); err != nil {
				t.Fatalf("load: %v", err)
			}
			if usage["U1"] != 20 {
				t.Fatalf("expected latest body, got %v", usage)
			}
		})
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Put(ctx, DocResetMarker, []byte("2024-05")); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	entries, err := os.ReadDir(store.dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one document file, got %d", len(entries))
	}
}

func TestLoadJSONReportsCorruptDocument(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()
	if err := store.Put(ctx, DocSessions, []byte("{not json")); err != nil {
		t.Fatalf("put: %v", err)
	}

	var sessions map[string]any
	err := LoadJSON(ctx, store, DocSessions, &sessions)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestSQLiteBindRewritesPlaceholders(t *testing.T) {
	s := &SQLStore{dialect: DialectSQLite}
	got := s.bind("VALUES ($1, $2, $10)")
	if got != "VALUES (?, ?, ?)" {
		t.Fatalf("unexpected rewrite %q", got)
	}

	pg := &SQLStore{dialect: DialectPostgres}
	if pg.bind("$1") != "$1" {
		t.Fatalf("postgres placeholders must be kept")
	}
}

func TestRedisStoreUsesPrefixedKeys(t *testing.T) {
	srv := miniredis.RunT(t)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: srv.Addr()}), "test:")
	t.Cleanup(func() { _ = store.Close() })

	if err := Save(context.Background(), store, DocResetMarker, []byte("2024-05")); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := srv.Get("test:" + DocResetMarker)
	if err != nil || got != "2024-05" {
		t.Fatalf("unexpected key contents %q: %v", got, err)
	}

	srv.Close()
	if _, err := store.Get(context.Background(), DocResetMarker); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected backend error after server stop, got %v", err)
	}
}

type ctxCheckingStore struct {
	puts     int
	deadline bool
}

func (s *ctxCheckingStore) Get(context.Context, string) ([]byte, error) { return nil, ErrNotFound }

func (s *ctxCheckingStore) Put(ctx context.Context, _ string, _ []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, s.deadline = ctx.Deadline()
	s.puts++
	return nil
}

func (s *ctxCheckingStore) Close() error { return nil }

func TestSaveSurvivesCanceledContext(t *testing.T) {
	store := &ctxCheckingStore{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := SaveJSON(ctx, store, DocUsage, map[string]float64{"U1": 1}); err != nil {
		t.Fatalf("save with canceled context: %v", err)
	}
	if store.puts != 1 || !store.deadline {
		t.Fatalf("expected one bounded write, got puts=%d deadline=%v", store.puts, store.deadline)
	}
	if WriteTimeout <= 0 || WriteTimeout > time.Minute {
		t.Fatalf("unexpected write timeout %v", WriteTimeout)
	}
}
