package dal_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/fekuna/omnipos-product-dal/internal/dal"
	"github.com/fekuna/omnipos-product-dal/internal/database"
	"github.com/fekuna/omnipos-product-dal/internal/schema"
	"github.com/jmoiron/sqlx"
)

// ============================================================================
// Test Helpers
// ============================================================================

type testEnv struct {
	db    *sqlx.DB
	stack *dal.Stack
}

type envOption func(*dal.StackConfig)

func withSink(sink dal.EventSink) envOption {
	return func(cfg *dal.StackConfig) {
		cfg.Sink = sink
	}
}

func withWriterOptions(opts ...dal.WriterOption) envOption {
	return func(cfg *dal.StackConfig) {
		cfg.WriterOptions = append(cfg.WriterOptions, opts...)
	}
}

// newTestEnv creates a migrated in-memory catalog with the category tree indexer installed.
func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	db, err := database.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	if err := schema.Migrate(context.Background(), db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	registry, err := schema.NewRegistry()
	if err != nil {
		t.Fatalf("failed to compile registry: %v", err)
	}

	cfg := dal.StackConfig{
		DB:            db,
		Registry:      registry,
		WriterOptions: []dal.WriterOption{dal.WithHooks(schema.CategoryTreeIndexer)},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &testEnv{db: db, stack: dal.NewStack(cfg)}
}

func (e *testEnv) repo(definition string) *dal.Repository {
	return e.stack.Repository(definition)
}

func (e *testEnv) upsert(t *testing.T, definition string, payloads ...map[string]any) *dal.WriteResult {
	t.Helper()
	result, err := e.repo(definition).Upsert(context.Background(), payloads, dal.DefaultContext())
	if err != nil {
		t.Fatalf("upsert %s: %v", definition, err)
	}
	return result
}

func (e *testEnv) readBasic(t *testing.T, definition string, ids ...string) *dal.Collection[*dal.Record] {
	t.Helper()
	records, err := e.repo(definition).ReadBasic(context.Background(), ids, dal.DefaultContext())
	if err != nil {
		t.Fatalf("read %s: %v", definition, err)
	}
	return records
}

func (e *testEnv) readRaw(t *testing.T, definition string, ids ...string) *dal.Collection[*dal.Record] {
	t.Helper()
	records, err := e.repo(definition).ReadRaw(context.Background(), ids, dal.DefaultContext())
	if err != nil {
		t.Fatalf("read %s: %v", definition, err)
	}
	return records
}

func (e *testEnv) readDetail(t *testing.T, definition string, ids ...string) *dal.Collection[*dal.Record] {
	t.Helper()
	records, err := e.repo(definition).ReadDetail(context.Background(), ids, dal.DefaultContext())
	if err != nil {
		t.Fatalf("read %s: %v", definition, err)
	}
	return records
}

func (e *testEnv) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	if err := e.db.QueryRowx(e.db.Rebind(query), args...).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// productPayload returns a complete root product with a nested manufacturer.
func productPayload(id, name string, price float64) map[string]any {
	return map[string]any{
		"id":           id,
		"name":         name,
		"price":        price,
		"stock":        10,
		"taxId":        dal.DefaultTaxID,
		"manufacturer": map[string]any{"name": "Acme"},
	}
}

func mustRecord(t *testing.T, records *dal.Collection[*dal.Record], id string) *dal.Record {
	t.Helper()
	rec, ok := records.Get(id)
	if !ok {
		t.Fatalf("record %s not found in %v", id, records.IDs())
	}
	return rec
}

// writeError asserts a WriteStackError and returns it.
func writeError(t *testing.T, err error) *dal.WriteStackError {
	t.Helper()
	var wse *dal.WriteStackError
	if !errors.As(err, &wse) {
		t.Fatalf("expected a WriteStackError, got %v", err)
	}
	if !errors.Is(err, dal.ErrValidation) {
		t.Fatalf("expected error to wrap ErrValidation")
	}
	return wse
}

func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func assertEqual(t *testing.T, expected, actual any) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Fatalf("expected %v (%T), got %v (%T)", expected, expected, actual, actual)
	}
}

func assertLen(t *testing.T, expected int, records *dal.Collection[*dal.Record]) {
	t.Helper()
	if records.Len() != expected {
		t.Fatalf("expected %d records, got %d (%v)", expected, records.Len(), records.IDs())
	}
}
