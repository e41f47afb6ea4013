package dal_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fekuna/omnipos-product-dal/internal/dal"
	"github.com/fekuna/omnipos-product-dal/internal/logger"
	"github.com/fekuna/omnipos-product-dal/internal/schema"
)

type recordingSink struct {
	mu     sync.Mutex
	events []dal.Event
	err    error
}

func (s *recordingSink) Dispatch(ctx context.Context, event dal.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventName())
	}
	return out
}

func (s *recordingSink) loaded() map[string]*dal.LoadedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]*dal.LoadedEvent{}
	for _, e := range s.events {
		if l, ok := e.(*dal.LoadedEvent); ok {
			out[l.EventName()] = l
		}
	}
	return out
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

func TestEventWriterDispatchesWrittenEvents(t *testing.T) {
	sink := &recordingSink{}
	env := newTestEnv(t, withSink(sink))
	id := dal.NewID()

	env.upsert(t, schema.Product, productPayload(id, "evented", 1))
	assertEqual(t, []string{"product_manufacturer.written", "product.written"}, sink.names())

	written, ok := sink.events[1].(*dal.WrittenEvent)
	if !ok {
		t.Fatalf("expected a written event, got %T", sink.events[1])
	}
	assertEqual(t, []string{id}, written.IDs)
}

func TestEventWriterSkipsFailedWrites(t *testing.T) {
	sink := &recordingSink{}
	env := newTestEnv(t, withSink(sink))

	_, err := env.repo(schema.Product).Upsert(context.Background(),
		[]map[string]any{productPayload(dal.NewID(), "invalid", -1)}, dal.DefaultContext())
	writeError(t, err)
	assertEqual(t, []string{}, sink.names())
}

func TestEventReaderDispatchesNestedLoadedEvents(t *testing.T) {
	sink := &recordingSink{}
	env := newTestEnv(t, withSink(sink))
	id := dal.NewID()
	result := env.upsert(t, schema.Product, productPayload(id, "loaded", 1))
	manufacturerID := result.IDs(schema.Manufacturer)[0]
	sink.reset()

	env.readBasic(t, schema.Product, id)
	loaded := sink.loaded()

	product, ok := loaded["product.basic.loaded"]
	if !ok {
		t.Fatalf("expected a product loaded event, got %v", sink.names())
	}
	assertEqual(t, []string{id}, product.IDs)

	manufacturer, ok := loaded["product_manufacturer.basic.loaded"]
	if !ok {
		t.Fatalf("expected a manufacturer loaded event, got %v", sink.names())
	}
	assertEqual(t, []string{manufacturerID}, manufacturer.IDs)

	tax, ok := loaded["tax.basic.loaded"]
	if !ok {
		t.Fatalf("expected a tax loaded event, got %v", sink.names())
	}
	assertEqual(t, []string{dal.DefaultTaxID}, tax.IDs)
}

func TestEventReaderRawProjection(t *testing.T) {
	sink := &recordingSink{}
	env := newTestEnv(t, withSink(sink))
	id := dal.NewID()
	env.upsert(t, schema.Product, productPayload(id, "raw", 1))
	sink.reset()

	env.readRaw(t, schema.Product, id)
	assertEqual(t, []string{"product.raw.loaded"}, sink.names())
}

func TestEventSinkErrorsDoNotFailCalls(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}
	env := newTestEnv(t, withSink(sink))
	id := dal.NewID()

	env.upsert(t, schema.Product, productPayload(id, "resilient", 1))
	assertLen(t, 1, env.readBasic(t, schema.Product, id))
}

type staticReader struct {
	records *dal.Collection[*dal.Record]
	err     error
}

func (r staticReader) ReadRaw(ctx context.Context, definition string, ids []string, sc dal.ShopContext) (*dal.Collection[*dal.Record], error) {
	return r.records, r.err
}

func (r staticReader) ReadBasic(ctx context.Context, definition string, ids []string, sc dal.ShopContext) (*dal.Collection[*dal.Record], error) {
	return r.records, r.err
}

func (r staticReader) ReadDetail(ctx context.Context, definition string, ids []string, sc dal.ShopContext) (*dal.Collection[*dal.Record], error) {
	return r.records, r.err
}

func TestEventReaderFallsBackToRootEvent(t *testing.T) {
	var events []dal.Event
	sink := dal.EventSinkFunc(func(ctx context.Context, event dal.Event) error {
		events = append(events, event)
		return nil
	})
	records := dal.NewCollection(&dal.Record{Definition: "thing", ID: "a"}, &dal.Record{Definition: "thing", ID: "b"})
	reader := dal.NewEventReader(staticReader{records: records}, sink, logger.NewNop())

	_, err := reader.ReadDetail(context.Background(), "thing", []string{"a", "b"}, dal.DefaultContext())
	assertNoError(t, err)
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	assertEqual(t, "thing.detail.loaded", events[0].EventName())
	assertEqual(t, []string{"a", "b"}, events[0].(*dal.LoadedEvent).IDs)

	events = nil
	reader = dal.NewEventReader(staticReader{err: errors.New("read failed")}, sink, logger.NewNop())
	_, err = reader.ReadBasic(context.Background(), "thing", []string{"a"}, dal.DefaultContext())
	if err == nil {
		t.Fatalf("expected the read error to be returned")
	}
	assertEqual(t, 0, len(events))
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	var calls int
	failing := func(err error) dal.EventSink {
		return dal.EventSinkFunc(func(ctx context.Context, event dal.Event) error {
			calls++
			return err
		})
	}

	sink := dal.MultiSink{failing(first), failing(nil), failing(second)}
	err := sink.Dispatch(context.Background(), &dal.WrittenEvent{Definition: "tax"})
	assertEqual(t, 3, calls)
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Fatalf("expected both errors to be joined, got %v", err)
	}

	calls = 0
	assertNoError(t, dal.MultiSink{failing(nil)}.Dispatch(context.Background(), &dal.WrittenEvent{Definition: "tax"}))
	assertEqual(t, 1, calls)
}
