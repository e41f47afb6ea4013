package dal

import (
	"context"
	"errors"
	"sync"

	"github.com/fekuna/omnipos-product-dal/internal/logger"
	"go.uber.org/zap"
)

// Event is published after a successful write or read.
type Event interface {
	EventName() string
}

// EventName is "<definition>.written".
func (e *WrittenEvent) EventName() string {
	return e.Definition + ".written"
}

// LoadedEvent lists the rows of one definition hydrated by a read, nested associations included.
type LoadedEvent struct {
	Definition string
	Projection Projection
	IDs        []string
}

// EventName is "<definition>.<projection>.loaded".
func (e *LoadedEvent) EventName() string {
	return e.Definition + "." + e.Projection.String() + ".loaded"
}

type EventSink interface {
	Dispatch(ctx context.Context, event Event) error
}

type EventSinkFunc func(ctx context.Context, event Event) error

func (f EventSinkFunc) Dispatch(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// MultiSink dispatches to every sink and joins their errors.
type MultiSink []EventSink

func (m MultiSink) Dispatch(ctx context.Context, event Event) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Dispatch(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EventWriter dispatches one WrittenEvent per definition after a committed write.
type EventWriter struct {
	next   EntityWriter
	sink   EventSink
	logger logger.ZapLogger
}

func NewEventWriter(next EntityWriter, sink EventSink, log logger.ZapLogger) *EventWriter {
	return &EventWriter{next: next, sink: sink, logger: log}
}

func (w *EventWriter) Create(ctx context.Context, definition string, payloads []map[string]any, sc ShopContext) (*WriteResult, error) {
	result, err := w.next.Create(ctx, definition, payloads, sc)
	w.dispatch(ctx, result, err)
	return result, err
}

func (w *EventWriter) Upsert(ctx context.Context, definition string, payloads []map[string]any, sc ShopContext) (*WriteResult, error) {
	result, err := w.next.Upsert(ctx, definition, payloads, sc)
	w.dispatch(ctx, result, err)
	return result, err
}

func (w *EventWriter) Update(ctx context.Context, definition string, payloads []map[string]any, sc ShopContext) (*WriteResult, error) {
	result, err := w.next.Update(ctx, definition, payloads, sc)
	w.dispatch(ctx, result, err)
	return result, err
}

func (w *EventWriter) dispatch(ctx context.Context, result *WriteResult, err error) {
	if err != nil || result == nil {
		return
	}
	for _, event := range result.Events {
		if err := w.sink.Dispatch(ctx, event); err != nil {
			w.logger.Error("failed to dispatch written event",
				zap.String("event", event.EventName()),
				zap.Int("ids", len(event.IDs)),
				zap.Error(err),
			)
		}
	}
}

// EventReader dispatches one LoadedEvent per hydrated definition after a read.
type EventReader struct {
	next   EntityReader
	sink   EventSink
	logger logger.ZapLogger
}

func NewEventReader(next EntityReader, sink EventSink, log logger.ZapLogger) *EventReader {
	return &EventReader{next: next, sink: sink, logger: log}
}

func (r *EventReader) ReadRaw(ctx context.Context, definition string, ids []string, sc ShopContext) (*Collection[*Record], error) {
	ctx, log := withLoadLog(ctx)
	result, err := r.next.ReadRaw(ctx, definition, ids, sc)
	r.dispatch(ctx, log, definition, ProjectionRaw, result, err)
	return result, err
}

func (r *EventReader) ReadBasic(ctx context.Context, definition string, ids []string, sc ShopContext) (*Collection[*Record], error) {
	ctx, log := withLoadLog(ctx)
	result, err := r.next.ReadBasic(ctx, definition, ids, sc)
	r.dispatch(ctx, log, definition, ProjectionBasic, result, err)
	return result, err
}

func (r *EventReader) ReadDetail(ctx context.Context, definition string, ids []string, sc ShopContext) (*Collection[*Record], error) {
	ctx, log := withLoadLog(ctx)
	result, err := r.next.ReadDetail(ctx, definition, ids, sc)
	r.dispatch(ctx, log, definition, ProjectionDetail, result, err)
	return result, err
}

func (r *EventReader) dispatch(ctx context.Context, log *loadLog, definition string, p Projection, result *Collection[*Record], err error) {
	if err != nil {
		return
	}
	events := log.events()
	if len(events) == 0 {
		// the delegate does not report nested loads
		events = []*LoadedEvent{{Definition: definition, Projection: p, IDs: result.IDs()}}
	}
	for _, event := range events {
		if err := r.sink.Dispatch(ctx, event); err != nil {
			r.logger.Error("failed to dispatch loaded event",
				zap.String("event", event.EventName()),
				zap.Error(err),
			)
		}
	}
}

type loadLogKey struct{}

// loadLog collects the loaded ids per definition and projection of one read call.
type loadLog struct {
	mu      sync.Mutex
	entries []*LoadedEvent
}

func withLoadLog(ctx context.Context) (context.Context, *loadLog) {
	log := &loadLog{}
	return context.WithValue(ctx, loadLogKey{}, log), log
}

func recordLoaded(ctx context.Context, definition string, p Projection, ids []string) {
	log, ok := ctx.Value(loadLogKey{}).(*loadLog)
	if !ok {
		return
	}
	log.mu.Lock()
	defer log.mu.Unlock()
	for _, e := range log.entries {
		if e.Definition == definition && e.Projection == p {
			e.IDs = uniqueIDs(append(e.IDs, ids...))
			return
		}
	}
	log.entries = append(log.entries, &LoadedEvent{Definition: definition, Projection: p, IDs: ids})
}

func (l *loadLog) events() []*LoadedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*LoadedEvent, len(l.entries))
	copy(out, l.entries)
	return out
}
