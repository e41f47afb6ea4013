package dal

import (
	"context"

	"github.com/fekuna/omnipos-product-dal/internal/logger"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/trace"
)

// SearchResult is one page of basic records plus the unpaginated total.
type SearchResult struct {
	Records *Collection[*Record]
	Total   int
}

// Repository is the public API of one entity definition.
type Repository struct {
	definition string
	reader     EntityReader
	writer     EntityWriter
	searcher   EntitySearcher
}

func NewRepository(definition string, reader EntityReader, writer EntityWriter, searcher EntitySearcher) *Repository {
	return &Repository{
		definition: definition,
		reader:     reader,
		writer:     writer,
		searcher:   searcher,
	}
}

func (r *Repository) Definition() string {
	return r.definition
}

func (r *Repository) Create(ctx context.Context, payloads []map[string]any, sc ShopContext) (*WriteResult, error) {
	return r.writer.Create(ctx, r.definition, payloads, sc)
}

func (r *Repository) Upsert(ctx context.Context, payloads []map[string]any, sc ShopContext) (*WriteResult, error) {
	return r.writer.Upsert(ctx, r.definition, payloads, sc)
}

func (r *Repository) Update(ctx context.Context, payloads []map[string]any, sc ShopContext) (*WriteResult, error) {
	return r.writer.Update(ctx, r.definition, payloads, sc)
}

func (r *Repository) ReadRaw(ctx context.Context, ids []string, sc ShopContext) (*Collection[*Record], error) {
	return r.reader.ReadRaw(ctx, r.definition, ids, sc)
}

func (r *Repository) ReadBasic(ctx context.Context, ids []string, sc ShopContext) (*Collection[*Record], error) {
	return r.reader.ReadBasic(ctx, r.definition, ids, sc)
}

func (r *Repository) ReadDetail(ctx context.Context, ids []string, sc ShopContext) (*Collection[*Record], error) {
	return r.reader.ReadDetail(ctx, r.definition, ids, sc)
}

func (r *Repository) SearchIDs(ctx context.Context, criteria *Criteria, sc ShopContext) (*IDSearchResult, error) {
	return r.searcher.SearchIDs(ctx, r.definition, criteria, sc)
}

// Search returns the basic records of one result page in search order.
func (r *Repository) Search(ctx context.Context, criteria *Criteria, sc ShopContext) (*SearchResult, error) {
	ids, err := r.SearchIDs(ctx, criteria, sc)
	if err != nil {
		return nil, err
	}
	records, err := r.ReadBasic(ctx, ids.IDs, sc)
	if err != nil {
		return nil, err
	}
	return &SearchResult{Records: records, Total: ids.Total}, nil
}

// StackConfig wires the storage-backed components and their decorators.
type StackConfig struct {
	DB       *sqlx.DB
	Registry *Registry
	// Sink receives written and loaded events; nil disables event dispatch.
	Sink EventSink
	// Tracer enables span decoration of reads and searches when set.
	Tracer        trace.Tracer
	Logger        logger.ZapLogger
	WriterOptions []WriterOption
}

// Stack is the decorated reader, writer and searcher shared by all repositories.
type Stack struct {
	Registry *Registry
	Reader   EntityReader
	Writer   EntityWriter
	Searcher EntitySearcher
}

func NewStack(cfg StackConfig) *Stack {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	var reader EntityReader = NewReader(cfg.DB, cfg.Registry)
	var writer EntityWriter = NewWriter(cfg.DB, cfg.Registry, cfg.WriterOptions...)
	var searcher EntitySearcher = NewSearcher(cfg.DB, cfg.Registry)

	if cfg.Sink != nil {
		reader = NewEventReader(reader, cfg.Sink, log)
		writer = NewEventWriter(writer, cfg.Sink, log)
	}
	if cfg.Tracer != nil {
		reader = NewTraceableReader(reader, cfg.Tracer)
		searcher = NewTraceableSearcher(searcher, cfg.Tracer)
	}

	return &Stack{
		Registry: cfg.Registry,
		Reader:   reader,
		Writer:   writer,
		Searcher: searcher,
	}
}

func (s *Stack) Repository(definition string) *Repository {
	return NewRepository(definition, s.Reader, s.Writer, s.Searcher)
}
