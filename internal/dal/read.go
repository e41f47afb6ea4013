package dal

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

// Projection is the shape of a read result.
type Projection int

const (
	// ProjectionRaw returns stored rows with their own translation, without inheritance or associations.
	ProjectionRaw Projection = iota
	// ProjectionBasic overlays translations and parent values and hydrates basic associations.
	ProjectionBasic
	// ProjectionDetail additionally hydrates detail associations.
	ProjectionDetail
)

func (p Projection) String() string {
	switch p {
	case ProjectionRaw:
		return "raw"
	case ProjectionBasic:
		return "basic"
	case ProjectionDetail:
		return "detail"
	}
	return "unknown"
}

// EntityReader loads entities by id in one of the three projections.
type EntityReader interface {
	ReadRaw(ctx context.Context, definition string, ids []string, sc ShopContext) (*Collection[*Record], error)
	ReadBasic(ctx context.Context, definition string, ids []string, sc ShopContext) (*Collection[*Record], error)
	ReadDetail(ctx context.Context, definition string, ids []string, sc ShopContext) (*Collection[*Record], error)
}

// Reader is the storage-backed EntityReader.
type Reader struct {
	db       sqlx.ExtContext
	registry *Registry
}

func NewReader(db sqlx.ExtContext, registry *Registry) *Reader {
	return &Reader{db: db, registry: registry}
}

func (r *Reader) ReadRaw(ctx context.Context, definition string, ids []string, sc ShopContext) (*Collection[*Record], error) {
	return r.read(ctx, definition, ids, sc, ProjectionRaw)
}

func (r *Reader) ReadBasic(ctx context.Context, definition string, ids []string, sc ShopContext) (*Collection[*Record], error) {
	return r.read(ctx, definition, ids, sc, ProjectionBasic)
}

func (r *Reader) ReadDetail(ctx context.Context, definition string, ids []string, sc ShopContext) (*Collection[*Record], error) {
	return r.read(ctx, definition, ids, sc, ProjectionDetail)
}

func (r *Reader) read(ctx context.Context, name string, ids []string, sc ShopContext, p Projection) (*Collection[*Record], error) {
	def, err := r.registry.Definition(name)
	if err != nil {
		return nil, err
	}
	if def.Mapping {
		return nil, fmt.Errorf("%w: %s is a mapping definition", ErrUnsupportedProjection, def.Name)
	}
	return r.readDefinition(ctx, def, ids, sc.withDefaults(), p)
}

func (r *Reader) readDefinition(ctx context.Context, def *Definition, ids []string, sc ShopContext, p Projection) (*Collection[*Record], error) {
	out := NewCollection[*Record]()
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := loadRows(ctx, r.db, def, def.idColumn(), ids)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", def.Name, err)
	}

	languages := sc.languages()
	if p == ProjectionRaw {
		languages = languages[:1]
	}
	if err := overlayTranslations(ctx, r.db, def, rows, languages); err != nil {
		return nil, fmt.Errorf("load %s translations: %w", def.Name, err)
	}

	if p != ProjectionRaw {
		parents, err := r.overlayParents(ctx, def, rows, languages)
		if err != nil {
			return nil, fmt.Errorf("load %s parents: %w", def.Name, err)
		}
		if err := r.hydrate(ctx, def, rows, parents, sc, p); err != nil {
			return nil, err
		}
	}

	byID := make(map[string]*Record, len(rows))
	for _, rec := range rows {
		byID[rec.ID] = rec
	}
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			out.Add(rec)
		}
	}
	recordLoaded(ctx, def.Name, p, out.IDs())
	return out, nil
}

// overlayParents fills NULL inherited fields from the parent row, one level deep.
// It returns the parent records keyed by id for association inheritance.
func (r *Reader) overlayParents(ctx context.Context, def *Definition, rows []*Record, languages []string) (map[string]*Record, error) {
	parents := map[string]*Record{}
	if !def.Inheritable() {
		return parents, nil
	}

	var parentIDs []string
	for _, rec := range rows {
		if pid, ok := rec.Values[def.ParentField].(string); ok {
			parentIDs = append(parentIDs, pid)
		}
	}
	parentIDs = uniqueIDs(parentIDs)
	if len(parentIDs) == 0 {
		return parents, nil
	}

	parentRows, err := loadRows(ctx, r.db, def, def.idColumn(), parentIDs)
	if err != nil {
		return nil, err
	}
	if err := overlayTranslations(ctx, r.db, def, parentRows, languages); err != nil {
		return nil, err
	}
	for _, p := range parentRows {
		parents[p.ID] = p
	}

	for _, rec := range rows {
		pid, _ := rec.Values[def.ParentField].(string)
		parent, ok := parents[pid]
		if !ok {
			continue
		}
		for _, f := range def.Fields {
			if !f.Inherited || f.Virtual() {
				continue
			}
			if rec.Values[f.Name] == nil {
				rec.Values[f.Name] = parent.Values[f.Name]
			}
		}
	}
	return parents, nil
}

type hydration map[string]*Collection[*Record]

// hydrate loads every association of the projection concurrently and assigns
// the results once all lookups completed.
func (r *Reader) hydrate(ctx context.Context, def *Definition, rows []*Record, parents map[string]*Record, sc ShopContext, p Projection) error {
	var assocs []*Association
	for _, a := range def.Associations {
		if a.loadedIn(p) {
			assocs = append(assocs, a)
		}
	}
	if len(assocs) == 0 || len(rows) == 0 {
		return nil
	}

	results := make([]hydration, len(assocs))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range assocs {
		g.Go(func() error {
			res, err := r.loadAssociation(gctx, a, rows, parents, sc)
			if err != nil {
				return fmt.Errorf("load %s.%s: %w", def.Name, a.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, a := range assocs {
		for _, rec := range rows {
			related := results[i][rec.ID]
			if a.Kind == ManyToOne || a.Kind == OneToOne {
				if rec.One == nil {
					rec.One = make(map[string]*Record)
				}
				first, _ := related.First()
				rec.One[a.Name] = first
				continue
			}
			if rec.Many == nil {
				rec.Many = make(map[string]*Collection[*Record])
			}
			if related == nil {
				related = NewCollection[*Record]()
			}
			rec.Many[a.Name] = related
		}
	}
	return nil
}

type link struct {
	owner  string
	target string
}

func (r *Reader) loadAssociation(ctx context.Context, a *Association, rows []*Record, parents map[string]*Record, sc ShopContext) (hydration, error) {
	res := hydration{}

	if a.Kind == ManyToOne {
		var fks []string
		for _, rec := range rows {
			if fk, ok := rec.Values[a.LocalField].(string); ok {
				fks = append(fks, fk)
			}
		}
		targets, err := r.readDefinition(ctx, a.target, fks, sc, ProjectionBasic)
		if err != nil {
			return nil, err
		}
		for _, rec := range rows {
			fk, _ := rec.Values[a.LocalField].(string)
			if t, ok := targets.Get(fk); ok {
				res[rec.ID] = NewCollection(t)
			}
		}
		return res, nil
	}

	// owner key of each row, and of its parent when the association is inherited
	ownerKey := func(rec *Record) string {
		if a.Kind == ManyToMany && a.LocalJoinField != "" {
			if key, ok := rec.Values[a.LocalJoinField].(string); ok {
				return key
			}
		}
		return rec.ID
	}
	var keys []string
	for _, rec := range rows {
		keys = append(keys, ownerKey(rec))
		if a.Inherited && a.source.Inheritable() {
			if parent, ok := parents[parentOf(a.source, rec)]; ok {
				keys = append(keys, ownerKey(parent))
			}
		}
	}
	keys = uniqueIDs(keys)

	var links []link
	var err error
	if a.Kind == ManyToMany {
		links, err = r.loadMappingLinks(ctx, a, keys)
	} else {
		links, err = r.loadReferenceLinks(ctx, a.target, a.ReferenceField, a.PositionField, keys)
	}
	if err != nil {
		return nil, err
	}

	targetIDs := make([]string, 0, len(links))
	for _, l := range links {
		targetIDs = append(targetIDs, l.target)
	}
	targets, err := r.readDefinition(ctx, a.target, targetIDs, sc, ProjectionBasic)
	if err != nil {
		return nil, err
	}

	grouped := map[string]*Collection[*Record]{}
	for _, l := range links {
		t, ok := targets.Get(l.target)
		if !ok {
			continue
		}
		if grouped[l.owner] == nil {
			grouped[l.owner] = NewCollection[*Record]()
		}
		grouped[l.owner].Add(t)
	}

	for _, rec := range rows {
		own := grouped[ownerKey(rec)]
		if own.Len() == 0 && a.Inherited {
			if parent, ok := parents[parentOf(a.source, rec)]; ok {
				own = grouped[ownerKey(parent)]
			}
		}
		if own != nil {
			res[rec.ID] = own
		}
	}
	return res, nil
}

func parentOf(def *Definition, rec *Record) string {
	if !def.Inheritable() {
		return ""
	}
	pid, _ := rec.Values[def.ParentField].(string)
	return pid
}

// loadReferenceLinks returns the target ids whose reference field points to one of owners.
func (r *Reader) loadReferenceLinks(ctx context.Context, target *Definition, referenceField, positionField string, owners []string) ([]link, error) {
	if len(owners) == 0 {
		return nil, nil
	}
	refColumn := target.fields[referenceField].Column
	order := target.idColumn()
	if positionField != "" {
		order = target.fields[positionField].Column + ", " + order
	}
	query := fmt.Sprintf("SELECT %s AS owner, %s AS target FROM %s WHERE %s IN (?) ORDER BY %s",
		refColumn, target.idColumn(), target.Table, refColumn, order)
	return queryLinks(ctx, r.db, query, owners)
}

// loadMappingLinks resolves many-to-many targets through the mapping table,
// honouring the join fields configured on the association.
func (r *Reader) loadMappingLinks(ctx context.Context, a *Association, keys []string) ([]link, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	local := a.mapping.fields[a.MappingLocal].Column
	reference := a.mapping.fields[a.MappingReference].Column
	query := fmt.Sprintf("SELECT %s AS owner, %s AS target FROM %s WHERE %s IN (?) ORDER BY %s, %s",
		local, reference, a.mapping.Table, local, local, reference)
	links, err := queryLinks(ctx, r.db, query, keys)
	if err != nil || a.ReferenceJoinField == "" {
		return links, err
	}

	// mapping rows point to join values of the target, expand them to target ids
	joinValues := make([]string, 0, len(links))
	for _, l := range links {
		joinValues = append(joinValues, l.target)
	}
	joinColumn := a.target.fields[a.ReferenceJoinField].Column
	query = fmt.Sprintf("SELECT %s AS owner, %s AS target FROM %s WHERE %s IN (?) ORDER BY %s",
		joinColumn, a.target.idColumn(), a.target.Table, joinColumn, a.target.idColumn())
	expanded, err := queryLinks(ctx, r.db, query, uniqueIDs(joinValues))
	if err != nil {
		return nil, err
	}
	byJoin := map[string][]string{}
	for _, l := range expanded {
		byJoin[l.owner] = append(byJoin[l.owner], l.target)
	}
	var out []link
	for _, l := range links {
		for _, id := range byJoin[l.target] {
			out = append(out, link{owner: l.owner, target: id})
		}
	}
	return out, nil
}

func queryLinks(ctx context.Context, db sqlx.ExtContext, query string, values []string) ([]link, error) {
	maps, err := selectMaps(ctx, db, query, values)
	if err != nil {
		return nil, err
	}
	out := make([]link, 0, len(maps))
	for _, m := range maps {
		owner, _ := decodeValue(KindID, m["owner"])
		target, _ := decodeValue(KindID, m["target"])
		o, _ := owner.(string)
		t, _ := target.(string)
		if o == "" || t == "" {
			continue
		}
		out = append(out, link{owner: o, target: t})
	}
	return out, nil
}

// loadRows loads the stored fields of all rows whose column matches one of values.
func loadRows(ctx context.Context, db sqlx.ExtContext, def *Definition, column string, values []string) ([]*Record, error) {
	if len(values) == 0 {
		return nil, nil
	}
	fields := def.storedFields()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Column
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (?)", strings.Join(columns, ", "), def.Table, column)
	maps, err := selectMaps(ctx, db, query, values)
	if err != nil {
		return nil, err
	}

	out := make([]*Record, 0, len(maps))
	for _, m := range maps {
		rec := newRecord(def, "")
		for _, f := range fields {
			v, err := decodeValue(f.Kind, m[f.Column])
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", def.Name, f.Name, err)
			}
			rec.Values[f.Name] = v
		}
		keys := make([]string, 0, len(def.primaryKey()))
		for _, key := range def.primaryKey() {
			keys = append(keys, rec.String(key))
		}
		rec.ID = JoinKey(keys...)
		out = append(out, rec)
	}
	return out, nil
}

// overlayTranslations merges translated fields into rows, first match in languages wins.
func overlayTranslations(ctx context.Context, db sqlx.ExtContext, def *Definition, rows []*Record, languages []string) error {
	fields := def.translatedFields()
	if len(fields) == 0 || len(rows) == 0 {
		return nil
	}
	tr := def.Translation
	columns := []string{tr.ForeignKey, tr.LanguageColumn}
	for _, f := range fields {
		columns = append(columns, f.Column)
	}
	ids := make([]string, len(rows))
	for i, rec := range rows {
		ids[i] = rec.ID
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (?) AND %s IN (?)",
		strings.Join(columns, ", "), tr.Table, tr.ForeignKey, tr.LanguageColumn)
	maps, err := selectMaps(ctx, db, query, ids, languages)
	if err != nil {
		return err
	}

	// id -> language -> field -> value
	translations := map[string]map[string]map[string]any{}
	for _, m := range maps {
		rawID, _ := decodeValue(KindID, m[tr.ForeignKey])
		rawLang, _ := decodeValue(KindID, m[tr.LanguageColumn])
		id, _ := rawID.(string)
		lang, _ := rawLang.(string)
		byLang := translations[id]
		if byLang == nil {
			byLang = map[string]map[string]any{}
			translations[id] = byLang
		}
		values := map[string]any{}
		for _, f := range fields {
			v, err := decodeValue(f.Kind, m[f.Column])
			if err != nil {
				return fmt.Errorf("%s.%s: %w", def.Name, f.Name, err)
			}
			values[f.Name] = v
		}
		byLang[lang] = values
	}

	for _, rec := range rows {
		for _, f := range fields {
			rec.Values[f.Name] = nil
			for _, lang := range languages {
				if v := translations[rec.ID][lang][f.Name]; v != nil {
					rec.Values[f.Name] = v
					break
				}
			}
		}
	}
	return nil
}

// selectMaps runs an IN query and returns every row as a column map.
// Rows are closed before returning so no connection stays busy.
func selectMaps(ctx context.Context, db sqlx.ExtContext, query string, args ...any) ([]map[string]any, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryxContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		m := map[string]any{}
		if err := rows.MapScan(m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
