package dal

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// IDSearchResult is one page of matching ids plus the number of matches
// without pagination.
type IDSearchResult struct {
	IDs   []string
	Total int
}

// EntitySearcher answers criteria with ids.
type EntitySearcher interface {
	SearchIDs(ctx context.Context, definition string, criteria *Criteria, sc ShopContext) (*IDSearchResult, error)
}

// Searcher compiles criteria into SQL that applies the same translation and
// inheritance overlay as the Reader.
type Searcher struct {
	db       sqlx.ExtContext
	registry *Registry
}

func NewSearcher(db sqlx.ExtContext, registry *Registry) *Searcher {
	return &Searcher{db: db, registry: registry}
}

func (s *Searcher) SearchIDs(ctx context.Context, definition string, criteria *Criteria, sc ShopContext) (*IDSearchResult, error) {
	def, err := s.registry.Definition(definition)
	if err != nil {
		return nil, err
	}
	if def.Mapping || !def.singleKey() {
		return nil, fmt.Errorf("%w: %s cannot be searched", ErrUnsupportedProjection, def.Name)
	}
	if criteria == nil {
		criteria = NewCriteria()
	}

	q := newQuery(s.registry, def, sc.withDefaults())
	stmt, err := q.compile(criteria)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(stmt.selectSQL), stmt.selectArgs...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", def.Name, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var raw any
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("search %s: %w", def.Name, err)
		}
		id, err := decodeValue(KindID, raw)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", def.Name, err)
		}
		ids = append(ids, id.(string))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search %s: %w", def.Name, err)
	}
	rows.Close()

	if criteria.Limit == 0 {
		total := len(ids)
		if criteria.Offset > 0 {
			if criteria.Offset >= len(ids) {
				ids = []string{}
			} else {
				ids = ids[criteria.Offset:]
			}
		}
		return &IDSearchResult{IDs: ids, Total: total}, nil
	}

	var total int
	if err := s.db.QueryRowxContext(ctx, s.db.Rebind(stmt.countSQL), stmt.countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count %s: %w", def.Name, err)
	}
	return &IDSearchResult{IDs: ids, Total: total}, nil
}

// ExpressionScope gives a virtual field access to the alias it is rendered on.
type ExpressionScope struct {
	Alias      string
	Definition *Definition
	Context    ShopContext
	query      *query
}

// Ref returns the quoted alias.
func (s *ExpressionScope) Ref() string {
	return quote(s.Alias)
}

// Column returns the stored column of a field on the alias, without overlay.
func (s *ExpressionScope) Column(field string) string {
	f, ok := s.Definition.fields[field]
	if !ok {
		return "NULL"
	}
	return quote(s.Alias) + "." + f.Column
}

// Effective returns the overlaid expression of a field on the alias.
func (s *ExpressionScope) Effective(field string) (string, []any) {
	f, ok := s.Definition.fields[field]
	if !ok || f.Virtual() {
		return "NULL", nil
	}
	return s.query.column(s.Alias, s.Definition, f)
}

type statement struct {
	selectSQL  string
	selectArgs []any
	countSQL   string
	countArgs  []any
}

type query struct {
	registry *Registry
	root     *Definition
	sc       ShopContext
	joins    []string
	joinArgs []any
	joined   map[string]bool
	toMany   bool
}

func newQuery(registry *Registry, root *Definition, sc ShopContext) *query {
	return &query{
		registry: registry,
		root:     root,
		sc:       sc,
		joined:   map[string]bool{root.Name: true},
	}
}

func quote(alias string) string {
	return `"` + alias + `"`
}

func (q *query) compile(c *Criteria) (*statement, error) {
	var where []string
	var whereArgs []any
	for _, f := range c.Filters {
		cond, args, err := q.condition(f)
		if err != nil {
			return nil, err
		}
		where = append(where, cond)
		whereArgs = append(whereArgs, args...)
	}

	type order struct {
		expr      string
		direction Direction
	}
	var orders []order
	var orderArgs []any
	for _, s := range c.Sortings {
		direction := Direction(strings.ToUpper(string(s.Direction)))
		if direction == "" {
			direction = Ascending
		}
		if direction != Ascending && direction != Descending {
			return nil, fmt.Errorf("%w: sort direction %q", ErrInvalidCriteria, s.Direction)
		}
		expr, args, _, err := q.path(s.Field)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order{expr: expr, direction: direction})
		orderArgs = append(orderArgs, args...)
	}

	rootID := quote(q.root.Name) + "." + q.root.idColumn()
	from := fmt.Sprintf(" FROM %s %s", q.root.Table, quote(q.root.Name))
	if len(q.joins) > 0 {
		from += " " + strings.Join(q.joins, " ")
	}
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}
	groupSQL := ""
	if q.toMany {
		groupSQL = " GROUP BY " + rootID
	}

	orderParts := make([]string, 0, len(orders)+1)
	for _, o := range orders {
		expr := o.expr
		if q.toMany {
			// reduce the joined rows of one entity to a single sort value
			if o.direction == Ascending {
				expr = "MIN(" + expr + ")"
			} else {
				expr = "MAX(" + expr + ")"
			}
		}
		orderParts = append(orderParts, expr+" "+string(o.direction))
	}
	orderParts = append(orderParts, rootID+" ASC")

	base := "SELECT " + rootID + " AS id" + from + whereSQL + groupSQL
	stmt := &statement{
		selectSQL: base + " ORDER BY " + strings.Join(orderParts, ", "),
	}
	stmt.selectArgs = append(stmt.selectArgs, q.joinArgs...)
	stmt.selectArgs = append(stmt.selectArgs, whereArgs...)
	stmt.selectArgs = append(stmt.selectArgs, orderArgs...)
	if c.Limit > 0 {
		stmt.selectSQL += " LIMIT ? OFFSET ?"
		stmt.selectArgs = append(stmt.selectArgs, c.Limit, c.Offset)
	}

	if q.toMany {
		stmt.countSQL = "SELECT COUNT(*) FROM (" + base + ") matches"
	} else {
		stmt.countSQL = "SELECT COUNT(*)" + from + whereSQL
	}
	stmt.countArgs = append(stmt.countArgs, q.joinArgs...)
	stmt.countArgs = append(stmt.countArgs, whereArgs...)
	return stmt, nil
}

func (q *query) condition(filter Filter) (string, []any, error) {
	switch f := filter.(type) {
	case TermFilter:
		expr, args, field, err := q.path(f.Field)
		if err != nil {
			return "", nil, err
		}
		if f.Value == nil {
			return expr + " IS NULL", args, nil
		}
		v, err := bindValue(field, f.Value)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s: %v", ErrInvalidCriteria, f.Field, err)
		}
		return expr + " = ?", append(args, v), nil

	case TermsFilter:
		expr, args, field, err := q.path(f.Field)
		if err != nil {
			return "", nil, err
		}
		if len(f.Values) == 0 {
			return "1 = 0", nil, nil
		}
		placeholders := make([]string, len(f.Values))
		for i, value := range f.Values {
			v, err := bindValue(field, value)
			if err != nil {
				return "", nil, fmt.Errorf("%w: %s: %v", ErrInvalidCriteria, f.Field, err)
			}
			placeholders[i] = "?"
			args = append(args, v)
		}
		return expr + " IN (" + strings.Join(placeholders, ", ") + ")", args, nil

	case RangeFilter:
		expr, exprArgs, field, err := q.path(f.Field)
		if err != nil {
			return "", nil, err
		}
		bounds := []struct {
			op    string
			value any
		}{{">", f.GT}, {">=", f.GTE}, {"<", f.LT}, {"<=", f.LTE}}
		var parts []string
		var args []any
		for _, b := range bounds {
			if b.value == nil {
				continue
			}
			v, err := bindValue(field, b.value)
			if err != nil {
				return "", nil, fmt.Errorf("%w: %s: %v", ErrInvalidCriteria, f.Field, err)
			}
			parts = append(parts, expr+" "+b.op+" ?")
			args = append(args, exprArgs...)
			args = append(args, v)
		}
		if len(parts) == 0 {
			return "1 = 1", nil, nil
		}
		return "(" + strings.Join(parts, " AND ") + ")", args, nil

	case MatchFilter:
		expr, args, _, err := q.path(f.Field)
		if err != nil {
			return "", nil, err
		}
		return "LOWER(" + expr + ") LIKE ?", append(args, "%"+strings.ToLower(f.Value)+"%"), nil

	case NotFilter:
		cond, args, err := q.group(And, f.Filters)
		if err != nil {
			return "", nil, err
		}
		return "NOT " + cond, args, nil

	case MultiFilter:
		op := f.Operator
		if op == "" {
			op = And
		}
		if op != And && op != Or {
			return "", nil, fmt.Errorf("%w: operator %q", ErrInvalidCriteria, f.Operator)
		}
		return q.group(op, f.Filters)
	}
	return "", nil, fmt.Errorf("%w: unsupported filter %T", ErrInvalidCriteria, filter)
}

func (q *query) group(op Operator, filters []Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "(1 = 1)", nil, nil
	}
	parts := make([]string, 0, len(filters))
	var args []any
	for _, f := range filters {
		cond, condArgs, err := q.condition(f)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, cond)
		args = append(args, condArgs...)
	}
	return "(" + strings.Join(parts, " "+string(op)+" ") + ")", args, nil
}

// path joins every association of a dotted path and returns the overlaid
// expression of its final field.
func (q *query) path(path string) (string, []any, *Field, error) {
	fp, err := q.registry.ResolvePath(q.root, path)
	if err != nil {
		return "", nil, nil, err
	}
	alias := q.root.Name
	def := q.root
	for _, step := range fp.Steps {
		alias = q.join(alias, def, step)
		def = step.target
	}
	if fp.toMany() {
		q.toMany = true
	}
	expr, args := q.column(alias, def, fp.Field)
	return expr, args, fp.Field, nil
}

func (q *query) addJoin(alias, clause string, args ...any) {
	q.joined[alias] = true
	q.joins = append(q.joins, clause)
	q.joinArgs = append(q.joinArgs, args...)
}

// column renders the effective value of a field on an alias.
func (q *query) column(alias string, def *Definition, f *Field) (string, []any) {
	switch {
	case f.Virtual():
		return f.Expression(&ExpressionScope{Alias: alias, Definition: def, Context: q.sc, query: q})
	case f.Translated:
		return q.translated(alias, def, f), nil
	case f.Inherited && def.Inheritable():
		parent := q.parentJoin(alias, def)
		return fmt.Sprintf("COALESCE(%s.%s, %s.%s)", quote(alias), f.Column, quote(parent), f.Column), nil
	}
	return quote(alias) + "." + f.Column, nil
}

func (q *query) parentJoin(alias string, def *Definition) string {
	parent := alias + ".parent"
	if !q.joined[parent] {
		q.addJoin(parent, fmt.Sprintf("LEFT JOIN %s %s ON %s.%s = %s.%s",
			def.Table, quote(parent), quote(parent), def.idColumn(), quote(alias), def.parentField().Column))
	}
	return parent
}

// translated falls back from the context language to the default language,
// then to the parent's translations for inherited fields.
func (q *query) translated(alias string, def *Definition, f *Field) string {
	tr := def.Translation
	owners := []string{alias}
	if f.Inherited && def.Inheritable() {
		owners = append(owners, q.parentJoin(alias, def))
	}

	var parts []string
	for _, owner := range owners {
		for i, lang := range q.sc.languages() {
			ta := owner + ".translation"
			if i > 0 {
				ta += ".fallback"
			}
			if !q.joined[ta] {
				q.addJoin(ta, fmt.Sprintf("LEFT JOIN %s %s ON %s.%s = %s.%s AND %s.%s = ?",
					tr.Table, quote(ta), quote(ta), tr.ForeignKey, quote(owner), def.idColumn(), quote(ta), tr.LanguageColumn),
					lang)
			}
			parts = append(parts, quote(ta)+"."+f.Column)
		}
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "COALESCE(" + strings.Join(parts, ", ") + ")"
}

func (q *query) join(alias string, def *Definition, a *Association) string {
	target := alias + "." + a.Name
	if q.joined[target] {
		return target
	}

	switch a.Kind {
	case ManyToOne:
		fk, args := q.column(alias, def, def.fields[a.LocalField])
		q.addJoin(target, fmt.Sprintf("LEFT JOIN %s %s ON %s.%s = %s",
			a.target.Table, quote(target), quote(target), a.target.idColumn(), fk), args...)

	case OneToOne, OneToMany:
		ref := a.target.fields[a.ReferenceField]
		on := fmt.Sprintf("%s.%s = %s.%s", quote(target), ref.Column, quote(alias), def.idColumn())
		if ref.Inherited && a.target.Inheritable() {
			// variants without an own reference belong to their parent's owner
			on = fmt.Sprintf("(%s OR (%s.%s IS NULL AND %s.%s IN (SELECT %s FROM %s WHERE %s = %s.%s)))",
				on, quote(target), ref.Column,
				quote(target), a.target.parentField().Column,
				a.target.idColumn(), a.target.Table, ref.Column, quote(alias), def.idColumn())
		}
		q.addJoin(target, fmt.Sprintf("LEFT JOIN %s %s ON %s", a.target.Table, quote(target), on))

	case ManyToMany:
		mapping := target + ".mapping"
		local := quote(alias) + "." + def.idColumn()
		if a.LocalJoinField != "" {
			local = quote(alias) + "." + def.fields[a.LocalJoinField].Column
		}
		q.addJoin(mapping, fmt.Sprintf("LEFT JOIN %s %s ON %s.%s = %s",
			a.mapping.Table, quote(mapping), quote(mapping), a.mapping.fields[a.MappingLocal].Column, local))

		refColumn := a.target.idColumn()
		if a.ReferenceJoinField != "" {
			refColumn = a.target.fields[a.ReferenceJoinField].Column
		}
		q.addJoin(target, fmt.Sprintf("LEFT JOIN %s %s ON %s.%s = %s.%s",
			a.target.Table, quote(target), quote(target), refColumn, quote(mapping), a.mapping.fields[a.MappingReference].Column))
	}
	return target
}

// bindValue coerces a criteria value to the storage form of the field.
func bindValue(f *Field, v any) (any, error) {
	if f.Virtual() || f.Kind == KindJSON {
		return v, nil
	}
	typed, err := coerceInput(f, v)
	if err != nil {
		return nil, err
	}
	return encodeValue(f.Kind, typed)
}
