package dal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
)

// EntityWriter persists write payloads.
type EntityWriter interface {
	Create(ctx context.Context, definition string, payloads []map[string]any, sc ShopContext) (*WriteResult, error)
	Upsert(ctx context.Context, definition string, payloads []map[string]any, sc ShopContext) (*WriteResult, error)
	Update(ctx context.Context, definition string, payloads []map[string]any, sc ShopContext) (*WriteResult, error)
}

// WrittenEvent lists the rows of one definition written by a call.
type WrittenEvent struct {
	Definition string
	IDs        []string
	// Payloads holds the written values per id, in IDs order.
	Payloads []map[string]any
}

// WriteResult holds one event per touched definition, in write order.
type WriteResult struct {
	Events []*WrittenEvent
}

// EventByDefinition returns the event of a definition, nil when it was not written.
func (r *WriteResult) EventByDefinition(name string) *WrittenEvent {
	if r == nil {
		return nil
	}
	for _, e := range r.Events {
		if e.Definition == name {
			return e
		}
	}
	return nil
}

// IDs returns the written ids of a definition.
func (r *WriteResult) IDs(name string) []string {
	if e := r.EventByDefinition(name); e != nil {
		return e.IDs
	}
	return []string{}
}

// WriteHook runs inside the write transaction after every row was written.
type WriteHook func(ctx context.Context, tx *sqlx.Tx, result *WriteResult) error

// Writer is the transactional EntityWriter.
type Writer struct {
	db       *sqlx.DB
	registry *Registry
	validate *validator.Validate
	strict   bool
	hooks    []WriteHook
	now      func() time.Time
}

type WriterOption func(*Writer)

// WithStrict controls whether unknown payload keys are rejected (default) or ignored.
func WithStrict(strict bool) WriterOption {
	return func(w *Writer) {
		w.strict = strict
	}
}

func WithHooks(hooks ...WriteHook) WriterOption {
	return func(w *Writer) {
		w.hooks = append(w.hooks, hooks...)
	}
}

func WithClock(now func() time.Time) WriterOption {
	return func(w *Writer) {
		w.now = now
	}
}

func NewWriter(db *sqlx.DB, registry *Registry, opts ...WriterOption) *Writer {
	w := &Writer{
		db:       db,
		registry: registry,
		validate: validator.New(),
		strict:   true,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type writeMode int

const (
	modeUpsert writeMode = iota
	modeUpdate
)

// Create inserts new rows and updates rows whose primary key already exists.
func (w *Writer) Create(ctx context.Context, definition string, payloads []map[string]any, sc ShopContext) (*WriteResult, error) {
	return w.write(ctx, definition, payloads, sc, modeUpsert)
}

func (w *Writer) Upsert(ctx context.Context, definition string, payloads []map[string]any, sc ShopContext) (*WriteResult, error) {
	return w.write(ctx, definition, payloads, sc, modeUpsert)
}

// Update is Upsert for root payloads whose rows must already exist.
func (w *Writer) Update(ctx context.Context, definition string, payloads []map[string]any, sc ShopContext) (*WriteResult, error) {
	return w.write(ctx, definition, payloads, sc, modeUpdate)
}

func (w *Writer) write(ctx context.Context, name string, payloads []map[string]any, sc ShopContext, mode writeMode) (*WriteResult, error) {
	def, err := w.registry.Definition(name)
	if err != nil {
		return nil, err
	}

	p := newPlan(w, sc.withDefaults())
	for i, payload := range payloads {
		if cmd := p.add(def, payload, "", i, nil, false); cmd != nil {
			cmd.root = true
		}
	}

	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", ErrWriteFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := p.resolve(ctx, tx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	p.validate(mode)
	if len(p.violations) > 0 {
		sort.SliceStable(p.violations, func(i, j int) bool {
			if p.violations[i].Row != p.violations[j].Row {
				return p.violations[i].Row < p.violations[j].Row
			}
			return p.violations[i].Pointer < p.violations[j].Pointer
		})
		return nil, &WriteStackError{Definition: def.Name, Violations: p.violations}
	}

	result, err := p.execute(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	for _, hook := range w.hooks {
		if err := hook(ctx, tx, result); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %w", ErrWriteFailed, err)
	}
	return result, nil
}

// command is the merged write of one row.
type command struct {
	def          *Definition
	id           string
	values       map[string]any
	translations map[string]map[string]any
	pointer      string
	row          int
	root         bool
	// reference commands only carried an id and must point to an existing row
	reference bool
	existing  *Record
}

func (c *command) payload() map[string]any {
	out := make(map[string]any, len(c.values)+1)
	for k, v := range c.values {
		out[k] = v
	}
	if len(c.translations) > 0 {
		tr := make(map[string]any, len(c.translations))
		for lang, values := range c.translations {
			copied := make(map[string]any, len(values))
			for k, v := range values {
				copied[k] = v
			}
			tr[lang] = copied
		}
		out["translations"] = tr
	}
	return out
}

type reference struct {
	def     *Definition
	id      string
	entity  string
	pointer string
	row     int
}

type plan struct {
	w          *Writer
	sc         ShopContext
	commands   map[string]*command
	ordered    []*command
	dedup      map[string]string
	references []reference
	violations []Violation
}

func newPlan(w *Writer, sc ShopContext) *plan {
	return &plan{
		w:        w,
		sc:       sc,
		commands: make(map[string]*command),
		dedup:    make(map[string]string),
	}
}

func commandKey(def *Definition, id string) string {
	return def.Name + "/" + id
}

func (p *plan) violate(row int, entity, pointer, code, message string) {
	p.violations = append(p.violations, Violation{
		Row:     row,
		Entity:  entity,
		Pointer: pointer,
		Code:    code,
		Message: message,
	})
}

// add normalizes one payload of def into a command and recurses into its associations.
// injected values come from the owning payload (foreign keys, positions).
func (p *plan) add(def *Definition, payload map[string]any, pointer string, row int, injected map[string]any, nested bool) *command {
	keys, ok := p.identify(def, payload, pointer, row, injected, nested)
	if !ok {
		return nil
	}
	id := JoinKey(keys...)
	refOnly := nested && isReferenceOnly(def, payload)

	cmd, exists := p.commands[commandKey(def, id)]
	if !exists {
		cmd = &command{
			def:       def,
			id:        id,
			values:    make(map[string]any),
			pointer:   pointer,
			row:       row,
			reference: refOnly,
		}
		p.commands[commandKey(def, id)] = cmd
		p.ordered = append(p.ordered, cmd)
	} else if !refOnly {
		cmd.reference = false
	}
	for i, key := range def.primaryKey() {
		cmd.values[key] = keys[i]
	}
	for k, v := range injected {
		cmd.values[k] = v
	}

	names := make([]string, 0, len(payload))
	for k := range payload {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, key := range names {
		ptr := pointer + "/" + key
		value := payload[key]
		if key == "translations" && def.Translation != nil {
			p.addTranslations(cmd, value, ptr, row)
			continue
		}
		f, isField := def.fields[key]
		_, isAssoc := def.associations[key]
		if !isField || (f.Virtual() && isAssoc) {
			if !isAssoc && p.w.strict {
				p.violate(row, def.Name, ptr, CodeUnknownField, fmt.Sprintf("%s has no field %s", def.Name, key))
			}
			continue
		}
		if isKeyField(def, key) {
			continue
		}
		if f.ReadOnly || f.Virtual() {
			p.violate(row, def.Name, ptr, CodeReadOnly, "field is read-only")
			continue
		}
		v, ok := p.coerce(def, f, value, ptr, row)
		if !ok {
			continue
		}
		if f.Translated {
			p.translation(cmd, p.sc.LanguageID)[f.Name] = v
			continue
		}
		cmd.values[f.Name] = v
		if a, ok := def.foreignKeys[f.Name]; ok && v != nil {
			p.references = append(p.references, reference{def: a.target, id: v.(string), entity: def.Name, pointer: ptr, row: row})
		}
	}

	// associations after plain fields so that nested foreign keys win
	for _, key := range names {
		if f, isField := def.fields[key]; isField && !f.Virtual() {
			continue
		}
		if a, ok := def.associations[key]; ok {
			p.addAssociation(cmd, a, payload[key], pointer+"/"+key, row)
		}
	}
	return cmd
}

// identify returns the primary key values of a payload. Nested payloads
// without id are deduplicated by content within one call.
func (p *plan) identify(def *Definition, payload map[string]any, pointer string, row int, injected map[string]any, nested bool) ([]string, bool) {
	if def.singleKey() {
		pk := def.primaryKey()[0]
		if raw, ok := payload[pk]; ok && raw != nil {
			v, err := coerceInput(def.fields[pk], raw)
			if err != nil {
				p.violate(row, def.Name, pointer+"/"+pk, CodeInvalidType, err.Error())
				return nil, false
			}
			return []string{fmt.Sprint(v)}, true
		}
		if !nested {
			return []string{NewID()}, true
		}
		canonical, err := json.Marshal(map[string]any{"payload": payload, "injected": injected})
		if err != nil {
			return []string{NewID()}, true
		}
		key := def.Name + "|" + string(canonical)
		if id, ok := p.dedup[key]; ok {
			return []string{id}, true
		}
		id := NewID()
		p.dedup[key] = id
		return []string{id}, true
	}

	keys := make([]string, 0, len(def.primaryKey()))
	for _, key := range def.primaryKey() {
		raw, ok := injected[key]
		if !ok {
			raw = payload[key]
		}
		if raw == nil {
			p.violate(row, def.Name, pointer+"/"+key, CodeMissingRequired, "value is required")
			return nil, false
		}
		v, err := coerceInput(def.fields[key], raw)
		if err != nil {
			p.violate(row, def.Name, pointer+"/"+key, CodeInvalidType, err.Error())
			return nil, false
		}
		if a, ok := def.foreignKeys[key]; ok {
			if _, isInjected := injected[key]; !isInjected {
				p.references = append(p.references, reference{def: a.target, id: fmt.Sprint(v), entity: def.Name, pointer: pointer + "/" + key, row: row})
			}
		}
		keys = append(keys, fmt.Sprint(v))
	}
	return keys, true
}

func (p *plan) coerce(def *Definition, f *Field, value any, ptr string, row int) (any, bool) {
	v, err := coerceInput(f, value)
	if err != nil {
		p.violate(row, def.Name, ptr, CodeInvalidType, err.Error())
		return nil, false
	}
	if v != nil && f.Rules != "" {
		if err := p.w.validate.Var(v, f.Rules); err != nil {
			p.violate(row, def.Name, ptr, CodeConstraint, ruleMessage(err))
			return nil, false
		}
	}
	return v, true
}

func ruleMessage(err error) string {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		fe := errs[0]
		if fe.Param() != "" {
			return fmt.Sprintf("value must satisfy %s=%s", fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("value must satisfy %s", fe.Tag())
	}
	return err.Error()
}

func (p *plan) translation(cmd *command, language string) map[string]any {
	if cmd.translations == nil {
		cmd.translations = make(map[string]map[string]any)
	}
	if cmd.translations[language] == nil {
		cmd.translations[language] = make(map[string]any)
	}
	return cmd.translations[language]
}

// addTranslations handles {"translations": {"<languageId>": {"name": ...}}}.
func (p *plan) addTranslations(cmd *command, value any, ptr string, row int) {
	def := cmd.def
	byLanguage, ok := value.(map[string]any)
	if !ok {
		p.violate(row, def.Name, ptr, CodeInvalidType, "translations must be keyed by language id")
		return
	}
	languages := make([]string, 0, len(byLanguage))
	for lang := range byLanguage {
		languages = append(languages, lang)
	}
	sort.Strings(languages)

	for _, lang := range languages {
		langPtr := ptr + "/" + lang
		langID, ok := NormalizeID(lang)
		if !ok {
			p.violate(row, def.Name, langPtr, CodeInvalidType, fmt.Sprintf("%q is not a valid language id", lang))
			continue
		}
		fields, ok := byLanguage[lang].(map[string]any)
		if !ok {
			p.violate(row, def.Name, langPtr, CodeInvalidType, "expected an object")
			continue
		}
		for name, raw := range fields {
			f, ok := def.fields[name]
			if !ok || !f.Translated {
				if p.w.strict {
					p.violate(row, def.Name, langPtr+"/"+name, CodeUnknownField, fmt.Sprintf("%s has no translated field %s", def.Name, name))
				}
				continue
			}
			if v, ok := p.coerce(def, f, raw, langPtr+"/"+name, row); ok {
				p.translation(cmd, langID)[name] = v
			}
		}
	}
}

func (p *plan) addAssociation(cmd *command, a *Association, value any, ptr string, row int) {
	def := cmd.def
	switch a.Kind {
	case ManyToOne:
		if value == nil {
			cmd.values[a.LocalField] = nil
			return
		}
		m, ok := value.(map[string]any)
		if !ok {
			p.violate(row, def.Name, ptr, CodeInvalidType, "expected an object")
			return
		}
		if isReferenceOnly(a.target, m) {
			if id, ok := p.referenceID(a.target, m, ptr, row, def.Name); ok {
				cmd.values[a.LocalField] = id
			}
			return
		}
		if child := p.add(a.target, m, ptr, row, nil, true); child != nil {
			cmd.values[a.LocalField] = child.id
		}

	case OneToOne:
		if value == nil {
			return
		}
		m, ok := value.(map[string]any)
		if !ok {
			p.violate(row, def.Name, ptr, CodeInvalidType, "expected an object")
			return
		}
		p.add(a.target, m, ptr, row, map[string]any{a.ReferenceField: cmd.id}, true)

	case OneToMany:
		list, ok := asList(value)
		if !ok {
			p.violate(row, def.Name, ptr, CodeInvalidType, "expected a list")
			return
		}
		for i, item := range list {
			elemPtr := ptr + "/" + strconv.Itoa(i)
			m, ok := item.(map[string]any)
			if !ok {
				p.violate(row, def.Name, elemPtr, CodeInvalidType, "expected an object")
				continue
			}
			injected := map[string]any{a.ReferenceField: cmd.id}
			if a.PositionField != "" {
				if _, has := m[a.PositionField]; !has {
					injected[a.PositionField] = int64(i)
				}
			}
			p.add(a.target, m, elemPtr, row, injected, true)
		}

	case ManyToMany:
		list, ok := asList(value)
		if !ok {
			p.violate(row, def.Name, ptr, CodeInvalidType, "expected a list")
			return
		}
		for i, item := range list {
			elemPtr := ptr + "/" + strconv.Itoa(i)
			m, ok := item.(map[string]any)
			if !ok {
				p.violate(row, def.Name, elemPtr, CodeInvalidType, "expected an object")
				continue
			}
			var targetID string
			if isReferenceOnly(a.target, m) {
				id, ok := p.referenceID(a.target, m, elemPtr, row, def.Name)
				if !ok {
					continue
				}
				targetID = id
			} else {
				child := p.add(a.target, m, elemPtr, row, nil, true)
				if child == nil {
					continue
				}
				targetID = child.id
			}
			p.add(a.mapping, map[string]any{}, elemPtr, row, map[string]any{
				a.MappingLocal:     cmd.id,
				a.MappingReference: targetID,
			}, true)
		}
	}
}

// referenceID validates a {"id": x} payload and schedules the existence check.
func (p *plan) referenceID(target *Definition, m map[string]any, ptr string, row int, entity string) (string, bool) {
	pk := target.primaryKey()[0]
	v, err := coerceInput(target.fields[pk], m[pk])
	if err != nil {
		p.violate(row, entity, ptr+"/"+pk, CodeInvalidType, err.Error())
		return "", false
	}
	id := fmt.Sprint(v)
	p.references = append(p.references, reference{def: target, id: id, entity: entity, pointer: ptr + "/" + pk, row: row})
	return id, true
}

// resolve loads the existing rows of every command and checks references.
func (p *plan) resolve(ctx context.Context, tx *sqlx.Tx) error {
	byDef := map[*Definition][]string{}
	var defs []*Definition
	for _, cmd := range p.ordered {
		if cmd.def.Mapping {
			continue
		}
		if _, ok := byDef[cmd.def]; !ok {
			defs = append(defs, cmd.def)
		}
		byDef[cmd.def] = append(byDef[cmd.def], cmd.id)
	}
	for _, def := range defs {
		rows, err := loadRows(ctx, tx, def, def.idColumn(), byDef[def])
		if err != nil {
			return fmt.Errorf("load existing %s: %w", def.Name, err)
		}
		for _, rec := range rows {
			if cmd, ok := p.commands[commandKey(def, rec.ID)]; ok {
				cmd.existing = rec
			}
		}
	}

	pending := map[*Definition][]reference{}
	var targets []*Definition
	for _, ref := range p.references {
		if _, planned := p.commands[commandKey(ref.def, ref.id)]; planned {
			continue
		}
		if _, ok := pending[ref.def]; !ok {
			targets = append(targets, ref.def)
		}
		pending[ref.def] = append(pending[ref.def], ref)
	}
	for _, def := range targets {
		refs := pending[def]
		ids := make([]string, len(refs))
		for i, ref := range refs {
			ids[i] = ref.id
		}
		found, err := existingIDs(ctx, tx, def, uniqueIDs(ids))
		if err != nil {
			return fmt.Errorf("check %s references: %w", def.Name, err)
		}
		for _, ref := range refs {
			if !found[ref.id] {
				p.violate(ref.row, ref.entity, ref.pointer, CodeMissingReference,
					fmt.Sprintf("%s with id %s does not exist", def.Name, ref.id))
			}
		}
	}
	return nil
}

func existingIDs(ctx context.Context, db sqlx.ExtContext, def *Definition, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	query := fmt.Sprintf("SELECT %s AS id FROM %s WHERE %s IN (?)", def.idColumn(), def.Table, def.idColumn())
	maps, err := selectMaps(ctx, db, query, ids)
	if err != nil {
		return nil, err
	}
	for _, m := range maps {
		id, _ := decodeValue(KindID, m["id"])
		if s, ok := id.(string); ok {
			found[s] = true
		}
	}
	return found, nil
}

func (p *plan) validate(mode writeMode) {
	for _, cmd := range p.ordered {
		def := cmd.def
		if def.Mapping {
			continue
		}
		if cmd.existing == nil && cmd.reference {
			p.violate(cmd.row, def.Name, cmd.pointer+"/"+def.primaryKey()[0], CodeMissingReference,
				fmt.Sprintf("%s with id %s does not exist", def.Name, cmd.id))
			continue
		}
		if cmd.existing == nil && cmd.root && mode == modeUpdate {
			p.violate(cmd.row, def.Name, cmd.pointer+"/"+def.primaryKey()[0], CodeNotFound,
				fmt.Sprintf("%s with id %s does not exist", def.Name, cmd.id))
			continue
		}
		if cmd.existing == nil {
			p.applyDefaults(cmd)
		}
		p.checkRequired(cmd)
	}
}

func (p *plan) isVariant(cmd *command) bool {
	def := cmd.def
	if !def.Inheritable() {
		return false
	}
	if v, ok := cmd.values[def.ParentField]; ok {
		return v != nil
	}
	return cmd.existing != nil && cmd.existing.Values[def.ParentField] != nil
}

// applyDefaults fills missing fields on insert. Variants keep inherited fields NULL.
func (p *plan) applyDefaults(cmd *command) {
	variant := p.isVariant(cmd)
	for name, value := range cmd.def.Defaults {
		f, ok := cmd.def.fields[name]
		if !ok || (variant && f.Inherited) {
			continue
		}
		if _, set := cmd.values[name]; set {
			continue
		}
		if v, err := coerceInput(f, value); err == nil {
			cmd.values[name] = v
		}
	}
}

// checkRequired reports missing required fields. Inserts and variants turned
// into root rows must carry every required field; updates may only not clear one.
func (p *plan) checkRequired(cmd *command) {
	def := cmd.def
	variant := p.isVariant(cmd)
	exists := cmd.existing != nil
	switching := exists && def.Inheritable() && cmd.existing.Values[def.ParentField] != nil && !variant

	for _, f := range def.Fields {
		if !f.Required || f.ReadOnly || f.Virtual() {
			continue
		}
		if variant && f.Inherited {
			continue
		}
		present, cleared := p.provided(cmd, f)
		if !exists || switching {
			if present {
				continue
			}
		} else if !cleared {
			continue
		}
		pointer := cmd.pointer + "/" + f.Name
		if f.Translated {
			pointer = cmd.pointer + "/translations"
		}
		if p.violated(cmd.row, pointer) {
			continue
		}
		p.violate(cmd.row, def.Name, pointer, CodeMissingRequired, fmt.Sprintf("%s is required", f.Name))
	}
}

// violated reports whether a value was already rejected, e.g. for its type.
func (p *plan) violated(row int, pointer string) bool {
	for _, v := range p.violations {
		if v.Row == row && v.Pointer == pointer {
			return true
		}
	}
	return false
}

// provided reports whether a field has a value in the command and whether it was explicitly cleared.
func (p *plan) provided(cmd *command, f *Field) (present, cleared bool) {
	if f.Translated {
		for _, values := range cmd.translations {
			if values[f.Name] != nil {
				return true, false
			}
		}
		v, ok := cmd.translations[p.sc.LanguageID][f.Name]
		return false, ok && v == nil
	}
	v, ok := cmd.values[f.Name]
	return ok && v != nil, ok && v == nil
}

func (p *plan) execute(ctx context.Context, tx *sqlx.Tx) (*WriteResult, error) {
	now := p.w.now().UTC()
	byDef := map[string][]*command{}
	for _, cmd := range p.ordered {
		byDef[cmd.def.Name] = append(byDef[cmd.def.Name], cmd)
	}

	result := &WriteResult{}
	for _, def := range p.w.registry.WriteOrder() {
		cmds := byDef[def.Name]
		if len(cmds) == 0 {
			continue
		}
		event := &WrittenEvent{Definition: def.Name}
		for _, cmd := range orderWithinDefinition(def, cmds) {
			written, err := executeCommand(ctx, tx, cmd, now)
			if err != nil {
				return nil, fmt.Errorf("write %s %s: %w", def.Name, cmd.id, err)
			}
			if !written {
				continue
			}
			event.IDs = append(event.IDs, cmd.id)
			event.Payloads = append(event.Payloads, cmd.payload())
		}
		if len(event.IDs) > 0 {
			result.Events = append(result.Events, event)
		}
	}
	return result, nil
}

// orderWithinDefinition puts rows referenced by other rows of the same
// definition (parents) first.
func orderWithinDefinition(def *Definition, cmds []*command) []*command {
	var selfFields []string
	for name, a := range def.foreignKeys {
		if a.target == def {
			selfFields = append(selfFields, name)
		}
	}
	if len(selfFields) == 0 {
		return cmds
	}
	sort.Strings(selfFields)

	byID := make(map[string]*command, len(cmds))
	for _, cmd := range cmds {
		byID[cmd.id] = cmd
	}
	visited := make(map[string]bool, len(cmds))
	out := make([]*command, 0, len(cmds))
	var visit func(cmd *command)
	visit = func(cmd *command) {
		if visited[cmd.id] {
			return
		}
		visited[cmd.id] = true
		for _, name := range selfFields {
			if ref, ok := cmd.values[name].(string); ok {
				if dep, ok := byID[ref]; ok {
					visit(dep)
				}
			}
		}
		out = append(out, cmd)
	}
	for _, cmd := range cmds {
		visit(cmd)
	}
	return out
}

func executeCommand(ctx context.Context, tx *sqlx.Tx, cmd *command, now time.Time) (bool, error) {
	def := cmd.def

	if def.Mapping {
		columns, args, err := storedValues(def, cmd.values, false)
		if err != nil {
			return false, err
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
			def.Table, strings.Join(columns, ", "), placeholders(len(columns)))
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return false, err
		}
		return true, nil
	}

	if cmd.existing == nil {
		if def.Timestamps {
			cmd.values["createdAt"] = now
		}
		columns, args, err := storedValues(def, cmd.values, false)
		if err != nil {
			return false, err
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			def.Table, strings.Join(columns, ", "), placeholders(len(columns)))
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return false, err
		}
	} else {
		columns, args, err := storedValues(def, cmd.values, true)
		if err != nil {
			return false, err
		}
		if len(columns) == 0 && len(cmd.translations) == 0 {
			return false, nil
		}
		if def.Timestamps {
			cmd.values["updatedAt"] = now
			columns = append(columns, def.fields["updatedAt"].Column)
			args = append(args, now)
		}
		sets := make([]string, len(columns))
		for i, c := range columns {
			sets[i] = c + " = ?"
		}
		if len(sets) > 0 {
			query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", def.Table, strings.Join(sets, ", "), def.idColumn())
			args = append(args, cmd.id)
			if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
				return false, err
			}
		}
	}

	if err := writeTranslations(ctx, tx, cmd); err != nil {
		return false, err
	}
	return true, nil
}

// storedValues returns the columns and encoded values present in values, in
// definition order. Key fields are skipped for updates.
func storedValues(def *Definition, values map[string]any, update bool) ([]string, []any, error) {
	var columns []string
	var args []any
	for _, f := range def.storedFields() {
		v, ok := values[f.Name]
		if !ok || (update && isKeyField(def, f.Name)) {
			continue
		}
		encoded, err := encodeValue(f.Kind, v)
		if err != nil {
			return nil, nil, fmt.Errorf("%s.%s: %w", def.Name, f.Name, err)
		}
		columns = append(columns, f.Column)
		args = append(args, encoded)
	}
	return columns, args, nil
}

// writeTranslations upserts one translation row per language, touching only the provided columns.
func writeTranslations(ctx context.Context, tx *sqlx.Tx, cmd *command) error {
	if len(cmd.translations) == 0 {
		return nil
	}
	def := cmd.def
	tr := def.Translation

	languages := make([]string, 0, len(cmd.translations))
	for lang := range cmd.translations {
		languages = append(languages, lang)
	}
	sort.Strings(languages)

	for _, lang := range languages {
		values := cmd.translations[lang]
		columns := []string{tr.ForeignKey, tr.LanguageColumn}
		args := []any{cmd.id, lang}
		var sets []string
		for _, f := range def.translatedFields() {
			v, ok := values[f.Name]
			if !ok {
				continue
			}
			encoded, err := encodeValue(f.Kind, v)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", def.Name, f.Name, err)
			}
			columns = append(columns, f.Column)
			args = append(args, encoded)
			sets = append(sets, f.Column+" = excluded."+f.Column)
		}
		if len(sets) == 0 {
			continue
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s, %s) DO UPDATE SET %s",
			tr.Table, strings.Join(columns, ", "), placeholders(len(columns)),
			tr.ForeignKey, tr.LanguageColumn, strings.Join(sets, ", "))
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("translation %s: %w", lang, err)
		}
	}
	return nil
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isKeyField(def *Definition, name string) bool {
	for _, key := range def.primaryKey() {
		if key == name {
			return true
		}
	}
	return false
}

// isReferenceOnly reports whether a nested payload only names an existing row.
func isReferenceOnly(def *Definition, m map[string]any) bool {
	if !def.singleKey() || len(m) != 1 {
		return false
	}
	return m[def.primaryKey()[0]] != nil
}

func asList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []map[string]any:
		out := make([]any, len(list))
		for i, m := range list {
			out[i] = m
		}
		return out, true
	case nil:
		return nil, true
	}
	return nil, false
}
