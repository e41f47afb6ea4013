package dal

// FieldKind is the storage type of a scalar field.
type FieldKind int

const (
	KindID FieldKind = iota
	KindString
	KindFloat
	KindInt
	KindBool
	KindJSON
	KindDate
)

func (k FieldKind) String() string {
	switch k {
	case KindID:
		return "id"
	case KindString:
		return "string"
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindJSON:
		return "json"
	case KindDate:
		return "date"
	}
	return "unknown"
}

// ExpressionFunc renders a virtual, search-only field as an SQL expression.
type ExpressionFunc func(scope *ExpressionScope) (string, []any)

// Field is a scalar property of a definition.
type Field struct {
	// Name is the payload and record property name (e.g. "taxId").
	Name string

	// Column is the storage column, in the translation table for translated fields.
	Column string

	Kind FieldKind

	// Required fields must be present on insert of a non-variant row.
	Required bool

	// Inherited fields fall back to the parent's value when NULL on a variant.
	Inherited bool

	// Translated fields live in the definition's translation table.
	Translated bool

	// ReadOnly fields are maintained by the write stack and rejected in payloads.
	ReadOnly bool

	// Rules is a validator tag applied to non-nil values (e.g. "gte=0").
	Rules string

	// Expression makes the field virtual: it has no column and can only be used in criteria.
	Expression ExpressionFunc
}

// Virtual reports whether the field is computed by an expression.
func (f *Field) Virtual() bool {
	return f.Expression != nil
}

// Cardinality is the kind of an association.
type Cardinality int

const (
	ManyToOne Cardinality = iota
	OneToOne
	OneToMany
	ManyToMany
)

func (c Cardinality) toMany() bool {
	return c == OneToMany || c == ManyToMany
}

// LoadMode controls in which projections an association is hydrated.
type LoadMode int

const (
	// LoadNone associations are only used for writes and search paths.
	LoadNone LoadMode = iota
	// LoadBasic associations are hydrated in basic and detail projections.
	LoadBasic
	// LoadDetail associations are hydrated in the detail projection only.
	LoadDetail
)

// Association links a definition to another one.
type Association struct {
	Name      string
	Kind      Cardinality
	Reference string

	// LocalField holds the foreign key of a ManyToOne association.
	LocalField string

	// ReferenceField is the foreign key on the target of OneToOne and OneToMany associations.
	ReferenceField string

	// Mapping names the join definition of a ManyToMany association; MappingLocal and
	// MappingReference are its fields pointing to this definition and to the target.
	Mapping          string
	MappingLocal     string
	MappingReference string

	// LocalJoinField replaces the primary key of this definition in a ManyToMany join.
	LocalJoinField string

	// ReferenceJoinField replaces the primary key of the target in a ManyToMany join.
	ReferenceJoinField string

	// PositionField on the target receives the element index of OneToMany payloads
	// and orders hydrated collections.
	PositionField string

	// Inherited to-many associations fall back to the parent's collection when a variant has none.
	Inherited bool

	Load LoadMode

	source  *Definition
	target  *Definition
	mapping *Definition
}

// Target returns the compiled target definition.
func (a *Association) Target() *Definition {
	return a.target
}

func (a *Association) loadedIn(p Projection) bool {
	switch p {
	case ProjectionBasic:
		return a.Load == LoadBasic
	case ProjectionDetail:
		return a.Load == LoadBasic || a.Load == LoadDetail
	}
	return false
}

// Translation describes the translation table of a definition.
type Translation struct {
	Table          string
	ForeignKey     string
	LanguageColumn string
}

// Definition is the static schema of one entity.
type Definition struct {
	Name  string
	Table string

	// PrimaryKey lists the key fields; it defaults to "id".
	PrimaryKey []string

	// ParentField enables variants (e.g. "parentId").
	ParentField string

	Translation *Translation

	// Timestamps adds the read-only createdAt and updatedAt fields.
	Timestamps bool

	// Mapping marks a pure join definition of a ManyToMany association.
	Mapping bool

	Fields       []*Field
	Associations []*Association

	// Defaults are applied on insert for fields missing in the payload.
	Defaults map[string]any

	fields       map[string]*Field
	associations map[string]*Association
	foreignKeys  map[string]*Association
}

// Field returns a field by property name.
func (d *Definition) Field(name string) (*Field, bool) {
	f, ok := d.fields[name]
	return f, ok
}

// Association returns an association by name.
func (d *Definition) Association(name string) (*Association, bool) {
	a, ok := d.associations[name]
	return a, ok
}

// Inheritable reports whether the definition supports variants.
func (d *Definition) Inheritable() bool {
	return d.ParentField != ""
}

func (d *Definition) primaryKey() []string {
	if len(d.PrimaryKey) == 0 {
		return []string{"id"}
	}
	return d.PrimaryKey
}

func (d *Definition) singleKey() bool {
	return len(d.primaryKey()) == 1
}

func (d *Definition) idColumn() string {
	return d.fields[d.primaryKey()[0]].Column
}

// storedFields returns the fields with a column in the entity table.
func (d *Definition) storedFields() []*Field {
	out := make([]*Field, 0, len(d.Fields))
	for _, f := range d.Fields {
		if f.Translated || f.Virtual() {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (d *Definition) translatedFields() []*Field {
	var out []*Field
	for _, f := range d.Fields {
		if f.Translated {
			out = append(out, f)
		}
	}
	return out
}

func (d *Definition) parentField() *Field {
	if d.ParentField == "" {
		return nil
	}
	return d.fields[d.ParentField]
}
