package dal

import (
	"fmt"
	"strings"
	"sync"
)

// Registry holds all entity definitions and the join graph compiled from them.
type Registry struct {
	definitions []*Definition
	byName      map[string]*Definition
	writeOrder  []*Definition
	compiled    bool
	paths       sync.Map // pathKey -> *FieldPath
}

// FieldPath is a dotted criteria path resolved through the association graph.
type FieldPath struct {
	Root  *Definition
	Steps []*Association
	Field *Field
}

// Target returns the definition owning the resolved field.
func (p *FieldPath) Target() *Definition {
	if len(p.Steps) == 0 {
		return p.Root
	}
	return p.Steps[len(p.Steps)-1].target
}

func (p *FieldPath) toMany() bool {
	for _, s := range p.Steps {
		if s.Kind.toMany() {
			return true
		}
	}
	return false
}

type pathKey struct {
	root string
	path string
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Definition)}
}

// Register adds definitions to the registry. It must be called before Compile.
func (r *Registry) Register(defs ...*Definition) {
	for _, d := range defs {
		r.definitions = append(r.definitions, d)
		r.byName[d.Name] = d
	}
	r.compiled = false
}

// Compile resolves association targets, validates field references and
// derives the write order of all definitions.
func (r *Registry) Compile() error {
	for _, d := range r.definitions {
		if d.Timestamps {
			if _, ok := findField(d.Fields, "createdAt"); !ok {
				d.Fields = append(d.Fields,
					&Field{Name: "createdAt", Column: "created_at", Kind: KindDate, ReadOnly: true},
					&Field{Name: "updatedAt", Column: "updated_at", Kind: KindDate, ReadOnly: true},
				)
			}
		}
		d.fields = make(map[string]*Field, len(d.Fields))
		for _, f := range d.Fields {
			if f.Column == "" && !f.Virtual() {
				return fmt.Errorf("definition %s: field %s has no column", d.Name, f.Name)
			}
			d.fields[f.Name] = f
		}
		for _, key := range d.primaryKey() {
			if _, ok := d.fields[key]; !ok {
				return fmt.Errorf("definition %s: primary key field %s is not declared", d.Name, key)
			}
		}
		if d.ParentField != "" {
			if _, ok := d.fields[d.ParentField]; !ok {
				return fmt.Errorf("definition %s: parent field %s is not declared", d.Name, d.ParentField)
			}
		}
		if len(d.translatedFields()) > 0 && d.Translation == nil {
			return fmt.Errorf("definition %s: translated fields without translation table", d.Name)
		}
	}

	for _, d := range r.definitions {
		d.associations = make(map[string]*Association, len(d.Associations))
		d.foreignKeys = make(map[string]*Association)
		for _, a := range d.Associations {
			target, ok := r.byName[a.Reference]
			if !ok {
				return fmt.Errorf("definition %s: association %s: %w: %s", d.Name, a.Name, ErrUnknownDefinition, a.Reference)
			}
			a.source = d
			a.target = target
			switch a.Kind {
			case ManyToOne:
				if _, ok := d.fields[a.LocalField]; !ok {
					return fmt.Errorf("definition %s: association %s: local field %s is not declared", d.Name, a.Name, a.LocalField)
				}
				d.foreignKeys[a.LocalField] = a
			case OneToOne, OneToMany:
				if _, ok := target.fields[a.ReferenceField]; !ok {
					return fmt.Errorf("definition %s: association %s: reference field %s.%s is not declared", d.Name, a.Name, target.Name, a.ReferenceField)
				}
			case ManyToMany:
				mapping, ok := r.byName[a.Mapping]
				if !ok {
					return fmt.Errorf("definition %s: association %s: %w: %s", d.Name, a.Name, ErrUnknownDefinition, a.Mapping)
				}
				if _, ok := mapping.fields[a.MappingLocal]; !ok {
					return fmt.Errorf("definition %s: association %s: mapping field %s is not declared", d.Name, a.Name, a.MappingLocal)
				}
				if _, ok := mapping.fields[a.MappingReference]; !ok {
					return fmt.Errorf("definition %s: association %s: mapping field %s is not declared", d.Name, a.Name, a.MappingReference)
				}
				a.mapping = mapping
			}
			d.associations[a.Name] = a
		}
	}

	order, err := r.dependencyOrder()
	if err != nil {
		return err
	}
	r.writeOrder = order
	r.paths.Clear()
	r.compiled = true
	return nil
}

// dependencyOrder sorts definitions so that every ManyToOne target is written
// before the definitions referencing it. Self references are resolved per row.
func (r *Registry) dependencyOrder() ([]*Definition, error) {
	indegree := make(map[string]int, len(r.definitions))
	dependents := make(map[string][]*Definition)
	for _, d := range r.definitions {
		seen := map[string]bool{}
		for _, a := range d.Associations {
			if a.Kind != ManyToOne || a.Reference == d.Name || seen[a.Reference] {
				continue
			}
			seen[a.Reference] = true
			indegree[d.Name]++
			dependents[a.Reference] = append(dependents[a.Reference], d)
		}
	}

	var order []*Definition
	done := make(map[string]bool, len(r.definitions))
	for len(order) < len(r.definitions) {
		progressed := false
		for _, d := range r.definitions {
			if done[d.Name] || indegree[d.Name] > 0 {
				continue
			}
			done[d.Name] = true
			order = append(order, d)
			for _, dep := range dependents[d.Name] {
				indegree[dep.Name]--
			}
			progressed = true
		}
		if !progressed {
			var cyclic []string
			for _, d := range r.definitions {
				if !done[d.Name] {
					cyclic = append(cyclic, d.Name)
				}
			}
			return nil, fmt.Errorf("dependency cycle between definitions: %s", strings.Join(cyclic, ", "))
		}
	}
	return order, nil
}

// Definition returns a compiled definition by name.
func (r *Registry) Definition(name string) (*Definition, error) {
	d, ok := r.byName[name]
	if !ok || !r.compiled {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDefinition, name)
	}
	return d, nil
}

// Definitions returns all registered definitions in registration order.
func (r *Registry) Definitions() []*Definition {
	return r.definitions
}

// WriteOrder returns the definitions in dependency order.
func (r *Registry) WriteOrder() []*Definition {
	return r.writeOrder
}

// ResolvePath resolves a dotted path such as "category.products.price" from
// the root definition. Results are cached per root and path.
func (r *Registry) ResolvePath(root *Definition, path string) (*FieldPath, error) {
	key := pathKey{root: root.Name, path: path}
	if cached, ok := r.paths.Load(key); ok {
		return cached.(*FieldPath), nil
	}

	segments := strings.Split(path, ".")
	if len(segments) > 1 && segments[0] == root.Name {
		if _, isField := root.fields[segments[0]]; !isField {
			if _, isAssoc := root.associations[segments[0]]; !isAssoc {
				segments = segments[1:]
			}
		}
	}

	resolved := &FieldPath{Root: root}
	current := root
	for i, segment := range segments {
		last := i == len(segments)-1
		if last {
			f, ok := current.fields[segment]
			if !ok {
				// a bare association resolves to the target's primary key
				a, isAssoc := current.associations[segment]
				if !isAssoc || !a.target.singleKey() {
					return nil, fmt.Errorf("%w: %s on %s", ErrUnknownField, path, root.Name)
				}
				resolved.Steps = append(resolved.Steps, a)
				f = a.target.fields[a.target.primaryKey()[0]]
			}
			resolved.Field = f
			break
		}
		a, ok := current.associations[segment]
		if !ok {
			return nil, fmt.Errorf("%w: %s on %s", ErrUnknownField, path, root.Name)
		}
		resolved.Steps = append(resolved.Steps, a)
		current = a.target
	}

	actual, _ := r.paths.LoadOrStore(key, resolved)
	return actual.(*FieldPath), nil
}

func findField(fields []*Field, name string) (*Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}
