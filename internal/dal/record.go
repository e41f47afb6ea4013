package dal

import (
	"time"
)

// Record is one projected entity: its scalar values after translation and
// inheritance overlay, plus the hydrated associations of the projection.
type Record struct {
	Definition string
	ID         string
	Values     map[string]any
	One        map[string]*Record
	Many       map[string]*Collection[*Record]
}

func newRecord(def *Definition, id string) *Record {
	return &Record{
		Definition: def.Name,
		ID:         id,
		Values:     make(map[string]any, len(def.Fields)),
	}
}

func (r *Record) GetID() string {
	return r.ID
}

// Get returns the raw value of a field, nil when unset.
func (r *Record) Get(name string) any {
	if r == nil {
		return nil
	}
	return r.Values[name]
}

func (r *Record) String(name string) string {
	s, _ := r.Get(name).(string)
	return s
}

// StringPtr returns nil when the field is NULL.
func (r *Record) StringPtr(name string) *string {
	s, ok := r.Get(name).(string)
	if !ok {
		return nil
	}
	return &s
}

func (r *Record) Float(name string) float64 {
	switch v := r.Get(name).(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func (r *Record) FloatPtr(name string) *float64 {
	if r.Get(name) == nil {
		return nil
	}
	f := r.Float(name)
	return &f
}

func (r *Record) Int(name string) int64 {
	switch v := r.Get(name).(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func (r *Record) IntPtr(name string) *int64 {
	if r.Get(name) == nil {
		return nil
	}
	i := r.Int(name)
	return &i
}

func (r *Record) Bool(name string) bool {
	b, _ := r.Get(name).(bool)
	return b
}

func (r *Record) Time(name string) *time.Time {
	t, ok := r.Get(name).(time.Time)
	if !ok {
		return nil
	}
	return &t
}

// Strings returns a JSON list field as strings, nil when unset.
func (r *Record) Strings(name string) []string {
	switch v := r.Get(name).(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Related returns a hydrated to-one association, nil when absent or not loaded.
func (r *Record) Related(name string) *Record {
	if r == nil || r.One == nil {
		return nil
	}
	return r.One[name]
}

// Collection returns a hydrated to-many association, empty when not loaded.
func (r *Record) Collection(name string) *Collection[*Record] {
	if r == nil || r.Many == nil || r.Many[name] == nil {
		return NewCollection[*Record]()
	}
	return r.Many[name]
}

// ToMap flattens the record and its associations into plain values.
func (r *Record) ToMap() map[string]any {
	if r == nil {
		return nil
	}
	out := make(map[string]any, len(r.Values)+len(r.One)+len(r.Many))
	for k, v := range r.Values {
		if t, ok := v.(time.Time); ok {
			v = t.UTC().Format(time.RFC3339Nano)
		}
		out[k] = v
	}
	for name, rel := range r.One {
		if rel == nil {
			out[name] = nil
			continue
		}
		out[name] = rel.ToMap()
	}
	for name, many := range r.Many {
		items := make([]any, 0, many.Len())
		for _, rel := range many.All() {
			items = append(items, rel.ToMap())
		}
		out[name] = items
	}
	return out
}

func (r *Record) clone() *Record {
	c := &Record{
		Definition: r.Definition,
		ID:         r.ID,
		Values:     make(map[string]any, len(r.Values)),
	}
	for k, v := range r.Values {
		c.Values[k] = v
	}
	return c
}
