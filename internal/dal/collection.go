package dal

// Identifiable is implemented by every value stored in a Collection.
type Identifiable interface {
	GetID() string
}

// Collection is an ordered set of values keyed by id.
// The order is the read or search order, not necessarily the input order.
type Collection[T Identifiable] struct {
	order []string
	items map[string]T
}

// NewCollection creates a collection from items, skipping duplicate ids.
func NewCollection[T Identifiable](items ...T) *Collection[T] {
	c := &Collection[T]{items: make(map[string]T, len(items))}
	for _, item := range items {
		c.Add(item)
	}
	return c
}

// Add appends item unless its id is already present.
func (c *Collection[T]) Add(item T) {
	if c.items == nil {
		c.items = make(map[string]T)
	}
	id := item.GetID()
	if _, ok := c.items[id]; ok {
		return
	}
	c.items[id] = item
	c.order = append(c.order, id)
}

func (c *Collection[T]) Has(id string) bool {
	if c == nil {
		return false
	}
	_, ok := c.items[id]
	return ok
}

func (c *Collection[T]) Get(id string) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	item, ok := c.items[id]
	return item, ok
}

func (c *Collection[T]) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// IDs returns the ids in collection order.
func (c *Collection[T]) IDs() []string {
	if c == nil {
		return []string{}
	}
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// All returns the values in collection order.
func (c *Collection[T]) All() []T {
	if c == nil {
		return nil
	}
	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

// First returns the first value, if any.
func (c *Collection[T]) First() (T, bool) {
	var zero T
	if c.Len() == 0 {
		return zero, false
	}
	return c.items[c.order[0]], true
}

// MapCollection converts every value of c with fn, keeping the order.
func MapCollection[T, U Identifiable](c *Collection[T], fn func(T) U) *Collection[U] {
	out := NewCollection[U]()
	for _, item := range c.All() {
		out.Add(fn(item))
	}
	return out
}
