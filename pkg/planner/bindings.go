package planner

// Bindings is an insertion-ordered alias → AliasType map. Iteration order is
// the order names were first added, which keeps join keys and expanded `*`
// projections deterministic.
type Bindings struct {
	names []string
	types map[string]AliasType
}

// NewBindings returns an empty binding set.
func NewBindings() *Bindings {
	return &Bindings{types: make(map[string]AliasType)}
}

// Set records name with the given type. A name keeps its original position
// when set again; only the type is updated.
func (b *Bindings) Set(name string, t AliasType) {
	if _, ok := b.types[name]; !ok {
		b.names = append(b.names, name)
	}
	b.types[name] = t
}

// Get returns the type bound to name.
func (b *Bindings) Get(name string) (AliasType, bool) {
	t, ok := b.types[name]
	return t, ok
}

// Has reports whether name is bound.
func (b *Bindings) Has(name string) bool {
	_, ok := b.types[name]
	return ok
}

// Names returns the bound names in insertion order. The slice is shared; do
// not mutate.
func (b *Bindings) Names() []string { return b.names }

// Len returns the number of bound names.
func (b *Bindings) Len() int { return len(b.names) }

// Clone returns an independent copy.
func (b *Bindings) Clone() *Bindings {
	c := NewBindings()
	for _, name := range b.names {
		c.Set(name, b.types[name])
	}
	return c
}

// Merge adds every binding of other, preserving existing positions.
func (b *Bindings) Merge(other *Bindings) {
	for _, name := range other.names {
		b.Set(name, other.types[name])
	}
}
