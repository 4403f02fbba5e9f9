package attribute

// Map is an ordered mapping from attribute key to Value. Keys are unique;
// iteration follows insertion order so repeated runs over the same input
// produce identical output.
type Map struct {
	keys   []string
	values map[string]Value
}

// NewMap creates an empty attribute map.
func NewMap() *Map {
	return &Map{values: make(map[string]Value)}
}

// MapOf creates a map from alternating key/value pairs, mostly for tests and
// base-fact construction.
func MapOf(pairs ...any) *Map {
	m := NewMap()
	for i := 0; i+1 < len(pairs); i += 2 {
		key := pairs[i].(string)
		switch v := pairs[i+1].(type) {
		case Value:
			m.Set(key, v)
		case string:
			m.Set(key, Text(v))
		case float64:
			m.Set(key, Number(v))
		case int:
			m.Set(key, Number(float64(v)))
		}
	}
	return m
}

// Len returns the number of attributes.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Has reports whether an attribute for the key is present.
func (m *Map) Has(key string) bool {
	if m == nil {
		return false
	}
	_, ok := m.values[key]
	return ok
}

// Get returns the value for a key. The second return is false if the key is
// absent.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.values[key]
	return v, ok
}

// GetString returns the textual form of the value for a key, or "" if the
// key is absent.
func (m *Map) GetString(key string) string {
	v, _ := m.Get(key)
	return v.String()
}

// Set stores a value under a key, overwriting any previous value but keeping
// the key's original position.
func (m *Map) Set(key string, v Value) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v.Normalize()
}

// Keys returns the keys in insertion order. The returned slice must not be
// modified.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return m.keys
}

// Merge adds all attributes of another map, overwriting on conflict.
func (m *Map) Merge(o *Map) {
	if o == nil {
		return
	}
	for _, k := range o.keys {
		m.Set(k, o.values[k])
	}
}

// Swap efficiently exchanges the contents with another map.
func (m *Map) Swap(o *Map) {
	m.keys, o.keys = o.keys, m.keys
	m.values, o.values = o.values, m.values
}

// Clone returns a copy of the map.
func (m *Map) Clone() *Map {
	c := NewMap()
	c.Merge(m)
	return c
}

// Equal checks if two attribute sets carry the same keys with equal values.
func (m *Map) Equal(o *Map) bool {
	if m.Len() != o.Len() {
		return false
	}
	for _, k := range m.Keys() {
		ov, ok := o.Get(k)
		if !ok {
			return false
		}
		mv := m.values[k]
		if !mv.Equal(ov) {
			return false
		}
	}
	return true
}
