package machine

import "fmt"

// A Struct is an immutable mapping from keys to values. Unlike a Map, a
// Struct can never be mutated after construction, so it is safe to use as a
// map key or to share freely, and it never needs pre-marking in the
// marshaled form: it cannot reach itself.
type Struct struct {
	keys []Value
	vals []Value
}

var (
	_ Value   = (*Struct)(nil)
	_ Mapping = (*Struct)(nil)
)

// NewStruct returns a struct with the given keys and values, which must be
// parallel slices of equal length. Callers should not subsequently modify
// either slice.
func NewStruct(keys, vals []Value) *Struct {
	return &Struct{keys: keys, vals: vals}
}

func (s *Struct) String() string { return fmt.Sprintf("struct(%p)", s) }
func (s *Struct) Type() string   { return "struct" }
func (s *Struct) Len() int       { return len(s.keys) }

func (s *Struct) Get(k Value) (Value, bool, error) {
	for i, key := range s.keys {
		eq, err := valueEquals(key, k)
		if err != nil {
			return nil, false, err
		}
		if eq {
			return s.vals[i], true, nil
		}
	}
	return nil, false, nil
}

// Entries returns the struct's key/value pairs in construction order.
func (s *Struct) Entries() (keys, vals []Value) { return s.keys, s.vals }
