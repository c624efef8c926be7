package machine

import (
	"fmt"

	"github.com/dolthub/swiss"
)

// A Map represents a map or dictionary. If you know the exact final number of
// entries, it is more efficient to call NewMap.
//
// A Map may have a Proto, another Map consulted by Get when a key is not
// present locally, mirroring the prototype-chain lookup of the language
// runtime's table type.
type Map struct {
	m     *swiss.Map[Value, Value]
	Proto *Map
}

var (
	_ Value     = (*Map)(nil)
	_ Mapping   = (*Map)(nil)
	_ HasSetKey = (*Map)(nil)
	_ Iterable  = (*Map)(nil)
)

// NewMap returns a map with initial capacity for at least size items.
func NewMap(size int) *Map {
	m := swiss.NewMap[Value, Value](uint32(size))
	return &Map{m: m}
}

func (m *Map) String() string { return fmt.Sprintf("map(%p)", m) }
func (m *Map) Type() string   { return "map" }
func (m *Map) Get(k Value) (Value, bool, error) {
	if v, ok := m.m.Get(k); ok {
		return v, true, nil
	}
	if m.Proto != nil {
		return m.Proto.Get(k)
	}
	return nil, false, nil
}
func (m *Map) SetKey(k, v Value) error {
	m.m.Put(k, v)
	return nil
}

// Len returns the number of entries stored directly in m, not counting any
// Proto chain.
func (m *Map) Len() int { return m.m.Count() }

func (m *Map) Iterate() Iterator {
	pairs := make([]Value, 0, m.m.Count())
	m.m.Iter(func(k, v Value) bool {
		pairs = append(pairs, NewTuple([]Value{k, v}))
		return false
	})
	return &mapIterator{pairs: pairs}
}

type mapIterator struct {
	pairs []Value
	i     int
}

func (it *mapIterator) Next(p *Value) bool {
	if it.i >= len(it.pairs) {
		return false
	}
	*p = it.pairs[it.i]
	it.i++
	return true
}

func (it *mapIterator) Done() {}
