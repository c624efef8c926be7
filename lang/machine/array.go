package machine

import "fmt"

// An Array represents a mutable, ordered list of values.
type Array struct {
	elems []Value
}

var (
	_ Value       = (*Array)(nil)
	_ Indexable   = (*Array)(nil)
	_ HasSetIndex = (*Array)(nil)
	_ Iterable    = (*Array)(nil)
	_ Sequence    = (*Array)(nil)
)

// NewArray returns an array containing the specified elements. Callers
// should not subsequently modify elems directly.
func NewArray(elems []Value) *Array { return &Array{elems: elems} }

func (a *Array) String() string    { return fmt.Sprintf("array(%p)", a) }
func (a *Array) Type() string      { return "array" }
func (a *Array) Len() int          { return len(a.elems) }
func (a *Array) Index(i int) Value { return a.elems[i] }

func (a *Array) SetIndex(i int, v Value) error {
	a.elems[i] = v
	return nil
}

func (a *Array) Append(v Value) { a.elems = append(a.elems, v) }

func (a *Array) Iterate() Iterator { return &arrayIterator{a: a} }

type arrayIterator struct {
	a *Array
	i int
}

func (it *arrayIterator) Next(p *Value) bool {
	if it.i >= len(it.a.elems) {
		return false
	}
	*p = it.a.elems[it.i]
	it.i++
	return true
}

func (it *arrayIterator) Done() {}
