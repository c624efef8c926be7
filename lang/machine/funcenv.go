package machine

import "fmt"

// A FuncEnv is one captured lexical frame of a closure. It is either
// "live" — a window [Offset, Offset+Length) into a specific Coroutine's data
// vector, so that writes made by the running coroutine are visible to every
// closure that captured it — or "detached", owning an independent slice of
// values once its owning frame has returned.
//
// Offset == 0 always means detached; a live frame's base is never zero
// because slot 0 is reserved by the frame header of the coroutine's
// outermost call.
type FuncEnv struct {
	Offset, Length int
	Coroutine      *Coroutine // non-nil only when live
	Values         []Value    // used only when detached
}

var _ Value = (*FuncEnv)(nil)

func (e *FuncEnv) String() string { return fmt.Sprintf("funcenv(%p)", e) }
func (e *FuncEnv) Type() string   { return "funcenv" }

// Live reports whether e is backed by a coroutine's data vector rather than
// owning a detached value slice.
func (e *FuncEnv) Live() bool { return e.Offset != 0 }

// Get returns the i-th captured value, 0 <= i < e.Length.
func (e *FuncEnv) Get(i int) Value {
	if e.Live() {
		return e.Coroutine.data[e.Offset+i]
	}
	return e.Values[i]
}

// Set assigns the i-th captured value.
func (e *FuncEnv) Set(i int, v Value) {
	if e.Live() {
		e.Coroutine.data[e.Offset+i] = v
		return
	}
	e.Values[i] = v
}

// Detach copies the live window into an owned value slice and clears the
// coroutine reference, turning a live environment into a detached one. This
// is what happens when a coroutine's frame that owns a captured environment
// returns while a closure still references it.
func (e *FuncEnv) Detach() {
	if !e.Live() {
		return
	}
	vs := make([]Value, e.Length)
	copy(vs, e.Coroutine.data[e.Offset:e.Offset+e.Length])
	e.Values = vs
	e.Offset = 0
	e.Coroutine = nil
}
