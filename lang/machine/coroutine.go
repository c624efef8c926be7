package machine

import "fmt"

// CoroutineStatus describes the current state of a Coroutine.
type CoroutineStatus uint8

const (
	CoroutineDead      CoroutineStatus = iota // finished normally, can't be resumed
	CoroutineAlive                            // currently executing (on the Go call stack)
	CoroutineSuspended                        // yielded, can be resumed
	CoroutineError                            // finished abnormally
)

func (s CoroutineStatus) String() string {
	switch s {
	case CoroutineDead:
		return "dead"
	case CoroutineAlive:
		return "alive"
	case CoroutineSuspended:
		return "suspended"
	case CoroutineError:
		return "error"
	default:
		return "unknown"
	}
}

// coroutineFrameHeaderSize is the number of slots reserved between one
// frame's base and the previous frame's base, mirroring the frame header
// that a real call-stack implementation would store inline in the data
// vector. It is used only to validate frame consistency on decode.
const coroutineFrameHeaderSize = 1

// A CoroutineFrame records one suspended call in a Coroutine's frame chain.
type CoroutineFrame struct {
	PrevFrameBase int // base offset, in the coroutine's data vector, of the next frame out
	Flags         uint32
	PC            uint32 // program counter, a byte offset into Function.Funcode.Code
	Function      *Function
	Env           *FuncEnv // optional: the environment this frame contributes to closures
	FrameBase     int      // base offset, in the coroutine's data vector, of this frame's slots
}

const frameHasEnv = 1 << 0

// A Coroutine is a suspendable call stack: a chain of frames plus the flat
// vector of slot values they index into, and an optional child coroutine it
// is waiting on. Frames are stored outermost-first (Frames[0] is the
// bottom of the stack, Frames[len-1] is the one currently executing).
type Coroutine struct {
	Status CoroutineStatus

	FrameBase int // base of the current (innermost) frame
	StackTop  int // one past the last live slot
	MaxStack  int

	data   []Value
	Frames []*CoroutineFrame

	Child *Coroutine
}

const coroutineHasChild = 1 << 0

var _ Value = (*Coroutine)(nil)

func (c *Coroutine) String() string { return fmt.Sprintf("coroutine(%p)", c) }
func (c *Coroutine) Type() string   { return "coroutine" }

// NewCoroutine returns an empty, dead coroutine whose data vector has
// capacity for at least size slots. It is normally populated by the
// lang/marshal decoder or by a suspend operation of the interpreter.
func NewCoroutine(size int) *Coroutine {
	return &Coroutine{data: make([]Value, size)}
}

// Data returns the coroutine's flat slot vector. Live FuncEnvs index into
// this slice directly, so callers must not replace it wholesale; grow it
// with GrowData instead.
func (c *Coroutine) Data() []Value { return c.data }

// GrowData ensures the data vector has at least n slots, preserving existing
// contents and the addresses already handed out to live FuncEnvs (a bigger
// backing array is allocated and copied, but any slice derived from the old
// one before this call becomes stale, matching how a real stack grows).
func (c *Coroutine) GrowData(n int) {
	if n <= len(c.data) {
		return
	}
	grown := make([]Value, n)
	copy(grown, c.data)
	c.data = grown
}

// Validate checks the frame-stack consistency invariants: for every frame,
// the previous frame's base plus the header size does not exceed this
// frame's base, the frame's slot count matches its function's declared slot
// count, and its program counter lies within the function's bytecode.
func (c *Coroutine) Validate() error {
	for i, fr := range c.Frames {
		if fr.PrevFrameBase+coroutineFrameHeaderSize > fr.FrameBase {
			return fmt.Errorf("bad_frame: frame %d: prev frame base %d + header > frame base %d", i, fr.PrevFrameBase, fr.FrameBase)
		}
		top := c.StackTop
		if i+1 < len(c.Frames) {
			top = c.Frames[i+1].FrameBase
		}
		want := fr.Function.Funcode.MaxStack + len(fr.Function.Funcode.Locals)
		if got := top - fr.FrameBase; got != want {
			return fmt.Errorf("bad_frame: frame %d: slot count %d, want %d", i, got, want)
		}
		if int(fr.PC) > len(fr.Function.Funcode.Code) {
			return fmt.Errorf("bad_frame: frame %d: pc %d out of range of %d-byte bytecode", i, fr.PC, len(fr.Function.Funcode.Code))
		}
	}
	return nil
}
