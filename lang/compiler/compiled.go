package compiler

import (
	"sync"

	"github.com/mna/nenuphar/lang/token"
)

// A Program is the unit of compilation: the top-level function plus every
// function nested in it, in a flat table so that MAKEFUNC can reference a
// child by index. Functions[0] is always the top-level (module) function.
type Program struct {
	Filename  string
	Loads     []Binding     // modules loaded with the LOAD opcode
	Names     []string      // attr/predeclared/universe names referenced by the program
	Constants []interface{} // int64, float64 or string
	Functions []*Funcode
}

// Toplevel returns the module-level Funcode, or nil if the program has no
// functions (should not happen for a successfully compiled program).
func (p *Program) Toplevel() *Funcode {
	if len(p.Functions) == 0 {
		return nil
	}
	return p.Functions[0]
}

// A Binding records a name and the source position where it is declared or
// referenced, used for Locals, Freevars and Loads.
type Binding struct {
	Name string
	Pos  token.Pos
}

// A Defer records the pc range [PC0, PC1) of a defer or catch block's
// guarded region, along with the StartPC where the block's own code begins.
// When several blocks cover a pc, hasDeferredExecution treats the one with
// the highest StartPC as the innermost, whatever their order in the slice.
type Defer struct {
	PC0, PC1, StartPC uint32
}

// Covers reports whether pc lies within the defer or catch block's guarded
// region [PC0, PC1). A negative pc (used as a sentinel for "exiting the
// function") never matches.
func (d Defer) Covers(pc int64) bool {
	return pc >= 0 && uint32(pc) >= d.PC0 && uint32(pc) < d.PC1
}

// A SourceMapEntry gives the source position range covered by one bytecode
// instruction. Entries are parallel to pc addresses that begin an
// instruction; the decoder of the marshaled form reconstructs this slice
// from a delta-encoded stream (see lang/marshal).
type SourceMapEntry struct {
	Start, End token.Pos
}

// A Funcode is the code of a compiled function. Funcodes are serialized by
// the lang/marshal package, which must be updated whenever this declaration
// changes shape.
type Funcode struct {
	Prog *Program
	Pos  token.Pos // position of the def/lambda token
	Name string    // name of this function, empty for anonymous functions

	Code []byte // the bytecode, a sequence of Opcode + optional varint argument

	Locals   []Binding // locals, parameters first
	Cells    []int     // indices of Locals that require indirection through a cell
	Freevars []Binding // for tracing/diagnostics only; see Envs for the marshaled form
	Envs     int       // number of captured environments (len of a Function's Envs slice)

	Defers  []Defer // defer blocks, nested ones after the more general ones
	Catches []Defer // catch blocks, nested ones after the more general ones

	Nested []*Funcode // function literals defined lexically inside this one

	MaxStack        int
	NumParams       int
	NumKwonlyParams int
	HasVarArg       bool
	HasKwargs       bool

	SourceName string           // optional, overrides Prog.Filename for diagnostics
	SourceMap  []SourceMapEntry // optional, parallel to the decoded instruction stream

	// -- transient state, never marshaled --

	lntOnce sync.Once
	lnt     []pclinecol // decoded line number table
}

type pclinecol struct {
	pc        uint32
	line, col int32
}

// Position returns the source position of the instruction at byte offset pc
// in fn.Code, by scanning the SourceMap. It returns fn.Pos if no source map
// was attached (e.g. for a function decoded without one).
func (fn *Funcode) Position(pc uint32) token.Pos {
	for i, entry := range fn.SourceMap {
		if uint32(i) == pc {
			return entry.Start
		}
	}
	return fn.Pos
}
