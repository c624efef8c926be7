package marshal

import (
	"github.com/mna/nenuphar/lang/compiler"
	"github.com/mna/nenuphar/lang/machine"
)

// maxDepth bounds the recursion depth of a single marshal or unmarshal call,
// guarding against pathological or adversarial input. The counter is a plain
// int field of the encode and decode states, not part of any wire flag word.
const maxDepth = 1 << 16

// encodeState is the scratch state shared by every codec routine for the
// duration of one Marshal call. It is never retained past the call.
type encodeState struct {
	sink *sink

	// seen assigns a dense id to each reference-typed value already emitted
	// in full; later encounters emit a back-reference instead.
	seen map[machine.Value]int32

	// defs and envs are the separate id spaces for function definitions and
	// captured environments.
	defs map[*compiler.Funcode]int32
	envs map[*machine.FuncEnv]int32

	registry map[machine.Value]string

	depth int
}

func newEncodeState(s *sink, registry map[machine.Value]string) *encodeState {
	return &encodeState{
		sink:     s,
		seen:     make(map[machine.Value]int32),
		defs:     make(map[*compiler.Funcode]int32),
		envs:     make(map[*machine.FuncEnv]int32),
		registry: registry,
	}
}

// decodeState is the symmetric scratch state for one Unmarshal call: the
// lookup array plays the role of the encoder's seen-table, indexed by id in
// order of first appearance.
type decodeState struct {
	dec *decoder

	lookup []machine.Value
	defs   []*compiler.Funcode
	envs   []*machine.FuncEnv

	registry map[string]machine.Value

	depth int
}

func newDecodeState(d *decoder, registry map[string]machine.Value) *decodeState {
	return &decodeState{dec: d, registry: registry}
}

// enter increments the recursion-depth counter, failing with
// ErrStackOverflow once the bound is exceeded. Every recursive codec entry
// point must call this and its paired leave via defer.
func (st *encodeState) enter() error {
	st.depth++
	if st.depth > maxDepth {
		return ErrStackOverflow
	}
	return nil
}

func (st *encodeState) leave() { st.depth-- }

func (st *decodeState) enter() error {
	st.depth++
	if st.depth > maxDepth {
		return ErrStackOverflow
	}
	return nil
}

func (st *decodeState) leave() { st.depth-- }
