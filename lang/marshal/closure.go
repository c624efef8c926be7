package marshal

import (
	"github.com/mna/nenuphar/lang/compiler"
	"github.com/mna/nenuphar/lang/machine"
)

// Verify, when set, gates every decoded function definition: a definition
// for which it returns false is rejected with ErrBadBytecode before
// Unmarshal returns. The host installs a bytecode verifier here; a nil
// Verify accepts every definition unchecked.
var Verify func(*compiler.Funcode) bool

// encodeClosure implements the function-value codec (§4.9): the definition
// first (with its own dedup), then the closure itself marked seen so a
// self-recursive function can reference its own closure value, then exactly
// definition.Envs environment references in order.
func encodeClosure(st *encodeState, fn *machine.Function) error {
	if err := st.enter(); err != nil {
		return err
	}
	defer st.leave()

	st.sink.WriteByte(byte(opFunction))
	if err := encodeFuncdef(st, fn.Funcode, fn.Module.Constants); err != nil {
		return err
	}

	st.markSeen(fn)

	if len(fn.Envs) < fn.Funcode.Envs {
		return wrapf(ErrNoEncoding, "marshal: function %s has %d environments, its definition declares %d", fn.Name(), len(fn.Envs), fn.Funcode.Envs)
	}
	for _, e := range fn.Envs[:fn.Funcode.Envs] {
		if err := encodeFuncEnv(st, e); err != nil {
			return err
		}
	}
	return nil
}

// decodeClosure is the symmetric decoder.
func decodeClosure(st *decodeState) (machine.Value, error) {
	if err := st.enter(); err != nil {
		return nil, err
	}
	defer st.leave()

	fcode, constants, err := decodeFuncdef(st, Verify)
	if err != nil {
		return nil, err
	}

	mod := &machine.Module{Constants: constants}
	buildProgram(fcode, mod)

	fn := &machine.Function{Funcode: fcode, Module: mod}
	st.lookup = append(st.lookup, fn)

	fn.Envs = make([]*machine.FuncEnv, fcode.Envs)
	for i := range fn.Envs {
		e, err := decodeFuncEnv(st)
		if err != nil {
			return nil, err
		}
		fn.Envs[i] = e
	}
	return fn, nil
}

// buildProgram assigns root and everything nested in it a shared, freshly
// built Program whose Functions table is the pre-order flattening of the
// definition tree, mirroring how a single-pass compiler assigns MAKEFUNC's
// flat-table indices: a function literal's own index always precedes the
// literals nested directly inside it.
func buildProgram(root *compiler.Funcode, mod *machine.Module) {
	var flat []*compiler.Funcode
	var walk func(*compiler.Funcode)
	walk = func(fn *compiler.Funcode) {
		flat = append(flat, fn)
		for _, n := range fn.Nested {
			walk(n)
		}
	}
	walk(root)

	prog := &compiler.Program{Functions: flat}
	mod.Program = prog
	for _, fn := range flat {
		fn.Prog = prog
	}
}
