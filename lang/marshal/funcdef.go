package marshal

import (
	"encoding/binary"

	"github.com/mna/nenuphar/lang/compiler"
	"github.com/mna/nenuphar/lang/machine"
	"github.com/mna/nenuphar/lang/token"
)

const (
	funcdefHasName       = 1 << 0
	funcdefHasSourceName = 1 << 1
	funcdefHasSourceMap  = 1 << 2
	funcdefHasVarArg     = 1 << 3
	funcdefHasKwargs     = 1 << 4
)

// encodeFuncdef implements the function definition codec (§4.7). constants
// is the full resolved constants vector of the owning Module; every Funcode
// belonging to the same Module (the toplevel and everything nested in it)
// shares the same constants index space, so it is carried explicitly rather
// than stored on Funcode itself.
func encodeFuncdef(st *encodeState, fn *compiler.Funcode, constants []machine.Value) error {
	if err := st.enter(); err != nil {
		return err
	}
	defer st.leave()

	if id, ok := st.defs[fn]; ok {
		st.sink.WriteByte(byte(opFuncdefRef))
		putVarint(st.sink, id)
		return nil
	}
	id := int32(len(st.defs))
	st.defs[fn] = id

	var flags int32
	if fn.Name != "" {
		flags |= funcdefHasName
	}
	if fn.SourceName != "" {
		flags |= funcdefHasSourceName
	}
	if len(fn.SourceMap) > 0 {
		flags |= funcdefHasSourceMap
	}
	if fn.HasVarArg {
		flags |= funcdefHasVarArg
	}
	if fn.HasKwargs {
		flags |= funcdefHasKwargs
	}

	putVarint(st.sink, flags)
	putVarint(st.sink, int32(fn.MaxStack))
	putVarint(st.sink, int32(fn.NumParams))
	putVarint(st.sink, int32(fn.NumKwonlyParams))
	putVarint(st.sink, int32(len(constants)))
	putVarint(st.sink, int32(len(fn.Code)))
	putVarint(st.sink, int32(fn.Envs))
	putVarint(st.sink, int32(len(fn.Nested)))
	putVarint(st.sink, int32(len(fn.Locals)))
	putVarint(st.sink, int32(len(fn.Cells)))
	putVarint(st.sink, int32(len(fn.Defers)))
	putVarint(st.sink, int32(len(fn.Catches)))

	if flags&funcdefHasName != 0 {
		putVarint(st.sink, int32(len(fn.Name)))
		st.sink.Write([]byte(fn.Name))
	}
	if flags&funcdefHasSourceName != 0 {
		putVarint(st.sink, int32(len(fn.SourceName)))
		st.sink.Write([]byte(fn.SourceName))
	}

	for _, c := range constants {
		if err := encodeValue(st, c); err != nil {
			return err
		}
	}

	for _, b := range fn.Code {
		st.sink.WriteByte(b)
	}

	for _, idx := range fn.Cells {
		putVarint(st.sink, int32(idx))
	}
	for _, d := range fn.Defers {
		putVarint(st.sink, int32(d.PC0))
		putVarint(st.sink, int32(d.PC1))
		putVarint(st.sink, int32(d.StartPC))
	}
	for _, d := range fn.Catches {
		putVarint(st.sink, int32(d.PC0))
		putVarint(st.sink, int32(d.PC1))
		putVarint(st.sink, int32(d.StartPC))
	}

	for _, nested := range fn.Nested {
		if err := encodeFuncdef(st, nested, constants); err != nil {
			return err
		}
	}

	if flags&funcdefHasSourceMap != 0 {
		putVarint(st.sink, int32(len(fn.SourceMap)))
		var running uint32
		for _, e := range fn.SourceMap {
			start, end := uint32(e.Start), uint32(e.End)
			putVarint(st.sink, int32(start-running))
			putVarint(st.sink, int32(end-start))
			running = start
		}
	}

	return nil
}

// decodeFuncdef is the symmetric decoder. It returns the decoded function
// plus the resolved constants vector shared by it and everything nested in
// it, and runs the host bytecode verifier before returning.
func decodeFuncdef(st *decodeState, verify func(*compiler.Funcode) bool) (*compiler.Funcode, []machine.Value, error) {
	if err := st.enter(); err != nil {
		return nil, nil, err
	}
	defer st.leave()

	b, err := st.dec.peekByte()
	if err != nil {
		return nil, nil, err
	}
	if opcode(b) == opFuncdefRef {
		st.dec.pos++
		id, err := readVarint(st.dec)
		if err != nil {
			return nil, nil, err
		}
		if int(id) < 0 || int(id) >= len(st.defs) {
			return nil, nil, wrapf(ErrBadReference, "marshal: funcdef reference id %d out of range (%d seen)", id, len(st.defs))
		}
		return st.defs[id], nil, nil
	}

	// Allocate the skeleton before reading fields, so that a failure partway
	// through leaves a collectible, zero-valued definition rather than a
	// half-built one referenced from elsewhere.
	fn := &compiler.Funcode{}
	st.defs = append(st.defs, fn)

	flags, err := readVarint(st.dec)
	if err != nil {
		return nil, nil, err
	}
	maxStack, err := readVarint(st.dec)
	if err != nil {
		return nil, nil, err
	}
	numParams, err := readVarint(st.dec)
	if err != nil {
		return nil, nil, err
	}
	numKwonly, err := readVarint(st.dec)
	if err != nil {
		return nil, nil, err
	}
	numConstants, err := readVarint(st.dec)
	if err != nil {
		return nil, nil, err
	}
	codeLen, err := readVarint(st.dec)
	if err != nil {
		return nil, nil, err
	}
	numEnvs, err := readVarint(st.dec)
	if err != nil {
		return nil, nil, err
	}
	numNested, err := readVarint(st.dec)
	if err != nil {
		return nil, nil, err
	}
	numLocals, err := readVarint(st.dec)
	if err != nil {
		return nil, nil, err
	}
	numCells, err := readVarint(st.dec)
	if err != nil {
		return nil, nil, err
	}
	numDefers, err := readVarint(st.dec)
	if err != nil {
		return nil, nil, err
	}
	numCatches, err := readVarint(st.dec)
	if err != nil {
		return nil, nil, err
	}

	fn.MaxStack = int(maxStack)
	fn.NumParams = int(numParams)
	fn.NumKwonlyParams = int(numKwonly)
	fn.Envs = int(numEnvs)
	fn.HasVarArg = flags&funcdefHasVarArg != 0
	fn.HasKwargs = flags&funcdefHasKwargs != 0

	if flags&funcdefHasName != 0 {
		s, err := decodeBytes(st)
		if err != nil {
			return nil, nil, err
		}
		fn.Name = s
	}
	if flags&funcdefHasSourceName != 0 {
		s, err := decodeBytes(st)
		if err != nil {
			return nil, nil, err
		}
		fn.SourceName = s
	}

	if numConstants < 0 {
		return nil, nil, wrapf(ErrBadOpcode, "marshal: negative constants count %d", numConstants)
	}
	constants := make([]machine.Value, numConstants)
	for i := range constants {
		v, err := decodeValue(st)
		if err != nil {
			return nil, nil, err
		}
		constants[i] = v
	}

	if codeLen < 0 {
		return nil, nil, wrapf(ErrBadOpcode, "marshal: negative bytecode length %d", codeLen)
	}
	code, err := st.dec.readBytes(int(codeLen))
	if err != nil {
		return nil, nil, err
	}
	fn.Code = append([]byte(nil), code...)

	if numLocals < 0 {
		return nil, nil, wrapf(ErrBadOpcode, "marshal: negative locals count %d", numLocals)
	}
	// Local names are used only in diagnostics and are not part of the wire
	// format; only the slot count, which the
	// interpreter needs to size its stack frame, is carried.
	fn.Locals = make([]compiler.Binding, numLocals)

	if numCells < 0 {
		return nil, nil, wrapf(ErrBadOpcode, "marshal: negative cells count %d", numCells)
	}
	fn.Cells = make([]int, numCells)
	for i := range fn.Cells {
		idx, err := readVarint(st.dec)
		if err != nil {
			return nil, nil, err
		}
		fn.Cells[i] = int(idx)
	}

	if numDefers < 0 || numCatches < 0 {
		return nil, nil, wrapf(ErrBadOpcode, "marshal: negative defer/catch count")
	}
	readDefers := func(n int32) ([]compiler.Defer, error) {
		out := make([]compiler.Defer, n)
		for i := range out {
			pc0, err := readVarint(st.dec)
			if err != nil {
				return nil, err
			}
			pc1, err := readVarint(st.dec)
			if err != nil {
				return nil, err
			}
			startPC, err := readVarint(st.dec)
			if err != nil {
				return nil, err
			}
			out[i] = compiler.Defer{PC0: uint32(pc0), PC1: uint32(pc1), StartPC: uint32(startPC)}
		}
		return out, nil
	}
	fn.Defers, err = readDefers(numDefers)
	if err != nil {
		return nil, nil, err
	}
	fn.Catches, err = readDefers(numCatches)
	if err != nil {
		return nil, nil, err
	}

	if numNested < 0 {
		return nil, nil, wrapf(ErrBadOpcode, "marshal: negative nested-def count %d", numNested)
	}
	fn.Nested = make([]*compiler.Funcode, numNested)
	for i := range fn.Nested {
		nested, _, err := decodeFuncdef(st, verify)
		if err != nil {
			return nil, nil, err
		}
		fn.Nested[i] = nested
	}

	if flags&funcdefHasSourceMap != 0 {
		n, err := readVarint(st.dec)
		if err != nil {
			return nil, nil, err
		}
		if n < 0 {
			return nil, nil, wrapf(ErrBadOpcode, "marshal: negative source map length %d", n)
		}
		entries := make([]compiler.SourceMapEntry, n)
		var running uint32
		for i := range entries {
			dStart, err := readVarint(st.dec)
			if err != nil {
				return nil, nil, err
			}
			dEnd, err := readVarint(st.dec)
			if err != nil {
				return nil, nil, err
			}
			start := running + uint32(dStart)
			end := start + uint32(dEnd)
			entries[i] = compiler.SourceMapEntry{Start: token.Pos(start), End: token.Pos(end)}
			running = start
		}
		fn.SourceMap = entries
	}

	// Wire the nested definitions' Prog to a shared program built lazily by
	// the caller once the whole tree is known; see buildProgram in
	// closure.go. Funcode.Prog is set there, not here.

	if verify != nil && !verify(fn) {
		return nil, nil, ErrBadBytecode
	}

	return fn, constants, nil
}

var _ = binary.LittleEndian // bytecode bytes are copied verbatim; binary is used by the float codec
