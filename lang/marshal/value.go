package marshal

import (
	"encoding/binary"
	"math"

	"github.com/mna/nenuphar/lang/machine"
)

// encodeValue is the single entry point every codec recurses through to
// emit a nested value. It handles inline primitives directly, then the
// seen-table, then the registry, then dispatches to the value's own
// encoding rule.
func encodeValue(st *encodeState, v machine.Value) error {
	if err := st.enter(); err != nil {
		return err
	}
	defer st.leave()

	switch v := v.(type) {
	case machine.NilType:
		st.sink.WriteByte(byte(opNil))
		return nil
	case machine.Bool:
		if v {
			st.sink.WriteByte(byte(opTrue))
		} else {
			st.sink.WriteByte(byte(opFalse))
		}
		return nil
	case machine.Int:
		putVarint(st.sink, int32(v))
		return nil
	}

	// Reference-typed (or content-identity-typed) values: seen-table first,
	// then registry, then the value's own encoding.
	if id, ok := st.seen[v]; ok {
		st.sink.WriteByte(byte(opReference))
		putVarint(st.sink, id)
		return nil
	}

	if st.registry != nil {
		if name, ok := st.registry[v]; ok {
			st.sink.WriteByte(byte(opRegistry))
			putVarint(st.sink, int32(len(name)))
			st.sink.Write([]byte(name))
			st.markSeen(v)
			return nil
		}
	}

	switch v := v.(type) {
	case machine.Float:
		return encodeFloat(st, v)
	case machine.String:
		return encodeBytes(st, opString, v, string(v))
	case machine.Symbol:
		return encodeBytes(st, opSymbol, v, string(v))
	case machine.Keyword:
		return encodeBytes(st, opKeyword, v, string(v))
	case *machine.Buffer:
		return encodeBytes(st, opBuffer, v, string(v.Bytes()))
	case *machine.Array:
		return encodeArray(st, v)
	case *machine.Tuple:
		return encodeTuple(st, v)
	case *machine.Map:
		return encodeMap(st, v)
	case *machine.Struct:
		return encodeStruct(st, v)
	case *machine.Opaque:
		return encodeOpaque(st, v)
	case *machine.Function:
		return encodeClosure(st, v)
	case *machine.Coroutine:
		return encodeCoroutine(st, v)
	default:
		return wrapf(ErrNoEncoding, "marshal: %s value has no encoding", v.Type())
	}
}

// markSeen assigns the next dense id to v. It must be called exactly once
// per reference-typed value, at the point its sharing rule (before or
// after children) dictates.
func (st *encodeState) markSeen(v machine.Value) int32 {
	id := int32(len(st.seen))
	st.seen[v] = id
	return id
}

func encodeFloat(st *encodeState, f machine.Float) error {
	st.sink.WriteByte(byte(opReal))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(float64(f)))
	st.sink.Write(buf[:])
	st.markSeen(f)
	return nil
}

func encodeBytes(st *encodeState, op opcode, v machine.Value, s string) error {
	st.markSeen(v)
	st.sink.WriteByte(byte(op))
	putVarint(st.sink, int32(len(s)))
	st.sink.Write([]byte(s))
	return nil
}

func encodeArray(st *encodeState, a *machine.Array) error {
	st.markSeen(a)
	st.sink.WriteByte(byte(opArray))
	putVarint(st.sink, int32(a.Len()))
	for i := 0; i < a.Len(); i++ {
		if err := encodeValue(st, a.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func encodeTuple(st *encodeState, t *machine.Tuple) error {
	st.sink.WriteByte(byte(opTuple))
	putVarint(st.sink, int32(t.Len()))
	putVarint(st.sink, int32(t.Flags))
	for i := 0; i < t.Len(); i++ {
		if err := encodeValue(st, t.Index(i)); err != nil {
			return err
		}
	}
	// Immutable container: marked seen only after its contents, so that a
	// tuple can never observably contain itself, matching the decoder's
	// ability to allocate it only once its elements are known.
	st.markSeen(t)
	return nil
}

func encodeMap(st *encodeState, m *machine.Map) error {
	st.markSeen(m)
	if m.Proto != nil {
		st.sink.WriteByte(byte(opTableProto))
	} else {
		st.sink.WriteByte(byte(opTable))
	}
	putVarint(st.sink, int32(m.Len()))
	if m.Proto != nil {
		if err := encodeValue(st, m.Proto); err != nil {
			return err
		}
	}
	it := m.Iterate()
	defer it.Done()
	var pair machine.Value
	for it.Next(&pair) {
		kv := pair.(*machine.Tuple)
		if err := encodeValue(st, kv.Index(0)); err != nil {
			return err
		}
		if err := encodeValue(st, kv.Index(1)); err != nil {
			return err
		}
	}
	return nil
}

func encodeStruct(st *encodeState, s *machine.Struct) error {
	st.sink.WriteByte(byte(opStruct))
	keys, vals := s.Entries()
	putVarint(st.sink, int32(len(keys)))
	for i := range keys {
		if err := encodeValue(st, keys[i]); err != nil {
			return err
		}
		if err := encodeValue(st, vals[i]); err != nil {
			return err
		}
	}
	st.markSeen(s)
	return nil
}

// decodeValue is the decoder's symmetric entry point: it reads one leading
// byte, determines whether it is an inlined integer or an opcode, and
// dispatches accordingly. Every reference produced is appended to the
// lookup array at the point its sharing rule dictates, mirroring
// encodeValue.
func decodeValue(st *decodeState) (machine.Value, error) {
	if err := st.enter(); err != nil {
		return nil, err
	}
	defer st.leave()

	b, err := st.dec.peekByte()
	if err != nil {
		return nil, err
	}

	if b < maxInlineInt || opcode(b) == opLongInt {
		n, err := readVarint(st.dec)
		if err != nil {
			return nil, err
		}
		return machine.Int(n), nil
	}

	op := opcode(b)
	st.dec.pos++ // consume the opcode byte

	switch op {
	case opNil:
		return machine.Nil, nil
	case opFalse:
		return machine.False, nil
	case opTrue:
		return machine.True, nil
	case opReal:
		return decodeFloat(st)
	case opString:
		s, err := decodeBytes(st)
		if err != nil {
			return nil, err
		}
		v := machine.String(s)
		st.lookup = append(st.lookup, v)
		return v, nil
	case opSymbol:
		s, err := decodeBytes(st)
		if err != nil {
			return nil, err
		}
		v := machine.Symbol(s)
		st.lookup = append(st.lookup, v)
		return v, nil
	case opKeyword:
		s, err := decodeBytes(st)
		if err != nil {
			return nil, err
		}
		v := machine.Keyword(s)
		st.lookup = append(st.lookup, v)
		return v, nil
	case opBuffer:
		s, err := decodeBytes(st)
		if err != nil {
			return nil, err
		}
		v := machine.NewBuffer([]byte(s))
		st.lookup = append(st.lookup, v)
		return v, nil
	case opArray:
		return decodeArray(st)
	case opTuple:
		return decodeTuple(st)
	case opTable, opTableProto:
		return decodeMap(st, op == opTableProto)
	case opStruct:
		return decodeStruct(st)
	case opRegistry:
		return decodeRegistry(st)
	case opOpaque:
		return decodeOpaque(st)
	case opFunction:
		return decodeClosure(st)
	case opCoroutine:
		return decodeCoroutine(st)
	case opReference:
		id, err := readVarint(st.dec)
		if err != nil {
			return nil, err
		}
		if int(id) < 0 || int(id) >= len(st.lookup) {
			return nil, wrapf(ErrBadReference, "marshal: value reference id %d out of range (%d seen)", id, len(st.lookup))
		}
		return st.lookup[id], nil
	default:
		return nil, wrapf(ErrBadOpcode, "marshal: unexpected opcode %s (0x%02X)", op, byte(op))
	}
}

func decodeFloat(st *decodeState) (machine.Value, error) {
	raw, err := st.dec.readBytes(8)
	if err != nil {
		return nil, err
	}
	bits := binary.LittleEndian.Uint64(raw)
	v := machine.Float(math.Float64frombits(bits))
	st.lookup = append(st.lookup, v)
	return v, nil
}

func decodeBytes(st *decodeState) (string, error) {
	n, err := readVarint(st.dec)
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", wrapf(ErrBadOpcode, "marshal: negative length %d", n)
	}
	raw, err := st.dec.readBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeArray(st *decodeState) (machine.Value, error) {
	n, err := readVarint(st.dec)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, wrapf(ErrBadOpcode, "marshal: negative array length %d", n)
	}
	a := machine.NewArray(make([]machine.Value, n))
	// Mutable container: appended to the lookup array before its elements
	// are decoded, so an element that back-references this array resolves
	// to the same object being built.
	st.lookup = append(st.lookup, a)
	for i := 0; i < int(n); i++ {
		v, err := decodeValue(st)
		if err != nil {
			return nil, err
		}
		if err := a.SetIndex(i, v); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func decodeTuple(st *decodeState) (machine.Value, error) {
	n, err := readVarint(st.dec)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, wrapf(ErrBadOpcode, "marshal: negative tuple length %d", n)
	}
	flags, err := readVarint(st.dec)
	if err != nil {
		return nil, err
	}
	elems := make([]machine.Value, n)
	for i := 0; i < int(n); i++ {
		v, err := decodeValue(st)
		if err != nil {
			return nil, err
		}
		elems[i] = v
	}
	t := machine.NewTupleFlags(elems, uint32(flags))
	// Immutable container: appended only after its elements, matching the
	// encoder's after-children marking.
	st.lookup = append(st.lookup, t)
	return t, nil
}

func decodeMap(st *decodeState, withProto bool) (machine.Value, error) {
	n, err := readVarint(st.dec)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, wrapf(ErrBadOpcode, "marshal: negative table length %d", n)
	}
	m := machine.NewMap(int(n))
	// Mutable container: pre-marked before its entries, so a self-reference
	// (or a reference through the prototype chain) resolves correctly.
	st.lookup = append(st.lookup, m)
	if withProto {
		proto, err := decodeValue(st)
		if err != nil {
			return nil, err
		}
		p, ok := proto.(*machine.Map)
		if !ok {
			return nil, wrapf(ErrBadOpcode, "marshal: table prototype must be a table, got %T", proto)
		}
		m.Proto = p
	}
	for i := 0; i < int(n); i++ {
		k, err := decodeValue(st)
		if err != nil {
			return nil, err
		}
		v, err := decodeValue(st)
		if err != nil {
			return nil, err
		}
		if err := m.SetKey(k, v); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func decodeStruct(st *decodeState) (machine.Value, error) {
	n, err := readVarint(st.dec)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, wrapf(ErrBadOpcode, "marshal: negative struct length %d", n)
	}
	keys := make([]machine.Value, n)
	vals := make([]machine.Value, n)
	for i := 0; i < int(n); i++ {
		k, err := decodeValue(st)
		if err != nil {
			return nil, err
		}
		v, err := decodeValue(st)
		if err != nil {
			return nil, err
		}
		keys[i], vals[i] = k, v
	}
	s := machine.NewStruct(keys, vals)
	// Immutable, cannot reach itself: marked seen only after its entries.
	st.lookup = append(st.lookup, s)
	return s, nil
}
