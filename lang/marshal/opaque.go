package marshal

import "github.com/mna/nenuphar/lang/machine"

// encodeOpaque implements the opaque-value codec (§4.6): mark seen, emit the
// type-name keyword and declared size, then hand off to the descriptor's
// marshal callback through a context exposing the low-level push primitives.
func encodeOpaque(st *encodeState, o *machine.Opaque) error {
	if o.Descriptor == nil || o.Descriptor.Marshal == nil {
		return wrapf(ErrUnregisteredOpaque, "marshal: opaque type has no marshal callback installed")
	}
	st.markSeen(o)
	st.sink.WriteByte(byte(opOpaque))
	if err := encodeBytesRaw(st, o.Descriptor.Name); err != nil {
		return err
	}
	putVarint(st.sink, int32(o.Descriptor.Size))

	ctx := &machine.OpaqueContext{
		PushVarint: func(i int32) { putVarint(st.sink, i) },
		PushByte:   func(b byte) { st.sink.WriteByte(b) },
		PushBytes:  func(p []byte) { st.sink.Write(p) },
		PushValue:  func(v machine.Value) error { return encodeValue(st, v) },
		Depth:      st.depth,
	}
	return o.Descriptor.Marshal(ctx, o)
}

// encodeBytesRaw writes a keyword's content directly, without consulting
// the seen-table: the descriptor name is not itself an independently
// addressable value, it is part of the opaque node's own payload.
func encodeBytesRaw(st *encodeState, k machine.Keyword) error {
	s := string(k)
	putVarint(st.sink, int32(len(s)))
	st.sink.Write([]byte(s))
	return nil
}

func decodeOpaque(st *decodeState) (machine.Value, error) {
	name, err := decodeBytes(st)
	if err != nil {
		return nil, err
	}
	size, err := readVarint(st.dec)
	if err != nil {
		return nil, err
	}
	desc := machine.LookupOpaqueType(machine.Keyword(name))
	if desc == nil || desc.Unmarshal == nil {
		return nil, wrapf(ErrUnregisteredOpaque, "marshal: unregistered opaque type %q", name)
	}

	// The encoder marks the opaque value seen before its payload, so its id
	// is reserved here before the payload is read and filled in afterwards.
	id := len(st.lookup)
	st.lookup = append(st.lookup, machine.Nil)

	ctx := &machine.OpaqueContext{
		ReadVarint: func() (int32, error) { return readVarint(st.dec) },
		ReadByte:   func() (byte, error) { return st.dec.readByte() },
		ReadBytes:  func(n int) ([]byte, error) { return st.dec.readBytes(n) },
		ReadValue:  func() (machine.Value, error) { return decodeValue(st) },
		Depth:      st.depth,
	}

	o, err := desc.Unmarshal(ctx)
	if err != nil {
		return nil, err
	}
	if o.Descriptor == nil {
		o.Descriptor = desc
	}
	_ = size // the declared size is informational; the descriptor owns layout
	st.lookup[id] = o
	return o, nil
}
