package marshal

import "github.com/mna/nenuphar/lang/machine"

// encodeFuncEnv implements the environment codec (§4.8): dedup by identity
// in the environments id space, then emit either a live environment (the
// owning coroutine, so the decoder can reconstruct a window into its data
// vector) or a detached one (the captured values directly).
func encodeFuncEnv(st *encodeState, e *machine.FuncEnv) error {
	if err := st.enter(); err != nil {
		return err
	}
	defer st.leave()

	if id, ok := st.envs[e]; ok {
		st.sink.WriteByte(byte(opFuncenvRef))
		putVarint(st.sink, id)
		return nil
	}
	id := int32(len(st.envs))
	st.envs[e] = id

	putVarint(st.sink, int32(e.Offset))
	putVarint(st.sink, int32(e.Length))

	if e.Live() {
		return encodeValue(st, e.Coroutine)
	}
	for i := 0; i < e.Length; i++ {
		if err := encodeValue(st, e.Get(i)); err != nil {
			return err
		}
	}
	return nil
}

// decodeFuncEnv is the symmetric decoder. It allocates the environment and
// registers it in the decode state's envs id space before reading its
// payload, so that a coroutine whose frames reference this same environment
// (directly possible since a coroutine's own frames can capture its own
// locals) resolves to the same object.
func decodeFuncEnv(st *decodeState) (*machine.FuncEnv, error) {
	if err := st.enter(); err != nil {
		return nil, err
	}
	defer st.leave()

	b, err := st.dec.peekByte()
	if err != nil {
		return nil, err
	}
	if opcode(b) == opFuncenvRef {
		st.dec.pos++
		id, err := readVarint(st.dec)
		if err != nil {
			return nil, err
		}
		if int(id) < 0 || int(id) >= len(st.envs) {
			return nil, wrapf(ErrBadReference, "marshal: funcenv reference id %d out of range (%d seen)", id, len(st.envs))
		}
		return st.envs[id], nil
	}

	offset, err := readVarint(st.dec)
	if err != nil {
		return nil, err
	}
	length, err := readVarint(st.dec)
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, wrapf(ErrBadOpcode, "marshal: negative funcenv length %d", length)
	}

	e := &machine.FuncEnv{Offset: int(offset), Length: int(length)}
	st.envs = append(st.envs, e)

	if e.Live() {
		co, err := decodeValue(st)
		if err != nil {
			return nil, err
		}
		c, ok := co.(*machine.Coroutine)
		if !ok {
			return nil, wrapf(ErrBadReference, "marshal: live funcenv's owner must be a coroutine, got %T", co)
		}
		if e.Offset+e.Length > len(c.Data()) {
			return nil, wrapf(ErrBadFrame, "marshal: funcenv window [%d,%d) exceeds coroutine data length %d", e.Offset, e.Offset+e.Length, len(c.Data()))
		}
		e.Coroutine = c
		return e, nil
	}

	e.Values = make([]machine.Value, e.Length)
	for i := range e.Values {
		v, err := decodeValue(st)
		if err != nil {
			return nil, err
		}
		e.Values[i] = v
	}
	return e, nil
}
