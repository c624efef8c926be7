package marshal

import "github.com/mna/nenuphar/lang/machine"

const (
	coroutineFlagChild   = 1 << 0
	coroutineStatusShift = 1
	coroutineStatusMask  = 0x3

	// frameHasEnv mirrors machine's unexported frame-flag bit of the same
	// name; the two must stay in sync since this is the wire representation
	// of that in-memory flag.
	frameHasEnv = 1 << 0
)

// encodeCoroutine implements the coroutine codec (§4.10). A coroutine
// currently executing (on the Go call stack, not merely suspended) cannot be
// captured as a value: its native stack frames have no representation here.
func encodeCoroutine(st *encodeState, c *machine.Coroutine) error {
	if err := st.enter(); err != nil {
		return err
	}
	defer st.leave()

	if c.Status == machine.CoroutineAlive {
		return ErrAliveCoroutine
	}

	st.markSeen(c)
	st.sink.WriteByte(byte(opCoroutine))

	flags := int32(c.Status&coroutineStatusMask) << coroutineStatusShift
	if c.Child != nil {
		flags |= coroutineFlagChild
	}
	putVarint(st.sink, flags)
	putVarint(st.sink, int32(c.FrameBase))
	putVarint(st.sink, int32(c.StackTop))
	putVarint(st.sink, int32(c.MaxStack))
	putVarint(st.sink, int32(len(c.Frames)))

	// Walk innermost-outward: Frames[0] is outermost, so iterate backward.
	for i := len(c.Frames) - 1; i >= 0; i-- {
		fr := c.Frames[i]
		if fr.Function == nil {
			return ErrNativeFrame
		}

		var frameFlags int32
		if fr.Env != nil {
			frameFlags |= frameHasEnv
		}
		putVarint(st.sink, frameFlags)
		putVarint(st.sink, int32(fr.PrevFrameBase))
		putVarint(st.sink, int32(fr.PC))

		if err := encodeValue(st, fr.Function); err != nil {
			return err
		}
		if fr.Env != nil {
			if err := encodeFuncEnv(st, fr.Env); err != nil {
				return err
			}
		}

		width := fr.Function.Funcode.MaxStack + len(fr.Function.Funcode.Locals)
		data := c.Data()
		for j := 0; j < width; j++ {
			if err := encodeValue(st, data[fr.FrameBase+j]); err != nil {
				return err
			}
		}
	}

	if c.Child != nil {
		if err := encodeValue(st, c.Child); err != nil {
			return err
		}
	}
	return nil
}

// decodeCoroutine is the symmetric decoder. The coroutine is allocated and
// pushed to the lookup array before its frames are read, so a reference
// cycle running back through a captured environment resolves to the same
// object being built.
func decodeCoroutine(st *decodeState) (machine.Value, error) {
	if err := st.enter(); err != nil {
		return nil, err
	}
	defer st.leave()

	c := machine.NewCoroutine(0)
	st.lookup = append(st.lookup, c)

	flags, err := readVarint(st.dec)
	if err != nil {
		return nil, err
	}
	status := machine.CoroutineStatus((flags >> coroutineStatusShift) & coroutineStatusMask)
	if status == machine.CoroutineAlive {
		return nil, ErrAliveCoroutine
	}
	c.Status = status
	hasChild := flags&coroutineFlagChild != 0

	frameBase, err := readVarint(st.dec)
	if err != nil {
		return nil, err
	}
	stackTop, err := readVarint(st.dec)
	if err != nil {
		return nil, err
	}
	maxStack, err := readVarint(st.dec)
	if err != nil {
		return nil, err
	}
	numFrames, err := readVarint(st.dec)
	if err != nil {
		return nil, err
	}
	if numFrames < 0 {
		return nil, wrapf(ErrBadFrame, "marshal: negative frame count %d", numFrames)
	}
	c.FrameBase = int(frameBase)
	c.StackTop = int(stackTop)
	c.MaxStack = int(maxStack)
	c.GrowData(c.StackTop + 10)

	// Frames arrive innermost-first; this frame's base is either the
	// coroutine's own FrameBase (the innermost one) or the previously decoded
	// (more inner) frame's PrevFrameBase.
	wireOrder := make([]*machine.CoroutineFrame, numFrames)
	base := c.FrameBase
	for i := 0; i < int(numFrames); i++ {
		frameFlags, err := readVarint(st.dec)
		if err != nil {
			return nil, err
		}
		prevFrameBase, err := readVarint(st.dec)
		if err != nil {
			return nil, err
		}
		pc, err := readVarint(st.dec)
		if err != nil {
			return nil, err
		}

		fnVal, err := decodeValue(st)
		if err != nil {
			return nil, err
		}
		fn, ok := fnVal.(*machine.Function)
		if !ok {
			return nil, wrapf(ErrBadFrame, "marshal: coroutine frame function must be a function, got %T", fnVal)
		}

		var env *machine.FuncEnv
		if frameFlags&frameHasEnv != 0 {
			env, err = decodeFuncEnv(st)
			if err != nil {
				return nil, err
			}
		}

		width := fn.Funcode.MaxStack + len(fn.Funcode.Locals)
		c.GrowData(base + width)
		data := c.Data()
		for j := 0; j < width; j++ {
			v, err := decodeValue(st)
			if err != nil {
				return nil, err
			}
			data[base+j] = v
		}

		wireOrder[i] = &machine.CoroutineFrame{
			PrevFrameBase: int(prevFrameBase),
			Flags:         uint32(frameFlags),
			PC:            uint32(pc),
			Function:      fn,
			Env:           env,
			FrameBase:     base,
		}
		base = int(prevFrameBase)
	}

	frames := make([]*machine.CoroutineFrame, numFrames)
	for i, fr := range wireOrder {
		frames[numFrames-1-i] = fr
	}
	c.Frames = frames

	if err := c.Validate(); err != nil {
		return nil, wrapf(ErrBadFrame, "marshal: %v", err)
	}

	if hasChild {
		childVal, err := decodeValue(st)
		if err != nil {
			return nil, err
		}
		child, ok := childVal.(*machine.Coroutine)
		if !ok {
			return nil, wrapf(ErrBadFrame, "marshal: coroutine child must be a coroutine, got %T", childVal)
		}
		c.Child = child
	}

	return c, nil
}
