package machine

import "fmt"

// Some machine opcodes are more complex and/or need to be exposed via a
// low-level interface to be available for higher-level APIs. Those functions
// belong in this file.

// Call calls the function or Callable value fn with the specified arguments.
func Call(thread *Thread, fn Value, args *Tuple) (Value, error) {
	c, ok := fn.(Callable)
	if !ok {
		return nil, fmt.Errorf("invalid call of non-function (%s)", fn.Type())
	}

	if thread.callStack == nil {
		// one-time initialization of thread
		thread.init()
	}

	var fr *Frame
	// Optimization: use slack portion of thread.callStack
	// slice as a freelist of empty frames.
	if n := len(thread.callStack); n < cap(thread.callStack) {
		fr = thread.callStack[n : n+1][0]
	}
	if fr == nil {
		fr = new(Frame)
	}

	if thread.MaxCallStackDepth > 0 && len(thread.callStack) >= thread.MaxCallStackDepth {
		thread.cancelled.Store(true)
		return nil, fmt.Errorf("call stack depth exceeded (%d)", thread.MaxCallStackDepth)
	}

	thread.callStack = append(thread.callStack, fr) // push
	fr.callable = c

	// Use defer to ensure that panics from built-ins pass through the
	// interpreter without leaving it in a bad state.
	defer func() {
		// clear out any references
		*fr = Frame{}
		thread.callStack = thread.callStack[:len(thread.callStack)-1] // pop
	}()

	result, err := c.CallInternal(thread, args)

	// Sanity check: nil is not a valid value unless accompanied by an error.
	if result == nil && err == nil {
		err = fmt.Errorf("internal error: nil returned from %s", fn.Type())
	}

	if err != nil {
		if _, ok := err.(*EvalError); !ok {
			err = thread.evalError(err)
		}
	}

	return result, err
}
