package machine

import "strings"

// An EvalError is a Go error with an accompanying call stack, as produced by
// Call when a Callable's CallInternal returns a plain error.
type EvalError struct {
	Msg       string
	Backtrace []string // innermost frame last
	cause     error
}

func (e *EvalError) Error() string { return e.Msg }

func (e *EvalError) Unwrap() error { return e.cause }

// BacktraceString renders the call stack at the point of the error, one
// frame per line, innermost first.
func (e *EvalError) BacktraceString() string {
	var sb strings.Builder
	for i := len(e.Backtrace) - 1; i >= 0; i-- {
		sb.WriteString(e.Backtrace[i])
		if i > 0 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// evalError wraps err in an EvalError, capturing the thread's current call
// stack as a backtrace.
func (th *Thread) evalError(err error) *EvalError {
	bt := make([]string, 0, len(th.callStack))
	for _, fr := range th.callStack {
		name := "?"
		if c, ok := fr.callable.(Callable); ok {
			name = c.Name()
		}
		bt = append(bt, name)
	}
	return &EvalError{Msg: err.Error(), Backtrace: bt, cause: err}
}
