// Package marshal serializes and deserializes machine.Value graphs to and
// from a compact binary format, preserving reference identity and cycles
// among mutable values, and supporting closures and suspended coroutines.
package marshal

import "github.com/mna/nenuphar/lang/machine"

// Marshal encodes v into a new byte slice. registry, if non-nil, maps
// well-known values (predeclared builtins, interned singletons) to a stable
// name; an encounter with one of those values emits the name instead of a
// full encoding, and Unmarshal must be given the matching forward mapping to
// resolve it back.
func Marshal(v machine.Value, registry map[machine.Value]string) ([]byte, error) {
	return AppendMarshal(nil, v, registry)
}

// AppendMarshal encodes v and appends the result to buf, returning the
// extended slice. Calling it repeatedly on the same buf produces a sequence
// of back-to-back encodings that Unmarshal can decode one at a time by
// following each call's returned cursor (the "tail law": a blob produced by
// N calls decodes in N calls, each starting where the previous left off).
func AppendMarshal(buf []byte, v machine.Value, registry map[machine.Value]string) ([]byte, error) {
	s := newSink()
	s.buf = buf
	st := newEncodeState(s, registry)
	if err := encodeValue(st, v); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// Unmarshal decodes a single value from the start of data. registry, if
// non-nil, resolves names emitted via a matching encode-side registry back
// to their values; a name with no entry decodes to machine.Nil.
//
// It returns the decoded value and the number of bytes consumed, so that
// callers decoding a sequence of back-to-back encodings can slice data[n:]
// and call Unmarshal again.
func Unmarshal(data []byte, registry map[string]machine.Value) (machine.Value, int, error) {
	d := newDecoder(data)
	st := newDecodeState(d, registry)
	v, err := decodeValue(st)
	if err != nil {
		return nil, d.pos, err
	}
	return v, d.pos, nil
}
