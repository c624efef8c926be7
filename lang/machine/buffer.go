package machine

import (
	"fmt"
	"strconv"
)

// A Buffer is a mutable sequence of bytes, the mutable counterpart to
// String.
type Buffer struct {
	data []byte
}

var (
	_ Value     = (*Buffer)(nil)
	_ Indexable = (*Buffer)(nil)
)

// NewBuffer returns a buffer owning a copy of b.
func NewBuffer(b []byte) *Buffer {
	return &Buffer{data: append([]byte(nil), b...)}
}

func (b *Buffer) String() string    { return strconv.Quote(string(b.data)) }
func (b *Buffer) Type() string      { return "buffer" }
func (b *Buffer) Len() int          { return len(b.data) }
func (b *Buffer) Index(i int) Value { return String(b.data[i : i+1]) }
func (b *Buffer) Bytes() []byte     { return b.data }

func (b *Buffer) SetIndex(i int, v Value) error {
	s := v.(String)
	if len(s) != 1 {
		return fmt.Errorf("assign to buffer element: value must be a single byte")
	}
	b.data[i] = s[0]
	return nil
}

func (b *Buffer) Append(p []byte) { b.data = append(b.data, p...) }
