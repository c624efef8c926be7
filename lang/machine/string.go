package machine

import (
	"strconv"
	"strings"
)

// String is the type of a text string. It encapsulates an immutable sequence
// of bytes.
type String string

var (
	_ Value     = String("")
	_ Ordered   = String("")
	_ Indexable = String("")
)

func (s String) String() string    { return strconv.Quote(string(s)) }
func (s String) Type() string      { return "string" }
func (s String) Len() int          { return len(s) }
func (s String) Index(i int) Value { return s[i : i+1] }

func (s String) Cmp(y Value) (int, error) {
	return strings.Compare(string(s), string(y.(String))), nil
}

// Symbol is an interned identifier-like atom, distinct from a Keyword only by
// the syntax used to write it; both are comparable by content.
type Symbol string

var (
	_ Value   = Symbol("")
	_ Ordered = Symbol("")
)

func (s Symbol) String() string { return string(s) }
func (s Symbol) Type() string   { return "symbol" }

func (s Symbol) Cmp(y Value) (int, error) {
	return strings.Compare(string(s), string(y.(Symbol))), nil
}

// Keyword is an interned self-evaluating atom, conventionally used as a
// table key or an enum-like tag.
type Keyword string

var (
	_ Value   = Keyword("")
	_ Ordered = Keyword("")
)

func (k Keyword) String() string { return ":" + string(k) }
func (k Keyword) Type() string   { return "keyword" }

func (k Keyword) Cmp(y Value) (int, error) {
	return strings.Compare(string(k), string(y.(Keyword))), nil
}
