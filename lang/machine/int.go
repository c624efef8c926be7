package machine

import "strconv"

// Int is the type of a 32-bit signed integer value.
type Int int32

var (
	_ Value   = Int(0)
	_ Ordered = Int(0)
)

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }
func (i Int) Type() string   { return "int" }

// Cmp implements comparison of two Int values.
func (i Int) Cmp(v Value) (int, error) {
	j := v.(Int)
	switch {
	case i > j:
		return +1, nil
	case i < j:
		return -1, nil
	}
	return 0, nil
}
