package machine

import (
	"fmt"

	"github.com/mna/nenuphar/lang/compiler"
	"github.com/mna/nenuphar/lang/token"
)

// compareToken maps a compiler comparison opcode to the corresponding
// token.Token. The two enums are declared in different orders, so the
// mapping must be explicit rather than computed by offset.
func compareToken(op compiler.Opcode) token.Token {
	switch op {
	case compiler.LT:
		return token.LT
	case compiler.LE:
		return token.LE
	case compiler.GT:
		return token.GT
	case compiler.GE:
		return token.GE
	case compiler.EQL:
		return token.EQL
	case compiler.NEQ:
		return token.NEQ
	default:
		panic(fmt.Sprintf("not a comparison opcode: %s", op))
	}
}

// binaryToken maps a compiler binary-arithmetic opcode to the corresponding
// token.Token, for the same reason as compareToken.
func binaryToken(op compiler.Opcode) token.Token {
	switch op {
	case compiler.PLUS:
		return token.PLUS
	case compiler.MINUS:
		return token.MINUS
	case compiler.STAR:
		return token.STAR
	case compiler.SLASH:
		return token.SLASH
	case compiler.SLASHSLASH:
		return token.SLASHSLASH
	case compiler.PERCENT:
		return token.PERCENT
	case compiler.CIRCUMFLEX:
		return token.CIRCUMFLEX
	case compiler.AMPERSAND:
		return token.AMPERSAND
	case compiler.PIPE:
		return token.PIPE
	case compiler.TILDE:
		return token.TILDE
	case compiler.LTLT:
		return token.LTLT
	case compiler.GTGT:
		return token.GTGT
	default:
		panic(fmt.Sprintf("not a binary opcode: %s", op))
	}
}

// unaryToken maps a compiler unary opcode (other than UTILDE, handled
// separately by its caller) to the corresponding token.Token.
func unaryToken(op compiler.Opcode) token.Token {
	switch op {
	case compiler.UPLUS:
		return token.PLUS
	case compiler.UMINUS:
		return token.MINUS
	default:
		panic(fmt.Sprintf("not a unary opcode: %s", op))
	}
}

// Truth reports the truthiness of v. Only Nil and the boolean false are
// falsy; every other value, including 0, the empty string and empty
// collections, is truthy.
func Truth(v Value) bool {
	switch v := v.(type) {
	case NilType:
		return false
	case Bool:
		return bool(v)
	default:
		return true
	}
}

// Iterate returns an Iterator for v, or nil if v is not iterable.
func Iterate(v Value) Iterator {
	if it, ok := v.(Iterable); ok {
		return it.Iterate()
	}
	return nil
}

// lenOf returns the length of v, for the LEN opcode.
func lenOf(v Value) (int, error) {
	switch v := v.(type) {
	case Indexable:
		return v.Len(), nil
	case Sequence:
		return v.Len(), nil
	case String:
		return v.Len(), nil
	default:
		return 0, fmt.Errorf("%s has no length", v.Type())
	}
}

// Compare implements all six comparison operators, x op y, with the
// well-defined semantics: ordered types compare via Cmp, types that opt into
// custom equality use Equals for == and !=, and everything else falls back
// to identity (pointer/value) equality for == and != only.
func Compare(op token.Token, x, y Value) (bool, error) {
	if x.Type() != y.Type() {
		if op == token.EQL {
			return false, nil
		}
		if op == token.NEQ {
			return true, nil
		}
		return false, fmt.Errorf("cannot compare %s with %s", x.Type(), y.Type())
	}

	if xo, ok := x.(Ordered); ok {
		c, err := xo.Cmp(y)
		if err != nil {
			return false, err
		}
		switch op {
		case token.LT:
			return c < 0, nil
		case token.LE:
			return c <= 0, nil
		case token.GT:
			return c > 0, nil
		case token.GE:
			return c >= 0, nil
		case token.EQL:
			return c == 0, nil
		case token.NEQ:
			return c != 0, nil
		}
		return false, fmt.Errorf("unsupported comparison operator %s", op)
	}

	switch op {
	case token.EQL, token.NEQ:
		eq, err := valueEquals(x, y)
		if err != nil {
			return false, err
		}
		if op == token.NEQ {
			return !eq, nil
		}
		return eq, nil
	default:
		return false, fmt.Errorf("%s is not an ordered type", x.Type())
	}
}

// valueEquals reports whether x and y are equal, using HasEqual when a type
// implements it, Ordered.Cmp as a fallback, and identity otherwise.
func valueEquals(x, y Value) (bool, error) {
	if x.Type() != y.Type() {
		return false, nil
	}
	if xe, ok := x.(HasEqual); ok {
		return xe.Equals(y)
	}
	if xo, ok := x.(Ordered); ok {
		c, err := xo.Cmp(y)
		if err != nil {
			return false, err
		}
		return c == 0, nil
	}
	return x == y, nil
}

// Binary implements all binary arithmetic and bitwise operators.
func Binary(op token.Token, x, y Value) (Value, error) {
	switch op {
	case token.PLUS:
		switch x := x.(type) {
		case Int:
			if yi, ok := y.(Int); ok {
				return x + yi, nil
			}
		case Float:
			if yf, ok := toFloat(y); ok {
				return x + yf, nil
			}
		case String:
			if ys, ok := y.(String); ok {
				return x + ys, nil
			}
		}
	case token.MINUS:
		switch x := x.(type) {
		case Int:
			if yi, ok := y.(Int); ok {
				return x - yi, nil
			}
		case Float:
			if yf, ok := toFloat(y); ok {
				return x - yf, nil
			}
		}
	case token.STAR:
		switch x := x.(type) {
		case Int:
			if yi, ok := y.(Int); ok {
				return x * yi, nil
			}
		case Float:
			if yf, ok := toFloat(y); ok {
				return x * yf, nil
			}
		}
	case token.SLASH:
		xf, xok := toFloat(x)
		yf, yok := toFloat(y)
		if xok && yok {
			if yf == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return xf / yf, nil
		}
	case token.SLASHSLASH:
		if xi, ok := x.(Int); ok {
			if yi, ok := y.(Int); ok {
				if yi == 0 {
					return nil, fmt.Errorf("division by zero")
				}
				return Int(floorDiv(int64(xi), int64(yi))), nil
			}
		}
	case token.PERCENT:
		if xi, ok := x.(Int); ok {
			if yi, ok := y.(Int); ok {
				if yi == 0 {
					return nil, fmt.Errorf("modulo by zero")
				}
				return Int(floorMod(int64(xi), int64(yi))), nil
			}
		}
	case token.AMPERSAND:
		if xi, ok := x.(Int); ok {
			if yi, ok := y.(Int); ok {
				return xi & yi, nil
			}
		}
	case token.PIPE:
		if xi, ok := x.(Int); ok {
			if yi, ok := y.(Int); ok {
				return xi | yi, nil
			}
		}
	case token.CIRCUMFLEX:
		if xi, ok := x.(Int); ok {
			if yi, ok := y.(Int); ok {
				return xi ^ yi, nil
			}
		}
	case token.LTLT:
		if xi, ok := x.(Int); ok {
			if yi, ok := y.(Int); ok {
				return xi << uint(yi), nil
			}
		}
	case token.GTGT:
		if xi, ok := x.(Int); ok {
			if yi, ok := y.(Int); ok {
				return xi >> uint(yi), nil
			}
		}
	}

	if xb, ok := x.(HasBinary); ok {
		z, err := xb.Binary(op, y, Left)
		if z != nil || err != nil {
			return z, err
		}
	}
	if yb, ok := y.(HasBinary); ok {
		z, err := yb.Binary(op, x, Right)
		if z != nil || err != nil {
			return z, err
		}
	}

	return nil, fmt.Errorf("unsupported binary operation: %s %s %s", x.Type(), op, y.Type())
}

// Unary implements the three unary operators (~, unary + and unary -).
func Unary(op token.Token, x Value) (Value, error) {
	switch op {
	case token.PLUS:
		switch x.(type) {
		case Int, Float:
			return x, nil
		}
	case token.MINUS:
		switch x := x.(type) {
		case Int:
			return -x, nil
		case Float:
			return -x, nil
		}
	case token.TILDE:
		if xi, ok := x.(Int); ok {
			return ^xi, nil
		}
	}

	if xu, ok := x.(HasUnary); ok {
		z, err := xu.Unary(op)
		if z != nil || err != nil {
			return z, err
		}
	}

	return nil, fmt.Errorf("unsupported unary operation: %s %s", op, x.Type())
}

func toFloat(v Value) (Float, bool) {
	switch v := v.(type) {
	case Float:
		return v, true
	case Int:
		return Float(v), true
	default:
		return 0, false
	}
}

func floorDiv(x, y int64) int64 {
	q := x / y
	if (x%y != 0) && ((x < 0) != (y < 0)) {
		q--
	}
	return q
}

func floorMod(x, y int64) int64 {
	m := x % y
	if m != 0 && ((x < 0) != (y < 0)) {
		m += y
	}
	return m
}

// getIndex implements the INDEX opcode: x[y].
func getIndex(x, y Value) (Value, error) {
	switch x := x.(type) {
	case Mapping:
		v, found, err := x.Get(y)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("key not found in %s", x.Type())
		}
		return v, nil
	case Indexable:
		i, ok := y.(Int)
		if !ok {
			return nil, fmt.Errorf("%s index: want int, got %s", x.Type(), y.Type())
		}
		n := x.Len()
		idx := int(i)
		if idx < 0 {
			idx += n
		}
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("%s index %d out of range (len %d)", x.Type(), i, n)
		}
		return x.Index(idx), nil
	default:
		return nil, fmt.Errorf("%s value is not indexable", x.Type())
	}
}

// setIndex implements the SETINDEX opcode: x[y] = z.
func setIndex(x, y, z Value) error {
	switch x := x.(type) {
	case HasSetKey:
		return x.SetKey(y, z)
	case HasSetIndex:
		i, ok := y.(Int)
		if !ok {
			return fmt.Errorf("%s index: want int, got %s", x.Type(), y.Type())
		}
		n := x.Len()
		idx := int(i)
		if idx < 0 {
			idx += n
		}
		if idx < 0 || idx >= n {
			return fmt.Errorf("%s index %d out of range (len %d)", x.Type(), i, n)
		}
		return x.SetIndex(idx, z)
	default:
		return fmt.Errorf("%s value does not support item assignment", x.Type())
	}
}

// getAttr implements the ATTR opcode: x.name.
func getAttr(x Value, name string) (Value, error) {
	xa, ok := x.(HasAttrs)
	if !ok {
		return nil, fmt.Errorf("%s value has no attribute %s", x.Type(), name)
	}
	v, err := xa.Attr(name)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("%s value has no attribute %s", x.Type(), name)
	}
	return v, nil
}

// setField implements the SETFIELD opcode: x.name = y.
func setField(x Value, name string, y Value) error {
	xs, ok := x.(HasSetField)
	if !ok {
		return fmt.Errorf("%s value has no assignable attribute %s", x.Type(), name)
	}
	return xs.SetField(name, y)
}
