package marshal

import "github.com/mna/nenuphar/lang/machine"

func decodeRegistry(st *decodeState) (machine.Value, error) {
	name, err := decodeBytes(st)
	if err != nil {
		return nil, err
	}
	v, ok := st.registry[name]
	if !ok {
		// A registry miss yields nil per the decode contract; this is not an
		// error, the caller simply gets back the nil value.
		v = machine.Nil
	}
	// The encoder marks a registry hit seen, so it takes the next id here too.
	st.lookup = append(st.lookup, v)
	return v, nil
}

// EnvLookup walks a scoping table (and, through its Proto chain, every
// enclosing scope) collecting entries keyed by symbol or keyword whose
// stored value is itself a small table carrying a "value" or "ref" slot. The
// result is a flat name-to-value mapping suitable as a forward registry for
// Unmarshal.
//
// This mirrors how a host runtime's top-level scope commonly represents
// bindings: a table from name to a one- or two-field descriptor table,
// rather than the bare value directly.
func EnvLookup(scope *machine.Map) map[string]machine.Value {
	out := make(map[string]machine.Value)
	for tbl := scope; tbl != nil; tbl = tbl.Proto {
		it := tbl.Iterate()
		var pair machine.Value
		for it.Next(&pair) {
			kv := pair.(*machine.Tuple)
			name, val := entryName(kv.Index(0)), kv.Index(1)
			if name == "" {
				continue
			}
			if _, exists := out[name]; exists {
				continue // inner scope already bound this name
			}
			if resolved, ok := resolveBinding(val); ok {
				out[name] = resolved
			}
		}
		it.Done()
	}
	return out
}

func entryName(k machine.Value) string {
	switch k := k.(type) {
	case machine.Symbol:
		return string(k)
	case machine.Keyword:
		return string(k)
	default:
		return ""
	}
}

func resolveBinding(v machine.Value) (machine.Value, bool) {
	switch v := v.(type) {
	case *machine.Struct:
		if val, found, _ := v.Get(machine.Keyword("value")); found {
			return val, true
		}
		if ref, found, _ := v.Get(machine.Keyword("ref")); found {
			return ref, true
		}
	case *machine.Map:
		if val, found, _ := v.Get(machine.Keyword("value")); found {
			return val, true
		}
		if ref, found, _ := v.Get(machine.Keyword("ref")); found {
			return ref, true
		}
	}
	return nil, false
}
