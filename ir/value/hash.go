package value

import (
	"fmt"
	"sort"
)

// HashKey computes the reversible hash-key for a primitive Value, used as
// the map/set backing-store key. Prefixes keep the key space total-ordered
// and reversible: "s:" string, "i:" int, "f:" float, "b:true"/"b:false"
// bool. Non-primitive kinds fall back to a best-effort, non-reversible
// rendering (maps/sets of composite keys are not required to round-trip).
func HashKey(v Value) string {
	switch v.Kind {
	case KindString:
		return "s:" + v.String
	case KindInt:
		return fmt.Sprintf("i:%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("f:%g", v.Float)
	case KindBool:
		if v.Bool {
			return "b:true"
		}
		return "b:false"
	default:
		return fmt.Sprintf("o:%p", &v)
	}
}

// FromHashKey reverses HashKey for the four primitive kinds it guarantees
// to round-trip.
func FromHashKey(key string) (Value, bool) {
	if len(key) < 2 {
		return Value{}, false
	}
	prefix, rest := key[:2], key[2:]
	switch prefix {
	case "s:":
		return Str(rest), true
	case "i:":
		var n int64
		if _, err := fmt.Sscanf(rest, "%d", &n); err != nil {
			return Value{}, false
		}
		return Int(n), true
	case "f:":
		var f float64
		if _, err := fmt.Sscanf(rest, "%g", &f); err != nil {
			return Value{}, false
		}
		return Float(f), true
	case "b:":
		return Bool(rest == "true"), true
	default:
		return Value{}, false
	}
}

// NewMap builds a persistent map value from entries, keyed by HashKey(k).
func NewMap(pairs ...[2]Value) Value {
	m := make(map[string]Value, len(pairs))
	for _, p := range pairs {
		m[HashKey(p[0])] = p[1]
	}
	return Value{Kind: KindMap, Map: m}
}

// MapInsert returns a new map value with key->val inserted (or replaced).
// The receiver is left unchanged (persistent container invariant).
func (v Value) MapInsert(key, val Value) Value {
	out := make(map[string]Value, len(v.Map)+1)
	for k, vv := range v.Map {
		out[k] = vv
	}
	out[HashKey(key)] = val
	return Value{Kind: KindMap, Map: out}
}

// MapGet looks up key in a map value.
func (v Value) MapGet(key Value) (Value, bool) {
	got, ok := v.Map[HashKey(key)]
	return got, ok
}

// MapKeys reconstructs the original key values, sorted by hash key for
// determinism. Only primitive keys are guaranteed to round-trip.
func (v Value) MapKeys() []Value {
	keys := make([]string, 0, len(v.Map))
	for k := range v.Map {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Value, 0, len(keys))
	for _, k := range keys {
		if kv, ok := FromHashKey(k); ok {
			out = append(out, kv)
		}
	}
	return out
}

// NewSet builds a persistent set value from elements.
func NewSet(elems ...Value) Value {
	s := make(map[string]struct{}, len(elems))
	for _, e := range elems {
		s[HashKey(e)] = struct{}{}
	}
	return Value{Kind: KindSet, Set: s}
}

// SetInsert returns a new set with v inserted. Receiver unchanged.
func (v Value) SetInsert(elem Value) Value {
	out := make(map[string]struct{}, len(v.Set)+1)
	for k := range v.Set {
		out[k] = struct{}{}
	}
	out[HashKey(elem)] = struct{}{}
	return Value{Kind: KindSet, Set: out}
}

// SetContains reports set membership.
func (v Value) SetContains(elem Value) bool {
	_, ok := v.Set[HashKey(elem)]
	return ok
}

// SetKeys reconstructs original elements (see MapKeys caveat on round-trip).
func (v Value) SetKeys() []Value {
	keys := make([]string, 0, len(v.Set))
	for k := range v.Set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Value, 0, len(keys))
	for _, k := range keys {
		if kv, ok := FromHashKey(k); ok {
			out = append(out, kv)
		}
	}
	return out
}

// ToList renders a set's elements as an ordered list, for the
// keys(set)/toList(set) round-trip property.
func (v Value) ToList() Value {
	return List(v.SetKeys()...)
}

// ListAppend returns a new list with elem appended. Receiver unchanged.
func (v Value) ListAppend(elem Value) Value {
	out := make([]Value, len(v.List)+1)
	copy(out, v.List)
	out[len(v.List)] = elem
	return Value{Kind: KindList, List: out}
}
