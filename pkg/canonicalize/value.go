package canonicalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Value is a tagged-variant tree for ASR metadata. Modeling metadata this
// way (instead of bare map[string]interface{}) makes canonicalization total
// and unambiguous: every variant has exactly one canonical encoding, and
// there is no float variant: an integer-valued float64 is stored as an
// integer, and any other float64 is refused rather than silently truncated.
type Value struct {
	kind Kind
	b    bool
	n    int64
	s    string
	l    []Value
	m    map[string]Value
}

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindString
	KindList
	KindMap
)

func Null() Value                { return Value{kind: KindNull} }
func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }
func Int(n int64) Value          { return Value{kind: KindInt, n: n} }
func String(s string) Value      { return Value{kind: KindString, s: s} }
func List(items ...Value) Value  { return Value{kind: KindList, l: items} }
func Map(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

func (v Value) Kind() Kind { return v.kind }

// FromAny converts a plain Go value (as produced by encoding/json.Unmarshal
// with UseNumber, or hand-built map[string]interface{}/[]interface{}/
// string/bool/nil/int64/json.Number) into a Value. An integer-valued
// float64 is converted to an integer; a float64 with a fractional part,
// and any other type that is not losslessly representable, is rejected,
// per the ASR metadata invariant that no floats other than integers cast
// losslessly are permitted.
func FromAny(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return Value{}, fmt.Errorf("canonicalize: metadata number %q is not a lossless integer: %w", t.String(), err)
		}
		return Int(n), nil
	case float64:
		if t != float64(int64(t)) {
			return Value{}, fmt.Errorf("canonicalize: metadata float %v is not integer-valued", t)
		}
		return Int(int64(t)), nil
	case []interface{}:
		items := make([]Value, 0, len(t))
		for _, elem := range t {
			v, err := FromAny(elem)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return List(items...), nil
	case map[string]interface{}:
		out := make(map[string]Value, len(t))
		for k, elem := range t {
			v, err := FromAny(elem)
			if err != nil {
				return Value{}, err
			}
			out[k] = v
		}
		return Map(out), nil
	default:
		return Value{}, fmt.Errorf("canonicalize: unsupported metadata type %T", raw)
	}
}

// ToAny converts a Value back into a plain Go value suitable for
// json.Marshal or further inspection.
func (v Value) ToAny() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.n
	case KindString:
		return v.s
	case KindList:
		out := make([]interface{}, len(v.l))
		for i, e := range v.l {
			out[i] = e.ToAny()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.m))
		for k, e := range v.m {
			out[k] = e.ToAny()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler by delegating to the plain form.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToAny())
}

// UnmarshalJSON implements json.Unmarshaler using integer-preserving decode.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	val, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// Canonical returns the RFC 8785 canonical encoding of v.
func (v Value) Canonical() ([]byte, error) {
	return JCS(v.ToAny())
}

// Keys returns the sorted key list of a KindMap value, or nil otherwise.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
