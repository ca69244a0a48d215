package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"
)

type Kind int

const (
	KindString Kind = iota + 1
	KindInt
	KindLong
	KindDouble
	KindBool
	KindDate
	KindStringList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindDouble:
		return "double"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindStringList:
		return "string[]"
	default:
		return "invalid"
	}
}

// DateLayout is the textual form of a KindDate value.
const DateLayout = "2006-01-02"

// Value is a property value. The zero Value is invalid.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	t    time.Time
	l    []string
}

func String(s string) Value { return Value{kind: KindString, s: s} }
func Int(i int32) Value     { return Value{kind: KindInt, i: int64(i)} }
func Long(i int64) Value    { return Value{kind: KindLong, i: i} }
func Double(f float64) Value {
	return Value{kind: KindDouble, f: f}
}
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Date truncates t to its calendar date in UTC.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func StringList(l []string) Value {
	return Value{kind: KindStringList, l: slices.Clone(l)}
}

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsValid() bool { return v.kind != 0 }

func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }
func (v Value) AsBool() (bool, bool)     { return v.b, v.kind == KindBool }
func (v Value) AsDouble() (float64, bool) {
	return v.f, v.kind == KindDouble
}
func (v Value) AsDate() (time.Time, bool) { return v.t, v.kind == KindDate }
func (v Value) AsStringList() ([]string, bool) {
	return slices.Clone(v.l), v.kind == KindStringList
}

// AsInteger accepts both Int and Long values.
func (v Value) AsInteger() (int64, bool) {
	return v.i, v.kind == KindInt || v.kind == KindLong
}

// Any returns the plain Go form of v: string, int32, int64, float64, bool,
// time.Time or []string.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return int32(v.i)
	case KindLong:
		return v.i
	case KindDouble:
		return v.f
	case KindBool:
		return v.b
	case KindDate:
		return v.t
	case KindStringList:
		return slices.Clone(v.l)
	default:
		return nil
	}
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == o.s
	case KindInt, KindLong:
		return v.i == o.i
	case KindDouble:
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	case KindDate:
		return v.t.Equal(o.t)
	case KindStringList:
		return slices.Equal(v.l, o.l)
	}
	return true
}

func (v Value) String() string {
	switch v.kind {
	case KindDate:
		return v.t.Format(DateLayout)
	case 0:
		return "<invalid>"
	default:
		return fmt.Sprint(v.Any())
	}
}

// FromAny converts a dynamic value into a Value. Integers that fit 32 bits become
// Int, wider ones Long. json.Number is accepted so callers can decode with UseNumber.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case Value:
		if !t.IsValid() {
			return Value{}, fmt.Errorf("%w: invalid value", ErrUnsupportedValue)
		}
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return integer(int64(t)), nil
	case int8:
		return Int(int32(t)), nil
	case int16:
		return Int(int32(t)), nil
	case int32:
		return Int(t), nil
	case int64:
		return integer(t), nil
	case uint8:
		return Int(int32(t)), nil
	case uint16:
		return Int(int32(t)), nil
	case uint32:
		return integer(int64(t)), nil
	case float32:
		return Double(float64(t)), nil
	case float64:
		return Double(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return integer(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: number %q", ErrUnsupportedValue, t)
		}
		return Double(f), nil
	case time.Time:
		return Date(t), nil
	case []string:
		return StringList(t), nil
	case []any:
		l := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return Value{}, fmt.Errorf("%w: list element of type %T", ErrUnsupportedValue, item)
			}
			l = append(l, s)
		}
		return StringList(l), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, x)
	}
}

func integer(i int64) Value {
	if i >= math.MinInt32 && i <= math.MaxInt32 {
		return Int(int32(i))
	}
	return Long(i)
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case 0:
		return []byte("null"), nil
	case KindDate:
		return json.Marshal(v.t.Format(DateLayout))
	default:
		return json.Marshal(v.Any())
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return err
	}
	parsed, err := FromAny(x)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Properties is a property bag.
type Properties map[string]Value

// PropertiesFromMap converts a dynamic map, rejecting unsupported values.
func PropertiesFromMap(m map[string]any) (Properties, error) {
	props := make(Properties, len(m))
	for k, raw := range m {
		v, err := FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		props[k] = v
	}
	return props, nil
}

func (p Properties) Clone() Properties {
	if p == nil {
		return Properties{}
	}
	out := make(Properties, len(p))
	for k, v := range p {
		if v.kind == KindStringList {
			v.l = slices.Clone(v.l)
		}
		out[k] = v
	}
	return out
}

func (p Properties) Equal(o Properties) bool {
	if len(p) != len(o) {
		return false
	}
	for k, v := range p {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
