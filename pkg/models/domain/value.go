package domain

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"fortio.org/safecast"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindInteger
	KindFloat
	KindBool
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a single scalar cell of a row or a query parameter.
// The zero Value is null.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	t    time.Time
}

var Null = Value{}

func Text(s string) Value       { return Value{kind: KindText, s: s} }
func Integer(i int64) Value     { return Value{kind: KindInteger, i: i} }
func Float(f float64) Value     { return Value{kind: KindFloat, f: f} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func Date(t time.Time) Value    { return Value{kind: KindDate, t: t} }
func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }
func (v Value) IsNumber() bool  { return v.kind == KindInteger || v.kind == KindFloat }
func (v Value) Str() string     { return v.s }
func (v Value) Int() int64      { return v.i }
func (v Value) Boolean() bool   { return v.b }
func (v Value) Time() time.Time { return v.t }

// Number returns the numeric value as float64; ok is false for non-numbers.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindInteger:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

// Interface converts the value into the native Go value handed to backends and encoders.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindText:
		return v.s
	case KindInteger:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindDate:
		return v.t
	default:
		return nil
	}
}

// Equal compares two values. Integer and Float compare by numeric value.
func (v Value) Equal(o Value) bool {
	if v.IsNumber() && o.IsNumber() {
		if v.kind == KindInteger && o.kind == KindInteger {
			return v.i == o.i
		}
		a, _ := v.Number()
		b, _ := o.Number()
		return a == b
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindText:
		return v.s == o.s
	case KindBool:
		return v.b == o.b
	case KindDate:
		return v.t.Equal(o.t)
	}
	return false
}

// Key returns a string usable as a map key; values that are Equal share a key.
func (v Value) Key() string {
	switch v.kind {
	case KindText:
		return "s:" + v.s
	case KindInteger:
		return "n:" + strconv.FormatInt(v.i, 10)
	case KindFloat:
		if v.f == math.Trunc(v.f) && math.Abs(v.f) < 1<<53 {
			return "n:" + strconv.FormatInt(int64(v.f), 10)
		}
		return "n:" + strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return "b:" + strconv.FormatBool(v.b)
	case KindDate:
		return "d:" + v.t.UTC().Format(time.RFC3339Nano)
	default:
		return "null"
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.s
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindDate:
		return v.t.Format(time.RFC3339)
	default:
		return "null"
	}
}

// FromAny converts a native value returned by a backend driver, script or document.
func FromAny(raw interface{}) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null, nil
	case Value:
		return x, nil
	case string:
		return Text(x), nil
	case []byte:
		return Text(string(x)), nil
	case bool:
		return Bool(x), nil
	case int:
		return Integer(int64(x)), nil
	case int8:
		return Integer(int64(x)), nil
	case int16:
		return Integer(int64(x)), nil
	case int32:
		return Integer(int64(x)), nil
	case int64:
		return Integer(x), nil
	case uint8:
		return Integer(int64(x)), nil
	case uint16:
		return Integer(int64(x)), nil
	case uint32:
		return Integer(int64(x)), nil
	case uint:
		n, err := safecast.Conv[int64](x)
		if err != nil {
			return Null, fmt.Errorf("convert uint %d: %w", x, err)
		}
		return Integer(n), nil
	case uint64:
		n, err := safecast.Conv[int64](x)
		if err != nil {
			return Null, fmt.Errorf("convert uint64 %d: %w", x, err)
		}
		return Integer(n), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case time.Time:
		return Date(x), nil
	case *time.Time:
		if x == nil {
			return Null, nil
		}
		return Date(*x), nil
	case fmt.Stringer:
		return Text(x.String()), nil
	default:
		return Null, fmt.Errorf("unsupported value type %T", raw)
	}
}

// Params is the effective parameter mapping handed to a backend loader.
type Params map[string]Value

func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Native converts the parameters into plain Go values.
func (p Params) Native() map[string]interface{} {
	out := make(map[string]interface{}, len(p))
	for k, v := range p {
		out[k] = v.Interface()
	}
	return out
}

// ParamsFromNative converts plain Go values (CLI flags, HTTP bodies) into Params.
func ParamsFromNative(raw map[string]interface{}) (Params, error) {
	out := make(Params, len(raw))
	for k, r := range raw {
		v, err := FromAny(r)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
