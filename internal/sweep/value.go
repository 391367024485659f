package sweep

import (
	"fmt"
	"math"
	"strconv"

	"github.com/GoSim-25-26J-441/xp-sweep/pkg/utils"
)

// Kind is the type of an axis value
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "string"
	}
}

// Value is one candidate value of an axis. Its textual form is what ends up
// on the command line and in file names, so floats keep their fractional
// part (10.0, not 10).
type Value struct {
	kind  Kind
	i     int64
	f     float64
	b     bool
	s     string
	label string
}

// Int returns an integer value
func Int(n int64) Value { return Value{kind: KindInt, i: n} }

// Float returns a float value
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool returns a boolean value
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String returns a string value
func String(s string) Value { return Value{kind: KindString, s: s} }

// NewValue converts a decoded YAML scalar into a Value
func NewValue(v any) (Value, error) {
	switch val := v.(type) {
	case int:
		return Int(int64(val)), nil
	case int64:
		return Int(val), nil
	case int32:
		return Int(int64(val)), nil
	case uint64:
		if val > math.MaxInt64 {
			return Value{}, fmt.Errorf("integer %d overflows int64", val)
		}
		return Int(int64(val)), nil
	case float64:
		return Float(val), nil
	case float32:
		return Float(float64(val)), nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case nil:
		return Value{}, fmt.Errorf("null is not a valid axis value")
	default:
		return Value{}, fmt.Errorf("unsupported axis value %v (%T)", v, v)
	}
}

// WithLabel returns a copy of v whose file-name form is label
func (v Value) WithLabel(label string) Value {
	v.label = label
	return v
}

// Kind returns the value type
func (v Value) Kind() Kind { return v.kind }

// Label returns the label, or "" when the value has none
func (v Value) Label() string { return v.label }

// Raw returns the textual form of the value, ignoring any label
func (v Value) Raw() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return utils.FormatFloat(v.f)
	case KindBool:
		return utils.FormatBool(v.b)
	default:
		return v.s
	}
}

// String returns the label when set, the raw text otherwise
func (v Value) String() string {
	if v.label != "" {
		return v.label
	}
	return v.Raw()
}

// Bool reports the truth of the value: false, 0, 0.0 and "" are false
func (v Value) Bool() bool {
	switch v.kind {
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindBool:
		return v.b
	default:
		return v.s != ""
	}
}

// Int returns the integer value, truncating floats
func (v Value) Int() int {
	switch v.kind {
	case KindInt:
		return int(v.i)
	case KindFloat:
		return int(v.f)
	case KindBool:
		if v.b {
			return 1
		}
	}
	return 0
}

// Equal reports whether two values have the same kind, content and label
func (v Value) Equal(o Value) bool {
	return v == o
}
