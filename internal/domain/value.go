package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind identifies the scalar type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindTime
	// KindMixed is never held by a Value. Dataset.ColumnKind reports it for
	// columns whose non-null values have more than one kind.
	KindMixed
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindTime:
		return "timestamp"
	case KindMixed:
		return "mixed"
	default:
		return "unknown"
	}
}

// Value is an immutable scalar cell: a number, a string, a timestamp, or null.
// The zero Value is null.
type Value struct {
	kind Kind
	num  float64
	str  string
	ts   time.Time
}

// NullValue returns the null Value.
func NullValue() Value { return Value{} }

// NumberValue wraps f. NaN is treated as a missing value and yields null.
func NumberValue(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

// StringValue wraps s.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// TimeValue wraps t. The zero time yields null.
func TimeValue(t time.Time) Value {
	if t.IsZero() {
		return Value{}
	}
	return Value{kind: KindTime, ts: t}
}

// ValueOf converts a Go value produced by a database driver or a JSON decoder
// into a Value.
func ValueOf(x any) Value {
	switch v := x.(type) {
	case nil:
		return NullValue()
	case Value:
		return v
	case float64:
		return NumberValue(v)
	case float32:
		return NumberValue(float64(v))
	case int:
		return NumberValue(float64(v))
	case int8:
		return NumberValue(float64(v))
	case int16:
		return NumberValue(float64(v))
	case int32:
		return NumberValue(float64(v))
	case int64:
		return NumberValue(float64(v))
	case uint:
		return NumberValue(float64(v))
	case uint8:
		return NumberValue(float64(v))
	case uint16:
		return NumberValue(float64(v))
	case uint32:
		return NumberValue(float64(v))
	case uint64:
		return NumberValue(float64(v))
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return NumberValue(f)
		}
		return StringValue(v.String())
	case string:
		return StringValue(v)
	case []byte:
		return StringValue(string(v))
	case bool:
		return StringValue(strconv.FormatBool(v))
	case time.Time:
		return TimeValue(v)
	case *time.Time:
		if v == nil {
			return NullValue()
		}
		return TimeValue(*v)
	case fmt.Stringer:
		return StringValue(v.String())
	default:
		return StringValue(fmt.Sprint(v))
	}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Number returns the numeric payload and whether v holds a number.
func (v Value) Number() (float64, bool) { return v.num, v.kind == KindNumber }

// Str returns the string payload and whether v holds a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Time returns the timestamp payload and whether v holds a timestamp.
func (v Value) Time() (time.Time, bool) { return v.ts, v.kind == KindTime }

// Equal reports whether v and o hold the same kind and payload. Two nulls are equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	case KindTime:
		return v.ts.Equal(o.ts)
	default:
		return true
	}
}

// Any returns the payload as nil, float64, string or time.Time.
func (v Value) Any() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindTime:
		return v.ts
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	case KindTime:
		return v.ts.Format(time.RFC3339)
	default:
		return ""
	}
}

// MarshalJSON encodes null, numbers and strings natively and timestamps as RFC 3339.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsInf(v.num, 0) {
			return json.Marshal(v.String())
		}
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.str)
	case KindTime:
		return json.Marshal(v.ts.Format(time.RFC3339Nano))
	default:
		return []byte("null"), nil
	}
}
