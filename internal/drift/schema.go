package drift

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
)

// Kind is the runtime type class of a decoded field value.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindBool    Kind = "bool"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindNull    Kind = "null"
	KindUnknown Kind = "unknown"
)

// TypeSet lists the kinds a field may hold.
type TypeSet []Kind

// Schema maps expected field names to their accepted kinds.
type Schema map[string]TypeSet

// Common type sets for source declarations.
var (
	String  = TypeSet{KindString}
	Numeric = TypeSet{KindInteger, KindNumber}
	Integer = TypeSet{KindInteger}
	Bool    = TypeSet{KindBool}
	Object  = TypeSet{KindObject}
)

// Accepts reports whether a value of kind k satisfies the set.
// An integer satisfies a set that accepts number.
func (s TypeSet) Accepts(k Kind) bool {
	for _, want := range s {
		if want == k || (want == KindNumber && k == KindInteger) {
			return true
		}
	}
	return false
}

func (s TypeSet) String() string {
	parts := make([]string, len(s))
	for i, k := range s {
		parts[i] = string(k)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Keys returns the schema's field names in sorted order.
func (s Schema) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KindOf classifies a value produced by JSON decoding, CSV parsing or Go literals.
func KindOf(v interface{}) Kind {
	switch x := v.(type) {
	case nil:
		return KindNull
	case string:
		return KindString
	case bool:
		return KindBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInteger
	case float32:
		return floatKind(float64(x))
	case float64:
		return floatKind(x)
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return KindInteger
		}
		return KindNumber
	case map[string]interface{}:
		return KindObject
	case []interface{}:
		return KindArray
	default:
		return KindUnknown
	}
}

func floatKind(f float64) Kind {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return KindInteger
	}
	return KindNumber
}
