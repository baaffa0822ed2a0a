package bytecode

import (
	"fmt"
	"math"
	"strconv"

	"github.com/chazu/slotvm/pkg/pool"
)

// Tag identifies the type of a runtime value.
type Tag uint8

const (
	// tagUndeclared marks a slot that has not been declared. It never
	// escapes the slot table.
	tagUndeclared Tag = 0

	TagUndefined Tag = 1
	TagBoolean   Tag = 2
	TagSmallInt  Tag = 3
	TagNumber    Tag = 4
	TagString    Tag = 5
)

// String returns a human-readable name for the tag.
func (t Tag) String() string {
	switch t {
	case tagUndeclared:
		return "undeclared"
	case TagUndefined:
		return "undefined"
	case TagBoolean:
		return "boolean"
	case TagSmallInt:
		return "smallint"
	case TagNumber:
		return "number"
	case TagString:
		return "string"
	default:
		return fmt.Sprintf("Tag(%d)", t)
	}
}

// Value is a runtime value: a tag plus a 64-bit payload. The payload holds
// 0/1 for booleans, the integer for small ints, IEEE-754 bits for numbers,
// and the pool offset for string references.
type Value struct {
	tag  Tag
	bits uint64
}

// Undefined returns the undefined value.
func Undefined() Value { return Value{tag: TagUndefined} }

// Bool returns a boolean value.
func Bool(b bool) Value {
	if b {
		return Value{tag: TagBoolean, bits: 1}
	}
	return Value{tag: TagBoolean}
}

// SmallInt returns a small integer value.
func SmallInt(n uint8) Value { return Value{tag: TagSmallInt, bits: uint64(n)} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{tag: TagNumber, bits: math.Float64bits(f)} }

// StringRef returns a reference to the string literal at off.
func StringRef(off pool.Offset) Value { return Value{tag: TagString, bits: uint64(off)} }

// Tag returns the value's type tag.
func (v Value) Tag() Tag { return v.tag }

// AsBool returns the payload of a boolean value.
func (v Value) AsBool() bool { return v.bits != 0 }

// AsSmallInt returns the payload of a small integer value.
func (v Value) AsSmallInt() uint8 { return uint8(v.bits) }

// AsNumber returns the payload of a numeric value.
func (v Value) AsNumber() float64 { return math.Float64frombits(v.bits) }

// AsStringRef returns the pool offset of a string reference.
func (v Value) AsStringRef() pool.Offset { return pool.Offset(v.bits) }

// Truthy coerces v to a boolean:
//
//	Undefined   false
//	Boolean     its value
//	SmallInt    false iff 0
//	Number      false iff +0, -0 or NaN
//	StringRef   false iff the referenced string is empty
//
// The pool is consulted only for string references; an error means the
// reference does not resolve to a string entry.
func (v Value) Truthy(p *pool.Pool) (bool, error) {
	switch v.tag {
	case TagUndefined:
		return false, nil
	case TagBoolean:
		return v.AsBool(), nil
	case TagSmallInt:
		return v.bits != 0, nil
	case TagNumber:
		f := v.AsNumber()
		return f != 0 && !math.IsNaN(f), nil
	case TagString:
		n, err := p.StringLen(v.AsStringRef())
		if err != nil {
			return false, err
		}
		return n > 0, nil
	default:
		return false, fmt.Errorf("bytecode: cannot coerce %s value", v.tag)
	}
}

// Format renders v for traces and the CLI, resolving strings through p.
// A nil pool prints string references by offset.
func (v Value) Format(p *pool.Pool) string {
	switch v.tag {
	case TagString:
		if p != nil {
			if s, err := p.String(v.AsStringRef()); err == nil {
				return strconv.Quote(s)
			}
		}
		return fmt.Sprintf("string@%d", v.AsStringRef())
	default:
		return v.String()
	}
}

// String renders v without resolving string references.
func (v Value) String() string {
	switch v.tag {
	case TagUndefined:
		return "undefined"
	case TagBoolean:
		return strconv.FormatBool(v.AsBool())
	case TagSmallInt:
		return strconv.Itoa(int(v.AsSmallInt()))
	case TagNumber:
		return strconv.FormatFloat(v.AsNumber(), 'g', -1, 64)
	case TagString:
		return fmt.Sprintf("string@%d", v.AsStringRef())
	default:
		return v.tag.String()
	}
}
