package parser

import (
	"fmt"
	"strconv"
)

// Kind identifies the scalar type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// Value is a tagged scalar cell of a Record.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
	Bool bool
}

func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }
func String(s string) Value  { return Value{Kind: KindString, Str: s} }
func Bool(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func Null() Value            { return Value{} }

// IsNull reports whether the value is absent or JSON null.
func (v Value) IsNull() bool { return v.Kind == KindNull }

func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindString:
		return v.Str
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

// Record maps a field name to its scalar value.
type Record map[string]Value

// Lookup returns the named field or a *MissingFieldError.
func (r Record) Lookup(field string) (Value, error) {
	v, ok := r[field]
	if !ok {
		return Value{}, &MissingFieldError{Field: field}
	}
	return v, nil
}

// MissingFieldError reports a selected field that the dataset does not carry.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("field %q not found in dataset", e.Field)
}
