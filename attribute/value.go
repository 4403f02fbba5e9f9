// Package attribute provides the key/value attribute model shared by graph
// nodes and edges. Values carry either text, a number or an opaque tree and
// convert lazily between the textual and numeric representations.
package attribute

import (
	"encoding/json"
	"reflect"
	"strconv"

	"github.com/c360/srgresolver/errors"
)

// contentState tracks the cached numeric interpretation of a value.
type contentState int

const (
	stateEmpty contentState = iota
	stateUnchecked
	stateNumber
	stateNoNumber
)

// Value is a tagged attribute value. It is either empty, textual, numeric or
// an opaque tree (the pass-through form of nested configuration). Text and
// number convert into each other on demand. Normalize caches the numeric
// check in the value (maps and constants store normalized values), so a
// normalized value observed as a number stays a number.
type Value struct {
	text  string
	num   float64
	tree  any
	state contentState
}

// Text creates a value from its textual representation.
func Text(s string) Value {
	if s == "" {
		return Value{}
	}
	return Value{text: s, state: stateUnchecked}
}

// Number creates a numeric value.
func Number(v float64) Value {
	return Value{num: v, state: stateNumber}
}

// Tree creates a value holding an opaque configuration tree. Tree values
// compare by identity only.
func Tree(tree any) Value {
	if tree == nil {
		return Value{}
	}
	return Value{tree: tree, state: stateUnchecked}
}

// IsEmpty reports whether the value carries no information.
func (v Value) IsEmpty() bool {
	return v.state == stateEmpty && v.tree == nil
}

// TreeValue returns the opaque tree, or nil if the value is not a tree.
func (v Value) TreeValue() any {
	return v.tree
}

// String returns the textual representation. Numeric values format with the
// shortest representation that round-trips; empty and tree values yield "".
func (v Value) String() string {
	if v.text != "" {
		return v.text
	}
	if v.state == stateNumber {
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	}
	return v.text
}

// IsNumber reports whether the value parses as a number. The check result is
// not cached on the receiver (Value is used by value); Number() callers get
// the cached fast path via the state field once a Value was constructed
// numeric.
func (v Value) IsNumber() bool {
	switch v.state {
	case stateNumber:
		return true
	case stateEmpty, stateNoNumber:
		return false
	}
	_, err := strconv.ParseFloat(v.text, 64)
	return err == nil
}

// Number returns the numeric interpretation, or ErrNotANumber if the value
// is empty or does not parse.
func (v Value) Number() (float64, error) {
	switch v.state {
	case stateNumber:
		return v.num, nil
	case stateEmpty, stateNoNumber:
		return 0, errors.ErrNotANumber
	}
	f, err := strconv.ParseFloat(v.text, 64)
	if err != nil {
		return 0, errors.ErrNotANumber
	}
	return f, nil
}

// Normalize returns a value with the numeric check performed and cached, so
// later IsNumber/Number calls take the fast path. Used when values enter
// long-lived structures.
func (v Value) Normalize() Value {
	if v.state != stateUnchecked || v.tree != nil {
		return v
	}
	if f, err := strconv.ParseFloat(v.text, 64); err == nil {
		return Value{text: v.text, num: f, state: stateNumber}
	}
	return Value{text: v.text, state: stateNoNumber}
}

// Equal compares two values. Tree values compare by identity; otherwise two
// values are equal if both parse as numbers and the numbers are equal, or if
// their textual forms are equal.
func (v Value) Equal(o Value) bool {
	if v.tree != nil || o.tree != nil {
		if a, ok := v.tree.(json.RawMessage); ok {
			if b, ok := o.tree.(json.RawMessage); ok {
				return string(a) == string(b)
			}
			return false
		}
		if v.tree == nil || o.tree == nil ||
			!reflect.TypeOf(v.tree).Comparable() || !reflect.TypeOf(o.tree).Comparable() {
			return false
		}
		return v.tree == o.tree
	}
	vn, verr := v.Number()
	on, oerr := o.Number()
	if verr == nil && oerr == nil && vn == on {
		return true
	}
	return v.String() == o.String()
}
