package expr

import (
	"fmt"
	"math"
	"strings"

	"github.com/c360/srgresolver/attribute"
	"github.com/c360/srgresolver/errors"
)

// Expr is an attribute expression. Evaluation yields an attribute value; any
// error is caught at the match or attribute-expansion boundary and causes
// the offending attribute or match to be dropped.
type Expr interface {
	Eval(Context) (attribute.Value, error)
}

// Const is a constant expression.
type Const struct {
	Value attribute.Value
}

// NewConst creates a constant from its textual form, pre-checking the
// numeric interpretation so it is cached before evaluation.
func NewConst(text string) *Const {
	return &Const{Value: attribute.Text(text).Normalize()}
}

// Eval returns the constant value.
func (e *Const) Eval(Context) (attribute.Value, error) {
	return e.Value, nil
}

// AttributeRef reads an attribute, optionally qualified with the name of a
// pattern object ("edge.latency"). Unqualified references bind to the
// enclosing object in local contexts; global contexts require the
// qualifier.
type AttributeRef struct {
	Object string
	Name   string
}

// NewAttributeRef splits a reference of the form "[object.]name".
func NewAttributeRef(ref string) *AttributeRef {
	if i := strings.IndexByte(ref, '.'); i >= 0 {
		return &AttributeRef{Object: ref[:i], Name: ref[i+1:]}
	}
	return &AttributeRef{Name: ref}
}

// Eval resolves the reference. A missing attribute or unknown object yields
// the empty value, matching the tolerant lookup of the attribute model.
func (e *AttributeRef) Eval(c Context) (attribute.Value, error) {
	var attrs *attribute.Map
	if c.IsGlobal() {
		attrs = c.ObjectAttributes(e.Object)
		if attrs == nil {
			return attribute.Value{}, nil
		}
	} else {
		attrs = c.Attributes()
	}
	v, _ := attrs.Get(e.Name)
	return v, nil
}

// Unary applies a numeric function of one argument.
type Unary struct {
	Name string
	F    func(float64) float64
	X    Expr
}

// Eval coerces the operand to a number and applies the function.
func (e *Unary) Eval(c Context) (attribute.Value, error) {
	x, err := e.X.Eval(c)
	if err != nil {
		return attribute.Value{}, err
	}
	n, err := x.Number()
	if err != nil {
		return attribute.Value{}, err
	}
	return attribute.Number(e.F(n)), nil
}

// Binary applies a numeric function of two arguments.
type Binary struct {
	Name string
	F    func(a, b float64) float64
	X, Y Expr
}

// Eval coerces both operands to numbers and applies the function.
func (e *Binary) Eval(c Context) (attribute.Value, error) {
	x, err := e.X.Eval(c)
	if err != nil {
		return attribute.Value{}, err
	}
	a, err := x.Number()
	if err != nil {
		return attribute.Value{}, err
	}
	y, err := e.Y.Eval(c)
	if err != nil {
		return attribute.Value{}, err
	}
	b, err := y.Number()
	if err != nil {
		return attribute.Value{}, err
	}
	return attribute.Number(e.F(a, b)), nil
}

// Arithmetic and well-known numeric function constructors used by the
// parser and by programmatic pattern construction.

// Neg builds a unary minus.
func Neg(x Expr) *Unary { return &Unary{Name: "-", F: func(a float64) float64 { return -a }, X: x} }

// Sqrt builds a square root.
func Sqrt(x Expr) *Unary { return &Unary{Name: "sqrt", F: math.Sqrt, X: x} }

// Add builds an addition.
func Add(x, y Expr) *Binary {
	return &Binary{Name: "+", F: func(a, b float64) float64 { return a + b }, X: x, Y: y}
}

// Sub builds a subtraction.
func Sub(x, y Expr) *Binary {
	return &Binary{Name: "-", F: func(a, b float64) float64 { return a - b }, X: x, Y: y}
}

// Mul builds a multiplication.
func Mul(x, y Expr) *Binary {
	return &Binary{Name: "*", F: func(a, b float64) float64 { return a * b }, X: x, Y: y}
}

// Div builds a division.
func Div(x, y Expr) *Binary {
	return &Binary{Name: "/", F: func(a, b float64) float64 { return a / b }, X: x, Y: y}
}

// Pow builds an exponentiation.
func Pow(x, y Expr) *Binary { return &Binary{Name: "^", F: math.Pow, X: x, Y: y} }

// Min builds a two-argument minimum.
func Min(x, y Expr) *Binary { return &Binary{Name: "min", F: math.Min, X: x, Y: y} }

// Max builds a two-argument maximum.
func Max(x, y Expr) *Binary { return &Binary{Name: "max", F: math.Max, X: x, Y: y} }

// Function evaluates the resolver built-ins that need match context
// (syncError, steadyState, sourceCount). Unknown names are kept opaque and
// dispatched to the context hook at evaluation time.
type Function struct {
	Name string
	Args []Expr
}

// NewFunction validates the arity of known built-ins at construction time.
func NewFunction(name string, args []Expr) (*Function, error) {
	switch name {
	case "syncError":
		if len(args) != 3 {
			return nil, fmt.Errorf("%w for function %s", errors.ErrBadArity, name)
		}
	case "steadyState":
		if len(args) < 4 || (len(args)-1)%3 != 0 {
			return nil, fmt.Errorf("%w for function %s", errors.ErrBadArity, name)
		}
	case "sourceCount":
		if len(args) > 1 {
			return nil, fmt.Errorf("%w: sourceCount can have at most one argument", errors.ErrBadArity)
		}
	}
	return &Function{Name: name, Args: args}, nil
}

// Eval dispatches to the built-in implementations in builtin.go.
func (e *Function) Eval(c Context) (attribute.Value, error) {
	switch e.Name {
	case "syncError":
		return evalSyncError(c, e.Args)
	case "steadyState":
		return evalSteadyState(c, e.Args)
	case "sourceCount":
		return evalSourceCount(c, e.Args)
	}
	if c.hook != nil {
		args := make([]attribute.Value, len(e.Args))
		for i, a := range e.Args {
			v, err := a.Eval(c)
			if err != nil {
				return attribute.Value{}, err
			}
			args[i] = v
		}
		return c.hook(e.Name, args)
	}
	return attribute.Value{}, fmt.Errorf("%w: %s", errors.ErrUnknownFunction, e.Name)
}
