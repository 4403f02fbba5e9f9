package expr

import (
	"fmt"

	"github.com/c360/srgresolver/attribute"
	"github.com/c360/srgresolver/errors"
)

// Pred is a predicate over an evaluation context. An evaluation error counts
// as "incompatible" at the match boundary.
type Pred interface {
	Test(Context) (bool, error)

	// Equalities returns the (attribute, constant) pairs any satisfying
	// attribute set must carry. Used as a pattern optimisation hint.
	Equalities() []Equality
}

// Equality is one attribute = constant pair extracted from a predicate.
type Equality struct {
	Attribute string
	Value     string
}

// Not negates a predicate.
type Not struct {
	X Pred
}

// Test evaluates the negation.
func (p *Not) Test(c Context) (bool, error) {
	v, err := p.X.Test(c)
	if err != nil {
		return false, err
	}
	return !v, nil
}

// Equalities of a negation carry no conjunctive information.
func (p *Not) Equalities() []Equality { return nil }

// And is the conjunction of two predicates.
type And struct {
	X, Y Pred
}

// Test evaluates the conjunction with short-circuiting.
func (p *And) Test(c Context) (bool, error) {
	v, err := p.X.Test(c)
	if err != nil || !v {
		return false, err
	}
	return p.Y.Test(c)
}

// Equalities concatenates the equalities of both children.
func (p *And) Equalities() []Equality {
	return append(p.X.Equalities(), p.Y.Equalities()...)
}

// Or is the disjunction of two predicates.
type Or struct {
	X, Y Pred
}

// Test evaluates the disjunction with short-circuiting.
func (p *Or) Test(c Context) (bool, error) {
	v, err := p.X.Test(c)
	if err != nil {
		return false, err
	}
	if v {
		return true, nil
	}
	return p.Y.Test(c)
}

// Equalities of a disjunction carry no conjunctive information.
func (p *Or) Equalities() []Equality { return nil }

// CompareOp enumerates the comparison operators.
type CompareOp int

// Comparison operators in the order of the textual form.
const (
	OpEqual CompareOp = iota
	OpNotEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
)

// ParseCompareOp maps the textual operator to its CompareOp.
func ParseCompareOp(op string) (CompareOp, error) {
	switch op {
	case "==":
		return OpEqual, nil
	case "!=":
		return OpNotEqual, nil
	case ">":
		return OpGreater, nil
	case ">=":
		return OpGreaterEqual, nil
	case "<":
		return OpLess, nil
	case "<=":
		return OpLessEqual, nil
	}
	return 0, fmt.Errorf("%w: bad comparison operator %q", errors.ErrSyntax, op)
}

// Compare evaluates two expressions and compares the results. Equality
// compares numerically when both operands are numbers and textually
// otherwise; the ordering operators require both operands numeric.
type Compare struct {
	Op   CompareOp
	X, Y Expr
}

// Test evaluates the comparison.
func (p *Compare) Test(c Context) (bool, error) {
	a, err := p.X.Eval(c)
	if err != nil {
		return false, err
	}
	b, err := p.Y.Eval(c)
	if err != nil {
		return false, err
	}

	switch p.Op {
	case OpEqual, OpNotEqual:
		eq := compareEqual(a, b)
		if p.Op == OpNotEqual {
			eq = !eq
		}
		return eq, nil
	}

	an, err := a.Number()
	if err != nil {
		return false, err
	}
	bn, err := b.Number()
	if err != nil {
		return false, err
	}
	switch p.Op {
	case OpGreater:
		return an > bn, nil
	case OpGreaterEqual:
		return an >= bn, nil
	case OpLess:
		return an < bn, nil
	case OpLessEqual:
		return an <= bn, nil
	}
	return false, nil
}

func compareEqual(a, b attribute.Value) bool {
	if a.IsNumber() {
		if !b.IsNumber() {
			return false
		}
		an, _ := a.Number()
		bn, _ := b.Number()
		return an == bn
	}
	return a.String() == b.String()
}

// Equalities extracts "<attribute> == <constant>" comparisons with an
// unqualified attribute reference on the left.
func (p *Compare) Equalities() []Equality {
	if p.Op != OpEqual {
		return nil
	}
	ref, ok := p.X.(*AttributeRef)
	if !ok || ref.Object != "" {
		return nil
	}
	c, ok := p.Y.(*Const)
	if !ok {
		return nil
	}
	return []Equality{{Attribute: ref.Name, Value: c.Value.String()}}
}

// FuncPred implements predicate functions. The only known function is
// inSourceSet(prefix), which tests whether the enclosing edge's source set
// contains an identifier starting with the prefix. It refuses to run in a
// global context.
type FuncPred struct {
	Name string
	Args []Expr
}

// NewFuncPred validates the function name and arity.
func NewFuncPred(name string, args []Expr) (*FuncPred, error) {
	if name != "inSourceSet" {
		return nil, fmt.Errorf("%w: bad predicate function %q", errors.ErrUnknownFunction, name)
	}
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: inSourceSet must have exactly one argument", errors.ErrBadArity)
	}
	return &FuncPred{Name: name, Args: args}, nil
}

// Test evaluates the predicate function.
func (p *FuncPred) Test(c Context) (bool, error) {
	if c.IsGlobal() {
		return false, errors.ErrGlobalNotAllowed
	}
	prefix, err := evalText(c, p.Args[0])
	if err != nil {
		return false, err
	}
	return c.Sources().HasPrefix(prefix), nil
}

// Equalities of a predicate function carry no conjunctive information.
func (p *FuncPred) Equalities() []Equality { return nil }
