package expr

import (
	"fmt"
	"strings"

	"github.com/c360/srgresolver/errors"
)

// FormatExpression renders an expression back to its textual form. The
// output reparses to an equivalent tree; operands are parenthesized rather
// than reconstructing minimal precedence.
func FormatExpression(e Expr) (string, error) {
	switch x := e.(type) {
	case *Const:
		if x.Value.IsNumber() {
			return x.Value.String(), nil
		}
		return quote(x.Value.String()), nil
	case *AttributeRef:
		if x.Object != "" {
			return x.Object + "." + x.Name, nil
		}
		return x.Name, nil
	case *Unary:
		inner, err := FormatExpression(x.X)
		if err != nil {
			return "", err
		}
		if x.Name == "-" {
			return "-(" + inner + ")", nil
		}
		return x.Name + "(" + inner + ")", nil
	case *Binary:
		a, err := FormatExpression(x.X)
		if err != nil {
			return "", err
		}
		b, err := FormatExpression(x.Y)
		if err != nil {
			return "", err
		}
		switch x.Name {
		case "+", "-", "*", "/", "^":
			return "(" + a + x.Name + b + ")", nil
		}
		return x.Name + "(" + a + "," + b + ")", nil
	case *Function:
		args, err := formatArgs(x.Args)
		if err != nil {
			return "", err
		}
		return x.Name + "(" + args + ")", nil
	}
	return "", fmt.Errorf("%w: cannot format expression %T", errors.ErrSyntax, e)
}

// FormatPredicate renders a predicate back to its textual form.
func FormatPredicate(p Pred) (string, error) {
	switch x := p.(type) {
	case *Not:
		inner, err := FormatPredicate(x.X)
		if err != nil {
			return "", err
		}
		return "!(" + inner + ")", nil
	case *And:
		return formatJunction(x.X, x.Y, "&&")
	case *Or:
		return formatJunction(x.X, x.Y, "||")
	case *Compare:
		a, err := FormatExpression(x.X)
		if err != nil {
			return "", err
		}
		b, err := FormatExpression(x.Y)
		if err != nil {
			return "", err
		}
		return a + compareOpText(x.Op) + b, nil
	case *FuncPred:
		args, err := formatArgs(x.Args)
		if err != nil {
			return "", err
		}
		return x.Name + "(" + args + ")", nil
	}
	return "", fmt.Errorf("%w: cannot format predicate %T", errors.ErrSyntax, p)
}

func formatJunction(a, b Pred, op string) (string, error) {
	as, err := FormatPredicate(a)
	if err != nil {
		return "", err
	}
	bs, err := FormatPredicate(b)
	if err != nil {
		return "", err
	}
	return "(" + as + ")" + op + "(" + bs + ")", nil
}

func formatArgs(args []Expr) (string, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		s, err := FormatExpression(a)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return strings.Join(parts, ","), nil
}

func compareOpText(op CompareOp) string {
	switch op {
	case OpEqual:
		return "=="
	case OpNotEqual:
		return "!="
	case OpGreater:
		return ">"
	case OpGreaterEqual:
		return ">="
	case OpLess:
		return "<"
	case OpLessEqual:
		return "<="
	}
	return "?"
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' || s[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('\'')
	return b.String()
}
