package ql

import (
	"fmt"
	"strconv"
)

// Expression is a node of the QL syntax tree.
//
// String renders the node in the exact syntax accepted by ParseExpression,
// so that parsing the rendered text yields an equal tree. All node types are
// comparable values; two trees are equal iff they compare equal with ==.
type Expression interface {
	fmt.Stringer
	// Evaluate resolves the node against ctx. The result is always one of
	// Boolean, Number, Weekday, Month or Date.
	Evaluate(ctx Context) (Expression, error)
	isExpression()
}

// Predicate is a boolean-valued node.
type Predicate interface {
	Expression
	Test(ctx Context) (bool, error)
	isPredicate()
}

// Arithmetic nodes compute a Number or a Date.
type Arithmetic interface {
	Expression
	isArithmetic()
}

// Function nodes are the named date utilities md, wd, wdp and nw.
type Function interface {
	Expression
	isFunction()
}

// Resolved values.
type (
	Boolean bool
	Number  uint32
)

func (Boolean) isExpression() {}
func (Number) isExpression()  {}
func (Date) isExpression()    {}

func (b Boolean) String() string { return strconv.FormatBool(bool(b)) }
func (n Number) String() string  { return strconv.FormatUint(uint64(n), 10) }

// Placeholder stands for a property of the date under evaluation.
type Placeholder int

const (
	PlaceholderWeekday Placeholder = iota
	PlaceholderMonthday
	PlaceholderMonth
	PlaceholderYear
	PlaceholderDate
)

var placeholderNames = map[Placeholder]string{
	PlaceholderWeekday:  "wd",
	PlaceholderMonthday: "md",
	PlaceholderMonth:    "mo",
	PlaceholderYear:     "y",
	PlaceholderDate:     "date",
}

func (p Placeholder) String() string {
	if s, ok := placeholderNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Placeholder(%d)", int(p))
}

func (Placeholder) isExpression() {}

// Predicates.
type (
	Equality struct{ Left, Right Expression }
	And      struct{ Left, Right Expression }
	Or       struct{ Left, Right Expression }
	Not      struct{ Operand Expression }

	// Comparison is one of <, <=, > and >=.
	Comparison struct {
		GreaterThan bool
		OrEqual     bool
		Left, Right Expression
	}
)

func (Equality) isExpression()   {}
func (And) isExpression()        {}
func (Or) isExpression()         {}
func (Not) isExpression()        {}
func (Comparison) isExpression() {}

func (Equality) isPredicate()   {}
func (And) isPredicate()        {}
func (Or) isPredicate()         {}
func (Not) isPredicate()        {}
func (Comparison) isPredicate() {}

func (p Equality) String() string {
	return wrap(p.Left, precArith) + " = " + wrap(p.Right, precArith)
}

func (p And) String() string {
	return wrap(p.Left, precAnd) + " & " + wrap(p.Right, precCompare)
}

func (p Or) String() string {
	return wrap(p.Left, precOr) + " | " + wrap(p.Right, precAnd)
}

func (p Not) String() string {
	return "!" + wrap(p.Operand, precUnary)
}

func (p Comparison) String() string {
	op := "<"
	if p.GreaterThan {
		op = ">"
	}
	if p.OrEqual {
		op += "="
	}
	return wrap(p.Left, precArith) + " " + op + " " + wrap(p.Right, precArith)
}

// Arithmetic.
type (
	Addition struct{ Left, Right Expression }
	Modulo   struct{ Left, Right Expression }
)

func (Addition) isExpression() {}
func (Modulo) isExpression()   {}
func (Addition) isArithmetic() {}
func (Modulo) isArithmetic()   {}

func (a Addition) String() string {
	return wrap(a.Left, precArith) + " + " + wrap(a.Right, precUnary)
}

func (a Modulo) String() string {
	return wrap(a.Left, precArith) + " % " + wrap(a.Right, precUnary)
}

// Functions.
type (
	// MonthdayFunc is md(date): the day of month of its operand.
	MonthdayFunc struct{ Date Expression }
	// WeekdayFunc is wd(date): the weekday of its operand.
	WeekdayFunc struct{ Date Expression }
	// WeekdayPredecessor is wdp(weekday, date).
	WeekdayPredecessor struct{ Weekday, Date Expression }
	// NumberOfWeeks is nw(low, high), the whole weeks between two dates.
	NumberOfWeeks struct{ Low, High Expression }
)

func (MonthdayFunc) isExpression()       {}
func (WeekdayFunc) isExpression()        {}
func (WeekdayPredecessor) isExpression() {}
func (NumberOfWeeks) isExpression()      {}

func (MonthdayFunc) isFunction()       {}
func (WeekdayFunc) isFunction()        {}
func (WeekdayPredecessor) isFunction() {}
func (NumberOfWeeks) isFunction()      {}

func (f MonthdayFunc) String() string { return "md(" + f.Date.String() + ")" }
func (f WeekdayFunc) String() string  { return "wd(" + f.Date.String() + ")" }

func (f WeekdayPredecessor) String() string {
	return "wdp(" + f.Weekday.String() + ", " + f.Date.String() + ")"
}

func (f NumberOfWeeks) String() string {
	return "nw(" + f.Low.String() + ", " + f.High.String() + ")"
}

// Binding strength of each node, mirroring the parser's descent order.
const (
	precOr = iota + 1
	precAnd
	precCompare
	precArith
	precUnary
	precPrimary
)

func precedence(e Expression) int {
	switch e.(type) {
	case Or:
		return precOr
	case And:
		return precAnd
	case Equality, Comparison:
		return precCompare
	case Addition, Modulo:
		return precArith
	case Not:
		return precUnary
	default:
		return precPrimary
	}
}

// wrap renders e, parenthesized when it binds looser than min.
func wrap(e Expression, min int) string {
	if e == nil {
		return "<nil>"
	}
	if precedence(e) < min {
		return "(" + e.String() + ")"
	}
	return e.String()
}

// TypeName names the resolved type of e, as used in error messages.
func TypeName(e Expression) string {
	switch e.(type) {
	case Boolean:
		return "boolean"
	case Number:
		return "number"
	case Weekday:
		return "weekday"
	case Month:
		return "month"
	case Date:
		return "date"
	case nil:
		return "nothing"
	default:
		return fmt.Sprintf("%T", e)
	}
}
