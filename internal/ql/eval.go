package ql

import "cmp"

// Context is the only input to evaluation: the date being tested.
type Context struct {
	Date Date
}

func (b Boolean) Evaluate(Context) (Expression, error) { return b, nil }
func (n Number) Evaluate(Context) (Expression, error)  { return n, nil }
func (w Weekday) Evaluate(Context) (Expression, error) { return w, nil }
func (m Month) Evaluate(Context) (Expression, error)   { return m, nil }
func (d Date) Evaluate(Context) (Expression, error)    { return d, nil }

func (p Placeholder) Evaluate(ctx Context) (Expression, error) {
	d := ctx.Date
	switch p {
	case PlaceholderWeekday:
		return d.Weekday(), nil
	case PlaceholderMonthday:
		return Number(d.Day), nil
	case PlaceholderMonth:
		return Month(d.Month), nil
	case PlaceholderYear:
		// Years before 1 CE count backwards from 1 BCE.
		if d.Year < 1 {
			return Number(1 - d.Year), nil
		}
		return Number(d.Year), nil
	case PlaceholderDate:
		return d, nil
	}
	return nil, &Error{Kind: KindMismatch, Message: "unknown placeholder " + p.String()}
}

func evalPair(ctx Context, l, r Expression) (Expression, Expression, error) {
	lv, err := l.Evaluate(ctx)
	if err != nil {
		return nil, nil, err
	}
	rv, err := r.Evaluate(ctx)
	if err != nil {
		return nil, nil, err
	}
	return lv, rv, nil
}

func testToExpression(p Predicate, ctx Context) (Expression, error) {
	ok, err := p.Test(ctx)
	if err != nil {
		return nil, err
	}
	return Boolean(ok), nil
}

func (p Equality) Evaluate(ctx Context) (Expression, error)   { return testToExpression(p, ctx) }
func (p And) Evaluate(ctx Context) (Expression, error)        { return testToExpression(p, ctx) }
func (p Or) Evaluate(ctx Context) (Expression, error)         { return testToExpression(p, ctx) }
func (p Not) Evaluate(ctx Context) (Expression, error)        { return testToExpression(p, ctx) }
func (p Comparison) Evaluate(ctx Context) (Expression, error) { return testToExpression(p, ctx) }

// Test reports whether both sides resolve to the same value. Values of
// different types are unequal, never a type error.
func (p Equality) Test(ctx Context) (bool, error) {
	l, r, err := evalPair(ctx, p.Left, p.Right)
	if err != nil {
		return false, err
	}
	return l == r, nil
}

func (p And) Test(ctx Context) (bool, error) {
	l, r, err := evalPair(ctx, p.Left, p.Right)
	if err != nil {
		return false, err
	}
	lb, lok := l.(Boolean)
	rb, rok := r.(Boolean)
	if !lok || !rok {
		return false, mismatch("&", l, r)
	}
	return bool(lb && rb), nil
}

func (p Or) Test(ctx Context) (bool, error) {
	l, r, err := evalPair(ctx, p.Left, p.Right)
	if err != nil {
		return false, err
	}
	lb, lok := l.(Boolean)
	rb, rok := r.(Boolean)
	if !lok || !rok {
		return false, mismatch("|", l, r)
	}
	return bool(lb || rb), nil
}

func (p Not) Test(ctx Context) (bool, error) {
	v, err := p.Operand.Evaluate(ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(Boolean)
	if !ok {
		return false, mismatch("!", v)
	}
	return !bool(b), nil
}

func (p Comparison) Test(ctx Context) (bool, error) {
	l, r, err := evalPair(ctx, p.Left, p.Right)
	if err != nil {
		return false, err
	}

	var c int
	switch lv := l.(type) {
	case Number:
		rv, ok := r.(Number)
		if !ok {
			return false, mismatch("comparison", l, r)
		}
		c = cmp.Compare(lv, rv)
	case Date:
		rv, ok := r.(Date)
		if !ok {
			return false, mismatch("comparison", l, r)
		}
		c = lv.Compare(rv)
	default:
		return false, mismatch("comparison", l, r)
	}

	if c == 0 {
		return p.OrEqual, nil
	}
	if p.GreaterThan {
		return c > 0, nil
	}
	return c < 0, nil
}

// Evaluate shifts the Date operand by the Number operand in days. The
// operands may come in either order.
func (a Addition) Evaluate(ctx Context) (Expression, error) {
	l, r, err := evalPair(ctx, a.Left, a.Right)
	if err != nil {
		return nil, err
	}
	switch lv := l.(type) {
	case Date:
		if n, ok := r.(Number); ok {
			return lv.AddDays(int(n)), nil
		}
	case Number:
		if d, ok := r.(Date); ok {
			return d.AddDays(int(lv)), nil
		}
	}
	return nil, mismatch("+", l, r)
}

func (a Modulo) Evaluate(ctx Context) (Expression, error) {
	l, r, err := evalPair(ctx, a.Left, a.Right)
	if err != nil {
		return nil, err
	}
	ln, lok := l.(Number)
	rn, rok := r.(Number)
	if !lok || !rok {
		return nil, mismatch("%", l, r)
	}
	if rn == 0 {
		return nil, &Error{Kind: KindDivisionByZero, Message: a.String()}
	}
	return ln % rn, nil
}

func evalDate(ctx Context, op string, e Expression) (Date, error) {
	v, err := e.Evaluate(ctx)
	if err != nil {
		return Date{}, err
	}
	d, ok := v.(Date)
	if !ok {
		return Date{}, mismatch(op, v)
	}
	return d, nil
}

func (f MonthdayFunc) Evaluate(ctx Context) (Expression, error) {
	d, err := evalDate(ctx, "md", f.Date)
	if err != nil {
		return nil, err
	}
	return Number(d.Day), nil
}

func (f WeekdayFunc) Evaluate(ctx Context) (Expression, error) {
	d, err := evalDate(ctx, "wd", f.Date)
	if err != nil {
		return nil, err
	}
	return d.Weekday(), nil
}

// Evaluate finds the requested weekday in the week preceding the operand
// date. The week is anchored on the weekday of ctx.Date, not on the operand.
func (f WeekdayPredecessor) Evaluate(ctx Context) (Expression, error) {
	w, d, err := evalPair(ctx, f.Weekday, f.Date)
	if err != nil {
		return nil, err
	}
	wd, wok := w.(Weekday)
	date, dok := d.(Date)
	if !wok || !dok {
		return nil, mismatch("wdp", w, d)
	}
	// Monday -> 1, ..., Saturday -> 6, Sunday -> 0.
	back := (int(ctx.Date.Weekday()) + 1) % 7
	return date.AddDays(-back - 6 + int(wd)), nil
}

func (f NumberOfWeeks) Evaluate(ctx Context) (Expression, error) {
	l, h, err := evalPair(ctx, f.Low, f.High)
	if err != nil {
		return nil, err
	}
	low, lok := l.(Date)
	high, hok := h.(Date)
	if !lok || !hok {
		return nil, mismatch("nw", l, h)
	}
	if high.Before(low) {
		low, high = high, low
	}
	return Number(low.DaysUntil(high) / 7), nil
}
