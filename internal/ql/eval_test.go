package ql

import (
	"errors"
	"testing"
	"time"
)

func ctxOn(y int, m time.Month, d int) Context {
	return Context{Date: NewDate(y, m, d)}
}

func TestEvaluate(t *testing.T) {
	ctx := ctxOn(2024, time.March, 13) // a Wednesday
	tests := []struct {
		input string
		want  Expression
	}{
		{"date", NewDate(2024, time.March, 13)},
		{"wd", Wednesday},
		{"md", Number(13)},
		{"mo", March},
		{"y", Number(2024)},
		{"2024-02-28 + 2", NewDate(2024, time.March, 1)},
		{"2 + 2024-02-28", NewDate(2024, time.March, 1)},
		{"2023-12-31 + 1", NewDate(2024, time.January, 1)},
		{"17 % 5", Number(2)},
		{"md(2024-02-29)", Number(29)},
		{"wd(2024-03-17)", Sunday},
		{"nw(2024-01-01, 2024-03-01)", Number(8)},
		{"nw(2024-03-01, 2024-01-01)", Number(8)},
		{"nw(2024-01-01, 2024-01-07)", Number(0)},
		{"wdp(mon, 2024-03-13)", NewDate(2024, time.March, 4)},
		{"wdp(fri, 2024-03-13)", NewDate(2024, time.March, 8)},
		{"3 = mon", Boolean(false)},
		{"mon = mon", Boolean(true)},
		{"2024-03-13 = date", Boolean(true)},
		{"true = 1", Boolean(false)},
		{"1 < 2", Boolean(true)},
		{"2 <= 2", Boolean(true)},
		{"2 < 2", Boolean(false)},
		{"2 >= 2", Boolean(true)},
		{"2 > 2", Boolean(false)},
		{"date > 2024-03-12", Boolean(true)},
		{"date <= 2024-03-12", Boolean(false)},
		{"!(1 = 1)", Boolean(false)},
		{"true | false & false", Boolean(true)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr := MustParseExpression(tt.input)
			got, err := expr.Evaluate(ctx)
			if err != nil {
				t.Fatalf("Evaluate(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestWeekdayPredecessorUsesContextWeekday(t *testing.T) {
	expr := MustParseExpression("wdp(mon, 2024-03-13)")
	got, err := expr.Evaluate(ctxOn(2024, time.March, 17)) // a Sunday
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := NewDate(2024, time.March, 7); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPlaceholdersResolveAcrossDates(t *testing.T) {
	tests := []struct {
		name    string
		date    Date
		weekday Weekday
		year    Number
	}{
		{"leap day", NewDate(2024, time.February, 29), Thursday, 2024},
		{"last day of year", NewDate(2023, time.December, 31), Sunday, 2023},
		{"first day of year", NewDate(2024, time.January, 1), Monday, 2024},
		{"century non-leap", NewDate(1900, time.March, 1), Thursday, 1900},
		{"year zero", Date{Year: 0, Month: time.January, Day: 1}, Saturday, 1},
		{"first common era day", NewDate(1, time.January, 1), Monday, 1},
		{"year 9999", NewDate(9999, time.December, 31), Friday, 9999},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := Context{Date: tt.date}
			want := map[Placeholder]Expression{
				PlaceholderDate:     tt.date,
				PlaceholderWeekday:  tt.weekday,
				PlaceholderMonthday: Number(tt.date.Day),
				PlaceholderMonth:    Month(tt.date.Month),
				PlaceholderYear:     tt.year,
			}
			for p, w := range want {
				got, err := p.Evaluate(ctx)
				if err != nil {
					t.Fatalf("%v: unexpected error: %v", p, err)
				}
				if got != w {
					t.Errorf("%v on %v = %v, want %v", p, tt.date, got, w)
				}
			}
		})
	}
}

func TestNumberOfWeeksLongSpans(t *testing.T) {
	tests := []struct {
		input string
		want  Number
	}{
		{"nw(1000-01-01, 2000-01-01)", 52177},
		{"nw(2000-01-01, 1000-01-01)", 52177},
		{"nw(1600-03-01, 2024-03-01)", 22123},
		{"nw(0000-01-01, 9999-12-31)", 521774},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := MustParseExpression(tt.input).Evaluate(ctxOn(2024, time.March, 13))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDaysUntilCenturies(t *testing.T) {
	a, b := NewDate(1000, time.January, 1), NewDate(2000, time.January, 1)
	if got := a.DaysUntil(b); got != 365242 {
		t.Errorf("DaysUntil = %d, want 365242", got)
	}
	if got := b.DaysUntil(a); got != -365242 {
		t.Errorf("reverse DaysUntil = %d, want -365242", got)
	}
}

func TestYearBeforeCommonEra(t *testing.T) {
	got, err := PlaceholderYear.Evaluate(Context{Date: Date{Year: 0, Month: time.January, Day: 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != Number(1) {
		t.Errorf("year 0 should be 1 BCE, got %v", got)
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name  string
		input string
		date  Date
		want  bool
	}{
		{"exact date match", "date = 2024-03-01", NewDate(2024, time.March, 1), true},
		{"exact date miss", "date = 2024-03-01", NewDate(2024, time.March, 2), false},
		{"every other tuesday on", "wd = tue & nw(date, 2024-01-02) % 2 = 0", NewDate(2024, time.January, 16), true},
		{"every other tuesday off", "wd = tue & nw(date, 2024-01-02) % 2 = 0", NewDate(2024, time.January, 9), false},
		{"every other tuesday wrong day", "wd = tue & nw(date, 2024-01-02) % 2 = 0", NewDate(2024, time.January, 17), false},
		{"last day of month", "md(date + 1) = 1", NewDate(2024, time.February, 29), true},
		{"not last day of month", "md(date + 1) = 1", NewDate(2024, time.February, 28), false},
		{"mismatched equality is false", "date = wd(date) & md(date) % 2 = 0", NewDate(2024, time.March, 2), false},
		{"yearly", "mo = dec & md = 25", NewDate(2031, time.December, 25), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := MustParsePredicate(tt.input)
			got, err := p.Test(Context{Date: tt.date})
			if err != nil {
				t.Fatalf("Test(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Test(%q) on %v = %v, want %v", tt.input, tt.date, got, tt.want)
			}
		})
	}
}

func TestEvaluateTypeMismatch(t *testing.T) {
	inputs := []string{
		"1 < 2024-01-01",
		"1 <= 2024-01-01",
		"1 > 2024-01-01",
		"1 >= 2024-01-01",
		"mon < tue",
		"true & 1",
		"1 | false",
		"!1",
		"date + date",
		"1 + 1",
		"date % 2",
		"md(1)",
		"wd(mon)",
		"wdp(date, date)",
		"nw(1, date)",
	}
	ctx := ctxOn(2024, time.March, 13)
	for _, in := range inputs {
		_, err := MustParseExpression(in).Evaluate(ctx)
		if !errors.Is(err, ErrMismatch) {
			t.Errorf("Evaluate(%q): expected type mismatch, got %v", in, err)
		}
	}
}

func TestModuloByZero(t *testing.T) {
	_, err := MustParseExpression("md % 0").Evaluate(ctxOn(2024, time.March, 13))
	if !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", err)
	}
	if errors.Is(err, ErrMismatch) {
		t.Errorf("division by zero should not be a type mismatch")
	}
}

func TestPredicateEvaluateIsBoolean(t *testing.T) {
	v, err := MustParsePredicate("wd = wed").Evaluate(ctxOn(2024, time.March, 13))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != Boolean(true) {
		t.Errorf("expected true, got %v", v)
	}
}
