package ql

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseExpression(t *testing.T) {
	d := NewDate(2024, time.March, 1)
	tests := []struct {
		name  string
		input string
		want  Expression
	}{
		{
			name:  "date equality",
			input: "date = 2024-03-01",
			want:  Equality{Left: PlaceholderDate, Right: d},
		},
		{
			name:  "and binds tighter than or",
			input: "wd = mon | wd = tue & md = 1",
			want: Or{
				Left: Equality{Left: PlaceholderWeekday, Right: Monday},
				Right: And{
					Left:  Equality{Left: PlaceholderWeekday, Right: Tuesday},
					Right: Equality{Left: PlaceholderMonthday, Right: Number(1)},
				},
			},
		},
		{
			name:  "arithmetic binds tighter than equality",
			input: "md(date) % 2 = 0",
			want: Equality{
				Left:  Modulo{Left: MonthdayFunc{Date: PlaceholderDate}, Right: Number(2)},
				Right: Number(0),
			},
		},
		{
			name:  "arithmetic is left associative",
			input: "date + 1 + 2",
			want:  Addition{Left: Addition{Left: PlaceholderDate, Right: Number(1)}, Right: Number(2)},
		},
		{
			name:  "comparisons",
			input: "y >= 2024 & date < 2024-03-01",
			want: And{
				Left:  Comparison{GreaterThan: true, OrEqual: true, Left: PlaceholderYear, Right: Number(2024)},
				Right: Comparison{Left: PlaceholderDate, Right: d},
			},
		},
		{
			name:  "not binds tighter than equality",
			input: "!true = false",
			want:  Equality{Left: Not{Operand: Boolean(true)}, Right: Boolean(false)},
		},
		{
			name:  "parentheses group",
			input: "!(mo = dec)",
			want:  Not{Operand: Equality{Left: PlaceholderMonth, Right: December}},
		},
		{
			name:  "functions",
			input: "wdp(fri, date) = nw(2024-01-01, date + 7)",
			want: Equality{
				Left:  WeekdayPredecessor{Weekday: Friday, Date: PlaceholderDate},
				Right: NumberOfWeeks{Low: NewDate(2024, time.January, 1), High: Addition{Left: PlaceholderDate, Right: Number(7)}},
			},
		},
		{
			name:  "wd placeholder and wd function",
			input: "wd = wd(2024-03-01)",
			want:  Equality{Left: PlaceholderWeekday, Right: WeekdayFunc{Date: d}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExpression(tt.input)
			if err != nil {
				t.Fatalf("ParseExpression(%q) error = %v", tt.input, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseExpression(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"date = 2024-03-01",
		"true",
		"4294967295",
		"date = wd(date) & md(date) % 2 = 0",
		"wd = tue & nw(date, 2024-01-02) % 2 = 0",
		"wd = mon | wd = tue | wd = wed",
		"wd = mon | (wd = tue | wd = wed)",
		"(wd = mon | wd = tue) & mo = jan",
		"!(md = 1)",
		"!!false",
		"!md = 1",
		"(date = 2024-01-01) = false",
		"date + (1 + 2) > 2024-01-01",
		"md % (3 % 2) <= 0",
		"wdp(sat, date + 7) = date",
		"nw(2024-01-01, 2023-12-01) < 5",
		"md(date + 1) = 1 & y >= 2000",
		"mo = feb & md = 29",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			first, err := ParseExpression(in)
			if err != nil {
				t.Fatalf("ParseExpression(%q) error = %v", in, err)
			}
			text := first.String()
			second, err := ParseExpression(text)
			if err != nil {
				t.Fatalf("reparse of %q error = %v", text, err)
			}
			if diff := cmp.Diff(first, second); diff != "" {
				t.Errorf("round trip of %q via %q mismatch (-first +second):\n%s", in, text, diff)
			}
			if second.String() != text {
				t.Errorf("text not stable: %q then %q", text, second.String())
			}
		})
	}
}

func TestDisplayCanonicalForms(t *testing.T) {
	tests := []struct {
		expr Expression
		want string
	}{
		{Boolean(false), "false"},
		{Number(42), "42"},
		{Sunday, "sun"},
		{September, "sep"},
		{NewDate(987, time.May, 6), "0987-05-06"},
		{PlaceholderYear, "y"},
		{Comparison{GreaterThan: true, Left: Number(1), Right: Number(2)}, "1 > 2"},
		{Comparison{OrEqual: true, Left: Number(1), Right: Number(2)}, "1 <= 2"},
		{And{Left: Boolean(true), Right: Or{Left: Boolean(true), Right: Boolean(false)}}, "true & (true | false)"},
		{Modulo{Left: Number(5), Right: Addition{Left: Number(1), Right: Number(1)}}, "5 % (1 + 1)"},
		{NumberOfWeeks{Low: PlaceholderDate, High: NewDate(2024, time.January, 1)}, "nw(date, 2024-01-01)"},
		{WeekdayPredecessor{Weekday: Monday, Date: PlaceholderDate}, "wdp(mon, date)"},
	}
	for _, tt := range tests {
		if got := tt.expr.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	inputs := []string{
		"",
		"date =",
		"date = = 1",
		"1 = 1 = 1",
		"md(date",
		"md(date, date)",
		"wdp(mon)",
		"monday = 1",
		"2024-13-01 = date",
		"4294967296",
		"(true",
		"true)",
		"DATE = 2024-01-01",
	}
	for _, in := range inputs {
		_, err := ParseExpression(in)
		if err == nil {
			t.Errorf("ParseExpression(%q): expected error", in)
			continue
		}
		if !errors.Is(err, ErrSyntax) {
			t.Errorf("ParseExpression(%q): expected syntax error, got %v", in, err)
		}
	}
}

func TestParsePredicate(t *testing.T) {
	p, err := ParsePredicate("(date = 2024-03-01)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.(Equality); !ok {
		t.Fatalf("expected Equality, got %T", p)
	}

	for _, in := range []string{"true", "date + 1", "md(date)"} {
		if _, err := ParsePredicate(in); !IsKind(err, KindSyntax) {
			t.Errorf("ParsePredicate(%q): expected syntax error, got %v", in, err)
		}
	}
}

func TestParseTimePair(t *testing.T) {
	tests := []struct {
		input   string
		want    TimePair
		text    string
		wantErr bool
	}{
		{input: "9:00-10:30", want: TimePair{Start: Time{9, 0}, End: Time{10, 30}}, text: "9:00-10:30"},
		{input: " 09:05 - 17:45 ", want: TimePair{Start: Time{9, 5}, End: Time{17, 45}}, text: "9:05-17:45"},
		{input: "22:00-1:00", want: TimePair{Start: Time{22, 0}, End: Time{1, 0}}, text: "22:00-1:00"},
		{input: "24:00-1:00", wantErr: true},
		{input: "9:60-10:00", wantErr: true},
		{input: "9:00", wantErr: true},
		{input: "9:00-10:00-11:00", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimePair(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if got.String() != tt.text {
				t.Errorf("String() = %q, want %q", got.String(), tt.text)
			}
			again, err := ParseTimePair(got.String())
			if err != nil || again != got {
				t.Errorf("round trip failed: %v, %v", again, err)
			}
		})
	}
}

func TestParseTime(t *testing.T) {
	got, err := ParseTime("3:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Duration() != 3*time.Hour {
		t.Errorf("expected 3h, got %v", got.Duration())
	}
	if _, err := ParseTime("3"); err == nil {
		t.Errorf("expected error for missing minutes")
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic")
		}
	}()
	MustParseExpression("date =")
}
