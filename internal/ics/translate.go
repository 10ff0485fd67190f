package ics

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	appLog "qlcal/internal/log"
	"qlcal/internal/ql"
	"qlcal/internal/schedule"
)

const (
	defaultHorizonDays = 366
	// maxExpandedDates caps the disjunction built for rules that have no
	// closed predicate form.
	maxExpandedDates = 400
)

// ErrNoOccurrences is returned for a recurring event with nothing to
// expand inside the import horizon.
var ErrNoOccurrences = errors.New("ics: no occurrences in horizon")

// TranslateOptions controls how a VEVENT becomes a schedule record.
type TranslateOptions struct {
	// Location is the zone dates and clock times are taken in. Nil means UTC.
	Location *time.Location
	// From and HorizonDays bound the expansion of rules that are translated
	// by enumeration.
	From        time.Time
	HorizonDays int
}

func (o TranslateOptions) normalized() TranslateOptions {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.From.IsZero() {
		o.From = time.Now()
	}
	if o.HorizonDays <= 0 {
		o.HorizonDays = defaultHorizonDays
	}
	return o
}

// Import translates every non-override event. Events that cannot be
// translated are logged and returned as errors; the rest are kept.
func Import(events []ParsedEvent, opts TranslateOptions) ([]schedule.Record, []error) {
	opts = opts.normalized()
	var (
		out  []schedule.Record
		errs []error
	)
	for _, ev := range events {
		if ev.IsOverride {
			appLog.Debug("ics override skipped", "uid", ev.UID)
			continue
		}
		rec, err := Translate(ev, opts)
		if err != nil {
			appLog.Warn("ics event not imported", "uid", ev.UID, "summary", ev.Summary, "err", err)
			errs = append(errs, fmt.Errorf("ics: %s: %w", ev.UID, err))
			continue
		}
		out = append(out, rec)
	}
	return out, errs
}

// Translate turns a VEVENT into a record whose predicate matches the dates
// the event occurs on. Common RRULE shapes become closed predicates; the
// rest are enumerated with rrule-go over the horizon.
func Translate(ev ParsedEvent, opts TranslateOptions) (schedule.Record, error) {
	opts = opts.normalized()
	loc := opts.Location

	start := ev.Start.In(loc)
	if ev.AllDay {
		// All-day values are floating dates; do not shift them across zones.
		start = time.Date(ev.Start.Year(), ev.Start.Month(), ev.Start.Day(), 0, 0, 0, 0, loc)
	}
	date := ql.DateOf(start)

	tp := ql.TimePair{Start: ql.TimeOf(start), End: ql.TimeOf(ev.End.In(loc))}
	if ev.AllDay {
		tp = ql.TimePair{Start: ql.Time{}, End: ql.Time{Hour: 23, Minute: 59}}
	}

	var (
		pred ql.Predicate
		err  error
	)
	if ev.RawRRule == "" {
		pred = schedule.DefaultPredicate(date)
	} else {
		pred, err = recurrencePredicate(ev, date, tp.Start, opts)
		if err != nil {
			return schedule.Record{}, err
		}
	}

	title := ev.Summary
	if title == "" {
		title = "(untitled)"
	}
	return schedule.Record{
		Title:       title,
		Description: ev.Description,
		Predicate:   pred.String(),
		TimePair:    tp.String(),
	}, nil
}

func recurrencePredicate(ev ParsedEvent, date ql.Date, at ql.Time, opts TranslateOptions) (ql.Predicate, error) {
	opt, err := rrule.StrToROption(ev.RawRRule)
	if err != nil {
		return nil, fmt.Errorf("parse RRULE %q: %w", ev.RawRRule, err)
	}
	if len(ev.ExDates) == 0 {
		if pred, ok := closedForm(*opt, date, at, opts.Location); ok {
			return pred, nil
		}
	}
	return enumerate(ev, *opt, opts)
}

// closedForm handles DAILY, WEEKLY, MONTHLY by month day and YEARLY by month
// and month day, optionally bounded by UNTIL.
func closedForm(opt rrule.ROption, date ql.Date, at ql.Time, loc *time.Location) (ql.Predicate, bool) {
	if opt.Count > 0 || len(opt.Bysetpos) > 0 || len(opt.Byyearday) > 0 || len(opt.Byweekno) > 0 ||
		len(opt.Byhour) > 0 || len(opt.Byminute) > 0 || len(opt.Bysecond) > 0 || len(opt.Byeaster) > 0 {
		return nil, false
	}
	interval := max(opt.Interval, 1)

	terms := []ql.Predicate{onOrAfter(date)}
	switch opt.Freq {
	case rrule.DAILY:
		if interval != 1 || len(opt.Bymonth) > 0 || len(opt.Bymonthday) > 0 || len(opt.Byweekday) > 0 {
			return nil, false
		}

	case rrule.WEEKLY:
		if len(opt.Bymonth) > 0 || len(opt.Bymonthday) > 0 {
			return nil, false
		}
		days := []ql.Weekday{date.Weekday()}
		if len(opt.Byweekday) > 0 {
			days = days[:0]
			for _, wd := range opt.Byweekday {
				if wd.N() != 0 {
					return nil, false
				}
				days = append(days, ql.Weekday(wd.Day()))
			}
		}
		if interval > 1 {
			// nw counts whole weeks from the start date, which lines up
			// with RRULE weeks only when the rule repeats the start weekday.
			if len(days) != 1 || days[0] != date.Weekday() {
				return nil, false
			}
			terms = append(terms, ql.Equality{
				Left:  ql.Modulo{Left: ql.NumberOfWeeks{Low: ql.PlaceholderDate, High: date}, Right: ql.Number(interval)},
				Right: ql.Number(0),
			})
		}
		var alts []ql.Predicate
		for _, d := range days {
			alts = append(alts, ql.Equality{Left: ql.PlaceholderWeekday, Right: d})
		}
		terms = append(terms, anyOf(alts...))

	case rrule.MONTHLY:
		if interval != 1 || len(opt.Bymonth) > 0 || len(opt.Byweekday) > 0 || len(opt.Bymonthday) > 1 {
			return nil, false
		}
		day, ok := monthDay(opt, date)
		if !ok {
			return nil, false
		}
		terms = append(terms, ql.Equality{Left: ql.PlaceholderMonthday, Right: ql.Number(day)})

	case rrule.YEARLY:
		if interval != 1 || len(opt.Byweekday) > 0 || len(opt.Bymonth) > 1 || len(opt.Bymonthday) > 1 {
			return nil, false
		}
		month := ql.Month(date.Month)
		if len(opt.Bymonth) == 1 {
			month = ql.Month(opt.Bymonth[0])
		}
		day, ok := monthDay(opt, date)
		if !ok {
			return nil, false
		}
		terms = append(terms,
			ql.Equality{Left: ql.PlaceholderMonth, Right: month},
			ql.Equality{Left: ql.PlaceholderMonthday, Right: ql.Number(day)},
		)

	default:
		return nil, false
	}

	if !opt.Until.IsZero() {
		terms = append(terms, onOrBefore(lastDate(opt.Until.In(loc), at, loc)))
	}
	return allOf(terms...), true
}

func monthDay(opt rrule.ROption, date ql.Date) (int, bool) {
	if len(opt.Bymonthday) == 0 {
		return date.Day, true
	}
	d := opt.Bymonthday[0]
	return d, d >= 1 && d <= 31
}

// lastDate is the last date an occurrence at clock time at can fall on
// without passing until.
func lastDate(until time.Time, at ql.Time, loc *time.Location) ql.Date {
	d := ql.DateOf(until)
	if at.On(d, loc).After(until) {
		d = d.AddDays(-1)
	}
	return d
}

// enumerate expands the rule with rrule-go and matches the resulting dates
// one by one.
func enumerate(ev ParsedEvent, opt rrule.ROption, opts TranslateOptions) (ql.Predicate, error) {
	opt.Dtstart = ev.Start
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("build RRULE %q: %w", ev.RawRRule, err)
	}
	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	from := opts.From
	to := from.AddDate(0, 0, opts.HorizonDays)
	times := set.Between(from, to, true)
	if len(times) == 0 {
		return nil, ErrNoOccurrences
	}
	if len(times) > maxExpandedDates {
		appLog.Warn("ics expansion truncated", "uid", ev.UID, "count", len(times), "cap", maxExpandedDates)
		times = times[:maxExpandedDates]
	}

	var alts []ql.Predicate
	seen := make(map[ql.Date]bool)
	for _, t := range times {
		d := ql.DateOf(t.In(opts.Location))
		if ev.AllDay {
			d = ql.DateOf(t)
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		alts = append(alts, schedule.DefaultPredicate(d))
	}
	return anyOf(alts...), nil
}

func onOrAfter(d ql.Date) ql.Predicate {
	return ql.Comparison{GreaterThan: true, OrEqual: true, Left: ql.PlaceholderDate, Right: d}
}

func onOrBefore(d ql.Date) ql.Predicate {
	return ql.Comparison{OrEqual: true, Left: ql.PlaceholderDate, Right: d}
}

func allOf(ps ...ql.Predicate) ql.Predicate {
	out := ps[0]
	for _, p := range ps[1:] {
		out = ql.And{Left: out, Right: p}
	}
	return out
}

func anyOf(ps ...ql.Predicate) ql.Predicate {
	out := ps[0]
	for _, p := range ps[1:] {
		out = ql.Or{Left: out, Right: p}
	}
	return out
}
