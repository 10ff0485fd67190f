package schedule

import (
	"iter"
	"slices"
	"time"

	"qlcal/internal/model"
	"qlcal/internal/ql"
)

// ID identifies an event for the lifetime of a Schedule. IDs are never
// reused, so cancelling one event does not invalidate the others.
type ID uint64

// Schedule is an insertion-ordered store of events. It is not safe for
// concurrent use; callers serialize mutations.
type Schedule struct {
	next   ID
	order  []ID
	events map[ID]Event
}

func New() *Schedule {
	return &Schedule{next: 1, events: make(map[ID]Event)}
}

// Edit carries the optional replacement fields for Schedule.Edit. A nil
// field leaves the event's value untouched.
type Edit struct {
	Title       *string
	Description *string
	Predicate   ql.Predicate
	TimePair    *ql.TimePair
}

// Add appends e and returns its ID.
func (s *Schedule) Add(e Event) ID {
	if s.events == nil {
		s.events = make(map[ID]Event)
	}
	if s.next == 0 {
		s.next = 1
	}
	id := s.next
	s.next++
	s.order = append(s.order, id)
	s.events[id] = e
	return id
}

// Cancel removes the event and returns it. It reports false for an unknown ID.
func (s *Schedule) Cancel(id ID) (Event, bool) {
	e, ok := s.events[id]
	if !ok {
		return Event{}, false
	}
	delete(s.events, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return e, true
}

// Edit applies the non-nil fields of ed to the event. An unknown ID is a
// no-op and reports false.
func (s *Schedule) Edit(id ID, ed Edit) bool {
	e, ok := s.events[id]
	if !ok {
		return false
	}
	if ed.Title != nil {
		e.Title = *ed.Title
	}
	if ed.Description != nil {
		e.Description = *ed.Description
	}
	if ed.Predicate != nil {
		e.Predicate = ed.Predicate
	}
	if ed.TimePair != nil {
		e.TimePair = *ed.TimePair
	}
	s.events[id] = e
	return true
}

// Clone returns an independent copy with the same IDs. Events are values,
// so edits to the copy never reach s.
func (s *Schedule) Clone() *Schedule {
	c := &Schedule{
		next:   s.next,
		order:  slices.Clone(s.order),
		events: make(map[ID]Event, len(s.events)),
	}
	for id, e := range s.events {
		c.events[id] = e
	}
	return c
}

func (s *Schedule) Get(id ID) (Event, bool) {
	e, ok := s.events[id]
	return e, ok
}

// At returns the i-th event in insertion order.
func (s *Schedule) At(i int) (ID, Event, bool) {
	if i < 0 || i >= len(s.order) {
		return 0, Event{}, false
	}
	id := s.order[i]
	return id, s.events[id], true
}

func (s *Schedule) Len() int {
	return len(s.order)
}

// All yields every event in insertion order.
func (s *Schedule) All() iter.Seq2[ID, Event] {
	return func(yield func(ID, Event) bool) {
		for _, id := range s.order {
			if !yield(id, s.events[id]) {
				return
			}
		}
	}
}

// EventsOn lazily yields the events whose predicate holds under ctx. A
// predicate that fails to evaluate is treated as not matching. Each call
// starts a fresh pass.
func (s *Schedule) EventsOn(ctx ql.Context) iter.Seq2[ID, Event] {
	return func(yield func(ID, Event) bool) {
		for id, e := range s.All() {
			if !e.Matches(ctx) {
				continue
			}
			if !yield(id, e) {
				return
			}
		}
	}
}

// Upcoming yields the events on date that start no later than now+within and
// have not ended before now. Times are compared as minutes since midnight and
// do not wrap into the next day.
func (s *Schedule) Upcoming(date ql.Date, now, within ql.Time) iter.Seq2[ID, Event] {
	horizon := now.Minutes() + within.Minutes()
	return func(yield func(ID, Event) bool) {
		for id, e := range s.EventsOn(ql.Context{Date: date}) {
			if horizon < e.TimePair.Start.Minutes() || e.TimePair.End.Minutes() < now.Minutes() {
				continue
			}
			if !yield(id, e) {
				return
			}
		}
	}
}

// Occurrences materializes every match over [from, from+days), ordered by
// date and then by insertion order.
func (s *Schedule) Occurrences(from ql.Date, days int, loc *time.Location) []model.Occurrence {
	if loc == nil {
		loc = time.UTC
	}
	var out []model.Occurrence
	for i := range days {
		d := from.AddDays(i)
		for id, e := range s.EventsOn(ql.Context{Date: d}) {
			out = append(out, occurrence(id, e, d, loc))
		}
	}
	return out
}

func occurrence(id ID, e Event, d ql.Date, loc *time.Location) model.Occurrence {
	start := e.TimePair.Start.On(d, loc)
	end := e.TimePair.End.On(d, loc)
	overnight := end.Before(start)
	if overnight {
		end = e.TimePair.End.On(d.AddDays(1), loc)
	}
	return model.Occurrence{
		EventID:     uint64(id),
		Title:       e.Title,
		Description: e.Description,
		Predicate:   e.Predicate.String(),
		Date:        d.String(),
		Start:       start,
		End:         end,
		Overnight:   overnight,
	}
}
