package schedule

import (
	"errors"
	"fmt"
	"strings"

	"qlcal/internal/ql"
)

// ErrEmptyTitle is returned by RequireTitle for a blank title.
var ErrEmptyTitle = errors.New("schedule: title is empty")

// RequireTitle rejects a blank title. Forms check it before creating or
// renaming an event; the schedule itself stores any title.
func RequireTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// FieldError reports which text field of an event failed to parse.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("schedule: invalid %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Event is a titled recurrence: it happens on every date its Predicate holds
// for, during TimePair. An empty Description means no description.
type Event struct {
	Title       string
	Description string
	Predicate   ql.Predicate
	TimePair    ql.TimePair
}

// NewEvent builds an Event from its text form. Construction fails if either
// the predicate or the time pair does not parse.
func NewEvent(title, description, predicate, timePair string) (Event, error) {
	pred, err := ql.ParsePredicate(predicate)
	if err != nil {
		return Event{}, &FieldError{Field: "predicate", Err: err}
	}
	tp, err := ql.ParseTimePair(timePair)
	if err != nil {
		return Event{}, &FieldError{Field: "time_pair", Err: err}
	}
	return Event{
		Title:       title,
		Description: description,
		Predicate:   pred,
		TimePair:    tp,
	}, nil
}

// DefaultPredicate matches exactly one date. Forms use it when the user
// leaves the predicate blank.
func DefaultPredicate(d ql.Date) ql.Predicate {
	return ql.Equality{Left: ql.PlaceholderDate, Right: d}
}

// Matches reports whether e occurs under ctx. Evaluation errors count as no
// match.
func (e Event) Matches(ctx ql.Context) bool {
	if e.Predicate == nil {
		return false
	}
	ok, err := e.Predicate.Test(ctx)
	return err == nil && ok
}

func (e Event) String() string {
	return fmt.Sprintf("%s [%v] %v", e.Title, e.TimePair, e.Predicate)
}
