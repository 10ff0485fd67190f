package model

import "time"

// Occurrence is a single concrete instance of a scheduled event: the event
// materialized on one date whose predicate matched.
type Occurrence struct {
	// EventID is the schedule identifier of the source event.
	EventID uint64 `json:"event_id"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// Predicate is the canonical text of the event's recurrence predicate.
	Predicate string `json:"predicate"`

	// Date is the matched calendar date, YYYY-MM-DD.
	Date string `json:"date"`

	// Start / End are in the configured display timezone. When the stored
	// time pair crosses midnight, End falls on the following day and
	// Overnight is set.
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Overnight bool      `json:"overnight,omitempty"`
}

// InstanceKey uniquely identifies one occurrence of one event.
func (o Occurrence) InstanceKey() string {
	return o.Predicate + "@" + o.Date
}
