package schedule

import (
	appLog "qlcal/internal/log"
)

// Record is the persisted form of an Event. Predicate and TimePair hold
// canonical QL text and are re-parsed on load.
type Record struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Predicate   string `yaml:"predicate" json:"predicate"`
	TimePair    string `yaml:"time_pair" json:"time_pair"`
}

// Record renders e in its persisted form.
func (e Event) Record() Record {
	pred := ""
	if e.Predicate != nil {
		pred = e.Predicate.String()
	}
	return Record{
		Title:       e.Title,
		Description: e.Description,
		Predicate:   pred,
		TimePair:    e.TimePair.String(),
	}
}

// Event parses r. It fails the same way NewEvent does.
func (r Record) Event() (Event, error) {
	return NewEvent(r.Title, r.Description, r.Predicate, r.TimePair)
}

// FromRecords rebuilds a Schedule. Records that fail to parse are dropped
// and logged; they never fail the whole load.
func FromRecords(records []Record) *Schedule {
	s := New()
	for i, r := range records {
		e, err := r.Event()
		if err != nil {
			appLog.Debug("schedule: dropping unparseable record", "index", i, "title", r.Title, "err", err)
			continue
		}
		s.Add(e)
	}
	return s
}

// Records returns the persisted form of every event in insertion order.
func (s *Schedule) Records() []Record {
	out := make([]Record, 0, s.Len())
	for _, e := range s.All() {
		out = append(out, e.Record())
	}
	return out
}
