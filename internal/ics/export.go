package ics

import (
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"qlcal/internal/model"
)

const productID = "-//qlcal//EN"

// uidNamespace scopes occurrence UIDs so they do not collide with UUIDs
// minted by other producers.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:qlcal:occurrence"))

// OccurrenceUID is stable for the same event text on the same date, so a
// re-export updates objects instead of duplicating them.
func OccurrenceUID(o model.Occurrence) string {
	key := o.Title + "\x00" + o.InstanceKey()
	return uuid.NewSHA1(uidNamespace, []byte(key)).String()
}

// NewCalendar returns an empty VCALENDAR with the required properties set.
func NewCalendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	return cal
}

// Event converts one occurrence into a VEVENT. Times are written in UTC.
func Event(o model.Occurrence, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, OccurrenceUID(o))
	ve.Props.SetText(ical.PropSummary, o.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, o.Start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, o.End.UTC())
	if o.Description != "" {
		ve.Props.SetText(ical.PropDescription, o.Description)
	}
	return ve
}

// Export builds a calendar holding one VEVENT per occurrence.
func Export(occ []model.Occurrence, stamp time.Time) *ical.Calendar {
	cal := NewCalendar()
	for _, o := range occ {
		cal.Children = append(cal.Children, Event(o, stamp))
	}
	return cal
}

// Encode writes cal in iCalendar format.
func Encode(w io.Writer, cal *ical.Calendar) error {
	return ical.NewEncoder(w).Encode(cal)
}
