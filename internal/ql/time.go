package ql

import (
	"fmt"
	"time"
)

// Time is a wall clock time with minute resolution.
type Time struct {
	Hour   int
	Minute int
}

// TimeOf returns the clock time of t, dropping seconds.
func TimeOf(t time.Time) Time {
	return Time{Hour: t.Hour(), Minute: t.Minute()}
}

// Minutes returns the minutes elapsed since midnight.
func (t Time) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t Time) Duration() time.Duration {
	return time.Duration(t.Minutes()) * time.Minute
}

// On returns t on date d in loc.
func (t Time) On(d Date, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, t.Hour, t.Minute, 0, 0, loc)
}

func (t Time) String() string {
	return fmt.Sprintf("%d:%02d", t.Hour, t.Minute)
}

// TimePair is the start-end clock range of an event. Start is not required
// to precede End.
type TimePair struct {
	Start Time
	End   Time
}

func (p TimePair) String() string {
	return p.Start.String() + "-" + p.End.String()
}
