package caldav

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-webdav/caldav"

	"qlcal/internal/config"
	"qlcal/internal/ics"
	appLog "qlcal/internal/log"
	"qlcal/internal/model"
)

// authTransport adds Basic Auth and a User-Agent to each request.
type authTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.Username != "" {
		req.SetBasicAuth(t.Username, t.Password)
	}
	req.Header.Set("User-Agent", "qlcal/1.0")
	return t.Transport.RoundTrip(req)
}

// Publisher writes occurrences into one CalDAV collection, one calendar
// object per occurrence.
type Publisher struct {
	client       *caldav.Client
	calendarPath string
	now          func() time.Time
}

// New connects to cfg.URL. CalendarPath is either a collection path
// ("/calendars/me/work/") or a calendar display name that is looked up in
// the user's calendar home set. A nil base uses http.DefaultTransport.
func New(ctx context.Context, cfg config.CalDAVConfig, base http.RoundTripper) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("caldav: url is empty")
	}
	if base == nil {
		base = http.DefaultTransport
	}
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: &authTransport{Username: cfg.Username, Password: cfg.Password, Transport: base},
	}
	client, err := caldav.NewClient(httpClient, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("caldav: create client: %w", err)
	}

	p := &Publisher{client: client, calendarPath: cfg.CalendarPath, now: time.Now}
	if !strings.HasPrefix(cfg.CalendarPath, "/") {
		calPath, err := p.findCalendar(ctx, cfg.CalendarPath)
		if err != nil {
			return nil, err
		}
		p.calendarPath = calPath
	}
	appLog.Info("caldav calendar resolved", "path", p.calendarPath)
	return p, nil
}

// findCalendar returns the path of the calendar with the given name.
func (p *Publisher) findCalendar(ctx context.Context, name string) (string, error) {
	principal, err := p.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("caldav: find principal: %w", err)
	}
	homeSet, err := p.client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("caldav: find calendar home set: %w", err)
	}
	calendars, err := p.client.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", fmt.Errorf("caldav: find calendars: %w", err)
	}
	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}
	return "", fmt.Errorf("caldav: no calendar named %q", name)
}

// ObjectPath is where the occurrence is stored inside the collection.
func ObjectPath(calendarPath string, o model.Occurrence) string {
	return path.Join(calendarPath, ics.OccurrenceUID(o)+".ics")
}

// Publish uploads every occurrence. Objects are keyed by a stable UID, so
// publishing the same range twice overwrites rather than duplicates. It
// keeps going after a failed upload and returns the number published with
// the joined errors.
func (p *Publisher) Publish(ctx context.Context, occ []model.Occurrence) (int, error) {
	stamp := p.now()
	var (
		n    int
		errs []error
	)
	for _, o := range occ {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		objPath := ObjectPath(p.calendarPath, o)
		cal := ics.Export([]model.Occurrence{o}, stamp)
		if _, err := p.client.PutCalendarObject(ctx, objPath, cal); err != nil {
			appLog.Error("caldav put failed", err, "title", o.Title, "date", o.Date)
			errs = append(errs, fmt.Errorf("caldav: put %s: %w", objPath, err))
			continue
		}
		n++
	}
	appLog.Info("caldav publish completed", "published", n, "failed", len(errs))
	return n, errors.Join(errs...)
}
