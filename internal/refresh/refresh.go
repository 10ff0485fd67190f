package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qlcal/internal/config"
	"qlcal/internal/ics"
	appLog "qlcal/internal/log"
	"qlcal/internal/model"
	"qlcal/internal/ql"
	"qlcal/internal/schedule"
)

// Schedule is the shared, persisted schedule a refresh merges into.
// *web.Server satisfies it.
type Schedule interface {
	View(fn func(*schedule.Schedule))
	Update(ctx context.Context, fn func(*schedule.Schedule) error) error
}

// Publisher receives the agenda after every refresh.
type Publisher interface {
	Publish(ctx context.Context, occ []model.Occurrence) (int, error)
}

// Result summarizes one refresh cycle.
type Result struct {
	Feeds     int
	Parsed    int
	Added     int
	Skipped   int
	Published int
}

// Refresher imports the configured ICS feeds into a schedule and publishes
// the resulting agenda.
type Refresher struct {
	cfg       *config.Config
	fetcher   *ics.Fetcher
	sched     Schedule
	publisher Publisher
	dryRun    bool
	now       func() time.Time
}

// New creates a Refresher. A nil publisher skips publishing.
func New(cfg *config.Config, fetcher *ics.Fetcher, sched Schedule, publisher Publisher, dryRun bool) *Refresher {
	return &Refresher{
		cfg:       cfg,
		fetcher:   fetcher,
		sched:     sched,
		publisher: publisher,
		dryRun:    dryRun,
		now:       time.Now,
	}
}

// Sources maps the configured feeds to fetch sources. A feed without an ID
// is keyed by its name, then its position.
func Sources(feeds []config.ICSConfig) []ics.Source {
	out := make([]ics.Source, 0, len(feeds))
	for i, f := range feeds {
		id := f.ID
		if id == "" {
			id = f.Name
		}
		if id == "" {
			id = fmt.Sprintf("feed-%d", i+1)
		}
		out = append(out, ics.Source{ID: id, URL: f.URL})
	}
	return out
}

// Run performs one cycle: fetch every feed, translate its events, add the
// records the schedule does not already hold, then publish the agenda.
// Failed feeds and untranslatable events do not stop the cycle; they are
// returned joined.
func (r *Refresher) Run(ctx context.Context) (Result, error) {
	var (
		res  Result
		errs []error
	)
	now := r.now()
	loc := r.cfg.Location()
	appLog.Info("refresh cycle start", "feeds", len(r.cfg.ICS), "dry_run", r.dryRun)

	records, ferrs := r.importFeeds(ctx, now, loc, &res)
	errs = append(errs, ferrs...)

	added, skipped, err := r.Merge(ctx, records)
	if err != nil {
		return res, fmt.Errorf("refresh: merge: %w", err)
	}
	res.Added, res.Skipped = added, skipped

	if r.publisher != nil && !r.dryRun {
		var occ []model.Occurrence
		r.sched.View(func(s *schedule.Schedule) {
			occ = s.Occurrences(ql.DateOf(now.In(loc)), r.cfg.HorizonDays, loc)
		})
		n, err := r.publisher.Publish(ctx, occ)
		res.Published = n
		if err != nil {
			errs = append(errs, fmt.Errorf("refresh: publish: %w", err))
		}
	}

	appLog.Info("refresh cycle done",
		"feeds", res.Feeds,
		"parsed", res.Parsed,
		"added", res.Added,
		"skipped", res.Skipped,
		"published", res.Published,
		"errors", len(errs),
	)
	return res, errors.Join(errs...)
}

func (r *Refresher) importFeeds(ctx context.Context, now time.Time, loc *time.Location, res *Result) ([]schedule.Record, []error) {
	if len(r.cfg.ICS) == 0 || r.fetcher == nil {
		return nil, nil
	}
	results, errs := r.fetcher.FetchAll(ctx, Sources(r.cfg.ICS))
	res.Feeds = len(results)

	opts := ics.TranslateOptions{Location: loc, From: now}
	var out []schedule.Record
	for _, fr := range results {
		events, err := ics.ParseICS(fr.Source, fr.Body)
		if err != nil {
			errs = append(errs, fmt.Errorf("refresh: %w", err))
			continue
		}
		res.Parsed += len(events)
		recs, terrs := ics.Import(events, opts)
		errs = append(errs, terrs...)
		out = append(out, recs...)
	}
	return out, errs
}

// Merge adds records that are not already present. Records are canonical
// text, so an unchanged feed event compares equal to the one imported by an
// earlier cycle.
func (r *Refresher) Merge(ctx context.Context, records []schedule.Record) (added, skipped int, err error) {
	if len(records) == 0 {
		return 0, 0, nil
	}
	if r.dryRun {
		for _, rec := range records {
			appLog.Info("dry run: would import", "title", rec.Title, "predicate", rec.Predicate, "time_pair", rec.TimePair)
		}
		return 0, len(records), nil
	}

	err = r.sched.Update(ctx, func(s *schedule.Schedule) error {
		have := make(map[schedule.Record]bool, s.Len())
		for _, e := range s.All() {
			have[e.Record()] = true
		}
		for _, rec := range records {
			if have[rec] {
				skipped++
				continue
			}
			e, err := rec.Event()
			if err != nil {
				appLog.Warn("imported record rejected", "title", rec.Title, "err", err)
				skipped++
				continue
			}
			s.Add(e)
			have[rec] = true
			added++
		}
		return nil
	})
	return added, skipped, err
}
