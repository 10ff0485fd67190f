package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"qlcal/internal/config"
	"qlcal/internal/ics"
	appLog "qlcal/internal/log"
	"qlcal/internal/model"
	"qlcal/internal/ql"
	"qlcal/internal/refresh"
	"qlcal/internal/schedule"
	"qlcal/internal/store"
)

// session is a schedule loaded from the configured store for one command.
// Update saves the whole schedule back after every successful change and
// keeps the loaded schedule when the save fails.
type session struct {
	cfg   *config.Config
	st    store.Store
	sched *schedule.Schedule
}

func openSession(c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(c.Context, cfg.Store)
	if err != nil {
		return nil, err
	}
	sched, err := store.LoadSchedule(c.Context, st)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &session{cfg: cfg, st: st, sched: sched}, nil
}

func (s *session) View(fn func(*schedule.Schedule)) { fn(s.sched) }

func (s *session) Update(ctx context.Context, fn func(*schedule.Schedule) error) error {
	next := s.sched.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := s.st.Save(ctx, next.Records()); err != nil {
		return err
	}
	s.sched = next
	return nil
}

func (s *session) Close() error { return s.st.Close() }

func (s *session) today() ql.Date {
	return ql.DateOf(time.Now().In(s.cfg.Location()))
}

// dateFlag parses a YYYY-MM-DD flag, defaulting to today.
func (s *session) dateFlag(c *cli.Context, name string) (ql.Date, error) {
	v := c.String(name)
	if v == "" {
		return s.today(), nil
	}
	d, err := ql.ParseDate(v)
	if err != nil {
		return ql.Date{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

// occurrences materializes --from/--days, falling back to today and the
// configured horizon.
func (s *session) occurrences(c *cli.Context) ([]model.Occurrence, error) {
	from, err := s.dateFlag(c, "from")
	if err != nil {
		return nil, err
	}
	days := s.cfg.HorizonDays
	if c.IsSet("days") {
		days = c.Int("days")
	}
	if days <= 0 {
		return nil, fmt.Errorf("--days must be positive, got %d", days)
	}
	return s.sched.Occurrences(from, days, s.cfg.Location()), nil
}

var rangeFlags = []cli.Flag{
	&cli.StringFlag{Name: "from", Usage: "First date (YYYY-MM-DD), default today"},
	&cli.IntFlag{Name: "days", Usage: "Number of days, default horizon_days from config"},
}

func parseID(c *cli.Context) (schedule.ID, error) {
	arg := c.Args().First()
	n, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("expected an event id, got %q", arg)
	}
	return schedule.ID(n), nil
}

func agendaCommand() *cli.Command {
	return &cli.Command{
		Name:  "agenda",
		Usage: "Print the events occurring in a date range.",
		Flags: rangeFlags,
		Action: func(c *cli.Context) error {
			s, err := openSession(c)
			if err != nil {
				return err
			}
			defer s.Close()

			occ, err := s.occurrences(c)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			for _, o := range occ {
				end := o.End.Format("15:04")
				if o.Overnight {
					end += "+1"
				}
				fmt.Fprintf(tw, "%s\t%s-%s\t%d\t%s\n", o.Date, o.Start.Format("15:04"), end, o.EventID, o.Title)
			}
			return tw.Flush()
		},
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Add an event.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}},
			&cli.StringFlag{Name: "predicate", Aliases: []string{"p"}, Usage: "Dates the event occurs on, default only --date"},
			&cli.StringFlag{Name: "time", Required: true, Usage: "Time pair, e.g. 9:00-10:30"},
			&cli.StringFlag{Name: "date", Usage: "Date for the default predicate (YYYY-MM-DD), default today"},
		},
		Action: func(c *cli.Context) error {
			s, err := openSession(c)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := schedule.RequireTitle(c.String("title")); err != nil {
				return err
			}
			pred := c.String("predicate")
			if strings.TrimSpace(pred) == "" {
				d, err := s.dateFlag(c, "date")
				if err != nil {
					return err
				}
				pred = schedule.DefaultPredicate(d).String()
			}
			e, err := schedule.NewEvent(c.String("title"), c.String("description"), pred, c.String("time"))
			if err != nil {
				return err
			}

			var id schedule.ID
			if err := s.Update(c.Context, func(sched *schedule.Schedule) error {
				id = sched.Add(e)
				return nil
			}); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%d\t%v\n", id, e)
			return nil
		},
	}
}

func editCommand() *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Change fields of an event. Unset flags are left alone.",
		ArgsUsage: "ID",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}},
			&cli.StringFlag{Name: "predicate", Aliases: []string{"p"}},
			&cli.StringFlag{Name: "time"},
		},
		Action: func(c *cli.Context) error {
			id, err := parseID(c)
			if err != nil {
				return err
			}
			var ed schedule.Edit
			if c.IsSet("title") {
				title := c.String("title")
				if err := schedule.RequireTitle(title); err != nil {
					return err
				}
				ed.Title = &title
			}
			if c.IsSet("description") {
				desc := c.String("description")
				ed.Description = &desc
			}
			if c.IsSet("predicate") {
				if ed.Predicate, err = ql.ParsePredicate(c.String("predicate")); err != nil {
					return &schedule.FieldError{Field: "predicate", Err: err}
				}
			}
			if c.IsSet("time") {
				tp, err := ql.ParseTimePair(c.String("time"))
				if err != nil {
					return &schedule.FieldError{Field: "time_pair", Err: err}
				}
				ed.TimePair = &tp
			}

			s, err := openSession(c)
			if err != nil {
				return err
			}
			defer s.Close()

			var e schedule.Event
			if err := s.Update(c.Context, func(sched *schedule.Schedule) error {
				if !sched.Edit(id, ed) {
					return fmt.Errorf("no event with id %d", id)
				}
				e, _ = sched.Get(id)
				return nil
			}); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%d\t%v\n", id, e)
			return nil
		},
	}
}

func cancelCommand() *cli.Command {
	return &cli.Command{
		Name:      "cancel",
		Usage:     "Remove an event.",
		ArgsUsage: "ID",
		Action: func(c *cli.Context) error {
			id, err := parseID(c)
			if err != nil {
				return err
			}
			s, err := openSession(c)
			if err != nil {
				return err
			}
			defer s.Close()

			var e schedule.Event
			if err := s.Update(c.Context, func(sched *schedule.Schedule) error {
				var ok bool
				if e, ok = sched.Cancel(id); !ok {
					return fmt.Errorf("no event with id %d", id)
				}
				return nil
			}); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "cancelled %d\t%v\n", id, e)
			return nil
		},
	}
}

func evalCommand() *cli.Command {
	return &cli.Command{
		Name:      "eval",
		Usage:     "Evaluate an expression against a date.",
		ArgsUsage: "EXPRESSION",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Usage: "Context date (YYYY-MM-DD), default today"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			s := &session{cfg: cfg}
			date, err := s.dateFlag(c, "date")
			if err != nil {
				return err
			}
			expr, err := ql.ParseExpression(strings.Join(c.Args().Slice(), " "))
			if err != nil {
				return err
			}
			v, err := expr.Evaluate(ql.Context{Date: date})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%v\t%s\n", v, ql.TypeName(v))
			return nil
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import ICS files, or the configured feeds when no file is given.",
		ArgsUsage: "[FILE...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would be imported without changing the schedule."},
		},
		Action: func(c *cli.Context) error {
			s, err := openSession(c)
			if err != nil {
				return err
			}
			defer s.Close()

			ref := refresh.New(s.cfg, ics.NewFetcher(s.cfg.CacheDir, nil), s, nil, c.Bool("dry-run"))
			if c.NArg() == 0 {
				res, err := ref.Run(c.Context)
				fmt.Fprintf(c.App.Writer, "feeds %d, events %d, added %d, skipped %d\n", res.Feeds, res.Parsed, res.Added, res.Skipped)
				return err
			}

			var (
				records []schedule.Record
				errs    []error
			)
			opts := ics.TranslateOptions{Location: s.cfg.Location(), From: time.Now()}
			for _, path := range c.Args().Slice() {
				body, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				events, err := ics.ParseICS(ics.Source{ID: filepath.Base(path), URL: path}, body)
				if err != nil {
					return err
				}
				recs, terrs := ics.Import(events, opts)
				records = append(records, recs...)
				errs = append(errs, terrs...)
			}
			added, skipped, err := ref.Merge(c.Context, records)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "added %d, skipped %d, failed %d\n", added, skipped, len(errs))
			return errors.Join(errs...)
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write occurrences in a date range as an iCalendar file.",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file, default stdout"},
		}, rangeFlags...),
		Action: func(c *cli.Context) error {
			s, err := openSession(c)
			if err != nil {
				return err
			}
			defer s.Close()

			occ, err := s.occurrences(c)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := ics.Encode(&buf, ics.Export(occ, time.Now())); err != nil {
				return err
			}
			out := c.String("out")
			if out == "" {
				_, err := c.App.Writer.Write(buf.Bytes())
				return err
			}
			if err := config.WriteFileAtomic(out, buf.Bytes()); err != nil {
				return err
			}
			appLog.Info("exported occurrences", "count", len(occ), "path", out)
			return nil
		},
	}
}

func publishCommand() *cli.Command {
	return &cli.Command{
		Name:  "publish",
		Usage: "Upload occurrences in a date range to the configured CalDAV calendar.",
		Flags: rangeFlags,
		Action: func(c *cli.Context) error {
			s, err := openSession(c)
			if err != nil {
				return err
			}
			defer s.Close()

			pub, err := newPublisher(c.Context, s.cfg)
			if err != nil {
				return err
			}
			if pub == nil {
				return errors.New("caldav is not configured")
			}
			occ, err := s.occurrences(c)
			if err != nil {
				return err
			}
			n, err := pub.Publish(c.Context, occ)
			fmt.Fprintf(c.App.Writer, "published %d of %d\n", n, len(occ))
			return err
		},
	}
}
