package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"qlcal/internal/caldav"
	"qlcal/internal/config"
	"qlcal/internal/ics"
	appLog "qlcal/internal/log"
	"qlcal/internal/refresh"
	"qlcal/internal/store"
	"qlcal/internal/web"
)

const version = "0.1.0"

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		appLog.Error("qlcal failed", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "qlcal",
		Usage:   "Schedule events with date predicates and serve the agenda.",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "/etc/qlcal/config.yaml",
				Usage:   "Path to config file",
				EnvVars: []string{"QLCAL_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error (overrides config)",
				EnvVars: []string{"QLCAL_LOG_LEVEL", "LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			agendaCommand(),
			addCommand(),
			editCommand(),
			cancelCommand(),
			evalCommand(),
			importCommand(),
			exportCommand(),
			publishCommand(),
		},
	}
}

// loadConfig reads the config named by --config and applies the log level.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg.ResolvePaths(path)

	level := cfg.LogLevel
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	lvl, err := appLog.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	appLog.SetLevel(lvl)
	return cfg, nil
}

// newPublisher returns nil when CalDAV is not configured. The interface is
// only assigned on success so callers never see a typed nil.
func newPublisher(ctx context.Context, cfg *config.Config) (refresh.Publisher, error) {
	if !cfg.CalDAV.Enabled() {
		return nil, nil
	}
	p, err := caldav.New(ctx, *cfg.CalDAV, nil)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the JSON API and refresh feeds on the configured schedule.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "HTTP listen address (overrides config)"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what feeds would import without changing the schedule."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if c.IsSet("listen") {
				cfg.Listen = c.String("listen")
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := store.Open(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close()
			sched, err := store.LoadSchedule(ctx, st)
			if err != nil {
				return err
			}

			appLog.Info("effective config",
				"listen", cfg.Listen,
				"timezone", cfg.Timezone,
				"refresh", cfg.RefreshCron,
				"horizon_days", cfg.HorizonDays,
				"store", cfg.Store.Backend,
				"ics_count", len(cfg.ICS),
				"caldav", cfg.CalDAV.Enabled(),
				"events", sched.Len(),
			)

			srv := web.NewServer(cfg, sched, st)

			pub, err := newPublisher(ctx, cfg)
			if err != nil {
				return err
			}
			if len(cfg.ICS) > 0 || pub != nil {
				ref := refresh.New(cfg, ics.NewFetcher(cfg.CacheDir, nil), srv, pub, c.Bool("dry-run"))
				stopCron, err := startRefresh(ctx, cfg, ref)
				if err != nil {
					return err
				}
				defer stopCron()
			}

			return srv.ListenAndServe(ctx)
		},
	}
}

// startRefresh runs ref once now and then on cfg.RefreshCron. Ticks that
// arrive while a cycle is still running are skipped.
func startRefresh(ctx context.Context, cfg *config.Config, ref *refresh.Refresher) (func(), error) {
	run := func() {
		if _, err := ref.Run(ctx); err != nil {
			appLog.Error("refresh cycle failed", err)
		}
	}

	sched := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	if _, err := sched.AddFunc(cfg.RefreshCron, run); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", cfg.RefreshCron, err)
	}
	sched.Start()
	go run()

	appLog.Info("refresh scheduled", "cron", cfg.RefreshCron)
	return func() { <-sched.Stop().Done() }, nil
}
