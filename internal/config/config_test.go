package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"qlcal/internal/ql"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("first-run config (-want +got):\n%s", diff)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if diff := cmp.Diff(cfg, again); diff != "" {
		t.Errorf("reload mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
listen: ":9000"
upcoming_within: "soon"
store:
  backend: sqlite
caldav:
  url: https://dav.example.com/
  calendar_path: /calendars/me/work/
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9000" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.UpcomingWithin != "3:00" || cfg.Within() != (ql.Time{Hour: 3}) {
		t.Errorf("upcoming_within not defaulted: %q", cfg.UpcomingWithin)
	}
	if cfg.Store.Path != "events.db" {
		t.Errorf("sqlite path = %q", cfg.Store.Path)
	}
	if !cfg.CalDAV.Enabled() {
		t.Errorf("caldav should be enabled")
	}
	if cfg.HorizonDays != 7 || cfg.RefreshCron == "" {
		t.Errorf("defaults missing: %+v", cfg)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen: [\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestResolvePaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResolvePaths("/etc/qlcal/config.yaml")
	if cfg.Store.Path != "/etc/qlcal/events.yaml" {
		t.Errorf("path = %q", cfg.Store.Path)
	}
	if cfg.CacheDir != "/etc/qlcal/ics-cache" {
		t.Errorf("cache dir = %q", cfg.CacheDir)
	}
	cfg.ResolvePaths("/other/config.yaml")
	if cfg.Store.Path != "/etc/qlcal/events.yaml" {
		t.Errorf("absolute path rewritten to %q", cfg.Store.Path)
	}
}

func TestLocationFallback(t *testing.T) {
	cfg := &Config{Timezone: "Nowhere/Special"}
	if cfg.Location().String() != "UTC" {
		t.Errorf("expected UTC fallback, got %v", cfg.Location())
	}
}
