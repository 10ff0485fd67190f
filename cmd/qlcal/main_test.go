package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	if err := app.Run(append([]string{"qlcal", "--config", cfgPath}, args...)); err != nil {
		t.Fatalf("qlcal %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func TestAddAgendaCancel(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	out := run(t, cfgPath, "add", "--title", "gym", "--predicate", "wd = fri", "--time", "18:00-19:00")
	if out != "1\tgym [18:00-19:00] wd = fri\n" {
		t.Errorf("add output %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "events.yaml")); err != nil {
		t.Fatalf("store not written next to config: %v", err)
	}

	out = run(t, cfgPath, "agenda", "--from", "2024-03-01", "--days", "2")
	if !strings.Contains(out, "2024-03-01") || !strings.Contains(out, "gym") || strings.Contains(out, "2024-03-02") {
		t.Errorf("agenda output %q", out)
	}

	run(t, cfgPath, "edit", "--time", "7:00-8:00", "1")
	out = run(t, cfgPath, "agenda", "--from", "2024-03-01", "--days", "1")
	if !strings.Contains(out, "07:00-08:00") {
		t.Errorf("agenda after edit %q", out)
	}

	run(t, cfgPath, "cancel", "1")
	if out := run(t, cfgPath, "agenda", "--from", "2024-03-01", "--days", "1"); out != "" {
		t.Errorf("agenda after cancel %q", out)
	}
}

func TestEval(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	out := run(t, cfgPath, "eval", "--date", "2024-03-13", "wd")
	if !strings.HasPrefix(out, "wed\t") {
		t.Errorf("eval output %q", out)
	}
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	run(t, cfgPath, "add", "--title", "review", "--date", "2024-03-01", "--time", "11:00-12:00")

	icsPath := filepath.Join(dir, "out.ics")
	run(t, cfgPath, "export", "--from", "2024-03-01", "--days", "7", "--out", icsPath)
	body, err := os.ReadFile(icsPath)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(body), "BEGIN:VEVENT"); n != 1 {
		t.Errorf("exported %d events:\n%s", n, body)
	}
	if !strings.Contains(string(body), "SUMMARY:review") {
		t.Errorf("missing summary:\n%s", body)
	}
}
