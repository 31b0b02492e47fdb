package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store != StoreSQLite || cfg.DBPath != "./tasks.db" || cfg.Addr != ":8080" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.PollInterval != 3*time.Second {
		t.Errorf("poll interval = %s", cfg.PollInterval)
	}
	wh, err := cfg.WorkingHours()
	if err != nil {
		t.Fatal(err)
	}
	if wh.DayStart != 9*time.Hour || wh.LunchEnd != 13*time.Hour {
		t.Errorf("working hours = %+v", wh)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "taskboard.yaml")
	content := "store: csv\ncsv_path: /data/board.csv\npoll_interval: 10s\nwork_start_hour: 8\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TASKBOARD_ADDR", ":9090")
	t.Setenv("TASKBOARD_POLL_INTERVAL", "1s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store != StoreCSV || cfg.CSVPath != "/data/board.csv" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.WorkStartHour != 8 {
		t.Errorf("work start = %d", cfg.WorkStartHour)
	}
	if cfg.Addr != ":9090" || cfg.PollInterval != time.Second {
		t.Errorf("env should win: addr=%s poll=%s", cfg.Addr, cfg.PollInterval)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown store", map[string]string{"TASKBOARD_STORE": "postgres"}},
		{"lunch outside day", map[string]string{"TASKBOARD_LUNCH_START_HOUR": "7"}},
		{"day ends before it starts", map[string]string{"TASKBOARD_WORK_END_HOUR": "8"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(""); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("an explicit config path that does not exist should fail")
	}
}
