package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/TWRT/taskboard/internal/scheduler"
)

const (
	StoreSQLite = "sqlite"
	StoreCSV    = "csv"
)

type Config struct {
	Store          string        `mapstructure:"store"`
	DBPath         string        `mapstructure:"db_path"`
	DBDriver       string        `mapstructure:"db_driver"`
	CSVPath        string        `mapstructure:"csv_path"`
	Addr           string        `mapstructure:"addr"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	WorkStartHour  int           `mapstructure:"work_start_hour"`
	WorkEndHour    int           `mapstructure:"work_end_hour"`
	LunchStartHour int           `mapstructure:"lunch_start_hour"`
	LunchEndHour   int           `mapstructure:"lunch_end_hour"`
}

var defaults = map[string]any{
	"store":            StoreSQLite,
	"db_path":          "./tasks.db",
	"db_driver":        "sqlite",
	"csv_path":         "./tasks.csv",
	"addr":             ":8080",
	"poll_interval":    "3s",
	"work_start_hour":  9,
	"work_end_hour":    17,
	"lunch_start_hour": 12,
	"lunch_end_hour":   13,
}

// Load reads .env, then defaults, an optional taskboard.yaml and TASKBOARD_*
// environment variables, later sources winning. An explicit path must exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[config] .env: %v", err)
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("TASKBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("taskboard")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".taskboard"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store {
	case StoreSQLite, StoreCSV:
	default:
		return fmt.Errorf("store must be %q or %q, got %q", StoreSQLite, StoreCSV, c.Store)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	_, err := c.WorkingHours()
	return err
}

func (c *Config) WorkingHours() (scheduler.WorkingHours, error) {
	return scheduler.NewWorkingHours(c.WorkStartHour, c.LunchStartHour, c.LunchEndHour, c.WorkEndHour)
}
