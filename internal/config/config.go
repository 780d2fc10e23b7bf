package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"salonbook/internal/calendar"
	"salonbook/internal/slots"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverSupabase = "supabase"
	DriverFailover = "failover"
)

type Config struct {
	App struct {
		Name string `yaml:"name"`
	} `yaml:"app"`

	HTTP HTTPConfig `yaml:"http"`

	Telegram TelegramConfig `yaml:"telegram"`

	Storage struct {
		Driver string `yaml:"driver"`
	} `yaml:"storage"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Supabase SupabaseConfig `yaml:"supabase"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	BusinessHours slots.Hours `yaml:"business_hours"`

	Calendar struct {
		DaysOff     []string          `yaml:"days_off"`
		Holidays    map[string]string `yaml:"holidays"`
		HorizonDays int               `yaml:"horizon_days"`
	} `yaml:"calendar"`

	CatalogPath string `yaml:"catalog_path"`

	Access struct {
		AdminPhones []string `yaml:"admin_phones"`
		JWTSecret   string   `yaml:"jwt_secret"`
	} `yaml:"access"`

	Session struct {
		TimeoutMinutes int `yaml:"timeout_minutes"`
	} `yaml:"session"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Backup BackupConfig `yaml:"backup"`

	Reminders RemindersConfig `yaml:"reminders"`

	Sheets SheetsConfig `yaml:"sheets"`
}

type HTTPConfig struct {
	Enabled            bool    `yaml:"enabled"`
	Port               int     `yaml:"port"`
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `yaml:"rate_limit_burst"`
}

type TelegramConfig struct {
	Enabled      bool    `yaml:"enabled"`
	BotToken     string  `yaml:"bot_token"`
	Debug        bool    `yaml:"debug"`
	AdminChatIDs []int64 `yaml:"admin_chat_ids"`
}

type SupabaseConfig struct {
	URL   string `yaml:"url"`
	Key   string `yaml:"key"`
	Table string `yaml:"table"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	StoragePath   string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type RemindersConfig struct {
	Enabled       bool    `yaml:"enabled"`
	DailyHour     int     `yaml:"daily_hour"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
	Timezone      string  `yaml:"timezone"`
}

type SheetsConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	SheetName       string `yaml:"sheet_name"`
	SyncMinutes     int    `yaml:"sync_minutes"`
	ScheduleDays    int    `yaml:"schedule_days"`
}

// Load reads the YAML config at path. A .env file next to the working
// directory is loaded first so ${VAR} placeholders can refer to it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML document, expands ${ENV_VAR} placeholders and applies defaults.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "salonbook"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverSQLite
	}
	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	if c.Database.Path == "" {
		c.Database.Path = "data/salonbook.db"
	}
	if c.Supabase.Table == "" {
		c.Supabase.Table = "bookings"
	}
	if c.BusinessHours == (slots.Hours{}) {
		c.BusinessHours = slots.DefaultHours
	}
	c.BusinessHours = c.BusinessHours.Normalize()
	if c.Calendar.DaysOff == nil {
		c.Calendar.DaysOff = []string{"saturday", "sunday"}
	}
	if c.Calendar.HorizonDays <= 0 {
		c.Calendar.HorizonDays = 365
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.RateLimitPerSecond <= 0 {
		c.HTTP.RateLimitPerSecond = 5
	}
	if c.HTTP.RateLimitBurst <= 0 {
		c.HTTP.RateLimitBurst = 10
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Backup.IntervalHours <= 0 {
		c.Backup.IntervalHours = 24
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = filepath.Join(filepath.Dir(c.Database.Path), "backups")
	}
	if c.Reminders.DailyHour == 0 {
		c.Reminders.DailyHour = 18
	}
	if c.Reminders.RatePerSecond <= 0 {
		c.Reminders.RatePerSecond = 20
	}
	if c.Reminders.Burst <= 0 {
		c.Reminders.Burst = 30
	}
	if c.Sheets.SheetName == "" {
		c.Sheets.SheetName = "Bookings"
	}
	if c.Sheets.SyncMinutes <= 0 {
		c.Sheets.SyncMinutes = 60
	}
	if c.Sheets.ScheduleDays <= 0 {
		c.Sheets.ScheduleDays = 14
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite:
	case DriverSupabase, DriverFailover:
		if c.Supabase.URL == "" || c.Supabase.Key == "" {
			return fmt.Errorf("storage driver %q needs supabase.url and supabase.key", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.BusinessHours.EndHour <= c.BusinessHours.StartHour {
		return fmt.Errorf("business_hours: end_hour must be after start_hour")
	}
	if _, err := calendar.ParseWeekdays(c.Calendar.DaysOff); err != nil {
		return fmt.Errorf("calendar.days_off: %w", err)
	}
	for d := range c.Calendar.Holidays {
		if _, err := calendar.ParseDate(d); err != nil {
			return fmt.Errorf("calendar.holidays: %w", err)
		}
	}
	if c.HTTP.Enabled && c.Access.JWTSecret == "" {
		return errors.New("http api needs access.jwt_secret")
	}
	if c.Reminders.DailyHour < 0 || c.Reminders.DailyHour > 23 {
		return errors.New("reminders.daily_hour must be 0-23")
	}
	if c.Sheets.Enabled && (c.Sheets.CredentialsFile == "" || c.Sheets.SpreadsheetID == "") {
		return errors.New("sheets needs credentials_file and spreadsheet_id")
	}
	return nil
}

// EnsureDirs creates directories for the sqlite file.
func (c *Config) EnsureDirs() error {
	return os.MkdirAll(filepath.Dir(c.Database.Path), 0o755)
}

// Policy builds the date policy.
func (c *Config) Policy() calendar.Policy {
	days, _ := calendar.ParseWeekdays(c.Calendar.DaysOff)
	return calendar.Policy{
		DaysOff:  days,
		Holidays: c.Calendar.Holidays,
		Horizon:  time.Duration(c.Calendar.HorizonDays) * 24 * time.Hour,
	}
}

// CacheTTL is zero when caching is off.
func (c *Config) CacheTTL() time.Duration {
	if c.Redis.Address == "" || c.Redis.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

func (c *Config) SessionTimeout() time.Duration {
	if c.Session.TimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Session.TimeoutMinutes) * time.Minute
}
