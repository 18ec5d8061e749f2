package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	SMTP        SMTPConfig        `yaml:"smtp"`
	Notify      NotifyConfig      `yaml:"notify"`
	Reservation ReservationConfig `yaml:"reservation"`
	Sweep       SweepConfig       `yaml:"sweep"`
	Machines    []SeedMachine     `yaml:"machines"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// SMTPConfig holds the outbound mail configuration.
type SMTPConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	FromName    string `yaml:"from_name"`
	FromAddress string `yaml:"from_address"`
}

// NotifyConfig holds the deferred-notification settings.
type NotifyConfig struct {
	LeadMinutes    int           `yaml:"lead_minutes"`
	Timezone       string        `yaml:"timezone"`
	WorkerPoolSize int           `yaml:"worker_pool_size"`
	Lead           time.Duration `yaml:"-"` // Ignored by YAML parser
}

// ReservationConfig bounds the accepted reservation duration in minutes.
type ReservationConfig struct {
	MinMinutes int `yaml:"min_minutes"`
	MaxMinutes int `yaml:"max_minutes"`
}

// SweepConfig controls the optional periodic cleanup pass. Disabled by
// default; expired reservations are then discovered lazily on list reads.
type SweepConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
}

// SeedMachine describes one machine provisioned when the store is empty.
type SeedMachine struct {
	Name        string `yaml:"name"`
	DefaultTime int    `yaml:"default_time"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "laundry.db"
	}

	if cfg.SMTP.Port <= 0 {
		cfg.SMTP.Port = 465
	}
	if cfg.SMTP.FromName == "" {
		cfg.SMTP.FromName = "Laundry Notifications"
	}
	if cfg.SMTP.FromAddress == "" {
		cfg.SMTP.FromAddress = cfg.SMTP.Username
	}

	if cfg.Notify.LeadMinutes <= 0 {
		cfg.Notify.LeadMinutes = 5
	}
	cfg.Notify.Lead = time.Duration(cfg.Notify.LeadMinutes) * time.Minute
	if cfg.Notify.Timezone == "" {
		cfg.Notify.Timezone = "America/New_York"
	}
	if cfg.Notify.WorkerPoolSize <= 0 {
		log.Printf("notify.worker_pool_size is not set or invalid; defaulting to 1")
		cfg.Notify.WorkerPoolSize = 1
	}

	if cfg.Reservation.MinMinutes <= 0 {
		cfg.Reservation.MinMinutes = 5
	}
	if cfg.Reservation.MaxMinutes <= 0 {
		cfg.Reservation.MaxMinutes = 90
	}

	if cfg.Sweep.IntervalSeconds <= 0 {
		cfg.Sweep.IntervalSeconds = 60
	}
	cfg.Sweep.Interval = time.Duration(cfg.Sweep.IntervalSeconds) * time.Second

	if len(cfg.Machines) == 0 {
		cfg.Machines = []SeedMachine{
			{Name: "Washer 1", DefaultTime: 30},
			{Name: "Washer 2", DefaultTime: 30},
			{Name: "Dryer 1", DefaultTime: 60},
			{Name: "Dryer 2", DefaultTime: 60},
		}
	}

	return &cfg, nil
}
