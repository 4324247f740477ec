package config

import (
	"log"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Settings struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8420"`
	DataPath   string `envconfig:"DATA_PATH" default:"./data"`

	// Derived from DataPath when left empty.
	DatabasePath        string `envconfig:"DATABASE_PATH" default:""`
	MasterKeyPath       string `envconfig:"MASTER_KEY_PATH" default:""`
	CredentialStorePath string `envconfig:"CREDENTIAL_STORE_PATH" default:""`

	// FamiliesPath points to an optional YAML file overriding the built-in
	// device-family table (pager-disable commands, prompt suffixes).
	FamiliesPath string `envconfig:"FAMILIES_PATH" default:""`

	// Default session timing. Profiles may override each value per device.
	ConnectTimeout time.Duration `envconfig:"CONNECT_TIMEOUT" default:"10s"`
	CommandTimeout time.Duration `envconfig:"COMMAND_TIMEOUT" default:"15s"`
	IdleTimeout    time.Duration `envconfig:"IDLE_TIMEOUT" default:"30m"`

	// LoginTimeout bounds each step of the scripted telnet login
	// (Username: prompt, Password: prompt, first shell prompt).
	LoginTimeout time.Duration `envconfig:"LOGIN_TIMEOUT" default:"10s"`

	// SettleDuration is how long the post-connect handshake waits after
	// the pager-disable command before draining the banner.
	SettleDuration time.Duration `envconfig:"SETTLE_DURATION" default:"2s"`

	// HistorySize caps the per-session command result ring buffer.
	HistorySize int `envconfig:"HISTORY_SIZE" default:"100"`

	// SweepSchedule is a cron spec for the optional idle-session sweep.
	// Empty disables the sweep; expiry is still checked on every access.
	SweepSchedule string `envconfig:"SWEEP_SCHEDULE" default:""`

	// Logging
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat     string `envconfig:"LOG_FORMAT" default:"text"`
	LogPath       string `envconfig:"LOG_PATH" default:""`
	LogMaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"50"`
	LogMaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"3"`
	LogMaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"28"`
	LogCompress   bool   `envconfig:"LOG_COMPRESS" default:"false"`
}

var Cfg Settings

func Load() {
	if err := envconfig.Process("TERMGATE", &Cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if Cfg.DatabasePath == "" {
		Cfg.DatabasePath = filepath.Join(Cfg.DataPath, "termgate.db")
	}
	if Cfg.MasterKeyPath == "" {
		Cfg.MasterKeyPath = filepath.Join(Cfg.DataPath, "master.key")
	}
	if Cfg.CredentialStorePath == "" {
		Cfg.CredentialStorePath = filepath.Join(Cfg.DataPath, "credentials.enc")
	}
	if Cfg.LogPath == "" {
		Cfg.LogPath = filepath.Join(Cfg.DataPath, "termgate.log")
	}
}
