// Package config provides configuration management for the SportCut agent.
// Configuration is loaded from environment variables, optionally seeded from
// a .env file, with sensible defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort           = 8787
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultDataDir        = ".sportcut"
	DefaultSettleDelay    = 500 * time.Millisecond
	DefaultRequestTimeout = 30 * time.Second
	DefaultFrameRate      = 30.0

	// Environment variable names
	EnvPort           = "SPORTCUT_PORT"
	EnvLogLevel       = "SPORTCUT_LOG_LEVEL"
	EnvLogFormat      = "SPORTCUT_LOG_FORMAT"
	EnvDataDir        = "SPORTCUT_DATA_DIR"
	EnvServerURL      = "SPORTCUT_SERVER_URL"
	EnvServerToken    = "SPORTCUT_SERVER_TOKEN"
	EnvDuplicateCheck = "SPORTCUT_DUPLICATE_CHECK"
	EnvSettleDelay    = "SPORTCUT_SETTLE_DELAY"
	EnvDownloadDir    = "SPORTCUT_DOWNLOAD_DIR"
	EnvHeadless       = "SPORTCUT_HEADLESS"
	EnvRequestTimeout = "SPORTCUT_REQUEST_TIMEOUT"
	EnvFFprobePath    = "SPORTCUT_FFPROBE_PATH"
	EnvFrameRate      = "SPORTCUT_FRAME_RATE"

	// Database filename
	DBFilename = "sportcut.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	LogFormat() string
	DataDir() string
	DBPath() string
	// ServerURL is the analysis server; empty means offline mode.
	ServerURL() string
	ServerToken() string
	DuplicateCheck() bool
	SettleDelay() time.Duration
	DownloadDir() string
	Headless() bool
	RequestTimeout() time.Duration
	FFprobePath() string
	FrameRate() float64
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port           int
	logLevel       string
	logFormat      string
	dataDir        string
	serverURL      string
	serverToken    string
	duplicateCheck bool
	settleDelay    time.Duration
	downloadDir    string
	headless       bool
	requestTimeout time.Duration
	ffprobePath    string
	frameRate      float64
}

// LoadDotEnv sets variables from the given .env files (".env" when none are
// given) without overriding variables already set. Missing files are not an
// error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:           DefaultPort,
		logLevel:       DefaultLogLevel,
		logFormat:      DefaultLogFormat,
		dataDir:        defaultDataDir(),
		duplicateCheck: true,
		settleDelay:    DefaultSettleDelay,
		requestTimeout: DefaultRequestTimeout,
		frameRate:      DefaultFrameRate,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}
	if lf := os.Getenv(EnvLogFormat); lf != "" {
		cfg.logFormat = strings.ToLower(lf)
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.serverURL = strings.TrimRight(os.Getenv(EnvServerURL), "/")
	cfg.serverToken = os.Getenv(EnvServerToken)
	cfg.ffprobePath = os.Getenv(EnvFFprobePath)

	var err error
	if cfg.duplicateCheck, err = envBool(EnvDuplicateCheck, cfg.duplicateCheck); err != nil {
		return nil, err
	}
	if cfg.headless, err = envBool(EnvHeadless, false); err != nil {
		return nil, err
	}
	if cfg.settleDelay, err = envDuration(EnvSettleDelay, cfg.settleDelay); err != nil {
		return nil, err
	}
	if cfg.requestTimeout, err = envDuration(EnvRequestTimeout, cfg.requestTimeout); err != nil {
		return nil, err
	}
	if cfg.requestTimeout <= 0 {
		return nil, fmt.Errorf("invalid %s: must be positive", EnvRequestTimeout)
	}

	if fr := os.Getenv(EnvFrameRate); fr != "" {
		rate, err := strconv.ParseFloat(fr, 64)
		if err != nil || rate <= 0 {
			return nil, fmt.Errorf("invalid %s: %q", EnvFrameRate, fr)
		}
		cfg.frameRate = rate
	}

	cfg.downloadDir = os.Getenv(EnvDownloadDir)
	if cfg.downloadDir == "" {
		cfg.downloadDir = defaultDownloadDir(cfg.dataDir)
	}

	return cfg, nil
}

func envBool(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// envDuration accepts Go durations ("750ms") or plain milliseconds ("750").
func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	var d time.Duration
	if ms, err := strconv.Atoi(s); err == nil {
		d = time.Duration(ms) * time.Millisecond
	} else if d, err = time.ParseDuration(s); err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// LogFormat returns json or text
func (c *EnvConfig) LogFormat() string {
	return c.logFormat
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

func (c *EnvConfig) ServerURL() string {
	return c.serverURL
}

func (c *EnvConfig) ServerToken() string {
	return c.serverToken
}

func (c *EnvConfig) DuplicateCheck() bool {
	return c.duplicateCheck
}

func (c *EnvConfig) SettleDelay() time.Duration {
	return c.settleDelay
}

// DownloadDir is where exports are saved.
func (c *EnvConfig) DownloadDir() string {
	return c.downloadDir
}

func (c *EnvConfig) Headless() bool {
	return c.headless
}

func (c *EnvConfig) RequestTimeout() time.Duration {
	return c.requestTimeout
}

func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

func (c *EnvConfig) FrameRate() float64 {
	return c.frameRate
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// defaultDownloadDir prefers the user's Downloads folder and falls back to
// an exports folder in the data directory.
func defaultDownloadDir(dataDir string) string {
	if home, err := os.UserHomeDir(); err == nil {
		dl := filepath.Join(home, "Downloads")
		if info, err := os.Stat(dl); err == nil && info.IsDir() {
			return dl
		}
	}
	return filepath.Join(dataDir, "exports")
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
