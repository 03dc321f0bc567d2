package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogDir     string `toml:"log_dir"`
	DataDir    string `toml:"data_dir"`
	RecipesDir string `toml:"recipes_dir"`
	MediaDir   string `toml:"media_dir"`
}

// Motion contains configuration for the GRBL-style motion controller.
type Motion struct {
	SerialPort     string  `toml:"serial_port"`
	BaudRate       int     `toml:"baud_rate"`
	FeedRate       float64 `toml:"feed_rate"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	PollIntervalMS int     `toml:"poll_interval_ms"`
	StatusChip     string  `toml:"status_chip"`
	StatusLine     int     `toml:"status_line"`
	// BusyActiveLow matches the controller wiring: the status line reads low
	// while a move is executing and high when idle.
	BusyActiveLow bool `toml:"busy_active_low"`
}

// Pumps contains the pump channel set and dispense calibration.
type Pumps struct {
	GPIOChip        string   `toml:"gpio_chip"`
	EnableLines     []int    `toml:"enable_lines"`
	ActiveLow       bool     `toml:"active_low"`
	MMPerOunce      float64  `toml:"mm_per_ounce"`
	MinVolumeOunces float64  `toml:"min_volume_oz"`
	MaxVolumeOunces float64  `toml:"max_volume_oz"`
	PrimeDistanceMM float64  `toml:"prime_distance_mm"`
	CleanDistanceMM float64  `toml:"clean_distance_mm"`
	Names           []string `toml:"names"`
}

// Cup contains configuration for the proximity-based cup sensor.
type Cup struct {
	I2CDevice        string `toml:"i2c_device"`
	Address          int    `toml:"address"`
	Threshold        int    `toml:"threshold"`
	FailureThreshold int    `toml:"failure_threshold"`
}

// RFID contains configuration for the tag reader.
type RFID struct {
	SPIDevice string `toml:"spi_device"`
	ResetChip string `toml:"reset_chip"`
	ResetLine int    `toml:"reset_line"`
}

// Sensors contains poller cadence configuration.
type Sensors struct {
	PollIntervalMS int `toml:"poll_interval_ms"`
}

// Recipes contains recipe resolution configuration. Recipe files live in
// Paths.RecipesDir.
type Recipes struct {
	DefaultTag      string `toml:"default_tag"`
	CacheTTLSeconds int    `toml:"cache_ttl_seconds"`
}

// Media contains video playback configuration. Media files live in
// Paths.MediaDir.
type Media struct {
	Players     [][]string `toml:"players"`
	Extensions  []string   `toml:"extensions"`
	StopGraceMS int        `toml:"stop_grace_ms"`
}

// VCR contains the front-panel button wiring of the tape transport.
type VCR struct {
	GPIOChip  string `toml:"gpio_chip"`
	PlayLine  int    `toml:"play_line"`
	EjectLine int    `toml:"eject_line"`
	PressMS   int    `toml:"press_ms"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Pours          bool   `toml:"pours"`
	Errors         bool   `toml:"errors"`
	Hardware       bool   `toml:"hardware"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for the coffeeman daemon and CLI.
//
// Configuration sections by subsystem:
//   - Paths: log, data, recipe, and media directories
//   - Motion: serial link and busy/idle status line of the motion controller
//   - Pumps: enable line set and volume-to-distance calibration
//   - Cup: proximity sensor device, threshold, and failure absorption
//   - RFID: tag reader SPI device and reset line
//   - Sensors: poller cadence
//   - Recipes: default tag fallback and cache TTL
//   - Media: player candidates and stop grace period
//   - VCR: transport button lines and press duration
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Motion        Motion        `toml:"motion"`
	Pumps         Pumps         `toml:"pumps"`
	Cup           Cup           `toml:"cup"`
	RFID          RFID          `toml:"rfid"`
	Sensors       Sensors       `toml:"sensors"`
	Recipes       Recipes       `toml:"recipes"`
	Media         Media         `toml:"media"`
	VCR           VCR           `toml:"vcr"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/coffeeman/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("coffeeman.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation. The
// media directory is created best-effort so the daemon can run when the clip
// library is on storage that is temporarily absent.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.DataDir, c.Paths.RecipesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.MediaDir) != "" {
		_ = os.MkdirAll(c.Paths.MediaDir, 0o755)
	}
	return nil
}

// JournalPath returns the pour journal database location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.DataDir, "journal.db")
}

// ChannelCount returns the number of configured pump channels.
func (c *Config) ChannelCount() int {
	return len(c.Pumps.EnableLines)
}

// ChannelName returns the configured ingredient name for a pump channel, or
// an empty string when unnamed.
func (c *Config) ChannelName(channel int) string {
	if channel < 0 || channel >= len(c.Pumps.Names) {
		return ""
	}
	return c.Pumps.Names[channel]
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
