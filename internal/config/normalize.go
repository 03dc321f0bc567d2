package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMotion()
	c.normalizePumps()
	c.normalizeSensors()
	c.normalizeRecipes()
	c.normalizeMedia()
	c.normalizeVCR()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.RecipesDir, err = expandPath(c.Paths.RecipesDir); err != nil {
		return fmt.Errorf("paths.recipes_dir: %w", err)
	}
	if c.Paths.MediaDir, err = expandPath(c.Paths.MediaDir); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeMotion() {
	c.Motion.SerialPort = strings.TrimSpace(c.Motion.SerialPort)
	if c.Motion.SerialPort == "" {
		c.Motion.SerialPort = defaultSerialPort
	}
	if c.Motion.BaudRate <= 0 {
		c.Motion.BaudRate = defaultBaudRate
	}
	if c.Motion.FeedRate <= 0 {
		c.Motion.FeedRate = defaultFeedRate
	}
	if c.Motion.TimeoutSeconds <= 0 {
		c.Motion.TimeoutSeconds = defaultMotionTimeoutSeconds
	}
	if c.Motion.PollIntervalMS <= 0 {
		c.Motion.PollIntervalMS = defaultMotionPollIntervalMS
	}
	c.Motion.StatusChip = strings.TrimSpace(c.Motion.StatusChip)
	if c.Motion.StatusChip == "" {
		c.Motion.StatusChip = defaultGPIOChip
	}
}

func (c *Config) normalizePumps() {
	c.Pumps.GPIOChip = strings.TrimSpace(c.Pumps.GPIOChip)
	if c.Pumps.GPIOChip == "" {
		c.Pumps.GPIOChip = defaultGPIOChip
	}
	if len(c.Pumps.EnableLines) == 0 {
		c.Pumps.EnableLines = defaultPumpLines()
	}
	if c.Pumps.MMPerOunce <= 0 {
		c.Pumps.MMPerOunce = defaultMMPerOunce
	}
	if c.Pumps.MinVolumeOunces <= 0 {
		c.Pumps.MinVolumeOunces = defaultMinVolumeOunces
	}
	if c.Pumps.MaxVolumeOunces <= 0 {
		c.Pumps.MaxVolumeOunces = defaultMaxVolumeOunces
	}
	if c.Pumps.PrimeDistanceMM <= 0 {
		c.Pumps.PrimeDistanceMM = defaultPrimeDistanceMM
	}
	if c.Pumps.CleanDistanceMM <= 0 {
		c.Pumps.CleanDistanceMM = defaultCleanDistanceMM
	}
	names := make([]string, len(c.Pumps.Names))
	for i, name := range c.Pumps.Names {
		names[i] = strings.TrimSpace(name)
	}
	c.Pumps.Names = names
}

func (c *Config) normalizeSensors() {
	c.Cup.I2CDevice = strings.TrimSpace(c.Cup.I2CDevice)
	if c.Cup.I2CDevice == "" {
		c.Cup.I2CDevice = defaultI2CDevice
	}
	if c.Cup.Address <= 0 {
		c.Cup.Address = defaultCupAddress
	}
	if c.Cup.Threshold <= 0 {
		c.Cup.Threshold = defaultCupThreshold
	}
	if c.Cup.FailureThreshold <= 0 {
		c.Cup.FailureThreshold = defaultCupFailureThreshold
	}
	c.RFID.SPIDevice = strings.TrimSpace(c.RFID.SPIDevice)
	if c.RFID.SPIDevice == "" {
		c.RFID.SPIDevice = defaultSPIDevice
	}
	c.RFID.ResetChip = strings.TrimSpace(c.RFID.ResetChip)
	if c.RFID.ResetChip == "" {
		c.RFID.ResetChip = defaultGPIOChip
	}
	if c.Sensors.PollIntervalMS <= 0 {
		c.Sensors.PollIntervalMS = defaultSensorPollIntervalMS
	}
}

func (c *Config) normalizeRecipes() {
	c.Recipes.DefaultTag = strings.TrimSpace(c.Recipes.DefaultTag)
	if c.Recipes.CacheTTLSeconds < 0 {
		c.Recipes.CacheTTLSeconds = 0
	}
}

func (c *Config) normalizeMedia() {
	if len(c.Media.Players) == 0 {
		c.Media.Players = defaultPlayers()
	}
	players := c.Media.Players[:0]
	for _, player := range c.Media.Players {
		cleaned := make([]string, 0, len(player))
		for _, arg := range player {
			if trimmed := strings.TrimSpace(arg); trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			players = append(players, cleaned)
		}
	}
	c.Media.Players = players

	if len(c.Media.Extensions) == 0 {
		c.Media.Extensions = defaultMediaExtensions()
	}
	exts := make([]string, 0, len(c.Media.Extensions))
	seen := make(map[string]struct{}, len(c.Media.Extensions))
	for _, ext := range c.Media.Extensions {
		normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = defaultMediaExtensions()
	}
	c.Media.Extensions = exts

	if c.Media.StopGraceMS <= 0 {
		c.Media.StopGraceMS = defaultStopGraceMS
	}
}

func (c *Config) normalizeVCR() {
	c.VCR.GPIOChip = strings.TrimSpace(c.VCR.GPIOChip)
	if c.VCR.GPIOChip == "" {
		c.VCR.GPIOChip = defaultGPIOChip
	}
	if c.VCR.PressMS <= 0 {
		c.VCR.PressMS = defaultVCRPressMS
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("COFFEEMAN_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
