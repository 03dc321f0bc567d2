package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMotion(); err != nil {
		return err
	}
	if err := c.validatePumps(); err != nil {
		return err
	}
	if err := c.validateSensors(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateVCR(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMotion() error {
	if c.Motion.StatusLine < 0 {
		return errors.New("motion.status_line must be a valid GPIO offset")
	}
	if c.Motion.TimeoutSeconds < 1 {
		return errors.New("motion.timeout_seconds must be at least 1")
	}
	return nil
}

func (c *Config) validatePumps() error {
	if len(c.Pumps.EnableLines) == 0 {
		return errors.New("pumps.enable_lines must name at least one channel")
	}
	seen := make(map[int]struct{}, len(c.Pumps.EnableLines))
	for i, line := range c.Pumps.EnableLines {
		if line < 0 {
			return fmt.Errorf("pumps.enable_lines[%d] must be a valid GPIO offset", i)
		}
		if _, dup := seen[line]; dup {
			return fmt.Errorf("pumps.enable_lines[%d] duplicates GPIO offset %d", i, line)
		}
		seen[line] = struct{}{}
	}
	if c.Pumps.MinVolumeOunces >= c.Pumps.MaxVolumeOunces {
		return errors.New("pumps.min_volume_oz must be less than pumps.max_volume_oz")
	}
	if len(c.Pumps.Names) > 0 && len(c.Pumps.Names) != len(c.Pumps.EnableLines) {
		return errors.New("pumps.names must match pumps.enable_lines in length when set")
	}
	return nil
}

func (c *Config) validateSensors() error {
	if c.Cup.Address > 0x7f {
		return errors.New("cup.address must be a 7-bit I2C address")
	}
	if c.Sensors.PollIntervalMS > 200 {
		return errors.New("sensors.poll_interval_ms must be 200 or less to keep cup detection responsive")
	}
	if c.RFID.ResetLine < 0 {
		return errors.New("rfid.reset_line must be a valid GPIO offset")
	}
	return nil
}

func (c *Config) validateMedia() error {
	for i, player := range c.Media.Players {
		if len(player) == 0 {
			return fmt.Errorf("media.players[%d] must name a binary", i)
		}
	}
	return nil
}

func (c *Config) validateVCR() error {
	if c.VCR.PlayLine < 0 || c.VCR.EjectLine < 0 {
		return errors.New("vcr lines must be valid GPIO offsets")
	}
	if c.VCR.PlayLine == c.VCR.EjectLine {
		return errors.New("vcr.play_line and vcr.eject_line must differ")
	}
	return nil
}
