// Package config loads, normalizes, and validates coffeeman configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// COFFEEMAN_NTFY_TOPIC. The Config type centralizes every knob the daemon and
// CLI need: device nodes and GPIO line offsets, pump calibration, sensor
// thresholds, recipe and media directories, and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
