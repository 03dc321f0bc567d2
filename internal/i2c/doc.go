// Package i2c provides register-level access to I2C peripherals through
// /dev/i2c-* device nodes, plus the VCNL4010 proximity sensor driver used
// for cup detection.
package i2c
