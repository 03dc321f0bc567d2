// Package deps probes the binaries, device nodes, and directories the
// machine needs, for the status surface. Probes never fail hard; they
// produce a report the operator reads.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/zackaholic/VHS-Coffeeman/internal/config"
)

// Requirement defines an external dependency the machine relies on.
type Requirement struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates PATH lookups for the provided requirements.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// CheckPaths evaluates filesystem probes for the provided requirements.
// Device nodes and directories use the same check: the path must exist.
func CheckPaths(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		path := strings.TrimSpace(req.Path)
		status := Status{
			Name:        req.Name,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if path == "" {
			status.Detail = "path not configured"
			results = append(results, status)
			continue
		}
		if _, err := os.Stat(path); err != nil {
			status.Detail = fmt.Sprintf("%s not present", path)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Resolve builds the machine's full preflight report from its configuration.
func Resolve(cfg *config.Config) []Status {
	var binaries []Requirement
	for _, candidate := range cfg.Media.Players {
		if len(candidate) == 0 {
			continue
		}
		binaries = append(binaries, Requirement{
			Name:        candidate[0],
			Command:     candidate[0],
			Description: "video player",
			// Any one available player is enough.
			Optional: true,
		})
	}

	paths := []Requirement{
		{Name: "motion controller", Path: cfg.Motion.SerialPort, Description: "serial port"},
		{Name: "pump gpio chip", Path: cfg.Pumps.GPIOChip, Description: "gpio character device"},
		{Name: "status gpio chip", Path: cfg.Motion.StatusChip, Description: "gpio character device"},
		{Name: "cup sensor", Path: cfg.Cup.I2CDevice, Description: "i2c device"},
		{Name: "tag reader", Path: cfg.RFID.SPIDevice, Description: "spi device"},
		{Name: "recipes", Path: cfg.Paths.RecipesDir, Description: "recipe directory"},
		{Name: "media", Path: cfg.Paths.MediaDir, Description: "media directory", Optional: true},
	}

	return append(CheckBinaries(binaries), CheckPaths(paths)...)
}
