package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zackaholic/VHS-Coffeeman/internal/config"
	"github.com/zackaholic/VHS-Coffeeman/internal/daemonctl"
	"github.com/zackaholic/VHS-Coffeeman/internal/ipc"
)

// commandContext carries the state shared by every CLI command: the
// persistent flag values plus a lazily loaded configuration.
type commandContext struct {
	socketFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	socketOnce sync.Once
	socket     string
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	return &commandContext{socketFlag: socketFlag, configFlag: configFlag}
}

// ensureConfig loads the configuration once per invocation, honoring the
// --config flag, and creates any missing data directories.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// socketPath resolves the daemon socket once: the --socket flag wins,
// otherwise the path derives from the loaded (or default) configuration.
func (c *commandContext) socketPath() string {
	c.socketOnce.Do(func() {
		if c.socketFlag != nil {
			if flag := strings.TrimSpace(*c.socketFlag); flag != "" {
				c.socket = flag
				return
			}
		}
		if cfg, err := c.ensureConfig(); err == nil && cfg != nil {
			c.socket = daemonctl.SocketPath(cfg)
			return
		}
		c.socket = fallbackSocketPath()
	})
	return c.socket
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return wrapDialError(err, socket)
	}
	defer client.Close()
	return fn(client)
}

func wrapDialError(err error, socket string) error {
	switch {
	case errors.Is(err, syscall.ENOENT) || os.IsNotExist(err):
		return fmt.Errorf("connect to daemon: socket %s not found; start the daemon with `coffeeman start`", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: socket %s refused the connection; verify the daemon is running", socket)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}

func fallbackSocketPath() string {
	logDir, err := config.ExpandPath("~/.local/share/coffeeman/logs")
	if err != nil {
		logDir = os.TempDir()
	}
	return filepath.Join(logDir, daemonctl.SocketFileName)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
