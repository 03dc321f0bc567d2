package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/zackaholic/VHS-Coffeeman/internal/faults"
	"github.com/zackaholic/VHS-Coffeeman/internal/logging"
)

// PlayerOptions configures a Player.
type PlayerOptions struct {
	// Dir is the media file directory.
	Dir string
	// Candidates are player command lines in preference order; the first
	// whose binary is on PATH wins. The media path is appended as the
	// final argument.
	Candidates [][]string
	// Extensions are the media file extensions tried in order, without
	// the leading dot.
	Extensions []string
	// StopGrace is how long a stopped player gets to exit after SIGTERM
	// before it is killed.
	StopGrace time.Duration
}

// playback is one launched player process and its reaper.
type playback struct {
	cmd  *exec.Cmd
	done chan struct{}
}

// Player launches and stops a video player subprocess. One clip plays at a
// time; starting a new one stops the old one first.
type Player struct {
	opts   PlayerOptions
	logger *slog.Logger

	lookPath func(string) (string, error)

	mu      sync.Mutex
	current *playback
}

// NewPlayer builds a Player. Empty option fields take the install defaults.
func NewPlayer(opts PlayerOptions, logger *slog.Logger) *Player {
	if len(opts.Candidates) == 0 {
		opts.Candidates = [][]string{
			{"omxplayer", "--no-osd", "--aspect-mode", "fill"},
			{"cvlc", "--play-and-exit", "--fullscreen"},
		}
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{"mp4", "mkv", "avi"}
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = 2 * time.Second
	}
	return &Player{
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "media"),
		lookPath: exec.LookPath,
	}
}

// Play starts the clip for tag, falling back to the default clip when the
// tag has none. It returns true when a player was launched. Failure is never
// an error to the caller; the pour proceeds silently.
func (p *Player) Play(ctx context.Context, tag string) bool {
	path, err := resolveMedia(p.opts.Dir, tag, p.opts.Extensions)
	if err != nil {
		logging.WarnWithContext(p.logger, "no media for tag", "media_missing",
			logging.String(logging.FieldTag, tag),
			logging.Error(err))
		return false
	}

	command, err := resolvePlayer(p.opts.Candidates, p.lookPath)
	if err != nil {
		logging.WarnWithContext(p.logger, "no media player available", "media_player_missing",
			logging.Error(err))
		return false
	}

	p.Stop()

	args := append(append([]string{}, command[1:]...), path)
	cmd := exec.CommandContext(ctx, command[0], args...)
	if err := cmd.Start(); err != nil {
		logging.WarnWithContext(p.logger, "media player failed to start", "media_start_failed",
			logging.String("player", command[0]),
			logging.Error(err))
		return false
	}

	pb := &playback{cmd: cmd, done: make(chan struct{})}
	p.mu.Lock()
	p.current = pb
	p.mu.Unlock()

	p.logger.Info("playing media",
		logging.String(logging.FieldTag, tag),
		logging.String("file", filepath.Base(path)),
		logging.String("player", command[0]))

	// Reap the process so a clip that ends on its own leaves no zombie.
	go func() {
		_ = cmd.Wait()
		close(pb.done)
		p.mu.Lock()
		if p.current == pb {
			p.current = nil
		}
		p.mu.Unlock()
	}()
	return true
}

// Stop ends any running clip: SIGTERM first, SIGKILL after the grace period.
// Safe to call when nothing is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	pb := p.current
	p.current = nil
	p.mu.Unlock()
	if pb == nil {
		return
	}

	if err := pb.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already exited.
		return
	}
	select {
	case <-pb.done:
	case <-time.After(p.opts.StopGrace):
		_ = pb.cmd.Process.Kill()
		<-pb.done
		logging.WarnWithContext(p.logger, "media player killed after grace period", "media_kill",
			logging.String("player", pb.cmd.Path))
	}
}

// resolveMedia picks the clip for tag: <tag>.<ext> across the extension set,
// then default.<ext>.
func resolveMedia(dir, tag string, extensions []string) (string, error) {
	for _, base := range []string{strings.ToUpper(strings.TrimSpace(tag)), "default"} {
		if base == "" {
			continue
		}
		for _, ext := range extensions {
			path := filepath.Join(dir, base+"."+ext)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
	}
	return "", faults.Wrap(faults.ErrMediaUnavailable, "media", "resolve",
		fmt.Sprintf("no clip for tag %s and no default in %s", tag, dir), nil)
}

// resolvePlayer returns the first candidate command line whose binary is on
// PATH.
func resolvePlayer(candidates [][]string, lookPath func(string) (string, error)) ([]string, error) {
	for _, candidate := range candidates {
		if len(candidate) == 0 {
			continue
		}
		if _, err := lookPath(candidate[0]); err == nil {
			return candidate, nil
		}
	}
	return nil, faults.Wrap(faults.ErrMediaUnavailable, "media", "resolve player",
		"no configured player binary found on PATH", nil)
}
