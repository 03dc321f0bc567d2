package sensors

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zackaholic/VHS-Coffeeman/internal/logging"
)

// TagReader reports the tag currently in the reader field. The second return
// is false when no tag is present; that is not an error.
type TagReader interface {
	ReadTag() (string, bool, error)
}

// ProximityReader reports the raw cup sensor reading.
type ProximityReader interface {
	Proximity() (uint16, error)
}

// EventKind classifies poller events.
type EventKind string

const (
	// TagDetected fires once per tag presentation.
	TagDetected EventKind = "tag_detected"
	// CupPlaced fires when the proximity reading crosses above the
	// threshold.
	CupPlaced EventKind = "cup_placed"
	// CupRemoved fires when the reading drops back below the threshold.
	CupRemoved EventKind = "cup_removed"
	// SensorFault fires once when consecutive proximity read failures
	// reach the configured streak.
	SensorFault EventKind = "sensor_fault"
)

// Event is one edge observed by the poller.
type Event struct {
	Kind EventKind
	// Tag holds the UID for TagDetected events.
	Tag string
}

// PollerOptions configures a Poller.
type PollerOptions struct {
	// Interval is the loop period.
	Interval time.Duration
	// CupThreshold is the proximity reading above which a cup is present.
	CupThreshold uint16
	// FailureThreshold is the consecutive read failure count that latches
	// the poller faulted.
	FailureThreshold int
}

// Poller runs the sensor loop.
type Poller struct {
	tags      TagReader
	proximity ProximityReader
	opts      PollerOptions
	logger    *slog.Logger

	events chan Event

	cupPresent atomic.Bool
	faulted    atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller builds a Poller. Zero option fields take the install defaults.
func NewPoller(tags TagReader, proximity ProximityReader, opts PollerOptions, logger *slog.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 100 * time.Millisecond
	}
	if opts.CupThreshold == 0 {
		opts.CupThreshold = 2700
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 10
	}
	return &Poller{
		tags:      tags,
		proximity: proximity,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "sensors"),
		events:    make(chan Event, 16),
	}
}

// Events returns the event stream. The channel is never closed; consumers
// select against their own shutdown signal.
func (p *Poller) Events() <-chan Event {
	return p.events
}

// CupPresent reports the most recent debounced cup state.
func (p *Poller) CupPresent() bool {
	return p.cupPresent.Load()
}

// Faulted reports whether the proximity sensor has latched failed.
func (p *Poller) Faulted() bool {
	return p.faulted.Load()
}

// ClearFault releases the sensor fault latch so polling resumes. A sensor
// that is still dead will latch again after a fresh run of failed reads.
func (p *Poller) ClearFault() {
	if p.faulted.CompareAndSwap(true, false) {
		p.logger.Info("cup sensor fault cleared")
	}
}

// Start launches the polling loop. It returns immediately; call Stop to end
// the loop and wait for it to exit.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx)
}

// Stop ends the polling loop and blocks until it has exited.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	var (
		lastTag  string
		failures int
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		lastTag = p.pollTag(lastTag)
		failures = p.pollCup(failures)
	}
}

// pollTag reads the tag field and emits TagDetected on a fresh presentation.
// Returns the tag to suppress on the next cycle.
func (p *Poller) pollTag(lastTag string) string {
	tag, present, err := p.tags.ReadTag()
	if err != nil {
		p.logger.Debug("tag read failed", logging.Error(err))
		return lastTag
	}
	if !present {
		// Field is clear; the next presentation of the same tag counts
		// as a new detection.
		return ""
	}
	if tag == lastTag {
		return lastTag
	}
	p.logger.Info("tag detected", logging.String(logging.FieldTag, tag))
	p.emit(Event{Kind: TagDetected, Tag: tag})
	return tag
}

// pollCup reads proximity and emits placement edges. Returns the updated
// consecutive failure count.
func (p *Poller) pollCup(failures int) int {
	if p.faulted.Load() {
		return failures
	}
	if failures >= p.opts.FailureThreshold {
		// The latch was cleared externally; start a fresh failure run so a
		// single transient glitch does not re-latch immediately.
		failures = 0
	}

	reading, err := p.proximity.Proximity()
	if err != nil {
		failures++
		p.logger.Debug("proximity read failed",
			logging.Int("consecutive_failures", failures),
			logging.Error(err))
		if failures >= p.opts.FailureThreshold {
			p.faulted.Store(true)
			logging.ErrorWithContext(p.logger, "cup sensor latched failed", "sensor_fault",
				logging.Int("consecutive_failures", failures),
				logging.Error(err))
			p.emit(Event{Kind: SensorFault})
		}
		return failures
	}

	present := reading > p.opts.CupThreshold
	if present != p.cupPresent.Load() {
		p.cupPresent.Store(present)
		if present {
			p.logger.Info("cup placed", logging.Int("reading", int(reading)))
			p.emit(Event{Kind: CupPlaced})
		} else {
			p.logger.Info("cup removed", logging.Int("reading", int(reading)))
			p.emit(Event{Kind: CupRemoved})
		}
	}
	return 0
}

// emit never blocks the polling loop. When the consumer has fallen far
// behind, stale events are dropped; CupRemoved and SensorFault are the edges
// the pour abort path depends on, so for those the oldest queued event is
// discarded to make room instead.
func (p *Poller) emit(event Event) {
	for {
		select {
		case p.events <- event:
			return
		default:
		}
		if event.Kind != CupRemoved && event.Kind != SensorFault {
			logging.WarnWithContext(p.logger, "event dropped, consumer lagging", "event_dropped",
				logging.String("kind", string(event.Kind)))
			return
		}
		select {
		case stale := <-p.events:
			logging.WarnWithContext(p.logger, "event dropped, consumer lagging", "event_dropped",
				logging.String("kind", string(stale.Kind)))
		default:
		}
	}
}
