package bridge

import (
	"context"
	"sync/atomic"
	"time"

	"go.viam.com/rdk/logging"
)

// DefaultControlRate is the Franka control rate.
const DefaultControlRate = 1000.0

// faultLogInterval limits how often source faults are logged from the loop.
const faultLogInterval = 5 * time.Second

// LoopStats counts what the control loop observed.
type LoopStats struct {
	Cycles   uint64        `json:"cycles"`
	Skipped  uint64        `json:"skipped"`
	Overruns uint64        `json:"overruns"`
	MaxCycle time.Duration `json:"max_cycle"`
}

// Loop drives a bridge at a fixed period: one Update followed by both publishes per tick.
// A failed Update skips the publishes for that tick.
type Loop struct {
	bridge *Bridge
	period time.Duration
	logger logging.Logger

	cycles   atomic.Uint64
	skipped  atomic.Uint64
	overruns atomic.Uint64
	maxCycle atomic.Int64
}

// NewLoop returns a loop ticking at rateHz. A non-positive rate uses DefaultControlRate.
func NewLoop(b *Bridge, rateHz float64, logger logging.Logger) *Loop {
	if rateHz <= 0 {
		rateHz = DefaultControlRate
	}
	return &Loop{
		bridge: b,
		period: time.Duration(float64(time.Second) / rateHz),
		logger: logger,
	}
}

// Period returns the control period.
func (l *Loop) Period() time.Duration {
	return l.period
}

// Step runs one control cycle and reports whether the source produced a sample.
func (l *Loop) Step(ctx context.Context) bool {
	start := time.Now()
	defer func() {
		d := time.Since(start)
		if d > l.period {
			l.overruns.Add(1)
		}
		for {
			cur := l.maxCycle.Load()
			if int64(d) <= cur || l.maxCycle.CompareAndSwap(cur, int64(d)) {
				break
			}
		}
	}()

	l.cycles.Add(1)
	if !l.bridge.Update(ctx) {
		l.skipped.Add(1)
		return false
	}
	l.bridge.PublishFrankaStates()
	l.bridge.PublishJointStates()
	return true
}

// Run ticks until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	l.logger.Infof("control loop started at %v period", l.period)
	var lastFaultLog time.Time
	for {
		select {
		case <-ctx.Done():
			l.logger.Infof("control loop stopped after %d cycles", l.cycles.Load())
			return
		case <-ticker.C:
		}

		if l.Step(ctx) {
			continue
		}
		if ctx.Err() != nil {
			continue
		}
		if time.Since(lastFaultLog) >= faultLogInterval {
			lastFaultLog = time.Now()
			if f := l.bridge.LastFault(); f != nil {
				l.logger.Warnf("state source fault (%d total): %v", l.bridge.Stats().SourceFaults, f.Err)
			}
		}
	}
}

// Stats returns the loop counters.
func (l *Loop) Stats() LoopStats {
	return LoopStats{
		Cycles:   l.cycles.Load(),
		Skipped:  l.skipped.Load(),
		Overruns: l.overruns.Load(),
		MaxCycle: time.Duration(l.maxCycle.Load()),
	}
}
