// Package sim provides a simulated robot state source.
package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/clintpurser/frankahw/robotstate"
)

// ErrInjectedFault is returned by the source on every FaultEvery-th read.
var ErrInjectedFault = errors.New("simulated state source fault")

// homePosition is the Franka ready pose.
var homePosition = [robotstate.NumJoints]float64{0, -math.Pi / 4, 0, -3 * math.Pi / 4, 0, math.Pi / 2, math.Pi / 4}

// Config configures the simulated source.
type Config struct {
	// Amplitude of the joint oscillation around the home pose [rad].
	Amplitude float64 `json:"amplitude,omitempty"`
	// Frequency of the joint oscillation [Hz].
	Frequency float64 `json:"frequency,omitempty"`
	// FaultEvery makes every n-th read fail. Zero disables faults.
	FaultEvery int `json:"fault_every,omitempty"`
	// ReadLatency is added to every read to mimic a blocking transport.
	ReadLatency time.Duration `json:"read_latency,omitempty"`
}

// Source produces a smooth, deterministic joint motion. The robot clock advances by one
// control period per read regardless of wall time, so test runs are reproducible.
type Source struct {
	cfg    Config
	period time.Duration

	mu    sync.Mutex
	reads uint64
	tick  uint64
}

// NewSource creates a simulated source advancing its clock by period per read.
func NewSource(cfg Config, period time.Duration) *Source {
	if cfg.Amplitude == 0 {
		cfg.Amplitude = 0.2
	}
	if cfg.Frequency == 0 {
		cfg.Frequency = 0.5
	}
	if period <= 0 {
		period = time.Millisecond
	}
	return &Source{cfg: cfg, period: period}
}

// ReadState implements bridge.StateSource.
func (s *Source) ReadState(ctx context.Context) (robotstate.Sample, error) {
	if s.cfg.ReadLatency > 0 {
		t := time.NewTimer(s.cfg.ReadLatency)
		select {
		case <-ctx.Done():
			t.Stop()
			return robotstate.Sample{}, ctx.Err()
		case <-t.C:
		}
	}

	s.mu.Lock()
	s.reads++
	if s.cfg.FaultEvery > 0 && s.reads%uint64(s.cfg.FaultEvery) == 0 {
		s.mu.Unlock()
		return robotstate.Sample{}, ErrInjectedFault
	}
	s.tick++
	tick := s.tick
	s.mu.Unlock()

	return s.sampleAt(time.Duration(tick) * s.period), nil
}

// sampleAt computes the state at robot time t.
func (s *Source) sampleAt(t time.Duration) robotstate.Sample {
	w := 2 * math.Pi * s.cfg.Frequency
	sec := t.Seconds()

	var out robotstate.Sample
	out.Time = t
	out.RobotMode = robotstate.RobotModeMove
	out.ControlSuccessRate = 1
	for i := 0; i < robotstate.NumJoints; i++ {
		phase := float64(i) * math.Pi / robotstate.NumJoints
		out.Q[i] = homePosition[i] + s.cfg.Amplitude*math.Sin(w*sec+phase)
		out.DQ[i] = s.cfg.Amplitude * w * math.Cos(w*sec+phase)
		out.QD[i] = homePosition[i] + s.cfg.Amplitude*math.Sin(w*(sec+s.period.Seconds())+phase)
		// Gravity-ish load that follows the joint angle.
		out.TauJ[i] = 2 * math.Sin(out.Q[i])
		out.TauJD[i] = out.TauJ[i]
		out.DTauJ[i] = 2 * math.Cos(out.Q[i]) * out.DQ[i]
	}
	out.Elbow = [robotstate.ElbowElements]float64{out.Q[2], -1}

	// End effector pointing down, circling above the table.
	out.OTEE = [robotstate.PoseElements]float64{
		1, 0, 0, 0,
		0, -1, 0, 0,
		0, 0, -1, 0,
		0.4 + 0.05*math.Cos(w*sec), 0.05 * math.Sin(w*sec), 0.4, 1,
	}
	return out
}

// Reads returns how many times ReadState was called.
func (s *Source) Reads() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}
