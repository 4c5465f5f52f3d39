// Package bridge ties a robot state source to the typed state views and the telemetry
// channels. It is driven once per control cycle by a single goroutine.
package bridge

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"

	"github.com/clintpurser/frankahw/realtime"
	"github.com/clintpurser/frankahw/robotstate"
)

// StateSource supplies one raw sample per control cycle. ReadState may block, but it must
// return within the control period; bounding it is the source's job.
type StateSource interface {
	ReadState(ctx context.Context) (robotstate.Sample, error)
}

// Status is the bridge lifecycle state.
type Status int32

// Bridge lifecycle states.
const (
	Uninitialized Status = iota
	Running
)

func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time copy of the bridge counters.
type Stats struct {
	Status       string         `json:"status"`
	Cycles       uint64         `json:"cycles"`
	SourceFaults uint64         `json:"source_faults"`
	FrankaStates realtime.Stats `json:"franka_states"`
	JointStates  realtime.Stats `json:"joint_states"`
}

// Bridge owns the current snapshot, the views over it and the outbound channels.
//
// Update, UpdateStates and the Publish methods must be called from a single goroutine, the
// control loop. Everything else is safe to call concurrently.
type Bridge struct {
	jointNames []string
	source     StateSource
	logger     logging.Logger

	status  atomic.Int32
	current atomic.Pointer[robotstate.State]

	jointStateView      *robotstate.JointStateView
	frankaJointView     *robotstate.FrankaJointView
	frankaCartesianView *robotstate.FrankaCartesianView

	frankaStates *realtime.Channel[FrankaStates]
	jointStates  *realtime.Channel[JointStates]

	cycles    atomic.Uint64
	faults    atomic.Uint64
	lastFault atomic.Pointer[Fault]
}

// New creates a bridge for the given ordered joint names reading from src.
func New(jointNames []string, src StateSource, logger logging.Logger) (*Bridge, error) {
	if err := ValidateJointNames(jointNames); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, ErrNilSource
	}

	names := make([]string, len(jointNames))
	copy(names, jointNames)

	return &Bridge{
		jointNames:          names,
		source:              src,
		logger:              logger,
		jointStateView:      robotstate.NewJointStateView(names),
		frankaJointView:     robotstate.NewFrankaJointView(names),
		frankaCartesianView: robotstate.NewFrankaCartesianView(),
		frankaStates:        realtime.NewChannel[FrankaStates](FrankaStatesChannel),
		jointStates:         realtime.NewChannel[JointStates](JointStatesChannel),
	}, nil
}

// ValidateJointNames checks that names has one unique, non-empty entry per joint.
func ValidateJointNames(names []string) error {
	if len(names) != robotstate.NumJoints {
		return errors.Wrapf(ErrJointCount, "expected %d joint names, got %d", robotstate.NumJoints, len(names))
	}
	seen := make(map[string]struct{}, len(names))
	for i, n := range names {
		if n == "" {
			return errors.Wrapf(ErrEmptyJointName, "joint %d", i)
		}
		if _, dup := seen[n]; dup {
			return errors.Wrapf(ErrDuplicateJointName, "%q", n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

// Update reads one sample from the source and makes it the current snapshot. It returns false
// if the source failed; the previous snapshot and views are left as they were.
func (b *Bridge) Update(ctx context.Context) bool {
	sample, err := b.source.ReadState(ctx)
	if err != nil {
		b.faults.Add(1)
		b.lastFault.Store(&Fault{Err: err, At: time.Now(), Cycle: b.cycles.Load()})
		return false
	}
	b.UpdateStates(sample)
	return true
}

// UpdateStates makes sample the current snapshot. Used when samples are pushed by the source
// rather than pulled by Update.
func (b *Bridge) UpdateStates(sample robotstate.Sample) {
	s := robotstate.Build(sample, b.cycles.Add(1))
	b.current.Store(s)
	b.jointStateView.Refresh(s)
	b.frankaJointView.Refresh(s)
	b.frankaCartesianView.Refresh(s)

	if b.status.CompareAndSwap(int32(Uninitialized), int32(Running)) {
		b.logger.Infof("robot state bridge running, first sample at robot time %v", sample.Time)
	}
}

// PublishFrankaStates offers the current snapshot to the franka_states channel. Nothing is
// attempted before the first snapshot.
func (b *Bridge) PublishFrankaStates() {
	s := b.current.Load()
	if s == nil {
		return
	}
	b.frankaStates.TryPublish(FrankaStates{State: *s})
}

// PublishJointStates offers the current joint states to the joint_states channel. Nothing is
// attempted before the first snapshot.
func (b *Bridge) PublishJointStates() {
	s := b.current.Load()
	if s == nil {
		return
	}
	b.jointStates.TryPublish(newJointStates(s, b.jointNames))
}

// Snapshot returns the current snapshot, or nil before the first successful update.
// The returned value must not be modified.
func (b *Bridge) Snapshot() *robotstate.State {
	return b.current.Load()
}

// Status returns the lifecycle state.
func (b *Bridge) Status() Status {
	return Status(b.status.Load())
}

// JointNames returns a copy of the configured joint names.
func (b *Bridge) JointNames() []string {
	names := make([]string, len(b.jointNames))
	copy(names, b.jointNames)
	return names
}

// JointStateView returns the generic joint-state view.
func (b *Bridge) JointStateView() *robotstate.JointStateView {
	return b.jointStateView
}

// FrankaJointView returns the joint-space view.
func (b *Bridge) FrankaJointView() *robotstate.FrankaJointView {
	return b.frankaJointView
}

// FrankaCartesianView returns the cartesian view.
func (b *Bridge) FrankaCartesianView() *robotstate.FrankaCartesianView {
	return b.frankaCartesianView
}

// FrankaStatesChannel returns the channel carrying full snapshots.
func (b *Bridge) FrankaStatesChannel() *realtime.Channel[FrankaStates] {
	return b.frankaStates
}

// JointStatesChannel returns the channel carrying joint states.
func (b *Bridge) JointStatesChannel() *realtime.Channel[JointStates] {
	return b.jointStates
}

// LastFault returns the most recent source fault, or nil if there was none.
func (b *Bridge) LastFault() *Fault {
	return b.lastFault.Load()
}

// Stats returns the bridge and channel counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Status:       b.Status().String(),
		Cycles:       b.cycles.Load(),
		SourceFaults: b.faults.Load(),
		FrankaStates: b.frankaStates.Stats(),
		JointStates:  b.jointStates.Stats(),
	}
}
