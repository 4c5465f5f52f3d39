package robotstate

import (
	"slices"
	"sync/atomic"

	"go.viam.com/rdk/spatialmath"
)

// Each view keeps only a pointer to the current snapshot. Refresh swaps the pointer and
// Load projects from a single pointer load, so a reader gets one cycle's fields or the
// previous cycle's fields, never a mix of both.

// JointStates is the generic named-joint projection: position, velocity and effort per joint.
type JointStates struct {
	Cycle    uint64
	Names    []string
	Position [NumJoints]float64
	Velocity [NumJoints]float64
	Effort   [NumJoints]float64
}

// Joint returns the position, velocity and effort of the named joint.
func (js JointStates) Joint(name string) (position, velocity, effort float64, ok bool) {
	for i, n := range js.Names {
		if n == name {
			return js.Position[i], js.Velocity[i], js.Effort[i], true
		}
	}
	return 0, 0, 0, false
}

// JointStateView serves JointStates to generic joint-state consumers.
type JointStateView struct {
	names []string
	cur   atomic.Pointer[State]
}

// NewJointStateView returns a view labelling joints with a copy of names.
func NewJointStateView(names []string) *JointStateView {
	return &JointStateView{names: slices.Clone(names)}
}

// Refresh points the view at s.
func (v *JointStateView) Refresh(s *State) {
	v.cur.Store(s)
}

// Load returns the projection of the current snapshot, or false before the first refresh.
func (v *JointStateView) Load() (JointStates, bool) {
	s := v.cur.Load()
	if s == nil {
		return JointStates{}, false
	}
	return JointStates{
		Cycle:    s.Cycle,
		Names:    slices.Clone(v.names),
		Position: s.Q,
		Velocity: s.DQ,
		Effort:   s.TauJ,
	}, true
}

// FrankaJointState is the joint-space projection used by joint-space controllers.
type FrankaJointState struct {
	Cycle uint64
	Names []string

	Position         [NumJoints]float64
	Velocity         [NumJoints]float64
	DesiredPosition  [NumJoints]float64
	CommandedTorque  [NumJoints]float64
	MeasuredTorque   [NumJoints]float64
	TorqueDerivative [NumJoints]float64
	ExternalTorque   [NumJoints]float64
	Collision        [NumJoints]float64
	Contact          [NumJoints]float64
}

// FrankaJointView serves FrankaJointState.
type FrankaJointView struct {
	names []string
	cur   atomic.Pointer[State]
}

// NewFrankaJointView returns a joint-space view labelled with a copy of names.
func NewFrankaJointView(names []string) *FrankaJointView {
	return &FrankaJointView{names: slices.Clone(names)}
}

// Refresh points the view at s.
func (v *FrankaJointView) Refresh(s *State) {
	v.cur.Store(s)
}

// Load returns the projection of the current snapshot, or false before the first refresh.
func (v *FrankaJointView) Load() (FrankaJointState, bool) {
	s := v.cur.Load()
	if s == nil {
		return FrankaJointState{}, false
	}
	return FrankaJointState{
		Cycle:            s.Cycle,
		Names:            slices.Clone(v.names),
		Position:         s.Q,
		Velocity:         s.DQ,
		DesiredPosition:  s.QD,
		CommandedTorque:  s.TauJD,
		MeasuredTorque:   s.TauJ,
		TorqueDerivative: s.DTauJ,
		ExternalTorque:   s.TauExtHatFiltered,
		Collision:        s.JointCollision,
		Contact:          s.JointContact,
	}, true
}

// FrankaCartesianState is the task-space projection used by cartesian controllers.
type FrankaCartesianState struct {
	Cycle uint64

	// Pose is the column-major end-effector transform in base frame.
	Pose           [PoseElements]float64
	Elbow          [ElbowElements]float64
	ExternalWrench [CartesianDOF]float64
	WrenchInBase   [CartesianDOF]float64
	WrenchInEE     [CartesianDOF]float64
	Collision      [CartesianDOF]float64
	Contact        [CartesianDOF]float64
}

// SpatialPose converts Pose into a Viam pose.
func (cs FrankaCartesianState) SpatialPose() (spatialmath.Pose, error) {
	return PoseFromMatrix(cs.Pose)
}

// FrankaCartesianView serves FrankaCartesianState.
type FrankaCartesianView struct {
	cur atomic.Pointer[State]
}

// NewFrankaCartesianView returns an empty cartesian view.
func NewFrankaCartesianView() *FrankaCartesianView {
	return &FrankaCartesianView{}
}

// Refresh points the view at s.
func (v *FrankaCartesianView) Refresh(s *State) {
	v.cur.Store(s)
}

// Load returns the projection of the current snapshot, or false before the first refresh.
func (v *FrankaCartesianView) Load() (FrankaCartesianState, bool) {
	s := v.cur.Load()
	if s == nil {
		return FrankaCartesianState{}, false
	}
	return FrankaCartesianState{
		Cycle:          s.Cycle,
		Pose:           s.OTEE,
		Elbow:          s.Elbow,
		ExternalWrench: s.OFExtHatK,
		WrenchInBase:   s.OFExtHatEE,
		WrenchInEE:     s.EEFExtHatEE,
		Collision:      s.CartesianCollision,
		Contact:        s.CartesianContact,
	}, true
}
