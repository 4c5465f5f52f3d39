package bridge

import (
	"slices"
	"time"

	"github.com/clintpurser/frankahw/robotstate"
)

// Channel names.
const (
	FrankaStatesChannel = "franka_states"
	JointStatesChannel  = "joint_states"
)

// FrankaStates is the payload of the franka_states channel: the full snapshot.
type FrankaStates struct {
	robotstate.State
}

// JointStates is the payload of the joint_states channel.
type JointStates struct {
	Cycle     uint64                        `json:"cycle"`
	RobotTime time.Duration                 `json:"robot_time"`
	Names     []string                      `json:"name"`
	Position  [robotstate.NumJoints]float64 `json:"position"`
	Velocity  [robotstate.NumJoints]float64 `json:"velocity"`
	Effort    [robotstate.NumJoints]float64 `json:"effort"`
}

func newJointStates(s *robotstate.State, names []string) JointStates {
	return JointStates{
		Cycle:     s.Cycle,
		RobotTime: s.Time,
		Names:     slices.Clone(names),
		Position:  s.Q,
		Velocity:  s.DQ,
		Effort:    s.TauJ,
	}
}
