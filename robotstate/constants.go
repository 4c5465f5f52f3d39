// Package robotstate defines the per-cycle robot state snapshot for the Franka arm and the
// typed read-only views consumers use to look at it.
package robotstate

// Robot dimensions.
const (
	// NumJoints is the number of arm joints.
	NumJoints = 7

	// CartesianDOF is the dimension of a task-space wrench or collision vector.
	CartesianDOF = 6

	// PoseElements is the number of entries of a homogeneous 4x4 transform.
	PoseElements = 16

	// ElbowElements is the size of the elbow configuration (joint 3 position, joint 4 flip).
	ElbowElements = 2
)

// DefaultJointNames are the joint names the Franka description uses.
var DefaultJointNames = []string{
	"panda_joint1",
	"panda_joint2",
	"panda_joint3",
	"panda_joint4",
	"panda_joint5",
	"panda_joint6",
	"panda_joint7",
}

// RobotMode mirrors the robot controller's operating mode.
type RobotMode uint8

// Robot modes reported by the controller.
const (
	RobotModeOther RobotMode = iota
	RobotModeIdle
	RobotModeMove
	RobotModeGuiding
	RobotModeReflex
	RobotModeUserStopped
	RobotModeAutomaticErrorRecovery
)

var robotModeNames = [...]string{
	RobotModeOther:                  "other",
	RobotModeIdle:                   "idle",
	RobotModeMove:                   "move",
	RobotModeGuiding:                "guiding",
	RobotModeReflex:                 "reflex",
	RobotModeUserStopped:            "user_stopped",
	RobotModeAutomaticErrorRecovery: "automatic_error_recovery",
}

func (m RobotMode) String() string {
	if int(m) < len(robotModeNames) {
		return robotModeNames[m]
	}
	return "unknown"
}
