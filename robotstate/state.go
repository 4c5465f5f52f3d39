package robotstate

import "time"

// Sample is one raw robot-state reading as delivered by a state source. Sources are expected
// to hand over an internally consistent sample; fields a source cannot measure stay zero.
//
// Names follow the controller's notation: O is the base frame, EE the end-effector frame,
// K the stiffness frame, a trailing D marks a desired value.
type Sample struct {
	// Time is the robot controller clock at which the sample was taken.
	Time      time.Duration `json:"time"`
	RobotMode RobotMode     `json:"robot_mode"`

	Q     [NumJoints]float64 `json:"q"`       // joint positions [rad]
	DQ    [NumJoints]float64 `json:"dq"`      // joint velocities [rad/s]
	QD    [NumJoints]float64 `json:"q_d"`     // desired joint positions [rad]
	TauJD [NumJoints]float64 `json:"tau_J_d"` // commanded joint torques [Nm]
	TauJ  [NumJoints]float64 `json:"tau_J"`   // measured joint torques [Nm]
	DTauJ [NumJoints]float64 `json:"dtau_J"`  // measured joint torque derivatives [Nm/s]

	TauExtHatFiltered [NumJoints]float64    `json:"tau_ext_hat_filtered"` // external joint torque estimate [Nm]
	OFExtHatK         [CartesianDOF]float64 `json:"O_F_ext_hat_K"`        // external wrench on the stiffness frame, in base frame

	JointCollision     [NumJoints]float64    `json:"joint_collision"`
	JointContact       [NumJoints]float64    `json:"joint_contact"`
	CartesianCollision [CartesianDOF]float64 `json:"cartesian_collision"`
	CartesianContact   [CartesianDOF]float64 `json:"cartesian_contact"`

	OFExtHatEE  [CartesianDOF]float64 `json:"O_F_ext_hat_EE"`  // end-effector wrench estimate in base frame
	EEFExtHatEE [CartesianDOF]float64 `json:"EE_F_ext_hat_EE"` // end-effector wrench estimate in end-effector frame

	Elbow [ElbowElements]float64 `json:"elbow"`
	// OTEE is the end-effector pose in base frame, column-major, translation in meters.
	OTEE [PoseElements]float64 `json:"O_T_EE"`

	// ControlSuccessRate is the share of successful control commands over the last 100 cycles.
	ControlSuccessRate float64 `json:"control_command_success_rate"`
}

// State is the snapshot of one control cycle. It is never modified after Build returns;
// the next cycle replaces it with a new value.
type State struct {
	Sample

	// Cycle is the bridge-local cycle counter, starting at 1.
	Cycle      uint64    `json:"cycle"`
	ReceivedAt time.Time `json:"received_at"`
}

// Build copies a raw sample into a new snapshot. All fields are fixed-size, so the copy is
// bounded regardless of the sample's content.
func Build(sample Sample, cycle uint64) *State {
	return &State{
		Sample:     sample,
		Cycle:      cycle,
		ReceivedAt: time.Now(),
	}
}
