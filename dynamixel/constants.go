// Package dynamixel reads robot state from a chain of Dynamixel motors. A seven-motor chain
// stands in for the arm on the bench and feeds the bridge through the same state contract.
package dynamixel

import "github.com/clintpurser/frankahw/robotstate"

// Protocol and communication constants.
const (
	DefaultBaudRate = 1000000

	// Control table addresses (XM series, Protocol 2.0)
	AddrGoalPosition    uint16 = 116
	AddrPresentCurrent  uint16 = 126
	AddrPresentVelocity uint16 = 128
	AddrPresentPosition uint16 = 132

	// presentBlockLen covers present current, velocity and position in one read.
	presentBlockLen = 10
	goalLen         = 4

	// Position resolution
	TicksPerRevolution = 4096
	CenterPosition     = 2048

	// VelocityUnitRPM is the size of one present-velocity unit.
	VelocityUnitRPM = 0.229
	// CurrentUnitAmps is the size of one present-current unit.
	CurrentUnitAmps = 0.00269

	// DefaultTorqueConstant [Nm/A] of an XM430 at 12 V.
	DefaultTorqueConstant = 1.78
)

// DefaultMotorIDs maps joints 1..7 onto motor IDs 1..7.
var DefaultMotorIDs = [robotstate.NumJoints]int{1, 2, 3, 4, 5, 6, 7}
