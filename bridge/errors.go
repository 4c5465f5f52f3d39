package bridge

import (
	"time"

	"github.com/pkg/errors"
)

// Construction faults. They are returned by New before the bridge can run.
var (
	ErrJointCount         = errors.New("joint name count does not match the robot's degrees of freedom")
	ErrEmptyJointName     = errors.New("joint name must not be empty")
	ErrDuplicateJointName = errors.New("duplicate joint name")
	ErrNilSource          = errors.New("state source is required")
)

// Fault records a failed read from the state source.
type Fault struct {
	Err   error
	At    time.Time
	Cycle uint64 // last good cycle when the fault happened
}
