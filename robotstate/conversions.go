package robotstate

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/spatialmath"
)

// metersToMillimeters converts controller translations to the millimeters Viam poses use.
const metersToMillimeters = 1000.0

// PoseFromMatrix converts a column-major homogeneous transform with translation in meters
// into a Viam pose.
func PoseFromMatrix(m [PoseElements]float64) (spatialmath.Pose, error) {
	// Row-major rotation block out of the column-major matrix.
	rot := []float64{
		m[0], m[4], m[8],
		m[1], m[5], m[9],
		m[2], m[6], m[10],
	}
	rm, err := spatialmath.NewRotationMatrix(rot)
	if err != nil {
		return nil, errors.Wrap(err, "invalid rotation block in end-effector transform")
	}
	return spatialmath.NewPose(Translation(m), rm), nil
}

// Translation returns the translation column of a column-major transform in millimeters.
func Translation(m [PoseElements]float64) r3.Vector {
	return r3.Vector{
		X: m[12] * metersToMillimeters,
		Y: m[13] * metersToMillimeters,
		Z: m[14] * metersToMillimeters,
	}
}

// SplitWrench splits a six-element wrench into its force [N] and torque [Nm] parts.
func SplitWrench(w [CartesianDOF]float64) (force, torque r3.Vector) {
	return r3.Vector{X: w[0], Y: w[1], Z: w[2]}, r3.Vector{X: w[3], Y: w[4], Z: w[5]}
}

// IdentityPose is the column-major identity transform.
func IdentityPose() [PoseElements]float64 {
	return [PoseElements]float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}
