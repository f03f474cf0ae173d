package smpl

import (
	"fmt"
	gomath "math"

	"github.com/Faultbox/smplcache/pkg/math"
)

// smallAngle is the rotation angle below which Rodrigues' formula switches to
// its second-order Taylor expansion.
const smallAngle = 1e-8

// AxisAngleToMatrix converts a rotation vector (unit axis scaled by the angle
// in radians) into a rotation matrix using the exponential map.
func AxisAngleToMatrix(v math.Vec3) math.Mat3 {
	theta := v.Length()
	if theta < smallAngle {
		k := math.Skew(v)
		return math.Identity3().Add(k).Add(k.Mul(k).Scale(0.5))
	}

	k := math.Skew(v.Scale(1 / theta))
	return math.Identity3().
		Add(k.Scale(gomath.Sin(theta))).
		Add(k.Mul(k).Scale(1 - gomath.Cos(theta)))
}

// PoseToRotations converts a flat pose vector of 3 floats per joint into one
// rotation matrix per joint.
func PoseToRotations(pose []float64) ([]math.Mat3, error) {
	if len(pose)%3 != 0 {
		return nil, fmt.Errorf("%w: pose has %d values, not a multiple of 3", ErrInputShape, len(pose))
	}
	rotations := make([]math.Mat3, len(pose)/3)
	for j := range rotations {
		rotations[j] = AxisAngleToMatrix(math.V3(pose[j*3:]))
	}
	return rotations, nil
}

// PoseFeature flattens (R - I) of every non-root joint in row-major order. The
// result has 9*(len(rotations)-1) entries and drives the pose-corrective basis.
func PoseFeature(rotations []math.Mat3) []float64 {
	if len(rotations) < 2 {
		return nil
	}
	feature := make([]float64, 0, 9*(len(rotations)-1))
	id := math.Identity3()
	for _, r := range rotations[1:] {
		d := r.Sub(id).RowMajor()
		feature = append(feature, d[:]...)
	}
	return feature
}
