// Package motion prepares motion-capture sequences for baking: frame-rate
// decimation, pose truncation to the model's joints, root retargeting and the
// arm separation heuristic. Every step returns a new sequence and leaves its
// input untouched.
package motion

import (
	"errors"
	"fmt"
	gomath "math"

	"github.com/Faultbox/smplcache/pkg/formats"
	"github.com/Faultbox/smplcache/pkg/math"
)

var (
	ErrPoseWidth = errors.New("pose has too few values")
	ErrAxes      = errors.New("invalid rotation axes")
	ErrJoint     = errors.New("joint out of range")
)

// Decimate keeps every n-th frame where n = floor(FrameRate / targetFPS),
// at least 1. A zero target or unknown frame rate leaves the sequence as is.
func Decimate(m *formats.Motion, targetFPS float64) *formats.Motion {
	factor := 1
	if targetFPS > 0 && m.FrameRate > 0 {
		factor = max(int(gomath.Floor(m.FrameRate/targetFPS)), 1)
	}

	out := &formats.Motion{FrameRate: m.FrameRate / float64(factor)}
	for f := 0; f < m.NumFrames(); f += factor {
		out.Poses = append(out.Poses, m.Poses[f])
		out.Trans = append(out.Trans, m.Trans[f])
	}
	return out
}

// Truncate keeps the first 3*joints pose values of every frame.
func Truncate(m *formats.Motion, joints int) (*formats.Motion, error) {
	width := 3 * joints
	out := &formats.Motion{
		Poses:     make([][]float64, m.NumFrames()),
		Trans:     m.Trans,
		FrameRate: m.FrameRate,
	}
	for f, pose := range m.Poses {
		if len(pose) < width {
			return nil, fmt.Errorf("%w: frame %d has %d values, need %d", ErrPoseWidth, f, len(pose), width)
		}
		out.Poses[f] = pose[:width:width]
	}
	return out, nil
}

// EulerRotation composes elementary rotations about the lowercase axes
// ("x", "y", "z") in order, each about the fixed frame.
func EulerRotation(axes string, degrees []float64) (math.Quat, error) {
	if len(axes) != len(degrees) {
		return math.Quat{}, fmt.Errorf("%w: %d axes for %d angles", ErrAxes, len(axes), len(degrees))
	}
	q := math.QuatIdentity()
	for i, a := range axes {
		var axis math.Vec3
		switch a {
		case 'x':
			axis = math.Vec3{X: 1}
		case 'y':
			axis = math.Vec3{Y: 1}
		case 'z':
			axis = math.Vec3{Z: 1}
		default:
			return math.Quat{}, fmt.Errorf("%w: %q", ErrAxes, axes)
		}
		q = math.QuatFromAxisAngle(axis, degrees[i]*gomath.Pi/180).Mul(q)
	}
	return q, nil
}

// Retarget pre-multiplies every root orientation by swap and rotates the
// root translation with it.
func Retarget(m *formats.Motion, swap math.Quat) (*formats.Motion, error) {
	out := &formats.Motion{
		Poses:     make([][]float64, m.NumFrames()),
		Trans:     make([][]float64, len(m.Trans)),
		FrameRate: m.FrameRate,
	}
	for f, pose := range m.Poses {
		if len(pose) < 3 {
			return nil, fmt.Errorf("%w: frame %d has no root rotation", ErrPoseWidth, f)
		}
		p := append([]float64(nil), pose...)
		setRotVec(p, 0, swap.Mul(math.QuatFromRotVec(math.V3(p))))
		out.Poses[f] = p
	}
	for f, t := range m.Trans {
		r := swap.Rotate(math.V3(t)).Array()
		out.Trans[f] = r[:]
	}
	return out, nil
}

// Arms configures SeparateArms.
type Arms struct {
	LeftJoint    int
	RightJoint   int
	Degrees      float64 // left arm turns by -Degrees about Z, right by +Degrees
	DampedJoints []int
	Damping      float64 // scale applied to the damped joints' axis-angle
}

// SeparateArms swings the arms away from the torso and damps the listed
// joints, which keeps hands from intersecting the body in rest-like poses.
func SeparateArms(m *formats.Motion, arms Arms) (*formats.Motion, error) {
	left := math.QuatFromAxisAngle(math.Vec3{Z: 1}, -arms.Degrees*gomath.Pi/180)
	right := math.QuatFromAxisAngle(math.Vec3{Z: 1}, arms.Degrees*gomath.Pi/180)

	out := &formats.Motion{
		Poses:     make([][]float64, m.NumFrames()),
		Trans:     m.Trans,
		FrameRate: m.FrameRate,
	}
	for f, pose := range m.Poses {
		joints := len(pose) / 3
		for _, j := range append([]int{arms.LeftJoint, arms.RightJoint}, arms.DampedJoints...) {
			if j < 0 || j >= joints {
				return nil, fmt.Errorf("%w: joint %d of %d in frame %d", ErrJoint, j, joints, f)
			}
		}

		p := append([]float64(nil), pose...)
		setRotVec(p, arms.LeftJoint, left.Mul(math.QuatFromRotVec(math.V3(p[3*arms.LeftJoint:]))))
		setRotVec(p, arms.RightJoint, right.Mul(math.QuatFromRotVec(math.V3(p[3*arms.RightJoint:]))))
		for _, j := range arms.DampedJoints {
			for c := 0; c < 3; c++ {
				p[3*j+c] *= arms.Damping
			}
		}
		out.Poses[f] = p
	}
	return out, nil
}

func setRotVec(pose []float64, joint int, q math.Quat) {
	v := q.RotVec()
	pose[3*joint], pose[3*joint+1], pose[3*joint+2] = v.X, v.Y, v.Z
}

// Options selects the preparation steps applied by Prepare.
type Options struct {
	TargetFPS    float64
	Joints       int
	Retarget     bool
	Swap         math.Quat
	SeparateArms bool
	Arms         Arms
}

// Prepare decimates, truncates, retargets and optionally separates arms, in
// that order.
func Prepare(m *formats.Motion, opts Options) (*formats.Motion, error) {
	out, err := Truncate(Decimate(m, opts.TargetFPS), opts.Joints)
	if err != nil {
		return nil, err
	}
	if opts.Retarget {
		if out, err = Retarget(out, opts.Swap); err != nil {
			return nil, err
		}
	}
	if opts.SeparateArms {
		if out, err = SeparateArms(out, opts.Arms); err != nil {
			return nil, err
		}
	}
	return out, nil
}
