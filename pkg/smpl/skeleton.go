package smpl

import (
	"fmt"

	"github.com/Faultbox/smplcache/pkg/math"
)

// KinematicTree is a joint hierarchy stored as a flat parent table. Every
// non-root joint has a parent with a lower index, so a single forward pass
// visits parents before children.
type KinematicTree struct {
	parents []int
}

// NewKinematicTree validates a parent table. The entry for joint 0 is ignored
// (archives store -1 or the max uint32 there).
func NewKinematicTree(parents []int) (*KinematicTree, error) {
	if len(parents) == 0 {
		return nil, fmt.Errorf("%w: kinematic tree has no joints", ErrConfiguration)
	}
	p := make([]int, len(parents))
	p[0] = -1
	for j := 1; j < len(parents); j++ {
		if parents[j] < 0 || parents[j] >= j {
			return nil, fmt.Errorf("%w: joint %d has parent %d, parents must precede children",
				ErrConfiguration, j, parents[j])
		}
		p[j] = parents[j]
	}
	return &KinematicTree{parents: p}, nil
}

// NumJoints returns the number of joints in the tree.
func (k *KinematicTree) NumJoints() int {
	return len(k.parents)
}

// Parent returns the parent of joint j, or -1 for the root.
func (k *KinematicTree) Parent(j int) int {
	return k.parents[j]
}

// Descendants reports, for every joint, whether it is j itself or lies below j.
func (k *KinematicTree) Descendants(j int) []bool {
	in := make([]bool, len(k.parents))
	in[j] = true
	for i := j + 1; i < len(k.parents); i++ {
		in[i] = in[k.parents[i]]
	}
	return in
}

// Pose composes per-joint local rotations along the tree.
//
// rotations and rest hold one entry per joint. The returned transforms are
// relative to each joint's rest location and feed linear blend skinning; the
// posed slice holds the world-space joint locations.
func (k *KinematicTree) Pose(rotations []math.Mat3, rest []math.Vec3) (transforms []math.Mat4, posed []math.Vec3, err error) {
	n := len(k.parents)
	if len(rotations) != n || len(rest) != n {
		return nil, nil, fmt.Errorf("%w: tree has %d joints, got %d rotations and %d rest locations",
			ErrInputShape, n, len(rotations), len(rest))
	}

	global := make([]math.Mat4, n)
	global[0] = math.Affine(rotations[0], rest[0])
	for j := 1; j < n; j++ {
		p := k.parents[j]
		local := math.Affine(rotations[j], rest[j].Sub(rest[p]))
		global[j] = global[p].Mul(local)
	}

	transforms = make([]math.Mat4, n)
	posed = make([]math.Vec3, n)
	for j, g := range global {
		posed[j] = g.Translation()
		transforms[j] = g.WithTranslation(posed[j].Sub(g.TransformDirection(rest[j])))
	}
	return transforms, posed, nil
}
