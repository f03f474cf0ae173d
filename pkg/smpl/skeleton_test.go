package smpl

import (
	gomath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/smplcache/pkg/math"
)

func TestNewKinematicTree(t *testing.T) {
	tests := []struct {
		name    string
		parents []int
		wantErr bool
	}{
		{"smpl", smplParents, false},
		{"root sentinel uint32", []int{4294967295, 0, 1}, false},
		{"single joint", []int{-1}, false},
		{"empty", nil, true},
		{"self parent", []int{-1, 1}, true},
		{"child before parent", []int{-1, 2, 0}, true},
		{"negative parent", []int{-1, 0, -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := NewKinematicTree(tt.parents)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.parents), tree.NumJoints())
			assert.Equal(t, -1, tree.Parent(0))
		})
	}
}

func TestKinematicTreeDescendants(t *testing.T) {
	tree, err := NewKinematicTree(smplParents)
	require.NoError(t, err)

	got := tree.Descendants(1)
	for j, in := range got {
		want := j == 1 || j == 4 || j == 7 || j == 10
		assert.Equal(t, want, in, "joint %d", j)
	}

	all := tree.Descendants(0)
	for j, in := range all {
		assert.True(t, in, "joint %d", j)
	}
}

func identityRotations(n int) []math.Mat3 {
	rots := make([]math.Mat3, n)
	for i := range rots {
		rots[i] = math.Identity3()
	}
	return rots
}

func TestPoseRoot(t *testing.T) {
	tree, err := NewKinematicTree([]int{-1, 0, 1})
	require.NoError(t, err)

	rest := []math.Vec3{{X: 1, Y: 2, Z: 3}, {X: 1, Y: 3, Z: 3}, {X: 1, Y: 4, Z: 3}}
	rots := identityRotations(3)
	rots[0] = AxisAngleToMatrix(math.Vec3{Z: gomath.Pi / 2})

	transforms, posed, err := tree.Pose(rots, rest)
	require.NoError(t, err)

	// The root's global rotation is its own rotation and its posed location
	// is its rest location.
	assert.Equal(t, rots[0], transforms[0].Rotation())
	assert.Equal(t, rest[0], posed[0])

	// Children swing around the root: (0,1,0) becomes (-1,0,0).
	assertVecInDelta(t, math.Vec3{X: 0, Y: 2, Z: 3}, posed[1], 1e-12)
	assertVecInDelta(t, math.Vec3{X: -1, Y: 2, Z: 3}, posed[2], 1e-12)
}

func TestPoseTransformsMapRestToPosed(t *testing.T) {
	tree, err := NewKinematicTree(smplParents)
	require.NoError(t, err)

	rest := make([]math.Vec3, len(smplParents))
	rots := make([]math.Mat3, len(smplParents))
	for j := range rest {
		rest[j] = jointLocation(j)
		rots[j] = AxisAngleToMatrix(math.Vec3{X: 0.1 * float64(j), Y: -0.05, Z: 0.2})
	}

	transforms, posed, err := tree.Pose(rots, rest)
	require.NoError(t, err)

	for j := range rest {
		// A skinning transform carries a joint's rest location onto its
		// posed location.
		assertVecInDelta(t, posed[j], transforms[j].TransformPoint(rest[j]), 1e-12, "joint %d", j)
		assert.Equal(t, 1.0, transforms[j].At(3, 3))
	}
}

func TestPoseRestIsIdentity(t *testing.T) {
	tree, err := NewKinematicTree(smplParents)
	require.NoError(t, err)

	rest := make([]math.Vec3, len(smplParents))
	for j := range rest {
		rest[j] = jointLocation(j)
	}
	transforms, posed, err := tree.Pose(identityRotations(len(rest)), rest)
	require.NoError(t, err)

	id := math.Identity()
	for j := range transforms {
		for i := range id {
			assert.InDelta(t, id[i], transforms[j][i], 1e-12)
		}
		assertVecInDelta(t, rest[j], posed[j], 1e-12)
	}
}

func TestPoseLengthMismatch(t *testing.T) {
	tree, err := NewKinematicTree([]int{-1, 0})
	require.NoError(t, err)

	_, _, err = tree.Pose(identityRotations(3), make([]math.Vec3, 2))
	assert.ErrorIs(t, err, ErrInputShape)
}
