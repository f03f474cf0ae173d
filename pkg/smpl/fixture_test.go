package smpl

import (
	gomath "math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/Faultbox/smplcache/pkg/math"
)

// smplParents is the 24-joint SMPL kinematic tree.
var smplParents = []int{-1, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 9, 9, 12, 13, 14, 16, 17, 18, 19, 20, 21}

// boneOffset is where the second vertex of every joint sits relative to the joint.
var boneOffset = math.Vec3{X: 0, Y: -0.05, Z: 0.02}

const testShapes = 10

func jointLocation(j int) math.Vec3 {
	return math.Vec3{X: 0.1 * float64(j), Y: 0.05 * float64(j%3), Z: -0.02 * float64(j)}
}

// newTestParams builds a small model with two vertices per joint: vertex 2j
// sits on joint j (and regresses it), vertex 2j+1 sits at boneOffset from it.
// Both are rigidly weighted to joint j.
func newTestParams(t *testing.T) *Params {
	t.Helper()

	nj := len(smplParents)
	nv := 2 * nj

	template := make([]math.Vec3, nv)
	regressor := make([][]RegressorEntry, nj)
	weights := mat.NewDense(nv, nj, nil)
	for j := 0; j < nj; j++ {
		template[2*j] = jointLocation(j)
		template[2*j+1] = jointLocation(j).Add(boneOffset)
		regressor[j] = []RegressorEntry{{Vertex: 2 * j, Weight: 1}}
		weights.Set(2*j, j, 1)
		weights.Set(2*j+1, j, 1)
	}

	var faces [][3]int
	for v := 0; v+2 < nv; v += 2 {
		faces = append(faces, [3]int{v, v + 1, v + 2})
	}

	shapeBasis := mat.NewDense(testShapes, 3*nv, nil)
	for s := 0; s < testShapes; s++ {
		for c := 0; c < 3*nv; c++ {
			shapeBasis.Set(s, c, 0.01*float64(s+1)*gomath.Sin(float64(c)))
		}
	}

	reg, err := NewJointRegressor(regressor)
	require.NoError(t, err)

	return &Params{
		Template:   template,
		Faces:      faces,
		ShapeBasis: shapeBasis,
		PoseBasis:  mat.NewDense(9*(nj-1), 3*nv, nil),
		Regressor:  reg,
		Weights:    weights,
		Parents:    append([]int(nil), smplParents...),
	}
}

func newTestModel(t *testing.T) *Model {
	t.Helper()
	m, err := NewModel(newTestParams(t))
	require.NoError(t, err)
	return m
}

func zeros(n int) []float64 {
	return make([]float64, n)
}

func assertVecInDelta(t *testing.T, want, got math.Vec3, delta float64, msgAndArgs ...interface{}) {
	t.Helper()
	require.InDelta(t, want.X, got.X, delta, msgAndArgs...)
	require.InDelta(t, want.Y, got.Y, delta, msgAndArgs...)
	require.InDelta(t, want.Z, got.Z, delta, msgAndArgs...)
}
