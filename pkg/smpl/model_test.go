package smpl

import (
	gomath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/Faultbox/smplcache/pkg/math"
)

func TestNewModel(t *testing.T) {
	m := newTestModel(t)

	assert.Equal(t, 48, m.NumVertices())
	assert.Equal(t, 24, m.NumJoints())
	assert.Equal(t, testShapes, m.NumShapes())
	assert.Len(t, m.Faces(), 23)
	assert.Equal(t, 12, m.Tree().Parent(15))
}

func TestNewModelConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"nil template", func(p *Params) { p.Template = nil }},
		{"parent after child", func(p *Params) { p.Parents[5] = 7 }},
		{"face out of range", func(p *Params) { p.Faces[0][2] = 48 }},
		{"negative face index", func(p *Params) { p.Faces[3][0] = -1 }},
		{"missing shape basis", func(p *Params) { p.ShapeBasis = nil }},
		{"shape basis width", func(p *Params) { p.ShapeBasis = mat.NewDense(10, 3, nil) }},
		{"pose basis rows", func(p *Params) { p.PoseBasis = mat.NewDense(9, 144, nil) }},
		{"missing regressor", func(p *Params) { p.Regressor = nil }},
		{"regressor joints", func(p *Params) {
			p.Regressor = JointRegressorFromDense(mat.NewDense(2, 48, nil))
		}},
		{"regressor vertex", func(p *Params) {
			p.Regressor, _ = NewJointRegressor(append(make([][]RegressorEntry, 23), []RegressorEntry{{Vertex: 99, Weight: 1}}))
		}},
		{"weights joints", func(p *Params) { p.Weights = mat.NewDense(48, 23, nil) }},
		{"weights vertices", func(p *Params) { p.Weights = mat.NewDense(47, 24, nil) }},
		{"missing weights", func(p *Params) { p.Weights = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestParams(t)
			tt.mutate(p)
			_, err := NewModel(p)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}

	_, err := NewModel(nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestEvaluateRestPose(t *testing.T) {
	m := newTestModel(t)
	p := newTestParams(t)

	res, err := m.Evaluate(Input{
		Shapes: [][]float64{zeros(testShapes)},
		Poses:  [][]float64{zeros(72)},
	})
	require.NoError(t, err)
	require.Len(t, res.Vertices, 1)
	for v, want := range p.Template {
		assertVecInDelta(t, want, res.Vertices[0][v], 1e-12, "vertex %d", v)
	}

	trans := []float64{0.5, -1, 2}
	res, err = m.Evaluate(Input{
		Shapes: [][]float64{zeros(testShapes)},
		Poses:  [][]float64{zeros(72)},
		Trans:  [][]float64{trans},
	})
	require.NoError(t, err)
	for v, want := range p.Template {
		assertVecInDelta(t, want.Add(math.V3(trans)), res.Vertices[0][v], 1e-12, "vertex %d", v)
	}
}

func TestEvaluateShapeOnly(t *testing.T) {
	m := newTestModel(t)
	p := newTestParams(t)

	shape := []float64{1, -2, 0, 0, 0.5, 0, 0, 0, 0, 3}
	trans := []float64{0, 0, 1}
	res, err := m.Evaluate(Input{
		Shapes: [][]float64{shape},
		Trans:  [][]float64{trans},
	})
	require.NoError(t, err)
	assert.Nil(t, res.Transforms)

	for v, base := range p.Template {
		var off [3]float64
		for c := 0; c < 3; c++ {
			for s, beta := range shape {
				off[c] += beta * p.ShapeBasis.At(s, 3*v+c)
			}
		}
		want := base.Add(math.Vec3{X: off[0], Y: off[1], Z: off[2] + 1})
		assertVecInDelta(t, want, res.Vertices[0][v], 1e-12, "vertex %d", v)
	}
}

func TestEvaluateRotatedJointMovesDescendantsOnly(t *testing.T) {
	m := newTestModel(t)
	p := newTestParams(t)

	pose := zeros(72)
	pose[3] = gomath.Pi / 2 // joint 1, about X

	res, err := m.Evaluate(Input{
		Shapes: [][]float64{zeros(testShapes)},
		Poses:  [][]float64{pose},
	})
	require.NoError(t, err)

	moving := m.Tree().Descendants(1)
	for v, base := range p.Template {
		j := v / 2
		got := res.Vertices[0][v]
		if !moving[j] {
			assertVecInDelta(t, base, got, 1e-12, "vertex %d of joint %d", v, j)
			continue
		}
		// Every vertex stays within its distance to the pivot.
		pivot := jointLocation(1)
		assert.InDelta(t, base.Distance(pivot), got.Distance(pivot), 1e-12, "vertex %d", v)
	}

	// The pivot stays put, the bone offset swings: (0,-0.05,0.02) -> (0,-0.02,-0.05).
	assertVecInDelta(t, jointLocation(1), res.Vertices[0][2], 1e-12)
	assertVecInDelta(t, jointLocation(1).Add(math.Vec3{Y: -0.02, Z: -0.05}), res.Vertices[0][3], 1e-12)
	assert.Greater(t, res.Vertices[0][9].Distance(p.Template[9]), 1e-3, "joint 4 follows joint 1")
}

func TestEvaluatePoseCorrective(t *testing.T) {
	p := newTestParams(t)
	// Feature entry 0 is (R1 - I)[0][0]; push vertex 0 along X by half of it.
	p.PoseBasis.Set(0, 0, 0.5)
	m, err := NewModel(p)
	require.NoError(t, err)

	pose := zeros(72)
	pose[5] = gomath.Pi / 2 // joint 1, about Z: (R - I)[0][0] = -1

	res, err := m.Evaluate(Input{
		Shapes:        [][]float64{zeros(testShapes)},
		Poses:         [][]float64{pose},
		Intermediates: true,
	})
	require.NoError(t, err)

	assert.InDelta(t, -0.5, res.Posed[0][0].X-p.Template[0].X, 1e-12)
	// Vertex 0 is bound to the unrotated root, so the offset reaches the output.
	assertVecInDelta(t, res.Posed[0][0], res.Vertices[0][0], 1e-12)
}

func TestEvaluateIntermediates(t *testing.T) {
	m := newTestModel(t)

	pose := zeros(72)
	pose[0], pose[1] = 0.3, -0.2
	pose[3*5+2] = 0.8

	res, err := m.Evaluate(Input{
		Shapes:        [][]float64{zeros(testShapes), zeros(testShapes)},
		Poses:         [][]float64{pose, zeros(72)},
		Intermediates: true,
	})
	require.NoError(t, err)

	for _, field := range [][][]math.Vec3{res.Vertices, res.Shaped, res.Posed} {
		require.Len(t, field, 2)
		assert.Len(t, field[0], 48)
	}
	require.Len(t, res.Rotations, 2)
	require.Len(t, res.Transforms, 2)
	assert.Len(t, res.Rotations[0], 24)
	assert.Len(t, res.Transforms[1], 24)

	// Root joint: posed location equals its rest location.
	assert.Equal(t, res.RestJoints[0][0], res.Joints[0][0])
	assert.Equal(t, AxisAngleToMatrix(math.Vec3{X: 0.3, Y: -0.2}), res.Rotations[0][0])
	assert.Equal(t, res.Rotations[0][0], res.Transforms[0][0].Rotation())

	// Second batch element is the rest pose.
	for j := range res.Joints[1] {
		assertVecInDelta(t, res.RestJoints[1][j], res.Joints[1][j], 1e-12)
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	m := newTestModel(t)

	shape := []float64{0.2, -0.1, 0.4, 0, 0, 1, 0, -0.3, 0, 0.05}
	pose := make([]float64, 72)
	for i := range pose {
		pose[i] = 0.05 * gomath.Sin(float64(i))
	}
	in := Input{
		Shapes: [][]float64{shape},
		Poses:  [][]float64{pose},
		Trans:  [][]float64{{1, 2, 3}},
	}

	first, err := m.Evaluate(in)
	require.NoError(t, err)
	second, err := m.Evaluate(in)
	require.NoError(t, err)
	assert.Equal(t, first.Vertices, second.Vertices)

	// Inputs are not modified.
	assert.Equal(t, 0.05*gomath.Sin(1), pose[1])
}

func TestEvaluateInputErrors(t *testing.T) {
	m := newTestModel(t)
	shape := zeros(testShapes)
	pose := zeros(72)

	tests := []struct {
		name string
		in   Input
	}{
		{"empty batch", Input{}},
		{"short shape", Input{Shapes: [][]float64{zeros(9)}}},
		{"long pose", Input{Shapes: [][]float64{shape}, Poses: [][]float64{zeros(75)}}},
		{"pose batch", Input{Shapes: [][]float64{shape, shape}, Poses: [][]float64{pose}}},
		{"trans length", Input{Shapes: [][]float64{shape}, Trans: [][]float64{{1, 2}}}},
		{"trans batch", Input{Shapes: [][]float64{shape}, Poses: [][]float64{pose}, Trans: [][]float64{{1, 2, 3}, {1, 2, 3}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Evaluate(tt.in)
			assert.ErrorIs(t, err, ErrInputShape)
		})
	}
}

func TestModelNormals(t *testing.T) {
	m := newTestModel(t)

	res, err := m.Evaluate(Input{Shapes: [][]float64{zeros(testShapes)}})
	require.NoError(t, err)

	normals, err := m.Normals(res.Vertices[0])
	require.NoError(t, err)
	require.Len(t, normals, 48)
	for i, n := range normals {
		l := n.Length()
		assert.True(t, l == 0 || gomath.Abs(l-1) < 1e-12, "normal %d has length %v", i, l)
	}

	_, err = m.Normals(res.Vertices[0][:10])
	assert.ErrorIs(t, err, ErrInputShape)
}
