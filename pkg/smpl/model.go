// Package smpl evaluates a parametric body model: shape blend shapes,
// pose-corrective blend shapes, forward kinematics over a joint tree and
// linear blend skinning, plus vertex normals for the resulting mesh.
//
// A Model is built once from decoded archive data and is read-only
// afterwards; any number of goroutines may call Evaluate concurrently.
package smpl

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/Faultbox/smplcache/pkg/math"
)

// Params holds decoded model parameters as delivered by an archive loader.
type Params struct {
	// Template is the rest mesh, one entry per vertex (V).
	Template []math.Vec3
	// Faces indexes Template as triangles.
	Faces [][3]int
	// ShapeBasis maps S shape coefficients to 3V offsets, laid out
	// x0 y0 z0 x1 ... along the columns (S×3V).
	ShapeBasis *mat.Dense
	// PoseBasis maps the 9(J-1) pose feature to 3V offsets (9(J-1)×3V).
	PoseBasis *mat.Dense
	// Regressor maps vertices to J joint rest locations.
	Regressor *JointRegressor
	// Weights holds the skinning weights (V×J).
	Weights *mat.Dense
	// Parents is the kinematic parent table (J).
	Parents []int
}

// Model is a validated, immutable body model.
type Model struct {
	template   []math.Vec3
	faces      [][3]int
	shapeBasis *mat.Dense
	poseBasis  *mat.Dense
	regressor  *JointRegressor
	tree       *KinematicTree
	skinner    *Skinner
}

// NewModel validates the parameters and assembles the evaluation stages.
func NewModel(p *Params) (*Model, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil parameters", ErrConfiguration)
	}
	nv := len(p.Template)
	if nv == 0 {
		return nil, fmt.Errorf("%w: template has no vertices", ErrConfiguration)
	}

	tree, err := NewKinematicTree(p.Parents)
	if err != nil {
		return nil, err
	}
	nj := tree.NumJoints()

	for f, face := range p.Faces {
		for _, vi := range face {
			if vi < 0 || vi >= nv {
				return nil, fmt.Errorf("%w: face %d references vertex %d of %d", ErrConfiguration, f, vi, nv)
			}
		}
	}

	if p.ShapeBasis == nil {
		return nil, fmt.Errorf("%w: missing shape basis", ErrConfiguration)
	}
	if _, c := p.ShapeBasis.Dims(); c != 3*nv {
		return nil, fmt.Errorf("%w: shape basis has %d columns, want %d", ErrConfiguration, c, 3*nv)
	}

	if p.PoseBasis == nil {
		return nil, fmt.Errorf("%w: missing pose basis", ErrConfiguration)
	}
	if r, c := p.PoseBasis.Dims(); r != 9*(nj-1) || c != 3*nv {
		return nil, fmt.Errorf("%w: pose basis is %dx%d, want %dx%d", ErrConfiguration, r, c, 9*(nj-1), 3*nv)
	}

	if p.Regressor == nil {
		return nil, fmt.Errorf("%w: missing joint regressor", ErrConfiguration)
	}
	if p.Regressor.NumJoints() != nj {
		return nil, fmt.Errorf("%w: regressor has %d joints, tree has %d", ErrConfiguration, p.Regressor.NumJoints(), nj)
	}
	if p.Regressor.MaxVertex() >= nv {
		return nil, fmt.Errorf("%w: regressor references vertex %d of %d", ErrConfiguration, p.Regressor.MaxVertex(), nv)
	}

	skinner, err := NewSkinner(p.Weights)
	if err != nil {
		return nil, err
	}
	if skinner.NumVertices() != nv || skinner.NumJoints() != nj {
		return nil, fmt.Errorf("%w: skinning weights are %dx%d, want %dx%d",
			ErrConfiguration, skinner.NumVertices(), skinner.NumJoints(), nv, nj)
	}

	return &Model{
		template:   p.Template,
		faces:      p.Faces,
		shapeBasis: p.ShapeBasis,
		poseBasis:  p.PoseBasis,
		regressor:  p.Regressor,
		tree:       tree,
		skinner:    skinner,
	}, nil
}

// NumVertices returns V.
func (m *Model) NumVertices() int { return len(m.template) }

// NumJoints returns J.
func (m *Model) NumJoints() int { return m.tree.NumJoints() }

// NumShapes returns S, the number of shape coefficients per instance.
func (m *Model) NumShapes() int {
	r, _ := m.shapeBasis.Dims()
	return r
}

// Faces returns the triangle topology. Callers must not modify it.
func (m *Model) Faces() [][3]int { return m.faces }

// Tree returns the kinematic tree.
func (m *Model) Tree() *KinematicTree { return m.tree }

// Input is a batch of per-instance parameters. Shapes defines the batch size;
// Poses and Trans, when set, must have one entry per shape.
type Input struct {
	Shapes [][]float64 // S coefficients each
	Poses  [][]float64 // 3J axis-angle values each; nil selects shape-only mode
	Trans  [][]float64 // 3 values each; nil means no translation

	// Intermediates keeps the per-stage tensors in the Result.
	Intermediates bool
}

// Result holds the evaluated meshes, indexed by batch element. Apart from
// Vertices, fields are filled only when Input.Intermediates is set and a pose
// was given.
type Result struct {
	Vertices [][]math.Vec3

	Shaped     [][]math.Vec3
	Posed      [][]math.Vec3
	Rotations  [][]math.Mat3
	RestJoints [][]math.Vec3
	Joints     [][]math.Vec3
	Transforms [][]math.Mat4
}

// Evaluate runs the full shape → pose → skin pipeline for every batch element.
func (m *Model) Evaluate(in Input) (*Result, error) {
	if err := m.checkInput(in); err != nil {
		return nil, err
	}

	shaped := m.blend(m.template, m.shapeBasis, in.Shapes)

	if in.Poses == nil {
		if in.Trans != nil {
			translate(shaped, in.Trans)
		}
		return &Result{Vertices: shaped}, nil
	}

	batch := len(in.Shapes)
	rotations := make([][]math.Mat3, batch)
	features := make([][]float64, batch)
	for b, pose := range in.Poses {
		rotations[b], _ = PoseToRotations(pose)
		features[b] = PoseFeature(rotations[b])
	}

	posed := make([][]math.Vec3, batch)
	offsets := m.products(m.poseBasis, features)
	for b := range posed {
		posed[b] = addOffsets(shaped[b], offsets[b])
	}

	res := &Result{Vertices: make([][]math.Vec3, batch)}
	if in.Intermediates {
		res.Shaped = shaped
		res.Posed = posed
		res.Rotations = rotations
		res.RestJoints = make([][]math.Vec3, batch)
		res.Joints = make([][]math.Vec3, batch)
		res.Transforms = make([][]math.Mat4, batch)
	}

	for b := 0; b < batch; b++ {
		rest := m.regressor.Regress(shaped[b])
		transforms, joints, err := m.tree.Pose(rotations[b], rest)
		if err != nil {
			return nil, err
		}
		body, err := m.skinner.Skin(posed[b], transforms)
		if err != nil {
			return nil, err
		}
		res.Vertices[b] = body

		if in.Intermediates {
			res.RestJoints[b] = rest
			res.Joints[b] = joints
			res.Transforms[b] = transforms
		}
	}

	if in.Trans != nil {
		translate(res.Vertices, in.Trans)
	}
	return res, nil
}

// Normals computes unit vertex normals for a mesh with this model's topology.
func (m *Model) Normals(vertices []math.Vec3) ([]math.Vec3, error) {
	if len(vertices) != len(m.template) {
		return nil, fmt.Errorf("%w: got %d vertices, model has %d", ErrInputShape, len(vertices), len(m.template))
	}
	return VertexNormals(vertices, m.faces), nil
}

func (m *Model) checkInput(in Input) error {
	batch := len(in.Shapes)
	if batch == 0 {
		return fmt.Errorf("%w: empty batch", ErrInputShape)
	}
	ns := m.NumShapes()
	for b, s := range in.Shapes {
		if len(s) != ns {
			return fmt.Errorf("%w: shape %d has %d coefficients, want %d", ErrInputShape, b, len(s), ns)
		}
	}
	if in.Poses != nil {
		if len(in.Poses) != batch {
			return fmt.Errorf("%w: %d poses for %d shapes", ErrInputShape, len(in.Poses), batch)
		}
		np := 3 * m.NumJoints()
		for b, p := range in.Poses {
			if len(p) != np {
				return fmt.Errorf("%w: pose %d has %d values, want %d", ErrInputShape, b, len(p), np)
			}
		}
	}
	if in.Trans != nil {
		if len(in.Trans) != batch {
			return fmt.Errorf("%w: %d translations for %d shapes", ErrInputShape, len(in.Trans), batch)
		}
		for b, t := range in.Trans {
			if len(t) != 3 {
				return fmt.Errorf("%w: translation %d has %d values, want 3", ErrInputShape, b, len(t))
			}
		}
	}
	return nil
}

// blend returns base + coeffs·basis for every row of coeffs.
func (m *Model) blend(base []math.Vec3, basis *mat.Dense, coeffs [][]float64) [][]math.Vec3 {
	offsets := m.products(basis, coeffs)
	out := make([][]math.Vec3, len(coeffs))
	for b := range out {
		out[b] = addOffsets(base, offsets[b])
	}
	return out
}

// products computes coeffs(B×K) · basis(K×3V) and returns one row per batch element.
func (m *Model) products(basis *mat.Dense, coeffs [][]float64) [][]float64 {
	k, _ := basis.Dims()
	flat := make([]float64, 0, len(coeffs)*k)
	for _, c := range coeffs {
		flat = append(flat, c...)
	}
	var prod mat.Dense
	prod.Mul(mat.NewDense(len(coeffs), k, flat), basis)

	rows := make([][]float64, len(coeffs))
	for b := range rows {
		rows[b] = prod.RawRowView(b)
	}
	return rows
}

func addOffsets(base []math.Vec3, offsets []float64) []math.Vec3 {
	out := make([]math.Vec3, len(base))
	for v := range base {
		out[v] = base[v].Add(math.V3(offsets[v*3:]))
	}
	return out
}

func translate(meshes [][]math.Vec3, trans [][]float64) {
	for b, mesh := range meshes {
		t := math.V3(trans[b])
		for v := range mesh {
			mesh[v] = mesh[v].Add(t)
		}
	}
}
