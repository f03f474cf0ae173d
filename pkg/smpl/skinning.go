package smpl

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/Faultbox/smplcache/pkg/math"
)

// Skinner deforms vertices with linear blend skinning. The per-vertex
// transform is the weighted sum of the joint transforms, blended entry by
// entry as plain 4x4 matrices.
type Skinner struct {
	weights *mat.Dense // V×J
}

// NewSkinner wraps a V×J skinning weight matrix.
func NewSkinner(weights *mat.Dense) (*Skinner, error) {
	if weights == nil {
		return nil, fmt.Errorf("%w: missing skinning weights", ErrConfiguration)
	}
	if r, c := weights.Dims(); r == 0 || c == 0 {
		return nil, fmt.Errorf("%w: empty skinning weights", ErrConfiguration)
	}
	return &Skinner{weights: weights}, nil
}

// NumVertices returns the number of weighted vertices.
func (s *Skinner) NumVertices() int {
	r, _ := s.weights.Dims()
	return r
}

// NumJoints returns the number of joints each vertex is weighted over.
func (s *Skinner) NumJoints() int {
	_, c := s.weights.Dims()
	return c
}

// Skin applies the blended joint transforms to every vertex.
func (s *Skinner) Skin(vertices []math.Vec3, transforms []math.Mat4) ([]math.Vec3, error) {
	nv, nj := s.weights.Dims()
	if len(vertices) != nv {
		return nil, fmt.Errorf("%w: skinning %d vertices, weights cover %d", ErrInputShape, len(vertices), nv)
	}
	if len(transforms) != nj {
		return nil, fmt.Errorf("%w: got %d joint transforms, weights cover %d joints", ErrInputShape, len(transforms), nj)
	}

	// W(V×J) · A(J×16) yields one flattened blended matrix per vertex.
	flat := make([]float64, 0, nj*16)
	for i := range transforms {
		flat = append(flat, transforms[i][:]...)
	}
	a := mat.NewDense(nj, 16, flat)

	var blended mat.Dense
	blended.Mul(s.weights, a)

	out := make([]math.Vec3, nv)
	var t math.Mat4
	for v := range vertices {
		copy(t[:], blended.RawRowView(v))
		out[v] = t.TransformPoint(vertices[v])
	}
	return out, nil
}
