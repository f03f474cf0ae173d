package smpl

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/Faultbox/smplcache/pkg/math"
)

// RegressorEntry is one non-zero weight of the joint regressor.
type RegressorEntry struct {
	Vertex int
	Weight float64
}

// JointRegressor maps mesh vertices to joint rest locations. Each joint keeps
// only the vertices with non-zero weight.
type JointRegressor struct {
	joints    [][]RegressorEntry
	maxVertex int
}

// NewJointRegressor builds a regressor from per-joint entry lists.
func NewJointRegressor(joints [][]RegressorEntry) (*JointRegressor, error) {
	r := &JointRegressor{joints: joints, maxVertex: -1}
	for j, entries := range joints {
		for _, e := range entries {
			if e.Vertex < 0 {
				return nil, fmt.Errorf("%w: regressor joint %d references vertex %d", ErrConfiguration, j, e.Vertex)
			}
			if e.Vertex > r.maxVertex {
				r.maxVertex = e.Vertex
			}
		}
	}
	return r, nil
}

// JointRegressorFromDense extracts the non-zero entries of a J×V matrix.
func JointRegressorFromDense(m mat.Matrix) *JointRegressor {
	rows, cols := m.Dims()
	joints := make([][]RegressorEntry, rows)
	maxVertex := -1
	for j := 0; j < rows; j++ {
		for v := 0; v < cols; v++ {
			if w := m.At(j, v); w != 0 {
				joints[j] = append(joints[j], RegressorEntry{Vertex: v, Weight: w})
				if v > maxVertex {
					maxVertex = v
				}
			}
		}
	}
	return &JointRegressor{joints: joints, maxVertex: maxVertex}
}

// NumJoints returns the number of regressed joints.
func (r *JointRegressor) NumJoints() int {
	return len(r.joints)
}

// MaxVertex returns the highest vertex index referenced, or -1 if none.
func (r *JointRegressor) MaxVertex() int {
	return r.maxVertex
}

// Entries returns the non-zero weights of joint j.
func (r *JointRegressor) Entries(j int) []RegressorEntry {
	return r.joints[j]
}

// Regress computes joint locations as weighted sums of vertices, per axis.
func (r *JointRegressor) Regress(vertices []math.Vec3) []math.Vec3 {
	out := make([]math.Vec3, len(r.joints))
	for j, entries := range r.joints {
		var acc math.Vec3
		for _, e := range entries {
			acc = acc.Add(vertices[e.Vertex].Scale(e.Weight))
		}
		out[j] = acc
	}
	return out
}
