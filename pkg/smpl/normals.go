package smpl

import "github.com/Faultbox/smplcache/pkg/math"

// FaceNormals returns the unit normal of each triangle. For a face (i, j, k)
// the normal is (v_k - v_j) × (v_i - v_j); degenerate faces yield the zero vector.
func FaceNormals(vertices []math.Vec3, faces [][3]int) []math.Vec3 {
	normals := make([]math.Vec3, len(faces))
	for f, face := range faces {
		v0 := vertices[face[0]]
		v1 := vertices[face[1]]
		v2 := vertices[face[2]]
		e1 := v0.Sub(v1)
		e2 := v2.Sub(v1)
		normals[f] = e2.Cross(e1).Normalize()
	}
	return normals
}

// VertexNormals sums the unit normals of every face touching a vertex and
// normalizes the result. Vertices without faces keep a zero normal.
func VertexNormals(vertices []math.Vec3, faces [][3]int) []math.Vec3 {
	faceNormals := FaceNormals(vertices, faces)

	acc := make([]math.Vec3, len(vertices))
	for f, face := range faces {
		for _, vi := range face {
			acc[vi] = acc[vi].Add(faceNormals[f])
		}
	}
	for i := range acc {
		acc[i] = acc[i].Normalize()
	}
	return acc
}
