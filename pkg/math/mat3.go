package math

// Mat3 is a 3x3 matrix in column-major order, matching Mat4.
// Layout: [m0 m3 m6]
//
//	[m1 m4 m7]
//	[m2 m5 m8]
type Mat3 [9]float64

// Identity3 returns the 3x3 identity matrix.
func Identity3() Mat3 {
	return Mat3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// Skew returns the cross-product matrix [v]x, so that Skew(v).MulVec(u) == v.Cross(u).
func Skew(v Vec3) Mat3 {
	return Mat3{
		0, v.Z, -v.Y,
		-v.Z, 0, v.X,
		v.Y, -v.X, 0,
	}
}

// At returns the element at row r, column c.
func (m Mat3) At(r, c int) float64 {
	return m[c*3+r]
}

// Add returns m + other.
func (m Mat3) Add(other Mat3) Mat3 {
	var result Mat3
	for i := range m {
		result[i] = m[i] + other[i]
	}
	return result
}

// Sub returns m - other.
func (m Mat3) Sub(other Mat3) Mat3 {
	var result Mat3
	for i := range m {
		result[i] = m[i] - other[i]
	}
	return result
}

// Scale returns m * s.
func (m Mat3) Scale(s float64) Mat3 {
	var result Mat3
	for i := range m {
		result[i] = m[i] * s
	}
	return result
}

// Mul multiplies this matrix by another (m * other).
func (m Mat3) Mul(other Mat3) Mat3 {
	var result Mat3
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			result[col*3+row] =
				m[0*3+row]*other[col*3+0] +
					m[1*3+row]*other[col*3+1] +
					m[2*3+row]*other[col*3+2]
		}
	}
	return result
}

// MulVec returns m * v.
func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{
		m[0]*v.X + m[3]*v.Y + m[6]*v.Z,
		m[1]*v.X + m[4]*v.Y + m[7]*v.Z,
		m[2]*v.X + m[5]*v.Y + m[8]*v.Z,
	}
}

// Transpose returns the transpose of m.
func (m Mat3) Transpose() Mat3 {
	return Mat3{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}

// Det returns the determinant.
func (m Mat3) Det() float64 {
	return m[0]*(m[4]*m[8]-m[7]*m[5]) -
		m[3]*(m[1]*m[8]-m[7]*m[2]) +
		m[6]*(m[1]*m[5]-m[4]*m[2])
}

// RowMajor returns the elements in row-major order.
func (m Mat3) RowMajor() [9]float64 {
	return [9]float64{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}
