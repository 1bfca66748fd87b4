package hexahedra

// Matrix3 is a 3x3 matrix in row major order, used for the Jacobian of
// the map from the reference hexahedron to a physical cell and its
// inverse. Entry (i,j) is d(x_i)/d(r_j).
type Matrix3 [3][3]float64

// Det computes the determinant by cofactor expansion along the first
// row.
func (m Matrix3) Det() float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// Inverse computes the inverse from the adjugate given a precomputed
// nonzero determinant.
func (m Matrix3) Inverse(det float64) (inv Matrix3) {
	oDet := 1. / det
	inv[0][0] = oDet * (m[1][1]*m[2][2] - m[1][2]*m[2][1])
	inv[0][1] = oDet * (m[0][2]*m[2][1] - m[0][1]*m[2][2])
	inv[0][2] = oDet * (m[0][1]*m[1][2] - m[0][2]*m[1][1])
	inv[1][0] = oDet * (m[1][2]*m[2][0] - m[1][0]*m[2][2])
	inv[1][1] = oDet * (m[0][0]*m[2][2] - m[0][2]*m[2][0])
	inv[1][2] = oDet * (m[0][2]*m[1][0] - m[0][0]*m[1][2])
	inv[2][0] = oDet * (m[1][0]*m[2][1] - m[1][1]*m[2][0])
	inv[2][1] = oDet * (m[0][1]*m[2][0] - m[0][0]*m[2][1])
	inv[2][2] = oDet * (m[0][0]*m[1][1] - m[0][1]*m[1][0])
	return
}

// MulVec computes m*v.
func (m Matrix3) MulVec(v [3]float64) (o [3]float64) {
	for i := 0; i < 3; i++ {
		o[i] = m[i][0]*v[0] + m[i][1]*v[1] + m[i][2]*v[2]
	}
	return
}

// TransposeMulVec computes mᵗ*v.
func (m Matrix3) TransposeMulVec(v [3]float64) (o [3]float64) {
	for i := 0; i < 3; i++ {
		o[i] = m[0][i]*v[0] + m[1][i]*v[1] + m[2][i]*v[2]
	}
	return
}

// Jacobian computes the geometric Jacobian at quadrature point
// (q0,q1,q2) from the eight cell vertex coordinates. Row i, column j
// sums the i coordinate of each vertex weighted by the tensor product
// of the trilinear geometry basis, with the derivative table on axis j
// and the value table on the other two axes.
//
// coords is indexed coords[vertex][xyz] with the local vertex at
// reference corner (a0,a1,a2) stored at 4*a0+2*a1+a2.
func Jacobian(geom *BasisTable, coords *[8][3]float64, q0, q1, q2 int) (J Matrix3) {
	var (
		v0, d0 = geom.V[q0], geom.D[q0]
		v1, d1 = geom.V[q1], geom.D[q1]
		v2, d2 = geom.V[q2], geom.D[q2]
	)
	for a0 := 0; a0 < 2; a0++ {
		for a1 := 0; a1 < 2; a1++ {
			for a2 := 0; a2 < 2; a2++ {
				var (
					xyz = coords[4*a0+2*a1+a2]
					wr  = d0[a0] * v1[a1] * v2[a2]
					ws  = v0[a0] * d1[a1] * v2[a2]
					wt  = v0[a0] * v1[a1] * d2[a2]
				)
				for i := 0; i < 3; i++ {
					J[i][0] += xyz[i] * wr
					J[i][1] += xyz[i] * ws
					J[i][2] += xyz[i] * wt
				}
			}
		}
	}
	return
}
