package hexahedra

import "math"

// quadrature order per supported degree, points per axis
var degreeNq1D = map[int]int{
	1: 3,
	2: 4,
}

/*
kernel is one degree specialization of the local integrator. It carries
the field basis table for its degree and the trilinear geometry table
sampled at the same quadrature points. The field and geometry bases
differ in degree in general; for degree one they coincide and the
table is shared.

cellAction computes the weak form action of the negative Laplacian on
the input field restricted to one cell: at every quadrature point the
reference space gradient of the interpolated field is pulled back to
physical space through the inverse Jacobian, scaled by the material
coefficient and w*|det J|, pushed forward again onto the test function
gradients and accumulated into the local output array.
*/
type kernel struct {
	degree int
	field  *BasisTable
	geom   *BasisTable
}

func newKernel(degree int) (kn *kernel, err error) {
	nq, ok := degreeNq1D[degree]
	if !ok {
		return nil, &UnsupportedDegreeError{Degree: degree}
	}
	field, err := NewBasisTable(degree, nq)
	if err != nil {
		return nil, err
	}
	geom := field
	if degree != 1 {
		if geom, err = NewBasisTable(1, nq); err != nil {
			return nil, err
		}
	}
	return &kernel{degree: degree, field: field, geom: geom}, nil
}

// cellScratch holds per worker buffers reused across cells.
type cellScratch struct {
	coords [8][3]float64
	detTol float64   // degeneracy threshold for the gathered cell
	w      []float64 // gathered local input values
	A      []float64 // local output contribution
}

func (kn *kernel) newScratch() *cellScratch {
	return &cellScratch{
		w: make([]float64, kn.field.Np),
		A: make([]float64, kn.field.Np),
	}
}

// gatherCoords loads the cell's vertex coordinates from the global
// coordinate buffer through the geometry dof map and derives the
// cell's degeneracy threshold from its extents.
func (kn *kernel) gatherCoords(cell int, coordinates []float64,
	geomDofmap []int32, s *cellScratch) {
	gd := geomDofmap[8*cell : 8*cell+8]
	for i, g := range gd {
		s.coords[i][0] = coordinates[3*int(g)]
		s.coords[i][1] = coordinates[3*int(g)+1]
		s.coords[i][2] = coordinates[3*int(g)+2]
	}
	var h float64
	for d := 0; d < 3; d++ {
		lo, hi := s.coords[0][d], s.coords[0][d]
		for i := 1; i < 8; i++ {
			if c := s.coords[i][d]; c < lo {
				lo = c
			} else if c > hi {
				hi = c
			}
		}
		if ext := hi - lo; ext > h {
			h = ext
		}
	}
	s.detTol = detFloor * h * h * h
}

// gatherField loads the cell's local input values through the field
// dof map.
func (kn *kernel) gatherField(cell int, in []float64, dofmap []int32, s *cellScratch) {
	var (
		Np = kn.field.Np
		fd = dofmap[Np*cell : Np*cell+Np]
	)
	for i, g := range fd {
		s.w[i] = in[g]
	}
}

// detFloor scales the degeneracy threshold: a cell is rejected when
// its Jacobian determinant falls at or below detFloor times the cube
// of the cell extent, so well formed meshes at small physical scale
// pass. Negative determinants are inverted cells and are rejected as
// well.
const detFloor = 1.e-14

func (kn *kernel) cellAction(cell int, c0 float64, s *cellScratch) error {
	var (
		fb   = kn.field
		Np1D = fb.Np1D
	)
	for i := range s.A {
		s.A[i] = 0.
	}
	for q0 := 0; q0 < fb.Nq1D; q0++ {
		for q1 := 0; q1 < fb.Nq1D; q1++ {
			for q2 := 0; q2 < fb.Nq1D; q2++ {
				J := Jacobian(kn.geom, &s.coords, q0, q1, q2)
				det := J.Det()
				if det <= s.detTol {
					return &DegenerateCellError{Cell: cell, Det: det}
				}
				K := J.Inverse(det)

				// Reference space gradient of the input field
				var (
					gradRef [3]float64
					v0, d0  = fb.V[q0], fb.D[q0]
					v1, d1  = fb.V[q1], fb.D[q1]
					v2, d2  = fb.V[q2], fb.D[q2]
				)
				for a0 := 0; a0 < Np1D; a0++ {
					for a1 := 0; a1 < Np1D; a1++ {
						for a2 := 0; a2 < Np1D; a2++ {
							wv := s.w[Np1D*Np1D*a0+Np1D*a1+a2]
							gradRef[0] += wv * d0[a0] * v1[a1] * v2[a2]
							gradRef[1] += wv * v0[a0] * d1[a1] * v2[a2]
							gradRef[2] += wv * v0[a0] * v1[a1] * d2[a2]
						}
					}
				}

				// Chain rule pullback, coefficient and |det J| scaling.
				// |det J| keeps the contribution orientation
				// independent.
				var (
					gradPhys = K.TransposeMulVec(gradRef)
					fw       = K.MulVec(gradPhys)
					scale    = c0 * math.Abs(det) * fb.Weight(q0, q1, q2)
				)
				fw[0] *= scale
				fw[1] *= scale
				fw[2] *= scale

				// Contract against the test function gradients
				for a0 := 0; a0 < Np1D; a0++ {
					for a1 := 0; a1 < Np1D; a1++ {
						for a2 := 0; a2 < Np1D; a2++ {
							s.A[Np1D*Np1D*a0+Np1D*a1+a2] += fw[0]*d0[a0]*v1[a1]*v2[a2] +
								fw[1]*v0[a0]*d1[a1]*v2[a2] +
								fw[2]*v0[a0]*v1[a1]*d2[a2]
						}
					}
				}
			}
		}
	}
	return nil
}
