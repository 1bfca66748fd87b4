package hexahedra

import (
	"math"

	"github.com/james-bowman/sparse"
)

/*
AssembleCSR materializes the global operator matrix that Apply leaves
implicit, by running the same local integration cell by cell and
scattering dense element matrices into a sparse DOK, finalized as CSR.
The result acts on a field vector through the mat.Matrix interface and
serves as the matrix backed cross check of the matrix-free action. The
assembly is serial; it exists for validation and for callers that want
the materialized operator, not for the performance path.
*/
func (op *Operator) AssembleCSR() (*sparse.CSR, error) {
	var (
		Np  = op.kern.field.Np
		dok = sparse.NewDOK(op.NumDofs, op.NumDofs)
		s   = op.kern.newScratch()
		Ae  = make([]float64, Np*Np)
		c0  = op.Constants[0]
	)
	for k := 0; k < op.NumCells; k++ {
		op.kern.gatherCoords(k, op.Coordinates, op.GeomDofmap, s)
		if err := op.kern.cellMatrix(k, c0, s, Ae); err != nil {
			return nil, err
		}
		fd := op.Dofmap[Np*k : Np*k+Np]
		for i := 0; i < Np; i++ {
			gi := int(fd[i])
			for j := 0; j < Np; j++ {
				if v := Ae[i*Np+j]; v != 0. {
					gj := int(fd[j])
					dok.Set(gi, gj, dok.At(gi, gj)+v)
				}
			}
		}
	}
	return dok.ToCSR(), nil
}

// cellMatrix computes the dense Np x Np element stiffness matrix of
// one cell into Ae, row major. Entry (i,j) integrates the physical
// space gradients of trial function j against test function i.
func (kn *kernel) cellMatrix(cell int, c0 float64, s *cellScratch, Ae []float64) error {
	var (
		fb    = kn.field
		Np1D  = fb.Np1D
		Np    = fb.Np
		grads = make([][3]float64, Np)
	)
	for i := range Ae {
		Ae[i] = 0.
	}
	for q0 := 0; q0 < fb.Nq1D; q0++ {
		for q1 := 0; q1 < fb.Nq1D; q1++ {
			for q2 := 0; q2 < fb.Nq1D; q2++ {
				J := Jacobian(kn.geom, &s.coords, q0, q1, q2)
				det := J.Det()
				if det <= s.detTol {
					return &DegenerateCellError{Cell: cell, Det: det}
				}
				var (
					K      = J.Inverse(det)
					scale  = c0 * math.Abs(det) * fb.Weight(q0, q1, q2)
					v0, d0 = fb.V[q0], fb.D[q0]
					v1, d1 = fb.V[q1], fb.D[q1]
					v2, d2 = fb.V[q2], fb.D[q2]
				)
				// Physical space gradient of every basis function
				for a0 := 0; a0 < Np1D; a0++ {
					for a1 := 0; a1 < Np1D; a1++ {
						for a2 := 0; a2 < Np1D; a2++ {
							gradRef := [3]float64{
								d0[a0] * v1[a1] * v2[a2],
								v0[a0] * d1[a1] * v2[a2],
								v0[a0] * v1[a1] * d2[a2],
							}
							grads[Np1D*Np1D*a0+Np1D*a1+a2] = K.TransposeMulVec(gradRef)
						}
					}
				}
				for i := 0; i < Np; i++ {
					gi := grads[i]
					for j := 0; j < Np; j++ {
						gj := grads[j]
						Ae[i*Np+j] += scale * (gi[0]*gj[0] + gi[1]*gj[1] + gi[2]*gj[2])
					}
				}
			}
		}
	}
	return nil
}
