package hexahedra

import (
	"fmt"
	"math"

	"github.com/notargets/hexlap/quadrature"
)

/*
BasisTable holds the 1D ingredients of a tensor product Lagrange basis
on the unit hexahedron: the values and derivatives of each nodal basis
function at the quadrature points of one reference axis, plus the 1D
quadrature weights. The 3D basis function for local node (a0,a1,a2) at
quadrature point (q0,q1,q2) is the product across the three axes, with
the derivative table substituted on the differentiated axis.

Node ordering per axis is vertices first, then interior: degree 1 uses
{0,1}, degree 2 uses {0,1,1/2}. The local 3D node index is
Np1D^2*a0 + Np1D*a1 + a2.
*/
type BasisTable struct {
	Degree int
	Np1D   int // nodes per axis
	Np     int // nodes per cell, Np1D^3
	Nq1D   int // quadrature points per axis
	W1D    []float64
	// V[q][a], D[q][a]: value and derivative of 1D basis a at point q
	V, D [][]float64
}

// axisNodes returns the 1D interpolation nodes for a degree, vertices
// first. Degrees outside the two specialized kernels are rejected at
// operator construction, before this is reached.
func axisNodes(degree int) []float64 {
	switch degree {
	case 1:
		return []float64{0., 1.}
	case 2:
		return []float64{0., 1., 0.5}
	default:
		panic(fmt.Sprintf("no basis table for degree %d", degree))
	}
}

// NewBasisTable builds the table for a degree at an Nq1D point
// Gauss-Legendre rule per axis.
func NewBasisTable(degree, Nq1D int) (bt *BasisTable, err error) {
	var (
		nodes = axisNodes(degree)
		Np1D  = len(nodes)
	)
	X, W, err := quadrature.GaussLegendre(Nq1D)
	if err != nil {
		return nil, err
	}
	bt = &BasisTable{
		Degree: degree,
		Np1D:   Np1D,
		Np:     Np1D * Np1D * Np1D,
		Nq1D:   Nq1D,
		W1D:    W,
		V:      make([][]float64, Nq1D),
		D:      make([][]float64, Nq1D),
	}
	lb := quadrature.NewLagrange(nodes)
	for q := 0; q < Nq1D; q++ {
		bt.V[q] = make([]float64, Np1D)
		bt.D[q] = make([]float64, Np1D)
		for a := 0; a < Np1D; a++ {
			bt.V[q][a] = lb.Value(a, X[q])
			bt.D[q][a] = lb.Deriv(a, X[q])
		}
	}
	if err = bt.validateWeights(); err != nil {
		return nil, err
	}
	return bt, nil
}

// validateWeights checks that the tensor product weights sum to the
// reference hexahedron volume of one. A violation means the rule was
// mis-generated.
func (bt *BasisTable) validateWeights() error {
	var wSum float64
	for _, w := range bt.W1D {
		wSum += w
	}
	vol := wSum * wSum * wSum
	if math.Abs(vol-1.) > 1.e-12 {
		return fmt.Errorf("quadrature weights sum to %v, expected reference volume 1", vol)
	}
	return nil
}

// Weight returns the tensor product quadrature weight at (q0,q1,q2).
func (bt *BasisTable) Weight(q0, q1, q2 int) float64 {
	return bt.W1D[q0] * bt.W1D[q1] * bt.W1D[q2]
}
