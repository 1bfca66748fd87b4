package quadrature

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// GaussLegendre returns the points and weights of the N point
// Gauss-Legendre rule on the unit interval [0,1]. The rule integrates
// polynomials up to degree 2N-1 exactly and its weights sum to one,
// the length of the interval.
//
// Points and weights are obtained by the Golub-Welsch method: the
// eigenvalues of the symmetric tridiagonal Jacobi matrix of the
// Legendre recurrence are the abscissae on [-1,1], the squared first
// eigenvector components scaled by the zeroth moment are the weights.
func GaussLegendre(N int) (X, W []float64, err error) {
	if N < 1 {
		return nil, nil, fmt.Errorf("gauss-legendre rule needs at least one point, got %d", N)
	}
	if N == 1 {
		return []float64{0.5}, []float64{1.}, nil
	}

	// Off diagonal of the Jacobi matrix: b_i = i/sqrt(4i^2-1)
	d0 := make([]float64, N)
	d1 := make([]float64, N-1)
	for i := 1; i < N; i++ {
		fi := float64(i)
		d1[i-1] = fi / math.Sqrt(4.*fi*fi-1.)
	}

	JJ := newSymTriDiagonal(d0, d1)

	var eig mat.EigenSym
	if ok := eig.Factorize(JJ, true); !ok {
		return nil, nil, fmt.Errorf("eigenvalue decomposition failed for %d point rule", N)
	}
	x := eig.Values(nil)

	VVr := mat.NewDense(N, N, nil)
	eig.VectorsTo(VVr)

	X = make([]float64, N)
	W = make([]float64, N)
	for i := 0; i < N; i++ {
		v0 := VVr.At(0, i)
		// Map from [-1,1] to [0,1]: x -> (x+1)/2, w -> w/2, with
		// zeroth moment 2 on [-1,1]
		X[i] = 0.5 * (x[i] + 1.)
		W[i] = v0 * v0
	}
	return X, W, nil
}

func newSymTriDiagonal(d0, d1 []float64) (Tri *mat.SymDense) {
	n := len(d0)
	dd := make([]float64, n*n)
	for i := 0; i < n; i++ {
		dd[i+i*n] = d0[i]
		if i != n-1 {
			dd[i+1+i*n] = d1[i]
		}
	}
	Tri = mat.NewSymDense(n, dd)
	return
}
