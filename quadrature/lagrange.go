package quadrature

// Lagrange is a 1D nodal Lagrange basis over an arbitrary set of
// distinct interpolation nodes. Basis function j is one at node j and
// zero at every other node.
type Lagrange struct {
	Nodes []float64
}

// NewLagrange constructs the basis for the given nodes. The node slice
// is referenced, not copied.
func NewLagrange(nodes []float64) *Lagrange {
	return &Lagrange{Nodes: nodes}
}

// Value evaluates basis function j at x using the product formula.
func (lb *Lagrange) Value(j int, x float64) (u float64) {
	var (
		xj = lb.Nodes[j]
	)
	u = 1.
	for i, xi := range lb.Nodes {
		if i == j {
			continue
		}
		u *= (x - xi) / (xj - xi)
	}
	return
}

// Deriv evaluates the derivative of basis function j at x. Each term
// of the sum drops one factor of the product and differentiates it.
func (lb *Lagrange) Deriv(j int, x float64) (du float64) {
	var (
		xj = lb.Nodes[j]
	)
	for k, xk := range lb.Nodes {
		if k == j {
			continue
		}
		term := 1. / (xj - xk)
		for i, xi := range lb.Nodes {
			if i == j || i == k {
				continue
			}
			term *= (x - xi) / (xj - xi)
		}
		du += term
	}
	return
}
