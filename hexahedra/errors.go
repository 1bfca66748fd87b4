package hexahedra

import (
	"errors"
	"fmt"
)

// ErrUnsupportedDegree is wrapped by the construction error returned
// for polynomial degrees without a specialized kernel.
var ErrUnsupportedDegree = errors.New("unsupported polynomial degree")

type UnsupportedDegreeError struct {
	Degree int
}

func (e *UnsupportedDegreeError) Error() string {
	return fmt.Sprintf("no kernel for polynomial degree %d, supported degrees are 1 and 2", e.Degree)
}

func (e *UnsupportedDegreeError) Unwrap() error { return ErrUnsupportedDegree }

// DegenerateCellError reports a cell whose geometric map has a zero,
// near zero or negative Jacobian determinant at some quadrature point.
// The application that hit it must be discarded by the caller.
type DegenerateCellError struct {
	Cell int
	Det  float64
}

func (e *DegenerateCellError) Error() string {
	return fmt.Sprintf("degenerate geometry in cell %d: jacobian determinant %g", e.Cell, e.Det)
}

// ExecutionError surfaces a fault raised inside a worker during an
// application. Partial output is not meaningful after one.
type ExecutionError struct {
	Cause interface{}
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("operator execution failed: %v", e.Cause)
}
