package InputParameters

import (
	"fmt"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML input file
type OperatorParameters struct {
	Title            string  `yaml:"Title"`
	PolynomialDegree int     `yaml:"PolynomialDegree"`
	Coefficient      float64 `yaml:"Coefficient"`
	Nx               int     `yaml:"Nx"`
	Ny               int     `yaml:"Ny"`
	Nz               int     `yaml:"Nz"`
	Lx               float64 `yaml:"Lx"`
	Ly               float64 `yaml:"Ly"`
	Lz               float64 `yaml:"Lz"`
	Workers          int     `yaml:"Workers"`
	Accumulation     string  `yaml:"Accumulation"` // "atomic" or "colored"
	Iterations       int     `yaml:"Iterations"`
}

func DefaultParameters() *OperatorParameters {
	return &OperatorParameters{
		Title:            "Matrix-free Laplacian",
		PolynomialDegree: 1,
		Coefficient:      1.,
		Nx:               16, Ny: 16, Nz: 16,
		Lx: 1., Ly: 1., Lz: 1.,
		Accumulation: "atomic",
		Iterations:   10,
	}
}

func (op *OperatorParameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, op); err != nil {
		return err
	}
	return op.Validate()
}

func (op *OperatorParameters) Validate() error {
	if op.PolynomialDegree != 1 && op.PolynomialDegree != 2 {
		return fmt.Errorf("PolynomialDegree must be 1 or 2, got %d", op.PolynomialDegree)
	}
	if op.Nx < 1 || op.Ny < 1 || op.Nz < 1 {
		return fmt.Errorf("mesh dimensions %dx%dx%d must be positive", op.Nx, op.Ny, op.Nz)
	}
	switch op.Accumulation {
	case "", "atomic", "colored":
	default:
		return fmt.Errorf("Accumulation must be \"atomic\" or \"colored\", got %q", op.Accumulation)
	}
	if op.Iterations < 1 {
		return fmt.Errorf("Iterations must be at least 1, got %d", op.Iterations)
	}
	return nil
}

func (op *OperatorParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", op.Title)
	fmt.Printf("[%d]\t\t\t\t= Polynomial Degree\n", op.PolynomialDegree)
	fmt.Printf("%8.5f\t\t= Coefficient\n", op.Coefficient)
	fmt.Printf("%dx%dx%d\t\t\t= Mesh Cells\n", op.Nx, op.Ny, op.Nz)
	fmt.Printf("%gx%gx%g\t\t\t= Box Extent\n", op.Lx, op.Ly, op.Lz)
	fmt.Printf("[%d]\t\t\t\t= Workers (0 = all cores)\n", op.Workers)
	fmt.Printf("[%s]\t\t\t= Accumulation\n", op.Accumulation)
	fmt.Printf("[%d]\t\t\t\t= Iterations\n", op.Iterations)
}
