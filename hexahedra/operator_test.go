package hexahedra

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/hexlap/mesh"
)

func boxConfig(t *testing.T, degree int, b *mesh.Box) (cfg Config, numDofs int) {
	t.Helper()
	cfg = Config{
		Degree:      degree,
		NumCells:    b.NumCells,
		Constants:   []float64{1.},
		Coordinates: b.Coordinates,
		GeomDofmap:  b.GeomDofmap,
	}
	switch degree {
	case 1:
		cfg.Dofmap = b.Q1Dofmap()
		numDofs = b.NumVertices()
	case 2:
		cfg.Dofmap = b.Q2Dofmap()
		numDofs = b.NumQ2Dofs()
	default:
		t.Fatalf("no dof map for degree %d", degree)
	}
	return
}

func randomField(n int, seed int64) *mat.VecDense {
	var (
		rnd = rand.New(rand.NewSource(seed))
		d   = make([]float64, n)
	)
	for i := range d {
		d[i] = 2.*rnd.Float64() - 1.
	}
	return mat.NewVecDense(n, d)
}

func TestNewOperatorUnsupportedDegree(t *testing.T) {
	b, err := mesh.NewBox(1, 1, 1, 1., 1., 1.)
	require.NoError(t, err)
	for _, degree := range []int{0, 3, -1, 7} {
		_, err := NewOperator(Config{
			Degree:      degree,
			NumCells:    b.NumCells,
			Constants:   []float64{1.},
			Coordinates: b.Coordinates,
			GeomDofmap:  b.GeomDofmap,
			Dofmap:      b.Q1Dofmap(),
		})
		require.Error(t, err, "degree %d", degree)
		assert.True(t, errors.Is(err, ErrUnsupportedDegree))
		var ude *UnsupportedDegreeError
		require.True(t, errors.As(err, &ude))
		assert.Equal(t, degree, ude.Degree)
	}
}

func TestNewOperatorValidation(t *testing.T) {
	b, err := mesh.NewBox(2, 2, 2, 1., 1., 1.)
	require.NoError(t, err)
	cfg, _ := boxConfig(t, 1, b)

	bad := cfg
	bad.Constants = nil
	_, err = NewOperator(bad)
	assert.Error(t, err)

	bad = cfg
	bad.GeomDofmap = bad.GeomDofmap[:8]
	_, err = NewOperator(bad)
	assert.Error(t, err)

	bad = cfg
	bad.Dofmap = append([]int32{}, cfg.Dofmap...)
	bad.Dofmap[3] = int32(1 << 24) // in range as a dof, fine
	bad.Dofmap[5] = -2
	_, err = NewOperator(bad)
	assert.Error(t, err)

	bad = cfg
	bad.GeomDofmap = append([]int32{}, cfg.GeomDofmap...)
	bad.GeomDofmap[0] = int32(b.NumVertices())
	_, err = NewOperator(bad)
	assert.Error(t, err)
}

// Applying the operator to an all zero field must return an all zero
// field on any mesh, degree and accumulation mode.
func TestLinearityZeroField(t *testing.T) {
	b, err := mesh.NewBox(3, 2, 2, 1.5, 1., 2.)
	require.NoError(t, err)
	for _, degree := range []int{1, 2} {
		for _, mode := range []AccumulationMode{Atomic, Colored} {
			cfg, numDofs := boxConfig(t, degree, b)
			cfg.Mode = mode
			op, err := NewOperator(cfg)
			require.NoError(t, err)
			var (
				in  = mat.NewVecDense(numDofs, nil)
				out = mat.NewVecDense(numDofs, nil)
			)
			require.NoError(t, op.Apply(in, out))
			for i := 0; i < numDofs; i++ {
				assert.Zero(t, out.AtVec(i))
			}
		}
	}
}

// exactUnitStiffness is entry (i,j) of the exact tensor product 8x8
// stiffness matrix of one axis aligned unit cube at degree one: per
// axis factors are the 1D stiffness [[1,-1],[-1,1]] and 1D mass
// [[1/3,1/6],[1/6,1/3]] of the linear hat functions on [0,1].
func exactUnitStiffness(i, j int) float64 {
	var (
		s1         = [2][2]float64{{1., -1.}, {-1., 1.}}
		m1         = [2][2]float64{{1. / 3., 1. / 6.}, {1. / 6., 1. / 3.}}
		i0, i1, i2 = i >> 2 & 1, i >> 1 & 1, i & 1
		j0, j1, j2 = j >> 2 & 1, j >> 1 & 1, j & 1
	)
	return s1[i0][j0]*m1[i1][j1]*m1[i2][j2] +
		m1[i0][j0]*s1[i1][j1]*m1[i2][j2] +
		m1[i0][j0]*m1[i1][j1]*s1[i2][j2]
}

// For one axis aligned unit cube and degree one, the action must match
// the exact stiffness matrix.
func TestSingleCellExactness(t *testing.T) {
	b, err := mesh.NewBox(1, 1, 1, 1., 1., 1.)
	require.NoError(t, err)
	cfg, numDofs := boxConfig(t, 1, b)
	op, err := NewOperator(cfg)
	require.NoError(t, err)

	// A linear input field and a random one
	uLin := mat.NewVecDense(numDofs, nil)
	for v := 0; v < numDofs; v++ {
		x, y, z := b.Coordinates[3*v], b.Coordinates[3*v+1], b.Coordinates[3*v+2]
		uLin.SetVec(v, 1.+2.*x-3.*y+0.5*z)
	}
	for _, u := range []*mat.VecDense{uLin, randomField(numDofs, 42)} {
		out := mat.NewVecDense(numDofs, nil)
		require.NoError(t, op.Apply(u, out))
		for i := 0; i < 8; i++ {
			var exp float64
			for j := 0; j < 8; j++ {
				exp += exactUnitStiffness(i, j) * u.AtVec(j)
			}
			assert.InDelta(t, exp, out.AtVec(i), 1.e-10*math.Max(1., math.Abs(exp)))
		}
	}
}

// Two cells sharing a face accumulate, at the shared global dofs, the
// sum of their independently computed local contributions.
func TestAdditivityAcrossSharedFace(t *testing.T) {
	b, err := mesh.NewBox(2, 1, 1, 2., 1., 1.)
	require.NoError(t, err)
	cfg, numDofs := boxConfig(t, 1, b)
	full, err := NewOperator(cfg)
	require.NoError(t, err)

	var (
		u       = randomField(numDofs, 7)
		got     = mat.NewVecDense(numDofs, nil)
		wantSum = mat.NewVecDense(numDofs, nil)
	)
	require.NoError(t, full.Apply(u, got))

	for cell := 0; cell < 2; cell++ {
		single := cfg
		single.NumCells = 1
		single.GeomDofmap = cfg.GeomDofmap[8*cell : 8*cell+8]
		single.Dofmap = cfg.Dofmap[8*cell : 8*cell+8]
		op1, err := NewOperator(single)
		require.NoError(t, err)
		part := mat.NewVecDense(numDofs, nil)
		require.NoError(t, op1.Apply(u, part))
		wantSum.AddVec(wantSum, part)
	}
	for i := 0; i < numDofs; i++ {
		assert.InDelta(t, wantSum.AtVec(i), got.AtVec(i), 1.e-12)
	}
}

// Different worker counts and accumulation modes reorder the atomic
// adds; outputs must agree to tolerance, though not bit for bit.
func TestOrderIndependence(t *testing.T) {
	b, err := mesh.NewBox(4, 3, 3, 1., 1., 1.)
	require.NoError(t, err)
	for _, degree := range []int{1, 2} {
		cfg, numDofs := boxConfig(t, degree, b)
		u := randomField(numDofs, 11)

		cfg.Workers = 1
		ref, err := NewOperator(cfg)
		require.NoError(t, err)
		refOut := mat.NewVecDense(numDofs, nil)
		require.NoError(t, ref.Apply(u, refOut))

		for _, workers := range []int{2, 3, 8} {
			for _, mode := range []AccumulationMode{Atomic, Colored} {
				cfg.Workers = workers
				cfg.Mode = mode
				op, err := NewOperator(cfg)
				require.NoError(t, err)
				for rep := 0; rep < 3; rep++ {
					out := mat.NewVecDense(numDofs, nil)
					require.NoError(t, op.Apply(u, out))
					for i := 0; i < numDofs; i++ {
						assert.InDelta(t, refOut.AtVec(i), out.AtVec(i), 1.e-12,
							"degree %d workers %d mode %d dof %d", degree, workers, mode, i)
					}
				}
			}
		}
	}
}

// A zero volume or inverted cell must fail the application with a
// geometry error, not return silently with inf or NaN entries.
func TestDegenerateCellRejection(t *testing.T) {
	build := func(t *testing.T) (*mesh.Box, Config, int) {
		b, err := mesh.NewBox(2, 2, 1, 1., 1., 1.)
		require.NoError(t, err)
		cfg, numDofs := boxConfig(t, 1, b)
		return b, cfg, numDofs
	}
	t.Run("collapsed", func(t *testing.T) {
		b, cfg, numDofs := build(t)
		b.CollapseCell(1)
		op, err := NewOperator(cfg)
		require.NoError(t, err)
		err = op.Apply(randomField(numDofs, 3), mat.NewVecDense(numDofs, nil))
		require.Error(t, err)
		var dce *DegenerateCellError
		require.True(t, errors.As(err, &dce))
	})
	t.Run("inverted", func(t *testing.T) {
		b, cfg, numDofs := build(t)
		b.InvertCell(0)
		op, err := NewOperator(cfg)
		require.NoError(t, err)
		err = op.Apply(randomField(numDofs, 3), mat.NewVecDense(numDofs, nil))
		require.Error(t, err)
		var dce *DegenerateCellError
		require.True(t, errors.As(err, &dce))
		assert.Less(t, dce.Det, 0.)
	})
}

// A well formed mesh at small physical scale must not be mistaken for
// degenerate: the determinant threshold is relative to the cell
// extent. The stiffness of an axis aligned cube scales linearly with
// its edge.
func TestSmallCellScale(t *testing.T) {
	const h = 1.e-5 // det J = 1e-15 everywhere
	b, err := mesh.NewBox(1, 1, 1, h, h, h)
	require.NoError(t, err)
	cfg, numDofs := boxConfig(t, 1, b)
	op, err := NewOperator(cfg)
	require.NoError(t, err)

	u := randomField(numDofs, 19)
	out := mat.NewVecDense(numDofs, nil)
	require.NoError(t, op.Apply(u, out))
	for i := 0; i < 8; i++ {
		var exp float64
		for j := 0; j < 8; j++ {
			exp += h * exactUnitStiffness(i, j) * u.AtVec(j)
		}
		assert.InDelta(t, exp, out.AtVec(i), 1.e-15)
	}

	_, err = op.AssembleCSR()
	require.NoError(t, err)
}

// Column views of a Dense are valid field vectors with a non unit
// stride; the action must match the contiguous result and leave the
// other columns alone.
func TestStridedVectors(t *testing.T) {
	b, err := mesh.NewBox(2, 2, 2, 1., 1., 1.)
	require.NoError(t, err)
	cfg, numDofs := boxConfig(t, 1, b)
	op, err := NewOperator(cfg)
	require.NoError(t, err)

	u := randomField(numDofs, 23)
	want := mat.NewVecDense(numDofs, nil)
	require.NoError(t, op.Apply(u, want))

	var (
		dIn  = mat.NewDense(numDofs, 3, nil)
		dOut = mat.NewDense(numDofs, 3, nil)
	)
	for i := 0; i < numDofs; i++ {
		dIn.Set(i, 1, u.AtVec(i))
	}
	var (
		uStrided   = dIn.ColView(1).(*mat.VecDense)
		outStrided = dOut.ColView(2).(*mat.VecDense)
	)
	require.NoError(t, op.Apply(uStrided, outStrided))
	for i := 0; i < numDofs; i++ {
		assert.InDelta(t, want.AtVec(i), outStrided.AtVec(i), 1.e-12, "dof %d", i)
		assert.Zero(t, dOut.At(i, 0))
		assert.Zero(t, dOut.At(i, 1))
	}
}

// A fault raised inside a worker must surface as an execution error,
// never crash the caller. A dof index corrupted behind the operator's
// back panics the gather out of range inside the worker goroutine.
func TestWorkerFaultSurfaced(t *testing.T) {
	for _, mode := range []AccumulationMode{Atomic, Colored} {
		b, err := mesh.NewBox(2, 2, 2, 1., 1., 1.)
		require.NoError(t, err)
		cfg, numDofs := boxConfig(t, 1, b)
		cfg.Mode = mode
		op, err := NewOperator(cfg)
		require.NoError(t, err)

		cfg.Dofmap[5] = int32(numDofs + 1000)
		err = op.Apply(randomField(numDofs, 3), mat.NewVecDense(numDofs, nil))
		require.Error(t, err, "mode %d", mode)
		var ee *ExecutionError
		require.True(t, errors.As(err, &ee))
	}
}

// For fields exactly representable by the basis, the discrete energy
// u'Au equals the Dirichlet integral of the interpolated field. Closed
// forms on the unit cube: u=x gives 1, u=x^2 gives 4/3, u=xy gives
// 2/3.
func TestPolynomialExactness(t *testing.T) {
	cases := []struct {
		name   string
		degree int
		u      func(x, y, z float64) float64
		energy float64
	}{
		{"Q1 x", 1, func(x, y, z float64) float64 { return x }, 1.},
		{"Q2 x", 2, func(x, y, z float64) float64 { return x }, 1.},
		{"Q2 x^2", 2, func(x, y, z float64) float64 { return x * x }, 4. / 3.},
		{"Q2 xy", 2, func(x, y, z float64) float64 { return x * y }, 2. / 3.},
		{"Q2 x^2+yz", 2, func(x, y, z float64) float64 { return x*x + y*z }, 4./3. + 2./3.},
	}
	meshes := []struct {
		name       string
		nx, ny, nz int
	}{
		{"single cell", 1, 1, 1},
		{"2x2x2", 2, 2, 2},
	}
	for _, mc := range meshes {
		b, err := mesh.NewBox(mc.nx, mc.ny, mc.nz, 1., 1., 1.)
		require.NoError(t, err)
		for _, tc := range cases {
			t.Run(mc.name+" "+tc.name, func(t *testing.T) {
				cfg, numDofs := boxConfig(t, tc.degree, b)
				op, err := NewOperator(cfg)
				require.NoError(t, err)

				var nodes []float64
				if tc.degree == 1 {
					nodes = b.Coordinates
				} else {
					nodes = b.Q2NodeCoordinates()
				}
				u := mat.NewVecDense(numDofs, nil)
				for n := 0; n < numDofs; n++ {
					u.SetVec(n, tc.u(nodes[3*n], nodes[3*n+1], nodes[3*n+2]))
				}
				out := mat.NewVecDense(numDofs, nil)
				require.NoError(t, op.Apply(u, out))
				assert.InDelta(t, tc.energy, mat.Dot(u, out), 1.e-9)
			})
		}
	}
}

// The matrix-free action must agree with the action of the assembled
// sparse matrix.
func TestMatrixFreeVsAssembled(t *testing.T) {
	b, err := mesh.NewBox(3, 2, 2, 2., 1., 1.5)
	require.NoError(t, err)
	for _, degree := range []int{1, 2} {
		cfg, numDofs := boxConfig(t, degree, b)
		cfg.Constants = []float64{2.5}
		op, err := NewOperator(cfg)
		require.NoError(t, err)

		csr, err := op.AssembleCSR()
		require.NoError(t, err)

		var (
			u      = randomField(numDofs, 23)
			free   = mat.NewVecDense(numDofs, nil)
			matmul = mat.NewVecDense(numDofs, nil)
		)
		require.NoError(t, op.Apply(u, free))
		matmul.MulVec(csr, u)
		for i := 0; i < numDofs; i++ {
			assert.InDelta(t, matmul.AtVec(i), free.AtVec(i), 1.e-11,
				"degree %d dof %d", degree, i)
		}
	}
}

// Scaling the material coefficient scales the action linearly.
func TestCoefficientScaling(t *testing.T) {
	b, err := mesh.NewBox(2, 2, 2, 1., 1., 1.)
	require.NoError(t, err)
	cfg, numDofs := boxConfig(t, 1, b)
	u := randomField(numDofs, 5)

	base, err := NewOperator(cfg)
	require.NoError(t, err)
	outBase := mat.NewVecDense(numDofs, nil)
	require.NoError(t, base.Apply(u, outBase))

	cfg.Constants = []float64{3.}
	scaled, err := NewOperator(cfg)
	require.NoError(t, err)
	outScaled := mat.NewVecDense(numDofs, nil)
	require.NoError(t, scaled.Apply(u, outScaled))

	for i := 0; i < numDofs; i++ {
		assert.InDelta(t, 3.*outBase.AtVec(i), outScaled.AtVec(i), 1.e-11)
	}
}
