package hexahedra

import (
	"fmt"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/hexlap/utils"
)

// AccumulationMode selects how concurrent cell contributions to shared
// global dofs are combined.
type AccumulationMode uint8

const (
	// Atomic scatters every local contribution with an atomic float
	// add, all cells in flight at once.
	Atomic AccumulationMode = iota
	// Colored runs a graph coloring pre-pass so that cells processed
	// concurrently never share a dof, then accumulates with plain
	// adds, one color batch at a time.
	Colored
)

// Config carries the construction time inputs of the operator. All
// buffers are owned by the caller, read only for the life of the
// operator, and laid out flat: Coordinates is xyz triplets per vertex,
// GeomDofmap is 8 coordinate indices per cell, Dofmap is Np global dof
// indices per cell where Np is (Degree+1)^3.
type Config struct {
	Degree      int
	NumCells    int
	Constants   []float64 // material coefficient in [0]
	Coordinates []float64
	GeomDofmap  []int32
	Dofmap      []int32
	Workers     int // 0 means GOMAXPROCS
	Mode        AccumulationMode
}

/*
Operator is the matrix-free action of the weak form negative Laplacian
on a hexahedral mesh. Construction selects the degree specialized
kernel and partitions the cells across workers; Apply runs one worker
goroutine per partition, each cell independent of every other, with
the output buffer as the only concurrently mutated resource.
*/
type Operator struct {
	Config
	kern    *kernel
	pm      *utils.PartitionMap
	colors  [][]int // conflict free cell batches, Colored mode only
	NumDofs int     // one past the largest global dof index
}

func NewOperator(cfg Config) (op *Operator, err error) {
	kern, err := newKernel(cfg.Degree)
	if err != nil {
		return nil, err
	}
	if cfg.NumCells < 0 {
		return nil, fmt.Errorf("negative cell count %d", cfg.NumCells)
	}
	if len(cfg.Constants) < 1 {
		return nil, fmt.Errorf("constants buffer must carry the material coefficient")
	}
	if len(cfg.GeomDofmap) != 8*cfg.NumCells {
		return nil, fmt.Errorf("geometry dof map has %d entries, want %d",
			len(cfg.GeomDofmap), 8*cfg.NumCells)
	}
	if len(cfg.Dofmap) != kern.field.Np*cfg.NumCells {
		return nil, fmt.Errorf("dof map has %d entries, want %d",
			len(cfg.Dofmap), kern.field.Np*cfg.NumCells)
	}
	numCoords := len(cfg.Coordinates) / 3
	for _, g := range cfg.GeomDofmap {
		if g < 0 || int(g) >= numCoords {
			return nil, fmt.Errorf("geometry dof index %d outside coordinate buffer of %d vertices",
				g, numCoords)
		}
	}
	var numDofs int
	for _, g := range cfg.Dofmap {
		if g < 0 {
			return nil, fmt.Errorf("negative global dof index %d", g)
		}
		if int(g) >= numDofs {
			numDofs = int(g) + 1
		}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.NumCells > 0 && cfg.Workers > cfg.NumCells {
		cfg.Workers = cfg.NumCells
	}
	op = &Operator{
		Config:  cfg,
		kern:    kern,
		pm:      utils.NewPartitionMap(cfg.Workers, cfg.NumCells),
		NumDofs: numDofs,
	}
	if cfg.Mode == Colored {
		if op.colors, err = colorCells(cfg.NumCells, kern.field.Np, cfg.Dofmap); err != nil {
			return nil, err
		}
	}
	return op, nil
}

// Np returns the number of local dofs per cell.
func (op *Operator) Np() int { return op.kern.field.Np }

/*
Apply accumulates the operator action on in into out. The caller must
zero initialize out before the call; after a nil return out holds the
action. On any error the contents of out are not meaningful and must
be discarded. Repeated applications on the same inputs agree up to
floating point addition order.
*/
func (op *Operator) Apply(in, out *mat.VecDense) error {
	if in == nil || out == nil {
		return fmt.Errorf("nil field vector")
	}
	if in.Len() < op.NumDofs || out.Len() < op.NumDofs {
		return fmt.Errorf("field vectors of length %d/%d cannot hold %d dofs",
			in.Len(), out.Len(), op.NumDofs)
	}
	// Column views of a Dense are VecDense values with a non unit
	// stride; the scatter indexes flat dof buffers, so strided
	// vectors are staged through contiguous copies.
	var (
		w       = contiguousData(in)
		A       []float64
		scratch []float64
	)
	if ov := out.RawVector(); ov.Inc == 1 {
		A = ov.Data
	} else {
		scratch = make([]float64, op.NumDofs)
		for i := range scratch {
			scratch[i] = out.AtVec(i)
		}
		A = scratch
	}
	var err error
	if op.Mode == Colored {
		err = op.applyColored(w, A)
	} else {
		err = op.applyAtomic(w, A)
	}
	if err != nil {
		return err
	}
	if scratch != nil {
		for i, v := range scratch {
			out.SetVec(i, v)
		}
	}
	return nil
}

// contiguousData returns the vector's backing slice when it is unit
// stride, otherwise a contiguous copy.
func contiguousData(v *mat.VecDense) []float64 {
	rv := v.RawVector()
	if rv.Inc == 1 {
		return rv.Data
	}
	d := make([]float64, v.Len())
	for i := range d {
		d[i] = v.AtVec(i)
	}
	return d
}

func (op *Operator) applyAtomic(w, A []float64) error {
	var (
		NP   = op.pm.ParallelDegree
		wg   = sync.WaitGroup{}
		errs = make([]error, NP)
	)
	for np := 0; np < NP; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[np] = &ExecutionError{Cause: r}
				}
			}()
			var (
				kMin, kMax = op.pm.GetBucketRange(np)
				s          = op.kern.newScratch()
			)
			for k := kMin; k < kMax; k++ {
				if err := op.cell(k, w, s); err != nil {
					errs[np] = err
					return
				}
				op.scatterAtomic(k, s.A, A)
			}
		}(np)
	}
	wg.Wait()
	return firstError(errs)
}

// applyColored processes one conflict free color batch at a time. The
// batch is split across the workers and, because no two cells of a
// batch share a global dof, the scatter uses plain adds.
func (op *Operator) applyColored(w, A []float64) error {
	for _, batch := range op.colors {
		var (
			NP   = op.pm.ParallelDegree
			pm   = utils.NewPartitionMap(NP, len(batch))
			wg   = sync.WaitGroup{}
			errs = make([]error, NP)
		)
		for np := 0; np < NP; np++ {
			wg.Add(1)
			go func(np int) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						errs[np] = &ExecutionError{Cause: r}
					}
				}()
				var (
					iMin, iMax = pm.GetBucketRange(np)
					s          = op.kern.newScratch()
				)
				for i := iMin; i < iMax; i++ {
					k := batch[i]
					if err := op.cell(k, w, s); err != nil {
						errs[np] = err
						return
					}
					op.scatterPlain(k, s.A, A)
				}
			}(np)
		}
		wg.Wait()
		if err := firstError(errs); err != nil {
			return err
		}
	}
	return nil
}

// cell runs the local integrator for one cell into the scratch buffer.
func (op *Operator) cell(k int, w []float64, s *cellScratch) error {
	op.kern.gatherCoords(k, op.Coordinates, op.GeomDofmap, s)
	op.kern.gatherField(k, w, op.Dofmap, s)
	return op.kern.cellAction(k, op.Constants[0], s)
}

func (op *Operator) scatterAtomic(k int, local, global []float64) {
	var (
		Np = op.kern.field.Np
		fd = op.Dofmap[Np*k : Np*k+Np]
	)
	for i, g := range fd {
		atomicAddFloat64(&global[g], local[i])
	}
}

func (op *Operator) scatterPlain(k int, local, global []float64) {
	var (
		Np = op.kern.field.Np
		fd = op.Dofmap[Np*k : Np*k+Np]
	)
	for i, g := range fd {
		global[g] += local[i]
	}
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
