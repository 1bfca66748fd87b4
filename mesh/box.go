package mesh

import "fmt"

/*
Box is a structured mesh of hexahedral cells filling an axis aligned
box, used by the demo commands and the test suite. Cells and vertices
are numbered x slowest, z fastest; the local vertex of a cell at
reference corner (a0,a1,a2) is stored at local index 4*a0+2*a1+a2,
matching the operator's geometry dof map layout.
*/
type Box struct {
	Nx, Ny, Nz int
	Lx, Ly, Lz float64
	NumCells   int
	// Coordinates holds xyz triplets per vertex, GeomDofmap eight
	// vertex indices per cell
	Coordinates []float64
	GeomDofmap  []int32
}

func NewBox(nx, ny, nz int, lx, ly, lz float64) (b *Box, err error) {
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, fmt.Errorf("box of %dx%dx%d cells is empty", nx, ny, nz)
	}
	b = &Box{
		Nx: nx, Ny: ny, Nz: nz,
		Lx: lx, Ly: ly, Lz: lz,
		NumCells:    nx * ny * nz,
		Coordinates: make([]float64, 3*(nx+1)*(ny+1)*(nz+1)),
		GeomDofmap:  make([]int32, 8*nx*ny*nz),
	}
	for i := 0; i <= nx; i++ {
		for j := 0; j <= ny; j++ {
			for k := 0; k <= nz; k++ {
				v := 3 * b.vertexID(i, j, k)
				b.Coordinates[v] = lx * float64(i) / float64(nx)
				b.Coordinates[v+1] = ly * float64(j) / float64(ny)
				b.Coordinates[v+2] = lz * float64(k) / float64(nz)
			}
		}
	}
	var cell int
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			for k := 0; k < nz; k++ {
				for a0 := 0; a0 < 2; a0++ {
					for a1 := 0; a1 < 2; a1++ {
						for a2 := 0; a2 < 2; a2++ {
							b.GeomDofmap[8*cell+4*a0+2*a1+a2] =
								int32(b.vertexID(i+a0, j+a1, k+a2))
						}
					}
				}
				cell++
			}
		}
	}
	return b, nil
}

func (b *Box) vertexID(i, j, k int) int {
	return (i*(b.Ny+1)+j)*(b.Nz+1) + k
}

// NumVertices returns the global vertex count, which is also the
// degree one dof count.
func (b *Box) NumVertices() int {
	return (b.Nx + 1) * (b.Ny + 1) * (b.Nz + 1)
}

// Q1Dofmap returns the field dof map for the degree one space, eight
// dofs per cell. It aliases the geometry map: vertices are the dofs.
func (b *Box) Q1Dofmap() []int32 {
	return b.GeomDofmap
}

// Q2 dofs live on the half index grid: vertices, edge and face
// midpoints and cell centers of the refined lattice. The per axis
// local node order is vertex, vertex, midpoint.
var q2AxisOffset = [3]int{0, 2, 1}

// NumQ2Dofs returns the degree two dof count.
func (b *Box) NumQ2Dofs() int {
	return (2*b.Nx + 1) * (2*b.Ny + 1) * (2*b.Nz + 1)
}

func (b *Box) q2NodeID(i, j, k int) int {
	return (i*(2*b.Ny+1)+j)*(2*b.Nz+1) + k
}

// Q2Dofmap returns the field dof map for the degree two space, 27
// dofs per cell at local index 9*a0+3*a1+a2.
func (b *Box) Q2Dofmap() []int32 {
	dm := make([]int32, 27*b.NumCells)
	var cell int
	for i := 0; i < b.Nx; i++ {
		for j := 0; j < b.Ny; j++ {
			for k := 0; k < b.Nz; k++ {
				for a0 := 0; a0 < 3; a0++ {
					for a1 := 0; a1 < 3; a1++ {
						for a2 := 0; a2 < 3; a2++ {
							dm[27*cell+9*a0+3*a1+a2] = int32(b.q2NodeID(
								2*i+q2AxisOffset[a0],
								2*j+q2AxisOffset[a1],
								2*k+q2AxisOffset[a2]))
						}
					}
				}
				cell++
			}
		}
	}
	return dm
}

// Q2NodeCoordinates returns xyz triplets for every degree two dof, in
// global dof order, for sampling fields at the interpolation nodes.
func (b *Box) Q2NodeCoordinates() []float64 {
	xyz := make([]float64, 3*b.NumQ2Dofs())
	for i := 0; i <= 2*b.Nx; i++ {
		for j := 0; j <= 2*b.Ny; j++ {
			for k := 0; k <= 2*b.Nz; k++ {
				n := 3 * b.q2NodeID(i, j, k)
				xyz[n] = b.Lx * float64(i) / float64(2*b.Nx)
				xyz[n+1] = b.Ly * float64(j) / float64(2*b.Ny)
				xyz[n+2] = b.Lz * float64(k) / float64(2*b.Nz)
			}
		}
	}
	return xyz
}

// CollapseCell moves every vertex of one cell onto its first vertex,
// producing a zero volume geometry. Shared vertices drag neighboring
// cells along; meant for degeneracy tests.
func (b *Box) CollapseCell(cell int) {
	gd := b.GeomDofmap[8*cell : 8*cell+8]
	v0 := 3 * int(gd[0])
	for _, g := range gd[1:] {
		v := 3 * int(g)
		copy(b.Coordinates[v:v+3], b.Coordinates[v0:v0+3])
	}
}

// InvertCell mirrors one cell through its local x midplane by swapping
// the two x layers of its vertices, producing a negative Jacobian
// determinant.
func (b *Box) InvertCell(cell int) {
	gd := b.GeomDofmap[8*cell : 8*cell+8]
	for a1 := 0; a1 < 2; a1++ {
		for a2 := 0; a2 < 2; a2++ {
			var (
				lo = 3 * int(gd[0+2*a1+a2])
				hi = 3 * int(gd[4+2*a1+a2])
			)
			b.Coordinates[lo], b.Coordinates[hi] = b.Coordinates[hi], b.Coordinates[lo]
		}
	}
}
