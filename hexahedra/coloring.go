package hexahedra

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/coloring"
	"gonum.org/v1/gonum/graph/simple"
)

// colorCells partitions the cells into batches such that no two cells
// of a batch reference a common global dof. Cells are the nodes of a
// conflict graph with an edge wherever two cells share a dof; a Dsatur
// vertex coloring of that graph yields the batches. Within a batch,
// plain accumulation into the output buffer is race free.
func colorCells(numCells, Np int, dofmap []int32) ([][]int, error) {
	if numCells == 0 {
		return nil, nil
	}
	if numCells == 1 {
		return [][]int{{0}}, nil
	}

	// Invert the dof map: cells touching each global dof
	var numDofs int32
	for _, g := range dofmap {
		if g >= numDofs {
			numDofs = g + 1
		}
	}
	touch := make([][]int32, numDofs)
	for k := 0; k < numCells; k++ {
		for _, g := range dofmap[Np*k : Np*k+Np] {
			touch[g] = append(touch[g], int32(k))
		}
	}

	g := simple.NewUndirectedGraph()
	for k := 0; k < numCells; k++ {
		g.AddNode(simple.Node(k))
	}
	for _, cells := range touch {
		for i := 0; i < len(cells); i++ {
			for j := i + 1; j < len(cells); j++ {
				a, b := int64(cells[i]), int64(cells[j])
				if a != b && !g.HasEdgeBetween(a, b) {
					g.SetEdge(simple.Edge{F: simple.Node(a), T: simple.Node(b)})
				}
			}
		}
	}

	k, colors, err := coloring.Dsatur(g, nil)
	if err != nil {
		return nil, fmt.Errorf("conflict graph coloring failed: %w", err)
	}
	if len(colors) != numCells {
		return nil, fmt.Errorf("coloring covered %d of %d cells", len(colors), numCells)
	}
	batches := make([][]int, k)
	for id, color := range colors {
		batches[color] = append(batches[color], int(id))
	}
	// Map iteration order is random; keep batches deterministic
	for _, batch := range batches {
		sort.Ints(batch)
	}
	return batches, nil
}
