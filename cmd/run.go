/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/notargets/hexlap/InputParameters"
	"github.com/notargets/hexlap/hexahedra"
	"github.com/notargets/hexlap/mesh"
	"github.com/notargets/hexlap/telemetry"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Time repeated operator applications on a box mesh",
	Long: `run builds a structured box mesh, constructs the matrix-free
operator from the input parameters and times repeated applications to a
smooth input field, reporting throughput and host telemetry.`,
	Run: func(cmd *cobra.Command, args []string) {
		ip := processInput(cmd)
		prof, _ := cmd.Flags().GetBool("profile")
		if prof {
			defer profile.Start().Stop()
		}
		counters, _ := cmd.Flags().GetBool("counters")
		if err := RunOperator(ip, counters); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("input", "I", "", "file name of input parameters YAML file")
	runCmd.Flags().IntP("degree", "d", 0, "polynomial degree of the element basis (1 or 2)")
	runCmd.Flags().IntP("cells", "n", 0, "number of mesh cells per axis")
	runCmd.Flags().IntP("workers", "w", 0, "number of parallel workers (0 = all cores)")
	runCmd.Flags().Bool("profile", false, "generate a runtime profile of the operator")
	runCmd.Flags().Bool("counters", false, "sample hardware performance counters during the run")
}

// processInput merges the YAML parameter file, if given, with command
// line overrides and validates the result.
func processInput(cmd *cobra.Command) (ip *InputParameters.OperatorParameters) {
	var (
		err error
	)
	ip = InputParameters.DefaultParameters()
	if fileName, _ := cmd.Flags().GetString("input"); fileName != "" {
		var data []byte
		if data, err = os.ReadFile(fileName); err != nil {
			fmt.Printf("unable to read input file %s: %v\n", fileName, err)
			os.Exit(1)
		}
		if err = ip.Parse(data); err != nil {
			fmt.Printf("unable to parse input file %s: %v\n", fileName, err)
			os.Exit(1)
		}
	}
	if cmd.Flags().Changed("degree") {
		ip.PolynomialDegree, _ = cmd.Flags().GetInt("degree")
	}
	if cmd.Flags().Changed("cells") {
		n, _ := cmd.Flags().GetInt("cells")
		ip.Nx, ip.Ny, ip.Nz = n, n, n
	}
	if cmd.Flags().Changed("workers") {
		ip.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if err = ip.Validate(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	ip.Print()
	return
}

// buildOperator constructs the box mesh and operator described by the
// input parameters, together with the nodal coordinates of the field
// dofs.
func buildOperator(ip *InputParameters.OperatorParameters) (op *hexahedra.Operator,
	nodes []float64, err error) {
	var (
		b      *mesh.Box
		dofmap []int32
	)
	if b, err = mesh.NewBox(ip.Nx, ip.Ny, ip.Nz, ip.Lx, ip.Ly, ip.Lz); err != nil {
		return
	}
	switch ip.PolynomialDegree {
	case 1:
		dofmap = b.Q1Dofmap()
		nodes = b.Coordinates
	case 2:
		dofmap = b.Q2Dofmap()
		nodes = b.Q2NodeCoordinates()
	}
	mode := hexahedra.Atomic
	if ip.Accumulation == "colored" {
		mode = hexahedra.Colored
	}
	op, err = hexahedra.NewOperator(hexahedra.Config{
		Degree:      ip.PolynomialDegree,
		NumCells:    b.NumCells,
		Constants:   []float64{ip.Coefficient},
		Coordinates: b.Coordinates,
		GeomDofmap:  b.GeomDofmap,
		Dofmap:      dofmap,
		Workers:     ip.Workers,
		Mode:        mode,
	})
	return
}

// smoothField fills a vector with sin(pi x) sin(pi y) sin(pi z)
// evaluated at the dof nodes.
func smoothField(nodes []float64) (u *mat.VecDense) {
	n := len(nodes) / 3
	u = mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		x, y, z := nodes[3*i], nodes[3*i+1], nodes[3*i+2]
		u.SetVec(i, math.Sin(math.Pi*x)*math.Sin(math.Pi*y)*math.Sin(math.Pi*z))
	}
	return
}

func RunOperator(ip *InputParameters.OperatorParameters, counters bool) (err error) {
	var (
		op    *hexahedra.Operator
		nodes []float64
	)
	if op, nodes, err = buildOperator(ip); err != nil {
		return
	}
	u := smoothField(nodes)
	out := mat.NewVecDense(op.NumDofs, nil)

	var sess *telemetry.Session
	if sess, err = telemetry.Open(telemetry.Options{Backend: telemetry.NewHostBackend()}); err != nil {
		return fmt.Errorf("unable to open telemetry session: %w", err)
	}
	defer sess.Close()
	sess.Report(os.Stdout, "before run")

	apply := func() error {
		for i := 0; i < ip.Iterations; i++ {
			out.Zero()
			if err := op.Apply(u, out); err != nil {
				return err
			}
		}
		return nil
	}
	start := time.Now()
	if counters {
		var applyErr error
		hw, cerr := sess.ProfileCounters(func() error {
			applyErr = apply()
			return applyErr
		})
		if applyErr != nil {
			return applyErr
		}
		if cerr != nil {
			fmt.Printf("hardware counters unavailable: %v\n", cerr)
		} else {
			fmt.Printf("cycles: %d, instructions: %d, cache misses: %d\n",
				hw.Cycles, hw.Instructions, hw.CacheMisses)
		}
	} else if err = apply(); err != nil {
		return
	}
	elapsed := time.Since(start)

	perApply := elapsed / time.Duration(ip.Iterations)
	fmt.Printf("%d cells, %d dofs, %d iterations\n",
		op.NumCells, op.NumDofs, ip.Iterations)
	fmt.Printf("elapsed: %v, per apply: %v, cell rate: %8.0f cells/sec\n",
		elapsed, perApply, float64(op.NumCells)/perApply.Seconds())
	sess.Report(os.Stdout, "after run")
	return
}
