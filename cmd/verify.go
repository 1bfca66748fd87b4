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

	"github.com/notargets/hexlap/InputParameters"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the matrix-free action against an assembled matrix",
	Long: `verify assembles the operator matrix in sparse form on a small box
mesh and compares its action against the matrix-free evaluation, printing
the largest deviation over all output dofs.`,
	Run: func(cmd *cobra.Command, args []string) {
		ip := processInput(cmd)
		tol, _ := cmd.Flags().GetFloat64("tolerance")
		if err := VerifyOperator(ip, tol); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringP("input", "I", "", "file name of input parameters YAML file")
	verifyCmd.Flags().IntP("degree", "d", 0, "polynomial degree of the element basis (1 or 2)")
	verifyCmd.Flags().IntP("cells", "n", 0, "number of mesh cells per axis")
	verifyCmd.Flags().IntP("workers", "w", 0, "number of parallel workers (0 = all cores)")
	verifyCmd.Flags().Float64P("tolerance", "t", 1.e-10, "largest acceptable deviation")
}

// VerifyOperator compares the parallel matrix-free action against the
// serially assembled sparse matrix on the same mesh.
func VerifyOperator(ip *InputParameters.OperatorParameters, tol float64) (err error) {
	op, nodes, err := buildOperator(ip)
	if err != nil {
		return
	}
	csr, err := op.AssembleCSR()
	if err != nil {
		return
	}
	u := smoothField(nodes)
	free := mat.NewVecDense(op.NumDofs, nil)
	if err = op.Apply(u, free); err != nil {
		return
	}
	var assembled mat.VecDense
	assembled.MulVec(csr, u)

	var maxDev float64
	for i := 0; i < op.NumDofs; i++ {
		if dev := math.Abs(free.AtVec(i) - assembled.AtVec(i)); dev > maxDev {
			maxDev = dev
		}
	}
	fmt.Printf("%d dofs, max deviation %8.2e, tolerance %8.2e\n",
		op.NumDofs, maxDev, tol)
	if maxDev > tol {
		return fmt.Errorf("matrix-free action deviates from assembled matrix by %g", maxDev)
	}
	fmt.Println("verified")
	return
}
