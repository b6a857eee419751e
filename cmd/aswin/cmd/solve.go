package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corey/aswin/internal/app"
	"github.com/corey/aswin/internal/domain/product"
)

var (
	solveFormula        string
	solveLibrary        string
	solveNoStore        bool
	solveStrategy       bool
	solveLabels         string
	solveCheckRevealing bool
)

var solveCmd = &cobra.Command{
	Use:   "solve <pomdp> [automaton]",
	Short: "Compute the almost-sure winning region",
	Long: `Builds the product of the POMDP with a deterministic parity automaton,
explores its belief-support MDP and solves the almost-sure parity objective.

The automaton is given as a document, or as a formula looked up in an
automaton library directory (--formula with --library).`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSolve,
}

func init() {
	f := solveCmd.Flags()
	f.StringVar(&solveFormula, "formula", "", "formula to look up in the automaton library")
	f.StringVar(&solveLibrary, "library", "", "directory of pre-translated automata")
	f.BoolVar(&solveNoStore, "no-store", false, "do not persist the run")
	f.BoolVar(&solveStrategy, "strategy", false, "print the winning strategy")
	f.StringVar(&solveLabels, "labels", "auto", "automaton input: auto, successor or observation")
	f.BoolVar(&solveCheckRevealing, "check-revealing", false, "warn when the POMDP is not strongly revealing")
}

func runSolve(cmd *cobra.Command, args []string) error {
	models, err := modelsFromArgs(args, solveFormula, solveLibrary)
	if err != nil {
		return err
	}
	mode, err := product.ParseLabelMode(solveLabels)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Solve(cmd.Context(), app.SolveRequest{
		Models:         models,
		LabelMode:      mode,
		CheckRevealing: solveCheckRevealing,
		NoStore:        solveNoStore,
	})
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), formatSolve(currentStyles(), res, solveStrategy))
	return nil
}

// modelsFromArgs resolves <pomdp> [automaton] or <pomdp> --formula F.
func modelsFromArgs(args []string, formula, library string) (app.Models, error) {
	m := app.Models{POMDPPath: args[0]}
	switch {
	case len(args) == 2 && formula != "":
		return m, fmt.Errorf("give either an automaton document or --formula, not both")
	case len(args) == 2:
		m.AutomatonPath = args[1]
	case formula != "":
		if library == "" {
			return m, fmt.Errorf("--formula needs --library")
		}
		m.Formula = formula
		m.LibraryDir = library
	default:
		return m, fmt.Errorf("missing automaton: pass a document or --formula with --library")
	}
	return m, nil
}
