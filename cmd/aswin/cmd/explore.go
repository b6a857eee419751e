package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corey/aswin/internal/app"
	"github.com/corey/aswin/internal/domain/product"
)

var (
	exploreFormula  string
	exploreLibrary  string
	exploreLabels   string
	exploreMaxDepth int
)

var exploreCmd = &cobra.Command{
	Use:   "explore <pomdp> [automaton]",
	Short: "Explore the belief-support MDP without solving",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runExplore,
}

func init() {
	f := exploreCmd.Flags()
	f.StringVar(&exploreFormula, "formula", "", "formula to look up in the automaton library")
	f.StringVar(&exploreLibrary, "library", "", "directory of pre-translated automata")
	f.StringVar(&exploreLabels, "labels", "auto", "automaton input: auto, successor or observation")
	f.IntVar(&exploreMaxDepth, "max-depth", 0, "stop expanding at this BFS depth (0 = unbounded)")
}

func runExplore(cmd *cobra.Command, args []string) error {
	models, err := modelsFromArgs(args, exploreFormula, exploreLibrary)
	if err != nil {
		return err
	}
	mode, err := product.ParseLabelMode(exploreLabels)
	if err != nil {
		return err
	}
	if exploreMaxDepth < 0 {
		return fmt.Errorf("--max-depth must be >= 0")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Explore(cmd.Context(), app.ExploreRequest{
		Models:    models,
		LabelMode: mode,
		MaxDepth:  exploreMaxDepth,
	})
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), formatExplore(currentStyles(), res))
	return nil
}
