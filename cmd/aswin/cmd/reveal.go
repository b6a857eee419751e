package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corey/aswin/internal/app"
)

var (
	revealTransform bool
	revealOutput    string
)

var revealCmd = &cobra.Command{
	Use:   "reveal <pomdp>",
	Short: "Check whether a POMDP is strongly revealing",
	Long: `Checks that every reachable belief support, under every action, lets each
successor state be observed alone with positive probability.

With --transform, observations shared by several successor states are split
and the refined POMDP is written to -o (default .aswin/out/<model>-revealing.yaml).`,
	Args: cobra.ExactArgs(1),
	RunE: runReveal,
}

func init() {
	revealCmd.Flags().BoolVar(&revealTransform, "transform", false, "write a strongly-revealing refinement")
	revealCmd.Flags().StringVarP(&revealOutput, "output", "o", "", "path of the refined POMDP")
}

func runReveal(cmd *cobra.Command, args []string) error {
	if revealOutput != "" && !revealTransform {
		return fmt.Errorf("-o needs --transform")
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Reveal(cmd.Context(), app.RevealRequest{
		POMDPPath: args[0],
		Transform: revealTransform,
		Output:    revealOutput,
	})
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), formatReveal(currentStyles(), res))
	return nil
}
