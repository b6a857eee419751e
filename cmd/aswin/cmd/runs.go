package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corey/aswin/internal/ports"
)

var (
	runsShow   string
	runsDelete bool
)

var runsCmd = &cobra.Command{
	Use:   "runs [model]",
	Short: "List stored runs",
	Long:  "Without a model, lists every model with stored runs. With a model, lists its runs oldest first.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().StringVar(&runsShow, "show", "", "print one run by id (\"latest\" for the newest)")
	runsCmd.Flags().BoolVar(&runsDelete, "delete", false, "delete every run of the model")
}

func runRuns(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && (runsShow != "" || runsDelete) {
		return fmt.Errorf("--show and --delete need a model")
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	st := currentStyles()
	w := cmd.OutOrStdout()

	if len(args) == 0 {
		models, err := a.Models()
		if err != nil {
			return err
		}
		fmt.Fprint(w, formatModels(st, models))
		return nil
	}
	model := args[0]

	switch {
	case runsDelete:
		if err := a.DeleteRuns(model); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s deleted runs of %s\n", st.Success.Render("✓"), model)
		return nil

	case runsShow != "":
		var run *ports.Run
		if runsShow == "latest" {
			run, err = a.LatestRun(model)
		} else {
			run, err = a.Run(model, runsShow)
		}
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("no run %q for model %s", runsShow, model)
		}
		fmt.Fprint(w, formatRun(st, run))
		return nil
	}

	runs, err := a.Runs(model)
	if err != nil {
		return err
	}
	fmt.Fprint(w, formatRuns(st, model, runs))
	return nil
}
