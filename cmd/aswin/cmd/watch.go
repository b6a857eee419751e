package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corey/aswin/internal/app"
	"github.com/corey/aswin/internal/domain/product"
)

var (
	watchAutomaton      string
	watchLabels         string
	watchCheckRevealing bool
	watchNoStore        bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Re-solve models as they change",
	Long: `Watches a directory of POMDP documents and solves each one against the
automaton whenever it is written. Editing the automaton reloads it for the
next solve. Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.StringVar(&watchAutomaton, "automaton", "", "automaton document (required)")
	f.StringVar(&watchLabels, "labels", "auto", "automaton input: auto, successor or observation")
	f.BoolVar(&watchCheckRevealing, "check-revealing", false, "warn when a POMDP is not strongly revealing")
	f.BoolVar(&watchNoStore, "no-store", false, "do not persist runs")
	_ = watchCmd.MarkFlagRequired("automaton")
}

func runWatch(cmd *cobra.Command, args []string) error {
	mode, err := product.ParseLabelMode(watchLabels)
	if err != nil {
		return err
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := currentStyles()
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s %s against %s\n", st.Title.Render("⚡ watching"), args[0], watchAutomaton)

	tmpl := app.SolveRequest{LabelMode: mode, CheckRevealing: watchCheckRevealing, NoStore: watchNoStore}
	return a.WatchWith(ctx, args[0], watchAutomaton, tmpl, func(path string, res *app.SolveResult, err error) {
		fmt.Fprint(w, formatWatchEvent(st, path, res, err))
	})
}
