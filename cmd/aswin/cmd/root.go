package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/corey/aswin/internal/app"
	"github.com/corey/aswin/internal/config"
)

var (
	workspaceFlag string
	noColorFlag   bool
)

var rootCmd = &cobra.Command{
	Use:           "aswin",
	Short:         "aswin: almost-sure winning policies for POMDPs",
	Long:          "Solves POMDPs against parity objectives through the belief-support MDP of the product with a deterministic parity automaton.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// flagKeys maps persistent flags onto config keys. A flag overrides the
// config file and environment only when it is set.
var flagKeys = map[string]string{
	"max-nodes": "explore.max_nodes",
	"timeout":   "explore.timeout",
	"workers":   "explore.workers",
	"lookahead": "reveal.lookahead",
	"log-level": "logging.level",
	"trace":     "telemetry.trace",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&workspaceFlag, "workspace", "C", "", "directory holding .aswin/ (default: current directory)")
	pf.Int("max-nodes", 0, "abort exploration after this many belief supports (0 = unlimited)")
	pf.Duration("timeout", 0, "abort exploration after this wall time (0 = none)")
	pf.Int("workers", 1, "goroutines expanding each BFS layer")
	pf.Int("lookahead", 0, "depth bound of the strongly-revealing check (0 = until fixpoint)")
	pf.String("log-level", "", "DEBUG, INFO, WARN or ERROR")
	pf.String("trace", "", "span exporter: none or stdout")
	pf.BoolVar(&noColorFlag, "no-color", false, "disable colored output")

	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(exploreCmd)
	rootCmd.AddCommand(revealCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}

// workspace returns the workspace root (cwd by default).
func workspace() (string, error) {
	if workspaceFlag != "" {
		return workspaceFlag, nil
	}
	return os.Getwd()
}

// loadViper reads .aswin/config.yaml and the environment, then applies the
// flags set on cmd.
func loadViper(cmd *cobra.Command, root string) (*viper.Viper, error) {
	v, err := config.New(app.NewPaths(root).Root)
	if err != nil {
		return nil, err
	}
	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("bind --%s: %w", flag, err)
		}
	}
	return v, nil
}

// openApp builds the App for the current workspace.
func openApp(cmd *cobra.Command) (*app.App, error) {
	root, err := workspace()
	if err != nil {
		return nil, err
	}
	v, err := loadViper(cmd, root)
	if err != nil {
		return nil, err
	}
	settings, err := config.FromViper(v)
	if err != nil {
		return nil, err
	}
	return app.New(app.Config{Workspace: root, Settings: settings, TraceWriter: cmd.ErrOrStderr()})
}
