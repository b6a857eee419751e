package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corey/aswin/internal/app"
	"github.com/corey/aswin/internal/config"
	"github.com/corey/aswin/internal/domain/status"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long:  "Shows workspace paths, every config key after file, environment and flag overrides, and the last solve.",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	root, err := workspace()
	if err != nil {
		return err
	}
	v, err := loadViper(cmd, root)
	if err != nil {
		return err
	}
	if _, err := config.FromViper(v); err != nil {
		return err
	}

	values := make(map[string]any, len(config.Keys()))
	for _, k := range config.Keys() {
		values[k] = v.Get(k)
	}

	paths := app.NewPaths(root)
	last, err := status.ReadJSON(paths.Status)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), formatConfig(currentStyles(), paths, values, last))
	return nil
}
