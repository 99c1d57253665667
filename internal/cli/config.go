package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/meigma/decima/internal/config"
)

func newConfigCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change persisted settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, paths, err := g.config()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = dimColor.Fprintf(w, "# %s\n", paths.Config)
			_, err = w.Write(out)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-data-dir <dir>",
		Short: "Set the default data directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			info, err := os.Stat(dir)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}

			cfg, paths, err := g.config()
			if err != nil {
				return err
			}
			cfg.DataDir = dir
			if err := config.Save(paths.Config, cfg); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "data directory set to "+dir)
			return nil
		},
	})
	return cmd
}
