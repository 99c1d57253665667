package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/meigma/decima/archive"
)

func newPackCmd(g *globals) *cobra.Command {
	var (
		zstd      bool
		checksums bool
	)
	cmd := &cobra.Command{
		Use:   "pack <dir> <out>",
		Short: "Build a container from a directory",
		Long: `Pack every regular file under dir into a container written to out.
Entry names are the paths relative to dir.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, out := args[0], args[1]
			opts := []archive.CreateOption{
				archive.CreateWithLogger(g.logger(cmd.ErrOrStderr())),
				archive.CreateWithChecksums(checksums),
			}
			if zstd {
				opts = append(opts, archive.CreateWithCompression(archive.CompressionZstd))
			}

			tmp, err := os.CreateTemp(filepath.Dir(out), ".decima-pack-*")
			if err != nil {
				return err
			}
			tmpPath := tmp.Name()
			defer os.Remove(tmpPath) //nolint:errcheck // no-op after the rename

			if err := archive.Create(cmd.Context(), dir, tmp, opts...); err != nil {
				tmp.Close()
				return fmt.Errorf("pack %s: %w", dir, err)
			}
			if err := tmp.Close(); err != nil {
				return err
			}
			if err := os.Rename(tmpPath, out); err != nil {
				return err
			}

			a, err := archive.Open(out)
			if err != nil {
				return err
			}
			defer a.Close()
			printSuccess(cmd.OutOrStdout(), fmt.Sprintf("packed %s into %s", plural(a.Len(), "file", "files"), out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&zstd, "zstd", false, "compress entries with zstd")
	cmd.Flags().BoolVar(&checksums, "checksums", true, "store SHA-256 checksums")
	return cmd
}
