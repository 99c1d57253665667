package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meigma/decima"
	"github.com/meigma/decima/export"
	"github.com/meigma/decima/namehash"
)

type exportFlags struct {
	names     []string
	hashes    []string
	folders   []string
	pin       int
	overwrite bool
}

func newExportCmd(g *globals) *cobra.Command {
	f := &exportFlags{}
	cmd := &cobra.Command{
		Use:   "export <dest>",
		Short: "Extract files to a directory",
		Long: `Extract files below dest, keeping their folder structure.

Files are selected with --name, --hash and --folder, each repeatable.
Without --pin every file comes from its highest priority archive. With
--pin N the files are taken from archive N only. Existing files are kept
unless --overwrite is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(f.names)+len(f.hashes)+len(f.folders) == 0 {
				return errors.New("nothing to export: pass --name, --hash or --folder")
			}
			s, _, err := g.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := f.selectFiles(s); err != nil {
				return err
			}

			report, err := s.Export(cmd.Context(), args[0], export.WithOverwrite(f.overwrite))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, t := range report.Skipped {
				printEmptyState(w, "exists: "+t.Path)
			}
			for _, t := range report.Missing {
				printWarning(w, fmt.Sprintf("not found: %s", t.Path))
			}
			printSuccess(w, fmt.Sprintf("exported %s to %s", plural(len(report.Written), "file", "files"), args[0]))
			return report.Err()
		},
	}
	cmd.Flags().StringArrayVarP(&f.names, "name", "n", nil, "file name to export")
	cmd.Flags().StringArrayVar(&f.hashes, "hash", nil, "file hash to export (0xHEX or #DECIMAL)")
	cmd.Flags().StringArrayVar(&f.folders, "folder", nil, "export the files directly inside this folder")
	cmd.Flags().IntVar(&f.pin, "pin", -1, "take files from this archive index only")
	cmd.Flags().BoolVar(&f.overwrite, "overwrite", false, "replace existing files")
	return cmd
}

// selectFiles fills the export set of s from the flags.
func (f *exportFlags) selectFiles(s *decima.Session) error {
	pinned := f.pin >= 0
	if pinned {
		if err := selectArchives(s, []int{f.pin}); err != nil {
			return err
		}
	}

	add := func(label string, hash namehash.Hash, byName bool) error {
		var ok bool
		switch {
		case pinned:
			if ok = s.AddPinned(hash, f.pin); ok && byName {
				if _, named := s.Catalog().Name(hash); !named {
					s.Catalog().SetDisplayName(hash, label)
				}
			}
		case byName:
			ok = s.AddByName(label)
		default:
			ok = s.AddByHash(hash)
		}
		if !ok {
			return fmt.Errorf("%s: not found", label)
		}
		return nil
	}

	for _, name := range f.names {
		if err := add(name, namehash.Of(name), true); err != nil {
			return err
		}
	}
	for _, raw := range f.hashes {
		hash, err := namehash.Parse(raw)
		if err != nil {
			return err
		}
		if err := add(raw, hash, false); err != nil {
			return err
		}
	}
	for _, folder := range f.folders {
		if err := s.ToggleGroup(folder); err != nil {
			return err
		}
	}
	return nil
}
