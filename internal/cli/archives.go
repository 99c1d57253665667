package cli

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
)

func newArchivesCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "archives",
		Short: "List loaded archives",
		Long:  `List the containers of the data directory in priority order, lowest first, and any that failed to load.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, res, err := g.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			w := cmd.OutOrStdout()
			cat := s.Catalog()
			printSection(w, fmt.Sprintf("Archives in %s", s.Dir()))
			rows := make([][]string, 0, cat.Len())
			for i, a := range cat.Archives() {
				rows = append(rows, []string{strconv.Itoa(i), a.Name(), strconv.Itoa(a.Len())})
			}
			printTable(w, []string{"Index", "Name", "Entries"}, rows)

			if failed := loadErrors(res.LoadErr); len(failed) > 0 {
				fmt.Fprintln(w)
				printSection(w, "Failed")
				for _, le := range failed {
					printLabelValue(w, filepath.Base(le.Path), le.Err.Error())
				}
			}
			fmt.Fprintln(w)
			printEmptyState(w, fmt.Sprintf("%s, %s named", plural(cat.Len(), "archive", "archives"), strconv.Itoa(res.Names)))
			return nil
		},
	}
}

func newEntriesCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "entries <archive>",
		Short: "List the entries of one archive",
		Long:  `List every entry of the archive at the given index. Entries without a known name are shown by hash.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid archive index %q", args[0])
			}
			s, _, err := g.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			cat := s.Catalog()
			a := cat.Archive(idx)
			if a == nil {
				return fmt.Errorf("archive %d out of range: %d archives loaded", idx, cat.Len())
			}

			w := cmd.OutOrStdout()
			printSection(w, a.Name())
			for _, e := range a.Entries() {
				name, ok := cat.Name(e.Hash)
				if !ok {
					name = unknownColor.Sprint("unknown")
				}
				fmt.Fprintf(w, "  %6d  %s  %10d  %s\n", e.Sequence, e.Hash, e.Size, name)
			}
			return nil
		},
	}
}
