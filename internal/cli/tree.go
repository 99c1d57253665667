package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meigma/decima"
	"github.com/meigma/decima/tree"
)

func newTreeCmd(g *globals) *cobra.Command {
	var (
		filter   string
		archives []int
		depth    int
	)
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show the folder tree of named files",
		Long: `Show the folder tree of every named file.

--filter takes comma separated terms matched against file names. Terms
starting with '-' exclude. --archive limits the tree to files held by the
given archives and may be repeated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, _, err := g.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := selectArchives(s, archives); err != nil {
				return err
			}
			s.SetFilter(filter)
			renderTree(cmd.OutOrStdout(), s, depth)
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "filter expression")
	cmd.Flags().IntSliceVarP(&archives, "archive", "a", nil, "only show files held by these archive indices")
	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "maximum depth to show (0 for all)")
	return cmd
}

func renderTree(w io.Writer, s *decima.Session, depth int) {
	cat := s.Catalog()
	shown := 0
	s.View(func(t *tree.Tree, _ *tree.Selection) {
		for n := range t.Walk() {
			if n.File != nil {
				shown++
			}
			if depth > 0 && n.Depth >= depth {
				continue
			}
			indent := strings.Repeat("  ", n.Depth)
			if n.Folder != nil {
				_, _ = folderColor.Fprintf(w, "%s%s/\n", indent, n.Name())
				continue
			}
			h := n.File.Header()
			fmt.Fprintf(w, "%s%s  %s\n", indent, n.Name(),
				dimColor.Sprintf("%d bytes, %s", h.Size, cat.ArchiveName(h.Archive)))
		}
	})
	if shown == 0 {
		printEmptyState(w, "no matching files")
	}
}

func newFindCmd(g *globals) *cobra.Command {
	var archives []int
	cmd := &cobra.Command{
		Use:   "find <filter>",
		Short: "List the paths of matching files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := g.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := selectArchives(s, archives); err != nil {
				return err
			}
			s.SetFilter(args[0])

			w := cmd.OutOrStdout()
			found := 0
			s.View(func(t *tree.Tree, _ *tree.Selection) {
				for n := range t.Walk() {
					if n.File != nil {
						fmt.Fprintln(w, n.Path)
						found++
					}
				}
			})
			if found == 0 {
				printEmptyState(w, "no matching files")
			}
			return nil
		},
	}
	cmd.Flags().IntSliceVarP(&archives, "archive", "a", nil, "only search these archive indices")
	return cmd
}
