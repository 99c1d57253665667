package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meigma/decima"
	"github.com/meigma/decima/record"
)

func newInfoCmd(g *globals) *cobra.Command {
	var archives []int
	cmd := &cobra.Command{
		Use:   "info <name|0xHASH>",
		Short: "Show where a file resolves to",
		Long: `Show the archive entry a file resolves to and the lower priority
archives that also hold it. --archive restricts the search.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := parseTarget(args[0])
			if err != nil {
				return err
			}
			s, _, err := g.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := selectArchives(s, archives); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			cat := s.Catalog()
			loc, ok := s.Lookup(hash)
			if !ok {
				_, _ = unknownColor.Fprintf(w, "%s: unknown\n", hash)
				return nil
			}

			printSection(w, cat.DisplayName(hash))
			printLabelValue(w, "Hash", hash.String())
			printLabelValue(w, "Archive", archiveLabel(cat, loc.Archive))
			printLabelValue(w, "Size", strconv.FormatUint(loc.Entry.Size, 10))
			printLabelValue(w, "Stored", fmt.Sprintf("%d (%s)", loc.Entry.StoredSize, loc.Entry.Compression))
			printLabelValue(w, "Entry", strconv.Itoa(loc.Entry.Sequence))
			printLabelValue(w, "Offset", strconv.FormatUint(loc.Entry.Offset, 10))
			if len(loc.Entry.Checksum) > 0 {
				printLabelValue(w, "SHA-256", hex.EncodeToString(loc.Entry.Checksum))
			}
			if len(loc.Shadowed) > 0 {
				labels := make([]string, len(loc.Shadowed))
				for i, idx := range loc.Shadowed {
					labels[i] = archiveLabel(cat, idx)
				}
				printLabelValue(w, "Shadowed", strings.Join(labels, ", "))
			}
			return nil
		},
	}
	cmd.Flags().IntSliceVarP(&archives, "archive", "a", nil, "only search these archive indices")
	return cmd
}

func newInspectCmd(g *globals) *cobra.Command {
	var archives []int
	cmd := &cobra.Command{
		Use:   "inspect <name|0xHASH>",
		Short: "List the records of a file",
		Long: `Resolve a file and list its records. When parsing stops early the
records decoded so far are listed before the error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := parseTarget(args[0])
			if err != nil {
				return err
			}
			s, _, err := g.openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := selectArchives(s, archives); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			p, ok, err := s.Preview(hash)
			if err != nil {
				return err
			}
			if !ok {
				_, _ = unknownColor.Fprintf(w, "%s: unknown\n", hash)
				return nil
			}
			printRecords(w, s, p)
			if p.ParseErr != nil {
				printWarning(w, fmt.Sprintf("parse stopped: %v", p.ParseErr))
			}
			return nil
		},
	}
	cmd.Flags().IntSliceVarP(&archives, "archive", "a", nil, "only search these archive indices")
	return cmd
}

func printRecords(w io.Writer, s *decima.Session, p *decima.Preview) {
	printSection(w, fmt.Sprintf("%s (%d bytes, %s)", p.Name, len(p.Data), s.Catalog().ArchiveName(p.Archive)))
	if p.Stream {
		printEmptyState(w, "stream data is not parsed")
		return
	}
	if len(p.Records.Records) == 0 {
		printEmptyState(w, "no records")
		return
	}

	reg := s.Parser().Registry()
	rows := make([][]string, 0, len(p.Records.Records))
	for _, rec := range p.Records.Records {
		rows = append(rows, []string{
			strconv.Itoa(rec.Offset),
			strconv.FormatUint(uint64(rec.Header.Size), 10),
			reg.KindName(rec.Header.Magic),
			summarize(rec.Payload),
		})
	}
	printTable(w, []string{"Offset", "Size", "Kind", "Detail"}, rows)
}

func summarize(p record.Payload) string {
	switch v := p.(type) {
	case record.Collection:
		return fmt.Sprintf("%s, %s", v.GUID, plural(len(v.Refs), "reference", "references"))
	case record.Prefetch:
		return plural(len(v.Strings), "path", "paths")
	case record.Opaque:
		return plural(len(v.Data), "byte", "bytes")
	default:
		return ""
	}
}
