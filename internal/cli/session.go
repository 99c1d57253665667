package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meigma/decima"
	"github.com/meigma/decima/catalog"
	"github.com/meigma/decima/namehash"
)

var errNoDataDir = errors.New("no data directory: pass --data-dir or run 'decima config set-data-dir'")

// openSession loads the data directory into a new session. Containers that
// fail to load are reported on stderr.
func (g *globals) openSession(cmd *cobra.Command) (*decima.Session, *decima.OpenResult, error) {
	cfg, _, err := g.config()
	if err != nil {
		return nil, nil, err
	}
	dir := g.dataDir
	if dir == "" {
		dir = cfg.DataDir
	}
	if dir == "" {
		return nil, nil, errNoDataDir
	}

	s, err := decima.New(decima.WithConfig(cfg), decima.WithLogger(g.logger(cmd.ErrOrStderr())))
	if err != nil {
		return nil, nil, err
	}
	res, err := s.OpenDirectory(cmd.Context(), dir)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	for _, le := range loadErrors(res.LoadErr) {
		printWarning(cmd.ErrOrStderr(), le.Error())
	}
	if res.PrefetchErr != nil {
		printWarning(cmd.ErrOrStderr(), fmt.Sprintf("prefetch index: %v", res.PrefetchErr))
	}
	return s, res, nil
}

// loadErrors flattens the joined load failures of OpenResult.
func loadErrors(err error) []*catalog.LoadError {
	if err == nil {
		return nil
	}
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}
	out := make([]*catalog.LoadError, 0, len(errs))
	for _, e := range errs {
		var le *catalog.LoadError
		if errors.As(e, &le) {
			out = append(out, le)
		}
	}
	return out
}

// selectArchives makes exactly the given archives active. No indices
// leaves every archive active.
func selectArchives(s *decima.Session, indices []int) error {
	n := s.Catalog().Len()
	for _, i := range indices {
		if i < 0 || i >= n {
			return fmt.Errorf("archive %d out of range: %d archives loaded", i, n)
		}
	}
	for k, i := range indices {
		if k == 0 {
			s.SelectArchive(i)
			continue
		}
		s.SelectArchiveRange(i, i)
	}
	return nil
}

// parseTarget reads a file argument: a hash with a 0x or # prefix, or a
// name.
func parseTarget(arg string) (namehash.Hash, error) {
	if namehash.LooksLikeHash(arg) {
		return namehash.Parse(arg)
	}
	if arg == "" {
		return 0, errors.New("empty file name")
	}
	return namehash.Of(arg), nil
}

// archiveLabel formats an archive index with its name.
func archiveLabel(cat *catalog.Catalog, i int) string {
	return fmt.Sprintf("%d (%s)", i, cat.ArchiveName(i))
}
