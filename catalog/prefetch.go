package catalog

import (
	"fmt"

	"github.com/meigma/decima/namehash"
	"github.com/meigma/decima/record"
)

// LoadPrefetch reads the prefetch index from the catalog and records every
// path it lists as a display name. It returns the number of names recorded.
//
// A catalog without a prefetch index is not an error; LoadPrefetch returns 0.
func (c *Catalog) LoadPrefetch(parser *record.Parser) (int, error) {
	f, ok, err := c.Resolve(namehash.Of(record.PrefetchName), nil)
	if err != nil {
		return 0, err
	}
	if !ok {
		c.log().Debug("no prefetch index", "name", record.PrefetchName)
		return 0, nil
	}

	parsed, err := parser.Parse(f.Data)
	rec, found := parsed.Find(record.MagicPrefetch)
	if !found {
		if err != nil {
			return 0, fmt.Errorf("catalog: prefetch: %w", err)
		}
		return 0, fmt.Errorf("catalog: prefetch: no %s record in %s", record.MagicPrefetch, record.PrefetchName)
	}
	if err != nil {
		c.log().Warn("prefetch index partially parsed", "error", err)
	}

	pf, ok := rec.Payload.(record.Prefetch)
	if !ok {
		return 0, fmt.Errorf("catalog: prefetch: unexpected payload %T", rec.Payload)
	}
	n := c.SetDisplayNames(pf.Paths())
	c.log().Info("prefetch index loaded", "names", n, "archive", f.Archive)
	return n, nil
}
