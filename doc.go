// Package decima browses and exports files stored across a set of
// hash-addressed archive containers.
//
// A [Session] ties the pieces together: it loads the containers of a data
// directory into a [catalog.Catalog], seeds display names from the prefetch
// index, builds a [tree.Tree] over the named files and tracks the user's
// [tree.Selection]. Everything a front-end needs goes through the Session;
// there is no package-level state.
//
// # Quick Start
//
//	s, err := decima.New(decima.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	if _, err := s.OpenDirectory(ctx, "/games/ds/data"); err != nil {
//	    return err
//	}
//	s.SetFilter("body,-lod")
//	for n := range s.Tree().Walk() {
//	    fmt.Println(n.Path)
//	}
//
// # Priority
//
// Containers load in ascending name order with patch containers last, so a
// file present in several containers resolves to the one loaded last. When
// archives are selected with [Session.SelectArchive] and friends, lookups and
// previews search only those archives, again preferring the one loaded last,
// and files added to the export set are pinned to the archive that supplied
// them.
package decima
