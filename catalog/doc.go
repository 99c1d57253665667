// Package catalog resolves content hashes across an ordered set of archives.
//
// Archives are indexed in load order. A hash may live in any number of them;
// nothing is deduplicated at load time. Resolution applies one rule:
//
//   - with an empty Subset every archive is searched, highest index first,
//     so archives loaded later (patches) shadow earlier ones;
//   - with a non-empty Subset only those archives are searched, again highest
//     index first.
//
// A hash that no searched archive holds is reported through the ok result and
// is never an error. Errors from Resolve describe I/O or integrity failures of
// the owning archive only.
//
// The catalog also keeps a display-name overlay (hash to path) that affects
// presentation and export naming but never resolution. The overlay is usually
// seeded in bulk from the prefetch index with LoadPrefetch.
//
// All query methods are safe for concurrent use. The archive list is
// published copy-on-write, so readers never block on loads.
package catalog
