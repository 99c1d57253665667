package catalog

import "fmt"

// LoadError reports a container that could not be added to the catalog.
//
// Err wraps one of the archive package sentinels (or an os error), so
// errors.Is works through a LoadError.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("catalog: load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
