package catalog

import "errors"

// Sentinel kinds for catalog errors.
var (
	ErrInvalidCatalog = errors.New("invalid scenario catalog")
	ErrReadCatalog    = errors.New("read scenario catalog")
)
