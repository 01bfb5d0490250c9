package geosearch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCoordinate is returned by coordinate queries when the
	// caller-supplied latitude or longitude is outside the valid domain.
	// It is checked before any index lookup happens.
	ErrInvalidCoordinate = errors.New("geosearch: invalid coordinate")

	// ErrIndexNotBuilt is returned when a query is issued against a
	// Searcher that has not published a built engine yet. It keeps
	// "not ready" distinguishable from "no match" (an empty result).
	ErrIndexNotBuilt = errors.New("geosearch: index not built, run a build or download first")
)

// ParseError describes a single malformed dataset row. Parse errors are
// aggregated into ParseStats and never abort ingestion.
type ParseError struct {
	Line   int    // 1-based line number in the input
	Reason string // what was wrong with the row
}

func (e ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}
