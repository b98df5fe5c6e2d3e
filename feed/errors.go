package feed

import "github.com/pkg/errors"

// Sentinel errors of the feed core. Handlers translate these to HTTP status
// codes; everything else is treated as an internal failure.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrBadCursor = errors.New("invalid cursor")
)
