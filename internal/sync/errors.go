package sync

import "errors"

// ErrListPage wraps a failure to list a page of the root scope. It aborts
// the run.
var ErrListPage = errors.New("sync: listing page failed")

// ErrSubtree wraps a failure that abandoned a folder's subtree. It is
// recorded against the folder; the run continues.
var ErrSubtree = errors.New("sync: subtree failed")

// ErrChecksumMismatch means the downloaded bytes do not match the checksum
// the listing advertised. The item fails and nothing is written.
var ErrChecksumMismatch = errors.New("sync: checksum mismatch")

// statusCoder is implemented by fetch errors that carry an upstream status.
type statusCoder interface {
	HTTPStatus() int
}

// StatusOf extracts the upstream HTTP status from err, or 0.
func StatusOf(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}

	return 0
}
