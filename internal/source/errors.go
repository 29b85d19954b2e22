package source

import (
	"errors"
	"fmt"
)

// ErrNotFound means the legacy upstream has no file for the term.
var ErrNotFound = errors.New("calendar data not found")

// UpstreamError is a failed upstream request: a transport error or a
// non-2xx status.
type UpstreamError struct {
	Source     string
	StatusCode int // zero for transport errors
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %s data: status %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch %s data: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
