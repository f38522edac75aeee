package feed

import (
	"errors"
	"fmt"
)

// ErrFetch matches every load failure caused by the feed itself.
var ErrFetch = errors.New("feed fetch failed")

var (
	// ErrBusy is returned when a load is already in flight. No request is made.
	ErrBusy = errors.New("feed load already in progress")

	// ErrEmptyFeed is returned for a zero-byte body or a document with no rows.
	ErrEmptyFeed = fmt.Errorf("%w: empty feed", ErrFetch)

	// ErrNoValidRows is returned when every parsed row was discarded.
	ErrNoValidRows = fmt.Errorf("%w: no valid rows", ErrFetch)
)

// NetworkError wraps a transport failure (DNS, connection, read).
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error        { return e.Err }
func (e *NetworkError) Is(target error) bool { return target == ErrFetch }

// HTTPStatusError reports a non-2xx response.
type HTTPStatusError struct {
	URL  string
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Code)
}

func (e *HTTPStatusError) Is(target error) bool { return target == ErrFetch }

// ParseError reports a malformed CSV or JSON document.
type ParseError struct {
	Format Format
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Format == "" {
		return "parse feed: " + e.Reason
	}
	if e.Err != nil {
		return fmt.Sprintf("parse %s feed: %s: %v", e.Format, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s feed: %s", e.Format, e.Reason)
}

func (e *ParseError) Unwrap() error        { return e.Err }
func (e *ParseError) Is(target error) bool { return target == ErrFetch }

// Kind returns a short stable label for err, suitable for metric labels and
// API error bodies.
func Kind(err error) string {
	var (
		netErr    *NetworkError
		statusErr *HTTPStatusError
		parseErr  *ParseError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrEmptyFeed):
		return "empty_feed"
	case errors.Is(err, ErrNoValidRows):
		return "no_valid_rows"
	case errors.As(err, &statusErr):
		return "http_status"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &netErr):
		return "network"
	default:
		return "unknown"
	}
}
