// Package feed fetches the published incident spreadsheet and turns it into
// canonical incidents.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/incident-tracker-service/internal/domain"
)

// DefaultMaxBodyBytes is the largest feed document Load accepts.
const DefaultMaxBodyBytes = 64 << 20

// Format is the encoding of a feed document.
type Format string

const (
	FormatAuto Format = "auto"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name. An empty string means auto-detect.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown feed format %q", s)
	}
}

// Source locates a feed document. URL may be http(s), file:// or a plain path.
type Source struct {
	URL    string
	Format Format
}

// Result is the outcome of one successful load.
type Result struct {
	Incidents   []domain.Incident
	LastUpdated *time.Time
	Format      Format
	Bytes       int
	Report      domain.Report
}

// Loader fetches, parses and normalizes feed documents.
// At most one Load runs at a time per Loader.
type Loader struct {
	client     *http.Client
	normalizer *domain.Normalizer
	logger     *slog.Logger
	maxBytes   int64
	busy       atomic.Bool
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithMaxBodyBytes overrides DefaultMaxBodyBytes. Non-positive values are ignored.
func WithMaxBodyBytes(n int64) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

// NewLoader creates a Loader. The client's timeout bounds each request.
func NewLoader(client *http.Client, normalizer *domain.Normalizer, logger *slog.Logger, opts ...LoaderOption) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	l := &Loader{client: client, normalizer: normalizer, logger: logger, maxBytes: DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Busy reports whether a load is in flight.
func (l *Loader) Busy() bool {
	return l.busy.Load()
}

// Load fetches the source and returns the normalized incidents. A call made
// while another is pending returns ErrBusy immediately. On ErrNoValidRows the
// returned Result still carries the normalization report.
func (l *Loader) Load(ctx context.Context, src Source) (Result, error) {
	if !l.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer l.busy.Store(false)

	body, contentType, err := l.fetch(ctx, src.URL)
	if err != nil {
		return Result{}, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return Result{}, ErrEmptyFeed
	}

	format := detectFormat(src.Format, contentType, body)
	res := Result{Format: format, Bytes: len(body)}

	var rows []domain.RawRow
	switch format {
	case FormatJSON:
		rows, res.LastUpdated, err = parseJSON(body)
	default:
		rows, err = parseCSV(body)
	}
	if err != nil {
		return res, err
	}

	res.Incidents, res.Report = l.normalizer.Normalize(rows)
	if len(res.Incidents) == 0 {
		return res, ErrNoValidRows
	}

	l.logger.Debug("feed parsed",
		"url", src.URL,
		"format", format,
		"bytes", res.Bytes,
		"rows", res.Report.RowsRead,
		"kept", res.Report.Kept,
	)
	return res, nil
}

func (l *Loader) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", &NetworkError{URL: rawURL, Err: err}
	}

	switch u.Scheme {
	case "http", "https":
	case "file":
		return l.readFile(rawURL, u.Path)
	case "":
		return l.readFile(rawURL, rawURL)
	default:
		return nil, "", &NetworkError{URL: rawURL, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", &NetworkError{URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", "text/csv, application/json;q=0.9, */*;q=0.5")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, "", &NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, "", &HTTPStatusError{URL: rawURL, Code: resp.StatusCode}
	}

	body, err := l.readLimited(rawURL, resp.Body)
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (l *Loader) readFile(rawURL, path string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", &NetworkError{URL: rawURL, Err: err}
	}
	defer f.Close()

	body, err := l.readLimited(rawURL, f)
	if err != nil {
		return nil, "", err
	}
	return body, "", nil
}

// readLimited reads r fully, failing rather than truncating when the
// document is larger than the configured limit.
func (l *Loader) readLimited(rawURL string, r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	if int64(len(body)) > l.maxBytes {
		return nil, &ParseError{Reason: fmt.Sprintf("feed exceeds size limit of %d bytes", l.maxBytes)}
	}
	return body, nil
}
