package feed_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/incident-tracker-service/internal/domain"
	"github.com/couchcryptid/incident-tracker-service/internal/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `incident_id,headline,incident_date,location,district,state,lat,lon,victim_group,incident_type
INC-1,"Attack on wedding procession, stones thrown",2024-01-01,Main road,Agra,Uttar Pradesh,27.18,78.01,Dalit,Assault
INC-2,Boycott announced,01/02/2024,,,Haryana,abc,76.5,Dalit,Social boycott
,,,,,,,,,
INC-3,,2024-03-01,,,Bihar,,,,
`

const sampleWrappedJSON = `{
  "lastUpdated": "2024-03-10T08:00:00Z",
  "data": [
    {"incident_id": "J-1", "title": "Mosque vandalized", "incident_date": "2024-03-01", "state": "Gujarat", "lat": 23.02, "lon": 72.57, "victim_group": "Muslim", "verified_manually": true},
    {"incident_id": "J-2", "title": "", "victim_group": "", "state": "Gujarat"}
  ]
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLoader() *feed.Loader {
	return feed.NewLoader(&http.Client{Timeout: 5 * time.Second}, domain.NewNormalizer(discardLogger()), discardLogger())
}

func serve(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoad_CSV(t *testing.T) {
	srv := serve(t, "text/csv; charset=utf-8", sampleCSV)

	res, err := newLoader().Load(context.Background(), feed.Source{URL: srv.URL})
	require.NoError(t, err)

	assert.Equal(t, feed.FormatCSV, res.Format)
	require.Len(t, res.Incidents, 2, "row without title and victim group is discarded")

	first := res.Incidents[0]
	assert.Equal(t, "INC-1", first.ID)
	assert.Equal(t, "Attack on wedding procession, stones thrown", first.Title)
	assert.Equal(t, "Main road, Agra, Uttar Pradesh", first.LocationSummary)
	assert.True(t, first.HasValidCoordinates())

	second := res.Incidents[1]
	assert.Equal(t, "INC-2", second.ID)
	require.NotNil(t, second.OccurredAt)
	assert.Equal(t, "2024-01-02", second.OccurredAt.Format(domain.DateLayout))
	assert.False(t, second.HasValidCoordinates())

	assert.Equal(t, 3, res.Report.RowsRead)
	assert.Equal(t, 1, res.Report.Discarded)
	assert.Equal(t, 1, res.Report.InvalidCoordinates)
}

func TestLoad_WrappedJSON(t *testing.T) {
	srv := serve(t, "application/json", sampleWrappedJSON)

	res, err := newLoader().Load(context.Background(), feed.Source{URL: srv.URL})
	require.NoError(t, err)

	assert.Equal(t, feed.FormatJSON, res.Format)
	require.Len(t, res.Incidents, 1)
	require.NotNil(t, res.LastUpdated)
	assert.Equal(t, time.Date(2024, time.March, 10, 8, 0, 0, 0, time.UTC), *res.LastUpdated)

	inc := res.Incidents[0]
	assert.Equal(t, "Mosque vandalized", inc.Title)
	require.NotNil(t, inc.Geo)
	assert.InDelta(t, 23.02, inc.Geo.Lat, 1e-9)
	require.NotNil(t, inc.VerifiedManually)
	assert.True(t, *inc.VerifiedManually)
}

func TestLoad_BareJSONArraySniffed(t *testing.T) {
	srv := serve(t, "text/plain", ` [{"Title": "Church attacked", "Victim Community": "Christian", "Latitude": "21.25", "Longitude": "81.63"}]`)

	res, err := newLoader().Load(context.Background(), feed.Source{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, feed.FormatJSON, res.Format)
	require.Len(t, res.Incidents, 1)
	assert.Equal(t, "Christian", res.Incidents[0].VictimGroup)
	assert.Nil(t, res.LastUpdated)
}

func TestLoad_DeclaredFormatWins(t *testing.T) {
	srv := serve(t, "application/json", "title,victim_group\nT,Dalit\n")

	res, err := newLoader().Load(context.Background(), feed.Source{URL: srv.URL, Format: feed.FormatCSV})
	require.NoError(t, err)
	assert.Equal(t, feed.FormatCSV, res.Format)
	assert.Len(t, res.Incidents, 1)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind string
		check    func(t *testing.T, err error)
	}{
		{
			name: "http status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "gone", http.StatusNotFound)
			},
			wantKind: "http_status",
			check: func(t *testing.T, err error) {
				var statusErr *feed.HTTPStatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, http.StatusNotFound, statusErr.Code)
			},
		},
		{
			name:     "empty body",
			handler:  func(w http.ResponseWriter, _ *http.Request) {},
			wantKind: "empty_feed",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, feed.ErrEmptyFeed)
			},
		},
		{
			name: "header only",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, "title,victim_group\n")
			},
			wantKind: "empty_feed",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, feed.ErrEmptyFeed)
			},
		},
		{
			name: "no valid rows",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, "title,victim_group,state\n,,Bihar\n,,Kerala\n")
			},
			wantKind: "no_valid_rows",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, feed.ErrNoValidRows)
			},
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{"data": [`)
			},
			wantKind: "parse",
			check: func(t *testing.T, err error) {
				var parseErr *feed.ParseError
				require.ErrorAs(t, err, &parseErr)
				assert.Equal(t, feed.FormatJSON, parseErr.Format)
			},
		},
		{
			name: "json object without data",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"rows": []}`)
			},
			wantKind: "parse",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			_, err := newLoader().Load(context.Background(), feed.Source{URL: srv.URL})
			require.Error(t, err)
			assert.ErrorIs(t, err, feed.ErrFetch)
			assert.Equal(t, tc.wantKind, feed.Kind(err))
			if tc.check != nil {
				tc.check(t, err)
			}
		})
	}
}

func TestLoad_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newLoader().Load(context.Background(), feed.Source{URL: url})

	var netErr *feed.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.ErrorIs(t, err, feed.ErrFetch)
	assert.Equal(t, "network", feed.Kind(err))
}

func TestLoad_RejectsConcurrentLoad(t *testing.T) {
	var requests atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1) == 1 {
			close(started)
		}
		<-release
		_, _ = io.WriteString(w, "title,victim_group\nT,Dalit\n")
	}))
	defer srv.Close()

	loader := newLoader()
	src := feed.Source{URL: srv.URL}

	firstErr := make(chan error, 1)
	go func() {
		_, err := loader.Load(context.Background(), src)
		firstErr <- err
	}()

	<-started
	assert.True(t, loader.Busy())

	_, err := loader.Load(context.Background(), src)
	require.ErrorIs(t, err, feed.ErrBusy)
	assert.NotErrorIs(t, err, feed.ErrFetch)

	close(release)
	require.NoError(t, <-firstErr)
	assert.Equal(t, int32(1), requests.Load(), "busy rejection must not issue a request")
	assert.False(t, loader.Busy())

	_, err = loader.Load(context.Background(), src)
	require.NoError(t, err, "guard is released after the first load completes")
}

func TestLoad_FileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	for _, url := range []string{path, "file://" + path} {
		res, err := newLoader().Load(context.Background(), feed.Source{URL: url})
		require.NoError(t, err, url)
		assert.Len(t, res.Incidents, 2)
	}

	_, err := newLoader().Load(context.Background(), feed.Source{URL: filepath.Join(t.TempDir(), "missing.csv")})
	assert.True(t, errors.Is(err, feed.ErrFetch))
}

func TestLoad_OversizedFeedIsRejected(t *testing.T) {
	var b strings.Builder
	b.WriteString("title,victim_group\n")
	for range 200 {
		b.WriteString("Temple desecrated during festival procession,Dalit\n")
	}
	body := b.String()
	path := filepath.Join(t.TempDir(), "big.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	srv := serve(t, "text/csv", body)

	limited := func(n int) *feed.Loader {
		return feed.NewLoader(&http.Client{Timeout: 5 * time.Second}, domain.NewNormalizer(discardLogger()), discardLogger(),
			feed.WithMaxBodyBytes(int64(n)))
	}

	for _, url := range []string{srv.URL, path} {
		t.Run(url, func(t *testing.T) {
			res, err := limited(len(body)-1).Load(context.Background(), feed.Source{URL: url})

			var parseErr *feed.ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Contains(t, parseErr.Reason, "exceeds size limit")
			assert.Equal(t, "parse", feed.Kind(err))
			assert.Empty(t, res.Incidents, "no truncated rows may be kept")

			res, err = limited(len(body)).Load(context.Background(), feed.Source{URL: url})
			require.NoError(t, err)
			assert.Len(t, res.Incidents, 200)
		})
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]feed.Format{"": feed.FormatAuto, "AUTO": feed.FormatAuto, "csv": feed.FormatCSV, " json ": feed.FormatJSON} {
		got, err := feed.ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := feed.ParseFormat("xml")
	assert.Error(t, err)
}
