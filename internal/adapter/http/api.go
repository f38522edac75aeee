package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/incident-tracker-service/internal/domain"
	"github.com/couchcryptid/incident-tracker-service/internal/feed"
	"github.com/couchcryptid/incident-tracker-service/internal/query"
	"github.com/couchcryptid/incident-tracker-service/internal/store"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// maxListLimit caps the limit and top query parameters.
const maxListLimit = 1000

type incidentsResponse struct {
	Version     uint64            `json:"version"`
	LastUpdated *time.Time        `json:"lastUpdated,omitempty"`
	Count       int               `json:"count"`
	Incidents   []domain.Incident `json:"incidents"`
}

type statsResponse struct {
	Version uint64 `json:"version"`
	query.Stats
}

type distributionResponse struct {
	Version   uint64         `json:"version"`
	Dimension string         `json:"dimension"`
	Buckets   []query.Bucket `json:"buckets"`
}

type refreshResponse struct {
	Version  uint64        `json:"version"`
	Count    int           `json:"count"`
	LoadedAt time.Time     `json:"loadedAt"`
	Report   domain.Report `json:"report"`
}

// ParseFilterSpec reads a FilterSpec from query parameters: search, state,
// victimGroup, incidentType, dateFrom and dateTo (YYYY-MM-DD).
func ParseFilterSpec(v url.Values) (query.FilterSpec, error) {
	spec := query.FilterSpec{
		Search:       strings.TrimSpace(v.Get("search")),
		State:        strings.TrimSpace(v.Get("state")),
		VictimGroup:  strings.TrimSpace(v.Get("victimGroup")),
		IncidentType: strings.TrimSpace(v.Get("incidentType")),
	}
	var err error
	if spec.DateFrom, err = parseDateParam(v, "dateFrom"); err != nil {
		return query.FilterSpec{}, err
	}
	if spec.DateTo, err = parseDateParam(v, "dateTo"); err != nil {
		return query.FilterSpec{}, err
	}
	if spec.DateFrom != nil && spec.DateTo != nil && spec.DateTo.Before(*spec.DateFrom) {
		return query.FilterSpec{}, errors.New("dateTo is before dateFrom")
	}
	return spec, nil
}

func parseDateParam(v url.Values, name string) (*time.Time, error) {
	raw := strings.TrimSpace(v.Get(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: expected YYYY-MM-DD", name)
	}
	return &t, nil
}

func parseLimit(v url.Values, name string, def int) (int, error) {
	raw := v.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > maxListLimit {
		return 0, fmt.Errorf("invalid %s: expected an integer between 1 and %d", name, maxListLimit)
	}
	return n, nil
}

// filtered applies the request's filter parameters to the current snapshot.
func (s *Server) filtered(w http.ResponseWriter, r *http.Request) (store.Snapshot, []domain.Incident, bool) {
	spec, err := ParseFilterSpec(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return store.Snapshot{}, nil, false
	}
	snap := s.snapshots.Current()
	return snap, query.Filter(snap.Incidents, spec), true
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	snap, incidents, ok := s.filtered(w, r)
	if !ok {
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, incidentsResponse{
		Version:     snap.Version,
		LastUpdated: snap.LastUpdated,
		Count:       len(incidents),
		Incidents:   incidents,
	})
}

func (s *Server) handleIncident(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	for _, inc := range s.snapshots.Current().Incidents {
		if inc.ID == id {
			sharedobs.WriteJSON(w, http.StatusOK, inc)
			return
		}
	}
	writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("incident %q not found", id))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, incidents, ok := s.filtered(w, r)
	if !ok {
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, statsResponse{
		Version: snap.Version,
		Stats:   query.Aggregate(incidents, s.opts.Clock.Now()),
	})
}

func (s *Server) handleDistribution(w http.ResponseWriter, r *http.Request) {
	dim, err := query.ParseDimension(r.PathValue("dimension"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_dimension", err.Error())
		return
	}
	top, err := parseLimit(r.URL.Query(), "top", s.opts.TopN)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}
	snap, incidents, ok := s.filtered(w, r)
	if !ok {
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, distributionResponse{
		Version:   snap.Version,
		Dimension: string(dim),
		Buckets:   query.Distribution(incidents, dim, top),
	})
}

func (s *Server) handleFacets(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, query.FacetsOf(s.snapshots.Current().Incidents))
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	snap, incidents, ok := s.filtered(w, r)
	if !ok {
		return
	}
	located := query.WithLocation(incidents)
	sharedobs.WriteJSON(w, http.StatusOK, incidentsResponse{
		Version:     snap.Version,
		LastUpdated: snap.LastUpdated,
		Count:       len(located),
		Incidents:   located,
	})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query(), "limit", s.opts.RecentLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}
	snap := s.snapshots.Current()
	recent := query.Recent(snap.Incidents, limit)
	sharedobs.WriteJSON(w, http.StatusOK, incidentsResponse{
		Version:     snap.Version,
		LastUpdated: snap.LastUpdated,
		Count:       len(recent),
		Incidents:   recent,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.refresher.Refresh(r.Context())
	switch {
	case err == nil:
		sharedobs.WriteJSON(w, http.StatusOK, refreshResponse{
			Version:  snap.Version,
			Count:    snap.Len(),
			LoadedAt: snap.LoadedAt,
			Report:   snap.Report,
		})
	case errors.Is(err, feed.ErrBusy):
		writeError(w, http.StatusConflict, feed.Kind(err), err.Error())
	case errors.Is(err, feed.ErrFetch):
		writeError(w, http.StatusBadGateway, feed.Kind(err), err.Error())
	default:
		s.logger.Error("refresh failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "refresh failed")
	}
}
