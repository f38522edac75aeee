// Package query derives filtered subsets and aggregate statistics from a
// canonical incident collection. Every function is pure: inputs are never
// modified and results never alias the input slice.
package query

import (
	"strings"
	"time"

	"github.com/couchcryptid/incident-tracker-service/internal/domain"
)

// FilterSpec lists optional constraints. Zero-valued fields pass everything.
type FilterSpec struct {
	Search       string     `json:"search,omitempty"`
	State        string     `json:"state,omitempty"`
	VictimGroup  string     `json:"victimGroup,omitempty"`
	IncidentType string     `json:"incidentType,omitempty"`
	DateFrom     *time.Time `json:"dateFrom,omitempty"`
	DateTo       *time.Time `json:"dateTo,omitempty"`
}

// IsZero reports whether the spec applies no constraint.
func (s FilterSpec) IsZero() bool {
	return strings.TrimSpace(s.Search) == "" && s.State == "" && s.VictimGroup == "" &&
		s.IncidentType == "" && s.DateFrom == nil && s.DateTo == nil
}

// Filter returns the incidents matching spec in their original order.
// Date bounds are inclusive and compared by calendar day against the
// incident date, falling back to the publication date. Incidents with
// neither date are excluded whenever a bound is set.
func Filter(incidents []domain.Incident, spec FilterSpec) []domain.Incident {
	m := newMatcher(spec)
	out := make([]domain.Incident, 0, len(incidents))
	for i := range incidents {
		if m.match(&incidents[i]) {
			out = append(out, incidents[i])
		}
	}
	return out
}

type matcher struct {
	spec     FilterSpec
	term     string
	from, to time.Time
}

func newMatcher(spec FilterSpec) matcher {
	m := matcher{spec: spec, term: strings.ToLower(strings.TrimSpace(spec.Search))}
	if spec.DateFrom != nil {
		m.from = domain.TruncateDay(*spec.DateFrom)
	}
	if spec.DateTo != nil {
		m.to = domain.TruncateDay(*spec.DateTo)
	}
	return m
}

func (m matcher) match(inc *domain.Incident) bool {
	if m.spec.State != "" && inc.State != m.spec.State {
		return false
	}
	if m.spec.VictimGroup != "" && inc.VictimGroup != m.spec.VictimGroup {
		return false
	}
	if m.spec.IncidentType != "" && inc.IncidentType != m.spec.IncidentType {
		return false
	}
	if m.spec.DateFrom != nil || m.spec.DateTo != nil {
		d, ok := inc.EffectiveDate()
		if !ok {
			return false
		}
		if m.spec.DateFrom != nil && d.Before(m.from) {
			return false
		}
		if m.spec.DateTo != nil && d.After(m.to) {
			return false
		}
	}
	return m.term == "" || matchesSearch(inc, m.term)
}

func matchesSearch(inc *domain.Incident, term string) bool {
	for _, field := range []string{
		inc.Title, inc.Summary, inc.District, inc.State,
		inc.VictimGroup, inc.IncidentType, inc.AllegedPerpetrator,
	} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}
