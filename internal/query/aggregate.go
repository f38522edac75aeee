package query

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/couchcryptid/incident-tracker-service/internal/domain"
)

const (
	weekWindow  = 7 * 24 * time.Hour
	monthWindow = 30 * 24 * time.Hour
)

// Stats summarizes a collection.
type Stats struct {
	Total             int            `json:"total"`
	LastWeek          int            `json:"lastWeek"`
	LastMonth         int            `json:"lastMonth"`
	MostAffectedState string         `json:"mostAffectedState"`
	StatesCount       int            `json:"statesCount"`
	DistrictsCount    int            `json:"districtsCount"`
	WithCoordinates   int            `json:"withCoordinates"`
	ByState           map[string]int `json:"byState"`
	ByIncidentType    map[string]int `json:"byIncidentType"`
	ByVictimGroup     map[string]int `json:"byVictimGroup"`
}

// Aggregate computes Stats in one pass. The weekly and monthly windows are
// [now-7d, now] and [now-30d, now], both inclusive. Incidents without a
// state are left out of ByState and cannot be the most affected state.
func Aggregate(incidents []domain.Incident, now time.Time) Stats {
	weekStart := now.Add(-weekWindow)
	monthStart := now.Add(-monthWindow)

	states := NewTally()
	types := NewTally()
	groups := NewTally()
	districts := make(map[string]struct{})

	s := Stats{Total: len(incidents)}
	for i := range incidents {
		inc := &incidents[i]
		if d, ok := inc.EffectiveDate(); ok && !d.After(now) {
			if !d.Before(weekStart) {
				s.LastWeek++
			}
			if !d.Before(monthStart) {
				s.LastMonth++
			}
		}
		if inc.State != "" {
			states.Add(inc.State)
		}
		if inc.District != "" {
			districts[inc.State+"|"+inc.District] = struct{}{}
		}
		if inc.HasValidCoordinates() {
			s.WithCoordinates++
		}
		types.Add(inc.IncidentType)
		groups.Add(inc.VictimGroup)
	}

	if sorted := states.Sorted(); len(sorted) > 0 {
		s.MostAffectedState = sorted[0].Label
	}
	s.StatesCount = states.Len()
	s.DistrictsCount = len(districts)
	s.ByState = states.Counts()
	s.ByIncidentType = types.Counts()
	s.ByVictimGroup = groups.Counts()
	return s
}

// Dimension is a categorical attribute used for distributions.
type Dimension string

const (
	DimensionState        Dimension = "state"
	DimensionIncidentType Dimension = "incidentType"
	DimensionVictimGroup  Dimension = "victimGroup"
)

// ParseDimension validates a dimension name.
func ParseDimension(s string) (Dimension, error) {
	switch d := Dimension(s); d {
	case DimensionState, DimensionIncidentType, DimensionVictimGroup:
		return d, nil
	default:
		return "", fmt.Errorf("unknown dimension %q", s)
	}
}

func (d Dimension) value(inc *domain.Incident) string {
	switch d {
	case DimensionState:
		return inc.State
	case DimensionIncidentType:
		return inc.IncidentType
	default:
		return inc.VictimGroup
	}
}

// CountBy tallies incidents by dimension, skipping blank values.
func CountBy(incidents []domain.Incident, d Dimension) *Tally {
	t := NewTally()
	for i := range incidents {
		if v := d.value(&incidents[i]); v != "" {
			t.Add(v)
		}
	}
	return t
}

// Distribution returns chart-ready buckets for d with the top-n collapse applied.
func Distribution(incidents []domain.Incident, d Dimension, n int) []Bucket {
	return TopN(CountBy(incidents, d).Sorted(), n)
}

// Facets lists the distinct filter values present in a collection.
type Facets struct {
	States        []string `json:"states"`
	VictimGroups  []string `json:"victimGroups"`
	IncidentTypes []string `json:"incidentTypes"`
}

// FacetsOf returns the sorted distinct non-blank states, victim groups and
// incident types.
func FacetsOf(incidents []domain.Incident) Facets {
	return Facets{
		States:        uniqueSorted(incidents, DimensionState),
		VictimGroups:  uniqueSorted(incidents, DimensionVictimGroup),
		IncidentTypes: uniqueSorted(incidents, DimensionIncidentType),
	}
}

func uniqueSorted(incidents []domain.Incident, d Dimension) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for i := range incidents {
		v := d.value(&incidents[i])
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// WithLocation returns the incidents that can be placed on a map.
func WithLocation(incidents []domain.Incident) []domain.Incident {
	out := make([]domain.Incident, 0, len(incidents))
	for i := range incidents {
		if incidents[i].HasValidCoordinates() {
			out = append(out, incidents[i])
		}
	}
	return out
}

// Recent returns up to limit incidents, newest effective date first.
// Undated incidents sort last; ties keep collection order.
func Recent(incidents []domain.Incident, limit int) []domain.Incident {
	out := make([]domain.Incident, len(incidents))
	copy(out, incidents)
	sort.SliceStable(out, func(i, j int) bool {
		di, oki := out[i].EffectiveDate()
		dj, okj := out[j].EffectiveDate()
		if oki != okj {
			return oki
		}
		return di.After(dj)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
