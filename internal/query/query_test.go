package query_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/incident-tracker-service/internal/domain"
	"github.com/couchcryptid/incident-tracker-service/internal/query"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) *time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func incident(id, state, group, kind, date string) domain.Incident {
	inc := domain.Incident{
		ID:           id,
		Title:        "Incident " + id,
		State:        state,
		VictimGroup:  group,
		IncidentType: kind,
	}
	if date != "" {
		inc.OccurredAt = day(date)
	}
	return inc
}

func ids(incidents []domain.Incident) []string {
	out := make([]string, len(incidents))
	for i, inc := range incidents {
		out[i] = inc.ID
	}
	return out
}

var cmpIncidents = cmpopts.IgnoreUnexported(domain.Incident{})

func sampleCollection() []domain.Incident {
	a := incident("a", "Bihar", "Dalit", "Assault", "2024-01-01")
	a.Summary = "Stone pelting during procession"
	a.District = "Gaya"
	b := incident("b", "Kerala", "Muslim", "Hate speech", "2024-02-01")
	b.AllegedPerpetrator = "Local Vigilante group"
	c := incident("c", "Bihar", "Dalit", "Social boycott", "2024-03-01")
	c.Geo = &domain.Geo{Lat: 25.6, Lon: 85.1}
	return []domain.Incident{a, b, c}
}

func TestFilter_EmptySpecReturnsInput(t *testing.T) {
	in := sampleCollection()

	got := query.Filter(in, query.FilterSpec{})
	if diff := cmp.Diff(in, got, cmpIncidents); diff != "" {
		t.Errorf("empty spec changed collection (-want +got):\n%s", diff)
	}

	got[0].Title = "mutated"
	assert.NotEqual(t, "mutated", in[0].Title, "result must not alias the input")
}

func TestFilter_DateRange(t *testing.T) {
	got := query.Filter(sampleCollection(), query.FilterSpec{
		DateFrom: day("2024-01-15"),
		DateTo:   day("2024-02-15"),
	})
	assert.Equal(t, []string{"b"}, ids(got))
}

func TestFilter_DateBoundsInclusive(t *testing.T) {
	got := query.Filter(sampleCollection(), query.FilterSpec{
		DateFrom: day("2024-01-01"),
		DateTo:   day("2024-03-01"),
	})
	assert.Equal(t, []string{"a", "b", "c"}, ids(got))

	to := time.Date(2024, time.February, 1, 23, 59, 0, 0, time.UTC)
	got = query.Filter(sampleCollection(), query.FilterSpec{DateTo: &to})
	assert.Equal(t, []string{"a", "b"}, ids(got), "bounds compare by calendar day")
}

func TestFilter_PublishedAtFallbackAndUndated(t *testing.T) {
	published := time.Date(2024, time.February, 10, 17, 0, 0, 0, time.UTC)
	fallback := incident("p", "Goa", "Christian", "Assault", "")
	fallback.PublishedAt = &published
	undated := incident("u", "Goa", "Christian", "Assault", "")

	in := append(sampleCollection(), fallback, undated)

	got := query.Filter(in, query.FilterSpec{DateFrom: day("2024-02-10"), DateTo: day("2024-02-10")})
	assert.Equal(t, []string{"p"}, ids(got))

	got = query.Filter(in, query.FilterSpec{State: "Goa"})
	assert.Equal(t, []string{"p", "u"}, ids(got), "undated incidents pass when no date bound is set")
}

func TestFilter_Fields(t *testing.T) {
	tests := []struct {
		name string
		spec query.FilterSpec
		want []string
	}{
		{"state", query.FilterSpec{State: "Bihar"}, []string{"a", "c"}},
		{"state is exact", query.FilterSpec{State: "bihar"}, []string{}},
		{"victim group", query.FilterSpec{VictimGroup: "Muslim"}, []string{"b"}},
		{"incident type", query.FilterSpec{IncidentType: "Social boycott"}, []string{"c"}},
		{"search title", query.FilterSpec{Search: "incident c"}, []string{"c"}},
		{"search summary", query.FilterSpec{Search: "STONE"}, []string{"a"}},
		{"search district", query.FilterSpec{Search: "gaya"}, []string{"a"}},
		{"search perpetrator", query.FilterSpec{Search: "vigilante"}, []string{"b"}},
		{"search category", query.FilterSpec{Search: "dalit"}, []string{"a", "c"}},
		{"search trimmed", query.FilterSpec{Search: "  kerala "}, []string{"b"}},
		{"combined", query.FilterSpec{State: "Bihar", Search: "boycott"}, []string{"c"}},
		{"no match", query.FilterSpec{Search: "nothing like this"}, []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ids(query.Filter(sampleCollection(), tc.spec)))
		})
	}
}

func TestFilterSpec_IsZero(t *testing.T) {
	assert.True(t, query.FilterSpec{Search: "  "}.IsZero())
	assert.False(t, query.FilterSpec{State: "Goa"}.IsZero())
	assert.False(t, query.FilterSpec{DateTo: day("2024-01-01")}.IsZero())
}

func TestAggregate(t *testing.T) {
	now := time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC)
	in := []domain.Incident{
		incident("1", "Kerala", "Muslim", "Assault", "2024-03-05"),
		incident("2", "Bihar", "Dalit", "Assault", "2024-02-28"),
		incident("3", "Bihar", "Dalit", "Boycott", "2024-02-20"),
		incident("4", "Kerala", "Christian", "Assault", "2024-01-01"),
		incident("5", "", "Dalit", "Assault", ""),
		incident("6", "Goa", "Dalit", "Assault", "2024-03-06"),
	}
	in[1].District = "Patna"
	in[2].District = "Patna"
	in[3].District = "Kochi"
	in[0].Geo = &domain.Geo{Lat: 9.9, Lon: 76.2}

	got := query.Aggregate(in, now)

	want := query.Stats{
		Total:             6,
		LastWeek:          2,
		LastMonth:         3,
		MostAffectedState: "Kerala",
		StatesCount:       3,
		DistrictsCount:    2,
		WithCoordinates:   1,
		ByState:           map[string]int{"Kerala": 2, "Bihar": 2, "Goa": 1},
		ByIncidentType:    map[string]int{"Assault": 5, "Boycott": 1},
		ByVictimGroup:     map[string]int{"Muslim": 1, "Dalit": 4, "Christian": 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregate_WindowBoundsInclusive(t *testing.T) {
	now := time.Date(2024, time.March, 8, 0, 0, 0, 0, time.UTC)
	in := []domain.Incident{
		incident("edge-week", "A", "G", "T", "2024-03-01"),
		incident("edge-month", "A", "G", "T", "2024-02-07"),
		incident("outside", "A", "G", "T", "2024-02-06"),
	}

	got := query.Aggregate(in, now)
	assert.Equal(t, 1, got.LastWeek)
	assert.Equal(t, 2, got.LastMonth)
}

func TestAggregate_Idempotent(t *testing.T) {
	in := sampleCollection()
	now := time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC)

	first := query.Aggregate(in, now)
	second := query.Aggregate(in, now)
	assert.Equal(t, first, second)
}

func TestAggregate_Empty(t *testing.T) {
	got := query.Aggregate(nil, time.Now())
	assert.Zero(t, got.Total)
	assert.Empty(t, got.MostAffectedState)
	assert.NotNil(t, got.ByState)
}

func TestTally_SortedIsStable(t *testing.T) {
	tally := query.NewTally()
	for _, label := range []string{"b", "a", "c", "a", "b", "d"} {
		tally.Add(label)
	}

	assert.Equal(t, []query.Bucket{
		{Label: "b", Count: 2},
		{Label: "a", Count: 2},
		{Label: "c", Count: 1},
		{Label: "d", Count: 1},
	}, tally.Sorted())
	assert.Equal(t, 4, tally.Len())
}

func TestTopN_CollapsesTail(t *testing.T) {
	var in []domain.Incident
	// 15 categories: category k appears 16-k times.
	for k := 1; k <= 15; k++ {
		for n := 0; n < 16-k; n++ {
			in = append(in, incident(fmt.Sprintf("%d-%d", k, n), "S", fmt.Sprintf("group-%02d", k), "T", ""))
		}
	}

	got := query.Distribution(in, query.DimensionVictimGroup, query.DefaultTopN)
	require.Len(t, got, 11)
	assert.Equal(t, "group-01", got[0].Label)
	assert.Equal(t, "group-10", got[9].Label)
	assert.Equal(t, query.Bucket{Label: query.OtherLabel, Count: 5 + 4 + 3 + 2 + 1}, got[10])
}

func TestTopN_NoOtherWhenWithinLimit(t *testing.T) {
	buckets := []query.Bucket{{Label: "a", Count: 3}, {Label: "b", Count: 2}}
	assert.Equal(t, buckets, query.TopN(buckets, 10))

	ten := make([]query.Bucket, 10)
	for i := range ten {
		ten[i] = query.Bucket{Label: fmt.Sprint(i), Count: 10 - i}
	}
	assert.Len(t, query.TopN(ten, 10), 10)

	withZeroTail := append(append([]query.Bucket(nil), ten...), query.Bucket{Label: "zero", Count: 0})
	assert.Len(t, query.TopN(withZeroTail, 10), 10)
}

func TestTopN_FeedCategoryNamedOther(t *testing.T) {
	tests := []struct {
		name string
		in   []query.Bucket
		want []query.Bucket
	}{
		{
			name: "in tail",
			in:   []query.Bucket{{Label: "a", Count: 5}, {Label: "b", Count: 4}, {Label: "c", Count: 3}, {Label: query.OtherLabel, Count: 2}},
			want: []query.Bucket{{Label: "a", Count: 5}, {Label: "b", Count: 4}, {Label: query.OtherLabel, Count: 5}},
		},
		{
			name: "in head",
			in:   []query.Bucket{{Label: "a", Count: 5}, {Label: query.OtherLabel, Count: 4}, {Label: "c", Count: 3}, {Label: "d", Count: 1}},
			want: []query.Bucket{{Label: "a", Count: 5}, {Label: query.OtherLabel, Count: 8}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := query.TopN(tt.in, 2)
			assert.Equal(t, tt.want, got)

			var others int
			for _, b := range got {
				if b.Label == query.OtherLabel {
					others++
				}
			}
			assert.Equal(t, 1, others)
		})
	}
}

func TestParseDimension(t *testing.T) {
	d, err := query.ParseDimension("incidentType")
	require.NoError(t, err)
	assert.Equal(t, query.DimensionIncidentType, d)

	_, err = query.ParseDimension("district")
	assert.Error(t, err)
}

func TestFacetsOf(t *testing.T) {
	in := append(sampleCollection(), incident("d", "", "Adivasi", "Assault", ""))

	assert.Equal(t, query.Facets{
		States:        []string{"Bihar", "Kerala"},
		VictimGroups:  []string{"Adivasi", "Dalit", "Muslim"},
		IncidentTypes: []string{"Assault", "Hate speech", "Social boycott"},
	}, query.FacetsOf(in))
}

func TestWithLocation(t *testing.T) {
	assert.Equal(t, []string{"c"}, ids(query.WithLocation(sampleCollection())))
}

func TestRecent(t *testing.T) {
	in := append(sampleCollection(), incident("undated", "Goa", "Dalit", "Assault", ""))

	assert.Equal(t, []string{"c", "b", "a", "undated"}, ids(query.Recent(in, 0)))
	assert.Equal(t, []string{"c", "b"}, ids(query.Recent(in, 2)))
	assert.Equal(t, []string{"a", "b", "c", "undated"}, ids(in), "input order untouched")
}
