package domain

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// occurredLayouts are tried in order; the first successful parse wins.
var occurredLayouts = []string{DateLayout, "1/2/2006", "1-2-2006"}

// Report summarizes data-quality outcomes of one normalization pass.
type Report struct {
	RowsRead            int      `json:"rowsRead"`
	Kept                int      `json:"kept"`
	Discarded           int      `json:"discarded"`
	MissingCoordinates  int      `json:"missingCoordinates"`
	InvalidCoordinates  int      `json:"invalidCoordinates"`
	UnparsableDates     int      `json:"unparsableDates"`
	UnparsablePublished int      `json:"unparsablePublished"`
	GeneratedIDs        int      `json:"generatedIds"`
	DuplicateIDs        int      `json:"duplicateIds"`
	UnknownHeaders      []string `json:"unknownHeaders,omitempty"`
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithAlias maps an additional header spelling onto a canonical field.
func WithAlias(header string, field Field) Option {
	return func(n *Normalizer) {
		n.aliases[NormalizeHeader(header)] = field
	}
}

// Normalizer converts raw feed rows into canonical incidents.
type Normalizer struct {
	aliases map[string]Field
	logger  *slog.Logger
}

// NewNormalizer creates a Normalizer using the built-in alias table plus any
// extra aliases supplied as options.
func NewNormalizer(logger *slog.Logger, opts ...Option) *Normalizer {
	n := &Normalizer{
		aliases: make(map[string]Field, len(defaultAliases)),
		logger:  logger,
	}
	for k, v := range defaultAliases {
		n.aliases[k] = v
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// rowIssues records the per-row degradations found while normalizing.
type rowIssues struct {
	invalidCoordinates  bool
	missingCoordinates  bool
	unparsableDate      bool
	unparsablePublished bool
	generatedID         bool
}

// Normalize maps every row and returns the retained incidents in feed order.
// Rows with neither a title nor a victim group are dropped. Ids are unique
// within the returned slice.
func (n *Normalizer) Normalize(rows []RawRow) ([]Incident, Report) {
	report := Report{RowsRead: len(rows)}
	incidents := make([]Incident, 0, len(rows))
	seen := make(map[string]int, len(rows))
	unknown := make(map[string]struct{})

	for idx, row := range rows {
		inc, issues, ok := n.normalizeRow(row)
		for h := range inc.attrs {
			unknown[h] = struct{}{}
		}
		if !ok {
			report.Discarded++
			n.logger.Debug("row discarded: no title and no victim group", "row", idx+1)
			continue
		}

		if issues.invalidCoordinates {
			report.InvalidCoordinates++
			n.logger.Debug("invalid coordinates", "row", idx+1, "id", inc.ID)
		}
		if issues.missingCoordinates {
			report.MissingCoordinates++
		}
		if issues.unparsableDate {
			report.UnparsableDates++
			n.logger.Debug("unparsable incident date", "row", idx+1, "id", inc.ID)
		}
		if issues.unparsablePublished {
			report.UnparsablePublished++
		}
		if issues.generatedID {
			report.GeneratedIDs++
		}

		if c := seen[inc.ID]; c > 0 {
			report.DuplicateIDs++
			base := inc.ID
			for {
				c++
				candidate := fmt.Sprintf("%s-%d", base, c)
				if seen[candidate] == 0 {
					seen[base] = c
					inc.ID = candidate
					break
				}
			}
		}
		seen[inc.ID] = 1

		incidents = append(incidents, inc)
	}

	report.Kept = len(incidents)
	for h := range unknown {
		report.UnknownHeaders = append(report.UnknownHeaders, h)
	}
	slices.Sort(report.UnknownHeaders)
	return incidents, report
}

// NormalizeRow maps a single row. The boolean is false when the row should be
// discarded.
func (n *Normalizer) NormalizeRow(row RawRow) (Incident, bool) {
	inc, _, ok := n.normalizeRow(row)
	return inc, ok
}

func (n *Normalizer) normalizeRow(row RawRow) (Incident, rowIssues, bool) {
	values, attrs := n.resolve(row)
	var issues rowIssues

	title := values[FieldTitle]
	victimGroup := values[FieldVictimGroup]
	if title == "" && victimGroup == "" {
		return Incident{attrs: attrs}, issues, false
	}

	inc := Incident{
		Title:              orDefault(title, DefaultTitle),
		Summary:            values[FieldSummary],
		District:           values[FieldDistrict],
		State:              values[FieldState],
		VictimGroup:        orDefault(victimGroup, DefaultCategory),
		IncidentType:       orDefault(values[FieldIncidentType], DefaultCategory),
		AllegedPerpetrator: values[FieldAllegedPerpetrator],
		PoliceAction:       values[FieldPoliceAction],
		SourceURL:          values[FieldSourceURL],
		SourceName:         values[FieldSourceName],
		ConfidenceScore:    values[FieldConfidenceScore],
		VerifiedManually:   parseVerified(values[FieldVerifiedManually]),
		attrs:              attrs,
	}
	inc.LocationSummary = composeLocation(values[FieldLocation], inc.District, inc.State)

	if raw := values[FieldOccurredAt]; raw != "" {
		if d, ok := ParseIncidentDate(raw); ok {
			inc.OccurredAt = &d
		} else {
			issues.unparsableDate = true
		}
	}
	if raw := values[FieldPublishedAt]; raw != "" {
		if ts, err := dateparse.ParseIn(raw, time.UTC); err == nil {
			ts = ts.UTC()
			inc.PublishedAt = &ts
		} else {
			issues.unparsablePublished = true
		}
	}

	latRaw, lonRaw := values[FieldLatitude], values[FieldLongitude]
	if geo, ok := ParseCoordinates(latRaw, lonRaw); ok {
		inc.Geo = geo
	} else if latRaw == "" && lonRaw == "" {
		issues.missingCoordinates = true
	} else {
		issues.invalidCoordinates = true
	}

	inc.ID = values[FieldID]
	if inc.ID == "" {
		inc.ID = GenerateID(inc)
		issues.generatedID = true
	}
	return inc, issues, true
}

// resolve splits a row into canonical values and pass-through attributes.
// When several headers map to the same field the non-empty value whose header
// sorts first by name wins. Rows are maps, so feed column order is not
// available here.
func (n *Normalizer) resolve(row RawRow) (map[Field]string, map[string]string) {
	headers := make([]string, 0, len(row))
	for h := range row {
		headers = append(headers, h)
	}
	slices.Sort(headers)

	values := make(map[Field]string, len(canonicalFields))
	var attrs map[string]string
	for _, h := range headers {
		v := strings.TrimSpace(row[h])
		field, ok := n.aliases[NormalizeHeader(h)]
		if !ok {
			if attrs == nil {
				attrs = make(map[string]string)
			}
			attrs[strings.TrimSpace(h)] = v
			continue
		}
		if values[field] == "" {
			values[field] = v
		}
	}
	return values, attrs
}

// ParseIncidentDate parses a date-only value using the accepted layouts.
func ParseIncidentDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	// Full ISO timestamps are accepted by their date part.
	if len(s) > len(DateLayout) && s[4] == '-' && s[7] == '-' && (s[10] == 'T' || s[10] == ' ') {
		s = s[:len(DateLayout)]
	}
	for _, layout := range occurredLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseCoordinates validates a latitude/longitude pair. Both values must be
// finite, in range and not the (0,0) sentinel.
func ParseCoordinates(latRaw, lonRaw string) (*Geo, bool) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	if err != nil {
		return nil, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonRaw), 64)
	if err != nil {
		return nil, false
	}
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return nil, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, false
	}
	if lat == 0 && lon == 0 {
		return nil, false
	}
	return &Geo{Lat: lat, Lon: lon}, true
}

// composeLocation joins the free-text location with district and state,
// skipping parts the location already mentions.
func composeLocation(location, district, state string) string {
	var parts []string
	if location != "" {
		parts = append(parts, location)
	}
	lower := strings.ToLower(location)
	for _, p := range []string{district, state} {
		if p == "" || strings.Contains(lower, strings.ToLower(p)) {
			continue
		}
		parts = append(parts, p)
		lower += " " + strings.ToLower(p)
	}
	if len(parts) == 0 {
		return NoLocation
	}
	return strings.Join(parts, ", ")
}

func parseVerified(s string) *bool {
	var v bool
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "t":
		v = true
	case "false", "no", "n", "0", "f":
		v = false
	default:
		return nil
	}
	return &v
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
