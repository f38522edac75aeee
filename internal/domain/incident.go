package domain

import (
	"encoding/json"
	"maps"
	"time"
)

const (
	// DateLayout is the canonical layout for date-only values.
	DateLayout = "2006-01-02"

	DefaultTitle    = "Untitled Incident"
	DefaultCategory = "Unknown"
	NoLocation      = "Location not specified"
)

// RawRow is one untyped feed row keyed by its original header.
type RawRow map[string]string

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Incident is the canonical record built from one feed row.
// Values are never modified after normalization; the slice holding them is
// replaced as a whole when the feed is reloaded.
type Incident struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Summary            string     `json:"summary,omitempty"`
	OccurredAt         *time.Time `json:"occurredAt"`
	PublishedAt        *time.Time `json:"publishedAt,omitempty"`
	LocationSummary    string     `json:"locationSummary"`
	District           string     `json:"district,omitempty"`
	State              string     `json:"state,omitempty"`
	Geo                *Geo       `json:"geo"`
	VictimGroup        string     `json:"victimGroup"`
	IncidentType       string     `json:"incidentType"`
	AllegedPerpetrator string     `json:"allegedPerpetrator,omitempty"`
	PoliceAction       string     `json:"policeAction,omitempty"`
	SourceURL          string     `json:"sourceUrl,omitempty"`
	SourceName         string     `json:"sourceName,omitempty"`
	ConfidenceScore    string     `json:"confidenceScore,omitempty"`
	VerifiedManually   *bool      `json:"verifiedManually,omitempty"`

	attrs map[string]string
}

// HasValidCoordinates reports whether the incident can be placed on a map.
func (i Incident) HasValidCoordinates() bool {
	return i.Geo != nil
}

// Attributes returns a copy of the feed columns that did not map to a
// canonical field, keyed by their original header.
func (i Incident) Attributes() map[string]string {
	if len(i.attrs) == 0 {
		return nil
	}
	return maps.Clone(i.attrs)
}

// EffectiveDate is the incident date, falling back to the calendar day of
// the publication timestamp. Returns false when neither is known.
func (i Incident) EffectiveDate() (time.Time, bool) {
	if i.OccurredAt != nil {
		return *i.OccurredAt, true
	}
	if i.PublishedAt != nil {
		return TruncateDay(*i.PublishedAt), true
	}
	return time.Time{}, false
}

// MarshalJSON renders OccurredAt as a date-only string and includes the
// pass-through attributes.
func (i Incident) MarshalJSON() ([]byte, error) {
	type plain Incident
	var occurred *string
	if i.OccurredAt != nil {
		s := i.OccurredAt.Format(DateLayout)
		occurred = &s
	}
	return json.Marshal(struct {
		plain
		OccurredAt *string           `json:"occurredAt"`
		Attributes map[string]string `json:"attributes,omitempty"`
	}{
		plain:      plain(i),
		OccurredAt: occurred,
		Attributes: i.attrs,
	})
}

// TruncateDay returns midnight UTC of t's calendar day in UTC.
func TruncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
