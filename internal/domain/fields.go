package domain

import (
	"fmt"
	"strings"
)

// Field names a canonical incident attribute.
type Field string

const (
	FieldID                 Field = "id"
	FieldTitle              Field = "title"
	FieldSummary            Field = "summary"
	FieldOccurredAt         Field = "occurredAt"
	FieldPublishedAt        Field = "publishedAt"
	FieldLocation           Field = "locationSummary"
	FieldDistrict           Field = "district"
	FieldState              Field = "state"
	FieldLatitude           Field = "latitude"
	FieldLongitude          Field = "longitude"
	FieldVictimGroup        Field = "victimGroup"
	FieldIncidentType       Field = "incidentType"
	FieldAllegedPerpetrator Field = "allegedPerpetrator"
	FieldPoliceAction       Field = "policeAction"
	FieldSourceURL          Field = "sourceUrl"
	FieldSourceName         Field = "sourceName"
	FieldConfidenceScore    Field = "confidenceScore"
	FieldVerifiedManually   Field = "verifiedManually"
)

// defaultAliases maps normalized header tokens to canonical fields.
// Keys must already be in NormalizeHeader form.
var defaultAliases = map[string]Field{
	"id":                 FieldID,
	"incidentid":         FieldID,
	"title":              FieldTitle,
	"headline":           FieldTitle,
	"summary":            FieldSummary,
	"description":        FieldSummary,
	"incidentdate":       FieldOccurredAt,
	"dateofincident":     FieldOccurredAt,
	"date":               FieldOccurredAt,
	"occurredat":         FieldOccurredAt,
	"publishedat":        FieldPublishedAt,
	"published":          FieldPublishedAt,
	"publishdate":        FieldPublishedAt,
	"location":           FieldLocation,
	"locationsummary":    FieldLocation,
	"district":           FieldDistrict,
	"state":              FieldState,
	"lat":                FieldLatitude,
	"latitude":           FieldLatitude,
	"lon":                FieldLongitude,
	"lng":                FieldLongitude,
	"long":               FieldLongitude,
	"longitude":          FieldLongitude,
	"victimgroup":        FieldVictimGroup,
	"victimcommunity":    FieldVictimGroup,
	"category":           FieldVictimGroup,
	"incidenttype":       FieldIncidentType,
	"type":               FieldIncidentType,
	"allegedperp":        FieldAllegedPerpetrator,
	"allegedperpetrator": FieldAllegedPerpetrator,
	"perpetrator":        FieldAllegedPerpetrator,
	"policeaction":       FieldPoliceAction,
	"sourceurl":          FieldSourceURL,
	"url":                FieldSourceURL,
	"sourcename":         FieldSourceName,
	"source":             FieldSourceName,
	"confidencescore":    FieldConfidenceScore,
	"confidence":         FieldConfidenceScore,
	"verifiedmanually":   FieldVerifiedManually,
	"verified":           FieldVerifiedManually,
}

var canonicalFields = []Field{
	FieldID, FieldTitle, FieldSummary, FieldOccurredAt, FieldPublishedAt,
	FieldLocation, FieldDistrict, FieldState, FieldLatitude, FieldLongitude,
	FieldVictimGroup, FieldIncidentType, FieldAllegedPerpetrator, FieldPoliceAction,
	FieldSourceURL, FieldSourceName, FieldConfidenceScore, FieldVerifiedManually,
}

// Fields returns every canonical field in display order.
func Fields() []Field {
	return append([]Field(nil), canonicalFields...)
}

// ParseField resolves a canonical field name, ignoring case and separators.
func ParseField(s string) (Field, error) {
	key := NormalizeHeader(s)
	for _, f := range canonicalFields {
		if NormalizeHeader(string(f)) == key {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown incident field %q", s)
}

// NormalizeHeader lowercases a header token and strips spaces, underscores,
// hyphens and dots, so "Date of Incident", "date_of_incident" and
// "dateOfIncident" share one key.
func NormalizeHeader(h string) string {
	var b strings.Builder
	b.Grow(len(h))
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		switch r {
		case ' ', '_', '-', '.', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
