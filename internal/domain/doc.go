// Package domain models incident records published by the community
// violence tracking spreadsheet.
//
// # Data Source
//
// Incidents are curated in a shared spreadsheet and published as either a CSV
// export or a JSON document. The spreadsheet automation that produces the feed
// is maintained separately; this package only sees the published rows. Over
// time the feed has used several header spellings for the same column:
//
//	snake_case:  incident_date, location_summary, victim_group
//	camelCase:   incidentDate, locationSummary, victimGroup
//	Title Case:  "Date of Incident", "Location", "Victim Community"
//
// Header tokens are normalized (lowercased, with spaces, underscores, hyphens
// and dots removed) before they are looked up in the alias table, so one
// entry covers every casing of the same name. See [Field] and [WithAlias].
//
// # Dates
//
// The incident date is a calendar date without time of day. Accepted
// layouts, tried in order:
//
//	2006-01-02   ISO 8601 (a full ISO timestamp is accepted by its date part)
//	1/2/2006     US month/day/year, as exported by spreadsheets
//	1-2-2006     month-day-year
//
// Anything else leaves OccurredAt nil. The publication timestamp is parsed
// leniently with dateparse and is only used as a fallback date.
//
// # Coordinates
//
// Latitude and longitude are kept only as a pair. Both must be finite numbers
// within [-90,90] and [-180,180]. The pair (0,0) is the feed's sentinel for an
// unknown location and is rejected. Rejected pairs leave Geo nil; no
// fallback location is ever substituted.
//
// # ID Generation
//
// Rows without an id get a UUIDv5 derived from title|date|district|state|lat|lon,
// so reloading the same feed yields the same ids. Collisions within one
// collection are disambiguated with "-2", "-3", ... suffixes.
package domain
