package domain

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// incidentNamespace scopes generated ids so they cannot collide with UUIDv5
// values derived for other purposes.
var incidentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:incident-tracker:incident"))

// GenerateID derives a deterministic id from the identifying fields of an
// incident: title|date|district|state|lat|lon.
func GenerateID(inc Incident) string {
	var date, lat, lon string
	if inc.OccurredAt != nil {
		date = inc.OccurredAt.Format(DateLayout)
	} else if inc.PublishedAt != nil {
		date = inc.PublishedAt.Format(DateLayout)
	}
	if inc.Geo != nil {
		lat = strconv.FormatFloat(inc.Geo.Lat, 'f', 6, 64)
		lon = strconv.FormatFloat(inc.Geo.Lon, 'f', 6, 64)
	}
	key := strings.Join([]string{
		strings.ToLower(inc.Title), date, strings.ToLower(inc.District), strings.ToLower(inc.State), lat, lon,
	}, "|")
	return uuid.NewSHA1(incidentNamespace, []byte(key)).String()
}
