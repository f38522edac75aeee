// Command genmock writes deterministic mock incident feeds in each supported
// layout: a snake_case CSV, a Title Case CSV and a wrapped JSON document. It
// loads every file back through the feed loader so the printed stats match
// what the service would serve.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -count 250 -seed 42
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/incident-tracker-service/internal/domain"
	"github.com/couchcryptid/incident-tracker-service/internal/feed"
	"github.com/couchcryptid/incident-tracker-service/internal/query"
	"github.com/jonboulle/clockwork"
)

type place struct {
	district, state string
	lat, lon        float64
}

var (
	places = []place{
		{"Alwar", "Rajasthan", 27.55, 76.60},
		{"Nuh", "Haryana", 28.10, 77.00},
		{"Kandhamal", "Odisha", 20.13, 84.01},
		{"Agra", "Uttar Pradesh", 27.18, 78.01},
		{"Dadri", "Uttar Pradesh", 28.55, 77.55},
		{"Bastar", "Chhattisgarh", 19.07, 82.03},
		{"Dakshina Kannada", "Karnataka", 12.87, 74.88},
		{"Khargone", "Madhya Pradesh", 21.82, 75.61},
		{"Ahmedabad", "Gujarat", 23.02, 72.57},
		{"Muzaffarpur", "Bihar", 26.12, 85.39},
	}
	victimGroups  = []string{"Muslim", "Christian", "Dalit", "Adivasi", "Sikh"}
	incidentTypes = []string{"Lynching", "Assault", "Vandalism", "Arson", "Threats", "Hate Speech"}
	perpetrators  = []string{"Mob", "Vigilante group", "Unknown", "Local residents"}
	policeActions = []string{"FIR registered", "Arrests made", "No action", "Under investigation"}
)

// mockRow is a generated incident before it is rendered into a layout.
type mockRow struct {
	id, title, summary, date, published string
	district, state, lat, lon           string
	victimGroup, incidentType           string
	perpetrator, policeAction           string
	sourceURL                           string
	confidence, verified                string
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "data/mock", "output directory for mock feeds")
	count := flag.Int("count", 250, "incidents per feed")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	if *count <= 0 {
		flag.Usage()
		return fmt.Errorf("-count must be positive")
	}

	// Fixed clock so lastUpdated and relative dates are reproducible.
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC))
	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	rows := generate(rng, clock.Now(), *count)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	files := []struct {
		name  string
		write func(string, []mockRow, time.Time) error
	}{
		{"incidents_snake.csv", writeSnakeCSV},
		{"incidents_titlecase.csv", writeTitleCSV},
		{"incidents_wrapped.json", writeWrappedJSON},
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	loader := feed.NewLoader(http.DefaultClient, domain.NewNormalizer(logger), logger)

	for _, f := range files {
		path := filepath.Join(*outDir, f.name)
		if err := f.write(path, rows, clock.Now()); err != nil {
			return fmt.Errorf("writing %s: %w", f.name, err)
		}
		log.Printf("wrote %s: %d rows", path, len(rows))

		res, err := loader.Load(context.Background(), feed.Source{URL: path})
		if err != nil {
			return fmt.Errorf("reloading %s: %w", f.name, err)
		}
		printStats(f.name, res, clock.Now())
	}
	return nil
}

// generate produces count rows. Roughly one in twenty rows carries a defect
// the normalizer must repair or discard.
func generate(rng *rand.Rand, now time.Time, count int) []mockRow {
	rows := make([]mockRow, 0, count)
	for i := range count {
		p := places[rng.IntN(len(places))]
		occurred := now.AddDate(0, 0, -rng.IntN(120))
		published := occurred.Add(time.Duration(12+rng.IntN(60)) * time.Hour)
		vg := victimGroups[rng.IntN(len(victimGroups))]
		it := incidentTypes[rng.IntN(len(incidentTypes))]

		r := mockRow{
			id:           fmt.Sprintf("INC-%05d", i+1),
			title:        fmt.Sprintf("%s reported in %s", it, p.district),
			summary:      fmt.Sprintf("%s incident targeting %s community in %s, %s.", it, vg, p.district, p.state),
			date:         occurred.Format(domain.DateLayout),
			published:    published.Format(time.RFC3339),
			district:     p.district,
			state:        p.state,
			lat:          strconv.FormatFloat(p.lat+jitter(rng), 'f', 4, 64),
			lon:          strconv.FormatFloat(p.lon+jitter(rng), 'f', 4, 64),
			victimGroup:  vg,
			incidentType: it,
			perpetrator:  perpetrators[rng.IntN(len(perpetrators))],
			policeAction: policeActions[rng.IntN(len(policeActions))],
			sourceURL:    fmt.Sprintf("https://news.example.com/%d/%05d", occurred.Year(), i+1),
			confidence:   strconv.FormatFloat(0.5+rng.Float64()/2, 'f', 2, 64),
			verified:     strconv.FormatBool(rng.IntN(3) == 0),
		}

		switch rng.IntN(20) {
		case 0:
			r.lat, r.lon = "", ""
		case 1:
			r.lat = "abc"
		case 2:
			r.date = occurred.Format("1/2/2006")
		case 3:
			r.date = "sometime last week"
		case 4:
			r.title, r.victimGroup = "", ""
		case 5:
			r.id = ""
		}
		rows = append(rows, r)
	}
	return rows
}

func jitter(rng *rand.Rand) float64 {
	return (rng.Float64() - 0.5) / 5
}

var snakeHeader = []string{
	"id", "title", "summary", "incident_date", "published_at", "district", "state",
	"latitude", "longitude", "victim_group", "incident_type", "alleged_perpetrator",
	"police_action", "source_url", "confidence_score", "verified_manually",
}

var titleHeader = []string{
	"Incident ID", "Title", "Description", "Date of Incident", "Published", "District", "State",
	"Lat", "Lng", "Victim Community", "Type", "Perpetrator",
	"Police Action", "URL", "Confidence", "Verified",
}

func (r mockRow) record() []string {
	return []string{
		r.id, r.title, r.summary, r.date, r.published, r.district, r.state,
		r.lat, r.lon, r.victimGroup, r.incidentType, r.perpetrator,
		r.policeAction, r.sourceURL, r.confidence, r.verified,
	}
}

func writeSnakeCSV(path string, rows []mockRow, _ time.Time) error {
	return writeCSV(path, snakeHeader, rows)
}

func writeTitleCSV(path string, rows []mockRow, _ time.Time) error {
	return writeCSV(path, titleHeader, rows)
}

func writeCSV(path string, header []string, rows []mockRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write(r.record()); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeWrappedJSON(path string, rows []mockRow, now time.Time) error {
	data := make([]map[string]string, 0, len(rows))
	for _, r := range rows {
		item := make(map[string]string, len(snakeHeader))
		for i, v := range r.record() {
			item[snakeHeader[i]] = v
		}
		data = append(data, item)
	}
	return writeJSON(path, map[string]any{
		"lastUpdated": now.Format(time.RFC3339),
		"data":        data,
	})
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStats(name string, res feed.Result, now time.Time) {
	rep := res.Report
	stats := query.Aggregate(res.Incidents, now)

	fmt.Printf("\n=== %s (%s) ===\n", name, res.Format)
	fmt.Printf("Rows: %d read, %d kept, %d discarded\n", rep.RowsRead, rep.Kept, rep.Discarded)
	fmt.Printf("Coordinates: %d invalid, %d missing, %d mapped\n", rep.InvalidCoordinates, rep.MissingCoordinates, stats.WithCoordinates)
	fmt.Printf("Dates: %d unparsable, generated ids: %d\n", rep.UnparsableDates, rep.GeneratedIDs)
	fmt.Printf("Last week: %d, last month: %d\n", stats.LastWeek, stats.LastMonth)
	fmt.Printf("Most affected state: %s (%d states, %d districts)\n", stats.MostAffectedState, stats.StatesCount, stats.DistrictsCount)
	for _, b := range query.Distribution(res.Incidents, query.DimensionIncidentType, query.DefaultTopN) {
		fmt.Printf("  %-16s %d\n", b.Label, b.Count)
	}
}
