package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/incident-tracker-service/internal/feed"
	"github.com/couchcryptid/incident-tracker-service/internal/query"
)

// phase tracks pass/fail for one check. Notes are reported but only fail the
// phase in strict mode.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed(strict bool) bool {
	return len(p.errors) == 0 && (!strict || len(p.notes) == 0)
}

// checkLoad turns a load outcome into report phases.
func checkLoad(res feed.Result, loadErr error) []*phase {
	fetch := &phase{name: "Fetch and parse"}
	if loadErr != nil && !errors.Is(loadErr, feed.ErrNoValidRows) {
		fetch.errorf("%s: %v", feed.Kind(loadErr), loadErr)
		return []*phase{fetch}
	}

	rep := res.Report
	rows := &phase{name: "Rows kept"}
	if rep.Kept == 0 {
		rows.errorf("none of %d rows had a title or victim group", rep.RowsRead)
	}
	if rep.Discarded > 0 {
		rows.notef("%d of %d rows discarded (no title and no victim group)", rep.Discarded, rep.RowsRead)
	}

	coords := &phase{name: "Coordinate quality"}
	if rep.InvalidCoordinates > 0 {
		coords.notef("%d rows with unparsable or out-of-range coordinates", rep.InvalidCoordinates)
	}
	if rep.MissingCoordinates > 0 {
		coords.notef("%d rows without coordinates", rep.MissingCoordinates)
	}

	dates := &phase{name: "Date quality"}
	if rep.UnparsableDates > 0 {
		dates.notef("%d incident dates could not be parsed", rep.UnparsableDates)
	}
	if rep.UnparsablePublished > 0 {
		dates.notef("%d published timestamps could not be parsed", rep.UnparsablePublished)
	}

	ids := &phase{name: "Identifiers"}
	if rep.DuplicateIDs > 0 {
		ids.notef("%d duplicate ids were suffixed", rep.DuplicateIDs)
	}
	if rep.GeneratedIDs > 0 {
		ids.notef("%d ids were generated", rep.GeneratedIDs)
	}

	headers := &phase{name: "Headers"}
	if len(rep.UnknownHeaders) > 0 {
		headers.notef("unmapped headers kept as attributes: %s", strings.Join(rep.UnknownHeaders, ", "))
	}

	return []*phase{fetch, rows, coords, dates, ids, headers}
}

// printReport writes the phase table and details.
func printReport(w io.Writer, phases []*phase, strict bool) {
	for _, p := range phases {
		status := "PASS"
		if !p.passed(strict) {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors)+strictCount(p, strict))
		} else if len(p.notes) > 0 {
			status = fmt.Sprintf("PASS (%d notes)", len(p.notes))
		}
		fmt.Fprintf(w, "  %-24s %s\n", p.name, status)
	}

	for _, p := range phases {
		if len(p.errors) == 0 && len(p.notes) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
		for _, n := range p.notes {
			fmt.Fprintf(w, "  - %s\n", n)
		}
	}
}

func strictCount(p *phase, strict bool) int {
	if strict {
		return len(p.notes)
	}
	return 0
}

// printDistributions writes the top-n buckets for each dimension.
func printDistributions(w io.Writer, res feed.Result, n int) {
	for _, d := range []query.Dimension{query.DimensionState, query.DimensionIncidentType, query.DimensionVictimGroup} {
		fmt.Fprintf(w, "\nTop %s:\n", d)
		for _, b := range query.Distribution(res.Incidents, d, n) {
			fmt.Fprintf(w, "  %-32s %d\n", b.Label, b.Count)
		}
	}
}
