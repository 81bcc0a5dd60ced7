// Command validate performs end-to-end integrity checks of a written report
// artifact against the inputs it was built from. It re-reads both CSV files,
// recomputes the report with the domain package and compares it field by
// field with the artifact, then checks the artifact's own constraints.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -crimes data/mock/crimes.csv \
//	  -codes data/mock/offense_codes.csv \
//	  -artifact output
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/couchcryptid/crime-district-report/internal/adapter/csvfile"
	"github.com/couchcryptid/crime-district-report/internal/adapter/parquetfile"
	"github.com/couchcryptid/crime-district-report/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// inputs holds both datasets in raw and typed form.
type inputs struct {
	rawCrimes []csvRow
	codes     []domain.OffenseCode
	incidents []domain.Incident
}

func main() {
	crimes := flag.String("crimes", "", "path to the crimes CSV the report was built from")
	codes := flag.String("codes", "", "path to the offense codes CSV")
	artifact := flag.String("artifact", "", "output folder holding the report artifact")
	median := flag.String("median", domain.MedianExact, "median strategy used to recompute the report")
	flag.Parse()

	if *crimes == "" || *codes == "" || *artifact == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*crimes, *codes, *artifact, *median); code != 0 {
		os.Exit(code)
	}
}

func run(crimesPath, codesPath, artifactDir, medianStrategy string) int {
	fmt.Println("=== Crime Report Integrity Validation ===")
	fmt.Println()

	estimator, err := domain.NewMedianEstimator(medianStrategy, 0.01)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	in, err := loadInputs(crimesPath, codesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load inputs: %v\n", err)
		return 1
	}

	rows, err := parquetfile.ReadArtifact(artifactDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load artifact: %v\n", err)
		return 1
	}

	set := domain.DistinctIncidents(in.incidents)
	expected := domain.AssembleReport(
		domain.AggregateDistricts(set),
		domain.MonthlyMedians(set, estimator),
		domain.RankFrequentCrimes(set, domain.NormalizeCodes(in.codes)),
	)

	// ── Run validation phases ──
	phases := []*phase{
		validateInputIntegrity(in),
		validateCompleteness(rows, set),
		validateAggregateParity(rows, expected),
		validateSchemaConstraints(rows),
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d incidents (%d distinct), %d codes, %d report rows\n",
		len(in.incidents), set.Len(), len(in.codes), len(rows))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// csvRow is a parsed CSV row with field values keyed by header name.
type csvRow struct {
	lineNum int
	fields  map[string]string
}

func loadInputs(crimesPath, codesPath string) (inputs, error) {
	ctx := context.Background()
	reader := csvfile.NewReader(crimesPath, codesPath, nil, slog.New(slog.DiscardHandler))

	codes, err := reader.ExtractCodes(ctx)
	if err != nil {
		return inputs{}, err
	}
	incidents, err := reader.ExtractIncidents(ctx)
	if err != nil {
		return inputs{}, err
	}
	raw, err := loadCSV(crimesPath)
	if err != nil {
		return inputs{}, err
	}
	return inputs{rawCrimes: raw, codes: codes, incidents: incidents}, nil
}

func loadCSV(path string) ([]csvRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	all, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) < 1 {
		return nil, fmt.Errorf("no header in %s", path)
	}

	header := all[0]
	var rows []csvRow
	for i, row := range all[1:] {
		fields := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(row) {
				fields[strings.TrimPrefix(h, "\ufeff")] = strings.TrimSpace(row[j])
			}
		}
		rows = append(rows, csvRow{lineNum: i + 2, fields: fields})
	}
	return rows, nil
}

// ── Phase 1: Input Integrity ──
// Validates that the typed read agrees with the raw file.

func validateInputIntegrity(in inputs) *phase {
	p := &phase{name: "Phase 1: Input Integrity (CSV files)"}

	if len(in.rawCrimes) != len(in.incidents) {
		p.errorf("incident count: raw file has %d rows, typed read has %d", len(in.rawCrimes), len(in.incidents))
		return p
	}

	for i, row := range in.rawCrimes {
		inc := in.incidents[i]
		code, err := strconv.Atoi(row.fields["OFFENSE_CODE"])
		if err != nil || code != inc.OffenseCode {
			p.errorf("line %d: OFFENSE_CODE %q read as %d", row.lineNum, row.fields["OFFENSE_CODE"], inc.OffenseCode)
		}
		if d := row.fields["DISTRICT"]; d != lo.FromPtr(inc.District) {
			p.errorf("line %d: DISTRICT %q read as %s", row.lineNum, d, ptrStr(inc.District))
		}
		if (row.fields["Lat"] == "") != (inc.Lat == nil) {
			p.errorf("line %d: Lat %q read as %s", row.lineNum, row.fields["Lat"], ptrFloat(inc.Lat))
		}
		if (row.fields["Long"] == "") != (inc.Long == nil) {
			p.errorf("line %d: Long %q read as %s", row.lineNum, row.fields["Long"], ptrFloat(inc.Long))
		}
	}

	seen := map[int]bool{}
	for _, c := range in.codes {
		if c.Name == nil && !seen[c.Code] {
			fmt.Printf("  Note: code %d has no name; its incidents rank with a null crime type\n", c.Code)
		}
		seen[c.Code] = true
	}
	return p
}

// ── Phase 2: Completeness ──
// Validates that every district with incidents has exactly one report row.

func validateCompleteness(rows []domain.ReportRow, set domain.IncidentSet) *phase {
	p := &phase{name: "Phase 2: Completeness (districts)"}

	want := lo.Uniq(lo.FilterMap(set.Rows(), func(i domain.Incident, _ int) (string, bool) {
		return lo.FromPtr(i.District), i.District != nil
	}))
	got := lo.Map(rows, func(r domain.ReportRow, _ int) string { return r.District })

	missing, extra := lo.Difference(want, got)
	for _, d := range missing {
		p.errorf("district %q has incidents but no report row", d)
	}
	for _, d := range extra {
		p.errorf("district %q is reported but has no incidents", d)
	}

	withDistrict := lo.CountBy(set.Rows(), func(i domain.Incident) bool { return i.District != nil })
	total := lo.SumBy(rows, func(r domain.ReportRow) int64 { return r.CrimesTotal })
	if total != int64(withDistrict) {
		p.errorf("crimes_total sum: expected %d distinct incidents with a district, got %d", withDistrict, total)
	}
	return p
}

// ── Phase 3: Aggregate Parity ──
// Validates every artifact value against a fresh recomputation.

func validateAggregateParity(rows, expected []domain.ReportRow) *phase {
	p := &phase{name: "Phase 3: Aggregate Parity (recomputed)"}

	byDistrict := lo.KeyBy(rows, func(r domain.ReportRow) string { return r.District })
	for _, want := range expected {
		got, ok := byDistrict[want.District]
		if !ok {
			continue // reported by phase 2
		}
		d := want.District
		if got.CrimesTotal != want.CrimesTotal {
			p.errorf("district %s: crimes_total: expected %d, got %d", d, want.CrimesTotal, got.CrimesTotal)
		}
		if !ptrEq(got.CrimesMonthly, want.CrimesMonthly, func(a, b int64) bool { return a == b }) {
			p.errorf("district %s: crimes_monthly: expected %s, got %s", d, ptrInt(want.CrimesMonthly), ptrInt(got.CrimesMonthly))
		}
		if !ptrEq(got.Lat, want.Lat, floatEq) {
			p.errorf("district %s: lat: expected %s, got %s", d, ptrFloat(want.Lat), ptrFloat(got.Lat))
		}
		if !ptrEq(got.Lng, want.Lng, floatEq) {
			p.errorf("district %s: lng: expected %s, got %s", d, ptrFloat(want.Lng), ptrFloat(got.Lng))
		}
		if !ptrEq(got.FrequentCrimeTypes, want.FrequentCrimeTypes, func(a, b string) bool { return a == b }) {
			p.errorf("district %s: frequent_crime_types: expected %s, got %s", d, ptrStr(want.FrequentCrimeTypes), ptrStr(got.FrequentCrimeTypes))
		}
	}
	return p
}

// ── Phase 4: Schema Constraints ──
// Validates the artifact's own invariants.

func validateSchemaConstraints(rows []domain.ReportRow) *phase {
	p := &phase{name: "Phase 4: Schema Constraints (artifact)"}

	if !slices.IsSortedFunc(rows, func(a, b domain.ReportRow) int { return strings.Compare(a.District, b.District) }) {
		p.errorf("rows are not ordered by district")
	}
	for _, d := range lo.FindDuplicates(lo.Map(rows, func(r domain.ReportRow, _ int) string { return r.District })) {
		p.errorf("district %q appears more than once", d)
	}

	for i := range rows {
		checkSchemaRecord(p, i, &rows[i])
	}
	return p
}

func checkSchemaRecord(p *phase, i int, r *domain.ReportRow) {
	pf := func(format string, args ...any) {
		p.errorf("row %d (district %s): "+format, append([]any{i, r.District}, args...)...)
	}

	if r.District == "" {
		pf("district is empty")
	}
	if r.CrimesTotal < 1 {
		pf("crimes_total %d is not positive", r.CrimesTotal)
	}
	switch {
	case r.CrimesMonthly == nil:
		pf("crimes_monthly is null")
	case *r.CrimesMonthly < 1 || *r.CrimesMonthly > r.CrimesTotal:
		pf("crimes_monthly %d outside [1, %d]", *r.CrimesMonthly, r.CrimesTotal)
	}
	if (r.Lat == nil) != (r.Lng == nil) {
		pf("lat and lng must be null together")
	}
	if r.Lat != nil && (*r.Lat < -90 || *r.Lat > 90) {
		pf("lat %g out of range", *r.Lat)
	}
	if r.Lng != nil && (*r.Lng < -180 || *r.Lng > 180) {
		pf("lng %g out of range", *r.Lng)
	}
	if r.FrequentCrimeTypes == nil {
		pf("frequent_crime_types is null")
	} else if t := *r.FrequentCrimeTypes; strings.HasPrefix(t, ",") || strings.HasSuffix(t, ",") {
		pf("frequent_crime_types %q has an empty label", t)
	}
}

// ── Helpers ──

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func ptrEq[T any](a, b *T, eq func(T, T) bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return eq(*a, *b)
}

func ptrStr(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return strconv.Quote(*s)
}

func ptrInt(n *int64) string {
	if n == nil {
		return "<nil>"
	}
	return strconv.FormatInt(*n, 10)
}

func ptrFloat(f *float64) string {
	if f == nil {
		return "<nil>"
	}
	return strconv.FormatFloat(*f, 'g', -1, 64)
}
