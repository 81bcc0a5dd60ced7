// Command genmock writes deterministic synthetic Boston-style fixtures: an
// offense-code lookup and an incident log. The incident log exercises every
// edge the report handles: exact duplicate rows, duplicate codes, unmatched
// codes, and missing districts or coordinates. After writing it runs the
// domain aggregation over the generated rows and prints the expected report.
//
// Usage:
//
//	go run ./cmd/genmock -out data/generated -rows 5000 -seed 42
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/couchcryptid/crime-district-report/internal/domain"
)

var districts = []string{"A1", "A15", "A7", "B2", "B3", "C11", "C6", "D14", "D4", "E13", "E18", "E5"}

var streets = []string{"WASHINGTON ST", "CENTRE ST", "BLUE HILL AVE", "DORCHESTER AVE", "BOYLSTON ST", "TREMONT ST"}

// offense is one lookup entry. Weight skews the incident mix so rankings have
// clear winners as well as ties.
type offense struct {
	code   int
	name   string
	group  string
	weight int
}

var offenses = []offense{
	{3115, "INVESTIGATE PERSON", "Investigate Person", 12},
	{3114, "INVESTIGATE PROPERTY", "Investigate Property", 6},
	{619, "LARCENY - ALL OTHERS", "Larceny", 10},
	{613, "LARCENY - SHOPLIFTING", "Larceny", 7},
	{617, "LARCENY - THEFT FROM BUILDING", "Larceny", 5},
	{801, "ASSAULT - SIMPLE", "Simple Assault", 8},
	{802, "ASSAULT SIMPLE - BATTERY", "Simple Assault", 6},
	{1402, "VANDALISM", "Vandalism", 7},
	{3301, "VERBAL DISPUTE", "Verbal Disputes", 6},
	{3006, "SICK/INJURED/MEDICAL - PERSON", "Medical Assistance", 5},
	{1843, "DRUGS - POSS CLASS B - INTENT TO MFR DIST DISP", "Drug Violation", 4},
	{1830, "DRUGS - SICK ASSIST - HEROIN", "Drug Violation", 3},
	{520, "BURGLARY - RESIDENTIAL - FORCE", "Residential Burglary", 3},
	{111, "MURDER, NON-NEGLIGIENT MANSLAUGHTER", "Homicide", 1},
}

// unlistedCode never appears in the lookup, so its incidents rank with a
// null crime type.
const unlistedCode = 9999

var header = []string{
	"INCIDENT_NUMBER", "OFFENSE_CODE", "OFFENSE_CODE_GROUP", "OFFENSE_DESCRIPTION",
	"DISTRICT", "REPORTING_AREA", "SHOOTING", "OCCURRED_ON_DATE", "YEAR", "MONTH",
	"DAY_OF_WEEK", "HOUR", "UCR_PART", "STREET", "Lat", "Long", "Location",
}

// options controls the mix of anomalies in the generated log.
type options struct {
	rows          int
	seed          uint64
	duplicateRate float64
	nullRate      float64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "directory to write crimes.csv and offense_codes.csv into")
	rows := flag.Int("rows", 2000, "number of incident rows, duplicates included")
	seed := flag.Uint64("seed", 1, "random seed")
	dupRate := flag.Float64("dup-rate", 0.02, "fraction of rows that repeat an earlier row")
	nullRate := flag.Float64("null-rate", 0.03, "fraction of rows with missing district or coordinates")
	flag.Parse()

	if *out == "" || *rows <= 0 {
		flag.Usage()
		return fmt.Errorf("missing required flags: -out, -rows")
	}

	opts := options{rows: *rows, seed: *seed, duplicateRate: *dupRate, nullRate: *nullRate}

	codeRows := generateCodes()
	crimeRows := generateCrimes(opts)

	if err := writeCSV(filepath.Join(*out, "offense_codes.csv"), []string{"CODE", "NAME"}, codeRows); err != nil {
		return fmt.Errorf("writing offense codes: %w", err)
	}
	if err := writeCSV(filepath.Join(*out, "crimes.csv"), header, crimeRows); err != nil {
		return fmt.Errorf("writing crimes: %w", err)
	}
	log.Printf("wrote %d codes and %d incidents to %s", len(codeRows), len(crimeRows), *out)

	printStats(codeRows, crimeRows)
	return nil
}

// generateCodes lists every offense once, then repeats a few codes with a
// different name the way the published lookup does.
func generateCodes() [][]string {
	rows := lo.Map(offenses, func(o offense, _ int) []string {
		return []string{strconv.Itoa(o.code), o.name}
	})
	rows = append(rows,
		[]string{"613", "LARCENY SHOPLIFTING"},
		[]string{"3115", "INVESTIGATE PERSON - REVISED"},
		[]string{"2647", ""},
	)
	return rows
}

func generateCrimes(opts options) [][]string {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	start := time.Date(2015, time.June, 15, 0, 0, 0, 0, time.UTC)
	span := int64(time.Date(2018, time.September, 3, 0, 0, 0, 0, time.UTC).Sub(start))

	totalWeight := lo.SumBy(offenses, func(o offense) int { return o.weight })

	rows := make([][]string, 0, opts.rows)
	for i := 0; i < opts.rows; i++ {
		if len(rows) > 0 && rng.Float64() < opts.duplicateRate {
			rows = append(rows, rows[rng.IntN(len(rows))])
			continue
		}

		o := pickOffense(rng, totalWeight)
		code := o.code
		if rng.Float64() < opts.nullRate {
			code = unlistedCode
		}

		district := districts[rng.IntN(len(districts))]
		if rng.Float64() < opts.nullRate {
			district = ""
		}

		occurred := start.Add(time.Duration(rng.Int64N(span))).Truncate(time.Minute)
		lat, long := coordinates(rng, district, opts.nullRate)

		location := "(0.00000000, 0.00000000)"
		if lat != "" {
			location = "(" + lat + ", " + long + ")"
		}

		rows = append(rows, []string{
			fmt.Sprintf("I%09d", 182000000+i),
			fmt.Sprintf("%05d", code),
			o.group,
			o.name,
			district,
			strconv.Itoa(rng.IntN(900) + 1),
			lo.Ternary(o.code == 111, "Y", ""),
			occurred.Format("2006-01-02 15:04:05"),
			strconv.Itoa(occurred.Year()),
			strconv.Itoa(int(occurred.Month())),
			occurred.Weekday().String(),
			strconv.Itoa(occurred.Hour()),
			"Part Three",
			streets[rng.IntN(len(streets))],
			lat,
			long,
			location,
		})
	}
	return rows
}

func pickOffense(rng *rand.Rand, totalWeight int) offense {
	n := rng.IntN(totalWeight)
	for _, o := range offenses {
		if n < o.weight {
			return o
		}
		n -= o.weight
	}
	return offenses[len(offenses)-1]
}

// coordinates scatters points around a per-district centre. Some rows carry
// no coordinates at all.
func coordinates(rng *rand.Rand, district string, nullRate float64) (string, string) {
	if rng.Float64() < nullRate {
		return "", ""
	}
	idx := lo.IndexOf(districts, district)
	lat := 42.23 + 0.015*float64(idx+1) + (rng.Float64()-0.5)*0.02
	long := -71.15 + 0.01*float64(idx+1) + (rng.Float64()-0.5)*0.02
	return strconv.FormatFloat(lat, 'f', 8, 64), strconv.FormatFloat(long, 'f', 8, 64)
}

func writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

// printStats runs the domain aggregation over the generated rows so test
// assertions can be updated from the output.
func printStats(codeRows, crimeRows [][]string) {
	codes := lo.Map(codeRows, func(r []string, _ int) domain.OffenseCode {
		code, _ := strconv.Atoi(r[0])
		return domain.OffenseCode{Code: code, Name: lo.EmptyableToPtr(r[1])}
	})
	incidents := lo.Map(crimeRows, func(r []string, _ int) domain.Incident {
		return toIncident(r)
	})

	normalized := domain.NormalizeCodes(codes)
	set := domain.DistinctIncidents(incidents)
	rows := domain.AssembleReport(
		domain.AggregateDistricts(set),
		domain.MonthlyMedians(set, domain.ExactMedian{}),
		domain.RankFrequentCrimes(set, normalized),
	)

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Codes: %d (%d after dedup)\n", len(codes), len(normalized))
	fmt.Printf("Incidents: %d (%d distinct)\n", len(incidents), set.Len())
	fmt.Printf("Without district: %d\n", lo.CountBy(set.Rows(), func(i domain.Incident) bool { return i.District == nil }))
	fmt.Printf("Districts: %d\n\n", len(rows))
	for _, r := range rows {
		fmt.Printf("  %-4s total=%-5d monthly=%-3d lat=%-12s lng=%-12s %s\n",
			r.District, r.CrimesTotal, lo.FromPtr(r.CrimesMonthly),
			formatCoord(r.Lat), formatCoord(r.Lng), lo.FromPtr(r.FrequentCrimeTypes))
	}
}

func toIncident(r []string) domain.Incident {
	code, _ := strconv.Atoi(r[1])
	year, _ := strconv.Atoi(r[8])
	month, _ := strconv.Atoi(r[9])
	return domain.Incident{
		OffenseCode: code,
		District:    lo.EmptyableToPtr(r[4]),
		Year:        year,
		Month:       month,
		Lat:         parseCoord(r[14]),
		Long:        parseCoord(r[15]),
		RowKey:      strings.Join(r, "\x1f"),
	}
}

func parseCoord(s string) *float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func formatCoord(f *float64) string {
	if f == nil {
		return "null"
	}
	return strconv.FormatFloat(*f, 'f', 6, 64)
}
