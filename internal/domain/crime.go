package domain

import (
	"time"

	"github.com/google/uuid"
)

// OffenseCode is one row of the offense-code lookup file.
type OffenseCode struct {
	Code int
	Name *string // nil when the NAME field is empty
}

// NormalizedCode is an OffenseCode after deduplication, with its derived crime type.
type NormalizedCode struct {
	Code      int
	Name      *string
	CrimeType *string // nil when Name is nil
}

// Incident is one row of the crimes file, reduced to the typed columns the
// report needs. RowKey identifies the complete raw input row so exact
// duplicates can be collapsed across every column, not only the typed ones.
type Incident struct {
	OffenseCode int
	District    *string
	Year        int
	Month       int
	Lat         *float64
	Long        *float64

	RowKey string
}

// DistrictTotals holds the incident count and mean location of a district.
type DistrictTotals struct {
	District    *string
	CrimesTotal int64
	Lat         *float64 // nil when every incident had a null latitude
	Lng         *float64
}

// DistrictMonthlyMedian holds the median of a district's monthly incident counts.
type DistrictMonthlyMedian struct {
	District      *string
	CrimesMonthly int64
}

// DistrictFrequentCrimes holds the comma-joined top crime types of a district.
type DistrictFrequentCrimes struct {
	District           *string
	FrequentCrimeTypes string
}

// ReportRow is one line of the final report.
type ReportRow struct {
	District           string   `json:"district"`
	CrimesTotal        int64    `json:"crimes_total"`
	CrimesMonthly      *int64   `json:"crimes_monthly"`
	Lat                *float64 `json:"lat"`
	Lng                *float64 `json:"lng"`
	FrequentCrimeTypes *string  `json:"frequent_crime_types"`
}

// Report is the assembled result handed to loaders. RunID identifies the run
// that produced it across every sink.
type Report struct {
	RunID       uuid.UUID
	Rows        []ReportRow
	GeneratedAt time.Time
}
