package domain

import (
	"fmt"
	"strconv"

	"github.com/samber/lo"
)

// IncidentSet is a deduplicated collection of incidents. Aggregators only
// accept an IncidentSet, so every aggregate is computed over distinct rows.
type IncidentSet struct {
	rows []Incident
}

// DistinctIncidents collapses exact duplicate rows, keeping the first
// occurrence of each.
func DistinctIncidents(incidents []Incident) IncidentSet {
	return IncidentSet{rows: lo.UniqBy(incidents, Incident.dedupKey)}
}

// Len returns the number of distinct incidents.
func (s IncidentSet) Len() int { return len(s.rows) }

// Rows returns the distinct incidents in input order.
func (s IncidentSet) Rows() []Incident { return s.rows }

// dedupKey identifies a row for duplicate detection. Rows read from a file
// carry the full raw row; rows built in memory fall back to their typed fields.
func (i Incident) dedupKey() string {
	if i.RowKey != "" {
		return "row:" + i.RowKey
	}
	return fmt.Sprintf("typed:%d|%s|%d|%d|%s|%s",
		i.OffenseCode, nullableText(i.District), i.Year, i.Month,
		nullableFloat(i.Lat), nullableFloat(i.Long))
}

func nullableText(s *string) string {
	if s == nil {
		return "\x00"
	}
	return strconv.Quote(*s)
}

func nullableFloat(f *float64) string {
	if f == nil {
		return "\x00"
	}
	return strconv.FormatFloat(*f, 'g', -1, 64)
}

// nullString is a comparable stand-in for *string so nullable values can key maps.
type nullString struct {
	valid bool
	value string
}

func nullStringOf(s *string) nullString {
	if s == nil {
		return nullString{}
	}
	return nullString{valid: true, value: *s}
}

func (n nullString) ptr() *string {
	if !n.valid {
		return nil
	}
	v := n.value
	return &v
}
