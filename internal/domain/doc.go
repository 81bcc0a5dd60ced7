// Package domain models the Boston Police Department crime incident data and
// the per-district summary report derived from it.
//
// # Data Sources
//
// Two CSV files with header rows feed the report:
//
//	crimes.csv         one row per reported offense (INCIDENT_NUMBER, OFFENSE_CODE,
//	                   DISTRICT, YEAR, MONTH, Lat, Long, ... plus free-text columns)
//	offense_codes.csv  CODE, NAME lookup; the same CODE may appear more than once
//	                   with slightly different NAME spellings
//
// Empty CSV fields are nulls. DISTRICT, Lat and Long are nullable; incidents
// without a district are aggregated into a null bucket that never reaches the
// final report.
//
// # Crime Types
//
// Offense names follow a "<type> - <detail>" convention, e.g.
//
//	"LARCENY - THEFT FROM BUILDING"  ->  "LARCENY"
//	"MURDER, NON-NEGLIGIENT MANSLAUGHTER" -> unchanged (no separator)
//
// The leading segment before the first " - " is the crime type. See [CrimeType].
//
// # Report Stages
//
// The report is an explicit dataflow of pure functions:
//
//	NormalizeCodes      sort by code, keep first row per code, derive crime type
//	DistinctIncidents   collapse exact duplicate input rows
//	AggregateDistricts  count + mean lat/lng per district
//	MonthlyMedians      count per (district, year, month), then median per district
//	RankFrequentCrimes  count per (district, crime type), row-number rank, top 3, join
//	AssembleReport      left-join the three aggregates, drop the null district
//
// Ranking ties are broken by crime type ascending with null last, so the output
// is deterministic for a given input.
//
// # Median
//
// The monthly median is the nearest-rank 50th percentile of the monthly counts:
// sorted[ceil(n/2)-1]. [ExactMedian] computes it directly; [ApproxMedian] uses a
// biased-quantile sketch that is exact for small inputs and bounded-error for
// large ones.
package domain
