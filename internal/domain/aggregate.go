package domain

import (
	"cmp"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// TopCrimeTypes is how many crime types are kept per district.
const TopCrimeTypes = 3

// AggregateDistricts counts incidents per district and averages their
// coordinates. Null coordinates are left out of the mean; a district with no
// non-null latitude gets a nil Lat. The null district is kept as its own bucket.
func AggregateDistricts(set IncidentSet) []DistrictTotals {
	groups := lo.GroupBy(set.rows, func(i Incident) nullString {
		return nullStringOf(i.District)
	})

	out := make([]DistrictTotals, 0, len(groups))
	for district, rows := range groups {
		out = append(out, DistrictTotals{
			District:    district.ptr(),
			CrimesTotal: int64(len(rows)),
			Lat:         meanOf(rows, func(i Incident) *float64 { return i.Lat }),
			Lng:         meanOf(rows, func(i Incident) *float64 { return i.Long }),
		})
	}
	sortByDistrict(out, func(t DistrictTotals) *string { return t.District })
	return out
}

func meanOf(rows []Incident, field func(Incident) *float64) *float64 {
	values := lo.FilterMap(rows, func(i Incident, _ int) (float64, bool) {
		v := field(i)
		if v == nil {
			return 0, false
		}
		return *v, true
	})
	if len(values) == 0 {
		return nil
	}
	mean := lo.Sum(values) / float64(len(values))
	return &mean
}

type monthKey struct {
	district nullString
	year     int
	month    int
}

// MonthlyMedians counts incidents per (district, year, month) and reduces the
// monthly counts of each district to their median. Months without incidents
// do not exist as buckets and are not counted as zero.
func MonthlyMedians(set IncidentSet, estimator MedianEstimator) []DistrictMonthlyMedian {
	monthly := lo.CountValuesBy(set.rows, func(i Incident) monthKey {
		return monthKey{district: nullStringOf(i.District), year: i.Year, month: i.Month}
	})

	perDistrict := make(map[nullString][]int64)
	for key, n := range monthly {
		perDistrict[key.district] = append(perDistrict[key.district], int64(n))
	}

	out := make([]DistrictMonthlyMedian, 0, len(perDistrict))
	for district, counts := range perDistrict {
		// Map order is random; sketches are insertion-order sensitive.
		slices.Sort(counts)
		out = append(out, DistrictMonthlyMedian{
			District:      district.ptr(),
			CrimesMonthly: estimator.Median(counts),
		})
	}
	sortByDistrict(out, func(m DistrictMonthlyMedian) *string { return m.District })
	return out
}

// RankedCrimeType is one (district, crime type) group with its frequency rank
// inside the district. Ranks are row numbers: ties get consecutive ranks.
type RankedCrimeType struct {
	District  *string
	CrimeType *string
	Count     int64
	Rank      int
}

type crimeGroupKey struct {
	district  nullString
	crimeType nullString
}

// RankCrimeTypes joins incidents to their crime type, counts each
// (district, crime type) group and numbers the groups of every district by
// descending count. Equal counts are ordered by crime type, null last.
// Incidents whose code is missing from the lookup get a null crime type.
func RankCrimeTypes(set IncidentSet, codes []NormalizedCode) []RankedCrimeType {
	index := CrimeTypeIndex(codes)

	counts := lo.CountValuesBy(set.rows, func(i Incident) crimeGroupKey {
		return crimeGroupKey{
			district:  nullStringOf(i.District),
			crimeType: nullStringOf(index[i.OffenseCode]),
		}
	})

	byDistrict := make(map[nullString][]RankedCrimeType)
	for key, n := range counts {
		byDistrict[key.district] = append(byDistrict[key.district], RankedCrimeType{
			District:  key.district.ptr(),
			CrimeType: key.crimeType.ptr(),
			Count:     int64(n),
		})
	}

	districts := lo.Keys(byDistrict)
	slices.SortFunc(districts, func(a, b nullString) int { return compareDistrict(a.ptr(), b.ptr()) })

	out := make([]RankedCrimeType, 0, len(counts))
	for _, district := range districts {
		groups := byDistrict[district]
		slices.SortFunc(groups, func(a, b RankedCrimeType) int {
			if c := cmp.Compare(b.Count, a.Count); c != 0 {
				return c
			}
			return compareCrimeType(a.CrimeType, b.CrimeType)
		})
		for i := range groups {
			groups[i].Rank = i + 1
		}
		out = append(out, groups...)
	}
	return out
}

// FrequentCrimes keeps the groups ranked at or above limit and joins their
// crime types per district in rank order. Null crime types hold their rank
// but are skipped by the join.
func FrequentCrimes(ranked []RankedCrimeType, limit int) []DistrictFrequentCrimes {
	kept := lo.Filter(ranked, func(r RankedCrimeType, _ int) bool { return r.Rank <= limit })

	labels := make(map[nullString][]string)
	order := make([]nullString, 0)
	for _, r := range kept {
		key := nullStringOf(r.District)
		if _, seen := labels[key]; !seen {
			labels[key] = []string{}
			order = append(order, key)
		}
		if r.CrimeType != nil {
			labels[key] = append(labels[key], *r.CrimeType)
		}
	}

	out := make([]DistrictFrequentCrimes, 0, len(order))
	for _, key := range order {
		out = append(out, DistrictFrequentCrimes{
			District:           key.ptr(),
			FrequentCrimeTypes: strings.Join(labels[key], ","),
		})
	}
	sortByDistrict(out, func(f DistrictFrequentCrimes) *string { return f.District })
	return out
}

// RankFrequentCrimes runs RankCrimeTypes and keeps the top TopCrimeTypes per district.
func RankFrequentCrimes(set IncidentSet, codes []NormalizedCode) []DistrictFrequentCrimes {
	return FrequentCrimes(RankCrimeTypes(set, codes), TopCrimeTypes)
}

// AssembleReport left-joins the medians and frequent crimes onto the district
// totals and drops the null district. Districts missing from either side keep
// nil for those fields. Rows are ordered by district.
func AssembleReport(totals []DistrictTotals, medians []DistrictMonthlyMedian, frequent []DistrictFrequentCrimes) []ReportRow {
	medianBy := lo.SliceToMap(
		lo.Filter(medians, func(m DistrictMonthlyMedian, _ int) bool { return m.District != nil }),
		func(m DistrictMonthlyMedian) (string, int64) { return *m.District, m.CrimesMonthly },
	)
	frequentBy := lo.SliceToMap(
		lo.Filter(frequent, func(f DistrictFrequentCrimes, _ int) bool { return f.District != nil }),
		func(f DistrictFrequentCrimes) (string, string) { return *f.District, f.FrequentCrimeTypes },
	)

	rows := make([]ReportRow, 0, len(totals))
	for _, t := range totals {
		if t.District == nil {
			continue
		}
		row := ReportRow{
			District:    *t.District,
			CrimesTotal: t.CrimesTotal,
			Lat:         t.Lat,
			Lng:         t.Lng,
		}
		if m, ok := medianBy[row.District]; ok {
			row.CrimesMonthly = lo.ToPtr(m)
		}
		if f, ok := frequentBy[row.District]; ok {
			row.FrequentCrimeTypes = lo.ToPtr(f)
		}
		rows = append(rows, row)
	}
	slices.SortFunc(rows, func(a, b ReportRow) int { return cmp.Compare(a.District, b.District) })
	return rows
}

func sortByDistrict[T any](rows []T, district func(T) *string) {
	slices.SortFunc(rows, func(a, b T) int { return compareDistrict(district(a), district(b)) })
}

// compareDistrict orders the null district first.
func compareDistrict(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return cmp.Compare(*a, *b)
}

// compareCrimeType orders the null crime type last.
func compareCrimeType(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return cmp.Compare(*a, *b)
}
