package domain

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDistrictA = "A1"
	testDistrictB = "B2"
)

func incident(code int, district string, year, month int) Incident {
	return Incident{OffenseCode: code, District: lo.ToPtr(district), Year: year, Month: month}
}

func located(i Incident, lat, lng *float64) Incident {
	i.Lat = lat
	i.Long = lng
	return i
}

func codesOf(pairs map[int]string) []NormalizedCode {
	codes := make([]OffenseCode, 0, len(pairs))
	for code, name := range pairs {
		codes = append(codes, OffenseCode{Code: code, Name: lo.ToPtr(name)})
	}
	return NormalizeCodes(codes)
}

func TestDistinctIncidents(t *testing.T) {
	t.Run("typed duplicates collapse", func(t *testing.T) {
		set := DistinctIncidents([]Incident{
			incident(100, testDistrictA, 2017, 1),
			incident(100, testDistrictA, 2017, 1),
			incident(100, testDistrictA, 2017, 2),
		})
		assert.Equal(t, 2, set.Len())
	})

	t.Run("raw row key decides when present", func(t *testing.T) {
		a := incident(100, testDistrictA, 2017, 1)
		a.RowKey = "I1|100|A1"
		b := incident(100, testDistrictA, 2017, 1)
		b.RowKey = "I2|100|A1"

		set := DistinctIncidents([]Incident{a, b, a})
		assert.Equal(t, 2, set.Len())
		assert.Equal(t, "I1|100|A1", set.Rows()[0].RowKey)
	})

	t.Run("null and empty district differ", func(t *testing.T) {
		set := DistinctIncidents([]Incident{
			{OffenseCode: 1, Year: 2017, Month: 1},
			incident(1, "", 2017, 1),
		})
		assert.Equal(t, 2, set.Len())
	})

	t.Run("null and zero coordinates differ", func(t *testing.T) {
		set := DistinctIncidents([]Incident{
			located(incident(1, testDistrictA, 2017, 1), nil, nil),
			located(incident(1, testDistrictA, 2017, 1), lo.ToPtr(0.0), lo.ToPtr(0.0)),
		})
		assert.Equal(t, 2, set.Len())
	})
}

func TestAggregateDistricts(t *testing.T) {
	t.Run("mean ignores null coordinates", func(t *testing.T) {
		set := DistinctIncidents([]Incident{
			located(incident(1, testDistrictA, 2017, 1), lo.ToPtr(10.0), lo.ToPtr(-71.0)),
			located(incident(2, testDistrictA, 2017, 1), nil, nil),
			located(incident(3, testDistrictA, 2017, 1), lo.ToPtr(30.0), lo.ToPtr(-73.0)),
		})

		totals := AggregateDistricts(set)

		require.Len(t, totals, 1)
		assert.Equal(t, int64(3), totals[0].CrimesTotal)
		require.NotNil(t, totals[0].Lat)
		assert.InDelta(t, 20.0, *totals[0].Lat, 1e-9)
		require.NotNil(t, totals[0].Lng)
		assert.InDelta(t, -72.0, *totals[0].Lng, 1e-9)
	})

	t.Run("all null latitudes give a null mean", func(t *testing.T) {
		set := DistinctIncidents([]Incident{
			incident(1, testDistrictA, 2017, 1),
			incident(2, testDistrictA, 2017, 2),
		})

		totals := AggregateDistricts(set)

		require.Len(t, totals, 1)
		assert.Nil(t, totals[0].Lat)
		assert.Nil(t, totals[0].Lng)
	})

	t.Run("null district is its own bucket listed first", func(t *testing.T) {
		set := DistinctIncidents([]Incident{
			incident(1, testDistrictB, 2017, 1),
			{OffenseCode: 1, Year: 2017, Month: 1},
			incident(1, testDistrictA, 2017, 1),
		})

		totals := AggregateDistricts(set)

		require.Len(t, totals, 3)
		assert.Nil(t, totals[0].District)
		assert.Equal(t, testDistrictA, *totals[1].District)
		assert.Equal(t, testDistrictB, *totals[2].District)
	})

	t.Run("duplicates do not change the result", func(t *testing.T) {
		rows := []Incident{
			located(incident(1, testDistrictA, 2017, 1), lo.ToPtr(42.3), lo.ToPtr(-71.1)),
			located(incident(1, testDistrictA, 2017, 1), lo.ToPtr(42.3), lo.ToPtr(-71.1)),
			located(incident(2, testDistrictA, 2017, 3), lo.ToPtr(42.5), lo.ToPtr(-71.3)),
			incident(2, testDistrictB, 2018, 3),
			incident(2, testDistrictB, 2018, 3),
		}

		once := DistinctIncidents(rows)
		twice := DistinctIncidents(once.Rows())

		if diff := cmp.Diff(AggregateDistricts(once), AggregateDistricts(twice)); diff != "" {
			t.Fatalf("aggregate mismatch (-once +twice):\n%s", diff)
		}
		if diff := cmp.Diff(MonthlyMedians(once, ExactMedian{}), MonthlyMedians(twice, ExactMedian{})); diff != "" {
			t.Fatalf("median mismatch (-once +twice):\n%s", diff)
		}
		assert.Equal(t, int64(2), AggregateDistricts(once)[0].CrimesTotal)
	})
}

func TestMonthlyMedians(t *testing.T) {
	// 2 incidents in January, 5 in February, 9 in March.
	var rows []Incident
	for month, n := range map[int]int{1: 2, 2: 5, 3: 9} {
		for i := 0; i < n; i++ {
			rows = append(rows, incident(100+i, testDistrictA, 2017, month))
		}
	}
	rows = append(rows, incident(1, testDistrictB, 2016, 12))

	for _, estimator := range []MedianEstimator{ExactMedian{}, ApproxMedian{Epsilon: 0.01}} {
		medians := MonthlyMedians(DistinctIncidents(rows), estimator)

		require.Len(t, medians, 2)
		assert.Equal(t, testDistrictA, *medians[0].District)
		assert.Equal(t, int64(5), medians[0].CrimesMonthly)
		assert.Equal(t, testDistrictB, *medians[1].District)
		assert.Equal(t, int64(1), medians[1].CrimesMonthly)
	}
}

func TestMonthlyMedians_SameMonthDifferentYears(t *testing.T) {
	rows := []Incident{
		incident(1, testDistrictA, 2016, 6),
		incident(2, testDistrictA, 2017, 6),
		incident(3, testDistrictA, 2017, 6),
		incident(4, testDistrictA, 2017, 6),
		incident(5, testDistrictA, 2018, 6),
		incident(6, testDistrictA, 2018, 6),
	}

	medians := MonthlyMedians(DistinctIncidents(rows), ExactMedian{})

	require.Len(t, medians, 1)
	assert.Equal(t, int64(2), medians[0].CrimesMonthly)
}

func TestRankCrimeTypes(t *testing.T) {
	codes := codesOf(map[int]string{
		1: "Larceny - Theft",
		2: "Larceny - Shoplifting",
		3: "Assault - Simple",
		4: "Vandalism",
	})

	rows := []Incident{
		incident(1, testDistrictA, 2017, 1),
		incident(2, testDistrictA, 2017, 2),
		incident(3, testDistrictA, 2017, 3),
		incident(4, testDistrictA, 2017, 4),
		incident(9, testDistrictA, 2017, 5),
	}

	ranked := RankCrimeTypes(DistinctIncidents(rows), codes)

	type row struct {
		CrimeType string
		Count     int64
		Rank      int
	}
	got := lo.Map(ranked, func(r RankedCrimeType, _ int) row {
		return row{CrimeType: lo.FromPtrOr(r.CrimeType, "<null>"), Count: r.Count, Rank: r.Rank}
	})
	expected := []row{
		{"Larceny", 2, 1},
		{"Assault", 1, 2},
		{"Vandalism", 1, 3},
		{"<null>", 1, 4},
	}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Fatalf("ranking mismatch (-want +got):\n%s", diff)
	}
}

func TestRankFrequentCrimes(t *testing.T) {
	codes := codesOf(map[int]string{
		10: "Larceny - Theft",
		20: "Assault - Simple",
		30: "Vandalism - Property",
		40: "Fraud - Wire",
		50: "Robbery - Street",
	})

	t.Run("top three in descending frequency", func(t *testing.T) {
		var rows []Incident
		for code, n := range map[int]int{10: 4, 20: 1, 30: 3, 40: 2, 50: 5} {
			for i := 0; i < n; i++ {
				rows = append(rows, incident(code, testDistrictA, 2017, i+1))
			}
		}

		frequent := RankFrequentCrimes(DistinctIncidents(rows), codes)

		require.Len(t, frequent, 1)
		assert.Equal(t, "Robbery,Larceny,Vandalism", frequent[0].FrequentCrimeTypes)
		assert.Len(t, strings.Split(frequent[0].FrequentCrimeTypes, ","), TopCrimeTypes)
	})

	t.Run("fewer than three types are not padded", func(t *testing.T) {
		rows := []Incident{
			incident(10, testDistrictB, 2017, 1),
			incident(10, testDistrictB, 2017, 2),
		}

		frequent := RankFrequentCrimes(DistinctIncidents(rows), codes)

		require.Len(t, frequent, 1)
		assert.Equal(t, "Larceny", frequent[0].FrequentCrimeTypes)
	})

	t.Run("ties break by crime type", func(t *testing.T) {
		rows := []Incident{
			incident(50, testDistrictA, 2017, 1),
			incident(40, testDistrictA, 2017, 1),
			incident(30, testDistrictA, 2017, 1),
			incident(20, testDistrictA, 2017, 1),
		}

		frequent := RankFrequentCrimes(DistinctIncidents(rows), codes)

		require.Len(t, frequent, 1)
		assert.Equal(t, "Assault,Fraud,Robbery", frequent[0].FrequentCrimeTypes)
	})

	t.Run("null crime type holds a rank but is not printed", func(t *testing.T) {
		rows := []Incident{
			incident(99, testDistrictA, 2017, 1),
			incident(99, testDistrictA, 2017, 2),
			incident(99, testDistrictA, 2017, 3),
			incident(10, testDistrictA, 2017, 1),
			incident(10, testDistrictA, 2017, 2),
			incident(20, testDistrictA, 2017, 1),
			incident(30, testDistrictA, 2017, 1),
		}

		frequent := RankFrequentCrimes(DistinctIncidents(rows), codes)

		require.Len(t, frequent, 1)
		assert.Equal(t, "Larceny,Assault", frequent[0].FrequentCrimeTypes)
	})

	t.Run("only unknown codes yield an empty list", func(t *testing.T) {
		frequent := RankFrequentCrimes(DistinctIncidents([]Incident{incident(99, testDistrictA, 2017, 1)}), codes)

		require.Len(t, frequent, 1)
		assert.Empty(t, frequent[0].FrequentCrimeTypes)
	})

	t.Run("districts are ranked independently", func(t *testing.T) {
		rows := []Incident{
			incident(10, testDistrictA, 2017, 1),
			incident(20, testDistrictB, 2017, 1),
			{OffenseCode: 30, Year: 2017, Month: 1},
		}

		frequent := RankFrequentCrimes(DistinctIncidents(rows), codes)

		require.Len(t, frequent, 3)
		assert.Nil(t, frequent[0].District)
		assert.Equal(t, "Vandalism", frequent[0].FrequentCrimeTypes)
		assert.Equal(t, "Larceny", frequent[1].FrequentCrimeTypes)
		assert.Equal(t, "Assault", frequent[2].FrequentCrimeTypes)
	})
}

func TestAssembleReport(t *testing.T) {
	totals := []DistrictTotals{
		{District: nil, CrimesTotal: 4},
		{District: lo.ToPtr(testDistrictA), CrimesTotal: 3, Lat: lo.ToPtr(42.3), Lng: lo.ToPtr(-71.1)},
		{District: lo.ToPtr(testDistrictB), CrimesTotal: 1},
	}
	medians := []DistrictMonthlyMedian{
		{District: nil, CrimesMonthly: 2},
		{District: lo.ToPtr(testDistrictA), CrimesMonthly: 1},
	}
	frequent := []DistrictFrequentCrimes{
		{District: nil, FrequentCrimeTypes: "Fraud"},
		{District: lo.ToPtr(testDistrictB), FrequentCrimeTypes: "Larceny"},
	}

	rows := AssembleReport(totals, medians, frequent)

	expected := []ReportRow{
		{District: testDistrictA, CrimesTotal: 3, CrimesMonthly: lo.ToPtr(int64(1)), Lat: lo.ToPtr(42.3), Lng: lo.ToPtr(-71.1)},
		{District: testDistrictB, CrimesTotal: 1, FrequentCrimeTypes: lo.ToPtr("Larceny")},
	}
	if diff := cmp.Diff(expected, rows); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestReport_EndToEnd(t *testing.T) {
	codes := NormalizeCodes([]OffenseCode{
		{Code: 100, Name: lo.ToPtr("Larceny - Theft")},
		{Code: 200, Name: lo.ToPtr("Assault - Simple")},
	})
	rows := []Incident{
		incident(100, "A", 2017, 1),
		incident(100, "A", 2017, 1),
		incident(200, "A", 2017, 2),
		{OffenseCode: 200, Year: 2017, Month: 2},
	}

	build := func() []ReportRow {
		set := DistinctIncidents(rows)
		return AssembleReport(
			AggregateDistricts(set),
			MonthlyMedians(set, ExactMedian{}),
			RankFrequentCrimes(set, codes),
		)
	}

	report := build()

	require.Len(t, report, 1)
	assert.Equal(t, "A", report[0].District)
	assert.Equal(t, int64(2), report[0].CrimesTotal)
	require.NotNil(t, report[0].CrimesMonthly)
	assert.Equal(t, int64(1), *report[0].CrimesMonthly)
	require.NotNil(t, report[0].FrequentCrimeTypes)
	assert.Equal(t, "Assault,Larceny", *report[0].FrequentCrimeTypes)

	for i := 0; i < 5; i++ {
		assert.Equal(t, report, build())
	}
}
