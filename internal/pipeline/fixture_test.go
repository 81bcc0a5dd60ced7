package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crime-district-report/internal/adapter/csvfile"
	"github.com/couchcryptid/crime-district-report/internal/adapter/parquetfile"
	"github.com/couchcryptid/crime-district-report/internal/domain"
	"github.com/couchcryptid/crime-district-report/internal/pipeline"
)

func mockDataPath(name string) string {
	return filepath.Join("..", "..", "data", "mock", name)
}

func TestPipeline_MockData(t *testing.T) {
	freezeClock(t)
	output := filepath.Join(t.TempDir(), "output")

	reader := csvfile.NewReader(mockDataPath("crimes.csv"), mockDataPath("offense_codes.csv"), nil, slog.Default())
	writer := parquetfile.NewWriter(output, slog.Default())
	metrics := newTestMetrics()

	for _, strategy := range []string{domain.MedianExact, domain.MedianApprox} {
		t.Run(strategy, func(t *testing.T) {
			median, err := domain.NewMedianEstimator(strategy, 0.01)
			require.NoError(t, err)

			p := pipeline.New(reader, writer, pipeline.Loaders{}, median, slog.Default(), metrics)
			_, err = p.Run(context.Background())
			require.NoError(t, err)

			got, err := parquetfile.ReadArtifact(output)
			require.NoError(t, err)

			want := []domain.ReportRow{
				{
					District:           "B2",
					CrimesTotal:        6,
					CrimesMonthly:      lo.ToPtr[int64](2),
					Lat:                lo.ToPtr(42.3251224),
					Lng:                lo.ToPtr(-71.0879342),
					FrequentCrimeTypes: lo.ToPtr("LARCENY,INVESTIGATE PROPERTY,VANDALISM"),
				},
				{
					District:           "C11",
					CrimesTotal:        3,
					CrimesMonthly:      lo.ToPtr[int64](1),
					FrequentCrimeTypes: lo.ToPtr("BURGLARY,DRUGS"),
				},
				{
					District:           "D4",
					CrimesTotal:        4,
					CrimesMonthly:      lo.ToPtr[int64](1),
					Lat:                lo.ToPtr(42.347),
					Lng:                lo.ToPtr(-71.0655),
					FrequentCrimeTypes: lo.ToPtr("ASSAULT,ASSAULT SIMPLE,LARCENY"),
				},
			}
			if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
				t.Errorf("artifact mismatch (-want +got):\n%s", diff)
			}
		})
	}

	assert.Len(t, lo.Must(os.ReadDir(filepath.Dir(output))), 1, "no staging directory left behind")

	// Counters accumulate over both runs.
	require.InDelta(t, 32, testutil.ToFloat64(metrics.IncidentsRead), 0)
	require.InDelta(t, 2, testutil.ToFloat64(metrics.IncidentDuplicates), 0)
	require.InDelta(t, 26, testutil.ToFloat64(metrics.CodesRead), 0)
	require.InDelta(t, 4, testutil.ToFloat64(metrics.CodeDuplicates), 0)
	require.InDelta(t, 3, testutil.ToFloat64(metrics.DistrictsReported), 0)
}

func TestPipeline_FailingSinkKeepsPreviousOutput(t *testing.T) {
	freezeClock(t)
	output := filepath.Join(t.TempDir(), "output")
	require.NoError(t, os.MkdirAll(output, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(output, "previous"), []byte("x"), 0o644))

	reader := csvfile.NewReader(mockDataPath("crimes.csv"), mockDataPath("offense_codes.csv"), nil, slog.Default())
	sink := &mockLoader{err: errors.New("broker down")}
	p := pipeline.New(reader, parquetfile.NewWriter(output, slog.Default()), pipeline.Loaders{sink}, domain.ExactMedian{}, slog.Default(), newTestMetrics())

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load report: broker down")

	entries, err := os.ReadDir(output)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "previous", entries[0].Name())
	assert.Len(t, lo.Must(os.ReadDir(filepath.Dir(output))), 1, "staged artifact must be discarded")
}
