package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/crime-district-report/internal/domain"
)

// build runs the aggregation graph:
//
//	codes     -> normalize ---------------------------.
//	incidents -> distinct -+-> district totals --------+-> assemble
//	                       +-> monthly medians --------+
//	                       '-> frequent crimes <-------'
//
// The three aggregates only read the shared distinct set and run concurrently;
// assemble waits for all of them.
func (p *Pipeline) build(ctx context.Context, codes []domain.OffenseCode, incidents []domain.Incident) ([]domain.ReportRow, error) {
	var normalized []domain.NormalizedCode
	p.time("normalize_codes", func() {
		normalized = domain.NormalizeCodes(codes)
	})
	p.metrics.CodeDuplicates.Add(float64(len(codes) - len(normalized)))

	var set domain.IncidentSet
	p.time("distinct_incidents", func() {
		set = domain.DistinctIncidents(incidents)
	})
	duplicates := len(incidents) - set.Len()
	p.metrics.IncidentDuplicates.Add(float64(duplicates))
	p.logger.Info("inputs normalized",
		"codes", len(normalized),
		"code_duplicates", len(codes)-len(normalized),
		"incidents", set.Len(),
		"duplicates", duplicates,
	)

	var (
		totals   []domain.DistrictTotals
		medians  []domain.DistrictMonthlyMedian
		frequent []domain.DistrictFrequentCrimes
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.timed("district_totals", func() error {
			totals = domain.AggregateDistricts(set)
			return gctx.Err()
		})
	})
	g.Go(func() error {
		return p.timed("monthly_medians", func() error {
			medians = domain.MonthlyMedians(set, p.median)
			return gctx.Err()
		})
	})
	g.Go(func() error {
		return p.timed("frequent_crimes", func() error {
			frequent = domain.RankFrequentCrimes(set, normalized)
			return gctx.Err()
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rows []domain.ReportRow
	p.time("assemble", func() {
		rows = domain.AssembleReport(totals, medians, frequent)
	})
	return rows, nil
}
