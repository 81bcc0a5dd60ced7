package parquetfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/couchcryptid/crime-district-report/internal/domain"
)

const (
	// PartFile is the single data file of an artifact.
	PartFile = "part-00000.snappy.parquet"
	// SuccessFile marks a completely written artifact.
	SuccessFile = "_SUCCESS"
)

// reportRecord is the on-disk row layout. Pointer fields are optional columns.
type reportRecord struct {
	District           string   `parquet:"district"`
	CrimesTotal        int64    `parquet:"crimes_total"`
	CrimesMonthly      *int64   `parquet:"crimes_monthly,optional"`
	Lat                *float64 `parquet:"lat,optional"`
	Lng                *float64 `parquet:"lng,optional"`
	FrequentCrimeTypes *string  `parquet:"frequent_crime_types,optional"`
}

func toRecord(row domain.ReportRow) reportRecord {
	return reportRecord{
		District:           row.District,
		CrimesTotal:        row.CrimesTotal,
		CrimesMonthly:      row.CrimesMonthly,
		Lat:                row.Lat,
		Lng:                row.Lng,
		FrequentCrimeTypes: row.FrequentCrimeTypes,
	}
}

func fromRecord(r reportRecord) domain.ReportRow {
	return domain.ReportRow{
		District:           r.District,
		CrimesTotal:        r.CrimesTotal,
		CrimesMonthly:      r.CrimesMonthly,
		Lat:                r.Lat,
		Lng:                r.Lng,
		FrequentCrimeTypes: r.FrequentCrimeTypes,
	}
}

// WriteArtifact writes rows as a single Snappy-compressed parquet file into
// the existing directory dir, followed by the success marker.
func WriteArtifact(dir string, rows []domain.ReportRow) error {
	records := make([]reportRecord, len(rows))
	for i, row := range rows {
		records[i] = toRecord(row)
	}

	if err := parquet.WriteFile(filepath.Join(dir, PartFile), records, parquet.Compression(&parquet.Snappy)); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, SuccessFile), nil, 0o644); err != nil {
		return fmt.Errorf("write success marker: %w", err)
	}
	return nil
}

// ReadArtifact reads the report rows of the artifact in dir. An artifact
// without a success marker is rejected.
func ReadArtifact(dir string) ([]domain.ReportRow, error) {
	if _, err := os.Stat(filepath.Join(dir, SuccessFile)); err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", dir, err)
	}
	records, err := parquet.ReadFile[reportRecord](filepath.Join(dir, PartFile))
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	rows := make([]domain.ReportRow, len(records))
	for i, r := range records {
		rows[i] = fromRecord(r)
	}
	return rows, nil
}

// ArtifactFiles lists the files WriteArtifact produces, data first.
func ArtifactFiles() []string {
	return []string{PartFile, SuccessFile}
}
