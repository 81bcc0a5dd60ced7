package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/crime-district-report/internal/domain"
)

var (
	ErrMissingColumn = errors.New("missing required column")
	ErrMissingValue  = errors.New("missing required value")
	ErrInvalidValue  = errors.New("invalid value")
)

// rowKeySeparator joins raw fields into an incident's RowKey. The unit
// separator cannot appear in a parsed CSV field from the supported inputs.
const rowKeySeparator = "\x1f"

// Opener opens an input location for reading.
type Opener func(ctx context.Context, location string) (io.ReadCloser, error)

// OpenLocal opens a path on the local filesystem.
func OpenLocal(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Reader loads the crimes and offense-code files with an explicit schema.
// It implements pipeline.Extractor.
type Reader struct {
	crimesPath string
	codesPath  string
	open       Opener
	logger     *slog.Logger
}

// NewReader creates a Reader. A nil opener reads from the local filesystem.
func NewReader(crimesPath, codesPath string, open Opener, logger *slog.Logger) *Reader {
	if open == nil {
		open = OpenLocal
	}
	return &Reader{
		crimesPath: crimesPath,
		codesPath:  codesPath,
		open:       open,
		logger:     logger,
	}
}

// ExtractCodes reads the CODE and NAME columns of the offense-code file.
func (r *Reader) ExtractCodes(ctx context.Context) ([]domain.OffenseCode, error) {
	var codes []domain.OffenseCode
	err := r.scan(ctx, r.codesPath, codeSchema, func(values []value, _ []string) error {
		codes = append(codes, domain.OffenseCode{
			Code: values[0].i,
			Name: values[1].text(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// ExtractIncidents reads the typed incident columns. Each incident keeps the
// complete raw row as its RowKey so duplicates are detected across all columns.
func (r *Reader) ExtractIncidents(ctx context.Context) ([]domain.Incident, error) {
	var incidents []domain.Incident
	err := r.scan(ctx, r.crimesPath, incidentSchema, func(values []value, fields []string) error {
		month := values[3].i
		if month < 1 || month > 12 {
			return fmt.Errorf("column MONTH: %w: %d is not a month", ErrInvalidValue, month)
		}
		incidents = append(incidents, domain.Incident{
			OffenseCode: values[0].i,
			District:    values[1].text(),
			Year:        values[2].i,
			Month:       month,
			Lat:         values[4].float(),
			Long:        values[5].float(),
			RowKey:      strings.Join(fields, rowKeySeparator),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return incidents, nil
}

// scan opens location, validates its header against s and calls fn for every
// parsed record. The first malformed record aborts the scan.
func (r *Reader) scan(ctx context.Context, location string, s schema, fn func(values []value, fields []string) error) error {
	f, err := r.open(ctx, location)
	if err != nil {
		return fmt.Errorf("open %s: %w", location, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("read %s: empty file", location)
	}
	if err != nil {
		return fmt.Errorf("read %s header: %w", location, err)
	}

	positions, err := s.resolve(header)
	if err != nil {
		return fmt.Errorf("read %s header: %w", location, err)
	}

	rows := 0
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", location, err)
		}
		line, _ := cr.FieldPos(0)

		values, err := s.parse(fields, positions)
		if err != nil {
			return fmt.Errorf("parse %s line %d: %w", location, line, err)
		}
		if err := fn(values, fields); err != nil {
			return fmt.Errorf("parse %s line %d: %w", location, line, err)
		}

		rows++
		if rows%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}

	r.logger.Debug("csv loaded", "location", location, "rows", rows)
	return nil
}
