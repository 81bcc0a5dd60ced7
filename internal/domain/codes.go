package domain

import (
	"cmp"
	"slices"
	"strings"

	"github.com/samber/lo"
)

const crimeTypeSeparator = " - "

// CrimeType returns the part of an offense name before the first " - ",
// or the whole name when the separator is absent.
func CrimeType(name string) string {
	head, _, _ := strings.Cut(name, crimeTypeSeparator)
	return head
}

// NormalizeCodes orders the lookup by ascending code and keeps the first row
// seen for each code. Rows sharing a code keep their input order, so the
// surviving name is deterministic for a given file.
func NormalizeCodes(codes []OffenseCode) []NormalizedCode {
	sorted := slices.Clone(codes)
	slices.SortStableFunc(sorted, func(a, b OffenseCode) int {
		return cmp.Compare(a.Code, b.Code)
	})

	unique := lo.UniqBy(sorted, func(c OffenseCode) int { return c.Code })

	return lo.Map(unique, func(c OffenseCode, _ int) NormalizedCode {
		n := NormalizedCode{Code: c.Code, Name: c.Name}
		if c.Name != nil {
			n.CrimeType = lo.ToPtr(CrimeType(*c.Name))
		}
		return n
	})
}

// CrimeTypeIndex maps each normalized code to its crime type.
func CrimeTypeIndex(codes []NormalizedCode) map[int]*string {
	return lo.SliceToMap(codes, func(c NormalizedCode) (int, *string) {
		return c.Code, c.CrimeType
	})
}
