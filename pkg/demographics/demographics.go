// pkg/demographics/demographics.go
package demographics

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"
	"go.uber.org/zap"

	"github.com/David-Botos/clinical-ingress/pkg/category"
	"github.com/David-Botos/clinical-ingress/pkg/model"
)

// Output columns added by Backfill
const (
	AgeUpdateColumn = "age_update"
	SexUpdateColumn = "sex_update"
)

// Columns read from the cleaned clinical frame
const (
	PseudonymColumn = "Pseudonym"
	AgeColumn       = "age"
	SexColumn       = "sex"
)

// Imaging metadata columns are named after their DICOM keywords
var (
	PatientSexColumn = keyword(tag.PatientSex)
	PatientAgeColumn = keyword(tag.PatientAge)
)

// ErrMissingColumn is returned when an input frame lacks a required column
var ErrMissingColumn = errors.New("required column missing")

func keyword(t tag.Tag) string {
	info, err := tag.Find(t)
	if err != nil {
		panic(fmt.Sprintf("dicom dictionary has no entry for %v", t))
	}
	return info.Name
}

// ParseAge converts a DICOM age string ("045Y", "006M", "010W", "003D")
// into years. Months, weeks and days are divided by 12, 52 and 365.
func ParseAge(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	unit := s[len(s)-1]
	age, err := strconv.ParseFloat(strings.TrimSpace(s[:len(s)-1]), 64)
	if err != nil || math.IsNaN(age) {
		return 0, false
	}

	switch unit {
	case 'Y':
	case 'M':
		age /= 12
	case 'W':
		age /= 52
	case 'D':
		age /= 365
	default:
		return 0, false
	}
	return age, true
}

// imagingRecord is the demographic part of one imaging study
type imagingRecord struct {
	sex    model.Value
	age    float64
	hasAge bool
}

// better reports whether r should replace the current choice. Earlier
// records win ties, so only a strictly smaller age replaces.
func (r imagingRecord) better(current imagingRecord) bool {
	if !r.hasAge {
		return false
	}
	return !current.hasAge || r.age < current.age
}

// Backfill returns a copy of patients with age_update and sex_update.
// A known sex or present age is kept; otherwise the value comes from the
// subject's imaging record with the smallest parsable age.
func Backfill(patients *model.Frame, images ...*model.Frame) (*model.Frame, error) {
	logger := zap.L().Named("demographics")

	if !patients.Has(PseudonymColumn) {
		return nil, fmt.Errorf("patients %q: %w", PseudonymColumn, ErrMissingColumn)
	}

	lookup, err := imagingLookup(images)
	if err != nil {
		return nil, err
	}

	out := patients.Clone()
	ageUpdate := model.NewColumn(AgeUpdateColumn, model.KindFloat, out.Len())
	sexUpdate := model.NewColumn(SexUpdateColumn, model.KindString, out.Len())
	agesFilled, sexesFilled := 0, 0

	for row := 0; row < out.Len(); row++ {
		var match imagingRecord
		matched := false
		if id := out.Value(PseudonymColumn, row); !id.IsMissing() {
			match, matched = lookup[id.Text()]
		}

		age := out.Value(AgeColumn, row)
		if n, ok := age.Number(); ok {
			ageUpdate.Cells[row] = model.Float(n)
		} else if matched && match.hasAge {
			ageUpdate.Cells[row] = model.Float(match.age)
			agesFilled++
		}

		sex := out.Value(SexColumn, row)
		if s, ok := sex.Str(); ok && s != category.Unknown {
			sexUpdate.Cells[row] = sex
		} else if matched && !match.sex.IsMissing() {
			sexUpdate.Cells[row] = model.String(match.sex.Text())
			sexesFilled++
		} else {
			sexUpdate.Cells[row] = sex
		}
	}

	if err := out.Set(ageUpdate); err != nil {
		return nil, err
	}
	if err := out.Set(sexUpdate); err != nil {
		return nil, err
	}

	logger.Info("Backfilled demographics from imaging metadata",
		zap.Int("patients", out.Len()),
		zap.Int("imaging_subjects", len(lookup)),
		zap.Int("ages_filled", agesFilled),
		zap.Int("sexes_filled", sexesFilled))

	return out, nil
}

// imagingLookup keeps one record per subject across all modalities
func imagingLookup(images []*model.Frame) (map[string]imagingRecord, error) {
	lookup := make(map[string]imagingRecord)
	for i, img := range images {
		for _, name := range []string{PseudonymColumn, PatientSexColumn, PatientAgeColumn} {
			if !img.Has(name) {
				return nil, fmt.Errorf("imaging table %d %q: %w", i, name, ErrMissingColumn)
			}
		}

		for row := 0; row < img.Len(); row++ {
			id := img.Value(PseudonymColumn, row)
			if id.IsMissing() {
				continue
			}

			rec := imagingRecord{sex: img.Value(PatientSexColumn, row)}
			if s, ok := img.Value(PatientAgeColumn, row).Str(); ok {
				rec.age, rec.hasAge = ParseAge(s)
			}

			current, seen := lookup[id.Text()]
			if !seen || rec.better(current) {
				lookup[id.Text()] = rec
			}
		}
	}
	return lookup, nil
}
