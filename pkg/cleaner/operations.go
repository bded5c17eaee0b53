// pkg/cleaner/operations.go
package cleaner

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/David-Botos/clinical-ingress/pkg/category"
	"github.com/David-Botos/clinical-ingress/pkg/extract"
	"github.com/David-Botos/clinical-ingress/pkg/model"
)

// Stage names
const (
	StageRemapEthnicity   = "remap_ethnicity"
	StageRemapSex         = "remap_sex"
	StageCoerceNumeric    = "coerce_numeric"
	StageClipNumeric      = "clip_numeric"
	StageParseDates       = "parse_dates"
	StageParseBinary      = "parse_binary"
	StageParseCategorical = "parse_categorical"
	StageRemapTestResults = "remap_test_results"
	StageRescaleFiO2      = "rescale_fio2"
	StageFixHeaders       = "fix_headers"
)

// DefaultStages returns the cleaning stages in their documented order
func DefaultStages() []Stage {
	numericRaw := append(append([]string(nil), NumericColumns...), ColSystolicBP, ColDiastolicBP, ColAge)
	clipped := make([]string, len(ClipRanges))
	for i, r := range ClipRanges {
		clipped[i] = r.Column
	}
	binaryRaw := append(append([]string(nil), BinaryColumns...), ColH1pertension, ColDiabetesType2, ColDiabetesTYPE2)
	binaryOut := append(cleanNames(BinaryColumns), OutDiabetesType2)
	categoricalRaw := []string{ColPackYearHistory}
	for _, s := range CategoricalSchemas {
		categoricalRaw = append(categoricalRaw, s.Column)
	}

	return []Stage{
		{
			Name:   StageRemapEthnicity,
			Reads:  []string{ColEthnicity},
			Writes: []string{CleanName(ColEthnicity)},
			Apply:  remapEthnicity,
		},
		{
			Name:   StageRemapSex,
			Reads:  []string{ColSex},
			Writes: []string{CleanName(ColSex)},
			Apply:  remapSex,
		},
		{
			Name:   StageCoerceNumeric,
			Reads:  numericRaw,
			Writes: cleanNames(numericRaw),
			Apply:  coerceNumeric,
		},
		{
			Name:   StageClipNumeric,
			Reads:  clipped,
			Writes: clipped,
			Apply:  clipNumeric,
		},
		{
			Name:   StageParseDates,
			Reads:  append(append([]string(nil), USDateColumns...), ColSwabDate),
			Writes: append(cleanNames(USDateColumns), OutSwabDate, OutLatestSwabDate),
			Apply:  parseDates,
		},
		{
			Name:   StageParseBinary,
			Reads:  binaryRaw,
			Writes: binaryOut,
			Apply:  parseBinary,
		},
		{
			Name:   StageParseCategorical,
			Reads:  categoricalRaw,
			Writes: cleanNames(categoricalRaw),
			Apply:  parseCategorical,
		},
		{
			Name:   StageRemapTestResults,
			Reads:  TestResultColumns,
			Writes: cleanNames(TestResultColumns),
			Apply:  remapTestResults,
		},
		{
			Name:   StageRescaleFiO2,
			Reads:  []string{ColFiO2},
			Writes: []string{OutFiO2},
			Apply:  rescaleFiO2,
		},
		{
			Name:     StageFixHeaders,
			Reads:    []string{OutSeverity3},
			Writes:   []string{OutSeverity2},
			Terminal: true,
			Apply:    fixHeaders,
		},
	}
}

// cellFunc cleans one non-missing cell; ok=false discards it
type cellFunc func(v model.Value) (out model.Value, ok bool)

// deriveColumn writes dst from src cell by cell. Missing cells stay missing,
// discarded cells become missing and are recorded with reason.
func deriveColumn(run *Run, f *model.Frame, stage, src, dst string, typ model.Kind, reason string, fn cellFunc) error {
	in, ok := f.Column(src)
	if !ok {
		return nil
	}

	out := model.NewColumn(dst, typ, f.Len())
	discarded := 0
	for i, v := range in.Cells {
		if v.IsMissing() {
			continue
		}
		cleaned, ok := fn(v)
		if !ok {
			run.discard(f, stage, dst, i, v, reason)
			discarded++
			continue
		}
		out.Cells[i] = cleaned
	}

	if discarded > 0 {
		run.logger.Debug("Discarded uncleanable values",
			zap.String("stage", stage),
			zap.String("column", dst),
			zap.Int("count", discarded))
	}
	return f.Set(out)
}

// remapCategory maps every cell of src through m into dst. Missing cells take
// the map's fallback. An absent or all-missing source produces no column.
func remapCategory(f *model.Frame, src, dst string, m *category.Map) error {
	in, ok := f.Column(src)
	if !ok || in.Empty() {
		return nil
	}

	out := model.NewColumn(dst, model.KindString, f.Len())
	for i, v := range in.Cells {
		if v.IsMissing() {
			out.Cells[i] = model.String(m.Fallback())
			continue
		}
		out.Cells[i] = model.String(m.Resolve(v.Text()))
	}
	return f.Set(out)
}

func remapEthnicity(run *Run, f *model.Frame) (*model.Frame, error) {
	in, ok := f.Column(ColEthnicity)
	if !ok || in.Empty() {
		return f, nil
	}

	var observed []string
	for _, v := range in.Distinct() {
		observed = append(observed, v.Text())
	}
	base := run.Maps.Ethnicity
	extended := category.ExtendEthnicity(base, observed)
	if added := extended.Len() - base.Len(); added > 0 {
		run.columnOp(StageRemapEthnicity, CleanName(ColEthnicity), model.OpMapExtended,
			"observed_labels", fmt.Sprintf("%d labels", added))
	}
	run.Maps.Ethnicity = extended

	if err := remapCategory(f, ColEthnicity, CleanName(ColEthnicity), extended); err != nil {
		return nil, err
	}
	return f, nil
}

func remapSex(run *Run, f *model.Frame) (*model.Frame, error) {
	if err := remapCategory(f, ColSex, CleanName(ColSex), run.Maps.Sex); err != nil {
		return nil, err
	}
	return f, nil
}

func coerceNumeric(run *Run, f *model.Frame) (*model.Frame, error) {
	single := func(reading extract.Reading) cellFunc {
		return func(v model.Value) (model.Value, bool) {
			n, ok := extract.ClinicalValue(v.Text(), reading)
			return model.Float(n), ok
		}
	}

	for _, col := range NumericColumns {
		if err := deriveColumn(run, f, StageCoerceNumeric, col, CleanName(col),
			model.KindFloat, ReasonUnparseableNumeric, single(extract.Single)); err != nil {
			return nil, err
		}
	}
	for _, bp := range bloodPressureColumns {
		if err := deriveColumn(run, f, StageCoerceNumeric, bp.Name, CleanName(bp.Name),
			model.KindFloat, ReasonUnparseableNumeric, single(bp.Reading)); err != nil {
			return nil, err
		}
	}

	err := deriveColumn(run, f, StageCoerceNumeric, ColAge, CleanName(ColAge),
		model.KindFloat, ReasonUnparseableNumeric, func(v model.Value) (model.Value, bool) {
			if n, ok := v.Number(); ok {
				return model.Float(math.Floor(n)), !math.IsInf(n, 0)
			}
			n, ok := extract.Age(v.Text())
			return model.Float(n), ok
		})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func clipNumeric(run *Run, f *model.Frame) (*model.Frame, error) {
	for _, r := range ClipRanges {
		r := r
		err := deriveColumn(run, f, StageClipNumeric, r.Column, r.Column,
			model.KindFloat, ReasonOutOfRange, func(v model.Value) (model.Value, bool) {
				n, ok := v.Number()
				if !ok || !extract.InRange(n, r.Min, r.Max) {
					return model.Missing(), false
				}
				return model.Float(n), true
			})
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

func parseDates(run *Run, f *model.Frame) (*model.Frame, error) {
	for _, col := range USDateColumns {
		err := deriveColumn(run, f, StageParseDates, col, CleanName(col),
			model.KindDate, ReasonUnparseableDate, func(v model.Value) (model.Value, bool) {
				if t, ok := v.DateValue(); ok {
					return model.Date(t), true
				}
				s, ok := v.Str()
				if !ok {
					return model.Missing(), false
				}
				t, ok := extract.USDate(s, run.RefYear)
				return model.Date(t), ok
			})
		if err != nil {
			return nil, err
		}
	}

	err := deriveColumn(run, f, StageParseDates, ColSwabDate, OutSwabDate,
		model.KindDate, ReasonUnparseableDate, func(v model.Value) (model.Value, bool) {
			if t, ok := v.DateValue(); ok {
				return model.Date(t), true
			}
			s, ok := v.Str()
			if !ok {
				return model.Missing(), false
			}
			t, ok := extract.UKDate(s)
			return model.Date(t), ok
		})
	if err != nil {
		return nil, err
	}

	positive, hasPositive := f.Column(CleanName(ColPositiveSwab))
	swab, hasSwab := f.Column(OutSwabDate)
	if hasPositive && hasSwab {
		latest := model.NewColumn(OutLatestSwabDate, model.KindDate, f.Len())
		for i := range latest.Cells {
			a, aok := positive.Cells[i].DateValue()
			b, bok := swab.Cells[i].DateValue()
			if t, ok := extract.Latest(a, aok, b, bok); ok {
				latest.Cells[i] = model.Date(t)
			}
		}
		if err := f.Set(latest); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func binaryFlag(v model.Value) (model.Value, bool) {
	b, ok := extract.BinaryFlag(v)
	return model.Bool(b), ok
}

func parseBinary(run *Run, f *model.Frame) (*model.Frame, error) {
	for _, col := range BinaryColumns {
		if err := deriveColumn(run, f, StageParseBinary, col, CleanName(col),
			model.KindBool, ReasonUnrecognisedFlag, binaryFlag); err != nil {
			return nil, err
		}
	}

	if legacy, ok := f.Column(ColH1pertension); ok {
		dst := CleanName(ColHypertension)
		target, ok := f.Column(dst)
		if !ok {
			target = model.NewColumn(dst, model.KindBool, f.Len())
			if err := f.Set(target); err != nil {
				return nil, err
			}
		}
		for i, v := range legacy.Cells {
			if !target.Cells[i].IsMissing() {
				continue
			}
			if b, ok := extract.LegacyHypertension(v); ok {
				target.Cells[i] = model.Bool(b)
				run.merge(f, StageParseBinary, dst, i, ColH1pertension, target.Cells[i])
			}
		}
	}

	// The TYPE I variant is never merged
	if primary, ok := f.Column(ColDiabetesType2); ok {
		merged := primary.Clone()
		merged.Name = OutDiabetesType2
		if alternate, ok := f.Column(ColDiabetesTYPE2); ok {
			for i, v := range alternate.Cells {
				if merged.Cells[i].IsMissing() && !v.IsMissing() {
					merged.Cells[i] = v
					run.merge(f, StageParseBinary, OutDiabetesType2, i, ColDiabetesTYPE2, v)
				}
			}
		}

		out := model.NewColumn(OutDiabetesType2, model.KindBool, f.Len())
		for i, v := range merged.Cells {
			if v.IsMissing() {
				continue
			}
			b, ok := extract.BinaryFlag(v)
			if !ok {
				run.discard(f, StageParseBinary, OutDiabetesType2, i, v, ReasonUnrecognisedFlag)
				continue
			}
			out.Cells[i] = model.Bool(b)
		}
		if err := f.Set(out); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func parseCategorical(run *Run, f *model.Frame) (*model.Frame, error) {
	err := deriveColumn(run, f, StageParseCategorical, ColPackYearHistory, CleanName(ColPackYearHistory),
		model.KindString, ReasonUnparseableNumeric, func(v model.Value) (model.Value, bool) {
			d, ok := extract.FirstDigits(v.Text())
			return model.String(d), ok
		})
	if err != nil {
		return nil, err
	}

	for _, schema := range CategoricalSchemas {
		allowed := schema.Allowed
		err := deriveColumn(run, f, StageParseCategorical, schema.Column, CleanName(schema.Column),
			model.KindString, ReasonOutsideSchema, func(v model.Value) (model.Value, bool) {
				d, ok := extract.FirstDigits(v.Text())
				if !ok || !contains(allowed, d) {
					return model.Missing(), false
				}
				return model.String(d), true
			})
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

func remapTestResults(run *Run, f *model.Frame) (*model.Frame, error) {
	results := run.Maps.TestResults
	for _, col := range TestResultColumns {
		err := deriveColumn(run, f, StageRemapTestResults, col, CleanName(col),
			model.KindString, ReasonUnmappedResult, func(v model.Value) (model.Value, bool) {
				if label, ok := results.Lookup(v.Text()); ok {
					return model.String(label), true
				}
				switch n, ok := extract.Binary01(v); {
				case ok && n == 1:
					return model.String("Positive"), true
				case ok:
					return model.String("Negative"), true
				}
				return model.Missing(), false
			})
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

func rescaleFiO2(run *Run, f *model.Frame) (*model.Frame, error) {
	err := deriveColumn(run, f, StageRescaleFiO2, ColFiO2, OutFiO2,
		model.KindInt, ReasonUnmappedFiO2, func(v model.Value) (model.Value, bool) {
			pct, ok := extract.FiO2Percent(v.Text())
			return model.Int(int64(pct)), ok
		})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func fixHeaders(run *Run, f *model.Frame) (*model.Frame, error) {
	if f.Rename(OutSeverity3, OutSeverity2) {
		run.columnOp(StageFixHeaders, OutSeverity3, model.OpColumnRenamed, "misnamed_header", OutSeverity2)
	}
	return f, nil
}
