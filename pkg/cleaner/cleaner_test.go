package cleaner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/clinical-ingress/pkg/category"
	"github.com/David-Botos/clinical-ingress/pkg/model"
)

func newTestCleaner(t *testing.T) *DataCleaner {
	t.Helper()
	maps, err := category.Default()
	require.NoError(t, err)
	c, err := NewDataCleaner(maps, zap.NewNop())
	require.NoError(t, err)
	return c
}

func assertCell(t *testing.T, want model.Value, f *model.Frame, column string, row int) {
	t.Helper()
	require.True(t, f.Has(column), "missing column %q", column)
	got := f.Value(column, row)
	assert.True(t, want.Equal(got), "%s: want %s (%s), got %s (%s)",
		column, want.Text(), want.Kind(), got.Text(), got.Kind())
}

func date(y int, m time.Month, d int) model.Value {
	return model.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// rawCell is one named cell of a raw submission
type rawCell struct {
	name  string
	value model.Value
}

// dirtyCells touches every column the cleaner knows about
var dirtyCells = []rawCell{
	{ColPseudonym, model.String("Covid1")},
	{ColEthnicity, model.String("Mixed - other")},
	{ColSex, model.String("Female")},
	{ColAge, model.String("45.9")},
	{ColSystolicBP, model.String("[170/70] - 2020-03-04")},
	{ColDiastolicBP, model.String("[170/70] - 2020-03-04")},

	{"Duration of symptoms", model.String("7")},
	{"Respiratory rate on admission", model.String("22")},
	{"Heart rate on admission", model.String("[123.4] - 2020-03-04")},
	{"NEWS2 score on arrival", model.String("5")},
	{"APACHE score on ITU arrival", model.String("abc")},
	{"PaO2", model.String("10.5")},
	{"Creatinine on admission", model.String("88")},
	{"D-dimer on admission", model.String("1500")},
	{"Fibrinogen  if d-dimer not performed", model.String("[4.5] - 2020-03-04")},
	{"WCC on admission", model.String("6.2")},
	{"Lymphocyte count on admission", model.String("0.8")},
	{"Platelet count on admission", model.String("250")},
	{"CRP on admission", model.String("35")},
	{"Urea on admission", model.String("120")},
	{"O2 saturation", model.String("98")},
	{"Temperature on admission", model.String("45.1")},
	{"Ferritin", model.String("400")},
	{"Troponin I", model.String("12")},
	{"Troponin T", model.String("0.014")},

	{ColPositiveSwab, model.String("3/4/20")},
	{"Date of acquisition of 1st RT-PCR", model.String("3/2/20")},
	{"Date of acquisition of 2nd RT-PCR", model.String("3/6/2020")},
	{"Date of result of 1st RT-PCR", model.String("2020-03-03")},
	{"Date of result of 2nd RT-PCR", model.String("25/3/20")},
	{"Date of admission", model.String("[bad] - 2020-03-05")},
	{"Date of ITU admission", model.String("3/7/20")},
	{"Date of intubation", model.String("3/8/20")},
	{"Date of 1st CXR", model.String("3/5/20")},
	{"Date of 2nd CXR", model.String("not done")},
	{"Date last known alive", model.String("4/1/20")},
	{"Date of death", model.String(".")},
	{ColSwabDate, model.String("10/03/2020")},

	{ColHypertension, model.Missing()},
	{ColH1pertension, model.String("1es")},
	{"PMH CKD", model.String("1.0")},
	{"Current ACEi use", model.String("1")},
	{"Current Angiotension receptor blocker use", model.String("0")},
	{"Current NSAID used", model.Int(0)},
	{"ITU admission", model.Float(1)},
	{"Intubation", model.String("yes")},
	{"Death", model.String("2")},
	{ColDiabetesType2, model.Missing()},
	{ColDiabetesTYPE2, model.String("0")},
	{ColDiabetesTYPE1, model.String("1")},

	{ColPackYearHistory, model.String("20 years")},
	{"Smoking status", model.String("1")},
	{"If CKD, stage", model.String("stage 3b")},
	{"PMH CVS disease", model.String("2.0")},
	{"PMH Lung disease", model.String("7")},
	{"CXR severity", model.String("2")},
	{"CXR severity 3", model.String("3.0")},
	{"COVID CODE", model.String("7")},
	{"COVID CODE 2", model.String("1")},

	{"1st RT-PCR result", model.String("RNA DETECTED (SARS-CoV-2)")},
	{"2nd RT-PCR result", model.String("Not detected")},
	{"Final COVID Status", model.String("0")},
	{ColFiO2, model.String("6l")},
}

func dirtyRecord() *model.Frame {
	order := make([]string, len(dirtyCells))
	rec := make(model.Record, len(dirtyCells))
	for i, c := range dirtyCells {
		order[i] = c.name
		rec[c.name] = c.value
	}
	return model.FromRecords(order, []model.Record{rec})
}

func TestNewDataCleanerValidatesArguments(t *testing.T) {
	maps, err := category.Default()
	require.NoError(t, err)

	_, err = NewDataCleaner(nil, zap.NewNop())
	assert.Error(t, err)
	_, err = NewDataCleaner(maps, nil)
	assert.Error(t, err)
	_, err = NewDataCleanerWithPipeline(maps, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestCleanDirtyRecord(t *testing.T) {
	c := newTestCleaner(t)
	in := dirtyRecord()

	out, ops, err := c.Clean(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())

	// raw columns are retained in place, cleaned columns follow in stage order
	want := append(in.Names(),
		"ethnicity",
		"sex",
		"duration_of_symptoms",
		"respiratory_rate_on_admission",
		"heart_rate_on_admission",
		"news2_score_on_arrival",
		"apache_score_on_itu_arrival",
		"pao2",
		"creatinine_on_admission",
		"d-dimer_on_admission",
		"fibrinogen__if_d-dimer_not_performed",
		"wcc_on_admission",
		"lymphocyte_count_on_admission",
		"platelet_count_on_admission",
		"crp_on_admission",
		"urea_on_admission",
		"o2_saturation",
		"temperature_on_admission",
		"ferritin",
		"troponin_i",
		"troponin_t",
		"systolic_bp",
		"diastolic_bp",
		"age",
		"date_of_positive_covid_swab",
		"date_of_acquisition_of_1st_rt-pcr",
		"date_of_acquisition_of_2nd_rt-pcr",
		"date_of_result_of_1st_rt-pcr",
		"date_of_result_of_2nd_rt-pcr",
		"date_of_admission",
		"date_of_itu_admission",
		"date_of_intubation",
		"date_of_1st_cxr",
		"date_of_2nd_cxr",
		"date_last_known_alive",
		"date_of_death",
		OutSwabDate,
		OutLatestSwabDate,
		"pmh_hypertension",
		"pmh_ckd",
		"current_acei_use",
		"current_angiotension_receptor_blocker_use",
		"current_nsaid_used",
		"itu_admission",
		"intubation",
		"death",
		OutDiabetesType2,
		"pack_year_history",
		"smoking_status",
		"if_ckd_stage",
		"pmh_cvs_disease",
		"pmh_lung_disease",
		"cxr_severity",
		OutSeverity2,
		"covid_code",
		"covid_code_2",
		"1st_rt-pcr_result",
		"2nd_rt-pcr_result",
		"final_covid_status",
		OutFiO2,
	)
	assert.Equal(t, want, out.Names())

	tests := []struct {
		column string
		want   model.Value
	}{
		{"ethnicity", model.String("Multiple")},
		{"sex", model.String("F")},
		{"age", model.Float(45)},
		{"systolic_bp", model.Float(170)},
		{"diastolic_bp", model.Float(70)},

		{"duration_of_symptoms", model.Float(7)},
		{"respiratory_rate_on_admission", model.Float(22)},
		{"heart_rate_on_admission", model.Float(123.4)},
		{"news2_score_on_arrival", model.Float(5)},
		{"apache_score_on_itu_arrival", model.Missing()},
		{"pao2", model.Float(10.5)},
		{"creatinine_on_admission", model.Float(88)},
		{"d-dimer_on_admission", model.Float(1500)},
		{"fibrinogen__if_d-dimer_not_performed", model.Float(4.5)},
		{"wcc_on_admission", model.Float(6.2)},
		{"lymphocyte_count_on_admission", model.Float(0.8)},
		{"platelet_count_on_admission", model.Float(250)},
		{"crp_on_admission", model.Float(35)},
		{"urea_on_admission", model.Missing()},
		{"o2_saturation", model.Float(98)},
		{"temperature_on_admission", model.Missing()},
		{"ferritin", model.Float(400)},
		{"troponin_i", model.Float(12)},
		{"troponin_t", model.Float(0.014)},

		{"date_of_positive_covid_swab", date(2020, time.March, 4)},
		{"date_of_acquisition_of_1st_rt-pcr", date(2020, time.March, 2)},
		{"date_of_acquisition_of_2nd_rt-pcr", date(2020, time.March, 6)},
		{"date_of_result_of_1st_rt-pcr", date(2020, time.March, 3)},
		{"date_of_result_of_2nd_rt-pcr", date(2020, time.March, 25)},
		{"date_of_admission", date(2020, time.March, 5)},
		{"date_of_itu_admission", date(2020, time.March, 7)},
		{"date_of_intubation", date(2020, time.March, 8)},
		{"date_of_1st_cxr", date(2020, time.March, 5)},
		{"date_of_2nd_cxr", model.Missing()},
		{"date_last_known_alive", date(2020, time.April, 1)},
		{"date_of_death", model.Missing()},
		{OutSwabDate, date(2020, time.March, 10)},
		{OutLatestSwabDate, date(2020, time.March, 10)},

		{"pmh_hypertension", model.Bool(true)},
		{"pmh_ckd", model.Bool(true)},
		{"current_acei_use", model.Bool(true)},
		{"current_angiotension_receptor_blocker_use", model.Bool(false)},
		{"current_nsaid_used", model.Bool(false)},
		{"itu_admission", model.Bool(true)},
		{"intubation", model.Missing()},
		{"death", model.Missing()},
		{OutDiabetesType2, model.Bool(false)},

		{"pack_year_history", model.String("20")},
		{"smoking_status", model.String("1")},
		{"if_ckd_stage", model.String("3")},
		{"pmh_cvs_disease", model.String("2")},
		{"pmh_lung_disease", model.Missing()},
		{"cxr_severity", model.String("2")},
		{OutSeverity2, model.String("3")},
		{"covid_code", model.Missing()},
		{"covid_code_2", model.String("1")},

		{"1st_rt-pcr_result", model.String("Positive")},
		{"2nd_rt-pcr_result", model.String("Negative")},
		{"final_covid_status", model.String("Negative")},
		{OutFiO2, model.Int(45)},
	}
	for _, tt := range tests {
		assertCell(t, tt.want, out, tt.column, 0)
	}

	assert.False(t, out.Has(OutSeverity3))
	assert.False(t, out.Has("pmh_diabetes_mellitus_type_i"))

	// raw cells are carried through unchanged
	for _, c := range dirtyCells {
		assert.True(t, c.value.Equal(out.Value(c.name, 0)), c.name)
	}
	assert.False(t, in.Has("ethnicity"))

	reasons := make(map[string]int)
	merges := 0
	for _, op := range ops {
		switch op.CleaningOperation {
		case model.OpValueDiscarded:
			reasons[op.CleaningReason]++
			assert.Equal(t, "Covid1", op.RowIdentifier)
		case model.OpLegacyMerge:
			merges++
		}
	}
	assert.Equal(t, map[string]int{
		ReasonOutOfRange:         2,
		ReasonUnparseableNumeric: 1,
		ReasonUnparseableDate:    2,
		ReasonUnrecognisedFlag:   2,
		ReasonOutsideSchema:      2,
	}, reasons)
	assert.Equal(t, 2, merges, "hypertension and diabetes")
}

func TestLegacyHypertensionFillsMissingOnly(t *testing.T) {
	c := newTestCleaner(t)
	in := model.FromRecords([]string{ColPseudonym, ColHypertension, ColH1pertension}, []model.Record{
		{ColPseudonym: model.String("Covid1"), ColHypertension: model.String("0"), ColH1pertension: model.String("1es")},
		{ColPseudonym: model.String("Covid2"), ColH1pertension: model.String("1es")},
		{ColPseudonym: model.String("Covid3"), ColH1pertension: model.String("0")},
	})

	out, ops, err := c.Clean(context.Background(), in)
	require.NoError(t, err)
	assertCell(t, model.Bool(false), out, "pmh_hypertension", 0)
	assertCell(t, model.Bool(true), out, "pmh_hypertension", 1)
	assertCell(t, model.Missing(), out, "pmh_hypertension", 2)

	var merged []string
	for _, op := range ops {
		if op.CleaningOperation == model.OpLegacyMerge {
			merged = append(merged, op.RowIdentifier)
		}
	}
	assert.Equal(t, []string{"Covid2"}, merged)
}

func TestCleanIsStableOnItsOwnOutput(t *testing.T) {
	c := newTestCleaner(t)

	first, _, err := c.Clean(context.Background(), dirtyRecord())
	require.NoError(t, err)
	second, _, err := c.Clean(context.Background(), first)
	require.NoError(t, err)

	for _, name := range first.Names() {
		if name != CleanName(name) {
			continue
		}
		for i := 0; i < first.Len(); i++ {
			assert.True(t, first.Value(name, i).Equal(second.Value(name, i)), name)
		}
	}
}

func TestCleanEmptyNumericColumnsStayFloat(t *testing.T) {
	c := newTestCleaner(t)
	cols := []string{
		"Fibrinogen  if d-dimer not performed",
		"Urea on admission",
		"O2 saturation",
		"Temperature on admission",
	}
	in := model.FromRecords(cols, []model.Record{{}})

	out, _, err := c.Clean(context.Background(), in)
	require.NoError(t, err)

	for _, col := range cols {
		cleaned, ok := out.Column(CleanName(col))
		require.True(t, ok, col)
		assert.Equal(t, model.KindFloat, cleaned.Type, col)
		assert.True(t, cleaned.Empty(), col)
	}
}

func TestCleanSkipsEmptyCategoryColumns(t *testing.T) {
	c := newTestCleaner(t)
	in := model.FromRecords([]string{ColEthnicity}, []model.Record{{}, {}})

	out, _, err := c.Clean(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, out.Has("ethnicity"))
	assert.False(t, out.Has("sex"))
}

func TestCleanMissingCategoryIsUnknown(t *testing.T) {
	c := newTestCleaner(t)
	in := model.FromRecords([]string{ColEthnicity, ColSex}, []model.Record{
		{ColEthnicity: model.String("A"), ColSex: model.String("m")},
		{ColEthnicity: model.String("martian")},
	})

	out, _, err := c.Clean(context.Background(), in)
	require.NoError(t, err)
	assertCell(t, model.String("White"), out, "ethnicity", 0)
	assertCell(t, model.String("Unknown"), out, "ethnicity", 1)
	assertCell(t, model.String("M"), out, "sex", 0)
	assertCell(t, model.String("Unknown"), out, "sex", 1)
}

func TestCleanRunsDoNotShareMapExtensions(t *testing.T) {
	maps, err := category.Default()
	require.NoError(t, err)
	c, err := NewDataCleaner(maps, zap.NewNop())
	require.NoError(t, err)

	a := model.FromRecords(nil, []model.Record{{ColEthnicity: model.String("Mixed Martian")}})
	_, _, err = c.Clean(context.Background(), a)
	require.NoError(t, err)

	_, ok := maps.Ethnicity.Lookup("mixed martian")
	assert.False(t, ok)

	runA := NewRun(maps, zap.NewNop())
	runB := NewRun(maps, zap.NewNop())
	_, err = Apply(runA, a.Clone(), DefaultStages()[0])
	require.NoError(t, err)

	_, ok = runA.Maps.Ethnicity.Lookup("mixed martian")
	assert.True(t, ok)
	_, ok = runB.Maps.Ethnicity.Lookup("mixed martian")
	assert.False(t, ok)
}

func TestDiabetesPrimaryVariantWins(t *testing.T) {
	c := newTestCleaner(t)
	in := model.FromRecords(nil, []model.Record{
		{ColDiabetesType2: model.String("1"), ColDiabetesTYPE2: model.String("0")},
		{ColDiabetesType2: model.Missing(), ColDiabetesTYPE2: model.String("1")},
		{ColDiabetesType2: model.Missing(), ColDiabetesTYPE2: model.Missing(), ColDiabetesTYPE1: model.String("1")},
	})

	out, ops, err := c.Clean(context.Background(), in)
	require.NoError(t, err)
	assertCell(t, model.Bool(true), out, OutDiabetesType2, 0)
	assertCell(t, model.Bool(true), out, OutDiabetesType2, 1)
	assertCell(t, model.Missing(), out, OutDiabetesType2, 2)

	merges := 0
	for _, op := range ops {
		if op.CleaningOperation == model.OpLegacyMerge {
			merges++
			assert.Equal(t, "row-1", op.RowIdentifier)
		}
	}
	assert.Equal(t, 1, merges)
}

func TestNoDiabetesOutputWithoutPrimaryVariant(t *testing.T) {
	c := newTestCleaner(t)
	in := model.FromRecords(nil, []model.Record{{ColDiabetesTYPE2: model.String("1")}})

	out, _, err := c.Clean(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, out.Has(OutDiabetesType2))
}

func TestLatestSwabDateIgnoresMissing(t *testing.T) {
	c := newTestCleaner(t)
	in := model.FromRecords([]string{ColPositiveSwab, ColSwabDate}, []model.Record{
		{ColPositiveSwab: model.String("4/1/20"), ColSwabDate: model.String("10/03/2020")},
		{ColPositiveSwab: model.String("3/4/20")},
		{},
	})

	out, _, err := c.Clean(context.Background(), in)
	require.NoError(t, err)
	assertCell(t, date(2020, time.April, 1), out, OutLatestSwabDate, 0)
	assertCell(t, date(2020, time.March, 4), out, OutLatestSwabDate, 1)
	assertCell(t, model.Missing(), out, OutLatestSwabDate, 2)
}

func TestTestResultEncodings(t *testing.T) {
	c := newTestCleaner(t)
	in := model.FromRecords(nil, []model.Record{
		{"2nd RT-PCR result": model.Int(1)},
		{"2nd RT-PCR result": model.Float(0)},
		{"2nd RT-PCR result": model.String("not detected")},
		{"2nd RT-PCR result": model.String("maybe")},
	})

	out, _, err := c.Clean(context.Background(), in)
	require.NoError(t, err)
	col := "2nd_rt-pcr_result"
	assertCell(t, model.String("Positive"), out, col, 0)
	assertCell(t, model.String("Negative"), out, col, 1)
	assertCell(t, model.String("Negative"), out, col, 2)
	assertCell(t, model.Missing(), out, col, 3)
}

func TestClipBoundaries(t *testing.T) {
	c := newTestCleaner(t)
	temps := []string{"24.9", "25.0", "45.0", "45.1"}
	records := make([]model.Record, len(temps))
	for i, v := range temps {
		records[i] = model.Record{"Temperature on admission": model.String(v)}
	}

	out, _, err := c.Clean(context.Background(), model.FromRecords(nil, records))
	require.NoError(t, err)
	assertCell(t, model.Missing(), out, "temperature_on_admission", 0)
	assertCell(t, model.Float(25), out, "temperature_on_admission", 1)
	assertCell(t, model.Float(45), out, "temperature_on_admission", 2)
	assertCell(t, model.Missing(), out, "temperature_on_admission", 3)
}

func TestFixHeadersReplacesExistingColumn(t *testing.T) {
	run := NewRun(mustDefaultMaps(t), zap.NewNop())
	f := model.FromRecords([]string{OutSeverity2, "x", OutSeverity3}, []model.Record{{
		OutSeverity2: model.String("stale"),
		OutSeverity3: model.String("2"),
	}})

	out, err := fixHeaders(run, f)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", OutSeverity2}, out.Names())
	assertCell(t, model.String("2"), out, OutSeverity2, 0)
	require.Len(t, run.Operations(), 1)
	assert.Equal(t, model.OpColumnRenamed, run.Operations()[0].CleaningOperation)
}

func TestCleanHonoursCancellation(t *testing.T) {
	c := newTestCleaner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := c.Clean(ctx, dirtyRecord())
	assert.ErrorIs(t, err, context.Canceled)
}

func mustDefaultMaps(t *testing.T) *category.Maps {
	t.Helper()
	maps, err := category.Default()
	require.NoError(t, err)
	return maps
}
