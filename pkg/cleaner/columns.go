// pkg/cleaner/columns.go
package cleaner

import (
	"strings"

	"github.com/David-Botos/clinical-ingress/pkg/extract"
)

// CleanName derives the output column name for a raw column: lower case,
// spaces replaced with underscores and commas removed
func CleanName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ReplaceAll(name, ",", "")
}

// Raw column names as exported by the submitting sites
const (
	ColPseudonym       = "Pseudonym"
	ColEthnicity       = "Ethnicity"
	ColSex             = "Sex"
	ColAge             = "Age"
	ColSystolicBP      = "Systolic BP"
	ColDiastolicBP     = "Diastolic BP"
	ColPositiveSwab    = "Date of Positive Covid Swab"
	ColSwabDate        = "SwabDate"
	ColHypertension    = "PMH hypertension"
	ColH1pertension    = "PMH h1pertension"
	ColDiabetesType2   = "PMH diabetes mellitus type II"
	ColDiabetesTYPE2   = "PMH diabetes mellitus TYPE II"
	ColDiabetesTYPE1   = "PMH diabetes mellitus TYPE I"
	ColPackYearHistory = "Pack year history"
	ColFiO2            = "FiO2"
)

// Output column names that do not follow CleanName
const (
	OutSwabDate       = "swabdate"
	OutLatestSwabDate = "latest_swab_date"
	OutDiabetesType2  = "pmh_diabetes_mellitus_type_2"
	OutFiO2           = "fio2"
	OutSeverity3      = "cxr_severity_3"
	OutSeverity2      = "cxr_severity_2"
)

// NumericColumns are coerced to float with extract.Single
var NumericColumns = []string{
	"Duration of symptoms",
	"Respiratory rate on admission",
	"Heart rate on admission",
	"NEWS2 score on arrival",
	"APACHE score on ITU arrival",
	"PaO2",
	"Creatinine on admission",
	"D-dimer on admission",
	"Fibrinogen  if d-dimer not performed",
	"WCC on admission",
	"Lymphocyte count on admission",
	"Platelet count on admission",
	"CRP on admission",
	"Urea on admission",
	"O2 saturation",
	"Temperature on admission",
	"Ferritin",
	"Troponin I",
	"Troponin T",
}

// bloodPressureColumns pairs each blood pressure column with its reading
var bloodPressureColumns = []struct {
	Name    string
	Reading extract.Reading
}{
	{ColSystolicBP, extract.Systolic},
	{ColDiastolicBP, extract.Diastolic},
}

// Range limits applied to coerced numeric columns
type valueRange struct {
	Column string
	Min    float64
	Max    float64
}

// ClipRanges lists the cleaned numeric columns with a known valid range
var ClipRanges = []valueRange{
	{"temperature_on_admission", 25, 45},
	{"fibrinogen__if_d-dimer_not_performed", 0, 100},
	{"urea_on_admission", 0, 100},
	{"o2_saturation", 0, 100},
}

// USDateColumns are recorded month-first
var USDateColumns = []string{
	"Date of Positive Covid Swab",
	"Date of acquisition of 1st RT-PCR",
	"Date of acquisition of 2nd RT-PCR",
	"Date of result of 1st RT-PCR",
	"Date of result of 2nd RT-PCR",
	"Date of admission",
	"Date of ITU admission",
	"Date of intubation",
	"Date of 1st CXR",
	"Date of 2nd CXR",
	"Date last known alive",
	"Date of death",
}

// BinaryColumns hold 0/1 answers
var BinaryColumns = []string{
	"PMH hypertension",
	"PMH CKD",
	"Current ACEi use",
	"Current Angiotension receptor blocker use",
	"Current NSAID used",
	"ITU admission",
	"Intubation",
	"Death",
}

// categoricalSchema is one coded column and its allowed codes
type categoricalSchema struct {
	Column  string
	Allowed []string
}

// CategoricalSchemas restricts coded columns to their documented codes
var CategoricalSchemas = []categoricalSchema{
	{"Smoking status", []string{"0", "1", "2"}},
	{"If CKD, stage", []string{"2", "3", "4", "5"}},
	{"PMH CVS disease", []string{"0", "1", "2", "3", "4"}},
	{"PMH Lung disease", []string{"0", "1", "2", "3", "4", "5"}},
	{"CXR severity", []string{"1", "2", "3"}},
	{"CXR severity 3", []string{"1", "2", "3"}},
	{"COVID CODE", []string{"0", "1", "2", "3"}},
	{"COVID CODE 2", []string{"0", "1", "2", "3"}},
}

// TestResultColumns hold lab results
var TestResultColumns = []string{
	"1st RT-PCR result",
	"2nd RT-PCR result",
	"Final COVID Status",
}

func cleanNames(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = CleanName(n)
	}
	return out
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
