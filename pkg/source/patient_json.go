// pkg/source/patient_json.go
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"go.uber.org/zap"

	"github.com/David-Botos/clinical-ingress/pkg/model"
)

// Columns added to every patient record from its file names
const (
	FilenameEarliestDateColumn = "filename_earliest_date"
	FilenameCovidStatusColumn  = "filename_covid_status"
	FilenameLatestDateColumn   = "filename_latest_date"
)

const (
	dataFilePrefix   = "data"
	statusFilePrefix = "status"
	filenameDate     = "2006-01-02"
)

// PatientJSONSource reads one clinical record per patient directory. Each
// directory holds dated submissions named <kind>_<YYYY-MM-DD>.json; a "data"
// file marks a positive patient, otherwise only "status" files exist. The
// latest file of the patient's kind becomes the record.
type PatientJSONSource struct {
	root     string
	logger   *zap.Logger
	metadata *model.SourceMetadata
	warnings []string
}

// NewPatientJSONSource creates a source for the patient tree under root
func NewPatientJSONSource(root string, logger *zap.Logger) *PatientJSONSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatientJSONSource{
		root:   root,
		logger: logger.Named("patient-json-source"),
	}
}

// Name returns the root directory
func (s *PatientJSONSource) Name() string {
	return s.root
}

// Metadata describes the last tree read, nil before the first Read
func (s *PatientJSONSource) Metadata() *model.SourceMetadata {
	return s.metadata
}

// Warnings lists the patient directories skipped by the last read
func (s *PatientJSONSource) Warnings() []string {
	return s.warnings
}

// orderedRecord keeps keys in first-seen order; setting an existing key
// replaces its value in place
type orderedRecord struct {
	names  []string
	values model.Record
}

func newOrderedRecord() *orderedRecord {
	return &orderedRecord{values: make(model.Record)}
}

func (r *orderedRecord) set(name string, v model.Value) {
	if _, ok := r.values[name]; !ok {
		r.names = append(r.names, name)
	}
	r.values[name] = v
}

// Read walks the tree and loads the latest record of every patient
func (s *PatientJSONSource) Read(ctx context.Context) (*model.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		order    []string
		seen     = make(map[string]bool)
		records  []model.Record
		warnings []string
	)

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, warning, err := s.readPatient(path)
		if err != nil {
			return err
		}
		if warning != "" {
			warnings = append(warnings, warning)
			s.logger.Warn("Skipping patient directory", zap.String("reason", warning))
			return nil
		}
		if rec == nil {
			return nil
		}

		for _, name := range rec.names {
			if !seen[name] {
				seen[name] = true
				order = append(order, name)
			}
		}
		records = append(records, rec.values)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read patient records under %s: %w", s.root, err)
	}

	frame := model.FromRecords(order, records)
	s.metadata = describe(s.root, frame)
	s.warnings = warnings

	s.logger.Info("Read patient records",
		zap.String("root", s.root),
		zap.Int("patients", frame.Len()),
		zap.Int("columns", frame.Width()),
		zap.Int("skipped", len(warnings)))
	return frame, nil
}

// readPatient loads the record of one directory. A nil record with no
// warning means the directory holds no files.
func (s *PatientJSONSource) readPatient(dir string) (*orderedRecord, string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, "", err
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, "", nil
	}

	var earliest, latest time.Time
	positive := false
	for i, name := range files {
		date, err := filenameDateOf(name)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", filepath.Join(dir, name), err)
		}
		if i == 0 || date.Before(earliest) {
			earliest = date
		}
		if i == 0 || date.After(latest) {
			latest = date
		}
		if strings.HasPrefix(strings.ToLower(name), dataFilePrefix) {
			positive = true
		}
	}

	prefix := statusFilePrefix
	if positive {
		prefix = dataFilePrefix
	}
	// ReadDir sorts by name, so the last match is the latest submission
	chosen := ""
	for _, name := range files {
		if strings.HasPrefix(strings.ToLower(name), prefix) {
			chosen = name
		}
	}
	if chosen == "" {
		return nil, fmt.Sprintf("%s has no %s file", dir, prefix), nil
	}

	path := filepath.Join(dir, chosen)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}

	rec := newOrderedRecord()
	rec.set(FilenameEarliestDateColumn, model.Date(earliest))
	rec.set(FilenameCovidStatusColumn, model.Bool(positive))
	rec.set(FilenameLatestDateColumn, model.Date(latest))
	if err := decodePatientJSON(data, rec); err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}

	s.logger.Debug("Selected patient file",
		zap.String("path", path),
		zap.Bool("positive", positive))
	return rec, "", nil
}

// filenameDateOf parses the date between the first '_' and the next '.'
func filenameDateOf(name string) (time.Time, error) {
	parts := strings.Split(name, "_")
	if len(parts) < 2 {
		return time.Time{}, errors.New("file name has no date part")
	}
	date, err := time.Parse(filenameDate, strings.Split(parts[1], ".")[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid file name date: %w", err)
	}
	return date, nil
}

// decodePatientJSON flattens the top-level object into rec. Fields of
// OtherDataSources.SegmentationData are lifted to the top level and win
// over top-level fields of the same name.
func decodePatientJSON(data []byte, rec *orderedRecord) error {
	each := func(key, value []byte, typ jsonparser.ValueType, _ int) error {
		v, err := jsonCell(value, typ)
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		rec.set(string(key), v)
		return nil
	}

	if err := jsonparser.ObjectEach(data, each); err != nil {
		return err
	}

	segmentation, typ, _, err := jsonparser.Get(data, "OtherDataSources", "SegmentationData")
	if err != nil || typ != jsonparser.Object {
		return nil
	}
	return jsonparser.ObjectEach(segmentation, each)
}

// jsonCell converts a JSON value; objects and arrays keep their JSON text
func jsonCell(value []byte, typ jsonparser.ValueType) (model.Value, error) {
	switch typ {
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		return model.String(s), err
	case jsonparser.Number:
		if i, err := jsonparser.ParseInt(value); err == nil {
			return model.Int(i), nil
		}
		f, err := jsonparser.ParseFloat(value)
		return model.Float(f), err
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(value)
		return model.Bool(b), err
	case jsonparser.Null:
		return model.Missing(), nil
	default:
		return model.String(string(value)), nil
	}
}

// describe records each column with the kind of its first present cell
func describe(source string, frame *model.Frame) *model.SourceMetadata {
	metadata := &model.SourceMetadata{Source: source, Rows: frame.Len()}
	for _, name := range frame.Names() {
		col, _ := frame.Column(name)
		kind := model.KindMissing
		for _, v := range col.Cells {
			if !v.IsMissing() {
				kind = v.Kind()
				break
			}
		}
		metadata.Columns = append(metadata.Columns, model.ColumnInfo{
			Name:     name,
			DataType: "JSON",
			Kind:     kind,
			Nullable: true,
		})
	}
	return metadata
}
