// pkg/source/csv.go
package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/David-Botos/clinical-ingress/pkg/converter"
	"github.com/David-Botos/clinical-ingress/pkg/model"
)

// ErrNoHeader is returned when a delimited file has no header line
var ErrNoHeader = errors.New("delimited file has no header")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVSource reads a delimited text file. Every cell stays text except the
// converter's null tokens, which become missing.
type CSVSource struct {
	path      string
	delimiter rune
	converter *converter.TypeConverter
	logger    *zap.Logger
	metadata  *model.SourceMetadata
	warnings  []string
}

// NewCSVSource creates a source for the file at path
func NewCSVSource(path string, delimiter rune, typeConverter *converter.TypeConverter, logger *zap.Logger) *CSVSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if typeConverter == nil {
		typeConverter = converter.NewTypeConverter(logger)
	}
	if delimiter == 0 {
		delimiter = ','
	}
	return &CSVSource{
		path:      path,
		delimiter: delimiter,
		converter: typeConverter,
		logger:    logger.Named("csv-source"),
	}
}

// Name returns the file path
func (s *CSVSource) Name() string {
	return s.path
}

// Metadata describes the last file read, nil before the first Read
func (s *CSVSource) Metadata() *model.SourceMetadata {
	return s.metadata
}

// Warnings lists the malformed input tolerated by the last read
func (s *CSVSource) Warnings() []string {
	return s.warnings
}

// Read loads the whole file
func (s *CSVSource) Read(ctx context.Context) (*model.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer file.Close()

	frame, metadata, warnings, err := s.decode(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	s.metadata, s.warnings = metadata, warnings

	s.logger.Info("Read delimited file",
		zap.String("path", s.path),
		zap.Int("rows", frame.Len()),
		zap.Int("columns", frame.Width()))
	return frame, nil
}

// ReadFrom decodes delimited text from r; the source's path is only used
// as the dataset name
func (s *CSVSource) ReadFrom(ctx context.Context, r io.Reader) (*model.Frame, error) {
	frame, metadata, warnings, err := s.decode(ctx, r)
	if err != nil {
		return nil, err
	}
	s.metadata, s.warnings = metadata, warnings
	return frame, nil
}

func (s *CSVSource) decode(ctx context.Context, r io.Reader) (*model.Frame, *model.SourceMetadata, []string, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.Comma = s.delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil, ErrNoHeader
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	names := uniqueNames(header)

	var records []model.Record
	ragged := 0
	for {
		if len(records)%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, nil, err
			}
		}

		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to read row %d: %w", len(records)+1, err)
		}

		if len(fields) != len(names) {
			ragged++
		}
		rec := make(model.Record, len(names))
		for i, name := range names {
			if i < len(fields) {
				rec[name] = s.converter.ParseCell(fields[i])
			} else {
				rec[name] = model.Missing()
			}
		}
		records = append(records, rec)
	}

	var warnings []string
	if ragged > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"%d rows have a field count different from the %d header columns", ragged, len(names)))
		s.logger.Warn("Rows with a field count different from the header",
			zap.String("path", s.path),
			zap.Int("rows", ragged))
	}

	metadata := &model.SourceMetadata{
		Source: s.path,
		Rows:   len(records),
	}
	for _, name := range names {
		metadata.Columns = append(metadata.Columns, model.ColumnInfo{
			Name:     name,
			DataType: "TEXT",
			Kind:     model.KindString,
			Nullable: true,
		})
	}

	return model.FromRecords(names, records), metadata, warnings, nil
}
