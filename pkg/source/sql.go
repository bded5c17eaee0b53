// pkg/source/sql.go
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/David-Botos/clinical-ingress/pkg/connector"
	"github.com/David-Botos/clinical-ingress/pkg/converter"
	"github.com/David-Botos/clinical-ingress/pkg/model"
)

// SQLSource reads a record set with one query over a database connector
type SQLSource struct {
	name      string
	db        *sqlx.DB
	query     string
	args      []interface{}
	timeout   time.Duration
	converter *converter.TypeConverter
	logger    *zap.Logger
	metadata  *model.SourceMetadata
}

// NewSQLSource creates a source running query over conn
func NewSQLSource(
	name string,
	conn connector.DatabaseConnector,
	query string,
	typeConverter *converter.TypeConverter,
	logger *zap.Logger,
	args ...interface{},
) *SQLSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if typeConverter == nil {
		typeConverter = converter.NewTypeConverter(logger)
	}
	return &SQLSource{
		name:      name,
		db:        sqlx.NewDb(conn.DB(), conn.DriverName()),
		query:     query,
		args:      args,
		timeout:   conn.QueryTimeout(),
		converter: typeConverter,
		logger:    logger.Named("sql-source"),
	}
}

// NewTableSource creates a source selecting every row of schema.table
func NewTableSource(
	conn connector.DatabaseConnector,
	schema, table string,
	typeConverter *converter.TypeConverter,
	logger *zap.Logger,
) *SQLSource {
	name := table
	if schema != "" {
		name = schema + "." + table
	}
	return NewSQLSource(name, conn, TableQuery(schema, table), typeConverter, logger)
}

// SchemaSources returns one table source per base table of schema. conn must
// be able to list its tables.
func SchemaSources(
	ctx context.Context,
	conn connector.DatabaseConnector,
	schema string,
	typeConverter *converter.TypeConverter,
	logger *zap.Logger,
) ([]RecordSource, error) {
	lister, ok := conn.(connector.TableLister)
	if !ok {
		return nil, fmt.Errorf("%s cannot list tables", conn.Name())
	}
	tables, err := lister.ListTables(ctx, schema)
	if err != nil {
		return nil, err
	}

	sources := make([]RecordSource, len(tables))
	for i, table := range tables {
		sources[i] = NewTableSource(conn, schema, table, typeConverter, logger)
	}
	return sources, nil
}

// Name returns the dataset name
func (s *SQLSource) Name() string {
	return s.name
}

// Metadata describes the last result set read, nil before the first Read
func (s *SQLSource) Metadata() *model.SourceMetadata {
	return s.metadata
}

// Read runs the query and converts every driver value into a typed cell
func (s *SQLSource) Read(ctx context.Context) (*model.Frame, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	startTime := time.Now()
	rows, err := s.db.QueryxContext(ctx, s.query, s.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", s.name, err)
	}
	names := uniqueNames(columns)

	metadata := &model.SourceMetadata{Source: s.name}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types of %s: %w", s.name, err)
	}
	for i, ct := range columnTypes {
		nullable, ok := ct.Nullable()
		metadata.Columns = append(metadata.Columns, model.ColumnInfo{
			Name:     names[i],
			DataType: ct.DatabaseTypeName(),
			Kind:     s.converter.KindForDatabaseType(ct.DatabaseTypeName()),
			Nullable: nullable || !ok,
		})
	}

	var records []model.Record
	for rows.Next() {
		// MapScan keys by the driver's names, so positional scanning keeps
		// repeated column names apart
		values, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("failed to scan row %d of %s: %w", len(records)+1, s.name, err)
		}
		rec := make(model.Record, len(names))
		for i, name := range names {
			rec[name] = s.converter.ConvertValue(values[i])
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows of %s: %w", s.name, err)
	}

	metadata.Rows = len(records)
	s.metadata = metadata

	s.logger.Info("Read query result",
		zap.String("source", s.name),
		zap.Int("rows", len(records)),
		zap.Int("columns", len(names)),
		zap.Duration("duration", time.Since(startTime)))

	return model.FromRecords(names, records), nil
}
