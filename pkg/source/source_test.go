package source

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/clinical-ingress/pkg/model"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "submission.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCSVSourceRead(t *testing.T) {
	path := writeFile(t, "\xEF\xBB\xBFPseudonym,Age,Sex\nabc,45,F\ndef,NA,\n")
	src := NewCSVSource(path, ',', nil, zap.NewNop())

	frame, err := src.Read(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Pseudonym", "Age", "Sex"}, frame.Names())
	assert.Equal(t, 2, frame.Len())
	assert.True(t, frame.Value("Age", 0).Equal(model.String("45")))
	assert.True(t, frame.Value("Age", 1).IsMissing())
	assert.True(t, frame.Value("Sex", 1).IsMissing())

	meta := src.Metadata()
	require.NotNil(t, meta)
	assert.Equal(t, 2, meta.Rows)
	assert.Equal(t, []string{"Pseudonym", "Age", "Sex"}, meta.ColumnNames())
}

func TestCSVSourceNullTokens(t *testing.T) {
	src := NewCSVSource("inline", ',', nil, nil)
	frame, err := src.ReadFrom(context.Background(),
		strings.NewReader("x\nN/A\nNULL\nnan\n#N/A\nNone\nnone\n"))
	require.NoError(t, err)

	col, ok := frame.Column("x")
	require.True(t, ok)
	for i := 0; i < 5; i++ {
		assert.True(t, col.Cells[i].IsMissing(), "row %d", i)
	}
	// only the listed spellings count as missing
	assert.True(t, col.Cells[5].Equal(model.String("none")))
}

func TestCSVSourceRaggedRows(t *testing.T) {
	src := NewCSVSource("inline", ';', nil, nil)
	frame, err := src.ReadFrom(context.Background(), strings.NewReader("a;b;c\n1;2\n4;5;6;7\n"))
	require.NoError(t, err)

	assert.Equal(t, 2, frame.Len())
	assert.True(t, frame.Value("c", 0).IsMissing())
	assert.True(t, frame.Value("c", 1).Equal(model.String("6")))
	assert.Equal(t, []string{"2 rows have a field count different from the 3 header columns"}, src.Warnings())

	_, err = src.ReadFrom(context.Background(), strings.NewReader("a;b\n1;2\n"))
	require.NoError(t, err)
	assert.Empty(t, src.Warnings())
}

func TestCSVSourceDuplicateHeaders(t *testing.T) {
	src := NewCSVSource("inline", ',', nil, nil)
	frame, err := src.ReadFrom(context.Background(), strings.NewReader("Age,Age,Age\n1,2,3\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Age", "Age.1", "Age.2"}, frame.Names())
}

func TestCSVSourceErrors(t *testing.T) {
	src := NewCSVSource("inline", ',', nil, nil)
	_, err := src.ReadFrom(context.Background(), strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoHeader)

	missing := NewCSVSource(filepath.Join(t.TempDir(), "absent.csv"), ',', nil, nil)
	_, err = missing.Read(context.Background())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewCSVSource(writeFile(t, "a\n1\n"), ',', nil, nil).Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTableQuery(t *testing.T) {
	assert.Equal(t, `SELECT * FROM "SITE_A"."clinical_data"`, TableQuery("SITE_A", "clinical_data"))
	assert.Equal(t, `SELECT * FROM "odd""name"`, TableQuery("", `odd"name`))
}

// mockConnector serves a sqlmock pool through the connector interface
type mockConnector struct {
	db *sql.DB
}

func (c *mockConnector) Name() string                { return "mock" }
func (c *mockConnector) DB() *sql.DB                 { return c.db }
func (c *mockConnector) Validate() error             { return nil }
func (c *mockConnector) Close() error                { return c.db.Close() }
func (c *mockConnector) DriverName() string          { return "pgx" }
func (c *mockConnector) QueryTimeout() time.Duration { return time.Minute }

func TestSQLSourceRead(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	swab := time.Date(2020, 4, 3, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("Pseudonym").OfType("VARCHAR", "").Nullable(false),
		sqlmock.NewColumn("Age").OfType("INT8", int64(0)).Nullable(true),
		sqlmock.NewColumn("Date of Positive Covid Swab").OfType("DATE", time.Time{}).Nullable(true),
	).
		AddRow("abc", int64(45), swab).
		AddRow("def", nil, nil)

	query := TableQuery("SITE_A", "clinical_data")
	mock.ExpectQuery(regexp.QuoteMeta(query)).WillReturnRows(rows)

	src := NewTableSource(&mockConnector{db: db}, "SITE_A", "clinical_data", nil, zap.NewNop())
	assert.Equal(t, "SITE_A.clinical_data", src.Name())

	frame, err := src.Read(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 2, frame.Len())
	assert.True(t, frame.Value("Pseudonym", 0).Equal(model.String("abc")))
	assert.True(t, frame.Value("Age", 0).Equal(model.Int(45)))
	assert.True(t, frame.Value("Age", 1).IsMissing())
	assert.True(t, frame.Value("Date of Positive Covid Swab", 0).Equal(model.Date(swab)))

	meta := src.Metadata()
	require.NotNil(t, meta)
	assert.Equal(t, 2, meta.Rows)
	assert.Equal(t, model.KindInt, meta.Columns[1].Kind)
	assert.Equal(t, model.KindDate, meta.Columns[2].Kind)
	assert.False(t, meta.Columns[0].Nullable)
}

func TestSQLSourceQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(sql.ErrConnDone)

	src := NewSQLSource("broken", &mockConnector{db: db}, "SELECT 1", nil, nil)
	_, err = src.Read(context.Background())
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Nil(t, src.Metadata())
}

// listingConnector also lists a fixed set of tables
type listingConnector struct {
	mockConnector
	tables []string
}

func (c *listingConnector) ListTables(ctx context.Context, schema string) ([]string, error) {
	return c.tables, nil
}

func TestSchemaSources(t *testing.T) {
	conn := &listingConnector{tables: []string{"clinical_data", "imaging_data"}}

	sources, err := SchemaSources(context.Background(), conn, "SITE_B", nil, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "SITE_B.clinical_data", sources[0].Name())
	assert.Equal(t, "SITE_B.imaging_data", sources[1].Name())

	_, err = SchemaSources(context.Background(), &conn.mockConnector, "SITE_B", nil, zap.NewNop())
	assert.Error(t, err)
}
