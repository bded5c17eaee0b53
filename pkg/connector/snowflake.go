// pkg/connector/snowflake.go
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sf "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/David-Botos/clinical-ingress/pkg/config"
)

// SnowflakeConnector implements the DatabaseConnector interface for Snowflake
type SnowflakeConnector struct {
	db     *sql.DB
	logger *zap.Logger
	cfg    *config.SnowflakeConfig
}

// NewSnowflakeConnector creates a new Snowflake connection
func NewSnowflakeConnector(ctx context.Context, cfg *config.SnowflakeConfig) (*SnowflakeConnector, error) {
	logger := zap.L().Named("snowflake-connector")

	// Create DSN using Snowflake's DSN builder
	sfConfig := &sf.Config{
		Account:       cfg.Account,
		User:          cfg.User,
		Password:      cfg.Password,
		Database:      cfg.Database,
		Warehouse:     cfg.Warehouse,
		Role:          cfg.Role,
		Authenticator: cfg.Authenticator,
	}

	// Log connection attempt (without credentials)
	logger.Info("Connecting to Snowflake",
		zap.String("account", cfg.Account),
		zap.String("user", cfg.User),
		zap.String("database", cfg.Database),
		zap.String("warehouse", cfg.Warehouse),
		zap.String("role", cfg.Role))

	dsn, err := sf.DSN(sfConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build Snowflake DSN: %w", err)
	}

	// Open connection pool
	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Snowflake connection: %w", err)
	}

	// Configure connection pool
	ApplyConnectionSettings(
		db,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	// Verify connection
	if err := PingWithTimeout(ctx, db, 10*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Snowflake: %w", err)
	}

	connector := &SnowflakeConnector{
		db:     db,
		logger: logger,
		cfg:    cfg,
	}

	LogConnectionStats(logger, cfg.Database, db)
	return connector, nil
}

// Name identifies the database
func (c *SnowflakeConnector) Name() string {
	return "snowflake:" + c.cfg.Database
}

// DB returns the underlying database connection
func (c *SnowflakeConnector) DB() *sql.DB {
	return c.db
}

// DriverName returns the database/sql driver name
func (c *SnowflakeConnector) DriverName() string {
	return "snowflake"
}

// QueryTimeout returns the configured query timeout
func (c *SnowflakeConnector) QueryTimeout() time.Duration {
	return c.cfg.QueryTimeout
}

// Validate checks the session landed in the configured database and that the
// submission schemas exist
func (c *SnowflakeConnector) Validate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var role, database, warehouse string
	err := c.db.QueryRowContext(ctx, "SELECT CURRENT_ROLE(), CURRENT_DATABASE(), CURRENT_WAREHOUSE()").
		Scan(&role, &database, &warehouse)
	if err != nil {
		return fmt.Errorf("failed to verify Snowflake session: %w", err)
	}
	c.logger.Info("Connected to Snowflake",
		zap.String("role", role),
		zap.String("database", database),
		zap.String("warehouse", warehouse))

	if !strings.EqualFold(database, c.cfg.Database) {
		return fmt.Errorf("session database is %s, configured %s", database, c.cfg.Database)
	}

	present, err := queryStrings(ctx, c.db,
		"SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE CATALOG_NAME = ?",
		strings.ToUpper(c.cfg.Database))
	if err != nil {
		return fmt.Errorf("failed to list schemas: %w", err)
	}
	if missing := missingNames(c.cfg.Schemas, present); len(missing) > 0 {
		c.logger.Warn("Submission schemas not found", zap.Strings("schemas", missing))
	}

	return nil
}

// ListTables returns the base tables of schema in name order
func (c *SnowflakeConnector) ListTables(ctx context.Context, schema string) ([]string, error) {
	tables, err := queryStrings(ctx, c.db,
		"SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME",
		strings.ToUpper(schema))
	if err != nil {
		return nil, fmt.Errorf("failed to list tables of %s: %w", schema, err)
	}
	return tables, nil
}

// Close closes the database connection
func (c *SnowflakeConnector) Close() error {
	c.logger.Info("Closing Snowflake connection")
	LogConnectionStats(c.logger, c.cfg.Database, c.db)
	return c.db.Close()
}

// missingNames returns the wanted names absent from present, compared
// case-insensitively as Snowflake folds unquoted identifiers
func missingNames(wanted, present []string) []string {
	have := make(map[string]bool, len(present))
	for _, name := range present {
		have[strings.ToUpper(name)] = true
	}
	var missing []string
	for _, name := range wanted {
		if !have[strings.ToUpper(name)] {
			missing = append(missing, strings.ToUpper(name))
		}
	}
	return missing
}
