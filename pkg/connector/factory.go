// pkg/connector/factory.go
package connector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/David-Botos/clinical-ingress/pkg/config"
)

// ConnectorFactory creates database connectors
type ConnectorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewConnectorFactory creates a new connector factory
func NewConnectorFactory(cfg *config.Config, logger *zap.Logger) *ConnectorFactory {
	return &ConnectorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateSnowflakeConnector creates a new Snowflake connector
func (f *ConnectorFactory) CreateSnowflakeConnector(ctx context.Context) (*SnowflakeConnector, error) {
	if f.cfg.Snowflake == nil {
		return nil, fmt.Errorf("snowflake is not configured")
	}
	f.logger.Info("Creating Snowflake connector")

	connector, err := NewSnowflakeConnector(ctx, f.cfg.Snowflake)
	if err != nil {
		return nil, fmt.Errorf("failed to create Snowflake connector: %w", err)
	}

	return connector, nil
}

// CreatePostgresConnector creates a new PostgreSQL connector
func (f *ConnectorFactory) CreatePostgresConnector(ctx context.Context) (*PostgresConnector, error) {
	if f.cfg.Postgres == nil {
		return nil, fmt.Errorf("postgreSQL is not configured")
	}
	f.logger.Info("Creating PostgreSQL connector")

	connector, err := NewPostgresConnector(ctx, f.cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connector: %w", err)
	}

	return connector, nil
}

// CreateConfiguredConnectors connects to every configured database. On error
// the connectors already opened are closed.
func (f *ConnectorFactory) CreateConfiguredConnectors(ctx context.Context) ([]DatabaseConnector, error) {
	var connectors []DatabaseConnector
	closeAll := func() {
		for _, c := range connectors {
			c.Close()
		}
	}

	if f.cfg.Snowflake != nil {
		snowConn, err := f.CreateSnowflakeConnector(ctx)
		if err != nil {
			return nil, err
		}
		connectors = append(connectors, snowConn)
	}

	if f.cfg.Postgres != nil {
		pgConn, err := f.CreatePostgresConnector(ctx)
		if err != nil {
			closeAll()
			return nil, err
		}
		connectors = append(connectors, pgConn)
	}

	f.logger.Info("Database connectors ready", zap.Int("count", len(connectors)))
	return connectors, nil
}
