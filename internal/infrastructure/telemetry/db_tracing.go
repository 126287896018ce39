package telemetry

import (
	"fmt"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig configures the otelgorm plugin.
type DBTracingConfig struct {
	Enabled bool
	DBName  string
	// IncludeQueryVariables puts bound values into span statements. Off in production.
	IncludeQueryVariables bool
}

// RegisterDBTracing installs otelgorm on db so every statement becomes a child
// span of the request or sync run that issued it.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.IncludeQueryVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return fmt.Errorf("register otelgorm: %w", err)
	}

	logger.Info("Database tracing enabled",
		zap.String("db_name", cfg.DBName),
		zap.Bool("query_variables", cfg.IncludeQueryVariables),
	)
	return nil
}
