// pkg/cleaner/cleaner.go
package cleaner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/clinical-ingress/pkg/category"
	"github.com/David-Botos/clinical-ingress/pkg/model"
)

// DataCleaner normalises clinical record sets into the cleaned schema
type DataCleaner struct {
	maps     *category.Maps
	pipeline *Pipeline
	logger   *zap.Logger
}

// NewDataCleaner creates a DataCleaner running the default pipeline
func NewDataCleaner(maps *category.Maps, logger *zap.Logger) (*DataCleaner, error) {
	return NewDataCleanerWithPipeline(maps, DefaultPipeline(), logger)
}

// NewDataCleanerWithPipeline creates a DataCleaner running a custom pipeline
func NewDataCleanerWithPipeline(maps *category.Maps, pipeline *Pipeline, logger *zap.Logger) (*DataCleaner, error) {
	if maps == nil || maps.Ethnicity == nil || maps.Sex == nil || maps.TestResults == nil {
		return nil, errors.New("category maps cannot be nil")
	}
	if pipeline == nil {
		return nil, errors.New("pipeline cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &DataCleaner{
		maps:     maps,
		pipeline: pipeline,
		logger:   logger,
	}, nil
}

// Clean runs the pipeline over a copy of frame and returns the cleaned frame
// with the operations performed. The input frame is not modified. Clean is
// safe for concurrent use; each call works on its own copy of the maps.
func (c *DataCleaner) Clean(ctx context.Context, frame *model.Frame) (*model.Frame, []model.CleaningOperation, error) {
	if frame == nil {
		return nil, nil, errors.New("frame cannot be nil")
	}

	run := NewRun(c.maps, c.logger)
	return c.CleanWithRun(ctx, run, frame)
}

// CleanWithRun is Clean with a caller-prepared run
func (c *DataCleaner) CleanWithRun(ctx context.Context, run *Run, frame *model.Frame) (*model.Frame, []model.CleaningOperation, error) {
	start := time.Now()

	cleaned, err := c.pipeline.Run(ctx, run, frame.Clone())
	if err != nil {
		return nil, run.Operations(), fmt.Errorf("cleaning run %s failed: %w", run.ID, err)
	}

	run.logger.Info("Cleaned record set",
		zap.Int("rows", cleaned.Len()),
		zap.Int("input_columns", frame.Width()),
		zap.Int("output_columns", cleaned.Width()),
		zap.Int("operations", len(run.Operations())),
		zap.Duration("duration", time.Since(start)))

	return cleaned, run.Operations(), nil
}

// Stages returns the stage names in execution order
func (c *DataCleaner) Stages() []string {
	return c.pipeline.Names()
}
