package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ngoclaw/alger/internal/application"
	"github.com/ngoclaw/alger/internal/domain/entity"
)

// pipelineFixture mirrors the shape of a hand-authored pipeline YAML file:
// a name/description header plus the free-form editor graph under "graph".
type pipelineFixture struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Graph       map[string]any `yaml:"graph"`
}

// seedPipeline reads a pipeline fixture in the teacher's config-file idiom
// (yaml.v3, not just through viper) and upserts it via the persistence
// gateway, matching other_examples/streamy's own pipeline-from-YAML loading.
func seedPipeline(ctx context.Context, app *application.App, path string, log *zap.Logger) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed fixture %s: %w", path, err)
	}

	var fixture pipelineFixture
	if err := yaml.Unmarshal(raw, &fixture); err != nil {
		return fmt.Errorf("failed to parse seed fixture %s: %w", path, err)
	}
	if fixture.ID == "" {
		return fmt.Errorf("seed fixture %s is missing an id", path)
	}

	pipeline := entity.Pipeline{
		ID:          fixture.ID,
		Name:        fixture.Name,
		Description: fixture.Description,
		FullGraph:   fixture.Graph,
	}

	if _, err := app.Gateway().UpsertPipeline(ctx, pipeline); err != nil {
		return fmt.Errorf("failed to upsert seeded pipeline: %w", err)
	}

	log.Info("seeded pipeline",
		zap.String("id", pipeline.ID),
		zap.String("name", pipeline.Name),
		zap.String("source", path),
	)
	return nil
}
