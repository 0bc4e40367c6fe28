package training

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/f1-velocity/internal/dataset"
	"github.com/stitts-dev/f1-velocity/internal/features"
)

// Trainer runs the full pipeline from raw tables to persisted artifacts
type Trainer struct {
	dataDir     string
	artifactDir string
	builder     *features.Builder
	logger      *logrus.Logger
	now         func() time.Time
}

// Result describes a completed training run
type Result struct {
	Artifact *ModelArtifact
	Features *features.FeatureSet
	Duration time.Duration
}

func NewTrainer(dataDir, artifactDir string, logger *logrus.Logger) *Trainer {
	return &Trainer{
		dataDir:     dataDir,
		artifactDir: artifactDir,
		builder:     features.NewBuilder(logger),
		logger:      logger,
		now:         time.Now,
	}
}

// Train loads the raw tables, builds features, fits the model and writes
// the artifacts.
func (t *Trainer) Train(ctx context.Context) (*Result, error) {
	start := t.now()
	t.logger.WithField("data_dir", t.dataDir).Info("Training strength model")

	tables, err := dataset.Load(t.dataDir)
	if err != nil {
		return nil, fmt.Errorf("load raw tables: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs, err := t.builder.Build(tables)
	if err != nil {
		return nil, fmt.Errorf("build features: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model, err := Fit(fs)
	if err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}

	artifact := &ModelArtifact{
		Version:     uuid.New().String(),
		TrainedAt:   t.now().UTC(),
		Features:    append([]string(nil), features.FeatureNames...),
		LinearModel: *model,
		Diagnostics: fs.Diagnostics,
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := SaveArtifacts(t.artifactDir, artifact, fs); err != nil {
		return nil, fmt.Errorf("save artifacts: %w", err)
	}

	result := &Result{Artifact: artifact, Features: fs, Duration: t.now().Sub(start)}
	t.logger.WithFields(logrus.Fields{
		"version":      artifact.Version,
		"samples":      model.Samples,
		"intercept":    model.Intercept,
		"coefficients": model.Coefficients,
		"r_squared":    model.RSquared,
		"dropped_rows": fs.Diagnostics.Dropped(),
		"duration_ms":  result.Duration.Milliseconds(),
		"artifact_dir": t.artifactDir,
	}).Info("Model trained and saved")

	return result, nil
}

// Fit runs OLS over the training rows of fs
func Fit(fs *features.FeatureSet) (*LinearModel, error) {
	rows := fs.TrainingRows()
	x := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		x[i] = r.Features()
		y[i] = r.Score
	}
	return FitOLS(x, y)
}
