package cli

import (
	"fmt"
	"time"

	urfave "github.com/urfave/cli/v2"

	"github.com/stitts-dev/f1-velocity/internal/training"
)

var trainCmd = &urfave.Command{
	Name:    "train",
	Aliases: []string{"t"},
	Usage:   "Build features from the raw tables, fit the model and write the artifacts",
	UsageText: `f1ctl train                                         # uses DATA_DIR and ARTIFACT_DIR
   f1ctl --data-dir ./data --artifact-dir ./out train`,
	Action: cmdTrain,
}

type trainOutput struct {
	Version      string             `json:"version" yaml:"version"`
	TrainedAt    time.Time          `json:"trained_at" yaml:"trained_at"`
	Samples      int                `json:"samples" yaml:"samples"`
	Intercept    float64            `json:"intercept" yaml:"intercept"`
	Coefficients map[string]float64 `json:"coefficients" yaml:"coefficients"`
	RSquared     float64            `json:"r_squared" yaml:"r_squared"`
	DroppedRows  int                `json:"dropped_rows" yaml:"dropped_rows"`
	Model        string             `json:"model" yaml:"model"`
	DurationMS   int64              `json:"duration_ms" yaml:"duration_ms"`
}

func cmdTrain(c *urfave.Context) error {
	cfg := getConfig(c)

	trainer := training.NewTrainer(cfg.Config.DataDir, cfg.Config.ArtifactDir, cfg.Logger)
	res, err := trainer.Train(c.Context)
	if err != nil {
		return fmt.Errorf("training model: %w", err)
	}

	a := res.Artifact
	coefficients := make(map[string]float64, len(a.Features))
	for i, name := range a.Features {
		coefficients[name] = a.Coefficients[i]
	}

	return encode(c, trainOutput{
		Version:      a.Version,
		TrainedAt:    a.TrainedAt,
		Samples:      a.Samples,
		Intercept:    a.Intercept,
		Coefficients: coefficients,
		RSquared:     a.RSquared,
		DroppedRows:  a.Diagnostics.Dropped(),
		Model:        cfg.Config.ArtifactPath(training.ModelFile),
		DurationMS:   res.Duration.Milliseconds(),
	})
}
