package cli

import (
	"fmt"

	urfave "github.com/urfave/cli/v2"

	"github.com/stitts-dev/f1-velocity/internal/prediction"
)

var (
	driverFlag = &urfave.StringFlag{
		Name:     "driver",
		Usage:    "Driver full name, e.g. \"Lewis Hamilton\"",
		Required: true,
	}

	teamFlag = &urfave.StringFlag{
		Name:     "team",
		Usage:    "Constructor name, e.g. \"Mercedes\"",
		Required: true,
	}

	circuitFlag = &urfave.StringFlag{
		Name:     "circuit",
		Usage:    "Circuit name, e.g. \"Silverstone Circuit\"",
		Required: true,
	}

	predictCmd = &urfave.Command{
		Name:      "predict",
		Aliases:   []string{"p"},
		Usage:     "Score a driver, team and circuit combination with the trained model",
		UsageText: `f1ctl predict --driver "Lewis Hamilton" --team Mercedes --circuit "Silverstone Circuit"`,
		Action:    cmdPredict,
		Flags: []urfave.Flag{
			driverFlag,
			teamFlag,
			circuitFlag,
		},
	}
)

type predictOutput struct {
	Driver       string   `json:"driver" yaml:"driver"`
	Team         string   `json:"team" yaml:"team"`
	Circuit      string   `json:"circuit" yaml:"circuit"`
	Score        *float64 `json:"score" yaml:"score"`
	Tier         string   `json:"tier" yaml:"tier"`
	Missing      []string `json:"missing,omitempty" yaml:"missing,omitempty"`
	ModelVersion string   `json:"model_version" yaml:"model_version"`
}

func cmdPredict(c *urfave.Context) error {
	cfg := getConfig(c)

	predictor := prediction.NewService(cfg.Config.ArtifactDir, cfg.Logger)
	if err := predictor.Reload(); err != nil {
		return fmt.Errorf("loading artifacts from %s (run `f1ctl train` first): %w", cfg.Config.ArtifactDir, err)
	}

	p, err := predictor.Predict(c.String(driverFlag.Name), c.String(teamFlag.Name), c.String(circuitFlag.Name))
	if err != nil {
		return fmt.Errorf("predicting: %w", err)
	}

	return encode(c, predictOutput{
		Driver:       p.Driver,
		Team:         p.Team,
		Circuit:      p.Circuit,
		Score:        p.Score,
		Tier:         string(p.Tier),
		Missing:      p.Missing,
		ModelVersion: p.ModelVersion,
	})
}
