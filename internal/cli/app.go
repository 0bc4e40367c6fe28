package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	urfave "github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/stitts-dev/f1-velocity/pkg/config"
	"github.com/stitts-dev/f1-velocity/pkg/logger"
)

const (
	appConfigKey = "app-config"

	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""

	debugFlag = &urfave.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}

	dataDirFlag = &urfave.StringFlag{
		Name:  "data-dir",
		Usage: "Directory holding the raw CSV tables (overrides DATA_DIR)",
	}

	artifactDirFlag = &urfave.StringFlag{
		Name:  "artifact-dir",
		Usage: "Directory for the model and lookup files (overrides ARTIFACT_DIR)",
	}

	formatFlag = &urfave.StringFlag{
		Name:  "format",
		Usage: "Output format [json, yaml]",
		Value: formatJSON,
	}
)

// Execute creates and runs the CLI application.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp()
	if err := app.RunContext(ctx, os.Args); err != nil {
		logrus.WithError(err).Error("fatal error")
		stop()
		os.Exit(1)
	}
}

type appConfig struct {
	Config *config.Config
	Logger *logrus.Logger
	Format string
}

func getConfig(c *urfave.Context) *appConfig {
	return c.App.Metadata[appConfigKey].(*appConfig)
}

func newApp() *urfave.App {
	return &urfave.App{
		Name:                 "f1ctl",
		Version:              fmt.Sprintf("%s (%s - %s)", version, commit, date),
		Compiled:             time.Now(),
		EnableBashCompletion: true,
		HideHelpCommand:      true,
		Usage:                "Train, query and maintain the F1 strength model",
		Flags: []urfave.Flag{
			debugFlag,
			dataDirFlag,
			artifactDirFlag,
			formatFlag,
		},
		Commands: []*urfave.Command{
			trainCmd,
			predictCmd,
			syncImagesCmd,
			hallOfFameCmd,
		},
		Before: func(c *urfave.Context) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if c.IsSet(dataDirFlag.Name) {
				cfg.DataDir = c.String(dataDirFlag.Name)
			}
			if c.IsSet(artifactDirFlag.Name) {
				cfg.ArtifactDir = c.String(artifactDirFlag.Name)
			}

			level := cfg.LogLevel
			if c.Bool(debugFlag.Name) {
				level = "debug"
			}
			// results go to Writer, logs to ErrWriter
			log := logger.InitLoggerWithOutput(level, cfg.IsDevelopment(), c.App.ErrWriter)

			format := formatJSON
			switch f := c.String(formatFlag.Name); f {
			case formatJSON:
			case formatYAML, "yml":
				format = formatYAML
			default:
				return fmt.Errorf("unsupported format %q", f)
			}

			c.App.Metadata[appConfigKey] = &appConfig{
				Config: cfg,
				Logger: log,
				Format: format,
			}
			return nil
		},
	}
}

func encode(c *urfave.Context, v any) error {
	if getConfig(c).Format == formatYAML {
		e := yaml.NewEncoder(c.App.Writer)
		defer e.Close()
		return e.Encode(v)
	}
	e := json.NewEncoder(c.App.Writer)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
