package cli

import (
	"fmt"

	urfave "github.com/urfave/cli/v2"

	"github.com/stitts-dev/f1-velocity/internal/providers"
	"github.com/stitts-dev/f1-velocity/internal/services"
)

var syncImagesCmd = &urfave.Command{
	Name:      "sync-images",
	Aliases:   []string{"s"},
	Usage:     "Attach API-Sports image URLs to the driver and team lookups",
	UsageText: `APISPORTS_API_KEY=... f1ctl sync-images`,
	Action:    cmdSyncImages,
}

type entityOutput struct {
	Total  int            `json:"total" yaml:"total"`
	Reused int            `json:"reused" yaml:"reused"`
	Counts map[string]int `json:"counts" yaml:"counts"`
}

type syncOutput struct {
	Drivers    entityOutput `json:"drivers" yaml:"drivers"`
	Teams      entityOutput `json:"teams" yaml:"teams"`
	DurationMS int64        `json:"duration_ms" yaml:"duration_ms"`
}

func cmdSyncImages(c *urfave.Context) error {
	cfg := getConfig(c)

	client, err := services.NewImageClient(c.Context, cfg.Config, services.NewImageBreaker(cfg.Config, cfg.Logger), cfg.Logger)
	if err != nil {
		return fmt.Errorf("creating image client: %w", err)
	}

	report, err := services.NewImageSyncService(client, cfg.Config.ArtifactDir, cfg.Logger).Sync(c.Context)
	if err != nil {
		return fmt.Errorf("syncing images: %w", err)
	}

	return encode(c, syncOutput{
		Drivers:    toEntityOutput(report.Drivers),
		Teams:      toEntityOutput(report.Teams),
		DurationMS: report.Duration.Milliseconds(),
	})
}

func toEntityOutput(r services.EntityReport) entityOutput {
	counts := map[string]int{
		string(providers.StatusFound):            0,
		string(providers.StatusNotFound):         0,
		string(providers.StatusTransportFailure): 0,
		string(providers.StatusMalformed):        0,
	}
	for status, n := range r.Counts {
		counts[string(status)] = n
	}
	return entityOutput{Total: r.Total, Reused: r.Reused, Counts: counts}
}
