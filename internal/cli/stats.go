package cli

import (
	"fmt"

	urfave "github.com/urfave/cli/v2"

	"github.com/stitts-dev/f1-velocity/internal/dataset"
	"github.com/stitts-dev/f1-velocity/internal/stats"
	"github.com/stitts-dev/f1-velocity/pkg/database"
)

var (
	decadeFlag = &urfave.IntFlag{
		Name:     "decade",
		Usage:    "First year of the decade, e.g. 1990",
		Required: true,
	}

	limitFlag = &urfave.IntFlag{
		Name:  "limit",
		Usage: fmt.Sprintf("Number of drivers to list (1-%d)", stats.MaxHallOfFameLimit),
		Value: stats.DefaultHallOfFameLimit,
	}

	hallOfFameCmd = &urfave.Command{
		Name:      "hall-of-fame",
		Aliases:   []string{"hof"},
		Usage:     "List the drivers with the most wins in a decade",
		UsageText: `f1ctl hall-of-fame --decade 1990 --limit 3`,
		Action:    cmdHallOfFame,
		Flags: []urfave.Flag{
			decadeFlag,
			limitFlag,
		},
	}
)

type winsOutput struct {
	Driver string `json:"driver" yaml:"driver"`
	Wins   int64  `json:"wins" yaml:"wins"`
}

func cmdHallOfFame(c *urfave.Context) error {
	cfg := getConfig(c)

	decade := c.Int(decadeFlag.Name)
	if decade%10 != 0 {
		return fmt.Errorf("decade must be a year divisible by 10, got %d", decade)
	}
	limit := c.Int(limitFlag.Name)
	if limit < 1 || limit > stats.MaxHallOfFameLimit {
		return fmt.Errorf("limit must be between 1 and %d, got %d", stats.MaxHallOfFameLimit, limit)
	}

	tables, err := dataset.Load(cfg.Config.DataDir)
	if err != nil {
		return fmt.Errorf("loading raw tables: %w", err)
	}

	db, err := database.NewConnection(cfg.Config.StatsDSN, false)
	if err != nil {
		return fmt.Errorf("opening stats database: %w", err)
	}
	defer db.Close()

	store := stats.NewStore(db, cfg.Logger)
	if _, err := store.Load(c.Context, tables); err != nil {
		return fmt.Errorf("loading stats: %w", err)
	}

	top, err := store.HallOfFame(c.Context, decade, limit)
	if err != nil {
		return fmt.Errorf("querying hall of fame: %w", err)
	}

	out := make([]winsOutput, 0, len(top))
	for _, w := range top {
		out = append(out, winsOutput{Driver: w.Driver, Wins: w.Wins})
	}
	return encode(c, out)
}
