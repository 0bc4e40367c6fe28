package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/f1-velocity/internal/providers"
	"github.com/stitts-dev/f1-velocity/internal/training"
)

// ImageFetcher looks up one image by name
type ImageFetcher interface {
	LookupImage(ctx context.Context, entity providers.Entity, name string) providers.ImageResult
}

// EntityReport counts the outcome of syncing one lookup
type EntityReport struct {
	Total  int                           `json:"total"`
	Reused int                           `json:"reused"`
	Counts map[providers.ImageStatus]int `json:"counts"`
}

// SyncReport is the outcome of one image sync run
type SyncReport struct {
	Drivers  EntityReport  `json:"drivers"`
	Teams    EntityReport  `json:"teams"`
	Duration time.Duration `json:"duration"`
}

// ImageSyncService attaches image URLs to the driver and team lookups
type ImageSyncService struct {
	fetcher     ImageFetcher
	artifactDir string
	logger      *logrus.Logger
}

func NewImageSyncService(fetcher ImageFetcher, artifactDir string, logger *logrus.Logger) *ImageSyncService {
	return &ImageSyncService{
		fetcher:     fetcher,
		artifactDir: artifactDir,
		logger:      logger,
	}
}

// Sync writes the driver and team image lookups. Names that already carry
// a URL in a previous image lookup are not fetched again.
func (s *ImageSyncService) Sync(ctx context.Context) (*SyncReport, error) {
	start := time.Now()
	report := &SyncReport{}

	var err error
	if report.Drivers, err = s.syncEntity(ctx, providers.EntityDriver, training.DriverImageLookup); err != nil {
		return nil, err
	}
	if report.Teams, err = s.syncEntity(ctx, providers.EntityTeam, training.TeamImageLookup); err != nil {
		return nil, err
	}
	report.Duration = time.Since(start)

	s.logger.WithFields(logrus.Fields{
		"component":     "image_sync",
		"drivers":       report.Drivers.Total,
		"drivers_found": report.Drivers.Counts[providers.StatusFound],
		"teams":         report.Teams.Total,
		"teams_found":   report.Teams.Counts[providers.StatusFound],
		"duration":      report.Duration,
	}).Info("Image sync completed")
	return report, nil
}

func (s *ImageSyncService) syncEntity(ctx context.Context, entity providers.Entity, l training.ImageLookup) (EntityReport, error) {
	report := EntityReport{Counts: make(map[providers.ImageStatus]int)}
	log := s.logger.WithFields(logrus.Fields{
		"component": "image_sync",
		"entity":    entity,
	})

	rows, err := training.ReadLookup(s.artifactDir, l.Source)
	if err != nil {
		return report, fmt.Errorf("read %s: %w", l.Source.File, err)
	}

	known := make(map[string]string)
	previous, err := training.ReadImageLookup(s.artifactDir, l)
	switch {
	case err == nil:
		for _, p := range previous {
			if p.URL != "" {
				known[p.Name] = p.URL
			}
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		log.WithError(err).Warn("Ignoring unreadable previous image lookup")
	}

	out := make([]training.ImageLookupRow, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Total++

		if url, ok := known[row.Name]; ok {
			report.Reused++
			report.Counts[providers.StatusFound]++
			out = append(out, training.ImageLookupRow{Name: row.Name, Value: row.Value, URL: url})
			continue
		}

		res := s.fetcher.LookupImage(ctx, entity, row.Name)
		report.Counts[res.Status]++
		if res.Status != providers.StatusFound {
			log.WithFields(logrus.Fields{
				"name":   row.Name,
				"status": res.Status,
			}).WithError(res.Err).Debug("No image for name")
		}
		out = append(out, training.ImageLookupRow{Name: row.Name, Value: row.Value, URL: res.URL})
	}

	if err := training.WriteImageLookup(s.artifactDir, l, out); err != nil {
		return report, err
	}
	return report, nil
}
