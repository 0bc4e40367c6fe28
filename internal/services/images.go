package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/f1-velocity/internal/providers"
	"github.com/stitts-dev/f1-velocity/internal/training"
)

// Where an image URL came from
const (
	SourceLookup   = "lookup"
	SourceAPI      = "api"
	SourceFallback = "fallback"
)

// Image is the URL served for one driver or team
type Image struct {
	Entity providers.Entity `json:"entity"`
	Name   string           `json:"name"`
	URL    string           `json:"url"`
	Source string           `json:"source"`
}

// ImageService serves image URLs from the synced lookups, falling back to
// a live lookup and finally to a fixed placeholder.
type ImageService struct {
	mu          sync.RWMutex
	artifactDir string
	urls        map[providers.Entity]map[string]string
	fetcher     ImageFetcher
	fallbackURL string
	logger      *logrus.Logger
}

// NewImageService builds the service. fetcher may be nil when no API key
// is configured.
func NewImageService(artifactDir string, fetcher ImageFetcher, fallbackURL string, logger *logrus.Logger) *ImageService {
	return &ImageService{
		artifactDir: artifactDir,
		urls:        make(map[providers.Entity]map[string]string),
		fetcher:     fetcher,
		fallbackURL: fallbackURL,
		logger:      logger,
	}
}

// Load reads the synced image lookups. A lookup that was never synced is
// treated as empty.
func (s *ImageService) Load() error {
	urls := make(map[providers.Entity]map[string]string, 2)
	for entity, l := range map[providers.Entity]training.ImageLookup{
		providers.EntityDriver: training.DriverImageLookup,
		providers.EntityTeam:   training.TeamImageLookup,
	} {
		byName := make(map[string]string)
		rows, err := training.ReadImageLookup(s.artifactDir, l)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", l.File, err)
		}
		for _, r := range rows {
			if _, dup := byName[r.Name]; !dup && r.URL != "" {
				byName[r.Name] = r.URL
			}
		}
		urls[entity] = byName
	}

	s.mu.Lock()
	s.urls = urls
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"component": "images",
		"drivers":   len(urls[providers.EntityDriver]),
		"teams":     len(urls[providers.EntityTeam]),
	}).Info("Image lookups loaded")
	return nil
}

// Image returns the best known URL for name. It never fails: unknown names
// resolve to the fallback URL.
func (s *ImageService) Image(ctx context.Context, entity providers.Entity, name string) Image {
	img := Image{Entity: entity, Name: name}

	s.mu.RLock()
	url, ok := s.urls[entity][name]
	s.mu.RUnlock()
	if ok {
		img.URL, img.Source = url, SourceLookup
		return img
	}

	if s.fetcher != nil && name != "" {
		res := s.fetcher.LookupImage(ctx, entity, name)
		if res.Status == providers.StatusFound {
			img.URL, img.Source = res.URL, SourceAPI
			return img
		}
	}

	img.URL, img.Source = s.fallbackURL, SourceFallback
	return img
}
