package prediction

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/f1-velocity/internal/features"
	"github.com/stitts-dev/f1-velocity/internal/training"
)

// Tier is the qualitative band of a strength score
type Tier string

const (
	TierElite      Tier = "Elite"
	TierStrong     Tier = "Strong"
	TierMidfield   Tier = "Midfield"
	TierBackmarker Tier = "Backmarker"
	TierNotFound   Tier = "Data Not Found"
)

// TierFor maps a clamped score onto its tier
func TierFor(score float64) Tier {
	switch {
	case score > 85:
		return TierElite
	case score > 70:
		return TierStrong
	case score > 45:
		return TierMidfield
	default:
		return TierBackmarker
	}
}

// Lookup kinds reported in Prediction.Missing
const (
	KindDriver  = "driver"
	KindTeam    = "team"
	KindCircuit = "circuit"
)

var ErrModelNotLoaded = errors.New("model not loaded")

// Prediction is the answer for one driver, team and circuit combination.
// Score is nil when any of the three names is unknown.
type Prediction struct {
	Driver       string   `json:"driver"`
	Team         string   `json:"team"`
	Circuit      string   `json:"circuit"`
	Found        bool     `json:"found"`
	Score        *float64 `json:"score"`
	Tier         Tier     `json:"tier"`
	Missing      []string `json:"missing,omitempty"`
	ModelVersion string   `json:"model_version,omitempty"`
}

// snapshot is one training run's model and lookups, swapped as a unit
type snapshot struct {
	model    *training.ModelArtifact
	drivers  map[string]float64
	teams    map[string]float64
	circuits map[string]float64
}

// Service answers predictions from the artifacts in one directory
type Service struct {
	mu          sync.RWMutex
	artifactDir string
	current     *snapshot
	logger      *logrus.Logger
}

func NewService(artifactDir string, logger *logrus.Logger) *Service {
	return &Service{
		artifactDir: artifactDir,
		logger:      logger,
	}
}

// Reload reads the artifacts from disk and replaces the model and lookups
// together. On error the previously loaded snapshot stays in place.
func (s *Service) Reload() error {
	a, err := training.LoadArtifacts(s.artifactDir)
	if err != nil {
		return fmt.Errorf("load artifacts: %w", err)
	}
	if len(a.Model.Coefficients) != len(features.FeatureNames) {
		return fmt.Errorf("load artifacts: %w: model has %d coefficients",
			training.ErrDimensionMismatch, len(a.Model.Coefficients))
	}

	snap := &snapshot{
		model:    a.Model,
		drivers:  index(a.Drivers),
		teams:    index(a.Teams),
		circuits: index(a.Circuits),
	}

	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"model_version": a.Model.Version,
		"trained_at":    a.Model.TrainedAt,
		"drivers":       len(snap.drivers),
		"teams":         len(snap.teams),
		"circuits":      len(snap.circuits),
	}).Info("Prediction artifacts loaded")
	return nil
}

// Ready reports whether a model has been loaded
func (s *Service) Ready() bool {
	return s.snapshot() != nil
}

// ModelVersion returns the version of the loaded model, or "" if none
func (s *Service) ModelVersion() string {
	if snap := s.snapshot(); snap != nil {
		return snap.model.Version
	}
	return ""
}

// Model returns the loaded model artifact
func (s *Service) Model() (*training.ModelArtifact, error) {
	snap := s.snapshot()
	if snap == nil {
		return nil, ErrModelNotLoaded
	}
	return snap.model, nil
}

// Predict scores a combination. Unknown names yield a not-found prediction,
// never an error; the only error is a missing model.
func (s *Service) Predict(driver, team, circuit string) (Prediction, error) {
	snap := s.snapshot()
	if snap == nil {
		return Prediction{}, ErrModelNotLoaded
	}

	p := Prediction{
		Driver:       driver,
		Team:         team,
		Circuit:      circuit,
		ModelVersion: snap.model.Version,
	}

	driverPower, okDriver := snap.drivers[driver]
	teamPower, okTeam := snap.teams[team]
	circuitDifficulty, okCircuit := snap.circuits[circuit]
	if !okDriver {
		p.Missing = append(p.Missing, KindDriver)
	}
	if !okTeam {
		p.Missing = append(p.Missing, KindTeam)
	}
	if !okCircuit {
		p.Missing = append(p.Missing, KindCircuit)
	}
	if len(p.Missing) > 0 {
		p.Tier = TierNotFound
		return p, nil
	}

	raw, err := snap.model.Predict([]float64{driverPower, teamPower, circuitDifficulty})
	if err != nil {
		return Prediction{}, err
	}
	clamped := features.Clamp(raw)
	score := math.Round(clamped*10) / 10

	p.Found = true
	p.Score = &score
	p.Tier = TierFor(clamped)
	return p, nil
}

// GetPrediction returns the score and tier only. The score is nil when the
// combination is unknown or no model is loaded.
func (s *Service) GetPrediction(driver, team, circuit string) (*float64, Tier) {
	p, err := s.Predict(driver, team, circuit)
	if err != nil {
		s.logger.WithError(err).Warn("Prediction unavailable")
		return nil, TierNotFound
	}
	return p.Score, p.Tier
}

// Names returns the sorted names known to one lookup kind
func (s *Service) Names(kind string) ([]string, error) {
	snap := s.snapshot()
	if snap == nil {
		return nil, ErrModelNotLoaded
	}
	var src map[string]float64
	switch kind {
	case KindDriver:
		src = snap.drivers
	case KindTeam:
		src = snap.teams
	case KindCircuit:
		src = snap.circuits
	default:
		return nil, fmt.Errorf("unknown lookup kind %q", kind)
	}

	names := make([]string, 0, len(src))
	for name := range src {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Service) snapshot() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// index keeps the first value seen for each name
func index(rows []training.LookupRow) map[string]float64 {
	out := make(map[string]float64, len(rows))
	for _, r := range rows {
		if _, dup := out[r.Name]; dup {
			continue
		}
		out[r.Name] = r.Value
	}
	return out
}
