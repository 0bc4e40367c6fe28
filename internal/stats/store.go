package stats

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/stitts-dev/f1-velocity/internal/dataset"
	"github.com/stitts-dev/f1-velocity/internal/models"
	"github.com/stitts-dev/f1-velocity/pkg/database"
)

const (
	DefaultHallOfFameLimit = 5
	MaxHallOfFameLimit     = 50

	insertBatchSize = 500
)

var ErrDriverNotFound = errors.New("driver not found")

// Overview summarises the loaded history
type Overview struct {
	GrandPrix int64 `json:"grand_prix"`
	Drivers   int64 `json:"drivers"`
	Results   int64 `json:"results"`
	FirstYear int   `json:"first_year"`
	LastYear  int   `json:"last_year"`
}

// DriverWins is one hall of fame entry
type DriverWins struct {
	Driver string `json:"driver"`
	Wins   int64  `json:"wins"`
}

// DriverProfile is the career summary of one driver. Team is the team of
// the driver's earliest recorded race.
type DriverProfile struct {
	Driver    string  `json:"driver"`
	Team      string  `json:"team"`
	TeamColor string  `json:"team_color"`
	Points    float64 `json:"points"`
	Wins      int64   `json:"wins"`
	Podiums   int64   `json:"podiums"`
	Races     int64   `json:"races"`
}

// Store answers the historical stats views from an SQL table of joined results
type Store struct {
	db     *database.DB
	logger *logrus.Logger
}

func NewStore(db *database.DB, logger *logrus.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// Load replaces the table contents with the joined results of t
func (s *Store) Load(ctx context.Context, t *dataset.Tables) (int, error) {
	rows, skipped, err := BuildRows(t)
	if err != nil {
		return 0, err
	}
	if skipped > 0 {
		s.logger.WithFields(logrus.Fields{
			"component": "stats",
			"skipped":   skipped,
		}).Warn("Skipped results of races without a season")
	}

	if err := s.db.WithContext(ctx).AutoMigrate(&models.RaceResult{}); err != nil {
		return 0, fmt.Errorf("migrate race results: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.RaceResult{}).Error; err != nil {
			return fmt.Errorf("clear race results: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert race results: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.WithFields(logrus.Fields{
		"component": "stats",
		"rows":      len(rows),
	}).Info("Stats tables loaded")
	return len(rows), nil
}

// BuildRows joins results to races, drivers and constructors, and picks up
// the circuit name where one exists. Rows are ordered by season and race.
// Results of races without a readable year are left out and counted.
func BuildRows(t *dataset.Tables) ([]models.RaceResult, int, error) {
	joined := t.Results.InnerJoin(t.Races, dataset.ColRaceID)
	joined = joined.InnerJoin(t.Drivers, dataset.ColDriverID)
	joined = joined.InnerJoin(t.Constructors, dataset.ColConstructorID)
	joined = joined.LeftJoin(t.Circuits, dataset.ColCircuitID)
	if joined.Err != nil {
		return nil, 0, fmt.Errorf("join stats tables: %w", joined.Err)
	}
	rows, skipped := rowsFrom(joined)
	return rows, skipped, nil
}

func rowsFrom(df dataframe.DataFrame) ([]models.RaceResult, int) {
	years := df.Col(dataset.ColYear).Float()
	raceIDs := dataset.Strings(df, dataset.ColRaceID)
	raceNames := dataset.Strings(df, dataset.ColRaceName)
	circuits := dataset.Strings(df, dataset.ColCircuitName)
	driverIDs := dataset.Strings(df, dataset.ColDriverID)
	forenames := dataset.Strings(df, dataset.ColForename)
	surnames := dataset.Strings(df, dataset.ColSurname)
	teams := dataset.Strings(df, dataset.ColTeamName)
	positions := df.Col(dataset.ColPositionOrder).Float()
	points := df.Col(dataset.ColPoints).Float()

	rows := make([]models.RaceResult, 0, len(years))
	skipped := 0
	for i := range years {
		if math.IsNaN(years[i]) {
			skipped++
			continue
		}
		year := int(years[i])
		r := models.RaceResult{
			RaceID:         raceIDs[i],
			Year:           year,
			Decade:         year / 10 * 10,
			RaceName:       raceNames[i],
			CircuitName:    circuits[i],
			DriverID:       driverIDs[i],
			DriverFullName: forenames[i] + " " + surnames[i],
			TeamName:       teams[i],
		}
		if !math.IsNaN(points[i]) {
			r.Points = points[i]
		}
		if p := positions[i]; !math.IsNaN(p) {
			pos := int(p)
			r.Position = &pos
			r.IsWin = pos == 1
			r.IsPodium = pos >= 1 && pos <= 3
		}
		rows = append(rows, r)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Year != rows[j].Year {
			return rows[i].Year < rows[j].Year
		}
		return numericLess(rows[i].RaceID, rows[j].RaceID)
	})
	return rows, skipped
}

func (s *Store) results(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.RaceResult{})
}

// Overview counts grand prix, drivers and results
func (s *Store) Overview(ctx context.Context) (*Overview, error) {
	var o Overview
	if err := s.results(ctx).Distinct("race_id").Count(&o.GrandPrix).Error; err != nil {
		return nil, fmt.Errorf("count grand prix: %w", err)
	}
	if err := s.results(ctx).Distinct("driver_full_name").Count(&o.Drivers).Error; err != nil {
		return nil, fmt.Errorf("count drivers: %w", err)
	}
	if err := s.results(ctx).Count(&o.Results).Error; err != nil {
		return nil, fmt.Errorf("count results: %w", err)
	}
	if o.Results > 0 {
		var span struct {
			FirstYear int
			LastYear  int
		}
		if err := s.results(ctx).Select("MIN(year) AS first_year, MAX(year) AS last_year").Scan(&span).Error; err != nil {
			return nil, fmt.Errorf("season span: %w", err)
		}
		o.FirstYear, o.LastYear = span.FirstYear, span.LastYear
	}
	return &o, nil
}

// Decades lists the decades with at least one result, ascending
func (s *Store) Decades(ctx context.Context) ([]int, error) {
	var decades []int
	if err := s.results(ctx).Distinct("decade").Order("decade").Pluck("decade", &decades).Error; err != nil {
		return nil, fmt.Errorf("list decades: %w", err)
	}
	return decades, nil
}

// HallOfFame ranks the drivers of a decade by wins, ties broken by name
func (s *Store) HallOfFame(ctx context.Context, decade, limit int) ([]DriverWins, error) {
	if limit <= 0 {
		limit = DefaultHallOfFameLimit
	}
	if limit > MaxHallOfFameLimit {
		limit = MaxHallOfFameLimit
	}

	var out []DriverWins
	err := s.results(ctx).
		Select("driver_full_name AS driver, SUM(CASE WHEN is_win THEN 1 ELSE 0 END) AS wins").
		Where("decade = ?", decade).
		Group("driver_full_name").
		Order("wins DESC, driver ASC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("hall of fame %d: %w", decade, err)
	}
	return out, nil
}

// DriverProfile returns the career summary of the driver with this full name
func (s *Store) DriverProfile(ctx context.Context, name string) (*DriverProfile, error) {
	var first models.RaceResult
	err := s.results(ctx).Where("driver_full_name = ?", name).Order("year ASC, id ASC").Take(&first).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrDriverNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("driver profile: %w", err)
	}

	var totals struct {
		Points  float64
		Wins    int64
		Podiums int64
		Races   int64
	}
	err = s.results(ctx).
		Select("COALESCE(SUM(points), 0) AS points, " +
			"SUM(CASE WHEN is_win THEN 1 ELSE 0 END) AS wins, " +
			"SUM(CASE WHEN is_podium THEN 1 ELSE 0 END) AS podiums, " +
			"COUNT(*) AS races").
		Where("driver_full_name = ?", name).
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("driver totals: %w", err)
	}

	return &DriverProfile{
		Driver:    name,
		Team:      first.TeamName,
		TeamColor: TeamColor(first.TeamName),
		Points:    totals.Points,
		Wins:      totals.Wins,
		Podiums:   totals.Podiums,
		Races:     totals.Races,
	}, nil
}

// Drivers lists every driver full name, sorted
func (s *Store) Drivers(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "driver_full_name")
}

// Teams lists every team name, sorted
func (s *Store) Teams(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "team_name")
}

// Circuits lists every named circuit, sorted
func (s *Store) Circuits(ctx context.Context) ([]string, error) {
	var names []string
	err := s.results(ctx).Distinct("circuit_name").Where("circuit_name <> ''").Order("circuit_name").Pluck("circuit_name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("list circuit_name: %w", err)
	}
	return names, nil
}

func (s *Store) distinct(ctx context.Context, column string) ([]string, error) {
	var names []string
	if err := s.results(ctx).Distinct(column).Order(column).Pluck(column, &names).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", column, err)
	}
	return names, nil
}

func numericLess(a, b string) bool {
	ai, errA := strconv.Atoi(a)
	bi, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return ai < bi
	}
	return a < b
}
