package features

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/f1-velocity/internal/dataset"
)

const ColStrengthScore = "strength_score"

// Feature column names, in model coefficient order
const (
	FeatureDriverPower       = "driver_power"
	FeatureTeamPower         = "team_power"
	FeatureCircuitDifficulty = "circuit_difficulty"
)

var FeatureNames = []string{FeatureDriverPower, FeatureTeamPower, FeatureCircuitDifficulty}

var ErrNoQualifyingResults = errors.New("no results left after joins and score filtering")

// Rating is the mean strength score of one driver, constructor or circuit.
// Name is empty for a circuit id with no row in the circuits table.
type Rating struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Diagnostics counts the rows lost at each stage of the build
type Diagnostics struct {
	Results              int `json:"results"`
	DroppedNoRace        int `json:"dropped_no_race"`
	DroppedNoDriver      int `json:"dropped_no_driver"`
	DroppedNoConstructor int `json:"dropped_no_constructor"`
	MissingScore         int `json:"missing_score"`
	Qualified            int `json:"qualified"`
	UnnamedCircuits      int `json:"unnamed_circuits"`
}

// Dropped is the number of results lost to inner joins
func (d Diagnostics) Dropped() int {
	return d.DroppedNoRace + d.DroppedNoDriver + d.DroppedNoConstructor
}

// FeatureSet is the output of one build
type FeatureSet struct {
	// Results holds the joined rows that carry a strength score
	Results     dataframe.DataFrame
	Drivers     []Rating
	Teams       []Rating
	Circuits    []Rating
	Diagnostics Diagnostics
}

// TrainingRow is one qualifying result with its three ratings
type TrainingRow struct {
	DriverPower       float64
	TeamPower         float64
	CircuitDifficulty float64
	Score             float64
}

// Features returns the row's inputs in FeatureNames order
func (r TrainingRow) Features() []float64 {
	return []float64{r.DriverPower, r.TeamPower, r.CircuitDifficulty}
}

type Builder struct {
	logger *logrus.Logger
}

func NewBuilder(logger *logrus.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build scores every result, joins it to its race, driver and constructor,
// and averages the scores per driver, constructor and circuit.
func (b *Builder) Build(t *dataset.Tables) (*FeatureSet, error) {
	var diag Diagnostics
	diag.Results = t.Results.Nrow()

	scored, err := withScores(t.Results)
	if err != nil {
		return nil, err
	}

	joined, dropped, err := innerJoin(scored, t.Races.Select([]string{dataset.ColRaceID, dataset.ColCircuitID}), dataset.ColRaceID)
	if err != nil {
		return nil, fmt.Errorf("join races: %w", err)
	}
	diag.DroppedNoRace = dropped

	joined, dropped, err = innerJoin(joined, t.Drivers, dataset.ColDriverID)
	if err != nil {
		return nil, fmt.Errorf("join drivers: %w", err)
	}
	diag.DroppedNoDriver = dropped

	joined, dropped, err = innerJoin(joined, t.Constructors, dataset.ColConstructorID)
	if err != nil {
		return nil, fmt.Errorf("join constructors: %w", err)
	}
	diag.DroppedNoConstructor = dropped

	scores := joined.Col(ColStrengthScore).Float()
	keep := make([]int, 0, len(scores))
	for i, s := range scores {
		if math.IsNaN(s) {
			diag.MissingScore++
			continue
		}
		keep = append(keep, i)
	}
	diag.Qualified = len(keep)
	if len(keep) == 0 {
		b.logDiagnostics(diag)
		return nil, ErrNoQualifyingResults
	}
	qualified := joined.Subset(keep)
	if qualified.Err != nil {
		return nil, fmt.Errorf("filter scored results: %w", qualified.Err)
	}

	fs := &FeatureSet{Results: qualified}

	driverNames := namesByID(qualified, dataset.ColDriverID, func(i int, cols map[string][]string) string {
		return cols[dataset.ColForename][i] + " " + cols[dataset.ColSurname][i]
	}, dataset.ColForename, dataset.ColSurname)
	if fs.Drivers, err = ratings(qualified, dataset.ColDriverID, driverNames); err != nil {
		return nil, fmt.Errorf("driver ratings: %w", err)
	}

	teamNames := namesByID(qualified, dataset.ColConstructorID, func(i int, cols map[string][]string) string {
		return cols[dataset.ColTeamName][i]
	}, dataset.ColTeamName)
	if fs.Teams, err = ratings(qualified, dataset.ColConstructorID, teamNames); err != nil {
		return nil, fmt.Errorf("team ratings: %w", err)
	}

	circuitNames := namesByID(t.Circuits, dataset.ColCircuitID, func(i int, cols map[string][]string) string {
		return cols[dataset.ColCircuitName][i]
	}, dataset.ColCircuitName)
	if fs.Circuits, err = ratings(qualified, dataset.ColCircuitID, circuitNames); err != nil {
		return nil, fmt.Errorf("circuit ratings: %w", err)
	}
	for _, c := range fs.Circuits {
		if c.Name == "" {
			diag.UnnamedCircuits++
		}
	}

	fs.Diagnostics = diag
	b.logDiagnostics(diag)
	b.logger.WithFields(logrus.Fields{
		"drivers":  len(fs.Drivers),
		"teams":    len(fs.Teams),
		"circuits": len(fs.Circuits),
	}).Info("Built rating tables")

	return fs, nil
}

func (b *Builder) logDiagnostics(d Diagnostics) {
	entry := b.logger.WithFields(logrus.Fields{
		"results":                d.Results,
		"dropped_no_race":        d.DroppedNoRace,
		"dropped_no_driver":      d.DroppedNoDriver,
		"dropped_no_constructor": d.DroppedNoConstructor,
		"missing_score":          d.MissingScore,
		"qualified":              d.Qualified,
	})
	if d.Dropped() > 0 {
		entry.Warn("Results dropped by inner joins")
		return
	}
	entry.Info("Joined results")
}

// TrainingRows pairs every qualifying result with its driver, team and
// circuit rating.
func (fs *FeatureSet) TrainingRows() []TrainingRow {
	driver := byID(fs.Drivers)
	team := byID(fs.Teams)
	circuit := byID(fs.Circuits)

	driverIDs := dataset.Strings(fs.Results, dataset.ColDriverID)
	teamIDs := dataset.Strings(fs.Results, dataset.ColConstructorID)
	circuitIDs := dataset.Strings(fs.Results, dataset.ColCircuitID)
	scores := fs.Results.Col(ColStrengthScore).Float()

	rows := make([]TrainingRow, len(scores))
	for i := range scores {
		rows[i] = TrainingRow{
			DriverPower:       driver[driverIDs[i]],
			TeamPower:         team[teamIDs[i]],
			CircuitDifficulty: circuit[circuitIDs[i]],
			Score:             scores[i],
		}
	}
	return rows
}

func withScores(results dataframe.DataFrame) (dataframe.DataFrame, error) {
	positions := results.Col(dataset.ColPositionOrder).Float()
	ranks := dataset.Strings(results, dataset.ColRank)

	scores := make([]float64, len(positions))
	for i, p := range positions {
		scores[i] = StrengthScore(p, ranks[i])
	}

	scored := results.Mutate(series.New(scores, series.Float, ColStrengthScore))
	if scored.Err != nil {
		return scored, fmt.Errorf("add strength score: %w", scored.Err)
	}
	return scored, nil
}

// innerJoin joins left to right on key and reports how many left rows found
// no partner. Missing keys never match.
func innerJoin(left, right dataframe.DataFrame, key string) (dataframe.DataFrame, int, error) {
	if right.Err != nil {
		return right, 0, right.Err
	}

	known := make(map[string]struct{}, right.Nrow())
	for _, id := range dataset.Strings(right, key) {
		if id != "" {
			known[id] = struct{}{}
		}
	}
	unmatched := 0
	for _, id := range dataset.Strings(left, key) {
		if _, ok := known[id]; !ok || id == "" {
			unmatched++
		}
	}

	joined := left.InnerJoin(right, key)
	if joined.Err != nil {
		return joined, unmatched, joined.Err
	}
	return joined, unmatched, nil
}

// ratings averages the strength score per id and returns one Rating per id,
// ordered by id.
func ratings(df dataframe.DataFrame, key string, names map[string]string) ([]Rating, error) {
	groups := df.Select([]string{key, ColStrengthScore}).GroupBy(key)
	if groups.Err != nil {
		return nil, groups.Err
	}
	agg := groups.Aggregation([]dataframe.AggregationType{dataframe.Aggregation_MEAN}, []string{ColStrengthScore})
	if agg.Err != nil {
		return nil, agg.Err
	}

	meanCol := fmt.Sprintf("%s_%s", ColStrengthScore, dataframe.Aggregation_MEAN)
	ids := dataset.Strings(agg, key)
	means := agg.Col(meanCol).Float()

	out := make([]Rating, len(ids))
	for i, id := range ids {
		out[i] = Rating{ID: id, Name: names[id], Value: means[i]}
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out, nil
}

// namesByID maps each id to the name built from its first row
func namesByID(df dataframe.DataFrame, key string, name func(i int, cols map[string][]string) string, cols ...string) map[string]string {
	values := make(map[string][]string, len(cols))
	for _, c := range cols {
		values[c] = dataset.Strings(df, c)
	}

	out := make(map[string]string)
	for i, id := range dataset.Strings(df, key) {
		if _, seen := out[id]; seen || id == "" {
			continue
		}
		out[id] = name(i, values)
	}
	return out
}

func byID(rs []Rating) map[string]float64 {
	out := make(map[string]float64, len(rs))
	for _, r := range rs {
		out[r.ID] = r.Value
	}
	return out
}

func lessID(a, b string) bool {
	ai, errA := strconv.Atoi(a)
	bi, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return ai < bi
	}
	return a < b
}
