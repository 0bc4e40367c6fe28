package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Column names exposed by the loaded tables. Tables that carry a "name"
// column in the raw files are renamed so joins never collide.
const (
	ColRaceID        = "raceId"
	ColDriverID      = "driverId"
	ColConstructorID = "constructorId"
	ColCircuitID     = "circuitId"
	ColPositionOrder = "positionOrder"
	ColRank          = "rank"
	ColPoints        = "points"
	ColYear          = "year"
	ColRaceName      = "race_name"
	ColForename      = "forename"
	ColSurname       = "surname"
	ColTeamName      = "team_name"
	ColCircuitName   = "circuit_name"
)

// MissingValue is the sentinel the source files use for an absent field
const MissingValue = `\N`

var ErrMissingColumn = errors.New("missing required column")

// TableSpec describes one raw CSV file and the columns kept from it
type TableSpec struct {
	File    string
	Columns []string
	Types   map[string]series.Type
	Rename  map[string]string
}

var (
	DriversSpec = TableSpec{
		File:    "drivers.csv",
		Columns: []string{ColDriverID, ColForename, ColSurname},
	}
	ConstructorsSpec = TableSpec{
		File:    "constructors.csv",
		Columns: []string{ColConstructorID, "name"},
		Rename:  map[string]string{"name": ColTeamName},
	}
	CircuitsSpec = TableSpec{
		File:    "circuits.csv",
		Columns: []string{ColCircuitID, "name"},
		Rename:  map[string]string{"name": ColCircuitName},
	}
	RacesSpec = TableSpec{
		File:    "races.csv",
		Columns: []string{ColRaceID, ColYear, ColCircuitID, "name"},
		Types:   map[string]series.Type{ColYear: series.Int},
		Rename:  map[string]string{"name": ColRaceName},
	}
	ResultsSpec = TableSpec{
		File:    "results.csv",
		Columns: []string{ColRaceID, ColDriverID, ColConstructorID, ColPositionOrder, ColRank, ColPoints},
		Types: map[string]series.Type{
			ColPositionOrder: series.Float,
			ColPoints:        series.Float,
		},
	}
)

// Tables holds the five raw tables. Identifier columns stay strings so
// joins compare them exactly as written in the files.
type Tables struct {
	Drivers      dataframe.DataFrame
	Constructors dataframe.DataFrame
	Circuits     dataframe.DataFrame
	Races        dataframe.DataFrame
	Results      dataframe.DataFrame
}

// Load reads all five tables from dir
func Load(dir string) (*Tables, error) {
	var t Tables
	targets := []struct {
		spec TableSpec
		dst  *dataframe.DataFrame
	}{
		{DriversSpec, &t.Drivers},
		{ConstructorsSpec, &t.Constructors},
		{CircuitsSpec, &t.Circuits},
		{RacesSpec, &t.Races},
		{ResultsSpec, &t.Results},
	}

	for _, target := range targets {
		df, err := LoadFile(filepath.Join(dir, target.spec.File), target.spec)
		if err != nil {
			return nil, err
		}
		*target.dst = df
	}
	return &t, nil
}

// LoadFile opens path and parses it with spec
func LoadFile(path string, spec TableSpec) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("open %s: %w", spec.File, err)
	}
	defer f.Close()

	df, err := LoadTable(f, spec)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("load %s: %w", spec.File, err)
	}
	return df, nil
}

// LoadTable parses a CSV stream. Every column is read as a string unless
// spec.Types says otherwise; numeric columns that fail to parse become NaN.
func LoadTable(r io.Reader, spec TableSpec) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithTypes(spec.Types),
		dataframe.NaNValues([]string{MissingValue, "NA", "NaN", ""}),
	)
	if df.Err != nil {
		return df, df.Err
	}

	present := make(map[string]bool, df.Ncol())
	for _, name := range df.Names() {
		present[name] = true
	}
	for _, col := range spec.Columns {
		if !present[col] {
			return dataframe.DataFrame{}, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	df = df.Select(spec.Columns)
	for from, to := range spec.Rename {
		df = df.Rename(to, from)
	}
	if df.Err != nil {
		return df, df.Err
	}
	return df, nil
}

// Strings returns a column as strings with missing values reported as ""
func Strings(df dataframe.DataFrame, col string) []string {
	s := df.Col(col)
	out := make([]string, s.Len())
	for i := range out {
		e := s.Elem(i)
		if e.IsNA() {
			continue
		}
		out[i] = e.String()
	}
	return out
}
