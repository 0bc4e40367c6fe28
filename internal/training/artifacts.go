package training

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/stitts-dev/f1-velocity/internal/dataset"
	"github.com/stitts-dev/f1-velocity/internal/features"
)

const ModelFile = "f1_strength_model.json"

var ErrEmptyLookup = errors.New("lookup has no named rows")

// Lookup describes one name-indexed rating file
type Lookup struct {
	File     string
	NameCol  string
	ValueCol string
}

var (
	DriverLookup  = Lookup{File: "driver_lookup.csv", NameCol: "driver_name", ValueCol: features.FeatureDriverPower}
	TeamLookup    = Lookup{File: "team_lookup.csv", NameCol: "name", ValueCol: features.FeatureTeamPower}
	CircuitLookup = Lookup{File: "circuit_lookup.csv", NameCol: "name", ValueCol: features.FeatureCircuitDifficulty}
)

// LookupRow is one name and its rating
type LookupRow struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// ModelArtifact is the persisted form of a fitted model
type ModelArtifact struct {
	Version     string               `json:"version"`
	TrainedAt   time.Time            `json:"trained_at"`
	Features    []string             `json:"features"`
	LinearModel
	Diagnostics features.Diagnostics `json:"diagnostics"`
}

// Artifacts is everything a training run leaves on disk
type Artifacts struct {
	Model    *ModelArtifact
	Drivers  []LookupRow
	Teams    []LookupRow
	Circuits []LookupRow
}

// SaveModel writes the model artifact atomically
func SaveModel(dir string, m *ModelArtifact) error {
	return writeFileAtomic(filepath.Join(dir, ModelFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	})
}

// LoadModel reads the model artifact from dir
func LoadModel(dir string) (*ModelArtifact, error) {
	data, err := os.ReadFile(filepath.Join(dir, ModelFile))
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var m ModelArtifact
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if len(m.Coefficients) != len(m.Features) {
		return nil, fmt.Errorf("decode model: %w: %d coefficients for %d features",
			ErrDimensionMismatch, len(m.Coefficients), len(m.Features))
	}
	return &m, nil
}

// WriteLookup persists the named ratings. Ratings without a name cannot be
// looked up and are skipped.
func WriteLookup(dir string, l Lookup, ratings []features.Rating) error {
	names := make([]string, 0, len(ratings))
	values := make([]float64, 0, len(ratings))
	for _, r := range ratings {
		if r.Name == "" {
			continue
		}
		names = append(names, r.Name)
		values = append(values, r.Value)
	}
	if len(names) == 0 {
		return fmt.Errorf("%s: %w", l.File, ErrEmptyLookup)
	}

	df := dataframe.New(
		series.New(names, series.String, l.NameCol),
		series.New(formatValues(values), series.String, l.ValueCol),
	)
	if df.Err != nil {
		return fmt.Errorf("build %s: %w", l.File, df.Err)
	}
	return writeFileAtomic(filepath.Join(dir, l.File), func(w io.Writer) error {
		return df.WriteCSV(w)
	})
}

// formatValues renders ratings with the fewest digits that read back to the
// same float64. WriteCSV would round Float series to six decimals.
func formatValues(values []float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}

// ReadLookup loads a lookup file. Rows with a missing name or value are skipped.
func ReadLookup(dir string, l Lookup) ([]LookupRow, error) {
	df, err := dataset.LoadFile(filepath.Join(dir, l.File), dataset.TableSpec{
		File:    l.File,
		Columns: []string{l.NameCol, l.ValueCol},
		Types:   map[string]series.Type{l.ValueCol: series.Float},
	})
	if err != nil {
		return nil, err
	}

	names := dataset.Strings(df, l.NameCol)
	values := df.Col(l.ValueCol).Float()
	rows := make([]LookupRow, 0, len(names))
	for i, name := range names {
		if name == "" || math.IsNaN(values[i]) {
			continue
		}
		rows = append(rows, LookupRow{Name: name, Value: values[i]})
	}
	return rows, nil
}

// SaveArtifacts writes the model and the three lookups. Each file is
// replaced atomically; the set as a whole is not.
func SaveArtifacts(dir string, m *ModelArtifact, fs *features.FeatureSet) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := WriteLookup(dir, DriverLookup, fs.Drivers); err != nil {
		return err
	}
	if err := WriteLookup(dir, TeamLookup, fs.Teams); err != nil {
		return err
	}
	if err := WriteLookup(dir, CircuitLookup, fs.Circuits); err != nil {
		return err
	}
	return SaveModel(dir, m)
}

// LoadArtifacts reads the model and lookups written by SaveArtifacts
func LoadArtifacts(dir string) (*Artifacts, error) {
	m, err := LoadModel(dir)
	if err != nil {
		return nil, err
	}
	a := &Artifacts{Model: m}
	if a.Drivers, err = ReadLookup(dir, DriverLookup); err != nil {
		return nil, err
	}
	if a.Teams, err = ReadLookup(dir, TeamLookup); err != nil {
		return nil, err
	}
	if a.Circuits, err = ReadLookup(dir, CircuitLookup); err != nil {
		return nil, err
	}
	return a, nil
}

// writeFileAtomic writes to a temp file in the target directory and renames
// it over path, so readers see either the old or the new contents.
func writeFileAtomic(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
