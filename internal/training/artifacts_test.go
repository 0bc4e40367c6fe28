package training

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/f1-velocity/internal/features"
)

func TestLookupRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ratings := []features.Rating{
		{ID: "9", Name: "Silverstone Circuit", Value: 92.5},
		{ID: "77", Name: "", Value: 50},
		{ID: "14", Name: "Autodromo Nazionale di Monza", Value: 90},
	}

	require.NoError(t, WriteLookup(dir, CircuitLookup, ratings))

	header, err := os.ReadFile(filepath.Join(dir, CircuitLookup.File))
	require.NoError(t, err)
	assert.Contains(t, string(header), "name,circuit_difficulty")

	rows, err := ReadLookup(dir, CircuitLookup)
	require.NoError(t, err)

	want := []LookupRow{
		{Name: "Silverstone Circuit", Value: 92.5},
		{Name: "Autodromo Nazionale di Monza", Value: 90},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("lookup mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteLookupWithoutNames(t *testing.T) {
	err := WriteLookup(t.TempDir(), TeamLookup, []features.Rating{{ID: "1", Value: 10}})
	assert.ErrorIs(t, err, ErrEmptyLookup)
}

func TestModelRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := &ModelArtifact{
		Version:   "3f1c0a52-0000-4000-8000-000000000000",
		TrainedAt: time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC),
		Features:  features.FeatureNames,
		LinearModel: LinearModel{
			Intercept:    -12.5,
			Coefficients: []float64{0.7, 0.4, 0.1},
			RSquared:     0.42,
			Samples:      25000,
		},
		Diagnostics: features.Diagnostics{Results: 26000, DroppedNoRace: 3, Qualified: 25000},
	}

	require.NoError(t, SaveModel(dir, m))
	got, err := LoadModel(dir)
	require.NoError(t, err)
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("model mismatch (-want +got):\n%s", diff)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, ModelFile, entries[0].Name())
}

func TestLoadModelRejectsMismatchedCoefficients(t *testing.T) {
	dir := t.TempDir()
	body := `{"version":"v","features":["driver_power","team_power","circuit_difficulty"],"intercept":1,"coefficients":[1]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ModelFile), []byte(body), 0o644))

	_, err := LoadModel(dir)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestLoadModelMissing(t *testing.T) {
	_, err := LoadModel(t.TempDir())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestImageLookupRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rows := []ImageLookupRow{
		{Name: "Lewis Hamilton", Value: 97.5, URL: "https://media.api-sports.io/formula-1/drivers/20.png"},
		{Name: "Max Verstappen", Value: 87.5},
	}

	require.NoError(t, WriteImageLookup(dir, DriverImageLookup, rows))
	got, err := ReadImageLookup(dir, DriverImageLookup)
	require.NoError(t, err)
	if diff := cmp.Diff(rows, got); diff != "" {
		t.Errorf("image lookup mismatch (-want +got):\n%s", diff)
	}

	header, err := os.ReadFile(filepath.Join(dir, DriverImageLookup.File))
	require.NoError(t, err)
	assert.Contains(t, string(header), "driver_name,driver_power,image_url")
}

func TestLookupsKeepFullPrecision(t *testing.T) {
	dir := t.TempDir()
	ratings := []features.Rating{
		{ID: "1", Name: "Lewis Hamilton", Value: 87.123456789012},
		{ID: "2", Name: "Max Verstappen", Value: 1.0 / 3},
		{ID: "3", Name: "Charles Leclerc", Value: 1e-9},
	}

	require.NoError(t, WriteLookup(dir, DriverLookup, ratings))
	rows, err := ReadLookup(dir, DriverLookup)
	require.NoError(t, err)
	require.Len(t, rows, len(ratings))
	for i, r := range ratings {
		assert.Equal(t, r.Value, rows[i].Value, r.Name)
	}

	images := []ImageLookupRow{{Name: "Lewis Hamilton", Value: 87.123456789012, URL: "https://img/44.png"}}
	require.NoError(t, WriteImageLookup(dir, DriverImageLookup, images))
	got, err := ReadImageLookup(dir, DriverImageLookup)
	require.NoError(t, err)
	if diff := cmp.Diff(images, got); diff != "" {
		t.Errorf("image lookup mismatch (-want +got):\n%s", diff)
	}
}
