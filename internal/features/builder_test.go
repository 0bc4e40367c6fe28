package features

import (
	"math"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/f1-velocity/internal/dataset"
	"github.com/stitts-dev/f1-velocity/internal/testutil"
)

func TestStrengthScore(t *testing.T) {
	for p := 1; p <= 20; p++ {
		assert.Equal(t, 100-float64(p-1)*5, StrengthScore(float64(p), ""), "position %d", p)
		assert.Equal(t, 100-float64(p-1)*5, StrengthScore(float64(p), "2"), "position %d", p)
	}

	tests := []struct {
		name     string
		position float64
		rank     string
		want     float64
	}{
		{name: "winner with fastest lap is capped", position: 1, rank: "1", want: 100},
		{name: "bonus adds five", position: 3, rank: "1", want: 95},
		{name: "deep field floors at zero", position: 30, rank: "", want: 0},
		{name: "bonus cannot lift past the floor", position: 30, rank: "1", want: 0},
		{name: "twenty first scores zero", position: 21, rank: "", want: 0},
		{name: "rank compared as text", position: 2, rank: "01", want: 95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StrengthScore(tt.position, tt.rank))
		})
	}

	assert.True(t, math.IsNaN(StrengthScore(math.NaN(), "1")))
}

func loadTable(t *testing.T, spec dataset.TableSpec, body string) dataframe.DataFrame {
	t.Helper()
	df, err := dataset.LoadTable(strings.NewReader(body), spec)
	require.NoError(t, err, spec.File)
	return df
}

func loadFixture(t *testing.T) *dataset.Tables {
	t.Helper()
	return &dataset.Tables{
		Drivers: loadTable(t, dataset.DriversSpec, "driverId,driverRef,forename,surname\n"+
			"1,hamilton,Lewis,Hamilton\n"+
			"2,max_verstappen,Max,Verstappen\n"+
			"3,leclerc,Charles,Leclerc\n"),
		Constructors: loadTable(t, dataset.ConstructorsSpec, "constructorId,constructorRef,name\n"+
			"131,mercedes,Mercedes\n"+
			"9,red_bull,Red Bull\n"+
			"6,ferrari,Ferrari\n"),
		Circuits: loadTable(t, dataset.CircuitsSpec, "circuitId,circuitRef,name\n"+
			"9,silverstone,Silverstone Circuit\n"+
			"14,monza,Autodromo Nazionale di Monza\n"),
		Races: loadTable(t, dataset.RacesSpec, "raceId,year,round,circuitId,name\n"+
			"1000,2019,10,9,British Grand Prix\n"+
			"1001,2019,14,14,Italian Grand Prix\n"),
		Results: loadTable(t, dataset.ResultsSpec, "resultId,raceId,driverId,constructorId,positionOrder,points,rank\n"+
			"1,1000,1,131,1,26,1\n"+
			"2,1000,2,9,2,18,2\n"+
			`3,1000,3,6,3,15,\N`+"\n"+
			"4,1001,3,6,1,25,1\n"+
			`5,1001,1,131,\N,0,\N`+"\n"+
			"6,1001,2,9,5,10,3\n"+
			"7,2000,1,131,1,25,1\n"+
			"8,1001,99,131,5,10,5\n"+
			"9,1001,2,77,4,12,4\n"),
	}
}

func TestBuildRatingsAndDiagnostics(t *testing.T) {
	fs, err := NewBuilder(testutil.QuietLogger()).Build(loadFixture(t))
	require.NoError(t, err)

	wantDiag := Diagnostics{
		Results:              9,
		DroppedNoRace:        1,
		DroppedNoDriver:      1,
		DroppedNoConstructor: 1,
		MissingScore:         1,
		Qualified:            5,
	}
	assert.Equal(t, wantDiag, fs.Diagnostics)
	assert.Equal(t, 3, fs.Diagnostics.Dropped())

	approx := cmpopts.EquateApprox(0, 1e-9)

	wantDrivers := []Rating{
		{ID: "1", Name: "Lewis Hamilton", Value: 100},
		{ID: "2", Name: "Max Verstappen", Value: 87.5},
		{ID: "3", Name: "Charles Leclerc", Value: 95},
	}
	if diff := cmp.Diff(wantDrivers, fs.Drivers, approx); diff != "" {
		t.Errorf("driver ratings mismatch (-want +got):\n%s", diff)
	}

	wantTeams := []Rating{
		{ID: "6", Name: "Ferrari", Value: 95},
		{ID: "9", Name: "Red Bull", Value: 87.5},
		{ID: "131", Name: "Mercedes", Value: 100},
	}
	if diff := cmp.Diff(wantTeams, fs.Teams, approx); diff != "" {
		t.Errorf("team ratings mismatch (-want +got):\n%s", diff)
	}

	wantCircuits := []Rating{
		{ID: "9", Name: "Silverstone Circuit", Value: 95},
		{ID: "14", Name: "Autodromo Nazionale di Monza", Value: 90},
	}
	if diff := cmp.Diff(wantCircuits, fs.Circuits, approx); diff != "" {
		t.Errorf("circuit ratings mismatch (-want +got):\n%s", diff)
	}

	for _, table := range [][]Rating{fs.Drivers, fs.Teams, fs.Circuits} {
		for _, r := range table {
			assert.GreaterOrEqual(t, r.Value, 0.0)
			assert.LessOrEqual(t, r.Value, 100.0)
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	b := NewBuilder(testutil.QuietLogger())
	first, err := b.Build(loadFixture(t))
	require.NoError(t, err)
	second, err := b.Build(loadFixture(t))
	require.NoError(t, err)

	assert.Equal(t, first.Drivers, second.Drivers)
	assert.Equal(t, first.Teams, second.Teams)
	assert.Equal(t, first.Circuits, second.Circuits)
}

func TestTrainingRows(t *testing.T) {
	fs, err := NewBuilder(testutil.QuietLogger()).Build(loadFixture(t))
	require.NoError(t, err)

	rows := fs.TrainingRows()
	require.Len(t, rows, 5)

	for _, r := range rows {
		assert.False(t, math.IsNaN(r.Score))
		assert.Len(t, r.Features(), len(FeatureNames))
	}

	// First qualifying result is Hamilton for Mercedes at Silverstone.
	assert.InDelta(t, 100, rows[0].Score, 1e-9)
	assert.InDelta(t, 100, rows[0].DriverPower, 1e-9)
	assert.InDelta(t, 100, rows[0].TeamPower, 1e-9)
	assert.InDelta(t, 95, rows[0].CircuitDifficulty, 1e-9)
}

func TestBuildWithoutQualifyingResults(t *testing.T) {
	tables := loadFixture(t)
	tables.Results = loadTable(t, dataset.ResultsSpec,
		"resultId,raceId,driverId,constructorId,positionOrder,points,rank\n"+
			`1,1000,1,131,\N,0,\N`+"\n")

	_, err := NewBuilder(testutil.QuietLogger()).Build(tables)
	assert.ErrorIs(t, err, ErrNoQualifyingResults)
}
