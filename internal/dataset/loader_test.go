package dataset

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTableCoercesPositions(t *testing.T) {
	raw := strings.Join([]string{
		"resultId,raceId,driverId,constructorId,positionOrder,points,rank,statusId",
		"1,18,1,1,1,10,2,1",
		`2,18,2,2,\N,8,\N,1`,
		"3,18,3,3,abc,6,1,1",
	}, "\n")

	df, err := LoadTable(strings.NewReader(raw), ResultsSpec)
	require.NoError(t, err)

	assert.Equal(t, ResultsSpec.Columns, df.Names())
	assert.Equal(t, 3, df.Nrow())

	positions := df.Col(ColPositionOrder).Float()
	assert.Equal(t, 1.0, positions[0])
	assert.True(t, math.IsNaN(positions[1]), "sentinel should become NaN")
	assert.True(t, math.IsNaN(positions[2]), "non-numeric should become NaN")

	assert.Equal(t, []string{"2", "", "1"}, Strings(df, ColRank))
	assert.Equal(t, []string{"1", "2", "3"}, Strings(df, ColDriverID))
}

func TestLoadTableRenamesNameColumns(t *testing.T) {
	raw := "constructorId,constructorRef,name,nationality,url\n6,ferrari,Ferrari,Italian,http://x\n"

	df, err := LoadTable(strings.NewReader(raw), ConstructorsSpec)
	require.NoError(t, err)

	assert.Equal(t, []string{ColConstructorID, ColTeamName}, df.Names())
	assert.Equal(t, []string{"Ferrari"}, Strings(df, ColTeamName))
}

func TestLoadTableMissingColumn(t *testing.T) {
	raw := "driverId,forename\n1,Lewis\n"

	_, err := LoadTable(strings.NewReader(raw), DriversSpec)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), ColSurname)
}

func TestLoadReadsAllTables(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"drivers.csv":      "driverId,driverRef,forename,surname\n1,hamilton,Lewis,Hamilton\n",
		"constructors.csv": "constructorId,name\n131,Mercedes\n",
		"circuits.csv":     "circuitId,name,country\n9,Silverstone Circuit,UK\n",
		"races.csv":        "raceId,year,round,circuitId,name\n1000,2019,10,9,British Grand Prix\n",
		"results.csv":      "resultId,raceId,driverId,constructorId,positionOrder,points,rank\n1,1000,1,131,1,26,1\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}

	tables, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 1, tables.Results.Nrow())
	assert.Equal(t, []string{"Silverstone Circuit"}, Strings(tables.Circuits, ColCircuitName))
	assert.Equal(t, []string{"British Grand Prix"}, Strings(tables.Races, ColRaceName))
	years, err := tables.Races.Col(ColYear).Int()
	require.NoError(t, err)
	assert.Equal(t, []int{2019}, years)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "drivers.csv")
}
