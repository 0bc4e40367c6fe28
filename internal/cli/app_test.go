package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/stitts-dev/f1-velocity/internal/prediction"
	"github.com/stitts-dev/f1-velocity/internal/providers"
	"github.com/stitts-dev/f1-velocity/internal/testutil"
	"github.com/stitts-dev/f1-velocity/internal/training"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &logs
	err := app.Run(append([]string{"f1ctl"}, args...))
	return out.String(), err
}

func trained(t *testing.T) (dataDir, artifactDir string) {
	t.Helper()
	dataDir = testutil.WriteRawTables(t)
	artifactDir = t.TempDir()

	out, err := run(t, "--data-dir", dataDir, "--artifact-dir", artifactDir, "train")
	require.NoError(t, err)

	var res trainOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.NotEmpty(t, res.Version)
	assert.Positive(t, res.Samples)
	assert.Len(t, res.Coefficients, 3)
	assert.Equal(t, filepath.Join(artifactDir, training.ModelFile), res.Model)
	assert.FileExists(t, res.Model)
	return dataDir, artifactDir
}

func TestTrainAndPredict(t *testing.T) {
	_, artifactDir := trained(t)

	out, err := run(t, "--artifact-dir", artifactDir, "predict",
		"--driver", "Lewis Hamilton", "--team", "Mercedes", "--circuit", "Silverstone Circuit")
	require.NoError(t, err)

	var p predictOutput
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	require.NotNil(t, p.Score)
	assert.GreaterOrEqual(t, *p.Score, 0.0)
	assert.LessOrEqual(t, *p.Score, 100.0)
	assert.NotEqual(t, string(prediction.TierNotFound), p.Tier)
	assert.NotEmpty(t, p.ModelVersion)

	out, err = run(t, "--artifact-dir", artifactDir, "predict",
		"--driver", "Lewis Hamilton", "--team", "Williams", "--circuit", "Silverstone Circuit")
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &raw))
	assert.Contains(t, raw, "score")
	assert.Nil(t, raw["score"])
	assert.Equal(t, string(prediction.TierNotFound), raw["tier"])
	assert.Equal(t, []interface{}{prediction.KindTeam}, raw["missing"])
}

func TestPredictYAML(t *testing.T) {
	_, artifactDir := trained(t)

	out, err := run(t, "--artifact-dir", artifactDir, "--format", "yaml", "predict",
		"--driver", "Charles Leclerc", "--team", "Ferrari", "--circuit", "Autodromo Nazionale di Monza")
	require.NoError(t, err)

	var p predictOutput
	require.NoError(t, yaml.Unmarshal([]byte(out), &p))
	assert.Equal(t, "Charles Leclerc", p.Driver)
	assert.NotNil(t, p.Score)
}

func TestPredictErrors(t *testing.T) {
	_, err := run(t, "--artifact-dir", t.TempDir(), "predict",
		"--driver", "Lewis Hamilton", "--team", "Mercedes", "--circuit", "Silverstone Circuit")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = run(t, "--artifact-dir", t.TempDir(), "predict", "--driver", "Lewis Hamilton", "--team", "Mercedes")
	assert.Error(t, err, "circuit is required")

	_, err = run(t, "--format", "xml", "predict",
		"--driver", "Lewis Hamilton", "--team", "Mercedes", "--circuit", "Silverstone Circuit")
	assert.ErrorContains(t, err, "unsupported format")
}

func TestHallOfFame(t *testing.T) {
	dataDir := testutil.WriteRawTables(t)

	out, err := run(t, "--data-dir", dataDir, "hall-of-fame", "--decade", "2010", "--limit", "2")
	require.NoError(t, err)

	var top []winsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &top))
	assert.Equal(t, []winsOutput{
		{Driver: "Charles Leclerc", Wins: 1},
		{Driver: "Lewis Hamilton", Wins: 1},
	}, top)

	_, err = run(t, "--data-dir", dataDir, "hall-of-fame", "--decade", "2015")
	assert.ErrorContains(t, err, "divisible by 10")

	_, err = run(t, "--data-dir", dataDir, "hall-of-fame", "--decade", "2010", "--limit", "51")
	assert.ErrorContains(t, err, "limit")
}

func TestSyncImagesRequiresKey(t *testing.T) {
	t.Setenv("APISPORTS_API_KEY", "")
	_, err := run(t, "--artifact-dir", t.TempDir(), "sync-images")
	assert.ErrorIs(t, err, providers.ErrMissingAPIKey)
}

func TestSyncImages(t *testing.T) {
	_, artifactDir := trained(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		name := r.URL.Query().Get("search")
		if r.URL.Path == "/teams" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"response": []map[string]string{{"name": name, "logo": "https://img/teams/" + name + ".png"}},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"response": []map[string]string{{"name": name, "image": "https://img/drivers/" + name + ".png"}},
		})
	}))
	defer srv.Close()

	t.Setenv("APISPORTS_API_KEY", "test-key")
	t.Setenv("APISPORTS_BASE_URL", srv.URL)
	t.Setenv("IMAGE_RATE_LIMIT", "1000")
	t.Setenv("IMAGE_RETRY_BACKOFF", "1ms")
	t.Setenv("REDIS_URL", "")

	out, err := run(t, "--artifact-dir", artifactDir, "sync-images")
	require.NoError(t, err)

	var report syncOutput
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Positive(t, report.Drivers.Total)
	assert.Equal(t, report.Drivers.Total, report.Drivers.Counts["found"])
	assert.Equal(t, report.Teams.Total, report.Teams.Counts["found"])
	assert.Zero(t, report.Teams.Counts["transport_failure"])

	rows, err := training.ReadImageLookup(artifactDir, training.TeamImageLookup)
	require.NoError(t, err)
	for _, row := range rows {
		assert.Equal(t, "https://img/teams/"+row.Name+".png", row.URL)
	}
}
