package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/stitts-dev/f1-velocity/internal/api/handlers"
	"github.com/stitts-dev/f1-velocity/internal/dataset"
	"github.com/stitts-dev/f1-velocity/internal/prediction"
	"github.com/stitts-dev/f1-velocity/internal/services"
	"github.com/stitts-dev/f1-velocity/internal/stats"
	"github.com/stitts-dev/f1-velocity/internal/testutil"
	"github.com/stitts-dev/f1-velocity/internal/training"
	"github.com/stitts-dev/f1-velocity/pkg/database"
	"github.com/stitts-dev/f1-velocity/pkg/utils"
)

const fallbackImage = "https://example.com/f1_logo.svg"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *utils.AppError `json:"error"`
	Meta    *utils.Meta     `json:"meta"`
}

type RouterSuite struct {
	suite.Suite
	artifactDir string
	db          *database.DB
	predictor   *prediction.Service
	router      *gin.Engine
}

func (s *RouterSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (s *RouterSuite) SetupTest() {
	logger := testutil.QuietLogger()
	dataDir := testutil.WriteRawTables(s.T())
	s.artifactDir = s.T().TempDir()

	_, err := training.NewTrainer(dataDir, s.artifactDir, logger).Train(context.Background())
	s.Require().NoError(err)
	s.Require().NoError(training.WriteImageLookup(s.artifactDir, training.DriverImageLookup, []training.ImageLookupRow{
		{Name: "Lewis Hamilton", Value: 97.5, URL: "https://img/44.png"},
	}))

	s.predictor = prediction.NewService(s.artifactDir, logger)
	s.Require().NoError(s.predictor.Reload())

	s.db, err = database.NewConnection("file::memory:", false)
	s.Require().NoError(err)
	tables, err := dataset.Load(dataDir)
	s.Require().NoError(err)
	store := stats.NewStore(s.db, logger)
	_, err = store.Load(context.Background(), tables)
	s.Require().NoError(err)

	images := services.NewImageService(s.artifactDir, nil, fallbackImage, logger)
	s.Require().NoError(images.Load())

	sqlDB, err := s.db.DB.DB()
	s.Require().NoError(err)

	s.router = gin.New()
	SetupRoutes(s.router, Dependencies{
		Predictor: s.predictor,
		Stats:     store,
		Images:    images,
		Database:  sqlDB,
		Logger:    logger,
	})
}

func (s *RouterSuite) TearDownTest() {
	s.NoError(s.db.Close())
}

func (s *RouterSuite) do(method, path string) (*httptest.ResponseRecorder, envelope) {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(method, path, nil))

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func predictPath(driver, team, circuit string) string {
	q := url.Values{"driver": {driver}, "team": {team}, "circuit": {circuit}}
	return "/api/v1/predict?" + q.Encode()
}

func (s *RouterSuite) TestHealth() {
	w, _ := s.do(http.MethodGet, "/health")
	s.Equal(http.StatusOK, w.Code)

	var body map[string]interface{}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("ok", body["status"])
	s.Equal(s.predictor.ModelVersion(), body["model_version"])
}

func (s *RouterSuite) TestPredictKnown() {
	w, env := s.do(http.MethodGet, predictPath("Lewis Hamilton", "Mercedes", "Silverstone Circuit"))
	s.Require().Equal(http.StatusOK, w.Code)
	s.True(env.Success)
	s.Equal(s.predictor.ModelVersion(), env.Meta.ModelVersion)

	var p prediction.Prediction
	s.Require().NoError(json.Unmarshal(env.Data, &p))
	s.True(p.Found)
	s.Require().NotNil(p.Score)
	s.GreaterOrEqual(*p.Score, 0.0)
	s.LessOrEqual(*p.Score, 100.0)
	s.NotEqual(prediction.TierNotFound, p.Tier)
}

func (s *RouterSuite) TestPredictUnknownRendersNullScore() {
	w, env := s.do(http.MethodGet, predictPath("Juan Manuel Fangio", "Mercedes", "Silverstone Circuit"))
	s.Require().Equal(http.StatusOK, w.Code)

	var raw map[string]interface{}
	s.Require().NoError(json.Unmarshal(env.Data, &raw))
	s.Contains(raw, "score")
	s.Nil(raw["score"])
	s.Equal(string(prediction.TierNotFound), raw["tier"])
	s.Equal([]interface{}{prediction.KindDriver}, raw["missing"])
}

func (s *RouterSuite) TestPredictMissingParameter() {
	w, env := s.do(http.MethodGet, "/api/v1/predict?driver=Lewis%20Hamilton&team=Mercedes")
	s.Equal(http.StatusBadRequest, w.Code)
	s.False(env.Success)
	s.Equal(utils.ErrCodeValidation, env.Error.Code)
}

func (s *RouterSuite) TestLookups() {
	w, env := s.do(http.MethodGet, "/api/v1/lookups/teams")
	s.Require().Equal(http.StatusOK, w.Code)

	var names []string
	s.Require().NoError(json.Unmarshal(env.Data, &names))
	s.Equal([]string{"Ferrari", "Mercedes", "Red Bull"}, names)
	s.Equal(int64(3), env.Meta.Total)

	w, env = s.do(http.MethodGet, "/api/v1/lookups/engines")
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal(utils.ErrCodeNotFound, env.Error.Code)
}

func (s *RouterSuite) TestStats() {
	w, env := s.do(http.MethodGet, "/api/v1/stats/overview")
	s.Require().Equal(http.StatusOK, w.Code)
	var o stats.Overview
	s.Require().NoError(json.Unmarshal(env.Data, &o))
	s.Equal(int64(3), o.GrandPrix)

	w, env = s.do(http.MethodGet, "/api/v1/stats/decades")
	s.Require().Equal(http.StatusOK, w.Code)
	var decades []int
	s.Require().NoError(json.Unmarshal(env.Data, &decades))
	s.Equal([]int{2000, 2010}, decades)

	w, env = s.do(http.MethodGet, "/api/v1/stats/hall-of-fame?decade=2010&limit=2")
	s.Require().Equal(http.StatusOK, w.Code)
	var top []stats.DriverWins
	s.Require().NoError(json.Unmarshal(env.Data, &top))
	s.Equal([]stats.DriverWins{{Driver: "Charles Leclerc", Wins: 1}, {Driver: "Lewis Hamilton", Wins: 1}}, top)

	w, env = s.do(http.MethodGet, "/api/v1/stats/drivers/Lewis%20Hamilton")
	s.Require().Equal(http.StatusOK, w.Code)
	var p stats.DriverProfile
	s.Require().NoError(json.Unmarshal(env.Data, &p))
	s.Equal("Red Bull", p.Team)
	s.Equal(int64(2), p.Podiums)

	w, _ = s.do(http.MethodGet, "/api/v1/stats/drivers/Nobody")
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterSuite) TestHallOfFameValidation() {
	for _, path := range []string{
		"/api/v1/stats/hall-of-fame",
		"/api/v1/stats/hall-of-fame?decade=1995",
		"/api/v1/stats/hall-of-fame?decade=nineties",
		"/api/v1/stats/hall-of-fame?decade=1990&limit=0",
		"/api/v1/dashboard/hall-of-fame?decade=1990&limit=500",
	} {
		w, env := s.do(http.MethodGet, path)
		s.Equal(http.StatusBadRequest, w.Code, path)
		s.Equal(utils.ErrCodeValidation, env.Error.Code, path)
	}
}

func (s *RouterSuite) TestDashboard() {
	w, _ := s.do(http.MethodGet, "/api/v1/dashboard/hall-of-fame?decade=2010")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Header().Get("Content-Type"), "text/html")
	s.Contains(w.Body.String(), "King of the 2010s")
	s.Contains(w.Body.String(), "Charles Leclerc")
}

func (s *RouterSuite) TestImages() {
	w, env := s.do(http.MethodGet, "/api/v1/images/drivers/Lewis%20Hamilton")
	s.Require().Equal(http.StatusOK, w.Code)
	var img services.Image
	s.Require().NoError(json.Unmarshal(env.Data, &img))
	s.Equal("https://img/44.png", img.URL)
	s.Equal(services.SourceLookup, img.Source)

	_, env = s.do(http.MethodGet, "/api/v1/images/teams/Ferrari")
	s.Require().NoError(json.Unmarshal(env.Data, &img))
	s.Equal(fallbackImage, img.URL)
	s.Equal(services.SourceFallback, img.Source)
}

func (s *RouterSuite) TestAdminReload() {
	before := s.predictor.ModelVersion()

	w, env := s.do(http.MethodPost, "/api/v1/admin/reload")
	s.Require().Equal(http.StatusOK, w.Code)
	s.True(env.Success)
	s.Equal(before, s.predictor.ModelVersion())

	s.Require().NoError(os.Remove(filepath.Join(s.artifactDir, training.ModelFile)))
	w, env = s.do(http.MethodPost, "/api/v1/admin/reload")
	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.Equal(utils.ErrCodeModelNotLoaded, env.Error.Code)
	s.Equal(before, s.predictor.ModelVersion())
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func TestPredictWithoutModel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	predictor := prediction.NewService(t.TempDir(), testutil.QuietLogger())
	router := gin.New()
	SetupRoutes(router, Dependencies{Predictor: predictor, Logger: testutil.QuietLogger()})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, predictPath("Lewis Hamilton", "Mercedes", "Silverstone Circuit"), nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats/overview", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("stats route registered without a store: status %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "degraded" {
		t.Fatalf("health status = %v, want degraded", body["status"])
	}
}

func TestHealthReportsRetrainAndBreaker(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := testutil.QuietLogger()
	dataDir := testutil.WriteRawTables(t)
	artifactDir := t.TempDir()

	predictor := prediction.NewService(artifactDir, logger)
	scheduler := services.NewRetrainScheduler(training.NewTrainer(dataDir, artifactDir, logger), logger, predictor)
	if err := scheduler.Start("@every 1h"); err != nil {
		t.Fatal(err)
	}
	defer scheduler.Stop()
	if _, err := scheduler.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	breakers := services.NewCircuitBreakerService(3, time.Minute, logger)
	for i := 0; i < 3; i++ {
		_, _ = breakers.Execute(services.ServiceAPISports, func() (interface{}, error) {
			return nil, errors.New("connection refused")
		})
	}

	router := gin.New()
	SetupRoutes(router, Dependencies{
		Predictor: predictor,
		Retrain:   scheduler,
		Breakers:  breakers,
		Logger:    logger,
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string `json:"status"`
		Checks struct {
			Retrain struct {
				Status       string    `json:"status"`
				Schedule     string    `json:"schedule"`
				LastError    string    `json:"last_error"`
				NextRun      time.Time `json:"next_run"`
				RunCount     int       `json:"run_count"`
				ModelVersion string    `json:"model_version"`
			} `json:"retrain"`
			Breaker handlers.BreakerCheck `json:"apisports_breaker"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "ok", body.Status)
	retrain := body.Checks.Retrain
	assert.Equal(t, "completed", retrain.Status)
	assert.Equal(t, "@every 1h", retrain.Schedule)
	assert.Empty(t, retrain.LastError)
	assert.True(t, retrain.NextRun.After(time.Now()))
	assert.Equal(t, 1, retrain.RunCount)
	assert.Equal(t, predictor.ModelVersion(), retrain.ModelVersion)

	assert.Equal(t, "open", body.Checks.Breaker.State)
	assert.Equal(t, uint32(0), body.Checks.Breaker.Requests, "counts reset when the breaker opens")
}

func TestHealthOmitsUnconfiguredChecks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, Dependencies{
		Predictor: prediction.NewService(t.TempDir(), testutil.QuietLogger()),
		Logger:    testutil.QuietLogger(),
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body handlers.HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotContains(t, body.Checks, "retrain")
	assert.NotContains(t, body.Checks, "apisports_breaker")
}
