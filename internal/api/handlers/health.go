package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/stitts-dev/f1-velocity/internal/services"
)

// ModelStatus reports whether prediction artifacts are loaded
type ModelStatus interface {
	Ready() bool
	ModelVersion() string
}

// Pinger checks a backing store
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RetrainStatus reports the scheduled retrain job
type RetrainStatus interface {
	Status() services.JobInfo
}

// BreakerStatus reports the state of the external API circuit breakers
type BreakerStatus interface {
	GetState(service string) gobreaker.State
	GetCounts(service string) gobreaker.Counts
}

// BreakerCheck is the health view of one circuit breaker
type BreakerCheck struct {
	State               string `json:"state"`
	Requests            uint32 `json:"requests"`
	TotalFailures       uint32 `json:"total_failures"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// HealthStatus is the body of the health endpoints
type HealthStatus struct {
	Status       string                 `json:"status"`
	Service      string                 `json:"service"`
	Timestamp    time.Time              `json:"timestamp"`
	ModelVersion string                 `json:"model_version,omitempty"`
	Checks       map[string]interface{} `json:"checks"`
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	model    ModelStatus
	db       Pinger
	retrain  RetrainStatus
	breakers BreakerStatus
	logger   *logrus.Logger
}

// NewHealthHandler creates a new health handler. db, retrain and breakers
// may be nil when the stats views, the retrain schedule or the image API
// are not configured.
func NewHealthHandler(model ModelStatus, db Pinger, retrain RetrainStatus, breakers BreakerStatus, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		model:    model,
		db:       db,
		retrain:  retrain,
		breakers: breakers,
		logger:   logger,
	}
}

// GetHealth reports liveness. A missing model degrades the status but the
// process still answers.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	response := HealthStatus{
		Status:    "ok",
		Service:   "f1-velocity",
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]interface{}),
	}

	if h.model.Ready() {
		response.Checks["model"] = "ok"
		response.ModelVersion = h.model.ModelVersion()
	} else {
		response.Status = "degraded"
		response.Checks["model"] = "not loaded"
	}

	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			h.logger.WithError(err).Warn("Stats database ping failed")
			response.Status = "degraded"
			response.Checks["database"] = "failed: " + err.Error()
		} else {
			response.Checks["database"] = "ok"
		}
	}

	// neither degrades the status: a failed retrain keeps the previous
	// model serving and an open breaker falls back to synced images
	if h.retrain != nil {
		response.Checks["retrain"] = h.retrain.Status()
	}
	if h.breakers != nil {
		counts := h.breakers.GetCounts(services.ServiceAPISports)
		response.Checks["apisports_breaker"] = BreakerCheck{
			State:               h.breakers.GetState(services.ServiceAPISports).String(),
			Requests:            counts.Requests,
			TotalFailures:       counts.TotalFailures,
			ConsecutiveFailures: counts.ConsecutiveFailures,
		}
	}

	c.JSON(http.StatusOK, response)
}
