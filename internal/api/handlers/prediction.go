package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/f1-velocity/internal/prediction"
	"github.com/stitts-dev/f1-velocity/pkg/logger"
	"github.com/stitts-dev/f1-velocity/pkg/utils"
)

// Predictor answers strength predictions
type Predictor interface {
	Predict(driver, team, circuit string) (prediction.Prediction, error)
	Names(kind string) ([]string, error)
	ModelVersion() string
}

var lookupKinds = map[string]string{
	"drivers":  prediction.KindDriver,
	"teams":    prediction.KindTeam,
	"circuits": prediction.KindCircuit,
}

type PredictionHandler struct {
	predictor Predictor
	logger    *logrus.Logger
}

func NewPredictionHandler(predictor Predictor, logger *logrus.Logger) *PredictionHandler {
	return &PredictionHandler{
		predictor: predictor,
		logger:    logger,
	}
}

// GetPrediction scores a driver, team and circuit combination. Unknown
// names are answered with a null score and the "Data Not Found" tier.
// GET /api/v1/predict?driver=Lewis%20Hamilton&team=Mercedes&circuit=Silverstone%20Circuit
func (h *PredictionHandler) GetPrediction(c *gin.Context) {
	driver, hasDriver := c.GetQuery("driver")
	team, hasTeam := c.GetQuery("team")
	circuit, hasCircuit := c.GetQuery("circuit")
	if !hasDriver || !hasTeam || !hasCircuit {
		utils.SendValidationError(c, "Missing query parameter", "driver, team and circuit are required")
		return
	}

	p, err := h.predictor.Predict(driver, team, circuit)
	if errors.Is(err, prediction.ErrModelNotLoaded) {
		utils.SendServiceUnavailable(c, utils.ErrCodeModelNotLoaded, "Prediction model is not loaded")
		return
	}
	if err != nil {
		logger.WithPredictionContext(driver, team, circuit).WithError(err).Error("Prediction failed")
		utils.SendInternalError(c, "Failed to compute prediction")
		return
	}

	if !p.Found {
		logger.WithPredictionContext(driver, team, circuit).WithField("missing", p.Missing).Debug("Prediction data not found")
	}
	utils.SendSuccessWithMeta(c, p, &utils.Meta{ModelVersion: p.ModelVersion})
}

// GetLookup lists the names known to one lookup
// GET /api/v1/lookups/:kind
func (h *PredictionHandler) GetLookup(c *gin.Context) {
	kind, ok := lookupKinds[c.Param("kind")]
	if !ok {
		utils.SendNotFound(c, "Unknown lookup")
		return
	}

	names, err := h.predictor.Names(kind)
	if errors.Is(err, prediction.ErrModelNotLoaded) {
		utils.SendServiceUnavailable(c, utils.ErrCodeModelNotLoaded, "Prediction model is not loaded")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("kind", kind).Error("Failed to list lookup names")
		utils.SendInternalError(c, "Failed to list names")
		return
	}

	utils.SendSuccessWithMeta(c, names, &utils.Meta{
		Total:        int64(len(names)),
		ModelVersion: h.predictor.ModelVersion(),
	})
}
