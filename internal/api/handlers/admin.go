package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/f1-velocity/internal/services"
	"github.com/stitts-dev/f1-velocity/pkg/logger"
	"github.com/stitts-dev/f1-velocity/pkg/utils"
)

type AdminHandler struct {
	predictor services.Reloader
	model     ModelStatus
	images    services.Reloader
	logger    *logrus.Logger
}

// NewAdminHandler creates the admin handler. images may be nil.
func NewAdminHandler(predictor services.Reloader, model ModelStatus, images services.Reloader, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		predictor: predictor,
		model:     model,
		images:    images,
		logger:    logger,
	}
}

// Reload re-reads the model, lookups and image lookups from disk. A failed
// reload leaves the previous artifacts serving.
// POST /api/v1/admin/reload
func (h *AdminHandler) Reload(c *gin.Context) {
	if err := h.predictor.Reload(); err != nil {
		h.logger.WithError(err).Error("Artifact reload failed")
		utils.SendServiceUnavailable(c, utils.ErrCodeModelNotLoaded, "Failed to reload artifacts: "+err.Error())
		return
	}
	if h.images != nil {
		if err := h.images.Reload(); err != nil {
			h.logger.WithError(err).Error("Image lookup reload failed")
			utils.SendInternalError(c, "Failed to reload image lookups")
			return
		}
	}

	version := h.model.ModelVersion()
	logger.WithModelVersion(version).Info("Artifacts reloaded")
	utils.SendSuccess(c, gin.H{
		"reloaded":      true,
		"model_version": version,
	})
}
