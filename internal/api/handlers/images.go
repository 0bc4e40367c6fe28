package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/f1-velocity/internal/providers"
	"github.com/stitts-dev/f1-velocity/internal/services"
	"github.com/stitts-dev/f1-velocity/pkg/logger"
	"github.com/stitts-dev/f1-velocity/pkg/utils"
)

// ImageSource resolves the image URL of a driver or team
type ImageSource interface {
	Image(ctx context.Context, entity providers.Entity, name string) services.Image
}

type ImageHandler struct {
	images ImageSource
}

func NewImageHandler(images ImageSource) *ImageHandler {
	return &ImageHandler{images: images}
}

// GetDriverImage returns a driver's portrait URL
// GET /api/v1/images/drivers/:name
func (h *ImageHandler) GetDriverImage(c *gin.Context) {
	h.serve(c, providers.EntityDriver)
}

// GetTeamImage returns a team's logo URL
// GET /api/v1/images/teams/:name
func (h *ImageHandler) GetTeamImage(c *gin.Context) {
	h.serve(c, providers.EntityTeam)
}

func (h *ImageHandler) serve(c *gin.Context, entity providers.Entity) {
	name := c.Param("name")
	img := h.images.Image(c.Request.Context(), entity, name)
	if img.Source == services.SourceFallback {
		logger.WithImageContext(string(entity), name).Debug("Serving fallback image")
	}
	utils.SendSuccess(c, img)
}
