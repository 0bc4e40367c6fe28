package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/f1-velocity/internal/stats"
	"github.com/stitts-dev/f1-velocity/pkg/utils"
)

// StatsStore answers the historical stats views
type StatsStore interface {
	Overview(ctx context.Context) (*stats.Overview, error)
	Decades(ctx context.Context) ([]int, error)
	HallOfFame(ctx context.Context, decade, limit int) ([]stats.DriverWins, error)
	DriverProfile(ctx context.Context, name string) (*stats.DriverProfile, error)
}

type StatsHandler struct {
	store  StatsStore
	logger *logrus.Logger
}

func NewStatsHandler(store StatsStore, logger *logrus.Logger) *StatsHandler {
	return &StatsHandler{
		store:  store,
		logger: logger,
	}
}

// GetOverview returns grand prix, driver and result counts
// GET /api/v1/stats/overview
func (h *StatsHandler) GetOverview(c *gin.Context) {
	o, err := h.store.Overview(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load overview")
		utils.SendInternalError(c, "Failed to load overview")
		return
	}
	utils.SendSuccess(c, o)
}

// GetDecades lists the decades with results
// GET /api/v1/stats/decades
func (h *StatsHandler) GetDecades(c *gin.Context) {
	decades, err := h.store.Decades(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list decades")
		utils.SendInternalError(c, "Failed to list decades")
		return
	}
	utils.SendSuccessWithMeta(c, decades, &utils.Meta{Total: int64(len(decades))})
}

// GetHallOfFame ranks the drivers of a decade by wins
// GET /api/v1/stats/hall-of-fame?decade=1990&limit=5
func (h *StatsHandler) GetHallOfFame(c *gin.Context) {
	decade, limit, ok := hallOfFameParams(c)
	if !ok {
		return
	}

	top, err := h.store.HallOfFame(c.Request.Context(), decade, limit)
	if err != nil {
		h.logger.WithError(err).WithField("decade", decade).Error("Failed to load hall of fame")
		utils.SendInternalError(c, "Failed to load hall of fame")
		return
	}
	utils.SendSuccessWithMeta(c, top, &utils.Meta{Total: int64(len(top))})
}

// GetDriverProfile returns one driver's career summary
// GET /api/v1/stats/drivers/:name
func (h *StatsHandler) GetDriverProfile(c *gin.Context) {
	name := c.Param("name")
	p, err := h.store.DriverProfile(c.Request.Context(), name)
	if errors.Is(err, stats.ErrDriverNotFound) {
		utils.SendNotFound(c, "Driver not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("driver", name).Error("Failed to load driver profile")
		utils.SendInternalError(c, "Failed to load driver profile")
		return
	}
	utils.SendSuccess(c, p)
}

// hallOfFameParams parses decade (required) and limit (optional). It writes
// the validation error itself.
func hallOfFameParams(c *gin.Context) (decade, limit int, ok bool) {
	raw := c.Query("decade")
	if raw == "" {
		utils.SendValidationError(c, "Missing decade", "decade is required, e.g. decade=1990")
		return 0, 0, false
	}
	decade, err := strconv.Atoi(raw)
	if err != nil || decade%10 != 0 {
		utils.SendValidationError(c, "Invalid decade", "decade must be a year divisible by 10")
		return 0, 0, false
	}

	limit = stats.DefaultHallOfFameLimit
	if rawLimit := c.Query("limit"); rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil || limit < 1 || limit > stats.MaxHallOfFameLimit {
			utils.SendValidationError(c, "Invalid limit", "limit must be between 1 and "+strconv.Itoa(stats.MaxHallOfFameLimit))
			return 0, 0, false
		}
	}
	return decade, limit, true
}
