package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/f1-velocity/internal/stats"
	"github.com/stitts-dev/f1-velocity/pkg/utils"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

type DashboardHandler struct {
	store  StatsStore
	logger *logrus.Logger
}

func NewDashboardHandler(store StatsStore, logger *logrus.Logger) *DashboardHandler {
	return &DashboardHandler{
		store:  store,
		logger: logger,
	}
}

// GetHallOfFameChart renders the top drivers of a decade as an HTML bar chart
// GET /api/v1/dashboard/hall-of-fame?decade=1990
func (h *DashboardHandler) GetHallOfFameChart(c *gin.Context) {
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

	html, err := renderHallOfFame(decade, top)
	if err != nil {
		h.logger.WithError(err).Error("Failed to render hall of fame chart")
		utils.SendInternalError(c, "Failed to render chart")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func renderHallOfFame(decade int, top []stats.DriverWins) ([]byte, error) {
	x := make([]string, len(top))
	y := make([]opts.BarData, len(top))
	for i, d := range top {
		x[i] = d.Driver
		y[i] = opts.BarData{Value: d.Wins}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  "F1 Velocity Hall of Fame",
			Theme:      "dark",
			Width:      "100%",
			Height:     "600px",
			AssetsHost: echartsAssetsPrefix,
		}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("King of the %ds", decade), Subtitle: "Race wins"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("wins", y,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: stats.DefaultTeamColor}),
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
