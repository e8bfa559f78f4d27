package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Momena-akhtar/classfellow-sub000/server/internal/observability"
)

// MetricsOverviewResponse represents the overview response of system metrics
type MetricsOverviewResponse struct {
	Success     bool                           `json:"success"`
	Version     string                         `json:"version"`
	SuccessRate float64                        `json:"successRate"`
	Metrics     *observability.MetricsSnapshot `json:"metrics"`
}

// GetMetricsOverview returns the in-process session and request metrics.
// GET /api/v1/system/metrics
func (s *APIV1Service) GetMetricsOverview(c echo.Context) error {
	snap := s.Metrics.Snapshot()

	successRate := 1.0
	if snap.RequestTotal > 0 {
		successRate = float64(snap.RequestTotal-snap.RequestFailed) / float64(snap.RequestTotal)
	}

	return c.JSON(http.StatusOK, MetricsOverviewResponse{
		Success:     true,
		Version:     s.Profile.Version,
		SuccessRate: successRate,
		Metrics:     snap,
	})
}
