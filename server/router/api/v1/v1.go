package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Momena-akhtar/classfellow-sub000/internal/profile"
	"github.com/Momena-akhtar/classfellow-sub000/plugin/ai/session"
	apierrors "github.com/Momena-akhtar/classfellow-sub000/server/internal/errors"
	"github.com/Momena-akhtar/classfellow-sub000/server/internal/observability"
	"github.com/Momena-akhtar/classfellow-sub000/server/middleware"
)

type APIV1Service struct {
	Profile  *profile.Profile
	Sessions session.Service
	Metrics  *observability.Metrics
	Logger   *slog.Logger

	// chunkLimiter bounds chunk submissions per session.
	chunkLimiter *middleware.RateLimiter
}

func NewAPIV1Service(profile *profile.Profile, sessions session.Service, metrics *observability.Metrics) *APIV1Service {
	if metrics == nil {
		metrics = observability.NewMetrics(1000)
	}
	return &APIV1Service{
		Profile:      profile,
		Sessions:     sessions,
		Metrics:      metrics,
		Logger:       slog.Default(),
		chunkLimiter: middleware.NewRateLimiter(profile.RateLimit),
	}
}

// RegisterRoutes registers the v1 REST routes with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	g := echoServer.Group("/api/v1")

	g.POST("/sessions", s.handle("start", s.StartSession))
	g.GET("/sessions/:id", s.handle("status", s.GetSession))
	g.POST("/sessions/:id/chunks", s.handle("add_chunk", s.AddChunk))
	g.POST("/sessions/:id/end", s.handle("end", s.EndSession))
	g.POST("/sessions/:id/trigger", s.handle("trigger", s.TriggerAI))

	g.GET("/system/metrics", s.GetMetricsOverview)
}

type handlerFunc func(c echo.Context, reqCtx *observability.RequestContext) error

// handle attaches a request context, writes the error envelope on failure
// and records per-operation metrics.
func (s *APIV1Service) handle(operation string, h handlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get(echo.HeaderXRequestID)
		reqCtx := observability.NewRequestContextWithID(s.Logger, requestID, operation, c.Param("id"))
		c.Response().Header().Set(echo.HeaderXRequestID, reqCtx.RequestID)
		c.SetRequest(c.Request().WithContext(observability.WithRequestContext(c.Request().Context(), reqCtx)))

		err := h(c, reqCtx)
		if err != nil {
			apiErr := apierrors.FromError(err)
			status := apiErr.Status()
			if status >= http.StatusInternalServerError {
				reqCtx.Error("request failed", err, slog.Int(observability.LogFieldStatus, status))
			} else {
				reqCtx.Debug("request rejected",
					slog.Int(observability.LogFieldStatus, status),
					slog.String(observability.LogFieldErrorCode, string(apiErr.Code)))
			}
			s.Metrics.RecordRequest(operation, reqCtx.Duration(), true)
			return c.JSON(status, apiErr.Response())
		}

		s.Metrics.RecordRequest(operation, reqCtx.Duration(), false)
		reqCtx.Debug("request completed", slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
		return nil
	}
}

// PruneLimiters drops rate limiters of sessions idle for a while.
func (s *APIV1Service) PruneLimiters() int {
	return s.chunkLimiter.Prune()
}
