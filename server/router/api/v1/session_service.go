package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Momena-akhtar/classfellow-sub000/plugin/ai/session"
	apierrors "github.com/Momena-akhtar/classfellow-sub000/server/internal/errors"
	"github.com/Momena-akhtar/classfellow-sub000/server/internal/observability"
)

type StartSessionRequest struct {
	CourseID  string `json:"courseId"`
	StudentID string `json:"studentId"`
}

type AddChunkRequest struct {
	Text      string      `json:"text"`
	Timestamp json.Number `json:"timestamp"`
}

type EndSessionRequest struct {
	Transcription *string      `json:"transcription"`
	Duration      *json.Number `json:"duration"`
}

type StartSessionResponse struct {
	Success bool `json:"success"`
	*session.StartResult
}

type SessionStatusResponse struct {
	Success bool `json:"success"`
	*session.SessionStatus
}

type AddChunkResponse struct {
	Success bool `json:"success"`
	*session.ChunkResult
}

type EndSessionResponse struct {
	Success bool `json:"success"`
	*session.EndResult
}

type TriggerAIResponse struct {
	Success bool `json:"success"`
	*session.TriggerResult
}

// StartSession creates a session.
// POST /api/v1/sessions
func (s *APIV1Service) StartSession(c echo.Context, reqCtx *observability.RequestContext) error {
	var req StartSessionRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.InvalidArgument("invalid request body")
	}

	res, err := s.Sessions.Start(c.Request().Context(), req.CourseID, req.StudentID)
	if err != nil {
		return err
	}
	reqCtx.SessionID = res.SessionID
	reqCtx.Info("session started", slog.String("course_id", res.CourseID))
	return c.JSON(http.StatusCreated, &StartSessionResponse{Success: true, StartResult: res})
}

// GetSession returns the merged durable and live view of a session.
// GET /api/v1/sessions/:id
func (s *APIV1Service) GetSession(c echo.Context, _ *observability.RequestContext) error {
	status, err := s.Sessions.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &SessionStatusResponse{Success: true, SessionStatus: status})
}

// AddChunk appends a transcript fragment.
// POST /api/v1/sessions/:id/chunks
func (s *APIV1Service) AddChunk(c echo.Context, reqCtx *observability.RequestContext) error {
	sessionID := c.Param("id")
	if !s.chunkLimiter.Allow(sessionID) {
		reqCtx.Warn("chunk rate limit exceeded")
		return apierrors.RateLimitExceeded("too many chunks for this session, slow down")
	}

	var req AddChunkRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.InvalidArgument("invalid request body")
	}
	if req.Timestamp == "" {
		return apierrors.InvalidArgument("timestamp is required")
	}
	timestamp, err := req.Timestamp.Int64()
	if err != nil {
		return apierrors.InvalidArgument("timestamp must be an integer")
	}

	res, err := s.Sessions.AddChunk(c.Request().Context(), sessionID, req.Text, timestamp)
	if err != nil {
		return err
	}
	if res.Triggered {
		reqCtx.Debug("summarization triggered", slog.Int64("chunk_count", res.ChunkCount))
	}
	return c.JSON(http.StatusOK, &AddChunkResponse{Success: true, ChunkResult: res})
}

// EndSession finalizes a session into its durable record.
// POST /api/v1/sessions/:id/end
func (s *APIV1Service) EndSession(c echo.Context, reqCtx *observability.RequestContext) error {
	sessionID := c.Param("id")

	var req EndSessionRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return apierrors.InvalidArgument("invalid request body")
		}
	}

	opts := session.EndOptions{Transcription: req.Transcription}
	if req.Duration != nil {
		duration, err := req.Duration.Int64()
		if err != nil {
			return apierrors.InvalidArgument("duration must be an integer")
		}
		opts.DurationMs = &duration
	}

	res, err := s.Sessions.End(c.Request().Context(), sessionID, opts)
	if err != nil {
		return err
	}
	s.chunkLimiter.Forget(sessionID)
	reqCtx.Info("session ended", slog.Int64("duration_ms", res.DurationMs), slog.Int("summaries", len(res.Summaries)))
	return c.JSON(http.StatusOK, &EndSessionResponse{Success: true, EndResult: res})
}

// TriggerAI forces a summarization checkpoint.
// POST /api/v1/sessions/:id/trigger
func (s *APIV1Service) TriggerAI(c echo.Context, _ *observability.RequestContext) error {
	res, err := s.Sessions.TriggerAI(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &TriggerAIResponse{Success: true, TriggerResult: res})
}
