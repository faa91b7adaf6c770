package ingest

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rispacs/ris/internal/platform/jobs"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/new-dicom", h.NewDicom)
	g.GET("/job-status/:requestId", h.JobStatus)
	g.GET("/test-connection", h.TestConnection)
}

// NewDicom accepts the archive's new-instance notification, queues the
// ingestion job and answers immediately. Processing happens asynchronously;
// the caller polls the job-status endpoint with the returned request id.
func (h *Handler) NewDicom(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable request body")
	}

	instanceID, ok := ExtractInstanceID(raw)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "Invalid or empty archive instance ID",
		})
	}

	job, requestID, err := h.svc.Submit(instanceID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusAccepted, map[string]any{
		"message":                 "DICOM instance queued for asynchronous processing",
		"jobId":                   job.ID,
		"requestId":               requestID,
		"instanceId":              instanceID,
		"status":                  "queued",
		"estimatedProcessingTime": "5-30 seconds",
		"checkStatusUrl":          "/orthanc/job-status/" + requestID,
	})
}

// JobStatus reports the state of one ingestion request: terminal outcomes
// come from the result cache, in-flight state from the job table.
func (h *Handler) JobStatus(c echo.Context) error {
	requestID := c.Param("requestId")

	resp, found, err := h.svc.Status(c.Request().Context(), requestID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		return c.JSON(http.StatusNotFound, map[string]any{
			"status":    "not_found",
			"message":   "Job not found or expired",
			"requestId": requestID,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// TestConnection round-trips a value through the result cache and submits
// a trivial self-test job. An operational health probe, not part of the
// ingestion contract.
func (h *Handler) TestConnection(c echo.Context) error {
	ctx := c.Request().Context()

	probe := NewRequestID()
	if err := h.svc.cache.Put(ctx, probe, map[string]any{"probe": probe}, time.Minute); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	value, found, err := h.svc.cache.Get(ctx, probe)
	if err != nil || !found {
		return echo.NewHTTPError(http.StatusInternalServerError, "result cache readback failed")
	}

	job, err := h.svc.queue.Submit(JobTypeSelfTest, jobs.Payload{
		RequestID:   probe,
		SubmittedAt: time.Now(),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	archive := "reachable"
	if _, err := h.svc.fetcher.System(ctx); err != nil {
		archive = "unreachable: " + err.Error()
	}

	return c.JSON(http.StatusOK, map[string]any{
		"cache":      "working",
		"cacheValue": json.RawMessage(value),
		"queue":      "working",
		"archive":    archive,
		"testJobId":  job.ID,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}
