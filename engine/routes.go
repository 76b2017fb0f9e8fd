package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/labstack/echo/v4"

	"github.com/drummonds/pagevision/config"
	"github.com/drummonds/pagevision/database"
	"github.com/drummonds/pagevision/engine/encoder"
	"github.com/drummonds/pagevision/engine/pdfrenderer"
	"github.com/drummonds/pagevision/engine/smartresize"
)

// ServerHandler will inject the variables needed into routes
type ServerHandler struct {
	DB           database.Repository
	Echo         *echo.Echo
	ServerConfig config.ServerConfig
	Preparer     *Preparer
	Inference    *InferenceClient // nil when no inference backend is configured

	ingressRunning atomic.Bool // shared by the cron entry and RunIngestNow
}

// OCRPage is the transcription of one prepared page
type OCRPage struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// AddAPIRoutes registers every /api route on the handler's echo instance
func (serverHandler *ServerHandler) AddAPIRoutes() {
	e := serverHandler.Echo
	e.GET("/api/health", serverHandler.GetHealth)

	// Page preparation routes
	e.POST("/api/prepare", serverHandler.PrepareDocument)
	e.POST("/api/inspect", serverHandler.InspectDocument)
	e.POST("/api/ocr", serverHandler.OCRDocument)

	// Admin API routes
	e.POST("/api/ingest", serverHandler.RunIngestNow)

	// Job tracking API routes
	e.GET("/api/jobs", serverHandler.GetRecentJobs)
	e.GET("/api/jobs/active", serverHandler.GetActiveJobs)
	e.GET("/api/jobs/:id", serverHandler.GetJob)
	e.GET("/api/jobs/:id/pages", serverHandler.GetJobPages)
}

// errorStatus maps pipeline errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, smartresize.ErrInvalidAspectRatio), errors.Is(err, smartresize.ErrInvalidDimensions):
		return http.StatusUnprocessableEntity
	case errors.Is(err, encoder.ErrUnsupportedFormat), errors.Is(err, smartresize.ErrInvalidOptions), errors.Is(err, ErrUnreadableImage):
		return http.StatusBadRequest
	case errors.Is(err, ErrInference):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// saveUpload writes the multipart "file" field to a temp file, the caller removes it
func saveUpload(c echo.Context) (string, string, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return "", "", fmt.Errorf("missing upload field \"file\": %w", err)
	}
	src, err := fileHeader.Open()
	if err != nil {
		return "", "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "pagevision-*"+filepath.Ext(fileHeader.Filename))
	if err != nil {
		return "", "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", "", err
	}
	Logger.Debug("Stored upload", "name", fileHeader.Filename, "path", dst.Name(), "size", fileHeader.Size)
	return dst.Name(), filepath.Base(fileHeader.Filename), nil
}

// renderParams reads dpi, start and end from the query string
func renderParams(c echo.Context) (float64, pdfrenderer.PageRange, error) {
	var (
		dpi float64
		pr  pdfrenderer.PageRange
	)
	if dpiStr := c.QueryParam("dpi"); dpiStr != "" {
		d, err := strconv.ParseFloat(dpiStr, 64)
		if err != nil || d <= 0 {
			return 0, pr, fmt.Errorf("invalid dpi %q", dpiStr)
		}
		dpi = d
	}
	if startStr := c.QueryParam("start"); startStr != "" {
		s, err := strconv.Atoi(startStr)
		if err != nil {
			return 0, pr, fmt.Errorf("invalid start page %q", startStr)
		}
		pr.Start = &s
	}
	if endStr := c.QueryParam("end"); endStr != "" {
		e, err := strconv.Atoi(endStr)
		if err != nil {
			return 0, pr, fmt.Errorf("invalid end page %q", endStr)
		}
		pr.End = &e
	}
	return dpi, pr, nil
}

// prepareUpload stores the upload, runs it through the preparer and tracks it as a job.
// On failure the returned status is the HTTP code to answer with.
func (serverHandler *ServerHandler) prepareUpload(c echo.Context, jobType database.JobType) (*database.Job, []PreparedPage, int, error) {
	dpi, pr, err := renderParams(c)
	if err != nil {
		return nil, nil, http.StatusBadRequest, err
	}
	path, name, err := saveUpload(c)
	if err != nil {
		return nil, nil, http.StatusBadRequest, err
	}
	defer os.Remove(path)

	job, err := serverHandler.DB.CreateJob(jobType, "Preparing "+name)
	if err != nil {
		Logger.Error("Failed to create job", "type", jobType, "error", err)
		return nil, nil, http.StatusInternalServerError, errors.New("failed to create job")
	}
	serverHandler.DB.UpdateJobStatus(job.ID, database.JobStatusRunning, "Preparing "+name)

	preparer := serverHandler.Preparer.WithFormat(c.QueryParam("format"))
	pages, err := PrepareFile(preparer, path, dpi, pr)
	if err != nil {
		Logger.Error("Failed to prepare upload", "name", name, "error", err)
		serverHandler.DB.UpdateJobError(job.ID, err.Error())
		return job, nil, errorStatus(err), err
	}

	if err := serverHandler.DB.SavePreparedPages(pageRecords(job.ID, name, pages, nil)); err != nil {
		Logger.Error("Failed to save prepared pages", "jobID", job.ID.String(), "error", err)
	}
	return job, pages, http.StatusOK, nil
}

func completeJob(db database.Repository, job *database.Job, summary database.JobSummary) {
	result, err := json.Marshal(summary)
	if err != nil {
		Logger.Error("Failed to marshal job summary", "error", err)
	}
	if err := db.CompleteJob(job.ID, string(result)); err != nil {
		Logger.Error("Failed to complete job", "jobID", job.ID.String(), "error", err)
	}
}

func jobErrorResponse(c echo.Context, status int, job *database.Job, err error) error {
	body := map[string]interface{}{"error": err.Error()}
	if job != nil {
		body["jobId"] = job.ID.String()
	}
	return c.JSON(status, body)
}

// GetHealth reports the renderer, database and inference backend in use
// @Summary Service health
// @Description Report service status and configured backends
// @Tags Admin
// @Produce json
// @Success 200 {object} map[string]interface{} "Service status"
// @Router /health [get]
func (serverHandler *ServerHandler) GetHealth(c echo.Context) error {
	renderer := ""
	if serverHandler.Preparer != nil && serverHandler.Preparer.Engine != nil {
		renderer = serverHandler.Preparer.Engine.Name()
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":              "ok",
		"renderer":            renderer,
		"databaseType":        serverHandler.ServerConfig.DatabaseType,
		"inferenceConfigured": serverHandler.Inference != nil,
		"ingressPath":         serverHandler.ServerConfig.IngressPath,
		"outputPath":          serverHandler.ServerConfig.OutputPath,
	})
}

// PrepareDocument rasterizes and normalizes an uploaded PDF or image
// @Summary Prepare pages for vision inference
// @Description Render a PDF (or load an image), normalize every page and return data URLs
// @Tags Prepare
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF or image"
// @Param dpi query number false "Render resolution (default 200)"
// @Param start query int false "First page, zero-based"
// @Param end query int false "Last page, zero-based, negative means last"
// @Param format query string false "Output format (png, jpeg, gif, tiff, bmp)"
// @Success 200 {object} map[string]interface{} "Job ID and prepared pages"
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Failure 422 {object} map[string]interface{} "Page cannot be normalized"
// @Failure 500 {object} map[string]interface{} "Rasterization failed"
// @Router /prepare [post]
func (serverHandler *ServerHandler) PrepareDocument(c echo.Context) error {
	job, pages, status, err := serverHandler.prepareUpload(c, database.JobTypePrepare)
	if err != nil {
		return jobErrorResponse(c, status, job, err)
	}
	completeJob(serverHandler.DB, job, database.JobSummary{FilesProcessed: 1, FilesTotal: 1, PagesPrepared: len(pages)})

	return c.JSON(http.StatusOK, map[string]interface{}{
		"jobId": job.ID.String(),
		"pages": pages,
	})
}

// InspectDocument reports page geometry and predicted render sizes without rendering
// @Summary Inspect a PDF
// @Description Read page sizes and predict pixel dimensions and fallback at the given DPI
// @Tags Prepare
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF document"
// @Param dpi query number false "Render resolution (default 200)"
// @Success 200 {object} pdfrenderer.ProbeResult "Page geometry"
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Failure 500 {object} map[string]interface{} "Unreadable PDF"
// @Router /inspect [post]
func (serverHandler *ServerHandler) InspectDocument(c echo.Context) error {
	dpi, _, err := renderParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
	}
	path, name, err := saveUpload(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
	}
	defer os.Remove(path)

	result, err := pdfrenderer.Probe(path, dpi, serverHandler.ServerConfig.RasterOptions())
	if err != nil {
		Logger.Error("Failed to inspect PDF", "name", name, "error", err)
		return c.JSON(errorStatus(err), map[string]interface{}{"error": err.Error()})
	}
	result.Path = name
	return c.JSON(http.StatusOK, result)
}

// OCRDocument prepares an upload and transcribes every page with the inference backend
// @Summary Transcribe a document
// @Description Prepare each page and send it to the configured vision model
// @Tags Prepare
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF or image"
// @Param prompt query string false "Prompt mode (prompt_ocr, prompt_layout_all_en)"
// @Success 200 {object} map[string]interface{} "Job ID and page texts"
// @Failure 502 {object} map[string]interface{} "Inference backend failed"
// @Failure 503 {object} map[string]interface{} "Inference not configured"
// @Router /ocr [post]
func (serverHandler *ServerHandler) OCRDocument(c echo.Context) error {
	if serverHandler.Inference == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"error": "Inference backend not configured, set INFERENCE_URL and INFERENCE_MODEL",
		})
	}
	prompt, err := PromptFor(c.QueryParam("prompt"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
	}

	job, pages, status, err := serverHandler.prepareUpload(c, database.JobTypeOCR)
	if err != nil {
		return jobErrorResponse(c, status, job, err)
	}

	results := make([]OCRPage, 0, len(pages))
	for i, page := range pages {
		serverHandler.DB.UpdateJobProgress(job.ID, i*100/len(pages), fmt.Sprintf("Transcribing page %d of %d", i+1, len(pages)))
		text, err := serverHandler.Inference.Transcribe(c.Request().Context(), page.DataURL, prompt)
		if err != nil {
			Logger.Error("Inference failed", "jobID", job.ID.String(), "page", page.Index, "error", err)
			serverHandler.DB.UpdateJobError(job.ID, err.Error())
			return jobErrorResponse(c, errorStatus(err), job, err)
		}
		results = append(results, OCRPage{Index: page.Index, Text: text})
	}
	completeJob(serverHandler.DB, job, database.JobSummary{FilesProcessed: 1, FilesTotal: 1, PagesPrepared: len(pages)})

	return c.JSON(http.StatusOK, map[string]interface{}{
		"jobId": job.ID.String(),
		"pages": results,
	})
}

// RunIngestNow triggers the ingress preparation job manually
// @Summary Trigger ingress preparation
// @Description Manually prepare every file waiting in the ingress folder
// @Tags Admin
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{} "Job created with job ID"
// @Router /ingest [post]
func (serverHandler *ServerHandler) RunIngestNow(c echo.Context) error {
	Logger.Info("Manual ingestion triggered via API")

	job, err := serverHandler.DB.CreateJob(database.JobTypeIngestion, "Starting ingress preparation")
	if err != nil {
		Logger.Error("Failed to create ingestion job", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to create job",
		})
	}

	// Run ingestion in a goroutine so we can return immediately
	go func() {
		serverHandler.ingressJobFuncWithTracking(job.ID)
	}()

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Ingestion started",
		"jobId":   job.ID.String(),
	})
}
