package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/imazen/lightresize/internal/database"
	"github.com/imazen/lightresize/internal/metrics"
	"github.com/imazen/lightresize/internal/models"
	"github.com/imazen/lightresize/internal/queue"
	"github.com/imazen/lightresize/internal/resize"
	"github.com/imazen/lightresize/internal/storage"
)

// Handlers holds all HTTP handlers
type Handlers struct {
	jobRepo       *database.JobRepository
	storage       *storage.Storage
	producer      *queue.Producer
	pipeline      *resize.Pipeline
	logger        *slog.Logger
	db            *database.DB
	resizeMetrics *metrics.ResizeMetrics
	groupName     string
}

// NewHandlers creates a new handlers instance
func NewHandlers(
	jobRepo *database.JobRepository,
	storage *storage.Storage,
	producer *queue.Producer,
	pipeline *resize.Pipeline,
	db *database.DB,
	groupName string,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		jobRepo:   jobRepo,
		storage:   storage,
		producer:  producer,
		pipeline:  pipeline,
		db:        db,
		groupName: groupName,
		logger:    logger,
	}
}

// SetMetrics injects metrics collectors into handlers
func (h *Handlers) SetMetrics(resizeMetrics *metrics.ResizeMetrics) {
	h.resizeMetrics = resizeMetrics
}

// writeJSON writes a JSON response
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

// writeError writes an error response
func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// Resize handles POST /api/v1/resize. It runs the resize pipeline
// synchronously on the uploaded image and streams the result back.
func (h *Handlers) Resize(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(50 << 20); err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to parse form: "+err.Error())
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	if _, err := sniffImageType(file); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := paramsFromForm(r)
	job, err := params.ToJob()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()

	// Render into a buffer first so a failure can still produce a clean
	// JSON error response.
	var buf bytes.Buffer
	opts := resize.LeaveSourceOpen | resize.LeaveDestinationOpen
	if err := h.pipeline.ResizeStream(file, &buf, opts, job); err != nil {
		h.logger.Error("synchronous resize failed", "error", err)
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	if h.resizeMetrics != nil {
		h.resizeMetrics.ResizeDuration.WithLabelValues(string(job.Fit)).Observe(time.Since(start).Seconds())
	}

	w.Header().Set("Content-Type", contentTypeFor(job.Format))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := io.Copy(w, &buf); err != nil {
		h.logger.Error("failed to stream resized image", "error", err)
	}
}

// CreateJob handles POST /api/v1/jobs
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(50 << 20); err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to parse form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	contentType, err := sniffImageType(file)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var params models.ResizeParams
	if paramsJSON := r.FormValue("params"); paramsJSON != "" {
		if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid params JSON: "+err.Error())
			return
		}
	} else {
		params = paramsFromForm(r)
	}
	if _, err := params.ToJob(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := uuid.New()
	originalKey := fmt.Sprintf("original/%s/%s", id.String(), header.Filename)

	if err := h.storage.Upload(ctx, originalKey, file, header.Size, contentType); err != nil {
		h.logger.Error("failed to upload file", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to upload file")
		return
	}

	job := models.NewJob(originalKey, header.Filename, contentType, header.Size, params)
	job.ID = id

	if err := h.jobRepo.Create(ctx, job); err != nil {
		h.logger.Error("failed to create job", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	if err := h.jobRepo.UpdateStatus(ctx, job.ID, models.JobStatusQueued); err != nil {
		h.logger.Error("failed to update job status", "error", err)
	}
	job.Status = models.JobStatusQueued

	msg := &models.JobMessage{
		JobID:  job.ID,
		Params: params,
	}
	if err := h.producer.Enqueue(ctx, msg); err != nil {
		h.logger.Error("failed to enqueue job", "error", err)
		if updateErr := h.jobRepo.UpdateStatus(ctx, job.ID, models.JobStatusPending); updateErr != nil {
			h.logger.Error("failed to update job status", "error", updateErr)
		}
		h.writeError(w, http.StatusInternalServerError, "failed to queue job")
		return
	}

	h.logger.Info("job created", "job_id", job.ID,
		"width", params.Width, "height", params.Height, "fit", params.Fit)
	h.writeJSON(w, http.StatusCreated, job)
}

// GetJob handles GET /api/v1/jobs/{id}
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid job ID")
		return
	}

	job, err := h.jobRepo.GetByID(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get job", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	h.writeJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/v1/jobs
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	jobs, total, err := h.jobRepo.List(r.Context(), page, pageSize)
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	totalPages := (total + pageSize - 1) / pageSize

	response := models.JobListResponse{
		Jobs:       jobs,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}

	h.writeJSON(w, http.StatusOK, response)
}

// CancelJob handles DELETE /api/v1/jobs/{id}
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid job ID")
		return
	}

	if err := h.jobRepo.CancelJob(r.Context(), id); err != nil {
		h.logger.Error("failed to cancel job", "error", err)
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}

// GetImage handles GET /api/v1/images/{id}
func (h *Handlers) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid image ID")
		return
	}

	job, err := h.jobRepo.GetByID(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "image not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get job", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	// Serve the resized result when available, the original otherwise.
	imageKey := job.ResultKey
	contentType := contentTypeFor(resize.Format(job.Params.Format))
	if imageKey == "" || r.URL.Query().Get("original") == "true" {
		imageKey = job.OriginalKey
		contentType = job.ContentType
	}

	reader, err := h.storage.Download(r.Context(), imageKey)
	if err != nil {
		h.logger.Error("failed to download image", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to download image")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", contentType)

	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Error("failed to stream image", "error", err)
	}
}

// GetQueueStats handles GET /api/v1/stats/queue
func (h *Handlers) GetQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.producer.GetStats(r.Context(), h.groupName)
	if err != nil {
		h.logger.Error("failed to get queue stats", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get queue stats")
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// StreamJobStatus handles GET /api/v1/jobs/{id}/stream
// Streams job status updates using Server-Sent Events (SSE)
func (h *Handlers) StreamJobStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid job ID")
		return
	}

	job, err := h.jobRepo.GetByID(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get job", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	data, _ := json.Marshal(job)
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := h.jobRepo.GetByID(ctx, id)
			if err != nil {
				if !errors.Is(err, database.ErrNotFound) {
					h.logger.Error("failed to get job during stream", "error", err)
				}
				return
			}

			data, _ := json.Marshal(job)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()

			if job.Status == models.JobStatusCompleted ||
				job.Status == models.JobStatusFailed ||
				job.Status == models.JobStatusCancelled {
				return
			}
		}
	}
}

// Health handles GET /api/v1/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	checks := make(map[string]interface{})

	if err := h.db.Health(ctx); err != nil {
		status = "unhealthy"
		checks["database"] = map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		}
	} else {
		dbStats := h.db.Stats()
		checks["database"] = map[string]interface{}{
			"status":           "healthy",
			"open_connections": dbStats.OpenConnections,
			"in_use":           dbStats.InUse,
			"idle":             dbStats.Idle,
		}
	}

	if err := h.storage.Health(ctx); err != nil {
		status = "unhealthy"
		checks["storage"] = map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		}
	} else {
		checks["storage"] = map[string]string{
			"status": "healthy",
		}
	}

	if _, err := h.producer.GetStats(ctx, h.groupName); err != nil {
		status = "unhealthy"
		checks["redis"] = map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		}
	} else {
		checks["redis"] = map[string]string{
			"status": "healthy",
		}
	}

	response := map[string]interface{}{
		"status": status,
		"checks": checks,
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	h.writeJSON(w, statusCode, response)
}

// Helper functions

// sniffImageType identifies the upload by its magic bytes instead of trusting
// the client's Content-Type header, then rewinds the file for re-reading.
func sniffImageType(file multipart.File) (string, error) {
	head := make([]byte, 261)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}

	kind, _ := filetype.Match(head[:n])
	if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
		return "", fmt.Errorf("failed to rewind upload: %w", seekErr)
	}

	if kind == filetype.Unknown || !strings.HasPrefix(kind.MIME.Value, "image/") {
		return "", fmt.Errorf("upload is not a recognized image")
	}
	return kind.MIME.Value, nil
}

// paramsFromForm reads resize params from individual form values.
func paramsFromForm(r *http.Request) models.ResizeParams {
	width, _ := strconv.Atoi(r.FormValue("width"))
	height, _ := strconv.Atoi(r.FormValue("height"))
	quality, _ := strconv.Atoi(r.FormValue("quality"))
	ignoreICC, _ := strconv.ParseBool(r.FormValue("ignore_icc"))

	return models.ResizeParams{
		Width:     width,
		Height:    height,
		Fit:       r.FormValue("fit"),
		Scale:     r.FormValue("scale"),
		Format:    r.FormValue("format"),
		Quality:   quality,
		IgnoreICC: ignoreICC,
	}
}

func contentTypeFor(format resize.Format) string {
	if format == resize.FormatPng {
		return "image/png"
	}
	return "image/jpeg"
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, resize.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, resize.ErrDecode):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
