package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oulianov/audioghost-ai/internal/common/fsutil"
	"github.com/oulianov/audioghost-ai/internal/jobs"
	"github.com/oulianov/audioghost-ai/internal/model"
	"github.com/oulianov/audioghost-ai/pkg/types"
)

// batchModelSize is the model every batch submission runs on.
const batchModelSize = "small"

// defaultUploadExt is used when the uploaded file name has no extension.
const defaultUploadExt = ".mp3"

// multipartMemory is the part of a multipart form kept in memory; the rest
// spills to temp files.
const multipartMemory = 32 << 20

type api struct {
	d Deps
}

func newAPI(d Deps) *api {
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return &api{d: d}
}

// separate accepts one upload and queues a separation job.
//
// @Summary  Submit a separation job
// @Tags     separate
// @Accept   multipart/form-data
// @Produce  json
// @Param    file           formData file   true  "Audio or video file"
// @Param    description    formData string true  "Text prompt for the sound to separate"
// @Param    mode           formData string false "extract or remove" default(extract)
// @Param    start_time     formData number false "Anchor start in seconds"
// @Param    end_time       formData number false "Anchor end in seconds"
// @Param    model_size     formData string false "small, base or large"
// @Param    chunk_duration formData number false "Chunk length in seconds (5-60)"
// @Param    precision      formData string false "bf16 or fp32"
// @Success  200 {object} types.SeparationResponse
// @Failure  400 {object} types.ErrorResponse
// @Failure  422 {object} types.ErrorResponse
// @Failure  429 {object} types.ErrorResponse
// @Failure  503 {object} types.ErrorResponse
// @Router   /api/separate [post]
func (a *api) separate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !a.allowSubmit(w, r, 1) {
		return
	}
	file, header, ok := a.parseUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	job, err := a.jobFromForm(r)
	if err != nil {
		status := writeError(w, err)
		logOutcome(r, "separate rejected", status, start, err)
		return
	}

	ctx, cancel := a.submitContext(r)
	defer cancel()

	job.ID = a.d.NewID()
	path, err := a.saveUpload(file, header.Filename, job.ID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to save upload")
		logOutcome(r, "separate failed", http.StatusInternalServerError, start, err)
		return
	}
	job.InputPath = path
	if err := a.d.Jobs.Submit(ctx, job); err != nil {
		_ = os.Remove(path)
		if errors.Is(err, jobs.ErrQueueFull) {
			IncrementBackpressure("queue")
		}
		status := writeError(w, err)
		logOutcome(r, "separate rejected", status, start, err)
		return
	}
	writeJSON(w, http.StatusOK, types.SeparationResponse{
		TaskID:  job.ID,
		Status:  "pending",
		Message: "Task submitted successfully",
	})
	logOutcome(r, "separate submitted", http.StatusOK, start, nil)
}

// separateBatch queues one job per description against a single upload.
//
// @Summary  Submit one job per description
// @Tags     separate
// @Accept   multipart/form-data
// @Produce  json
// @Param    file         formData file   true  "Audio or video file"
// @Param    descriptions formData string true  "JSON array of text prompts"
// @Param    mode         formData string false "extract or remove" default(extract)
// @Success  200 {array}  types.SeparationResponse
// @Failure  400 {object} types.ErrorResponse
// @Failure  422 {object} types.ErrorResponse
// @Failure  429 {object} types.ErrorResponse
// @Failure  503 {object} types.ErrorResponse
// @Router   /api/separate/batch [post]
func (a *api) separateBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	file, header, ok := a.parseUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	var descs []string
	if err := json.Unmarshal([]byte(r.FormValue("descriptions")), &descs); err != nil || len(descs) == 0 {
		writeJSONError(w, http.StatusBadRequest, "Invalid descriptions format")
		return
	}
	if !a.allowSubmit(w, r, len(descs)) {
		return
	}

	ctx, cancel := a.submitContext(r)
	defer cancel()

	base := a.d.NewID()
	path, err := a.saveUpload(file, header.Filename, base)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to save upload")
		logOutcome(r, "batch failed", http.StatusInternalServerError, start, err)
		return
	}

	batch := make([]jobs.Job, len(descs))
	out := make([]types.SeparationResponse, len(descs))
	for i, desc := range descs {
		batch[i] = jobs.Job{
			ID:            fmt.Sprintf("%s-%d", base, i),
			InputPath:     path,
			Description:   desc,
			Mode:          jobs.Mode(r.FormValue("mode")),
			ModelSize:     batchModelSize,
			ChunkDuration: a.d.ChunkDuration,
			Precision:     model.Precision(a.d.Precision),
		}
		out[i] = types.SeparationResponse{
			TaskID:  batch[i].ID,
			Status:  "pending",
			Message: fmt.Sprintf("Task for '%s' submitted", desc),
		}
	}
	if err := a.d.Jobs.SubmitBatch(ctx, batch); err != nil {
		_ = os.Remove(path)
		if errors.Is(err, jobs.ErrQueueFull) {
			IncrementBackpressure("queue")
		}
		status := writeError(w, err)
		logOutcome(r, "batch rejected", status, start, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
	logOutcome(r, "batch submitted", http.StatusOK, start, nil)
}

// allowSubmit applies the submission rate limit for n jobs.
func (a *api) allowSubmit(w http.ResponseWriter, r *http.Request, n int) bool {
	if lim := submitLimiter; lim != nil && !lim.AllowN(time.Now(), n) {
		IncrementBackpressure("rate")
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, http.StatusTooManyRequests, "too many submissions, retry later")
		return false
	}
	return true
}

func (a *api) parseUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large") {
			writeJSONError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", maxUploadBytes))
			return nil, nil, false
		}
		writeJSONError(w, http.StatusBadRequest, "expected multipart/form-data body")
		return nil, nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "file is required")
		return nil, nil, false
	}
	return file, header, true
}

func (a *api) jobFromForm(r *http.Request) (jobs.Job, error) {
	job := jobs.Job{
		Description:   r.FormValue("description"),
		Mode:          jobs.Mode(r.FormValue("mode")),
		ModelSize:     r.FormValue("model_size"),
		ChunkDuration: a.d.ChunkDuration,
		Precision:     model.Precision(a.d.Precision),
		SubmittedAt:   time.Now(),
	}
	if job.ModelSize == "" {
		job.ModelSize = a.d.DefaultModelSize
	}
	if v := r.FormValue("precision"); v != "" {
		job.Precision = model.Precision(strings.ToLower(v))
	}
	if v := r.FormValue("chunk_duration"); v != "" {
		sec, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return job, badRequest("chunk_duration must be a number of seconds")
		}
		job.ChunkDuration = time.Duration(sec * float64(time.Second))
	}
	st, err := formFloat(r, "start_time")
	if err != nil {
		return job, err
	}
	et, err := formFloat(r, "end_time")
	if err != nil {
		return job, err
	}
	anchors, err := jobs.SpanAnchors(st, et)
	if err != nil {
		return job, err
	}
	job.Anchors = anchors
	return job, nil
}

func formFloat(r *http.Request, key string) (*float64, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, badRequest(key + " must be a number")
	}
	return &f, nil
}

// saveUpload copies the upload to <UploadDir>/<id><ext>.
func (a *api) saveUpload(src io.Reader, name, id string) (string, error) {
	if err := fsutil.EnsureDir(a.d.UploadDir); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if ext == "" {
		ext = defaultUploadExt
	}
	path := filepath.Join(a.d.UploadDir, id+ext)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(f, src)
	if err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	uploadBytes.Observe(float64(n))
	return path, nil
}

type requestError struct{ msg string }

func (e requestError) Error() string   { return e.msg }
func (e requestError) StatusCode() int { return http.StatusBadRequest }

func badRequest(msg string) error { return requestError{msg: msg} }
