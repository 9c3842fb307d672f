package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
)

// taskStatus reports a task.
//
// @Summary  Task status
// @Tags     tasks
// @Produce  json
// @Param    id  path string true "Task id"
// @Success  200 {object} types.TaskStatus
// @Failure  404 {object} types.ErrorResponse
// @Router   /api/tasks/{id} [get]
func (a *api) taskStatus(w http.ResponseWriter, r *http.Request) {
	st, err := a.d.Jobs.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// listTasks lists the newest tasks.
//
// @Summary  Recent tasks
// @Tags     tasks
// @Produce  json
// @Param    limit query int false "Maximum tasks to return" default(10)
// @Success  200 {array} types.TaskStatus
// @Router   /api/tasks [get]
func (a *api) listTasks(w http.ResponseWriter, r *http.Request) {
	list, err := a.d.Jobs.Recent(r.Context(), queryInt(r, "limit", 10))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// cancelTask cancels a queued or running task.
//
// @Summary  Cancel a task
// @Tags     tasks
// @Produce  json
// @Param    id  path string true "Task id"
// @Success  200 {object} map[string]any
// @Failure  404 {object} types.ErrorResponse
// @Failure  409 {object} types.ErrorResponse
// @Router   /api/tasks/{id} [delete]
func (a *api) cancelTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := a.d.Jobs.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		status := writeError(w, err)
		logOutcome(r, "cancel rejected", status, start, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Task cancelled"})
	logOutcome(r, "cancel", http.StatusOK, start, nil)
}

// download serves one artifact of a completed task.
//
// @Summary  Download an artifact
// @Tags     tasks
// @Produce  audio/wav
// @Param    id    path string true "Task id"
// @Param    type  path string true "original, ghost, clean or video"
// @Success  200 {file} binary
// @Failure  400 {object} types.ErrorResponse
// @Failure  404 {object} types.ErrorResponse
// @Router   /api/tasks/{id}/download/{type} [get]
func (a *api) download(w http.ResponseWriter, r *http.Request) {
	id, kind := chi.URLParam(r, "id"), chi.URLParam(r, "type")
	switch kind {
	case "original", "ghost", "clean", "video":
	default:
		writeJSONError(w, http.StatusBadRequest, "Invalid file type")
		return
	}
	res, err := a.d.Jobs.Result(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if res == nil {
		writeJSONError(w, http.StatusNotFound, "Task not completed")
		return
	}
	path := res.Paths()[kind]
	f, err := os.Open(path)
	if path == "" || err != nil {
		writeJSONError(w, http.StatusNotFound, "File not found")
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "File not found")
		return
	}

	name := id + "_" + kind + filepath.Ext(path)
	if kind != "video" {
		w.Header().Set("Content-Type", "audio/wav")
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, fi.ModTime(), f)
}
