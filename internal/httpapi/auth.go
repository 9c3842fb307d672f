package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/oulianov/audioghost-ai/pkg/types"
)

// authStatus reports whether a hub token is stored and whether a local
// checkpoint exists.
//
// @Summary  Credential and checkpoint status
// @Tags     auth
// @Produce  json
// @Success  200 {object} types.AuthStatus
// @Router   /api/auth/status [get]
func (a *api) authStatus(w http.ResponseWriter, r *http.Request) {
	st := types.AuthStatus{
		Authenticated:   a.d.Tokens.HasToken(),
		ModelDownloaded: a.d.Catalog.HasLocalCheckpoints(),
	}
	if st.ModelDownloaded {
		st.ModelName, _ = a.d.Catalog.ModelName(a.d.DefaultModelSize)
	}
	writeJSON(w, http.StatusOK, st)
}

// saveToken stores the hub token used to fetch gated checkpoints.
//
// @Summary  Store the hub token
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body types.TokenRequest true "Token"
// @Success  200 {object} map[string]any
// @Failure  400 {object} types.ErrorResponse
// @Failure  412 {object} types.ErrorResponse
// @Router   /api/auth/token [post]
func (a *api) saveToken(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req types.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeJSONError(w, http.StatusBadRequest, "token is required")
		return
	}
	if err := a.d.Tokens.Save(req.Token); err != nil {
		status := writeError(w, err)
		logOutcome(r, "token rejected", status, start, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Token saved"})
	logOutcome(r, "token saved", http.StatusOK, start, nil)
}

// clearToken removes the stored token.
//
// @Summary  Remove the hub token
// @Tags     auth
// @Produce  json
// @Success  200 {object} map[string]any
// @Router   /api/auth/token [delete]
func (a *api) clearToken(w http.ResponseWriter, r *http.Request) {
	if err := a.d.Tokens.Clear(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Token removed"})
}
