package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/strongdm/paramref/internal/catalog"
	"github.com/strongdm/paramref/internal/eventlog"
	"github.com/strongdm/paramref/internal/paramref"
	"github.com/strongdm/paramref/internal/suggest"
)

const (
	maxPayloadBytes = 1 << 20 // 1 MiB
)

type catalogAPI struct {
	mgr     *catalog.Manager
	checker suggest.Checker
}

func newCatalogAPI(mgr *catalog.Manager, checker suggest.Checker) *catalogAPI {
	return &catalogAPI{mgr: mgr, checker: checker}
}

func (api *catalogAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("/api/parameters", api.handleParameters)
	mux.HandleFunc("/api/parameters/autocomplete", api.handleAutocomplete)
	mux.HandleFunc("/api/parameters/validate", api.handleValidate)
	mux.HandleFunc("/api/parameters/", api.handleParameterByName)
	mux.HandleFunc("/api/templates/validate", api.handleTemplateValidate)
}

func (api *catalogAPI) handleParameters(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		all := r.URL.Query().Get("all")
		includeInactive := all == "1" || strings.EqualFold(all, "true")
		writeJSON(w, http.StatusOK, catalog.ParametersResponse{Parameters: api.mgr.List(includeInactive)})
	case http.MethodPost:
		api.upsert(w, r, "")
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (api *catalogAPI) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	params, err := api.mgr.SearchParameters(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	resp := catalog.SuggestionsResponse{Suggestions: make([]catalog.Suggestion, 0, len(params))}
	for _, p := range params {
		resp.Suggestions = append(resp.Suggestions, catalog.SuggestionFor(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (api *catalogAPI) handleValidate(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req catalog.ValidateRequest
	if !readJSON(w, r, &req) {
		return
	}
	res := api.checker.CheckText(r.Context(), req.Text)
	writeJSON(w, http.StatusOK, catalog.ValidateResponseFor(res))
}

func (api *catalogAPI) handleTemplateValidate(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req catalog.TemplateValidateRequest
	if !readJSON(w, r, &req) {
		return
	}
	res := api.checker.Check(r.Context(), req.Subject, req.Body)
	writeJSON(w, http.StatusOK, catalog.ValidateResponseFor(res))
}

func (api *catalogAPI) handleParameterByName(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/parameters/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		p, err := api.mgr.Get(name)
		if err != nil {
			writeCatalogError(w, err, "failed to load parameter")
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodPost, http.MethodPut:
		api.upsert(w, r, name)
	case http.MethodDelete:
		if err := api.mgr.Delete(r.Context(), name); err != nil {
			writeCatalogError(w, err, "failed to delete parameter")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type parameterUpsertRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	DataType     string `json:"dataType"`
	DefaultValue string `json:"defaultValue"`
	Active       *bool  `json:"active"`
}

func (api *catalogAPI) upsert(w http.ResponseWriter, r *http.Request, pathName string) {
	var req parameterUpsertRequest
	if !readJSON(w, r, &req) {
		return
	}

	p := paramref.Parameter{
		Name:         req.Name,
		Description:  req.Description,
		DataType:     paramref.DataType(req.DataType),
		DefaultValue: req.DefaultValue,
		Active:       true,
	}
	if p.DataType == "" {
		p.DataType = paramref.TypeString
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if pathName != "" {
		if existing, err := api.mgr.Get(pathName); err == nil && req.Active == nil {
			p.Active = existing.Active
		}
	}

	stored, err := api.mgr.Upsert(r.Context(), pathName, p)
	if err != nil {
		writeCatalogError(w, err, "failed to save parameter")
		return
	}
	eventlog.Emit("catalog.upsert", map[string]any{"name": stored.Name, "path_name": pathName})
	writeJSON(w, http.StatusOK, stored)
}

func writeCatalogError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, catalog.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "invalid parameter name")
	case errors.Is(err, catalog.ErrInvalidParameter):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrConflict):
		writeError(w, http.StatusConflict, "parameter already exists")
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "parameter not found")
	default:
		eventlog.Emit("api.error", map[string]any{"error": err})
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// readJSON decodes a bounded, non-empty JSON body into dst. It writes the
// error response itself and reports whether decoding succeeded.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body exceeds 1MiB limit")
			return false
		}
		writeError(w, http.StatusBadRequest, "failed to read body")
		return false
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "body required")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func preflight(w http.ResponseWriter, r *http.Request) bool {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	var resp catalog.ErrorResponse
	resp.Error.Message = message
	writeJSON(w, status, resp)
}
