// Package http exposes the catalog and download lifecycle over HTTP/JSON.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"

	catalogapp "github.com/narwhalmedia/deadarchive/internal/application/catalog"
	"github.com/narwhalmedia/deadarchive/internal/domain/catalog"
	"github.com/narwhalmedia/deadarchive/internal/domain/download"
	apperrors "github.com/narwhalmedia/deadarchive/pkg/errors"
	"github.com/narwhalmedia/deadarchive/pkg/pagination"
)

// Catalog is the read side served by the handler
type Catalog interface {
	GetShow(ctx context.Context, id string) (*catalog.Show, error)
	SearchShows(ctx context.Context, query string) <-chan catalogapp.SearchEmission
	PlaylistForShow(ctx context.Context, showID string) (string, error)
	ToggleFavorite(ctx context.Context, showID string) (bool, error)
	ToggleTrackFavorite(ctx context.Context, showID, filename string) (bool, error)
}

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// Handler serves the HTTP API
type Handler struct {
	catalog   Catalog
	downloads download.Service
	checks    map[string]HealthCheck
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(c Catalog, downloads download.Service, checks map[string]HealthCheck, logger *zap.Logger) *Handler {
	return &Handler{
		catalog:   c,
		downloads: downloads,
		checks:    checks,
		logger:    logger.Named("http"),
	}
}

// Routes builds the mux wrapped in logging and recovery middleware
func (h *Handler) Routes() (http.Handler, error) {
	mux := runtime.NewServeMux()

	routes := []struct {
		method, pattern string
		handler         runtime.HandlerFunc
	}{
		{http.MethodGet, "/health", h.health},
		{http.MethodGet, "/v1/shows", h.searchShows},
		{http.MethodGet, "/v1/shows/{id}", h.getShow},
		{http.MethodGet, "/v1/shows/{id}/playlist.m3u", h.playlist},
		{http.MethodPost, "/v1/favorites/shows/{id}", h.toggleShowFavorite},
		{http.MethodPost, "/v1/favorites/tracks/{showId}/{filename}", h.toggleTrackFavorite},
		{http.MethodGet, "/v1/downloads", h.listDownloads},
		{http.MethodPost, "/v1/downloads", h.startDownload},
		{http.MethodGet, "/v1/downloads/{id}", h.getDownload},
		{http.MethodPost, "/v1/downloads/{id}/pause", h.pauseDownload},
		{http.MethodPost, "/v1/downloads/{id}/resume", h.resumeDownload},
		{http.MethodPost, "/v1/downloads/{id}/cancel", h.cancelDownload},
		{http.MethodDelete, "/v1/downloads/{id}", h.removeDownload},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.pattern, rt.handler); err != nil {
			return nil, err
		}
	}

	return Recovery(h.logger)(Logging(h.logger)(mux)), nil
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	status := map[string]string{}
	healthy := true
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, map[string]any{"healthy": healthy, "checks": status})
}

func (h *Handler) getShow(w http.ResponseWriter, r *http.Request, params map[string]string) {
	show, err := h.catalog.GetShow(r.Context(), params["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toShowDTO(show))
}

// searchShows streams every emission as one NDJSON line
func (h *Handler) searchShows(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		h.writeError(w, apperrors.BadRequest("query parameter q is required"))
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	for emission := range h.catalog.SearchShows(r.Context(), q) {
		line := searchLineDTO{
			Phase:    string(emission.Phase),
			Final:    emission.Final,
			Degraded: emission.Degraded,
			Shows:    toShowDTOs(emission.Shows),
		}
		if emission.Err != nil {
			line.Error = emission.Err.Error()
		}
		if err := enc.Encode(line); err != nil {
			h.logger.Debug("client went away during search", zap.Error(err))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (h *Handler) playlist(w http.ResponseWriter, r *http.Request, params map[string]string) {
	body, err := h.catalog.PlaylistForShow(r.Context(), params["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "audio/x-mpegurl")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

func (h *Handler) toggleShowFavorite(w http.ResponseWriter, r *http.Request, params map[string]string) {
	added, err := h.catalog.ToggleFavorite(r.Context(), params["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"favorite": added})
}

func (h *Handler) toggleTrackFavorite(w http.ResponseWriter, r *http.Request, params map[string]string) {
	added, err := h.catalog.ToggleTrackFavorite(r.Context(), params["showId"], params["filename"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"favorite": added})
}

func (h *Handler) listDownloads(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	entries, err := h.downloads.GetDownloadEntries(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	page, next, err := pagination.Page(entries, r.URL.Query().Get("page_token"), size, (*download.Entry).ID)
	if err != nil {
		h.writeError(w, apperrors.BadRequest(err.Error()))
		return
	}

	out := downloadListDTO{Downloads: make([]downloadDTO, 0, len(page)), NextPageToken: next, Total: len(entries)}
	for _, e := range page {
		out.Downloads = append(out.Downloads, toDownloadDTO(e))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getDownload(w http.ResponseWriter, r *http.Request, params map[string]string) {
	entry, err := h.downloads.GetDownload(r.Context(), params["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toDownloadDTO(entry))
}

func (h *Handler) startDownload(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req startDownloadRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		h.writeError(w, apperrors.BadRequest("invalid request body"))
		return
	}

	id, err := h.downloads.StartDownload(r.Context(), req.ShowID, req.RecordingID, req.TrackFilename, req.URL)
	if err != nil {
		h.writeError(w, err)
		return
	}
	entry, err := h.downloads.GetDownload(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, toDownloadDTO(entry))
}

func (h *Handler) pauseDownload(w http.ResponseWriter, r *http.Request, params map[string]string) {
	h.transition(w, r, params["id"], h.downloads.PauseDownload)
}

func (h *Handler) resumeDownload(w http.ResponseWriter, r *http.Request, params map[string]string) {
	h.transition(w, r, params["id"], h.downloads.ResumeDownload)
}

func (h *Handler) cancelDownload(w http.ResponseWriter, r *http.Request, params map[string]string) {
	h.transition(w, r, params["id"], h.downloads.CancelDownload)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, id string, fn func(context.Context, string) error) {
	if err := fn(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	entry, err := h.downloads.GetDownload(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toDownloadDTO(entry))
}

func (h *Handler) removeDownload(w http.ResponseWriter, r *http.Request, params map[string]string) {
	if err := h.downloads.RemoveDownload(r.Context(), params["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("failed to write response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := StatusCode(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}

	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeJSON(w, code, map[string]string{
		"error": message,
		"type":  string(apperrors.TypeOf(err)),
	})
}

// StatusCode maps an application error to its HTTP status
func StatusCode(err error) int {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeBadRequest:
		return http.StatusBadRequest
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict
	case apperrors.ErrorTypeRateLimited:
		return http.StatusTooManyRequests
	case apperrors.ErrorTypeTransient, apperrors.ErrorTypeMalformed:
		return http.StatusBadGateway
	}
	if errors.Is(err, context.Canceled) {
		return 499
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
