package broadcast

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"looptv/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

// SetCORS attaches the permissive cross-origin headers every public
// response carries; players and the admin frontend run on arbitrary
// origins.
func SetCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Client-Info, Apikey")
}

// ErrorBody is the JSON shape of every failure response.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteError writes a JSON failure response with CORS headers attached.
func WriteError(w http.ResponseWriter, status int, msg, details string) {
	SetCORS(w.Header())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{Error: msg, Details: details})
}

// Handler exposes the stream endpoints using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler over svc. Metrics may be nil to disable
// metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// GetStream handles GET /stream/{slug}: the always-on manifest for a
// channel. Successful bodies are only valid for "now", hence the
// explicit no-cache directive.
func (h *Handler) GetStream(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		// Unreachable under the chi routes in cmd/server; a back stop
		// for alternate routers that mount the handler directly.
		WriteError(w, http.StatusBadRequest, "Channel slug is required", "")
		return
	}

	m, err := h.svc.Manifest(r.Context(), slug)
	if err != nil {
		h.writeFailure(w, slug, err)
		return
	}

	SetCORS(w.Header())
	w.Header().Set("Content-Type", m.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(m.Body))

	if h.metrics != nil {
		if m.Passthrough {
			h.metrics.IncManifestsPassthrough()
		} else {
			h.metrics.IncManifestsSynthesized()
		}
	}
}

// nowPlayingBody is the JSON shape of the now-playing endpoint. It is
// the surface that exposes the within-entry offset the synthesized
// manifest does not apply.
type nowPlayingBody struct {
	Channel           string        `json:"channel"`
	Video             PlaylistEntry `json:"video"`
	Offset            int64         `json:"offset"`
	EffectiveDuration int64         `json:"effective_duration"`
	CycleLength       int64         `json:"cycle_length"`
}

// NowPlaying handles GET /stream/{slug}/now: the resolved playback
// position as JSON.
func (h *Handler) NowPlaying(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		// Same back stop as GetStream for routers without the pattern.
		WriteError(w, http.StatusBadRequest, "Channel slug is required", "")
		return
	}

	rp, err := h.svc.ResolveNow(r.Context(), slug)
	if err != nil {
		h.writeFailure(w, slug, err)
		return
	}

	SetCORS(w.Header())
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(nowPlayingBody{
		Channel:           slug,
		Video:             rp.Entry,
		Offset:            rp.Offset,
		EffectiveDuration: rp.EffectiveDuration,
		CycleLength:       rp.CycleLength,
	})
}

// Preflight handles OPTIONS on the stream paths: CORS headers, no body.
func (h *Handler) Preflight(w http.ResponseWriter, r *http.Request) {
	SetCORS(w.Header())
	w.WriteHeader(http.StatusOK)
}

// MissingSlug handles stream requests without a channel identifier.
func (h *Handler) MissingSlug(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusBadRequest, "Channel slug is required", "")
}

// writeFailure maps the failure taxonomy to transport responses. This is
// the only layer that logs; the core components just return typed errors.
func (h *Handler) writeFailure(w http.ResponseWriter, slug string, err error) {
	switch {
	case errors.Is(err, ErrChannelNotFound):
		WriteError(w, http.StatusNotFound, "Channel not found", "")
	case errors.Is(err, ErrNoContent),
		errors.Is(err, ErrEmptyPlaylist),
		errors.Is(err, ErrDegenerateCycle):
		WriteError(w, http.StatusNotFound, "No videos in playlist", "")
	case errors.Is(err, ErrUpstreamUnavailable):
		h.log.Warn("upstream manifest fetch failed",
			slog.String("slug", slug),
			slog.String("error", err.Error()))
		if h.metrics != nil {
			h.metrics.IncUpstreamErrors()
		}
		WriteError(w, http.StatusBadGateway, "Upstream unavailable", "")
	default:
		h.log.Error("stream request failed",
			slog.String("slug", slug),
			slog.String("error", err.Error()))
		WriteError(w, http.StatusInternalServerError, "Internal server error", err.Error())
	}
}
