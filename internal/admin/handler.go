// Package admin exposes the JSON CRUD API operators use to manage
// channels and their playlists. It is the write side the stream
// endpoint deliberately lacks: edits take effect on the very next
// stream request because nothing on the read path is cached.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"looptv/internal/broadcast"

	"github.com/go-chi/chi/v5"
)

// Store is the write-side persistence contract for the admin API.
type Store interface {
	ListChannels(ctx context.Context) ([]broadcast.Channel, error)
	GetChannel(ctx context.Context, id string) (broadcast.Channel, error)
	CreateChannel(ctx context.Context, ch broadcast.Channel) (broadcast.Channel, error)
	UpdateChannel(ctx context.Context, ch broadcast.Channel) (broadcast.Channel, error)
	DeleteChannel(ctx context.Context, id string) error

	ListEntries(ctx context.Context, channelID string) ([]broadcast.PlaylistEntry, error)
	GetEntry(ctx context.Context, id string) (broadcast.PlaylistEntry, error)
	AddEntry(ctx context.Context, e broadcast.PlaylistEntry) (broadcast.PlaylistEntry, error)
	UpdateEntry(ctx context.Context, e broadcast.PlaylistEntry) (broadcast.PlaylistEntry, error)
	DeleteEntry(ctx context.Context, id string) error

	// ReorderEntries applies a full position rewrite for the listed
	// entries as a single atomic batch.
	ReorderEntries(ctx context.Context, channelID string, orderedIDs []string) error
}

// Handler exposes the admin endpoints using go-chi.
type Handler struct {
	store Store
	log   *slog.Logger
}

// NewHandler returns a Handler over store.
func NewHandler(store Store, log *slog.Logger) *Handler {
	return &Handler{store: store, log: log}
}

// Routes returns the admin router, mounted under /admin.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/channels", h.ListChannels)
	r.Post("/channels", h.CreateChannel)
	r.Route("/channels/{id}", func(r chi.Router) {
		r.Get("/", h.GetChannel)
		r.Put("/", h.UpdateChannel)
		r.Delete("/", h.DeleteChannel)
		r.Get("/videos", h.ListVideos)
		r.Post("/videos", h.AddVideo)
		r.Post("/videos/reorder", h.ReorderVideos)
	})
	r.Put("/videos/{id}", h.UpdateVideo)
	r.Delete("/videos/{id}", h.DeleteVideo)
	return r
}

type channelRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

type videoRequest struct {
	VideoURL string `json:"video_url"`
	Title    string `json:"title"`
	Duration *int64 `json:"duration"`
	Position *int   `json:"position"`
}

type reorderRequest struct {
	VideoIDs []string `json:"video_ids"`
}

// ListChannels handles GET /admin/channels.
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.store.ListChannels(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

// CreateChannel handles POST /admin/channels.
func (h *Handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		broadcast.WriteError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if req.Name == "" || req.Slug == "" {
		broadcast.WriteError(w, http.StatusBadRequest, "Name and slug are required", "")
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	ch, err := h.store.CreateChannel(r.Context(), broadcast.Channel{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		IsActive:    active,
	})
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.log.Info("channel created",
		slog.String("id", ch.ID), slog.String("slug", ch.Slug))
	writeJSON(w, http.StatusCreated, ch)
}

// GetChannel handles GET /admin/channels/{id}.
func (h *Handler) GetChannel(w http.ResponseWriter, r *http.Request) {
	ch, err := h.store.GetChannel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

// UpdateChannel handles PUT /admin/channels/{id}. Absent fields keep
// their stored values.
func (h *Handler) UpdateChannel(w http.ResponseWriter, r *http.Request) {
	ch, err := h.store.GetChannel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		broadcast.WriteError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if req.Name != "" {
		ch.Name = req.Name
	}
	if req.Slug != "" {
		ch.Slug = req.Slug
	}
	if req.Description != "" {
		ch.Description = req.Description
	}
	if req.IsActive != nil {
		ch.IsActive = *req.IsActive
	}

	updated, err := h.store.UpdateChannel(r.Context(), ch)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteChannel handles DELETE /admin/channels/{id}.
func (h *Handler) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteChannel(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListVideos handles GET /admin/channels/{id}/videos, in playback order.
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.store.GetChannel(r.Context(), id); err != nil {
		h.writeFailure(w, err)
		return
	}
	entries, err := h.store.ListEntries(r.Context(), id)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// AddVideo handles POST /admin/channels/{id}/videos. Without an
// explicit position the video is appended to the end of the playlist.
func (h *Handler) AddVideo(w http.ResponseWriter, r *http.Request) {
	var req videoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		broadcast.WriteError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if req.VideoURL == "" || req.Title == "" {
		broadcast.WriteError(w, http.StatusBadRequest, "Video URL and title are required", "")
		return
	}

	position := -1
	if req.Position != nil {
		position = *req.Position
	}
	e, err := h.store.AddEntry(r.Context(), broadcast.PlaylistEntry{
		ChannelID: chi.URLParam(r, "id"),
		VideoURL:  req.VideoURL,
		Title:     req.Title,
		Duration:  req.Duration,
		Position:  position,
	})
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// UpdateVideo handles PUT /admin/videos/{id}. Absent fields keep their
// stored values; duration may be set to null to mark it unknown again.
func (h *Handler) UpdateVideo(w http.ResponseWriter, r *http.Request) {
	e, err := h.store.GetEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	var req struct {
		VideoURL string          `json:"video_url"`
		Title    string          `json:"title"`
		Duration json.RawMessage `json:"duration"`
		Position *int            `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		broadcast.WriteError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if req.VideoURL != "" {
		e.VideoURL = req.VideoURL
	}
	if req.Title != "" {
		e.Title = req.Title
	}
	if req.Position != nil {
		e.Position = *req.Position
	}
	if len(req.Duration) > 0 {
		if string(req.Duration) == "null" {
			e.Duration = nil
		} else {
			var d int64
			if err := json.Unmarshal(req.Duration, &d); err != nil {
				broadcast.WriteError(w, http.StatusBadRequest, "Invalid duration", "")
				return
			}
			e.Duration = &d
		}
	}

	updated, err := h.store.UpdateEntry(r.Context(), e)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteVideo handles DELETE /admin/videos/{id}.
func (h *Handler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteEntry(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReorderVideos handles POST /admin/channels/{id}/videos/reorder: one
// transactional batch update of position values.
func (h *Handler) ReorderVideos(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		broadcast.WriteError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if len(req.VideoIDs) == 0 {
		broadcast.WriteError(w, http.StatusBadRequest, "video_ids is required", "")
		return
	}

	if err := h.store.ReorderEntries(r.Context(), chi.URLParam(r, "id"), req.VideoIDs); err != nil {
		h.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, broadcast.ErrChannelNotFound):
		broadcast.WriteError(w, http.StatusNotFound, "Channel not found", "")
	case errors.Is(err, broadcast.ErrEntryNotFound):
		broadcast.WriteError(w, http.StatusNotFound, "Video not found", "")
	case errors.Is(err, broadcast.ErrSlugTaken):
		broadcast.WriteError(w, http.StatusConflict, "Slug already in use", "")
	default:
		h.log.Error("admin request failed", slog.String("error", err.Error()))
		broadcast.WriteError(w, http.StatusInternalServerError, "Internal server error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	broadcast.SetCORS(w.Header())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
