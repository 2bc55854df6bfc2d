package broadcast

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newStreamRouter(repo *stubRepo, instant int64) *chi.Mux {
	svc := newTestService(repo, instant)
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	h := NewHandler(svc, log, nil)

	r := chi.NewRouter()
	r.Route("/stream", func(r chi.Router) {
		r.Get("/", h.MissingSlug)
		r.Get("/{slug}", h.GetStream)
		r.Options("/{slug}", h.Preflight)
		r.Get("/{slug}/now", h.NowPlaying)
	})
	return r
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v (raw: %s)", err, rec.Body.String())
	}
	return body
}

func TestHandler_GetStream_synthesized(t *testing.T) {
	repo := &stubRepo{
		channel: activeChannel(),
		entries: []PlaylistEntry{testEntry("A", secs(100), 0)},
	}
	r := newStreamRouter(repo, 50)

	req := httptest.NewRequest(http.MethodGet, "/stream/retro", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/vnd.apple.mpegurl" {
		t.Errorf("content type = %s", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("cache control = %s, want no-cache", cc)
	}
	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("allow origin = %s, want *", origin)
	}
	if methods := rec.Header().Get("Access-Control-Allow-Methods"); methods != "GET, POST, PUT, DELETE, OPTIONS" {
		t.Errorf("allow methods = %s", methods)
	}
	if !strings.HasPrefix(rec.Body.String(), "#EXTM3U\n") {
		t.Errorf("unexpected body: %q", rec.Body.String())
	}
}

func TestHandler_GetStream_channel_not_found(t *testing.T) {
	repo := &stubRepo{channelErr: ErrChannelNotFound}
	r := newStreamRouter(repo, 50)

	req := httptest.NewRequest(http.MethodGet, "/stream/nope", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Error != "Channel not found" {
		t.Errorf("error = %q, want %q", body.Error, "Channel not found")
	}
}

func TestHandler_GetStream_empty_playlist(t *testing.T) {
	repo := &stubRepo{channel: activeChannel()}
	r := newStreamRouter(repo, 50)

	req := httptest.NewRequest(http.MethodGet, "/stream/retro", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Error != "No videos in playlist" {
		t.Errorf("error = %q, want %q", body.Error, "No videos in playlist")
	}
}

func TestHandler_GetStream_degenerate_playlist(t *testing.T) {
	repo := &stubRepo{
		channel: activeChannel(),
		entries: []PlaylistEntry{testEntry("A", secs(0), 0)},
	}
	r := newStreamRouter(repo, 50)

	req := httptest.NewRequest(http.MethodGet, "/stream/retro", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for degenerate cycle, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Error != "No videos in playlist" {
		t.Errorf("error = %q, want %q", body.Error, "No videos in playlist")
	}
}

func TestHandler_GetStream_missing_slug(t *testing.T) {
	repo := &stubRepo{channel: activeChannel()}
	r := newStreamRouter(repo, 50)

	req := httptest.NewRequest(http.MethodGet, "/stream/", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Error != "Channel slug is required" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestHandler_GetStream_upstream_unavailable(t *testing.T) {
	// Unroutable upstream: the entry claims a pre-segmented manifest but
	// nothing answers.
	entry := testEntry("L", secs(30), 0)
	entry.VideoURL = "http://127.0.0.1:1/live.m3u8"
	repo := &stubRepo{channel: activeChannel(), entries: []PlaylistEntry{entry}}
	r := newStreamRouter(repo, 10)

	req := httptest.NewRequest(http.MethodGet, "/stream/retro", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Error != "Upstream unavailable" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestHandler_GetStream_internal_error_includes_details(t *testing.T) {
	repo := &stubRepo{channelErr: errors.New("db on fire")}
	r := newStreamRouter(repo, 50)

	req := httptest.NewRequest(http.MethodGet, "/stream/retro", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Error != "Internal server error" {
		t.Errorf("error = %q", body.Error)
	}
	if body.Details == "" {
		t.Error("expected details on unexpected failures")
	}
}

func TestHandler_Preflight(t *testing.T) {
	repo := &stubRepo{channel: activeChannel()}
	r := newStreamRouter(repo, 50)

	req := httptest.NewRequest(http.MethodOptions, "/stream/retro", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("preflight should have no body, got %q", rec.Body.String())
	}
	if h := rec.Header().Get("Access-Control-Allow-Headers"); h != "Content-Type, Authorization, X-Client-Info, Apikey" {
		t.Errorf("allow headers = %s", h)
	}
}

func TestHandler_NowPlaying(t *testing.T) {
	repo := &stubRepo{
		channel: activeChannel(),
		entries: []PlaylistEntry{
			testEntry("A", secs(100), 0),
			testEntry("B", secs(200), 1),
		},
	}
	r := newStreamRouter(repo, 150)

	req := httptest.NewRequest(http.MethodGet, "/stream/retro/now", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Channel           string        `json:"channel"`
		Video             PlaylistEntry `json:"video"`
		Offset            int64         `json:"offset"`
		EffectiveDuration int64         `json:"effective_duration"`
		CycleLength       int64         `json:"cycle_length"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Channel != "retro" || body.Video.ID != "B" {
		t.Errorf("now playing = %s/%s, want retro/B", body.Channel, body.Video.ID)
	}
	if body.Offset != 50 || body.EffectiveDuration != 200 || body.CycleLength != 300 {
		t.Errorf("offset=%d eff=%d cycle=%d, want 50/200/300",
			body.Offset, body.EffectiveDuration, body.CycleLength)
	}
}
