package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"looptv/internal/broadcast"
	"looptv/internal/store"

	"github.com/go-chi/chi/v5"
)

func newTestRouter(t *testing.T) (*chi.Mux, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	h := NewHandler(st, log)

	r := chi.NewRouter()
	r.Mount("/admin", h.Routes())
	return r, st
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func createChannel(t *testing.T, r http.Handler, name, slug string) broadcast.Channel {
	t.Helper()
	rec := doJSON(t, r, http.MethodPost, "/admin/channels", map[string]any{
		"name": name, "slug": slug,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create channel: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var ch broadcast.Channel
	if err := json.NewDecoder(rec.Body).Decode(&ch); err != nil {
		t.Fatal(err)
	}
	return ch
}

func addVideo(t *testing.T, r http.Handler, channelID string, body map[string]any) broadcast.PlaylistEntry {
	t.Helper()
	rec := doJSON(t, r, http.MethodPost, "/admin/channels/"+channelID+"/videos", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add video: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var e broadcast.PlaylistEntry
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatal(err)
	}
	return e
}

func TestAdmin_CreateChannel(t *testing.T) {
	r, _ := newTestRouter(t)

	ch := createChannel(t, r, "Retro", "retro")
	if ch.ID == "" || !ch.IsActive {
		t.Errorf("got %+v", ch)
	}

	t.Run("duplicate_slug_conflict", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodPost, "/admin/channels", map[string]any{
			"name": "Other", "slug": "retro",
		})
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("missing_fields", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodPost, "/admin/channels", map[string]any{"name": "X"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("bad_body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/channels", bytes.NewReader([]byte("not json")))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestAdmin_UpdateChannel(t *testing.T) {
	r, _ := newTestRouter(t)
	ch := createChannel(t, r, "Retro", "retro")

	rec := doJSON(t, r, http.MethodPut, "/admin/channels/"+ch.ID, map[string]any{
		"name": "Retro Gold", "is_active": false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var updated broadcast.Channel
	if err := json.NewDecoder(rec.Body).Decode(&updated); err != nil {
		t.Fatal(err)
	}
	if updated.Name != "Retro Gold" || updated.IsActive || updated.Slug != "retro" {
		t.Errorf("got %+v", updated)
	}

	t.Run("unknown_id", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodPut, "/admin/channels/nope", map[string]any{"name": "X"})
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestAdmin_DeleteChannel(t *testing.T) {
	r, _ := newTestRouter(t)
	ch := createChannel(t, r, "Retro", "retro")

	rec := doJSON(t, r, http.MethodDelete, "/admin/channels/"+ch.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/admin/channels/"+ch.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestAdmin_AddVideo(t *testing.T) {
	r, _ := newTestRouter(t)
	ch := createChannel(t, r, "Retro", "retro")

	e := addVideo(t, r, ch.ID, map[string]any{
		"video_url": "https://cdn.example/a.mp4", "title": "A", "duration": 100,
	})
	if e.Position != 0 || e.Duration == nil || *e.Duration != 100 {
		t.Errorf("got %+v", e)
	}

	// No duration: stays unknown so the resolver applies the default.
	b := addVideo(t, r, ch.ID, map[string]any{
		"video_url": "https://cdn.example/b.mp4", "title": "B",
	})
	if b.Duration != nil || b.Position != 1 {
		t.Errorf("got %+v", b)
	}

	t.Run("missing_fields", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodPost, "/admin/channels/"+ch.ID+"/videos", map[string]any{"title": "X"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unknown_channel", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodPost, "/admin/channels/nope/videos", map[string]any{
			"video_url": "u", "title": "X",
		})
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestAdmin_UpdateVideo(t *testing.T) {
	r, _ := newTestRouter(t)
	ch := createChannel(t, r, "Retro", "retro")
	e := addVideo(t, r, ch.ID, map[string]any{
		"video_url": "https://cdn.example/a.mp4", "title": "A", "duration": 100,
	})

	rec := doJSON(t, r, http.MethodPut, "/admin/videos/"+e.ID, map[string]any{
		"title": "A2", "duration": nil,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var updated broadcast.PlaylistEntry
	if err := json.NewDecoder(rec.Body).Decode(&updated); err != nil {
		t.Fatal(err)
	}
	if updated.Title != "A2" {
		t.Errorf("title = %s", updated.Title)
	}
	if updated.Duration != nil {
		t.Errorf("explicit null should clear the duration, got %v", *updated.Duration)
	}
}

func TestAdmin_ReorderVideos(t *testing.T) {
	r, st := newTestRouter(t)
	ch := createChannel(t, r, "Retro", "retro")
	a := addVideo(t, r, ch.ID, map[string]any{"video_url": "u", "title": "A"})
	b := addVideo(t, r, ch.ID, map[string]any{"video_url": "u", "title": "B"})
	c := addVideo(t, r, ch.ID, map[string]any{"video_url": "u", "title": "C"})

	rec := doJSON(t, r, http.MethodPost, "/admin/channels/"+ch.ID+"/videos/reorder", map[string]any{
		"video_ids": []string{c.ID, a.ID, b.ID},
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodGet, "/admin/channels/"+ch.ID+"/videos", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var entries []broadcast.PlaylistEntry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	for i, want := range []string{"C", "A", "B"} {
		if entries[i].Title != want {
			t.Errorf("entries[%d] = %s, want %s", i, entries[i].Title, want)
		}
	}

	// The reorder is visible to the stream read side too.
	ordered, err := st.ListEntries(context.Background(), ch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ordered[0].Title != "C" {
		t.Errorf("read side sees %s first, want C", ordered[0].Title)
	}

	t.Run("unknown_id", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodPost, "/admin/channels/"+ch.ID+"/videos/reorder", map[string]any{
			"video_ids": []string{"nope"},
		})
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("empty_list", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodPost, "/admin/channels/"+ch.ID+"/videos/reorder", map[string]any{
			"video_ids": []string{},
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestAdmin_ListChannels(t *testing.T) {
	r, _ := newTestRouter(t)
	createChannel(t, r, "A", "a")
	createChannel(t, r, "B", "b")

	rec := doJSON(t, r, http.MethodGet, "/admin/channels", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var channels []broadcast.Channel
	if err := json.NewDecoder(rec.Body).Decode(&channels); err != nil {
		t.Fatal(err)
	}
	if len(channels) != 2 {
		t.Errorf("expected 2 channels, got %d", len(channels))
	}
}
