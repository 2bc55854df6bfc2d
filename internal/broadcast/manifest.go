package broadcast

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PlaylistSuffix marks source URLs that already point at a segmented
// manifest and are relayed instead of synthesized.
const PlaylistSuffix = ".m3u8"

// ManifestContentType is the content type for HLS playlists.
const ManifestContentType = "application/vnd.apple.mpegurl"

// ManifestCache holds passthrough manifest bodies for a bounded TTL to
// shed origin load under concurrent viewers. It is an optimization:
// misses and storage failures are silent, correctness never depends on it.
type ManifestCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, body string, ttl time.Duration)
}

// Synthesizer turns a resolved playback into the manifest body sent to a
// player, either by relaying a pre-segmented upstream manifest or by
// synthesizing a single-item VOD manifest for a raw media URL. It keeps
// no state across calls.
type Synthesizer struct {
	client   *http.Client
	cache    ManifestCache
	cacheTTL time.Duration
}

// NewSynthesizer returns a Synthesizer whose upstream fetches are bounded
// by timeout. cache may be nil to disable passthrough caching.
func NewSynthesizer(timeout time.Duration, cache ManifestCache, cacheTTL time.Duration) *Synthesizer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Synthesizer{
		client:   &http.Client{Timeout: timeout},
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// IsPassthrough reports whether url denotes a pre-segmented manifest.
func IsPassthrough(url string) bool {
	return strings.HasSuffix(url, PlaylistSuffix)
}

// Build produces the manifest body for rp. Failures to reach the
// upstream origin are reported as ErrUpstreamUnavailable and are not
// retried here; a player's next poll is the retry.
func (s *Synthesizer) Build(ctx context.Context, rp ResolvedPlayback) (string, error) {
	if IsPassthrough(rp.Entry.VideoURL) {
		return s.relay(ctx, rp)
	}
	return SynthesizeManifest(rp.Entry.VideoURL, rp.Entry.Title, rp.EffectiveDuration), nil
}

func (s *Synthesizer) relay(ctx context.Context, rp ResolvedPlayback) (string, error) {
	key := "manifest:" + rp.Entry.VideoURL
	if s.cache != nil {
		if body, ok := s.cache.Get(ctx, key); ok {
			return body, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rp.Entry.VideoURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: upstream returned HTTP %d", ErrUpstreamUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	if s.cache != nil {
		if ttl := s.relayTTL(rp); ttl > 0 {
			s.cache.Set(ctx, key, string(body), ttl)
		}
	}
	return string(body), nil
}

// relayTTL caps the configured cache TTL at the time remaining in the
// on-air entry's window, so a cached body can never be served for a
// resolution the clock has already moved past.
func (s *Synthesizer) relayTTL(rp ResolvedPlayback) time.Duration {
	if s.cacheTTL <= 0 {
		return 0
	}
	remaining := time.Duration(rp.EffectiveDuration-rp.Offset) * time.Second
	if remaining <= 0 {
		return 0
	}
	if s.cacheTTL < remaining {
		return s.cacheTTL
	}
	return remaining
}

// SynthesizeManifest builds the single-item VOD manifest advertising a
// raw media URL. The shape is fixed and players depend on it byte for
// byte: version 3, target duration equal to the entry's effective
// duration, media sequence 0, one EXTINF line carrying the title, the
// URL, and a terminal end marker with no trailing newline. The manifest
// is deliberately finite; a player that re-requests after finishing gets
// the next resolution, which is how the live illusion crosses entry
// boundaries. Mid-entry offsets are not applied here: a viewer joining
// mid-entry starts it from the beginning.
func SynthesizeManifest(url, title string, duration int64) string {
	return fmt.Sprintf("#EXTM3U\n"+
		"#EXT-X-VERSION:3\n"+
		"#EXT-X-TARGETDURATION:%d\n"+
		"#EXT-X-MEDIA-SEQUENCE:0\n"+
		"#EXTINF:%d,%s\n"+
		"%s\n"+
		"#EXT-X-ENDLIST", duration, duration, title, url)
}
