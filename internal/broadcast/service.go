package broadcast

import (
	"context"
	"time"
)

// Config carries the tunables the core needs. Values are passed in
// explicitly rather than read from ambient globals so resolution stays a
// pure function of its inputs.
type Config struct {
	// DefaultDuration is the effective duration, in seconds, for entries
	// without a stored one. Zero means DefaultEntryDuration.
	DefaultDuration int64
	// UpstreamTimeout bounds passthrough manifest fetches.
	UpstreamTimeout time.Duration
	// CacheTTL bounds the optional passthrough cache. Zero disables it.
	CacheTTL time.Duration
}

// Manifest is the outbound delivery document for a channel request.
type Manifest struct {
	Body        string
	ContentType string
	Passthrough bool
}

// Service orchestrates a stream request: repository lookup, playback
// resolution, manifest construction. It holds no per-viewer state; every
// request recomputes the resolution from the current playlist and clock,
// so any number of instances serve the same channel without coordination.
type Service struct {
	repo  Repository
	synth *Synthesizer
	cfg   Config
	now   func() time.Time
}

// NewService returns a Service reading through repo and building
// manifests with synth.
func NewService(repo Repository, synth *Synthesizer, cfg Config) *Service {
	return &Service{repo: repo, synth: synth, cfg: cfg, now: time.Now}
}

// ResolveNow returns the playback position for the channel at the
// current wall-clock time. Inactive channels resolve exactly like
// missing ones.
func (s *Service) ResolveNow(ctx context.Context, slug string) (ResolvedPlayback, error) {
	ch, err := s.repo.GetChannelBySlug(ctx, slug)
	if err != nil {
		return ResolvedPlayback{}, err
	}
	if !ch.IsActive {
		return ResolvedPlayback{}, ErrChannelNotFound
	}

	entries, err := s.repo.ListEntries(ctx, ch.ID)
	if err != nil {
		return ResolvedPlayback{}, err
	}
	if len(entries) == 0 {
		return ResolvedPlayback{}, ErrNoContent
	}

	return Resolve(entries, s.now().Unix(), s.cfg.DefaultDuration)
}

// Manifest resolves the channel and builds the delivery manifest for its
// on-air entry.
func (s *Service) Manifest(ctx context.Context, slug string) (Manifest, error) {
	rp, err := s.ResolveNow(ctx, slug)
	if err != nil {
		return Manifest{}, err
	}
	body, err := s.synth.Build(ctx, rp)
	if err != nil {
		return Manifest{}, err
	}
	return Manifest{
		Body:        body,
		ContentType: ManifestContentType,
		Passthrough: IsPassthrough(rp.Entry.VideoURL),
	}, nil
}
