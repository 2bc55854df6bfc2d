// Package store provides the durable and in-memory implementations of
// the broadcast read side and the admin write side.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"looptv/internal/broadcast"

	"github.com/google/uuid"
)

// Memory is a concurrency-safe in-memory store. It backs tests and the
// zero-config deployment mode (empty DATABASE_PATH). All reads return
// copies so callers never see internal state.
type Memory struct {
	mu       sync.RWMutex
	channels map[string]broadcast.Channel
	entries  map[string]broadcast.PlaylistEntry
}

// NewMemory returns a new empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		channels: make(map[string]broadcast.Channel),
		entries:  make(map[string]broadcast.PlaylistEntry),
	}
}

// Close implements the store lifecycle; it is a no-op for Memory.
func (m *Memory) Close() error {
	return nil
}

// GetChannelBySlug implements broadcast.Repository.
func (m *Memory) GetChannelBySlug(ctx context.Context, slug string) (broadcast.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ch := range m.channels {
		if ch.Slug == slug {
			return ch, nil
		}
	}
	return broadcast.Channel{}, broadcast.ErrChannelNotFound
}

// ListEntries implements broadcast.Repository: playback order, copies.
func (m *Memory) ListEntries(ctx context.Context, channelID string) ([]broadcast.PlaylistEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []broadcast.PlaylistEntry
	for _, e := range m.entries {
		if e.ChannelID == channelID {
			out = append(out, e)
		}
	}
	broadcast.SortEntries(out)
	return out, nil
}

// ListChannels returns all channels ordered by creation time.
func (m *Memory) ListChannels(ctx context.Context) ([]broadcast.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]broadcast.Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		out = append(out, ch)
	}
	sortChannels(out)
	return out, nil
}

// GetChannel returns the channel with the given id.
func (m *Memory) GetChannel(ctx context.Context, id string) (broadcast.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ch, ok := m.channels[id]
	if !ok {
		return broadcast.Channel{}, broadcast.ErrChannelNotFound
	}
	return ch, nil
}

// CreateChannel stores a new channel, assigning id and timestamps.
func (m *Memory) CreateChannel(ctx context.Context, ch broadcast.Channel) (broadcast.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.channels {
		if existing.Slug == ch.Slug {
			return broadcast.Channel{}, broadcast.ErrSlugTaken
		}
	}

	now := time.Now().UTC()
	ch.ID = uuid.NewString()
	ch.CreatedAt = now
	ch.UpdatedAt = now
	m.channels[ch.ID] = ch
	return ch, nil
}

// UpdateChannel replaces the mutable fields of an existing channel.
func (m *Memory) UpdateChannel(ctx context.Context, ch broadcast.Channel) (broadcast.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.channels[ch.ID]
	if !ok {
		return broadcast.Channel{}, broadcast.ErrChannelNotFound
	}
	for id, other := range m.channels {
		if id != ch.ID && other.Slug == ch.Slug {
			return broadcast.Channel{}, broadcast.ErrSlugTaken
		}
	}

	existing.Name = ch.Name
	existing.Slug = ch.Slug
	existing.Description = ch.Description
	existing.IsActive = ch.IsActive
	existing.UpdatedAt = time.Now().UTC()
	m.channels[ch.ID] = existing
	return existing, nil
}

// DeleteChannel removes a channel and its playlist entries.
func (m *Memory) DeleteChannel(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.channels[id]; !ok {
		return broadcast.ErrChannelNotFound
	}
	delete(m.channels, id)
	for eid, e := range m.entries {
		if e.ChannelID == id {
			delete(m.entries, eid)
		}
	}
	return nil
}

// GetEntry returns the playlist entry with the given id.
func (m *Memory) GetEntry(ctx context.Context, id string) (broadcast.PlaylistEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return broadcast.PlaylistEntry{}, broadcast.ErrEntryNotFound
	}
	return e, nil
}

// AddEntry stores a new playlist entry, assigning id and creation time.
// A negative position appends at the end of the playlist.
func (m *Memory) AddEntry(ctx context.Context, e broadcast.PlaylistEntry) (broadcast.PlaylistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.channels[e.ChannelID]; !ok {
		return broadcast.PlaylistEntry{}, broadcast.ErrChannelNotFound
	}

	if e.Position < 0 {
		e.Position = m.nextPositionLocked(e.ChannelID)
	}
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()
	m.entries[e.ID] = e
	return e, nil
}

// UpdateEntry replaces the mutable fields of an existing entry.
func (m *Memory) UpdateEntry(ctx context.Context, e broadcast.PlaylistEntry) (broadcast.PlaylistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.entries[e.ID]
	if !ok {
		return broadcast.PlaylistEntry{}, broadcast.ErrEntryNotFound
	}
	existing.VideoURL = e.VideoURL
	existing.Title = e.Title
	existing.Duration = e.Duration
	existing.Position = e.Position
	m.entries[e.ID] = existing
	return existing, nil
}

// DeleteEntry removes a playlist entry.
func (m *Memory) DeleteEntry(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; !ok {
		return broadcast.ErrEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

// ReorderEntries assigns positions 0..n-1 to the listed entries in the
// given order, as one atomic operation. Every id must belong to the
// channel; entries not listed keep their positions.
func (m *Memory) ReorderEntries(ctx context.Context, channelID string, orderedIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate before mutating so the operation is all-or-nothing.
	for _, id := range orderedIDs {
		e, ok := m.entries[id]
		if !ok || e.ChannelID != channelID {
			return broadcast.ErrEntryNotFound
		}
	}
	for pos, id := range orderedIDs {
		e := m.entries[id]
		e.Position = pos
		m.entries[id] = e
	}
	return nil
}

// ActiveChannelCount returns the number of channels with the active
// flag set. Used for metrics.
func (m *Memory) ActiveChannelCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, ch := range m.channels {
		if ch.IsActive {
			n++
		}
	}
	return n
}

// nextPositionLocked returns one past the highest position in the
// channel's playlist. Caller must hold m.mu.
func (m *Memory) nextPositionLocked(channelID string) int {
	next := 0
	for _, e := range m.entries {
		if e.ChannelID == channelID && e.Position >= next {
			next = e.Position + 1
		}
	}
	return next
}

func sortChannels(channels []broadcast.Channel) {
	sort.Slice(channels, func(i, j int) bool {
		a, b := channels[i], channels[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
