package broadcast

import (
	"sort"
	"time"
)

// Channel is a named, independently addressable virtual broadcast backed
// by one playlist. The slug is the public lookup key; changing it while
// players are tuned in is equivalent to recreating the channel.
type Channel struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PlaylistEntry is one finite-length video source within a channel's
// playlist. Duration is in seconds; nil means unknown, in which case the
// resolver substitutes the default.
type PlaylistEntry struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	VideoURL  string    `json:"video_url"`
	Title     string    `json:"title"`
	Duration  *int64    `json:"duration"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// ResolvedPlayback is the outcome of resolving a playlist at an instant:
// the entry on air, the offset into it, and the loop arithmetic that
// produced the selection. It is computed fresh per request and never
// persisted.
type ResolvedPlayback struct {
	Entry             PlaylistEntry
	EffectiveDuration int64
	Offset            int64
	CycleLength       int64
}

// SortEntries orders entries into playback order: position ascending,
// with creation time and then id as stable tiebreaks. Positions carry no
// uniqueness or contiguity guarantee, so the tiebreak is what keeps
// playback order identical across requests.
func SortEntries(entries []PlaylistEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
