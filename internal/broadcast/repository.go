package broadcast

import "context"

// Repository is the read-side source of channel and playlist records.
// The core only ever reads through it; writes belong to the admin API.
type Repository interface {
	// GetChannelBySlug returns the channel with the given slug, or
	// ErrChannelNotFound. The active flag is returned as stored; the
	// service decides what inactive means to callers.
	GetChannelBySlug(ctx context.Context, slug string) (Channel, error)

	// ListEntries returns the channel's playlist in playback order:
	// position ascending, creation time then id breaking ties.
	ListEntries(ctx context.Context, channelID string) ([]PlaylistEntry, error)
}
