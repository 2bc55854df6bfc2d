package broadcast

import "errors"

var (
	// ErrChannelNotFound covers both a slug that does not exist and a
	// channel whose active flag is off. Callers cannot tell the two
	// apart, which keeps the endpoint from leaking which slugs exist.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrNoContent means the channel exists but its playlist is empty.
	ErrNoContent = errors.New("no videos in playlist")

	// ErrEmptyPlaylist is returned by Resolve when called with no entries.
	ErrEmptyPlaylist = errors.New("playlist is empty")

	// ErrDegenerateCycle is returned by Resolve when the summed effective
	// durations are zero or negative and there is nothing to play.
	ErrDegenerateCycle = errors.New("playlist cycle length is not positive")

	// ErrInvalidInstant is returned by Resolve for a negative query
	// instant. It indicates a clock or programming error, not bad input
	// from a viewer.
	ErrInvalidInstant = errors.New("query instant is negative")

	// ErrUpstreamUnavailable wraps any failure to fetch a pre-segmented
	// upstream manifest: network error, timeout, or non-success status.
	ErrUpstreamUnavailable = errors.New("upstream manifest unavailable")

	// ErrEntryNotFound is returned by stores for an unknown playlist
	// entry id.
	ErrEntryNotFound = errors.New("playlist entry not found")

	// ErrSlugTaken is returned by stores when creating or renaming a
	// channel would reuse an existing slug.
	ErrSlugTaken = errors.New("slug already in use")
)
