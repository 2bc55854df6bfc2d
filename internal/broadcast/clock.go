package broadcast

// DefaultEntryDuration is the effective duration, in seconds, assumed
// for an entry whose duration is unknown. It is a fixed constant so the
// cycle-length arithmetic is reproducible on every process.
const DefaultEntryDuration int64 = 300

// EffectiveDuration returns the duration Resolve accounts for an entry:
// the stored value when one is set (taken literally, even when zero or
// negative), otherwise defaultDuration. A defaultDuration <= 0 falls
// back to DefaultEntryDuration.
func EffectiveDuration(e PlaylistEntry, defaultDuration int64) int64 {
	if defaultDuration <= 0 {
		defaultDuration = DefaultEntryDuration
	}
	if e.Duration == nil {
		return defaultDuration
	}
	return *e.Duration
}

// Resolve maps an ordered playlist and a query instant (seconds since
// the Unix epoch) to the entry that is on air at that instant and the
// offset within it. The mapping is a pure function of its inputs: any
// process resolving the same entries at the same instant selects the
// same entry and offset, which is what synchronizes viewers without
// shared state.
//
// entries must already be in playback order (see SortEntries).
func Resolve(entries []PlaylistEntry, instant int64, defaultDuration int64) (ResolvedPlayback, error) {
	if len(entries) == 0 {
		return ResolvedPlayback{}, ErrEmptyPlaylist
	}
	if instant < 0 {
		return ResolvedPlayback{}, ErrInvalidInstant
	}

	var cycle int64
	for _, e := range entries {
		cycle += EffectiveDuration(e, defaultDuration)
	}
	if cycle <= 0 {
		return ResolvedPlayback{}, ErrDegenerateCycle
	}

	// Floor modulo keeps the loop offset in [0, cycle) no matter how the
	// instant relates to the epoch.
	loop := instant % cycle
	if loop < 0 {
		loop += cycle
	}

	current := entries[0]
	var offset int64
	var acc int64
	for _, e := range entries {
		eff := EffectiveDuration(e, defaultDuration)
		if loop < acc+eff {
			current = e
			offset = loop - acc
			break
		}
		acc += eff
	}

	return ResolvedPlayback{
		Entry:             current,
		EffectiveDuration: EffectiveDuration(current, defaultDuration),
		Offset:            offset,
		CycleLength:       cycle,
	}, nil
}
