package usage

import "time"

// Expired reports whether the daily window of r is over at now.
// A window exactly 24h old is still current.
func Expired(r Record, now time.Time) bool {
	return now.UnixMilli()-r.Timestamp > Window.Milliseconds()
}

// ResetIfWindowExpired starts a new window at now when the current one is
// over, zeroing both counters and the recent events. Otherwise r is returned
// unchanged. Applying it twice with the same now gives the same result.
func ResetIfWindowExpired(r Record, now time.Time) Record {
	if !Expired(r, now) {
		return r
	}
	return NewRecord(now)
}

// RecordSuccess accounts for one successful request that consumed
// tokensUsed tokens. Negative token counts are treated as zero.
// The window start is left untouched.
func RecordSuccess(r Record, tokensUsed int64, now time.Time) Record {
	tokensUsed = max(tokensUsed, 0)

	r = r.clone()
	r.Requests++
	r.Tokens += tokensUsed
	r.Recent = append(r.Recent, Event{
		Timestamp: now.UnixMilli(),
		Tokens:    tokensUsed,
	})
	return r.pruneRecent(now)
}
