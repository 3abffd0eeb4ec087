// Package usage tracks AI request and token consumption on disk and decides
// whether a new request may be sent.
//
// Counters live in a small JSON file in the working directory. They cover a
// rolling 24h window that is reset lazily the next time the file is read,
// plus a short list of recent events used for the per-minute limits.
package usage

import (
	"time"
)

const (
	// Window is the length of the daily counting window.
	Window = 24 * time.Hour
	// MinuteWindow is the look-back used for the per-minute limits.
	MinuteWindow = time.Minute
	// maxRecentEvents bounds the recent event list kept in the file.
	maxRecentEvents = 256
)

// Event is a single successful request kept for per-minute accounting.
type Event struct {
	// Timestamp is when the request completed, in milliseconds since epoch.
	Timestamp int64 `json:"timestamp"`
	// Tokens is the number of tokens the request consumed.
	Tokens int64 `json:"tokens"`
}

// Record is the persisted usage state.
type Record struct {
	// Requests is the number of AI calls made in the current window.
	Requests int64 `json:"requests"`
	// Tokens is the number of tokens consumed in the current window.
	Tokens int64 `json:"tokens"`
	// Timestamp is the start of the current window, in milliseconds since epoch.
	Timestamp int64 `json:"timestamp"`
	// Recent holds the events of the last minute, oldest first.
	Recent []Event `json:"recent,omitempty"`
}

// NewRecord returns an empty record whose window starts at now.
func NewRecord(now time.Time) Record {
	return Record{Timestamp: now.UnixMilli()}
}

// WindowStart returns the start of the daily window.
func (r Record) WindowStart() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// WindowEnd returns the instant after which the window is considered expired.
func (r Record) WindowEnd() time.Time {
	return r.WindowStart().Add(Window)
}

// equal reports whether two records hold the same counters, window and events.
func (r Record) equal(other Record) bool {
	if r.Requests != other.Requests || r.Tokens != other.Tokens || r.Timestamp != other.Timestamp {
		return false
	}
	if len(r.Recent) != len(other.Recent) {
		return false
	}
	for i := range r.Recent {
		if r.Recent[i] != other.Recent[i] {
			return false
		}
	}
	return true
}

// clone returns a copy that does not share the Recent backing array.
func (r Record) clone() Record {
	if r.Recent != nil {
		r.Recent = append([]Event(nil), r.Recent...)
	}
	return r
}

// normalize enforces the record invariants on data read from disk.
func (r Record) normalize(now time.Time) Record {
	r = r.clone()
	r.Requests = max(r.Requests, 0)
	r.Tokens = max(r.Tokens, 0)
	if r.Timestamp <= 0 {
		r.Timestamp = now.UnixMilli()
	}
	kept := r.Recent[:0]
	for _, e := range r.Recent {
		if e.Timestamp <= 0 || e.Timestamp > now.UnixMilli() {
			continue
		}
		e.Tokens = max(e.Tokens, 0)
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		kept = nil
	}
	r.Recent = kept
	return r
}

// inWindow reports whether ts lies in (now-d, now]. Events stamped after now
// (clock moved backwards, edited file) are never part of the window.
func inWindow(ts int64, now time.Time, d time.Duration) bool {
	return now.Add(-d).UnixMilli() < ts && ts <= now.UnixMilli()
}

// recentSince sums the requests and tokens of events in the last d.
func (r Record) recentSince(now time.Time, d time.Duration) (requests, tokens int64) {
	for _, e := range r.Recent {
		if inWindow(e.Timestamp, now, d) {
			requests++
			tokens += e.Tokens
		}
	}
	return requests, tokens
}

// pruneRecent drops events outside the minute window and caps the list size.
func (r Record) pruneRecent(now time.Time) Record {
	var kept []Event
	for _, e := range r.Recent {
		if inWindow(e.Timestamp, now, MinuteWindow) {
			kept = append(kept, e)
		}
	}
	if len(kept) > maxRecentEvents {
		kept = kept[len(kept)-maxRecentEvents:]
	}
	r.Recent = kept
	return r
}
