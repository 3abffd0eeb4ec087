package usage

import "time"

// Free-tier quotas of the default model.
const (
	RequestsPerMinute = 15
	TokensPerMinute   = 1_000_000
	RequestsPerDay    = 1_500
)

// Dimension names one of the quota dimensions.
type Dimension string

const (
	DimensionRPD Dimension = "rpd"
	DimensionRPM Dimension = "rpm"
	DimensionTPM Dimension = "tpm"
)

// Denial reasons, one per dimension.
const (
	ReasonDailyRequests  = "daily request limit exceeded"
	ReasonMinuteRequests = "per-minute request limit exceeded"
	ReasonMinuteTokens   = "per-minute token limit exceeded"
)

// Limits holds the quota thresholds. A zero value disables a dimension.
type Limits struct {
	RequestsPerMinute int64
	TokensPerMinute   int64
	RequestsPerDay    int64
	// EnforcePerMinute turns the RPM and TPM checks on.
	EnforcePerMinute bool
}

// DefaultLimits returns the built-in limits with every dimension enforced.
func DefaultLimits() Limits {
	return Limits{
		RequestsPerMinute: RequestsPerMinute,
		TokensPerMinute:   TokensPerMinute,
		RequestsPerDay:    RequestsPerDay,
		EnforcePerMinute:  true,
	}
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed   bool
	Dimension Dimension
	Reason    string
	Used      int64
	Limit     int64
}

// Err returns a *QuotaExceededError for a denial and nil otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &QuotaExceededError{
		Dimension: d.Dimension,
		Reason:    d.Reason,
		Used:      d.Used,
		Limit:     d.Limit,
	}
}

func allowed() Decision { return Decision{Allowed: true} }

func denied(dim Dimension, reason string, used, limit int64) Decision {
	return Decision{Dimension: dim, Reason: reason, Used: used, Limit: limit}
}

// CheckAdmission decides whether a new request may be sent. The daily
// window of r is expected to be current; callers apply ResetIfWindowExpired
// first. The daily count is checked first, then the per-minute ones.
func CheckAdmission(r Record, limits Limits, now time.Time) Decision {
	if limits.RequestsPerDay > 0 && r.Requests >= limits.RequestsPerDay {
		return denied(DimensionRPD, ReasonDailyRequests, r.Requests, limits.RequestsPerDay)
	}

	if !limits.EnforcePerMinute {
		return allowed()
	}

	requests, tokens := r.recentSince(now, MinuteWindow)
	if limits.RequestsPerMinute > 0 && requests >= limits.RequestsPerMinute {
		return denied(DimensionRPM, ReasonMinuteRequests, requests, limits.RequestsPerMinute)
	}
	if limits.TokensPerMinute > 0 && tokens >= limits.TokensPerMinute {
		return denied(DimensionTPM, ReasonMinuteTokens, tokens, limits.TokensPerMinute)
	}

	return allowed()
}

// Quota is the state of one dimension.
type Quota struct {
	Used  int64 `json:"used"`
	Limit int64 `json:"limit"`
	// Remaining is -1 when the dimension is not enforced.
	Remaining int64 `json:"remaining"`
}

func newQuota(used, limit int64, enforced bool) Quota {
	if !enforced || limit <= 0 {
		return Quota{Used: used, Limit: limit, Remaining: -1}
	}
	return Quota{Used: used, Limit: limit, Remaining: max(limit-used, 0)}
}

// Status summarizes a record against its limits.
type Status struct {
	Requests        int64     `json:"requests"`
	Tokens          int64     `json:"tokens"`
	WindowStart     time.Time `json:"window_start"`
	WindowResetsAt  time.Time `json:"window_resets_at"`
	RequestsPerDay  Quota     `json:"requests_per_day"`
	RequestsPerMin  Quota     `json:"requests_per_minute"`
	TokensPerMinute Quota     `json:"tokens_per_minute"`
	Admission       Decision  `json:"-"`
}

// Snapshot reports the state of r at now, after applying the window reset.
func Snapshot(r Record, limits Limits, now time.Time) Status {
	r = ResetIfWindowExpired(r, now)
	requests, tokens := r.recentSince(now, MinuteWindow)

	return Status{
		Requests:        r.Requests,
		Tokens:          r.Tokens,
		WindowStart:     r.WindowStart(),
		WindowResetsAt:  r.WindowEnd(),
		RequestsPerDay:  newQuota(r.Requests, limits.RequestsPerDay, true),
		RequestsPerMin:  newQuota(requests, limits.RequestsPerMinute, limits.EnforcePerMinute),
		TokensPerMinute: newQuota(tokens, limits.TokensPerMinute, limits.EnforcePerMinute),
		Admission:       CheckAdmission(r, limits, now),
	}
}
