package ai

import (
	"sync"
	"time"

	"github.com/oto-macenauer/school-summary/internal/platform/config"
)

// UsageSnapshot is a point-in-time view of daily consumption.
type UsageSnapshot struct {
	Provider           string     `json:"provider"`
	RequestsToday      int        `json:"requests_today"`
	RequestsRemaining  int        `json:"requests_remaining"`
	RequestsLimit      int        `json:"requests_limit"`
	TokensToday        int        `json:"tokens_today"`
	TokensRemaining    int        `json:"tokens_remaining"`
	TokensLimit        int        `json:"tokens_limit"`
	LastRequest        *time.Time `json:"last_request,omitempty"`
	LastPromptTokens   int        `json:"last_prompt_tokens"`
	LastResponseTokens int        `json:"last_response_tokens"`
}

// usageTracker counts requests and tokens per calendar day. Counters reset
// lazily on the first touch after local midnight.
type usageTracker struct {
	limits config.AIUsageLimits
	now    func() time.Time

	mu                 sync.Mutex
	requestsToday      int
	tokensToday        int
	resetDate          time.Time
	lastRequest        time.Time
	lastPromptTokens   int
	lastResponseTokens int
}

func newUsageTracker(limits config.AIUsageLimits) *usageTracker {
	t := &usageTracker{limits: limits, now: time.Now}
	t.resetDate = dateOnly(t.now())
	return t
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func (t *usageTracker) resetIfNewDayLocked() {
	today := dateOnly(t.now())
	if today.After(t.resetDate) {
		t.requestsToday = 0
		t.tokensToday = 0
		t.resetDate = today
	}
}

// allow reports whether another request fits within the daily limits.
func (t *usageTracker) allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNewDayLocked()
	return t.requestsToday < t.limits.DailyRequests && t.tokensToday < t.limits.DailyTokens
}

func (t *usageTracker) record(promptTokens, responseTokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNewDayLocked()
	t.requestsToday++
	t.tokensToday += promptTokens + responseTokens
	t.lastRequest = t.now()
	t.lastPromptTokens = promptTokens
	t.lastResponseTokens = responseTokens
}

func (t *usageTracker) snapshot(provider string) UsageSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetIfNewDayLocked()

	snap := UsageSnapshot{
		Provider:           provider,
		RequestsToday:      t.requestsToday,
		RequestsRemaining:  max(0, t.limits.DailyRequests-t.requestsToday),
		RequestsLimit:      t.limits.DailyRequests,
		TokensToday:        t.tokensToday,
		TokensRemaining:    max(0, t.limits.DailyTokens-t.tokensToday),
		TokensLimit:        t.limits.DailyTokens,
		LastPromptTokens:   t.lastPromptTokens,
		LastResponseTokens: t.lastResponseTokens,
	}
	if !t.lastRequest.IsZero() {
		last := t.lastRequest
		snap.LastRequest = &last
	}
	return snap
}
