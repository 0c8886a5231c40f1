// Package reputation keeps a per-host scorecard used to rank lookup
// hosts: latency moving averages, failure streaks, and exponential
// backoff windows. Reputation is advisory; every persistence failure is
// swallowed and the tracker keeps operating in memory.
package reputation

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	latencySmoothing = 0.25
	defaultLatencyMs = 1500.0
	failurePenaltyMs = 400.0
	successBonusMs   = 30.0

	graceFailures = 2
	baseBackoffMs = 1000
	maxBackoffMs  = 60000
)

// DefaultStorageKey is the key the whole scoreboard is persisted under.
const DefaultStorageKey = "overlay-lookup/host-reputation"

// Entry is one host's scorecard. BackoffUntil and LastUpdatedAt are unix
// milliseconds; AvgLatencyMs stays nil until the first success.
type Entry struct {
	TotalSuccesses      int      `json:"total_successes"`
	TotalFailures       int      `json:"total_failures"`
	ConsecutiveFailures int      `json:"consecutive_failures"`
	AvgLatencyMs        *float64 `json:"avg_latency_ms,omitempty"`
	LastLatencyMs       float64  `json:"last_latency_ms,omitempty"`
	BackoffUntil        int64    `json:"backoff_until"`
	LastUpdatedAt       int64    `json:"last_updated_at"`
	LastError           string   `json:"last_error,omitempty"`
}

func (e Entry) InBackoff(now time.Time) bool {
	return e.BackoffUntil > now.UnixMilli()
}

// RankedHost pairs a host with its entry and a derived score. Lower is
// better; scores are only comparable within one RankHosts call.
type RankedHost struct {
	Host  string
	Entry Entry
	Score float64
}

type TrackerOptions struct {
	Storage    Storage
	StorageKey string
	Classifier Classifier
	Logger     logrus.FieldLogger
}

type Tracker struct {
	mu       sync.Mutex
	entries  map[string]*Entry
	storage  Storage
	key      string
	classify Classifier
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewTracker(opts TrackerOptions) *Tracker {
	t := &Tracker{
		entries:  make(map[string]*Entry),
		storage:  opts.Storage,
		key:      opts.StorageKey,
		classify: opts.Classifier,
		log:      opts.Logger,
		now:      time.Now,
	}
	if t.key == "" {
		t.key = DefaultStorageKey
	}
	if t.classify == nil {
		t.classify = UnreachableHost
	}
	if t.log == nil {
		t.log = logrus.StandardLogger()
	}
	t.load()
	return t
}

var (
	defaultTracker     *Tracker
	defaultTrackerOnce sync.Once
)

// Default returns the process-wide shared in-memory tracker. Resolvers
// take an explicit tracker handle; this is only a convenience factory.
func Default() *Tracker {
	defaultTrackerOnce.Do(func() {
		defaultTracker = NewTracker(TrackerOptions{})
	})
	return defaultTracker
}

func (t *Tracker) RecordSuccess(host string, latencyMs float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.ensure(host)
	if e.AvgLatencyMs == nil {
		avg := latencyMs
		e.AvgLatencyMs = &avg
	} else {
		avg := (1-latencySmoothing)*(*e.AvgLatencyMs) + latencySmoothing*latencyMs
		e.AvgLatencyMs = &avg
	}
	e.LastLatencyMs = latencyMs
	e.TotalSuccesses++
	e.ConsecutiveFailures = 0
	e.BackoffUntil = 0
	e.LastError = ""
	e.LastUpdatedAt = t.now().UnixMilli()
	t.save()
}

func (t *Tracker) RecordFailure(host string, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.ensure(host)
	e.TotalFailures++
	e.ConsecutiveFailures++
	// Unreachable hosts back off faster than a single slow response would.
	if t.classify(reason) && e.ConsecutiveFailures < graceFailures+1 {
		e.ConsecutiveFailures = graceFailures + 1
	}
	level := e.ConsecutiveFailures - graceFailures
	if level > 0 {
		backoff := float64(baseBackoffMs) * math.Pow(2, float64(level-1))
		if backoff > maxBackoffMs {
			backoff = maxBackoffMs
		}
		e.BackoffUntil = t.now().UnixMilli() + int64(backoff)
	}
	e.LastError = reason
	e.LastUpdatedAt = t.now().UnixMilli()
	t.save()
}

// RankHosts orders the candidates best-first. The input is deduplicated
// preserving first-seen order; hosts currently in backoff always sort
// after hosts that are not, ascending score within each group, ties
// broken by total successes then by original input position.
func (t *Tracker) RankHosts(hosts []string, now time.Time) []RankedHost {
	t.mu.Lock()
	defer t.mu.Unlock()

	nowMs := now.UnixMilli()
	seen := make(map[string]struct{}, len(hosts))
	type scored struct {
		RankedHost
		backoff  bool
		position int
	}
	ranked := make([]scored, 0, len(hosts))
	for _, host := range hosts {
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}

		var entry Entry
		if e, ok := t.entries[host]; ok {
			entry = copyEntry(*e)
		}
		latency := defaultLatencyMs
		if entry.AvgLatencyMs != nil {
			latency = *entry.AvgLatencyMs
		}
		backoffPenalty := float64(entry.BackoffUntil - nowMs)
		if backoffPenalty < 0 {
			backoffPenalty = 0
		}
		bonus := successBonusMs * float64(entry.TotalSuccesses)
		if bonus > latency/2 {
			bonus = latency / 2
		}
		score := latency + failurePenaltyMs*float64(entry.ConsecutiveFailures) + backoffPenalty - bonus
		ranked = append(ranked, scored{
			RankedHost: RankedHost{Host: host, Entry: entry, Score: score},
			backoff:    entry.BackoffUntil > nowMs,
			position:   len(ranked),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.backoff != b.backoff {
			return !a.backoff
		}
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		if a.Entry.TotalSuccesses != b.Entry.TotalSuccesses {
			return a.Entry.TotalSuccesses > b.Entry.TotalSuccesses
		}
		return a.position < b.position
	})

	out := make([]RankedHost, len(ranked))
	for i, s := range ranked {
		out[i] = s.RankedHost
	}
	return out
}

// Snapshot returns a copy of one host's entry, or false if the host has
// never been observed.
func (t *Tracker) Snapshot(host string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[host]
	if !ok {
		return Entry{}, false
	}
	return copyEntry(*e), true
}

// Reset clears the in-memory table. Persisted state is left alone.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*Entry)
}

func (t *Tracker) ensure(host string) *Entry {
	e, ok := t.entries[host]
	if !ok {
		e = &Entry{}
		t.entries[host] = e
	}
	return e
}

func (t *Tracker) load() {
	if t.storage == nil {
		return
	}
	raw, ok, err := t.storage.Get(context.Background(), t.key)
	if err != nil || !ok {
		if err != nil {
			t.log.WithError(err).Debug("reputation load failed; starting empty")
		}
		return
	}
	entries := make(map[string]*Entry)
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		t.log.WithError(err).Debug("reputation table corrupt; starting empty")
		return
	}
	t.entries = entries
}

// save rewrites the whole table; called with the lock held.
func (t *Tracker) save() {
	if t.storage == nil {
		return
	}
	raw, err := json.Marshal(t.entries)
	if err != nil {
		t.log.WithError(err).Debug("reputation save skipped")
		return
	}
	if err := t.storage.Set(context.Background(), t.key, string(raw)); err != nil {
		t.log.WithError(err).Debug("reputation save failed")
	}
}

func copyEntry(e Entry) Entry {
	if e.AvgLatencyMs != nil {
		avg := *e.AvgLatencyMs
		e.AvgLatencyMs = &avg
	}
	return e
}
