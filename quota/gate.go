// Package quota tracks the per-user daily turn budget and gates whether a
// new turn may start. The server is the source of truth: whenever a response
// carries an updated remaining count it replaces whatever the gate held,
// including any locally guessed decrement made between actions.
package quota

import (
	"fmt"
	"sync"

	"github.com/inviteflow/concierge/client"
)

// Status is the derived severity band of quota consumption
type Status string

const (
	StatusNormal   Status = "normal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusExceeded Status = "exceeded"
)

// StatusFor maps a consumed percentage to its severity band
func StatusFor(percentageUsed float64) Status {
	switch {
	case percentageUsed >= 100:
		return StatusExceeded
	case percentageUsed >= 90:
		return StatusCritical
	case percentageUsed >= 60:
		return StatusWarning
	default:
		return StatusNormal
	}
}

// Snapshot is the gate's view of the current quota
type Snapshot struct {
	Used      int
	Limit     int
	Remaining int
	IsAdmin   bool
	ResetEta  string
}

// PercentageUsed returns consumption as a percentage of the daily limit
func (s Snapshot) PercentageUsed() float64 {
	if s.Limit <= 0 {
		return 0
	}
	return float64(s.Used) / float64(s.Limit) * 100
}

// Status returns the severity band for this snapshot
func (s Snapshot) Status() Status {
	return StatusFor(s.PercentageUsed())
}

// Gate holds the latest quota snapshot and answers whether a send is
// allowed. Reads may run concurrently with a turn; writes are serialized and
// a server-reported value always wins over a local guess.
type Gate struct {
	mu       sync.RWMutex
	snapshot Snapshot
	// generation counts authoritative writes (server values and local
	// decrements). A background usage query only lands if nothing newer
	// was written while it was in flight.
	generation uint64
}

// NewGate creates a gate with no quota information yet. An empty gate
// allows sending; the first server response corrects it.
func NewGate() *Gate {
	return &Gate{
		snapshot: Snapshot{Remaining: 1},
	}
}

// CanSend reports whether a new turn may start. Admin users are never
// blocked.
func (g *Gate) CanSend() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.snapshot.IsAdmin {
		return true
	}
	return g.snapshot.Remaining > 0
}

// Snapshot returns the gate's current view
func (g *Gate) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshot
}

// ApplyServer installs a server-reported quota value. Server values take
// precedence over anything the gate guessed locally.
func (g *Gate) ApplyServer(info *client.RateLimitInfo) {
	if info == nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.snapshot = Snapshot{
		Used:      info.Used,
		Limit:     info.Limit,
		Remaining: info.Remaining,
		IsAdmin:   info.IsAdmin,
		ResetEta:  info.ResetEta,
	}
	g.generation++
}

// Generation returns an opaque marker of the gate's write history. Capture
// it before starting a background usage query and hand it back to
// ApplyUsage so a slow poll cannot clobber a newer value.
func (g *Gate) Generation() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.generation
}

// ApplyUsage folds in a background usage query started at the given
// generation. The poll is dropped if any authoritative write (a turn's
// terminal rate-limit value, an optimistic decrement, a 429) happened while
// it was in flight; those are always at least as fresh.
func (g *Gate) ApplyUsage(usage *client.UsageSnapshot, startedAt uint64) {
	if usage == nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.generation != startedAt {
		return
	}

	eta := ""
	if usage.TimeUntilReset != nil {
		eta = usage.TimeUntilReset.Formatted
	}
	g.snapshot = Snapshot{
		Used:      usage.PromptsUsed,
		Limit:     usage.DailyLimit,
		Remaining: usage.PromptsRemaining,
		IsAdmin:   usage.IsAdmin,
		ResetEta:  eta,
	}
}

// ConsumeOne optimistically decrements the remaining count after a send,
// as a stopgap until the turn's terminal event reports the real value.
func (g *Gate) ConsumeOne() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.snapshot.IsAdmin {
		return
	}
	if g.snapshot.Remaining > 0 {
		g.snapshot.Remaining--
		g.snapshot.Used++
	}
	g.generation++
}

// Exhaust forces the remaining count to zero, for when a turn request comes
// back HTTP 429 before any stream opens.
func (g *Gate) Exhaust() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.snapshot.Remaining = 0
	if g.snapshot.Limit > 0 {
		g.snapshot.Used = g.snapshot.Limit
	}
	g.generation++
}

// BlockedNotice is the user-facing message for a send attempted while
// blocked. It never mutates conversation state.
func (g *Gate) BlockedNotice() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.snapshot.ResetEta != "" {
		return fmt.Sprintf("You've used all %d of your daily prompts. Your quota resets in %s.",
			g.snapshot.Limit, g.snapshot.ResetEta)
	}
	return fmt.Sprintf("You've used all %d of your daily prompts. Your quota resets tomorrow.", g.snapshot.Limit)
}
