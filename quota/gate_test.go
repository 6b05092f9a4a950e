package quota

import (
	"strings"
	"testing"

	"github.com/inviteflow/concierge/client"
)

func TestStatusForBands(t *testing.T) {
	cases := []struct {
		percentage float64
		want       Status
	}{
		{0, StatusNormal},
		{59, StatusNormal},
		{60, StatusWarning},
		{89, StatusWarning},
		{90, StatusCritical},
		{99, StatusCritical},
		{100, StatusExceeded},
		{130, StatusExceeded},
	}

	for _, tc := range cases {
		if got := StatusFor(tc.percentage); got != tc.want {
			t.Fatalf("StatusFor(%v) = %v, want %v", tc.percentage, got, tc.want)
		}
	}
}

func TestCanSend(t *testing.T) {
	g := NewGate()
	g.ApplyServer(&client.RateLimitInfo{Used: 10, Limit: 10, Remaining: 0})
	if g.CanSend() {
		t.Fatalf("expected blocked at remaining=0")
	}

	g.ApplyServer(&client.RateLimitInfo{Used: 9, Limit: 10, Remaining: 1})
	if !g.CanSend() {
		t.Fatalf("expected allowed at remaining=1")
	}
}

func TestCanSend_AdminNeverBlocked(t *testing.T) {
	g := NewGate()
	g.ApplyServer(&client.RateLimitInfo{Used: 10, Limit: 10, Remaining: 0, IsAdmin: true})
	if !g.CanSend() {
		t.Fatalf("expected admin to bypass the quota")
	}
}

func TestConsumeOne(t *testing.T) {
	g := NewGate()
	g.ApplyServer(&client.RateLimitInfo{Used: 8, Limit: 10, Remaining: 2})

	g.ConsumeOne()
	snap := g.Snapshot()
	if snap.Remaining != 1 || snap.Used != 9 {
		t.Fatalf("unexpected snapshot after decrement: %#v", snap)
	}

	g.ConsumeOne()
	g.ConsumeOne() // already at zero; must not go negative
	snap = g.Snapshot()
	if snap.Remaining != 0 || snap.Used != 10 {
		t.Fatalf("unexpected snapshot at floor: %#v", snap)
	}
}

func TestApplyServerWinsOverOptimisticGuess(t *testing.T) {
	g := NewGate()
	g.ApplyServer(&client.RateLimitInfo{Used: 5, Limit: 10, Remaining: 5})
	g.ConsumeOne()

	// The turn's terminal event reports the real count.
	g.ApplyServer(&client.RateLimitInfo{Used: 6, Limit: 10, Remaining: 4})
	if got := g.Snapshot().Remaining; got != 4 {
		t.Fatalf("expected server value 4, got %d", got)
	}
}

func TestApplyUsage_StalePollDropped(t *testing.T) {
	g := NewGate()
	startedAt := g.Generation()

	// A terminal event lands while the usage query is in flight.
	g.ApplyServer(&client.RateLimitInfo{Used: 7, Limit: 10, Remaining: 3})

	g.ApplyUsage(&client.UsageSnapshot{PromptsUsed: 5, DailyLimit: 10, PromptsRemaining: 5}, startedAt)
	if got := g.Snapshot().Remaining; got != 3 {
		t.Fatalf("stale poll overwrote confirmed value: remaining=%d", got)
	}
}

func TestApplyUsage_FreshPollApplies(t *testing.T) {
	g := NewGate()
	startedAt := g.Generation()

	g.ApplyUsage(&client.UsageSnapshot{
		PromptsUsed:      5,
		DailyLimit:       10,
		PromptsRemaining: 5,
		TimeUntilReset:   &client.ResetEta{Formatted: "2h 30m"},
	}, startedAt)

	snap := g.Snapshot()
	if snap.Remaining != 5 || snap.ResetEta != "2h 30m" {
		t.Fatalf("unexpected snapshot after usage poll: %#v", snap)
	}
}

func TestExhaust(t *testing.T) {
	g := NewGate()
	g.ApplyServer(&client.RateLimitInfo{Used: 3, Limit: 10, Remaining: 7})

	g.Exhaust()
	snap := g.Snapshot()
	if snap.Remaining != 0 || snap.Used != 10 {
		t.Fatalf("unexpected snapshot after exhaust: %#v", snap)
	}
	if g.CanSend() {
		t.Fatalf("expected blocked after exhaust")
	}
}

func TestBlockedNoticeIncludesResetEta(t *testing.T) {
	g := NewGate()
	g.ApplyServer(&client.RateLimitInfo{Used: 10, Limit: 10, Remaining: 0, ResetEta: "4h 15m"})

	notice := g.BlockedNotice()
	if !strings.Contains(notice, "4h 15m") {
		t.Fatalf("expected notice to include reset ETA, got %q", notice)
	}
}

func TestSnapshotStatusDerivation(t *testing.T) {
	g := NewGate()
	g.ApplyServer(&client.RateLimitInfo{Used: 9, Limit: 10, Remaining: 1})
	if got := g.Snapshot().Status(); got != StatusCritical {
		t.Fatalf("expected critical at 90%%, got %v", got)
	}
}
