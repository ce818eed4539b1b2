package alerting

import (
	"strings"
	"testing"

	"coinwatch-go/market"
)

func snapOf(coins ...market.Snapshot) map[string]market.Snapshot {
	m := make(map[string]market.Snapshot, len(coins))
	for _, c := range coins {
		m[c.CoinID] = c
	}
	return m
}

func TestEvaluateFiresOnceOnDownwardCrossing(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Add("bitcoin", 25000); err != nil {
		t.Fatalf("add: %v", err)
	}

	snap := snapOf(market.Snapshot{CoinID: "bitcoin", Name: "Bitcoin", Price: market.Float(24999.99)})
	reqs := Evaluate(snap, reg)
	if len(reqs) != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", len(reqs))
	}
	if reqs[0].Notification.Title != "Bitcoin Alert" {
		t.Fatalf("unexpected title %q", reqs[0].Notification.Title)
	}
	if !strings.Contains(reqs[0].Notification.Body, "fallen below $25000") {
		t.Fatalf("unexpected body %q", reqs[0].Notification.Body)
	}
	if reqs[0].Price != 24999.99 || reqs[0].Rule.CoinID != "bitcoin" {
		t.Fatalf("unexpected firing %+v", reqs[0])
	}
	if got := len(reg.ListActive()); got != 0 {
		t.Fatalf("fired rule must be inactive, %d still active", got)
	}

	// Second pass at an even lower price fires nothing.
	snap2 := snapOf(market.Snapshot{CoinID: "bitcoin", Name: "Bitcoin", Price: market.Float(24000)})
	if again := Evaluate(snap2, reg); len(again) != 0 {
		t.Fatalf("fire-once violated: %d more notifications", len(again))
	}
}

func TestEvaluateIsIdempotentOnSameInputs(t *testing.T) {
	reg := NewRegistry()
	_, _ = reg.Add("bitcoin", 30000)
	snap := snapOf(market.Snapshot{CoinID: "bitcoin", Name: "Bitcoin", Price: market.Float(29000)})

	if n := len(Evaluate(snap, reg)); n != 1 {
		t.Fatalf("first evaluate: %d", n)
	}
	if n := len(Evaluate(snap, reg)); n != 0 {
		t.Fatalf("immediate re-evaluate produced duplicates: %d", n)
	}
}

func TestEvaluateAboveTargetDoesNotFire(t *testing.T) {
	reg := NewRegistry()
	_, _ = reg.Add("bitcoin", 25000)
	snap := snapOf(market.Snapshot{CoinID: "bitcoin", Name: "Bitcoin", Price: market.Float(25000.01)})

	if n := len(Evaluate(snap, reg)); n != 0 {
		t.Fatalf("upward price fired a downward rule: %d", n)
	}
	if got := len(reg.ListActive()); got != 1 {
		t.Fatalf("rule should remain active, %d active", got)
	}
}

func TestEvaluateAtExactTargetFires(t *testing.T) {
	reg := NewRegistry()
	_, _ = reg.Add("bitcoin", 25000)
	snap := snapOf(market.Snapshot{CoinID: "bitcoin", Name: "Bitcoin", Price: market.Float(25000)})
	if n := len(Evaluate(snap, reg)); n != 1 {
		t.Fatalf("price == target must fire, got %d", n)
	}
}

func TestEvaluateSkipsMissingAndUnpricedCoins(t *testing.T) {
	reg := NewRegistry()
	_, _ = reg.Add("dogecoin", 1)  // outside the polled universe
	_, _ = reg.Add("cardano", 10)  // present but price unavailable
	snap := snapOf(market.Snapshot{CoinID: "cardano", Name: "Cardano"})

	if n := len(Evaluate(snap, reg)); n != 0 {
		t.Fatalf("missing/unpriced coins must be skipped, got %d notifications", n)
	}
	if got := len(reg.ListActive()); got != 2 {
		t.Fatalf("skipped rules must stay active, %d active", got)
	}
}

func TestEvaluateDuplicateRulesEachFire(t *testing.T) {
	reg := NewRegistry()
	_, _ = reg.Add("bitcoin", 25000)
	_, _ = reg.Add("bitcoin", 25000)
	snap := snapOf(market.Snapshot{CoinID: "bitcoin", Name: "Bitcoin", Price: market.Float(24000)})

	if n := len(Evaluate(snap, reg)); n != 2 {
		t.Fatalf("each duplicate rule fires once, got %d", n)
	}
}
