package routingtable

import (
	"testing"
	"time"

	"vecrouter/internal/wire"
)

func TestNewSeedsDirectNeighbors(t *testing.T) {
	tbl := New("A", []string{"B", "C"})
	snap := tbl.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot len = %d, want 2", len(snap))
	}
	for _, e := range snap {
		if e.Metric != 1 || e.Origin != OriginLocal {
			t.Fatalf("entry %+v: want metric 1 origin local", e)
		}
		if e.NextHop != e.Dest {
			t.Fatalf("entry %+v: next hop should equal dest for a direct neighbor", e)
		}
	}
}

func TestApplyPresenceAddsDirectRoute(t *testing.T) {
	tbl := New("A", nil)
	diff := tbl.ApplyPresence("B", "B")
	if diff.Empty() {
		t.Fatalf("expected a non-empty diff for a new neighbor")
	}
	if diff[0].Kind != Added || diff[0].Dest != "B" || diff[0].NextHop != "B" {
		t.Fatalf("unexpected change: %+v", diff[0])
	}

	// repeating the identical presence produces no further change.
	if d := tbl.ApplyPresence("B", "B"); !d.Empty() {
		t.Fatalf("expected no-op diff on repeated presence, got %+v", d)
	}
}

func TestApplyPresenceIgnoresSelf(t *testing.T) {
	tbl := New("A", nil)
	if d := tbl.ApplyPresence("A", "A"); !d.Empty() {
		t.Fatalf("presence announcing self should be a no-op, got %+v", d)
	}
}

func TestApplyRouteVectorInstallsTransitiveRoute(t *testing.T) {
	tbl := New("A", []string{"B"})
	diff := tbl.ApplyRouteVector("B", []wire.RouteRecord{{Dest: "C", Metric: 1}})
	if diff.Empty() {
		t.Fatalf("expected a change installing C via B")
	}

	nh, ok := tbl.LookupNextHop("C")
	if !ok || nh != "B" {
		t.Fatalf("next hop for C = %q, %v; want B, true", nh, ok)
	}
	snap := tbl.Snapshot()
	for _, e := range snap {
		if e.Dest == "C" {
			if e.Metric != 2 {
				t.Fatalf("metric for C = %d, want 2", e.Metric)
			}
			if e.Origin != OriginLearned {
				t.Fatalf("origin for C = %v, want learned", e.Origin)
			}
		}
	}
}

func TestApplyRouteVectorTieKeepsIncumbent(t *testing.T) {
	tbl := New("A", []string{"B", "C"})
	// Both B and C can reach D at metric 1, so both candidates tie at 2.
	tbl.ApplyRouteVector("B", []wire.RouteRecord{{Dest: "D", Metric: 1}})
	diff := tbl.ApplyRouteVector("C", []wire.RouteRecord{{Dest: "D", Metric: 1}})
	if !diff.Empty() {
		t.Fatalf("tie should not replace the incumbent route, got %+v", diff)
	}
	nh, _ := tbl.LookupNextHop("D")
	if nh != "B" {
		t.Fatalf("next hop for D = %q, want B (first installed)", nh)
	}
}

func TestApplyRouteVectorBetterMetricReplaces(t *testing.T) {
	tbl := New("A", []string{"B", "C"})
	tbl.ApplyRouteVector("B", []wire.RouteRecord{{Dest: "D", Metric: 3}})
	diff := tbl.ApplyRouteVector("C", []wire.RouteRecord{{Dest: "D", Metric: 1}})
	if diff.Empty() || diff[0].Kind != Updated {
		t.Fatalf("expected an update switching to the cheaper route via C, got %+v", diff)
	}
	nh, _ := tbl.LookupNextHop("D")
	if nh != "C" {
		t.Fatalf("next hop for D = %q, want C", nh)
	}
}

func TestApplyRouteVectorWithdrawal(t *testing.T) {
	tbl := New("A", []string{"B"})
	tbl.ApplyRouteVector("B", []wire.RouteRecord{{Dest: "C", Metric: 1}, {Dest: "D", Metric: 1}})
	if _, ok := tbl.LookupNextHop("C"); !ok {
		t.Fatalf("expected C to be reachable after first announcement")
	}

	// B no longer lists C: C must be withdrawn, D must remain.
	diff := tbl.ApplyRouteVector("B", []wire.RouteRecord{{Dest: "D", Metric: 1}})
	found := false
	for _, c := range diff {
		if c.Kind == Removed && c.Dest == "C" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected C to be withdrawn, got %+v", diff)
	}
	if _, ok := tbl.LookupNextHop("C"); ok {
		t.Fatalf("C should no longer be reachable after withdrawal")
	}
	if _, ok := tbl.LookupNextHop("D"); !ok {
		t.Fatalf("D should still be reachable")
	}
}

func TestApplyRouteVectorDoesNotWithdrawRouteLearnedElsewhere(t *testing.T) {
	tbl := New("A", []string{"B", "C"})
	tbl.ApplyRouteVector("B", []wire.RouteRecord{{Dest: "D", Metric: 5}})
	tbl.ApplyRouteVector("C", []wire.RouteRecord{{Dest: "D", Metric: 1}}) // replaces B's route
	// B stops listing D, but D's current next hop is C, not B: no withdrawal.
	diff := tbl.ApplyRouteVector("B", nil)
	for _, c := range diff {
		if c.Kind == Removed && c.Dest == "D" {
			t.Fatalf("D should not be withdrawn: its current next hop is C, not B")
		}
	}
	if _, ok := tbl.LookupNextHop("D"); !ok {
		t.Fatalf("D should still be reachable via C")
	}
}

func TestApplyRouteVectorSkipsSelfDestination(t *testing.T) {
	tbl := New("A", []string{"B"})
	tbl.ApplyRouteVector("B", []wire.RouteRecord{{Dest: "A", Metric: 1}})
	if _, ok := tbl.LookupNextHop("A"); ok {
		t.Fatalf("table should never install a route to self")
	}
}

func TestAgeNeighborPurgesLearnedRoutes(t *testing.T) {
	tbl := New("A", []string{"B"})
	tbl.ApplyRouteVector("B", []wire.RouteRecord{{Dest: "C", Metric: 1}})
	diff := tbl.AgeNeighbor("B")
	if diff.Empty() {
		t.Fatalf("expected routes via B to be purged")
	}
	if _, ok := tbl.LookupNextHop("B"); ok {
		t.Fatalf("direct route to B should be purged too")
	}
	if _, ok := tbl.LookupNextHop("C"); ok {
		t.Fatalf("transitive route to C via B should be purged")
	}
}

func TestInactiveNeighbors(t *testing.T) {
	tbl := New("A", []string{"B", "C"})
	tbl.ApplyPresence("B", "B")
	time.Sleep(5 * time.Millisecond)
	inactive := tbl.InactiveNeighbors(time.Millisecond)
	if len(inactive) != 1 || inactive[0] != "B" {
		t.Fatalf("inactive = %v, want [B] (C was never heard from, so it is exempt)", inactive)
	}
}
