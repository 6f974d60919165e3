package engine

import (
	"strings"
	"testing"
	"time"

	"vecrouter/internal/delivery"
	"vecrouter/internal/routingtable"
)

func TestFormatTableSortsByDestination(t *testing.T) {
	entries := []routingtable.Entry{
		{Dest: "10.0.0.3", Metric: 2, NextHop: "10.0.0.2", Origin: routingtable.OriginLearned},
		{Dest: "10.0.0.2", Metric: 1, NextHop: "10.0.0.2", Origin: routingtable.OriginLocal},
	}
	out := FormatTable("10.0.0.1", entries)
	i2 := strings.Index(out, "10.0.0.2")
	i3 := strings.Index(out, "10.0.0.3")
	if i2 == -1 || i3 == -1 || i2 > i3 {
		t.Fatalf("expected 10.0.0.2 before 10.0.0.3 in:\n%s", out)
	}
	if !strings.Contains(out, "Router: 10.0.0.1") {
		t.Fatalf("missing router banner line in:\n%s", out)
	}
}

func TestFormatDiffRendersEachKind(t *testing.T) {
	diff := routingtable.Diff{
		{Kind: routingtable.Added, Dest: "10.0.0.2", Metric: 1, NextHop: "10.0.0.2"},
		{Kind: routingtable.Updated, Dest: "10.0.0.3", Metric: 2, NextHop: "10.0.0.2"},
		{Kind: routingtable.Removed, Dest: "10.0.0.4"},
	}
	out := FormatDiff(diff)
	if !strings.Contains(out, "+ 10.0.0.2") || !strings.Contains(out, "~ 10.0.0.3") || !strings.Contains(out, "- 10.0.0.4") {
		t.Fatalf("unexpected diff rendering:\n%s", out)
	}
}

func TestSubmitDeliversLocally(t *testing.T) {
	table := routingtable.New("10.0.0.1", nil)
	sink := delivery.New()
	e := New("10.0.0.1", nil, table, sink, Intervals{
		Announce: time.Hour, Monitor: time.Hour, Print: time.Hour, NeighborTimeout: time.Hour,
	})

	if ok := e.Submit("10.0.0.1", "hello"); !ok {
		t.Fatalf("Submit to self should always succeed")
	}
	if sink.Len() != 1 {
		t.Fatalf("expected one locally delivered message")
	}
}

func TestSubmitWithoutRouteFails(t *testing.T) {
	table := routingtable.New("10.0.0.1", nil)
	sink := delivery.New()
	e := New("10.0.0.1", nil, table, sink, Intervals{
		Announce: time.Hour, Monitor: time.Hour, Print: time.Hour, NeighborTimeout: time.Hour,
	})

	if ok := e.Submit("10.0.0.9", "hello"); ok {
		t.Fatalf("Submit to an unknown destination should fail")
	}
}
