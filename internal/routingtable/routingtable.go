// Package routingtable is the sole owner of a node's mutable routing
// state: the destination table, the neighbor set, and per-neighbor
// bookkeeping (last message seen, last advertised destination set). Every
// mutation commits atomically under one exclusive mutex and produces a
// Diff describing what changed, so callers can log/broadcast outside the
// critical section.
package routingtable

import (
	"sort"
	"sync"
	"time"

	"vecrouter/internal/logger"
	"vecrouter/internal/wire"
)

// Origin records how a route entry was established.
type Origin string

const (
	// OriginLocal marks an entry established by direct configuration or
	// by a presence message: next_hop == key, metric == 1.
	OriginLocal Origin = "local"
	// OriginLearned marks an entry established by a route-vector
	// announcement from some neighbor.
	OriginLearned Origin = "learned"
)

// Entry is one route: the cost to reach Dest, the neighbor to hand
// packets to, when it was last confirmed, and how it was established.
type Entry struct {
	Dest        string
	Metric      int
	NextHop     string
	LastUpdated time.Time
	Origin      Origin
}

// ChangeKind classifies one line of a Diff.
type ChangeKind string

const (
	Added   ChangeKind = "added"
	Updated ChangeKind = "updated"
	Removed ChangeKind = "removed"
)

// Change is one committed mutation to a single destination.
type Change struct {
	Kind    ChangeKind
	Dest    string
	Metric  int
	NextHop string
	Origin  Origin
}

// Diff is the ordered set of changes produced by one table mutation. An
// empty Diff means the mutation observed no change (e.g. a repeated
// announcement that only refreshed a timestamp) and should not trigger a
// broadcast or a table printout.
type Diff []Change

// Empty reports whether the diff carries no changes.
func (d Diff) Empty() bool { return len(d) == 0 }

// Counts returns the number of added, updated and removed changes, for
// compact logging and tracing.
func (d Diff) Counts() (added, updated, removed int) {
	for _, c := range d {
		switch c.Kind {
		case Added:
			added++
		case Updated:
			updated++
		case Removed:
			removed++
		}
	}
	return
}

// Table is the node's routing table plus its neighbor bookkeeping. All
// exported methods acquire the single exclusive mutex for their full
// duration; none perform I/O while holding it.
type Table struct {
	logger logger.Logger

	mu         sync.Mutex
	self       string
	entries    map[string]Entry              // dest -> route entry; never contains self
	neighbors  map[string]struct{}            // configured or discovered directly-reachable peers
	advertised map[string]map[string]struct{} // neighbor -> destinations it most recently announced
	lastHeard  map[string]time.Time           // neighbor -> last message of any kind; zero value means "never"
}

// New creates a Table for self, seeding one directly-connected entry
// (origin local, metric 1, next hop = the neighbor itself) for each
// configured neighbor, per the table's startup lifecycle.
func New(self string, neighbors []string, opts ...Option) *Table {
	t := &Table{
		logger:     &logger.NopLogger{},
		self:       self,
		entries:    make(map[string]Entry),
		neighbors:  make(map[string]struct{}),
		advertised: make(map[string]map[string]struct{}),
		lastHeard:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(t)
	}

	now := time.Now()
	for _, n := range neighbors {
		if n == self {
			continue
		}
		t.neighbors[n] = struct{}{}
		t.lastHeard[n] = time.Time{}
		t.advertised[n] = nil
		t.entries[n] = Entry{Dest: n, Metric: 1, NextHop: n, LastUpdated: now, Origin: OriginLocal}
	}
	t.logger.Debug("routing table initialized", logger.F("self", self), logger.F("neighbors", neighbors))
	return t
}

// Self returns the node's own address.
func (t *Table) Self() string { return t.self }

// ensureNeighbor adds addr to the neighbor set and initializes its
// bookkeeping, but only if it is not already present. Caller must hold mu.
func (t *Table) ensureNeighbor(addr string) {
	if _, ok := t.neighbors[addr]; ok {
		return
	}
	t.neighbors[addr] = struct{}{}
	t.lastHeard[addr] = time.Time{}
	t.advertised[addr] = nil
}

// ApplyPresence handles a "@<adv>" message received from kernel source
// addr source. last_heard[source] is always refreshed; if adv names a
// destination not yet known at metric 1 via source, a direct route is
// written (or rewritten) with origin local.
func (t *Table) ApplyPresence(source, adv string) Diff {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.ensureNeighbor(source)
	t.lastHeard[source] = now

	if adv == t.self {
		return nil
	}

	e, exists := t.entries[adv]
	if exists && e.Metric == 1 && e.NextHop == source {
		return nil
	}

	t.entries[adv] = Entry{Dest: adv, Metric: 1, NextHop: source, LastUpdated: now, Origin: OriginLocal}
	t.ensureNeighbor(adv)

	kind := Added
	if exists {
		kind = Updated
	}
	t.logger.Debug("presence applied", logger.FRoute("entry", adv, 1, source, string(OriginLocal)))
	return Diff{{Kind: kind, Dest: adv, Metric: 1, NextHop: source, Origin: OriginLocal}}
}

// ApplyRouteVector handles a parsed route-vector announcement received
// from neighbor source. It refreshes last_heard, updates/installs routes
// per the metric+1/strict-less-than/tie-keeps-incumbent rule, and
// withdraws destinations the sender no longer lists.
func (t *Table) ApplyRouteVector(source string, records []wire.RouteRecord) Diff {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.ensureNeighbor(source)
	t.lastHeard[source] = now

	prev := t.advertised[source]

	// M, deduplicated by destination: later records for the same
	// destination win, matching the reference dict-assignment semantics.
	byDest := make(map[string]int, len(records))
	for _, r := range records {
		byDest[r.Dest] = r.Metric
	}
	cur := make(map[string]struct{}, len(byDest))
	for dest := range byDest {
		cur[dest] = struct{}{}
	}
	t.advertised[source] = cur

	var diff Diff

	if _, exists := t.entries[source]; !exists {
		t.entries[source] = Entry{Dest: source, Metric: 1, NextHop: source, LastUpdated: now, Origin: OriginLearned}
		diff = append(diff, Change{Kind: Added, Dest: source, Metric: 1, NextHop: source, Origin: OriginLearned})
	}

	dests := make([]string, 0, len(byDest))
	for dest := range byDest {
		dests = append(dests, dest)
	}
	sort.Strings(dests)

	for _, dest := range dests {
		if dest == t.self {
			continue
		}
		recvMetric := byDest[dest]
		cand := recvMetric + 1

		e, exists := t.entries[dest]
		if !exists {
			t.entries[dest] = Entry{Dest: dest, Metric: cand, NextHop: source, LastUpdated: now, Origin: OriginLearned}
			diff = append(diff, Change{Kind: Added, Dest: dest, Metric: cand, NextHop: source, Origin: OriginLearned})
			continue
		}

		if e.NextHop == source {
			if cand != e.Metric {
				t.entries[dest] = Entry{Dest: dest, Metric: cand, NextHop: source, LastUpdated: now, Origin: e.Origin}
				diff = append(diff, Change{Kind: Updated, Dest: dest, Metric: cand, NextHop: source, Origin: e.Origin})
			} else {
				e.LastUpdated = now
				t.entries[dest] = e
			}
			continue
		}

		// Different next hop: only a strictly better metric replaces the
		// incumbent. Ties favor whichever route is already installed.
		if cand < e.Metric {
			t.entries[dest] = Entry{Dest: dest, Metric: cand, NextHop: source, LastUpdated: now, Origin: OriginLearned}
			diff = append(diff, Change{Kind: Updated, Dest: dest, Metric: cand, NextHop: source, Origin: OriginLearned})
		}
	}

	// Withdrawals: anything previously advertised by source but absent
	// now, whose current next hop is still source, is gone.
	withdrawn := make([]string, 0)
	for dest := range prev {
		if _, stillListed := cur[dest]; stillListed {
			continue
		}
		if e, ok := t.entries[dest]; ok && e.NextHop == source {
			withdrawn = append(withdrawn, dest)
		}
	}
	sort.Strings(withdrawn)
	for _, dest := range withdrawn {
		e := t.entries[dest]
		delete(t.entries, dest)
		diff = append(diff, Change{Kind: Removed, Dest: dest, Metric: e.Metric, NextHop: e.NextHop, Origin: e.Origin})
	}

	if !diff.Empty() {
		added, updated, removed := diff.Counts()
		t.logger.Debug("route-vector applied",
			logger.F("source", source), logger.F("added", added),
			logger.F("updated", updated), logger.F("removed", removed))
	}
	return diff
}

// AgeNeighbor marks neighbor n silent: last_heard and advertised are
// reset, and every route whose next hop is n (the direct route to n
// included) is purged. n stays in the
// configured neighbor set; it may return later.
func (t *Table) AgeNeighbor(n string) Diff {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastHeard[n] = time.Time{}
	t.advertised[n] = nil

	dests := make([]string, 0)
	for dest, e := range t.entries {
		if e.NextHop == n {
			dests = append(dests, dest)
		}
	}
	sort.Strings(dests)

	diff := make(Diff, 0, len(dests))
	for _, dest := range dests {
		e := t.entries[dest]
		delete(t.entries, dest)
		diff = append(diff, Change{Kind: Removed, Dest: dest, Metric: e.Metric, NextHop: e.NextHop, Origin: e.Origin})
	}
	if !diff.Empty() {
		t.logger.Debug("neighbor aged out", logger.F("neighbor", n), logger.F("routes_purged", len(diff)))
	}
	return diff
}

// InactiveNeighbors returns, sorted, every neighbor that has been heard
// from before (last_heard != 0) but not within timeout.
func (t *Table) InactiveNeighbors(timeout time.Duration) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	var out []string
	for n := range t.neighbors {
		last := t.lastHeard[n]
		if !last.IsZero() && now.Sub(last) > timeout {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Neighbors returns a sorted snapshot of the configured/discovered
// neighbor set.
func (t *Table) Neighbors() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.neighbors))
	for n := range t.neighbors {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns every entry, sorted by destination.
func (t *Table) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dest < out[j].Dest })
	return out
}

// LookupNextHop returns the next hop for dest, and whether a route exists.
func (t *Table) LookupNextHop(dest string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[dest]
	if !ok {
		return "", false
	}
	return e.NextHop, true
}
