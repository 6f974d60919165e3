// Package engine runs the router's lifecycle: the listener loop that
// decodes inbound datagrams and applies them to the routing table, the
// announcer and monitor tickers, the periodic table printer, and the
// forward/deliver decision for text messages.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"vecrouter/internal/delivery"
	"vecrouter/internal/logger"
	"vecrouter/internal/routingtable"
	"vecrouter/internal/telemetry"
	"vecrouter/internal/transport"
	"vecrouter/internal/wire"
)

// Intervals controls how often the engine's background tasks run.
type Intervals struct {
	Announce        time.Duration
	Monitor         time.Duration
	Print           time.Duration
	NeighborTimeout time.Duration
}

// Engine ties the transport, the routing table and the delivery sink
// together into the running daemon.
type Engine struct {
	logger  logger.Logger
	tracer  telemetry.Tracer
	self    string
	tr      *transport.Transport
	table   *routingtable.Table
	sink    *delivery.Sink
	periods Intervals

	wg sync.WaitGroup
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger sets the logger used for structured diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTracer sets the tracer used for routing-table mutation spans.
func WithTracer(t telemetry.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// New creates an Engine bound to self, using tr for I/O, table for
// routing state, sink for locally-delivered messages, and periods to
// pace its background tasks.
func New(self string, tr *transport.Transport, table *routingtable.Table, sink *delivery.Sink, periods Intervals, opts ...Option) *Engine {
	e := &Engine{
		logger:  &logger.NopLogger{},
		self:    self,
		tr:      tr,
		table:   table,
		sink:    sink,
		periods: periods,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the listener, announcer, monitor and printer
// background tasks, emits this node's initial presence to every
// neighbor, and prints the seeded table. The tasks run until ctx is
// canceled; call Wait after canceling ctx to block until they exit.
func (e *Engine) Start(ctx context.Context) {
	e.wg.Add(4)
	go e.listenLoop(ctx)
	go e.announceLoop(ctx)
	go e.monitorLoop(ctx)
	go e.printLoop(ctx)

	e.announceSelf()
	e.printTable(nil)
}

// Wait blocks until every background task launched by Start has exited.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// announceSelf sends a presence message for self to every neighbor.
func (e *Engine) announceSelf() {
	payload := wire.SerializePresence(e.self)
	for _, n := range e.table.Neighbors() {
		e.tr.Send(n, payload)
	}
	e.logger.Debug("presence announced", logger.F("self", e.self))
}

// broadcastRoutes sends the full routing table to every neighbor. Split
// horizon is not applied: a route is advertised back to the neighbor it
// was learned from like any other.
func (e *Engine) broadcastRoutes() {
	snapshot := e.table.Snapshot()
	records := make([]wire.RouteRecord, 0, len(snapshot))
	for _, entry := range snapshot {
		records = append(records, wire.RouteRecord{Dest: entry.Dest, Metric: entry.Metric})
	}
	payload := wire.SerializeRouteVector(records)
	for _, n := range e.table.Neighbors() {
		e.tr.Send(n, payload)
	}
}

func (e *Engine) listenLoop(ctx context.Context) {
	defer e.wg.Done()
	e.logger.Info("listener started", logger.F("self", e.self))
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("listener stopped")
			return
		default:
		}

		source, payload, ok, err := e.tr.Recv()
		if err != nil {
			if err == transport.ErrClosed {
				return
			}
			e.logger.Error("recv error", logger.F("err", err.Error()))
			continue
		}
		if !ok {
			continue
		}

		msg, perr := wire.Parse(string(payload))
		if perr != nil {
			e.logger.Warn("dropping malformed message", logger.F("source", source), logger.F("err", perr.Error()))
			continue
		}
		e.handle(ctx, source, msg)
	}
}

func (e *Engine) handle(ctx context.Context, source string, msg wire.Message) {
	switch msg.Kind {
	case wire.KindPresence:
		diff := e.table.ApplyPresence(source, msg.PresenceAddr)
		added, updated, removed := diff.Counts()
		_, span := e.tracer.StartMutation(ctx, "presence", added, updated, removed)
		span.End()
		e.onDiff(diff)

	case wire.KindRouteVector:
		diff := e.table.ApplyRouteVector(source, msg.Routes)
		added, updated, removed := diff.Counts()
		_, span := e.tracer.StartMutation(ctx, "route_vector", added, updated, removed)
		span.End()
		e.onDiff(diff)

	case wire.KindText:
		e.handleText(msg)
	}
}

// onDiff prints the table and re-broadcasts immediately whenever a
// mutation actually changed something.
func (e *Engine) onDiff(diff routingtable.Diff) {
	if diff.Empty() {
		return
	}
	e.printTable(diff)
	e.broadcastRoutes()
}

// handleText delivers a text message addressed to self, or forwards it
// toward its destination's next hop. Messages with no known route are
// dropped.
func (e *Engine) handleText(msg wire.Message) {
	if msg.TextDest == e.self {
		e.sink.Deliver(msg.TextOrigin, msg.TextPayload)
		return
	}

	nextHop, ok := e.table.LookupNextHop(msg.TextDest)
	if !ok {
		e.logger.Warn("no route, dropping text message",
			logger.F("dest", msg.TextDest), logger.F("origin", msg.TextOrigin))
		return
	}
	e.tr.Send(nextHop, wire.SerializeText(msg.TextOrigin, msg.TextDest, msg.TextPayload))
}

// Submit originates a text message from this node toward dest. It is
// delivered locally if dest is self, otherwise sent to the next hop
// known for dest. It returns false if no route to dest is known.
func (e *Engine) Submit(dest, payload string) bool {
	if dest == e.self {
		e.sink.Deliver(e.self, payload)
		return true
	}
	nextHop, ok := e.table.LookupNextHop(dest)
	if !ok {
		return false
	}
	e.tr.Send(nextHop, wire.SerializeText(e.self, dest, payload))
	return true
}

func (e *Engine) announceLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.periods.Announce)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("announcer stopped")
			return
		case <-ticker.C:
			e.broadcastRoutes()
		}
	}
}

func (e *Engine) monitorLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.periods.Monitor)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("monitor stopped")
			return
		case <-ticker.C:
			for _, n := range e.table.InactiveNeighbors(e.periods.NeighborTimeout) {
				e.logger.Warn("neighbor considered inactive", logger.F("neighbor", n))
				diff := e.table.AgeNeighbor(n)
				added, updated, removed := diff.Counts()
				_, span := e.tracer.StartMutation(ctx, "age_neighbor", added, updated, removed)
				span.End()
				e.onDiff(diff)
			}
		}
	}
}

func (e *Engine) printLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.periods.Print)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("printer stopped")
			return
		case <-ticker.C:
			e.printTable(nil)
		}
	}
}

// printTable writes the routing table, and any diff lines, to stdout.
func (e *Engine) printTable(diff routingtable.Diff) {
	fmt.Println(FormatTable(e.self, e.table.Snapshot()))
	if len(diff) > 0 {
		fmt.Print(FormatDiff(diff))
	}
}

// FormatTable renders the routing table as a fixed-width four-column
// banner (Destino | Métrica | Saída | Origem), destinations sorted
// alphabetically, matching the literal header text of the external
// interface contract.
func FormatTable(self string, entries []routingtable.Entry) string {
	var b strings.Builder
	b.WriteString("=== ROUTING TABLE ===\n")
	fmt.Fprintf(&b, "Router: %s\n", self)
	fmt.Fprintf(&b, "%-16s %-7s %-16s %-8s\n", "Destino", "Métrica", "Saída", "Origem")
	sorted := make([]routingtable.Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Dest < sorted[j].Dest })
	for _, e := range sorted {
		fmt.Fprintf(&b, "%-16s %-7d %-16s %-8s\n", e.Dest, e.Metric, e.NextHop, e.Origin)
	}
	b.WriteString("======================")
	return b.String()
}

// FormatDiff renders one "+"/"~"/"-" line per change in diff.
func FormatDiff(diff routingtable.Diff) string {
	var b strings.Builder
	for _, c := range diff {
		switch c.Kind {
		case routingtable.Added:
			fmt.Fprintf(&b, "  + %s via %s (metric=%d)\n", c.Dest, c.NextHop, c.Metric)
		case routingtable.Updated:
			fmt.Fprintf(&b, "  ~ %s via %s (metric=%d)\n", c.Dest, c.NextHop, c.Metric)
		case routingtable.Removed:
			fmt.Fprintf(&b, "  - %s\n", c.Dest)
		}
	}
	return b.String()
}
