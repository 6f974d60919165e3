// Package transport owns the single UDP socket a router speaks its
// protocol over: one bind per node, best-effort sends, and a receive
// loop that can be interrupted by a short deadline so callers can check
// a stop condition without blocking forever.
package transport

import (
	"errors"
	"fmt"
	"net"
	"time"

	"vecrouter/internal/logger"
)

// Port is the UDP port every router in the mesh listens on.
const Port = 5000

// recvDeadline bounds each ReadFrom call so Recv can be polled from a
// loop that also watches a context for cancellation.
const recvDeadline = time.Second

// ErrClosed is returned by Recv once the transport has been closed.
var ErrClosed = errors.New("transport: closed")

// Transport is a bound UDP socket shared by the announcer, listener and
// forwarder.
type Transport struct {
	logger logger.Logger

	self string
	conn *net.UDPConn
}

// Option configures a Transport at construction time.
type Option func(*Transport)

// WithLogger sets the logger used for structured diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(tr *Transport) { tr.logger = l }
}

// New binds a UDP socket at (self, Port) and returns a Transport ready
// to send and receive.
func New(self string, opts ...Option) (*Transport, error) {
	tr := &Transport{
		logger: &logger.NopLogger{},
		self:   self,
	}
	for _, opt := range opts {
		opt(tr)
	}

	conn, err := tr.bind()
	if err != nil {
		return nil, err
	}
	tr.conn = conn
	tr.logger.Debug("transport bound", logger.F("addr", self), logger.F("port", Port))
	return tr, nil
}

func (tr *Transport) bind() (*net.UDPConn, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(tr.self), Port: Port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: bind %s:%d: %w", tr.self, Port, err)
	}
	return conn, nil
}

// Send fires payload at peerAddr:Port. Delivery is not guaranteed: a
// failure is logged and dropped, matching UDP's own semantics.
func (tr *Transport) Send(peerAddr, payload string) {
	dst := &net.UDPAddr{IP: net.ParseIP(peerAddr), Port: Port}
	if _, err := tr.conn.WriteToUDP([]byte(payload), dst); err != nil {
		tr.logger.Warn("send failed", logger.F("peer", peerAddr), logger.F("err", err.Error()))
	}
}

// Recv blocks for up to recvDeadline waiting for one datagram. A timeout
// is reported as (ok=false, err=nil) so callers can loop on a stop
// condition; any other I/O error triggers one rebind attempt, reported
// as (ok=false, err=nil) if it succeeds and as an error if it fails.
// Recv returns ErrClosed once Close has been called.
func (tr *Transport) Recv() (source string, payload []byte, ok bool, err error) {
	if err := tr.conn.SetReadDeadline(time.Now().Add(recvDeadline)); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return "", nil, false, ErrClosed
		}
		return "", nil, false, fmt.Errorf("transport: set deadline: %w", err)
	}

	buf := make([]byte, 65535)
	n, addr, rerr := tr.conn.ReadFromUDP(buf)
	if rerr != nil {
		if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
			return "", nil, false, nil
		}
		if errors.Is(rerr, net.ErrClosed) {
			return "", nil, false, ErrClosed
		}

		tr.logger.Warn("recv error, attempting rebind", logger.F("err", rerr.Error()))
		newConn, berr := tr.bind()
		if berr != nil {
			return "", nil, false, fmt.Errorf("transport: rebind after recv error: %w", berr)
		}
		_ = tr.conn.Close()
		tr.conn = newConn
		return "", nil, false, nil
	}

	return addr.IP.String(), buf[:n], true, nil
}

// Close releases the underlying socket.
func (tr *Transport) Close() error {
	return tr.conn.Close()
}
