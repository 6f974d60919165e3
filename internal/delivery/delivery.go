// Package delivery is the sink for text messages that have reached
// their destination on this node. It is a small concurrency-safe store,
// shaped like the rest of the daemon's single-mutex-guarded-map
// components, that the operator CLI and tests can inspect.
package delivery

import (
	"sort"
	"sync"
	"time"

	"vecrouter/internal/logger"
)

// Message is one text payload that arrived for local delivery.
type Message struct {
	Origin    string
	Payload   string
	Delivered time.Time
}

// Sink records locally-delivered text messages, oldest first.
type Sink struct {
	logger logger.Logger

	mu       sync.RWMutex
	messages []Message
}

// Option configures a Sink at construction time.
type Option func(*Sink)

// WithLogger sets the logger used for structured diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(s *Sink) { s.logger = l }
}

// New creates an empty Sink.
func New(opts ...Option) *Sink {
	s := &Sink{logger: &logger.NopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver records a message delivered to this node from origin.
func (s *Sink) Deliver(origin, payload string) Message {
	msg := Message{Origin: origin, Payload: payload, Delivered: time.Now()}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.logger.Info("message delivered", logger.F("origin", origin), logger.F("payload", payload))
	return msg
}

// All returns a snapshot of every delivered message, oldest first.
func (s *Sink) All() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Delivered.Before(out[j].Delivered) })
	return out
}

// Len returns the number of messages delivered so far.
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
