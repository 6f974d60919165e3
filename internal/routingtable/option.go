package routingtable

import "vecrouter/internal/logger"

// Option configures a Table at construction time.
type Option func(*Table)

// WithLogger sets the logger used for structured diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(t *Table) {
		t.logger = l
	}
}
