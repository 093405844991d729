package tm

import "log/slog"

type Option func(*Manager)

// WithLogger sets the logger used by the manager and its lock manager.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}
