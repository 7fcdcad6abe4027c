// Package notify delivers batch reports over log, SMTP and SNS.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/application/stocksync"
)

// LogChannel writes reports to the application log. It never fails.
type LogChannel struct {
	logger *zap.Logger
}

var _ stocksync.Channel = (*LogChannel)(nil)

// NewLogChannel creates a log channel
func NewLogChannel(logger *zap.Logger) *LogChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogChannel{logger: logger.With(zap.String("channel", "log"))}
}

// Send logs the report at info level, or warn level for failures
func (c *LogChannel) Send(_ context.Context, title, body string, success bool) bool {
	fields := []zap.Field{zap.String("title", title), zap.String("body", body)}
	if success {
		c.logger.Info("Sync report", fields...)
	} else {
		c.logger.Warn("Sync report", fields...)
	}
	return true
}

// MultiChannel fans a report out to every channel. Send reports true when
// at least one channel delivered.
type MultiChannel struct {
	channels []stocksync.Channel
}

var _ stocksync.Channel = (*MultiChannel)(nil)

// NewMultiChannel creates a fan-out channel, skipping nil entries
func NewMultiChannel(channels ...stocksync.Channel) *MultiChannel {
	m := &MultiChannel{}
	for _, c := range channels {
		if c != nil {
			m.channels = append(m.channels, c)
		}
	}
	return m
}

// Len returns the number of channels
func (m *MultiChannel) Len() int {
	return len(m.channels)
}

// Send delivers to all channels, in order
func (m *MultiChannel) Send(ctx context.Context, title, body string, success bool) bool {
	delivered := false
	for _, c := range m.channels {
		if c.Send(ctx, title, body, success) {
			delivered = true
		}
	}
	return delivered
}
