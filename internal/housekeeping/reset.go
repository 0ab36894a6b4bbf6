// Package housekeeping runs the long-lived maintenance tasks of the central system.
package housekeeping

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// MonthlyResetter zeroes usage when a new month has begun.
type MonthlyResetter interface {
	ResetMonthlyUsage(ctx context.Context) bool
}

// MonthlyReset checks for a month rollover immediately and then on every tick.
type MonthlyReset struct {
	target   MonthlyResetter
	interval time.Duration
	logger   *zap.Logger
}

// NewMonthlyReset builds the task. interval defaults to 24h.
func NewMonthlyReset(target MonthlyResetter, interval time.Duration, logger *zap.Logger) *MonthlyReset {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MonthlyReset{target: target, interval: interval, logger: logger.Named("housekeeping")}
}

// Run blocks until ctx is cancelled.
func (m *MonthlyReset) Run(ctx context.Context) {
	m.check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *MonthlyReset) check(ctx context.Context) {
	if m.target.ResetMonthlyUsage(ctx) {
		m.logger.Info("monthly usage reset")
	} else {
		m.logger.Debug("monthly usage already reset for current month")
	}
}
