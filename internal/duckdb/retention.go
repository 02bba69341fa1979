package duckdb

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig holds configuration for the retention cleaner.
type RetentionConfig struct {
	RetentionDays int
	Interval      time.Duration // defaults to one hour
	Logger        *slog.Logger
}

// RetentionCleaner periodically deletes verdicts older than the retention
// period.
type RetentionCleaner struct {
	store    *Store
	days     int
	interval time.Duration
	logger   *slog.Logger
}

// NewRetentionCleaner creates a cleaner. Returns nil when retention is 0
// (keep forever).
func NewRetentionCleaner(store *Store, conf RetentionConfig) *RetentionCleaner {
	if conf.RetentionDays <= 0 {
		return nil
	}
	if conf.Interval <= 0 {
		conf.Interval = time.Hour
	}
	if conf.Logger == nil {
		conf.Logger = slog.Default()
	}
	return &RetentionCleaner{
		store:    store,
		days:     conf.RetentionDays,
		interval: conf.Interval,
		logger:   conf.Logger,
	}
}

// Run cleans up once, then on every interval until ctx is done.
func (rc *RetentionCleaner) Run(ctx context.Context) error {
	// Catch up after downtime.
	rc.cleanup(ctx)

	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rc.cleanup(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (rc *RetentionCleaner) cleanup(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-time.Duration(rc.days) * 24 * time.Hour)

	rows, err := rc.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			rc.logger.Error("verdict retention cleanup", "error", err)
		}
		return
	}
	if rows > 0 {
		rc.logger.Info("verdict retention cleanup", "deleted", rows, "retention_days", rc.days)
	}
}
