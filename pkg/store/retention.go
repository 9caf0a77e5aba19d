package store

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Retention prunes aged terminal action states and orphaned steps on a cron
// schedule. Widgets, messages and dashboards are user-visible entities and
// are never pruned here.
type Retention struct {
	store    *SQLiteStore
	maxAge   time.Duration
	schedule string
	cron     *cron.Cron
	logger   zerolog.Logger
}

// RetentionConfig configures the retention job
type RetentionConfig struct {
	MaxAge   time.Duration // how long terminal action states are kept
	Schedule string        // cron expression, default hourly
}

// NewRetention creates a retention job over the given store
func NewRetention(store *SQLiteStore, cfg RetentionConfig, logger zerolog.Logger) *Retention {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 30 * 24 * time.Hour
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@hourly"
	}
	return &Retention{
		store:    store,
		maxAge:   cfg.MaxAge,
		schedule: cfg.Schedule,
		logger:   logger.With().Str("component", "retention").Logger(),
	}
}

// Start schedules the job. Call Stop to shut it down.
func (r *Retention) Start() error {
	r.cron = cron.New()
	_, err := r.cron.AddFunc(r.schedule, func() {
		if err := r.Prune(context.Background()); err != nil {
			r.logger.Error().Err(err).Msg("Retention prune failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", r.schedule, err)
	}
	r.cron.Start()
	r.logger.Info().Str("schedule", r.schedule).Dur("max_age", r.maxAge).Msg("Retention job started")
	return nil
}

// Stop halts the scheduled job, waiting for a running prune to finish
func (r *Retention) Stop() {
	if r.cron != nil {
		ctx := r.cron.Stop()
		<-ctx.Done()
	}
}

// Prune deletes terminal action states older than MaxAge and steps whose
// widget no longer exists.
func (r *Retention) Prune(ctx context.Context) error {
	cutoff := time.Now().Add(-r.maxAge)

	res, err := r.store.db.ExecContext(ctx, `
		DELETE FROM action_states
		WHERE status IN ('succeeded', 'failed') AND ended_at IS NOT NULL AND ended_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune action states: %w", err)
	}
	states, _ := res.RowsAffected()

	res, err = r.store.db.ExecContext(ctx, `
		DELETE FROM steps WHERE widget_id NOT IN (SELECT id FROM widgets)`)
	if err != nil {
		return fmt.Errorf("failed to prune orphaned steps: %w", err)
	}
	steps, _ := res.RowsAffected()

	if states > 0 || steps > 0 {
		r.logger.Info().Int64("action_states", states).Int64("steps", steps).Msg("Pruned aged records")
	}
	return nil
}
