// Package jobs holds the service's background processes.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skekre98/chatlog/config"
	"github.com/skekre98/chatlog/core"
	"github.com/skekre98/chatlog/messages"
)

const (
	DefaultDigestInterval = 30 * time.Second
	DefaultDigestLimit    = 5
)

// RunRecorder counts job iterations; *metrics.Metrics implements it.
type RunRecorder interface {
	JobRun(job string, err error)
}

// Digest periodically logs the latest messages. Repository failures are
// logged and retried on the next tick; they never stop the loop.
type Digest struct {
	repo     messages.Repository
	interval time.Duration
	limit    int64
	logger   *slog.Logger
	runs     RunRecorder
}

var _ core.Process = (*Digest)(nil)

func NewDigest(repo messages.Repository, cfg config.DigestJobConfig, logger *slog.Logger, runs RunRecorder) *Digest {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultDigestInterval
	}
	limit := int64(cfg.Limit)
	if limit <= 0 {
		limit = DefaultDigestLimit
	}
	return &Digest{
		repo:     repo,
		interval: interval,
		limit:    limit,
		logger:   logger.With("process", "digest"),
		runs:     runs,
	}
}

func (d *Digest) Name() string { return "digest" }

// Prepare fails when the repository is unreachable.
func (d *Digest) Prepare(ctx context.Context) error {
	if err := d.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository unreachable: %w", err)
	}
	d.logger.Info("prepared", "interval", d.interval, "limit", d.limit)
	return nil
}

func (d *Digest) Run(ctx context.Context) error {
	err := core.Tick(ctx, d.interval, func(ctx context.Context) error {
		d.once(ctx)
		return nil
	})
	d.logger.Info("stopped")
	return err
}

func (d *Digest) once(ctx context.Context) {
	msgs, err := d.repo.List(ctx, 0, d.limit)
	if d.runs != nil {
		d.runs.JobRun(d.Name(), err)
	}
	if err != nil {
		if ctx.Err() == nil {
			d.logger.Error("list latest messages", "error", err)
		}
		return
	}
	d.logger.Info("latest messages", "count", len(msgs), "messages", msgs)
}
