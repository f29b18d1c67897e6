package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/robfig/cron/v3"
)

// Evaluator runs one evaluation pass against every listed price.
// service.OrderService implements it.
type Evaluator interface {
	EvaluateAll(ctx context.Context) (engine.MatchResult, error)
}

// Poller runs an evaluation pass on a cron schedule. A pass still running
// when the next one is due causes that run to be skipped.
type Poller struct {
	cron    *cron.Cron
	eval    Evaluator
	logger  *slog.Logger
	timeout time.Duration
}

// NewPoller schedules eval on a standard cron spec (descriptors such as
// "@every 1s" included). Each pass is bounded by timeout.
func NewPoller(schedule string, timeout time.Duration, eval Evaluator, logger *slog.Logger) (*Poller, error) {
	p := &Poller{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DiscardLogger),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		eval:    eval,
		logger:  logger,
		timeout: timeout,
	}

	if _, err := p.cron.AddFunc(schedule, p.run); err != nil {
		return nil, fmt.Errorf("failed to schedule evaluation %q: %w", schedule, err)
	}
	return p, nil
}

// Start begins running scheduled passes in the background.
func (p *Poller) Start() {
	p.logger.Info("evaluation poller started")
	p.cron.Start()
}

// Stop stops the schedule and waits for a running pass to finish.
func (p *Poller) Stop() {
	<-p.cron.Stop().Done()
	p.logger.Info("evaluation poller stopped")
}

// RunOnce runs a single evaluation pass.
func (p *Poller) RunOnce(ctx context.Context) (engine.MatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.eval.EvaluateAll(ctx)
}

func (p *Poller) run() {
	start := time.Now()
	res, err := p.RunOnce(context.Background())
	if err != nil {
		p.logger.Error("evaluation pass failed", slog.String("error", err.Error()))
		return
	}
	if len(res.Filled) > 0 || len(res.Expired) > 0 {
		p.logger.Info("evaluation pass",
			slog.Int("filled", len(res.Filled)),
			slog.Int("expired", len(res.Expired)),
			slog.Int("failed", len(res.Failed)),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
