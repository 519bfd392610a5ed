package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/petal-labs/verdict"
	"github.com/petal-labs/verdict/store"
)

// cronParser accepts standard five-field cron expressions. Schedules are
// always interpreted in UTC.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Revalidator periodically re-parses every stored rule against the live
// catalog and records the outcome. A rule that no longer parses, for
// example because an attribute was removed or retyped after the rule was
// stored, is marked invalid rather than deleted.
type Revalidator struct {
	store    store.RuleStore
	catalog  *verdict.Catalog
	schedule cron.Schedule
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRevalidator parses the cron expression and builds a sweeper over
// the given store and catalog.
func NewRevalidator(ruleStore store.RuleStore, catalog *verdict.Catalog, cronExpr string, logger *slog.Logger) (*Revalidator, error) {
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Revalidator{
		store:    ruleStore,
		catalog:  catalog,
		schedule: schedule,
		logger:   logger,
	}, nil
}

// Start launches the sweep loop. It is a no-op if already running.
func (rv *Revalidator) Start() {
	rv.mu.Lock()
	defer rv.mu.Unlock()
	if rv.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	rv.cancel = cancel
	rv.done = done

	go rv.run(ctx, done)
}

// Stop cancels the loop and waits for it to exit.
func (rv *Revalidator) Stop() {
	rv.mu.Lock()
	cancel := rv.cancel
	done := rv.done
	rv.cancel = nil
	rv.done = nil
	rv.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (rv *Revalidator) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		now := time.Now().UTC()
		next := rv.schedule.Next(now)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := rv.SweepOnce(ctx); err != nil {
			rv.logger.Error("revalidation sweep failed", "error", err)
		}
	}
}

// SweepOnce re-parses all stored rules and updates their validation
// state. Rules that fail to parse are marked invalid with the parse
// error message.
func (rv *Revalidator) SweepOnce(ctx context.Context) error {
	records, err := rv.store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing rules: %w", err)
	}

	checked := time.Now().UTC()
	var invalid int
	for _, rec := range records {
		message := ""
		valid := true
		if _, err := verdict.Compile(rec.RuleString, rv.catalog); err != nil {
			valid = false
			message = err.Error()
			invalid++
		}
		if err := rv.store.SetValidation(ctx, rec.ID, valid, message, checked); err != nil {
			return fmt.Errorf("recording validation for rule %q: %w", rec.ID, err)
		}
	}

	rv.logger.Info("revalidation sweep complete",
		"rules", len(records),
		"invalid", invalid,
	)
	return nil
}
