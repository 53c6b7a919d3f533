package bidding

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/auction"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/errors"
)

// FinalizeExpired finalizes every ended auction still open. Items are
// listed a batch at a time in auction end order and processed concurrently
// up to the configured limit. A failure on one item is logged and counted
// and does not stop the others, and the sweep moves past it so a run of
// failing items cannot starve those behind it.
func (s *service) FinalizeExpired(ctx context.Context) (*SweepResult, error) {
	now := s.clock.Now()
	result := &SweepResult{}

	var cursor auction.SweepCursor
	for {
		items, err := s.items.ListExpiredOpen(ctx, now, cursor, s.cfg.SweepBatchSize)
		if err != nil {
			return nil, errors.NewInternalError("failed to list expired auctions").WithCause(err)
		}
		if len(items) == 0 {
			break
		}

		result.Scanned += len(items)
		s.finalizeBatch(ctx, items, result)

		cursor = auction.CursorAfter(items[len(items)-1])
		if s.cfg.SweepBatchSize <= 0 || len(items) < s.cfg.SweepBatchSize || ctx.Err() != nil {
			break
		}
	}
	return result, ctx.Err()
}

func (s *service) finalizeBatch(ctx context.Context, items []*auction.Item, result *SweepResult) {
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.cfg.SweepConcurrency)
	for _, item := range items {
		itemID := item.ID
		g.Go(func() error {
			res, err := s.Finalize(ctx, itemID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed++
				s.logger.Warn("failed to finalize auction",
					zap.String("item_id", itemID.String()),
					zap.Error(err))
			case res.Outcome == OutcomeSold:
				result.Sold++
			case res.Outcome == OutcomeUnsold:
				result.Unsold++
			default:
				result.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Hook is extra periodic work run after each sweep.
type Hook struct {
	Name string
	Run  func(ctx context.Context) error
}

// Finalizer runs FinalizeExpired on a fixed interval.
type Finalizer struct {
	svc      Service
	interval time.Duration
	hooks    []Hook
	logger   *zap.Logger
}

func NewFinalizer(svc Service, interval time.Duration, logger *zap.Logger, hooks ...Hook) *Finalizer {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Finalizer{
		svc:      svc,
		interval: interval,
		hooks:    hooks,
		logger:   logger.Named("finalizer"),
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (f *Finalizer) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.logger.Info("auction finalizer started", zap.Duration("interval", f.interval))
	for {
		f.tick(ctx)

		select {
		case <-ctx.Done():
			f.logger.Info("auction finalizer stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (f *Finalizer) tick(ctx context.Context) {
	start := time.Now()
	res, err := f.svc.FinalizeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			f.logger.Error("finalization sweep failed", zap.Error(err))
		}
	} else if res.Scanned > 0 {
		f.logger.Info("finalization sweep complete",
			zap.Int("scanned", res.Scanned),
			zap.Int("sold", res.Sold),
			zap.Int("unsold", res.Unsold),
			zap.Int("skipped", res.Skipped),
			zap.Int("failed", res.Failed),
			zap.Duration("took", time.Since(start)))
	}

	for _, h := range f.hooks {
		if ctx.Err() != nil {
			return
		}
		if err := h.Run(ctx); err != nil {
			f.logger.Error("sweep hook failed", zap.String("hook", h.Name), zap.Error(err))
		}
	}
}
