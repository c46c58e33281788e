package extractor

import (
	"context"
	"fmt"
	"time"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
	"github.com/preston-bernstein/oddsharvester/internal/logging"
)

const overlayPollInterval = 50 * time.Millisecond

// attachHistory hovers every tagged odds cell of the parsed records and nests the
// revealed movement entries under each record. Cells whose overlay never appears are
// left without history.
func (e *Extractor) attachHistory(ctx context.Context, run *matchRun, def domain.MarketDefinition, records []domain.OddsRecord) ([]domain.OddsRecord, error) {
	labels := def.Labels()
	out := make([]domain.OddsRecord, 0, len(records))
	var prev string
	for _, rec := range records {
		if rec.RowRef == "" {
			out = append(out, rec)
			continue
		}
		history := make(map[string][]domain.OddsMovement)
		for i, label := range labels {
			if _, ok := rec.Odds[label]; !ok {
				continue
			}
			cell := e.sel.CellRefSelector(rec.RowRef, i)
			moves, err := e.cellHistory(ctx, run, &prev, cell, rec.CollectedAt)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				logging.Warn(run.logger, "odds history unavailable",
					logging.FieldMarket, def.Key(),
					logging.FieldBookmaker, rec.Bookmaker,
					"label", label,
					logging.FieldError, err,
				)
				continue
			}
			if len(moves) > 0 {
				history[label] = moves
			}
		}
		if len(history) > 0 {
			rec = rec.WithHistory(history)
		}
		out = append(out, rec)
	}
	return out, nil
}

// cellHistory reads the overlay revealed by hovering cell. The overlay left by the
// previously hovered cell (*prev) must be gone first or its movement would be read
// again. *prev moves to cell once the pointer is sent there.
func (e *Extractor) cellHistory(ctx context.Context, run *matchRun, prev *string, cell string, collectedAt time.Time) ([]domain.OddsMovement, error) {
	waitCtx, cancel := context.WithTimeout(ctx, e.opts.HistoryWait)
	defer cancel()
	if err := e.dismissOverlay(waitCtx, run, *prev); err != nil {
		return nil, err
	}
	*prev = cell
	if err := run.page.Hover(ctx, cell); err != nil {
		return nil, err
	}
	if err := run.page.WaitReady(waitCtx, e.sel.HistoryOverlay); err != nil {
		return nil, err
	}
	fragment, err := run.page.QuerySnapshot(ctx, e.sel.HistoryOverlay)
	if err != nil {
		return nil, err
	}
	return e.parser.ParseHistory(fragment, collectedAt)
}

// dismissOverlay moves the pointer off prev and waits until no overlay is mounted.
func (e *Extractor) dismissOverlay(ctx context.Context, run *matchRun, prev string) error {
	if prev != "" {
		if err := run.page.EvaluateScript(ctx, LeaveScript(prev), nil); err != nil {
			return err
		}
	}
	mounted := ExistsScript(e.sel.HistoryOverlay)
	for {
		var open bool
		if err := run.page.EvaluateScript(ctx, mounted, &open); err != nil {
			return err
		}
		if !open {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("odds overlay of %s still open: %w", prev, ctx.Err())
		case <-time.After(overlayPollInterval):
		}
	}
}
