package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"cafepos/internal/domain"
	"cafepos/internal/store"
)

// PartialApplyError reports a sequential batch where some deltas landed and
// others did not. Applied levels are kept; nothing is rolled back.
type PartialApplyError struct {
	Applied []domain.StockLevel
	Failed  map[string]error
}

func (e *PartialApplyError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	return fmt.Sprintf("stock batch partially applied: %d ok, failed for %s", len(e.Applied), strings.Join(ids, ", "))
}

func (e *PartialApplyError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}

type Ledger struct {
	repo store.ProductRepository
	log  *zap.Logger
}

func NewLedger(repo store.ProductRepository, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{repo: repo, log: log}
}

// AdjustStock moves a product's stock by quantity in the given direction.
// Decrements clamp at zero, so an oversell completes with stock 0.
func (l *Ledger) AdjustStock(ctx context.Context, productID string, quantity int, direction domain.StockDirection) (domain.StockLevel, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.StockLevel{}, fmt.Errorf("%w: product id required", store.ErrInvalidInput)
	}
	if quantity <= 0 {
		return domain.StockLevel{}, fmt.Errorf("%w: quantity must be positive, got %d", store.ErrInvalidInput, quantity)
	}

	delta := quantity
	switch direction {
	case domain.StockIncrement:
	case domain.StockDecrement:
		delta = -quantity
	default:
		return domain.StockLevel{}, fmt.Errorf("%w: unknown stock direction %q", store.ErrInvalidInput, direction)
	}

	stock, err := l.repo.IncrementStock(ctx, productID, delta)
	if err != nil {
		return domain.StockLevel{}, err
	}
	return domain.StockLevel{ProductID: productID, Stock: stock}, nil
}

// BatchAdjustStock applies signed deltas. Stores implementing
// store.StockBatcher apply them atomically; otherwise each delta is applied
// in order and failures come back as *PartialApplyError.
func (l *Ledger) BatchAdjustStock(ctx context.Context, deltas []domain.StockDelta) ([]domain.StockLevel, error) {
	merged := mergeDeltas(deltas)
	if len(merged) == 0 {
		return []domain.StockLevel{}, nil
	}

	if batcher, ok := l.repo.(store.StockBatcher); ok {
		return batcher.ApplyStockDeltas(ctx, merged)
	}

	applied := make([]domain.StockLevel, 0, len(merged))
	failed := map[string]error{}
	for _, d := range merged {
		stock, err := l.repo.IncrementStock(ctx, d.ProductID, d.Delta)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				l.log.Warn("stock delta failed",
					zap.String("product_id", d.ProductID),
					zap.Int("delta", d.Delta),
					zap.Error(err),
				)
			}
			failed[d.ProductID] = err
			continue
		}
		applied = append(applied, domain.StockLevel{ProductID: d.ProductID, Stock: stock})
	}

	if len(failed) > 0 {
		return applied, &PartialApplyError{Applied: applied, Failed: failed}
	}
	return applied, nil
}

// mergeDeltas folds a product's delta into its previous one when both move
// stock the same way, keeping first-seen order and dropping zeros. Opposite
// signs stay separate because clamping at zero makes their order matter.
func mergeDeltas(deltas []domain.StockDelta) []domain.StockDelta {
	last := make(map[string]int, len(deltas))
	out := make([]domain.StockDelta, 0, len(deltas))
	for _, d := range deltas {
		if d.ProductID == "" || d.Delta == 0 {
			continue
		}
		if i, ok := last[d.ProductID]; ok && (out[i].Delta > 0) == (d.Delta > 0) {
			out[i].Delta += d.Delta
			continue
		}
		last[d.ProductID] = len(out)
		out = append(out, d)
	}
	return out
}
