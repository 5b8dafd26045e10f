package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cafepos/internal/domain"
	"cafepos/internal/pagination"
	"cafepos/internal/store"
	"cafepos/internal/xid"
)

const receiptAttempts = 3

// RecordTransaction validates the cart against the catalog, persists the sale
// under a fresh receipt number and then applies stock and analytics side
// effects. Side-effect failures never fail the sale; they come back as
// warnings on the result.
func (s *Service) RecordTransaction(ctx context.Context, actor domain.Actor, req domain.CheckoutRequest) (domain.RecordResult, error) {
	cashierID := strings.TrimSpace(actor.Username)
	if cashierID == "" {
		return domain.RecordResult{}, fmt.Errorf("%w: cashier required", store.ErrInvalidInput)
	}
	req.PaymentMethod = domain.PaymentMethod(strings.ToLower(strings.TrimSpace(string(req.PaymentMethod))))
	if err := s.validateStruct(req); err != nil {
		return domain.RecordResult{}, err
	}

	lines := mergeCartLines(req.Items)
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		if line.Quantity > domain.MaxLineQuantity {
			return domain.RecordResult{}, fmt.Errorf("%w: quantity for %s exceeds %d", store.ErrInvalidInput, line.ProductID, domain.MaxLineQuantity)
		}
		ids = append(ids, line.ProductID)
	}
	products, err := s.repo.GetProducts(ctx, ids)
	if err != nil {
		return domain.RecordResult{}, err
	}

	items := make([]domain.LineItem, 0, len(lines))
	subtotal := decimal.Zero
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			return domain.RecordResult{}, fmt.Errorf("%w: unknown product %s", ErrInvalidLineItem, line.ProductID)
		}
		if !product.IsActive {
			return domain.RecordResult{}, fmt.Errorf("%w: %s", ErrProductInactive, product.Name)
		}
		lineSubtotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		items = append(items, domain.LineItem{
			ProductID:    product.ID,
			Name:         product.Name,
			Price:        product.Price,
			Quantity:     line.Quantity,
			LineSubtotal: lineSubtotal,
		})
		subtotal = subtotal.Add(lineSubtotal)
	}

	tax := subtotal.Mul(s.taxRate).Round(2)
	now := s.clock.Now()
	tx := domain.Transaction{
		ID:            xid.New("tx"),
		SchemaVersion: domain.TransactionSchemaVersion,
		Items:         items,
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         subtotal.Add(tax),
		TaxRate:       s.taxRate,
		PaymentMethod: req.PaymentMethod,
		CashierID:     cashierID,
		Status:        domain.TxStatusCompleted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	created, err := s.persistWithReceipt(ctx, tx)
	if err != nil {
		return domain.RecordResult{}, err
	}

	result := domain.RecordResult{Transaction: *created}

	deltas := make([]domain.StockDelta, 0, len(created.Items))
	for _, item := range created.Items {
		deltas = append(deltas, domain.StockDelta{ProductID: item.ProductID, Delta: -item.Quantity})
	}
	if _, err := s.ledger.BatchAdjustStock(ctx, deltas); err != nil {
		result.Warnings = append(result.Warnings, s.sideEffectFailed(ctx, componentStock, created.ID, err))
	} else {
		s.health.success(componentStock)
	}

	if err := s.analytics.RecordSale(ctx, *created); err != nil {
		result.Warnings = append(result.Warnings, s.sideEffectFailed(ctx, componentAnalytics, created.ID, err))
	} else {
		s.health.success(componentAnalytics)
	}

	s.feed.Publish(*created)
	s.health.recorded(ctx)

	s.log.Info("transaction recorded",
		zap.String("transaction_id", created.ID),
		zap.String("receipt_number", created.ReceiptNumber),
		zap.String("cashier_id", created.CashierID),
		zap.String("payment_method", string(created.PaymentMethod)),
		zap.String("total", created.Total.StringFixed(2)),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

func (s *Service) persistWithReceipt(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	var lastErr error
	for attempt := 1; attempt <= receiptAttempts; attempt++ {
		var number string
		if attempt < receiptAttempts {
			var err error
			if number, err = s.receipts.Next(ctx, tx.CreatedAt); err != nil {
				return nil, err
			}
		} else {
			// Repeated collisions mean the day's counter is behind the stored
			// receipts, so the last attempt bypasses it.
			number = s.receipts.Fallback(tx.CreatedAt)
		}
		tx.ReceiptNumber = number

		created, err := s.repo.CreateTransaction(ctx, tx)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		lastErr = err
		s.log.Warn("receipt number collision, retrying",
			zap.String("receipt_number", number),
			zap.Int("attempt", attempt),
		)
	}
	return nil, lastErr
}

func (s *Service) sideEffectFailed(ctx context.Context, component string, transactionID string, err error) domain.SideEffectWarning {
	s.health.failure(ctx, component, err)
	s.log.Error("side effect failed, reconciliation needed",
		zap.String("component", component),
		zap.String("transaction_id", transactionID),
		zap.Error(err),
	)
	return domain.SideEffectWarning{
		Component:     component,
		TransactionID: transactionID,
		Message:       err.Error(),
	}
}

// mergeCartLines folds repeated products into one line in first-seen order.
func mergeCartLines(lines []domain.CartLine) []domain.CartLine {
	index := make(map[string]int, len(lines))
	merged := make([]domain.CartLine, 0, len(lines))
	for _, line := range lines {
		id := strings.TrimSpace(line.ProductID)
		if i, ok := index[id]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[id] = len(merged)
		merged = append(merged, domain.CartLine{ProductID: id, Quantity: line.Quantity})
	}
	return merged
}

func (s *Service) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Transaction{}, err
	}
	return *tx, nil
}

// ListTransactions pages newest first. cursor is the opaque token returned as
// NextCursor by the previous page.
func (s *Service) ListTransactions(ctx context.Context, query domain.TransactionQuery, cursor string) (domain.TransactionPage, error) {
	after, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return domain.TransactionPage{}, fmt.Errorf("%w: %s", store.ErrInvalidInput, err.Error())
	}
	if query.PaymentMethod != "" && !query.PaymentMethod.Valid() {
		return domain.TransactionPage{}, fmt.Errorf("%w: payment method %q", store.ErrInvalidInput, query.PaymentMethod)
	}
	if query.Status != "" && !query.Status.Valid() {
		return domain.TransactionPage{}, fmt.Errorf("%w: status %q", store.ErrInvalidInput, query.Status)
	}
	if !query.Start.IsZero() && !query.End.IsZero() && query.Start.After(query.End) {
		return domain.TransactionPage{}, fmt.Errorf("%w: start after end", store.ErrInvalidInput)
	}
	query.After = after

	page, err := s.repo.ListTransactions(ctx, query)
	if err != nil {
		return domain.TransactionPage{}, err
	}
	page.NextCursor = pagination.EncodeCursor(page.Next)
	return page, nil
}

// RefundTransaction moves a completed sale to refunded, then restocks its
// items and reverses its analytics. Non-admin actors must supply the manager
// PIN; without a configured PIN only admins can refund.
func (s *Service) RefundTransaction(ctx context.Context, actor domain.Actor, id string, req domain.RefundRequest) (domain.RecordResult, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validateStruct(req); err != nil {
		return domain.RecordResult{}, err
	}
	if actor.Role != domain.RoleAdmin {
		if s.managerPIN == "" || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(req.ManagerPIN)), []byte(s.managerPIN)) != 1 {
			return domain.RecordResult{}, fmt.Errorf("%w: manager approval required", ErrForbidden)
		}
	}

	refunded, err := s.repo.TransitionTransaction(ctx, strings.TrimSpace(id), domain.TxStatusCompleted, domain.TxStatusRefunded, req.Reason, s.clock.Now())
	if err != nil {
		return domain.RecordResult{}, err
	}

	result := domain.RecordResult{Transaction: *refunded}

	deltas := make([]domain.StockDelta, 0, len(refunded.Items))
	for _, item := range refunded.Items {
		deltas = append(deltas, domain.StockDelta{ProductID: item.ProductID, Delta: item.Quantity})
	}
	if _, err := s.ledger.BatchAdjustStock(ctx, deltas); err != nil {
		result.Warnings = append(result.Warnings, s.sideEffectFailed(ctx, componentStock, refunded.ID, err))
	} else {
		s.health.success(componentStock)
	}

	if err := s.analytics.RecordRefund(ctx, *refunded); err != nil {
		result.Warnings = append(result.Warnings, s.sideEffectFailed(ctx, componentAnalytics, refunded.ID, err))
	} else {
		s.health.success(componentAnalytics)
	}

	s.feed.Publish(*refunded)

	s.log.Info("transaction refunded",
		zap.String("transaction_id", refunded.ID),
		zap.String("receipt_number", refunded.ReceiptNumber),
		zap.String("actor", actor.Username),
		zap.String("reason", req.Reason),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}
