package report

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafepos/internal/analytics"
	"cafepos/internal/cache"
	"cafepos/internal/clock"
	"cafepos/internal/domain"
	"cafepos/internal/store"
	"cafepos/internal/store/memory"
)

type line struct {
	name  string
	price string
	qty   int
}

func makeTx(id string, method domain.PaymentMethod, cashier string, at time.Time, lines ...line) domain.Transaction {
	tx := domain.Transaction{
		ID:            id,
		SchemaVersion: domain.TransactionSchemaVersion,
		ReceiptNumber: "RCP-" + id,
		PaymentMethod: method,
		CashierID:     cashier,
		Status:        domain.TxStatusCompleted,
		Subtotal:      decimal.Zero,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
	for _, l := range lines {
		price := decimal.RequireFromString(l.price)
		sub := price.Mul(decimal.NewFromInt(int64(l.qty)))
		tx.Items = append(tx.Items, domain.LineItem{
			ProductID:    "prd-" + l.name,
			Name:         l.name,
			Price:        price,
			Quantity:     l.qty,
			LineSubtotal: sub,
		})
		tx.Subtotal = tx.Subtotal.Add(sub)
	}
	tx.Total = tx.Subtotal
	return tx
}

func newGenerator(t *testing.T, pageSize int, txs ...domain.Transaction) *Generator {
	t.Helper()
	s := memory.New()
	agg := analytics.NewAggregator(s, cache.NoopKPICache{}, clock.NewFixed(time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)), analytics.Options{}, nil)
	for _, tx := range txs {
		_, err := s.CreateTransaction(context.Background(), tx)
		require.NoError(t, err)
		require.NoError(t, agg.RecordSale(context.Background(), tx))
	}
	return NewGenerator(s, agg, time.UTC, pageSize, nil)
}

func TestGenerateSalesReportSummary(t *testing.T) {
	day := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	g := newGenerator(t, 2,
		makeTx("t1", domain.PaymentCash, "ana", day, line{"Taro Milk Tea", "4.50", 2}),
		makeTx("t2", domain.PaymentCard, "ben", day.Add(time.Hour), line{"Mango Smoothie", "5.25", 1}),
		makeTx("t3", domain.PaymentCash, "ana", day.Add(2*time.Hour), line{"Taro Milk Tea", "4.50", 1}, line{"Mango Smoothie", "5.25", 2}),
		makeTx("t4", domain.PaymentCash, "ana", day.Add(48*time.Hour), line{"Taro Milk Tea", "4.50", 9}),
	)

	report, err := g.GenerateSalesReport(context.Background(), domain.DateRange{Start: "2024-05-01", End: "2024-05-01"}, domain.ReportFilters{})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Summary.TotalTransactions)
	assert.Equal(t, "29.25", report.Summary.TotalSales.StringFixed(2))
	assert.Equal(t, "9.75", report.Summary.AverageOrderValue.StringFixed(2))
	assert.Equal(t, "24", report.PaymentMethodBreakdown[domain.PaymentCash].String())
	assert.Equal(t, "5.25", report.PaymentMethodBreakdown[domain.PaymentCard].String())
	require.Len(t, report.TopProducts, 2)
	assert.Equal(t, "Mango Smoothie", report.TopProducts[0].Name)
	assert.Equal(t, int64(3), report.TopProducts[0].Quantity)
	assert.Equal(t, "Taro Milk Tea", report.TopProducts[1].Name)
	assert.Equal(t, []string{"t3", "t2", "t1"}, []string{report.Transactions[0].ID, report.Transactions[1].ID, report.Transactions[2].ID})
	require.Len(t, report.Analytics, 1)
	assert.Equal(t, int64(3), report.Analytics[0].TransactionCount)
}

func TestGenerateSalesReportIsRepeatable(t *testing.T) {
	day := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	g := newGenerator(t, 2,
		makeTx("t1", domain.PaymentCash, "ana", day, line{"Taro Milk Tea", "4.50", 2}),
		makeTx("t2", domain.PaymentCard, "ben", day.Add(time.Hour), line{"Mango Smoothie", "5.25", 1}),
		makeTx("t3", domain.PaymentMobileMoney, "ana", day.Add(2*time.Hour), line{"Taro Milk Tea", "4.50", 1}),
		makeTx("t4", domain.PaymentCash, "ben", day.Add(3*time.Hour), line{"Mango Smoothie", "5.25", 1}, line{"Taro Milk Tea", "4.50", 1}),
		makeTx("t5", domain.PaymentCash, "ana", day.Add(24*time.Hour), line{"Taro Milk Tea", "4.50", 3}),
	)
	period := domain.DateRange{Start: "2024-05-01", End: "2024-05-02"}
	ctx := context.Background()

	first, err := g.GenerateSalesReport(ctx, period, domain.ReportFilters{})
	require.NoError(t, err)
	second, err := g.GenerateSalesReport(ctx, period, domain.ReportFilters{})
	require.NoError(t, err)

	assert.Equal(t, 5, first.Summary.TotalTransactions)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.PaymentMethodBreakdown, second.PaymentMethodBreakdown)
	assert.Equal(t, first.TopProducts, second.TopProducts)
	assert.Equal(t, first, second)
}

func TestGenerateSalesReportFilters(t *testing.T) {
	day := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	g := newGenerator(t, 50,
		makeTx("t1", domain.PaymentCash, "ana", day, line{"Taro Milk Tea", "4.50", 1}),
		makeTx("t2", domain.PaymentCard, "ben", day.Add(time.Minute), line{"Taro Milk Tea", "4.50", 1}),
		makeTx("t3", domain.PaymentCash, "ben", day.Add(2*time.Minute), line{"Taro Milk Tea", "4.50", 1}),
	)

	report, err := g.GenerateSalesReport(context.Background(), domain.DateRange{Start: "2024-05-01", End: "2024-05-02"},
		domain.ReportFilters{CashierID: "ben", PaymentMethod: domain.PaymentCash})
	require.NoError(t, err)
	require.Len(t, report.Transactions, 1)
	assert.Equal(t, "t3", report.Transactions[0].ID)
	assert.Len(t, report.Analytics, 2)
}

func TestGenerateSalesReportEmptyRange(t *testing.T) {
	g := newGenerator(t, 10)

	report, err := g.GenerateSalesReport(context.Background(), domain.DateRange{Start: "2024-05-01", End: "2024-05-01"}, domain.ReportFilters{})
	require.NoError(t, err)
	assert.Zero(t, report.Summary.TotalTransactions)
	assert.True(t, report.Summary.AverageOrderValue.IsZero())
	assert.Empty(t, report.TopProducts)
	assert.NotNil(t, report.Transactions)
}

func TestGenerateSalesReportRejectsInvertedRange(t *testing.T) {
	g := newGenerator(t, 10)
	_, err := g.GenerateSalesReport(context.Background(), domain.DateRange{Start: "2024-05-02", End: "2024-05-01"}, domain.ReportFilters{})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

type failingReader struct{ err error }

func (f failingReader) ListTransactions(context.Context, domain.TransactionQuery) (domain.TransactionPage, error) {
	return domain.TransactionPage{}, f.err
}

type emptyRange struct{}

func (emptyRange) GetRange(context.Context, string, string) ([]domain.DailyAnalytics, error) {
	return nil, nil
}

func TestGenerateSalesReportAbortsOnQueryFailure(t *testing.T) {
	boom := fmt.Errorf("%w: timeout", store.ErrPersistence)
	g := NewGenerator(failingReader{err: boom}, emptyRange{}, time.UTC, 10, nil)

	report, err := g.GenerateSalesReport(context.Background(), domain.DateRange{Start: "2024-05-01", End: "2024-05-01"}, domain.ReportFilters{})
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, store.ErrPersistence))
}

func TestSummarizeTopProductsStableAndCapped(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	txs := make([]domain.Transaction, 0, 12)
	for i := 0; i < 12; i++ {
		txs = append(txs, makeTx(fmt.Sprintf("t%d", i), domain.PaymentCash, "ana", at, line{fmt.Sprintf("Item %02d", i), "3.00", 1}))
	}
	txs = append(txs, makeTx("big", domain.PaymentCash, "ana", at, line{"Item 11", "3.00", 1}))

	report := Summarize(txs)
	require.Len(t, report.TopProducts, 10)
	assert.Equal(t, "Item 11", report.TopProducts[0].Name)
	for i := 1; i < 10; i++ {
		assert.Equal(t, fmt.Sprintf("Item %02d", i-1), report.TopProducts[i].Name)
	}

	again := Summarize(txs)
	assert.Equal(t, report.TopProducts, again.TopProducts)
}
