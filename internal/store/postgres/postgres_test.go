package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafepos/internal/domain"
	"cafepos/internal/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

var transactionRowColumns = []string{
	"id", "schema_version", "receipt_number", "items", "subtotal", "tax", "total", "tax_rate",
	"payment_method", "cashier_id", "status", "refund_reason", "created_at", "updated_at",
}

func addTransactionRow(rows *sqlmock.Rows, id string, at time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id, 1, "RCP-20240501-000001",
		[]byte(`[{"product_id":"prd-taro-milk-tea","name":"Taro Milk Tea","price":"4.5","quantity":1,"line_subtotal":"4.5"}]`),
		"4.50", "0.36", "4.86", "0.08",
		"cash", "cashier", "completed", "", at, at,
	)
}

func TestIncrementStockReturnsClampedLevel(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SET stock = GREATEST(stock + $2, 0)`)).
		WithArgs("prd-taro-milk-tea", -5).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(0))

	stock, err := s.IncrementStock(context.Background(), "prd-taro-milk-tea", -5)
	require.NoError(t, err)
	assert.Equal(t, 0, stock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementStockMissingProduct(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE products`)).
		WithArgs("prd-missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}))

	_, err := s.IncrementStock(context.Background(), "prd-missing", 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementStockDriverFailure(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE products`)).
		WithArgs("prd-a", 1).
		WillReturnError(boom)

	_, err := s.IncrementStock(context.Background(), "prd-a", 1)
	assert.ErrorIs(t, err, store.ErrPersistence)
	assert.ErrorIs(t, err, boom)
}

func TestApplyStockDeltasRollsBackOnMissingProduct(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE products`)).
		WithArgs("prd-a", -2).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE products`)).
		WithArgs("prd-missing", -1).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}))
	mock.ExpectRollback()

	_, err := s.ApplyStockDeltas(context.Background(), []domain.StockDelta{
		{ProductID: "prd-a", Delta: -2},
		{ProductID: "prd-missing", Delta: -1},
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyStockDeltasCommits(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE products`)).
		WithArgs("prd-a", -2).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE products`)).
		WithArgs("prd-b", 4).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(12))
	mock.ExpectCommit()

	levels, err := s.ApplyStockDeltas(context.Background(), []domain.StockDelta{
		{ProductID: "prd-a", Delta: -2},
		{ProductID: "prd-b", Delta: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.StockLevel{{ProductID: "prd-a", Stock: 3}, {ProductID: "prd-b", Stock: 12}}, levels)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTransactionMapsUniqueViolationToConflict(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO transactions`)).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := s.CreateTransaction(context.Background(), domain.Transaction{
		ID:            "tx-1",
		SchemaVersion: domain.TransactionSchemaVersion,
		ReceiptNumber: "RCP-20240501-000001",
		Items:         []domain.LineItem{{ProductID: "prd-a", Name: "A", Price: decimal.NewFromInt(1), Quantity: 1, LineSubtotal: decimal.NewFromInt(1)}},
		PaymentMethod: domain.PaymentCash,
		Status:        domain.TxStatusCompleted,
		CreatedAt:     at,
		UpdatedAt:     at,
	})
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTransactionDecodesRow(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM transactions WHERE id = $1`)).
		WithArgs("tx-1").
		WillReturnRows(addTransactionRow(sqlmock.NewRows(transactionRowColumns), "tx-1", at))

	tx, err := s.GetTransaction(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "4.86", tx.Total.StringFixed(2))
	require.Len(t, tx.Items, 1)
	assert.Equal(t, "Taro Milk Tea", tx.Items[0].Name)
	assert.Equal(t, domain.PaymentCash, tx.PaymentMethod)
}

func TestGetTransactionRejectsUnknownSchemaVersion(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Now().UTC()

	rows := sqlmock.NewRows(transactionRowColumns).AddRow(
		"tx-1", 99, "RCP-1", []byte(`[{"product_id":"p","quantity":1}]`),
		"1", "0", "1", "0", "cash", "cashier", "completed", "", at, at,
	)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM transactions WHERE id = $1`)).
		WithArgs("tx-1").
		WillReturnRows(rows)

	_, err := s.GetTransaction(context.Background(), "tx-1")
	assert.ErrorIs(t, err, store.ErrPersistence)
	assert.ErrorIs(t, err, domain.ErrInvalidDocument)
}

func TestListTransactionsUsesKeysetAndReportsMore(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	after := &domain.PageCursor{CreatedAt: at.Add(time.Hour), ID: "tx-9"}

	rows := sqlmock.NewRows(transactionRowColumns)
	addTransactionRow(rows, "tx-3", at.Add(2*time.Minute))
	addTransactionRow(rows, "tx-2", at.Add(time.Minute))
	addTransactionRow(rows, "tx-1", at)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE payment_method = $1 AND (created_at, id) < ($2, $3) ORDER BY created_at DESC, id DESC LIMIT $4`)).
		WithArgs("cash", after.CreatedAt, after.ID, 3).
		WillReturnRows(rows)

	page, err := s.ListTransactions(context.Background(), domain.TransactionQuery{
		PaymentMethod: domain.PaymentCash,
		Limit:         2,
		After:         after,
	})
	require.NoError(t, err)
	require.Len(t, page.Transactions, 2)
	assert.True(t, page.HasMore)
	require.NotNil(t, page.Next)
	assert.Equal(t, "tx-2", page.Next.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionTransactionReportsConflict(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE transactions`)).
		WithArgs("tx-1", "completed", "refunded", "wrong order", at).
		WillReturnRows(sqlmock.NewRows(transactionRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM transactions`)).
		WithArgs("tx-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("refunded"))

	_, err := s.TransitionTransaction(context.Background(), "tx-1", domain.TxStatusCompleted, domain.TxStatusRefunded, "wrong order", at)
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementDailyAnalyticsRunsInOneTransaction(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO daily_analytics`)).
		WithArgs("2024-05-01", sqlmock.AnyArg(), 1, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO analytics_payment_methods`)).
		WithArgs("2024-05-01", "cash", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO analytics_peak_hours`)).
		WithArgs("2024-05-01", 9, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO analytics_top_products`)).
		WithArgs("2024-05-01", "Taro Milk Tea", 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.IncrementDailyAnalytics(context.Background(), domain.DailyIncrement{
		Date:          "2024-05-01",
		Sales:         decimal.RequireFromString("9.72"),
		Transactions:  1,
		PaymentMethod: domain.PaymentCash,
		Hour:          9,
		At:            at,
		Products:      []domain.ProductIncrement{{Name: "Taro Milk Tea", Quantity: 2, Revenue: decimal.RequireFromString("9.00")}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDailyAnalyticsAssemblesBreakdowns(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM daily_analytics`)).
		WithArgs("2024-05-01", "2024-05-02").
		WillReturnRows(sqlmock.NewRows([]string{"day", "total_sales", "transaction_count", "updated_at"}).
			AddRow("2024-05-01", "350", 2, at))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM analytics_payment_methods`)).
		WithArgs("2024-05-01", "2024-05-02").
		WillReturnRows(sqlmock.NewRows([]string{"day", "payment_method", "total"}).
			AddRow("2024-05-01", "cash", "100").
			AddRow("2024-05-01", "mobile-money", "250"))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM analytics_peak_hours`)).
		WithArgs("2024-05-01", "2024-05-02").
		WillReturnRows(sqlmock.NewRows([]string{"day", "hour", "tx_count"}).AddRow("2024-05-01", 9, 2))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM analytics_top_products`)).
		WithArgs("2024-05-01", "2024-05-02").
		WillReturnRows(sqlmock.NewRows([]string{"day", "product_name", "quantity", "revenue"}).
			AddRow("2024-05-01", "Taro Milk Tea", 3, "13.50"))

	docs, err := s.ListDailyAnalytics(context.Background(), "2024-05-01", "2024-05-02")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "350", docs[0].TotalSales.String())
	assert.Equal(t, "250", docs[0].PaymentMethods[domain.PaymentMobileMoney].String())
	assert.Equal(t, int64(2), docs[0].PeakHours[9])
	assert.Equal(t, int64(3), docs[0].TopProducts["Taro Milk Tea"].Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDailyAnalyticsMissingDay(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM daily_analytics`)).
		WithArgs("2024-05-03", "2024-05-03").
		WillReturnRows(sqlmock.NewRows([]string{"day", "total_sales", "transaction_count", "updated_at"}))

	_, err := s.GetDailyAnalytics(context.Background(), "2024-05-03")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestNextSequenceUpserts(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO sequences`)).
		WithArgs("receipt:20240501").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(42))

	value, err := s.NextSequence(context.Background(), "receipt:20240501")
	require.NoError(t, err)
	assert.Equal(t, int64(42), value)
}

func TestDeleteSavedReportMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM saved_reports`)).
		WithArgs("rpt-404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.DeleteSavedReport(context.Background(), "rpt-404"), store.ErrNotFound)
}

func TestGetProductNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM products WHERE id = $1`)).
		WithArgs("prd-404").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetProduct(context.Background(), "prd-404")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
