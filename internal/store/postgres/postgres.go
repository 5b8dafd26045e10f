package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"cafepos/internal/domain"
	"cafepos/internal/store"
	"cafepos/internal/xid"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an already opened handle.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return store.Persistence("ping", s.db.PingContext(ctx))
}

const productColumns = `id, name, category, price, stock, is_active, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Product{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	if err := p.Validate(); err != nil {
		return domain.Product{}, fmt.Errorf("%w: %w", store.ErrPersistence, err)
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE ($1 OR is_active = true) AND ($2 = '' OR lower(category) = lower($2))
		ORDER BY category, name
	`, filter.IncludeInactive, filter.Category)
	if err != nil {
		return nil, store.Persistence("list products", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 32)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, store.Persistence("scan product", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Persistence("list products", err)
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.Persistence("get product", err)
	}
	return &p, nil
}

func (s *Store) GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, store.Persistence("get products", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, store.Persistence("scan product", err)
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, store.Persistence("get products", err)
	}
	return result, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if err := product.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price, stock, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, product.ID, product.Name, product.Category, product.Price, product.Stock, product.IsActive, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("product %s: %w", product.ID, store.ErrConflict)
		}
		return nil, store.Persistence("create product", err)
	}

	created := product
	return &created, nil
}

// UpdateProduct replaces catalog fields only; the stock column is owned by
// IncrementStock and ApplyStockDeltas.
func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || product.Price.IsNegative() {
		return nil, fmt.Errorf("%w: product %s name or price", store.ErrInvalidInput, product.ID)
	}

	updated, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, price = $4, is_active = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		product.ID, product.Name, product.Category, product.Price, product.IsActive))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.Persistence("update product", err)
	}
	return &updated, nil
}

const incrementStockSQL = `
	UPDATE products
	SET stock = GREATEST(stock + $2, 0), updated_at = now()
	WHERE id = $1
	RETURNING stock
`

func (s *Store) IncrementStock(ctx context.Context, productID string, delta int) (int, error) {
	var stock int
	err := s.db.QueryRowContext(ctx, incrementStockSQL, productID, delta).Scan(&stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("product %s: %w", productID, store.ErrNotFound)
		}
		return 0, store.Persistence("increment stock", err)
	}
	return stock, nil
}

func (s *Store) ApplyStockDeltas(ctx context.Context, deltas []domain.StockDelta) ([]domain.StockLevel, error) {
	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, store.Persistence("begin stock batch", err)
	}
	defer func() { _ = pgTx.Rollback() }()

	levels := make([]domain.StockLevel, 0, len(deltas))
	for _, d := range deltas {
		var stock int
		err := pgTx.QueryRowContext(ctx, incrementStockSQL, d.ProductID, d.Delta).Scan(&stock)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("product %s: %w", d.ProductID, store.ErrNotFound)
			}
			return nil, store.Persistence("stock batch", err)
		}
		levels = append(levels, domain.StockLevel{ProductID: d.ProductID, Stock: stock})
	}

	if err := pgTx.Commit(); err != nil {
		return nil, store.Persistence("commit stock batch", err)
	}
	return levels, nil
}

const transactionColumns = `id, schema_version, receipt_number, items, subtotal, tax, total, tax_rate, payment_method, cashier_id, status, refund_reason, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (*domain.Transaction, error) {
	var (
		tx       domain.Transaction
		rawItems []byte
	)
	if err := row.Scan(
		&tx.ID, &tx.SchemaVersion, &tx.ReceiptNumber, &rawItems,
		&tx.Subtotal, &tx.Tax, &tx.Total, &tx.TaxRate,
		&tx.PaymentMethod, &tx.CashierID, &tx.Status, &tx.RefundReason,
		&tx.CreatedAt, &tx.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rawItems, &tx.Items); err != nil {
		return nil, fmt.Errorf("%w: transaction %s items: %w", store.ErrPersistence, tx.ID, err)
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	tx.UpdatedAt = tx.UpdatedAt.UTC()
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrPersistence, err)
	}
	return &tx, nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidInput, err)
	}
	items, err := json.Marshal(tx.Items)
	if err != nil {
		return nil, fmt.Errorf("%w: encode items: %w", store.ErrInvalidInput, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, tx.ID, tx.SchemaVersion, tx.ReceiptNumber, items,
		tx.Subtotal, tx.Tax, tx.Total, tx.TaxRate,
		string(tx.PaymentMethod), tx.CashierID, string(tx.Status), tx.RefundReason,
		tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("receipt number %s: %w", tx.ReceiptNumber, store.ErrConflict)
		}
		return nil, store.Persistence("create transaction", err)
	}

	created := tx
	return &created, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.Persistence("get transaction", err)
	}
	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, query domain.TransactionQuery) (domain.TransactionPage, error) {
	limit := query.Limit
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	where, args := buildTransactionFilter(query)
	args = append(args, limit+1)
	sqlText := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		sqlText += ` WHERE ` + strings.Join(where, " AND ")
	}
	sqlText += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return domain.TransactionPage{}, store.Persistence("list transactions", err)
	}
	defer rows.Close()

	page := domain.TransactionPage{Transactions: make([]domain.Transaction, 0, limit)}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return domain.TransactionPage{}, store.Persistence("scan transaction", err)
		}
		page.Transactions = append(page.Transactions, *tx)
	}
	if err := rows.Err(); err != nil {
		return domain.TransactionPage{}, store.Persistence("list transactions", err)
	}

	if len(page.Transactions) > limit {
		page.Transactions = page.Transactions[:limit]
		last := page.Transactions[limit-1]
		page.Next = &domain.PageCursor{CreatedAt: last.CreatedAt, ID: last.ID}
		page.HasMore = true
	}
	return page, nil
}

func buildTransactionFilter(q domain.TransactionQuery) ([]string, []any) {
	where := make([]string, 0, 6)
	args := make([]any, 0, 8)
	add := func(clause string, values ...any) {
		for _, v := range values {
			args = append(args, v)
			clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(args)), 1)
		}
		where = append(where, clause)
	}

	if !q.Start.IsZero() {
		add("created_at >= ?", q.Start.UTC())
	}
	if !q.End.IsZero() {
		add("created_at < ?", q.End.UTC())
	}
	if q.CashierID != "" {
		add("cashier_id = ?", q.CashierID)
	}
	if q.PaymentMethod != "" {
		add("payment_method = ?", string(q.PaymentMethod))
	}
	if q.Status != "" {
		add("status = ?", string(q.Status))
	}
	if q.After != nil {
		add("(created_at, id) < (?, ?)", q.After.CreatedAt.UTC(), q.After.ID)
	}
	return where, args
}

func (s *Store) TransitionTransaction(ctx context.Context, id string, from domain.TransactionStatus, to domain.TransactionStatus, reason string, at time.Time) (*domain.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, `
		UPDATE transactions
		SET status = $3, refund_reason = $4, updated_at = $5
		WHERE id = $1 AND status = $2
		RETURNING `+transactionColumns,
		id, string(from), string(to), reason, at.UTC()))
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, store.Persistence("transition transaction", err)
	}

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM transactions WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.Persistence("transition transaction", err)
	}
	return nil, fmt.Errorf("transaction %s is %s, not %s: %w", id, current, from, store.ErrConflict)
}

// IncrementDailyAnalytics upserts the day row and its breakdown rows with
// additive ON CONFLICT updates inside one SQL transaction, so concurrent sales
// for the same day commute.
func (s *Store) IncrementDailyAnalytics(ctx context.Context, inc domain.DailyIncrement) error {
	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Persistence("begin analytics", err)
	}
	defer func() { _ = pgTx.Rollback() }()

	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO daily_analytics (day, total_sales, transaction_count, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (day) DO UPDATE
		SET total_sales = daily_analytics.total_sales + EXCLUDED.total_sales,
		    transaction_count = daily_analytics.transaction_count + EXCLUDED.transaction_count,
		    updated_at = GREATEST(daily_analytics.updated_at, EXCLUDED.updated_at)
	`, inc.Date, inc.Sales, inc.Transactions, inc.At.UTC()); err != nil {
		return store.Persistence("upsert daily analytics", err)
	}

	if inc.PaymentMethod != "" {
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO analytics_payment_methods (day, payment_method, total)
			VALUES ($1, $2, $3)
			ON CONFLICT (day, payment_method) DO UPDATE
			SET total = analytics_payment_methods.total + EXCLUDED.total
		`, inc.Date, string(inc.PaymentMethod), inc.Sales); err != nil {
			return store.Persistence("upsert payment method analytics", err)
		}
	}

	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO analytics_peak_hours (day, hour, tx_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (day, hour) DO UPDATE
		SET tx_count = analytics_peak_hours.tx_count + EXCLUDED.tx_count
	`, inc.Date, inc.Hour, inc.Transactions); err != nil {
		return store.Persistence("upsert peak hour analytics", err)
	}

	for _, p := range inc.Products {
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO analytics_top_products (day, product_name, quantity, revenue)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (day, product_name) DO UPDATE
			SET quantity = analytics_top_products.quantity + EXCLUDED.quantity,
			    revenue = analytics_top_products.revenue + EXCLUDED.revenue
		`, inc.Date, p.Name, p.Quantity, p.Revenue); err != nil {
			return store.Persistence("upsert product analytics", err)
		}
	}

	if err := pgTx.Commit(); err != nil {
		return store.Persistence("commit analytics", err)
	}
	return nil
}

func (s *Store) GetDailyAnalytics(ctx context.Context, date string) (*domain.DailyAnalytics, error) {
	docs, err := s.ListDailyAnalytics(ctx, date, date)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, store.ErrNotFound
	}
	return &docs[0], nil
}

func (s *Store) ListDailyAnalytics(ctx context.Context, start string, end string) ([]domain.DailyAnalytics, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, total_sales, transaction_count, updated_at
		FROM daily_analytics
		WHERE day BETWEEN $1 AND $2
		ORDER BY day
	`, start, end)
	if err != nil {
		return nil, store.Persistence("list daily analytics", err)
	}
	docs := make([]domain.DailyAnalytics, 0, 32)
	index := make(map[string]int, 32)
	for rows.Next() {
		doc := domain.NewDailyAnalytics("")
		if err := rows.Scan(&doc.Date, &doc.TotalSales, &doc.TransactionCount, &doc.UpdatedAt); err != nil {
			_ = rows.Close()
			return nil, store.Persistence("scan daily analytics", err)
		}
		doc.UpdatedAt = doc.UpdatedAt.UTC()
		index[doc.Date] = len(docs)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, store.Persistence("list daily analytics", err)
	}
	_ = rows.Close()
	if len(docs) == 0 {
		return docs, nil
	}

	if err := s.eachRow(ctx, `
		SELECT day, payment_method, total FROM analytics_payment_methods WHERE day BETWEEN $1 AND $2
	`, []any{start, end}, func(scan func(...any) error) error {
		var (
			day    string
			method string
			total  decimal.Decimal
		)
		if err := scan(&day, &method, &total); err != nil {
			return err
		}
		if i, ok := index[day]; ok {
			docs[i].PaymentMethods[domain.PaymentMethod(method)] = total
		}
		return nil
	}); err != nil {
		return nil, store.Persistence("list payment method analytics", err)
	}

	if err := s.eachRow(ctx, `
		SELECT day, hour, tx_count FROM analytics_peak_hours WHERE day BETWEEN $1 AND $2
	`, []any{start, end}, func(scan func(...any) error) error {
		var (
			day   string
			hour  int
			count int64
		)
		if err := scan(&day, &hour, &count); err != nil {
			return err
		}
		if i, ok := index[day]; ok {
			docs[i].PeakHours[hour] = count
		}
		return nil
	}); err != nil {
		return nil, store.Persistence("list peak hour analytics", err)
	}

	if err := s.eachRow(ctx, `
		SELECT day, product_name, quantity, revenue FROM analytics_top_products WHERE day BETWEEN $1 AND $2
	`, []any{start, end}, func(scan func(...any) error) error {
		var (
			day   string
			name  string
			tally domain.ProductTally
		)
		if err := scan(&day, &name, &tally.Quantity, &tally.Revenue); err != nil {
			return err
		}
		if i, ok := index[day]; ok {
			docs[i].TopProducts[name] = tally
		}
		return nil
	}); err != nil {
		return nil, store.Persistence("list product analytics", err)
	}

	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", store.ErrPersistence, err)
		}
	}
	return docs, nil
}

func (s *Store) eachRow(ctx context.Context, query string, args []any, fn func(scan func(...any) error) error) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows.Scan); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) CreateSavedReport(ctx context.Context, report domain.SavedReport) (*domain.SavedReport, error) {
	if err := report.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidInput, err)
	}
	filters, err := json.Marshal(report.Filters)
	if err != nil {
		return nil, fmt.Errorf("%w: encode filters: %w", store.ErrInvalidInput, err)
	}
	data, err := json.Marshal(report.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: encode report data: %w", store.ErrInvalidInput, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO saved_reports (id, name, description, date_start, date_end, filters, data, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, report.ID, report.Name, report.Description, report.DateRange.Start, report.DateRange.End,
		filters, data, report.CreatedBy, report.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("report %s: %w", report.ID, store.ErrConflict)
		}
		return nil, store.Persistence("create saved report", err)
	}
	created := report
	return &created, nil
}

const savedReportColumns = `id, name, description, date_start, date_end, filters, data, created_by, created_at`

func scanSavedReport(row interface{ Scan(...any) error }) (*domain.SavedReport, error) {
	var (
		r       domain.SavedReport
		filters []byte
		data    []byte
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.DateRange.Start, &r.DateRange.End, &filters, &data, &r.CreatedBy, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(filters, &r.Filters); err != nil {
		return nil, fmt.Errorf("%w: report %s filters: %w", store.ErrPersistence, r.ID, err)
	}
	if err := json.Unmarshal(data, &r.Data); err != nil {
		return nil, fmt.Errorf("%w: report %s data: %w", store.ErrPersistence, r.ID, err)
	}
	r.CreatedAt = r.CreatedAt.UTC()
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrPersistence, err)
	}
	return &r, nil
}

func (s *Store) GetSavedReport(ctx context.Context, id string) (*domain.SavedReport, error) {
	r, err := scanSavedReport(s.db.QueryRowContext(ctx, `SELECT `+savedReportColumns+` FROM saved_reports WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.Persistence("get saved report", err)
	}
	return r, nil
}

func (s *Store) ListSavedReports(ctx context.Context, limit int) ([]domain.SavedReport, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+savedReportColumns+`
		FROM saved_reports
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, store.Persistence("list saved reports", err)
	}
	defer rows.Close()

	reports := make([]domain.SavedReport, 0, 16)
	for rows.Next() {
		r, err := scanSavedReport(rows)
		if err != nil {
			return nil, store.Persistence("scan saved report", err)
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Persistence("list saved reports", err)
	}
	return reports, nil
}

func (s *Store) DeleteSavedReport(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_reports WHERE id = $1`, id)
	if err != nil {
		return store.Persistence("delete saved report", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return store.Persistence("delete saved report", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) NextSequence(ctx context.Context, scope string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sequences (scope, value) VALUES ($1, 1)
		ON CONFLICT (scope) DO UPDATE SET value = sequences.value + 1
		RETURNING value
	`, scope).Scan(&value)
	if err != nil {
		return 0, store.Persistence("next sequence", err)
	}
	return value, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return store.Persistence("create user", err)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, store.Persistence("list users", err)
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, store.Persistence("scan user", err)
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Persistence("list users", err)
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return store.Persistence("update user password", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return store.Persistence("update user password", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SeedProducts inserts products that do not exist yet; used to bootstrap an
// empty database with the starter menu.
func (s *Store) SeedProducts(ctx context.Context, products []domain.Product) (int, error) {
	sorted := make([]domain.Product, len(products))
	copy(sorted, products)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	inserted := 0
	for _, p := range sorted {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO products (id, name, category, price, stock, is_active, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,now(),now())
			ON CONFLICT (id) DO NOTHING
		`, p.ID, p.Name, p.Category, p.Price, p.Stock, p.IsActive)
		if err != nil {
			return inserted, store.Persistence("seed products", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	return inserted, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
