package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"cafepos/internal/domain"
	"cafepos/internal/store"
	"cafepos/internal/xid"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type Store struct {
	mu           sync.RWMutex
	products     map[string]domain.Product
	transactions map[string]*domain.Transaction
	receipts     map[string]string
	analytics    map[string]*domain.DailyAnalytics
	reports      map[string]domain.SavedReport
	sequences    map[string]int64
	users        map[string]domain.UserAccount
}

type SeedCredentials struct {
	AdminPassword   string
	CashierPassword string
}

func New() *Store {
	return &Store{
		products:     make(map[string]domain.Product),
		transactions: make(map[string]*domain.Transaction),
		receipts:     make(map[string]string),
		analytics:    make(map[string]*domain.DailyAnalytics),
		reports:      make(map[string]domain.SavedReport),
		sequences:    make(map[string]int64),
		users:        make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store holding the café's starter menu and one admin and
// one cashier account for dev/demo mode.
func NewSeeded(creds SeedCredentials, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	if creds.AdminPassword == "" || creds.CashierPassword == "" {
		log.Warn("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}
	if creds.AdminPassword == "" {
		creds.AdminPassword = "admin123"
	}
	if creds.CashierPassword == "" {
		creds.CashierPassword = "cashier123"
	}

	s := New()
	now := time.Now().UTC()
	for _, p := range SampleProducts() {
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}

	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", creds.AdminPassword, domain.RoleAdmin},
		{"cashier", creds.CashierPassword, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal("failed to hash seed password", zap.String("username", u.username), zap.Error(err))
		}
		s.users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return s
}

func SampleProducts() []domain.Product {
	return []domain.Product{
		{ID: "prd-taro-milk-tea", Name: "Taro Milk Tea", Category: "Milk Tea", Price: decimal.RequireFromString("4.50"), Stock: 100, IsActive: true},
		{ID: "prd-strawberry-milk-tea", Name: "Strawberry Milk Tea", Category: "Milk Tea", Price: decimal.RequireFromString("4.75"), Stock: 85, IsActive: true},
		{ID: "prd-blueberry-milkshake", Name: "Blueberry Milkshake", Category: "Milkshake", Price: decimal.RequireFromString("5.25"), Stock: 60, IsActive: true},
		{ID: "prd-classic-bubble-tea", Name: "Classic Bubble Tea", Category: "Bubble Tea", Price: decimal.RequireFromString("4.00"), Stock: 120, IsActive: true},
		{ID: "prd-mango-smoothie", Name: "Mango Smoothie", Category: "Smoothie", Price: decimal.RequireFromString("4.95"), Stock: 75, IsActive: true},
		{ID: "prd-green-tea-latte", Name: "Green Tea Latte", Category: "Tea", Price: decimal.RequireFromString("4.25"), Stock: 90, IsActive: true},
		{ID: "prd-chocolate-milkshake", Name: "Chocolate Milkshake", Category: "Milkshake", Price: decimal.RequireFromString("4.75"), Stock: 65, IsActive: true},
		{ID: "prd-passion-fruit-tea", Name: "Passion Fruit Tea", Category: "Fruit Tea", Price: decimal.RequireFromString("4.50"), Stock: 80, IsActive: true},
	}
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) ListProducts(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.IsActive && !filter.IncludeInactive {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(p.Category, filter.Category) {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmp.Compare(a.Name, b.Name)
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) GetProducts(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if err := product.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidInput, err)
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrConflict
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	s.products[product.ID] = product
	created := product
	return &created, nil
}

// UpdateProduct replaces catalog fields only; stock moves exclusively through
// IncrementStock and ApplyStockDeltas.
func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	product.Stock = existing.Stock
	product.CreatedAt = existing.CreatedAt
	if err := product.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidInput, err)
	}
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) IncrementStock(_ context.Context, productID string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.applyDeltaLocked(productID, delta)
}

func (s *Store) ApplyStockDeltas(_ context.Context, deltas []domain.StockDelta) ([]domain.StockLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range deltas {
		if _, ok := s.products[d.ProductID]; !ok {
			return nil, fmt.Errorf("product %s: %w", d.ProductID, store.ErrNotFound)
		}
	}

	levels := make([]domain.StockLevel, 0, len(deltas))
	for _, d := range deltas {
		stock, err := s.applyDeltaLocked(d.ProductID, d.Delta)
		if err != nil {
			return nil, err
		}
		levels = append(levels, domain.StockLevel{ProductID: d.ProductID, Stock: stock})
	}
	return levels, nil
}

func (s *Store) applyDeltaLocked(productID string, delta int) (int, error) {
	product, ok := s.products[productID]
	if !ok {
		return 0, fmt.Errorf("product %s: %w", productID, store.ErrNotFound)
	}
	product.Stock = max(0, product.Stock+delta)
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
	return product.Stock, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidInput, err)
	}
	if _, exists := s.transactions[tx.ID]; exists {
		return nil, fmt.Errorf("transaction %s: %w", tx.ID, store.ErrConflict)
	}
	if _, exists := s.receipts[tx.ReceiptNumber]; exists {
		return nil, fmt.Errorf("receipt number %s: %w", tx.ReceiptNumber, store.ErrConflict)
	}

	stored := cloneTransaction(&tx)
	s.transactions[tx.ID] = stored
	s.receipts[tx.ReceiptNumber] = tx.ID
	return cloneTransaction(stored), nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, query domain.TransactionQuery) (domain.TransactionPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := query.Limit
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	matched := make([]*domain.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		if !matchesQuery(tx, query) {
			continue
		}
		matched = append(matched, tx)
	}
	slices.SortFunc(matched, compareNewestFirst)

	page := domain.TransactionPage{Transactions: make([]domain.Transaction, 0, min(limit, len(matched)))}
	for _, tx := range matched {
		if len(page.Transactions) == limit {
			last := page.Transactions[len(page.Transactions)-1]
			page.Next = &domain.PageCursor{CreatedAt: last.CreatedAt, ID: last.ID}
			page.HasMore = true
			break
		}
		page.Transactions = append(page.Transactions, *cloneTransaction(tx))
	}
	return page, nil
}

func (s *Store) TransitionTransaction(_ context.Context, id string, from domain.TransactionStatus, to domain.TransactionStatus, reason string, at time.Time) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if tx.Status != from {
		return nil, fmt.Errorf("transaction %s is %s, not %s: %w", id, tx.Status, from, store.ErrConflict)
	}
	tx.Status = to
	tx.RefundReason = reason
	tx.UpdatedAt = at.UTC()
	return cloneTransaction(tx), nil
}

func (s *Store) IncrementDailyAnalytics(_ context.Context, inc domain.DailyIncrement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.AnalyticsKey(inc.Date)
	doc, ok := s.analytics[key]
	if !ok {
		fresh := domain.NewDailyAnalytics(inc.Date)
		doc = &fresh
		s.analytics[key] = doc
	}

	doc.TotalSales = doc.TotalSales.Add(inc.Sales)
	doc.TransactionCount += inc.Transactions
	if inc.PaymentMethod != "" {
		doc.PaymentMethods[inc.PaymentMethod] = doc.PaymentMethods[inc.PaymentMethod].Add(inc.Sales)
	}
	doc.PeakHours[inc.Hour] += inc.Transactions
	for _, p := range inc.Products {
		tally := doc.TopProducts[p.Name]
		tally.Quantity += p.Quantity
		tally.Revenue = tally.Revenue.Add(p.Revenue)
		doc.TopProducts[p.Name] = tally
	}
	doc.UpdatedAt = inc.At.UTC()
	return nil
}

func (s *Store) GetDailyAnalytics(_ context.Context, date string) (*domain.DailyAnalytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.analytics[domain.AnalyticsKey(date)]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneAnalytics(doc)
	return &out, nil
}

func (s *Store) ListDailyAnalytics(_ context.Context, start string, end string) ([]domain.DailyAnalytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.DailyAnalytics, 0, 32)
	for _, doc := range s.analytics {
		if doc.Date < start || doc.Date > end {
			continue
		}
		out = append(out, cloneAnalytics(doc))
	}
	slices.SortFunc(out, func(a, b domain.DailyAnalytics) int {
		return cmp.Compare(a.Date, b.Date)
	})
	return out, nil
}

func (s *Store) CreateSavedReport(_ context.Context, report domain.SavedReport) (*domain.SavedReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := report.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidInput, err)
	}
	if _, exists := s.reports[report.ID]; exists {
		return nil, store.ErrConflict
	}
	s.reports[report.ID] = report
	created := report
	return &created, nil
}

func (s *Store) GetSavedReport(_ context.Context, id string) (*domain.SavedReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.reports[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &report, nil
}

func (s *Store) ListSavedReports(_ context.Context, limit int) ([]domain.SavedReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := make([]domain.SavedReport, 0, len(s.reports))
	for _, r := range s.reports {
		reports = append(reports, r)
	}
	slices.SortFunc(reports, func(a, b domain.SavedReport) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

func (s *Store) DeleteSavedReport(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.reports, id)
	return nil
}

func (s *Store) NextSequence(_ context.Context, scope string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequences[scope]++
	return s.sequences[scope], nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.users[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.users[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmp.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.users[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.users[username] = user
	return nil
}

func matchesQuery(tx *domain.Transaction, q domain.TransactionQuery) bool {
	if !q.Start.IsZero() && tx.CreatedAt.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && !tx.CreatedAt.Before(q.End) {
		return false
	}
	if q.CashierID != "" && tx.CashierID != q.CashierID {
		return false
	}
	if q.PaymentMethod != "" && tx.PaymentMethod != q.PaymentMethod {
		return false
	}
	if q.Status != "" && tx.Status != q.Status {
		return false
	}
	if q.After != nil {
		// Keyset: only rows strictly older than the cursor in (created_at, id) order.
		if c := tx.CreatedAt.Compare(q.After.CreatedAt); c > 0 || (c == 0 && tx.ID >= q.After.ID) {
			return false
		}
	}
	return true
}

func compareNewestFirst(a, b *domain.Transaction) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

func cloneTransaction(src *domain.Transaction) *domain.Transaction {
	if src == nil {
		return nil
	}
	dup := *src
	dup.Items = slices.Clone(src.Items)
	return &dup
}

func cloneAnalytics(src *domain.DailyAnalytics) domain.DailyAnalytics {
	dup := *src
	dup.PaymentMethods = make(map[domain.PaymentMethod]decimal.Decimal, len(src.PaymentMethods))
	for k, v := range src.PaymentMethods {
		dup.PaymentMethods[k] = v
	}
	dup.PeakHours = make(map[int]int64, len(src.PeakHours))
	for k, v := range src.PeakHours {
		dup.PeakHours[k] = v
	}
	dup.TopProducts = make(map[string]domain.ProductTally, len(src.TopProducts))
	for k, v := range src.TopProducts {
		dup.TopProducts[k] = v
	}
	return dup
}
