package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

// DateLayout is the calendar day format used for analytics keys and report ranges.
const DateLayout = "2006-01-02"

// TransactionSchemaVersion is bumped whenever the persisted transaction shape changes.
const TransactionSchemaVersion = 1

var ErrInvalidDocument = errors.New("invalid document")

type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "cash"
	PaymentMobileMoney PaymentMethod = "mobile-money"
	PaymentCard        PaymentMethod = "card"
)

var PaymentMethods = []PaymentMethod{PaymentCash, PaymentMobileMoney, PaymentCard}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentMobileMoney, PaymentCard:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TxStatusPending   TransactionStatus = "pending"
	TxStatusCompleted TransactionStatus = "completed"
	TxStatusFailed    TransactionStatus = "failed"
	TxStatusRefunded  TransactionStatus = "refunded"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TxStatusPending, TxStatusCompleted, TxStatusFailed, TxStatusRefunded:
		return true
	}
	return false
}

type StockDirection string

const (
	StockIncrement StockDirection = "increment"
	StockDecrement StockDirection = "decrement"
)

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (p Product) Validate() error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return fmt.Errorf("%w: product id missing", ErrInvalidDocument)
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: product %s name missing", ErrInvalidDocument, p.ID)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: product %s price negative", ErrInvalidDocument, p.ID)
	case p.Stock < 0:
		return fmt.Errorf("%w: product %s stock negative", ErrInvalidDocument, p.ID)
	}
	return nil
}

type ProductFilter struct {
	Category        string
	IncludeInactive bool
}

type ProductCreateRequest struct {
	Name         string          `json:"name" validate:"required,max=120"`
	Category     string          `json:"category" validate:"required,max=60"`
	Price        decimal.Decimal `json:"price"`
	InitialStock int             `json:"initial_stock" validate:"gte=0"`
}

type ProductUpdateRequest struct {
	Name     *string          `json:"name,omitempty" validate:"omitempty,max=120"`
	Category *string          `json:"category,omitempty" validate:"omitempty,max=60"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	IsActive *bool            `json:"is_active,omitempty"`
}

type StockAdjustment struct {
	ProductID string         `json:"product_id" validate:"required"`
	Quantity  int            `json:"quantity" validate:"gt=0"`
	Direction StockDirection `json:"direction,omitempty" validate:"omitempty,oneof=increment decrement"`
}

// StockDelta is a signed change applied by the store's atomic clamped increment.
type StockDelta struct {
	ProductID string
	Delta     int
}

type StockLevel struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
}

type LineItem struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	LineSubtotal decimal.Decimal `json:"line_subtotal"`
}

// MaxLineQuantity bounds one cart line, after duplicate lines are merged.
const MaxLineQuantity = 10000

type CartLine struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0,max=10000"`
}

type CheckoutRequest struct {
	Items         []CartLine    `json:"items" validate:"required,min=1,dive"`
	PaymentMethod PaymentMethod `json:"payment_method" validate:"required,oneof=cash mobile-money card"`
}

type Transaction struct {
	ID            string            `json:"id"`
	SchemaVersion int               `json:"schema_version"`
	ReceiptNumber string            `json:"receipt_number"`
	Items         []LineItem        `json:"items"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	Tax           decimal.Decimal   `json:"tax"`
	Total         decimal.Decimal   `json:"total"`
	TaxRate       decimal.Decimal   `json:"tax_rate"`
	PaymentMethod PaymentMethod     `json:"payment_method"`
	CashierID     string            `json:"cashier_id"`
	Status        TransactionStatus `json:"status"`
	RefundReason  string            `json:"refund_reason,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func (t Transaction) Validate() error {
	switch {
	case strings.TrimSpace(t.ID) == "":
		return fmt.Errorf("%w: transaction id missing", ErrInvalidDocument)
	case t.SchemaVersion < 1 || t.SchemaVersion > TransactionSchemaVersion:
		return fmt.Errorf("%w: transaction %s has unsupported schema version %d", ErrInvalidDocument, t.ID, t.SchemaVersion)
	case strings.TrimSpace(t.ReceiptNumber) == "":
		return fmt.Errorf("%w: transaction %s receipt number missing", ErrInvalidDocument, t.ID)
	case len(t.Items) == 0:
		return fmt.Errorf("%w: transaction %s has no items", ErrInvalidDocument, t.ID)
	case !t.PaymentMethod.Valid():
		return fmt.Errorf("%w: transaction %s payment method %q", ErrInvalidDocument, t.ID, t.PaymentMethod)
	case !t.Status.Valid():
		return fmt.Errorf("%w: transaction %s status %q", ErrInvalidDocument, t.ID, t.Status)
	case t.CreatedAt.IsZero():
		return fmt.Errorf("%w: transaction %s created_at missing", ErrInvalidDocument, t.ID)
	}
	for _, item := range t.Items {
		if item.ProductID == "" || item.Quantity < 1 {
			return fmt.Errorf("%w: transaction %s has malformed line item", ErrInvalidDocument, t.ID)
		}
	}
	return nil
}

type SideEffectWarning struct {
	Component     string `json:"component"`
	TransactionID string `json:"transaction_id"`
	Message       string `json:"message"`
}

type RecordResult struct {
	Transaction Transaction         `json:"transaction"`
	Warnings    []SideEffectWarning `json:"warnings,omitempty"`
}

func (r RecordResult) Degraded() bool {
	return len(r.Warnings) > 0
}

type RefundRequest struct {
	Reason     string `json:"reason" validate:"required,max=240"`
	ManagerPIN string `json:"manager_pin"`
}

type PageCursor struct {
	CreatedAt time.Time
	ID        string
}

type TransactionQuery struct {
	Start         time.Time
	End           time.Time
	CashierID     string
	PaymentMethod PaymentMethod
	Status        TransactionStatus
	Limit         int
	After         *PageCursor
}

type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	NextCursor   string        `json:"next_cursor,omitempty"`
	HasMore      bool          `json:"has_more"`
	Next         *PageCursor   `json:"-"`
}

type ProductTally struct {
	Quantity int64           `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type DailyAnalytics struct {
	Date             string                            `json:"date"`
	TotalSales       decimal.Decimal                   `json:"total_sales"`
	TransactionCount int64                             `json:"transaction_count"`
	PaymentMethods   map[PaymentMethod]decimal.Decimal `json:"payment_methods"`
	PeakHours        map[int]int64                     `json:"peak_hours"`
	TopProducts      map[string]ProductTally           `json:"top_products"`
	UpdatedAt        time.Time                         `json:"updated_at"`
}

func AnalyticsKey(date string) string {
	return "daily-" + date
}

func NewDailyAnalytics(date string) DailyAnalytics {
	return DailyAnalytics{
		Date:           date,
		TotalSales:     decimal.Zero,
		PaymentMethods: map[PaymentMethod]decimal.Decimal{},
		PeakHours:      map[int]int64{},
		TopProducts:    map[string]ProductTally{},
	}
}

func (d DailyAnalytics) Validate() error {
	if _, err := time.Parse(DateLayout, d.Date); err != nil {
		return fmt.Errorf("%w: analytics date %q", ErrInvalidDocument, d.Date)
	}
	if d.TransactionCount < 0 {
		return fmt.Errorf("%w: analytics %s transaction count negative", ErrInvalidDocument, d.Date)
	}
	for hour := range d.PeakHours {
		if hour < 0 || hour > 23 {
			return fmt.Errorf("%w: analytics %s peak hour %d", ErrInvalidDocument, d.Date, hour)
		}
	}
	return nil
}

type ProductIncrement struct {
	Name     string
	Quantity int64
	Revenue  decimal.Decimal
}

// DailyIncrement carries one signed create-or-increment against a day's rollup.
type DailyIncrement struct {
	Date          string
	Sales         decimal.Decimal
	Transactions  int64
	PaymentMethod PaymentMethod
	Hour          int
	Products      []ProductIncrement
	At            time.Time
}

type KPISet struct {
	AsOf              string          `json:"as_of"`
	TodaySales        decimal.Decimal `json:"today_sales"`
	YesterdaySales    decimal.Decimal `json:"yesterday_sales"`
	MonthSales        decimal.Decimal `json:"month_sales"`
	MonthTransactions int64           `json:"month_transactions"`
	SalesGrowth       decimal.Decimal `json:"sales_growth"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

type ReportFilters struct {
	CashierID     string            `json:"cashier_id,omitempty"`
	PaymentMethod PaymentMethod     `json:"payment_method,omitempty" validate:"omitempty,oneof=cash mobile-money card"`
	Status        TransactionStatus `json:"status,omitempty" validate:"omitempty,oneof=pending completed failed refunded"`
}

func (f ReportFilters) AsMap() map[string]string {
	out := map[string]string{}
	if f.CashierID != "" {
		out["cashier_id"] = f.CashierID
	}
	if f.PaymentMethod != "" {
		out["payment_method"] = string(f.PaymentMethod)
	}
	if f.Status != "" {
		out["status"] = string(f.Status)
	}
	return out
}

type DateRange struct {
	Start string `json:"start" validate:"required,datetime=2006-01-02"`
	End   string `json:"end" validate:"required,datetime=2006-01-02"`
}

type ReportSummary struct {
	TotalSales        decimal.Decimal `json:"total_sales"`
	TotalTransactions int             `json:"total_transactions"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

type ProductPerformance struct {
	Name     string          `json:"name"`
	Quantity int64           `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type SalesReport struct {
	Period                 DateRange                         `json:"period"`
	Filters                ReportFilters                     `json:"filters"`
	Summary                ReportSummary                     `json:"summary"`
	PaymentMethodBreakdown map[PaymentMethod]decimal.Decimal `json:"payment_method_breakdown"`
	TopProducts            []ProductPerformance              `json:"top_products"`
	Transactions           []Transaction                     `json:"transactions"`
	Analytics              []DailyAnalytics                  `json:"analytics"`
}

type SavedReport struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	DateRange   DateRange         `json:"date_range"`
	Filters     map[string]string `json:"filters"`
	Data        *SalesReport      `json:"data"`
	CreatedBy   string            `json:"created_by"`
	CreatedAt   time.Time         `json:"created_at"`
}

func (r SavedReport) Validate() error {
	switch {
	case strings.TrimSpace(r.ID) == "":
		return fmt.Errorf("%w: report id missing", ErrInvalidDocument)
	case strings.TrimSpace(r.Name) == "":
		return fmt.Errorf("%w: report %s name missing", ErrInvalidDocument, r.ID)
	case r.Data == nil:
		return fmt.Errorf("%w: report %s snapshot missing", ErrInvalidDocument, r.ID)
	case r.CreatedAt.IsZero():
		return fmt.Errorf("%w: report %s created_at missing", ErrInvalidDocument, r.ID)
	}
	return nil
}

type SaveReportRequest struct {
	Name        string        `json:"name" validate:"required,max=120"`
	Description string        `json:"description" validate:"max=500"`
	DateRange   DateRange     `json:"date_range" validate:"required"`
	Filters     ReportFilters `json:"filters"`
	Data        *SalesReport  `json:"data,omitempty" validate:"-"`
}

type ReceiptNumberResponse struct {
	ReceiptNumber string `json:"receipt_number"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

// Actor is the authenticated caller; Username doubles as the cashier id on sales.
type Actor struct {
	Username string
	Role     string
}

type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type ComponentStatus struct {
	Name          string     `json:"name"`
	Healthy       bool       `json:"healthy"`
	LatencyMS     int64      `json:"latency_ms,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	FailureCount  int64      `json:"failure_count"`
}

type IntegrationStatus struct {
	Healthy    bool              `json:"healthy"`
	CheckedAt  time.Time         `json:"checked_at"`
	Components []ComponentStatus `json:"components"`
}

type Alert struct {
	ID          string  `json:"id"`
	Code        string  `json:"code"`
	Severity    string  `json:"severity"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	MetricValue float64 `json:"metric_value"`
	Threshold   float64 `json:"threshold"`
	CreatedAt   string  `json:"created_at"`
}

type AlertResponse struct {
	Date   string  `json:"date"`
	Alerts []Alert `json:"alerts"`
}
