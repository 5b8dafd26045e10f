package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cafepos/internal/domain"
	"cafepos/internal/store"
)

const topProductLimit = 10

type TransactionReader interface {
	ListTransactions(ctx context.Context, query domain.TransactionQuery) (domain.TransactionPage, error)
}

type RangeReader interface {
	GetRange(ctx context.Context, start string, end string) ([]domain.DailyAnalytics, error)
}

type Generator struct {
	transactions TransactionReader
	analytics    RangeReader
	loc          *time.Location
	pageSize     int
	log          *zap.Logger
}

func NewGenerator(transactions TransactionReader, analytics RangeReader, loc *time.Location, pageSize int, log *zap.Logger) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	if pageSize < 1 {
		pageSize = 200
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		transactions: transactions,
		analytics:    analytics,
		loc:          loc,
		pageSize:     pageSize,
		log:          log,
	}
}

// GenerateSalesReport reads every matching transaction in the inclusive
// business-day range together with the day rollups. Any read failure aborts
// the whole report.
func (g *Generator) GenerateSalesReport(ctx context.Context, period domain.DateRange, filters domain.ReportFilters) (*domain.SalesReport, error) {
	startDay, err := time.ParseInLocation(domain.DateLayout, period.Start, g.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: start date %q", store.ErrInvalidInput, period.Start)
	}
	endDay, err := time.ParseInLocation(domain.DateLayout, period.End, g.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: end date %q", store.ErrInvalidInput, period.End)
	}
	if startDay.After(endDay) {
		return nil, fmt.Errorf("%w: start %s is after end %s", store.ErrInvalidInput, period.Start, period.End)
	}
	if filters.PaymentMethod != "" && !filters.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: payment method %q", store.ErrInvalidInput, filters.PaymentMethod)
	}
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", store.ErrInvalidInput, filters.Status)
	}

	query := domain.TransactionQuery{
		Start:         startDay,
		End:           endDay.AddDate(0, 0, 1),
		CashierID:     filters.CashierID,
		PaymentMethod: filters.PaymentMethod,
		Status:        filters.Status,
		Limit:         g.pageSize,
	}

	var (
		transactions []domain.Transaction
		rollups      []domain.DailyAnalytics
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		transactions, err = g.fetchAll(groupCtx, query)
		return err
	})
	group.Go(func() error {
		var err error
		rollups, err = g.analytics.GetRange(groupCtx, period.Start, period.End)
		return err
	})
	if err := group.Wait(); err != nil {
		g.log.Error("sales report query failed",
			zap.String("start", period.Start),
			zap.String("end", period.End),
			zap.Error(err),
		)
		return nil, err
	}

	report := Summarize(transactions)
	report.Period = period
	report.Filters = filters
	report.Analytics = rollups
	return report, nil
}

func (g *Generator) fetchAll(ctx context.Context, query domain.TransactionQuery) ([]domain.Transaction, error) {
	all := make([]domain.Transaction, 0, g.pageSize)
	for {
		page, err := g.transactions.ListTransactions(ctx, query)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Transactions...)
		if !page.HasMore || page.Next == nil {
			return all, nil
		}
		query.After = page.Next
	}
}

// Summarize computes report figures from transactions in fetch order. Product
// ties on revenue keep the order in which the products were first seen.
func Summarize(transactions []domain.Transaction) *domain.SalesReport {
	report := &domain.SalesReport{
		Summary: domain.ReportSummary{
			TotalSales:        decimal.Zero,
			AverageOrderValue: decimal.Zero,
		},
		PaymentMethodBreakdown: map[domain.PaymentMethod]decimal.Decimal{},
		TopProducts:            []domain.ProductPerformance{},
		Transactions:           transactions,
	}
	if report.Transactions == nil {
		report.Transactions = []domain.Transaction{}
	}

	products := make([]domain.ProductPerformance, 0, 32)
	index := map[string]int{}
	for _, tx := range transactions {
		report.Summary.TotalSales = report.Summary.TotalSales.Add(tx.Total)
		report.PaymentMethodBreakdown[tx.PaymentMethod] = report.PaymentMethodBreakdown[tx.PaymentMethod].Add(tx.Total)

		for _, item := range tx.Items {
			revenue := item.LineSubtotal
			if revenue.IsZero() {
				revenue = item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			}
			i, ok := index[item.Name]
			if !ok {
				i = len(products)
				index[item.Name] = i
				products = append(products, domain.ProductPerformance{Name: item.Name, Revenue: decimal.Zero})
			}
			products[i].Quantity += int64(item.Quantity)
			products[i].Revenue = products[i].Revenue.Add(revenue)
		}
	}

	report.Summary.TotalTransactions = len(transactions)
	if report.Summary.TotalTransactions > 0 {
		report.Summary.AverageOrderValue = report.Summary.TotalSales.
			Div(decimal.NewFromInt(int64(report.Summary.TotalTransactions))).
			Round(2)
	}

	sort.SliceStable(products, func(i, j int) bool {
		return products[i].Revenue.GreaterThan(products[j].Revenue)
	})
	if len(products) > topProductLimit {
		products = products[:topProductLimit]
	}
	report.TopProducts = products
	return report
}
