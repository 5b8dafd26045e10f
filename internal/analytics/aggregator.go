package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cafepos/internal/cache"
	"cafepos/internal/clock"
	"cafepos/internal/domain"
	"cafepos/internal/store"
)

// MaxRangeDays bounds GetRange so a single request cannot fan out unbounded.
const MaxRangeDays = 366

var hundred = decimal.NewFromInt(100)

type Options struct {
	Location *time.Location
	KPITTL   time.Duration
}

type Aggregator struct {
	repo   store.AnalyticsRepository
	cache  cache.KPICache
	clock  clock.Clock
	loc    *time.Location
	kpiTTL time.Duration
	log    *zap.Logger
}

func NewAggregator(repo store.AnalyticsRepository, kpiCache cache.KPICache, clk clock.Clock, opts Options, log *zap.Logger) *Aggregator {
	if kpiCache == nil {
		kpiCache = cache.NoopKPICache{}
	}
	if clk == nil {
		clk = clock.System{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{
		repo:   repo,
		cache:  kpiCache,
		clock:  clk,
		loc:    opts.Location,
		kpiTTL: opts.KPITTL,
		log:    log,
	}
}

// DayOf returns the business-day key containing t.
func (a *Aggregator) DayOf(t time.Time) string {
	return t.In(a.loc).Format(domain.DateLayout)
}

// RecordSale folds a completed transaction into its day's rollup with one
// create-or-increment write.
func (a *Aggregator) RecordSale(ctx context.Context, tx domain.Transaction) error {
	return a.apply(ctx, tx, 1)
}

// RecordRefund reverses a previously recorded sale on the sale's own day.
func (a *Aggregator) RecordRefund(ctx context.Context, tx domain.Transaction) error {
	return a.apply(ctx, tx, -1)
}

func (a *Aggregator) apply(ctx context.Context, tx domain.Transaction, sign int64) error {
	inc := a.increment(tx, sign)
	if err := a.repo.IncrementDailyAnalytics(ctx, inc); err != nil {
		a.log.Error("analytics increment failed",
			zap.String("transaction_id", tx.ID),
			zap.String("date", inc.Date),
			zap.Int64("sign", sign),
			zap.Error(err),
		)
		return err
	}

	if err := a.cache.InvalidateKPIs(ctx, a.affectedKPIDays(inc.Date)...); err != nil {
		a.log.Warn("kpi cache invalidation failed", zap.Error(err))
	}
	return nil
}

// affectedKPIDays lists the as-of dates whose cached KPIs include date: the
// current business day, date itself, and the day after it (as yesterday).
func (a *Aggregator) affectedKPIDays(date string) []string {
	days := []string{a.DayOf(a.clock.Now()), date}
	if d, err := time.Parse(domain.DateLayout, date); err == nil {
		days = append(days, d.AddDate(0, 0, 1).Format(domain.DateLayout))
	}
	return days
}

func (a *Aggregator) increment(tx domain.Transaction, sign int64) domain.DailyIncrement {
	local := tx.CreatedAt.In(a.loc)
	factor := decimal.NewFromInt(sign)

	products := make([]domain.ProductIncrement, 0, len(tx.Items))
	index := make(map[string]int, len(tx.Items))
	for _, item := range tx.Items {
		revenue := item.LineSubtotal
		if revenue.IsZero() {
			revenue = item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		}
		if i, ok := index[item.Name]; ok {
			products[i].Quantity += sign * int64(item.Quantity)
			products[i].Revenue = products[i].Revenue.Add(revenue.Mul(factor))
			continue
		}
		index[item.Name] = len(products)
		products = append(products, domain.ProductIncrement{
			Name:     item.Name,
			Quantity: sign * int64(item.Quantity),
			Revenue:  revenue.Mul(factor),
		})
	}

	return domain.DailyIncrement{
		Date:          local.Format(domain.DateLayout),
		Sales:         tx.Total.Mul(factor),
		Transactions:  sign,
		PaymentMethod: tx.PaymentMethod,
		Hour:          local.Hour(),
		Products:      products,
		At:            a.clock.Now(),
	}
}

// GetRange returns one rollup per calendar day from start to end inclusive,
// with zero-valued entries for days that have no stored document.
func (a *Aggregator) GetRange(ctx context.Context, start string, end string) ([]domain.DailyAnalytics, error) {
	startDay, err := time.Parse(domain.DateLayout, start)
	if err != nil {
		return nil, fmt.Errorf("%w: start date %q", store.ErrInvalidInput, start)
	}
	endDay, err := time.Parse(domain.DateLayout, end)
	if err != nil {
		return nil, fmt.Errorf("%w: end date %q", store.ErrInvalidInput, end)
	}
	if startDay.After(endDay) {
		return nil, fmt.Errorf("%w: start %s is after end %s", store.ErrInvalidInput, start, end)
	}
	span := int(endDay.Sub(startDay).Hours()/24) + 1
	if span > MaxRangeDays {
		return nil, fmt.Errorf("%w: range of %d days exceeds %d", store.ErrInvalidInput, span, MaxRangeDays)
	}

	stored, err := a.repo.ListDailyAnalytics(ctx, start, end)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]domain.DailyAnalytics, len(stored))
	for _, doc := range stored {
		byDate[doc.Date] = doc
	}

	out := make([]domain.DailyAnalytics, 0, span)
	for day := startDay; !day.After(endDay); day = day.AddDate(0, 0, 1) {
		key := day.Format(domain.DateLayout)
		if doc, ok := byDate[key]; ok {
			out = append(out, doc)
			continue
		}
		out = append(out, domain.NewDailyAnalytics(key))
	}
	return out, nil
}

// GetKPIs summarises today, yesterday and month-to-date in the business
// time zone. Results are cached until the next analytics write or TTL expiry.
func (a *Aggregator) GetKPIs(ctx context.Context) (domain.KPISet, error) {
	now := a.clock.Now().In(a.loc)
	today := now.Format(domain.DateLayout)

	if cached, ok, err := a.cache.GetKPIs(ctx, today); err != nil {
		a.log.Warn("kpi cache read failed", zap.Error(err))
	} else if ok {
		return *cached, nil
	}

	// Taken before reading rollups so a write that lands meanwhile keeps this
	// result out of the cache.
	generation, genErr := a.cache.KPIGeneration(ctx)
	if genErr != nil {
		a.log.Warn("kpi cache generation read failed", zap.Error(genErr))
	}

	yesterday := now.AddDate(0, 0, -1).Format(domain.DateLayout)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, a.loc).Format(domain.DateLayout)
	from := monthStart
	if yesterday < from {
		from = yesterday
	}

	docs, err := a.repo.ListDailyAnalytics(ctx, from, today)
	if err != nil {
		return domain.KPISet{}, err
	}

	kpis := computeKPIs(today, yesterday, monthStart, docs)
	if genErr == nil {
		if err := a.cache.SetKPIs(ctx, kpis, generation, a.kpiTTL); err != nil {
			a.log.Warn("kpi cache write failed", zap.Error(err))
		}
	}
	return kpis, nil
}

func computeKPIs(today string, yesterday string, monthStart string, docs []domain.DailyAnalytics) domain.KPISet {
	kpis := domain.KPISet{
		AsOf:              today,
		TodaySales:        decimal.Zero,
		YesterdaySales:    decimal.Zero,
		MonthSales:        decimal.Zero,
		SalesGrowth:       decimal.Zero,
		AverageOrderValue: decimal.Zero,
	}
	for _, doc := range docs {
		switch doc.Date {
		case today:
			kpis.TodaySales = kpis.TodaySales.Add(doc.TotalSales)
		case yesterday:
			kpis.YesterdaySales = kpis.YesterdaySales.Add(doc.TotalSales)
		}
		if doc.Date >= monthStart && doc.Date <= today {
			kpis.MonthSales = kpis.MonthSales.Add(doc.TotalSales)
			kpis.MonthTransactions += doc.TransactionCount
		}
	}

	if !kpis.YesterdaySales.IsZero() {
		kpis.SalesGrowth = kpis.TodaySales.Sub(kpis.YesterdaySales).
			Div(kpis.YesterdaySales).
			Mul(hundred).
			Round(2)
	}
	if kpis.MonthTransactions > 0 {
		kpis.AverageOrderValue = kpis.MonthSales.Div(decimal.NewFromInt(kpis.MonthTransactions)).Round(2)
	}
	return kpis
}
