package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cafepos/internal/analytics"
	"cafepos/internal/cache"
	"cafepos/internal/clock"
	"cafepos/internal/domain"
	"cafepos/internal/feed"
	"cafepos/internal/inventory"
	"cafepos/internal/receipt"
	"cafepos/internal/report"
	"cafepos/internal/store"
	"cafepos/internal/xid"
)

var (
	ErrInvalidLineItem = fmt.Errorf("%w: invalid line item", store.ErrInvalidInput)
	ErrProductInactive = fmt.Errorf("%w: product inactive", store.ErrInvalidInput)
	ErrForbidden       = errors.New("forbidden")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Pinger is any optional backing service whose reachability is reported by
// IntegrationStatus.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	TaxRate           decimal.Decimal
	Location          *time.Location
	KPICacheTTL       time.Duration
	LowStockThreshold int
	ReportPageSize    int
	ManagerPIN        string
}

// Dependencies lets callers swap collaborators; nil fields are built from the
// repository and options.
type Dependencies struct {
	Clock     clock.Clock
	KPICache  cache.KPICache
	Sequencer receipt.Sequencer
	Feed      *feed.Hub
	Cache     Pinger
	Logger    *zap.Logger
}

type Service struct {
	repo      store.Repository
	ledger    *inventory.Ledger
	analytics *analytics.Aggregator
	reports   *report.Generator
	receipts  *receipt.Numberer
	feed      *feed.Hub
	cache     Pinger
	clock     clock.Clock
	validate  *validator.Validate
	health    *healthTracker
	log       *zap.Logger

	taxRate           decimal.Decimal
	loc               *time.Location
	lowStockThreshold int
	managerPIN        string
}

func New(repo store.Repository, deps Dependencies, opts Options) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.System{}
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	seq := deps.Sequencer
	if seq == nil {
		seq = repo
	}
	hub := deps.Feed
	if hub == nil {
		hub = feed.NewHub(0, log.Named("feed"))
	}
	if opts.LowStockThreshold < 0 {
		opts.LowStockThreshold = 0
	}

	agg := analytics.NewAggregator(repo, deps.KPICache, clk, analytics.Options{
		Location: loc,
		KPITTL:   opts.KPICacheTTL,
	}, log.Named("analytics"))

	s := &Service{
		repo:              repo,
		ledger:            inventory.NewLedger(repo, log.Named("inventory")),
		analytics:         agg,
		reports:           report.NewGenerator(repo, agg, loc, opts.ReportPageSize, log.Named("report")),
		receipts:          receipt.NewNumberer(seq, loc, log.Named("receipt")),
		feed:              hub,
		cache:             deps.Cache,
		clock:             clk,
		validate:          validator.New(validator.WithRequiredStructEnabled()),
		health:            newHealthTracker(clk),
		log:               log,
		taxRate:           opts.TaxRate,
		loc:               loc,
		lowStockThreshold: opts.LowStockThreshold,
		managerPIN:        strings.TrimSpace(opts.ManagerPIN),
	}
	s.receipts.Observe(func(err error) {
		if err != nil {
			s.health.failure(context.Background(), componentReceipts, err)
			return
		}
		s.health.success(componentReceipts)
	})
	return s
}

func (s *Service) Feed() *feed.Hub {
	return s.feed
}

func (s *Service) TaxRate() decimal.Decimal {
	return s.taxRate
}

// Location is the business timezone that defines calendar days.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) validateStruct(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s", store.ErrInvalidInput, err.Error())
	}
	return nil
}

func requireAdmin(actor domain.Actor) error {
	if actor.Role != domain.RoleAdmin {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return nil
}

func (s *Service) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	return s.repo.ListProducts(ctx, filter)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	p, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	return *p, nil
}

func (s *Service) CreateProduct(ctx context.Context, actor domain.Actor, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.Product{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if err := s.validateStruct(req); err != nil {
		return domain.Product{}, err
	}
	if !req.Price.IsPositive() {
		return domain.Product{}, fmt.Errorf("%w: price must be positive", store.ErrInvalidInput)
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		ID:       xid.New("prd"),
		Name:     req.Name,
		Category: req.Category,
		Price:    req.Price.Round(2),
		Stock:    req.InitialStock,
		IsActive: true,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.log.Info("product created",
		zap.String("product_id", created.ID),
		zap.String("actor", actor.Username),
		zap.Int("initial_stock", req.InitialStock),
	)
	return *created, nil
}

// UpdateProduct patches catalog fields. Deactivating is the only delete.
func (s *Service) UpdateProduct(ctx context.Context, actor domain.Actor, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.Product{}, err
	}
	if err := s.validateStruct(req); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: name cannot be empty", store.ErrInvalidInput)
		}
		updated.Name = name
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.Price != nil {
		if !req.Price.IsPositive() {
			return domain.Product{}, fmt.Errorf("%w: price must be positive", store.ErrInvalidInput)
		}
		updated.Price = req.Price.Round(2)
	}
	if req.IsActive != nil {
		updated.IsActive = *req.IsActive
	}

	result, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	s.log.Info("product updated", zap.String("product_id", result.ID), zap.String("actor", actor.Username))
	return *result, nil
}

func (s *Service) AdjustStock(ctx context.Context, actor domain.Actor, req domain.StockAdjustment) (domain.StockLevel, error) {
	if err := requireAdmin(actor); err != nil {
		return domain.StockLevel{}, err
	}
	if err := s.validateStruct(req); err != nil {
		return domain.StockLevel{}, err
	}
	if req.Direction == "" {
		req.Direction = domain.StockIncrement
	}
	level, err := s.ledger.AdjustStock(ctx, req.ProductID, req.Quantity, req.Direction)
	if err != nil {
		return domain.StockLevel{}, err
	}
	s.log.Info("stock adjusted",
		zap.String("product_id", req.ProductID),
		zap.String("direction", string(req.Direction)),
		zap.Int("quantity", req.Quantity),
		zap.Int("stock", level.Stock),
		zap.String("actor", actor.Username),
	)
	return level, nil
}

func (s *Service) BatchAdjustStock(ctx context.Context, actor domain.Actor, reqs []domain.StockAdjustment) ([]domain.StockLevel, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: no adjustments", store.ErrInvalidInput)
	}
	deltas := make([]domain.StockDelta, 0, len(reqs))
	for _, req := range reqs {
		if err := s.validateStruct(req); err != nil {
			return nil, err
		}
		delta := req.Quantity
		if req.Direction == domain.StockDecrement {
			delta = -delta
		}
		deltas = append(deltas, domain.StockDelta{ProductID: req.ProductID, Delta: delta})
	}
	return s.ledger.BatchAdjustStock(ctx, deltas)
}

func (s *Service) GetKPIs(ctx context.Context) (domain.KPISet, error) {
	return s.analytics.GetKPIs(ctx)
}

func (s *Service) GetDailyAnalytics(ctx context.Context, start string, end string) ([]domain.DailyAnalytics, error) {
	return s.analytics.GetRange(ctx, strings.TrimSpace(start), strings.TrimSpace(end))
}

func (s *Service) NextReceiptNumber(ctx context.Context) (domain.ReceiptNumberResponse, error) {
	number, err := s.receipts.Next(ctx, s.clock.Now())
	if err != nil {
		return domain.ReceiptNumberResponse{}, err
	}
	return domain.ReceiptNumberResponse{ReceiptNumber: number}, nil
}
