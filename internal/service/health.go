package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"cafepos/internal/clock"
	"cafepos/internal/domain"
	"cafepos/internal/xid"
)

const (
	componentStore     = "store"
	componentCache     = "cache"
	componentStock     = "stock"
	componentAnalytics = "analytics"
	componentReceipts  = "receipts"
)

var trackedComponents = []string{componentStock, componentAnalytics, componentReceipts}

type componentHealth struct {
	lastSuccess  time.Time
	lastFailure  time.Time
	lastError    string
	failureCount int64
}

// healthTracker remembers the latest outcome of each side-effect component
// and mirrors failures into OpenTelemetry counters.
type healthTracker struct {
	mu         sync.Mutex
	clock      clock.Clock
	components map[string]*componentHealth

	failureCounter  metric.Int64Counter
	recordedCounter metric.Int64Counter
}

func newHealthTracker(clk clock.Clock) *healthTracker {
	meter := otel.Meter("cafepos/service")
	failures, err := meter.Int64Counter("cafepos.side_effect.failures",
		metric.WithDescription("Side effects that failed after a transaction committed"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		otel.Handle(err)
	}
	recorded, err := meter.Int64Counter("cafepos.transactions.recorded",
		metric.WithDescription("Transactions committed by the recorder"),
		metric.WithUnit("{transaction}"),
	)
	if err != nil {
		otel.Handle(err)
	}

	components := make(map[string]*componentHealth, len(trackedComponents))
	for _, name := range trackedComponents {
		components[name] = &componentHealth{}
	}
	return &healthTracker{
		clock:           clk,
		components:      components,
		failureCounter:  failures,
		recordedCounter: recorded,
	}
}

func (h *healthTracker) success(component string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.components[component]; ok {
		c.lastSuccess = h.clock.Now()
	}
}

func (h *healthTracker) failure(ctx context.Context, component string, err error) {
	h.mu.Lock()
	if c, ok := h.components[component]; ok {
		c.lastFailure = h.clock.Now()
		c.failureCount++
		if err != nil {
			c.lastError = err.Error()
		}
	}
	h.mu.Unlock()

	if h.failureCounter != nil {
		h.failureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("component", component)))
	}
}

func (h *healthTracker) recorded(ctx context.Context) {
	if h.recordedCounter != nil {
		h.recordedCounter.Add(ctx, 1)
	}
}

func (h *healthTracker) snapshot() []domain.ComponentStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]domain.ComponentStatus, 0, len(trackedComponents))
	for _, name := range trackedComponents {
		c := h.components[name]
		status := domain.ComponentStatus{
			Name:         name,
			Healthy:      c.lastFailure.IsZero() || c.lastSuccess.After(c.lastFailure),
			LastError:    c.lastError,
			FailureCount: c.failureCount,
		}
		if !c.lastSuccess.IsZero() {
			at := c.lastSuccess
			status.LastSuccessAt = &at
		}
		if !c.lastFailure.IsZero() {
			at := c.lastFailure
			status.LastFailureAt = &at
		}
		out = append(out, status)
	}
	return out
}

// IntegrationStatus reports reachability of the store and cache plus the most
// recent outcome of every post-commit side effect.
func (s *Service) IntegrationStatus(ctx context.Context) domain.IntegrationStatus {
	status := domain.IntegrationStatus{
		Healthy:   true,
		CheckedAt: s.clock.Now(),
	}

	status.Components = append(status.Components, probe(ctx, componentStore, s.repo))
	if s.cache != nil {
		status.Components = append(status.Components, probe(ctx, componentCache, s.cache))
	}
	status.Components = append(status.Components, s.health.snapshot()...)

	for _, c := range status.Components {
		if !c.Healthy {
			status.Healthy = false
			break
		}
	}
	return status
}

func probe(ctx context.Context, name string, p Pinger) domain.ComponentStatus {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	started := time.Now()
	err := p.Ping(pingCtx)
	status := domain.ComponentStatus{
		Name:      name,
		Healthy:   err == nil,
		LatencyMS: time.Since(started).Milliseconds(),
	}
	if err != nil {
		status.LastError = err.Error()
		status.FailureCount = 1
	}
	return status
}

// Alerts lists low-stock products and degraded components, highest severity
// first.
func (s *Service) Alerts(ctx context.Context) (domain.AlertResponse, error) {
	now := s.clock.Now()
	products, err := s.repo.ListProducts(ctx, domain.ProductFilter{})
	if err != nil {
		return domain.AlertResponse{}, err
	}

	alerts := make([]domain.Alert, 0, 8)
	for _, p := range products {
		if p.Stock > s.lowStockThreshold {
			continue
		}
		severity := "medium"
		title := "Low stock"
		if p.Stock == 0 {
			severity = "high"
			title = "Out of stock"
		}
		alerts = append(alerts, domain.Alert{
			ID:          xid.New("alert"),
			Code:        "low_stock",
			Severity:    severity,
			Title:       title,
			Description: fmt.Sprintf("%s has %d left.", p.Name, p.Stock),
			MetricValue: float64(p.Stock),
			Threshold:   float64(s.lowStockThreshold),
			CreatedAt:   now.Format(time.RFC3339),
		})
	}

	for _, c := range s.health.snapshot() {
		if c.Healthy {
			continue
		}
		alerts = append(alerts, domain.Alert{
			ID:          xid.New("alert"),
			Code:        c.Name + "_degraded",
			Severity:    "high",
			Title:       fmt.Sprintf("%s updates failing", c.Name),
			Description: fmt.Sprintf("Last error: %s", c.LastError),
			MetricValue: float64(c.FailureCount),
			Threshold:   1,
			CreatedAt:   now.Format(time.RFC3339),
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return severityRank(alerts[i].Severity) < severityRank(alerts[j].Severity)
	})

	if len(alerts) > 0 {
		s.log.Debug("alerts raised", zap.Int("count", len(alerts)))
	}
	return domain.AlertResponse{
		Date:   now.In(s.loc).Format(domain.DateLayout),
		Alerts: alerts,
	}, nil
}

func severityRank(severity string) int {
	switch severity {
	case "high":
		return 1
	case "medium":
		return 2
	default:
		return 3
	}
}
