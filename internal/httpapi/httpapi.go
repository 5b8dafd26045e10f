package httpapi

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"cafepos/internal/domain"
	"cafepos/internal/feed"
	"cafepos/internal/service"
	"cafepos/internal/store"
)

const (
	maxBodyBytes      = 1 << 20
	streamHeartbeat   = 15 * time.Second
	defaultTxPageSize = 50
	maxTxPageSize     = 500
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	pinLimiter    *attemptLimiter
	log           *zap.Logger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		pinLimiter:    newAttemptLimiter(8, time.Minute),
		log:           log,
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	anyone := []string{domain.RoleCashier, domain.RoleAdmin}
	admin := []string{domain.RoleAdmin}

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)

	mux.HandleFunc("GET /api/v1/products", a.requireAuth(a.handleListProducts, anyone...))
	mux.HandleFunc("POST /api/v1/products", a.requireAuth(a.handleCreateProduct, admin...))
	mux.HandleFunc("GET /api/v1/products/{id}", a.requireAuth(a.handleGetProduct, anyone...))
	mux.HandleFunc("PATCH /api/v1/products/{id}", a.requireAuth(a.handleUpdateProduct, admin...))
	mux.HandleFunc("POST /api/v1/products/{id}/stock", a.requireAuth(a.handleAdjustStock, admin...))
	mux.HandleFunc("POST /api/v1/stock/batch", a.requireAuth(a.handleBatchStock, admin...))

	mux.HandleFunc("POST /api/v1/transactions", a.requireAuth(a.handleRecordTransaction, anyone...))
	mux.HandleFunc("GET /api/v1/transactions", a.requireAuth(a.handleListTransactions, anyone...))
	mux.HandleFunc("GET /api/v1/transactions/stream", a.requireAuth(a.handleTransactionStream, anyone...))
	mux.HandleFunc("GET /api/v1/transactions/{id}", a.requireAuth(a.handleGetTransaction, anyone...))
	mux.HandleFunc("POST /api/v1/transactions/{id}/refund", a.requireAuth(a.handleRefund, anyone...))

	mux.HandleFunc("GET /api/v1/analytics/kpis", a.requireAuth(a.handleKPIs, anyone...))
	mux.HandleFunc("GET /api/v1/analytics/daily", a.requireAuth(a.handleDailyAnalytics, anyone...))

	mux.HandleFunc("GET /api/v1/reports/sales", a.requireAuth(a.handleSalesReport, admin...))
	mux.HandleFunc("GET /api/v1/reports/saved", a.requireAuth(a.handleListSavedReports, admin...))
	mux.HandleFunc("POST /api/v1/reports/saved", a.requireAuth(a.handleSaveReport, admin...))
	mux.HandleFunc("GET /api/v1/reports/saved/{id}", a.requireAuth(a.handleGetSavedReport, admin...))
	mux.HandleFunc("DELETE /api/v1/reports/saved/{id}", a.requireAuth(a.handleDeleteSavedReport, admin...))

	mux.HandleFunc("POST /api/v1/receipts/next", a.requireAuth(a.handleNextReceipt, admin...))
	mux.HandleFunc("GET /api/v1/status/integrations", a.requireAuth(a.handleIntegrationStatus, admin...))
	mux.HandleFunc("GET /api/v1/alerts", a.requireAuth(a.handleAlerts, admin...))
	mux.HandleFunc("GET /api/v1/users/cashiers", a.requireAuth(a.handleListCashiers, admin...))
	mux.HandleFunc("POST /api/v1/users/cashiers", a.requireAuth(a.handleCreateCashier, admin...))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			a.writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			a.writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			a.writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func actorOf(r *http.Request) domain.Actor {
	actor, _ := service.ActorFromContext(r.Context())
	return actor
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		a.writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		a.writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products, err := a.service.ListProducts(r.Context(), domain.ProductFilter{
		Category:        q.Get("category"),
		IncludeInactive: q.Get("include_inactive") == "true",
	})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	product, err := a.service.CreateProduct(r.Context(), actorOf(r), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	product, err := a.service.UpdateProduct(r.Context(), actorOf(r), r.PathValue("id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req domain.StockAdjustment
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	req.ProductID = r.PathValue("id")
	level, err := a.service.AdjustStock(r.Context(), actorOf(r), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, level)
}

func (a *API) handleBatchStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Adjustments []domain.StockAdjustment `json:"adjustments"`
	}
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	levels, err := a.service.BatchAdjustStock(r.Context(), actorOf(r), req.Adjustments)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"levels": levels})
}

func (a *API) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.service.RecordTransaction(r.Context(), actorOf(r), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc := a.service.Location()

	start, err := parseTimeParam(q.Get("start"), loc, false)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, fmt.Errorf("start: %w", err))
		return
	}
	end, err := parseTimeParam(q.Get("end"), loc, true)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, fmt.Errorf("end: %w", err))
		return
	}

	page, err := a.service.ListTransactions(r.Context(), domain.TransactionQuery{
		Start:         start,
		End:           end,
		CashierID:     strings.TrimSpace(q.Get("cashier_id")),
		PaymentMethod: domain.PaymentMethod(strings.ToLower(strings.TrimSpace(q.Get("payment_method")))),
		Status:        domain.TransactionStatus(strings.ToLower(strings.TrimSpace(q.Get("status")))),
		Limit:         parsePositiveLimit(q.Get("limit"), defaultTxPageSize, maxTxPageSize),
	}, q.Get("cursor"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := a.service.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": tx})
}

func (a *API) handleRefund(w http.ResponseWriter, r *http.Request) {
	var req domain.RefundRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	actor := actorOf(r)
	if actor.Role != domain.RoleAdmin && !a.pinLimiter.Allow("pin:refund:"+clientKey(r)) {
		a.writeError(w, http.StatusTooManyRequests, errors.New("too many manager pin attempts"))
		return
	}

	result, err := a.service.RefundTransaction(r.Context(), actor, r.PathValue("id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleTransactionStream pushes committed sales and refunds as server-sent
// events until the client disconnects.
func (a *API) handleTransactionStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := feed.Filter{
		CashierID:     strings.TrimSpace(q.Get("cashier_id")),
		PaymentMethod: domain.PaymentMethod(strings.ToLower(strings.TrimSpace(q.Get("payment_method")))),
	}
	if filter.PaymentMethod != "" && !filter.PaymentMethod.Valid() {
		a.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown payment method %q", filter.PaymentMethod))
		return
	}

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		a.log.Warn("stream flush unsupported", zap.Error(err))
		return
	}

	events := a.service.Feed().Subscribe(r.Context(), filter)
	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case tx, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(tx)
			if err != nil {
				a.log.Error("failed to encode stream event", zap.String("transaction_id", tx.ID), zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: transaction\ndata: %s\n\n", tx.ID, payload); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func (a *API) handleKPIs(w http.ResponseWriter, r *http.Request) {
	kpis, err := a.service.GetKPIs(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, kpis)
}

func (a *API) handleDailyAnalytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, err := a.service.GetDailyAnalytics(r.Context(), q.Get("start"), q.Get("end"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analytics": days})
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period := domain.DateRange{Start: q.Get("start"), End: q.Get("end")}
	filters := domain.ReportFilters{
		CashierID:     q.Get("cashier_id"),
		PaymentMethod: domain.PaymentMethod(strings.ToLower(strings.TrimSpace(q.Get("payment_method")))),
		Status:        domain.TransactionStatus(strings.ToLower(strings.TrimSpace(q.Get("status")))),
	}

	report, err := a.service.GenerateSalesReport(r.Context(), period, filters)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	if strings.EqualFold(strings.TrimSpace(q.Get("format")), "csv") {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"sales-report-%s-%s.csv\"", report.Period.Start, report.Period.End))
		if err := writeSalesReportCSV(w, report); err != nil {
			a.log.Error("failed to write csv report", zap.Error(err))
		}
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleListSavedReports(w http.ResponseWriter, r *http.Request) {
	reports, err := a.service.ListSavedReports(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (a *API) handleSaveReport(w http.ResponseWriter, r *http.Request) {
	var req domain.SaveReportRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	saved, err := a.service.SaveReport(r.Context(), actorOf(r), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"report": saved})
}

func (a *API) handleGetSavedReport(w http.ResponseWriter, r *http.Request) {
	saved, err := a.service.GetSavedReport(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": saved})
}

func (a *API) handleDeleteSavedReport(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteReport(r.Context(), actorOf(r), r.PathValue("id")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleNextReceipt(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.NextReceiptNumber(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleIntegrationStatus(w http.ResponseWriter, r *http.Request) {
	status := a.service.IntegrationStatus(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (a *API) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := a.service.Alerts(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (a *API) handleListCashiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"cashiers": a.auth.ListCashiers(r.Context())})
}

func (a *API) handleCreateCashier(w http.ResponseWriter, r *http.Request) {
	var req domain.CashierCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	cashier, err := a.auth.CreateCashier(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"cashier": cashier})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(startedAt)),
		)
	})
}

// parseTimeParam accepts RFC 3339 or a calendar day in loc. A day used as an
// exclusive upper bound resolves to the following midnight.
func parseTimeParam(raw string, loc *time.Location, upper bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	day, err := time.ParseInLocation(domain.DateLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD or RFC 3339, got %q", raw)
	}
	if upper {
		day = day.AddDate(0, 0, 1)
	}
	return day, nil
}

func writeSalesReportCSV(w http.ResponseWriter, report *domain.SalesReport) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		{"section", "key", "value"},
		{"summary", "start", report.Period.Start},
		{"summary", "end", report.Period.End},
		{"summary", "total_sales", report.Summary.TotalSales.StringFixed(2)},
		{"summary", "total_transactions", strconv.Itoa(report.Summary.TotalTransactions)},
		{"summary", "average_order_value", report.Summary.AverageOrderValue.StringFixed(2)},
	}
	for _, method := range domain.PaymentMethods {
		if amount, ok := report.PaymentMethodBreakdown[method]; ok {
			rows = append(rows, []string{"payment", string(method), amount.StringFixed(2)})
		}
	}
	for _, p := range report.TopProducts {
		rows = append(rows,
			[]string{"product", p.Name + "_quantity", strconv.FormatInt(p.Quantity, 10)},
			[]string{"product", p.Name + "_revenue", p.Revenue.StringFixed(2)},
		)
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// writeServiceError maps the store and service sentinels onto status codes.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, store.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrPersistence), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	a.writeError(w, status, err)
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		a.log.Error("internal error", zap.Int("status", status), zap.Error(err))
		msg = http.StatusText(status)
	}
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
