package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cafepos/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrPersistence  = errors.New("persistence failure")
)

// Persistence wraps a driver error so callers can match ErrPersistence while
// the original cause stays reachable through errors.As.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

type ProductRepository interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	// IncrementStock adds delta to the product's stock, clamping the result at
	// zero, and returns the new level.
	IncrementStock(ctx context.Context, productID string, delta int) (int, error)
}

// StockBatcher is implemented by stores that can apply several clamped stock
// increments as one atomic write.
type StockBatcher interface {
	ApplyStockDeltas(ctx context.Context, deltas []domain.StockDelta) ([]domain.StockLevel, error)
}

type TransactionRepository interface {
	// CreateTransaction returns ErrConflict when the receipt number is taken.
	CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, query domain.TransactionQuery) (domain.TransactionPage, error)
	// TransitionTransaction moves a transaction from one status to another and
	// returns ErrConflict when the current status is not from.
	TransitionTransaction(ctx context.Context, id string, from domain.TransactionStatus, to domain.TransactionStatus, reason string, at time.Time) (*domain.Transaction, error)
}

type AnalyticsRepository interface {
	IncrementDailyAnalytics(ctx context.Context, inc domain.DailyIncrement) error
	GetDailyAnalytics(ctx context.Context, date string) (*domain.DailyAnalytics, error)
	// ListDailyAnalytics returns the stored rollups between start and end
	// inclusive, ascending by date. Days without a document are absent.
	ListDailyAnalytics(ctx context.Context, start string, end string) ([]domain.DailyAnalytics, error)
}

type ReportRepository interface {
	CreateSavedReport(ctx context.Context, report domain.SavedReport) (*domain.SavedReport, error)
	GetSavedReport(ctx context.Context, id string) (*domain.SavedReport, error)
	ListSavedReports(ctx context.Context, limit int) ([]domain.SavedReport, error)
	DeleteSavedReport(ctx context.Context, id string) error
}

type SequenceRepository interface {
	NextSequence(ctx context.Context, scope string) (int64, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type Repository interface {
	ProductRepository
	TransactionRepository
	AnalyticsRepository
	ReportRepository
	SequenceRepository
	UserRepository
	Ping(ctx context.Context) error
}
