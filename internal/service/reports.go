package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"cafepos/internal/domain"
	"cafepos/internal/store"
	"cafepos/internal/xid"
)

const savedReportListLimit = 100

func (s *Service) GenerateSalesReport(ctx context.Context, period domain.DateRange, filters domain.ReportFilters) (*domain.SalesReport, error) {
	period.Start = strings.TrimSpace(period.Start)
	period.End = strings.TrimSpace(period.End)
	filters.CashierID = strings.TrimSpace(filters.CashierID)
	if err := s.validateStruct(period); err != nil {
		return nil, err
	}
	if err := s.validateStruct(filters); err != nil {
		return nil, err
	}
	return s.reports.GenerateSalesReport(ctx, period, filters)
}

// SaveReport stores an immutable snapshot. Without a supplied snapshot the
// report is generated now and embedded.
func (s *Service) SaveReport(ctx context.Context, actor domain.Actor, req domain.SaveReportRequest) (domain.SavedReport, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validateStruct(req); err != nil {
		return domain.SavedReport{}, err
	}
	if req.DateRange.Start > req.DateRange.End {
		return domain.SavedReport{}, fmt.Errorf("%w: start %s is after end %s", store.ErrInvalidInput, req.DateRange.Start, req.DateRange.End)
	}

	data := req.Data
	if data == nil {
		generated, err := s.GenerateSalesReport(ctx, req.DateRange, req.Filters)
		if err != nil {
			return domain.SavedReport{}, err
		}
		data = generated
	}

	createdBy := strings.TrimSpace(actor.Username)
	if createdBy == "" {
		createdBy = "system"
	}

	saved, err := s.repo.CreateSavedReport(ctx, domain.SavedReport{
		ID:          xid.New("rpt"),
		Name:        req.Name,
		Description: req.Description,
		DateRange:   req.DateRange,
		Filters:     req.Filters.AsMap(),
		Data:        data,
		CreatedBy:   createdBy,
		CreatedAt:   s.clock.Now(),
	})
	if err != nil {
		return domain.SavedReport{}, err
	}

	s.log.Info("report saved",
		zap.String("report_id", saved.ID),
		zap.String("name", saved.Name),
		zap.String("created_by", saved.CreatedBy),
	)
	return *saved, nil
}

func (s *Service) ListSavedReports(ctx context.Context) ([]domain.SavedReport, error) {
	return s.repo.ListSavedReports(ctx, savedReportListLimit)
}

func (s *Service) GetSavedReport(ctx context.Context, id string) (domain.SavedReport, error) {
	r, err := s.repo.GetSavedReport(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.SavedReport{}, err
	}
	return *r, nil
}

func (s *Service) DeleteReport(ctx context.Context, actor domain.Actor, id string) error {
	if err := s.repo.DeleteSavedReport(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.log.Info("report deleted", zap.String("report_id", id), zap.String("actor", actor.Username))
	return nil
}
