package sales

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MRAMOS343/moncar-api/internal/auth"
	"github.com/MRAMOS343/moncar-api/internal/shared"
)

// Service exposes read access to imported sales, scoped by the caller's branch.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a sales service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ListSales returns one page of sales. A branch-bound caller only ever sees
// its own branch, whatever filter it asked for.
func (s *Service) ListSales(ctx context.Context, principal shared.Principal, filter ListFilter) ([]Sale, int, error) {
	if scope := auth.BranchScope(principal); scope != "" {
		filter.BranchID = scope
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, 0, fmt.Errorf("%w: hasta es anterior a desde", shared.ErrValidation)
	}
	sales, total, err := s.repo.ListSales(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list sales: %w", err)
	}
	return sales, total, nil
}

// GetSale returns one sale with its lines and payments. Sales outside the
// caller's branch are reported as missing.
func (s *Service) GetSale(ctx context.Context, principal shared.Principal, id int64) (SaleDetail, error) {
	detail, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return SaleDetail{}, err
	}
	if scope := auth.BranchScope(principal); scope != "" {
		if detail.BranchID == nil || *detail.BranchID != scope {
			return SaleDetail{}, ErrSaleNotFound
		}
	}
	return detail, nil
}
