package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Service exposes stock positions.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ListStock trims filters and delegates to the repository.
func (s *Service) ListStock(ctx context.Context, filter StockFilter) ([]Stock, int, error) {
	filter.SKU = strings.TrimSpace(filter.SKU)
	filter.Location = strings.TrimSpace(filter.Location)
	stock, total, err := s.repo.ListStock(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list stock: %w", err)
	}
	if stock == nil {
		stock = []Stock{}
	}
	return stock, total, nil
}
