package catalog

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/MRAMOS343/moncar-api/internal/platform/cache"
)

// Service serves products through a versioned Redis cache.
type Service struct {
	repo   Repository
	cache  *cache.Versioned
	logger *slog.Logger
}

// NewService wires the product service. A nil cache reads straight through.
func NewService(repo Repository, c *cache.Versioned, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: c, logger: logger}
}

// List returns one page of products.
func (s *Service) List(ctx context.Context, filter ListFilter) (Page, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	active := "all"
	if filter.Active != nil {
		active = strconv.FormatBool(*filter.Active)
	}
	key, err := s.cache.BuildKey(ctx, "list",
		strings.ToLower(filter.Search), active,
		strconv.Itoa(filter.Page), strconv.Itoa(filter.PerPage))
	if err != nil {
		s.logger.Warn("catalog cache unavailable", slog.Any("error", err))
		return s.loadPage(ctx, filter)
	}
	var page Page
	err = s.cache.FetchJSON(ctx, key, &page, func(ctx context.Context) (any, error) {
		return s.loadPage(ctx, filter)
	})
	return page, err
}

func (s *Service) loadPage(ctx context.Context, filter ListFilter) (Page, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return Page{}, err
	}
	if items == nil {
		items = []Product{}
	}
	return Page{Items: items, Total: total}, nil
}

// Get returns one product by SKU. Misses are not cached.
func (s *Service) Get(ctx context.Context, sku string) (Product, error) {
	key, err := s.cache.BuildKey(ctx, "sku", sku)
	if err != nil {
		s.logger.Warn("catalog cache unavailable", slog.Any("error", err))
		return s.repo.Get(ctx, sku)
	}
	var p Product
	err = s.cache.FetchJSON(ctx, key, &p, func(ctx context.Context) (any, error) {
		return s.repo.Get(ctx, sku)
	})
	return p, err
}

// Invalidate drops every cached catalog entry.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
