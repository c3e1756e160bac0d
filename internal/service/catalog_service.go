package service

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Rijughosh14/EShop/internal/catalog"
	"github.com/Rijughosh14/EShop/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultProductLimit = 100
	MaxProductLimit     = 200
)

// CatalogSource is the upstream product API
type CatalogSource interface {
	Products(ctx context.Context, limit, skip int) (json.RawMessage, error)
	Product(ctx context.Context, id string) (json.RawMessage, error)
	Search(ctx context.Context, query string) (json.RawMessage, error)
	ByCategory(ctx context.Context, category string) (json.RawMessage, error)
	Categories(ctx context.Context) (json.RawMessage, error)
}

// CatalogService serves product data through a read-through cache
type CatalogService interface {
	ListProducts(ctx context.Context, limit, skip int) (json.RawMessage, error)
	GetProduct(ctx context.Context, id string) (json.RawMessage, error)
	SearchProducts(ctx context.Context, query string) (json.RawMessage, error)
	ProductsByCategory(ctx context.Context, category string) (json.RawMessage, error)
	Categories(ctx context.Context) (json.RawMessage, error)
}

type catalogService struct {
	source CatalogSource
	cache  catalog.Cache
	ttl    time.Duration
	group  singleflight.Group
	log    *logger.Logger
}

// NewCatalogService creates a CatalogService; a nil cache disables caching
func NewCatalogService(source CatalogSource, cache catalog.Cache, ttl time.Duration, log *logger.Logger) CatalogService {
	if cache == nil {
		cache = catalog.NopCache{}
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = logger.Get()
	}
	return &catalogService{source: source, cache: cache, ttl: ttl, log: log}
}

func (s *catalogService) ListProducts(ctx context.Context, limit, skip int) (json.RawMessage, error) {
	if limit <= 0 {
		limit = DefaultProductLimit
	}
	if limit > MaxProductLimit {
		limit = MaxProductLimit
	}
	if skip < 0 {
		skip = 0
	}
	key := "products:" + strconv.Itoa(limit) + ":" + strconv.Itoa(skip)
	return s.cached(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		return s.source.Products(ctx, limit, skip)
	})
}

func (s *catalogService) GetProduct(ctx context.Context, id string) (json.RawMessage, error) {
	return s.cached(ctx, "product:"+id, func(ctx context.Context) (json.RawMessage, error) {
		return s.source.Product(ctx, id)
	})
}

func (s *catalogService) SearchProducts(ctx context.Context, query string) (json.RawMessage, error) {
	return s.cached(ctx, "search:"+query, func(ctx context.Context) (json.RawMessage, error) {
		return s.source.Search(ctx, query)
	})
}

func (s *catalogService) ProductsByCategory(ctx context.Context, category string) (json.RawMessage, error) {
	return s.cached(ctx, "category:"+category, func(ctx context.Context) (json.RawMessage, error) {
		return s.source.ByCategory(ctx, category)
	})
}

func (s *catalogService) Categories(ctx context.Context) (json.RawMessage, error) {
	return s.cached(ctx, "categories", s.source.Categories)
}

// cached reads through the cache; concurrent misses for one key share a single upstream call.
// Cache failures are logged and never fail the request.
func (s *catalogService) cached(ctx context.Context, key string, fetch func(context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	if b, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.WarnContext(ctx, "Catalog cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		return b, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		body, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, key, body, s.ttl); err != nil {
			s.log.WarnContext(ctx, "Catalog cache write failed", zap.String("key", key), zap.Error(err))
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}
