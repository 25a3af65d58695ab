package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/SigNoz/storefront-go-app/internal/apperr"
	"github.com/SigNoz/storefront-go-app/internal/metrics"
	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/SigNoz/storefront-go-app/internal/repository"
)

// ProductCache holds display copies of products. Stock and counters may lag
// the store by up to the TTL; the cart engine never reads through it.
type ProductCache struct {
	mu    sync.RWMutex
	items map[int64]cachedProduct
	ttl   time.Duration
}

type cachedProduct struct {
	product *models.Product
	expires time.Time
}

func NewProductCache(ttl time.Duration) *ProductCache {
	return &ProductCache{
		items: make(map[int64]cachedProduct),
		ttl:   ttl,
	}
}

func (c *ProductCache) get(id int64) (*models.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cached, ok := c.items[id]
	if !ok || !time.Now().Before(cached.expires) {
		return nil, false
	}
	return cached.product.Clone(), true
}

func (c *ProductCache) put(p *models.Product) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[p.ID] = cachedProduct{product: p.Clone(), expires: time.Now().Add(c.ttl)}
}

// ProductService serves catalog reads for the storefront
type ProductService struct {
	products repository.ProductRepository
	metrics  *metrics.AppMetrics
	cache    *ProductCache
}

// NewProductService creates a new product service
func NewProductService(products repository.ProductRepository, m *metrics.AppMetrics, cacheTTL time.Duration) *ProductService {
	return &ProductService{
		products: products,
		metrics:  m,
		cache:    NewProductCache(cacheTTL),
	}
}

// ListProducts returns a page of products
func (s *ProductService) ListProducts(ctx context.Context, limit, offset int) ([]models.Product, error) {
	products, err := s.products.List(ctx, limit, offset)
	if err != nil {
		return nil, apperr.Internal("failed to list products", err)
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// GetProduct returns a product by ID, served from the cache when fresh
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	noAttrs := metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{})...)

	p, hit := s.cache.get(id)
	if hit {
		s.metrics.CacheHits.Add(ctx, 1, noAttrs)
	} else {
		s.metrics.CacheMisses.Add(ctx, 1, noAttrs)

		var err error
		p, err = s.products.FindByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("product not found")
		}
		if err != nil {
			return nil, apperr.Internal("failed to get product", err)
		}
		s.cache.put(p)
	}

	log.Ctx(ctx).Debug().Int64("product_id", id).Bool("cache_hit", hit).Msg("Product viewed")
	viewAttrs := s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.Int64("product_id", id),
		attribute.String("product_category", p.Category),
	})
	s.metrics.ProductsViewed.Add(ctx, 1, metric.WithAttributes(viewAttrs...))
	return p, nil
}
