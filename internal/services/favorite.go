package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/SigNoz/storefront-go-app/internal/apperr"
	"github.com/SigNoz/storefront-go-app/internal/lock"
	"github.com/SigNoz/storefront-go-app/internal/metrics"
	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/SigNoz/storefront-go-app/internal/repository"
)

const (
	counterAttempts = 3
	counterBackoff  = 50 * time.Millisecond
)

// FavoriteService handles favorite-related operations. The favorite record is
// the source of truth and the product counter is derived from it.
type FavoriteService struct {
	favorites repository.FavoriteRepository
	products  repository.ProductRepository
	locker    lock.Locker
	metrics   *metrics.AppMetrics
	backoff   time.Duration
}

// NewFavoriteService creates a new favorite service
func NewFavoriteService(favorites repository.FavoriteRepository, products repository.ProductRepository, locker lock.Locker, m *metrics.AppMetrics) *FavoriteService {
	return &FavoriteService{
		favorites: favorites,
		products:  products,
		locker:    locker,
		metrics:   m,
		backoff:   counterBackoff,
	}
}

// Add favorites a product and increments its counter
func (s *FavoriteService) Add(ctx context.Context, userID, productID int64) (*models.Favorite, error) {
	release, err := s.locker.Acquire(ctx, lock.FavoriteKey(userID, productID))
	if err != nil {
		return nil, apperr.Internal("failed to acquire favorite lock", err)
	}
	defer release()

	product, err := s.products.FindByID(ctx, productID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("product not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to get product", err)
	}

	favorite := &models.Favorite{
		UserID:    userID,
		ProductID: productID,
		AddedAt:   time.Now().UTC(),
	}
	err = s.favorites.Create(ctx, favorite)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperr.Conflict("product is already in favorites")
	}
	if err != nil {
		return nil, apperr.Internal("failed to add favorite", err)
	}
	s.recordChange(ctx, "add")

	if s.adjustCounter(ctx, productID, 1) {
		product.Favorites++
	}
	favorite.Product = product
	return favorite, nil
}

// Remove unfavorites a product and decrements its counter
func (s *FavoriteService) Remove(ctx context.Context, userID, productID int64) error {
	release, err := s.locker.Acquire(ctx, lock.FavoriteKey(userID, productID))
	if err != nil {
		return apperr.Internal("failed to acquire favorite lock", err)
	}
	defer release()

	err = s.favorites.Delete(ctx, userID, productID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("favorite not found")
	}
	if err != nil {
		return apperr.Internal("failed to remove favorite", err)
	}
	s.recordChange(ctx, "remove")

	s.adjustCounter(ctx, productID, -1)
	return nil
}

// List returns the user's favorites newest first with products resolved
func (s *FavoriteService) List(ctx context.Context, userID int64) ([]models.Favorite, error) {
	favorites, err := s.favorites.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to list favorites", err)
	}

	ids := make([]int64, 0, len(favorites))
	for _, f := range favorites {
		ids = append(ids, f.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("failed to get favorite products", err)
	}

	out := make([]models.Favorite, 0, len(favorites))
	for _, f := range favorites {
		f.Product = products[f.ProductID]
		out = append(out, f)
	}
	return out, nil
}

// Check reports whether the user has favorited the product
func (s *FavoriteService) Check(ctx context.Context, userID, productID int64) (bool, error) {
	ok, err := s.favorites.Exists(ctx, userID, productID)
	if err != nil {
		return false, apperr.Internal("failed to check favorite", err)
	}
	return ok, nil
}

// ReconcileFavoriteCounts sets every product counter to its favorite record count.
// A counter that moved since it was read is left for the next run.
func (s *FavoriteService) ReconcileFavoriteCounts(ctx context.Context) (int, error) {
	corrected := 0
	err := eachProductPage(ctx, s.products, func(page []models.Product) error {
		// Counted after the page is read so that a concurrent toggle fails the swap below
		counts, err := s.favorites.CountByProduct(ctx)
		if err != nil {
			return err
		}
		for _, p := range page {
			want := counts[p.ID]
			if p.Favorites == want {
				continue
			}
			ok, err := s.products.SetFavoriteCount(ctx, p.ID, p.Favorites, want)
			if err != nil {
				return err
			}
			if !ok {
				log.Ctx(ctx).Debug().Int64("product_id", p.ID).Msg("Favorite counter changed during reconcile, skipping")
				continue
			}
			log.Ctx(ctx).Info().Int64("product_id", p.ID).Int("was", p.Favorites).Int("now", want).
				Msg("Corrected favorite counter")
			s.metrics.ReconcileCorrections.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
				attribute.String("field", "favorites"),
			})...))
			corrected++
		}
		return nil
	})
	if err != nil {
		return corrected, apperr.Internal("failed to reconcile favorite counters", err)
	}
	return corrected, nil
}

// adjustCounter applies delta with a bounded linear backoff. The favorite
// record is never rolled back; drift left here is repaired by reconciliation.
func (s *FavoriteService) adjustCounter(ctx context.Context, productID int64, delta int) bool {
	// The record is already committed, so the adjustment outlives a cancelled request
	ctx = context.WithoutCancel(ctx)

	var err error
	for attempt := 1; attempt <= counterAttempts; attempt++ {
		err = s.products.AdjustFavorites(ctx, productID, delta)
		if err == nil {
			return true
		}
		if errors.Is(err, repository.ErrNotFound) {
			break
		}
		log.Ctx(ctx).Warn().Err(err).Int64("product_id", productID).Int("attempt", attempt).
			Msg("Favorite counter adjustment failed")
		if attempt < counterAttempts {
			time.Sleep(time.Duration(attempt) * s.backoff)
		}
	}

	log.Ctx(ctx).Error().Err(err).Int64("product_id", productID).Int("delta", delta).
		Msg("Giving up on favorite counter adjustment")
	s.metrics.CounterAdjustFailures.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.Int64("product_id", productID),
	})...))
	return false
}

func (s *FavoriteService) recordChange(ctx context.Context, action string) {
	s.metrics.FavoriteChanges.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("action", action),
	})...))
}
