package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/SigNoz/storefront-go-app/internal/apperr"
	"github.com/SigNoz/storefront-go-app/internal/metrics"
	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/SigNoz/storefront-go-app/internal/repository"
)

const reconcilePageSize = 200

// eachProductPage walks the whole catalog in id order
func eachProductPage(ctx context.Context, products repository.ProductRepository, fn func([]models.Product) error) error {
	for offset := 0; ; offset += reconcilePageSize {
		page, err := products.List(ctx, reconcilePageSize, offset)
		if err != nil {
			return err
		}
		if len(page) > 0 {
			if err := fn(page); err != nil {
				return err
			}
		}
		if len(page) < reconcilePageSize {
			return nil
		}
	}
}

// Reconciler repairs derived product fields: the favorites counter and the rating
type Reconciler struct {
	favorites *FavoriteService
	products  repository.ProductRepository
	metrics   *metrics.AppMetrics
}

// NewReconciler creates a reconciler
func NewReconciler(favorites *FavoriteService, products repository.ProductRepository, m *metrics.AppMetrics) *Reconciler {
	return &Reconciler{favorites: favorites, products: products, metrics: m}
}

// Reconcile runs one full pass
func (r *Reconciler) Reconcile(ctx context.Context) (*models.ReconcileReport, error) {
	start := time.Now()
	report := &models.ReconcileReport{}

	corrected, err := r.favorites.ReconcileFavoriteCounts(ctx)
	report.FavoritesCorrected = corrected
	if err != nil {
		return report, err
	}

	err = eachProductPage(ctx, r.products, func(page []models.Product) error {
		for _, p := range page {
			report.ProductsScanned++
			want := models.RatingOf(p.Reviews)
			if want == p.Rating {
				continue
			}
			if err := r.products.UpdateRating(ctx, p.ID, want); err != nil {
				return err
			}
			r.metrics.ReconcileCorrections.Add(ctx, 1, metric.WithAttributes(r.metrics.WithServiceName([]attribute.KeyValue{
				attribute.String("field", "rating"),
			})...))
			report.RatingsCorrected++
		}
		return nil
	})
	if err != nil {
		return report, apperr.Internal("failed to reconcile ratings", err)
	}

	log.Ctx(ctx).Info().
		Int("products", report.ProductsScanned).
		Int("favorites_corrected", report.FavoritesCorrected).
		Int("ratings_corrected", report.RatingsCorrected).
		Dur("took", time.Since(start)).
		Msg("Reconciliation finished")
	return report, nil
}

// Run reconciles every interval until ctx is done
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Reconcile(ctx); err != nil {
				log.Ctx(ctx).Error().Err(err).Msg("Scheduled reconciliation failed")
			}
		}
	}
}
