package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/SigNoz/storefront-go-app/internal/apperr"
	"github.com/SigNoz/storefront-go-app/internal/lock"
	"github.com/SigNoz/storefront-go-app/internal/metrics"
	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/SigNoz/storefront-go-app/internal/repository"
)

// maxSaveAttempts bounds re-reads after a cart version conflict
const maxSaveAttempts = 3

// errUnchanged ends a mutation without saving
var errUnchanged = errors.New("cart unchanged")

// stockChange is a reservation delta. Positive reserves, negative releases.
type stockChange struct {
	productID int64
	delta     int
}

// mutation edits cart in place and returns the stock it needs reserved or released
type mutation func(ctx context.Context, cart *models.Cart) ([]stockChange, error)

// CartService handles cart-related operations. Stock is reserved when a line
// is added or grown and released when it shrinks or leaves the cart.
type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	locker   lock.Locker
	metrics  *metrics.AppMetrics
}

// NewCartService creates a new cart service
func NewCartService(carts repository.CartRepository, products repository.ProductRepository, locker lock.Locker, m *metrics.AppMetrics) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		locker:   locker,
		metrics:  m,
	}
}

// GetOrCreateCart gets or lazily creates an empty cart for a user
func (s *CartService) GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	cart, err := s.carts.FindByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Internal("failed to get cart", err)
	}

	cart, err = s.carts.Create(ctx, userID)
	if errors.Is(err, repository.ErrDuplicate) {
		// another request created it first
		cart, err = s.carts.FindByUser(ctx, userID)
	}
	if err != nil {
		return nil, apperr.Internal("failed to create cart", err)
	}
	log.Ctx(ctx).Debug().Int64("user_id", userID).Msg("Created cart")
	return cart, nil
}

// GetCart returns the user's cart with products populated
func (s *CartService) GetCart(ctx context.Context, userID int64) (*models.Cart, error) {
	cart, err := s.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.present(ctx, cart), nil
}

// AddItem adds quantity units of a product, merging with an existing line.
// created reports whether a new line was appended.
func (s *CartService) AddItem(ctx context.Context, userID, productID int64, quantity int) (cart *models.Cart, created bool, err error) {
	if quantity < 1 {
		s.recordOutcome(ctx, "add", apperr.InvalidArgument(""))
		return nil, false, apperr.InvalidArgument("quantity must be at least 1")
	}

	cart, err = s.mutate(ctx, "add", userID, s.GetOrCreateCart, func(ctx context.Context, cart *models.Cart) ([]stockChange, error) {
		created = false
		product, err := s.product(ctx, productID)
		if err != nil {
			return nil, err
		}
		if product.Stock < quantity {
			return nil, apperr.InsufficientStock("not enough stock available")
		}

		if i := cart.Find(productID); i >= 0 {
			cart.Items[i].Quantity += quantity
			cart.Items[i].Price = product.Price
		} else {
			cart.Items = append(cart.Items, models.CartItem{
				ProductID: productID,
				Quantity:  quantity,
				Price:     product.Price,
			})
			created = true
		}
		return []stockChange{{productID: productID, delta: quantity}}, nil
	})
	if err != nil {
		return nil, false, err
	}
	return cart, created, nil
}

// UpdateItem sets the quantity of an existing line and refreshes its price
func (s *CartService) UpdateItem(ctx context.Context, userID, productID int64, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		s.recordOutcome(ctx, "update", apperr.InvalidArgument(""))
		return nil, apperr.InvalidArgument("quantity must be at least 1")
	}

	return s.mutate(ctx, "update", userID, s.findCart, func(ctx context.Context, cart *models.Cart) ([]stockChange, error) {
		i := cart.Find(productID)
		if i < 0 {
			return nil, apperr.NotFound("item not found in cart")
		}
		product, err := s.product(ctx, productID)
		if err != nil {
			return nil, err
		}

		// Units this line already holds count as available to it
		held := cart.Items[i].Quantity
		if product.Stock+held < quantity {
			return nil, apperr.InsufficientStock("not enough stock available")
		}

		cart.Items[i].Quantity = quantity
		cart.Items[i].Price = product.Price
		if quantity == held {
			return nil, nil
		}
		return []stockChange{{productID: productID, delta: quantity - held}}, nil
	})
}

// RemoveItem drops a line and releases its stock. Removing an absent product is a no-op.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID int64) (*models.Cart, error) {
	return s.mutate(ctx, "remove", userID, s.GetOrCreateCart, func(ctx context.Context, cart *models.Cart) ([]stockChange, error) {
		i := cart.Find(productID)
		if i < 0 {
			return nil, errUnchanged
		}
		held := cart.Items[i].Quantity
		cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
		return []stockChange{{productID: productID, delta: -held}}, nil
	})
}

// Clear empties the cart and releases all of its stock
func (s *CartService) Clear(ctx context.Context, userID int64) (*models.Cart, error) {
	return s.mutate(ctx, "clear", userID, s.findCart, func(ctx context.Context, cart *models.Cart) ([]stockChange, error) {
		if len(cart.Items) == 0 {
			return nil, errUnchanged
		}
		changes := make([]stockChange, 0, len(cart.Items))
		for _, item := range cart.Items {
			changes = append(changes, stockChange{productID: item.ProductID, delta: -item.Quantity})
		}
		cart.Items = []models.CartItem{}
		return changes, nil
	})
}

func (s *CartService) findCart(ctx context.Context, userID int64) (*models.Cart, error) {
	cart, err := s.carts.FindByUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("cart not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to get cart", err)
	}
	return cart, nil
}

func (s *CartService) product(ctx context.Context, productID int64) (*models.Product, error) {
	product, err := s.products.FindByID(ctx, productID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("product not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to get product", err)
	}
	return product, nil
}

// mutate runs apply under the user's cart lock. Reservations are taken before
// the save and reverted if it fails; releases happen only once the save commits.
func (s *CartService) mutate(
	ctx context.Context,
	op string,
	userID int64,
	load func(context.Context, int64) (*models.Cart, error),
	apply mutation,
) (*models.Cart, error) {
	release, err := s.locker.Acquire(ctx, lock.CartKey(userID))
	if err != nil {
		err = apperr.Internal("failed to acquire cart lock", err)
		s.recordOutcome(ctx, op, err)
		return nil, err
	}
	defer release()

	for attempt := 1; ; attempt++ {
		cart, err := s.attempt(ctx, userID, load, apply)
		if errors.Is(err, repository.ErrVersionConflict) && attempt < maxSaveAttempts {
			log.Ctx(ctx).Debug().Int64("user_id", userID).Int("attempt", attempt).Msg("Cart version conflict, retrying")
			continue
		}
		if errors.Is(err, repository.ErrVersionConflict) {
			err = apperr.New(apperr.KindConflict, "cart was modified concurrently", err)
		}
		s.recordOutcome(ctx, op, err)
		if err != nil {
			return nil, err
		}
		return s.present(ctx, cart), nil
	}
}

func (s *CartService) attempt(
	ctx context.Context,
	userID int64,
	load func(context.Context, int64) (*models.Cart, error),
	apply mutation,
) (*models.Cart, error) {
	cart, err := load(ctx, userID)
	if err != nil {
		return nil, err
	}

	changes, err := apply(ctx, cart)
	if errors.Is(err, errUnchanged) {
		return cart, nil
	}
	if err != nil {
		return nil, err
	}

	reserved, err := s.reserve(ctx, changes)
	if err != nil {
		return nil, err
	}

	if err := s.carts.Save(ctx, cart); err != nil {
		s.revert(ctx, reserved)
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}
		return nil, apperr.Internal("failed to save cart", err)
	}

	s.releaseStock(ctx, changes)
	return cart, nil
}

// reserve takes every positive change. On failure the ones already taken are returned.
func (s *CartService) reserve(ctx context.Context, changes []stockChange) ([]stockChange, error) {
	var reserved []stockChange
	for _, c := range changes {
		if c.delta <= 0 {
			continue
		}
		err := s.products.ReserveStock(ctx, c.productID, c.delta)
		if err != nil {
			s.revert(ctx, reserved)
			switch {
			case errors.Is(err, repository.ErrInsufficientStock):
				return nil, apperr.InsufficientStock("not enough stock available")
			case errors.Is(err, repository.ErrNotFound):
				return nil, apperr.NotFound("product not found")
			default:
				return nil, apperr.Internal("failed to reserve stock", err)
			}
		}
		s.metrics.RecordStock(ctx, "reserve", c.productID, c.delta)
		reserved = append(reserved, c)
	}
	return reserved, nil
}

func (s *CartService) revert(ctx context.Context, reserved []stockChange) {
	for _, c := range reserved {
		if err := s.products.ReleaseStock(ctx, c.productID, c.delta); err != nil {
			log.Ctx(ctx).Error().Err(err).Int64("product_id", c.productID).Int("quantity", c.delta).
				Msg("Failed to revert stock reservation")
			continue
		}
		s.metrics.RecordStock(ctx, "revert", c.productID, c.delta)
	}
}

// releaseStock returns every negative change to stock after the cart is saved
func (s *CartService) releaseStock(ctx context.Context, changes []stockChange) {
	for _, c := range changes {
		if c.delta >= 0 {
			continue
		}
		if err := s.products.ReleaseStock(ctx, c.productID, -c.delta); err != nil {
			log.Ctx(ctx).Error().Err(err).Int64("product_id", c.productID).Int("quantity", -c.delta).
				Msg("Failed to release stock")
			continue
		}
		s.metrics.RecordStock(ctx, "release", c.productID, -c.delta)
	}
}

// present populates product summaries, recomputes the total and records the line gauge
func (s *CartService) present(ctx context.Context, cart *models.Cart) *models.Cart {
	ids := make([]int64, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}

	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Int64("user_id", cart.UserID).Msg("Failed to populate cart products")
	}
	for i := range cart.Items {
		if p, ok := products[cart.Items[i].ProductID]; ok {
			cart.Items[i].Product = p.Summary()
		}
	}
	cart.Recalculate()

	cartAttrs := s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.Int64("user_id", cart.UserID),
	})
	s.metrics.CartItemsCount.Record(ctx, int64(len(cart.Items)), metric.WithAttributes(cartAttrs...))
	return cart
}

func (s *CartService) recordOutcome(ctx context.Context, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
	}
	s.metrics.RecordCartMutation(ctx, op, outcome)
}
