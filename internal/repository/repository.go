// Package repository declares the document stores the engines depend on.
// Each store offers per-document atomic updates; nothing here spans documents.
package repository

import (
	"context"
	"errors"

	"github.com/SigNoz/storefront-go-app/internal/models"
)

var (
	// ErrNotFound is returned when the addressed document does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate record")
	// ErrVersionConflict is returned by Save when the document changed since it was read.
	ErrVersionConflict = errors.New("version conflict")
	// ErrInsufficientStock is returned when a conditional stock decrement would go negative.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ProductRepository owns product documents.
type ProductRepository interface {
	// Create inserts p, deriving discount and rating fields first.
	Create(ctx context.Context, p *models.Product) error
	// Update rewrites p's catalog fields, deriving discount and rating fields first.
	// Stock and the favorites counter are only changed through the dedicated methods.
	Update(ctx context.Context, p *models.Product) error
	FindByID(ctx context.Context, id int64) (*models.Product, error)
	// FindByIDs returns the products that exist among ids, keyed by id.
	FindByIDs(ctx context.Context, ids []int64) (map[int64]*models.Product, error)
	List(ctx context.Context, limit, offset int) ([]models.Product, error)

	// ReserveStock decrements stock by quantity only if the result stays >= 0.
	// Returns ErrNotFound or ErrInsufficientStock.
	ReserveStock(ctx context.Context, id int64, quantity int) error
	// ReleaseStock returns quantity units to stock.
	ReleaseStock(ctx context.Context, id int64, quantity int) error

	// AdjustFavorites adds delta to the favorites counter, never going below zero.
	AdjustFavorites(ctx context.Context, id int64, delta int) error
	// SetFavoriteCount sets the counter to count if it still equals expected.
	SetFavoriteCount(ctx context.Context, id int64, expected, count int) (bool, error)
	// UpdateRating overwrites the derived rating.
	UpdateRating(ctx context.Context, id int64, rating models.Rating) error
}

// CartRepository owns one cart document per user.
type CartRepository interface {
	FindByUser(ctx context.Context, userID int64) (*models.Cart, error)
	// Create inserts an empty cart. Returns ErrDuplicate if the user already has one.
	Create(ctx context.Context, userID int64) (*models.Cart, error)
	// Save writes cart.Items if cart.Version matches the stored version, then
	// increments cart.Version. Returns ErrVersionConflict otherwise.
	Save(ctx context.Context, cart *models.Cart) error
}

// FavoriteRepository owns one record per (user, product).
type FavoriteRepository interface {
	// Create inserts f and sets its ID. Returns ErrDuplicate for an existing pair.
	Create(ctx context.Context, f *models.Favorite) error
	// Delete removes the pair. Returns ErrNotFound if absent.
	Delete(ctx context.Context, userID, productID int64) error
	Exists(ctx context.Context, userID, productID int64) (bool, error)
	// ListByUser returns favorites newest first by AddedAt.
	ListByUser(ctx context.Context, userID int64) ([]models.Favorite, error)
	// CountByProduct returns the number of favorite records per product.
	CountByProduct(ctx context.Context) (map[int64]int, error)
}

// Store groups the three repositories of one backend.
type Store struct {
	Products  ProductRepository
	Carts     CartRepository
	Favorites FavoriteRepository
}
