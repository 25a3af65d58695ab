package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SigNoz/storefront-go-app/internal/db"
	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/SigNoz/storefront-go-app/internal/repository"
)

// CartRepo implements repository.CartRepository
type CartRepo struct{ base }

// storedItem is the persisted shape of a cart line
type storedItem struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func (r *CartRepo) FindByUser(ctx context.Context, userID int64) (*models.Cart, error) {
	start := time.Now()
	query := "SELECT id, user_id, items, version, created_at, updated_at FROM carts WHERE user_id = ?"
	var cart models.Cart
	var items []byte
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&cart.ID, &cart.UserID, &items, &cart.Version, &cart.CreatedAt, &cart.UpdatedAt,
	)
	r.record(ctx, "SELECT", "carts", query, start, err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	var stored []storedItem
	if err := unmarshalJSON(items, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode cart items: %w", err)
	}
	cart.Items = make([]models.CartItem, 0, len(stored))
	for _, s := range stored {
		cart.Items = append(cart.Items, models.CartItem{ProductID: s.ProductID, Quantity: s.Quantity, Price: s.Price})
	}
	return &cart, nil
}

func (r *CartRepo) Create(ctx context.Context, userID int64) (*models.Cart, error) {
	start := time.Now()
	query := "INSERT INTO carts (user_id, items) VALUES (?, ?)"
	result, err := r.db.ExecContext(ctx, query, userID, "[]")
	r.record(ctx, "INSERT", "carts", query, start, err)
	if db.IsDuplicate(err) {
		return nil, repository.ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get cart ID: %w", err)
	}

	now := time.Now().UTC()
	return &models.Cart{
		ID:        id,
		UserID:    userID,
		Items:     []models.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (r *CartRepo) Save(ctx context.Context, cart *models.Cart) error {
	stored := make([]storedItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		stored = append(stored, storedItem{ProductID: item.ProductID, Quantity: item.Quantity, Price: item.Price})
	}
	items, err := marshalJSON(stored)
	if err != nil {
		return fmt.Errorf("failed to encode cart items: %w", err)
	}

	query := "UPDATE carts SET items = ?, version = version + 1 WHERE id = ? AND version = ?"
	rows, err := r.exec(ctx, "UPDATE", "carts", query, items, cart.ID, cart.Version)
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	if rows == 0 {
		return repository.ErrVersionConflict
	}
	cart.Version++
	cart.UpdatedAt = time.Now().UTC()
	return nil
}
