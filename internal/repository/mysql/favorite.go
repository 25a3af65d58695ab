package mysql

import (
	"context"
	"fmt"
	"time"

	"github.com/SigNoz/storefront-go-app/internal/db"
	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/SigNoz/storefront-go-app/internal/repository"
)

// FavoriteRepo implements repository.FavoriteRepository
type FavoriteRepo struct{ base }

func (r *FavoriteRepo) Create(ctx context.Context, f *models.Favorite) error {
	start := time.Now()
	query := "INSERT INTO favorites (user_id, product_id, added_at) VALUES (?, ?, ?)"
	result, err := r.db.ExecContext(ctx, query, f.UserID, f.ProductID, f.AddedAt)
	r.record(ctx, "INSERT", "favorites", query, start, err)
	if db.IsDuplicate(err) {
		return repository.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create favorite: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get favorite ID: %w", err)
	}
	f.ID = id
	return nil
}

func (r *FavoriteRepo) Delete(ctx context.Context, userID, productID int64) error {
	query := "DELETE FROM favorites WHERE user_id = ? AND product_id = ?"
	rows, err := r.exec(ctx, "DELETE", "favorites", query, userID, productID)
	if err != nil {
		return fmt.Errorf("failed to delete favorite: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *FavoriteRepo) Exists(ctx context.Context, userID, productID int64) (bool, error) {
	start := time.Now()
	query := "SELECT EXISTS(SELECT 1 FROM favorites WHERE user_id = ? AND product_id = ?)"
	var exists bool
	err := r.db.QueryRowContext(ctx, query, userID, productID).Scan(&exists)
	r.record(ctx, "SELECT", "favorites", query, start, err)
	if err != nil {
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}
	return exists, nil
}

func (r *FavoriteRepo) ListByUser(ctx context.Context, userID int64) ([]models.Favorite, error) {
	start := time.Now()
	query := "SELECT id, user_id, product_id, added_at FROM favorites WHERE user_id = ? ORDER BY added_at DESC, id DESC"
	rows, err := r.db.QueryContext(ctx, query, userID)
	r.record(ctx, "SELECT", "favorites", query, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	var favorites []models.Favorite
	for rows.Next() {
		var f models.Favorite
		if err := rows.Scan(&f.ID, &f.UserID, &f.ProductID, &f.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		favorites = append(favorites, f)
	}
	return favorites, rows.Err()
}

func (r *FavoriteRepo) CountByProduct(ctx context.Context) (map[int64]int, error) {
	start := time.Now()
	query := "SELECT product_id, COUNT(*) FROM favorites GROUP BY product_id"
	rows, err := r.db.QueryContext(ctx, query)
	r.record(ctx, "SELECT", "favorites", query, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to count favorites: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var productID int64
		var count int
		if err := rows.Scan(&productID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan favorite count: %w", err)
		}
		counts[productID] = count
	}
	return counts, rows.Err()
}
