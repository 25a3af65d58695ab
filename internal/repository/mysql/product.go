package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/SigNoz/storefront-go-app/internal/repository"
)

const productColumns = `id, name, description, brand, category, price, old_price, stock, colors, sizes, reviews,
	rating_average, rating_count, favorites, is_discounted, discount_percentage, main_image, is_active, created_at, updated_at`

// ProductRepo implements repository.ProductRepository
type ProductRepo struct{ base }

func scanProduct(row scanner) (*models.Product, error) {
	var p models.Product
	var oldPrice decimal.NullDecimal
	var colors, sizes, reviews []byte
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Brand, &p.Category, &p.Price, &oldPrice, &p.Stock,
		&colors, &sizes, &reviews, &p.Rating.Average, &p.Rating.Count, &p.Favorites,
		&p.IsDiscounted, &p.DiscountPercentage, &p.MainImage, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if oldPrice.Valid {
		v := oldPrice.Decimal
		p.OldPrice = &v
	}
	if err := unmarshalJSON(colors, &p.Colors); err != nil {
		return nil, fmt.Errorf("failed to decode colors: %w", err)
	}
	if err := unmarshalJSON(sizes, &p.Sizes); err != nil {
		return nil, fmt.Errorf("failed to decode sizes: %w", err)
	}
	if err := unmarshalJSON(reviews, &p.Reviews); err != nil {
		return nil, fmt.Errorf("failed to decode reviews: %w", err)
	}
	return &p, nil
}

// documentArgs encodes the catalog fields shared by insert and update
func documentArgs(p *models.Product) ([]any, error) {
	colors, err := marshalJSON(nonNil(p.Colors))
	if err != nil {
		return nil, fmt.Errorf("failed to encode colors: %w", err)
	}
	sizes, err := marshalJSON(nonNil(p.Sizes))
	if err != nil {
		return nil, fmt.Errorf("failed to encode sizes: %w", err)
	}
	reviews, err := marshalJSON(nonNil(p.Reviews))
	if err != nil {
		return nil, fmt.Errorf("failed to encode reviews: %w", err)
	}
	var oldPrice decimal.NullDecimal
	if p.OldPrice != nil {
		oldPrice = decimal.NewNullDecimal(*p.OldPrice)
	}
	return []any{
		p.Name, p.Description, p.Brand, p.Category, p.Price, oldPrice,
		colors, sizes, reviews, p.Rating.Average, p.Rating.Count,
		p.IsDiscounted, p.DiscountPercentage, p.MainImage, p.IsActive,
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (r *ProductRepo) Create(ctx context.Context, p *models.Product) error {
	p.Derive()
	args, err := documentArgs(p)
	if err != nil {
		return err
	}
	args = append(args, p.Stock, p.Favorites)

	start := time.Now()
	query := `INSERT INTO products (name, description, brand, category, price, old_price, colors, sizes, reviews,
		rating_average, rating_count, is_discounted, discount_percentage, main_image, is_active, stock, favorites)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query, args...)
	r.record(ctx, "INSERT", "products", query, start, err)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get product ID: %w", err)
	}
	p.ID = id
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	return nil
}

func (r *ProductRepo) Update(ctx context.Context, p *models.Product) error {
	p.Derive()
	args, err := documentArgs(p)
	if err != nil {
		return err
	}
	args = append(args, p.ID)

	query := `UPDATE products SET name = ?, description = ?, brand = ?, category = ?, price = ?, old_price = ?,
		colors = ?, sizes = ?, reviews = ?, rating_average = ?, rating_count = ?, is_discounted = ?,
		discount_percentage = ?, main_image = ?, is_active = ? WHERE id = ?`
	rows, err := r.exec(ctx, "UPDATE", "products", query, args...)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ProductRepo) FindByID(ctx context.Context, id int64) (*models.Product, error) {
	start := time.Now()
	query := "SELECT " + productColumns + " FROM products WHERE id = ?"
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	r.record(ctx, "SELECT", "products", query, start, err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

func (r *ProductRepo) FindByIDs(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	out := make(map[int64]*models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		args[i] = id
		placeholders[i] = "?"
	}

	start := time.Now()
	query := fmt.Sprintf("SELECT %s FROM products WHERE id IN (%s)", productColumns, strings.Join(placeholders, ","))
	rows, err := r.db.QueryContext(ctx, query, args...)
	r.record(ctx, "SELECT", "products", query, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *ProductRepo) List(ctx context.Context, limit, offset int) ([]models.Product, error) {
	start := time.Now()
	query := "SELECT " + productColumns + " FROM products ORDER BY id LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	r.record(ctx, "SELECT", "products", query, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (r *ProductRepo) ReserveStock(ctx context.Context, id int64, quantity int) error {
	query := "UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?"
	rows, err := r.exec(ctx, "UPDATE", "products", query, quantity, id, quantity)
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}
	if rows > 0 {
		return nil
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrInsufficientStock
}

func (r *ProductRepo) ReleaseStock(ctx context.Context, id int64, quantity int) error {
	query := "UPDATE products SET stock = stock + ? WHERE id = ?"
	rows, err := r.exec(ctx, "UPDATE", "products", query, quantity, id)
	if err != nil {
		return fmt.Errorf("failed to release stock: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ProductRepo) AdjustFavorites(ctx context.Context, id int64, delta int) error {
	query := "UPDATE products SET favorites = GREATEST(favorites + ?, 0) WHERE id = ?"
	rows, err := r.exec(ctx, "UPDATE", "products", query, delta, id)
	if err != nil {
		return fmt.Errorf("failed to adjust favorites: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ProductRepo) SetFavoriteCount(ctx context.Context, id int64, expected, count int) (bool, error) {
	query := "UPDATE products SET favorites = ? WHERE id = ? AND favorites = ?"
	rows, err := r.exec(ctx, "UPDATE", "products", query, count, id, expected)
	if err != nil {
		return false, fmt.Errorf("failed to set favorites: %w", err)
	}
	return rows > 0, nil
}

func (r *ProductRepo) UpdateRating(ctx context.Context, id int64, rating models.Rating) error {
	query := "UPDATE products SET rating_average = ?, rating_count = ? WHERE id = ?"
	rows, err := r.exec(ctx, "UPDATE", "products", query, rating.Average, rating.Count, id)
	if err != nil {
		return fmt.Errorf("failed to update rating: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ProductRepo) exists(ctx context.Context, id int64) (bool, error) {
	start := time.Now()
	query := "SELECT EXISTS(SELECT 1 FROM products WHERE id = ?)"
	var exists bool
	err := r.db.QueryRowContext(ctx, query, id).Scan(&exists)
	r.record(ctx, "SELECT", "products", query, start, err)
	if err != nil {
		return false, fmt.Errorf("failed to verify product: %w", err)
	}
	return exists, nil
}
