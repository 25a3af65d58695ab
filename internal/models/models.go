package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ColorVariant is a color option with its own stock
type ColorVariant struct {
	Name   string   `json:"name"`
	Code   string   `json:"code,omitempty"`
	Images []string `json:"images,omitempty"`
	Stock  int      `json:"stock"`
}

// SizeVariant is a size option with its own stock
type SizeVariant struct {
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

// Review is a user rating of a product
type Review struct {
	UserID    int64     `json:"userId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// Rating is derived from a product's reviews
type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Product represents a product in the catalog
type Product struct {
	ID                 int64            `json:"id"`
	Name               string           `json:"name"`
	Description        string           `json:"description"`
	Brand              string           `json:"brand"`
	Category           string           `json:"category"`
	Price              decimal.Decimal  `json:"price"`
	OldPrice           *decimal.Decimal `json:"oldPrice,omitempty"`
	Stock              int              `json:"stock"`
	Colors             []ColorVariant   `json:"colors,omitempty"`
	Sizes              []SizeVariant    `json:"sizes,omitempty"`
	Reviews            []Review         `json:"reviews,omitempty"`
	Rating             Rating           `json:"rating"`
	Favorites          int              `json:"favorites"`
	IsDiscounted       bool             `json:"isDiscounted"`
	DiscountPercentage int              `json:"discountPercentage"`
	MainImage          string           `json:"mainImage"`
	IsActive           bool             `json:"isActive"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

var hundred = decimal.NewFromInt(100)

// Derive recomputes the discount and rating fields. Every product write calls it.
func (p *Product) Derive() {
	p.IsDiscounted = false
	p.DiscountPercentage = 0
	if p.OldPrice != nil && p.OldPrice.IsPositive() && p.OldPrice.GreaterThan(p.Price) {
		p.IsDiscounted = true
		p.DiscountPercentage = int(p.OldPrice.Sub(p.Price).Div(*p.OldPrice).Mul(hundred).Round(0).IntPart())
	}
	p.Rating = RatingOf(p.Reviews)
}

// RatingOf returns the arithmetic mean of the review ratings
func RatingOf(reviews []Review) Rating {
	if len(reviews) == 0 {
		return Rating{}
	}
	total := 0
	for _, r := range reviews {
		total += r.Rating
	}
	return Rating{
		Average: float64(total) / float64(len(reviews)),
		Count:   len(reviews),
	}
}

// Summary returns the display fields used to populate cart lines
func (p *Product) Summary() *ProductSummary {
	return &ProductSummary{
		ID:    p.ID,
		Name:  p.Name,
		Price: p.Price,
		Image: p.MainImage,
	}
}

// Clone returns a deep copy
func (p *Product) Clone() *Product {
	c := *p
	if p.OldPrice != nil {
		old := *p.OldPrice
		c.OldPrice = &old
	}
	c.Colors = append([]ColorVariant(nil), p.Colors...)
	c.Sizes = append([]SizeVariant(nil), p.Sizes...)
	c.Reviews = append([]Review(nil), p.Reviews...)
	return &c
}

// ProductSummary is the product view embedded in cart lines
type ProductSummary struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"image"`
}

// Cart represents a shopping cart. TotalAmount is derived, never stored.
type Cart struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"userId"`
	Items       []CartItem      `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Version     int64           `json:"-"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// CartItem is a cart line with the price snapshot taken at the last add or update
type CartItem struct {
	ProductID int64           `json:"productId"`
	Product   *ProductSummary `json:"product,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Find returns the index of the line for productID, or -1
func (c *Cart) Find(productID int64) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Recalculate sets TotalAmount to the sum of price × quantity
func (c *Cart) Recalculate() {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	c.TotalAmount = total
}

// Clone returns a deep copy without populated products
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Items = make([]CartItem, len(c.Items))
	for i, item := range c.Items {
		item.Product = nil
		cp.Items[i] = item
	}
	return &cp
}

// Favorite is a per-user bookmark of a product
type Favorite struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	ProductID int64     `json:"productId"`
	Product   *Product  `json:"product,omitempty"`
	AddedAt   time.Time `json:"addedAt"`
}

// AddToCartRequest represents a request to add item to cart
type AddToCartRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// UpdateCartItemRequest represents a request to change a line quantity
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// AddFavoriteRequest carries the product when it is not in the path
type AddFavoriteRequest struct {
	ProductID int64 `json:"productId"`
}

// FavoriteStatus answers the favorite check endpoint
type FavoriteStatus struct {
	IsFavorite bool `json:"isFavorite"`
}

// ReconcileReport summarizes a counter reconciliation pass
type ReconcileReport struct {
	ProductsScanned    int `json:"productsScanned"`
	FavoritesCorrected int `json:"favoritesCorrected"`
	RatingsCorrected   int `json:"ratingsCorrected"`
}
