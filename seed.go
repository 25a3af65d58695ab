package main

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/SigNoz/storefront-go-app/internal/repository"
)

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func oldPrice(s string) *decimal.Decimal {
	d := price(s)
	return &d
}

// seedCatalog fills an empty in-memory store with a few products to browse
func seedCatalog(ctx context.Context, products repository.ProductRepository) error {
	catalog := []models.Product{
		{
			Name:        "Trail Runner",
			Description: "Lightweight running shoe with a grippy outsole",
			Brand:       "Northpeak",
			Category:    "shoes",
			Price:       price("89.90"),
			OldPrice:    oldPrice("119.00"),
			Stock:       25,
			Sizes:       []models.SizeVariant{{Name: "42", Stock: 10}, {Name: "43", Stock: 15}},
			Colors:      []models.ColorVariant{{Name: "slate", Code: "#4a5568", Stock: 25}},
			MainImage:   "/images/trail-runner.jpg",
			IsActive:    true,
		},
		{
			Name:        "Canvas Tote",
			Description: "Heavy cotton tote bag",
			Brand:       "Fieldhouse",
			Category:    "bags",
			Price:       price("24.00"),
			Stock:       60,
			Reviews:     []models.Review{{UserID: 1, Rating: 5, Comment: "Holds everything"}, {UserID: 2, Rating: 4}},
			MainImage:   "/images/canvas-tote.jpg",
			IsActive:    true,
		},
		{
			Name:        "Merino Beanie",
			Description: "Soft knit beanie",
			Brand:       "Northpeak",
			Category:    "accessories",
			Price:       price("19.50"),
			Stock:       3,
			MainImage:   "/images/merino-beanie.jpg",
			IsActive:    true,
		},
	}

	for i := range catalog {
		if err := products.Create(ctx, &catalog[i]); err != nil {
			return err
		}
	}
	return nil
}
