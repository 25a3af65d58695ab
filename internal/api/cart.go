package api

import (
	"net/http"

	"github.com/SigNoz/storefront-go-app/internal/apperr"
	"github.com/SigNoz/storefront-go-app/internal/models"
)

// GetCartHandler handles GET /api/v1/cart
func (a *App) GetCartHandler(w http.ResponseWriter, r *http.Request) {
	cart, err := a.cartService.GetCart(r.Context(), userID(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// AddCartItemHandler handles POST /api/v1/cart/items
func (a *App) AddCartItemHandler(w http.ResponseWriter, r *http.Request) {
	var req models.AddToCartRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.ProductID <= 0 {
		a.writeError(w, r, apperr.InvalidArgument("productId is required"))
		return
	}

	cart, created, err := a.cartService.AddItem(r.Context(), userID(r), req.ProductID, req.Quantity)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, cart)
}

// UpdateCartItemHandler handles PUT /api/v1/cart/items/{productId}
func (a *App) UpdateCartItemHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productId")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req models.UpdateCartItemRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	cart, err := a.cartService.UpdateItem(r.Context(), userID(r), productID, req.Quantity)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// RemoveCartItemHandler handles DELETE /api/v1/cart/items/{productId}
func (a *App) RemoveCartItemHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productId")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	cart, err := a.cartService.RemoveItem(r.Context(), userID(r), productID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// ClearCartHandler handles DELETE /api/v1/cart
func (a *App) ClearCartHandler(w http.ResponseWriter, r *http.Request) {
	cart, err := a.cartService.Clear(r.Context(), userID(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}
