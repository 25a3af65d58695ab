package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/SigNoz/storefront-go-app/internal/apperr"
	"github.com/SigNoz/storefront-go-app/internal/models"
)

// ListFavoritesHandler handles GET /api/v1/favorites
func (a *App) ListFavoritesHandler(w http.ResponseWriter, r *http.Request) {
	favorites, err := a.favoritesService.List(r.Context(), userID(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, favorites)
}

// AddFavoriteHandler handles POST /api/v1/favorites/{productId} and POST /api/v1/favorites
func (a *App) AddFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	var productID int64
	if _, inPath := mux.Vars(r)["productId"]; inPath {
		id, err := pathID(r, "productId")
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		productID = id
	} else {
		var req models.AddFavoriteRequest
		if err := decode(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		if req.ProductID <= 0 {
			a.writeError(w, r, apperr.InvalidArgument("productId is required"))
			return
		}
		productID = req.ProductID
	}

	favorite, err := a.favoritesService.Add(r.Context(), userID(r), productID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, favorite)
}

// RemoveFavoriteHandler handles DELETE /api/v1/favorites/{productId}
func (a *App) RemoveFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productId")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	if err := a.favoritesService.Remove(r.Context(), userID(r), productID); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckFavoriteHandler handles GET /api/v1/favorites/check/{productId}
func (a *App) CheckFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productId")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	ok, err := a.favoritesService.Check(r.Context(), userID(r), productID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.FavoriteStatus{IsFavorite: ok})
}
