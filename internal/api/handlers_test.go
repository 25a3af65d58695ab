package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SigNoz/storefront-go-app/internal/apperr"
	"github.com/SigNoz/storefront-go-app/internal/lock"
	"github.com/SigNoz/storefront-go-app/internal/metrics"
	"github.com/SigNoz/storefront-go-app/internal/middleware"
	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/SigNoz/storefront-go-app/internal/repository"
	"github.com/SigNoz/storefront-go-app/internal/repository/memory"
	"github.com/SigNoz/storefront-go-app/internal/services"
	"github.com/SigNoz/storefront-go-app/pkg/config"
)

const testSecret = "handler-secret"

type testServer struct {
	t      *testing.T
	router *mux.Router
	store  repository.Store
}

func newTestServer(t *testing.T, env string) *testServer {
	t.Helper()
	cfg := &config.Config{AppEnv: env, JWTSecret: testSecret}
	m := metrics.NewNoop()
	store := memory.NewStore()
	locker := lock.NewLocal(time.Second)

	favorites := services.NewFavoriteService(store.Favorites, store.Products, locker, m)
	app := NewApp(cfg, m,
		services.NewProductService(store.Products, m, time.Minute),
		services.NewCartService(store.Carts, store.Products, locker, m),
		favorites,
		services.NewReconciler(favorites, store.Products, m),
	)
	router := mux.NewRouter()
	app.SetupRoutes(router)
	return &testServer{t: t, router: router, store: store}
}

func (s *testServer) product(price string, stock int) *models.Product {
	p := &models.Product{Name: "Mug", Category: "kitchen", Price: decimal.RequireFromString(price), Stock: stock}
	require.NoError(s.t, s.store.Products.Create(context.Background(), p))
	return p
}

func (s *testServer) token(userID int64, role string) string {
	token, err := middleware.NewToken([]byte(testSecret), userID, role)
	require.NoError(s.t, err)
	return token
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) models.Cart {
	t.Helper()
	var cart models.Cart
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	return cart
}

func TestCartRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, "production")

	rec := s.do(http.MethodGet, "/api/v1/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorCode(t, rec))

	rec = s.do(http.MethodGet, "/api/v1/favorites", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartFlow(t *testing.T) {
	s := newTestServer(t, "production")
	p := s.product("7.50", 4)
	token := s.token(5, "")

	rec := s.do(http.MethodPost, "/api/v1/cart/items", token, models.AddToCartRequest{ProductID: p.ID, Quantity: 1})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/v1/cart/items", token, models.AddToCartRequest{ProductID: p.ID, Quantity: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeCart(t, rec)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(15).Equal(cart.TotalAmount))

	rec = s.do(http.MethodPost, "/api/v1/cart/items", token, models.AddToCartRequest{ProductID: p.ID, Quantity: 3})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "insufficient_stock", errorCode(t, rec))

	rec = s.do(http.MethodPut, "/api/v1/cart/items/"+itoa(p.ID), token, models.UpdateCartItemRequest{Quantity: 4})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, decodeCart(t, rec).Items[0].Quantity)

	rec = s.do(http.MethodPut, "/api/v1/cart/items/abc", token, models.UpdateCartItemRequest{Quantity: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodDelete, "/api/v1/cart/items/"+itoa(p.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Items)

	rec = s.do(http.MethodDelete, "/api/v1/cart", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/cart", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeCart(t, rec).TotalAmount.IsZero())
}

func TestCartBadRequests(t *testing.T) {
	s := newTestServer(t, "production")
	token := s.token(5, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_argument", errorCode(t, rec))

	rec = s.do(http.MethodPost, "/api/v1/cart/items", token, models.AddToCartRequest{ProductID: 1, Quantity: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodDelete, "/api/v1/cart", s.token(99, ""), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFavoriteFlow(t *testing.T) {
	s := newTestServer(t, "production")
	p := s.product("3.00", 1)
	q := s.product("4.00", 1)
	token := s.token(8, "")

	rec := s.do(http.MethodPost, "/api/v1/favorites/"+itoa(p.ID), token, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/v1/favorites/"+itoa(p.ID), token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", errorCode(t, rec))

	rec = s.do(http.MethodPost, "/api/v1/favorites", token, models.AddFavoriteRequest{ProductID: q.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/favorites/check/"+itoa(p.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"isFavorite":true}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/v1/favorites", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Favorite
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	rec = s.do(http.MethodDelete, "/api/v1/favorites/"+itoa(p.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodDelete, "/api/v1/favorites/"+itoa(p.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/favorites/check/"+itoa(p.ID), token, nil)
	assert.JSONEq(t, `{"isFavorite":false}`, rec.Body.String())
}

func TestReconcileRequiresAdmin(t *testing.T) {
	s := newTestServer(t, "production")
	p := s.product("3.00", 1)
	require.NoError(t, s.store.Products.AdjustFavorites(context.Background(), p.ID, 4))

	rec := s.do(http.MethodPost, "/api/v1/admin/reconcile", s.token(1, ""), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/admin/reconcile", s.token(1, middleware.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report models.ReconcileReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.FavoritesCorrected)
}

func TestProductRoutes(t *testing.T) {
	s := newTestServer(t, "production")
	p := s.product("3.00", 1)

	rec := s.do(http.MethodGet, "/api/v1/products?limit=500", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var products []models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	assert.Len(t, products, 1)

	rec = s.do(http.MethodGet, "/api/v1/products/"+itoa(p.ID), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/products/999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))

	rec = s.do(http.MethodGet, "/health", "", nil)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestErrorDetailOnlyInDevelopment(t *testing.T) {
	cause := apperr.Internal("failed to save cart", errors.New("deadlock found"))

	for env, wantDetail := range map[string]bool{"development": true, "production": false} {
		app := &App{config: &config.Config{AppEnv: env}}
		rec := httptest.NewRecorder()
		app.writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), cause)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var body errorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "internal", body.Error.Code)
		assert.Equal(t, "Internal Server Error", body.Error.Message)
		if wantDetail {
			assert.Contains(t, body.Error.Detail, "deadlock found", env)
		} else {
			assert.Empty(t, body.Error.Detail, env)
		}
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
