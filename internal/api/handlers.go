package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/SigNoz/storefront-go-app/internal/apperr"
	"github.com/SigNoz/storefront-go-app/internal/metrics"
	"github.com/SigNoz/storefront-go-app/internal/middleware"
	"github.com/SigNoz/storefront-go-app/internal/services"
	"github.com/SigNoz/storefront-go-app/pkg/config"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// App holds application dependencies
type App struct {
	config           *config.Config
	metrics          *metrics.AppMetrics
	productService   *services.ProductService
	cartService      *services.CartService
	favoritesService *services.FavoriteService
	reconciler       *services.Reconciler
}

// NewApp creates a new application instance
func NewApp(
	cfg *config.Config,
	m *metrics.AppMetrics,
	ps *services.ProductService,
	cs *services.CartService,
	fs *services.FavoriteService,
	rc *services.Reconciler,
) *App {
	return &App{
		config:           cfg,
		metrics:          m,
		productService:   ps,
		cartService:      cs,
		favoritesService: fs,
		reconciler:       rc,
	}
}

// SetupRoutes configures the HTTP routes
func (a *App) SetupRoutes(r *mux.Router) {
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.MetricsMiddleware(a.metrics))
	r.Use(middleware.RecoverMiddleware)
	r.Use(middleware.CORSMiddleware)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.writeStatus(w, r, http.StatusNotFound, string(apperr.KindNotFound), "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.writeStatus(w, r, http.StatusMethodNotAllowed, string(apperr.KindInvalidArgument), "method not allowed")
	})

	auth := middleware.AuthMiddleware([]byte(a.config.JWTSecret), a.writeStatus)
	api := r.PathPrefix("/api/v1").Subrouter()

	// Products
	api.HandleFunc("/products", a.ListProductsHandler).Methods("GET")
	api.HandleFunc("/products/{id}", a.GetProductHandler).Methods("GET")

	// Cart
	cart := api.PathPrefix("/cart").Subrouter()
	cart.Use(auth)
	cart.HandleFunc("", a.GetCartHandler).Methods("GET")
	cart.HandleFunc("", a.ClearCartHandler).Methods("DELETE")
	cart.HandleFunc("/items", a.AddCartItemHandler).Methods("POST")
	cart.HandleFunc("/items/{productId}", a.UpdateCartItemHandler).Methods("PUT")
	cart.HandleFunc("/items/{productId}", a.RemoveCartItemHandler).Methods("DELETE")

	// Favorites
	favorites := api.PathPrefix("/favorites").Subrouter()
	favorites.Use(auth)
	favorites.HandleFunc("", a.ListFavoritesHandler).Methods("GET")
	favorites.HandleFunc("", a.AddFavoriteHandler).Methods("POST")
	favorites.HandleFunc("/check/{productId}", a.CheckFavoriteHandler).Methods("GET")
	favorites.HandleFunc("/{productId}", a.AddFavoriteHandler).Methods("POST")
	favorites.HandleFunc("/{productId}", a.RemoveFavoriteHandler).Methods("DELETE")

	// Maintenance
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(auth, middleware.RequireRole(middleware.RoleAdmin, a.writeStatus))
	admin.HandleFunc("/reconcile", a.ReconcileHandler).Methods("POST")

	// Health
	r.HandleFunc("/health", a.HealthHandler).Methods("GET")
}

// HealthHandler handles health check requests
func (a *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ListProductsHandler handles GET /api/v1/products
func (a *App) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultPageSize
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = min(parsed, maxPageSize)
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	products, err := a.productService.ListProducts(r.Context(), limit, offset)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// GetProductHandler handles GET /api/v1/products/{id}
func (a *App) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	product, err := a.productService.GetProduct(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// ReconcileHandler handles POST /api/v1/admin/reconcile
func (a *App) ReconcileHandler(w http.ResponseWriter, r *http.Request) {
	report, err := a.reconciler.Reconcile(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps err to its status and a client-safe body
func (a *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.Status(kind)
	if status >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}

	body := errorBody{Error: errorDetail{Code: string(kind), Message: apperr.Message(err)}}
	if a.config.IsDevelopment() {
		body.Error.Detail = err.Error()
	}
	writeJSON(w, status, body)
}

func (a *App) writeStatus(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.InvalidArgument("invalid " + name)
	}
	return id, nil
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.New(apperr.KindInvalidArgument, "invalid request body", err)
	}
	return nil
}

// userID is the caller set by the auth middleware on every cart and favorite route
func userID(r *http.Request) int64 {
	identity, _ := middleware.IdentityFrom(r.Context())
	return identity.UserID
}
