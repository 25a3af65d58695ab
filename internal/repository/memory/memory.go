// Package memory is an in-process Store used by tests and STORE_DRIVER=memory.
// Every method runs under one mutex, which gives the per-document atomicity the
// MySQL store gets from single statements.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/SigNoz/storefront-go-app/internal/repository"
)

type favoriteKey struct {
	userID    int64
	productID int64
}

type state struct {
	mu        sync.Mutex
	nextID    int64
	products  map[int64]*models.Product
	carts     map[int64]*models.Cart
	favorites map[favoriteKey]*models.Favorite
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// NewStore returns an empty in-memory store
func NewStore() repository.Store {
	st := &state{
		products:  make(map[int64]*models.Product),
		carts:     make(map[int64]*models.Cart),
		favorites: make(map[favoriteKey]*models.Favorite),
	}
	return repository.Store{
		Products:  &Products{st},
		Carts:     &Carts{st},
		Favorites: &Favorites{st},
	}
}

// Products implements repository.ProductRepository
type Products struct{ s *state }

func (r *Products) Create(ctx context.Context, p *models.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p.Derive()
	now := time.Now().UTC()
	p.ID = r.s.id()
	p.CreatedAt, p.UpdatedAt = now, now
	r.s.products[p.ID] = p.Clone()
	return nil
}

func (r *Products) Update(ctx context.Context, p *models.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.products[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	p.Derive()
	p.Stock, p.Favorites, p.CreatedAt = cur.Stock, cur.Favorites, cur.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	r.s.products[p.ID] = p.Clone()
	return nil
}

func (r *Products) FindByID(ctx context.Context, id int64) (*models.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *Products) FindByIDs(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make(map[int64]*models.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok {
			out[id] = p.Clone()
		}
	}
	return out, nil
}

func (r *Products) List(ctx context.Context, limit, offset int) ([]models.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ids := make([]int64, 0, len(r.s.products))
	for id := range r.s.products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if offset >= len(ids) {
		return nil, nil
	}
	ids = ids[offset:]
	if limit >= 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.s.products[id].Clone())
	}
	return out, nil
}

func (r *Products) ReserveStock(ctx context.Context, id int64, quantity int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Stock < quantity {
		return repository.ErrInsufficientStock
	}
	p.Stock -= quantity
	return nil
}

func (r *Products) ReleaseStock(ctx context.Context, id int64, quantity int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Stock += quantity
	return nil
}

func (r *Products) AdjustFavorites(ctx context.Context, id int64, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Favorites = max(p.Favorites+delta, 0)
	return nil
}

func (r *Products) SetFavoriteCount(ctx context.Context, id int64, expected, count int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if p.Favorites != expected {
		return false, nil
	}
	p.Favorites = count
	return true, nil
}

func (r *Products) UpdateRating(ctx context.Context, id int64, rating models.Rating) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Rating = rating
	return nil
}

// Carts implements repository.CartRepository
type Carts struct{ s *state }

func (r *Carts) FindByUser(ctx context.Context, userID int64) (*models.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.carts[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *Carts) Create(ctx context.Context, userID int64) (*models.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.carts[userID]; ok {
		return nil, repository.ErrDuplicate
	}
	now := time.Now().UTC()
	c := &models.Cart{
		ID:        r.s.id(),
		UserID:    userID,
		Items:     []models.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.s.carts[userID] = c
	return c.Clone(), nil
}

func (r *Carts) Save(ctx context.Context, cart *models.Cart) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.carts[cart.UserID]
	if !ok || cur.ID != cart.ID {
		return repository.ErrNotFound
	}
	if cur.Version != cart.Version {
		return repository.ErrVersionConflict
	}
	cart.Version++
	cart.UpdatedAt = time.Now().UTC()
	r.s.carts[cart.UserID] = cart.Clone()
	return nil
}

// Favorites implements repository.FavoriteRepository
type Favorites struct{ s *state }

func (r *Favorites) Create(ctx context.Context, f *models.Favorite) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := favoriteKey{f.UserID, f.ProductID}
	if _, ok := r.s.favorites[key]; ok {
		return repository.ErrDuplicate
	}
	f.ID = r.s.id()
	stored := *f
	stored.Product = nil
	r.s.favorites[key] = &stored
	return nil
}

func (r *Favorites) Delete(ctx context.Context, userID, productID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := favoriteKey{userID, productID}
	if _, ok := r.s.favorites[key]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.favorites, key)
	return nil
}

func (r *Favorites) Exists(ctx context.Context, userID, productID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	_, ok := r.s.favorites[favoriteKey{userID, productID}]
	return ok, nil
}

func (r *Favorites) ListByUser(ctx context.Context, userID int64) ([]models.Favorite, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []models.Favorite
	for key, f := range r.s.favorites {
		if key.userID == userID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].AddedAt.After(out[j].AddedAt)
	})
	return out, nil
}

func (r *Favorites) CountByProduct(ctx context.Context) (map[int64]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make(map[int64]int)
	for key := range r.s.favorites {
		out[key.productID]++
	}
	return out, nil
}
