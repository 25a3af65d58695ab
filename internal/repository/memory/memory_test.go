package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/SigNoz/storefront-go-app/internal/repository"
)

type MemoryStoreTestSuite struct {
	suite.Suite
	ctx   context.Context
	store repository.Store
}

func (suite *MemoryStoreTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.store = NewStore()
}

func TestMemoryStoreTestSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreTestSuite))
}

func (suite *MemoryStoreTestSuite) createProduct(stock int) *models.Product {
	p := &models.Product{Name: "Lamp", Price: decimal.NewFromInt(40), Stock: stock}
	require.NoError(suite.T(), suite.store.Products.Create(suite.ctx, p))
	return p
}

func (suite *MemoryStoreTestSuite) TestReserveStockIsConditional() {
	p := suite.createProduct(3)
	products := suite.store.Products

	require.NoError(suite.T(), products.ReserveStock(suite.ctx, p.ID, 2))
	require.ErrorIs(suite.T(), products.ReserveStock(suite.ctx, p.ID, 2), repository.ErrInsufficientStock)
	require.ErrorIs(suite.T(), products.ReserveStock(suite.ctx, 999, 1), repository.ErrNotFound)

	require.NoError(suite.T(), products.ReleaseStock(suite.ctx, p.ID, 2))
	got, err := products.FindByID(suite.ctx, p.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 3, got.Stock)
}

func (suite *MemoryStoreTestSuite) TestUpdateKeepsCounters() {
	p := suite.createProduct(5)
	products := suite.store.Products
	require.NoError(suite.T(), products.AdjustFavorites(suite.ctx, p.ID, 2))

	p.Stock = 100
	p.Favorites = 0
	p.Reviews = []models.Review{{Rating: 4}, {Rating: 2}}
	require.NoError(suite.T(), products.Update(suite.ctx, p))

	got, err := products.FindByID(suite.ctx, p.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 5, got.Stock)
	require.Equal(suite.T(), 2, got.Favorites)
	require.Equal(suite.T(), models.Rating{Average: 3, Count: 2}, got.Rating)
}

func (suite *MemoryStoreTestSuite) TestFavoriteCounterFloorAndCAS() {
	p := suite.createProduct(1)
	products := suite.store.Products

	require.NoError(suite.T(), products.AdjustFavorites(suite.ctx, p.ID, -1))
	got, _ := products.FindByID(suite.ctx, p.ID)
	require.Zero(suite.T(), got.Favorites)

	ok, err := products.SetFavoriteCount(suite.ctx, p.ID, 1, 4)
	require.NoError(suite.T(), err)
	require.False(suite.T(), ok)

	ok, err = products.SetFavoriteCount(suite.ctx, p.ID, 0, 4)
	require.NoError(suite.T(), err)
	require.True(suite.T(), ok)
}

func (suite *MemoryStoreTestSuite) TestCartCreateAndSave() {
	carts := suite.store.Carts

	_, err := carts.FindByUser(suite.ctx, 1)
	require.ErrorIs(suite.T(), err, repository.ErrNotFound)

	cart, err := carts.Create(suite.ctx, 1)
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cart.Items)

	_, err = carts.Create(suite.ctx, 1)
	require.ErrorIs(suite.T(), err, repository.ErrDuplicate)

	stale := cart.Clone()
	cart.Items = append(cart.Items, models.CartItem{ProductID: 9, Quantity: 1, Price: decimal.NewFromInt(3)})
	require.NoError(suite.T(), carts.Save(suite.ctx, cart))
	require.Equal(suite.T(), int64(1), cart.Version)

	require.ErrorIs(suite.T(), carts.Save(suite.ctx, stale), repository.ErrVersionConflict)

	got, err := carts.FindByUser(suite.ctx, 1)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), got.Items, 1)
}

func (suite *MemoryStoreTestSuite) TestFavoritesNewestFirst() {
	favorites := suite.store.Favorites
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(suite.T(), favorites.Create(suite.ctx, &models.Favorite{UserID: 1, ProductID: 10, AddedAt: base}))
	require.NoError(suite.T(), favorites.Create(suite.ctx, &models.Favorite{UserID: 1, ProductID: 11, AddedAt: base.Add(time.Hour)}))
	require.NoError(suite.T(), favorites.Create(suite.ctx, &models.Favorite{UserID: 2, ProductID: 10, AddedAt: base}))
	require.ErrorIs(suite.T(), favorites.Create(suite.ctx, &models.Favorite{UserID: 1, ProductID: 10}), repository.ErrDuplicate)

	list, err := favorites.ListByUser(suite.ctx, 1)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), list, 2)
	require.Equal(suite.T(), int64(11), list[0].ProductID)

	counts, err := favorites.CountByProduct(suite.ctx)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), map[int64]int{10: 2, 11: 1}, counts)

	require.NoError(suite.T(), favorites.Delete(suite.ctx, 1, 10))
	require.ErrorIs(suite.T(), favorites.Delete(suite.ctx, 1, 10), repository.ErrNotFound)
}
