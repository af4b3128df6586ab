// Package storetest holds behaviour tests every core.Store must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/inventory/internal/core"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) core.Store

// Run executes the suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("ProductLifecycle", func(t *testing.T) { testProductLifecycle(t, newStore(t)) })
	t.Run("DuplicateSKU", func(t *testing.T) { testDuplicateSKU(t, newStore(t)) })
	t.Run("ConcurrentDuplicateSKU", func(t *testing.T) { testConcurrentDuplicateSKU(t, newStore(t)) })
	t.Run("ListOrder", func(t *testing.T) { testListOrder(t, newStore(t)) })
	t.Run("Categories", func(t *testing.T) { testCategories(t, newStore(t)) })
	t.Run("Profiles", func(t *testing.T) { testProfiles(t, newStore(t)) })
	t.Run("Credentials", func(t *testing.T) { testCredentials(t, newStore(t)) })
}

var base = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

func product(sku string, created time.Time) core.Product {
	return core.Product{
		Name:         "Product " + sku,
		Category:     "Plásticos",
		Description:  "test product",
		Weight:       0.5,
		WeightUnit:   core.UnitKg,
		Dimensions:   core.Dimensions{Length: 40, Width: 30, Height: 10, Unit: core.UnitCm},
		Size:         core.SizeLarge,
		SKU:          sku,
		Stock:        7,
		Location:     "P1-E1-N1",
		RegisteredAt: "15/1/2026",
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func testProductLifecycle(t *testing.T, s core.Store) {
	ctx := context.Background()

	id, err := s.CreateProduct(ctx, product("LIFE-1", base))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "LIFE-1", got.SKU)
	assert.Equal(t, core.Dimensions{Length: 40, Width: 30, Height: 10, Unit: core.UnitCm}, got.Dimensions)
	assert.True(t, base.Equal(got.CreatedAt), "CreatedAt = %v", got.CreatedAt)

	bySKU, err := s.FindBySKU(ctx, "LIFE-1")
	require.NoError(t, err)
	require.Len(t, bySKU, 1)
	assert.Equal(t, id, bySKU[0].ID)

	none, err := s.FindBySKU(ctx, "NOPE")
	require.NoError(t, err)
	assert.Empty(t, none)

	later := base.Add(time.Hour)
	require.NoError(t, s.UpdateStock(ctx, id, 0, later))
	got, err = s.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
	assert.True(t, later.Equal(got.UpdatedAt))

	upd := *got
	upd.SKU = "LIFE-2"
	upd.Name = "Renamed"
	require.NoError(t, s.UpdateProduct(ctx, upd))

	old, err := s.FindBySKU(ctx, "LIFE-1")
	require.NoError(t, err)
	assert.Empty(t, old, "old SKU is released after rename")

	require.NoError(t, s.DeleteProduct(ctx, id))
	_, err = s.GetProduct(ctx, id)
	assert.True(t, errors.Is(err, core.ErrNotFound), "got %v", err)

	assert.True(t, errors.Is(s.DeleteProduct(ctx, id), core.ErrNotFound))
	assert.True(t, errors.Is(s.UpdateStock(ctx, id, 1, later), core.ErrNotFound))
}

func testDuplicateSKU(t *testing.T, s core.Store) {
	ctx := context.Background()

	firstID, err := s.CreateProduct(ctx, product("DUP-1", base))
	require.NoError(t, err)

	_, err = s.CreateProduct(ctx, product("DUP-1", base))
	assert.True(t, errors.Is(err, core.ErrDuplicateSKU), "create: got %v", err)

	secondID, err := s.CreateProduct(ctx, product("DUP-2", base))
	require.NoError(t, err)

	p, err := s.GetProduct(ctx, secondID)
	require.NoError(t, err)
	p.SKU = "DUP-1"
	err = s.UpdateProduct(ctx, *p)
	assert.True(t, errors.Is(err, core.ErrDuplicateSKU), "update: got %v", err)

	self, err := s.GetProduct(ctx, firstID)
	require.NoError(t, err)
	self.Stock = 99
	assert.NoError(t, s.UpdateProduct(ctx, *self), "keeping its own SKU is not a duplicate")
}

func testConcurrentDuplicateSKU(t *testing.T, s core.Store) {
	ctx := context.Background()

	const writers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		dups    int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateProduct(ctx, product("RACE-1", base))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, core.ErrDuplicateSKU):
				dups++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, writers-1, dups)
}

func testListOrder(t *testing.T, s core.Store) {
	ctx := context.Background()

	for i, sku := range []string{"ORD-1", "ORD-2", "ORD-3"} {
		_, err := s.CreateProduct(ctx, product(sku, base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	list, err := s.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"ORD-3", "ORD-2", "ORD-1"}, []string{list[0].SKU, list[1].SKU, list[2].SKU})
}

func testCategories(t *testing.T, s core.Store) {
	ctx := context.Background()

	for _, name := range []string{"Vidrio", "Botellas", "Plásticos", "Botellas"} {
		_, err := s.CreateCategory(ctx, core.Category{Name: name, CreatedAt: base})
		require.NoError(t, err)
	}

	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 4)
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"Botellas", "Botellas", "Plásticos", "Vidrio"}, names)

	require.NoError(t, s.DeleteCategory(ctx, cats[0].ID))
	cats, err = s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 3)
}

func testProfiles(t *testing.T, s core.Store) {
	ctx := context.Background()

	_, err := s.GetProfile(ctx, "missing-uid")
	assert.True(t, errors.Is(err, core.ErrNotFound), "got %v", err)

	p := core.UserProfile{UID: "uid-1", Email: "ana@example.com", Name: "Ana", LastName: "Soto", Role: core.RoleAdmin, CreatedAt: base}
	require.NoError(t, s.PutProfile(ctx, p))

	got, err := s.GetProfile(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)
	assert.Equal(t, core.RoleAdmin, got.Role)

	p.Role = core.RoleAssistant
	require.NoError(t, s.PutProfile(ctx, p))
	got, err = s.GetProfile(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, core.RoleAssistant, got.Role)
}

func testCredentials(t *testing.T, s core.Store) {
	ctx := context.Background()

	_, err := s.GetCredential(ctx, "nobody@example.com")
	assert.True(t, errors.Is(err, core.ErrNotFound), "got %v", err)

	require.NoError(t, s.PutCredential(ctx, core.Credential{UID: "uid-1", Email: "Ana@Example.com", PasswordHash: []byte("hash"), CreatedAt: base}))

	got, err := s.GetCredential(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", got.UID)
	assert.Equal(t, []byte("hash"), got.PasswordHash)
}
