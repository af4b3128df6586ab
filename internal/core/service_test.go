package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/JonMunkholm/inventory/internal/store/memstore"
)

var fixedNow = time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)

func newService(t *testing.T, opts core.Options) (*core.Service, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	return core.NewService(store, opts), store
}

func formProduct(sku string) core.Product {
	return core.Product{
		Name:       "Botella " + sku,
		Category:   "Botellas",
		Weight:     0.2,
		WeightUnit: "KG",
		Dimensions: core.Dimensions{Length: 10, Width: 10, Height: 30, Unit: "cm"},
		Size:       "mediano",
		SKU:        " " + sku + " ",
		Stock:      12,
		Location:   "p1-e2-n3",
	}
}

func TestCreateProduct(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, core.Options{})

	p, err := svc.CreateProduct(ctx, formProduct("BOT-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "BOT-1", p.SKU)
	assert.Equal(t, "P1-E2-N3", p.Location)
	assert.Equal(t, "7/3/2026", p.RegisteredAt)
	assert.True(t, fixedNow.Equal(p.CreatedAt))

	_, err = svc.CreateProduct(ctx, formProduct("BOT-1"))
	var dup *core.DuplicateSKUError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "Botella BOT-1", dup.Existing)
	assert.ErrorIs(t, err, core.ErrDuplicateSKU)

	bad := formProduct("BOT-2")
	bad.Name = ""
	_, err = svc.CreateProduct(ctx, bad)
	assert.ErrorIs(t, err, core.ErrInvalidProduct)
}

func TestUpdateProductKeepsOwnSKU(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, core.Options{})

	a, err := svc.CreateProduct(ctx, formProduct("A-1"))
	require.NoError(t, err)
	b, err := svc.CreateProduct(ctx, formProduct("B-1"))
	require.NoError(t, err)

	edit := formProduct("A-1")
	edit.Name = "Renamed"
	got, err := svc.UpdateProduct(ctx, a.ID, edit)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, a.RegisteredAt, got.RegisteredAt)

	_, err = svc.UpdateProduct(ctx, b.ID, formProduct("A-1"))
	assert.ErrorIs(t, err, core.ErrDuplicateSKU)

	_, err = svc.UpdateProduct(ctx, "missing", formProduct("Z-1"))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCheckSKU(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, core.Options{})

	p, err := svc.CreateProduct(ctx, formProduct("C-1"))
	require.NoError(t, err)

	found, err := svc.CheckSKU(ctx, "C-1", "")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, p.ID, found.ID)

	found, err = svc.CheckSKU(ctx, "C-1", p.ID)
	require.NoError(t, err)
	assert.Nil(t, found, "the product being edited does not conflict with itself")

	found, err = svc.CheckSKU(ctx, "  ", "")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestUpdateStock(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, core.Options{})

	p, err := svc.CreateProduct(ctx, formProduct("S-1"))
	require.NoError(t, err)

	require.NoError(t, svc.UpdateStock(ctx, p.ID, 0))
	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)

	assert.ErrorIs(t, svc.UpdateStock(ctx, p.ID, -1), core.ErrInvalidStock)
	assert.ErrorIs(t, svc.UpdateStock(ctx, "missing", 3), core.ErrNotFound)
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, core.Options{})

	_, err := svc.CreateCategory(ctx, "   ")
	assert.ErrorIs(t, err, core.ErrEmptyCategory)

	for _, name := range []string{" Vidrio ", "Botellas"} {
		_, err := svc.CreateCategory(ctx, name)
		require.NoError(t, err)
	}
	names, err := svc.CategoryNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Botellas", "Vidrio"}, names)
}

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, core.Options{})

	p, err := svc.GetProfile(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, p, "missing profile is not an error")

	created, err := svc.CreateProfile(ctx, core.UserProfile{UID: "u1", Email: "Ana@Example.com", Name: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, core.RoleAssistant, created.Role)
	assert.Equal(t, "ana@example.com", created.Email)

	admin := core.RoleAdmin
	updated, err := svc.UpdateProfile(ctx, "u1", core.ProfileUpdate{Role: &admin})
	require.NoError(t, err)
	assert.Equal(t, core.RoleAdmin, updated.Role)
	assert.Equal(t, "Ana", updated.Name)

	bogus := core.Role("owner")
	_, err = svc.UpdateProfile(ctx, "u1", core.ProfileUpdate{Role: &bogus})
	assert.Error(t, err)
}

func TestWarehouseGridFromStore(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, core.Options{})

	_, err := svc.CreateProduct(ctx, formProduct("G-1"))
	require.NoError(t, err)

	g, err := svc.WarehouseGrid(ctx)
	require.NoError(t, err)
	slot, ok := g.Slot("P1-E2-N3")
	require.True(t, ok)
	assert.Len(t, slot.Products, 1)
	assert.Equal(t, 1, g.Summary.OccupiedSlots)
}

func importRows(skus ...string) []core.Row {
	rows := make([]core.Row, len(skus))
	for i, sku := range skus {
		rows[i] = core.Row{
			"producto":           "Producto " + sku,
			"categoria":          "Botellas",
			"descripcion":        "Envase " + sku,
			"sku":                sku,
			"stock":              "4",
			"ubicacion":          "P2-E1-N1",
			"peso":               "1",
			"unidad_peso":        "kg",
			"tamaño":             "pequeño",
			"dimensiones.largo":  "5",
			"dimensiones.ancho":  "5",
			"dimensiones.alto":   "5",
			"dimensiones.unidad": "cm",
		}
	}
	return rows
}

func TestImportJob(t *testing.T) {
	ctx := context.Background()

	var (
		mu        sync.Mutex
		completed []core.ImportResult
	)
	svc, store := newService(t, core.Options{
		OnImportComplete: func(r core.ImportResult) {
			mu.Lock()
			completed = append(completed, r)
			mu.Unlock()
		},
	})
	_, err := svc.CreateCategory(ctx, "Botellas")
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, formProduct("IMP-2"))
	require.NoError(t, err)

	v, err := svc.ValidateImportRows(ctx, importRows("IMP-1", "IMP-2", "IMP-3"))
	require.NoError(t, err)
	require.True(t, v.Valid, "errors: %v", v.Errors)

	id, err := svc.StartImport(core.ContextWithActor(ctx, "ana@example.com"), core.ImportRequest{
		FileName: "productos.csv",
		Products: v.Products,
	})
	require.NoError(t, err)

	updates, err := svc.SubscribeImport(id)
	require.NoError(t, err)
	var last core.ImportProgress
	for p := range updates {
		last = p
	}
	assert.Equal(t, core.PhaseComplete, last.Phase)
	assert.Equal(t, 100, last.Percent)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res, err := svc.ImportResultOf(waitCtx, id)
	require.NoError(t, err)
	assert.Equal(t, id, res.ImportID)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 100, res.Progress)
	assert.Contains(t, res.Outcomes[1].Message, "already exists")

	products, err := store.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 3)

	mu.Lock()
	assert.Len(t, completed, 1)
	mu.Unlock()

	require.NoError(t, svc.WaitForImports(waitCtx))
	assert.Equal(t, 0, svc.ImportStatus().Active)
}

func TestImportResultUnknownID(t *testing.T) {
	svc, _ := newService(t, core.Options{})

	_, err := svc.ImportResultOf(context.Background(), "nope")
	assert.ErrorIs(t, err, core.ErrImportNotFound)
	_, err = svc.SubscribeImport("nope")
	assert.ErrorIs(t, err, core.ErrImportNotFound)
}

type recordingArchive struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingArchive) Put(_ context.Context, key string, _ []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	return nil
}

func TestImportArchivesOriginalFile(t *testing.T) {
	ctx := context.Background()
	archive := &recordingArchive{}
	svc, _ := newService(t, core.Options{Archive: archive})

	id, err := svc.StartImport(ctx, core.ImportRequest{
		FileName: "../productos.csv",
		Data:     []byte("sku\n"),
	})
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err = svc.ImportResultOf(waitCtx, id)
	require.NoError(t, err)

	archive.mu.Lock()
	defer archive.mu.Unlock()
	require.Len(t, archive.keys, 1)
	assert.Equal(t, "imports/2026/03/07/"+id+"-productos.csv", archive.keys[0])
}

func TestStartImportRespectsLimiter(t *testing.T) {
	block := make(chan struct{})
	store := &blockingStore{Store: memstore.New(), release: block}
	svc := core.NewService(store, core.Options{MaxConcurrentImports: 1, ImportWait: 10 * time.Millisecond})

	ctx := context.Background()
	first, err := svc.StartImport(ctx, core.ImportRequest{Products: []core.Product{{Name: "x", SKU: "X"}}})
	require.NoError(t, err)

	_, err = svc.StartImport(ctx, core.ImportRequest{})
	assert.True(t, errors.Is(err, core.ErrTooManyImports), "got %v", err)

	close(block)
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err = svc.ImportResultOf(waitCtx, first)
	require.NoError(t, err)
}

// blockingStore holds SKU lookups until release is closed.
type blockingStore struct {
	*memstore.Store
	release chan struct{}
}

func (b *blockingStore) FindBySKU(ctx context.Context, sku string) ([]core.Product, error) {
	<-b.release
	return b.Store.FindBySKU(ctx, sku)
}
