// Package memstore is an in-process core.Store for development and tests.
// Data lives only as long as the process.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/inventory/internal/core"
)

// Store keeps every collection in maps guarded by one lock, so the SKU
// uniqueness check and the write happen atomically.
type Store struct {
	mu          sync.RWMutex
	products    map[string]core.Product
	skus        map[string]string // sku -> product id
	categories  map[string]core.Category
	profiles    map[string]core.UserProfile
	credentials map[string]core.Credential
}

var _ core.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		products:    make(map[string]core.Product),
		skus:        make(map[string]string),
		categories:  make(map[string]core.Category),
		profiles:    make(map[string]core.UserProfile),
		credentials: make(map[string]core.Credential),
	}
}

func (s *Store) Ping(context.Context) error  { return nil }
func (s *Store) Close(context.Context) error { return nil }

// ResetCatalog removes every product and category. Users are kept.
func (s *Store) ResetCatalog(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = make(map[string]core.Product)
	s.skus = make(map[string]string)
	s.categories = make(map[string]core.Category)
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]core.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]core.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*core.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &p, nil
}

func (s *Store) FindBySKU(ctx context.Context, sku string) ([]core.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.skus[sku]
	if !ok {
		return nil, nil
	}
	return []core.Product{s.products[id]}, nil
}

func (s *Store) CreateProduct(ctx context.Context, p core.Product) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.skus[p.SKU]; taken {
		return "", core.ErrDuplicateSKU
	}
	p.ID = uuid.NewString()
	s.products[p.ID] = p
	s.skus[p.SKU] = p.ID
	return p.ID, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p core.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.products[p.ID]
	if !ok {
		return core.ErrNotFound
	}
	if owner, taken := s.skus[p.SKU]; taken && owner != p.ID {
		return core.ErrDuplicateSKU
	}
	delete(s.skus, old.SKU)
	s.skus[p.SKU] = p.ID
	s.products[p.ID] = p
	return nil
}

func (s *Store) UpdateStock(ctx context.Context, id string, stock int, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return core.ErrNotFound
	}
	p.Stock, p.UpdatedAt = stock, at
	s.products[id] = p
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return core.ErrNotFound
	}
	delete(s.skus, p.SKU)
	delete(s.products, id)
	return nil
}

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]core.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) CreateCategory(ctx context.Context, c core.Category) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = uuid.NewString()
	s.categories[c.ID] = c
	return c.ID, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) GetProfile(ctx context.Context, uid string) (*core.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[uid]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &p, nil
}

func (s *Store) PutProfile(ctx context.Context, p core.UserProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UID] = p
	return nil
}

func (s *Store) GetCredential(ctx context.Context, email string) (*core.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[core.NormalizeEmail(email)]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &c, nil
}

func (s *Store) PutCredential(ctx context.Context, c core.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Email = core.NormalizeEmail(c.Email)
	s.credentials[c.Email] = c
	return nil
}
