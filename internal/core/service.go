package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/inventory/internal/logging"
)

// Archiver keeps a copy of uploaded import files.
type Archiver interface {
	Put(ctx context.Context, key string, data []byte) error
}

// Options tunes a Service. Zero values select defaults.
type Options struct {
	MaxConcurrentImports int
	ImportWait           time.Duration
	ImportTimeout        time.Duration
	ResultRetention      time.Duration

	// Archive receives original import files when set.
	Archive Archiver

	// OnImportComplete runs after every import job, e.g. to refresh views.
	OnImportComplete func(ImportResult)

	Now func() time.Time
}

// Service is the entry point for catalog, warehouse and import operations.
// It is safe for concurrent use.
type Service struct {
	store   Store
	opts    Options
	limiter *ImportLimiter
	now     func() time.Time

	mu      sync.RWMutex
	imports map[string]*activeImport
}

// NewService wires a Service to its store.
func NewService(store Store, opts Options) *Service {
	if opts.ImportTimeout <= 0 {
		opts.ImportTimeout = 10 * time.Minute
	}
	if opts.ResultRetention <= 0 {
		opts.ResultRetention = 5 * time.Minute
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:   store,
		opts:    opts,
		limiter: NewImportLimiter(opts.MaxConcurrentImports, opts.ImportWait),
		now:     now,
		imports: make(map[string]*activeImport),
	}
}

// Ping checks the store connection.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// DuplicateSKUError names the product already holding a SKU.
type DuplicateSKUError struct {
	SKU      string
	Existing string
}

func (e *DuplicateSKUError) Error() string {
	if e.Existing == "" {
		return fmt.Sprintf("duplicate sku: %q is already registered", e.SKU)
	}
	return fmt.Sprintf("duplicate sku: %q is already registered in product %s", e.SKU, e.Existing)
}

func (e *DuplicateSKUError) Is(target error) bool { return target == ErrDuplicateSKU }

// ListProducts returns every product, newest first.
func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// GetProduct returns one product or ErrNotFound.
func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

// CheckSKU returns the product using sku, ignoring excludeID, or nil when
// the SKU is free.
func (s *Service) CheckSKU(ctx context.Context, sku, excludeID string) (*Product, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, nil
	}
	matches, err := s.store.FindBySKU(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("check sku %q: %w", sku, err)
	}
	for i := range matches {
		if matches[i].ID != excludeID {
			return &matches[i], nil
		}
	}
	return nil, nil
}

// CreateProduct validates and stores a new product submitted by a form.
func (s *Service) CreateProduct(ctx context.Context, p Product) (*Product, error) {
	p = NormalizeProduct(p)
	if err := ValidateProduct(p); err != nil {
		return nil, err
	}
	existing, err := s.CheckSKU(ctx, p.SKU, "")
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &DuplicateSKUError{SKU: p.SKU, Existing: existing.Name}
	}

	id, err := s.insertProduct(ctx, &p)
	if err != nil {
		return nil, err
	}

	logging.WithFields(ctx, "actor", ActorFromContext(ctx)).Info("product created", "product_id", id, "sku", p.SKU)
	return &p, nil
}

// insertProduct stamps timestamps and writes p. The store's unique SKU
// constraint decides races between concurrent writers.
func (s *Service) insertProduct(ctx context.Context, p *Product) (string, error) {
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.RegisteredAt == "" {
		p.RegisteredAt = now.Format(RegisteredAtLayout)
	}

	id, err := s.store.CreateProduct(ctx, *p)
	if err != nil {
		if errors.Is(err, ErrDuplicateSKU) {
			return "", &DuplicateSKUError{SKU: p.SKU}
		}
		return "", fmt.Errorf("create product: %w", err)
	}
	p.ID = id
	return id, nil
}

// UpdateProduct replaces every editable field of product id.
func (s *Service) UpdateProduct(ctx context.Context, id string, p Product) (*Product, error) {
	current, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}

	p = NormalizeProduct(p)
	if err := ValidateProduct(p); err != nil {
		return nil, err
	}
	existing, err := s.CheckSKU(ctx, p.SKU, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &DuplicateSKUError{SKU: p.SKU, Existing: existing.Name}
	}

	p.ID = id
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = s.now()
	if p.RegisteredAt == "" {
		p.RegisteredAt = current.RegisteredAt
	}

	if err := s.store.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicateSKU) {
			return nil, &DuplicateSKUError{SKU: p.SKU}
		}
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}

	logging.WithFields(ctx, "actor", ActorFromContext(ctx)).Info("product updated", "product_id", id, "sku", p.SKU)
	return &p, nil
}

// UpdateStock sets the stock of product id. Any signed-in role may do this.
func (s *Service) UpdateStock(ctx context.Context, id string, stock int) error {
	if stock < 0 {
		return ErrInvalidStock
	}
	if err := s.store.UpdateStock(ctx, id, stock, s.now()); err != nil {
		return fmt.Errorf("update stock %s: %w", id, err)
	}
	logging.WithFields(ctx, "actor", ActorFromContext(ctx)).Info("stock updated", "product_id", id, "stock", stock)
	return nil
}

// DeleteProduct removes product id.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	logging.WithFields(ctx, "actor", ActorFromContext(ctx)).Info("product deleted", "product_id", id)
	return nil
}

// ListCategories returns categories ordered by name.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// CategoryNames returns the names of every category, ordered.
func (s *Service) CategoryNames(ctx context.Context) ([]string, error) {
	cats, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.Name
	}
	return names, nil
}

// CreateCategory stores a category. Names are not required to be unique.
func (s *Service) CreateCategory(ctx context.Context, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyCategory
	}
	c := Category{Name: name, CreatedAt: s.now()}
	id, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	c.ID = id
	return &c, nil
}

// DeleteCategory removes a category. Products keep their category text.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	return nil
}

// GetProfile returns the profile for uid, or nil when none exists.
func (s *Service) GetProfile(ctx context.Context, uid string) (*UserProfile, error) {
	p, err := s.store.GetProfile(ctx, uid)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", uid, err)
	}
	return p, nil
}

// CreateProfile stores a new profile; the role defaults to assistant.
func (s *Service) CreateProfile(ctx context.Context, p UserProfile) (*UserProfile, error) {
	if strings.TrimSpace(p.UID) == "" {
		return nil, errors.New("profile uid is required")
	}
	if p.Role == "" {
		p.Role = RoleAssistant
	}
	if _, ok := ParseRole(string(p.Role)); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, p.Role)
	}
	p.Email = NormalizeEmail(p.Email)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	if err := s.store.PutProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("put profile %s: %w", p.UID, err)
	}
	return &p, nil
}

// UpdateProfile merges the non-nil fields of upd into the stored profile.
func (s *Service) UpdateProfile(ctx context.Context, uid string, upd ProfileUpdate) (*UserProfile, error) {
	p, err := s.store.GetProfile(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", uid, err)
	}
	if upd.Name != nil {
		p.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.LastName != nil {
		p.LastName = strings.TrimSpace(*upd.LastName)
	}
	if upd.Role != nil {
		role, ok := ParseRole(string(*upd.Role))
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRole, *upd.Role)
		}
		p.Role = role
	}
	if err := s.store.PutProfile(ctx, *p); err != nil {
		return nil, fmt.Errorf("put profile %s: %w", uid, err)
	}
	return p, nil
}

// WarehouseGrid aggregates all products into the warehouse layout.
func (s *Service) WarehouseGrid(ctx context.Context) (*Grid, error) {
	products, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	g := BuildGrid(products)
	if len(g.Unplaced) > 0 {
		logging.FromContext(ctx).Debug("products outside the warehouse grid", "count", len(g.Unplaced))
	}
	return g, nil
}
