package core

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Sentinel errors shared by the service and every store implementation.
var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateSKU   = errors.New("duplicate sku")
	ErrInvalidProduct = errors.New("invalid product")
	ErrInvalidStock   = errors.New("invalid stock: must be a non-negative integer")
	ErrEmptyCategory  = errors.New("category name is required")
	ErrImportNotFound = errors.New("import not found")
	ErrUnknownRole    = errors.New("unknown role")
)

// Role is the only authorization signal carried by a user profile.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleAssistant Role = "assistant"
)

// ParseRole accepts admin or assistant in any case.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleAssistant:
		return RoleAssistant, true
	}
	return "", false
}

// Weight units.
const (
	UnitKg = "kg"
	UnitG  = "g"
	UnitLb = "lb"
)

// Length units.
const (
	UnitCm = "cm"
	UnitM  = "m"
	UnitIn = "in"
)

// Size classes.
const (
	SizeSmall  = "small"
	SizeMedium = "medium"
	SizeLarge  = "large"
)

var sizeAliases = map[string]string{
	"small": SizeSmall, "pequeño": SizeSmall, "pequeno": SizeSmall,
	"medium": SizeMedium, "mediano": SizeMedium,
	"large": SizeLarge, "grande": SizeLarge,
}

// NormalizeSize maps a size label (English or Spanish) to its class.
func NormalizeSize(s string) (string, bool) {
	v, ok := sizeAliases[strings.ToLower(strings.TrimSpace(s))]
	return v, ok
}

// ValidWeightUnit reports whether u is kg, g or lb.
func ValidWeightUnit(u string) bool {
	switch u {
	case UnitKg, UnitG, UnitLb:
		return true
	}
	return false
}

// ValidLengthUnit reports whether u is cm, m or in.
func ValidLengthUnit(u string) bool {
	switch u {
	case UnitCm, UnitM, UnitIn:
		return true
	}
	return false
}

// RegisteredAtLayout renders registration dates day/month/year.
const RegisteredAtLayout = "2/1/2006"

// Dimensions of a single unit of a product.
type Dimensions struct {
	Length float64 `json:"largo"`
	Width  float64 `json:"ancho"`
	Height float64 `json:"alto"`
	Unit   string  `json:"unidad"`
}

// Product is a catalog entry.
type Product struct {
	ID           string     `json:"id"`
	Name         string     `json:"producto"`
	Category     string     `json:"categoria"`
	Description  string     `json:"descripcion"`
	Weight       float64    `json:"peso"`
	WeightUnit   string     `json:"unidad_peso"`
	Dimensions   Dimensions `json:"dimensiones"`
	Size         string     `json:"tamaño"`
	SKU          string     `json:"sku"`
	Stock        int        `json:"stock"`
	Location     string     `json:"ubicacion"`
	RegisteredAt string     `json:"fecha_registro"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Category is a free-text label; products reference it by name.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"nombre"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserProfile is keyed by the identity provider's uid.
type UserProfile struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	LastName  string    `json:"lastName"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// FullName joins first and last name.
func (p *UserProfile) FullName() string {
	return strings.TrimSpace(p.Name + " " + p.LastName)
}

// ProfileUpdate carries the mutable profile fields; nil means unchanged.
type ProfileUpdate struct {
	Name     *string
	LastName *string
	Role     *Role
}

// Credential backs the local identity provider.
type Credential struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ProductStore persists products. CreateProduct and UpdateProduct must
// reject a SKU already held by another product with ErrDuplicateSKU.
type ProductStore interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	FindBySKU(ctx context.Context, sku string) ([]Product, error)
	CreateProduct(ctx context.Context, p Product) (string, error)
	UpdateProduct(ctx context.Context, p Product) error
	UpdateStock(ctx context.Context, id string, stock int, at time.Time) error
	DeleteProduct(ctx context.Context, id string) error
}

// CategoryStore persists categories, listed by name ascending.
type CategoryStore interface {
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, c Category) (string, error)
	DeleteCategory(ctx context.Context, id string) error
}

// ProfileStore persists user profiles. GetProfile returns ErrNotFound
// when the uid has no profile.
type ProfileStore interface {
	GetProfile(ctx context.Context, uid string) (*UserProfile, error)
	PutProfile(ctx context.Context, p UserProfile) error
}

// CredentialStore persists local sign-in credentials keyed by email.
type CredentialStore interface {
	GetCredential(ctx context.Context, email string) (*Credential, error)
	PutCredential(ctx context.Context, c Credential) error
}

// Store is the full persistence surface.
type Store interface {
	ProductStore
	CategoryStore
	ProfileStore
	CredentialStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// NormalizeEmail is the key used for credentials.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
