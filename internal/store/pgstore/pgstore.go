// Package pgstore implements core.Store on PostgreSQL through a pgx pool.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/inventory/internal/core"
)

const uniqueViolation = "23505"

// Options configures the pool.
type Options struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store is a core.Store backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// Open builds the pool, pings and runs Migrate.
func Open(ctx context.Context, opts Options) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse url: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool. Migrate is not run.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id            UUID PRIMARY KEY,
		name          TEXT NOT NULL,
		category      TEXT NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		weight        DOUBLE PRECISION NOT NULL,
		weight_unit   TEXT NOT NULL,
		length        DOUBLE PRECISION NOT NULL,
		width         DOUBLE PRECISION NOT NULL,
		height        DOUBLE PRECISION NOT NULL,
		dim_unit      TEXT NOT NULL,
		size          TEXT NOT NULL,
		sku           TEXT NOT NULL,
		stock         INTEGER NOT NULL CHECK (stock >= 0),
		location      TEXT NOT NULL,
		registered_at TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL,
		CONSTRAINT products_sku_unique UNIQUE (sku)
	)`,
	`CREATE INDEX IF NOT EXISTS products_created_desc ON products (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		uid        TEXT PRIMARY KEY,
		email      TEXT NOT NULL,
		name       TEXT NOT NULL DEFAULT '',
		last_name  TEXT NOT NULL DEFAULT '',
		role       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS credentials (
		email         TEXT PRIMARY KEY,
		uid           TEXT NOT NULL,
		password_hash BYTEA NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pgstore: migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// parseID rejects ids that cannot be a row key.
func parseID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, core.ErrNotFound
	}
	return u, nil
}

const productColumns = `id, name, category, description, weight, weight_unit,
	length, width, height, dim_unit, size, sku, stock, location,
	registered_at, created_at, updated_at`

func scanProduct(row pgx.Row) (core.Product, error) {
	var (
		p  core.Product
		id uuid.UUID
	)
	err := row.Scan(&id, &p.Name, &p.Category, &p.Description, &p.Weight, &p.WeightUnit,
		&p.Dimensions.Length, &p.Dimensions.Width, &p.Dimensions.Height, &p.Dimensions.Unit,
		&p.Size, &p.SKU, &p.Stock, &p.Location, &p.RegisteredAt, &p.CreatedAt, &p.UpdatedAt)
	p.ID = id.String()
	return p, err
}

func (s *Store) queryProducts(ctx context.Context, sql string, args ...any) ([]core.Product, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListProducts(ctx context.Context) ([]core.Product, error) {
	return s.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY created_at DESC, id DESC`)
}

func (s *Store) GetProduct(ctx context.Context, id string) (*core.Product, error) {
	u, err := parseID(id)
	if err != nil {
		return nil, err
	}
	p, err := scanProduct(s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, u))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) FindBySKU(ctx context.Context, sku string) ([]core.Product, error) {
	return s.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products WHERE sku = $1`, sku)
}

func (s *Store) CreateProduct(ctx context.Context, p core.Product) (string, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		id, p.Name, p.Category, p.Description, p.Weight, p.WeightUnit,
		p.Dimensions.Length, p.Dimensions.Width, p.Dimensions.Height, p.Dimensions.Unit,
		p.Size, p.SKU, p.Stock, p.Location, p.RegisteredAt, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return "", core.ErrDuplicateSKU
	}
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *Store) UpdateProduct(ctx context.Context, p core.Product) error {
	u, err := parseID(p.ID)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `UPDATE products SET
		name = $2, category = $3, description = $4, weight = $5, weight_unit = $6,
		length = $7, width = $8, height = $9, dim_unit = $10, size = $11, sku = $12,
		stock = $13, location = $14, registered_at = $15, created_at = $16, updated_at = $17
		WHERE id = $1`,
		u, p.Name, p.Category, p.Description, p.Weight, p.WeightUnit,
		p.Dimensions.Length, p.Dimensions.Width, p.Dimensions.Height, p.Dimensions.Unit,
		p.Size, p.SKU, p.Stock, p.Location, p.RegisteredAt, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return core.ErrDuplicateSKU
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateStock(ctx context.Context, id string, stock int, at time.Time) error {
	u, err := parseID(id)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE products SET stock = $2, updated_at = $3 WHERE id = $1`, u, stock, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return s.deleteByID(ctx, `DELETE FROM products WHERE id = $1`, id)
}

func (s *Store) deleteByID(ctx context.Context, sql, id string) error {
	u, err := parseID(id)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, sql, u)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			c  core.Category
			id uuid.UUID
		)
		if err := rows.Scan(&id, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.ID = id.String()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CreateCategory(ctx context.Context, c core.Category) (string, error) {
	id := uuid.New()
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO categories (id, name, created_at) VALUES ($1, $2, $3)`,
		id, c.Name, c.CreatedAt); err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	return s.deleteByID(ctx, `DELETE FROM categories WHERE id = $1`, id)
}

func (s *Store) GetProfile(ctx context.Context, uid string) (*core.UserProfile, error) {
	var (
		p    core.UserProfile
		role string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT uid, email, name, last_name, role, created_at FROM profiles WHERE uid = $1`, uid).
		Scan(&p.UID, &p.Email, &p.Name, &p.LastName, &role, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Role = core.Role(role)
	return &p, nil
}

func (s *Store) PutProfile(ctx context.Context, p core.UserProfile) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO profiles (uid, email, name, last_name, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (uid) DO UPDATE SET
			email = EXCLUDED.email, name = EXCLUDED.name, last_name = EXCLUDED.last_name,
			role = EXCLUDED.role, created_at = EXCLUDED.created_at`,
		p.UID, p.Email, p.Name, p.LastName, string(p.Role), p.CreatedAt)
	return err
}

func (s *Store) GetCredential(ctx context.Context, email string) (*core.Credential, error) {
	var c core.Credential
	err := s.pool.QueryRow(ctx,
		`SELECT email, uid, password_hash, created_at FROM credentials WHERE email = $1`,
		core.NormalizeEmail(email)).
		Scan(&c.Email, &c.UID, &c.PasswordHash, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) PutCredential(ctx context.Context, c core.Credential) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO credentials (email, uid, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET
			uid = EXCLUDED.uid, password_hash = EXCLUDED.password_hash, created_at = EXCLUDED.created_at`,
		core.NormalizeEmail(c.Email), c.UID, c.PasswordHash, c.CreatedAt)
	return err
}

// ResetCatalog empties the products and categories tables.
func (s *Store) ResetCatalog(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE products, categories`)
	return err
}

// Truncate empties every table. Used by integration tests.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE products, categories, profiles, credentials`)
	return err
}
