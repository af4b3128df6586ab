// Package mongostore implements core.Store on MongoDB. Documents keep the
// field names used by the original catalog collections (producto,
// categoria, ubicacion, ...), so existing data can be read in place.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JonMunkholm/inventory/internal/core"
)

// Collection names.
const (
	ColProducts    = "products"
	ColCategories  = "categories"
	ColUsers       = "users"
	ColCredentials = "credentials"
)

// Options configures the client.
type Options struct {
	URI            string
	Database       string
	MaxPoolSize    uint64
	MinPoolSize    uint64
	ConnectTimeout time.Duration
}

// Store is a core.Store backed by one MongoDB database.
type Store struct {
	client      *mongo.Client
	db          *mongo.Database
	products    *mongo.Collection
	categories  *mongo.Collection
	users       *mongo.Collection
	credentials *mongo.Collection
}

var _ core.Store = (*Store)(nil)

// Open connects, pings and makes sure the indexes exist.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	clientOpts := options.Client().ApplyURI(opts.URI).
		SetConnectTimeout(opts.ConnectTimeout).
		SetServerSelectionTimeout(opts.ConnectTimeout)
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(opts.MinPoolSize)
	}

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}

	s := newStore(client, client.Database(opts.Database))
	if err := s.EnsureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func newStore(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		client:      client,
		db:          db,
		products:    db.Collection(ColProducts),
		categories:  db.Collection(ColCategories),
		users:       db.Collection(ColUsers),
		credentials: db.Collection(ColCredentials),
	}
}

// EnsureIndexes creates the unique SKU index and the sort indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.products.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sku", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("products_sku_unique"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("products_created_desc"),
		},
	})
	if err != nil {
		return fmt.Errorf("mongostore: product indexes: %w", err)
	}
	_, err = s.categories.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "nombre", Value: 1}},
		Options: options.Index().SetName("categories_nombre"),
	})
	if err != nil {
		return fmt.Errorf("mongostore: category indexes: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// ResetCatalog deletes every product and category. Users are kept.
func (s *Store) ResetCatalog(ctx context.Context) error {
	if _, err := s.products.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("reset products: %w", err)
	}
	if _, err := s.categories.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("reset categories: %w", err)
	}
	return nil
}

// Drop removes the whole database. Used by integration tests.
func (s *Store) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

type dimensionsDoc struct {
	Length float64 `bson:"largo"`
	Width  float64 `bson:"ancho"`
	Height float64 `bson:"alto"`
	Unit   string  `bson:"unidad"`
}

type productDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"producto"`
	Category     string             `bson:"categoria"`
	Description  string             `bson:"descripcion"`
	Weight       float64            `bson:"peso"`
	WeightUnit   string             `bson:"unidad_peso"`
	Dimensions   dimensionsDoc      `bson:"dimensiones"`
	Size         string             `bson:"tamaño"`
	SKU          string             `bson:"sku"`
	Stock        int                `bson:"stock"`
	Location     string             `bson:"ubicacion"`
	RegisteredAt string             `bson:"fecha_registro"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

func toProductDoc(p core.Product) productDoc {
	return productDoc{
		Name:         p.Name,
		Category:     p.Category,
		Description:  p.Description,
		Weight:       p.Weight,
		WeightUnit:   p.WeightUnit,
		Dimensions:   dimensionsDoc(p.Dimensions),
		Size:         p.Size,
		SKU:          p.SKU,
		Stock:        p.Stock,
		Location:     p.Location,
		RegisteredAt: p.RegisteredAt,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func (d productDoc) product() core.Product {
	return core.Product{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Category:     d.Category,
		Description:  d.Description,
		Weight:       d.Weight,
		WeightUnit:   d.WeightUnit,
		Dimensions:   core.Dimensions(d.Dimensions),
		Size:         d.Size,
		SKU:          d.SKU,
		Stock:        d.Stock,
		Location:     d.Location,
		RegisteredAt: d.RegisteredAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// objectID parses a hex id; malformed ids cannot match any document.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, core.ErrNotFound
	}
	return oid, nil
}

func (s *Store) findProducts(ctx context.Context, filter any, opts ...*options.FindOptions) ([]core.Product, error) {
	cur, err := s.products.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]core.Product, len(docs))
	for i, d := range docs {
		out[i] = d.product()
	}
	return out, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]core.Product, error) {
	return s.findProducts(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
}

func (s *Store) GetProduct(ctx context.Context, id string) (*core.Product, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var d productDoc
	if err := s.products.FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	p := d.product()
	return &p, nil
}

func (s *Store) FindBySKU(ctx context.Context, sku string) ([]core.Product, error) {
	return s.findProducts(ctx, bson.M{"sku": sku})
}

func (s *Store) CreateProduct(ctx context.Context, p core.Product) (string, error) {
	res, err := s.products.InsertOne(ctx, toProductDoc(p))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", core.ErrDuplicateSKU
		}
		return "", err
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("mongostore: unexpected inserted id %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func (s *Store) UpdateProduct(ctx context.Context, p core.Product) error {
	oid, err := objectID(p.ID)
	if err != nil {
		return err
	}
	doc := toProductDoc(p)
	doc.ID = oid

	res, err := s.products.ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return core.ErrDuplicateSKU
		}
		return err
	}
	if res.MatchedCount == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateStock(ctx context.Context, id string, stock int, at time.Time) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.products.UpdateOne(ctx, bson.M{"_id": oid},
		bson.M{"$set": bson.M{"stock": stock, "updatedAt": at}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.products.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return core.ErrNotFound
	}
	return nil
}

type categoryDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"nombre"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	cur, err := s.categories.Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "nombre", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []categoryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]core.Category, len(docs))
	for i, d := range docs {
		out[i] = core.Category{ID: d.ID.Hex(), Name: d.Name, CreatedAt: d.CreatedAt}
	}
	return out, nil
}

func (s *Store) CreateCategory(ctx context.Context, c core.Category) (string, error) {
	res, err := s.categories.InsertOne(ctx, categoryDoc{Name: c.Name, CreatedAt: c.CreatedAt})
	if err != nil {
		return "", err
	}
	oid, _ := res.InsertedID.(primitive.ObjectID)
	return oid.Hex(), nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.categories.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return core.ErrNotFound
	}
	return nil
}

type userDoc struct {
	UID       string    `bson:"_id"`
	Email     string    `bson:"email"`
	Name      string    `bson:"name"`
	LastName  string    `bson:"lastName"`
	Role      string    `bson:"role"`
	CreatedAt time.Time `bson:"createdAt"`
}

func (s *Store) GetProfile(ctx context.Context, uid string) (*core.UserProfile, error) {
	var d userDoc
	if err := s.users.FindOne(ctx, bson.M{"_id": uid}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &core.UserProfile{
		UID:       d.UID,
		Email:     d.Email,
		Name:      d.Name,
		LastName:  d.LastName,
		Role:      core.Role(d.Role),
		CreatedAt: d.CreatedAt,
	}, nil
}

func (s *Store) PutProfile(ctx context.Context, p core.UserProfile) error {
	d := userDoc{UID: p.UID, Email: p.Email, Name: p.Name, LastName: p.LastName, Role: string(p.Role), CreatedAt: p.CreatedAt}
	_, err := s.users.ReplaceOne(ctx, bson.M{"_id": p.UID}, d, options.Replace().SetUpsert(true))
	return err
}

type credentialDoc struct {
	Email        string    `bson:"_id"`
	UID          string    `bson:"uid"`
	PasswordHash []byte    `bson:"passwordHash"`
	CreatedAt    time.Time `bson:"createdAt"`
}

func (s *Store) GetCredential(ctx context.Context, email string) (*core.Credential, error) {
	var d credentialDoc
	if err := s.credentials.FindOne(ctx, bson.M{"_id": core.NormalizeEmail(email)}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &core.Credential{UID: d.UID, Email: d.Email, PasswordHash: d.PasswordHash, CreatedAt: d.CreatedAt}, nil
}

func (s *Store) PutCredential(ctx context.Context, c core.Credential) error {
	email := core.NormalizeEmail(c.Email)
	d := credentialDoc{Email: email, UID: c.UID, PasswordHash: c.PasswordHash, CreatedAt: c.CreatedAt}
	_, err := s.credentials.ReplaceOne(ctx, bson.M{"_id": email}, d, options.Replace().SetUpsert(true))
	return err
}
