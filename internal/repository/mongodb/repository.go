package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rafaeyza/salestrack/internal/domain/models"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

// Repository defines the interface for the ingestion store.
type Repository interface {
	InsertVisit(ctx context.Context, visit models.VisitRecord) (string, error)
	LastFinalStock(ctx context.Context, customerID, productID string) (int, error)
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	GeofenceTolerance(ctx context.Context) (float64, error)
}

// MongoDBRepository implements the Repository interface for MongoDB.
type MongoDBRepository struct {
	client *mongo.Client
	dbName string
}

// NewMongoDBRepository creates a new MongoDB repository and ensures the
// unique idempotency-token index on visits exists.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	repo := &MongoDBRepository{client: client, dbName: dbName}

	_, err = repo.visits().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "token", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create visit token index: %w", err)
	}

	return repo, nil
}

func (r *MongoDBRepository) visits() *mongo.Collection {
	return r.client.Database(r.dbName).Collection("visits")
}

func (r *MongoDBRepository) customers() *mongo.Collection {
	return r.client.Database(r.dbName).Collection("customers")
}

func (r *MongoDBRepository) products() *mongo.Collection {
	return r.client.Database(r.dbName).Collection("products")
}

func (r *MongoDBRepository) settings() *mongo.Collection {
	return r.client.Database(r.dbName).Collection("settings")
}

// visitDoc is the persisted shape of a visit; decimals are stored as strings.
type visitDoc struct {
	ID             string         `bson:"_id"`
	Token          string         `bson:"token"`
	CustomerID     string         `bson:"customerId"`
	SalesLatitude  float64        `bson:"salesLatitude"`
	SalesLongitude float64        `bson:"salesLongitude"`
	Inventory      []visitLineDoc `bson:"inventory"`
	Photo          []byte         `bson:"photo"`
	PhotoName      string         `bson:"photoName"`
	Total          string         `bson:"total"`
	CreatedAt      time.Time      `bson:"createdAt"`
}

type visitLineDoc struct {
	ProductID    string `bson:"product"`
	InitialStock int    `bson:"initialStock"`
	AddedStock   int    `bson:"addedStock"`
	FinalStock   int    `bson:"finalStock"`
	Returns      int    `bson:"returns"`
	UnitsSold    int    `bson:"unitsSold"`
	Subtotal     string `bson:"subtotal"`
}

type productDoc struct {
	ID        string `bson:"_id"`
	Name      string `bson:"name"`
	Barcode   string `bson:"barcode"`
	UnitPrice string `bson:"unitPrice"`
}

// InsertVisit stores an accepted visit. Duplicate idempotency tokens collapse
// onto the already-stored visit: the unique index rejects the insert and the
// original visit's ID is returned instead.
func (r *MongoDBRepository) InsertVisit(ctx context.Context, visit models.VisitRecord) (string, error) {
	doc := visitDoc{
		ID:             primitive.NewObjectID().Hex(),
		Token:          visit.Token,
		CustomerID:     visit.CustomerID,
		SalesLatitude:  visit.SalesLatitude,
		SalesLongitude: visit.SalesLongitude,
		Photo:          visit.Photo,
		PhotoName:      visit.PhotoName,
		Total:          visit.Total.String(),
		CreatedAt:      visit.CreatedAt,
	}
	for _, line := range visit.Inventory {
		doc.Inventory = append(doc.Inventory, visitLineDoc{
			ProductID:    line.ProductID,
			InitialStock: line.InitialStock,
			AddedStock:   line.AddedStock,
			FinalStock:   line.FinalStock,
			Returns:      line.Returns,
			UnitsSold:    line.UnitsSold,
			Subtotal:     line.Subtotal.String(),
		})
	}

	_, err := r.visits().InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			var existing visitDoc
			findErr := r.visits().FindOne(ctx, bson.M{"token": visit.Token}).Decode(&existing)
			if findErr != nil {
				return "", fmt.Errorf("failed to load visit for duplicate token: %w", findErr)
			}
			return existing.ID, nil
		}
		return "", fmt.Errorf("failed to insert visit: %w", err)
	}

	return doc.ID, nil
}

// LastFinalStock finds the finalStock recorded on the customer's most recent
// visit containing the product, or ErrNotFound when there is none.
func (r *MongoDBRepository) LastFinalStock(ctx context.Context, customerID, productID string) (int, error) {
	filter := bson.M{
		"customerId":        customerID,
		"inventory.product": productID,
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var doc visitDoc
	err := r.visits().FindOne(ctx, filter, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to find last visit: %w", err)
	}

	for _, line := range doc.Inventory {
		if line.ProductID == productID {
			return line.FinalStock, nil
		}
	}
	return 0, ErrNotFound
}

// GetCustomer fetches one customer by ID.
func (r *MongoDBRepository) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	var customer models.Customer
	err := r.customers().FindOne(ctx, bson.M{"_id": id}).Decode(&customer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find customer %s: %w", id, err)
	}
	return &customer, nil
}

// ListProducts returns the full product catalog.
func (r *MongoDBRepository) ListProducts(ctx context.Context) ([]models.Product, error) {
	cursor, err := r.products().Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	var products []models.Product
	for cursor.Next(ctx) {
		var doc productDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}

		price, err := decimal.NewFromString(doc.UnitPrice)
		if err != nil {
			price = decimal.Zero
		}
		products = append(products, models.Product{
			ID:        doc.ID,
			Name:      doc.Name,
			Barcode:   doc.Barcode,
			UnitPrice: price,
		})
	}

	return products, cursor.Err()
}

// GeofenceTolerance reads the configured tolerance setting, or ErrNotFound
// when none has been stored.
func (r *MongoDBRepository) GeofenceTolerance(ctx context.Context) (float64, error) {
	var doc struct {
		ToleranceMeters float64 `bson:"toleranceMeters"`
	}
	err := r.settings().FindOne(ctx, bson.M{"_id": "geofence"}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to read geofence setting: %w", err)
	}
	return doc.ToleranceMeters, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
