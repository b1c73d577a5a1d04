package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"token_distributor/internal/config"
	"token_distributor/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	distributionsCollection = "distributions"
	walletsCollection       = "wallets"
)

// DistributionStore is the ledger of distribution outcomes.
type DistributionStore interface {
	AddDistribution(ctx context.Context, entry models.DistributionEntry) error
	AddDistributions(ctx context.Context, entries []models.DistributionEntry) error
	FindRecentDistributions(ctx context.Context, limit int64) ([]models.DistributionEntry, error)
}

// WalletStore resolves custodial wallets. Users and their wallets are created elsewhere.
type WalletStore interface {
	FindCustodialWallet(ctx context.Context, userId string) (*models.CustodialWallet, error)
}

type DbRepository interface {
	DistributionStore
	WalletStore
	Health() error
	Disconnect() error
}

type mongoRepository struct {
	client *mongo.Client
	dbName string
}

func ConnectToDb(config *config.Config) (DbRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	host := config.Db.Host
	port := config.Db.Port
	user := config.Db.User
	password := config.Db.Password
	dbName := config.Db.DbName

	uri := fmt.Sprintf("mongodb://%s:%d", host, port)
	if user != "" && password != "" {
		uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", user, password, host, port)
	}

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	log.Println("✅ Db connected")

	return &mongoRepository{
		client: client,
		dbName: dbName,
	}, nil
}

func (r *mongoRepository) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	return r.client.Ping(ctx, nil)
}

func (r *mongoRepository) Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return r.client.Disconnect(ctx)
}

func (r *mongoRepository) AddDistribution(ctx context.Context, entry models.DistributionEntry) error {
	return r.Collection(distributionsCollection).InsertOne(ctx, entry)
}

func (r *mongoRepository) AddDistributions(ctx context.Context, entries []models.DistributionEntry) error {
	now := time.Now()
	operations := make([]mongo.WriteModel, 0, len(entries))
	for _, entry := range entries {
		entry.CreatedAt = now
		operations = append(operations, mongo.NewInsertOneModel().SetDocument(entry))
	}
	if _, err := r.Collection(distributionsCollection).BulkWrite(ctx, operations, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to bulk add distributions: %w", err)
	}
	return nil
}

func (r *mongoRepository) FindRecentDistributions(ctx context.Context, limit int64) ([]models.DistributionEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	entries := []models.DistributionEntry{}
	if err := r.Collection(distributionsCollection).FindMany(ctx, bson.M{}, opts, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *mongoRepository) FindCustodialWallet(ctx context.Context, userId string) (*models.CustodialWallet, error) {
	var wallet models.CustodialWallet
	err := r.Collection(walletsCollection).FindOne(ctx, bson.M{"userId": userId}).Decode(&wallet)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("error fetching custodial wallet: %w", err)
	}
	if !wallet.IsActive {
		return nil, ErrWalletNotFound
	}
	return &wallet, nil
}
