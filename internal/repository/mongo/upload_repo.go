package mongo

import (
	"alcyxob/upload-broker/internal/domain"
	"alcyxob/upload-broker/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UploadCollection is the collection holding upload transactions.
const UploadCollection = "upload_transactions"

// mongoUploadRepository implements repository.UploadTransactionRepository
type mongoUploadRepository struct {
	collection *mongo.Collection
}

// NewMongoUploadRepository creates a new upload transaction repository backed by MongoDB.
func NewMongoUploadRepository(db *mongo.Database) repository.UploadTransactionRepository {
	return &mongoUploadRepository{
		collection: db.Collection(UploadCollection),
	}
}

// Create inserts a new upload transaction. ID and ObjectKey are assigned by the service.
func (r *mongoUploadRepository) Create(ctx context.Context, tx *domain.UploadTransaction) error {
	if tx.ID == "" || tx.OwnerID == "" || tx.ObjectKey == "" {
		return errors.New("upload transaction requires id, ownerId, and objectKey")
	}

	_, err := r.collection.InsertOne(ctx, tx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicateKey
		}
		return err
	}
	return nil
}

// GetByIDForOwner retrieves a transaction by ID, only if it belongs to ownerID.
func (r *mongoUploadRepository) GetByIDForOwner(ctx context.Context, id, ownerID string) (*domain.UploadTransaction, error) {
	var tx domain.UploadTransaction
	filter := bson.M{"_id": id, "ownerId": ownerID}

	err := r.collection.FindOne(ctx, filter).Decode(&tx)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// Delete removes a transaction. Used to roll back an initiate whose grant could not be issued.
func (r *mongoUploadRepository) Delete(ctx context.Context, id, ownerID string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "ownerId": ownerID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// MarkCompleted transitions PENDING -> COMPLETED. The status predicate in the filter
// makes this a compare-and-set: only one concurrent caller can match.
func (r *mongoUploadRepository) MarkCompleted(ctx context.Context, id, ownerID string, completedAt time.Time) error {
	update := bson.M{"$set": bson.M{
		"status":      domain.UploadStatusCompleted,
		"completedAt": completedAt.UTC(),
	}}
	return r.transitionFromPending(ctx, id, ownerID, update)
}

// MarkFailed transitions PENDING -> FAILED.
func (r *mongoUploadRepository) MarkFailed(ctx context.Context, id, ownerID string) error {
	update := bson.M{"$set": bson.M{"status": domain.UploadStatusFailed}}
	return r.transitionFromPending(ctx, id, ownerID, update)
}

func (r *mongoUploadRepository) transitionFromPending(ctx context.Context, id, ownerID string, update bson.M) error {
	filter := bson.M{
		"_id":     id,
		"ownerId": ownerID,
		"status":  domain.UploadStatusPending,
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrConflict
	}
	return nil
}

// EnsureUploadIndexes creates necessary indexes for the upload transactions collection.
func EnsureUploadIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Owner-scoped lookups
			Keys:    bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "objectKey", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Lets an operator find stale PENDING records
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index(),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
