package repository

import (
	"context"
	"fmt"
	"time"

	"escrow-market/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/gorm"
)

const (
	ActivityCollection = "activity_logs"
	activityTimeout    = 5 * time.Second
)

// ActivityLog stores the status history of deals, disputes and ledger entries.
type ActivityLog interface {
	Record(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, relatedType, relatedID string, limit int) ([]models.ActivityLog, error)
}

// SQLActivityLog keeps the history in the primary database
type SQLActivityLog struct {
	db *gorm.DB
}

func NewSQLActivityLog(db *gorm.DB) *SQLActivityLog {
	return &SQLActivityLog{db: db}
}

func (l *SQLActivityLog) Record(ctx context.Context, entry *models.ActivityLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return l.db.WithContext(ctx).Create(entry).Error
}

func (l *SQLActivityLog) List(ctx context.Context, relatedType, relatedID string, limit int) ([]models.ActivityLog, error) {
	q := l.db.WithContext(ctx)
	if relatedType != "" {
		q = q.Where("related_type = ?", relatedType)
	}
	if relatedID != "" {
		q = q.Where("related_id = ?", relatedID)
	}
	var out []models.ActivityLog
	err := q.Order("created_at DESC").Limit(clampLimit(limit, 50, 500)).Find(&out).Error
	return out, err
}

// MongoActivityLog keeps the history in a MongoDB collection
type MongoActivityLog struct {
	collection *mongo.Collection
}

func NewMongoActivityLog(client *mongo.Client, database string) *MongoActivityLog {
	return &MongoActivityLog{
		collection: client.Database(database).Collection(ActivityCollection),
	}
}

func (l *MongoActivityLog) Record(ctx context.Context, entry *models.ActivityLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(ctx, activityTimeout)
	defer cancel()

	if _, err := l.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

func (l *MongoActivityLog) List(ctx context.Context, relatedType, relatedID string, limit int) ([]models.ActivityLog, error) {
	ctx, cancel := context.WithTimeout(ctx, activityTimeout)
	defer cancel()

	filter := bson.M{}
	if relatedType != "" {
		filter["related_type"] = relatedType
	}
	if relatedID != "" {
		filter["related_id"] = relatedID
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(clampLimit(limit, 50, 500)))

	cur, err := l.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find activity logs: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.ActivityLog
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode activity logs: %w", err)
	}
	return out, nil
}

// ConnectMongo dials MongoDB and verifies the connection
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}
