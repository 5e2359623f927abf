package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PreferenceRepo interface {
	Get(ctx context.Context, userID uint64) (*NotificationPreference, error)
	Upsert(ctx context.Context, pref *NotificationPreference) error
}

type preferenceRepoImpl struct {
	col *mongo.Collection
}

func NewPreferenceRepo(db *mongo.Database) PreferenceRepo {
	return &preferenceRepoImpl{
		col: db.Collection("notification_preferences"),
	}
}

// Get 未设置过偏好时返回 nil, nil
func (s *preferenceRepoImpl) Get(ctx context.Context, userID uint64) (*NotificationPreference, error) {
	var pref NotificationPreference
	err := s.col.FindOne(ctx, bson.M{"_id": userID}).Decode(&pref)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

func (s *preferenceRepoImpl) Upsert(ctx context.Context, pref *NotificationPreference) error {
	pref.UpdatedAt = time.Now()
	opts := options.Replace().SetUpsert(true)
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": pref.UserID}, pref, opts)
	return err
}
