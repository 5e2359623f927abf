package mongo

import (
	"Carhub/internal/pkg/notify"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type NotificationRepo interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, userID uint64, id string) (*Notification, error)
	// UpdateDeliveryStatus from 非空时为条件更新，当前状态不在 from 中则不写入
	UpdateDeliveryStatus(ctx context.Context, id primitive.ObjectID, status notify.DeliveryStatus, from ...notify.DeliveryStatus) error
	UpdateContent(ctx context.Context, id primitive.ObjectID, title, message string, metadata map[string]any) error
	List(ctx context.Context, userID uint64, limit, offset int64) ([]*Notification, error)
	ListUnread(ctx context.Context, userID uint64, limit int64) ([]*Notification, error)
	FindUnreadBySubject(ctx context.Context, userID uint64, t notify.Type, subjectID uint64) (*Notification, error)
	MarkRead(ctx context.Context, userID uint64, id string) error
	MarkAllRead(ctx context.Context, userID uint64) (int64, error)
	Delete(ctx context.Context, userID uint64, id string) error
	CountAll(ctx context.Context, userID uint64) (int64, error)
	CountUnread(ctx context.Context, userID uint64) (int64, error)
	CountByStatus(ctx context.Context, status notify.DeliveryStatus) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type notificationRepoImpl struct {
	col *mongo.Collection
}

func NewNotificationRepo(db *mongo.Database) NotificationRepo {
	return &notificationRepoImpl{
		col: db.Collection("notifications"),
	}
}

// EnsureIndexes 列表查询与未读合并查询所需索引
func (s *notificationRepoImpl) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_read", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "type", Value: 1}, {Key: "subject_id", Value: 1}, {Key: "is_read", Value: 1}}},
		{Keys: bson.D{{Key: "delivery_status", Value: 1}}},
	})
	return err
}

// Create 插入新通知，ID 在写入前生成
func (s *notificationRepoImpl) Create(ctx context.Context, n *Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	now := time.Now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	_, err := s.col.InsertOne(ctx, n)
	return err
}

// GetByID 获取属于该用户的通知，不存在时返回 nil, nil
func (s *notificationRepoImpl) GetByID(ctx context.Context, userID uint64, id string) (*Notification, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var n Notification
	err = s.col.FindOne(ctx, bson.M{"_id": objectID, "user_id": userID}).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *notificationRepoImpl) UpdateDeliveryStatus(ctx context.Context, id primitive.ObjectID, status notify.DeliveryStatus, from ...notify.DeliveryStatus) error {
	filter := bson.M{"_id": id}
	if len(from) > 0 {
		filter["delivery_status"] = bson.M{"$in": from}
	}
	update := bson.M{"$set": bson.M{"delivery_status": status, "updated_at": time.Now()}}
	_, err := s.col.UpdateOne(ctx, filter, update)
	return err
}

// UpdateContent 私信合并时更新文案与计数
func (s *notificationRepoImpl) UpdateContent(ctx context.Context, id primitive.ObjectID, title, message string, metadata map[string]any) error {
	set := bson.M{"title": title, "message": message, "updated_at": time.Now()}
	if metadata != nil {
		set["metadata"] = metadata
	}
	result, err := s.col.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// List 分页获取用户的通知列表 (按时间倒序)
func (s *notificationRepoImpl) List(ctx context.Context, userID uint64, limit, offset int64) ([]*Notification, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)
	return s.find(ctx, bson.M{"user_id": userID}, opts)
}

func (s *notificationRepoImpl) ListUnread(ctx context.Context, userID uint64, limit int64) ([]*Notification, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "created_at", Value: -1}}).
		SetLimit(limit)
	return s.find(ctx, bson.M{"user_id": userID, "is_read": false}, opts)
}

// FindUnreadBySubject 查找同一来源尚未读的通知，用于私信未读合并
func (s *notificationRepoImpl) FindUnreadBySubject(ctx context.Context, userID uint64, t notify.Type, subjectID uint64) (*Notification, error) {
	filter := bson.M{"user_id": userID, "type": t, "subject_id": subjectID, "is_read": false}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var n Notification
	err := s.col.FindOne(ctx, filter, opts).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// MarkRead 标记单条通知为已读
func (s *notificationRepoImpl) MarkRead(ctx context.Context, userID uint64, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return mongo.ErrNoDocuments
	}
	filter := bson.M{"_id": objectID, "user_id": userID}
	update := bson.M{"$set": bson.M{"is_read": true, "updated_at": time.Now()}}
	result, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// MarkAllRead 一键清除未读
func (s *notificationRepoImpl) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	filter := bson.M{"user_id": userID, "is_read": false}
	update := bson.M{"$set": bson.M{"is_read": true, "updated_at": time.Now()}}
	result, err := s.col.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

func (s *notificationRepoImpl) Delete(ctx context.Context, userID uint64, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return mongo.ErrNoDocuments
	}
	result, err := s.col.DeleteOne(ctx, bson.M{"_id": objectID, "user_id": userID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *notificationRepoImpl) CountAll(ctx context.Context, userID uint64) (int64, error) {
	return s.col.CountDocuments(ctx, bson.M{"user_id": userID})
}

func (s *notificationRepoImpl) CountUnread(ctx context.Context, userID uint64) (int64, error) {
	return s.col.CountDocuments(ctx, bson.M{"user_id": userID, "is_read": false})
}

func (s *notificationRepoImpl) CountByStatus(ctx context.Context, status notify.DeliveryStatus) (int64, error) {
	return s.col.CountDocuments(ctx, bson.M{"delivery_status": status})
}

func (s *notificationRepoImpl) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*Notification, error) {
	cursor, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	list := make([]*Notification, 0)
	if err = cursor.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}
