package repository

import (
	"Carhub/internal/model"
	"context"
	"errors"

	"gorm.io/gorm"
)

type UserRepo interface {
	// Exists 未注销的用户视为存在，被封禁的用户仍接收通知
	Exists(ctx context.Context, id uint64) (bool, error)
	GetUserDetailById(ctx context.Context, id uint64) (*model.UserDetail, error)
}

type UserRepoImpl struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) UserRepo {
	return &UserRepoImpl{db: db}
}

func (s *UserRepoImpl) Exists(ctx context.Context, id uint64) (bool, error) {
	var count int64
	result := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND is_delete = ?", id, false).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

func (s *UserRepoImpl) GetUserDetailById(ctx context.Context, id uint64) (*model.UserDetail, error) {
	detail := &model.UserDetail{}
	result := s.db.WithContext(ctx).
		Select("user_id", "nickname", "avatar_url").
		Where("user_id = ?", id).
		First(detail)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return detail, nil
}
