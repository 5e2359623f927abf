package repository

import (
	"Carhub/internal/model"
	"context"
	"errors"

	"gorm.io/gorm"
)

type ListingRepo interface {
	GetListingById(ctx context.Context, id uint64) (*model.Listing, error)
}

type ListingRepoImpl struct {
	db *gorm.DB
}

func NewListingRepo(db *gorm.DB) ListingRepo {
	return &ListingRepoImpl{db: db}
}

// GetListingById 已删除或不存在返回 nil, nil
func (s *ListingRepoImpl) GetListingById(ctx context.Context, id uint64) (*model.Listing, error) {
	listing := &model.Listing{}
	result := s.db.WithContext(ctx).
		Select("id", "user_id", "title", "status").
		Where("id = ? AND is_delete = ?", id, false).
		First(listing)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return listing, nil
}
