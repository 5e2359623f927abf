package service

import (
	"Carhub/internal/pkg/consts"
	"Carhub/internal/repository"
	"context"
	log "log/slog"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

const (
	userExistsTTL  = 10 * time.Minute
	userMissingTTL = time.Minute
	listingRefTTL  = 10 * time.Minute
)

type userDirectoryImpl struct {
	repo repository.UserRepo
	kv   KV
}

// NewUserDirectory 用户存在性查询，结果缓存在 KV 中，不存在的结果缓存时间更短
func NewUserDirectory(repo repository.UserRepo, kv KV) UserDirectory {
	return &userDirectoryImpl{repo: repo, kv: kv}
}

func (s *userDirectoryImpl) Exists(ctx context.Context, userID uint64) (bool, error) {
	key := consts.UserExistsKey + strconv.FormatUint(userID, 10)
	if cached, err := s.kv.Get(ctx, key); err == nil && cached != "" {
		return cached == "1", nil
	}

	exists, err := s.repo.Exists(ctx, userID)
	if err != nil {
		return false, err
	}

	value, ttl := "0", userMissingTTL
	if exists {
		value, ttl = "1", userExistsTTL
	}
	if err = s.kv.Set(ctx, key, value, ttl); err != nil {
		log.WarnContext(ctx, "user exists cache fill failed", "userID", userID, "err", err)
	}
	return exists, nil
}

func (s *userDirectoryImpl) Nickname(ctx context.Context, userID uint64) (string, error) {
	detail, err := s.repo.GetUserDetailById(ctx, userID)
	if err != nil || detail == nil {
		return "", err
	}
	return detail.Nickname, nil
}

// ListingRef 车源归属
type ListingRef struct {
	ID      uint64 `json:"id"`
	OwnerID uint64 `json:"ownerId"`
	Title   string `json:"title"`
}

type ListingDirectory interface {
	// Lookup 车源不存在时返回 nil, nil
	Lookup(ctx context.Context, listingID uint64) (*ListingRef, error)
}

type listingDirectoryImpl struct {
	repo repository.ListingRepo
	kv   KV
}

func NewListingDirectory(repo repository.ListingRepo, kv KV) ListingDirectory {
	return &listingDirectoryImpl{repo: repo, kv: kv}
}

func (s *listingDirectoryImpl) Lookup(ctx context.Context, listingID uint64) (*ListingRef, error) {
	key := consts.ListingOwnerKey + strconv.FormatUint(listingID, 10)
	if cached, err := s.kv.Get(ctx, key); err == nil && cached != "" {
		ref := &ListingRef{}
		if err = json.Unmarshal([]byte(cached), ref); err == nil {
			return ref, nil
		}
	}

	listing, err := s.repo.GetListingById(ctx, listingID)
	if err != nil || listing == nil {
		return nil, err
	}
	ref := &ListingRef{ID: listing.ID, OwnerID: listing.UserID, Title: listing.Title}
	if data, err := json.Marshal(ref); err == nil {
		if err = s.kv.Set(ctx, key, string(data), listingRefTTL); err != nil {
			log.WarnContext(ctx, "listing cache fill failed", "listingID", listingID, "err", err)
		}
	}
	return ref, nil
}
