package service

import (
	"Carhub/internal/api/dto"
	"Carhub/internal/pkg/consts"
	"Carhub/internal/pkg/mongo"
	"Carhub/internal/pkg/notify"
	"Carhub/internal/pkg/util"
	"context"
	"fmt"
	log "log/slog"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

const preferenceCacheTTL = 10 * time.Minute

type PreferenceService interface {
	Get(ctx context.Context, userID uint64) (*dto.PreferenceDTO, error)
	Update(ctx context.Context, userID uint64, req *dto.PreferenceDTO) (*dto.PreferenceDTO, error)
	// Suppresses 判断该类型通知此刻是否应被用户偏好拦截，关键类型永不拦截
	Suppresses(ctx context.Context, userID uint64, t notify.Type, at time.Time) (bool, error)
}

type preferenceServiceImpl struct {
	repo mongo.PreferenceRepo
	kv   KV
}

func NewPreferenceService(repo mongo.PreferenceRepo, kv KV) PreferenceService {
	return &preferenceServiceImpl{
		repo: repo,
		kv:   kv,
	}
}

// Get 未设置过偏好时返回默认值（全部接收）
func (s *preferenceServiceImpl) Get(ctx context.Context, userID uint64) (*dto.PreferenceDTO, error) {
	pref, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toPreferenceDTO(pref), nil
}

func (s *preferenceServiceImpl) Update(ctx context.Context, userID uint64, req *dto.PreferenceDTO) (*dto.PreferenceDTO, error) {
	if req == nil {
		return nil, ErrPreferenceInvalid
	}
	if err := util.ValidateDTO(req); err != nil {
		log.WarnContext(ctx, "notification preference rejected", "userID", userID, "err", err)
		return nil, ErrPreferenceInvalid
	}
	for _, t := range req.MutedTypes {
		if !t.Valid() {
			return nil, ErrPreferenceInvalid
		}
	}
	if q := req.QuietHours; q.Enabled && (q.Start == "" || q.End == "" || q.Start == q.End) {
		return nil, ErrPreferenceInvalid
	}

	pref := &mongo.NotificationPreference{
		UserID:     userID,
		Muted:      req.Muted,
		MutedTypes: dedupTypes(req.MutedTypes),
		QuietHours: mongo.QuietHours{
			Enabled:          req.QuietHours.Enabled,
			Start:            req.QuietHours.Start,
			End:              req.QuietHours.End,
			UTCOffsetMinutes: req.QuietHours.UTCOffsetMinutes,
		},
	}
	if err := s.repo.Upsert(ctx, pref); err != nil {
		return nil, err
	}

	// 先写库再删缓存
	if err := s.kv.Del(ctx, preferenceKey(userID)); err != nil {
		log.WarnContext(ctx, "notification preference cache evict failed", "userID", userID, "err", err)
	}
	return toPreferenceDTO(pref), nil
}

func (s *preferenceServiceImpl) Suppresses(ctx context.Context, userID uint64, t notify.Type, at time.Time) (bool, error) {
	if t.Critical() {
		return false, nil
	}
	pref, err := s.load(ctx, userID)
	if err != nil {
		return false, err
	}
	if pref == nil {
		return false, nil
	}
	if pref.Muted {
		return true, nil
	}
	for _, muted := range pref.MutedTypes {
		if muted == t {
			return true, nil
		}
	}
	return InQuietHours(pref.QuietHours, at), nil
}

// load 优先读缓存，未命中回源 Mongo 并回填；未设置过偏好返回 nil
func (s *preferenceServiceImpl) load(ctx context.Context, userID uint64) (*mongo.NotificationPreference, error) {
	key := preferenceKey(userID)
	if cached, err := s.kv.Get(ctx, key); err == nil && cached != "" {
		pref := &mongo.NotificationPreference{}
		if err = json.Unmarshal([]byte(cached), pref); err == nil {
			if pref.UserID == 0 {
				return nil, nil
			}
			return pref, nil
		}
		log.WarnContext(ctx, "notification preference cache corrupted", "userID", userID, "err", err)
	}

	pref, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	// 未设置偏好时缓存空对象，避免每次回源
	toCache := pref
	if toCache == nil {
		toCache = &mongo.NotificationPreference{}
	}
	if data, err := json.Marshal(toCache); err == nil {
		if err = s.kv.Set(ctx, key, string(data), preferenceCacheTTL); err != nil {
			log.WarnContext(ctx, "notification preference cache fill failed", "userID", userID, "err", err)
		}
	}
	return pref, nil
}

// InQuietHours 判断 at 是否落在免打扰时段内，时段按用户时区计算并允许跨零点
func InQuietHours(q mongo.QuietHours, at time.Time) bool {
	if !q.Enabled {
		return false
	}
	start, err := parseClock(q.Start)
	if err != nil {
		return false
	}
	end, err := parseClock(q.End)
	if err != nil || start == end {
		return false
	}

	local := at.UTC().Add(time.Duration(q.UTCOffsetMinutes) * time.Minute)
	now := local.Hour()*60 + local.Minute()
	if start < end {
		return now >= start && now < end
	}
	return now >= start || now < end
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func preferenceKey(userID uint64) string {
	return consts.NotifyPreferenceKey + strconv.FormatUint(userID, 10)
}

func dedupTypes(types []notify.Type) []notify.Type {
	res := make([]notify.Type, 0, len(types))
	seen := make(map[notify.Type]struct{}, len(types))
	for _, t := range types {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		res = append(res, t)
	}
	return res
}

func toPreferenceDTO(pref *mongo.NotificationPreference) *dto.PreferenceDTO {
	if pref == nil {
		return &dto.PreferenceDTO{MutedTypes: []notify.Type{}}
	}
	mutedTypes := pref.MutedTypes
	if mutedTypes == nil {
		mutedTypes = []notify.Type{}
	}
	return &dto.PreferenceDTO{
		Muted:      pref.Muted,
		MutedTypes: mutedTypes,
		QuietHours: dto.QuietHoursDTO{
			Enabled:          pref.QuietHours.Enabled,
			Start:            pref.QuietHours.Start,
			End:              pref.QuietHours.End,
			UTCOffsetMinutes: pref.QuietHours.UTCOffsetMinutes,
		},
	}
}
