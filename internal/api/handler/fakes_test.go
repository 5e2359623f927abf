package handler

import (
	"Carhub/internal/api/dto"
	"Carhub/internal/pkg/notify"
	"Carhub/internal/service"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

// fakeNotifications 只实现被 handler 调用的方法，其余方法调用即 panic
type fakeNotifications struct {
	service.NotificationService

	mu           sync.Mutex
	connected    []string
	disconnected []string
	confirmed    []string
	read         []string
	deleted      []string
	confirmErr   error
	announced    *dto.AnnounceReq
}

func (f *fakeNotifications) OnConnect(_ context.Context, _ uint64, connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = append(f.connected, connID)
}

func (f *fakeNotifications) OnDisconnect(_ context.Context, connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = append(f.disconnected, connID)
}

func (f *fakeNotifications) Confirm(_ context.Context, _ uint64, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.confirmed = append(f.confirmed, id)
	return nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, _ uint64, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == "missing" {
		return service.ErrNotificationNotFound
	}
	f.read = append(f.read, id)
	return nil
}

func (f *fakeNotifications) Delete(_ context.Context, _ uint64, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeNotifications) List(_ context.Context, userID uint64, page, pageSize int) ([]*dto.NotificationDTO, error) {
	return []*dto.NotificationDTO{{ID: "n1", UserID: userID, Type: notify.TypeListingLiked, Priority: page * pageSize}}, nil
}

func (f *fakeNotifications) UnreadCount(context.Context, uint64) (*dto.UnreadCountDTO, error) {
	return &dto.UnreadCountDTO{UnreadCount: 3}, nil
}

func (f *fakeNotifications) AdminStats(context.Context) (*dto.AdminStatsDTO, error) {
	return &dto.AdminStatsDTO{OnlineUsers: 1}, nil
}

func (f *fakeNotifications) Announce(_ context.Context, req *dto.AnnounceReq) (*dto.AnnounceResultDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announced = req
	return &dto.AnnounceResultDTO{Created: len(req.UserIDs)}, nil
}

func (f *fakeNotifications) snapshot() (connected, disconnected, confirmed, read []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.connected...), append([]string(nil), f.disconnected...),
		append([]string(nil), f.confirmed...), append([]string(nil), f.read...)
}

type fakePreferences struct {
	mu      sync.Mutex
	updated map[uint64]*dto.PreferenceDTO
}

func newFakePreferences() *fakePreferences {
	return &fakePreferences{updated: make(map[uint64]*dto.PreferenceDTO)}
}

func (f *fakePreferences) Get(_ context.Context, userID uint64) (*dto.PreferenceDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.updated[userID]; ok {
		return p, nil
	}
	return &dto.PreferenceDTO{MutedTypes: []notify.Type{}}, nil
}

func (f *fakePreferences) Update(_ context.Context, userID uint64, req *dto.PreferenceDTO) (*dto.PreferenceDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated[userID] = req
	return req, nil
}

func (f *fakePreferences) Suppresses(context.Context, uint64, notify.Type, time.Time) (bool, error) {
	return false, nil
}

func (f *fakePreferences) get(userID uint64) *dto.PreferenceDTO {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updated[userID]
}

// asUser 代替 AuthMiddleware 注入身份
func asUser(userID uint64, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("roles", roles)
		c.Next()
	}
}
