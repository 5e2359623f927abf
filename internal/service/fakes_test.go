package service

import (
	"Carhub/internal/api/config"
	"Carhub/internal/api/dto"
	"Carhub/internal/pkg/mongo"
	"Carhub/internal/pkg/notify"
	"Carhub/internal/pkg/presence"
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongoDB "go.mongodb.org/mongo-driver/mongo"
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
	t.Fatalf("condition not met within %v", timeout)
}

// fakeNotificationRepo 内存版通知库，保存副本避免与引擎共享指针
type fakeNotificationRepo struct {
	mu          sync.Mutex
	docs        map[primitive.ObjectID]mongo.Notification
	createErr   error
	statusDelay time.Duration
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{docs: make(map[primitive.ObjectID]mongo.Notification)}
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *mongo.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	now := time.Now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	r.docs[n.ID] = *n
	return nil
}

func (r *fakeNotificationRepo) GetByID(_ context.Context, userID uint64, id string) (*mongo.Notification, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.docs[objectID]
	if !ok || n.UserID != userID {
		return nil, nil
	}
	return &n, nil
}

func (r *fakeNotificationRepo) UpdateDeliveryStatus(_ context.Context, id primitive.ObjectID, status notify.DeliveryStatus, from ...notify.DeliveryStatus) error {
	r.mu.Lock()
	delay := r.statusDelay
	r.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.docs[id]
	if !ok {
		return nil
	}
	if len(from) > 0 && !slices.Contains(from, n.DeliveryStatus) {
		return nil
	}
	n.DeliveryStatus = status
	r.docs[id] = n
	return nil
}

func (r *fakeNotificationRepo) UpdateContent(_ context.Context, id primitive.ObjectID, title, message string, metadata map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.docs[id]
	if !ok {
		return mongoDB.ErrNoDocuments
	}
	n.Title = title
	n.Message = message
	if metadata != nil {
		n.Metadata = metadata
	}
	r.docs[id] = n
	return nil
}

func (r *fakeNotificationRepo) filter(match func(n *mongo.Notification) bool) []*mongo.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*mongo.Notification, 0)
	for _, n := range r.docs {
		if match(&n) {
			res = append(res, &n)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].ID.Hex() > res[j].ID.Hex()
	})
	return res
}

func (r *fakeNotificationRepo) List(_ context.Context, userID uint64, limit, offset int64) ([]*mongo.Notification, error) {
	list := r.filter(func(n *mongo.Notification) bool { return n.UserID == userID })
	if offset >= int64(len(list)) {
		return []*mongo.Notification{}, nil
	}
	list = list[offset:]
	if int64(len(list)) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (r *fakeNotificationRepo) ListUnread(_ context.Context, userID uint64, limit int64) ([]*mongo.Notification, error) {
	list := r.filter(func(n *mongo.Notification) bool { return n.UserID == userID && !n.IsRead })
	sort.SliceStable(list, func(i, j int) bool { return list[i].Priority > list[j].Priority })
	if int64(len(list)) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (r *fakeNotificationRepo) FindUnreadBySubject(_ context.Context, userID uint64, t notify.Type, subjectID uint64) (*mongo.Notification, error) {
	list := r.filter(func(n *mongo.Notification) bool {
		return n.UserID == userID && n.Type == t && n.SubjectID == subjectID && !n.IsRead
	})
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, userID uint64, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return mongoDB.ErrNoDocuments
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.docs[objectID]
	if !ok || n.UserID != userID {
		return mongoDB.ErrNoDocuments
	}
	n.IsRead = true
	r.docs[objectID] = n
	return nil
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, userID uint64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var updated int64
	for id, n := range r.docs {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			r.docs[id] = n
			updated++
		}
	}
	return updated, nil
}

func (r *fakeNotificationRepo) Delete(_ context.Context, userID uint64, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return mongoDB.ErrNoDocuments
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.docs[objectID]
	if !ok || n.UserID != userID {
		return mongoDB.ErrNoDocuments
	}
	delete(r.docs, objectID)
	return nil
}

func (r *fakeNotificationRepo) CountAll(_ context.Context, userID uint64) (int64, error) {
	return int64(len(r.filter(func(n *mongo.Notification) bool { return n.UserID == userID }))), nil
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, userID uint64) (int64, error) {
	return int64(len(r.filter(func(n *mongo.Notification) bool { return n.UserID == userID && !n.IsRead }))), nil
}

func (r *fakeNotificationRepo) CountByStatus(_ context.Context, status notify.DeliveryStatus) (int64, error) {
	return int64(len(r.filter(func(n *mongo.Notification) bool { return n.DeliveryStatus == status }))), nil
}

func (r *fakeNotificationRepo) EnsureIndexes(context.Context) error { return nil }

func (r *fakeNotificationRepo) status(id primitive.ObjectID) notify.DeliveryStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docs[id].DeliveryStatus
}

func (r *fakeNotificationRepo) setStatusDelay(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statusDelay = d
}

func (r *fakeNotificationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

// fakeTransport 记录每个连接收到的帧
type fakeTransport struct {
	mu      sync.Mutex
	frames  map[string][][]byte
	failing map[string]bool
	dead    map[string]bool
	pings   map[string]int
	closed  map[string]bool
	onSend  func(connID string, payload []byte)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		frames:  make(map[string][][]byte),
		failing: make(map[string]bool),
		dead:    make(map[string]bool),
		pings:   make(map[string]int),
		closed:  make(map[string]bool),
	}
}

func (f *fakeTransport) Send(connID string, payload []byte) error {
	f.mu.Lock()
	if f.failing[connID] || f.closed[connID] {
		f.mu.Unlock()
		return errors.New("send failed")
	}
	f.frames[connID] = append(f.frames[connID], payload)
	onSend := f.onSend
	f.mu.Unlock()

	if onSend != nil {
		onSend(connID, payload)
	}
	return nil
}

// setOnSend 模拟客户端在收到帧后的行为
func (f *fakeTransport) setOnSend(fn func(connID string, payload []byte)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSend = fn
}

func (f *fakeTransport) Ping(connID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings[connID]++
	return nil
}

func (f *fakeTransport) Alive(connID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.dead[connID] && !f.closed[connID]
}

func (f *fakeTransport) Close(connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed[connID] = true
}

func (f *fakeTransport) setFailing(connID string, failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[connID] = failing
}

func (f *fakeTransport) setDead(connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dead[connID] = true
}

type receivedEvent struct {
	Event string
	Data  json.RawMessage
}

// events 解码连接收到的帧，可按事件名过滤
func (f *fakeTransport) events(t *testing.T, connID, event string) []receivedEvent {
	t.Helper()
	f.mu.Lock()
	frames := append([][]byte(nil), f.frames[connID]...)
	f.mu.Unlock()

	res := make([]receivedEvent, 0, len(frames))
	for _, frame := range frames {
		var ev dto.ClientEvent
		if err := json.Unmarshal(frame, &ev); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if event == "" || ev.Event == event {
			res = append(res, receivedEvent{Event: ev.Event, Data: ev.Data})
		}
	}
	return res
}

func (f *fakeTransport) notifications(t *testing.T, connID string) []dto.NotificationDTO {
	t.Helper()
	events := f.events(t, connID, dto.EventNewNotification)
	res := make([]dto.NotificationDTO, 0, len(events))
	for _, ev := range events {
		var d dto.NotificationDTO
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			t.Fatalf("decode notification: %v", err)
		}
		res = append(res, d)
	}
	return res
}

type fakeUsers struct {
	mu        sync.Mutex
	known     map[uint64]string
	lookupErr error
}

func newFakeUsers(ids ...uint64) *fakeUsers {
	u := &fakeUsers{known: make(map[uint64]string)}
	for _, id := range ids {
		u.known[id] = ""
	}
	return u
}

func (u *fakeUsers) Exists(_ context.Context, userID uint64) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.lookupErr != nil {
		return false, u.lookupErr
	}
	_, ok := u.known[userID]
	return ok, nil
}

func (u *fakeUsers) Nickname(_ context.Context, userID uint64) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.known[userID], nil
}

func (u *fakeUsers) setNickname(userID uint64, name string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.known[userID] = name
}

type fakePreferenceRepo struct {
	mu    sync.Mutex
	prefs map[uint64]mongo.NotificationPreference
	gets  int
}

func newFakePreferenceRepo() *fakePreferenceRepo {
	return &fakePreferenceRepo{prefs: make(map[uint64]mongo.NotificationPreference)}
}

func (r *fakePreferenceRepo) Get(_ context.Context, userID uint64) (*mongo.NotificationPreference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	pref, ok := r.prefs[userID]
	if !ok {
		return nil, nil
	}
	return &pref, nil
}

func (r *fakePreferenceRepo) Upsert(_ context.Context, pref *mongo.NotificationPreference) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pref.UpdatedAt = time.Now()
	r.prefs[pref.UserID] = *pref
	return nil
}

func (r *fakePreferenceRepo) getCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gets
}

// memKV 内存版 KV，锁语义同 SETNX
type memKV struct {
	mu     sync.Mutex
	values map[string]string
	locks  map[string]string
}

func newMemKV() *memKV {
	return &memKV{values: make(map[string]string), locks: make(map[string]string)}
}

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *memKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memKV) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *memKV) TryLock(_ context.Context, key, owner string, _ time.Duration, _ int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[key]; held {
		return false, nil
	}
	m.locks[key] = owner
	return true, nil
}

func (m *memKV) UnLock(_ context.Context, key, owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] == owner {
		delete(m.locks, key)
	}
}

type harness struct {
	svc           *notificationServiceImpl
	repo          *fakeNotificationRepo
	transport     *fakeTransport
	users         *fakeUsers
	prefRepo      *fakePreferenceRepo
	prefs         PreferenceService
	kv            *memKV
	registry      *presence.Registry
	conversations *presence.Conversations
}

func newHarness(t *testing.T, tune func(cfg *config.NotifyConfig)) *harness {
	t.Helper()
	cfg := config.NotifyConfig{
		BatchWindow:    30 * time.Millisecond,
		ConfirmTimeout: time.Hour,
		ReplayPacing:   time.Millisecond,
	}
	if tune != nil {
		tune(&cfg)
	}

	h := &harness{
		repo:          newFakeNotificationRepo(),
		transport:     newFakeTransport(),
		users:         newFakeUsers(1, 2, 3),
		prefRepo:      newFakePreferenceRepo(),
		kv:            newMemKV(),
		registry:      presence.NewRegistry(),
		conversations: presence.NewConversations(),
	}
	h.prefs = NewPreferenceService(h.prefRepo, h.kv)
	h.svc = newNotificationService(h.repo, h.users, h.prefs, h.registry, h.conversations, h.transport, cfg)
	t.Cleanup(h.svc.Close)
	return h
}
