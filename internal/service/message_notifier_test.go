package service

import (
	"Carhub/internal/api/dto"
	"Carhub/internal/pkg/mongo"
	"Carhub/internal/pkg/notify"
	"context"
	"testing"
)

func newMessageNotifier(h *harness) MessageNotifier {
	return NewMessageNotifier(h.svc, h.repo, h.users, h.prefs, h.registry, h.conversations, h.kv)
}

func TestMessageNotifierCreatesThenCoalesces(t *testing.T) {
	h := newHarness(t, nil)
	h.users.setNickname(2, "Alice")
	notifier := newMessageNotifier(h)
	ctx := context.Background()

	first, err := notifier.OnMessage(ctx, &MessageEvent{MessageID: 10, SenderID: 2, RecipientID: 1, Content: "Is the car still available?"})
	if err != nil || first == nil {
		t.Fatalf("first message: %v, %v", first, err)
	}
	if first.Type != notify.TypeNewMessage || first.SubjectID != 2 || first.Title != "New message from Alice" {
		t.Fatalf("unexpected notification %+v", first)
	}

	second, err := notifier.OnMessage(ctx, &MessageEvent{MessageID: 11, SenderID: 2, RecipientID: 1, Content: "Can I see it tomorrow?"})
	if err != nil || second == nil {
		t.Fatalf("second message: %v, %v", second, err)
	}
	if second.ID != first.ID {
		t.Fatalf("unread message notification should be reused")
	}
	if h.repo.count() != 1 {
		t.Fatalf("persisted %d, want 1", h.repo.count())
	}

	stored, _ := h.repo.GetByID(ctx, 1, first.IDHex())
	if stored.Title != "2 new messages from Alice" || stored.Message != "Can I see it tomorrow?" {
		t.Fatalf("unexpected coalesced content %+v", stored)
	}
	if got := metaInt(stored.Metadata[mongo.MetaCount]); got != 2 {
		t.Fatalf("count = %d, want 2", got)
	}

	// 离线时合并后的内容替换队列中的旧快照
	entries, _ := h.svc.queue.Drain(1)
	if len(entries) != 1 || entries[0].Payload.Title != "2 new messages from Alice" {
		t.Fatalf("queued payload should be refreshed, got %+v", entries)
	}
}

func TestMessageNotifierFreshAfterRead(t *testing.T) {
	h := newHarness(t, nil)
	notifier := newMessageNotifier(h)
	ctx := context.Background()

	first, _ := notifier.OnMessage(ctx, &MessageEvent{MessageID: 1, SenderID: 2, RecipientID: 1, Content: "hi"})
	if err := h.svc.MarkRead(ctx, 1, first.IDHex()); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	second, err := notifier.OnMessage(ctx, &MessageEvent{MessageID: 2, SenderID: 2, RecipientID: 1, Content: "hi"})
	if err != nil || second == nil {
		t.Fatalf("message after read should notify again: %v, %v", second, err)
	}
	if second.ID == first.ID {
		t.Fatalf("expected a fresh notification")
	}
	if second.Title != "New message from User 2" {
		t.Fatalf("fallback sender name not used: %q", second.Title)
	}
}

func TestMessageNotifierSkipsOpenConversation(t *testing.T) {
	cases := []struct {
		name      string
		online    bool
		entered   bool
		wantNotif bool
	}{
		{name: "online in conversation", online: true, entered: true, wantNotif: false},
		{name: "online elsewhere", online: true, entered: false, wantNotif: true},
		{name: "offline with stale conversation", online: false, entered: true, wantNotif: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			notifier := newMessageNotifier(h)
			ctx := context.Background()
			if tc.online {
				h.svc.OnConnect(ctx, 1, "c1")
			}
			if tc.entered {
				h.conversations.Enter(1, 2)
			}

			n, err := notifier.OnMessage(ctx, &MessageEvent{MessageID: 5, SenderID: 2, RecipientID: 1, Content: "hello"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (n != nil) != tc.wantNotif {
				t.Fatalf("notified = %v, want %v", n != nil, tc.wantNotif)
			}
		})
	}
}

func TestMessageNotifierAfterLeavingConversation(t *testing.T) {
	h := newHarness(t, nil)
	notifier := newMessageNotifier(h)
	ctx := context.Background()
	h.svc.OnConnect(ctx, 1, "c1")
	h.conversations.Enter(1, 2)

	n, err := notifier.OnMessage(ctx, &MessageEvent{MessageID: 1, SenderID: 2, RecipientID: 1, Content: "still there?"})
	if err != nil || n != nil {
		t.Fatalf("open conversation should suppress: %v, %v", n, err)
	}

	h.conversations.Leave(1, 2)
	n, err = notifier.OnMessage(ctx, &MessageEvent{MessageID: 2, SenderID: 2, RecipientID: 1, Content: "hello?"})
	if err != nil || n == nil {
		t.Fatalf("message after leaving should notify: %v, %v", n, err)
	}
	if got := h.transport.notifications(t, "c1"); len(got) != 1 || got[0].ID != n.IDHex() {
		t.Fatalf("expected one push for %s, got %+v", n.IDHex(), got)
	}
}

func TestMessageNotifierRedeliveredMessageCountsOnce(t *testing.T) {
	h := newHarness(t, nil)
	notifier := newMessageNotifier(h)
	ctx := context.Background()

	first, _ := notifier.OnMessage(ctx, &MessageEvent{MessageID: 10, SenderID: 2, RecipientID: 1, Content: "a"})
	second, _ := notifier.OnMessage(ctx, &MessageEvent{MessageID: 11, SenderID: 2, RecipientID: 1, Content: "b"})
	if first == nil || second == nil || second.ID != first.ID {
		t.Fatalf("expected coalesced notification")
	}

	again, err := notifier.OnMessage(ctx, &MessageEvent{MessageID: 11, SenderID: 2, RecipientID: 1, Content: "b"})
	if err != nil || again == nil || again.ID != first.ID {
		t.Fatalf("redelivery = %v, %v", again, err)
	}
	stored, _ := h.repo.GetByID(ctx, 1, first.IDHex())
	if got := metaInt(stored.Metadata[mongo.MetaCount]); got != 2 {
		t.Fatalf("count = %d after redelivery, want 2", got)
	}
}

func TestMessageNotifierMutedSkipsCoalesce(t *testing.T) {
	h := newHarness(t, nil)
	notifier := newMessageNotifier(h)
	ctx := context.Background()
	h.svc.OnConnect(ctx, 1, "c1")

	first, _ := notifier.OnMessage(ctx, &MessageEvent{MessageID: 1, SenderID: 2, RecipientID: 1, Content: "a"})
	if first == nil {
		t.Fatalf("first message should notify")
	}
	if _, err := h.prefs.Update(ctx, 1, &dto.PreferenceDTO{MutedTypes: []notify.Type{notify.TypeNewMessage}}); err != nil {
		t.Fatalf("update preference: %v", err)
	}

	n, err := notifier.OnMessage(ctx, &MessageEvent{MessageID: 2, SenderID: 2, RecipientID: 1, Content: "b"})
	if err != nil || n != nil {
		t.Fatalf("muted recipient: %v, %v", n, err)
	}
	if got := len(h.transport.notifications(t, "c1")); got != 1 {
		t.Fatalf("pushes = %d, want 1", got)
	}
	stored, _ := h.repo.GetByID(ctx, 1, first.IDHex())
	if got := metaInt(stored.Metadata[mongo.MetaCount]); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}
}

func TestMessageNotifierIgnoresInvalidEvents(t *testing.T) {
	h := newHarness(t, nil)
	notifier := newMessageNotifier(h)

	for _, msg := range []*MessageEvent{
		nil,
		{SenderID: 2, RecipientID: 0, Content: "x"},
		{SenderID: 0, RecipientID: 1, Content: "x"},
		{SenderID: 1, RecipientID: 1, Content: "x"},
	} {
		if n, err := notifier.OnMessage(context.Background(), msg); n != nil || err != nil {
			t.Fatalf("expected nil, nil for %+v; got %v, %v", msg, n, err)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("短消息", 5); got != "短消息" {
		t.Fatalf("got %q", got)
	}
	if got := truncate("这是一条很长的私信内容", 4); got != "这是一条…" {
		t.Fatalf("got %q", got)
	}
}
