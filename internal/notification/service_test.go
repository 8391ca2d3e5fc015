package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/openbook/internal/model"
)

// --- モック ---

type mockNotificationRepo struct {
	createFn          func(ctx context.Context, n *model.Notification) error
	createBatchFn     func(ctx context.Context, recipientIDs []string, typ model.NotificationType, payload []byte, createdAt time.Time) error
	listByRecipientFn func(ctx context.Context, recipientID string, limit, offset int) ([]*model.Notification, error)
	countUnreadFn     func(ctx context.Context, recipientID string) (int, error)
	markReadFn        func(ctx context.Context, recipientID, notificationID string) (bool, error)
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	return m.createFn(ctx, n)
}
func (m *mockNotificationRepo) CreateBatch(ctx context.Context, recipientIDs []string, typ model.NotificationType, payload []byte, createdAt time.Time) error {
	return m.createBatchFn(ctx, recipientIDs, typ, payload, createdAt)
}
func (m *mockNotificationRepo) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*model.Notification, error) {
	return m.listByRecipientFn(ctx, recipientID, limit, offset)
}
func (m *mockNotificationRepo) CountUnread(ctx context.Context, recipientID string) (int, error) {
	return m.countUnreadFn(ctx, recipientID)
}
func (m *mockNotificationRepo) MarkRead(ctx context.Context, recipientID, notificationID string) (bool, error) {
	return m.markReadFn(ctx, recipientID, notificationID)
}

type mockPusher struct {
	pushes []string // "userID:event"
}

func (m *mockPusher) Push(userID, event string) {
	m.pushes = append(m.pushes, userID+":"+event)
}

type mockCollector struct {
	emitted map[string]int
}

func (m *mockCollector) RecordNotificationEmitted(typ string, count int) {
	if m.emitted == nil {
		m.emitted = map[string]int{}
	}
	m.emitted[typ] += count
}

// --- Emit ---

func TestEmit_RecordsAndPushes(t *testing.T) {
	var created *model.Notification
	repo := &mockNotificationRepo{
		createFn: func(ctx context.Context, n *model.Notification) error {
			created = n
			return nil
		},
	}
	pusher := &mockPusher{}
	collector := &mockCollector{}
	svc := NewService(repo, pusher, collector)

	svc.Emit(context.Background(), "user-1", model.NotificationPostLiked, map[string]string{"postId": "post-1"})

	if created == nil {
		t.Fatal("notification should be recorded")
	}
	if created.RecipientID != "user-1" {
		t.Errorf("RecipientID = %q, want user-1", created.RecipientID)
	}
	if created.Type != model.NotificationPostLiked {
		t.Errorf("Type = %q, want POST_LIKED", created.Type)
	}
	if created.Read {
		t.Error("new notification should be unread")
	}

	var payload map[string]string
	if err := json.Unmarshal(created.Payload, &payload); err != nil {
		t.Fatalf("payload should be JSON: %v", err)
	}
	if payload["postId"] != "post-1" {
		t.Errorf("payload postId = %q, want post-1", payload["postId"])
	}

	if len(pusher.pushes) != 1 || pusher.pushes[0] != "user-1:NEW_NOTIFICATION" {
		t.Errorf("pushes = %v, want [user-1:NEW_NOTIFICATION]", pusher.pushes)
	}
	if collector.emitted["POST_LIKED"] != 1 {
		t.Errorf("emitted = %v, want POST_LIKED:1", collector.emitted)
	}
}

func TestEmit_RepoFailureIsSwallowed(t *testing.T) {
	repo := &mockNotificationRepo{
		createFn: func(ctx context.Context, n *model.Notification) error {
			return errors.New("db down")
		},
	}
	pusher := &mockPusher{}
	svc := NewService(repo, pusher, nil)

	// パニックもエラー伝播もしないことだけを確認する
	svc.Emit(context.Background(), "user-1", model.NotificationFriendRequest, nil)

	// 記録に失敗した通知はプッシュもされない
	if len(pusher.pushes) != 0 {
		t.Errorf("pushes = %v, want none after record failure", pusher.pushes)
	}
}

func TestEmit_NilPusherAndCollector(t *testing.T) {
	repo := &mockNotificationRepo{
		createFn: func(ctx context.Context, n *model.Notification) error { return nil },
	}
	svc := NewService(repo, nil, nil)

	svc.Emit(context.Background(), "user-1", model.NotificationFriendRequest, nil)
}

// --- EmitToAll ---

func TestEmitToAll_BatchInsertAndFanOut(t *testing.T) {
	var gotRecipients []string
	var gotType model.NotificationType
	repo := &mockNotificationRepo{
		createBatchFn: func(ctx context.Context, recipientIDs []string, typ model.NotificationType, payload []byte, createdAt time.Time) error {
			gotRecipients = recipientIDs
			gotType = typ
			return nil
		},
	}
	pusher := &mockPusher{}
	collector := &mockCollector{}
	svc := NewService(repo, pusher, collector)

	svc.EmitToAll(context.Background(), []string{"a", "b", "c"}, model.NotificationFriendPosted, map[string]string{"postId": "p1"})

	if len(gotRecipients) != 3 {
		t.Fatalf("recipients = %v, want 3", gotRecipients)
	}
	if gotType != model.NotificationFriendPosted {
		t.Errorf("type = %q, want FRIEND_POSTED", gotType)
	}
	if len(pusher.pushes) != 3 {
		t.Errorf("pushes = %v, want 3 entries", pusher.pushes)
	}
	if collector.emitted["FRIEND_POSTED"] != 3 {
		t.Errorf("emitted = %v, want FRIEND_POSTED:3", collector.emitted)
	}
}

func TestEmitToAll_EmptyRecipientsIsNoop(t *testing.T) {
	called := false
	repo := &mockNotificationRepo{
		createBatchFn: func(ctx context.Context, recipientIDs []string, typ model.NotificationType, payload []byte, createdAt time.Time) error {
			called = true
			return nil
		},
	}
	svc := NewService(repo, nil, nil)

	svc.EmitToAll(context.Background(), nil, model.NotificationFriendPosted, nil)

	if called {
		t.Error("CreateBatch should not be called for empty recipients")
	}
}

// --- MarkRead ---

func TestMarkRead_Success(t *testing.T) {
	repo := &mockNotificationRepo{
		markReadFn: func(ctx context.Context, recipientID, notificationID string) (bool, error) {
			if recipientID != "user-1" || notificationID != "n-1" {
				t.Errorf("MarkRead(%q, %q), want (user-1, n-1)", recipientID, notificationID)
			}
			return true, nil
		},
	}
	svc := NewService(repo, nil, nil)

	if err := svc.MarkRead(context.Background(), "user-1", "n-1"); err != nil {
		t.Fatalf("MarkRead returned error: %v", err)
	}
}

func TestMarkRead_OtherUsersNotification_ReturnsNotFound(t *testing.T) {
	repo := &mockNotificationRepo{
		markReadFn: func(ctx context.Context, recipientID, notificationID string) (bool, error) {
			return false, nil
		},
	}
	svc := NewService(repo, nil, nil)

	err := svc.MarkRead(context.Background(), "user-1", "n-1")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNotificationNotFound {
		t.Fatalf("err = %v, want NOTIFICATION_NOT_FOUND", err)
	}
}

// --- List / UnreadCount ---

func TestUnreadCount_DelegatesToRepo(t *testing.T) {
	repo := &mockNotificationRepo{
		countUnreadFn: func(ctx context.Context, recipientID string) (int, error) {
			return 7, nil
		},
	}
	svc := NewService(repo, nil, nil)

	n, err := svc.UnreadCount(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("UnreadCount returned error: %v", err)
	}
	if n != 7 {
		t.Errorf("count = %d, want 7", n)
	}
}
