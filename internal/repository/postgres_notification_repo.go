package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/openbook/internal/model"
)

// PostgresNotificationRepo はPostgreSQLを使用した通知リポジトリ。
type PostgresNotificationRepo struct {
	db *sql.DB
}

// NewPostgresNotificationRepo はPostgresNotificationRepoを生成する。
func NewPostgresNotificationRepo(db *sql.DB) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{db: db}
}

// Create は通知を1件作成する。
func (r *PostgresNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, recipient_id, type, payload, created_at, read)
		 VALUES ($1, $2, $3, $4, $5, false)`,
		n.ID, n.RecipientID, string(n.Type), []byte(n.Payload), n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// CreateBatch は同一内容の通知を複数の宛先へ1回の文で一括作成する。
// 宛先ごとのトランザクションを繰り返さず、unnestによるバッチ挿入で
// ファンアウトの遅延を上限付きに保つ。
func (r *PostgresNotificationRepo) CreateBatch(ctx context.Context, recipientIDs []string, typ model.NotificationType, payload []byte, createdAt time.Time) error {
	if len(recipientIDs) == 0 {
		return nil
	}

	ids := make([]string, len(recipientIDs))
	for i := range recipientIDs {
		ids[i] = uuid.New().String()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, recipient_id, type, payload, created_at, read)
		 SELECT unnest($1::text[]), unnest($2::text[]), $3, $4, $5, false`,
		pq.Array(ids), pq.Array(recipientIDs), string(typ), payload, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to batch insert notifications: %w", err)
	}
	return nil
}

// ListByRecipient は宛先ユーザーの通知をcreated_at降順で返す。
func (r *PostgresNotificationRepo) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*model.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, recipient_id, type, payload, created_at, read
		 FROM notifications
		 WHERE recipient_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		recipientID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*model.Notification
	for rows.Next() {
		n := &model.Notification{}
		var typ string
		var payload []byte
		if err := rows.Scan(&n.ID, &n.RecipientID, &typ, &payload, &n.CreatedAt, &n.Read); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Type = model.NotificationType(typ)
		n.Payload = payload
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return notifications, nil
}

// CountUnread は宛先ユーザーの未読通知数を返す。
func (r *PostgresNotificationRepo) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND NOT read`,
		recipientID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead は宛先ユーザー本人の通知を既読にする。
// 所有権チェックをWHERE句に畳み込み、他ユーザー宛の通知は
// 存在しない場合と区別できない（falseを返す）。
func (r *PostgresNotificationRepo) MarkRead(ctx context.Context, recipientID, notificationID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = true
		 WHERE id = $1 AND recipient_id = $2`,
		notificationID, recipientID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
