package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/openbook/internal/model"
)

// PostgresMessageRepo はPostgreSQLを使用したメッセージリポジトリ。
type PostgresMessageRepo struct {
	db *sql.DB
}

// NewPostgresMessageRepo はPostgresMessageRepoを生成する。
func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

// Create はメッセージを作成する。
func (r *PostgresMessageRepo) Create(ctx context.Context, m *model.Message) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, sender_id, recipient_id, content, file, sent_at, read)
		 VALUES ($1, $2, $3, $4, $5, $6, false)`,
		m.ID, m.SenderID, m.RecipientID, m.Content, m.File, m.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// CountUnread は宛先ユーザーの未読メッセージ数を返す。
func (r *PostgresMessageRepo) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE recipient_id = $1 AND NOT read`,
		recipientID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

// Thread は相手からの未読を既読化した上で、双方向のスレッドを
// sent_at降順で返す。既読化と取得を同一トランザクションで行い、
// 並行する送信との間で取りこぼしや二重既読を起こさない。
func (r *PostgresMessageRepo) Thread(ctx context.Context, userID, peerID string, limit, offset int) ([]*model.Message, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 相手から自分宛の未読を既読化
	_, err = tx.ExecContext(ctx,
		`UPDATE messages SET read = true
		 WHERE sender_id = $1 AND recipient_id = $2 AND NOT read`,
		peerID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark thread read: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, sender_id, recipient_id, content, file, sent_at, read
		 FROM messages
		 WHERE (sender_id = $1 AND recipient_id = $2)
		    OR (sender_id = $2 AND recipient_id = $1)
		 ORDER BY sent_at DESC
		 LIMIT $3 OFFSET $4`,
		userID, peerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query thread: %w", err)
	}
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		m := &model.Message{}
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Content, &m.File, &m.SentAt, &m.Read); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return messages, nil
}

// ChatSummaries は会話相手ごとの最新メッセージ要約を新しい順で返す。
//
// 双方向のメッセージ関係を1つのスナップショットに対するUNION +
// 相手ごとのMAX(sent_at)絞り込みで畳み込む。2クエリをアプリ側で
// マージする方式は並行送信と競合して古い行や欠けた行を見せ得るため
// 採らない。自分が送った側の行には "You: " 接頭辞、本文のない行には
// 添付プレースホルダを付与する。
func (r *PostgresMessageRepo) ChatSummaries(ctx context.Context, userID string) ([]*model.ChatSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`WITH chat_table AS (
		    SELECT
		        recipient_id AS friend_id,
		        sent_at,
		        'You: ' || CASE WHEN content = '' THEN '`+model.AttachmentPlaceholder+`' ELSE content END AS content,
		        false AS attention
		    FROM messages
		    WHERE sender_id = $1
		    UNION
		    SELECT
		        sender_id AS friend_id,
		        sent_at,
		        CASE WHEN content = '' THEN '`+model.AttachmentPlaceholder+`' ELSE content END AS content,
		        NOT read AS attention
		    FROM messages
		    WHERE recipient_id = $1
		 )
		 SELECT
		    friend_id, first_name, last_name, profile_image, last_active,
		    sent_at, content, attention
		 FROM chat_table
		 INNER JOIN users ON chat_table.friend_id = users.id
		 WHERE (friend_id, sent_at) IN (
		    SELECT friend_id, MAX(sent_at)
		    FROM chat_table
		    GROUP BY friend_id
		 )
		 ORDER BY sent_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*model.ChatSummary
	for rows.Next() {
		s := &model.ChatSummary{}
		if err := rows.Scan(
			&s.FriendID, &s.FirstName, &s.LastName, &s.ProfileImage,
			&s.LastActive, &s.SentAt, &s.Content, &s.Attention,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chat summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat summaries: %w", err)
	}
	return summaries, nil
}

// FindByFile は添付ファイル名でメッセージを検索する。見つからない場合はnilを返す。
func (r *PostgresMessageRepo) FindByFile(ctx context.Context, file string) (*model.Message, error) {
	m := &model.Message{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, sender_id, recipient_id, content, file, sent_at, read
		 FROM messages WHERE file = $1 AND file <> ''`,
		file,
	).Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Content, &m.File, &m.SentAt, &m.Read)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find message by file: %w", err)
	}
	return m, nil
}

// compile-time interface check
var _ MessageRepository = (*PostgresMessageRepo)(nil)
