package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/openbook/internal/model"
)

// PostgresFriendshipRepo はPostgreSQLを使用した友達関係リポジトリ。
//
// friendshipsテーブルはLEAST/GREATESTの一意インデックスを持ち、
// 同じ2人の組には向きに関わらず最大1行しか存在できない。
// ペア単位の直列化はこの制約に任せ、アプリケーション側のロックは持たない。
type PostgresFriendshipRepo struct {
	db *sql.DB
}

// NewPostgresFriendshipRepo はPostgresFriendshipRepoを生成する。
func NewPostgresFriendshipRepo(db *sql.DB) *PostgresFriendshipRepo {
	return &PostgresFriendshipRepo{db: db}
}

// FindByPair は2ユーザーの組に対する友達関係を向きに関わらず取得する。
// 見つからない場合はnilを返す。
func (r *PostgresFriendshipRepo) FindByPair(ctx context.Context, userA, userB string) (*model.Friendship, error) {
	f := &model.Friendship{}
	var acceptedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, requested_by_id, accepted_by_id, accepted_at
		 FROM friendships
		 WHERE LEAST(requested_by_id, accepted_by_id) = LEAST($1, $2)
		   AND GREATEST(requested_by_id, accepted_by_id) = GREATEST($1, $2)`,
		userA, userB,
	).Scan(&f.ID, &f.RequestedByID, &f.AcceptedByID, &acceptedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find friendship: %w", err)
	}

	if acceptedAt.Valid {
		f.AcceptedAt = &acceptedAt.Time
	}
	return f, nil
}

// Create は未承認の友達リクエスト行を作成する。
// 同じ組の行がすでに存在する場合はErrDuplicateを返す。
// 同時に同じ組へ書き込んだ敗者側もここでErrDuplicateを受け取る。
func (r *PostgresFriendshipRepo) Create(ctx context.Context, f *model.Friendship) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO friendships (id, requested_by_id, accepted_by_id)
		 VALUES ($1, $2, $3)`,
		f.ID, f.RequestedByID, f.AcceptedByID,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert friendship: %w", err)
	}
	return nil
}

// Accept は指定IDの行にaccepted_atを設定する。
func (r *PostgresFriendshipRepo) Accept(ctx context.Context, id string, acceptedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE friendships SET accepted_at = $2 WHERE id = $1`,
		id, acceptedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to accept friendship: %w", err)
	}
	return nil
}

// DeleteByPair は2ユーザーの組に対する行を状態に関わらず削除する。
// 解除・リクエスト取消・リクエスト拒否のすべてをこの1操作で扱う。
func (r *PostgresFriendshipRepo) DeleteByPair(ctx context.Context, userA, userB string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM friendships
		 WHERE LEAST(requested_by_id, accepted_by_id) = LEAST($1, $2)
		   AND GREATEST(requested_by_id, accepted_by_id) = GREATEST($1, $2)`,
		userA, userB,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete friendship: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// ListFriendIDs は承認済みの友達関係にある相手のID集合を返す。
func (r *PostgresFriendshipRepo) ListFriendIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT accepted_by_id FROM friendships
		 WHERE requested_by_id = $1 AND accepted_at IS NOT NULL
		 UNION
		 SELECT requested_by_id FROM friendships
		 WHERE accepted_by_id = $1 AND accepted_at IS NOT NULL`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list friend IDs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan friend ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate friend IDs: %w", err)
	}
	return ids, nil
}

// AreFriends は承認済みの友達関係が存在するかを返す。
func (r *PostgresFriendshipRepo) AreFriends(ctx context.Context, userA, userB string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		    SELECT 1 FROM friendships
		    WHERE LEAST(requested_by_id, accepted_by_id) = LEAST($1, $2)
		      AND GREATEST(requested_by_id, accepted_by_id) = GREATEST($1, $2)
		      AND accepted_at IS NOT NULL
		 )`,
		userA, userB,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check friendship: %w", err)
	}
	return exists, nil
}

// compile-time interface check
var _ FriendshipRepository = (*PostgresFriendshipRepo)(nil)
