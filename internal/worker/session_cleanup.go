package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SessionCleanupJob は期限切れセッションの自動削除ジョブ。
// 期限切れセッションはログイン検証時にも拒否されるため、このジョブは
// テーブルの肥大化を防ぐためのものであり、遅延しても認可には影響しない。
type SessionCleanupJob struct {
	db     Executor
	logger *slog.Logger
}

// NewSessionCleanupJob は新しいSessionCleanupJobを生成する。
func NewSessionCleanupJob(db Executor, logger *slog.Logger) *SessionCleanupJob {
	return &SessionCleanupJob{
		db:     db,
		logger: logger,
	}
}

// Name はジョブ名を返す。
func (j *SessionCleanupJob) Name() string { return "session_cleanup" }

// Run は有効期限を過ぎたセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	result, err := j.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	if deletedCount > 0 {
		j.logger.Info("期限切れセッションを削除しました",
			slog.Int64("deleted_count", deletedCount),
		)
	}

	return nil
}

var _ Job = (*SessionCleanupJob)(nil)
