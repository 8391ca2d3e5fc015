package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicate は一意制約違反を表すセンチネルエラー。
// 同時実行で敗者となった書き込みもこのエラーを受け取る。
var ErrDuplicate = errors.New("duplicate row")

// isUniqueViolation はPostgreSQLの一意制約違反(23505)かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
