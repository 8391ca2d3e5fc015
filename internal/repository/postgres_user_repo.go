package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/openbook/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, password_hash, first_name, last_name,
	profile_image, background_image, gender, relationship_status,
	bio, location, occupation, education, hobbies, joined_at, last_active`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash,
		&user.FirstName, &user.LastName,
		&user.ProfileImage, &user.BackgroundImage,
		&user.Gender, &user.RelationshipStatus,
		&user.Bio, &user.Location, &user.Occupation,
		&user.Education, &user.Hobbies,
		&user.JoinedAt, &user.LastActive,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
// メールアドレスの一意制約違反の場合はErrDuplicateを返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, first_name, last_name, joined_at, last_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Email, user.PasswordHash,
		user.FirstName, user.LastName,
		user.JoinedAt, user.LastActive,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateProfile はユーザーのプロフィール属性を更新する。
// パスワードハッシュと画像ファイル名も含め、呼び出し側が整えた値をそのまま保存する。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET
		    password_hash = $2, first_name = $3, last_name = $4,
		    profile_image = $5, background_image = $6,
		    gender = $7, relationship_status = $8,
		    bio = $9, location = $10, occupation = $11,
		    education = $12, hobbies = $13
		 WHERE id = $1`,
		user.ID, user.PasswordHash, user.FirstName, user.LastName,
		user.ProfileImage, user.BackgroundImage,
		user.Gender, user.RelationshipStatus,
		user.Bio, user.Location, user.Occupation,
		user.Education, user.Hobbies,
	)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	return nil
}

// Search は氏名またはメールアドレスの部分一致でユーザーを検索する。
// 大文字小文字は区別しない。
func (r *PostgresUserRepo) Search(ctx context.Context, query string, limit, offset int) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE first_name ILIKE '%' || $1 || '%'
		    OR last_name ILIKE '%' || $1 || '%'
		    OR email ILIKE '%' || $1 || '%'
		 ORDER BY last_active DESC
		 LIMIT $2 OFFSET $3`,
		query, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// TouchLastActive は最終アクティブ時刻を現在時刻に更新する。
func (r *PostgresUserRepo) TouchLastActive(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_active = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to touch last_active: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
