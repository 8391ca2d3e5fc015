package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/openbook/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
// 投稿本体に加え、従属する添付・いいね・コメントの操作も引き受ける。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// Create は投稿と添付ファイル行を同一トランザクションで作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post, files []*model.PostFile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO posts (id, author_id, content, posted_at)
		 VALUES ($1, $2, $3, $4)`,
		post.ID, post.AuthorID, post.Content, post.PostedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}

	for _, f := range files {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO post_files (id, post_id, file) VALUES ($1, $2, $3)`,
			f.ID, f.PostID, f.File,
		)
		if err != nil {
			return fmt.Errorf("failed to insert post file: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	post := &model.Post{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, author_id, content, posted_at FROM posts WHERE id = $1`,
		id,
	).Scan(&post.ID, &post.AuthorID, &post.Content, &post.PostedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	return post, nil
}

// postMetaQuery は投稿に読み取り時の注釈を付けて取得する共通SELECT。
// カウント・いいね状態・添付一覧はすべて取得時に集計し、
// 永続化されたキャッシュは持たない。
const postMetaQuery = `
	SELECT
	    p.id, p.author_id, p.content, p.posted_at,
	    u.first_name, u.last_name, u.profile_image,
	    (SELECT COUNT(*) FROM post_comments c WHERE c.post_id = p.id) AS comment_count,
	    (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id) AS like_count,
	    EXISTS (
	        SELECT 1 FROM post_likes l
	        WHERE l.post_id = p.id AND l.liked_by_id = $1
	    ) AS liked,
	    ARRAY(
	        SELECT f.file FROM post_files f WHERE f.post_id = p.id
	    ) AS files
	FROM posts p
	INNER JOIN users u ON u.id = p.author_id`

func scanPostWithMeta(row interface{ Scan(...any) error }) (*model.PostWithMeta, error) {
	p := &model.PostWithMeta{}
	err := row.Scan(
		&p.ID, &p.AuthorID, &p.Content, &p.PostedAt,
		&p.Author.FirstName, &p.Author.LastName, &p.Author.ProfileImage,
		&p.CommentCount, &p.LikeCount, &p.Liked,
		pq.Array(&p.Files),
	)
	if err != nil {
		return nil, err
	}
	p.Author.UserID = p.AuthorID
	return p, nil
}

// FindWithMeta は指定IDの投稿を注釈付きで取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindWithMeta(ctx context.Context, id, viewerID string) (*model.PostWithMeta, error) {
	p, err := scanPostWithMeta(r.db.QueryRowContext(ctx,
		postMetaQuery+` WHERE p.id = $2`,
		viewerID, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post with meta: %w", err)
	}
	return p, nil
}

// Delete は投稿を削除する。従属する添付・いいね・コメントは
// 外部キーのON DELETE CASCADEにより同一文で全削除される。
// 削除前に添付ファイル名の一覧を収集して返す。
func (r *PostgresPostRepo) Delete(ctx context.Context, id string) ([]string, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var files []string
	rows, err := tx.QueryContext(ctx,
		`SELECT file FROM post_files WHERE post_id = $1
		 UNION ALL
		 SELECT file FROM post_comments WHERE post_id = $1 AND file <> ''`,
		id,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to collect post files: %w", err)
	}
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			rows.Close()
			return nil, false, fmt.Errorf("failed to scan post file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, false, fmt.Errorf("failed to iterate post files: %w", err)
	}
	rows.Close()

	result, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return nil, false, fmt.Errorf("failed to delete post: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, false, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return files, true, nil
}

// ListByAuthors は指定した著者集合の投稿を注釈付きでposted_at降順に返す。
// フィード（友達+自分）とプロフィール（単一著者）の両方がこの1クエリを使う。
func (r *PostgresPostRepo) ListByAuthors(ctx context.Context, authorIDs []string, viewerID string, limit, offset int) ([]*model.PostWithMeta, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		postMetaQuery+`
		 WHERE p.author_id = ANY($2)
		 ORDER BY p.posted_at DESC
		 LIMIT $3 OFFSET $4`,
		viewerID, pq.Array(authorIDs), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []*model.PostWithMeta
	for rows.Next() {
		p, err := scanPostWithMeta(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

// InsertLike は(post, user)のいいね行を作成する。
// ON CONFLICT DO NOTHINGにより同じ組への同時挿入でも行は1つしかできず、
// すでに存在していた場合はfalseを返す。
func (r *PostgresPostRepo) InsertLike(ctx context.Context, like *model.PostLike) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO post_likes (id, post_id, liked_by_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (post_id, liked_by_id) DO NOTHING`,
		like.ID, like.PostID, like.LikedByID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert like: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteLike は(post, user)のいいね行を削除する。削除した場合はtrueを返す。
func (r *PostgresPostRepo) DeleteLike(ctx context.Context, postID, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM post_likes WHERE post_id = $1 AND liked_by_id = $2`,
		postID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete like: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// CreateComment はコメントを作成する。
func (r *PostgresPostRepo) CreateComment(ctx context.Context, c *model.PostComment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO post_comments (id, post_id, author_id, content, file, commented_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.PostID, c.AuthorID, c.Content, c.File, c.CommentedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// FindCommentOwnedBy は指定著者本人のコメントを取得する。
// 所有権チェックをWHERE句に畳み込み、他ユーザーのコメントは
// 存在しない場合と区別できない（nilを返す）。
func (r *PostgresPostRepo) FindCommentOwnedBy(ctx context.Context, commentID, authorID string) (*model.PostComment, error) {
	c := &model.PostComment{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, post_id, author_id, content, file, commented_at
		 FROM post_comments
		 WHERE id = $1 AND author_id = $2`,
		commentID, authorID,
	).Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Content, &c.File, &c.CommentedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}
	return c, nil
}

// DeleteComment は指定IDのコメントを削除する。
func (r *PostgresPostRepo) DeleteComment(ctx context.Context, commentID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM post_comments WHERE id = $1`,
		commentID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}

// ListComments は投稿のコメントを投稿者プロフィール付きでcommented_at降順に返す。
func (r *PostgresPostRepo) ListComments(ctx context.Context, postID string, limit, offset int) ([]*model.CommentWithAuthor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.post_id, c.author_id, c.content, c.file, c.commented_at,
		        u.first_name, u.last_name, u.profile_image
		 FROM post_comments c
		 INNER JOIN users u ON u.id = c.author_id
		 WHERE c.post_id = $1
		 ORDER BY c.commented_at DESC
		 LIMIT $2 OFFSET $3`,
		postID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []*model.CommentWithAuthor
	for rows.Next() {
		c := &model.CommentWithAuthor{}
		if err := rows.Scan(
			&c.ID, &c.PostID, &c.AuthorID, &c.Content, &c.File, &c.CommentedAt,
			&c.Author.FirstName, &c.Author.LastName, &c.Author.ProfileImage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		c.Author.UserID = c.AuthorID
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}
	return comments, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
