// Package model はドメインモデルを定義する。
package model

import "time"

// Post はユーザーの投稿を表す。
// コメント・いいね・添付ファイルを所有し、投稿の削除はそれらを連鎖削除する。
type Post struct {
	ID       string
	AuthorID string
	Content  string
	PostedAt time.Time
}

// PostFile は投稿に添付されたファイルを表す。
type PostFile struct {
	ID     string
	PostID string
	File   string
}

// PostLike は投稿へのいいねを表す。(PostID, LikedByID)の組で一意。
type PostLike struct {
	ID        string
	PostID    string
	LikedByID string
}

// PostComment は投稿へのコメントを表す。
// ContentとFileの両方が空のコメントは作成できない。
type PostComment struct {
	ID          string
	PostID      string
	AuthorID    string
	Content     string
	File        string
	CommentedAt time.Time
}

// PostWithMeta は投稿と読み取り時に計算される注釈を結合したモデル。
// カウントやいいね状態は永続化せず、取得のたびに集計する。
type PostWithMeta struct {
	Post
	Author       PublicProfile
	CommentCount int
	LikeCount    int
	Liked        bool
	Files        []string
}

// CommentWithAuthor はコメントと投稿者の公開プロフィールを結合したモデル。
type CommentWithAuthor struct {
	PostComment
	Author PublicProfile
}
