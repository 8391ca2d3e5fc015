// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// プロフィール属性はすべて任意項目で、空文字は未設定を意味する。
type User struct {
	ID                 string
	Email              string
	PasswordHash       string
	FirstName          string
	LastName           string
	ProfileImage       string
	BackgroundImage    string
	Gender             string
	RelationshipStatus string
	Bio                string
	Location           string
	Occupation         string
	Education          string
	Hobbies            string
	JoinedAt           time.Time
	LastActive         time.Time
}

// PublicProfile は通知ペイロードやチャット一覧に埋め込む公開プロフィールのスナップショット。
// Userへの参照ではなく値のコピーとして扱う。
type PublicProfile struct {
	UserID       string `json:"userId"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	ProfileImage string `json:"profileImage"`
}

// PublicProfileOf はユーザーから公開プロフィールのスナップショットを作る。
func PublicProfileOf(u *User) PublicProfile {
	return PublicProfile{
		UserID:       u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		ProfileImage: u.ProfileImage,
	}
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
