// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// IsStaffがtrueのユーザーのみアナリティクス閲覧APIにアクセスできる。
type User struct {
	ID        string
	Email     string
	Name      string
	IsStaff   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
// 認証セッションであると同時に、リテンション計測の元データとなる
// ログイン記録でもある。LogoutAtがnilの間はセッションが有効。
type Session struct {
	ID        string
	UserID    string
	LoginAt   time.Time
	LogoutAt  *time.Time
	ExpiresAt time.Time
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}
