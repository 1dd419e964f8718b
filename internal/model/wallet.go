// Package model はドメインモデルを定義する。
package model

import "time"

// ConnectionStatus はウォレット接続試行の結果を表す。
type ConnectionStatus string

const (
	// ConnectionStatusSuccess は接続成功。
	ConnectionStatusSuccess ConnectionStatus = "success"
	// ConnectionStatusFailed は接続失敗。
	ConnectionStatusFailed ConnectionStatus = "failed"
	// ConnectionStatusOther は成功/失敗に分類できないその他の結果。
	ConnectionStatusOther ConnectionStatus = "other"
)

// ParseConnectionStatus は文字列をConnectionStatusに変換する。
// 未知の値はConnectionStatusOtherとして扱う（トラッキングは拒否しない）。
func ParseConnectionStatus(s string) ConnectionStatus {
	switch ConnectionStatus(s) {
	case ConnectionStatusSuccess, ConnectionStatusFailed, ConnectionStatusOther:
		return ConnectionStatus(s)
	default:
		return ConnectionStatusOther
	}
}

// WalletConnection はウォレット接続試行の記録を表す。
// 接続試行ごとに作成され、以後変更されないイミュータブルな記録。
// UserIDは未認証トラッキングを許容しないため必須（認証済みユーザーのみ記録される）。
type WalletConnection struct {
	ID            string
	UserID        string
	Provider      string
	WalletAddress string
	Status        ConnectionStatus
	ErrorMessage  string
	IPAddress     string
	UserAgent     string
	AttemptedAt   time.Time
}

// PageView はページ閲覧の記録を表す。ページロードごとに作成されるイミュータブルな記録。
type PageView struct {
	ID        string
	UserID    string
	Path      string
	Referrer  string
	IPAddress string
	UserAgent string
	ViewedAt  time.Time
}
