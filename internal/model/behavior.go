// Package model はドメインモデルを定義する。
package model

import "time"

// ActivityLevel はユーザーの活動量セグメントを表す。
type ActivityLevel string

const (
	// ActivityLevelLow は低活動ユーザー。
	ActivityLevelLow ActivityLevel = "low"
	// ActivityLevelMedium は中活動ユーザー。
	ActivityLevelMedium ActivityLevel = "medium"
	// ActivityLevelHigh は高活動ユーザー。
	ActivityLevelHigh ActivityLevel = "high"
)

// UserBehaviorMetrics はユーザーごとの行動サマリーを表す。
// ユーザーにつき1行のローリング集計で、イベント発生後に
// behaviorパッケージの更新処理によって再計算される。
type UserBehaviorMetrics struct {
	UserID                      string
	TotalSessions               int
	TotalPageViews              int
	WalletConnections           int
	SuccessfulWalletConnections int
	AvgSessionSeconds           float64
	LastActivityAt              *time.Time
	ActivityLevel               ActivityLevel
	UpdatedAt                   time.Time
}
