// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, analytics, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInvalidPeriodType = "INVALID_PERIOD_TYPE"
	ErrCodeInvalidDays       = "INVALID_DAYS"
	ErrCodeInvalidLimit      = "INVALID_LIMIT"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodePersistenceFailed = "PERSISTENCE_FAILED"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError はスタッフ権限が必要な操作に対する権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作にはスタッフ権限が必要です。",
		Category: "auth",
		Action:   "スタッフアカウントでログインしてください。",
	}
}

// NewInvalidRequestError はリクエスト形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewInvalidPeriodTypeError は無効な期間粒度エラーを生成する。
func NewInvalidPeriodTypeError(periodType string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPeriodType,
		Message:  fmt.Sprintf("無効な期間粒度です: %s", periodType),
		Category: "validation",
		Action:   "期間粒度には daily、weekly、monthly のいずれかを指定してください。",
	}
}

// NewInvalidDaysError は無効な日数パラメータエラーを生成する。
func NewInvalidDaysError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDays,
		Message:  fmt.Sprintf("無効な日数です: %s", raw),
		Category: "validation",
		Action:   "日数には0以上の整数を指定してください。",
	}
}

// NewInvalidLimitError は無効な件数パラメータエラーを生成する。
func NewInvalidLimitError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLimit,
		Message:  fmt.Sprintf("無効な件数です: %s", raw),
		Category: "validation",
		Action:   "件数には1以上の整数を指定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewPersistenceFailedError は永続化失敗エラーを生成する。
func NewPersistenceFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodePersistenceFailed,
		Message:  fmt.Sprintf("データの保存に失敗しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
