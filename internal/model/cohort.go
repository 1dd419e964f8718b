// Package model はドメインモデルを定義する。
package model

import "time"

// PeriodType はコホート集計の期間粒度を表す。
type PeriodType string

const (
	// PeriodTypeDaily は日次コホート。
	PeriodTypeDaily PeriodType = "daily"
	// PeriodTypeWeekly は週次コホート（ISO週、月曜始まり）。
	PeriodTypeWeekly PeriodType = "weekly"
	// PeriodTypeMonthly は月次コホート（暦月）。
	PeriodTypeMonthly PeriodType = "monthly"
)

// ParsePeriodType は文字列をPeriodTypeに変換する。
// daily/weekly/monthly以外の値はエラーを返す。
func ParsePeriodType(s string) (PeriodType, error) {
	switch PeriodType(s) {
	case PeriodTypeDaily, PeriodTypeWeekly, PeriodTypeMonthly:
		return PeriodType(s), nil
	default:
		return "", NewInvalidPeriodTypeError(s)
	}
}

// RetentionCohort はリテンションコホートの集計行を表す。
// (CohortDate, PeriodType, PeriodNumber) をキーとする派生データで、
// コホートビルダーの実行のたびにUPSERTで再計算される（追記専用ではない）。
//
// 不変条件:
//   - 0 <= RetainedUsers <= TotalUsers
//   - RetentionRate == RetainedUsers / TotalUsers（TotalUsersが0のときは0.0）
type RetentionCohort struct {
	CohortDate    time.Time
	PeriodType    PeriodType
	PeriodNumber  int
	TotalUsers    int
	RetainedUsers int
	RetentionRate float64
	UpdatedAt     time.Time
}
