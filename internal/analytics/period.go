// Package analytics はセッション・ウォレット・セグメント・リテンションの
// 読み取り専用集計と、リテンションコホートの再計算を提供する。
package analytics

import (
	"time"

	"github.com/nftopia/analytics/internal/model"
)

// PeriodStart はtが属する期間の開始時刻（UTC）を返す。
//   - daily: その日のUTC 0時
//   - weekly: その週の月曜のUTC 0時（ISO週）
//   - monthly: その月の1日のUTC 0時
func PeriodStart(periodType model.PeriodType, t time.Time) time.Time {
	t = t.UTC()
	switch periodType {
	case model.PeriodTypeWeekly:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		// time.Weekdayは日曜=0。月曜始まりに補正する。
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case model.PeriodTypeMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// AddPeriods は期間開始時刻startをn期間分進めた開始時刻を返す。
// nは負でもよいが、コホート計算では0以上のみ使用する。
func AddPeriods(periodType model.PeriodType, start time.Time, n int) time.Time {
	switch periodType {
	case model.PeriodTypeWeekly:
		return start.AddDate(0, 0, 7*n)
	case model.PeriodTypeMonthly:
		return start.AddDate(0, n, 0)
	default:
		return start.AddDate(0, 0, n)
	}
}

// PeriodsBetween は期間開始時刻fromから、tが属する期間までの期間数を返す。
// fromとtが同じ期間に属する場合は0。tがfromより前の期間の場合は負値を返す。
func PeriodsBetween(periodType model.PeriodType, from time.Time, t time.Time) int {
	target := PeriodStart(periodType, t)
	switch periodType {
	case model.PeriodTypeMonthly:
		return (target.Year()-from.Year())*12 + int(target.Month()) - int(from.Month())
	case model.PeriodTypeWeekly:
		return int(target.Sub(from).Hours() / (24 * 7))
	default:
		return int(target.Sub(from).Hours() / 24)
	}
}
