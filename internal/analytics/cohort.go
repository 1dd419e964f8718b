package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/nftopia/analytics/internal/model"
	"github.com/nftopia/analytics/internal/repository"
)

// RebuildRecorder はコホート再計算の計測フック。
// metrics.Collectorの部分集合として定義する。
type RebuildRecorder interface {
	RecordCohortRebuild(periodType string, success bool, duration time.Duration)
}

// noopRebuildRecorder は計測を行わないRebuildRecorder。
type noopRebuildRecorder struct{}

func (noopRebuildRecorder) RecordCohortRebuild(string, bool, time.Duration) {}

// CohortBuilder はリテンションコホートの再計算と読み取りを提供する。
//
// ユーザーを最初のログインが属する期間でコホートに分割し、コホートごとに
// 後続の各期間について「その期間内に1回以上ログインしたメンバー数」を数える。
// 「リテイン」は各期間ウィンドウ内の活動に厳密に限定する
// （期間をまたいだ「以降のいずれかの活動」では数えない）。
type CohortBuilder struct {
	sessions repository.SessionRepository
	cohorts  repository.RetentionCohortRepository
	logger   *slog.Logger
	recorder RebuildRecorder
	now      func() time.Time
}

// NewCohortBuilder はCohortBuilderを生成する。
// recorderがnilの場合は計測を行わない。
func NewCohortBuilder(
	sessions repository.SessionRepository,
	cohorts repository.RetentionCohortRepository,
	logger *slog.Logger,
	recorder RebuildRecorder,
) *CohortBuilder {
	if recorder == nil {
		recorder = noopRebuildRecorder{}
	}
	return &CohortBuilder{
		sessions: sessions,
		cohorts:  cohorts,
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
	}
}

// Rebuild は指定粒度の全コホート行を再計算してUPSERTする。
//
// 同一データに対して何度実行しても同じ行集合になる（冪等）。
// 途中の永続化失敗は実行全体を中断する。行単位のUPSERTはアトミックなので
// total/retainedが不整合な行は残らないが、実行全体の原子性は保証しない。
// 失敗した実行は「更新されなかった」ものとして扱い、後で全体を再実行すること。
// 同一periodTypeの並行実行は調整しないため、呼び出し側で直列化すること。
func (b *CohortBuilder) Rebuild(ctx context.Context, periodType model.PeriodType) error {
	start := b.now()

	firstLogins, err := b.sessions.FirstLoginPerUser(ctx)
	if err != nil {
		b.recorder.RecordCohortRebuild(string(periodType), false, b.now().Sub(start))
		return fmt.Errorf("failed to load first logins: %w", err)
	}

	if len(firstLogins) == 0 {
		b.logger.Info("コホート再計算の対象ユーザーがいません",
			slog.String("period_type", string(periodType)),
		)
		b.recorder.RecordCohortRebuild(string(periodType), true, b.now().Sub(start))
		return nil
	}

	// 1. 最初のログインが属する期間でコホートに分割する
	members := make(map[time.Time]map[string]bool)
	for _, fl := range firstLogins {
		cohortStart := PeriodStart(periodType, fl.FirstLoginAt)
		if members[cohortStart] == nil {
			members[cohortStart] = make(map[string]bool)
		}
		members[cohortStart][fl.UserID] = true
	}

	cohortStarts := make([]time.Time, 0, len(members))
	for cs := range members {
		cohortStarts = append(cohortStarts, cs)
	}
	sort.Slice(cohortStarts, func(i, j int) bool { return cohortStarts[i].Before(cohortStarts[j]) })

	// 2. 最古のコホートから現在までの各絶対期間について、
	//    その期間内に活動したユーザー集合を1回ずつ取得する。
	//    コホートcの期間nのウィンドウは絶対期間c+nなので、全コホートで共有できる。
	now := b.now()
	currentPeriod := PeriodStart(periodType, now)
	active := make(map[time.Time]map[string]bool)
	for p := cohortStarts[0]; !p.After(currentPeriod); p = AddPeriods(periodType, p, 1) {
		ids, err := b.sessions.ActiveUserIDsBetween(ctx, p, AddPeriods(periodType, p, 1))
		if err != nil {
			b.recorder.RecordCohortRebuild(string(periodType), false, b.now().Sub(start))
			return fmt.Errorf("failed to load active users for period %s: %w",
				p.Format("2006-01-02"), err)
		}
		set := make(map[string]bool, len(ids))
		for _, id := range ids {
			set[id] = true
		}
		active[p] = set
	}

	// 3. コホートごとに期間0から現在までの各行を計算してUPSERTする
	var rowCount int
	for _, cohortStart := range cohortStarts {
		cohort := members[cohortStart]
		total := len(cohort)
		maxPeriod := PeriodsBetween(periodType, cohortStart, now)

		for n := 0; n <= maxPeriod; n++ {
			window := AddPeriods(periodType, cohortStart, n)

			retained := 0
			for userID := range cohort {
				if active[window][userID] {
					retained++
				}
			}

			rate := 0.0
			if total > 0 {
				rate = float64(retained) / float64(total)
			}

			row := &model.RetentionCohort{
				CohortDate:    cohortStart,
				PeriodType:    periodType,
				PeriodNumber:  n,
				TotalUsers:    total,
				RetainedUsers: retained,
				RetentionRate: rate,
				UpdatedAt:     now,
			}
			if err := b.cohorts.Upsert(ctx, row); err != nil {
				b.recorder.RecordCohortRebuild(string(periodType), false, b.now().Sub(start))
				return fmt.Errorf("failed to upsert cohort row (%s, %s, %d): %w",
					cohortStart.Format("2006-01-02"), periodType, n, err)
			}
			rowCount++
		}
	}

	duration := b.now().Sub(start)
	b.recorder.RecordCohortRebuild(string(periodType), true, duration)
	b.logger.Info("コホート再計算が完了しました",
		slog.String("period_type", string(periodType)),
		slog.Int("cohort_count", len(cohortStarts)),
		slog.Int("row_count", rowCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// CohortPeriod はヒートマップ1セル分のリテンション値を表す。
type CohortPeriod struct {
	PeriodNumber  int     `json:"period"`
	TotalUsers    int     `json:"total_users"`
	RetainedUsers int     `json:"retained_users"`
	RetentionRate float64 `json:"retention_rate"`
}

// CohortRow はコホート1行分（取得期間1つ分）のヒートマップデータを表す。
type CohortRow struct {
	CohortDate string         `json:"cohort_date"`
	Periods    []CohortPeriod `json:"periods"`
}

// Heatmap は指定粒度のコホート行をコホート日付でグループ化して返す。
// コホート日付の降順、各コホート内は期間番号の昇順。
func (b *CohortBuilder) Heatmap(ctx context.Context, periodType model.PeriodType) ([]CohortRow, error) {
	cohorts, err := b.cohorts.ListByPeriodType(ctx, periodType)
	if err != nil {
		return nil, fmt.Errorf("failed to load cohorts: %w", err)
	}

	var rows []CohortRow
	for _, c := range cohorts {
		dateKey := c.CohortDate.UTC().Format("2006-01-02")
		if len(rows) == 0 || rows[len(rows)-1].CohortDate != dateKey {
			rows = append(rows, CohortRow{CohortDate: dateKey})
		}
		last := &rows[len(rows)-1]
		last.Periods = append(last.Periods, CohortPeriod{
			PeriodNumber:  c.PeriodNumber,
			TotalUsers:    c.TotalUsers,
			RetainedUsers: c.RetainedUsers,
			RetentionRate: c.RetentionRate,
		})
	}

	return rows, nil
}
