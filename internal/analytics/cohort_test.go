package analytics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/nftopia/analytics/internal/model"
	"github.com/nftopia/analytics/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestBuilder は固定時刻で動作するCohortBuilderを生成する。
func newTestBuilder(sessions *mockSessionRepo, cohorts *mockCohortRepo, now time.Time) *CohortBuilder {
	b := NewCohortBuilder(sessions, cohorts, discardLogger(), nil)
	b.now = func() time.Time { return now }
	return b
}

// TestCohortBuilder_WeeklyRetentionScenario は10人のコホートのうち4人が
// 翌週にセッションを持つ場合、retention_rate=0.4の行が作られることをテストする。
func TestCohortBuilder_WeeklyRetentionScenario(t *testing.T) {
	// 2025-03-10（月）の週がコホート、nowは翌週の水曜
	week1 := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	week2 := time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 3, 19, 15, 0, 0, 0, time.UTC)

	var userIDs []string
	for i := 0; i < 10; i++ {
		userIDs = append(userIDs, fmt.Sprintf("user-%d", i))
	}

	sessions := &mockSessionRepo{
		firstLoginPerUserFn: func(ctx context.Context) ([]repository.UserFirstLogin, error) {
			var logins []repository.UserFirstLogin
			for i, id := range userIDs {
				logins = append(logins, repository.UserFirstLogin{
					UserID:       id,
					FirstLoginAt: week1.Add(time.Duration(i) * time.Hour),
				})
			}
			return logins, nil
		},
		activeUserIDsBetweenFn: func(ctx context.Context, from, to time.Time) ([]string, error) {
			switch {
			case from.Equal(week1):
				return userIDs, nil
			case from.Equal(week2):
				// 4人だけが翌週に再ログイン
				return userIDs[:4], nil
			default:
				return nil, nil
			}
		},
	}
	cohorts := newMockCohortRepo()

	b := newTestBuilder(sessions, cohorts, now)
	if err := b.Rebuild(context.Background(), model.PeriodTypeWeekly); err != nil {
		t.Fatalf("Rebuild returned error: %v", err)
	}

	// 期間0（コホート自身の週）: 全員がアクティブ
	row0 := cohorts.rows["2025-03-10|weekly|0"]
	if row0 == nil {
		t.Fatal("expected period-0 row for cohort 2025-03-10")
	}
	if row0.TotalUsers != 10 || row0.RetainedUsers != 10 {
		t.Errorf("period 0: total=%d retained=%d, want 10/10", row0.TotalUsers, row0.RetainedUsers)
	}

	// 期間1（翌週）: 4人がリテイン
	row1 := cohorts.rows["2025-03-10|weekly|1"]
	if row1 == nil {
		t.Fatal("expected period-1 row for cohort 2025-03-10")
	}
	if row1.TotalUsers != 10 {
		t.Errorf("period 1: total = %d, want 10", row1.TotalUsers)
	}
	if row1.RetainedUsers != 4 {
		t.Errorf("period 1: retained = %d, want 4", row1.RetainedUsers)
	}
	if math.Abs(row1.RetentionRate-0.4) > 1e-9 {
		t.Errorf("period 1: retention_rate = %f, want 0.4", row1.RetentionRate)
	}
}

// TestCohortBuilder_Invariants は全行で 0 <= retained <= total と
// rate == retained/total が成立することをテストする。
func TestCohortBuilder_Invariants(t *testing.T) {
	day1 := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 4, 5, 12, 0, 0, 0, time.UTC)

	sessions := &mockSessionRepo{
		firstLoginPerUserFn: func(ctx context.Context) ([]repository.UserFirstLogin, error) {
			return []repository.UserFirstLogin{
				{UserID: "a", FirstLoginAt: day1.Add(2 * time.Hour)},
				{UserID: "b", FirstLoginAt: day1.AddDate(0, 0, 1)},
				{UserID: "c", FirstLoginAt: day1.AddDate(0, 0, 1).Add(5 * time.Hour)},
			}, nil
		},
		activeUserIDsBetweenFn: func(ctx context.Context, from, to time.Time) ([]string, error) {
			switch from.Day() {
			case 1:
				return []string{"a"}, nil
			case 2:
				return []string{"b", "c"}, nil
			case 3:
				return []string{"a", "c"}, nil
			case 4:
				return []string{"b"}, nil
			default:
				return nil, nil
			}
		},
	}
	cohorts := newMockCohortRepo()

	b := newTestBuilder(sessions, cohorts, now)
	if err := b.Rebuild(context.Background(), model.PeriodTypeDaily); err != nil {
		t.Fatalf("Rebuild returned error: %v", err)
	}

	if len(cohorts.rows) == 0 {
		t.Fatal("expected cohort rows to be written")
	}

	for key, row := range cohorts.rows {
		if row.RetainedUsers < 0 || row.RetainedUsers > row.TotalUsers {
			t.Errorf("%s: retained=%d out of range [0, %d]", key, row.RetainedUsers, row.TotalUsers)
		}
		if row.PeriodNumber < 0 {
			t.Errorf("%s: negative period number %d", key, row.PeriodNumber)
		}
		want := 0.0
		if row.TotalUsers > 0 {
			want = float64(row.RetainedUsers) / float64(row.TotalUsers)
		}
		if math.Abs(row.RetentionRate-want) > 1e-9 {
			t.Errorf("%s: rate = %f, want %f", key, row.RetentionRate, want)
		}
	}
}

// TestCohortBuilder_Idempotent は同一データに対する2回目の実行が
// 同じ行集合を生むことをテストする。
func TestCohortBuilder_Idempotent(t *testing.T) {
	week1 := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)

	sessions := &mockSessionRepo{
		firstLoginPerUserFn: func(ctx context.Context) ([]repository.UserFirstLogin, error) {
			return []repository.UserFirstLogin{
				{UserID: "u1", FirstLoginAt: week1},
				{UserID: "u2", FirstLoginAt: week1.Add(24 * time.Hour)},
			}, nil
		},
		activeUserIDsBetweenFn: func(ctx context.Context, from, to time.Time) ([]string, error) {
			if from.Equal(week1) {
				return []string{"u1", "u2"}, nil
			}
			return []string{"u1"}, nil
		},
	}
	cohorts := newMockCohortRepo()
	b := newTestBuilder(sessions, cohorts, now)

	if err := b.Rebuild(context.Background(), model.PeriodTypeWeekly); err != nil {
		t.Fatalf("first Rebuild returned error: %v", err)
	}

	first := make(map[string]model.RetentionCohort, len(cohorts.rows))
	for k, v := range cohorts.rows {
		first[k] = *v
	}

	if err := b.Rebuild(context.Background(), model.PeriodTypeWeekly); err != nil {
		t.Fatalf("second Rebuild returned error: %v", err)
	}

	if len(cohorts.rows) != len(first) {
		t.Fatalf("row count changed: %d -> %d", len(first), len(cohorts.rows))
	}
	for k, v := range cohorts.rows {
		want := first[k]
		if v.TotalUsers != want.TotalUsers || v.RetainedUsers != want.RetainedUsers ||
			math.Abs(v.RetentionRate-want.RetentionRate) > 1e-9 {
			t.Errorf("%s: row changed between runs: %+v -> %+v", k, want, *v)
		}
	}
}

// TestCohortBuilder_EmptyStore はユーザーがいない場合にエラーなく終了することをテストする。
func TestCohortBuilder_EmptyStore(t *testing.T) {
	cohorts := newMockCohortRepo()
	b := newTestBuilder(&mockSessionRepo{}, cohorts, time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC))

	if err := b.Rebuild(context.Background(), model.PeriodTypeMonthly); err != nil {
		t.Fatalf("Rebuild on empty store returned error: %v", err)
	}
	if len(cohorts.rows) != 0 {
		t.Errorf("expected no rows, got %d", len(cohorts.rows))
	}
}

// TestCohortBuilder_UpsertFailureAbortsRun は永続化失敗が実行全体を中断することをテストする。
func TestCohortBuilder_UpsertFailureAbortsRun(t *testing.T) {
	week1 := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 3, 25, 0, 0, 0, 0, time.UTC)

	sessions := &mockSessionRepo{
		firstLoginPerUserFn: func(ctx context.Context) ([]repository.UserFirstLogin, error) {
			return []repository.UserFirstLogin{
				{UserID: "u1", FirstLoginAt: week1},
			}, nil
		},
		activeUserIDsBetweenFn: func(ctx context.Context, from, to time.Time) ([]string, error) {
			return []string{"u1"}, nil
		},
	}

	cohorts := newMockCohortRepo()
	var calls int
	cohorts.upsertFn = func(ctx context.Context, cohort *model.RetentionCohort) error {
		calls++
		if calls == 2 {
			return errors.New("unique constraint violation")
		}
		return nil
	}

	b := newTestBuilder(sessions, cohorts, now)
	err := b.Rebuild(context.Background(), model.PeriodTypeWeekly)
	if err == nil {
		t.Fatal("expected Rebuild to fail when upsert fails")
	}

	// 3週分（期間0,1,2）のうち2回目で中断されること
	if calls != 2 {
		t.Errorf("upsert calls = %d, want 2 (run aborted at first failure)", calls)
	}
}

// TestCohortBuilder_RecordsRebuildMetrics は計測フックが呼ばれることをテストする。
func TestCohortBuilder_RecordsRebuildMetrics(t *testing.T) {
	type record struct {
		periodType string
		success    bool
	}
	var records []record
	recorder := rebuildRecorderFunc(func(periodType string, success bool, _ time.Duration) {
		records = append(records, record{periodType, success})
	})

	b := NewCohortBuilder(&mockSessionRepo{}, newMockCohortRepo(), discardLogger(), recorder)
	b.now = func() time.Time { return time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC) }

	if err := b.Rebuild(context.Background(), model.PeriodTypeDaily); err != nil {
		t.Fatalf("Rebuild returned error: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("recorder calls = %d, want 1", len(records))
	}
	if records[0].periodType != "daily" || !records[0].success {
		t.Errorf("recorded = %+v, want {daily true}", records[0])
	}
}

// rebuildRecorderFunc は関数をRebuildRecorderとして使うためのアダプタ。
type rebuildRecorderFunc func(periodType string, success bool, duration time.Duration)

func (f rebuildRecorderFunc) RecordCohortRebuild(periodType string, success bool, duration time.Duration) {
	f(periodType, success, duration)
}

// TestCohortBuilder_Heatmap はコホート日付ごとのグループ化をテストする。
func TestCohortBuilder_Heatmap(t *testing.T) {
	cohorts := newMockCohortRepo()
	cohorts.listFn = func(ctx context.Context, periodType model.PeriodType) ([]*model.RetentionCohort, error) {
		d1 := time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)
		d2 := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
		return []*model.RetentionCohort{
			{CohortDate: d1, PeriodType: periodType, PeriodNumber: 0, TotalUsers: 5, RetainedUsers: 5, RetentionRate: 1.0},
			{CohortDate: d2, PeriodType: periodType, PeriodNumber: 0, TotalUsers: 10, RetainedUsers: 10, RetentionRate: 1.0},
			{CohortDate: d2, PeriodType: periodType, PeriodNumber: 1, TotalUsers: 10, RetainedUsers: 4, RetentionRate: 0.4},
		}, nil
	}

	b := NewCohortBuilder(&mockSessionRepo{}, cohorts, discardLogger(), nil)

	rows, err := b.Heatmap(context.Background(), model.PeriodTypeWeekly)
	if err != nil {
		t.Fatalf("Heatmap returned error: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].CohortDate != "2025-03-17" || len(rows[0].Periods) != 1 {
		t.Errorf("first row = %+v, want cohort 2025-03-17 with 1 period", rows[0])
	}
	if rows[1].CohortDate != "2025-03-10" || len(rows[1].Periods) != 2 {
		t.Errorf("second row = %+v, want cohort 2025-03-10 with 2 periods", rows[1])
	}
	if rows[1].Periods[1].RetentionRate != 0.4 {
		t.Errorf("rate = %f, want 0.4", rows[1].Periods[1].RetentionRate)
	}
}
