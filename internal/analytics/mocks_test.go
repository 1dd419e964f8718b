package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/nftopia/analytics/internal/model"
	"github.com/nftopia/analytics/internal/repository"
)

// --- テスト用モック ---

// mockSessionRepo はSessionRepositoryのモック実装。
type mockSessionRepo struct {
	firstLoginPerUserFn       func(ctx context.Context) ([]repository.UserFirstLogin, error)
	activeUserIDsBetweenFn    func(ctx context.Context, from, to time.Time) ([]string, error)
	countSinceFn              func(ctx context.Context, since time.Time) (int, error)
	countUniqueUsersSinceFn   func(ctx context.Context, since time.Time) (int, error)
	avgDurationSecondsSinceFn func(ctx context.Context, since time.Time) (float64, error)
	dailyCountsFn             func(ctx context.Context, since time.Time) ([]repository.DailySessionStat, error)
	listRecentFn              func(ctx context.Context, limit int) ([]*model.Session, error)
}

func (m *mockSessionRepo) Create(_ context.Context, _ *model.Session) error { return nil }

func (m *mockSessionRepo) FindActiveByID(_ context.Context, _ string) (*model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) CloseByID(_ context.Context, _ string, _ time.Time) error { return nil }

func (m *mockSessionRepo) CloseExpired(_ context.Context) (int64, error) { return 0, nil }

func (m *mockSessionRepo) CountSince(ctx context.Context, since time.Time) (int, error) {
	if m.countSinceFn != nil {
		return m.countSinceFn(ctx, since)
	}
	return 0, nil
}

func (m *mockSessionRepo) CountUniqueUsersSince(ctx context.Context, since time.Time) (int, error) {
	if m.countUniqueUsersSinceFn != nil {
		return m.countUniqueUsersSinceFn(ctx, since)
	}
	return 0, nil
}

func (m *mockSessionRepo) AvgDurationSecondsSince(ctx context.Context, since time.Time) (float64, error) {
	if m.avgDurationSecondsSinceFn != nil {
		return m.avgDurationSecondsSinceFn(ctx, since)
	}
	return 0, nil
}

func (m *mockSessionRepo) DailyCounts(ctx context.Context, since time.Time) ([]repository.DailySessionStat, error) {
	if m.dailyCountsFn != nil {
		return m.dailyCountsFn(ctx, since)
	}
	return nil, nil
}

func (m *mockSessionRepo) ListRecent(ctx context.Context, limit int) ([]*model.Session, error) {
	if m.listRecentFn != nil {
		return m.listRecentFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockSessionRepo) FirstLoginPerUser(ctx context.Context) ([]repository.UserFirstLogin, error) {
	if m.firstLoginPerUserFn != nil {
		return m.firstLoginPerUserFn(ctx)
	}
	return nil, nil
}

func (m *mockSessionRepo) ActiveUserIDsBetween(ctx context.Context, from, to time.Time) ([]string, error) {
	if m.activeUserIDsBetweenFn != nil {
		return m.activeUserIDsBetweenFn(ctx, from, to)
	}
	return nil, nil
}

func (m *mockSessionRepo) StatsByUserID(_ context.Context, _ string) (repository.UserSessionStats, error) {
	return repository.UserSessionStats{}, nil
}

var _ repository.SessionRepository = (*mockSessionRepo)(nil)

// mockCohortRepo はRetentionCohortRepositoryのモック実装。
// UPSERTされた行をキー付きで保持する。
type mockCohortRepo struct {
	rows     map[string]*model.RetentionCohort
	upsertFn func(ctx context.Context, cohort *model.RetentionCohort) error
	listFn   func(ctx context.Context, periodType model.PeriodType) ([]*model.RetentionCohort, error)
}

func newMockCohortRepo() *mockCohortRepo {
	return &mockCohortRepo{rows: make(map[string]*model.RetentionCohort)}
}

func cohortKey(c *model.RetentionCohort) string {
	return fmt.Sprintf("%s|%s|%d", c.CohortDate.Format("2006-01-02"), c.PeriodType, c.PeriodNumber)
}

func (m *mockCohortRepo) Upsert(ctx context.Context, cohort *model.RetentionCohort) error {
	if m.upsertFn != nil {
		if err := m.upsertFn(ctx, cohort); err != nil {
			return err
		}
	}
	clone := *cohort
	m.rows[cohortKey(cohort)] = &clone
	return nil
}

func (m *mockCohortRepo) ListByPeriodType(ctx context.Context, periodType model.PeriodType) ([]*model.RetentionCohort, error) {
	if m.listFn != nil {
		return m.listFn(ctx, periodType)
	}
	return nil, nil
}

var _ repository.RetentionCohortRepository = (*mockCohortRepo)(nil)

// mockWalletRepo はWalletConnectionRepositoryのモック実装。
type mockWalletRepo struct {
	countByStatusFn   func(ctx context.Context) (map[model.ConnectionStatus]int, error)
	countByProviderFn func(ctx context.Context) (map[string]int, error)
	dailyBreakdownFn  func(ctx context.Context, since time.Time) ([]repository.DailyWalletStat, error)
	listRecentFn      func(ctx context.Context, limit int) ([]*model.WalletConnection, error)
}

func (m *mockWalletRepo) Create(_ context.Context, _ *model.WalletConnection) error { return nil }

func (m *mockWalletRepo) CountByStatus(ctx context.Context) (map[model.ConnectionStatus]int, error) {
	if m.countByStatusFn != nil {
		return m.countByStatusFn(ctx)
	}
	return map[model.ConnectionStatus]int{}, nil
}

func (m *mockWalletRepo) CountByProvider(ctx context.Context) (map[string]int, error) {
	if m.countByProviderFn != nil {
		return m.countByProviderFn(ctx)
	}
	return map[string]int{}, nil
}

func (m *mockWalletRepo) DailyBreakdown(ctx context.Context, since time.Time) ([]repository.DailyWalletStat, error) {
	if m.dailyBreakdownFn != nil {
		return m.dailyBreakdownFn(ctx, since)
	}
	return nil, nil
}

func (m *mockWalletRepo) ListRecent(ctx context.Context, limit int) ([]*model.WalletConnection, error) {
	if m.listRecentFn != nil {
		return m.listRecentFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockWalletRepo) CountsByUserID(_ context.Context, _ string) (int, int, error) {
	return 0, 0, nil
}

var _ repository.WalletConnectionRepository = (*mockWalletRepo)(nil)

// mockBehaviorRepo はBehaviorMetricsRepositoryのモック実装。
type mockBehaviorRepo struct {
	countByActivityLevelFn func(ctx context.Context) (map[model.ActivityLevel]int, error)
	walletAdoptionCountsFn func(ctx context.Context) (int, int, error)
	averagesFn             func(ctx context.Context) (repository.BehaviorAverages, error)
}

func (m *mockBehaviorRepo) Upsert(_ context.Context, _ *model.UserBehaviorMetrics) error {
	return nil
}

func (m *mockBehaviorRepo) CountByActivityLevel(ctx context.Context) (map[model.ActivityLevel]int, error) {
	if m.countByActivityLevelFn != nil {
		return m.countByActivityLevelFn(ctx)
	}
	return map[model.ActivityLevel]int{}, nil
}

func (m *mockBehaviorRepo) WalletAdoptionCounts(ctx context.Context) (int, int, error) {
	if m.walletAdoptionCountsFn != nil {
		return m.walletAdoptionCountsFn(ctx)
	}
	return 0, 0, nil
}

func (m *mockBehaviorRepo) Averages(ctx context.Context) (repository.BehaviorAverages, error) {
	if m.averagesFn != nil {
		return m.averagesFn(ctx)
	}
	return repository.BehaviorAverages{}, nil
}

func (m *mockBehaviorRepo) ListStaleUserIDs(_ context.Context, _ time.Time, _ int) ([]string, error) {
	return nil, nil
}

var _ repository.BehaviorMetricsRepository = (*mockBehaviorRepo)(nil)

// mockPageViewRepo はPageViewRepositoryのモック実装。
type mockPageViewRepo struct {
	topPathsFn func(ctx context.Context, limit int) ([]repository.PageStat, error)
}

func (m *mockPageViewRepo) Create(_ context.Context, _ *model.PageView) error { return nil }

func (m *mockPageViewRepo) TopPaths(ctx context.Context, limit int) ([]repository.PageStat, error) {
	if m.topPathsFn != nil {
		return m.topPathsFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockPageViewRepo) CountByUserID(_ context.Context, _ string) (int, error) {
	return 0, nil
}

var _ repository.PageViewRepository = (*mockPageViewRepo)(nil)
