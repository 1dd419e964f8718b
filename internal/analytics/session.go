package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nftopia/analytics/internal/repository"
)

// SessionSummary は直近ウィンドウのセッション集計を表す。
type SessionSummary struct {
	WindowDays         int                 `json:"window_days"`
	TotalSessions      int                 `json:"total_sessions"`
	UniqueUsers        int                 `json:"unique_users"`
	AvgDurationSeconds float64             `json:"avg_duration_seconds"`
	Daily              []DailySessionPoint `json:"daily"`
}

// DailySessionPoint は暦日1日分のセッション数を表す。
type DailySessionPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// RecentSession はダッシュボード表示用の直近セッション1件を表す。
type RecentSession struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	LoginAt         time.Time  `json:"login_at"`
	LogoutAt        *time.Time `json:"logout_at,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`
	IPAddress       string     `json:"ip_address,omitempty"`
	UserAgent       string     `json:"user_agent,omitempty"`
}

// SessionAnalyzer はセッション記録からダッシュボード向けの集計を行う。
type SessionAnalyzer struct {
	sessions repository.SessionRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewSessionAnalyzer は新しいSessionAnalyzerを生成する。
func NewSessionAnalyzer(sessions repository.SessionRepository, logger *slog.Logger) *SessionAnalyzer {
	return &SessionAnalyzer{
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// Summary は直近days日間のセッション数・ユニークユーザー数・平均継続時間を返す。
// daysが0以下の場合はクエリを発行せず空の集計を返す。
func (a *SessionAnalyzer) Summary(ctx context.Context, days int) (*SessionSummary, error) {
	if days <= 0 {
		return &SessionSummary{}, nil
	}

	since := a.now().UTC().AddDate(0, 0, -days)

	total, err := a.sessions.CountSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}

	unique, err := a.sessions.CountUniqueUsersSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count unique users: %w", err)
	}

	avgSeconds, err := a.sessions.AvgDurationSecondsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to compute average session duration: %w", err)
	}

	dailyStats, err := a.sessions.DailyCounts(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily session counts: %w", err)
	}

	daily := make([]DailySessionPoint, 0, len(dailyStats))
	for _, d := range dailyStats {
		daily = append(daily, DailySessionPoint{
			Date:  d.Day.UTC().Format("2006-01-02"),
			Count: d.Count,
		})
	}

	return &SessionSummary{
		WindowDays:         days,
		TotalSessions:      total,
		UniqueUsers:        unique,
		AvgDurationSeconds: avgSeconds,
		Daily:              daily,
	}, nil
}

// Recent はlogin_at降順で直近のセッションを返す。
// limitが0以下の場合はデフォルト値を使用する。
func (a *SessionAnalyzer) Recent(ctx context.Context, limit int) ([]RecentSession, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	sessions, err := a.sessions.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent sessions: %w", err)
	}

	result := make([]RecentSession, 0, len(sessions))
	for _, s := range sessions {
		rs := RecentSession{
			ID:        s.ID,
			UserID:    s.UserID,
			LoginAt:   s.LoginAt,
			LogoutAt:  s.LogoutAt,
			IPAddress: s.IPAddress,
			UserAgent: s.UserAgent,
		}
		if s.LogoutAt != nil {
			d := s.LogoutAt.Sub(s.LoginAt).Seconds()
			if d >= 0 {
				rs.DurationSeconds = &d
			}
		}
		result = append(result, rs)
	}
	return result, nil
}
