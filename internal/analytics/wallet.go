package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nftopia/analytics/internal/model"
	"github.com/nftopia/analytics/internal/repository"
)

// WalletSummary はウォレット接続試行の全体集計を表す。
type WalletSummary struct {
	TotalAttempts int            `json:"total_attempts"`
	ByStatus      map[string]int `json:"by_status"`
	ByProvider    map[string]int `json:"by_provider"`
	SuccessRate   float64        `json:"success_rate"`
}

// DailyWalletPoint は暦日ごとのウォレット接続推移の1点を表す。
type DailyWalletPoint struct {
	Date       string `json:"date"`
	Total      int    `json:"total"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
}

// RecentConnection はダッシュボード表示用の直近接続記録1件を表す。
type RecentConnection struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id,omitempty"`
	WalletAddress string    `json:"wallet_address,omitempty"`
	Provider      string    `json:"provider"`
	Status        string    `json:"status"`
	AttemptedAt   time.Time `json:"attempted_at"`
}

// WalletAnalyzer はウォレット接続記録からダッシュボード向けの集計を行う。
type WalletAnalyzer struct {
	connections repository.WalletConnectionRepository
	logger      *slog.Logger
	now         func() time.Time
}

// NewWalletAnalyzer は新しいWalletAnalyzerを生成する。
func NewWalletAnalyzer(connections repository.WalletConnectionRepository, logger *slog.Logger) *WalletAnalyzer {
	return &WalletAnalyzer{
		connections: connections,
		logger:      logger,
		now:         time.Now,
	}
}

// Summary はステータス別・プロバイダ別の接続試行数と成功率を返す。
// 試行が1件もない場合、成功率は0となる。
func (a *WalletAnalyzer) Summary(ctx context.Context) (*WalletSummary, error) {
	byStatus, err := a.connections.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count connections by status: %w", err)
	}

	byProvider, err := a.connections.CountByProvider(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count connections by provider: %w", err)
	}

	summary := &WalletSummary{
		ByStatus:   make(map[string]int, len(byStatus)),
		ByProvider: byProvider,
	}
	for status, count := range byStatus {
		summary.ByStatus[string(status)] = count
		summary.TotalAttempts += count
	}
	if summary.TotalAttempts > 0 {
		summary.SuccessRate = float64(byStatus[model.ConnectionStatusSuccess]) / float64(summary.TotalAttempts)
	}
	if summary.ByProvider == nil {
		summary.ByProvider = map[string]int{}
	}
	return summary, nil
}

// DailyBreakdown は直近days日間の接続試行を暦日（UTC）ごとに集計して
// 日付昇順で返す。daysが0以下の場合は空のスライスを返す。
func (a *WalletAnalyzer) DailyBreakdown(ctx context.Context, days int) ([]DailyWalletPoint, error) {
	if days <= 0 {
		return []DailyWalletPoint{}, nil
	}

	since := a.now().UTC().AddDate(0, 0, -days)

	stats, err := a.connections.DailyBreakdown(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to compute daily wallet breakdown: %w", err)
	}

	points := make([]DailyWalletPoint, 0, len(stats))
	for _, s := range stats {
		points = append(points, DailyWalletPoint{
			Date:       s.Day.Format("2006-01-02"),
			Total:      s.Total,
			Successful: s.Successful,
			Failed:     s.Failed,
		})
	}
	return points, nil
}

// Recent はattempted_at降順で直近の接続記録を返す。
// limitが0以下の場合はデフォルト値を使用する。
func (a *WalletAnalyzer) Recent(ctx context.Context, limit int) ([]RecentConnection, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	conns, err := a.connections.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent connections: %w", err)
	}

	result := make([]RecentConnection, 0, len(conns))
	for _, c := range conns {
		result = append(result, RecentConnection{
			ID:            c.ID,
			UserID:        c.UserID,
			WalletAddress: c.WalletAddress,
			Provider:      c.Provider,
			Status:        string(c.Status),
			AttemptedAt:   c.AttemptedAt,
		})
	}
	return result, nil
}
