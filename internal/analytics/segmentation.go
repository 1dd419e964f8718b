package analytics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nftopia/analytics/internal/repository"
)

// WalletAdoption は成功したウォレット接続を持つユーザー数の内訳を表す。
type WalletAdoption struct {
	Adopted int `json:"adopted"`
	Without int `json:"without"`
}

// BehaviorAverages は行動メトリクスの全ユーザー平均を表す。
type BehaviorAverages struct {
	AvgSessions       float64 `json:"avg_sessions"`
	AvgPageViews      float64 `json:"avg_page_views"`
	AvgSessionSeconds float64 `json:"avg_session_seconds"`
}

// SegmentationReport は活動量セグメントとウォレット採用状況のレポートを表す。
type SegmentationReport struct {
	ActivityLevels map[string]int   `json:"activity_levels"`
	WalletAdoption WalletAdoption   `json:"wallet_adoption"`
	Averages       BehaviorAverages `json:"averages"`
}

// Segmenter は行動メトリクスからユーザーセグメンテーションのレポートを生成する。
type Segmenter struct {
	behavior repository.BehaviorMetricsRepository
	logger   *slog.Logger
}

// NewSegmenter は新しいSegmenterを生成する。
func NewSegmenter(behavior repository.BehaviorMetricsRepository, logger *slog.Logger) *Segmenter {
	return &Segmenter{
		behavior: behavior,
		logger:   logger,
	}
}

// Report は活動量セグメント別のユーザー数、ウォレット採用状況、
// 行動メトリクスの平均値をまとめて返す。
func (s *Segmenter) Report(ctx context.Context) (*SegmentationReport, error) {
	byLevel, err := s.behavior.CountByActivityLevel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users by activity level: %w", err)
	}

	adopted, without, err := s.behavior.WalletAdoptionCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count wallet adoption: %w", err)
	}

	averages, err := s.behavior.Averages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute behavior averages: %w", err)
	}

	report := &SegmentationReport{
		ActivityLevels: make(map[string]int, len(byLevel)),
		WalletAdoption: WalletAdoption{Adopted: adopted, Without: without},
		Averages: BehaviorAverages{
			AvgSessions:       averages.AvgSessions,
			AvgPageViews:      averages.AvgPageViews,
			AvgSessionSeconds: averages.AvgSessionSeconds,
		},
	}
	for level, count := range byLevel {
		report.ActivityLevels[string(level)] = count
	}
	return report, nil
}
