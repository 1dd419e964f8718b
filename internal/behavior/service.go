// Package behavior はユーザー行動メトリクスの再計算を行う。
package behavior

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nftopia/analytics/internal/model"
	"github.com/nftopia/analytics/internal/repository"
)

// 活動量セグメントの閾値。セッション数またはページビュー数の
// いずれかが閾値に達した時点で上のセグメントに分類される。
const (
	highSessionThreshold    = 20
	highPageViewThreshold   = 100
	mediumSessionThreshold  = 5
	mediumPageViewThreshold = 25
)

// RefreshRecorder は行動メトリクス再計算の実行結果を計測するインターフェース。
type RefreshRecorder interface {
	RecordBehaviorRefresh(success bool)
}

type noopRefreshRecorder struct{}

func (noopRefreshRecorder) RecordBehaviorRefresh(bool) {}

// Service はユーザーごとの行動サマリー行を生イベントから再計算する。
type Service struct {
	sessions    repository.SessionRepository
	pageViews   repository.PageViewRepository
	connections repository.WalletConnectionRepository
	metrics     repository.BehaviorMetricsRepository
	logger      *slog.Logger
	recorder    RefreshRecorder
	now         func() time.Time
}

// NewService は新しいServiceを生成する。recorderがnilの場合は計測を行わない。
func NewService(
	sessions repository.SessionRepository,
	pageViews repository.PageViewRepository,
	connections repository.WalletConnectionRepository,
	metrics repository.BehaviorMetricsRepository,
	logger *slog.Logger,
	recorder RefreshRecorder,
) *Service {
	if recorder == nil {
		recorder = noopRefreshRecorder{}
	}
	return &Service{
		sessions:    sessions,
		pageViews:   pageViews,
		connections: connections,
		metrics:     metrics,
		logger:      logger,
		recorder:    recorder,
		now:         time.Now,
	}
}

// Refresh は指定ユーザーの行動メトリクスを生イベントから再計算してUPSERTする。
// セッション・ページビュー・ウォレット接続の各集計を取り直すため冪等で、
// 同一データに対して何度実行しても同じ行になる。
func (s *Service) Refresh(ctx context.Context, userID string) error {
	stats, err := s.sessions.StatsByUserID(ctx, userID)
	if err != nil {
		s.recorder.RecordBehaviorRefresh(false)
		return fmt.Errorf("failed to load session stats: %w", err)
	}

	pageViews, err := s.pageViews.CountByUserID(ctx, userID)
	if err != nil {
		s.recorder.RecordBehaviorRefresh(false)
		return fmt.Errorf("failed to count page views: %w", err)
	}

	total, successful, err := s.connections.CountsByUserID(ctx, userID)
	if err != nil {
		s.recorder.RecordBehaviorRefresh(false)
		return fmt.Errorf("failed to count wallet connections: %w", err)
	}

	m := &model.UserBehaviorMetrics{
		UserID:                      userID,
		TotalSessions:               stats.Count,
		TotalPageViews:              pageViews,
		WalletConnections:           total,
		SuccessfulWalletConnections: successful,
		AvgSessionSeconds:           stats.AvgSeconds,
		LastActivityAt:              stats.LastLoginAt,
		ActivityLevel:               classifyActivityLevel(stats.Count, pageViews),
		UpdatedAt:                   s.now().UTC(),
	}

	if err := s.metrics.Upsert(ctx, m); err != nil {
		s.recorder.RecordBehaviorRefresh(false)
		return fmt.Errorf("failed to upsert behavior metrics: %w", err)
	}

	s.recorder.RecordBehaviorRefresh(true)
	s.logger.Debug("behavior metrics refreshed",
		"user_id", userID,
		"sessions", stats.Count,
		"page_views", pageViews,
		"activity_level", string(m.ActivityLevel))
	return nil
}

// RefreshStale はメトリクス未計算または更新がstaleAfterより古いユーザーを
// 最大limit件まで再計算する。個々のユーザーの失敗はログに記録して続行し、
// 再計算に成功した件数を返す。
func (s *Service) RefreshStale(ctx context.Context, staleAfter time.Duration, limit int) (int, error) {
	olderThan := s.now().UTC().Add(-staleAfter)

	ids, err := s.metrics.ListStaleUserIDs(ctx, olderThan, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale users: %w", err)
	}

	refreshed := 0
	for _, id := range ids {
		if err := s.Refresh(ctx, id); err != nil {
			s.logger.Error("failed to refresh behavior metrics", "user_id", id, "error", err)
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

// classifyActivityLevel はセッション数とページビュー数から活動量セグメントを決める。
func classifyActivityLevel(sessions, pageViews int) model.ActivityLevel {
	switch {
	case sessions >= highSessionThreshold || pageViews >= highPageViewThreshold:
		return model.ActivityLevelHigh
	case sessions >= mediumSessionThreshold || pageViews >= mediumPageViewThreshold:
		return model.ActivityLevelMedium
	default:
		return model.ActivityLevelLow
	}
}
