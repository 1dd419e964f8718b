// Package cohort はリテンションコホートの定期再計算を提供する。
package cohort

import (
	"context"
	"log/slog"
	"time"

	"github.com/nftopia/analytics/internal/model"
)

// Rebuilder はコホート再計算の実行インターフェース。
type Rebuilder interface {
	// Rebuild は指定粒度のコホート表全体を再計算する。
	Rebuild(ctx context.Context, periodType model.PeriodType) error
}

// Scheduler はコホート再計算のスケジューリングを行う。
// ティッカーでdaily/weekly/monthlyの3粒度を順に再計算する。
// 粒度ごとの失敗はログに記録して次の粒度に進む。
type Scheduler struct {
	builder Rebuilder
	logger  *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(builder Rebuilder, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		builder: builder,
		logger:  logger,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("コホート再計算スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("コホート再計算スケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は3粒度すべてのコホート再計算を1回実行する。
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()

	for _, periodType := range []model.PeriodType{
		model.PeriodTypeDaily,
		model.PeriodTypeWeekly,
		model.PeriodTypeMonthly,
	} {
		if err := s.builder.Rebuild(ctx, periodType); err != nil {
			s.logger.Error("コホート再計算に失敗しました",
				slog.String("period_type", string(periodType)),
				slog.String("error", err.Error()),
			)
		}
	}

	duration := time.Since(start)
	s.logger.Info("コホート再計算サイクルが完了しました",
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
}
