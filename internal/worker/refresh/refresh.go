// Package refresh は行動メトリクスの定期再計算とセッションの期限処理を提供する。
package refresh

import (
	"context"
	"log/slog"
	"time"
)

// 1サイクルで再計算するユーザー数の上限。
const defaultBatchLimit = 500

// StaleRefresher は古い行動メトリクスの再計算インターフェース。
type StaleRefresher interface {
	// RefreshStale は更新がstaleAfterより古いユーザーを最大limit件再計算する。
	RefreshStale(ctx context.Context, staleAfter time.Duration, limit int) (int, error)
}

// SessionCloser は期限切れセッションの終了処理インターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionCloser interface {
	CloseExpired(ctx context.Context) (int64, error)
}

// Job は定期メンテナンスジョブ。ティッカーで期限切れセッションの終了と
// 古い行動メトリクスの再計算を実行する。
type Job struct {
	refresher  StaleRefresher
	sessions   SessionCloser
	logger     *slog.Logger
	staleAfter time.Duration
	BatchLimit int // 1サイクルで再計算するユーザー数の上限
}

// NewJob は新しいJobを生成する。
func NewJob(refresher StaleRefresher, sessions SessionCloser, logger *slog.Logger, staleAfter time.Duration) *Job {
	return &Job{
		refresher:  refresher,
		sessions:   sessions,
		logger:     logger,
		staleAfter: staleAfter,
		BatchLimit: defaultBatchLimit,
	}
}

// Start は指定間隔のティッカーでジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("メトリクス再計算ジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("stale_after", j.staleAfter),
	)

	// 起動直後に1回実行
	j.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("メトリクス再計算ジョブを停止しました")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce は期限切れセッションの終了と古いメトリクスの再計算を1回実行する。
// 前半の失敗は後半の実行を妨げない。
func (j *Job) RunOnce(ctx context.Context) {
	start := time.Now()

	closed, err := j.sessions.CloseExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れセッションの終了処理に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	refreshed, err := j.refresher.RefreshStale(ctx, j.staleAfter, j.BatchLimit)
	if err != nil {
		j.logger.Error("行動メトリクスの再計算スイープに失敗しました",
			slog.String("error", err.Error()),
		)
	}

	duration := time.Since(start)
	j.logger.Info("メンテナンスサイクルが完了しました",
		slog.Int64("closed_sessions", closed),
		slog.Int("refreshed_users", refreshed),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
}
