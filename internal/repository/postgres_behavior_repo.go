package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nftopia/analytics/internal/model"
)

// PostgresBehaviorMetricsRepo はPostgreSQLを使用した行動メトリクスリポジトリ。
type PostgresBehaviorMetricsRepo struct {
	db *sql.DB
}

// NewPostgresBehaviorMetricsRepo はPostgresBehaviorMetricsRepoを生成する。
func NewPostgresBehaviorMetricsRepo(db *sql.DB) *PostgresBehaviorMetricsRepo {
	return &PostgresBehaviorMetricsRepo{db: db}
}

// Upsert はユーザーの行動メトリクスを冪等にUPSERTする。
func (r *PostgresBehaviorMetricsRepo) Upsert(ctx context.Context, metrics *model.UserBehaviorMetrics) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_behavior_metrics
		 (user_id, total_sessions, total_page_views, wallet_connections,
		  successful_wallet_connections, avg_session_seconds, last_activity_at,
		  activity_level, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id) DO UPDATE SET
		   total_sessions = EXCLUDED.total_sessions,
		   total_page_views = EXCLUDED.total_page_views,
		   wallet_connections = EXCLUDED.wallet_connections,
		   successful_wallet_connections = EXCLUDED.successful_wallet_connections,
		   avg_session_seconds = EXCLUDED.avg_session_seconds,
		   last_activity_at = EXCLUDED.last_activity_at,
		   activity_level = EXCLUDED.activity_level,
		   updated_at = EXCLUDED.updated_at`,
		metrics.UserID, metrics.TotalSessions, metrics.TotalPageViews,
		metrics.WalletConnections, metrics.SuccessfulWalletConnections,
		metrics.AvgSessionSeconds, metrics.LastActivityAt,
		string(metrics.ActivityLevel), metrics.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert behavior metrics: %w", err)
	}
	return nil
}

// CountByActivityLevel は活動量セグメント別のユーザー数を返す。
func (r *PostgresBehaviorMetricsRepo) CountByActivityLevel(ctx context.Context) (map[model.ActivityLevel]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT activity_level, count(*) FROM user_behavior_metrics GROUP BY activity_level`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count by activity level: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.ActivityLevel]int)
	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, fmt.Errorf("failed to scan activity level count: %w", err)
		}
		counts[model.ActivityLevel(level)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activity level counts: %w", err)
	}

	return counts, nil
}

// WalletAdoptionCounts は成功したウォレット接続を持つユーザー数と持たないユーザー数を返す。
func (r *PostgresBehaviorMetricsRepo) WalletAdoptionCounts(ctx context.Context) (int, int, error) {
	var adopted, without int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FILTER (WHERE successful_wallet_connections > 0),
		        count(*) FILTER (WHERE successful_wallet_connections = 0)
		 FROM user_behavior_metrics`,
	).Scan(&adopted, &without)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count wallet adoption: %w", err)
	}
	return adopted, without, nil
}

// Averages は全ユーザーの行動メトリクス代表値を返す。
func (r *PostgresBehaviorMetricsRepo) Averages(ctx context.Context) (BehaviorAverages, error) {
	var avg BehaviorAverages
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(avg(total_sessions), 0),
		        COALESCE(avg(total_page_views), 0),
		        COALESCE(avg(avg_session_seconds), 0)
		 FROM user_behavior_metrics`,
	).Scan(&avg.AvgSessions, &avg.AvgPageViews, &avg.AvgSessionSeconds)
	if err != nil {
		return BehaviorAverages{}, fmt.Errorf("failed to compute behavior averages: %w", err)
	}
	return avg, nil
}

// ListStaleUserIDs はメトリクス未計算または更新がolderThanより古いユーザーIDを返す。
func (r *PostgresBehaviorMetricsRepo) ListStaleUserIDs(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id
		 FROM users u
		 LEFT JOIN user_behavior_metrics m ON m.user_id = u.id
		 WHERE m.user_id IS NULL OR m.updated_at < $1
		 ORDER BY m.updated_at NULLS FIRST
		 LIMIT $2`,
		olderThan, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stale users: %w", err)
	}

	return ids, nil
}

// compile-time interface check
var _ BehaviorMetricsRepository = (*PostgresBehaviorMetricsRepo)(nil)
