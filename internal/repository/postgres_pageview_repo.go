package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nftopia/analytics/internal/model"
)

// PostgresPageViewRepo はPostgreSQLを使用したページビューリポジトリ。
type PostgresPageViewRepo struct {
	db *sql.DB
}

// NewPostgresPageViewRepo はPostgresPageViewRepoを生成する。
func NewPostgresPageViewRepo(db *sql.DB) *PostgresPageViewRepo {
	return &PostgresPageViewRepo{db: db}
}

// Create はページビュー記録を作成する。
func (r *PostgresPageViewRepo) Create(ctx context.Context, view *model.PageView) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO page_views (id, user_id, path, referrer, ip_address, user_agent, viewed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		view.ID, view.UserID, view.Path, view.Referrer, view.IPAddress, view.UserAgent, view.ViewedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create page view: %w", err)
	}
	return nil
}

// TopPaths は閲覧数降順で上位のパスを返す。
// ユニークユーザー数は未認証閲覧（user_id IS NULL）を含まない。
func (r *PostgresPageViewRepo) TopPaths(ctx context.Context, limit int) ([]PageStat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT path,
		        count(*) AS views,
		        count(DISTINCT user_id) AS unique_users
		 FROM page_views
		 GROUP BY path
		 ORDER BY views DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query top paths: %w", err)
	}
	defer rows.Close()

	var stats []PageStat
	for rows.Next() {
		var s PageStat
		if err := rows.Scan(&s.Path, &s.Views, &s.UniqueUsers); err != nil {
			return nil, fmt.Errorf("failed to scan page stat: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate page stats: %w", err)
	}

	return stats, nil
}

// CountByUserID は指定ユーザーのページビュー数を返す。
func (r *PostgresPageViewRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM page_views WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count page views: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ PageViewRepository = (*PostgresPageViewRepo)(nil)
