package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nftopia/analytics/internal/model"
)

// PostgresWalletConnectionRepo はPostgreSQLを使用したウォレット接続記録リポジトリ。
type PostgresWalletConnectionRepo struct {
	db *sql.DB
}

// NewPostgresWalletConnectionRepo はPostgresWalletConnectionRepoを生成する。
func NewPostgresWalletConnectionRepo(db *sql.DB) *PostgresWalletConnectionRepo {
	return &PostgresWalletConnectionRepo{db: db}
}

// Create はウォレット接続記録を作成する。
func (r *PostgresWalletConnectionRepo) Create(ctx context.Context, conn *model.WalletConnection) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wallet_connections
		 (id, user_id, provider, wallet_address, status, error_message, ip_address, user_agent, attempted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		conn.ID, conn.UserID, conn.Provider, conn.WalletAddress, string(conn.Status),
		conn.ErrorMessage, conn.IPAddress, conn.UserAgent, conn.AttemptedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create wallet connection: %w", err)
	}
	return nil
}

// CountByStatus はステータス別の接続試行数を返す。
func (r *PostgresWalletConnectionRepo) CountByStatus(ctx context.Context) (map[model.ConnectionStatus]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, count(*) FROM wallet_connections GROUP BY status`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.ConnectionStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[model.ConnectionStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status counts: %w", err)
	}

	return counts, nil
}

// CountByProvider はプロバイダ別の接続試行数を返す。
func (r *PostgresWalletConnectionRepo) CountByProvider(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT provider, count(*) FROM wallet_connections GROUP BY provider`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count by provider: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var provider string
		var count int
		if err := rows.Scan(&provider, &count); err != nil {
			return nil, fmt.Errorf("failed to scan provider count: %w", err)
		}
		counts[provider] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate provider counts: %w", err)
	}

	return counts, nil
}

// DailyBreakdown はattempted_atがsince以降の接続試行を暦日（UTC）でグループ化して返す。
func (r *PostgresWalletConnectionRepo) DailyBreakdown(ctx context.Context, since time.Time) ([]DailyWalletStat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date_trunc('day', attempted_at AT TIME ZONE 'UTC') AS day,
		        count(*) AS total,
		        count(*) FILTER (WHERE status = 'success') AS successful,
		        count(*) FILTER (WHERE status = 'failed') AS failed
		 FROM wallet_connections
		 WHERE attempted_at >= $1
		 GROUP BY day
		 ORDER BY day`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily breakdown: %w", err)
	}
	defer rows.Close()

	var stats []DailyWalletStat
	for rows.Next() {
		var s DailyWalletStat
		if err := rows.Scan(&s.Day, &s.Total, &s.Successful, &s.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily stats: %w", err)
	}

	return stats, nil
}

// ListRecent はattempted_at降順で直近の接続記録を返す。
func (r *PostgresWalletConnectionRepo) ListRecent(ctx context.Context, limit int) ([]*model.WalletConnection, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, COALESCE(user_id::text, ''), provider, wallet_address, status,
		        error_message, ip_address, user_agent, attempted_at
		 FROM wallet_connections
		 ORDER BY attempted_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent connections: %w", err)
	}
	defer rows.Close()

	var conns []*model.WalletConnection
	for rows.Next() {
		c := &model.WalletConnection{}
		var status string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Provider, &c.WalletAddress, &status,
			&c.ErrorMessage, &c.IPAddress, &c.UserAgent, &c.AttemptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet connection: %w", err)
		}
		c.Status = model.ConnectionStatus(status)
		conns = append(conns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wallet connections: %w", err)
	}

	return conns, nil
}

// CountsByUserID は指定ユーザーの接続試行数（全体と成功分）を返す。
func (r *PostgresWalletConnectionRepo) CountsByUserID(ctx context.Context, userID string) (int, int, error) {
	var total, successful int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE status = 'success')
		 FROM wallet_connections
		 WHERE user_id = $1`,
		userID,
	).Scan(&total, &successful)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count user connections: %w", err)
	}
	return total, successful, nil
}

// compile-time interface check
var _ WalletConnectionRepository = (*PostgresWalletConnectionRepo)(nil)
