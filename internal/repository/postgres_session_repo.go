package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nftopia/analytics/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
// 認証用の読み書きとリテンション/セッション集計の読み取りを提供する。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, login_at, expires_at, ip_address, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		session.ID, session.UserID, session.LoginAt, session.ExpiresAt,
		session.IPAddress, session.UserAgent, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindActiveByID は指定IDの有効なセッションを取得する。
// 期限切れまたはログアウト済みの場合はnilを返す。
func (r *PostgresSessionRepo) FindActiveByID(ctx context.Context, id string) (*model.Session, error) {
	session := &model.Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, login_at, logout_at, expires_at, ip_address, user_agent, created_at
		 FROM sessions
		 WHERE id = $1 AND expires_at > now() AND logout_at IS NULL`,
		id,
	).Scan(&session.ID, &session.UserID, &session.LoginAt, &session.LogoutAt,
		&session.ExpiresAt, &session.IPAddress, &session.UserAgent, &session.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// CloseByID はセッションにlogout_atを刻印して終了させる。
func (r *PostgresSessionRepo) CloseByID(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET logout_at = $2 WHERE id = $1 AND logout_at IS NULL`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}

// CloseExpired は期限切れかつlogout_at未設定のセッションを閉じる。
// logout_atにexpires_atを刻印することで、継続時間の統計が期限超過分で歪まないようにする。
func (r *PostgresSessionRepo) CloseExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET logout_at = expires_at
		 WHERE logout_at IS NULL AND expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to close expired sessions: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get closed session count: %w", err)
	}
	return count, nil
}

// CountSince はlogin_atがsince以降のセッション数を返す。
func (r *PostgresSessionRepo) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sessions WHERE login_at >= $1`,
		since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// CountUniqueUsersSince はlogin_atがsince以降のユニークユーザー数を返す。
func (r *PostgresSessionRepo) CountUniqueUsersSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(DISTINCT user_id) FROM sessions WHERE login_at >= $1`,
		since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unique users: %w", err)
	}
	return count, nil
}

// AvgDurationSecondsSince はsince以降にログインし、ログアウト済みの
// セッションの平均継続時間（秒）を返す。
func (r *PostgresSessionRepo) AvgDurationSecondsSince(ctx context.Context, since time.Time) (float64, error) {
	var avg float64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(avg(EXTRACT(EPOCH FROM logout_at - login_at)), 0)
		 FROM sessions
		 WHERE login_at >= $1 AND logout_at IS NOT NULL`,
		since,
	).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("failed to compute average session duration: %w", err)
	}
	return avg, nil
}

// DailyCounts はlogin_atがsince以降のセッションを暦日（UTC）でグループ化して返す。
func (r *PostgresSessionRepo) DailyCounts(ctx context.Context, since time.Time) ([]DailySessionStat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date_trunc('day', login_at AT TIME ZONE 'UTC') AS day, count(*)
		 FROM sessions
		 WHERE login_at >= $1
		 GROUP BY day
		 ORDER BY day`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily session counts: %w", err)
	}
	defer rows.Close()

	var result []DailySessionStat
	for rows.Next() {
		var stat DailySessionStat
		if err := rows.Scan(&stat.Day, &stat.Count); err != nil {
			return nil, fmt.Errorf("failed to scan daily session count: %w", err)
		}
		result = append(result, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily session counts: %w", err)
	}

	return result, nil
}

// ListRecent はlogin_at降順で直近のセッションを返す。
func (r *PostgresSessionRepo) ListRecent(ctx context.Context, limit int) ([]*model.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, login_at, logout_at, expires_at, ip_address, user_agent, created_at
		 FROM sessions
		 ORDER BY login_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		s := &model.Session{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.LoginAt, &s.LogoutAt,
			&s.ExpiresAt, &s.IPAddress, &s.UserAgent, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return sessions, nil
}

// FirstLoginPerUser は全ユーザーの最初のログイン日時を返す。
func (r *PostgresSessionRepo) FirstLoginPerUser(ctx context.Context) ([]UserFirstLogin, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, min(login_at)
		 FROM sessions
		 GROUP BY user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query first logins: %w", err)
	}
	defer rows.Close()

	var result []UserFirstLogin
	for rows.Next() {
		var fl UserFirstLogin
		if err := rows.Scan(&fl.UserID, &fl.FirstLoginAt); err != nil {
			return nil, fmt.Errorf("failed to scan first login: %w", err)
		}
		result = append(result, fl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate first logins: %w", err)
	}

	return result, nil
}

// ActiveUserIDsBetween は[from, to)の間に1回以上ログインしたユーザーIDの集合を返す。
func (r *PostgresSessionRepo) ActiveUserIDsBetween(ctx context.Context, from, to time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT user_id
		 FROM sessions
		 WHERE login_at >= $1 AND login_at < $2`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query active users: %w", err)
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
		return nil, fmt.Errorf("failed to iterate active users: %w", err)
	}

	return ids, nil
}

// StatsByUserID は指定ユーザーのセッション統計を返す。
func (r *PostgresSessionRepo) StatsByUserID(ctx context.Context, userID string) (UserSessionStats, error) {
	var stats UserSessionStats
	var lastLogin sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*),
		        COALESCE(avg(EXTRACT(EPOCH FROM logout_at - login_at)) FILTER (WHERE logout_at IS NOT NULL), 0),
		        max(login_at)
		 FROM sessions
		 WHERE user_id = $1`,
		userID,
	).Scan(&stats.Count, &stats.AvgSeconds, &lastLogin)
	if err != nil {
		return UserSessionStats{}, fmt.Errorf("failed to compute user session stats: %w", err)
	}

	if lastLogin.Valid {
		stats.LastLoginAt = &lastLogin.Time
	}
	return stats, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
