// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/nftopia/analytics/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// ユーザーの作成・更新は周辺アプリケーションが所有するため、本サービスは参照のみ行う。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// UserFirstLogin はユーザーと最初のログイン日時の組を表す。コホート分割の元データ。
type UserFirstLogin struct {
	UserID       string
	FirstLoginAt time.Time
}

// DailySessionStat は暦日ごとのセッション数を表す。
type DailySessionStat struct {
	Day   time.Time
	Count int
}

// UserSessionStats はユーザー1人分のセッション統計を表す。
type UserSessionStats struct {
	Count       int
	AvgSeconds  float64
	LastLoginAt *time.Time
}

// SessionRepository はセッションデータの永続化インターフェース。
// 認証セッションの管理と、リテンション/セッション集計のための読み取りを兼ねる。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindActiveByID は指定IDの有効なセッションを取得する。
	// 期限切れまたはログアウト済みの場合はnilを返す。
	FindActiveByID(ctx context.Context, id string) (*model.Session, error)

	// CloseByID はセッションにlogout_atを刻印して終了させる。
	// 行は削除しない（ログイン記録はリテンション計測の元データとして残る）。
	CloseByID(ctx context.Context, id string, at time.Time) error

	// CloseExpired は期限切れかつlogout_at未設定のセッションにexpires_atを
	// logout_atとして刻印する。刻印した件数を返す。
	CloseExpired(ctx context.Context) (int64, error)

	// CountSince はlogin_atがsince以降のセッション数を返す。
	CountSince(ctx context.Context, since time.Time) (int, error)

	// CountUniqueUsersSince はlogin_atがsince以降のユニークユーザー数を返す。
	CountUniqueUsersSince(ctx context.Context, since time.Time) (int, error)

	// AvgDurationSecondsSince はsince以降にログインし、ログアウト済みの
	// セッションの平均継続時間（秒）を返す。対象がない場合は0を返す。
	AvgDurationSecondsSince(ctx context.Context, since time.Time) (float64, error)

	// DailyCounts はlogin_atがsince以降のセッションを暦日（UTC）で
	// グループ化し、日付昇順で返す。
	DailyCounts(ctx context.Context, since time.Time) ([]DailySessionStat, error)

	// ListRecent はlogin_at降順で直近のセッションを返す。
	ListRecent(ctx context.Context, limit int) ([]*model.Session, error)

	// FirstLoginPerUser は全ユーザーの最初のログイン日時を返す。
	FirstLoginPerUser(ctx context.Context) ([]UserFirstLogin, error)

	// ActiveUserIDsBetween は[from, to)の間に1回以上ログインした
	// ユーザーIDの集合を返す。
	ActiveUserIDsBetween(ctx context.Context, from, to time.Time) ([]string, error)

	// StatsByUserID は指定ユーザーのセッション統計を返す。
	StatsByUserID(ctx context.Context, userID string) (UserSessionStats, error)
}

// DailyWalletStat は暦日ごとのウォレット接続集計を表す。
type DailyWalletStat struct {
	Day        time.Time
	Total      int
	Successful int
	Failed     int
}

// WalletConnectionRepository はウォレット接続記録の永続化インターフェース。
type WalletConnectionRepository interface {
	// Create はウォレット接続記録を作成する。
	Create(ctx context.Context, conn *model.WalletConnection) error

	// CountByStatus はステータス別の接続試行数を返す。
	CountByStatus(ctx context.Context) (map[model.ConnectionStatus]int, error)

	// CountByProvider はプロバイダ別の接続試行数を返す。
	CountByProvider(ctx context.Context) (map[string]int, error)

	// DailyBreakdown はattempted_atがsince以降の接続試行を暦日（UTC）で
	// グループ化し、日付昇順で返す。
	DailyBreakdown(ctx context.Context, since time.Time) ([]DailyWalletStat, error)

	// ListRecent はattempted_at降順で直近の接続記録を返す。
	ListRecent(ctx context.Context, limit int) ([]*model.WalletConnection, error)

	// CountsByUserID は指定ユーザーの接続試行数（全体と成功分）を返す。
	CountsByUserID(ctx context.Context, userID string) (total, successful int, err error)
}

// PageStat はパスごとのページビュー集計を表す。
type PageStat struct {
	Path        string
	Views       int
	UniqueUsers int
}

// PageViewRepository はページビュー記録の永続化インターフェース。
type PageViewRepository interface {
	// Create はページビュー記録を作成する。
	Create(ctx context.Context, view *model.PageView) error

	// TopPaths は閲覧数降順で上位のパスを返す。
	TopPaths(ctx context.Context, limit int) ([]PageStat, error)

	// CountByUserID は指定ユーザーのページビュー数を返す。
	CountByUserID(ctx context.Context, userID string) (int, error)
}

// BehaviorAverages は行動メトリクス全体の代表値を表す。
type BehaviorAverages struct {
	AvgSessions       float64
	AvgPageViews      float64
	AvgSessionSeconds float64
}

// BehaviorMetricsRepository はユーザー行動メトリクスの永続化インターフェース。
type BehaviorMetricsRepository interface {
	// Upsert はユーザーの行動メトリクスを冪等にUPSERTする。
	Upsert(ctx context.Context, metrics *model.UserBehaviorMetrics) error

	// CountByActivityLevel は活動量セグメント別のユーザー数を返す。
	CountByActivityLevel(ctx context.Context) (map[model.ActivityLevel]int, error)

	// WalletAdoptionCounts は成功したウォレット接続を持つユーザー数と
	// 持たないユーザー数を返す。
	WalletAdoptionCounts(ctx context.Context) (adopted, without int, err error)

	// Averages は全ユーザーの行動メトリクス代表値を返す。
	Averages(ctx context.Context) (BehaviorAverages, error)

	// ListStaleUserIDs はメトリクス未計算または更新がolderThanより古い
	// ユーザーIDを返す。ワーカーの再計算スイープに使用する。
	ListStaleUserIDs(ctx context.Context, olderThan time.Time, limit int) ([]string, error)
}

// RetentionCohortRepository はリテンションコホート行の永続化インターフェース。
type RetentionCohortRepository interface {
	// Upsert は(cohort_date, period_type, period_number)をキーとして
	// コホート行を書き込みまたは上書きする。
	Upsert(ctx context.Context, cohort *model.RetentionCohort) error

	// ListByPeriodType は指定粒度のコホート行をcohort_date降順、
	// period_number昇順で返す。
	ListByPeriodType(ctx context.Context, periodType model.PeriodType) ([]*model.RetentionCohort, error)
}
