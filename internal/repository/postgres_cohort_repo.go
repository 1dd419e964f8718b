package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nftopia/analytics/internal/model"
)

// PostgresRetentionCohortRepo はPostgreSQLを使用したリテンションコホートリポジトリ。
type PostgresRetentionCohortRepo struct {
	db *sql.DB
}

// NewPostgresRetentionCohortRepo はPostgresRetentionCohortRepoを生成する。
func NewPostgresRetentionCohortRepo(db *sql.DB) *PostgresRetentionCohortRepo {
	return &PostgresRetentionCohortRepo{db: db}
}

// Upsert は(cohort_date, period_type, period_number)をキーとして
// コホート行を書き込みまたは上書きする。
// 1行単位でアトミックに置き換わるため、total/retainedの不整合な組は残らない。
func (r *PostgresRetentionCohortRepo) Upsert(ctx context.Context, cohort *model.RetentionCohort) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO retention_cohorts
		 (cohort_date, period_type, period_number, total_users, retained_users, retention_rate, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (cohort_date, period_type, period_number) DO UPDATE SET
		   total_users = EXCLUDED.total_users,
		   retained_users = EXCLUDED.retained_users,
		   retention_rate = EXCLUDED.retention_rate,
		   updated_at = EXCLUDED.updated_at`,
		cohort.CohortDate, string(cohort.PeriodType), cohort.PeriodNumber,
		cohort.TotalUsers, cohort.RetainedUsers, cohort.RetentionRate, cohort.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert retention cohort: %w", err)
	}
	return nil
}

// ListByPeriodType は指定粒度のコホート行をcohort_date降順、period_number昇順で返す。
func (r *PostgresRetentionCohortRepo) ListByPeriodType(ctx context.Context, periodType model.PeriodType) ([]*model.RetentionCohort, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT cohort_date, period_type, period_number, total_users, retained_users, retention_rate, updated_at
		 FROM retention_cohorts
		 WHERE period_type = $1
		 ORDER BY cohort_date DESC, period_number ASC`,
		string(periodType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list retention cohorts: %w", err)
	}
	defer rows.Close()

	var cohorts []*model.RetentionCohort
	for rows.Next() {
		c := &model.RetentionCohort{}
		var pt string
		if err := rows.Scan(&c.CohortDate, &pt, &c.PeriodNumber,
			&c.TotalUsers, &c.RetainedUsers, &c.RetentionRate, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan retention cohort: %w", err)
		}
		c.PeriodType = model.PeriodType(pt)
		cohorts = append(cohorts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate retention cohorts: %w", err)
	}

	return cohorts, nil
}

// compile-time interface check
var _ RetentionCohortRepository = (*PostgresRetentionCohortRepo)(nil)
