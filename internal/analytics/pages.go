package analytics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nftopia/analytics/internal/repository"
)

// defaultListLimit はリスト系集計でlimit未指定時に使用する件数。
const defaultListLimit = 20

// PageStat はパス1つ分のページビュー集計を表す。
type PageStat struct {
	Path        string `json:"path"`
	Views       int    `json:"views"`
	UniqueUsers int    `json:"unique_users"`
}

// PageAnalyzer はページビュー記録から閲覧数上位ページの集計を行う。
type PageAnalyzer struct {
	pageViews repository.PageViewRepository
	logger    *slog.Logger
}

// NewPageAnalyzer は新しいPageAnalyzerを生成する。
func NewPageAnalyzer(pageViews repository.PageViewRepository, logger *slog.Logger) *PageAnalyzer {
	return &PageAnalyzer{
		pageViews: pageViews,
		logger:    logger,
	}
}

// TopPages は閲覧数降順で上位limit件のパスを返す。
// limitが0以下の場合はデフォルト値を使用する。
func (a *PageAnalyzer) TopPages(ctx context.Context, limit int) ([]PageStat, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	stats, err := a.pageViews.TopPaths(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list top pages: %w", err)
	}

	result := make([]PageStat, 0, len(stats))
	for _, s := range stats {
		result = append(result, PageStat{
			Path:        s.Path,
			Views:       s.Views,
			UniqueUsers: s.UniqueUsers,
		})
	}
	return result, nil
}
