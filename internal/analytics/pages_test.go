package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/nftopia/analytics/internal/repository"
)

func TestPageAnalyzer_TopPages(t *testing.T) {
	var gotLimit int
	pageViews := &mockPageViewRepo{
		topPathsFn: func(ctx context.Context, limit int) ([]repository.PageStat, error) {
			gotLimit = limit
			return []repository.PageStat{
				{Path: "/marketplace", Views: 500, UniqueUsers: 120},
				{Path: "/collections", Views: 320, UniqueUsers: 95},
			}, nil
		},
	}

	a := NewPageAnalyzer(pageViews, discardLogger())

	stats, err := a.TopPages(context.Background(), 10)
	if err != nil {
		t.Fatalf("TopPages returned error: %v", err)
	}
	if gotLimit != 10 {
		t.Errorf("limit = %d, want 10", gotLimit)
	}
	if len(stats) != 2 {
		t.Fatalf("len(stats) = %d, want 2", len(stats))
	}
	if stats[0].Path != "/marketplace" || stats[0].Views != 500 || stats[0].UniqueUsers != 120 {
		t.Errorf("stats[0] = %+v", stats[0])
	}
}

func TestPageAnalyzer_TopPagesDefaultLimit(t *testing.T) {
	var gotLimit int
	pageViews := &mockPageViewRepo{
		topPathsFn: func(ctx context.Context, limit int) ([]repository.PageStat, error) {
			gotLimit = limit
			return nil, nil
		},
	}

	a := NewPageAnalyzer(pageViews, discardLogger())

	if _, err := a.TopPages(context.Background(), -1); err != nil {
		t.Fatalf("TopPages returned error: %v", err)
	}
	if gotLimit != defaultListLimit {
		t.Errorf("limit = %d, want default %d", gotLimit, defaultListLimit)
	}
}

func TestPageAnalyzer_TopPagesPropagatesError(t *testing.T) {
	pageViews := &mockPageViewRepo{
		topPathsFn: func(ctx context.Context, limit int) ([]repository.PageStat, error) {
			return nil, errors.New("connection refused")
		},
	}

	a := NewPageAnalyzer(pageViews, discardLogger())

	if _, err := a.TopPages(context.Background(), 10); err == nil {
		t.Fatal("expected error when top paths query fails")
	}
}
