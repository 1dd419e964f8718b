// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/nftopia/analytics/internal/analytics"
	"github.com/nftopia/analytics/internal/middleware"
	"github.com/nftopia/analytics/internal/model"
)

const (
	// ダッシュボード集計のデフォルトウィンドウ（日数）。
	defaultWindowDays = 30
	// ダッシュボードに表示する直近レコードの件数。
	dashboardRecentLimit = 10
)

// CohortServiceInterface はリテンションハンドラーが必要とするサービスインターフェース。
type CohortServiceInterface interface {
	// Rebuild は指定粒度のコホート表全体を再計算する。
	Rebuild(ctx context.Context, periodType model.PeriodType) error
	// Heatmap はコホート日付ごとにグループ化したヒートマップ行を返す。
	Heatmap(ctx context.Context, periodType model.PeriodType) ([]analytics.CohortRow, error)
}

// SessionAnalyticsInterface はセッション集計のサービスインターフェース。
type SessionAnalyticsInterface interface {
	Summary(ctx context.Context, days int) (*analytics.SessionSummary, error)
	Recent(ctx context.Context, limit int) ([]analytics.RecentSession, error)
}

// WalletAnalyticsInterface はウォレット集計のサービスインターフェース。
type WalletAnalyticsInterface interface {
	Summary(ctx context.Context) (*analytics.WalletSummary, error)
	DailyBreakdown(ctx context.Context, days int) ([]analytics.DailyWalletPoint, error)
	Recent(ctx context.Context, limit int) ([]analytics.RecentConnection, error)
}

// SegmentationInterface はセグメンテーションのサービスインターフェース。
type SegmentationInterface interface {
	Report(ctx context.Context) (*analytics.SegmentationReport, error)
}

// PageAnalyticsInterface はページ集計のサービスインターフェース。
type PageAnalyticsInterface interface {
	TopPages(ctx context.Context, limit int) ([]analytics.PageStat, error)
}

// AnalyticsHandler はスタッフ向け分析APIのHTTPハンドラー。
type AnalyticsHandler struct {
	cohorts  CohortServiceInterface
	sessions SessionAnalyticsInterface
	wallets  WalletAnalyticsInterface
	segments SegmentationInterface
	pages    PageAnalyticsInterface
}

// NewAnalyticsHandler はAnalyticsHandlerを生成する。
func NewAnalyticsHandler(
	cohorts CohortServiceInterface,
	sessions SessionAnalyticsInterface,
	wallets WalletAnalyticsInterface,
	segments SegmentationInterface,
	pages PageAnalyticsInterface,
) *AnalyticsHandler {
	return &AnalyticsHandler{
		cohorts:  cohorts,
		sessions: sessions,
		wallets:  wallets,
		segments: segments,
		pages:    pages,
	}
}

// dashboardResponse はダッシュボードのAPIレスポンス。
type dashboardResponse struct {
	Sessions          *analytics.SessionSummary     `json:"sessions"`
	Wallets           *analytics.WalletSummary      `json:"wallets"`
	Segments          *analytics.SegmentationReport `json:"segments"`
	TopPages          []analytics.PageStat          `json:"top_pages"`
	RecentSessions    []analytics.RecentSession     `json:"recent_sessions"`
	RecentConnections []analytics.RecentConnection  `json:"recent_connections"`
}

// retentionResponse はリテンションヒートマップのAPIレスポンス。
type retentionResponse struct {
	PeriodType string                `json:"period_type"`
	Cohorts    []analytics.CohortRow `json:"cohorts"`
}

// sessionsResponse はセッション集計のAPIレスポンス。
type sessionsResponse struct {
	Summary *analytics.SessionSummary `json:"summary"`
	Recent  []analytics.RecentSession `json:"recent"`
}

// walletsResponse はウォレット集計のAPIレスポンス。
type walletsResponse struct {
	Summary *analytics.WalletSummary     `json:"summary"`
	Daily   []analytics.DailyWalletPoint `json:"daily"`
	Recent  []analytics.RecentConnection `json:"recent"`
}

// Dashboard はダッシュボードの複合集計を返す。
// GET /api/analytics/dashboard?days=30
func (h *AnalyticsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	days, ok := parseDaysParam(w, r, defaultWindowDays)
	if !ok {
		return
	}

	ctx := r.Context()

	sessions, err := h.sessions.Summary(ctx, days)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	wallets, err := h.wallets.Summary(ctx)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	segments, err := h.segments.Report(ctx)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	topPages, err := h.pages.TopPages(ctx, 0)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	recentSessions, err := h.sessions.Recent(ctx, dashboardRecentLimit)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	recentConnections, err := h.wallets.Recent(ctx, dashboardRecentLimit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dashboardResponse{
		Sessions:          sessions,
		Wallets:           wallets,
		Segments:          segments,
		TopPages:          topPages,
		RecentSessions:    recentSessions,
		RecentConnections: recentConnections,
	})
}

// Retention はコホート表を再計算し、最新のヒートマップを返す。
// 読み取り時に再計算するため、レスポンスは常に現在のセッションデータを反映する。
// GET /api/analytics/retention?period=weekly
func (h *AnalyticsHandler) Retention(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		raw = string(model.PeriodTypeWeekly)
	}

	periodType, err := model.ParsePeriodType(raw)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.cohorts.Rebuild(r.Context(), periodType); err != nil {
		handleServiceError(w, err)
		return
	}

	cohorts, err := h.cohorts.Heatmap(r.Context(), periodType)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, retentionResponse{
		PeriodType: string(periodType),
		Cohorts:    cohorts,
	})
}

// Sessions はセッション集計を返す。
// GET /api/analytics/sessions?days=30&limit=20
func (h *AnalyticsHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	days, ok := parseDaysParam(w, r, defaultWindowDays)
	if !ok {
		return
	}
	limit, ok := parseLimitParam(w, r)
	if !ok {
		return
	}

	summary, err := h.sessions.Summary(r.Context(), days)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	recent, err := h.sessions.Recent(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, sessionsResponse{Summary: summary, Recent: recent})
}

// Wallets はウォレット接続集計を返す。
// GET /api/analytics/wallets?days=30&limit=20
func (h *AnalyticsHandler) Wallets(w http.ResponseWriter, r *http.Request) {
	days, ok := parseDaysParam(w, r, defaultWindowDays)
	if !ok {
		return
	}
	limit, ok := parseLimitParam(w, r)
	if !ok {
		return
	}

	ctx := r.Context()

	summary, err := h.wallets.Summary(ctx)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	daily, err := h.wallets.DailyBreakdown(ctx, days)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	recent, err := h.wallets.Recent(ctx, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, walletsResponse{Summary: summary, Daily: daily, Recent: recent})
}

// Segments はユーザーセグメンテーションのレポートを返す。
// GET /api/analytics/segments
func (h *AnalyticsHandler) Segments(w http.ResponseWriter, r *http.Request) {
	report, err := h.segments.Report(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// Pages は閲覧数上位ページの集計を返す。
// GET /api/analytics/pages?limit=20
func (h *AnalyticsHandler) Pages(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimitParam(w, r)
	if !ok {
		return
	}

	stats, err := h.pages.TopPages(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"pages": stats})
}

// parseDaysParam はdaysクエリパラメータを解析する。
// 未指定時はデフォルト値を返す。不正な値の場合は400を書き込みfalseを返す。
func parseDaysParam(w http.ResponseWriter, r *http.Request, defaultDays int) (int, bool) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return defaultDays, true
	}

	days, err := strconv.Atoi(raw)
	if err != nil || days < 0 {
		middleware.WriteAPIError(w, model.NewInvalidDaysError(raw))
		return 0, false
	}
	return days, true
}

// parseLimitParam はlimitクエリパラメータを解析する。
// 未指定時は0を返す（サービス層がデフォルト値を補う）。
func parseLimitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		middleware.WriteAPIError(w, model.NewInvalidLimitError(raw))
		return 0, false
	}
	return limit, true
}

// respondJSON はJSONレスポンスを書き込む。
func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}
