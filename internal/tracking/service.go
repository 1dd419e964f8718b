// Package tracking はクライアントから送信されるイベント
// （ウォレット接続試行・ページビュー）の記録を行う。
package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nftopia/analytics/internal/model"
	"github.com/nftopia/analytics/internal/repository"
	"github.com/nftopia/analytics/internal/security"
)

// プロバイダが送信されなかった場合のデフォルト値。
const defaultProvider = "other"

// BehaviorRefresher はイベント記録後にユーザーの行動メトリクスを
// 再計算するインターフェース。
type BehaviorRefresher interface {
	Refresh(ctx context.Context, userID string) error
}

// EventRecorder はトラッキングイベントの記録数を計測するインターフェース。
type EventRecorder interface {
	RecordWalletConnection(status string)
	RecordPageView()
}

type noopEventRecorder struct{}

func (noopEventRecorder) RecordWalletConnection(string) {}
func (noopEventRecorder) RecordPageView()               {}

// WalletConnectionInput はウォレット接続トラッキングの入力を表す。
// UserID以外のフィールドはクライアント申告値で、省略可能。
type WalletConnectionInput struct {
	UserID        string
	Provider      string
	WalletAddress string
	Status        string
	ErrorMessage  string
	IPAddress     string
	UserAgent     string
}

// PageViewInput はページビュートラッキングの入力を表す。
type PageViewInput struct {
	UserID    string
	Path      string
	Referrer  string
	IPAddress string
	UserAgent string
}

// Service はトラッキングイベントを永続化し、行動メトリクスの再計算を起動する。
type Service struct {
	connections repository.WalletConnectionRepository
	pageViews   repository.PageViewRepository
	behavior    BehaviorRefresher
	sanitizer   security.InputSanitizerService
	logger      *slog.Logger
	recorder    EventRecorder
	now         func() time.Time
}

// NewService は新しいServiceを生成する。recorderがnilの場合は計測を行わない。
func NewService(
	connections repository.WalletConnectionRepository,
	pageViews repository.PageViewRepository,
	behavior BehaviorRefresher,
	sanitizer security.InputSanitizerService,
	logger *slog.Logger,
	recorder EventRecorder,
) *Service {
	if recorder == nil {
		recorder = noopEventRecorder{}
	}
	return &Service{
		connections: connections,
		pageViews:   pageViews,
		behavior:    behavior,
		sanitizer:   sanitizer,
		logger:      logger,
		recorder:    recorder,
		now:         time.Now,
	}
}

// TrackWalletConnection はウォレット接続試行を記録する。
// プロバイダ未指定時は"other"、ステータス未指定時は"failed"として記録する。
// クライアント申告の文字列フィールドはすべてサニタイズされる。
// 記録後に行動メトリクスの再計算を起動するが、その失敗は
// ログに記録するのみでトラッキング自体は成功扱いとする。
func (s *Service) TrackWalletConnection(ctx context.Context, input WalletConnectionInput) (*model.WalletConnection, error) {
	provider := s.sanitizer.SanitizeField(input.Provider)
	if provider == "" {
		provider = defaultProvider
	}

	status := model.ConnectionStatusFailed
	if raw := s.sanitizer.SanitizeField(input.Status); raw != "" {
		status = model.ParseConnectionStatus(raw)
	}

	conn := &model.WalletConnection{
		ID:            uuid.New().String(),
		UserID:        input.UserID,
		Provider:      provider,
		WalletAddress: s.sanitizer.SanitizeField(input.WalletAddress),
		Status:        status,
		ErrorMessage:  s.sanitizer.SanitizeField(input.ErrorMessage),
		IPAddress:     input.IPAddress,
		UserAgent:     input.UserAgent,
		AttemptedAt:   s.now().UTC(),
	}

	if err := s.connections.Create(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to record wallet connection: %w", err)
	}
	s.recorder.RecordWalletConnection(string(conn.Status))

	s.refreshBehavior(ctx, input.UserID)

	return conn, nil
}

// TrackPageView はページ閲覧を記録する。
// パスが空の場合は"/"として記録する。
func (s *Service) TrackPageView(ctx context.Context, input PageViewInput) (*model.PageView, error) {
	path := s.sanitizer.SanitizeField(input.Path)
	if path == "" {
		path = "/"
	}

	view := &model.PageView{
		ID:        uuid.New().String(),
		UserID:    input.UserID,
		Path:      path,
		Referrer:  s.sanitizer.SanitizeField(input.Referrer),
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		ViewedAt:  s.now().UTC(),
	}

	if err := s.pageViews.Create(ctx, view); err != nil {
		return nil, fmt.Errorf("failed to record page view: %w", err)
	}
	s.recorder.RecordPageView()

	s.refreshBehavior(ctx, input.UserID)

	return view, nil
}

func (s *Service) refreshBehavior(ctx context.Context, userID string) {
	if err := s.behavior.Refresh(ctx, userID); err != nil {
		s.logger.Error("failed to refresh behavior metrics after tracking", "user_id", userID, "error", err)
	}
}
