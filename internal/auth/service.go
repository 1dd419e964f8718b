// Package auth はセッション発行とログイン記録の管理を提供する。
//
// ユーザーの登録・削除は周辺プラットフォームが所有するため、
// 本サービスは既存ユーザーに対するセッションの発行と終了のみを行う。
// セッション行はログイン記録を兼ねており、ログアウト時も削除せず
// logout_atを刻印して残す。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/nftopia/analytics/internal/model"
	"github.com/nftopia/analytics/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
		now:         time.Now,
	}
}

// Login はメールアドレスでユーザーを特定し、セッションを発行する。
// 作成されるセッション行はリテンション集計の元データとなるログイン記録でもある。
// 該当ユーザーが存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) Login(ctx context.Context, email, ipAddress, userAgent string) (*model.Session, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	session, err := s.createSession(ctx, user.ID, ipAddress, userAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("session_id", session.ID),
	)
	return session, nil
}

// Logout はセッションにlogout_atを刻印して終了させる。
// セッション行自体は削除しない。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.CloseByID(ctx, sessionID, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
// セッションが無効（期限切れ・ログアウト済み・存在しない）の場合は
// UNAUTHORIZEDを返す。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, model.NewUnauthorizedError()
	}

	session, err := s.sessionRepo.FindActiveByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID, ipAddress, userAgent string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now().UTC()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		LoginAt:   now,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		IPAddress: ipAddress,
		UserAgent: userAgent,
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
