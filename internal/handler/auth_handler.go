package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nftopia/analytics/internal/model"
)

const sessionCookieName = "session_id"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, ipAddress, userAgent string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string // セッションクッキーのDomain属性
	CookieSecure  bool   // Secure属性を付与するか
	SessionMaxAge int    // セッションクッキーの有効期間（秒）
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	authService AuthServiceInterface
	config      AuthHandlerConfig
	logger      *slog.Logger
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(authService AuthServiceInterface, config AuthHandlerConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		config:      config,
		logger:      logger,
	}
}

// loginRequest はログインAPIのリクエストボディ。
type loginRequest struct {
	Email string `json:"email"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	IsStaff bool   `json:"is_staff"`
}

// Login はメールアドレスでログインし、セッションクッキーを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleServiceError(w, model.NewInvalidRequestError("invalid JSON body"))
		return
	}
	if req.Email == "" {
		handleServiceError(w, model.NewInvalidRequestError("email is required"))
		return
	}

	session, err := h.authService.Login(r.Context(), req.Email, clientIP(r), r.UserAgent())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, session.ID)

	user, err := h.authService.GetCurrentUser(r.Context(), session.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toUserResponse(user))
}

// Logout はセッションを終了し、クッキーを破棄する。
// セッションクッキーが無い場合でもクッキーの破棄だけは行う。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if err := h.authService.Logout(r.Context(), cookie.Value); err != nil {
			h.logger.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	h.clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// Me は現在ログイン中のユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		handleServiceError(w, model.NewUnauthorizedError())
		return
	}

	user, err := h.authService.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:      user.ID,
		Email:   user.Email,
		Name:    user.Name,
		IsStaff: user.IsStaff,
	}
}
