package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"github.com/nftopia/analytics/internal/middleware"
	"github.com/nftopia/analytics/internal/model"
	"github.com/nftopia/analytics/internal/tracking"
)

// TrackingServiceInterface はトラッキングハンドラーが必要とするサービスインターフェース。
// 記録されたレコードを返すが、ハンドラーはステータスのみを応答するため破棄する。
type TrackingServiceInterface interface {
	TrackWalletConnection(ctx context.Context, input tracking.WalletConnectionInput) (*model.WalletConnection, error)
	TrackPageView(ctx context.Context, input tracking.PageViewInput) (*model.PageView, error)
}

var _ TrackingServiceInterface = (*tracking.Service)(nil)

// TrackingHandler はクライアント計測イベントの取り込みハンドラー。
// スタッフ権限は不要で、ログイン済みユーザーなら誰でも送信できる。
type TrackingHandler struct {
	service TrackingServiceInterface
	logger  *slog.Logger
}

// NewTrackingHandler はTrackingHandlerを生成する。
func NewTrackingHandler(service TrackingServiceInterface, logger *slog.Logger) *TrackingHandler {
	return &TrackingHandler{service: service, logger: logger}
}

// trackingStatusResponse はトラッキングAPIのレスポンスボディ。
type trackingStatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// trackWalletRequest はウォレット接続イベントのリクエストボディ。
type trackWalletRequest struct {
	Provider      string `json:"provider"`
	WalletAddress string `json:"wallet_address"`
	Status        string `json:"status"`
	ErrorMessage  string `json:"error_message"`
}

// trackPageViewRequest はページビューイベントのリクエストボディ。
type trackPageViewRequest struct {
	Path     string `json:"path"`
	Referrer string `json:"referrer"`
}

// NewTrackingAuthMiddleware はトラッキングAPI専用の認証ミドルウェアを生成する。
// 通常の認証ミドルウェアと異なり、401レスポンスはstatus/message形式で返す。
// クライアント側の計測スクリプトがこの形式を前提にしているため。
func NewTrackingAuthMiddleware(sessions middleware.SessionFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil {
				writeTrackingUnauthorized(w)
				return
			}

			session, err := sessions.FindActiveByID(r.Context(), cookie.Value)
			if err != nil || session == nil {
				writeTrackingUnauthorized(w)
				return
			}

			ctx := middleware.ContextWithUserID(r.Context(), session.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeTrackingUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(trackingStatusResponse{
		Status:  "error",
		Message: "User not authenticated",
	})
}

// TrackWalletConnection はウォレット接続イベントを記録する。
// POST /api/track/wallet-connection
func (h *TrackingHandler) TrackWalletConnection(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeTrackingUnauthorized(w)
		return
	}

	var req trackWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeTrackingError(w, "Invalid JSON body")
		return
	}

	input := tracking.WalletConnectionInput{
		UserID:        userID,
		Provider:      req.Provider,
		WalletAddress: req.WalletAddress,
		Status:        req.Status,
		ErrorMessage:  req.ErrorMessage,
		IPAddress:     clientIP(r),
		UserAgent:     r.UserAgent(),
	}

	if _, err := h.service.TrackWalletConnection(r.Context(), input); err != nil {
		h.logger.Error("failed to track wallet connection",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		h.writeTrackingError(w, "Failed to record wallet connection")
		return
	}

	respondJSON(w, http.StatusOK, trackingStatusResponse{Status: "success"})
}

// TrackPageView はページビューイベントを記録する。
// POST /api/track/page-view
func (h *TrackingHandler) TrackPageView(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeTrackingUnauthorized(w)
		return
	}

	var req trackPageViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeTrackingError(w, "Invalid JSON body")
		return
	}

	input := tracking.PageViewInput{
		UserID:    userID,
		Path:      req.Path,
		Referrer:  req.Referrer,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}

	if _, err := h.service.TrackPageView(r.Context(), input); err != nil {
		h.logger.Error("failed to track page view",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		h.writeTrackingError(w, "Failed to record page view")
		return
	}

	respondJSON(w, http.StatusOK, trackingStatusResponse{Status: "success"})
}

func (h *TrackingHandler) writeTrackingError(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusBadRequest, trackingStatusResponse{
		Status:  "error",
		Message: message,
	})
}

// clientIP はリクエスト元のIPアドレスを返す。
// プロキシ配下ではX-Forwarded-Forの先頭を優先する。
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		for i := 0; i < len(forwarded); i++ {
			if forwarded[i] == ',' {
				return forwarded[:i]
			}
		}
		return forwarded
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
