package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/nftopia/analytics/internal/model"
)

// UserFinder はスタッフ権限の判定に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// NewStaffMiddleware は認証済みユーザーがスタッフであることを要求する
// ミドルウェアを返す。SessionMiddlewareの後に配置する必要がある。
// 認証済みだがスタッフでないユーザーには403 Forbiddenを返す。
// 401と403は区別される: 未認証は401、認証済み非スタッフは403。
func NewStaffMiddleware(userFinder UserFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			user, err := userFinder.FindByID(r.Context(), userID)
			if err != nil {
				slog.Error("failed to find user for staff check",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if user == nil || !user.IsStaff {
				slog.Warn("non-staff user attempted to access staff endpoint",
					slog.String("user_id", userID),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
