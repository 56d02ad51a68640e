// Package middleware содержит HTTP middleware для обработки запросов.
// Включает аутентификацию, логирование, сжатие ответов, лимитирование
// запросов и проверку доверенных подсетей.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/tempizhere/goslug/internal/config"
	"github.com/tempizhere/goslug/internal/service"
	"go.uber.org/zap"
)

// UserIDKey для хранения UserID в контексте
type UserIDKey struct{}

// cookieName задаёт имя куки с JWT
const cookieName = "jwt_token"

// AuthMiddleware проверяет куку с JWT и выдаёт новую личность при её отсутствии.
// Идентификатор пользователя всегда попадает в контекст запроса: владение
// ссылками и ключи лимитера строятся на нём, а не на глобальном состоянии
func AuthMiddleware(svc *service.Service, cfg *config.Config, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID string

			// Проверяем куку с JWT
			if cookie, err := r.Cookie(cookieName); err == nil && cookie != nil {
				userID, err = svc.ParseJWT(cookie.Value)
				if err != nil {
					logger.Warn("Invalid JWT token", zap.Error(err))
					userID = ""
				}
			}

			// Новому посетителю выдаём личность и куку
			if userID == "" {
				var err error
				userID, err = svc.GenerateUserID()
				if err != nil {
					http.Error(w, "Internal server error", http.StatusInternalServerError)
					return
				}
				token, err := svc.GenerateJWT(userID)
				if err != nil {
					http.Error(w, "Internal server error", http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    token,
					Expires:  time.Now().Add(cfg.CookieTTL),
					Path:     "/",
					HttpOnly: true,
				})
			}

			// Добавляем UserID в контекст
			ctx := context.WithValue(r.Context(), UserIDKey{}, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID извлекает UserID из контекста
func GetUserID(r *http.Request) (string, bool) {
	userID, ok := r.Context().Value(UserIDKey{}).(string)
	return userID, ok
}
