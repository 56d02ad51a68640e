package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/tempizhere/goslug/internal/ratelimit"
	"go.uber.org/zap"
)

// KeyFunc извлекает ключ лимитирования из запроса
type KeyFunc func(r *http.Request) string

// RateLimitMiddleware создаёт middleware, проверяющее запрос в лимитере
// для заданного класса операции. Отказ отвечает 429 без обращения к хранилищу
func RateLimitMiddleware(limiter *ratelimit.Limiter, class string, keyFn KeyFunc, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if !limiter.Allow(key, class) {
				logger.Warn("Rate limit exceeded",
					zap.String("class", class),
					zap.String("key", key),
					zap.String("uri", r.RequestURI))
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				if _, err := w.Write([]byte(`{"error":"rate limit exceeded"}`)); err != nil {
					logger.Error("Failed to write response", zap.Error(err))
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPKey возвращает KeyFunc, ключующую запросы по IP клиента
func IPKey() KeyFunc {
	return ClientIP
}

// UserKey возвращает KeyFunc, ключующую запросы по идентификатору пользователя
// из контекста; без личности используется IP клиента
func UserKey() KeyFunc {
	return func(r *http.Request) string {
		if userID, ok := GetUserID(r); ok && userID != "" {
			return userID
		}
		return ClientIP(r)
	}
}

// ClientIP извлекает IP клиента: X-Real-IP, затем первый адрес
// из X-Forwarded-For, затем RemoteAddr
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
