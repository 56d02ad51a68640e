package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
)

// minGzipSize задаёт порог размера ответа, ниже которого сжатие невыгодно
const minGzipSize = 1400

// GzipMiddleware обрабатывает Gzip-сжатие для запросов и ответов
func GzipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Обработка сжатого запроса
		if strings.Contains(r.Header.Get("Content-Encoding"), "gzip") {
			gz, err := gzip.NewReader(r.Body)
			if err != nil {
				http.Error(w, "Invalid gzip data", http.StatusBadRequest)
				return
			}
			defer gz.Close()
			r.Body = io.NopCloser(gz)
		}

		// Проверка, поддерживает ли клиент сжатие ответа
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		// Создаём кастомный ResponseWriter для сжатия ответа
		gw := &gzipResponseWriter{ResponseWriter: w}
		defer gw.Close()

		next.ServeHTTP(gw, r)
	})
}

// gzipResponseWriter оборачивает http.ResponseWriter для сжатия ответа
type gzipResponseWriter struct {
	http.ResponseWriter
	gz          *gzip.Writer
	isGzipValid bool
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	// Сжимаем только JSON-ответы заметного размера: редиректы и
	// короткие ошибки уходят как есть
	contentType := w.Header().Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") || len(b) < minGzipSize {
		w.isGzipValid = false
		return w.ResponseWriter.Write(b)
	}

	// Инициализируем gzip.Writer, если ещё не создан
	if w.gz == nil {
		w.gz = gzip.NewWriter(w.ResponseWriter)
		w.isGzipValid = true
		w.Header().Set("Content-Encoding", "gzip")
	}

	return w.gz.Write(b)
}

// Close закрывает gzip.Writer
func (w *gzipResponseWriter) Close() error {
	if w.gz != nil && w.isGzipValid {
		return w.gz.Close()
	}
	return nil
}
