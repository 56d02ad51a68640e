// Package app содержит HTTP-обработчики сервиса коротких ссылок и
// оркестрацию пути редиректа: проверка лимита, поиск слага, постановка
// перехода в очередь и ответ посетителю.
package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tempizhere/goslug/internal/clicks"
	"github.com/tempizhere/goslug/internal/middleware"
	"github.com/tempizhere/goslug/internal/models"
	"github.com/tempizhere/goslug/internal/repository"
	"github.com/tempizhere/goslug/internal/service"
	"go.uber.org/zap"
)

// App содержит хендлеры и зависимости
type App struct {
	svc      *service.Service
	recorder *clicks.Recorder
	db       repository.Database
	logger   *zap.Logger
}

// NewApp создаёт новое приложение
func NewApp(svc *service.Service, recorder *clicks.Recorder, db repository.Database, logger *zap.Logger) *App {
	return &App{svc: svc, recorder: recorder, db: db, logger: logger}
}

// HandleRedirect обрабатывает GET-запросы на "/{slug}".
// Запись перехода ставится в очередь до отправки ответа, но не ждёт
// записи в хранилище: посетитель получает редирект сразу
func (a *App) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		http.Error(w, "Missing slug", http.StatusBadRequest)
		return
	}

	link, exists := a.svc.Resolve(slug)
	if !exists {
		http.Error(w, "Link not found", http.StatusNotFound)
		return
	}

	// Время события - момент редиректа, не момент записи
	a.recorder.Enqueue(link.ID, middleware.ClientIP(r), time.Now())

	w.Header().Set("Location", link.OriginalURL)
	w.WriteHeader(http.StatusFound)
}

// HandleIndex обрабатывает GET-запросы на "/": страница ссылок пользователя
func (a *App) HandleIndex(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	links, err := a.svc.ListLinks(userID, pageParam(r))
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := make([]models.LinkResponse, len(links))
	for i, link := range links {
		resp[i] = models.LinkResponse{
			Slug:        link.Slug,
			ShortURL:    a.svc.ShortURL(link.Slug),
			OriginalURL: link.OriginalURL,
			CreatedAt:   link.CreatedAt,
		}
	}
	a.writeJSONResponse(w, http.StatusOK, resp)
}

// HandleShortenForm обрабатывает POST-запросы на "/" с полем формы url.
// Успех отвечает редиректом на "/", чтобы обновление страницы не создавало
// повторную ссылку
func (a *App) HandleShortenForm(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	_, err := a.svc.Shorten(r.PostFormValue("url"), userID)
	if err != nil {
		a.writeShortenError(w, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleJSONShorten обрабатывает POST-запросы на "/api/shorten"
func (a *App) HandleJSONShorten(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var reqBody models.ShortenRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	link, err := a.svc.Shorten(reqBody.URL, userID)
	if err != nil {
		a.writeShortenError(w, err)
		return
	}

	a.writeJSONResponse(w, http.StatusCreated, models.ShortenResponse{
		Result: a.svc.ShortURL(link.Slug),
	})
}

// HandleStats обрабатывает GET-запросы на "/{slug}/stats".
// Чужая ссылка отвечает 404, а не 403: существование чужих слагов не
// подтверждается
func (a *App) HandleStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	slug := chi.URLParam(r, "slug")
	page := pageParam(r)
	link, linkClicks, err := a.svc.LinkStats(userID, slug, page)
	if err != nil {
		if errors.Is(err, service.ErrLinkNotFound) {
			http.Error(w, "Link not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := models.LinkStatsResponse{
		Slug:        link.Slug,
		OriginalURL: link.OriginalURL,
		Page:        page,
		Clicks:      make([]models.ClickResponse, len(linkClicks)),
	}
	for i, click := range linkClicks {
		resp.Clicks[i] = models.ClickResponse{IP: click.IP, ClickedAt: click.ClickedAt}
	}
	a.writeJSONResponse(w, http.StatusOK, resp)
}

// HandleDeleteLink обрабатывает DELETE-запросы на "/{slug}"
func (a *App) HandleDeleteLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	slug := chi.URLParam(r, "slug")
	if err := a.svc.DeleteLink(userID, slug); err != nil {
		if errors.Is(err, service.ErrLinkNotFound) {
			http.Error(w, "Link not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePing обрабатывает GET-запросы на "/ping"
func (a *App) HandlePing(w http.ResponseWriter, r *http.Request) {
	if a.db == nil {
		http.Error(w, "Database not configured", http.StatusInternalServerError)
		return
	}
	if err := a.db.Ping(); err != nil {
		http.Error(w, "Database connection failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleInternalStats обрабатывает GET-запросы на "/api/internal/stats"
func (a *App) HandleInternalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svc.Stats()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	stats.DroppedClicks = a.recorder.Dropped()
	a.writeJSONResponse(w, http.StatusOK, stats)
}

// writeShortenError переводит ошибки сокращения в HTTP-статусы:
// ошибки валидации - 400, исчерпание попыток аллокатора - 503 с
// предложением повторить, прочие ошибки хранилища - 500
func (a *App) writeShortenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyURL),
		errors.Is(err, service.ErrURLTooLong),
		errors.Is(err, service.ErrInvalidURL),
		errors.Is(err, service.ErrOwnHostURL):
		a.writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrSlugExhausted):
		a.writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{
			"error": "could not allocate a short link, please try again",
		})
	default:
		a.logger.Error("Failed to shorten URL", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// writeJSONResponse пишет JSON-ответ с проверкой ошибок
func (a *App) writeJSONResponse(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Failed to encode JSON", http.StatusInternalServerError)
		return
	}
	if _, err := w.Write(data); err != nil {
		a.logger.Error("Failed to write response", zap.Error(err))
	}
}

// pageParam извлекает номер страницы из запроса, по умолчанию первая
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
