package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/tempizhere/goslug/internal/clicks"
	"github.com/tempizhere/goslug/internal/config"
	"github.com/tempizhere/goslug/internal/models"
	"github.com/tempizhere/goslug/internal/ratelimit"
	"github.com/tempizhere/goslug/internal/repository"
	"github.com/tempizhere/goslug/internal/service"
	"go.uber.org/zap"
)

// testServer связывает зависимости приложения для хендлерных тестов
type testServer struct {
	repo     *repository.MemoryRepository
	svc      *service.Service
	recorder *clicks.Recorder
	router   *chi.Mux
	stop     func()
}

// newTestServer собирает приложение на памяти с щедрыми лимитами
func newTestServer(t *testing.T, tune func(cfg *config.Config, limiter *ratelimit.Limiter)) *testServer {
	t.Helper()

	repo := repository.NewMemoryRepository()
	cfg := &config.Config{
		RunAddr:       ":8080",
		BaseURL:       "http://localhost:8080",
		JWTSecret:     "test_secret",
		CookieTTL:     time.Hour,
		TrustedSubnet: "127.0.0.0/8",
	}
	limiter := ratelimit.NewLimiter()
	limiter.SetLimits(ratelimit.ClassRedirect, ratelimit.Limits{
		Burst: 1000, BurstWindow: time.Second, Sustained: 100000, SustainedWindow: time.Minute,
	})
	limiter.SetLimits(ratelimit.ClassShorten, ratelimit.Limits{
		Burst: 1000, BurstWindow: time.Second, Sustained: 100000, SustainedWindow: time.Minute,
	})
	if tune != nil {
		tune(cfg, limiter)
	}

	svc := service.NewService(repo, cfg.BaseURL, cfg.JWTSecret)
	recorder := clicks.NewRecorder(repo, zap.NewNop(), 64, 1)
	ctx, cancel := context.WithCancel(context.Background())
	recorder.Start(ctx)

	appInstance := NewApp(svc, recorder, nil, zap.NewNop())
	router := NewRouter(appInstance, svc, cfg, limiter, zap.NewNop())

	stopped := false
	stop := func() {
		if !stopped {
			stopped = true
			cancel()
			recorder.Wait()
		}
	}
	t.Cleanup(stop)

	return &testServer{repo: repo, svc: svc, recorder: recorder, router: router, stop: stop}
}

// authCookie выдаёт куку с JWT для заданного пользователя
func authCookie(t *testing.T, svc *service.Service, userID string) *http.Cookie {
	t.Helper()
	token, err := svc.GenerateJWT(userID)
	assert.NoError(t, err)
	return &http.Cookie{Name: "jwt_token", Value: token}
}

func TestHandleRedirect(t *testing.T) {
	ts := newTestServer(t, nil)
	link, err := ts.svc.Shorten("https://example.com/page", "userA")
	assert.NoError(t, err)

	// Успешный редирект
	req := httptest.NewRequest(http.MethodGet, "/"+link.Slug, nil)
	req.RemoteAddr = "192.0.2.1:1234"
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code, "Redirect should answer 302")
	assert.Equal(t, "https://example.com/page", w.Header().Get("Location"))

	// Неизвестный слаг
	req = httptest.NewRequest(http.MethodGet, "/zzzzzzz", nil)
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code, "Unknown slug should answer 404")

	// Переход записан после остановки рекордера
	ts.stop()
	linkClicks, err := ts.repo.ListClicks(link.ID, 0, 10)
	assert.NoError(t, err)
	assert.Len(t, linkClicks, 1, "Exactly one click should be recorded")
	assert.Equal(t, "192.0.2.1", linkClicks[0].IP)
}

func TestHandleRedirect_DeletedLink(t *testing.T) {
	ts := newTestServer(t, nil)
	link, err := ts.svc.Shorten("https://example.com", "userA")
	assert.NoError(t, err)
	assert.NoError(t, ts.svc.DeleteLink("userA", link.Slug))

	req := httptest.NewRequest(http.MethodGet, "/"+link.Slug, nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code, "Deleted slug should answer 404, not an error")
}

func TestHandleShortenForm(t *testing.T) {
	ts := newTestServer(t, nil)
	cookie := authCookie(t, ts.svc, "userA")

	tests := []struct {
		name         string
		url          string
		expectedCode int
	}{
		{"valid URL", "https://example.com/x", http.StatusSeeOther},
		{"empty URL", "", http.StatusBadRequest},
		{"own host", "http://localhost:8080/anything", http.StatusBadRequest},
		{"oversized URL", "https://example.com/" + strings.Repeat("a", 2048), http.StatusBadRequest},
		{"not a URL", "nonsense", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{"url": {tt.url}}
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.AddCookie(cookie)
			w := httptest.NewRecorder()
			ts.router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedCode, w.Code)
			if tt.expectedCode == http.StatusSeeOther {
				assert.Equal(t, "/", w.Header().Get("Location"), "Success should redirect to the listing")
			}
		})
	}
}

func TestHandleJSONShorten(t *testing.T) {
	ts := newTestServer(t, nil)
	cookie := authCookie(t, ts.svc, "userA")

	req := httptest.NewRequest(http.MethodPost, "/api/shorten", strings.NewReader(`{"url":"https://example.com/x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp models.ShortenResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.Result, "http://localhost:8080/"), "Result should carry the base URL")

	// Невалидный JSON
	req = httptest.NewRequest(http.MethodPost, "/api/shorten", strings.NewReader("not json"))
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleIndex_Pagination(t *testing.T) {
	ts := newTestServer(t, nil)
	cookie := authCookie(t, ts.svc, "userA")
	for i := 0; i < 12; i++ {
		_, err := ts.svc.Shorten("https://example.com/page", "userA")
		assert.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var page1 []models.LinkResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &page1))
	assert.Len(t, page1, 10, "First page should hold ten links")

	req = httptest.NewRequest(http.MethodGet, "/?page=2", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var page2 []models.LinkResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &page2))
	assert.Len(t, page2, 2, "Second page should hold the remainder")
}

func TestHandleStats(t *testing.T) {
	ts := newTestServer(t, nil)
	link, err := ts.svc.Shorten("https://example.com", "userA")
	assert.NoError(t, err)
	_, err = ts.repo.SaveClick(models.Click{LinkID: link.ID, IP: "192.0.2.7", ClickedAt: time.Now()})
	assert.NoError(t, err)

	// Владелец видит историю переходов
	req := httptest.NewRequest(http.MethodGet, "/"+link.Slug+"/stats", nil)
	req.AddCookie(authCookie(t, ts.svc, "userA"))
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.LinkStatsResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, link.Slug, resp.Slug)
	assert.Len(t, resp.Clicks, 1)
	assert.Equal(t, "192.0.2.7", resp.Clicks[0].IP)

	// Чужая ссылка отвечает 404, не 403
	req = httptest.NewRequest(http.MethodGet, "/"+link.Slug+"/stats", nil)
	req.AddCookie(authCookie(t, ts.svc, "userB"))
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code, "Foreign link must answer 404")
}

func TestHandleDeleteLink(t *testing.T) {
	ts := newTestServer(t, nil)
	link, err := ts.svc.Shorten("https://example.com", "userA")
	assert.NoError(t, err)

	// Чужое удаление выглядит как отсутствие ссылки
	req := httptest.NewRequest(http.MethodDelete, "/"+link.Slug, nil)
	req.AddCookie(authCookie(t, ts.svc, "userB"))
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Владелец удаляет
	req = httptest.NewRequest(http.MethodDelete, "/"+link.Slug, nil)
	req.AddCookie(authCookie(t, ts.svc, "userA"))
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// Слаг больше не резолвится
	req = httptest.NewRequest(http.MethodGet, "/"+link.Slug, nil)
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRedirectRateLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config, limiter *ratelimit.Limiter) {
		limiter.SetLimits(ratelimit.ClassRedirect, ratelimit.Limits{
			Burst: 2, BurstWindow: time.Minute, Sustained: 100, SustainedWindow: time.Minute,
		})
	})
	link, err := ts.svc.Shorten("https://example.com", "userA")
	assert.NoError(t, err)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/"+link.Slug, nil)
		req.RemoteAddr = "192.0.2.1:1234"
		w := httptest.NewRecorder()
		ts.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusFound, w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/"+link.Slug, nil)
	req.RemoteAddr = "192.0.2.1:1234"
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "Third redirect from the same IP should be denied")

	// Другой IP не ограничен
	req = httptest.NewRequest(http.MethodGet, "/"+link.Slug, nil)
	req.RemoteAddr = "192.0.2.9:1234"
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestShortenRateLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config, limiter *ratelimit.Limiter) {
		limiter.SetLimits(ratelimit.ClassShorten, ratelimit.Limits{
			Burst: 1, BurstWindow: time.Minute, Sustained: 100, SustainedWindow: time.Minute,
		})
	})
	cookieA := authCookie(t, ts.svc, "userA")

	form := url.Values{"url": {"https://example.com/x"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookieA)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusSeeOther, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookieA)
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "Double submit should trip the user limit")

	// Другой пользователь не ограничен
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(authCookie(t, ts.svc, "userB"))
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusSeeOther, w.Code)
}

func TestHandleInternalStats(t *testing.T) {
	ts := newTestServer(t, nil)
	link, err := ts.svc.Shorten("https://example.com", "userA")
	assert.NoError(t, err)
	_, err = ts.repo.SaveClick(models.Click{LinkID: link.ID, IP: "192.0.2.1", ClickedAt: time.Now()})
	assert.NoError(t, err)

	// Запрос из доверенной подсети
	req := httptest.NewRequest(http.MethodGet, "/api/internal/stats", nil)
	req.Header.Set("X-Real-IP", "127.0.0.1")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var stats models.ServiceStats
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.LinksCount)
	assert.Equal(t, int64(1), stats.ClicksCount)

	// Запрос извне подсети
	req = httptest.NewRequest(http.MethodGet, "/api/internal/stats", nil)
	req.Header.Set("X-Real-IP", "203.0.113.1")
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandlePing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := repository.NewMemoryRepository()
	svc := service.NewService(repo, "http://localhost:8080", "test_secret")
	recorder := clicks.NewRecorder(repo, zap.NewNop(), 1, 1)

	t.Run("database available", func(t *testing.T) {
		mockDB := repository.NewMockDatabase(ctrl)
		mockDB.EXPECT().Ping().Return(nil)

		a := NewApp(svc, recorder, mockDB, zap.NewNop())
		w := httptest.NewRecorder()
		a.HandlePing(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("database unavailable", func(t *testing.T) {
		mockDB := repository.NewMockDatabase(ctrl)
		mockDB.EXPECT().Ping().Return(errors.New("connection refused"))

		a := NewApp(svc, recorder, mockDB, zap.NewNop())
		w := httptest.NewRecorder()
		a.HandlePing(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("database not configured", func(t *testing.T) {
		a := NewApp(svc, recorder, nil, zap.NewNop())
		w := httptest.NewRecorder()
		a.HandlePing(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestEndToEnd_ShortenThenRedirect(t *testing.T) {
	ts := newTestServer(t, nil)
	cookie := authCookie(t, ts.svc, "userA")

	// Пользователь A сокращает URL через форму
	form := url.Values{"url": {"https://example.com/page"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusSeeOther, w.Code)

	// Создана ровно одна ссылка, принадлежащая A
	links, err := ts.repo.ListByOwner("userA", 0, 10)
	assert.NoError(t, err)
	assert.Len(t, links, 1, "Exactly one link should be created")
	assert.Equal(t, "userA", links[0].UserID)
	assert.Len(t, links[0].Slug, 7)

	// Переход по слагу даёт 302 на исходный URL
	req = httptest.NewRequest(http.MethodGet, "/"+links[0].Slug, nil)
	req.RemoteAddr = "192.0.2.1:1234"
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/page", w.Header().Get("Location"))

	// После остановки рекордера в хранилище ровно один переход
	ts.stop()
	linkClicks, err := ts.repo.ListClicks(links[0].ID, 0, 10)
	assert.NoError(t, err)
	assert.Len(t, linkClicks, 1, "Exactly one click should eventually be visible")
}
