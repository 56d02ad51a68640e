// Package service содержит бизнес-логику сервиса коротких ссылок:
// выдачу слагов с ограниченным числом повторов, валидацию URL и
// идентификацию пользователей через JWT.
package service

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/tempizhere/goslug/internal/models"
	"github.com/tempizhere/goslug/internal/repository"
)

var (
	ErrEmptyURL      = errors.New("empty URL")
	ErrURLTooLong    = errors.New("URL is too long")
	ErrInvalidURL    = errors.New("invalid URL")
	ErrOwnHostURL    = errors.New("URL points to this service")
	ErrSlugExhausted = errors.New("failed to allocate unique slug")
	ErrLinkNotFound  = errors.New("link not found")
	ErrInvalidToken  = errors.New("invalid token")
)

// Алфавит слагов: 62 символа, слаг фиксированной длины
const slugAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const (
	defaultSlugLength   = 7
	defaultMaxAttempts  = 5
	defaultMaxURLLength = 2048
	// LinkPageSize задаёт размер страницы списка ссылок пользователя
	LinkPageSize = 10
	// ClickPageSize задаёт размер страницы истории переходов
	ClickPageSize = 30
)

// Service реализует логику работы с короткими ссылками
type Service struct {
	repo      repository.Repository
	baseURL   string
	jwtSecret string

	// Настройки аллокатора; поля меняются только при конструировании и в тестах
	slugAlphabet string
	slugLength   int
	maxAttempts  int
	maxURLLength int
}

// NewService создаёт новый экземпляр Service с настройками по умолчанию
func NewService(repo repository.Repository, baseURL, jwtSecret string) *Service {
	return &Service{
		repo:         repo,
		baseURL:      strings.TrimRight(baseURL, "/"),
		jwtSecret:    jwtSecret,
		slugAlphabet: slugAlphabet,
		slugLength:   defaultSlugLength,
		maxAttempts:  defaultMaxAttempts,
		maxURLLength: defaultMaxURLLength,
	}
}

// SetAllocator переопределяет длину слага и лимит попыток.
// Значения меньше единицы оставляют настройки по умолчанию
func (s *Service) SetAllocator(length, attempts int) {
	if length >= 1 {
		s.slugLength = length
	}
	if attempts >= 1 {
		s.maxAttempts = attempts
	}
}

// GenerateSlug генерирует случайный слаг из алфавита [0-9a-zA-Z].
// Используется криптографический источник случайности: предсказуемые слаги
// позволили бы перебирать чужие ссылки
func (s *Service) GenerateSlug() (string, error) {
	b := make([]byte, s.slugLength)
	max := big.NewInt(int64(len(s.slugAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = s.slugAlphabet[n.Int64()]
	}
	return string(b), nil
}

// Shorten валидирует URL и создаёт ссылку со свежим уникальным слагом
func (s *Service) Shorten(originalURL, userID string) (models.Link, error) {
	if err := s.ValidateURL(originalURL); err != nil {
		return models.Link{}, err
	}
	return s.allocate(originalURL, userID)
}

// allocate подбирает свободный слаг с ограниченным числом попыток.
// Уникальность гарантирует атомарная вставка хранилища: на конфликт слага
// аллокатор реагирует новой попыткой со свежим кандидатом, на любую другую
// ошибку - немедленным отказом. Исчерпание попыток возвращает ErrSlugExhausted
func (s *Service) allocate(originalURL, userID string) (models.Link, error) {
	for i := 0; i < s.maxAttempts; i++ {
		slug, err := s.GenerateSlug()
		if err != nil {
			return models.Link{}, err
		}
		link, err := s.repo.CreateLink(models.Link{
			UserID:      userID,
			Slug:        slug,
			OriginalURL: originalURL,
			CreatedAt:   time.Now(),
		})
		if err == nil {
			return link, nil
		}
		if errors.Is(err, repository.ErrSlugExists) {
			continue
		}
		return models.Link{}, err
	}
	return models.Link{}, ErrSlugExhausted
}

// ValidateURL проверяет длину и форму URL и отклоняет ссылки на сам сервис
func (s *Service) ValidateURL(raw string) error {
	if raw == "" {
		return ErrEmptyURL
	}
	if len(raw) > s.maxURLLength {
		return ErrURLTooLong
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return ErrInvalidURL
	}
	if strings.EqualFold(u.Hostname(), s.baseHost()) {
		return ErrOwnHostURL
	}
	return nil
}

// baseHost возвращает хост сервиса без порта для анти-самосокращения
func (s *Service) baseHost() string {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Resolve возвращает ссылку по слагу и флаг существования
func (s *Service) Resolve(slug string) (models.Link, bool) {
	return s.repo.GetBySlug(slug)
}

// ListLinks возвращает страницу ссылок пользователя, новые первыми
func (s *Service) ListLinks(userID string, page int) ([]models.Link, error) {
	if page < 1 {
		page = 1
	}
	return s.repo.ListByOwner(userID, (page-1)*LinkPageSize, LinkPageSize)
}

// LinkStats возвращает ссылку и страницу её переходов.
// Чужая ссылка неотличима от несуществующей: в обоих случаях ErrLinkNotFound
func (s *Service) LinkStats(userID, slug string, page int) (models.Link, []models.Click, error) {
	link, exists := s.repo.GetByOwnerAndSlug(userID, slug)
	if !exists {
		return models.Link{}, nil, ErrLinkNotFound
	}
	if page < 1 {
		page = 1
	}
	clicks, err := s.repo.ListClicks(link.ID, (page-1)*ClickPageSize, ClickPageSize)
	if err != nil {
		return models.Link{}, nil, err
	}
	return link, clicks, nil
}

// DeleteLink удаляет ссылку пользователя вместе с её переходами
func (s *Service) DeleteLink(userID, slug string) error {
	link, exists := s.repo.GetByOwnerAndSlug(userID, slug)
	if !exists {
		return ErrLinkNotFound
	}
	return s.repo.DeleteLink(link.ID)
}

// ShortURL строит полный короткий URL для слага
func (s *Service) ShortURL(slug string) string {
	return s.baseURL + "/" + slug
}

// GetBaseURL возвращает базовый URL сервиса
func (s *Service) GetBaseURL() string {
	return s.baseURL
}

// Stats возвращает счётчики сервиса
func (s *Service) Stats() (models.ServiceStats, error) {
	return s.repo.Stats()
}

// GenerateUserID генерирует новый идентификатор пользователя
func (s *Service) GenerateUserID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateJWT создаёт подписанный токен с идентификатором пользователя
func (s *Service) GenerateJWT(userID string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// ParseJWT проверяет токен и возвращает идентификатор пользователя
func (s *Service) ParseJWT(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
