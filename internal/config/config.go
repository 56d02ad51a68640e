// Package config содержит настройки сервиса: флаги командной строки
// с приоритетом переменных окружения.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config содержит настройки приложения
type Config struct {
	RunAddr       string
	BaseURL       string
	DatabaseDSN   string
	JWTSecret     string
	TrustedSubnet string
	GRPCAddr      string
	CookieTTL     time.Duration

	// Настройки аллокатора слагов
	SlugLength   int
	SlugAttempts int

	// Лимиты: короткое окно на секунду, длинное на минуту
	RedirectBurst     int
	RedirectSustained int
	ShortenBurst      int
	ShortenSustained  int

	// Настройки очереди переходов
	ClickQueueSize int
	ClickWorkers   int
}

// NewConfig создаёт и возвращает новый объект Config: значения по умолчанию,
// затем флаги командной строки, затем переменные окружения
func NewConfig() *Config {
	cfg := &Config{
		CookieTTL: 24 * time.Hour,
	}

	// Регистрируем флаги
	flagRunAddr := flag.String("a", ":8080", "address and port to run server")
	flagBaseURL := flag.String("b", "http://localhost:8080", "base URL for shortened links")
	flagDatabaseDSN := flag.String("d", "", "database DSN for PostgreSQL")
	flagJWTSecret := flag.String("j", "default_jwt_secret", "JWT secret key")
	flagTrustedSubnet := flag.String("t", "", "trusted subnet in CIDR notation for internal stats")
	flagGRPCAddr := flag.String("g", "", "address and port to run gRPC server, empty disables gRPC")
	flagSlugLength := flag.Int("slug-length", 7, "length of generated slugs")
	flagSlugAttempts := flag.Int("slug-attempts", 5, "allocation attempts before giving up")
	flagRedirectBurst := flag.Int("redirect-burst", 7, "redirect requests allowed per second per IP")
	flagRedirectSustained := flag.Int("redirect-sustained", 60, "redirect requests allowed per minute per IP")
	flagShortenBurst := flag.Int("shorten-burst", 2, "shorten/stats requests allowed per second per user")
	flagShortenSustained := flag.Int("shorten-sustained", 30, "shorten/stats requests allowed per minute per user")
	flagClickQueueSize := flag.Int("click-queue", 1024, "click queue capacity")
	flagClickWorkers := flag.Int("click-workers", 2, "click recorder workers")
	flag.Parse()

	cfg.RunAddr = stringValue("SERVER_ADDRESS", *flagRunAddr)
	cfg.BaseURL = stringValue("BASE_URL", *flagBaseURL)
	cfg.DatabaseDSN = stringValue("DATABASE_DSN", *flagDatabaseDSN)
	cfg.JWTSecret = stringValue("JWT_SECRET", *flagJWTSecret)
	cfg.TrustedSubnet = stringValue("TRUSTED_SUBNET", *flagTrustedSubnet)
	cfg.GRPCAddr = stringValue("GRPC_ADDRESS", *flagGRPCAddr)
	cfg.SlugLength = intValue("SLUG_LENGTH", *flagSlugLength)
	cfg.SlugAttempts = intValue("SLUG_ATTEMPTS", *flagSlugAttempts)
	cfg.RedirectBurst = intValue("REDIRECT_BURST", *flagRedirectBurst)
	cfg.RedirectSustained = intValue("REDIRECT_SUSTAINED", *flagRedirectSustained)
	cfg.ShortenBurst = intValue("SHORTEN_BURST", *flagShortenBurst)
	cfg.ShortenSustained = intValue("SHORTEN_SUSTAINED", *flagShortenSustained)
	cfg.ClickQueueSize = intValue("CLICK_QUEUE_SIZE", *flagClickQueueSize)
	cfg.ClickWorkers = intValue("CLICK_WORKERS", *flagClickWorkers)

	// Валидация значений
	cfg.RunAddr = validateAddress(cfg.RunAddr)
	cfg.BaseURL = validateBaseURL(cfg.BaseURL)

	return cfg
}

// stringValue возвращает переменную окружения либо значение флага
func stringValue(env, flagValue string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	return flagValue
}

// intValue возвращает числовую переменную окружения либо значение флага
func intValue(env string, flagValue int) int {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return flagValue
}

// validateAddress добавляет двоеточие к адресу, заданному одним портом
func validateAddress(addr string) string {
	if !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}

// validateBaseURL добавляет схему к базовому URL, если она отсутствует
func validateBaseURL(baseURL string) string {
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return "http://" + baseURL
	}
	return baseURL
}
