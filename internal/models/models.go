package models

import "time"

// Link представляет сокращённую ссылку, принадлежащую пользователю
type Link struct {
	ID          int64     `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Slug        string    `json:"slug" db:"slug"`
	OriginalURL string    `json:"original_url" db:"original_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Click представляет записанное событие перехода по ссылке
type Click struct {
	ID        int64     `json:"id" db:"id"`
	LinkID    int64     `json:"link_id" db:"link_id"`
	IP        string    `json:"ip" db:"ip"`
	ClickedAt time.Time `json:"clicked_at" db:"clicked_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ClickEvent представляет событие перехода для передачи через канал рекордера
type ClickEvent struct {
	LinkID    int64
	IP        string
	ClickedAt time.Time
}

// ShortenRequest представляет JSON-запрос на сокращение URL
type ShortenRequest struct {
	URL string `json:"url"`
}

// ShortenResponse представляет JSON-ответ с коротким URL
type ShortenResponse struct {
	Result string `json:"result"`
}

// LinkResponse представляет информацию о ссылке в списке пользователя
type LinkResponse struct {
	Slug        string    `json:"slug"`
	ShortURL    string    `json:"short_url"`
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// ClickResponse представляет одно событие перехода в истории ссылки
type ClickResponse struct {
	IP        string    `json:"ip"`
	ClickedAt time.Time `json:"clicked_at"`
}

// LinkStatsResponse представляет постраничную историю переходов по ссылке
type LinkStatsResponse struct {
	Slug        string          `json:"slug"`
	OriginalURL string          `json:"original_url"`
	Page        int             `json:"page"`
	Clicks      []ClickResponse `json:"clicks"`
}

// ServiceStats представляет счётчики сервиса для внутреннего эндпоинта
type ServiceStats struct {
	LinksCount    int64 `json:"links_count"`
	ClicksCount   int64 `json:"clicks_count"`
	DroppedClicks int64 `json:"dropped_clicks"`
}
