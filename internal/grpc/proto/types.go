// Package proto содержит определения типов для gRPC сервиса коротких ссылок
package proto

// ShortenURLRequest представляет запрос на сокращение URL
type ShortenURLRequest struct {
	URL string `json:"url"`
}

// ShortenURLResponse представляет ответ с короткой ссылкой
type ShortenURLResponse struct {
	Result string `json:"result"`
	Slug   string `json:"slug"`
}

// ResolveURLRequest представляет запрос на разрешение слага
type ResolveURLRequest struct {
	Slug string `json:"slug"`
}

// ResolveURLResponse представляет ответ с исходным URL
type ResolveURLResponse struct {
	OriginalURL string `json:"original_url"`
	Found       bool   `json:"found"`
}

// GetUserLinksRequest представляет запрос списка ссылок пользователя
type GetUserLinksRequest struct {
	Page int32 `json:"page"`
}

// UserLink представляет ссылку пользователя в ответе
type UserLink struct {
	Slug        string `json:"slug"`
	ShortURL    string `json:"short_url"`
	OriginalURL string `json:"original_url"`
	CreatedAt   string `json:"created_at"`
}

// GetUserLinksResponse представляет ответ со списком ссылок
type GetUserLinksResponse struct {
	Links []*UserLink `json:"links"`
}

// GetLinkStatsRequest представляет запрос истории переходов по ссылке
type GetLinkStatsRequest struct {
	Slug string `json:"slug"`
	Page int32  `json:"page"`
}

// LinkClick представляет один переход в ответе
type LinkClick struct {
	IP        string `json:"ip"`
	ClickedAt string `json:"clicked_at"`
}

// GetLinkStatsResponse представляет ответ с историей переходов
type GetLinkStatsResponse struct {
	Slug        string       `json:"slug"`
	OriginalURL string       `json:"original_url"`
	Clicks      []*LinkClick `json:"clicks"`
}

// DeleteLinkRequest представляет запрос на удаление ссылки
type DeleteLinkRequest struct {
	Slug string `json:"slug"`
}

// DeleteLinkResponse представляет ответ на удаление ссылки
type DeleteLinkResponse struct {
	Success bool `json:"success"`
}

// PingRequest представляет запрос проверки состояния
type PingRequest struct{}

// PingResponse представляет ответ проверки состояния
type PingResponse struct {
	DatabaseAvailable bool `json:"database_available"`
}

// GetServiceStatsRequest представляет запрос статистики сервиса
type GetServiceStatsRequest struct{}

// GetServiceStatsResponse представляет ответ со статистикой сервиса
type GetServiceStatsResponse struct {
	LinksCount    int64 `json:"links_count"`
	ClicksCount   int64 `json:"clicks_count"`
	DroppedClicks int64 `json:"dropped_clicks"`
}
