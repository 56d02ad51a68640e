package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/tempizhere/goslug/internal/models"
)

// MemoryRepository реализует интерфейс Repository с использованием map.
// Используется при запуске без DATABASE_DSN и в тестах
type MemoryRepository struct {
	links       map[string]models.Link    // slug -> link
	clicks      map[int64][]models.Click  // link_id -> clicks
	retired     map[string]struct{}       // слаги удалённых ссылок, повторно не выдаются
	nextLinkID  int64
	nextClickID int64
	mutex       sync.RWMutex
}

// NewMemoryRepository создаёт новый экземпляр MemoryRepository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		links:   make(map[string]models.Link),
		clicks:  make(map[int64][]models.Click),
		retired: make(map[string]struct{}),
	}
}

// CreateLink атомарно сохраняет ссылку, если слаг свободен
func (r *MemoryRepository) CreateLink(link models.Link) (models.Link, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.links[link.Slug]; exists {
		return models.Link{}, ErrSlugExists
	}
	if _, exists := r.retired[link.Slug]; exists {
		return models.Link{}, ErrSlugExists
	}

	r.nextLinkID++
	link.ID = r.nextLinkID
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}
	r.links[link.Slug] = link
	return link, nil
}

// GetBySlug возвращает ссылку по слагу, если она существует
func (r *MemoryRepository) GetBySlug(slug string) (models.Link, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	link, exists := r.links[slug]
	return link, exists
}

// GetByOwnerAndSlug возвращает ссылку по владельцу и слагу
func (r *MemoryRepository) GetByOwnerAndSlug(userID, slug string) (models.Link, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	link, exists := r.links[slug]
	if !exists || link.UserID != userID {
		return models.Link{}, false
	}
	return link, true
}

// ListByOwner возвращает страницу ссылок пользователя, новые первыми
func (r *MemoryRepository) ListByOwner(userID string, offset, limit int) ([]models.Link, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var links []models.Link
	for _, link := range r.links {
		if link.UserID == userID {
			links = append(links, link)
		}
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].ID > links[j].ID
		}
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})

	if offset >= len(links) {
		return nil, nil
	}
	end := offset + limit
	if end > len(links) {
		end = len(links)
	}
	return links[offset:end], nil
}

// DeleteLink удаляет ссылку вместе с её переходами.
// Слаг удалённой ссылки остаётся занятым и повторно не назначается
func (r *MemoryRepository) DeleteLink(id int64) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for slug, link := range r.links {
		if link.ID == id {
			delete(r.links, slug)
			delete(r.clicks, id)
			r.retired[slug] = struct{}{}
			return nil
		}
	}
	return ErrLinkNotFound
}

// SaveClick сохраняет событие перехода, если ссылка ещё существует
func (r *MemoryRepository) SaveClick(click models.Click) (models.Click, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.linkExists(click.LinkID) {
		return models.Click{}, ErrLinkNotFound
	}

	r.nextClickID++
	click.ID = r.nextClickID
	click.CreatedAt = time.Now()
	r.clicks[click.LinkID] = append(r.clicks[click.LinkID], click)
	return click, nil
}

// ListClicks возвращает страницу переходов по ссылке, свежие первыми
func (r *MemoryRepository) ListClicks(linkID int64, offset, limit int) ([]models.Click, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	all := r.clicks[linkID]
	clicks := make([]models.Click, len(all))
	copy(clicks, all)
	sort.Slice(clicks, func(i, j int) bool {
		if clicks[i].ClickedAt.Equal(clicks[j].ClickedAt) {
			return clicks[i].ID > clicks[j].ID
		}
		return clicks[i].ClickedAt.After(clicks[j].ClickedAt)
	})

	if offset >= len(clicks) {
		return nil, nil
	}
	end := offset + limit
	if end > len(clicks) {
		end = len(clicks)
	}
	return clicks[offset:end], nil
}

// Stats возвращает счётчики ссылок и переходов
func (r *MemoryRepository) Stats() (models.ServiceStats, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var clicksCount int64
	for _, clicks := range r.clicks {
		clicksCount += int64(len(clicks))
	}
	return models.ServiceStats{
		LinksCount:  int64(len(r.links)),
		ClicksCount: clicksCount,
	}, nil
}

// Clear очищает хранилище
func (r *MemoryRepository) Clear() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.links = make(map[string]models.Link)
	r.clicks = make(map[int64][]models.Click)
	r.retired = make(map[string]struct{})
	r.nextLinkID = 0
	r.nextClickID = 0
}

// linkExists проверяет существование ссылки по ID, вызывается под мьютексом
func (r *MemoryRepository) linkExists(id int64) bool {
	for _, link := range r.links {
		if link.ID == id {
			return true
		}
	}
	return false
}
