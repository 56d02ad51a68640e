package repository

import (
	"database/sql"
	"errors"

	"github.com/tempizhere/goslug/internal/models"
)

// ErrSlugExists возвращается при попытке сохранить ссылку со слагом, который уже занят
var ErrSlugExists = errors.New("slug already exists")

// ErrLinkNotFound возвращается, когда ссылка не существует или уже удалена
var ErrLinkNotFound = errors.New("link not found")

// Repository определяет интерфейс для работы с хранилищем ссылок и переходов
type Repository interface {
	// CreateLink атомарно сохраняет ссылку, если слаг свободен.
	// При занятом слаге возвращает ErrSlugExists, отличимый от прочих ошибок хранилища
	CreateLink(link models.Link) (models.Link, error)
	// GetBySlug возвращает ссылку по слагу и флаг существования
	GetBySlug(slug string) (models.Link, bool)
	// GetByOwnerAndSlug возвращает ссылку по владельцу и слагу и флаг существования
	GetByOwnerAndSlug(userID, slug string) (models.Link, bool)
	// ListByOwner возвращает страницу ссылок пользователя, новые первыми
	ListByOwner(userID string, offset, limit int) ([]models.Link, error)
	// DeleteLink удаляет ссылку вместе с её переходами
	DeleteLink(id int64) error
	// SaveClick сохраняет событие перехода.
	// Если ссылка уже удалена, возвращает ErrLinkNotFound
	SaveClick(click models.Click) (models.Click, error)
	// ListClicks возвращает страницу переходов по ссылке, свежие первыми
	ListClicks(linkID int64, offset, limit int) ([]models.Click, error)
	// Stats возвращает счётчики ссылок и переходов
	Stats() (models.ServiceStats, error)
	// Clear очищает все данные в хранилище
	Clear()
}

// Database определяет интерфейс для работы с базой данных
type Database interface {
	// Ping проверяет соединение с базой данных
	Ping() error
	// Close закрывает соединение с базой данных
	Close() error
	// Exec выполняет SQL-команду без возврата результатов
	Exec(query string, args ...interface{}) (sql.Result, error)
	// Query выполняет SQL-запрос и возвращает результаты
	Query(query string, args ...interface{}) (*sql.Rows, error)
	// QueryRow выполняет SQL-запрос и возвращает одну строку результата
	QueryRow(query string, args ...interface{}) *sql.Row
	// Begin начинает новую транзакцию
	Begin() (*sql.Tx, error)
}
