package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tempizhere/goslug/internal/models"
	"go.uber.org/zap"
)

// Коды ошибок PostgreSQL, которые хранилище переводит в типизированные ошибки
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresRepository реализует интерфейс Repository с использованием PostgreSQL
type PostgresRepository struct {
	db     Database
	logger *zap.Logger
}

// NewPostgresRepository создаёт новый экземпляр PostgresRepository
func NewPostgresRepository(db Database, logger *zap.Logger) (*PostgresRepository, error) {
	if db == nil {
		return nil, nil
	}
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}, nil
}

// CreateLink атомарно сохраняет ссылку, полагаясь на уникальный индекс по slug.
// Конфликт уникальности возвращается как ErrSlugExists, остальные ошибки - как есть
func (r *PostgresRepository) CreateLink(link models.Link) (models.Link, error) {
	err := r.db.QueryRow(
		"INSERT INTO links (user_id, slug, original_url) VALUES ($1, $2, $3) RETURNING id, created_at",
		link.UserID, link.Slug, link.OriginalURL,
	).Scan(&link.ID, &link.CreatedAt)
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return models.Link{}, ErrSlugExists
		}
		r.logger.Error("Failed to save link to database", zap.String("slug", link.Slug), zap.Error(err))
		return models.Link{}, err
	}
	return link, nil
}

// GetBySlug возвращает ссылку по слагу, если она существует
func (r *PostgresRepository) GetBySlug(slug string) (models.Link, bool) {
	var link models.Link
	err := r.db.QueryRow(
		"SELECT id, user_id, slug, original_url, created_at FROM links WHERE slug = $1",
		slug,
	).Scan(&link.ID, &link.UserID, &link.Slug, &link.OriginalURL, &link.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Link{}, false
	}
	if err != nil {
		r.logger.Error("Failed to get link from database", zap.String("slug", slug), zap.Error(err))
		return models.Link{}, false
	}
	return link, true
}

// GetByOwnerAndSlug возвращает ссылку по владельцу и слагу
func (r *PostgresRepository) GetByOwnerAndSlug(userID, slug string) (models.Link, bool) {
	var link models.Link
	err := r.db.QueryRow(
		"SELECT id, user_id, slug, original_url, created_at FROM links WHERE user_id = $1 AND slug = $2",
		userID, slug,
	).Scan(&link.ID, &link.UserID, &link.Slug, &link.OriginalURL, &link.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Link{}, false
	}
	if err != nil {
		r.logger.Error("Failed to get link by owner from database", zap.String("slug", slug), zap.Error(err))
		return models.Link{}, false
	}
	return link, true
}

// ListByOwner возвращает страницу ссылок пользователя, новые первыми
func (r *PostgresRepository) ListByOwner(userID string, offset, limit int) ([]models.Link, error) {
	rows, err := r.db.Query(
		"SELECT id, user_id, slug, original_url, created_at FROM links WHERE user_id = $1 ORDER BY created_at DESC, id DESC OFFSET $2 LIMIT $3",
		userID, offset, limit,
	)
	if err != nil {
		r.logger.Error("Failed to list links from database", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var links []models.Link
	for rows.Next() {
		var link models.Link
		if err := rows.Scan(&link.ID, &link.UserID, &link.Slug, &link.OriginalURL, &link.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return links, nil
}

// DeleteLink удаляет ссылку; переходы удаляются каскадом по внешнему ключу
func (r *PostgresRepository) DeleteLink(id int64) error {
	res, err := r.db.Exec("DELETE FROM links WHERE id = $1", id)
	if err != nil {
		r.logger.Error("Failed to delete link from database", zap.Int64("id", id), zap.Error(err))
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

// SaveClick сохраняет событие перехода.
// Нарушение внешнего ключа означает, что ссылка была удалена между редиректом
// и асинхронной записью, и возвращается как ErrLinkNotFound
func (r *PostgresRepository) SaveClick(click models.Click) (models.Click, error) {
	err := r.db.QueryRow(
		"INSERT INTO clicks (link_id, ip, clicked_at) VALUES ($1, $2, $3) RETURNING id, created_at",
		click.LinkID, click.IP, click.ClickedAt,
	).Scan(&click.ID, &click.CreatedAt)
	if err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return models.Click{}, ErrLinkNotFound
		}
		r.logger.Error("Failed to save click to database", zap.Int64("link_id", click.LinkID), zap.Error(err))
		return models.Click{}, err
	}
	return click, nil
}

// ListClicks возвращает страницу переходов по ссылке, свежие первыми
func (r *PostgresRepository) ListClicks(linkID int64, offset, limit int) ([]models.Click, error) {
	rows, err := r.db.Query(
		"SELECT id, link_id, ip, clicked_at, created_at FROM clicks WHERE link_id = $1 ORDER BY clicked_at DESC, id DESC OFFSET $2 LIMIT $3",
		linkID, offset, limit,
	)
	if err != nil {
		r.logger.Error("Failed to list clicks from database", zap.Int64("link_id", linkID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var clicks []models.Click
	for rows.Next() {
		var click models.Click
		if err := rows.Scan(&click.ID, &click.LinkID, &click.IP, &click.ClickedAt, &click.CreatedAt); err != nil {
			return nil, err
		}
		clicks = append(clicks, click)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return clicks, nil
}

// Stats возвращает счётчики ссылок и переходов
func (r *PostgresRepository) Stats() (models.ServiceStats, error) {
	var stats models.ServiceStats
	if err := r.db.QueryRow("SELECT COUNT(*) FROM links").Scan(&stats.LinksCount); err != nil {
		r.logger.Error("Failed to count links", zap.Error(err))
		return models.ServiceStats{}, err
	}
	if err := r.db.QueryRow("SELECT COUNT(*) FROM clicks").Scan(&stats.ClicksCount); err != nil {
		r.logger.Error("Failed to count clicks", zap.Error(err))
		return models.ServiceStats{}, err
	}
	return stats, nil
}

// Clear очищает все записи в таблицах links и clicks
func (r *PostgresRepository) Clear() {
	_, err := r.db.Exec("TRUNCATE TABLE clicks, links RESTART IDENTITY")
	if err != nil {
		r.logger.Error("Failed to clear database", zap.Error(err))
	}
}

// isPgError проверяет, что ошибка PostgreSQL имеет заданный код
func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
