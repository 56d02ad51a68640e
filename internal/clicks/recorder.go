// Package clicks содержит асинхронный рекордер переходов: ограниченная
// очередь и пул воркеров, снимающие запись в хранилище с пути редиректа.
package clicks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tempizhere/goslug/internal/models"
	"github.com/tempizhere/goslug/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultQueueSize = 1024
	defaultWorkers   = 2
)

// Recorder принимает события переходов без блокировки вызывающей стороны
// и записывает их в хранилище фоновым пулом воркеров
type Recorder struct {
	repo    repository.Repository
	logger  *zap.Logger
	events  chan models.ClickEvent
	workers int
	dropped atomic.Int64
	wg      sync.WaitGroup
}

// NewRecorder создаёт новый экземпляр Recorder.
// Значения queueSize и workers меньше единицы заменяются настройками по умолчанию
func NewRecorder(repo repository.Repository, logger *zap.Logger, queueSize, workers int) *Recorder {
	if queueSize < 1 {
		queueSize = defaultQueueSize
	}
	if workers < 1 {
		workers = defaultWorkers
	}
	return &Recorder{
		repo:    repo,
		logger:  logger,
		events:  make(chan models.ClickEvent, queueSize),
		workers: workers,
	}
}

// Start запускает пул воркеров. Воркеры работают до отмены контекста,
// после чего дописывают уже принятые события и завершаются
func (r *Recorder) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
}

// Wait блокируется до завершения всех воркеров
func (r *Recorder) Wait() {
	r.wg.Wait()
}

// Enqueue ставит событие перехода в очередь и возвращается немедленно.
// При заполненной очереди событие отбрасывается с инкрементом счётчика:
// потеря кликов под перегрузкой наблюдаема, но редирект не ждёт
func (r *Recorder) Enqueue(linkID int64, ip string, clickedAt time.Time) {
	event := models.ClickEvent{LinkID: linkID, IP: ip, ClickedAt: clickedAt}
	select {
	case r.events <- event:
	default:
		r.dropped.Add(1)
		r.logger.Warn("Click queue full, dropping event", zap.Int64("link_id", linkID))
	}
}

// Dropped возвращает число отброшенных из-за переполнения событий
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// worker читает события из очереди и записывает их в хранилище
func (r *Recorder) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case event := <-r.events:
			r.record(event)
		case <-ctx.Done():
			// Дописываем события, принятые до остановки:
			// отключение клиента не отменяет уже поставленный в очередь переход
			for {
				select {
				case event := <-r.events:
					r.record(event)
				default:
					return
				}
			}
		}
	}
}

// record выполняет одну запись перехода.
// Удалённая между редиректом и записью ссылка - ожидаемая гонка:
// событие отбрасывается с логированием, ответ посетителю уже отправлен
func (r *Recorder) record(event models.ClickEvent) {
	_, err := r.repo.SaveClick(models.Click{
		LinkID:    event.LinkID,
		IP:        event.IP,
		ClickedAt: event.ClickedAt,
	})
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			r.logger.Info("Discarding click for deleted link", zap.Int64("link_id", event.LinkID))
			return
		}
		r.logger.Error("Failed to record click", zap.Int64("link_id", event.LinkID), zap.Error(err))
	}
}
