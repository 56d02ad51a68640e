package clicks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tempizhere/goslug/internal/models"
	"github.com/tempizhere/goslug/internal/repository"
	"go.uber.org/zap"
)

// blockingRepository задерживает SaveClick до закрытия release
type blockingRepository struct {
	*repository.MemoryRepository
	release chan struct{}
}

func (b *blockingRepository) SaveClick(click models.Click) (models.Click, error) {
	<-b.release
	return b.MemoryRepository.SaveClick(click)
}

// countingRepository считает попытки SaveClick и возвращает заданную ошибку
type countingRepository struct {
	*repository.MemoryRepository
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingRepository) SaveClick(click models.Click) (models.Click, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return models.Click{}, c.err
	}
	return c.MemoryRepository.SaveClick(click)
}

func (c *countingRepository) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Condition not met within %v", timeout)
}

func TestRecorder_RecordsClicks(t *testing.T) {
	repo := repository.NewMemoryRepository()
	link, err := repo.CreateLink(models.Link{UserID: "user1", Slug: "abc1234", OriginalURL: "https://example.com"})
	assert.NoError(t, err)

	recorder := NewRecorder(repo, zap.NewNop(), 16, 2)
	ctx, cancel := context.WithCancel(context.Background())
	recorder.Start(ctx)

	clickedAt := time.Now().Add(-time.Second)
	recorder.Enqueue(link.ID, "192.0.2.1", clickedAt)

	waitFor(t, time.Second, func() bool {
		clicks, err := repo.ListClicks(link.ID, 0, 10)
		return err == nil && len(clicks) == 1
	})

	clicks, err := repo.ListClicks(link.ID, 0, 10)
	assert.NoError(t, err)
	assert.Equal(t, "192.0.2.1", clicks[0].IP)
	assert.Equal(t, clickedAt, clicks[0].ClickedAt, "Click should keep the redirect timestamp, not the write time")

	cancel()
	recorder.Wait()
}

func TestRecorder_DeletedLinkIsBenign(t *testing.T) {
	repo := &countingRepository{
		MemoryRepository: repository.NewMemoryRepository(),
		err:              repository.ErrLinkNotFound,
	}
	recorder := NewRecorder(repo, zap.NewNop(), 16, 1)
	ctx, cancel := context.WithCancel(context.Background())
	recorder.Start(ctx)

	// Ссылка уже удалена: запись должна быть тихо отброшена без паники
	recorder.Enqueue(42, "192.0.2.1", time.Now())

	waitFor(t, time.Second, func() bool { return repo.callCount() == 1 })
	assert.Equal(t, int64(0), recorder.Dropped(), "Benign race is not an overflow drop")

	cancel()
	recorder.Wait()
}

func TestRecorder_StorageErrorDoesNotCrash(t *testing.T) {
	repo := &countingRepository{
		MemoryRepository: repository.NewMemoryRepository(),
		err:              errors.New("connection refused"),
	}
	recorder := NewRecorder(repo, zap.NewNop(), 16, 1)
	ctx, cancel := context.WithCancel(context.Background())
	recorder.Start(ctx)

	recorder.Enqueue(1, "192.0.2.1", time.Now())
	recorder.Enqueue(2, "192.0.2.2", time.Now())

	waitFor(t, time.Second, func() bool { return repo.callCount() == 2 })

	cancel()
	recorder.Wait()
}

func TestRecorder_OverflowDropsNewestAndCounts(t *testing.T) {
	repo := &blockingRepository{
		MemoryRepository: repository.NewMemoryRepository(),
		release:          make(chan struct{}),
	}
	link, err := repo.MemoryRepository.CreateLink(models.Link{UserID: "user1", Slug: "abc1234", OriginalURL: "https://example.com"})
	assert.NoError(t, err)

	// Очередь на 2 события, один воркер, который висит на первой записи
	recorder := NewRecorder(repo, zap.NewNop(), 2, 1)
	ctx, cancel := context.WithCancel(context.Background())
	recorder.Start(ctx)

	// Первое событие уходит воркеру, два заполняют очередь, остальные отбрасываются
	for i := 0; i < 6; i++ {
		recorder.Enqueue(link.ID, "192.0.2.1", time.Now())
	}

	waitFor(t, time.Second, func() bool { return recorder.Dropped() >= 3 })
	assert.GreaterOrEqual(t, recorder.Dropped(), int64(3), "Overflow must be counted, not silent")

	close(repo.release)
	cancel()
	recorder.Wait()

	// Принятые события должны быть дописаны при остановке
	clicks, err := repo.MemoryRepository.ListClicks(link.ID, 0, 10)
	assert.NoError(t, err)
	assert.Equal(t, 6-int(recorder.Dropped()), len(clicks), "Accepted events should be drained on shutdown")
}

func TestRecorder_EnqueueDoesNotBlock(t *testing.T) {
	repo := &blockingRepository{
		MemoryRepository: repository.NewMemoryRepository(),
		release:          make(chan struct{}),
	}
	recorder := NewRecorder(repo, zap.NewNop(), 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	recorder.Start(ctx)

	// Воркер висит, очередь заполнена - Enqueue всё равно обязан вернуться сразу
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			recorder.Enqueue(1, "192.0.2.1", time.Now())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue must not block the caller")
	}

	close(repo.release)
	cancel()
	recorder.Wait()
}
