// Package ratelimit содержит процессный лимитер запросов с двумя
// независимыми окнами на класс операции: коротким для всплесков и длинным
// для устойчивой нагрузки. Состояние живёт в памяти процесса и теряется
// при рестарте без влияния на корректность.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Классы операций с независимыми лимитами и стратегиями ключей
const (
	// ClassRedirect - редиректы, ключуются по IP клиента
	ClassRedirect = "redirect"
	// ClassShorten - сокращение и статистика, ключуются по идентификатору пользователя
	ClassShorten = "shorten"
)

// Limits задаёт пару окон для класса операции: оба должны пропустить запрос
type Limits struct {
	Burst           int
	BurstWindow     time.Duration
	Sustained       int
	SustainedWindow time.Duration
}

// window представляет фиксированное окно: счётчик и время его начала
type window struct {
	count int
	start time.Time
}

// allow проверяет и учитывает запрос в окне размера size с лимитом limit
func (w *window) allow(now time.Time, limit int, size time.Duration) bool {
	if now.Sub(w.start) >= size {
		w.start = now
		w.count = 0
	}
	if w.count >= limit {
		return false
	}
	w.count++
	return true
}

// entry хранит оба окна одного ключа
type entry struct {
	burst     window
	sustained window
	lastSeen  time.Time
}

// Limiter реализует лимитер с фиксированными окнами на пару (класс, ключ)
type Limiter struct {
	mu      sync.Mutex
	limits  map[string]Limits
	entries map[string]*entry
}

// NewLimiter создаёт новый экземпляр Limiter без настроенных классов
func NewLimiter() *Limiter {
	return &Limiter{
		limits:  make(map[string]Limits),
		entries: make(map[string]*entry),
	}
}

// SetLimits настраивает окна для класса операции
func (l *Limiter) SetLimits(class string, limits Limits) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits[class] = limits
}

// Allow проверяет, укладывается ли запрос с данным ключом в оба окна класса.
// Ненастроенный класс не ограничивается. Проверка не обращается к хранилищу:
// отказ обходится только взятием мьютекса и сравнением счётчиков
func (l *Limiter) Allow(key, class string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limits, ok := l.limits[class]
	if !ok {
		return true
	}

	id := class + ":" + key
	e, ok := l.entries[id]
	if !ok {
		e = &entry{}
		l.entries[id] = e
	}

	now := time.Now()
	e.lastSeen = now

	// Сначала проверяются оба окна, затем учёт: отклонённый по одному окну
	// запрос не должен съедать квоту другого
	burstOK := e.burst.count < limits.Burst || now.Sub(e.burst.start) >= limits.BurstWindow
	sustainedOK := e.sustained.count < limits.Sustained || now.Sub(e.sustained.start) >= limits.SustainedWindow
	if !burstOK || !sustainedOK {
		return false
	}

	e.burst.allow(now, limits.Burst, limits.BurstWindow)
	e.sustained.allow(now, limits.Sustained, limits.SustainedWindow)
	return true
}

// StartCleanup запускает фоновую очистку давно не встречавшихся ключей,
// чтобы карта не росла неограниченно под сканерами
func (l *Limiter) StartCleanup(ctx context.Context, interval, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.cleanup(maxIdle)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// cleanup удаляет ключи, не встречавшиеся дольше maxIdle
func (l *Limiter) cleanup(maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	for id, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, id)
		}
	}
}

// Len возвращает число отслеживаемых ключей (для тестов и мониторинга)
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
