package crdt

import (
	"sync/atomic"
	"time"
)

// Результаты сравнения
const (
	Lower   = -1
	Equal   = 0
	Greater = 1
)

// Clock выдаёт строго возрастающие метки времени в наносекундах (UnixNano).
// Если физическое время не продвинулось, метка увеличивается на единицу,
// как логическая часть HLC.
type Clock struct {
	last   atomic.Int64
	offset atomic.Int64 // смещение в наносекундах (для тестов/симуляции)
}

// NewClock создаёт генератор меток.
func NewClock() *Clock {
	return &Clock{}
}

// WithOffset задаёт смещение системного времени (для симуляций / тестов).
func (c *Clock) WithOffset(offset time.Duration) *Clock {
	c.offset.Store(int64(offset))
	return c
}

func (c *Clock) nowNano() int64 {
	off := time.Duration(c.offset.Load())
	return time.Now().Add(off).UnixNano()
}

// Now генерирует локальную метку без блокировок (CAS-цикл).
func (c *Clock) Now() int64 {
	return c.After(0)
}

// After возвращает локальную метку, строго большую floor и всех ранее
// выданных меток. Это правило получения удалённой метки в HLC.
func (c *Clock) After(floor int64) int64 {
	for {
		now := c.nowNano()
		last := c.last.Load()

		next := now
		if next <= last {
			next = last + 1
		}
		if next <= floor {
			next = floor + 1
		}

		if c.last.CompareAndSwap(last, next) {
			return next
		}
		// кто-то другой изменил состояние — повторяем
	}
}

// wallClock is the process clock used by timestamped mutators.
var wallClock = NewClock()

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return Lower
	case a > b:
		return Greater
	}
	return Equal
}
