package crdt

import "sync"

// LamportClock представляет логические часы Лампорта одного пира.
// Каждый документ владеет своими часами, глобальных счетчиков нет.
type LamportClock struct {
	counter uint64     // монотонно возрастающий счетчик
	mu      sync.Mutex // мьютекс для потокобезопасности
}

// NewLamportClock создает часы с нулевым счетчиком.
func NewLamportClock() *LamportClock {
	return &LamportClock{}
}

// Tick увеличивает счетчик и возвращает новое значение.
// Используется при создании нового локального события.
func (lc *LamportClock) Tick() uint64 {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	lc.counter++
	return lc.counter
}

// Advance подтягивает счетчик до значения, увиденного у другого узла:
// counter = max(counter, seen). Счетчик никогда не уменьшается.
func (lc *LamportClock) Advance(seen uint64) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if seen > lc.counter {
		lc.counter = seen
	}
}

// Timestamp возвращает текущее значение счетчика без его изменения.
func (lc *LamportClock) Timestamp() uint64 {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	return lc.counter
}

// SetTimestamp устанавливает счетчик в заданное значение.
// Используется для восстановления состояния часов после перезапуска.
func (lc *LamportClock) SetTimestamp(timestamp uint64) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	lc.counter = timestamp
}
