package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/johnayoung/go-crypto-datautil/internal/models"
)

// MemoryStore is a PartitionStore held in a map. It is safe for concurrent
// use and copies candles on the way in and out.
type MemoryStore struct {
	mu    sync.RWMutex
	parts map[string][]models.Candle
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{parts: make(map[string][]models.Candle)}
}

func (m *MemoryStore) Dir() string { return ":memory:" }

func (m *MemoryStore) Exists(day time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.parts[DayName(day)]
	return ok, nil
}

func (m *MemoryStore) Write(day time.Time, candles []models.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parts[DayName(day)] = append([]models.Candle{}, candles...)
	return nil
}

func (m *MemoryStore) Read(day time.Time) ([]models.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, ok := m.parts[DayName(day)]
	if !ok {
		return nil, missingPartition(day)
	}
	return append([]models.Candle{}, rows...), nil
}

func (m *MemoryStore) Days() ([]time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	days := make([]time.Time, 0, len(m.parts))
	for name := range m.parts {
		day, err := time.Parse("20060102", name)
		if err != nil {
			continue
		}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

// Len is the number of partitions held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.parts)
}
