// Package report persists orders, trade notes, and daily statistics for
// dashboard consumption. The trading core only depends on the Store
// interface; the gorm-backed implementation is wired in main.
package report

import (
	"sync"
	"time"
)

// Store is the persistence surface the trading core writes outcomes to.
type Store interface {
	// SaveOrder upserts an order row by broker order id.
	SaveOrder(rec *OrderRecord) error

	// SaveTradeNote attaches an annotation to an order.
	SaveTradeNote(orderID, note string) error

	// SaveAccountSnapshot records a point-in-time account view.
	SaveAccountSnapshot(snap *AccountSnapshot) error

	// SaveDailySettlement upserts the end-of-day P&L row for snap.Day.
	SaveDailySettlement(settle *DailySettlement) error

	// SaveSettings stores a settings snapshot and makes it the single
	// active row.
	SaveSettings(snap *SettingsSnapshot) error
}

// MemoryStore keeps everything in process memory. Used by replay, tests, and
// sessions run without a DATABASE_URL.
type MemoryStore struct {
	mu          sync.Mutex
	orders      []OrderRecord
	notes       []TradeNote
	snapshots   []AccountSnapshot
	settlements map[string]DailySettlement
	settings    []SettingsSnapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		settlements: make(map[string]DailySettlement),
	}
}

func (m *MemoryStore) SaveOrder(rec *OrderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].OrderID == rec.OrderID {
			rec.ID = m.orders[i].ID
			rec.CreatedAt = m.orders[i].CreatedAt
			rec.UpdatedAt = time.Now()
			m.orders[i] = *rec
			return nil
		}
	}
	rec.ID = uint(len(m.orders) + 1)
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	m.orders = append(m.orders, *rec)
	return nil
}

func (m *MemoryStore) SaveTradeNote(orderID, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append(m.notes, TradeNote{
		ID:        uint(len(m.notes) + 1),
		OrderID:   orderID,
		Note:      note,
		CreatedAt: time.Now(),
	})
	return nil
}

func (m *MemoryStore) SaveAccountSnapshot(snap *AccountSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.ID = uint(len(m.snapshots) + 1)
	snap.CreatedAt = time.Now()
	m.snapshots = append(m.snapshots, *snap)
	return nil
}

func (m *MemoryStore) SaveDailySettlement(settle *DailySettlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	settle.CreatedAt = time.Now()
	m.settlements[settle.Day] = *settle
	return nil
}

func (m *MemoryStore) SaveSettings(snap *SettingsSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.settings {
		m.settings[i].Active = false
	}
	snap.ID = uint(len(m.settings) + 1)
	snap.Active = true
	snap.CreatedAt = time.Now()
	m.settings = append(m.settings, *snap)
	return nil
}

// Orders returns a copy of all order rows, oldest first.
func (m *MemoryStore) Orders() []OrderRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OrderRecord(nil), m.orders...)
}

// Notes returns a copy of all trade notes.
func (m *MemoryStore) Notes() []TradeNote {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TradeNote(nil), m.notes...)
}

// Settlement returns the settlement row for a day, if present.
func (m *MemoryStore) Settlement(day string) (DailySettlement, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settlements[day]
	return s, ok
}

// ActiveSettings returns the single active settings snapshot, if any.
func (m *MemoryStore) ActiveSettings() (SettingsSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.settings {
		if s.Active {
			return s, true
		}
	}
	return SettingsSnapshot{}, false
}
