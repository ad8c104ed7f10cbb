package report

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// GormStore persists reporting rows through gorm.
type GormStore struct {
	db *gorm.DB
}

// Connect opens a postgres connection, migrates the reporting schema, and
// returns a store.
func Connect(databaseURL string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return NewGormStore(db)
}

// NewGormStore wraps an existing gorm handle (tests use sqlite here).
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	err := db.AutoMigrate(
		&OrderRecord{},
		&TradeNote{},
		&AccountSnapshot{},
		&DailySettlement{},
		&SettingsSnapshot{},
	)
	if err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// SaveOrder upserts by broker order id.
func (s *GormStore) SaveOrder(rec *OrderRecord) error {
	var existing OrderRecord
	err := s.db.Where("order_id = ?", rec.OrderID).First(&existing).Error
	if err == nil {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		return s.db.Save(rec).Error
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return s.db.Create(rec).Error
}

func (s *GormStore) SaveTradeNote(orderID, note string) error {
	return s.db.Create(&TradeNote{OrderID: orderID, Note: note}).Error
}

func (s *GormStore) SaveAccountSnapshot(snap *AccountSnapshot) error {
	return s.db.Create(snap).Error
}

// SaveDailySettlement upserts the row for settle.Day.
func (s *GormStore) SaveDailySettlement(settle *DailySettlement) error {
	var existing DailySettlement
	err := s.db.Where("day = ?", settle.Day).First(&existing).Error
	if err == nil {
		settle.ID = existing.ID
		settle.CreatedAt = existing.CreatedAt
		return s.db.Save(settle).Error
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return s.db.Create(settle).Error
}

// SaveSettings deactivates any previous snapshot and stores the new one as
// the single active row.
func (s *GormStore) SaveSettings(snap *SettingsSnapshot) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&SettingsSnapshot{}).Where("active = ?", true).
			Update("active", false).Error; err != nil {
			return err
		}
		snap.Active = true
		return tx.Create(snap).Error
	})
}

// Orders returns all order rows, oldest first. Used by tests and the scan
// command's summary output.
func (s *GormStore) Orders() ([]OrderRecord, error) {
	var orders []OrderRecord
	err := s.db.Order("id asc").Find(&orders).Error
	return orders, err
}

// ActiveSettings returns the single active settings snapshot.
func (s *GormStore) ActiveSettings() (*SettingsSnapshot, error) {
	var snap SettingsSnapshot
	err := s.db.Where("active = ?", true).First(&snap).Error
	if err != nil {
		return nil, err
	}
	return &snap, nil
}
