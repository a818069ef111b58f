package parserstate

import (
	"github.com/jinzhu/gorm"
	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

// GormStore is the DurableStore implementation backed by jinzhu/gorm and
// go-sql-driver/mysql, generalized from storage/database/db_manager.go's
// DBManager to the parser_state table of spec.md §6.
type GormStore struct {
	db *gorm.DB
}

// OpenGormStore dials MySQL via the given DSN and migrates the
// parser_state table, mirroring node/service.go's OpenDatabase dispatch.
func OpenGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open parser state database")
	}
	if err := db.AutoMigrate(&Row{}).Error; err != nil {
		return nil, errors.Wrap(err, "migrate parser_state table")
	}
	return &GormStore{db: db}, nil
}

// NewGormStore wraps an already-open *gorm.DB, primarily for tests with
// an in-memory sqlite-style backend.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Get reads the row for chain, returning ErrNotFound when absent.
func (s *GormStore) Get(chain string) (Row, error) {
	var row Row
	err := s.db.Where("chain = ?", chain).First(&row).Error
	if gorm.IsRecordNotFoundError(err) {
		return Row{}, ErrNotFound
	}
	if err != nil {
		return Row{}, errors.Wrapf(err, "read parser_state for chain %q", chain)
	}
	return row, nil
}

// Upsert is idempotent, per spec.md §4.8's persist_state contract.
func (s *GormStore) Upsert(row Row) error {
	result := s.db.Save(&row)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "persist parser_state for chain %q", row.Chain)
	}
	return nil
}

// ListChains returns every chain with an existing parser_state row, the
// daemon-wide fallback named in spec.md §6 when no chain selector flag
// is given.
func (s *GormStore) ListChains() ([]string, error) {
	var rows []Row
	if err := s.db.Select("chain").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list parser_state chains")
	}
	chains := make([]string, len(rows))
	for i, row := range rows {
		chains[i] = row.Chain
	}
	return chains, nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	return s.db.Close()
}
