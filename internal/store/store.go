// Package store runs the compounding operations that touch the relational
// store. Every mutation executes inside a single gorm transaction, so a
// returned error means nothing was written.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"compounder/internal/compounding"
	"compounder/models"
)

// Store wraps the shared database handle.
type Store struct {
	db           *gorm.DB
	now          func() time.Time
	newReference func() string
}

// New builds a Store over db.
func New(db *gorm.DB) *Store {
	return &Store{
		db:           db,
		now:          func() time.Time { return time.Now().UTC() },
		newReference: uuid.NewString,
	}
}

// DB exposes the underlying handle for read-only listings.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return compounding.Storage("store", gorm.ErrInvalidDB)
	}
	return nil
}

// transaction runs fn in one transaction and normalises the error it returns.
func (s *Store) transaction(ctx context.Context, op string, fn func(tx *gorm.DB) error, opts ...*sql.TxOptions) error {
	if err := s.ready(); err != nil {
		return err
	}
	return compounding.Storage(op, s.db.WithContext(ctx).Transaction(fn, opts...))
}

// readOptions asks postgres for a single consistent snapshot. SQLite
// transactions are already serialised, so it gets the driver defaults.
func (s *Store) readOptions() []*sql.TxOptions {
	if s.db.Dialector != nil && s.db.Dialector.Name() == "postgres" {
		return []*sql.TxOptions{{Isolation: sql.LevelRepeatableRead, ReadOnly: true}}
	}
	return nil
}

func loadUnits(tx *gorm.DB) (map[string]models.Unit, error) {
	var units []models.Unit
	if err := tx.Find(&units).Error; err != nil {
		return nil, compounding.Storage("load units", err)
	}
	return models.UnitsByCode(units), nil
}

func notFound(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &compounding.NotFoundError{Resource: resource, ID: id}
	}
	return compounding.Storage("load "+resource, err)
}
