package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base holds the connection a domain repository reads and appends through.
// A Base built from a transaction handle keeps every call inside that
// transaction.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// WithTx rebinds the base to tx. A nil tx keeps the current connection.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Dialect names the SQL dialect behind the connection, e.g. "postgres" or "sqlite".
func (b Base) Dialect() string {
	if b.db == nil || b.db.Dialector == nil {
		return ""
	}
	return b.db.Dialector.Name()
}
