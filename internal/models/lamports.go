package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Lamports is an unsigned 64-bit amount of base units. It is written to the
// database as a decimal string because database/sql rejects uint64 values
// with the high bit set, and SQLite stores it in a TEXT column so values
// above the int64 range are not rounded to REAL.
type Lamports uint64

// Uint64 returns the amount as a plain integer.
func (l Lamports) Uint64() uint64 {
	return uint64(l)
}

func (l Lamports) String() string {
	return strconv.FormatUint(uint64(l), 10)
}

// Value implements driver.Valuer.
func (l Lamports) Value() (driver.Value, error) {
	return l.String(), nil
}

// Scan implements sql.Scanner.
func (l *Lamports) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = 0
		return nil
	case int64:
		if v < 0 {
			return fmt.Errorf("negative amount %d", v)
		}
		*l = Lamports(v)
		return nil
	case []byte:
		return l.parse(string(v))
	case string:
		return l.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into Lamports", src)
	}
}

func (l *Lamports) parse(s string) error {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	*l = Lamports(n)
	return nil
}

// GormDBDataType picks a column type that holds the full uint64 range.
func (Lamports) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "sqlite" {
		return "text"
	}
	return "numeric(20,0)"
}
