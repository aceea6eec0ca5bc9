// Package pgtypes holds Go representations of PostgreSQL types that the
// generated query code binds as parameters or scans from result rows.
package pgtypes

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const (
	microsPerDay   = int64(24 * time.Hour / time.Microsecond)
	microsPerMonth = 30 * microsPerDay
)

// Interval maps a PostgreSQL INTERVAL onto a time.Duration. Lock TTLs are
// bound through it so that expiry is computed by the database clock.
type Interval struct {
	Duration time.Duration
	// Valid is false for NULL
	Valid bool
}

// NewInterval wraps d as a non-NULL interval.
func NewInterval(d time.Duration) Interval {
	return Interval{Duration: d, Valid: true}
}

// Scan implements sql.Scanner.
func (i *Interval) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Interval{}
		return nil
	case pgtype.Interval:
		i.Duration = fromPG(v)
		i.Valid = v.Valid
		return nil
	case string:
		var pg pgtype.Interval
		if err := pg.Scan(v); err != nil {
			return fmt.Errorf("failed to parse interval %q: %w", v, err)
		}
		return i.Scan(pg)
	case []byte:
		return i.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Interval", src)
	}
}

// Value implements driver.Valuer. Sub-microsecond precision is dropped.
func (i Interval) Value() (driver.Value, error) {
	if !i.Valid {
		return nil, nil
	}
	return pgtype.Interval{Microseconds: i.Duration.Microseconds(), Valid: true}, nil
}

func (i Interval) String() string {
	if !i.Valid {
		return "NULL"
	}
	return i.Duration.String()
}

// fromPG flattens days and months using fixed 24h days and 30 day months.
func fromPG(v pgtype.Interval) time.Duration {
	micros := v.Microseconds + int64(v.Days)*microsPerDay + int64(v.Months)*microsPerMonth
	return time.Duration(micros) * time.Microsecond
}
