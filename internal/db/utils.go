package db

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// DateLayout is the storage layout of calendar dates.
const DateLayout = "2006-01-02"

// TimeFromPg converts a pgtype.Timestamptz to time.Time.
func TimeFromPg(value pgtype.Timestamptz) time.Time {
	if value.Valid {
		return value.Time
	}
	return time.Time{}
}

// DateToString formats a pgtype.Date as YYYY-MM-DD, or "" when NULL.
func DateToString(value pgtype.Date) string {
	if !value.Valid {
		return ""
	}
	return value.Time.Format(DateLayout)
}

// DateFromString parses YYYY-MM-DD into a pgtype.Date; "" yields NULL.
func DateFromString(value string) (pgtype.Date, error) {
	if value == "" {
		return pgtype.Date{}, nil
	}
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return pgtype.Date{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return pgtype.Date{Time: parsed, Valid: true}, nil
}
