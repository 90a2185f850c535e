package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// JSONDate is a calendar date that serializes as YYYY-MM-DD.
type JSONDate struct {
	time.Time
}

const isoDate = "2006-01-02"

func (d JSONDate) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(isoDate) + `"`), nil
}

func (d *JSONDate) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("date must be a string, got %s", b)
	}
	t, err := time.Parse(isoDate, string(b[1:len(b)-1]))
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Scan accepts the forms drivers return for DATE columns.
func (d *JSONDate) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		d.Time = time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into JSONDate", src)
	}
}

func (d *JSONDate) parse(s string) error {
	if len(s) >= len(isoDate) {
		s = s[:len(isoDate)]
	}
	t, err := time.Parse(isoDate, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d JSONDate) Value() (driver.Value, error) {
	return d.Format(isoDate), nil
}

// SQLDate renders t as the date string stored in observation_date.
func SQLDate(t time.Time) string {
	return t.Format(isoDate)
}
