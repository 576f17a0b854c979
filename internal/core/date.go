package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Date is a calendar date without a time component. It marshals as
// "YYYY-MM-DD" on the wire and in snapshots.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// dateLayouts are the formats accepted when normalizing external input.
// ISO first, then the formats spreadsheet tools commonly emit.
var dateLayouts = []string{
	dateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"01-02-06",
	"1/2/06 15:04",
	"2-Jan-06",
}

var ErrUnparseableDate = errors.New("unparseable date")

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current date, truncated to midnight UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate parses a date string against the accepted layouts.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrUnparseableDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	return Date{}, ErrUnparseableDate
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// YearKey returns the yearly bucket key (YYYY).
func (d Date) YearKey() string {
	return d.Format("2006")
}

// MonthKey returns the monthly bucket key (YYYY-MM).
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
