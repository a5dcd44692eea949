package prescription

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date without time of day. It decodes either
// "2006-01-02" or a full RFC 3339 timestamp, keeping only the date part as
// written, and always encodes as "2006-01-02".
type Date struct {
	time.Time
}

// DateOf truncates t to its calendar date in t's own location and returns it
// at midnight UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}

	for _, layout := range []string{dateLayout, time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			*d = DateOf(t)
			return nil
		}
	}
	return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// timestampLayouts are tried in order. Values without an offset are read as
// UTC, and a bare date means midnight UTC.
var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", dateLayout}

// Timestamp is an instant that also decodes zoneless and date-only values.
// It encodes as RFC 3339.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}

	for _, layout := range timestampLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			*t = Timestamp{v}
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q, expected RFC 3339, YYYY-MM-DDTHH:MM:SS or YYYY-MM-DD", s)
}
