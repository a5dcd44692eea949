package prescription

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDate_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"1990-02-28"`, "1990-02-28"},
		{`"1990-02-28T23:30:00Z"`, "1990-02-28"},
		{`"1990-02-28T23:30:00+05:00"`, "1990-02-28"},
		{`"1990-02-28T08:15:00"`, "1990-02-28"},
	}
	for _, tt := range tests {
		var d Date
		if err := json.Unmarshal([]byte(tt.in), &d); err != nil {
			t.Fatalf("%s: %v", tt.in, err)
		}
		if got := d.String(); got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.in, got, tt.want)
		}
		if d.Location() != time.UTC || d.Hour() != 0 {
			t.Errorf("%s: expected midnight UTC, got %v", tt.in, d.Time)
		}
	}
}

func TestDate_UnmarshalJSON_Empty(t *testing.T) {
	for _, in := range []string{`null`, `""`} {
		d := DateOf(time.Now())
		if err := json.Unmarshal([]byte(in), &d); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if !d.IsZero() {
			t.Errorf("%s: expected zero date, got %v", in, d)
		}
	}
}

func TestDate_UnmarshalJSON_Invalid(t *testing.T) {
	for _, in := range []string{`"28/02/1990"`, `"1990-02-30"`, `19900228`} {
		var d Date
		if err := json.Unmarshal([]byte(in), &d); err == nil {
			t.Errorf("%s: expected error", in)
		}
	}
}

func TestDate_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		B Date `json:"b"`
		Z Date `json:"z"`
	}{B: DateOf(time.Date(2001, 9, 3, 17, 0, 0, 0, time.UTC))})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"b":"2001-09-03","z":null}` {
		t.Errorf("unexpected json %s", b)
	}
}

func TestDateOf_KeepsCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	d := DateOf(time.Date(2020, 1, 1, 2, 0, 0, 0, loc))
	if d.String() != "2020-01-01" {
		t.Errorf("expected 2020-01-01, got %s", d)
	}
}

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{`"2024-05-01"`, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{`"2024-05-01T10:00:00"`, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{`"2024-05-01T10:00:00.250"`, time.Date(2024, 5, 1, 10, 0, 0, 250e6, time.UTC)},
		{`"2024-05-01T10:00:00Z"`, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{`"2024-05-01T12:00:00+02:00"`, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		var ts Timestamp
		if err := json.Unmarshal([]byte(tt.in), &ts); err != nil {
			t.Fatalf("%s: %v", tt.in, err)
		}
		if !ts.Equal(tt.want) {
			t.Errorf("%s: got %v, want %v", tt.in, ts.Time, tt.want)
		}
	}
}

func TestTimestamp_UnmarshalJSON_Invalid(t *testing.T) {
	for _, in := range []string{`"01/05/2024"`, `"2024-05-01 10:00"`, `1714557600`} {
		var ts Timestamp
		if err := json.Unmarshal([]byte(in), &ts); err == nil {
			t.Errorf("%s: expected error", in)
		}
	}
}

func TestTimestamp_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Timestamp `json:"a"`
		Z Timestamp `json:"z"`
	}{A: Timestamp{time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"a":"2024-05-01T10:00:00Z","z":null}` {
		t.Errorf("unexpected json %s", b)
	}
}

func TestCreatePrescriptionRequest_DecodesPlainDates(t *testing.T) {
	body := `{"date":"2024-05-01","dueDate":"2024-05-08T10:00:00","patient":{"birthdate":"1990-01-02"}}`
	var req CreatePrescriptionRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !req.Date.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date %v", req.Date.Time)
	}
	if !req.DueDate.Equal(time.Date(2024, 5, 8, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected due date %v", req.DueDate.Time)
	}
}
