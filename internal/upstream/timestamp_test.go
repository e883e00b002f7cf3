package upstream

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	kst := time.FixedZone("KST", 9*60*60)
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"zoneless", `"2025-12-09T10:00:00"`, time.Date(2025, 12, 9, 10, 0, 0, 0, time.UTC)},
		{"zoneless fraction", `"2025-12-09T10:00:00.123456"`, time.Date(2025, 12, 9, 10, 0, 0, 123456000, time.UTC)},
		{"utc", `"2025-12-09T10:00:00Z"`, time.Date(2025, 12, 9, 10, 0, 0, 0, time.UTC)},
		{"offset", `"2025-12-09T19:00:00+09:00"`, time.Date(2025, 12, 9, 19, 0, 0, 0, kst)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			if err := json.Unmarshal([]byte(tt.in), &ts); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !ts.Equal(tt.want) {
				t.Errorf("got %v, want %v", ts.Time, tt.want)
			}
		})
	}
}

func TestTimestamp_UnmarshalJSON_Invalid(t *testing.T) {
	for _, in := range []string{`"yesterday"`, `"2025-12-09"`, `1733738400`} {
		var ts Timestamp
		if err := json.Unmarshal([]byte(in), &ts); err == nil {
			t.Errorf("expected error for %s, got %v", in, ts.Time)
		}
	}
}

func TestTimestamp_NullAndPtr(t *testing.T) {
	var body struct {
		At *Timestamp `json:"at"`
	}
	if err := json.Unmarshal([]byte(`{"at":null}`), &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.At.Ptr() != nil {
		t.Errorf("expected nil time for null, got %v", body.At.Ptr())
	}

	if err := json.Unmarshal([]byte(`{"at":"2025-12-09T10:00:00"}`), &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := body.At.Ptr()
	if got == nil || got.Location() != time.UTC || got.Hour() != 10 {
		t.Errorf("unexpected time: %v", got)
	}
}
