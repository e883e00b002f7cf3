package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// localLayout is the zoneless ISO-8601 form the upstream service emits for
// most of its timestamps. Such values are read as UTC.
const localLayout = "2006-01-02T15:04:05.999999999"

// Timestamp decodes upstream time values with or without a zone offset.
type Timestamp struct {
	time.Time
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		ts.Time = t
		return nil
	}
	t, err := time.ParseInLocation(localLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	ts.Time = t
	return nil
}

// Ptr returns the wrapped time, or nil for a nil Timestamp.
func (ts *Timestamp) Ptr() *time.Time {
	if ts == nil {
		return nil
	}
	t := ts.Time
	return &t
}
