package protocol

import (
	"bytes"
	"encoding/json"
)

// Timestamp is a charger-supplied time kept exactly as sent. Chargers disagree on
// zone suffixes and precision, so it is never parsed; any JSON value decodes.
type Timestamp string

// UnmarshalJSON accepts strings verbatim and keeps the raw text of anything else.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Timestamp(s)
		return nil
	}
	*t = Timestamp(data)
	return nil
}

func (t Timestamp) String() string { return string(t) }
