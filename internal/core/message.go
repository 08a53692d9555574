package core

import "time"

const (
	// TimestampLayout is the storage key format: local time, microsecond
	// precision, no zone. Keys are fixed width so they sort chronologically.
	TimestampLayout = "2006-01-02T15:04:05.000000"
	// keyParseLayout also accepts keys written without fractional seconds.
	keyParseLayout = "2006-01-02T15:04:05"
	// DisplayLayout renders a key for the listing page, e.g. "March 07, 2024, 09:05 PM".
	DisplayLayout = "January 02, 2006, 03:04 PM"
)

// Record is a single guestbook submission as persisted.
type Record struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// Document is the storage document: records keyed by submission timestamp.
type Document map[string]Record

// Entry is a record prepared for display on the listing page.
type Entry struct {
	Date      string
	Timestamp string
	Username  string
	Message   string
}

// NewRecord validates form input. Both fields must be non-empty; no other
// normalization is applied.
func NewRecord(username, message string) (Record, error) {
	if username == "" || message == "" {
		return Record{}, ErrMissingFields
	}
	return Record{Username: username, Message: message}, nil
}

// Timestamp formats t as a storage key.
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// NextKey returns the storage key for t, moving forward one microsecond at a
// time while taken reports the key as already used.
func NextKey(t time.Time, taken func(key string) bool) string {
	key := Timestamp(t)
	for taken(key) {
		t = t.Add(time.Microsecond)
		key = Timestamp(t)
	}
	return key
}

// ParseTimestamp parses a storage key. Keys written without fractional
// seconds or with a zone offset are accepted as well.
func ParseTimestamp(key string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, key); err == nil {
		return t, nil
	}
	return time.ParseInLocation(keyParseLayout, key, time.Local)
}

// DisplayDate reformats a storage key for humans. Unparseable keys are returned as-is.
func DisplayDate(key string) string {
	t, err := ParseTimestamp(key)
	if err != nil {
		return key
	}
	return t.Format(DisplayLayout)
}
