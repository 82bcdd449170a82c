package workitem

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// TimestampLayout is the "DD/MM/YY HH:MM:SS" layout used in error records and
// status entries.
const TimestampLayout = "02/01/06 15:04:05"

// Stamp formats t with TimestampLayout.
func Stamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ErrorRecord is pushed to a stage's error queue when an item is rejected or
// fails processing.
//
// Data carries the claimed payload byte for byte when it is valid JSON other
// than a bare string, so
// Item returns exactly what the producer pushed (minus surrounding
// whitespace). Other payloads are stored as a JSON string; when they are not
// valid UTF-8 the string is lossy and RawBase64 holds the original bytes.
type ErrorRecord struct {
	Error     string          `json:"error"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	RawBase64 string          `json:"raw_base64,omitempty"`
}

// NewErrorRecord builds a record for raw.
func NewErrorRecord(reason, raw string, now time.Time) ErrorRecord {
	rec := ErrorRecord{Error: reason, Timestamp: Stamp(now)}
	// A JSON string payload is quoted again so Item can tell it from text.
	if trimmed := strings.TrimSpace(raw); trimmed != "" && trimmed[0] != '"' && json.Valid([]byte(trimmed)) {
		rec.Data = json.RawMessage(trimmed)
		return rec
	}
	if !utf8.ValidString(raw) {
		rec.RawBase64 = base64.StdEncoding.EncodeToString([]byte(raw))
	}
	rec.Data = json.RawMessage(quote(raw))
	return rec
}

// Encode serializes the record for the error queue. The envelope is written
// by hand because json.Marshal would compact and HTML-escape Data.
func (r ErrorRecord) Encode() (string, error) {
	data := bytes.TrimSpace(r.Data)
	if len(data) == 0 {
		data = []byte("null")
	}
	if !json.Valid(data) {
		return "", fmt.Errorf("encode error record: data is not valid JSON")
	}
	var buf strings.Builder
	buf.WriteString(`{"error":`)
	buf.WriteString(quote(r.Error))
	buf.WriteString(`,"timestamp":`)
	buf.WriteString(quote(r.Timestamp))
	buf.WriteString(`,"data":`)
	buf.Write(data)
	if r.RawBase64 != "" {
		buf.WriteString(`,"raw_base64":`)
		buf.WriteString(quote(r.RawBase64))
	}
	buf.WriteByte('}')
	return buf.String(), nil
}

// quote renders s as a JSON string without HTML escaping.
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

// ParseErrorRecord decodes an error-queue entry.
func ParseErrorRecord(raw string) (ErrorRecord, error) {
	var rec ErrorRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return ErrorRecord{}, fmt.Errorf("parse error record: %w", err)
	}
	return rec, nil
}

// Item returns the original payload text: the exact JSON of a decodable item,
// or the raw string of an undecodable one.
func (r ErrorRecord) Item() string {
	if r.RawBase64 != "" {
		if raw, err := base64.StdEncoding.DecodeString(r.RawBase64); err == nil {
			return string(raw)
		}
	}
	if len(r.Data) == 0 {
		return ""
	}
	var s string
	if r.Data[0] == '"' && json.Unmarshal(r.Data, &s) == nil {
		return s
	}
	return string(r.Data)
}

// When parses the record timestamp in the local zone.
func (r ErrorRecord) When() (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, r.Timestamp, time.Local)
}
