package cache

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
)

// StaleSuffix is appended to a cache key to form its stale marker key.
const StaleSuffix = ".stale"

// StaleKey derives the stale marker key for key.
func StaleKey(key string) string {
	return key + StaleSuffix
}

// Marker is the value held by a stale marker key.
type Marker string

const (
	// MarkerCreated is written alongside a fresh entry and lives for the nominal TTL.
	MarkerCreated Marker = "CREATED"
	// MarkerRefreshing claims regeneration for the length of the generation window.
	MarkerRefreshing Marker = "REFRESHING"
)

// HeaderField is one response header with every value it carried.
type HeaderField struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Entry is a stored response. Content is base64 encoded by encoding/json so the
// payload is safe for textual stores.
type Entry struct {
	StatusCode int           `json:"statusCode"`
	Headers    []HeaderField `json:"headers,omitempty"`
	Content    []byte        `json:"content"`
}

// NewEntry snapshots a response. Header names keep the case they were set with
// and are ordered by name.
func NewEntry(status int, header http.Header, content []byte) Entry {
	if status == 0 {
		status = http.StatusOK
	}
	names := make([]string, 0, len(header))
	for name := range header {
		names = append(names, name)
	}
	sort.Strings(names)

	entry := Entry{StatusCode: status}
	if len(names) > 0 {
		entry.Headers = make([]HeaderField, 0, len(names))
	}
	for _, name := range names {
		values := append([]string(nil), header[name]...)
		entry.Headers = append(entry.Headers, HeaderField{Name: name, Values: values})
	}
	entry.Content = append([]byte(nil), content...)
	return entry
}

// Header rebuilds the stored headers without canonicalising their names.
func (e Entry) Header() http.Header {
	h := make(http.Header, len(e.Headers))
	for _, field := range e.Headers {
		h[field.Name] = append([]string(nil), field.Values...)
	}
	return h
}

// Encode serialises the entry for a Store.
func (e Entry) Encode() ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("cache: encode entry: %w", err)
	}
	return payload, nil
}

// DecodeEntry parses a payload produced by Encode.
func DecodeEntry(payload []byte) (Entry, error) {
	var entry Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return Entry{}, fmt.Errorf("cache: decode entry: %w", err)
	}
	if entry.StatusCode == 0 {
		return Entry{}, fmt.Errorf("cache: decode entry: missing status code")
	}
	return entry, nil
}
