package cache

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEntrySortsAndClonesHeaders(t *testing.T) {
	header := http.Header{}
	header.Set("X-Custom-Header", "boop")
	header.Set("Content-Type", "text/plain")
	header["x-lower"] = []string{"kept"}

	entry := NewEntry(http.StatusCreated, header, []byte("boop"))
	header.Set("X-Custom-Header", "mutated")

	require.Equal(t, http.StatusCreated, entry.StatusCode)
	require.Equal(t, []HeaderField{
		{Name: "Content-Type", Values: []string{"text/plain"}},
		{Name: "X-Custom-Header", Values: []string{"boop"}},
		{Name: "x-lower", Values: []string{"kept"}},
	}, entry.Headers)

	rebuilt := entry.Header()
	require.Equal(t, []string{"kept"}, rebuilt["x-lower"])
	require.Equal(t, "boop", rebuilt.Get("X-Custom-Header"))
}

func TestNewEntryDefaultsStatus(t *testing.T) {
	entry := NewEntry(0, nil, nil)
	require.Equal(t, http.StatusOK, entry.StatusCode)
	require.Empty(t, entry.Headers)
}

func TestEntryEncodeDecodePreservesBinaryContent(t *testing.T) {
	content := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff, '\n'}
	entry := NewEntry(http.StatusOK, http.Header{"Content-Type": {"image/png"}}, content)

	payload, err := entry.Encode()
	require.NoError(t, err)
	require.NotContains(t, string(payload), "\x00")

	decoded, err := DecodeEntry(payload)
	require.NoError(t, err)
	require.Equal(t, entry, decoded)
}

func TestDecodeEntryRejectsGarbage(t *testing.T) {
	_, err := DecodeEntry([]byte("REFRESHING"))
	require.Error(t, err)

	_, err = DecodeEntry([]byte(`{"content":""}`))
	require.Error(t, err)
}

func TestStaleKey(t *testing.T) {
	require.Equal(t, "/long.stale", StaleKey("/long"))
}
