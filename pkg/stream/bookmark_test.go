package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBookmarkStore(t *testing.T) {
	s := NewMemoryBookmarkStore()

	_, ok := s.Get("order_hdr")
	assert.False(t, ok)

	ts := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	s.Set("order_hdr", ts)

	got, ok := s.Get("order_hdr")
	require.True(t, ok)
	assert.Equal(t, ts, got)
}

func TestBookmarkExportImportRoundTrip(t *testing.T) {
	s := NewMemoryBookmarkStore()
	s.Set("order_hdr", time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	s.Set("item", time.Date(2026, 1, 15, 8, 30, 0, 0, time.UTC))

	data, err := s.Export()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"replication_key_value":"2026-02-01T12:00:00Z"`)

	restored := NewMemoryBookmarkStore()
	require.NoError(t, restored.Import(data))

	got, ok := restored.Get("order_hdr")
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)))

	got, ok = restored.Get("item")
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2026, 1, 15, 8, 30, 0, 0, time.UTC)))
}

func TestBookmarkImportMalformed(t *testing.T) {
	s := NewMemoryBookmarkStore()
	assert.Error(t, s.Import([]byte(`{not json`)))
	assert.Error(t, s.Import([]byte(`{"order_hdr": {"replication_key_value": "not-a-time"}}`)))
}
