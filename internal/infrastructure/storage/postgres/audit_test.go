package postgres

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLog_CompressesLargeChanges(t *testing.T) {
	a, err := NewAuditLog(nil)
	require.NoError(t, err)

	small := AuditEntry{Changes: json.RawMessage(`{"status":"approved"}`)}
	a.compress(&small)
	assert.Equal(t, CompressionNone, small.CompressionAlgo)
	assert.Nil(t, small.ChangesCompressed)

	payload, err := json.Marshal(map[string]string{"notes": strings.Repeat("re-counted aisle 4 ", 1000)})
	require.NoError(t, err)
	large := AuditEntry{Changes: payload}
	a.compress(&large)
	assert.Equal(t, CompressionZstd, large.CompressionAlgo)
	assert.Nil(t, large.Changes)
	assert.Less(t, len(large.ChangesCompressed), len(payload))

	require.NoError(t, a.decompress(&large))
	assert.JSONEq(t, string(payload), string(large.Changes))
	assert.Nil(t, large.ChangesCompressed)
}
