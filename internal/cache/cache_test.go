// internal/cache/cache_test.go
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostKey(t *testing.T) {
	assert.Equal(t, "192.168.1.5",
		DeviceKey{Host: "192.168.1.5", Port: 502}.HostKey(),
		"default port uses the bare host")
	assert.Equal(t, "192.168.1.5:1502",
		DeviceKey{Host: "192.168.1.5", Port: 1502}.HostKey())
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	fs, err := NewFileStore(path)
	require.NoError(t, err)

	key := DeviceKey{Host: "192.168.1.5", Port: 502, UnitID: 126}
	fs.Put(key, 103, BlockInfo{
		Start:             40002,
		Length:            50,
		ImplementedFields: []string{"A", "W"},
		Info:              map[string]string{"Mn": "Fronius"},
	})
	require.NoError(t, fs.Persist())

	// Reload from disk.
	fs2, err := NewFileStore(path)
	require.NoError(t, err)

	info, ok := fs2.Get(key, 103)
	require.True(t, ok)
	assert.Equal(t, uint16(40002), info.Start)
	assert.Equal(t, uint16(50), info.Length)
	assert.Equal(t, []string{"A", "W"}, info.ImplementedFields)
	assert.Equal(t, "Fronius", info.Info["Mn"])

	_, ok = fs2.Get(key, 999)
	assert.False(t, ok)
	_, ok = fs2.Get(DeviceKey{Host: "10.0.0.9", Port: 502, UnitID: 1}, 103)
	assert.False(t, ok)
}

func TestFileStore_PersistedShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	fs, err := NewFileStore(path)
	require.NoError(t, err)
	fs.Put(DeviceKey{Host: "10.1.1.2", Port: 502, UnitID: 1}, 1, BlockInfo{Start: 40002, Length: 66})
	require.NoError(t, fs.Persist())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]map[string]map[string]BlockInfo
	require.NoError(t, json.Unmarshal(raw, &doc))

	blk, ok := doc["10.1.1.2"]["1"]["1"]
	require.True(t, ok, "keys are hostKey -> unitID -> blockID")
	assert.Equal(t, uint16(40002), blk.Start)
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	_, ok := fs.Get(DeviceKey{Host: "h", Port: 502}, 1)
	assert.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory()
	key := DeviceKey{Host: "h", Port: 502, UnitID: 3}

	_, ok := m.Get(key, 103)
	assert.False(t, ok)

	m.Put(key, 103, BlockInfo{Start: 40070, Length: 50})
	info, ok := m.Get(key, 103)
	require.True(t, ok)
	assert.Equal(t, uint16(40070), info.Start)
	assert.NoError(t, m.Persist())
}
