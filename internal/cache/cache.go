// internal/cache/cache.go
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
)

// DefaultPort keeps persisted keys short: devices on 502 are stored
// under the bare host.
const DefaultPort = 502

// DeviceKey identifies one addressed sub-device.
type DeviceKey struct {
	Host   string
	Port   int
	UnitID uint8
}

// HostKey renders the persisted host key: "host:port", or the bare host
// at the default port.
func (k DeviceKey) HostKey() string {
	if k.Port == DefaultPort || k.Port == 0 {
		return k.Host
	}
	return fmt.Sprintf("%s:%d", k.Host, k.Port)
}

// BlockInfo is one cached chain resolution. Hits are trusted
// optimistically: a stale entry after a firmware change surfaces as an
// ordinary read failure downstream, never as self-healing here.
type BlockInfo struct {
	Start             uint16            `json:"start"`
	Length            uint16            `json:"length"`
	ImplementedFields []string          `json:"implementedFields,omitempty"`
	Info              map[string]string `json:"info,omitempty"`
}

// Store is the cache abstraction the engine writes through. Ownership
// of persistence stays with the caller's chosen implementation.
type Store interface {
	Get(key DeviceKey, blockID uint16) (BlockInfo, bool)
	Put(key DeviceKey, blockID uint16, info BlockInfo)
	Persist() error
}

// FileStore persists the mapping as JSON:
// hostKey -> unitID -> blockID -> BlockInfo.
type FileStore struct {
	mu   sync.Mutex
	path string
	data map[string]map[string]map[string]BlockInfo
}

// NewFileStore loads the cache file if present; a missing file is an
// empty cache.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{
		path: path,
		data: make(map[string]map[string]map[string]BlockInfo),
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache load: %w", err)
	}
	if err := json.Unmarshal(raw, &fs.data); err != nil {
		return nil, fmt.Errorf("cache parse %s: %w", path, err)
	}
	return fs, nil
}

func unitKey(id uint8) string {
	return strconv.Itoa(int(id))
}

func blockKey(id uint16) string {
	return strconv.Itoa(int(id))
}

func (fs *FileStore) Get(key DeviceKey, blockID uint16) (BlockInfo, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	units, ok := fs.data[key.HostKey()]
	if !ok {
		return BlockInfo{}, false
	}
	blocks, ok := units[unitKey(key.UnitID)]
	if !ok {
		return BlockInfo{}, false
	}
	info, ok := blocks[blockKey(blockID)]
	return info, ok
}

func (fs *FileStore) Put(key DeviceKey, blockID uint16, info BlockInfo) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	hk := key.HostKey()
	units, ok := fs.data[hk]
	if !ok {
		units = make(map[string]map[string]BlockInfo)
		fs.data[hk] = units
	}
	uk := unitKey(key.UnitID)
	blocks, ok := units[uk]
	if !ok {
		blocks = make(map[string]BlockInfo)
		units[uk] = blocks
	}
	blocks[blockKey(blockID)] = info
}

// Persist writes the whole mapping back to disk.
func (fs *FileStore) Persist() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	raw, err := json.MarshalIndent(fs.data, "", "  ")
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := os.WriteFile(fs.path, raw, 0644); err != nil {
		return fmt.Errorf("cache write %s: %w", fs.path, err)
	}
	return nil
}

// Memory is an in-memory Store for callers that do not want
// persistence, and for tests.
type Memory struct {
	mu   sync.Mutex
	data map[DeviceKey]map[uint16]BlockInfo
}

func NewMemory() *Memory {
	return &Memory{data: make(map[DeviceKey]map[uint16]BlockInfo)}
}

func (m *Memory) Get(key DeviceKey, blockID uint16) (BlockInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blocks, ok := m.data[key]
	if !ok {
		return BlockInfo{}, false
	}
	info, ok := blocks[blockID]
	return info, ok
}

func (m *Memory) Put(key DeviceKey, blockID uint16, info BlockInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blocks, ok := m.data[key]
	if !ok {
		blocks = make(map[uint16]BlockInfo)
		m.data[key] = blocks
	}
	blocks[blockID] = info
}

func (m *Memory) Persist() error { return nil }
