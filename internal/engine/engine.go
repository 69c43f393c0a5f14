// internal/engine/engine.go
package engine

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jwthecolorist/sunspec-scan/internal/cache"
	"github.com/jwthecolorist/sunspec-scan/internal/pool"
	"github.com/jwthecolorist/sunspec-scan/internal/sunspec"
	"github.com/jwthecolorist/sunspec-scan/internal/transport"
)

// ErrUnknownModel means no schema was loaded for the requested block.
var ErrUnknownModel = errors.New("engine: no schema for model")

// Config tunes engine behaviour.
type Config struct {
	MaxChainHops int

	// RevalidateCache re-reads the header at a cached address before
	// trusting it. Off by default: hits are optimistic, and a stale
	// entry surfaces as an ordinary read failure.
	RevalidateCache bool

	// RoundDecimals rounds decoded values to that many places; zero or
	// negative leaves them unrounded.
	RoundDecimals int
}

// Engine ties the pool, walker, decoder and cache together behind the
// operations callers actually use.
type Engine struct {
	pool   *pool.Pool
	dial   transport.Dialer
	models map[uint16]sunspec.Model
	store  cache.Store
	cfg    Config
	log    *logrus.Logger
}

func New(p *pool.Pool, dial transport.Dialer, models map[uint16]sunspec.Model, store cache.Store, cfg Config, log *logrus.Logger) *Engine {
	if cfg.MaxChainHops <= 0 {
		cfg.MaxChainHops = sunspec.DefaultMaxHops
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		pool:   p,
		dial:   dial,
		models: models,
		store:  store,
		cfg:    cfg,
		log:    log,
	}
}

func (e *Engine) model(blockID uint16) (sunspec.Model, error) {
	m, ok := e.models[blockID]
	if !ok {
		return sunspec.Model{}, fmt.Errorf("%w %d", ErrUnknownModel, blockID)
	}
	return m, nil
}

func (e *Engine) opts() sunspec.Options {
	return sunspec.Options{Round: e.cfg.RoundDecimals}
}

// resolveBlock locates a model's chain entry, consulting the cache
// first and writing through on a fresh walk.
func (e *Engine) resolveBlock(s transport.Session, key cache.DeviceKey, blockID uint16) (sunspec.Block, error) {
	if info, ok := e.store.Get(key, blockID); ok {
		blk := sunspec.Block{ID: blockID, Start: info.Start, Length: info.Length}
		if !e.cfg.RevalidateCache {
			return blk, nil
		}
		if buf, err := s.ReadRegisters(info.Start, 2); err == nil && len(buf) >= 2 &&
			binary.BigEndian.Uint16(buf) == blockID {
			return blk, nil
		}
		e.log.WithField("device", key.HostKey()).
			Infof("cached address for model %d no longer valid, re-walking", blockID)
	}

	blk, err := sunspec.FindBlock(s, blockID, e.cfg.MaxChainHops)
	if err != nil {
		return sunspec.Block{}, err
	}

	e.store.Put(key, blockID, cache.BlockInfo{Start: blk.Start, Length: blk.Length})
	if err := e.store.Persist(); err != nil {
		e.log.Warnf("cache persist failed: %v", err)
	}
	return blk, nil
}

// ReadSingleField reads one named point from one device.
func (e *Engine) ReadSingleField(host string, port int, unitID uint8, blockID uint16, fieldName string, timeout time.Duration) (sunspec.Value, error) {
	m, err := e.model(blockID)
	if err != nil {
		return sunspec.Value{}, err
	}

	key := cache.DeviceKey{Host: host, Port: port, UnitID: unitID}
	var out sunspec.Value

	err = e.pool.Submit(host, port, unitID, timeout, func(s transport.Session) error {
		blk, err := e.resolveBlock(s, key, blockID)
		if err != nil {
			return err
		}
		v, err := sunspec.ReadField(s, m, blk.DataStart(), fieldName, e.opts())
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// FieldRequest is one entry of a batch read.
type FieldRequest struct {
	Host    string
	Port    int
	UnitID  uint8
	BlockID uint16
	Field   string
}

// FieldResult pairs a request with its outcome.
type FieldResult struct {
	FieldRequest
	Value sunspec.Value
	Err   error
}

// ReadFieldBatch reads many points, grouped by device so each device's
// session is reused. Fields within a group go out sequentially; groups
// are processed independently. Results keep request order.
func (e *Engine) ReadFieldBatch(reqs []FieldRequest, timeout time.Duration) []FieldResult {
	results := make([]FieldResult, len(reqs))

	groups := make(map[cache.DeviceKey][]int)
	var order []cache.DeviceKey
	for i, r := range reqs {
		results[i].FieldRequest = r
		k := cache.DeviceKey{Host: r.Host, Port: r.Port, UnitID: r.UnitID}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	done := make(chan struct{}, len(order))
	for _, k := range order {
		go func(k cache.DeviceKey, idxs []int) {
			defer func() { done <- struct{}{} }()
			err := e.pool.Submit(k.Host, k.Port, k.UnitID, timeout, func(s transport.Session) error {
				for _, i := range idxs {
					results[i].Value, results[i].Err = e.readOne(s, k, reqs[i])
				}
				return nil
			})
			if err != nil {
				// The action itself never fails, so an error here means
				// the session could not be established: the whole group
				// shares it.
				for _, i := range idxs {
					results[i].Err = err
				}
			}
		}(k, groups[k])
	}
	for range order {
		<-done
	}
	return results
}

func (e *Engine) readOne(s transport.Session, key cache.DeviceKey, req FieldRequest) (sunspec.Value, error) {
	m, err := e.model(req.BlockID)
	if err != nil {
		return sunspec.Value{}, err
	}
	blk, err := e.resolveBlock(s, key, req.BlockID)
	if err != nil {
		return sunspec.Value{}, err
	}
	return sunspec.ReadField(s, m, blk.DataStart(), req.Field, e.opts())
}

// WriteField encodes value for the named field's type and writes it.
// Field types without a register encoding fail with ErrWriteUnsupported.
func (e *Engine) WriteField(host string, port int, unitID uint8, blockID uint16, fieldName string, value interface{}, timeout time.Duration) error {
	m, err := e.model(blockID)
	if err != nil {
		return err
	}
	f, idx, err := m.Field(fieldName)
	if err != nil {
		return err
	}
	data, err := sunspec.EncodeField(f, value)
	if err != nil {
		return err
	}

	key := cache.DeviceKey{Host: host, Port: port, UnitID: unitID}
	return e.pool.Submit(host, port, unitID, timeout, func(s transport.Session) error {
		blk, err := e.resolveBlock(s, key, blockID)
		if err != nil {
			return err
		}
		return s.WriteRegisters(blk.DataStart()+sunspec.FieldOffset(m, idx), data)
	})
}
