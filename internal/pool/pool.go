// internal/pool/pool.go
package pool

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jwthecolorist/sunspec-scan/internal/transport"
)

// Action runs against a live session. The session is exclusive to the
// action until it returns.
type Action func(s transport.Session) error

// Config tunes pool behaviour. Zero values take the defaults below.
type Config struct {
	// ConnectTimeout bounds session establishment. Zero falls back to
	// the submission's own timeout.
	ConnectTimeout time.Duration

	// Cooldown separates consecutive actions on one link. Constrained
	// embedded targets drop requests when flooded.
	Cooldown time.Duration

	// IdleTimeout is how long a session may sit unused before the
	// sweeper closes it.
	IdleTimeout time.Duration

	// SweepInterval is how often idle sessions are collected.
	SweepInterval time.Duration
}

const (
	defaultCooldown      = 60 * time.Millisecond
	defaultIdleTimeout   = 2 * time.Minute
	defaultSweepInterval = 30 * time.Second
)

type entry struct {
	mu           sync.Mutex
	sess         transport.Session
	lastActivity time.Time

	// pending counts submissions claimed but not yet finished. It is
	// incremented under the pool lock so the sweeper never removes an
	// entry a submitter already holds.
	pending int32

	// tail is the completion signal of the most recently queued
	// action. Each submission waits on its predecessor, giving strict
	// FIFO order per key.
	tailMu sync.Mutex
	tail   chan struct{}
}

// Pool owns at most one live session per host:port key and serializes
// all actions against a key.
type Pool struct {
	mu      sync.Mutex
	entries map[string]*entry

	dial transport.Dialer
	cfg  Config
	log  *logrus.Logger
	done chan struct{}
}

// New creates a pool and starts its idle sweeper.
func New(dial transport.Dialer, cfg Config, log *logrus.Logger) *Pool {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	p := &Pool{
		entries: make(map[string]*entry),
		dial:    dial,
		cfg:     cfg,
		log:     log,
		done:    make(chan struct{}),
	}
	go p.sweep()
	return p
}

func key(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

// claim returns the key's entry with its pending count already raised.
func (p *Pool) claim(host string, port int) *entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := key(host, port)
	e, ok := p.entries[k]
	if !ok {
		e = &entry{lastActivity: time.Now()}
		p.entries[k] = e
	}
	atomic.AddInt32(&e.pending, 1)
	return e
}

// Submit queues an action for the (host,port) link and blocks until it
// has run. Actions sharing a key execute in strict submission order;
// different keys are fully independent. A dead or missing session is
// re-established first; connect failure is returned to the caller and
// the entry stays empty.
func (p *Pool) Submit(host string, port int, unitID uint8, timeout time.Duration, action Action) error {
	e := p.claim(host, port)

	// Chain onto the key's queue tail.
	e.tailMu.Lock()
	prev := e.tail
	turn := make(chan struct{})
	e.tail = turn
	e.tailMu.Unlock()

	if prev != nil {
		<-prev
	}

	// Release the successor only after the cool-down.
	defer func() {
		atomic.AddInt32(&e.pending, -1)
		go func() {
			time.Sleep(p.cfg.Cooldown)
			close(turn)
		}()
	}()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastActivity = time.Now()

	if e.sess == nil || !e.sess.IsOpen() {
		connectTimeout := p.cfg.ConnectTimeout
		if connectTimeout <= 0 {
			connectTimeout = timeout
		}
		sess, err := p.dial(host, port, connectTimeout)
		if err != nil {
			e.sess = nil
			return err
		}
		sess.SetTimeout(timeout)
		e.sess = sess
	} else {
		e.sess.SetTimeout(timeout)
	}

	e.sess.SelectUnit(unitID)

	err := action(e.sess)
	e.lastActivity = time.Now()

	if err != nil && IsFatal(err) {
		if IsTimeout(err) {
			p.log.WithField("target", key(host, port)).Debugf("session timed out, dropping: %v", err)
		} else {
			p.log.WithField("target", key(host, port)).Warnf("fatal transport fault, dropping session: %v", err)
		}
		e.sess.Close()
		e.sess = nil
	}

	return err
}

// Invalidate closes and forgets the key's session. Safe to call when no
// session exists; the next submission reconnects.
func (p *Pool) Invalidate(host string, port int) {
	p.mu.Lock()
	e, ok := p.entries[key(host, port)]
	p.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess != nil {
		e.sess.Close()
		e.sess = nil
	}
}

func (p *Pool) sweep() {
	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.sweepOnce(time.Now())
		}
	}
}

func (p *Pool) sweepOnce(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for k, e := range p.entries {
		if atomic.LoadInt32(&e.pending) > 0 {
			continue
		}

		e.mu.Lock()
		if now.Sub(e.lastActivity) >= p.cfg.IdleTimeout {
			if e.sess != nil {
				e.sess.Close()
				e.sess = nil
				p.log.WithField("target", k).Debug("closed idle session")
			}
			delete(p.entries, k)
		}
		e.mu.Unlock()
	}
}

// Close stops the sweeper and closes every live session.
func (p *Pool) Close() {
	close(p.done)

	p.mu.Lock()
	defer p.mu.Unlock()
	for k, e := range p.entries {
		e.mu.Lock()
		if e.sess != nil {
			e.sess.Close()
			e.sess = nil
		}
		e.mu.Unlock()
		delete(p.entries, k)
	}
}
