// internal/pool/pool_test.go
package pool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jwthecolorist/sunspec-scan/internal/transport"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

type fakeSession struct {
	open    bool
	unit    uint8
	timeout time.Duration
}

func (s *fakeSession) ReadRegisters(addr, quantity uint16) ([]byte, error) {
	return make([]byte, 2*quantity), nil
}
func (s *fakeSession) WriteRegisters(addr uint16, data []byte) error { return nil }
func (s *fakeSession) SelectUnit(id uint8)                           { s.unit = id }
func (s *fakeSession) SetTimeout(d time.Duration)                    { s.timeout = d }
func (s *fakeSession) IsOpen() bool                                  { return s.open }
func (s *fakeSession) Close() error                                  { s.open = false; return nil }

func countingDialer(dials *int32, failFirst bool) transport.Dialer {
	return func(host string, port int, timeout time.Duration) (transport.Session, error) {
		n := atomic.AddInt32(dials, 1)
		if failFirst && n == 1 {
			return nil, errors.New("connection refused")
		}
		return &fakeSession{open: true}, nil
	}
}

func newTestPool(dial transport.Dialer) *Pool {
	return New(dial, Config{
		Cooldown:      time.Millisecond,
		IdleTimeout:   time.Minute,
		SweepInterval: time.Hour,
	}, nil)
}

func TestSubmit_ActionsNeverInterleavePerKey(t *testing.T) {
	var dials int32
	p := newTestPool(countingDialer(&dials, false))
	defer p.Close()

	rec := &recorder{}
	const n = 8

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := p.Submit("10.0.0.1", 502, 1, time.Second, func(s transport.Session) error {
				rec.add(fmt.Sprintf("start %d", i))
				time.Sleep(2 * time.Millisecond)
				rec.add(fmt.Sprintf("end %d", i))
				return nil
			})
			if err != nil {
				t.Errorf("Submit err=%v", err)
			}
		}(i)
	}
	wg.Wait()

	events := rec.all()
	if len(events) != 2*n {
		t.Fatalf("got %d events, want %d", len(events), 2*n)
	}
	// Strict serialization: every start is immediately followed by its
	// own end.
	for i := 0; i < len(events); i += 2 {
		if events[i][:5] != "start" || events[i+1][:3] != "end" {
			t.Fatalf("interleaved events at %d: %v", i, events)
		}
		if events[i][6:] != events[i+1][4:] {
			t.Fatalf("mismatched pair at %d: %q / %q", i, events[i], events[i+1])
		}
	}

	if atomic.LoadInt32(&dials) != 1 {
		t.Fatalf("dialed %d times, want 1 (session reuse)", dials)
	}
}

func TestSubmit_IndependentKeysGetOwnSessions(t *testing.T) {
	var dials int32
	p := newTestPool(countingDialer(&dials, false))
	defer p.Close()

	for _, host := range []string{"10.0.0.1", "10.0.0.2"} {
		if err := p.Submit(host, 502, 1, time.Second, func(transport.Session) error { return nil }); err != nil {
			t.Fatalf("Submit err=%v", err)
		}
	}
	if atomic.LoadInt32(&dials) != 2 {
		t.Fatalf("dialed %d times, want 2", dials)
	}
}

func TestSubmit_FatalFaultTriggersReconnect(t *testing.T) {
	var dials int32
	p := newTestPool(countingDialer(&dials, false))
	defer p.Close()

	err := p.Submit("10.0.0.1", 502, 1, time.Second, func(transport.Session) error {
		return errors.New("Port Not Open")
	})
	if err == nil {
		t.Fatal("expected the fault to propagate")
	}

	if err := p.Submit("10.0.0.1", 502, 1, time.Second, func(transport.Session) error { return nil }); err != nil {
		t.Fatalf("Submit err=%v", err)
	}
	if atomic.LoadInt32(&dials) != 2 {
		t.Fatalf("dialed %d times, want 2 (fresh connection after fatal fault)", dials)
	}
}

func TestSubmit_NonFatalFaultKeepsSession(t *testing.T) {
	var dials int32
	p := newTestPool(countingDialer(&dials, false))
	defer p.Close()

	err := p.Submit("10.0.0.1", 502, 1, time.Second, func(transport.Session) error {
		return errors.New("modbus: exception '2' (illegal data address)")
	})
	if err == nil {
		t.Fatal("expected the fault to propagate")
	}

	if err := p.Submit("10.0.0.1", 502, 1, time.Second, func(transport.Session) error { return nil }); err != nil {
		t.Fatalf("Submit err=%v", err)
	}
	if atomic.LoadInt32(&dials) != 1 {
		t.Fatalf("dialed %d times, want 1 (session survives non-fatal fault)", dials)
	}
}

func TestSubmit_ConnectFailurePropagatesAndRetries(t *testing.T) {
	var dials int32
	p := newTestPool(countingDialer(&dials, true))
	defer p.Close()

	err := p.Submit("10.0.0.1", 502, 1, time.Second, func(transport.Session) error { return nil })
	if err == nil {
		t.Fatal("expected connect failure")
	}

	if err := p.Submit("10.0.0.1", 502, 1, time.Second, func(transport.Session) error { return nil }); err != nil {
		t.Fatalf("second Submit err=%v", err)
	}
	if atomic.LoadInt32(&dials) != 2 {
		t.Fatalf("dialed %d times, want 2", dials)
	}
}

func TestSubmit_SelectsRequestedUnit(t *testing.T) {
	var dials int32
	p := newTestPool(countingDialer(&dials, false))
	defer p.Close()

	var got uint8
	err := p.Submit("10.0.0.1", 502, 126, time.Second, func(s transport.Session) error {
		got = s.(*fakeSession).unit
		return nil
	})
	if err != nil {
		t.Fatalf("Submit err=%v", err)
	}
	if got != 126 {
		t.Fatalf("unit=%d, want 126", got)
	}
}

func TestInvalidate_IdempotentAndForcesReconnect(t *testing.T) {
	var dials int32
	p := newTestPool(countingDialer(&dials, false))
	defer p.Close()

	if err := p.Submit("10.0.0.1", 502, 1, time.Second, func(transport.Session) error { return nil }); err != nil {
		t.Fatalf("Submit err=%v", err)
	}

	p.Invalidate("10.0.0.1", 502)
	p.Invalidate("10.0.0.1", 502) // second call is a no-op
	p.Invalidate("10.9.9.9", 502) // unknown key is a no-op

	if err := p.Submit("10.0.0.1", 502, 1, time.Second, func(transport.Session) error { return nil }); err != nil {
		t.Fatalf("Submit err=%v", err)
	}
	if atomic.LoadInt32(&dials) != 2 {
		t.Fatalf("dialed %d times, want 2", dials)
	}
}

func TestSweep_ClosesIdleSessions(t *testing.T) {
	var dials int32
	p := newTestPool(countingDialer(&dials, false))
	defer p.Close()

	if err := p.Submit("10.0.0.1", 502, 1, time.Second, func(transport.Session) error { return nil }); err != nil {
		t.Fatalf("Submit err=%v", err)
	}

	p.sweepOnce(time.Now().Add(2 * time.Minute))

	p.mu.Lock()
	remaining := len(p.entries)
	p.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("%d entries after sweep, want 0", remaining)
	}
}

func TestIsFatalClassification(t *testing.T) {
	fatal := []string{
		"read tcp: connection reset by peer",
		"write: broken pipe",
		"i/o timed out",
		"serial: Port Not Open",
		"Transaction Timed Out",
	}
	for _, msg := range fatal {
		if !IsFatal(errors.New(msg)) {
			t.Errorf("%q should be fatal", msg)
		}
	}

	benign := []string{
		"modbus: exception '2' (illegal data address)",
		"modbus: exception '3' (illegal data value)",
	}
	for _, msg := range benign {
		if IsFatal(errors.New(msg)) {
			t.Errorf("%q should not be fatal", msg)
		}
	}

	if IsFatal(nil) {
		t.Error("nil error classified fatal")
	}
}
