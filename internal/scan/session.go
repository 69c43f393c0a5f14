// internal/scan/session.go
package scan

import "sync"

// Session is the handle for one in-flight discovery run. Each Discover
// call gets its own, so concurrent scans cancel independently.
type Session struct {
	mu        sync.Mutex
	cancelled bool
	status    string
}

func NewSession() *Session {
	return &Session{status: "idle"}
}

// Cancel requests cooperative termination. The scanner checks before
// each host and each unit ID; an issued register read is never aborted
// mid-flight, it can only time out.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

func (s *Session) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func (s *Session) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}
