// internal/pool/fatal.go
package pool

import (
	"errors"
	"net"
	"strings"
)

// fatalIndicators match transport faults after which the session cannot
// be trusted. goburrow surfaces most of these as plain text, so a
// substring table is the compatibility shim; structured net errors are
// checked first.
var fatalIndicators = []string{
	"connection reset",
	"broken pipe",
	"timed out",
	"port not open",
	"transaction timed out",
	"use of closed network connection",
	"connection refused",
	"eof",
}

// IsFatal reports whether the session behind err must be discarded.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, ind := range fatalIndicators {
		if strings.Contains(msg, ind) {
			return true
		}
	}
	return false
}

// IsTimeout distinguishes the expected signature of transient network
// loss from protocol or configuration faults. Callers log these at
// reduced severity.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "timed out")
}
