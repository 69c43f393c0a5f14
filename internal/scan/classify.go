// internal/scan/classify.go
package scan

import (
	"fmt"
	"net"
	"time"

	"github.com/jwthecolorist/sunspec-scan/internal/sunspec"
	"github.com/jwthecolorist/sunspec-scan/internal/transport"
)

// Dialect labels the protocol family a unit answered with.
type Dialect string

const (
	DialectSunSpec  Dialect = "sunspec"
	DialectSMA      Dialect = "sma"
	DialectSolarman Dialect = "solarman"
)

// smaSignatureAddr holds the SMA device-class block; readable there
// means an SMA-dialect unit even without the SunS marker.
const smaSignatureAddr uint16 = 30051

// solarmanPort is the logger port Solarman bridges listen on. Any
// successful register read over it counts as a match.
const solarmanPort = 8899

// DefaultUnitIDs is the priority-ordered probe list used when the
// caller gives no unit spec. Low station numbers first, then the two
// conventional SunSpec defaults.
var DefaultUnitIDs = []uint8{1, 2, 3, 4, 5, 100, 126}

// UnitDialect is one classified unit on a host.
type UnitDialect struct {
	UnitID  uint8
	Dialect Dialect
}

// ProbeHost answers whether anything is listening on host:port. A cheap
// TCP connect filters dead addresses before protocol probing.
func ProbeHost(host string, port int, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// ClassifyUnits opens one session for the host and classifies each unit
// ID in order. Probe failures are negative classification, not errors;
// only a failure to open the session aborts the host. The session
// handle is checked before each ID.
func ClassifyUnits(dial transport.Dialer, host string, port int, timeout time.Duration, ids []uint8, ss *Session) ([]UnitDialect, error) {
	if len(ids) == 0 {
		ids = DefaultUnitIDs
	}

	sess, err := dial(host, port, timeout)
	if err != nil {
		return nil, fmt.Errorf("classify %s:%d: %w", host, port, err)
	}
	defer sess.Close()

	var found []UnitDialect
	for _, id := range ids {
		if ss != nil && ss.Cancelled() {
			return found, nil
		}

		sess.SelectUnit(id)

		if d, ok := classifyOne(sess, port); ok {
			found = append(found, UnitDialect{UnitID: id, Dialect: d})
		}
	}
	return found, nil
}

// classifyOne tries each known dialect's signature in sequence; the
// first match wins.
func classifyOne(sess transport.Session, port int) (Dialect, bool) {
	if sunspec.HasMarker(sess) {
		return DialectSunSpec, true
	}

	if buf, err := sess.ReadRegisters(smaSignatureAddr, 2); err == nil && len(buf) == 4 {
		return DialectSMA, true
	}

	// Solarman bridges answer on their own port; any readable register
	// there is taken as a positive match.
	if port == solarmanPort {
		if _, err := sess.ReadRegisters(0, 1); err == nil {
			return DialectSolarman, true
		}
	}

	return "", false
}
