// internal/engine/discover.go
package engine

import (
	"fmt"
	"time"

	"github.com/jwthecolorist/sunspec-scan/internal/cache"
	"github.com/jwthecolorist/sunspec-scan/internal/scan"
	"github.com/jwthecolorist/sunspec-scan/internal/sunspec"
	"github.com/jwthecolorist/sunspec-scan/internal/transport"
)

// Report maps host address to the units that answered and their
// dialects.
type Report map[string][]scan.UnitDialect

// Discover expands the address and unit specs, probes each reachable
// host, classifies its units, and enriches the cache for every SunSpec
// unit found. The session handle is checked before each host and each
// unit; cancelling mid-scan returns the partial report.
func (e *Engine) Discover(ss *scan.Session, rangeSpec string, port int, timeout time.Duration, unitSpec string) (Report, error) {
	hosts, err := scan.ExpandAddressRange(rangeSpec)
	if err != nil {
		return nil, err
	}
	ids, err := scan.ExpandUnitIDs(unitSpec)
	if err != nil {
		return nil, err
	}

	report := make(Report)
	for _, host := range hosts {
		if ss != nil && ss.Cancelled() {
			ss.SetStatus("cancelled")
			return report, nil
		}
		if ss != nil {
			ss.SetStatus(fmt.Sprintf("probing %s", host))
		}

		if !scan.ProbeHost(host, port, timeout) {
			continue
		}

		units, err := scan.ClassifyUnits(e.dial, host, port, timeout, ids, ss)
		if err != nil {
			// Only a failed session open lands here; the host is
			// skipped, the scan continues.
			e.log.Debugf("discover: %v", err)
			continue
		}
		if len(units) == 0 {
			continue
		}
		report[host] = units

		for _, u := range units {
			if ss != nil && ss.Cancelled() {
				ss.SetStatus("cancelled")
				return report, nil
			}
			if u.Dialect != scan.DialectSunSpec {
				continue
			}
			if err := e.enrich(host, port, u.UnitID, timeout); err != nil {
				e.log.Warnf("discover: enrich %s unit %d: %v", host, u.UnitID, err)
			}
		}
	}

	if err := e.store.Persist(); err != nil {
		e.log.Warnf("cache persist failed: %v", err)
	}
	if ss != nil {
		ss.SetStatus(fmt.Sprintf("done, %d hosts with devices", len(report)))
	}
	return report, nil
}

// enrich walks the unit's whole chain and records every block in the
// cache, with per-model implemented-field scans and the common-model
// identity strings.
func (e *Engine) enrich(host string, port int, unitID uint8, timeout time.Duration) error {
	key := cache.DeviceKey{Host: host, Port: port, UnitID: unitID}

	return e.pool.Submit(host, port, unitID, timeout, func(s transport.Session) error {
		blocks, err := sunspec.WalkAll(s, e.cfg.MaxChainHops)
		if err != nil {
			return err
		}

		for _, b := range blocks {
			info := cache.BlockInfo{Start: b.Start, Length: b.Length}

			if m, ok := e.models[b.ID]; ok {
				if names, err := sunspec.ScanImplemented(s, m, b.DataStart(), b.Length); err == nil {
					info.ImplementedFields = names
				}
				if b.ID == 1 {
					info.Info = e.deviceInfo(s, m, b.DataStart())
				}
			}

			e.store.Put(key, b.ID, info)
		}
		return nil
	})
}

// deviceInfo pulls the identity strings out of the common model.
func (e *Engine) deviceInfo(r sunspec.RegisterReader, m sunspec.Model, dataStart uint16) map[string]string {
	info := make(map[string]string)
	for _, name := range []string{"Mn", "Md", "Vr", "SN"} {
		v, err := sunspec.ReadField(r, m, dataStart, name, sunspec.DefaultOptions)
		if err != nil {
			continue
		}
		if s, ok := v.Value.(string); ok {
			info[name] = s
		}
	}
	if len(info) == 0 {
		return nil
	}
	return info
}
