// internal/scan/expand.go
package scan

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
)

// LocalSubnetsToken in an address-range spec expands to every IPv4
// subnet attached to a local interface.
const LocalSubnetsToken = "local"

// Unit IDs outside 1..247 are not legal Modbus station addresses.
const (
	minUnitID = 1
	maxUnitID = 247
)

// ExpandAddressRange turns a range spec into concrete host addresses.
// Accepted forms, comma-combinable:
//
//	192.168.1.20            single address
//	192.168.1.20-40         last-octet range
//	192.168.1.0/24          CIDR, network/broadcast excluded
//	local                   all locally attached subnets
func ExpandAddressRange(spec string) ([]string, error) {
	var hosts []string
	seen := make(map[string]bool)

	add := func(h string) {
		if !seen[h] {
			seen[h] = true
			hosts = append(hosts, h)
		}
	}

	for _, item := range strings.Split(spec, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		switch {
		case item == LocalSubnetsToken:
			subnets, err := localSubnets()
			if err != nil {
				return nil, err
			}
			for _, ipnet := range subnets {
				for _, h := range expandCIDR(ipnet) {
					add(h)
				}
			}

		case strings.Contains(item, "/"):
			_, ipnet, err := net.ParseCIDR(item)
			if err != nil {
				return nil, fmt.Errorf("bad CIDR %q: %w", item, err)
			}
			for _, h := range expandCIDR(ipnet) {
				add(h)
			}

		case strings.Contains(item, "-"):
			expanded, err := expandDashRange(item)
			if err != nil {
				return nil, err
			}
			for _, h := range expanded {
				add(h)
			}

		default:
			if net.ParseIP(item) == nil {
				return nil, fmt.Errorf("bad address %q", item)
			}
			add(item)
		}
	}

	return hosts, nil
}

// expandDashRange handles "a.b.c.d-e": the base address through e on the
// last octet.
func expandDashRange(item string) ([]string, error) {
	parts := strings.SplitN(item, "-", 2)
	base := net.ParseIP(strings.TrimSpace(parts[0]))
	if base == nil || base.To4() == nil {
		return nil, fmt.Errorf("bad range base %q", parts[0])
	}
	end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || end < 0 || end > 255 {
		return nil, fmt.Errorf("bad range end %q", parts[1])
	}

	ip := base.To4()
	start := int(ip[3])
	if end < start {
		return nil, fmt.Errorf("range %q ends before it starts", item)
	}

	hosts := make([]string, 0, end-start+1)
	for octet := start; octet <= end; octet++ {
		hosts = append(hosts, fmt.Sprintf("%d.%d.%d.%d", ip[0], ip[1], ip[2], octet))
	}
	return hosts, nil
}

// expandCIDR lists the usable addresses of an IPv4 network. The network
// and broadcast addresses are excluded; /31 and /32 have none.
func expandCIDR(ipnet *net.IPNet) []string {
	ip := ipnet.IP.To4()
	if ip == nil {
		return nil
	}
	ones, bits := ipnet.Mask.Size()
	if bits != 32 || ones >= 31 {
		return nil
	}

	network := uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
	hostBits := uint(bits - ones)
	broadcast := network | (1<<hostBits - 1)

	hosts := make([]string, 0, broadcast-network-1)
	for a := network + 1; a < broadcast; a++ {
		hosts = append(hosts, fmt.Sprintf("%d.%d.%d.%d",
			byte(a>>24), byte(a>>16), byte(a>>8), byte(a)))
	}
	return hosts
}

func localSubnets() ([]*net.IPNet, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}

	var subnets []*net.IPNet
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.To4() == nil || ipnet.IP.IsLoopback() {
			continue
		}
		// Normalize to the network address before expansion.
		masked := &net.IPNet{IP: ipnet.IP.Mask(ipnet.Mask), Mask: ipnet.Mask}
		subnets = append(subnets, masked)
	}
	return subnets, nil
}

// ExpandUnitIDs parses the unit-ID mini-language. An empty spec returns
// nil, the scan-all sentinel. Accepted forms, comma-combinable: "N",
// "A-B". The result is deduplicated and sorted ascending.
func ExpandUnitIDs(spec string) ([]uint8, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	seen := make(map[uint8]bool)
	for _, item := range strings.Split(spec, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		if strings.Contains(item, "-") {
			parts := strings.SplitN(item, "-", 2)
			lo, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
			hi, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("bad unit range %q", item)
			}
			if lo < minUnitID || hi > maxUnitID || hi < lo {
				return nil, fmt.Errorf("unit range %q outside %d-%d", item, minUnitID, maxUnitID)
			}
			for id := lo; id <= hi; id++ {
				seen[uint8(id)] = true
			}
			continue
		}

		id, err := strconv.Atoi(item)
		if err != nil {
			return nil, fmt.Errorf("bad unit id %q", item)
		}
		if id < minUnitID || id > maxUnitID {
			return nil, fmt.Errorf("unit id %d outside %d-%d", id, minUnitID, maxUnitID)
		}
		seen[uint8(id)] = true
	}

	ids := make([]uint8, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
