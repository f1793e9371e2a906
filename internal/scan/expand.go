package scan

import (
	"net"

	"github.com/edgerunner0x01/violette/internal/errors"
)

// maxRangeBits limits expansion to /16 or smaller networks. Anything larger
// would queue tens of thousands of probes from one invocation.
const maxRangeBits = 16

// ExpandCIDR expands an IPv4 CIDR range into the set of usable host
// addresses. The network and broadcast addresses are excluded for prefixes
// shorter than /31; /31 and /32 keep every address per RFC 3021.
func ExpandCIDR(cidr string) ([]string, error) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, errors.NewRangeError(cidr, "malformed CIDR notation", err)
	}
	if ipnet.IP.To4() == nil {
		return nil, errors.NewRangeError(cidr, "only IPv4 ranges are supported", nil)
	}

	ones, bits := ipnet.Mask.Size()
	if bits-ones > maxRangeBits {
		return nil, errors.NewRangeError(cidr, "range larger than /16 not allowed", nil)
	}

	var addrs []string
	for ip := ipnet.IP.Mask(ipnet.Mask); ipnet.Contains(ip); ip = nextIP(ip) {
		addrs = append(addrs, ip.String())
	}

	// Drop network and broadcast addresses for conventional subnets.
	if ones < 31 && len(addrs) > 2 {
		addrs = addrs[1 : len(addrs)-1]
	}
	return addrs, nil
}

// nextIP returns the address following ip, without mutating the input.
func nextIP(ip net.IP) net.IP {
	next := make(net.IP, len(ip))
	copy(next, ip)
	for i := len(next) - 1; i >= 0; i-- {
		next[i]++
		if next[i] != 0 {
			break
		}
	}
	return next
}
