package discovery

import (
	"fmt"
	"net"
)

// localSubnet infers the /24 containing the first non-loopback IPv4
// address on the host.
func localSubnet() (*net.IPNet, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("list interface addresses: %w", err)
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipNet.IP.To4()
		if ip == nil || ip.IsLoopback() {
			continue
		}
		masked := ip.Mask(net.CIDRMask(24, 32))
		return &net.IPNet{IP: masked, Mask: net.CIDRMask(24, 32)}, nil
	}

	return nil, fmt.Errorf("no non-loopback IPv4 interface found")
}

// expandSubnet returns all host IPs in a subnet, excluding the network and
// broadcast addresses. Subnets larger than /16 are rejected to prevent
// accidental huge sweeps.
func expandSubnet(subnet *net.IPNet) []string {
	ones, bits := subnet.Mask.Size()
	if ones == 0 && bits == 0 {
		return nil
	}

	hostBits := bits - ones
	if hostBits > 16 {
		return nil
	}

	totalHosts := 1 << hostBits
	var hosts []string
	for i := 1; i < totalHosts-1; i++ {
		next := incrementIP(subnet.IP, i)
		if next != nil && subnet.Contains(next) {
			hosts = append(hosts, next.String())
		}
	}
	return hosts
}

// incrementIP adds offset to a base IPv4 address.
func incrementIP(base net.IP, offset int) net.IP {
	ip := make(net.IP, len(base))
	copy(ip, base)

	ip = ip.To4()
	if ip == nil {
		return nil
	}

	carry := offset
	for i := 3; i >= 0; i-- {
		val := int(ip[i]) + carry
		ip[i] = byte(val % 256)
		carry = val / 256
		if carry == 0 {
			break
		}
	}
	return ip
}
