package openstack

import "strings"

// ParseAddresses splits the CLI's addresses value, e.g.
// "apimon-net-0=10.250.0.14, 185.128.118.51", into bare addresses.
func ParseAddresses(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if eq := strings.LastIndex(part, "="); eq >= 0 {
			part = part[eq+1:]
		}
		out = append(out, part)
	}
	return out
}
