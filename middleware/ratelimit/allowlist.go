package ratelimit

import (
	"net/netip"
	"strings"
)

// Allowlist contém origens confiáveis que não passam pelo rate limit
// (ex: health checks internos). Aceita IPs e CIDRs.
type Allowlist struct {
	addrs    map[netip.Addr]struct{}
	prefixes []netip.Prefix
}

// ParseAllowlist lê uma lista separada por vírgula ("10.0.0.1, 192.168.0.0/16").
// Entradas inválidas são retornadas em `invalid` e ignoradas.
func ParseAllowlist(csv string) (al *Allowlist, invalid []string) {
	al = &Allowlist{addrs: make(map[netip.Addr]struct{})}
	for _, raw := range strings.Split(csv, ",") {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if strings.Contains(s, "/") {
			p, err := netip.ParsePrefix(s)
			if err != nil {
				invalid = append(invalid, s)
				continue
			}
			al.prefixes = append(al.prefixes, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(s)
		if err != nil {
			invalid = append(invalid, s)
			continue
		}
		al.addrs[a.Unmap()] = struct{}{}
	}
	return al, invalid
}

func (al *Allowlist) Contains(origin string) bool {
	if al == nil {
		return false
	}
	a, err := netip.ParseAddr(origin)
	if err != nil {
		return false
	}
	a = a.Unmap()
	if _, ok := al.addrs[a]; ok {
		return true
	}
	for _, p := range al.prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

func (al *Allowlist) Len() int {
	if al == nil {
		return 0
	}
	return len(al.addrs) + len(al.prefixes)
}
