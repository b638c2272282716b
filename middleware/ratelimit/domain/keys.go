package domain

import (
	"strconv"
	"strings"
)

// Esquema de chaves no store compartilhado. Precisa ser idêntico ao das
// instâncias já em produção.
const (
	WindowKeyPrefix         = "rate_limit:"
	ViolationKeyPrefix      = "violations:"
	ViolationCountKeyPrefix = "violation_count:"
)

// Sanitize troca qualquer caractere fora de [A-Za-z0-9_\-:/] por '_'.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_', r == '-', r == ':', r == '/':
			return r
		default:
			return '_'
		}
	}, s)
}

// WindowKey: rate_limit:<clientId>:<rota sanitizada>
func WindowKey(id Identity, ep Endpoint) string {
	return WindowKeyPrefix + string(id) + ":" + Sanitize(ep.Signature())
}

// ViolationKey: violations:<timestampMs>:<clientId sanitizado>
func ViolationKey(id Identity, timestampMs int64) string {
	return ViolationKeyPrefix + strconv.FormatInt(timestampMs, 10) + ":" + Sanitize(string(id))
}

// ViolationCountKey: violation_count:<clientId sanitizado>
func ViolationCountKey(id Identity) string {
	return ViolationCountKeyPrefix + Sanitize(string(id))
}
