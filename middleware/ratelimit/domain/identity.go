package domain

import "strings"

// Identity é a identidade do cliente: "user:<id>" ou "ip:<endereço>".
// É derivada a cada request e usada apenas como fragmento de chave.
type Identity string

const (
	userPrefix = "user:"
	ipPrefix   = "ip:"

	// UnknownOrigin é usado quando nenhuma origem de rede pode ser resolvida.
	UnknownOrigin = "unknown"
)

func UserIdentity(id string) Identity { return Identity(userPrefix + id) }

func IPIdentity(addr string) Identity {
	if addr == "" {
		addr = UnknownOrigin
	}
	return Identity(ipPrefix + addr)
}

func (i Identity) IsAuthenticated() bool { return strings.HasPrefix(string(i), userPrefix) }

func (i Identity) String() string { return string(i) }
