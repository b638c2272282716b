package application

import (
	"strings"

	"cart-guard/middleware/ratelimit/domain"
)

// PolicyResolver decide qual policy se aplica a um endpoint.
// ok=false significa "sem limite".
type PolicyResolver interface {
	Resolve(ep domain.Endpoint) (p domain.Policy, ok bool)
}

// Convention associa prefixos de verbo a uma policy padrão.
type Convention struct {
	Verbs  []string
	Policy domain.Policy
}

// DefaultConventions: operações que adicionam ao carrinho são mais apertadas
// do que as que removem.
func DefaultConventions() []Convention {
	return []Convention{
		{
			Verbs:  []string{"add"},
			Policy: domain.MustPolicy(20, 300, 1000, "Too many items added to cart. Please slow down."),
		},
		{
			Verbs:  []string{"remove", "delete"},
			Policy: domain.MustPolicy(30, 300, 500, "Too many items removed from cart. Please slow down."),
		},
	}
}

// Registry é o registro estático endpoint -> policy, montado no startup.
//
// Ordem de resolução: endpoint explícito, grupo explícito, convenção de verbo
// (na ordem das convenções), senão sem limite.
//
// Não é seguro chamar Set* concorrentemente com Resolve; popule antes de servir.
type Registry struct {
	endpoints   map[string]domain.Policy
	groups      map[string]domain.Policy
	conventions []Convention
}

type RegistryOption func(*Registry)

func WithConventions(c []Convention) RegistryOption {
	return func(r *Registry) { r.conventions = c }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		endpoints:   make(map[string]domain.Policy),
		groups:      make(map[string]domain.Policy),
		conventions: DefaultConventions(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) SetEndpoint(name string, p domain.Policy) *Registry {
	r.endpoints[name] = p
	return r
}

func (r *Registry) SetGroup(group string, p domain.Policy) *Registry {
	r.groups[group] = p
	return r
}

// Resolve implementa PolicyResolver.
func (r *Registry) Resolve(ep domain.Endpoint) (domain.Policy, bool) {
	if ep.Name != "" {
		if p, ok := r.endpoints[ep.Name]; ok {
			return p, true
		}
	}
	if ep.Group != "" {
		if p, ok := r.groups[ep.Group]; ok {
			return p, true
		}
	}

	verb := verbOf(ep)
	if verb == "" {
		return domain.Policy{}, false
	}
	for _, c := range r.conventions {
		for _, v := range c.Verbs {
			if strings.HasPrefix(verb, v) {
				return c.Policy, true
			}
		}
	}
	return domain.Policy{}, false
}

// verbOf extrai o verbo semântico: último segmento do Name ("cart.addItem" ->
// "additem"); sem Name, o último segmento estático do Path ("/cart/remove/{id}" -> "remove").
func verbOf(ep domain.Endpoint) string {
	if name := strings.TrimSpace(ep.Name); name != "" {
		if i := strings.LastIndexAny(name, "./"); i >= 0 {
			name = name[i+1:]
		}
		return strings.ToLower(name)
	}

	segs := strings.Split(strings.Trim(ep.Path, "/"), "/")
	for i := len(segs) - 1; i >= 0; i-- {
		s := segs[i]
		if s == "" || strings.HasPrefix(s, "{") || strings.HasPrefix(s, ":") {
			continue
		}
		return strings.ToLower(s)
	}
	return ""
}
