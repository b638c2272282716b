package infra

import (
	"fmt"
	"os"

	"cart-guard/middleware/ratelimit/domain"

	"gopkg.in/yaml.v3"
)

// PolicySpec é a forma declarativa de uma domain.Policy.
type PolicySpec struct {
	MaxRequests   int    `yaml:"max_requests"`
	WindowSeconds int    `yaml:"window_seconds"`
	PenaltyBaseMS int    `yaml:"penalty_base_ms"`
	Message       string `yaml:"message"`
}

// PolicyFile:
//
//	endpoints:
//	  cart.addItem: {max_requests: 20, window_seconds: 300, penalty_base_ms: 1000}
//	groups:
//	  cart: {max_requests: 60, window_seconds: 60}
type PolicyFile struct {
	Endpoints map[string]PolicySpec `yaml:"endpoints"`
	Groups    map[string]PolicySpec `yaml:"groups"`
}

type Policies struct {
	Endpoints map[string]domain.Policy
	Groups    map[string]domain.Policy
}

func LoadPolicyFile(path string) (Policies, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Policies{}, err
	}
	return ParsePolicyFile(b)
}

// ParsePolicyFile valida todas as entradas; qualquer policy inválida falha o arquivo todo.
func ParsePolicyFile(b []byte) (Policies, error) {
	var f PolicyFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Policies{}, fmt.Errorf("parse policy file: %w", err)
	}

	out := Policies{
		Endpoints: make(map[string]domain.Policy, len(f.Endpoints)),
		Groups:    make(map[string]domain.Policy, len(f.Groups)),
	}
	for name, ps := range f.Endpoints {
		p, err := ps.policy()
		if err != nil {
			return Policies{}, fmt.Errorf("endpoint %q: %w", name, err)
		}
		out.Endpoints[name] = p
	}
	for name, ps := range f.Groups {
		p, err := ps.policy()
		if err != nil {
			return Policies{}, fmt.Errorf("group %q: %w", name, err)
		}
		out.Groups[name] = p
	}
	return out, nil
}

func (ps PolicySpec) policy() (domain.Policy, error) {
	return domain.NewPolicy(ps.MaxRequests, ps.WindowSeconds, ps.PenaltyBaseMS, ps.Message)
}
