package ratelimit

import (
	"net/http"
	"strings"

	"cart-guard/middleware/ratelimit/domain"
)

// EndpointFunc diz qual endpoint está sendo invocado.
type EndpointFunc func(r *http.Request) domain.Endpoint

// StaticEndpoint é usado quando o middleware é montado por rota.
func StaticEndpoint(ep domain.Endpoint) EndpointFunc {
	return func(*http.Request) domain.Endpoint { return ep }
}

// PatternEndpoint usa o padrão casado pelo http.ServeMux ("POST /cart/items/{id}"),
// procurando o endpoint registrado em `known`; sem registro, Path = parte de caminho
// do padrão. Sem padrão (outro roteador), usa r.URL.Path.
func PatternEndpoint(known map[string]domain.Endpoint) EndpointFunc {
	return func(r *http.Request) domain.Endpoint {
		pattern := r.Pattern
		if ep, ok := known[pattern]; ok {
			return ep
		}
		if pattern == "" {
			return domain.Endpoint{Path: r.URL.Path}
		}
		// "METHOD [HOST]/path" -> "/path"
		if _, rest, ok := strings.Cut(pattern, " "); ok {
			pattern = strings.TrimSpace(rest)
		}
		if i := strings.Index(pattern, "/"); i > 0 {
			pattern = pattern[i:]
		}
		return domain.Endpoint{Path: pattern}
	}
}
