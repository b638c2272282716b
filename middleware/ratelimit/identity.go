package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"

	"cart-guard/middleware/ratelimit/domain"
)

type ctxKey int

const principalKey ctxKey = 0

// WithPrincipal anexa o id do usuário autenticado ao contexto.
// É o ponto de integração com a camada de autenticação.
func WithPrincipal(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, principalKey, id)
}

// PrincipalFrom extrai o id do usuário autenticado (se houver).
func PrincipalFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(principalKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// TrustedPrincipalHeader confia num header preenchido pelo proxy de
// autenticação (ex: X-User-ID) e o coloca no contexto.
// Só use atrás de um proxy que remove esse header das requests externas.
func TrustedPrincipalHeader(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if header == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := strings.TrimSpace(r.Header.Get(header)); id != "" {
				r = r.WithContext(WithPrincipal(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NetworkOrigin retorna a origem de rede: primeiro IP do X-Forwarded-For,
// senão X-Real-IP, senão o host do RemoteAddr, senão "unknown".
// Com trustProxyHeaders=false os headers são ignorados.
func NetworkOrigin(r *http.Request, trustProxyHeaders bool) string {
	if trustProxyHeaders {
		// pega o primeiro IP do X-Forwarded-For (cliente original)
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}

	// fallback: RemoteAddr
	remote := strings.TrimSpace(r.RemoteAddr)
	host, _, err := net.SplitHostPort(remote)
	if err == nil && host != "" {
		return host
	}
	if remote != "" {
		return remote
	}
	return domain.UnknownOrigin
}

// ResolveIdentity: usuário autenticado sempre tem precedência sobre a origem de rede.
func ResolveIdentity(r *http.Request, trustProxyHeaders bool) (domain.Identity, string) {
	origin := NetworkOrigin(r, trustProxyHeaders)
	if id, ok := PrincipalFrom(r.Context()); ok {
		return domain.UserIdentity(id), origin
	}
	return domain.IPIdentity(origin), origin
}
