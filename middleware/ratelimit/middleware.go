package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"

	"cart-guard/middleware/ratelimit/domain"
)

// Checker é a camada application vista pelo middleware.
type Checker interface {
	Check(ctx context.Context, req domain.Request) domain.Decision
}

type Options struct {
	Service             Checker
	EndpointFn          EndpointFunc
	TrustXForwardedFor  bool
	// Allowlist: origens que não passam pela checagem.
	Allowlist           *Allowlist
	RejectStatus        int
	AddRateLimitHeaders bool
}

// RejectionBody é o corpo JSON da resposta 429.
type RejectionBody struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.EndpointFn == nil {
		opts.EndpointFn = PatternEndpoint(nil)
	}

	return func(next http.Handler) http.Handler {
		if opts.Service == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, origin := ResolveIdentity(r, opts.TrustXForwardedFor)
			if opts.Allowlist.Contains(origin) {
				next.ServeHTTP(w, r)
				return
			}

			dec := opts.Service.Check(r.Context(), domain.Request{
				Endpoint:      opts.EndpointFn(r),
				Identity:      id,
				NetworkOrigin: origin,
			})

			if opts.AddRateLimitHeaders && dec.Limit > 0 && dec.Outcome != domain.OutcomeDegraded {
				w.Header().Set("X-RateLimit-Limit", formatInt(dec.Limit))
				w.Header().Set("X-RateLimit-Remaining", formatInt(dec.Remaining()))
			}

			if !dec.Allowed() {
				writeRejection(w, opts.RejectStatus, dec)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeRejection(w http.ResponseWriter, status int, dec domain.Decision) {
	retry := int(dec.RetryAfter.Seconds())
	w.Header().Set("Retry-After", formatInt(retry))
	if dec.PenaltyDelay > 0 {
		w.Header().Set("X-RateLimit-Penalty", formatInt64(dec.PenaltyDelay.Milliseconds()))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	msg := dec.Message
	if msg == "" {
		msg = domain.DefaultMessage
	}
	_ = json.NewEncoder(w).Encode(RejectionBody{
		StatusCode: status,
		Error:      http.StatusText(status),
		Message:    msg,
		RetryAfter: retry,
	})
}
