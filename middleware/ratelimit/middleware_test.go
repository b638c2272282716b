package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cart-guard/middleware/ratelimit/application"
	"cart-guard/middleware/ratelimit/domain"
	"cart-guard/middleware/ratelimit/infra"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var addItem = domain.Endpoint{Name: "cart.addItem", Group: "cart", Path: "/cart/items"}

type stubChecker struct {
	dec  domain.Decision
	reqs []domain.Request
}

func (s *stubChecker) Check(_ context.Context, req domain.Request) domain.Decision {
	s.reqs = append(s.reqs, req)
	return s.dec
}

func newRedisService(t *testing.T, registry *application.Registry) (*application.Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc := application.NewService(registry, infra.NewRedisWindowStore(rdb), infra.NewRedisViolationCounter(rdb),
		application.WithViolationLog(infra.NewRedisViolationLog(rdb)),
	)
	return svc, mr
}

func doPost(h http.Handler, remote string, headers map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "http://example/cart/items", nil)
	r.RemoteAddr = remote
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestMiddleware_AllowsThenRejectsSameKey(t *testing.T) {
	registry := application.NewRegistry().SetEndpoint("cart.addItem", domain.MustPolicy(2, 300, 1000, "Too many items added"))
	svc, mr := newRedisService(t, registry)

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Service:             svc,
		EndpointFn:          StaticEndpoint(addItem),
		AddRateLimitHeaders: true,
	})(next)

	for i := 0; i < 2; i++ {
		w := doPost(h, "10.0.0.1:1234", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}
	w := doPost(h, "10.0.0.1:1234", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "300" {
		t.Fatalf("expected Retry-After=300, got %q", got)
	}
	if got := w.Header().Get("X-RateLimit-Penalty"); got != "1000" {
		t.Fatalf("expected penalty of 1000ms, got %q", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("expected remaining 0, got %q", got)
	}

	var body RejectionBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.StatusCode != 429 || body.RetryAfter != 300 || body.Message != "Too many items added" {
		t.Fatalf("unexpected body %+v", body)
	}

	if calls != 2 {
		t.Fatalf("expected next handler to be called twice, got %d", calls)
	}
	if !mr.Exists("rate_limit:ip:10.0.0.1:/cart/items") {
		t.Fatalf("expected window bucket in redis, keys=%v", mr.Keys())
	}
	if !mr.Exists("violation_count:ip:10_0_0_1") {
		t.Fatalf("expected violation counter in redis, keys=%v", mr.Keys())
	}
}

func TestMiddleware_AuthenticatedUserGetsHigherLimit(t *testing.T) {
	registry := application.NewRegistry().SetEndpoint("cart.addItem", domain.MustPolicy(2, 60, 0, ""))
	svc, _ := newRedisService(t, registry)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := TrustedPrincipalHeader("X-User-ID")(Middleware(Options{
		Service:             svc,
		EndpointFn:          StaticEndpoint(addItem),
		AddRateLimitHeaders: true,
	})(next))

	user := map[string]string{"X-User-ID": "u-42"}
	for i := 0; i < 3; i++ {
		if w := doPost(h, "10.0.0.1:1234", user); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}
	w := doPost(h, "10.0.0.1:1234", user)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after 3 requests, got %d", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "3" {
		t.Fatalf("expected effective limit 3, got %q", got)
	}

	// mesmo IP, sem usuário: bucket anônimo próprio
	if w := doPost(h, "10.0.0.1:1234", nil); w.Code != http.StatusOK {
		t.Fatalf("expected anonymous bucket to be independent, got %d", w.Code)
	}
}

func TestMiddleware_DistinctOriginsHaveSeparateBuckets(t *testing.T) {
	registry := application.NewRegistry().SetEndpoint("cart.addItem", domain.MustPolicy(1, 60, 0, ""))
	svc, _ := newRedisService(t, registry)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := Middleware(Options{Service: svc, EndpointFn: StaticEndpoint(addItem), TrustXForwardedFor: true})(next)

	if w := doPost(h, "10.0.0.9:5555", map[string]string{"X-Forwarded-For": "1.2.3.4"}); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for 1.2.3.4, got %d", w.Code)
	}
	if w := doPost(h, "10.0.0.9:5555", map[string]string{"X-Forwarded-For": "5.6.7.8"}); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for 5.6.7.8, got %d", w.Code)
	}
	if w := doPost(h, "10.0.0.9:5555", map[string]string{"X-Forwarded-For": "1.2.3.4"}); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for repeated 1.2.3.4, got %d", w.Code)
	}
}

func TestMiddleware_FailsOpenWhenStoreIsDown(t *testing.T) {
	svc, mr := newRedisService(t, application.NewRegistry())
	mr.Close()

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(Options{Service: svc, EndpointFn: StaticEndpoint(addItem), AddRateLimitHeaders: true})(next)

	w := doPost(h, "10.0.0.1:1234", nil)
	if w.Code != http.StatusOK || calls != 1 {
		t.Fatalf("expected request admitted while store is down, got %d calls=%d", w.Code, calls)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "" {
		t.Fatalf("expected no rate limit headers in degraded mode, got %q", got)
	}
}

func TestMiddleware_PassesIdentityAndOriginToService(t *testing.T) {
	stub := &stubChecker{dec: domain.Decision{Outcome: domain.OutcomeAdmitted}}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	h := Middleware(Options{Service: stub, EndpointFn: StaticEndpoint(addItem), TrustXForwardedFor: true})(next)

	r := httptest.NewRequest(http.MethodPost, "http://example/cart/items", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	r = r.WithContext(WithPrincipal(r.Context(), "u-42"))
	h.ServeHTTP(httptest.NewRecorder(), r)

	if len(stub.reqs) != 1 {
		t.Fatalf("expected one check, got %d", len(stub.reqs))
	}
	got := stub.reqs[0]
	if got.Identity != "user:u-42" || got.NetworkOrigin != "203.0.113.5" || got.Endpoint != addItem {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestMiddleware_AllowlistBypassesCheck(t *testing.T) {
	stub := &stubChecker{dec: domain.Decision{Outcome: domain.OutcomeRejected, RetryAfter: time.Minute}}
	al, invalid := ParseAllowlist("10.0.0.0/8")
	if len(invalid) != 0 {
		t.Fatalf("unexpected invalid entries %v", invalid)
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := Middleware(Options{Service: stub, EndpointFn: StaticEndpoint(addItem), Allowlist: al})(next)

	if w := doPost(h, "10.1.2.3:1234", nil); w.Code != http.StatusOK {
		t.Fatalf("expected allowlisted origin to pass, got %d", w.Code)
	}
	if len(stub.reqs) != 0 {
		t.Fatalf("expected no check for allowlisted origin")
	}
	if w := doPost(h, "192.168.1.1:1234", nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected other origin to be checked, got %d", w.Code)
	}
}

func TestMiddleware_RetryAfterUsesSeconds(t *testing.T) {
	stub := &stubChecker{dec: domain.Decision{Outcome: domain.OutcomeRejected, RetryAfter: 2500 * time.Millisecond}}
	h := Middleware(Options{Service: stub, EndpointFn: StaticEndpoint(addItem)})(http.NotFoundHandler())

	w := doPost(h, "10.0.0.1:1234", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := strings.TrimSpace(w.Header().Get("Retry-After")); got != "2" {
		// int(2.5s.Seconds()) == 2
		t.Fatalf("expected Retry-After=2, got %q", got)
	}
	if !strings.Contains(w.Body.String(), domain.DefaultMessage) {
		t.Fatalf("expected default message in body, got %q", w.Body.String())
	}
}

func TestMiddleware_NilServiceIsPassThrough(t *testing.T) {
	h := Middleware(Options{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	if w := doPost(h, "10.0.0.1:1234", nil); w.Code != http.StatusAccepted {
		t.Fatalf("expected pass-through, got %d", w.Code)
	}
}

func TestMiddleware_PatternEndpointFromServeMux(t *testing.T) {
	stub := &stubChecker{dec: domain.Decision{Outcome: domain.OutcomeAdmitted}}
	guard := Middleware(Options{Service: stub, EndpointFn: PatternEndpoint(map[string]domain.Endpoint{
		"POST /cart/items": addItem,
	})})

	mux := http.NewServeMux()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	mux.Handle("POST /cart/items", guard(ok))
	mux.Handle("DELETE /cart/items/{id}", guard(ok))

	for _, tc := range []struct{ method, target string }{
		{http.MethodPost, "/cart/items"},
		{http.MethodDelete, "/cart/items/42"},
	} {
		r := httptest.NewRequest(tc.method, "http://example"+tc.target, nil)
		mux.ServeHTTP(httptest.NewRecorder(), r)
	}

	if len(stub.reqs) != 2 {
		t.Fatalf("expected two checks, got %d", len(stub.reqs))
	}
	if stub.reqs[0].Endpoint != addItem {
		t.Fatalf("expected registered endpoint, got %+v", stub.reqs[0].Endpoint)
	}
	if got := stub.reqs[1].Endpoint; got.Path != "/cart/items/{id}" || got.Name != "" {
		t.Fatalf("expected pattern path, got %+v", got)
	}
}

func TestMiddleware_WindowSlidesInRedis(t *testing.T) {
	registry := application.NewRegistry().SetEndpoint("cart.addItem", domain.MustPolicy(1, 60, 0, ""))
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := application.NewService(registry, infra.NewRedisWindowStore(rdb), nil,
		application.WithClock(func() time.Time { return now }))
	h := Middleware(Options{Service: svc, EndpointFn: StaticEndpoint(addItem)})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	if w := doPost(h, "10.0.0.1:1", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := doPost(h, "10.0.0.1:1", nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}

	now = now.Add(61 * time.Second)
	if w := doPost(h, "10.0.0.1:1", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 after window slid, got %d", w.Code)
	}
}

