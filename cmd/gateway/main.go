package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cart-guard/middleware/ratelimit"
	"cart-guard/middleware/ratelimit/application"
	"cart-guard/middleware/ratelimit/domain"
	"cart-guard/middleware/ratelimit/infra"
	"cart-guard/middleware/ratelimit/obs"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// cartRoutes são as rotas de escrita do carrinho protegidas pelo guard.
// Os nomes seguem a convenção de verbo (add*/remove*) do Registry.
var cartRoutes = map[string]domain.Endpoint{
	"POST /cart/items":        {Name: "cart.addItem", Group: "cart", Path: "/cart/items"},
	"PATCH /cart/items/{id}":  {Name: "cart.updateItem", Group: "cart", Path: "/cart/items/{id}"},
	"DELETE /cart/items/{id}": {Name: "cart.removeItem", Group: "cart", Path: "/cart/items/{id}"},
	"DELETE /cart":            {Name: "cart.removeAllItems", Group: "cart", Path: "/cart"},
}

func main() {
	_ = godotenv.Load()

	cfg, err := readConfig()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("config error")
	}

	logger := obs.SetupLogger(cfg.logLevel)

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid UPSTREAM_URL")
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("proxy error")
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	registry, err := buildRegistry(cfg.policyFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("policy registry")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.redisAddr,
		Password:     cfg.redisPassword,
		DB:           cfg.redisDB,
		DialTimeout:  cfg.storeTimeout,
		ReadTimeout:  cfg.storeTimeout,
		WriteTimeout: cfg.storeTimeout,
		// uma checagem por request: sem retry no cliente
		MaxRetries:   -1,
	})
	defer func() { _ = rdb.Close() }()

	// Redis fora do ar no boot não impede a subida: o guard é fail-open.
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Error().Err(err).Str("addr", cfg.redisAddr).Msg("redis ping failed, starting in degraded mode")
	}
	cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := obs.NewMetrics(reg)

	violationLog := application.NewAsyncViolationLog(
		infra.NewRedisViolationLog(rdb),
		infra.NewChanPool(cfg.violationLogWorkers),
		application.WithAsyncLogger(logger),
		application.WithAsyncObserver(metrics),
	)

	svc := application.NewService(
		registry,
		infra.NewRedisWindowStore(rdb),
		infra.NewRedisViolationCounter(rdb),
		application.WithViolationLog(violationLog),
		application.WithStoreTimeout(cfg.storeTimeout),
		application.WithLogger(logger),
		application.WithObserver(metrics),
	)

	var allowlist *ratelimit.Allowlist
	if cfg.allowlistEnabled {
		var invalid []string
		allowlist, invalid = ratelimit.ParseAllowlist(cfg.allowlistIPs)
		if len(invalid) > 0 {
			logger.Warn().Strs("entries", invalid).Msg("ignoring invalid ALLOWLIST_IPS entries")
		}
	}

	guard := ratelimit.Middleware(ratelimit.Options{
		Service:             svc,
		EndpointFn:          ratelimit.PatternEndpoint(cartRoutes),
		TrustXForwardedFor:  cfg.trustXFF,
		Allowlist:           allowlist,
		AddRateLimitHeaders: cfg.addHeaders,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.Handle("GET "+cfg.metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	for pattern := range cartRoutes {
		mux.Handle(pattern, guard(proxy))
	}
	mux.Handle("/", proxy)

	var h http.Handler = mux
	h = ratelimit.TrustedPrincipalHeader(cfg.authHeader)(h)
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
		OnReject:       metrics.ConcurrencyRejected,
	})(h)
	h = obs.AccessLog(logger)(h)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		if err := violationLog.Drain(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("pending violation records not flushed")
		}
	}()

	logger.Info().
		Str("addr", cfg.listenAddr).
		Str("upstream", target.String()).
		Str("redis", cfg.redisAddr).
		Dur("store_timeout", cfg.storeTimeout).
		Bool("trust_xff", cfg.trustXFF).
		Int("allowlist", allowlist.Len()).
		Int("concurrency_max", cfg.concurrencyMax).
		Msg("gateway listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func buildRegistry(policyFile string) (*application.Registry, error) {
	registry := application.NewRegistry()
	if policyFile == "" {
		return registry, nil
	}
	policies, err := infra.LoadPolicyFile(policyFile)
	if err != nil {
		return nil, err
	}
	for name, p := range policies.Endpoints {
		registry.SetEndpoint(name, p)
	}
	for group, p := range policies.Groups {
		registry.SetGroup(group, p)
	}
	return registry, nil
}
