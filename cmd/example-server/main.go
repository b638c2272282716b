package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cart-guard/middleware/ratelimit"
	"cart-guard/middleware/ratelimit/application"
	"cart-guard/middleware/ratelimit/domain"
	"cart-guard/middleware/ratelimit/infra"
	"cart-guard/middleware/ratelimit/obs"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

// Exemplo: injetando o guard diretamente no seu webserver (sem proxy),
// com policies declaradas em código no startup.
func main() {
	logger := obs.SetupLogger(os.Getenv("LOG_LEVEL"))

	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr, MaxRetries: -1})
	defer func() { _ = rdb.Close() }()

	registry := application.NewRegistry().
		// checkout tem policy explícita; o resto do grupo "cart" cai na convenção de verbo
		SetEndpoint("cart.checkout", domain.MustPolicy(5, 60, 2000, "Checkout attempted too often.")).
		SetGroup("wishlist", domain.MustPolicy(40, 300, 0, ""))

	violationLog := application.NewAsyncViolationLog(
		infra.NewRedisViolationLog(rdb),
		infra.NewChanPool(8),
		application.WithAsyncLogger(logger),
	)
	svc := application.NewService(
		registry,
		infra.NewRedisWindowStore(rdb),
		infra.NewRedisViolationCounter(rdb),
		application.WithViolationLog(violationLog),
		application.WithLogger(logger),
	)

	guard := func(ep domain.Endpoint) func(http.Handler) http.Handler {
		return ratelimit.Middleware(ratelimit.Options{
			Service:             svc,
			EndpointFn:          ratelimit.StaticEndpoint(ep),
			TrustXForwardedFor:  true,
			AddRateLimitHeaders: true,
		})
	}

	r := chi.NewRouter()
	r.Use(obs.AccessLog(logger))
	r.Use(ratelimit.TrustedPrincipalHeader("X-User-ID"))

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", ok)
		r.With(guard(domain.Endpoint{Name: "cart.addItem", Group: "cart", Path: "/cart/items"})).
			Post("/items", ok)
		r.With(guard(domain.Endpoint{Name: "cart.removeItem", Group: "cart", Path: "/cart/items/{id}"})).
			Delete("/items/{id}", ok)
		r.With(guard(domain.Endpoint{Name: "cart.checkout", Group: "cart", Path: "/cart/checkout"})).
			Post("/checkout", ok)
	})
	r.With(guard(domain.Endpoint{Name: "wishlist.addItem", Group: "wishlist", Path: "/wishlist/items"})).
		Post("/wishlist/items", ok)

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = violationLog.Drain(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Str("redis", redisAddr).Msg("example server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func ok(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
}
