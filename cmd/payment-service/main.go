// @title        Autoparts Payments API
// @version      1.0
// @description  Checkout and payment reconciliation for the auto-parts marketplace.
// @BasePath     /
package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/MikeMC777/autoparts-payments/internal/cache"
	"github.com/MikeMC777/autoparts-payments/internal/config"
	"github.com/MikeMC777/autoparts-payments/internal/gateway"
	"github.com/MikeMC777/autoparts-payments/internal/httpx"
	"github.com/MikeMC777/autoparts-payments/internal/migrations"
	ord "github.com/MikeMC777/autoparts-payments/internal/order"
	"github.com/MikeMC777/autoparts-payments/internal/payment"
	"github.com/MikeMC777/autoparts-payments/internal/product"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := migrations.Up(cfg.PostgresDSN); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("pgxpool: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Printf("[db] warn: ping failed: %v", err)
	}

	products := product.NewPGRepo(pool)
	orders := ord.NewPGRepo(pool, products)

	var (
		rdb           *cache.Redis
		verifications *cache.Verifications
	)
	if cfg.RedisAddr != "" {
		rdb = cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rdb.Close()
		verifications = cache.NewVerifications(rdb, cfg.VerifyCacheTTL)
	}

	gw := gateway.NewClient(cfg.Gateway)
	limiter := httpx.NewRateLimiter(cfg.CallbackRateRPS, cfg.CallbackRateBurst)
	go limiter.Run(ctx.Done())

	gin.SetMode(gin.ReleaseMode)
	r := newRouter(deps{
		checkout:   payment.NewCheckout(gw, orders),
		reconciler: payment.NewReconciler(gw, orders, verifications),
		orders:     orders,
		limiter:    limiter,
		hmacSecret: cfg.Gateway.HMACSecret,
	})

	grpcSrv := serveHealth(ctx, cfg.GRPCHealthAddr, pool, rdb)
	defer grpcSrv.GracefulStop()

	srv := &http.Server{Addr: cfg.PaymentSvcAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Printf("payment-service listening on %s", cfg.PaymentSvcAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("payment-service shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}

// serveHealth exposes the standard gRPC health service. It reports SERVING
// while postgres answers; redis only degrades the verification cache, so it
// is logged but does not flip the status.
func serveHealth(ctx context.Context, addr string, pool *pgxpool.Pool, rdb *cache.Redis) *grpc.Server {
	s := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)

	l, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("grpc health listen %s: %v", addr, err)
	}
	go func() {
		log.Printf("grpc health listening on %s", addr)
		if err := s.Serve(l); err != nil {
			log.Printf("grpc health: %v", err)
		}
	}()

	check := func() {
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		status := healthpb.HealthCheckResponse_SERVING
		if err := pool.Ping(pctx); err != nil {
			log.Printf("[health] postgres: %v", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		if rdb != nil {
			if err := rdb.Ping(pctx); err != nil {
				log.Printf("[health] redis: %v", err)
			}
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus("payments", status)
	}
	check()
	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				hs.Shutdown()
				return
			case <-t.C:
				check()
			}
		}
	}()
	return s
}
