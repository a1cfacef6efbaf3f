package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aderut/moridam/internal/cart/cache"
	cartrepo "github.com/aderut/moridam/internal/cart/repository"
	cartservice "github.com/aderut/moridam/internal/cart/service"
	"github.com/aderut/moridam/internal/catalog"
	"github.com/aderut/moridam/internal/delivery"
	h "github.com/aderut/moridam/internal/http"
	"github.com/aderut/moridam/internal/notify"
	orderservice "github.com/aderut/moridam/internal/orders/service"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "orders-store",
				Value: "postgres",
				Usage: "order store: postgres or memory",
			},
			&cli.StringFlag{
				Name:  "notify",
				Value: "kafka",
				Usage: "order notifications: kafka (via the notifier worker) or log",
			},
			&cli.BoolFlag{
				Name:  "migrate",
				Value: true,
				Usage: "apply migrations on start",
			},
		},
		Action: serve,
	}
}

func serve(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// W3C trace context on incoming and outgoing requests.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	store, err := catalog.NewSQLiteStore(cfg.Catalog.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	if c.Bool("migrate") {
		if err := store.RunMigrations(); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
	}
	log.Info("catalog ready", zap.String("path", cfg.Catalog.DBPath))

	mongoDB, err := cartrepo.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	defer mongoDB.Client().Disconnect(context.Background())
	carts := cartrepo.NewMongoRepository(mongoDB)
	if err := carts.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("cart indexes: %w", err)
	}
	log.Info("connected to MongoDB", zap.String("database", cfg.Mongo.Database))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	log.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	orders, closeOrders, err := openOrders(ctx, cfg, c.String("orders-store"), c.Bool("migrate"))
	if err != nil {
		return err
	}
	defer closeOrders()
	log.Info("order store ready", zap.String("kind", c.String("orders-store")))

	var notifier orderservice.Notifier
	switch c.String("notify") {
	case "kafka":
		kn := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		defer kn.Close()
		notifier = kn
	case "log":
		notifier = notify.NewDirectNotifier(notify.NewLogSender(log), cfg.Notify.WhatsAppNumber)
	default:
		return fmt.Errorf("unknown notifier %q", c.String("notify"))
	}

	cartSvc := cartservice.NewService(carts, cache.NewRedisCache(redisClient), store, log)
	go cartSvc.RunEviction(ctx, cfg.Cart.SweepInterval, cfg.Cart.IdleTTL)
	orderSvc := orderservice.NewService(orders, notifier, log)

	ors := delivery.NewORSClient(cfg.Delivery.ORSBaseURL, cfg.Delivery.ORSAPIKey, log)
	if cfg.Delivery.ORSAPIKey == "" {
		log.Warn("ORS_API_KEY not set, delivery quotes will fail")
	}
	quoter := delivery.NewQuoter(ors, delivery.Pickup)

	timeout := cfg.Server.RequestTimeout
	router := h.NewRouter(h.RouterConfig{
		RequestTimeout:     timeout,
		MaxRequestBodySize: cfg.Server.MaxRequestBodySize,
		AdminToken:         cfg.Admin.Token,
		SecureCookies:      cfg.Server.SecureCookies,
	}, h.Handlers{
		Products: h.NewProductHandler(store, timeout, log),
		Cart:     h.NewCartHandler(cartSvc, timeout, log),
		Checkout: h.NewCheckoutHandler(orderSvc, cartSvc, timeout, log),
		Delivery: h.NewDeliveryHandler(quoter, ors, timeout, log),
		Orders:   h.NewOrdersHandler(orderSvc, timeout, log),
	}, log)
	if cfg.Admin.Token == "" {
		log.Warn("ADMIN_TOKEN not set, admin routes are locked")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	healthSrv := health.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCHealthPort)
	if err != nil {
		return fmt.Errorf("listen health port: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("health server listening", zap.String("port", cfg.Server.GRPCHealthPort))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("health server: %w", err)
		}
	}()
	go func() {
		log.Info("HTTP server listening", zap.String("port", cfg.Server.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		log.Error("server failed", zap.Error(runErr))
	}

	log.Info("shutting down")
	healthSrv.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	if err := cartSvc.Flush(shutdownCtx); err != nil {
		log.Warn("pending cart saves not flushed", zap.Error(err))
	}

	log.Info("server exited")
	return runErr
}
