package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cwrk-planet/live-quiz/config"
	"github.com/cwrk-planet/live-quiz/internal/analytics"
	"github.com/cwrk-planet/live-quiz/internal/logger"
	"github.com/cwrk-planet/live-quiz/internal/metrics"
	"github.com/cwrk-planet/live-quiz/internal/postgres"
	"github.com/cwrk-planet/live-quiz/internal/redis"
	"github.com/cwrk-planet/live-quiz/internal/registry"
	"github.com/cwrk-planet/live-quiz/internal/scoring"
	"github.com/cwrk-planet/live-quiz/internal/security"
	"github.com/cwrk-planet/live-quiz/internal/session"
	grpcx "github.com/cwrk-planet/live-quiz/internal/transport/grpc"
	httpx "github.com/cwrk-planet/live-quiz/internal/transport/http"
	"github.com/cwrk-planet/live-quiz/internal/transport/ws"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("logging.level: %v", err)
	}
	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		Level:     level,
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
		Attrs: []slog.Attr{
			slog.String("http_addr", cfg.HTTP.Addr),
			slog.String("grpc_addr", cfg.GRPC.Addr),
			slog.String("scoring", cfg.Scoring.Policy),
		},
	})
	slog.Info("starting live-quiz",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- analytics sinks ---
	sinks := analytics.Multi{analytics.LogSink{Logger: slog.Default()}}
	health := map[string]httpx.HealthCheck{}

	if cfg.Postgres.DSN != "" {
		maxLifetime, maxIdle := cfg.Postgres.Lifetimes()
		db, err := postgres.Open(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MaxConnLifetime: maxLifetime,
			MaxConnIdleTime: maxIdle,
			ApplicationName: cfg.Postgres.ApplicationName,
			PingTimeout:     cfg.Postgres.Ping(),
		})
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer db.Close()
		sinks = append(sinks, postgres.NewSummaryRepository(db.Pool))
		health["postgres"] = db.Ping
		slog.Info("postgres summary sink enabled")
	}

	if cfg.Redis.Addr != "" {
		rcfg := redis.Config{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			Channel:   cfg.Redis.Channel,
			TTL:       cfg.Redis.Expiry(),
		}
		rdb, err := redis.NewClient(ctx, rcfg)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer func() { _ = rdb.Close() }()
		sinks = append(sinks, redis.NewSummaryPublisher(rdb, rcfg))
		health["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		slog.Info("redis summary sink enabled", "addr", cfg.Redis.Addr)
	}

	// --- scoring & tickets ---
	policy, err := scoring.New(cfg.Scoring.Policy, cfg.Scoring.MaxPoints, cfg.Scoring.MinPoints)
	if err != nil {
		log.Fatalf("scoring: %v", err)
	}

	var verifier *security.Verifier
	if cfg.Auth.RSAPublicKeyPath != "" {
		pub, err := security.LoadRSAPublicKeyFromPEM(cfg.Auth.RSAPublicKeyPath)
		if err != nil {
			log.Fatalf("auth: %v", err)
		}
		verifier = security.NewRSAVerifier(pub, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.Skew())
	} else {
		verifier = security.NewHMACVerifier([]byte(cfg.Auth.HMACSecret), cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.Skew())
	}

	// --- sessions ---
	m := metrics.New()
	reg := registry.New(
		registry.Config{
			JoinCodeLength:    cfg.Session.JoinCodeLength,
			TerminalRetention: cfg.Session.Retention(),
			CleanupInterval:   cfg.Session.Cleanup(),
			MaxSessions:       cfg.Session.MaxSessions,
		},
		session.Config{
			HeartbeatInterval: cfg.Session.Heartbeat(),
			MissedHeartbeats:  cfg.Session.MissedHeartbeats,
			HostGracePeriod:   cfg.Session.Grace(),
			CommandBuffer:     cfg.Session.CommandBuffer,
			HostOutboxSize:    cfg.Session.HostOutboxSize,
			SinkTimeout:       cfg.Session.SinkWait(),
		},
		session.Deps{
			Policy: policy,
			Sink:   sinks,
			Logger: slog.Default(),
			OnDrop: ws.SlowConsumer(m),
		},
	)
	m.TrackSessions(reg.Len)

	// --- WS & HTTP ---
	wsServer := ws.NewServer(reg, verifier, m, ws.Config{
		SendBuffer:      cfg.WS.SendBuffer,
		PingInterval:    cfg.WS.Ping(),
		PongWait:        cfg.WS.Pong(),
		WriteWait:       cfg.WS.Write(),
		MaxMessageBytes: cfg.WS.MaxMessageBytes,
		SubmitLimit:     cfg.Session.SubmitLimitPerQuestion,
		AllowedOrigins:  cfg.WS.AllowedOrigins,
	})

	router := httpx.NewRouter(httpx.Deps{
		Handler:      httpx.NewHandler(reg, m),
		Tickets:      verifier,
		WS:           wsServer.HandleWS,
		ServiceToken: cfg.HTTP.ServiceToken,
		CORSOrigins:  cfg.HTTP.CORSOrigins,
		Health:       health,
	})
	readTimeout, writeTimeout, idleTimeout := cfg.HTTP.Timeouts()
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	// --- gRPC ---
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcx.UnaryServerInterceptor(), grpcx.AuthInterceptor(cfg.HTTP.ServiceToken)),
	)
	healthSrv := grpcx.Register(grpcServer, grpcx.NewServer(reg))

	// --- run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return err
		}
		slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		return reg.Run(gctx)
	})

	// --- graceful shutdown ---
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		grpcServer.GracefulStop()
		return httpSrv.Shutdown(ctxShutdown)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
	slog.Info("stopped")
}
