package main

import (
	"context"
	"crypto"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pushauth/backend/internal/authz"
	"pushauth/backend/internal/challenge"
	challengehandler "pushauth/backend/internal/challenge/handler"
	"pushauth/backend/internal/config"
	"pushauth/backend/internal/device"
	devicehandler "pushauth/backend/internal/device/handler"
	"pushauth/backend/internal/health"
	healthhandler "pushauth/backend/internal/health/handler"
	"pushauth/backend/internal/notify"
	"pushauth/backend/internal/ratelimit"
	"pushauth/backend/internal/security"
	"pushauth/backend/internal/server"
	"pushauth/backend/internal/session"
	"pushauth/backend/internal/signature"
	"pushauth/backend/internal/telemetry"
	telemetryotel "pushauth/backend/internal/telemetry/otel"
	"pushauth/backend/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.OTelServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()
	emitters := []telemetry.EventEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	var kafkaProducer producer.Producer
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		kafkaProducer, err = producer.NewKafkaProducer(brokers, cfg.TelemetryKafkaTopic)
		if err != nil {
			log.Fatalf("telemetry: kafka producer: %v", err)
		}
		emitters = append(emitters, kafkaProducer)
		log.Printf("telemetry: producing events to kafka topic %s", cfg.TelemetryKafkaTopic)
	}
	events := telemetry.Multi(emitters...)

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	tokens, err := tokenProvider(cfg)
	if err != nil {
		log.Fatalf("jwt: %v", err)
	}
	verifiers, err := signature.RegistryFor(cfg.Algorithms())
	if err != nil {
		log.Fatalf("signature: %v", err)
	}
	checker, err := authzChecker(ctx, cfg)
	if err != nil {
		log.Fatalf("authz: %v", err)
	}
	dispatcher, err := pushDispatcher(ctx, cfg)
	if err != nil {
		log.Fatalf("notify: %v", err)
	}

	registry := device.NewRegistry(st.devices, st.users, verifiers, notify.ValidateAddress).WithEmitter(events)
	manager := challenge.NewManager(challenge.Deps{
		Challenges: st.challenges,
		Devices:    registry,
		Dispatcher: dispatcher,
		Verifier:   verifiers,
		Issuer:     session.NewIssuer(tokens, cfg.SessionTTL()),
		Telemetry:  events,
		Tracer:     providers.TracerProvider.Tracer("pushauth/challenge"),
		Meter:      providers.MeterProvider.Meter("pushauth/challenge"),
	}, challenge.Options{TTL: cfg.ChallengeTTL()})

	monitor := health.NewMonitor()
	st.register(monitor)
	monitor.AddPolicy("authz", checker)

	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.NewRouter(server.HTTPDeps{
			Challenges:       challengehandler.NewHandler(manager, registry, checker),
			Devices:          devicehandler.NewHandler(registry, checker),
			Tokens:           tokens,
			Health:           monitor,
			ChallengeLimiter: challengeLimiter(ctx, cfg, st),
			RateWindow:       cfg.ChallengeRateWindow(),
			Events:           events,
			AllowedOrigins:   cfg.CORSOrigins(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	healthSrv := healthhandler.NewGRPCServer()
	grpcSrv := server.NewGRPCServer(healthSrv)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}

	go healthhandler.Sync(ctx, healthSrv, monitor, 0)
	go challenge.NewSweeper(manager, cfg.SweepInterval(), challenge.DefaultSweepBatch).Run(ctx)
	go func() {
		log.Printf("gRPC health server listening on %s", cfg.GRPCAddr)
		if err := grpcSrv.Serve(lis); err != nil {
			log.Printf("grpc: serve: %v", err)
			stop()
		}
	}()
	go func() {
		log.Printf("HTTP server listening on %s (store=%s, challenges=%s)", cfg.HTTPAddr, cfg.StoreDriver, cfg.ChallengeStore)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http: serve: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http: shutdown: %v", err)
	}
	grpcSrv.GracefulStop()

	// Let in-flight async emits finish before the exporters go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Printf("telemetry: close kafka producer: %v", err)
		}
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel: shutdown: %v", err)
	}
	log.Println("server stopped")
}

// tokenProvider builds the JWT provider from configured PEM keys, or an ephemeral ES256 pair outside
// production. Ephemeral keys mean access tokens from any other process are rejected.
func tokenProvider(cfg *config.Config) (*security.TokenProvider, error) {
	if cfg.JWTPrivateKey == "" && cfg.JWTPublicKey == "" {
		priv, pub, err := security.GenerateEphemeralKey()
		if err != nil {
			return nil, err
		}
		log.Println("jwt: JWT_PRIVATE_KEY not set, using an ephemeral ES256 key (development only)")
		return security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL()), nil
	}
	pub, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		return nil, err
	}
	var priv crypto.Signer
	if cfg.JWTPrivateKey != "" {
		if priv, err = security.ParsePrivateKey(cfg.JWTPrivateKey); err != nil {
			return nil, err
		}
	}
	log.Printf("jwt: using %s keys", security.KeyAlg(pub))
	return security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL()), nil
}

// authzChecker compiles AUTHZ_POLICY_FILE, or the built-in ownership policy when unset.
func authzChecker(ctx context.Context, cfg *config.Config) (*authz.OPAChecker, error) {
	policy := authz.DefaultPolicy
	if cfg.AuthzPolicyFile != "" {
		raw, err := os.ReadFile(cfg.AuthzPolicyFile)
		if err != nil {
			return nil, err
		}
		policy = string(raw)
		log.Printf("authz: loaded policy from %s", cfg.AuthzPolicyFile)
	}
	return authz.NewOPAChecker(ctx, policy)
}

// pushDispatcher routes to FCM and Web Push when configured. With neither, notifications are only
// logged, which suits development against a polling client.
func pushDispatcher(ctx context.Context, cfg *config.Config) (notify.Dispatcher, error) {
	router := &notify.Router{}
	if cfg.FCMCredentialsFile != "" {
		fcm, err := notify.NewFCMDispatcher(ctx, cfg.FCMCredentialsFile, cfg.ChallengeTTL())
		if err != nil {
			return nil, err
		}
		router.FCM = fcm
	}
	if cfg.WebPushEnabled() {
		wp, err := notify.NewWebPushDispatcher(notify.VAPIDConfig{
			PublicKey:  cfg.VAPIDPublicKey,
			PrivateKey: cfg.VAPIDPrivateKey,
			Subscriber: cfg.VAPIDSubscriber,
		}, cfg.ChallengeTTL(), nil)
		if err != nil {
			return nil, err
		}
		router.WebPush = wp
	}
	if router.FCM == nil && router.WebPush == nil {
		log.Println("notify: no push transport configured, notifications are logged only")
		return notify.LogDispatcher{}, nil
	}
	return router, nil
}

// challengeLimiter uses Redis when available so the limit holds across replicas.
func challengeLimiter(ctx context.Context, cfg *config.Config, st *stores) ratelimit.Limiter {
	if cfg.ChallengeRateLimit <= 0 {
		return ratelimit.Unlimited{}
	}
	if st.redis != nil {
		return ratelimit.NewRedisLimiter(st.redis, "pushauth:ratelimit:", cfg.ChallengeRateLimit, cfg.ChallengeRateWindow())
	}
	window := cfg.ChallengeRateWindow()
	l := ratelimit.NewMemoryLimiter(cfg.ChallengeRateLimit, window)
	go func() {
		t := time.NewTicker(window)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Prune(window)
			}
		}
	}()
	return l
}
