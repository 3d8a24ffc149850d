package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/dablchess/operator/internal/platform/config"
	"github.com/dablchess/operator/internal/platform/telemetry/metrics"
	"github.com/dablchess/operator/internal/platform/timeouts"
	"github.com/dablchess/operator/internal/services/operator/dispatch"
	"github.com/dablchess/operator/internal/services/operator/domain"
	"github.com/dablchess/operator/internal/services/operator/ledger"
	operatorsqlite "github.com/dablchess/operator/internal/services/operator/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the gRPC health service name that turns SERVING once the
// ready bootstraps have all succeeded.
const HealthService = "operator.reactor"

const (
	defaultLedgerURL   = "http://localhost:7575"
	defaultParty       = "Ref"
	defaultHealthAddr  = ":8095"
	defaultTokenSecret = "secret"
	defaultLedgerID    = "sandbox"
	defaultAppID       = "operator-bot"
	itemBuffer         = 64
)

// RuntimeConfig controls operator startup, dependencies, and loop behavior.
type RuntimeConfig struct {
	LedgerURL     string
	Party         string
	PublicParty   string
	Token         string
	TokenSecret   string
	LedgerID      string
	ApplicationID string
	Profile       string
	HealthAddr    string
	// MetricsAddr serves /metrics when set.
	MetricsAddr string
	// DBPath enables the SQLite audit log when set.
	DBPath            string
	SubmitRate        float64
	RequestTimeout    time.Duration
	ReconnectMaxDelay time.Duration
}

func (c RuntimeConfig) normalized() RuntimeConfig {
	c.LedgerURL = config.OrDefault(c.LedgerURL, defaultLedgerURL)
	c.Party = config.OrDefault(c.Party, defaultParty)
	c.PublicParty = config.OrDefault(c.PublicParty, defaultParty)
	c.TokenSecret = config.OrDefault(c.TokenSecret, defaultTokenSecret)
	c.LedgerID = config.OrDefault(c.LedgerID, defaultLedgerID)
	c.ApplicationID = config.OrDefault(c.ApplicationID, defaultAppID)
	c.HealthAddr = config.OrDefault(c.HealthAddr, defaultHealthAddr)
	c.MetricsAddr = strings.TrimSpace(c.MetricsAddr)
	c.DBPath = strings.TrimSpace(c.DBPath)
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = timeouts.LedgerRequest
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = timeouts.ReconnectMax
	}
	return c
}

// Run starts the operator for one party and blocks until ctx ends or the
// ledger refuses the event stream.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg = cfg.normalized()

	profile, err := domain.ProfileByName(cfg.Profile)
	if err != nil {
		return err
	}
	registry, err := dispatch.NewRegistry(profile.Routes)
	if err != nil {
		return fmt.Errorf("build %s registry: %w", profile.Name, err)
	}

	token, err := resolveToken(cfg)
	if err != nil {
		return err
	}
	client, err := ledger.NewClient(ledger.Config{
		BaseURL:        cfg.LedgerURL,
		Token:          token,
		RequestTimeout: cfg.RequestTimeout,
		SubmitLimiter:  submitLimiter(cfg.SubmitRate),
	})
	if err != nil {
		return fmt.Errorf("create ledger client: %w", err)
	}

	operatorMetrics, err := metrics.New(nil)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	var recorder dispatch.Recorder
	if cfg.DBPath != "" {
		store, err := operatorsqlite.Open(ctx, cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open operator sqlite store: %w", err)
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				log.Printf("close operator sqlite store: %v", closeErr)
			}
		}()
		recorder = newAttemptStoreRecorder(store)
	}

	grpcListener, err := net.Listen("tcp", cfg.HealthAddr)
	if err != nil {
		return fmt.Errorf("listen on health address %s: %w", cfg.HealthAddr, err)
	}
	defer grpcListener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(grpcListener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()
	log.Printf("operator health server listening at %v", grpcListener.Addr())

	if cfg.MetricsAddr != "" {
		stopMetrics, err := serveMetrics(cfg.MetricsAddr, operatorMetrics)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	reactor, err := dispatch.New(dispatch.Config{
		Env: domain.Env{
			Party:       cfg.Party,
			PublicParty: cfg.PublicParty,
			Ledger:      newInstrumentedGateway(client, operatorMetrics),
		},
		Registry: registry,
		Ready:    profile.Ready,
		Recorder: recorder,
		Observer: operatorMetrics,
		OnReady: func() {
			healthServer.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)
		},
	})
	if err != nil {
		return fmt.Errorf("create reactor: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	items := make(chan dispatch.Item, itemBuffer)
	followErr := make(chan error, 1)
	go func() {
		defer close(items)
		followErr <- dispatch.Follow(runCtx, client, dispatch.FollowConfig{
			Templates:   registry.Templates(),
			MaxDelay:    cfg.ReconnectMaxDelay,
			OnReconnect: operatorMetrics.StreamReconnected,
		}, items)
	}()

	log.Printf("operator %s running as %s against %s", profile.Name, cfg.Party, cfg.LedgerURL)
	runErr := reactor.Run(runCtx, items)
	cancel()
	streamErr := <-followErr
	operatorMetrics.SetReady(false)

	if ctx.Err() != nil {
		return nil
	}
	if streamErr != nil && !errors.Is(streamErr, context.Canceled) {
		return streamErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func resolveToken(cfg RuntimeConfig) (string, error) {
	if token := strings.TrimSpace(cfg.Token); token != "" {
		parties, err := ledger.TokenParties(token)
		switch {
		case err != nil:
			log.Printf("configured ledger token: %v", err)
		case !slices.Contains(parties, cfg.Party):
			log.Printf("configured ledger token acts as %v, not %s", parties, cfg.Party)
		}
		return token, nil
	}
	token, err := ledger.MintToken(ledger.TokenConfig{
		LedgerID:      cfg.LedgerID,
		ApplicationID: cfg.ApplicationID,
		Party:         cfg.Party,
		Secret:        cfg.TokenSecret,
	})
	if err != nil {
		return "", fmt.Errorf("mint ledger token: %w", err)
	}
	return token, nil
}

func submitLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(math.Ceil(perSecond))
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func serveMetrics(addr string, m *metrics.Metrics) (stop func(), err error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on metrics address %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Handler: mux, ReadHeaderTimeout: timeouts.ReadHeader}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server: %v", err)
		}
	}()
	log.Printf("operator metrics listening at %v", listener.Addr())

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown metrics server: %v", err)
		}
		<-done
	}, nil
}
