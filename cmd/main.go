package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"flight-oracles/config"
	"flight-oracles/health"
	"flight-oracles/ledger/neo"
	"flight-oracles/metrics"
	"flight-oracles/oracle"
	"flight-oracles/queues"
	qpubsub "flight-oracles/queues/pubsub"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var version = "source"

func setLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if os.Getenv("DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// runtimeStatus backs the probes; the coordinator appears once the pool is
// provisioned.
type runtimeStatus struct {
	coord atomic.Pointer[oracle.Coordinator]
}

func (s *runtimeStatus) Ready() bool { return s.coord.Load() != nil }

func (s *runtimeStatus) PoolSize() int {
	if c := s.coord.Load(); c != nil {
		return c.PoolSize()
	}
	return 0
}

func (s *runtimeStatus) InFlight() int {
	if c := s.coord.Load(); c != nil {
		return c.InFlight()
	}
	return 0
}

func main() {
	setLogger(os.Getenv("ORACLE_LOG_LEVEL"))
	log.Info().Msgf("Starting flight-oracles version: %s", version)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration rejected")
	}
	setLogger(cfg.LogLevel)
	log.Info().Interface("config", cfg.Redacted()).Msg("config loaded")

	stake, err := cfg.StakeUnits()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid ORACLE_STAKE")
	}
	contractHash, err := util.Uint160DecodeStringLE(cfg.ContractHash)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid LEDGER_CONTRACT")
	}
	policy, err := oracle.NewPolicy(cfg.StatusPolicy, cfg.StatusCode)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid status policy")
	}

	// Context and shutdown handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics and health HTTP server
	status := &runtimeStatus{}
	mux := http.NewServeMux()
	metrics.Register(mux)
	health.Register(mux, status)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr()).Msg("starting metrics/health server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	accounts, err := neo.LoadAccounts(cfg.WalletPath, cfg.WalletPassword)
	if err != nil {
		log.Fatal().Err(err).Str("wallet", cfg.WalletPath).Msg("cannot load oracle accounts")
	}
	// The ledger client outlives the signal so in-flight submissions can be
	// awaited during the shutdown drain.
	ledgerCtx, cancelLedger := context.WithCancel(context.Background())
	contract, err := neo.Dial(ledgerCtx, cfg.RPCURL, contractHash, accounts)
	if err != nil {
		cancelLedger()
		log.Fatal().Err(err).Str("endpoint", cfg.RPCURL).Msg("cannot reach ledger")
	}
	closeLedger := func() {
		contract.Close()
		cancelLedger()
	}

	// Registration completes before any request is consumed.
	registrar := oracle.NewRegistrar(contract, cfg.RegisterTimeout)
	oraclePool, err := registrar.Provision(ctx, contract.Accounts(), cfg.PoolSize, stake)
	if err != nil {
		if provisioningStopped(ctx, err) {
			log.Info().Int("registered", oraclePool.Len()).Msg("shutdown requested during provisioning")
			shutdownHTTP(srv)
			closeLedger()
			return
		}
		closeLedger()
		if errors.Is(err, oracle.ErrNoIdentities) {
			log.Fatal().Err(err).Msg("no oracle could be registered; refusing to serve")
		}
		log.Fatal().Err(err).Msg("oracle provisioning aborted")
	}

	dcfg := oracle.DispatcherConfig{
		Responder:     contract,
		Policy:        policy,
		SubmitTimeout: cfg.SubmitTimeout,
		MaxConcurrent: cfg.MaxConcurrent,
	}
	var publisher *qpubsub.Publisher
	if cfg.ResultTopic != "" {
		if cfg.CredentialsFile != "" {
			log.Info().Str("credsFile", cfg.CredentialsFile).Msg("using explicit Google credentials file")
		} else {
			log.Info().Msg("using default Google credentials (ambient)")
		}
		publisher = qpubsub.NewPublisher(cfg.GoogleProjectID, cfg.ResultTopic, cfg.CredentialsFile)
		dcfg.Publisher = publisher
	}
	coordinator := oracle.NewCoordinator(oraclePool, oracle.NewDispatcher(dcfg))
	status.coord.Store(coordinator)

	var subscriber queues.Subscriber
	switch cfg.EventSource {
	case "pubsub":
		subscriber = qpubsub.NewSubscriber(cfg.GoogleProjectID, cfg.Subscription, cfg.CredentialsFile)
	default:
		subscriber = neo.NewStream(cfg.WSURL, contractHash, cfg.ResubscribeAttempts, cfg.ResubscribeBackoff)
	}

	log.Info().Str("source", cfg.EventSource).Int("poolSize", oraclePool.Len()).Msg("starting request loop")
	err = serve(ctx, subscriber, coordinator, cfg.ShutdownGrace,
		func() { shutdownHTTP(srv) },
		func() {
			if c, ok := subscriber.(io.Closer); ok {
				if err := c.Close(); err != nil {
					log.Error().Err(err).Msg("request subscriber close failed")
				}
			}
		},
		func() {
			if publisher != nil {
				if err := publisher.Close(); err != nil {
					log.Error().Err(err).Msg("pubsub publisher close failed")
				}
			}
		},
		closeLedger,
	)
	if err != nil {
		// Without a request stream the service cannot do its job
		log.Fatal().Err(err).Msg("request stream lost; exited after draining")
	}
	log.Info().Msg("shutdown complete")
}

// serve feeds the subscriber's requests to the coordinator until ctx ends or
// the subscriber fails, then drains in-flight work within grace and runs
// release in order. It returns the subscriber's error when that ended the run.
func serve(ctx context.Context, sub queues.Subscriber, coord *oracle.Coordinator, grace time.Duration, release ...func()) error {
	subCtx, cancelSub := context.WithCancel(ctx)
	defer cancelSub()
	errCh := make(chan error, 1)
	go func() {
		errCh <- sub.Start(subCtx, coord.Handle)
	}()

	var cause error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		switch {
		case err != nil:
			cause = err
		case ctx.Err() == nil:
			cause = errors.New("request stream stopped unexpectedly")
		}
		if cause != nil {
			log.Error().Err(cause).Int("inFlight", coord.InFlight()).Msg("request stream exited with fatal error; shutting down")
		} else {
			log.Info().Msg("shutdown signal received")
		}
	}
	cancelSub()

	graceCtx, cancelGrace := context.WithTimeout(context.Background(), grace)
	defer cancelGrace()
	if err := coord.Shutdown(graceCtx); err != nil {
		log.Warn().Err(err).Msg("in-flight submissions did not finish within grace period")
	}
	for _, fn := range release {
		fn()
	}
	return cause
}

// provisioningStopped reports whether provisioning ended because the process
// was asked to stop rather than because registration failed.
func provisioningStopped(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, context.Canceled)
}

func shutdownHTTP(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http server graceful shutdown failed")
	}
}
