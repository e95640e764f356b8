package oracle

import (
	"context"
	"errors"
	"math/big"
	"time"

	"flight-oracles/metrics"
	"flight-oracles/pool"

	"github.com/rs/zerolog/log"
)

// Registrar provisions the oracle pool against the external registry.
type Registrar struct {
	registry Registry
	timeout  time.Duration
}

func NewRegistrar(r Registry, timeout time.Duration) *Registrar {
	return &Registrar{registry: r, timeout: timeout}
}

// Provision registers up to target candidates, one call each, and returns the
// pool of those that succeeded. Individual failures are logged and skipped.
// ErrNoIdentities is returned when at least one attempt was made and none
// succeeded.
func (r *Registrar) Provision(ctx context.Context, candidates []string, target int, stake *big.Int) (*pool.Pool, error) {
	start := time.Now()
	if target < 0 {
		target = 0
	}
	n := min(target, len(candidates))
	if n < target {
		log.Warn().Int("target", target).Int("available", len(candidates)).Msg("registrar: fewer candidate accounts than requested pool size")
	}

	b := pool.NewBuilder()
	attempts := 0
	for _, addr := range candidates[:n] {
		if err := ctx.Err(); err != nil {
			p := b.Build()
			metrics.PoolSize.Set(float64(p.Len()))
			return p, err
		}
		attempts++
		id, err := r.registerOne(ctx, addr, stake)
		if err != nil {
			metrics.RegistrationsTotal.WithLabelValues("failure").Inc()
			var pe *ProvisioningError
			stage := ""
			if errors.As(err, &pe) {
				stage = pe.Stage
			}
			log.Error().Err(err).Str("oracle", addr).Str("stage", stage).Msg("registrar: oracle registration failed; skipping")
			continue
		}
		if err := b.Add(id); err != nil {
			metrics.RegistrationsTotal.WithLabelValues("failure").Inc()
			log.Error().Err(err).Str("oracle", addr).Msg("registrar: oracle not added to pool")
			continue
		}
		metrics.RegistrationsTotal.WithLabelValues("success").Inc()
		log.Info().Str("oracle", addr).Str("indexes", id.Indexes.String()).Msg("registrar: oracle registered")
	}

	p := b.Build()
	metrics.PoolSize.Set(float64(p.Len()))
	if err := ctx.Err(); err != nil {
		log.Warn().Int("registered", p.Len()).Int("attempted", attempts).Msg("registrar: provisioning interrupted")
		return p, err
	}
	log.Info().Int("registered", p.Len()).Int("attempted", attempts).Dur("duration", time.Since(start)).Msg("registrar: provisioning complete")
	if attempts > 0 && p.Len() == 0 {
		return p, ErrNoIdentities
	}
	return p, nil
}

func (r *Registrar) registerOne(ctx context.Context, addr string, stake *big.Int) (pool.Identity, error) {
	rctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.registry.Register(rctx, addr, stake); err != nil {
		return pool.Identity{}, &ProvisioningError{Oracle: addr, Stage: "register", Err: err}
	}

	ictx, cancel := r.withTimeout(ctx)
	defer cancel()
	idx, err := r.registry.Indexes(ictx, addr)
	if err != nil {
		return pool.Identity{}, &ProvisioningError{Oracle: addr, Stage: "indexes", Err: err}
	}
	return pool.Identity{Address: addr, Indexes: idx}, nil
}

func (r *Registrar) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}
