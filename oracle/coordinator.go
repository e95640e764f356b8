package oracle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"flight-oracles/metrics"
	"flight-oracles/pool"
	"flight-oracles/queues"

	"github.com/rs/zerolog/log"
)

// Coordinator wires the request stream to eligibility and dispatch. Handle
// returns as soon as the request's fan-out is started, so the stream keeps
// flowing while submissions are pending.
type Coordinator struct {
	pool       *pool.Pool
	dispatcher *Dispatcher

	// dispatches outlive the subscription context so shutdown can drain them
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closing  bool
	wg       sync.WaitGroup
	inflight atomic.Int64
}

func NewCoordinator(p *pool.Pool, d *Dispatcher) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{pool: p, dispatcher: d, ctx: ctx, cancel: cancel}
}

// PoolSize returns the number of oracles the coordinator selects from.
func (c *Coordinator) PoolSize() int {
	return c.pool.Len()
}

// InFlight returns the number of requests whose submissions are not all terminal.
func (c *Coordinator) InFlight() int {
	return int(c.inflight.Load())
}

func (c *Coordinator) Handle(_ context.Context, req *queues.StatusRequest) error {
	eligible := Eligible(c.pool, req.Index)
	if len(eligible) == 0 {
		metrics.RequestsTotal.WithLabelValues("none").Inc()
		log.Info().Str("requestId", req.ID).Uint8("index", req.Index).Str("flight", req.Flight).Msg("coordinator: no eligible oracle for request")
		return nil
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return ErrShuttingDown
	}
	c.wg.Add(1)
	c.mu.Unlock()

	metrics.RequestsTotal.WithLabelValues("hit").Inc()
	c.inflight.Add(1)
	log.Debug().Str("requestId", req.ID).Uint8("index", req.Index).Int("eligible", len(eligible)).Msg("coordinator: dispatching request")
	go func() {
		defer c.wg.Done()
		defer c.inflight.Add(-1)
		c.dispatcher.Dispatch(c.ctx, req, eligible)
	}()
	return nil
}

// Shutdown stops accepting requests and waits for in-flight dispatches. When
// ctx expires first the remaining submissions are cancelled and reported as
// abandoned.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	start := time.Now()
	select {
	case <-done:
		c.cancel()
		log.Info().Dur("waited", time.Since(start)).Msg("coordinator: in-flight requests drained")
		return nil
	case <-ctx.Done():
		n := c.inflight.Load()
		log.Warn().Int64("abandoned", n).Msg("coordinator: grace period expired; abandoning in-flight submissions")
		c.cancel()
		<-done
		return fmt.Errorf("abandoned %d in-flight requests: %w", n, ctx.Err())
	}
}
