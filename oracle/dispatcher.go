package oracle

import (
	"context"
	"fmt"
	"time"

	"flight-oracles/metrics"
	"flight-oracles/pool"
	"flight-oracles/queues"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DispatcherConfig holds the dispatcher's collaborators and limits.
// Publisher is optional.
type DispatcherConfig struct {
	Responder     Responder
	Policy        StatusPolicy
	Publisher     queues.Publisher
	SubmitTimeout time.Duration
	MaxConcurrent int
}

// Dispatcher fans a request out to its eligible oracles. Each submission is
// isolated: its failure, timeout or panic never affects siblings.
type Dispatcher struct {
	responder Responder
	policy    StatusPolicy
	publisher queues.Publisher
	timeout   time.Duration
	limit     int
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	policy := cfg.Policy
	if policy == nil {
		policy = FixedPolicy(StatusOnTime)
	}
	return &Dispatcher{
		responder: cfg.Responder,
		policy:    policy,
		publisher: cfg.Publisher,
		timeout:   cfg.SubmitTimeout,
		limit:     cfg.MaxConcurrent,
	}
}

// Dispatch submits one response per identity and waits until every
// submission is terminal. Results are returned in identity order.
func (d *Dispatcher) Dispatch(ctx context.Context, req *queues.StatusRequest, ids []pool.Identity) []StatusResponse {
	out := make([]StatusResponse, len(ids))
	if len(ids) == 0 {
		return out
	}
	start := time.Now()

	var g errgroup.Group
	if d.limit > 0 {
		g.SetLimit(d.limit)
	}
	for i, id := range ids {
		g.Go(func() error {
			out[i] = d.submit(ctx, req, id)
			d.report(ctx, &out[i])
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i := range out {
		if out[i].State == StateFailed {
			failed++
		}
	}
	log.Info().Str("requestId", req.ID).Uint8("index", req.Index).Int("oracles", len(ids)).Int("failed", failed).Dur("duration", time.Since(start)).Msg("dispatcher: request handled")
	return out
}

func (d *Dispatcher) submit(ctx context.Context, req *queues.StatusRequest, id pool.Identity) (resp StatusResponse) {
	resp = StatusResponse{Oracle: id.Address, Request: req, State: StatePending, StartedAt: time.Now()}
	defer func() {
		if r := recover(); r != nil {
			d.fail(&resp, req, fmt.Errorf("panic: %v", r))
		}
		resp.FinishedAt = time.Now()
		resp.Duration = resp.FinishedAt.Sub(resp.StartedAt)
	}()

	resp.Code = d.policy(req)
	resp.advance(StateSubmitting)

	sctx, cancel := d.withTimeout(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- d.responder.SubmitResponse(sctx, id.Address, req, resp.Code)
	}()

	var err error
	select {
	case err = <-done:
	case <-sctx.Done():
		err = sctx.Err()
	}
	if err != nil {
		d.fail(&resp, req, err)
		return resp
	}
	resp.advance(StateSubmitted)
	return resp
}

func (d *Dispatcher) fail(resp *StatusResponse, req *queues.StatusRequest, err error) {
	resp.Err = &SubmissionError{Oracle: resp.Oracle, RequestID: req.ID, Index: req.Index, Err: err}
	if !resp.State.Terminal() {
		resp.advance(StateFailed)
	}
}

func (d *Dispatcher) report(ctx context.Context, resp *StatusResponse) {
	metrics.ResponsesTotal.WithLabelValues(string(resp.State)).Inc()
	metrics.SubmissionDuration.Observe(resp.Duration.Seconds())

	req := resp.Request
	if resp.State == StateFailed {
		log.Error().Err(resp.Err).Str("oracle", resp.Oracle).Str("requestId", req.ID).Uint8("index", req.Index).
			Str("flight", req.Flight).Str("stage", "submit").Dur("duration", resp.Duration).Msg("dispatcher: response submission failed")
	} else {
		log.Info().Str("oracle", resp.Oracle).Str("requestId", req.ID).Uint8("index", req.Index).
			Str("flight", req.Flight).Str("status", resp.Code.String()).Dur("duration", resp.Duration).Msg("dispatcher: response submitted")
	}

	if d.publisher == nil {
		return
	}
	pctx, cancel := d.withTimeout(ctx)
	defer cancel()
	if err := d.publisher.PublishResult(pctx, resp.Outcome()); err != nil {
		log.Error().Err(err).Str("oracle", resp.Oracle).Str("requestId", req.ID).Str("stage", "publish").Msg("dispatcher: failed to publish response outcome")
	}
}

func (d *Dispatcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}
