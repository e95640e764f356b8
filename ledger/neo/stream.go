package neo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flight-oracles/metrics"
	"flight-oracles/queues"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/neorpc"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/rs/zerolog/log"
	"k8s.io/apimachinery/pkg/util/wait"
)

const requestEvent = "OracleRequest"

// ErrStreamLost is returned by Start when re-subscription keeps failing.
var ErrStreamLost = errors.New("request event stream lost")

// notificationSource is the subscription part of *rpcclient.WSClient.
type notificationSource interface {
	ReceiveExecutionNotifications(flt *neorpc.NotificationFilter, rcvr chan<- *state.ContainedNotificationEvent) (string, error)
	GetError() error
	Close()
}

type dialFunc func(ctx context.Context) (notificationSource, error)

// Stream delivers the contract's OracleRequest events in order, re-subscribing
// with backoff when the websocket drops.
type Stream struct {
	contract util.Uint160
	dial     dialFunc
	backoff  wait.Backoff
	attempts int
}

// NewStream subscribes through the node's websocket endpoint. attempts is the
// number of consecutive failed re-subscriptions tolerated before Start gives up.
func NewStream(wsURL string, contract util.Uint160, attempts int, initial time.Duration) *Stream {
	dial := func(ctx context.Context) (notificationSource, error) {
		ws, err := rpcclient.NewWS(ctx, wsURL, rpcclient.WSOptions{})
		if err != nil {
			return nil, err
		}
		if err := ws.Init(); err != nil {
			ws.Close()
			return nil, err
		}
		return ws, nil
	}
	return newStream(contract, dial, attempts, initial)
}

func newStream(contract util.Uint160, dial dialFunc, attempts int, initial time.Duration) *Stream {
	return &Stream{
		contract: contract,
		dial:     dial,
		attempts: attempts,
		backoff: wait.Backoff{
			Duration: initial,
			Factor:   2,
			Jitter:   0.1,
			Steps:    attempts,
			Cap:      time.Minute,
		},
	}
}

func (s *Stream) Start(ctx context.Context, handler func(context.Context, *queues.StatusRequest) error) error {
	backoff := s.backoff
	failures := 0
	for {
		subscribed, err := s.consume(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		if subscribed {
			failures = 0
			backoff = s.backoff
		}
		failures++
		if failures > s.attempts {
			log.Error().Err(err).Int("attempts", s.attempts).Str("stage", "subscribe").Msg("ledger: giving up on request stream")
			return fmt.Errorf("%w after %d attempts: %v", ErrStreamLost, s.attempts, err)
		}
		metrics.StreamReconnects.Inc()
		d := backoff.Step()
		log.Warn().Err(err).Int("attempt", failures).Dur("retryIn", d).Str("stage", "subscribe").Msg("ledger: request stream interrupted; re-subscribing")

		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// consume runs one subscription until it drops or ctx ends. subscribed
// reports whether the subscription was established at all.
func (s *Stream) consume(ctx context.Context, handler func(context.Context, *queues.StatusRequest) error) (subscribed bool, err error) {
	src, err := s.dial(ctx)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer src.Close()

	ch := make(chan *state.ContainedNotificationEvent, 64)
	contract := s.contract
	name := requestEvent
	flt := &neorpc.NotificationFilter{Contract: &contract, Name: &name}
	id, err := src.ReceiveExecutionNotifications(flt, ch)
	if err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	log.Info().Str("subscription", id).Str("contract", contract.StringLE()).Msg("ledger: subscribed to request events")

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case ev, ok := <-ch:
			if !ok {
				err := src.GetError()
				if err == nil {
					err = errors.New("notification channel closed")
				}
				return true, err
			}
			if ev == nil {
				continue
			}
			req, err := decodeRequest(ev)
			if err != nil {
				log.Error().Err(err).Str("tx", ev.Container.StringLE()).Msg("ledger: malformed request event; skipping")
				continue
			}
			log.Info().Str("requestId", req.ID).Uint8("index", req.Index).Str("airline", req.Airline).Str("flight", req.Flight).Uint64("timestamp", req.Timestamp).Msg("ledger: status request received")
			if err := handler(ctx, req); err != nil {
				log.Error().Err(err).Str("requestId", req.ID).Msg("ledger: request not handled")
			}
		}
	}
}
