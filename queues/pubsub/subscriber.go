package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"flight-oracles/queues"

	gpubsub "cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Subscriber consumes status requests relayed as JSON onto a Pub/Sub
// subscription.
type Subscriber struct {
	projectID        string
	subscriptionName string
	credsFile        string
	client           *gpubsub.Client
	sub              *gpubsub.Subscription
}

func NewSubscriber(projectID, subscriptionName, credsFile string) *Subscriber {
	return &Subscriber{projectID: projectID, subscriptionName: subscriptionName, credsFile: credsFile}
}

func (s *Subscriber) Start(ctx context.Context, handler func(context.Context, *queues.StatusRequest) error) error {
	if s.sub == nil {
		client, err := newClient(ctx, s.projectID, s.credsFile)
		if err != nil {
			log.Error().Err(err).Str("projectID", s.projectID).Str("subscription", s.subscriptionName).Msg("failed to create pubsub client for subscriber")
			return err
		}
		s.client = client
		s.sub = client.Subscription(s.subscriptionName)
		log.Info().Str("subscription", s.subscriptionName).Msg("pubsub subscriber initialized")
	}
	// One message at a time keeps requests in delivery order; the handler
	// only starts the fan-out, so this does not serialize submissions.
	s.sub.ReceiveSettings.NumGoroutines = 1
	s.sub.ReceiveSettings.MaxOutstandingMessages = 1

	// Receive blocks; respect ctx cancellation
	return s.sub.Receive(ctx, func(ctx context.Context, m *gpubsub.Message) {
		log.Debug().Str("messageID", m.ID).Int("size", len(m.Data)).Msg("received pubsub message")
		recvAt := time.Now()
		var req queues.StatusRequest
		if err := json.Unmarshal(m.Data, &req); err != nil {
			log.Error().Err(err).Str("messageID", m.ID).Msg("failed to unmarshal status request; dropping")
			// Ack to drop bad message (poison)
			m.Ack()
			return
		}
		if err := req.Validate(); err != nil {
			log.Error().Err(err).Str("messageID", m.ID).Str("flight", req.Flight).Msg("invalid status request payload; dropping")
			m.Ack()
			return
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		req.Received = recvAt

		if err := handler(ctx, &req); err != nil {
			log.Error().Err(err).Str("requestId", req.ID).Msg("handler failed; will retry")
			m.Nack()
			return
		}
		log.Debug().Str("requestId", req.ID).Dur("latency", time.Since(recvAt)).Msg("request accepted; acking message")
		m.Ack()
	})
}

// Close releases the underlying client.
func (s *Subscriber) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
