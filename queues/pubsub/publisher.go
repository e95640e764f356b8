package pubsub

import (
	"context"
	"encoding/json"
	"sync"

	"flight-oracles/queues"

	gpubsub "cloud.google.com/go/pubsub"
	"github.com/rs/zerolog/log"
)

// Publisher reports response outcomes to a Pub/Sub topic. It is safe for
// concurrent use by the dispatcher's submission tasks.
type Publisher struct {
	projectID   string
	resultTopic string
	credsFile   string

	mu     sync.Mutex
	client *gpubsub.Client
	topic  *gpubsub.Topic
}

func NewPublisher(projectID, resultTopic, credsFile string) *Publisher {
	return &Publisher{projectID: projectID, resultTopic: resultTopic, credsFile: credsFile}
}

func (p *Publisher) init(ctx context.Context) (*gpubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		return p.topic, nil
	}
	client, err := newClient(ctx, p.projectID, p.credsFile)
	if err != nil {
		log.Error().Err(err).Str("projectID", p.projectID).Str("topic", p.resultTopic).Msg("failed to create pubsub client for publisher")
		return nil, err
	}
	p.client = client
	p.topic = client.Topic(p.resultTopic)
	log.Info().Str("topic", p.resultTopic).Msg("pubsub publisher initialized")
	return p.topic, nil
}

func (p *Publisher) PublishResult(ctx context.Context, res *queues.ResponseOutcome) error {
	topic, err := p.init(ctx)
	if err != nil {
		return err
	}
	b, err := json.Marshal(res)
	if err != nil {
		log.Error().Err(err).Interface("outcome", res).Msg("failed to marshal response outcome")
		return err
	}
	// Publish and wait for server ack
	r := topic.Publish(ctx, &gpubsub.Message{
		Data:       b,
		Attributes: map[string]string{"state": string(res.State), "oracle": res.Oracle},
	})
	id, err := r.Get(ctx)
	if err != nil {
		log.Error().Err(err).Str("requestId", res.RequestID).Str("oracle", res.Oracle).Msg("failed to publish response outcome")
		return err
	}
	log.Debug().Str("messageID", id).Str("requestId", res.RequestID).Str("state", string(res.State)).Msg("published response outcome")
	return nil
}

// Close flushes pending publishes and releases the client.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		p.topic.Stop()
	}
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
